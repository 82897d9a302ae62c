package taskshandler

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"hrkpi/internal/domain/auth"
	"hrkpi/internal/domain/task"
	"hrkpi/internal/platform/storage"
	"hrkpi/internal/transport/http/middleware"
)

// oneTaskStore holds a single started task; unused methods panic through the
// nil embedded interface.
type oneTaskStore struct {
	task.StoreAPI
	t       task.Task
	replies []task.Reply
	files   []task.File
}

func (s *oneTaskStore) GetTask(_ context.Context, orgID, taskID string) (task.Task, error) {
	if orgID != s.t.OrganizationID || taskID != s.t.ID {
		return task.Task{}, task.ErrTaskNotFound
	}
	return s.t, nil
}

func (s *oneTaskStore) WithTx(_ context.Context, fn func(task.StoreAPI) error) error {
	return fn(s)
}

func (s *oneTaskStore) InsertReply(_ context.Context, reply task.Reply) (task.Reply, error) {
	reply.ID = "reply-" + string(rune('a'+len(s.replies)))
	reply.CreatedAt = time.Now()
	s.replies = append(s.replies, reply)
	return reply, nil
}

func (s *oneTaskStore) SetLatestReplyStatus(_ context.Context, _ string, status string) error {
	s.replies[len(s.replies)-1].Status = status
	return nil
}

func (s *oneTaskStore) InsertFile(_ context.Context, f task.File) (task.File, error) {
	f.ID = "file-" + string(rune('a'+len(s.files)))
	s.files = append(s.files, f)
	return f, nil
}

func (s *oneTaskStore) GetFile(_ context.Context, taskID, fileID string) (task.File, error) {
	for _, f := range s.files {
		if f.TaskID == taskID && f.ID == fileID {
			return f, nil
		}
	}
	return task.File{}, task.ErrFileNotFound
}

func (s *oneTaskStore) SetStatus(_ context.Context, _ string, update task.StatusUpdate) (task.Task, error) {
	if s.t.Status != update.From {
		return task.Task{}, task.ErrInvalidTransition
	}
	s.t.Status = update.Status
	if update.ManagerComment != nil {
		s.t.ManagerComment = *update.ManagerComment
	}
	if update.RevisionComment != nil {
		s.t.RevisionComment = *update.RevisionComment
	}
	return s.t, nil
}

var (
	assignee = auth.UserContext{UserID: "u1", OrganizationID: "o1", Role: auth.RoleEmployee}
	manager  = auth.UserContext{UserID: "m1", OrganizationID: "o1", Role: auth.RoleManager}
)

func newTestRouter(t *testing.T) (*oneTaskStore, func(user auth.UserContext, req *http.Request) *httptest.ResponseRecorder) {
	t.Helper()
	blobs, err := storage.NewLocal(t.TempDir())
	if err != nil {
		t.Fatalf("local storage: %v", err)
	}
	store := &oneTaskStore{t: task.Task{
		ID:             "t1",
		OrganizationID: "o1",
		TeamID:         "team-1",
		ManagerID:      "m1",
		AssigneeID:     "u1",
		CreatedBy:      "m1",
		Kind:           task.KindTeam,
		Title:          "Quarterly report",
		Status:         task.StatusStarted,
	}}
	h := NewHandler(task.NewService(store, blobs, nil, 1024), auth.Policy{}, nil, nil, nil, 1024)

	serve := func(user auth.UserContext, req *http.Request) *httptest.ResponseRecorder {
		r := chi.NewRouter()
		r.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
				next.ServeHTTP(w, req.WithContext(middleware.WithUser(req.Context(), user)))
			})
		})
		h.RegisterRoutes(r)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec
	}
	return store, serve
}

func multipartReplyRequest(t *testing.T, path, message string, files map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if err := mw.WriteField("message", message); err != nil {
		t.Fatalf("write field: %v", err)
	}
	for name, content := range files {
		part, err := mw.CreateFormFile("files", name)
		if err != nil {
			t.Fatalf("create part: %v", err)
		}
		if _, err := part.Write([]byte(content)); err != nil {
			t.Fatalf("write part: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestReplyDownloadApprove(t *testing.T) {
	store, serve := newTestRouter(t)

	rec := serve(assignee, multipartReplyRequest(t, "/tasks/t1/replies", "done, see attached", map[string]string{"report.txt": "numbers"}))
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected reply 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if store.t.Status != task.StatusReplied {
		t.Fatalf("expected replied, got %s", store.t.Status)
	}
	if len(store.files) != 1 || store.files[0].ReplyID == "" {
		t.Fatalf("expected one reply file, got %+v", store.files)
	}

	rec = serve(manager, httptest.NewRequest(http.MethodGet, "/tasks/t1/files/"+store.files[0].ID, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected download 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if rec.Body.String() != "numbers" {
		t.Fatalf("unexpected attachment body %q", rec.Body.String())
	}
	if !strings.Contains(rec.Header().Get("Content-Disposition"), "report.txt") {
		t.Fatalf("unexpected disposition %q", rec.Header().Get("Content-Disposition"))
	}

	rec = serve(assignee, httptest.NewRequest(http.MethodPost, "/tasks/t1/approve", nil))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected employee approve 403, got %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/tasks/t1/approve", strings.NewReader(`{"comment":"good work"}`))
	req.Header.Set("Content-Type", "application/json")
	rec = serve(manager, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected approve 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var env struct {
		Data task.Task `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.Data.Status != task.StatusApproved || env.Data.ManagerComment != "good work" {
		t.Fatalf("unexpected task %+v", env.Data)
	}
	if store.replies[0].Status != task.ReplyApproved {
		t.Fatalf("expected latest reply approved, got %q", store.replies[0].Status)
	}
}

func TestReplyRejectsBadUploads(t *testing.T) {
	tests := []struct {
		name   string
		files  map[string]string
		status int
	}{
		{"oversized file", map[string]string{"big.bin": strings.Repeat("x", 2048)}, http.StatusBadRequest},
		{"too many files", func() map[string]string {
			files := map[string]string{}
			for i := 0; i <= MaxFilesPerReply; i++ {
				files[string(rune('a'+i))+".txt"] = "x"
			}
			return files
		}(), http.StatusBadRequest},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			store, serve := newTestRouter(t)
			rec := serve(assignee, multipartReplyRequest(t, "/tasks/t1/replies", "attempt", tc.files))
			if rec.Code != tc.status {
				t.Fatalf("expected %d, got %d: %s", tc.status, rec.Code, rec.Body.String())
			}
			if len(store.replies) != 0 || store.t.Status != task.StatusStarted {
				t.Fatal("expected the task to stay untouched")
			}
		})
	}
}

func TestJSONReplyRequiresMessage(t *testing.T) {
	_, serve := newTestRouter(t)
	req := httptest.NewRequest(http.MethodPost, "/tasks/t1/replies", strings.NewReader(`{"message":""}`))
	req.Header.Set("Content-Type", "application/json")
	rec := serve(assignee, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}
