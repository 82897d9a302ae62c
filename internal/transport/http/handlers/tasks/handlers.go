package taskshandler

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"hrkpi/internal/domain/audit"
	"hrkpi/internal/domain/auth"
	"hrkpi/internal/domain/notifications"
	"hrkpi/internal/domain/task"
	"hrkpi/internal/platform/metrics"
	"hrkpi/internal/transport/http/api"
	"hrkpi/internal/transport/http/middleware"
	"hrkpi/internal/transport/http/shared"
)

// MaxFilesPerReply bounds the attachments accepted in one multipart request.
const MaxFilesPerReply = 10

const multipartMemory = 8 << 20

type Handler struct {
	Service   *task.Service
	Perms     middleware.PermissionStore
	Notify    *notifications.Service
	Audit     *audit.Service
	Metrics   *metrics.Collector
	MaxUpload int64
}

func NewHandler(service *task.Service, perms middleware.PermissionStore, notify *notifications.Service, auditSvc *audit.Service, collector *metrics.Collector, maxUpload int64) *Handler {
	return &Handler{Service: service, Perms: perms, Notify: notify, Audit: auditSvc, Metrics: collector, MaxUpload: maxUpload}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/tasks", func(r chi.Router) {
		write := r.With(middleware.RequirePermission(auth.PermTaskWrite, h.Perms))
		review := r.With(middleware.RequirePermission(auth.PermTaskReview, h.Perms))

		write.Get("/", h.handleList)
		write.Post("/", h.handleCreate)
		write.Get("/ongoing", h.handleOngoing)
		review.Get("/review", h.handleToReview)
		write.Get("/{taskID}", h.handleGet)
		write.Put("/{taskID}", h.handleUpdate)
		write.Delete("/{taskID}", h.handleDelete)
		write.Post("/{taskID}/start", h.handleStart)
		write.Post("/{taskID}/replies", h.handleReply)
		write.Post("/{taskID}/files", h.handleAttach)
		write.Get("/{taskID}/files/{fileID}", h.handleDownload)
		review.Post("/{taskID}/approve", h.handleApprove)
		review.Post("/{taskID}/revision", h.handleRevision)
	})
}

func actorFrom(user auth.UserContext) task.Actor {
	return task.Actor{UserID: user.UserID, OrganizationID: user.OrganizationID, Admin: user.Admin()}
}

type taskRequest struct {
	TeamID      string `json:"teamId" validate:"required,uuid"`
	AssigneeID  string `json:"assigneeId" validate:"omitempty,uuid"`
	Kind        string `json:"kind" validate:"required,oneof=personal team"`
	Title       string `json:"title" validate:"required,max=200"`
	Description string `json:"description" validate:"max=4000"`
	StartDate   string `json:"startDate" validate:"required"`
	DueDate     string `json:"dueDate" validate:"required"`
}

type reviewRequest struct {
	Comment string `json:"comment" validate:"max=4000"`
}

type replyRequest struct {
	Message string `json:"message" validate:"required,max=8000"`
}

// decodeTask decodes and validates a task payload, writing the error
// response itself when it returns false.
func decodeTask(w http.ResponseWriter, r *http.Request, requestID string) (task.Input, bool) {
	var payload taskRequest
	if !shared.DecodeJSON(w, r, &payload, requestID) {
		return task.Input{}, false
	}
	var issues shared.Issues
	start, due := issues.DateRange("startDate", payload.StartDate, "dueDate", payload.DueDate)
	if issues.Reject(w, requestID) {
		return task.Input{}, false
	}
	return task.Input{
		TeamID:      payload.TeamID,
		AssigneeID:  payload.AssigneeID,
		Kind:        task.Kind(payload.Kind),
		Title:       payload.Title,
		Description: payload.Description,
		StartDate:   start,
		DueDate:     due,
	}, true
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	page := shared.PageFrom(r)
	query := r.URL.Query()
	tasks, err := h.Service.ListTasks(r.Context(), actorFrom(user), task.Filter{
		TeamID:     query.Get("teamId"),
		AssigneeID: query.Get("assigneeId"),
		Status:     task.Status(query.Get("status")),
		Kind:       task.Kind(query.Get("kind")),
		Limit:      page.Limit,
		Offset:     page.Offset,
	})
	if err != nil {
		api.FailError(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, tasks, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleOngoing(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	tasks, err := h.Service.OngoingTasks(r.Context(), actorFrom(user))
	if err != nil {
		api.FailError(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, tasks, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleToReview(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	tasks, err := h.Service.TasksToReview(r.Context(), actorFrom(user))
	if err != nil {
		api.FailError(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, tasks, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	detail, err := h.Service.GetTask(r.Context(), actorFrom(user), chi.URLParam(r, "taskID"))
	if err != nil {
		api.FailError(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, detail, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	user, _ := middleware.GetUser(r.Context())

	in, ok := decodeTask(w, r, requestID)
	if !ok {
		return
	}
	created, err := h.Service.CreateTask(r.Context(), actorFrom(user), in)
	if err != nil {
		api.FailError(w, err, requestID)
		return
	}
	shared.RecordAudit(r, h.Audit, user, "task.create", "task", created.ID, nil, created)
	if created.AssigneeID != user.UserID {
		h.Notify.Notify(r.Context(), user.OrganizationID, created.AssigneeID, notifications.TypeTaskAssigned,
			"New task assigned", "You have been assigned \""+created.Title+"\".")
	}
	api.Created(w, created, requestID)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	user, _ := middleware.GetUser(r.Context())

	in, ok := decodeTask(w, r, requestID)
	if !ok {
		return
	}
	updated, err := h.Service.UpdateTask(r.Context(), actorFrom(user), chi.URLParam(r, "taskID"), in)
	if err != nil {
		api.FailError(w, err, requestID)
		return
	}
	shared.RecordAudit(r, h.Audit, user, "task.update", "task", updated.ID, nil, updated)
	api.Success(w, updated, requestID)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	user, _ := middleware.GetUser(r.Context())

	taskID := chi.URLParam(r, "taskID")
	if err := h.Service.DeleteTask(r.Context(), actorFrom(user), taskID); err != nil {
		api.FailError(w, err, requestID)
		return
	}
	shared.RecordAudit(r, h.Audit, user, "task.delete", "task", taskID, nil, nil)
	api.Success(w, map[string]string{"status": "deleted"}, requestID)
}

func (h *Handler) handleStart(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	user, _ := middleware.GetUser(r.Context())

	started, err := h.Service.StartTask(r.Context(), actorFrom(user), chi.URLParam(r, "taskID"))
	if err != nil {
		api.FailError(w, err, requestID)
		return
	}
	shared.RecordAudit(r, h.Audit, user, "task.start", "task", started.ID, nil, map[string]any{"status": started.Status})
	api.Success(w, started, requestID)
}

// handleReply accepts either a JSON body or a multipart form with a message
// field and up to MaxFilesPerReply "files" parts.
func (h *Handler) handleReply(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	user, _ := middleware.GetUser(r.Context())

	var (
		message string
		uploads []task.Upload
	)
	if isMultipart(r) {
		form, ok := h.parseMultipart(w, r, requestID)
		if !ok {
			return
		}
		message = form.message
		uploads = form.uploads
	} else {
		var payload replyRequest
		if !shared.DecodeJSON(w, r, &payload, requestID) {
			return
		}
		message = payload.Message
	}

	updated, reply, err := h.Service.ReplyTask(r.Context(), actorFrom(user), chi.URLParam(r, "taskID"), message, uploads)
	if err != nil {
		api.FailError(w, err, requestID)
		return
	}
	h.Metrics.Inc(metrics.TasksReplied)
	shared.RecordAudit(r, h.Audit, user, "task.reply", "task", updated.ID, nil, map[string]any{
		"replyId": reply.ID,
		"files":   len(reply.Files),
	})
	if updated.ManagerID != "" && updated.ManagerID != user.UserID {
		h.Notify.Notify(r.Context(), user.OrganizationID, updated.ManagerID, notifications.TypeTaskReplied,
			"Task awaiting review", "\""+updated.Title+"\" has a new reply.")
	}
	api.Created(w, map[string]any{"task": updated, "reply": reply}, requestID)
}

func (h *Handler) handleAttach(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	user, _ := middleware.GetUser(r.Context())

	if !isMultipart(r) {
		api.Fail(w, http.StatusUnsupportedMediaType, "unsupported_media_type", "multipart/form-data required", requestID)
		return
	}
	form, ok := h.parseMultipart(w, r, requestID)
	if !ok {
		return
	}
	if len(form.uploads) != 1 {
		shared.FailValidation(w, requestID, []shared.ValidationIssue{{Field: "files", Reason: "exactly one file is required"}})
		return
	}
	saved, err := h.Service.AttachFile(r.Context(), actorFrom(user), chi.URLParam(r, "taskID"), form.uploads[0])
	if err != nil {
		api.FailError(w, err, requestID)
		return
	}
	shared.RecordAudit(r, h.Audit, user, "task.attach", "task", saved.TaskID, nil, saved)
	api.Created(w, saved, requestID)
}

func (h *Handler) handleDownload(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	user, _ := middleware.GetUser(r.Context())

	f, data, err := h.Service.OpenAttachment(r.Context(), actorFrom(user), chi.URLParam(r, "taskID"), chi.URLParam(r, "fileID"))
	if err != nil {
		api.FailError(w, err, requestID)
		return
	}
	contentType := f.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": task.SanitizeFileName(f.FileName)}))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (h *Handler) handleApprove(w http.ResponseWriter, r *http.Request) {
	h.review(w, r, task.ActionApprove)
}

func (h *Handler) handleRevision(w http.ResponseWriter, r *http.Request) {
	h.review(w, r, task.ActionRevision)
}

func (h *Handler) review(w http.ResponseWriter, r *http.Request, action task.Action) {
	requestID := middleware.GetRequestID(r.Context())
	user, _ := middleware.GetUser(r.Context())

	var payload reviewRequest
	if r.ContentLength != 0 && !shared.DecodeJSON(w, r, &payload, requestID) {
		return
	}
	taskID := chi.URLParam(r, "taskID")

	var (
		reviewed task.Task
		err      error
	)
	ntype, title := notifications.TypeTaskApproved, "Task approved"
	if action == task.ActionApprove {
		reviewed, err = h.Service.ApproveTask(r.Context(), actorFrom(user), taskID, payload.Comment)
	} else {
		reviewed, err = h.Service.RequestRevision(r.Context(), actorFrom(user), taskID, payload.Comment)
		ntype, title = notifications.TypeTaskRevision, "Task needs revision"
	}
	if err != nil {
		api.FailError(w, err, requestID)
		return
	}
	shared.RecordAudit(r, h.Audit, user, "task."+string(action), "task", reviewed.ID, nil, map[string]any{
		"status":  reviewed.Status,
		"comment": payload.Comment,
	})
	h.Notify.Notify(r.Context(), user.OrganizationID, reviewed.AssigneeID, ntype, title, "\""+reviewed.Title+"\" was reviewed.")
	api.Success(w, reviewed, requestID)
}

func isMultipart(r *http.Request) bool {
	return strings.HasPrefix(strings.ToLower(r.Header.Get("Content-Type")), "multipart/form-data")
}

type multipartReply struct {
	message string
	uploads []task.Upload
}

// parseMultipart reads the message field and file parts. Each part is read
// one byte past MaxUpload so the service can reject oversized files.
func (h *Handler) parseMultipart(w http.ResponseWriter, r *http.Request, requestID string) (multipartReply, bool) {
	if h.MaxUpload > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.MaxUpload*MaxFilesPerReply+multipartMemory)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			api.Fail(w, http.StatusRequestEntityTooLarge, "payload_too_large", "request body too large", requestID)
			return multipartReply{}, false
		}
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid multipart payload", requestID)
		return multipartReply{}, false
	}
	defer func() {
		if err := r.MultipartForm.RemoveAll(); err != nil {
			slog.Warn("multipart cleanup failed", "err", err, "requestId", requestID)
		}
	}()

	out := multipartReply{message: r.FormValue("message")}
	headers := r.MultipartForm.File["files"]
	if len(headers) > MaxFilesPerReply {
		shared.FailValidation(w, requestID, []shared.ValidationIssue{{Field: "files", Reason: fmt.Sprintf("at most %d files are allowed", MaxFilesPerReply)}})
		return multipartReply{}, false
	}
	for _, fh := range headers {
		upload, err := h.readPart(fh)
		if err != nil {
			api.Fail(w, http.StatusBadRequest, "invalid_payload", "failed to read uploaded file", requestID)
			return multipartReply{}, false
		}
		out.uploads = append(out.uploads, upload)
	}
	return out, true
}

func (h *Handler) readPart(fh *multipart.FileHeader) (task.Upload, error) {
	f, err := fh.Open()
	if err != nil {
		return task.Upload{}, err
	}
	defer f.Close()

	var reader io.Reader = f
	if h.MaxUpload > 0 {
		reader = io.LimitReader(f, h.MaxUpload+1)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return task.Upload{}, err
	}
	return task.Upload{
		FileName:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}
