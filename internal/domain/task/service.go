package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"hrkpi/internal/domain/apperr"
	"hrkpi/internal/platform/storage"
)

// Sealer encrypts attachment bodies at rest. Seal reports whether the body
// was actually encrypted so Open can be told later.
type Sealer interface {
	Seal(plain []byte) ([]byte, bool, error)
	Open(data []byte, encrypted bool) ([]byte, error)
}

type Service struct {
	store     StoreAPI
	blobs     storage.Blob
	sealer    Sealer
	maxUpload int64
	now       func() time.Time
	newID     func() uuid.UUID
}

func NewService(store StoreAPI, blobs storage.Blob, sealer Sealer, maxUpload int64) *Service {
	return &Service{store: store, blobs: blobs, sealer: sealer, maxUpload: maxUpload, now: time.Now, newID: uuid.New}
}

func validateInput(in *Input) error {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.TeamID = strings.TrimSpace(in.TeamID)
	in.AssigneeID = strings.TrimSpace(in.AssigneeID)
	if in.Title == "" {
		return apperr.Validation("title", "is required")
	}
	if in.TeamID == "" {
		return apperr.Validation("teamId", "is required")
	}
	if in.StartDate.IsZero() {
		return apperr.Validation("startDate", "is required")
	}
	if in.DueDate.IsZero() {
		return apperr.Validation("dueDate", "is required")
	}
	if !in.StartDate.Before(in.DueDate) {
		return apperr.Validation("dueDate", "must be after startDate")
	}
	return nil
}

// CreateTask adds a personal task for the actor or, for the team's manager, a
// team task assigned to an active member.
func (s *Service) CreateTask(ctx context.Context, actor Actor, in Input) (Task, error) {
	if err := validateInput(&in); err != nil {
		return Task{}, err
	}
	team, err := s.store.TeamInOrganization(ctx, actor.OrganizationID, in.TeamID)
	if err != nil {
		return Task{}, err
	}
	switch in.Kind {
	case KindPersonal:
		in.AssigneeID = actor.UserID
	case KindTeam:
		if !actor.Admin && team.ManagerID != actor.UserID {
			return Task{}, ErrNotTeamManager
		}
		if in.AssigneeID == "" {
			return Task{}, apperr.Validation("assigneeId", "is required")
		}
	default:
		return Task{}, ErrInvalidKind
	}
	if err := s.requireActiveMember(ctx, team.ID, in.AssigneeID); err != nil {
		return Task{}, err
	}

	return s.store.CreateTask(ctx, Task{
		OrganizationID: actor.OrganizationID,
		TeamID:         team.ID,
		AssigneeID:     in.AssigneeID,
		CreatedBy:      actor.UserID,
		Kind:           in.Kind,
		Title:          in.Title,
		Description:    in.Description,
		Status:         StatusCreated,
		StartDate:      in.StartDate,
		DueDate:        in.DueDate,
	})
}

func (s *Service) requireActiveMember(ctx context.Context, teamID, userID string) error {
	ok, err := s.store.IsActiveMember(ctx, teamID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotTeamMember
	}
	return nil
}

// editable loads a task the actor created that has not been started yet.
func (s *Service) editable(ctx context.Context, actor Actor, taskID string) (Task, error) {
	t, err := s.store.GetTask(ctx, actor.OrganizationID, strings.TrimSpace(taskID))
	if err != nil {
		return Task{}, err
	}
	if t.CreatedBy != actor.UserID {
		return Task{}, ErrNotCreator
	}
	if t.Status != StatusCreated {
		return Task{}, ErrNotEditable
	}
	return t, nil
}

func (s *Service) UpdateTask(ctx context.Context, actor Actor, taskID string, in Input) (Task, error) {
	t, err := s.editable(ctx, actor, taskID)
	if err != nil {
		return Task{}, err
	}
	in.TeamID = t.TeamID
	if err := validateInput(&in); err != nil {
		return Task{}, err
	}
	if t.Kind == KindTeam && in.AssigneeID != "" && in.AssigneeID != t.AssigneeID {
		if err := s.requireActiveMember(ctx, t.TeamID, in.AssigneeID); err != nil {
			return Task{}, err
		}
		t.AssigneeID = in.AssigneeID
	}
	t.Title = in.Title
	t.Description = in.Description
	t.StartDate = in.StartDate
	t.DueDate = in.DueDate
	return s.store.UpdateTask(ctx, t)
}

func (s *Service) DeleteTask(ctx context.Context, actor Actor, taskID string) error {
	t, err := s.editable(ctx, actor, taskID)
	if err != nil {
		return err
	}
	return s.store.DeleteTask(ctx, actor.OrganizationID, t.ID)
}

// visible loads a task the actor may see: its assignee, its creator, the
// team's manager or an admin.
func (s *Service) visible(ctx context.Context, actor Actor, taskID string) (Task, error) {
	t, err := s.store.GetTask(ctx, actor.OrganizationID, strings.TrimSpace(taskID))
	if err != nil {
		return Task{}, err
	}
	if actor.Admin || t.AssigneeID == actor.UserID || t.CreatedBy == actor.UserID || t.ManagerID == actor.UserID {
		return t, nil
	}
	return Task{}, ErrTaskNotFound
}

func (s *Service) GetTask(ctx context.Context, actor Actor, taskID string) (Detail, error) {
	t, err := s.visible(ctx, actor, taskID)
	if err != nil {
		return Detail{}, err
	}
	replies, err := s.store.ListReplies(ctx, t.ID)
	if err != nil {
		return Detail{}, err
	}
	files, err := s.store.ListFiles(ctx, t.ID)
	if err != nil {
		return Detail{}, err
	}

	byReply := map[string][]File{}
	var loose []File
	for _, f := range files {
		if f.ReplyID == "" {
			loose = append(loose, f)
			continue
		}
		byReply[f.ReplyID] = append(byReply[f.ReplyID], f)
	}
	for i := range replies {
		replies[i].Files = byReply[replies[i].ID]
	}
	t.LastReplyStatus = LastReplyStatus(replies)
	if replies == nil {
		replies = []Reply{}
	}
	if loose == nil {
		loose = []File{}
	}
	return Detail{Task: t, Replies: replies, Files: loose}, nil
}

// ListTasks returns tasks in the organization. Admins see everything, team
// managers see their team, everyone else only their own tasks.
func (s *Service) ListTasks(ctx context.Context, actor Actor, filter Filter) ([]Task, error) {
	filter.OrganizationID = actor.OrganizationID
	if !actor.Admin {
		manages := false
		if filter.TeamID != "" {
			team, err := s.store.TeamInOrganization(ctx, actor.OrganizationID, filter.TeamID)
			if err != nil {
				return nil, err
			}
			manages = team.ManagerID == actor.UserID
		}
		if !manages {
			filter.AssigneeID = actor.UserID
		}
	}
	return s.nonNil(s.store.ListTasks(ctx, filter))
}

// OngoingTasks lists the actor's tasks whose window contains now and that
// are not approved yet.
func (s *Service) OngoingTasks(ctx context.Context, actor Actor) ([]Task, error) {
	now := s.now().UTC()
	return s.nonNil(s.store.ListTasks(ctx, Filter{
		OrganizationID: actor.OrganizationID,
		AssigneeID:     actor.UserID,
		ActiveAt:       &now,
	}))
}

// TasksToReview lists replied tasks of the teams the actor manages.
func (s *Service) TasksToReview(ctx context.Context, actor Actor) ([]Task, error) {
	return s.nonNil(s.store.ListTasks(ctx, Filter{
		OrganizationID: actor.OrganizationID,
		ManagerID:      actor.UserID,
		Status:         StatusReplied,
	}))
}

func (s *Service) nonNil(tasks []Task, err error) ([]Task, error) {
	if err != nil {
		return nil, err
	}
	if tasks == nil {
		tasks = []Task{}
	}
	return tasks, nil
}

func (s *Service) StartTask(ctx context.Context, actor Actor, taskID string) (Task, error) {
	t, err := s.visible(ctx, actor, taskID)
	if err != nil {
		return Task{}, err
	}
	if t.AssigneeID != actor.UserID {
		return Task{}, ErrNotAssignee
	}
	next, err := Next(t.Status, ActionStart)
	if err != nil {
		return Task{}, err
	}
	startedAt := s.now().UTC()
	return s.store.SetStatus(ctx, t.ID, StatusUpdate{From: t.Status, Status: next, StartedAt: &startedAt})
}

// ReplyTask appends a reply from the assignee, stores its attachments and
// moves the task to replied. Blobs written before a failed commit are removed.
func (s *Service) ReplyTask(ctx context.Context, actor Actor, taskID, message string, uploads []Upload) (Task, Reply, error) {
	t, err := s.visible(ctx, actor, taskID)
	if err != nil {
		return Task{}, Reply{}, err
	}
	if t.AssigneeID != actor.UserID {
		return Task{}, Reply{}, ErrNotAssignee
	}
	message = strings.TrimSpace(message)
	if message == "" {
		return Task{}, Reply{}, ErrEmptyReply
	}
	next, err := Next(t.Status, ActionReply)
	if err != nil {
		return Task{}, Reply{}, err
	}

	pending, err := s.putBlobs(ctx, t.ID, actor.UserID, uploads)
	if err != nil {
		return Task{}, Reply{}, err
	}

	var (
		updated Task
		reply   Reply
	)
	err = s.store.WithTx(ctx, func(tx StoreAPI) error {
		var err error
		reply, err = tx.InsertReply(ctx, Reply{TaskID: t.ID, AuthorID: actor.UserID, Message: message, Status: ReplyNeedReview})
		if err != nil {
			return fmt.Errorf("insert reply: %w", err)
		}
		for _, f := range pending {
			f.ReplyID = reply.ID
			saved, err := tx.InsertFile(ctx, f)
			if err != nil {
				return fmt.Errorf("insert reply file: %w", err)
			}
			reply.Files = append(reply.Files, saved)
		}
		updated, err = tx.SetStatus(ctx, t.ID, StatusUpdate{From: t.Status, Status: next})
		if err != nil {
			return fmt.Errorf("update task status: %w", err)
		}
		return nil
	})
	if err != nil {
		s.dropBlobs(ctx, pending)
		if _, ok := apperr.KindOf(err); ok {
			return Task{}, Reply{}, err
		}
		return Task{}, Reply{}, apperr.Transaction("reply to task", err)
	}
	return updated, reply, nil
}

func (s *Service) ApproveTask(ctx context.Context, actor Actor, taskID, comment string) (Task, error) {
	comment = strings.TrimSpace(comment)
	return s.review(ctx, actor, taskID, ActionApprove, StatusUpdate{ManagerComment: &comment})
}

func (s *Service) RequestRevision(ctx context.Context, actor Actor, taskID, comment string) (Task, error) {
	comment = strings.TrimSpace(comment)
	if comment == "" {
		return Task{}, apperr.Validation("comment", "is required")
	}
	return s.review(ctx, actor, taskID, ActionRevision, StatusUpdate{RevisionComment: &comment})
}

func (s *Service) review(ctx context.Context, actor Actor, taskID string, action Action, update StatusUpdate) (Task, error) {
	t, err := s.store.GetTask(ctx, actor.OrganizationID, strings.TrimSpace(taskID))
	if err != nil {
		return Task{}, err
	}
	if !actor.Admin && t.ManagerID != actor.UserID {
		return Task{}, ErrNotTeamManager
	}
	next, err := Next(t.Status, action)
	if err != nil {
		return Task{}, err
	}
	update.From, update.Status = t.Status, next

	var out Task
	err = s.store.WithTx(ctx, func(tx StoreAPI) error {
		if err := tx.SetLatestReplyStatus(ctx, t.ID, replyStatusFor(action)); err != nil {
			return fmt.Errorf("update reply status: %w", err)
		}
		var err error
		out, err = tx.SetStatus(ctx, t.ID, update)
		return err
	})
	if err != nil {
		if _, ok := apperr.KindOf(err); ok {
			return Task{}, err
		}
		return Task{}, apperr.Transaction("review task", err)
	}
	return out, nil
}

// AttachFile stores a file on the task itself, outside any reply.
func (s *Service) AttachFile(ctx context.Context, actor Actor, taskID string, upload Upload) (File, error) {
	t, err := s.visible(ctx, actor, taskID)
	if err != nil {
		return File{}, err
	}
	if t.Status == StatusApproved {
		return File{}, ErrInvalidTransition
	}
	pending, err := s.putBlobs(ctx, t.ID, actor.UserID, []Upload{upload})
	if err != nil {
		return File{}, err
	}
	saved, err := s.store.InsertFile(ctx, pending[0])
	if err != nil {
		s.dropBlobs(ctx, pending)
		return File{}, err
	}
	return saved, nil
}

// OpenAttachment returns a file's metadata and decrypted body.
func (s *Service) OpenAttachment(ctx context.Context, actor Actor, taskID, fileID string) (File, []byte, error) {
	t, err := s.visible(ctx, actor, taskID)
	if err != nil {
		return File{}, nil, err
	}
	f, err := s.store.GetFile(ctx, t.ID, strings.TrimSpace(fileID))
	if err != nil {
		return File{}, nil, err
	}
	data, err := s.blobs.Get(ctx, f.StorageKey)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return File{}, nil, ErrFileNotFound
		}
		return File{}, nil, fmt.Errorf("read attachment: %w", err)
	}
	if s.sealer != nil {
		data, err = s.sealer.Open(data, f.Encrypted)
		if err != nil {
			return File{}, nil, fmt.Errorf("decrypt attachment: %w", err)
		}
	}
	return f, data, nil
}

// putBlobs validates and writes uploads, returning unsaved file rows.
func (s *Service) putBlobs(ctx context.Context, taskID, userID string, uploads []Upload) ([]File, error) {
	for _, u := range uploads {
		if len(u.Data) == 0 {
			return nil, apperr.Validation("file", "is empty")
		}
		if s.maxUpload > 0 && int64(len(u.Data)) > s.maxUpload {
			return nil, ErrFileTooLarge
		}
	}

	var out []File
	for _, u := range uploads {
		body, encrypted := u.Data, false
		if s.sealer != nil {
			var err error
			body, encrypted, err = s.sealer.Seal(u.Data)
			if err != nil {
				s.dropBlobs(ctx, out)
				return nil, fmt.Errorf("encrypt attachment: %w", err)
			}
		}
		contentType := strings.TrimSpace(u.ContentType)
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		name := strings.TrimSpace(u.FileName)
		if name == "" {
			name = "file"
		}
		key := StorageKey(taskID, s.newID(), name)
		if err := s.blobs.Put(ctx, key, contentType, body); err != nil {
			s.dropBlobs(ctx, out)
			return nil, fmt.Errorf("store attachment: %w", err)
		}
		out = append(out, File{
			TaskID:      taskID,
			FileName:    name,
			StorageKey:  key,
			ContentType: contentType,
			SizeBytes:   int64(len(u.Data)),
			Encrypted:   encrypted,
			UploadedBy:  userID,
		})
	}
	return out, nil
}

func (s *Service) dropBlobs(ctx context.Context, files []File) {
	for _, f := range files {
		if err := s.blobs.Delete(ctx, f.StorageKey); err != nil {
			slog.Warn("attachment cleanup failed", "key", f.StorageKey, "err", err)
		}
	}
}
