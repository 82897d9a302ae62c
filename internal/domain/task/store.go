package task

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"hrkpi/internal/domain/apperr"
	"hrkpi/internal/platform/querier"
)

type Store struct {
	DB querier.Querier
}

func NewStore(db querier.Querier) *Store {
	return &Store{DB: db}
}

func (s *Store) WithTx(ctx context.Context, fn func(StoreAPI) error) error {
	return querier.InTx(ctx, s.DB, func(tx pgx.Tx) error {
		return fn(&Store{DB: tx})
	})
}

const taskColumns = `
    t.id, t.organization_id, t.team_id, tm.name, tm.manager_id, t.assignee_id, COALESCE(u.name, ''),
    t.created_by, t.kind, t.title, t.description, t.status, t.start_date, t.due_date, t.started_at,
    t.manager_comment, t.revision_comment,
    COALESCE((SELECT r.status FROM task_replies r WHERE r.task_id = t.id ORDER BY r.created_at DESC, r.id DESC LIMIT 1), 'Not Started'),
    EXISTS (SELECT 1 FROM task_files f WHERE f.task_id = t.id),
    t.created_at, t.updated_at
  FROM tasks t
  JOIN teams tm ON tm.id = t.team_id
  LEFT JOIN users u ON u.id = t.assignee_id`

func scanTask(row pgx.Row) (Task, error) {
	var t Task
	var kind, status string
	err := row.Scan(&t.ID, &t.OrganizationID, &t.TeamID, &t.TeamName, &t.ManagerID, &t.AssigneeID, &t.AssigneeName,
		&t.CreatedBy, &kind, &t.Title, &t.Description, &status, &t.StartDate, &t.DueDate, &t.StartedAt,
		&t.ManagerComment, &t.RevisionComment, &t.LastReplyStatus, &t.HasFiles, &t.CreatedAt, &t.UpdatedAt)
	t.Kind = Kind(kind)
	t.Status = Status(status)
	return t, err
}

func (s *Store) TeamInOrganization(ctx context.Context, orgID, teamID string) (TeamRef, error) {
	var team TeamRef
	err := s.DB.QueryRow(ctx, `
    SELECT id, organization_id, name, manager_id FROM teams WHERE organization_id = $1 AND id = $2
  `, orgID, teamID).Scan(&team.ID, &team.OrganizationID, &team.Name, &team.ManagerID)
	if err != nil {
		return TeamRef{}, apperr.FromDB(err, ErrTeamNotFound.Message)
	}
	return team, nil
}

func (s *Store) IsActiveMember(ctx context.Context, teamID, userID string) (bool, error) {
	var ok bool
	if err := s.DB.QueryRow(ctx, `
    SELECT EXISTS (SELECT 1 FROM team_members WHERE team_id = $1 AND user_id = $2 AND status = 'active')
  `, teamID, userID).Scan(&ok); err != nil {
		return false, err
	}
	return ok, nil
}

func (s *Store) CreateTask(ctx context.Context, t Task) (Task, error) {
	var id string
	if err := s.DB.QueryRow(ctx, `
    INSERT INTO tasks (organization_id, team_id, assignee_id, created_by, kind, title, description, status, start_date, due_date)
    VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
    RETURNING id
  `, t.OrganizationID, t.TeamID, t.AssigneeID, t.CreatedBy, string(t.Kind), t.Title, t.Description, string(t.Status),
		t.StartDate, t.DueDate).Scan(&id); err != nil {
		return Task{}, apperr.FromDB(err, ErrTeamNotFound.Message)
	}
	return s.GetTask(ctx, t.OrganizationID, id)
}

func (s *Store) GetTask(ctx context.Context, orgID, taskID string) (Task, error) {
	t, err := scanTask(s.DB.QueryRow(ctx, "SELECT"+taskColumns+" WHERE t.organization_id = $1 AND t.id = $2", orgID, taskID))
	if err != nil {
		return Task{}, apperr.FromDB(err, ErrTaskNotFound.Message)
	}
	return t, nil
}

func (s *Store) UpdateTask(ctx context.Context, t Task) (Task, error) {
	tag, err := s.DB.Exec(ctx, `
    UPDATE tasks
    SET assignee_id = $1, title = $2, description = $3, start_date = $4, due_date = $5, updated_at = now()
    WHERE organization_id = $6 AND id = $7
  `, t.AssigneeID, t.Title, t.Description, t.StartDate, t.DueDate, t.OrganizationID, t.ID)
	if err != nil {
		return Task{}, err
	}
	if tag.RowsAffected() == 0 {
		return Task{}, ErrTaskNotFound
	}
	return s.GetTask(ctx, t.OrganizationID, t.ID)
}

func (s *Store) DeleteTask(ctx context.Context, orgID, taskID string) error {
	tag, err := s.DB.Exec(ctx, "DELETE FROM tasks WHERE organization_id = $1 AND id = $2", orgID, taskID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrTaskNotFound
	}
	return nil
}

func (s *Store) ListTasks(ctx context.Context, filter Filter) ([]Task, error) {
	query := "SELECT" + taskColumns + " WHERE t.organization_id = $1"
	args := []any{filter.OrganizationID}
	if filter.TeamID != "" {
		query += fmt.Sprintf(" AND t.team_id = $%d", len(args)+1)
		args = append(args, filter.TeamID)
	}
	if filter.AssigneeID != "" {
		query += fmt.Sprintf(" AND t.assignee_id = $%d", len(args)+1)
		args = append(args, filter.AssigneeID)
	}
	if filter.ManagerID != "" {
		query += fmt.Sprintf(" AND tm.manager_id = $%d", len(args)+1)
		args = append(args, filter.ManagerID)
	}
	if filter.Status != "" {
		query += fmt.Sprintf(" AND t.status = $%d", len(args)+1)
		args = append(args, string(filter.Status))
	}
	if filter.Kind != "" {
		query += fmt.Sprintf(" AND t.kind = $%d", len(args)+1)
		args = append(args, string(filter.Kind))
	}
	if filter.ActiveAt != nil {
		query += fmt.Sprintf(" AND t.start_date <= $%d AND t.due_date > $%d AND t.status <> 'approved'", len(args)+1, len(args)+1)
		args = append(args, *filter.ActiveAt)
	}
	query += " ORDER BY t.due_date, t.created_at"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
		args = append(args, filter.Limit, filter.Offset)
	}

	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// SetStatus fails with ErrInvalidTransition when another request changed the
// status after the caller read it.
func (s *Store) SetStatus(ctx context.Context, taskID string, update StatusUpdate) (Task, error) {
	var orgID string
	err := s.DB.QueryRow(ctx, `
    UPDATE tasks
    SET status = $1,
        started_at = COALESCE($2, started_at),
        manager_comment = COALESCE($3, manager_comment),
        revision_comment = COALESCE($4, revision_comment),
        updated_at = now()
    WHERE id = $5 AND status = $6
    RETURNING organization_id
  `, string(update.Status), update.StartedAt, update.ManagerComment, update.RevisionComment, taskID, string(update.From)).Scan(&orgID)
	if errors.Is(err, pgx.ErrNoRows) {
		return Task{}, ErrInvalidTransition
	}
	if err != nil {
		return Task{}, apperr.FromDB(err, ErrTaskNotFound.Message)
	}
	return s.GetTask(ctx, orgID, taskID)
}

func (s *Store) InsertReply(ctx context.Context, reply Reply) (Reply, error) {
	out := reply
	err := s.DB.QueryRow(ctx, `
    INSERT INTO task_replies (task_id, author_id, message, status)
    VALUES ($1,$2,$3,$4)
    RETURNING id, created_at
  `, reply.TaskID, reply.AuthorID, reply.Message, reply.Status).Scan(&out.ID, &out.CreatedAt)
	if err != nil {
		return Reply{}, apperr.FromDB(err, ErrTaskNotFound.Message)
	}
	return out, nil
}

func (s *Store) SetLatestReplyStatus(ctx context.Context, taskID, status string) error {
	_, err := s.DB.Exec(ctx, `
    UPDATE task_replies SET status = $1
    WHERE id = (SELECT id FROM task_replies WHERE task_id = $2 ORDER BY created_at DESC, id DESC LIMIT 1)
  `, status, taskID)
	return err
}

func (s *Store) ListReplies(ctx context.Context, taskID string) ([]Reply, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT r.id, r.task_id, r.author_id, COALESCE(u.name, ''), r.message, r.status, r.created_at
    FROM task_replies r
    LEFT JOIN users u ON u.id = r.author_id
    WHERE r.task_id = $1
    ORDER BY r.created_at, r.id
  `, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Reply
	for rows.Next() {
		var r Reply
		if err := rows.Scan(&r.ID, &r.TaskID, &r.AuthorID, &r.AuthorName, &r.Message, &r.Status, &r.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

const fileColumns = `id, task_id, COALESCE(reply_id::text, ''), file_name, storage_key, content_type, size_bytes, encrypted, uploaded_by, created_at`

func scanFile(row pgx.Row) (File, error) {
	var f File
	err := row.Scan(&f.ID, &f.TaskID, &f.ReplyID, &f.FileName, &f.StorageKey, &f.ContentType, &f.SizeBytes, &f.Encrypted, &f.UploadedBy, &f.CreatedAt)
	return f, err
}

func (s *Store) InsertFile(ctx context.Context, file File) (File, error) {
	out, err := scanFile(s.DB.QueryRow(ctx, `
    INSERT INTO task_files (task_id, reply_id, file_name, storage_key, content_type, size_bytes, encrypted, uploaded_by)
    VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
    RETURNING `+fileColumns,
		file.TaskID, nullIfEmpty(file.ReplyID), file.FileName, file.StorageKey, file.ContentType, file.SizeBytes, file.Encrypted, file.UploadedBy))
	if err != nil {
		return File{}, apperr.FromDB(err, ErrTaskNotFound.Message)
	}
	return out, nil
}

func (s *Store) GetFile(ctx context.Context, taskID, fileID string) (File, error) {
	f, err := scanFile(s.DB.QueryRow(ctx, "SELECT "+fileColumns+" FROM task_files WHERE task_id = $1 AND id = $2", taskID, fileID))
	if err != nil {
		return File{}, apperr.FromDB(err, ErrFileNotFound.Message)
	}
	return f, nil
}

func (s *Store) ListFiles(ctx context.Context, taskID string) ([]File, error) {
	rows, err := s.DB.Query(ctx, "SELECT "+fileColumns+" FROM task_files WHERE task_id = $1 ORDER BY created_at, id", taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []File
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func nullIfEmpty(value string) any {
	if value == "" {
		return nil
	}
	return value
}
