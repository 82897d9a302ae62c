package notifications

import (
	"context"

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

// inboxFilter scopes every inbox query to one recipient. The unread flag
// drops notifications that were already read.
const inboxFilter = `
    WHERE organization_id = @org AND user_id = @user AND (NOT @unread OR read_at IS NULL)`

func inbox(orgID, userID string, unreadOnly bool) pgx.NamedArgs {
	return pgx.NamedArgs{"org": orgID, "user": userID, "unread": unreadOnly}
}

func (s *Store) CreateNotification(ctx context.Context, orgID, userID, ntype, title, body string) error {
	_, err := s.DB.Exec(ctx, `
    INSERT INTO notifications (organization_id, user_id, type, title, body)
    VALUES (@org, @user, @type, @title, @body)
  `, pgx.NamedArgs{"org": orgID, "user": userID, "type": ntype, "title": title, "body": body})
	return err
}

// UserEmail returns the address of an active member. Invited users have no
// inbox outside the app yet.
func (s *Store) UserEmail(ctx context.Context, orgID, userID string) (string, error) {
	var email string
	err := s.DB.QueryRow(ctx, `
    SELECT email FROM users WHERE organization_id = @org AND id = @user AND status = 'active'
  `, pgx.NamedArgs{"org": orgID, "user": userID}).Scan(&email)
	if err != nil {
		return "", apperr.FromDB(err, "user not found")
	}
	return email, nil
}

func (s *Store) ListNotifications(ctx context.Context, orgID, userID string, unreadOnly bool, limit, offset int) ([]Notification, error) {
	args := inbox(orgID, userID, unreadOnly)
	args["limit"], args["offset"] = limit, offset
	rows, err := s.DB.Query(ctx, `
    SELECT id, type, title, body, read_at, created_at
    FROM notifications`+inboxFilter+`
    ORDER BY created_at DESC, id
    LIMIT @limit OFFSET @offset
  `, args)
	if err != nil {
		return nil, err
	}
	out, err := pgx.CollectRows(rows, pgx.RowToStructByPos[Notification])
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []Notification{}
	}
	return out, nil
}

func (s *Store) CountNotifications(ctx context.Context, orgID, userID string, unreadOnly bool) (int, error) {
	var total int
	err := s.DB.QueryRow(ctx, `SELECT COUNT(1) FROM notifications`+inboxFilter, inbox(orgID, userID, unreadOnly)).Scan(&total)
	return total, err
}

// MarkRead keeps the first read timestamp. Notifications of other users are
// reported as missing.
func (s *Store) MarkRead(ctx context.Context, orgID, userID, notificationID string) error {
	args := inbox(orgID, userID, false)
	args["id"] = notificationID
	tag, err := s.DB.Exec(ctx, `
    UPDATE notifications SET read_at = COALESCE(read_at, now())`+inboxFilter+` AND id = @id
  `, args)
	if err != nil {
		return apperr.FromDB(err, ErrNotificationNotFound.Message)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotificationNotFound
	}
	return nil
}
