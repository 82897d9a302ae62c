// Package notifications stores in-app notifications and mirrors them to
// email when delivery is enabled.
package notifications

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"hrkpi/internal/domain/apperr"
)

var ErrNotificationNotFound = apperr.NotFound("notification not found")

type Notification struct {
	ID        string     `json:"id"`
	Type      string     `json:"type"`
	Title     string     `json:"title"`
	Body      string     `json:"body"`
	ReadAt    *time.Time `json:"readAt"`
	CreatedAt time.Time  `json:"createdAt"`
}

type Mailer interface {
	Send(ctx context.Context, from, to, subject, body string) error
}

type Service struct {
	store        StoreAPI
	Mailer       Mailer
	EmailEnabled bool
	DefaultFrom  string
}

func New(store StoreAPI, mailer Mailer, emailEnabled bool, from string) *Service {
	if strings.TrimSpace(from) == "" {
		from = "no-reply@example.com"
	}
	return &Service{store: store, Mailer: mailer, EmailEnabled: emailEnabled, DefaultFrom: from}
}

// Create stores the notification and emails the recipient. Email failures are
// logged and do not fail the call.
func (s *Service) Create(ctx context.Context, orgID, userID, ntype, title, body string) error {
	if userID == "" {
		return nil
	}
	if err := s.store.CreateNotification(ctx, orgID, userID, ntype, title, body); err != nil {
		return err
	}

	if s.Mailer == nil || !s.EmailEnabled {
		return nil
	}
	email, err := s.store.UserEmail(ctx, orgID, userID)
	if err != nil {
		slog.Warn("notification email lookup failed", "err", err)
		return nil
	}
	if email == "" {
		return nil
	}
	if err := s.Mailer.Send(ctx, s.DefaultFrom, email, title, body); err != nil {
		slog.Warn("notification email send failed", "err", err)
	}
	return nil
}

// Notify is Create for callers that must not fail on notification errors.
func (s *Service) Notify(ctx context.Context, orgID, userID, ntype, title, body string) {
	if s == nil {
		return
	}
	if err := s.Create(ctx, orgID, userID, ntype, title, body); err != nil {
		slog.Warn("notification create failed", "type", ntype, "err", err)
	}
}

func (s *Service) List(ctx context.Context, orgID, userID string, unreadOnly bool, limit, offset int) ([]Notification, error) {
	return s.store.ListNotifications(ctx, orgID, userID, unreadOnly, limit, offset)
}

func (s *Service) Count(ctx context.Context, orgID, userID string, unreadOnly bool) (int, error) {
	return s.store.CountNotifications(ctx, orgID, userID, unreadOnly)
}

func (s *Service) MarkRead(ctx context.Context, orgID, userID, notificationID string) error {
	return s.store.MarkRead(ctx, orgID, userID, strings.TrimSpace(notificationID))
}
