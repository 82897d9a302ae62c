// Package audit records one event per mutation and lists them for owner and
// hrd users.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"hrkpi/internal/platform/querier"
)

type Event struct {
	ID         string          `json:"id"`
	ActorID    string          `json:"actorId"`
	Action     string          `json:"action"`
	EntityType string          `json:"entityType"`
	EntityID   string          `json:"entityId"`
	RequestID  string          `json:"requestId"`
	IP         string          `json:"ip"`
	CreatedAt  time.Time       `json:"createdAt"`
	Before     json.RawMessage `json:"before,omitempty"`
	After      json.RawMessage `json:"after,omitempty"`
}

type Filter struct {
	Action     string
	EntityType string
	EntityID   string
	ActorUser  string
}

// Entry is one mutation to record.
type Entry struct {
	OrganizationID string
	ActorID        string
	Action         string
	EntityType     string
	EntityID       string
	RequestID      string
	IP             string
	Before         any
	After          any
}

type Service struct {
	DB querier.Querier
}

func New(db querier.Querier) *Service {
	return &Service{DB: db}
}

// snapshot encodes a before/after value; nil stays SQL NULL.
func snapshot(v any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}

func (s *Service) Record(ctx context.Context, e Entry) error {
	before, err := snapshot(e.Before)
	if err != nil {
		return fmt.Errorf("encode before snapshot: %w", err)
	}
	after, err := snapshot(e.After)
	if err != nil {
		return fmt.Errorf("encode after snapshot: %w", err)
	}
	var actor *string
	if e.ActorID != "" {
		actor = &e.ActorID
	}
	_, err = s.DB.Exec(ctx, `
    INSERT INTO audit_events (organization_id, actor_user_id, action, entity_type, entity_id, before_json, after_json, request_id, ip)
    VALUES (@org, @actor, @action, @entityType, @entityID, @before, @after, @requestID, @ip)
  `, pgx.NamedArgs{
		"org":        e.OrganizationID,
		"actor":      actor,
		"action":     e.Action,
		"entityType": e.EntityType,
		"entityID":   e.EntityID,
		"before":     before,
		"after":      after,
		"requestID":  e.RequestID,
		"ip":         e.IP,
	})
	return err
}

// where renders the filter as a WHERE clause over named arguments.
func where(orgID string, filter Filter) (string, pgx.NamedArgs) {
	conds := []string{"organization_id = @org"}
	args := pgx.NamedArgs{"org": orgID}
	for _, f := range []struct {
		column, name, value string
	}{
		{"action", "action", filter.Action},
		{"entity_type", "entityType", filter.EntityType},
		{"entity_id", "entityID", filter.EntityID},
		{"actor_user_id::text", "actor", filter.ActorUser},
	} {
		if f.value != "" {
			conds = append(conds, f.column+" = @"+f.name)
			args[f.name] = f.value
		}
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (s *Service) Count(ctx context.Context, orgID string, filter Filter) (int, error) {
	clause, args := where(orgID, filter)
	var total int
	err := s.DB.QueryRow(ctx, "SELECT count(*) FROM audit_events"+clause, args).Scan(&total)
	return total, err
}

// List returns events newest first. Snapshots are only loaded when
// includeDetails is set.
func (s *Service) List(ctx context.Context, orgID string, filter Filter, includeDetails bool, limit, offset int) ([]Event, error) {
	cols := "id, COALESCE(actor_user_id::text, ''), action, entity_type, entity_id, request_id, ip, created_at"
	if includeDetails {
		cols += ", before_json, after_json"
	}
	clause, args := where(orgID, filter)
	args["limit"], args["offset"] = limit, offset
	rows, err := s.DB.Query(ctx, "SELECT "+cols+" FROM audit_events"+clause+" ORDER BY created_at DESC LIMIT @limit OFFSET @offset", args)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Event, error) {
		var evt Event
		dest := []any{&evt.ID, &evt.ActorID, &evt.Action, &evt.EntityType, &evt.EntityID, &evt.RequestID, &evt.IP, &evt.CreatedAt}
		if includeDetails {
			dest = append(dest, &evt.Before, &evt.After)
		}
		err := row.Scan(dest...)
		return evt, err
	})
}
