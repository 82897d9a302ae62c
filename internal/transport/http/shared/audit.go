package shared

import (
	"log/slog"
	"net/http"

	"hrkpi/internal/domain/audit"
	"hrkpi/internal/domain/auth"
	"hrkpi/internal/platform/requestctx"
)

// RecordAudit appends an audit event for a completed mutation. Failures are
// logged and never reach the caller.
func RecordAudit(r *http.Request, svc *audit.Service, user auth.UserContext, action, entityType, entityID string, before, after any) {
	if svc == nil {
		return
	}
	err := svc.Record(r.Context(), audit.Entry{
		OrganizationID: user.OrganizationID,
		ActorID:        user.UserID,
		Action:         action,
		EntityType:     entityType,
		EntityID:       entityID,
		RequestID:      requestctx.GetRequestID(r.Context()),
		IP:             ClientIP(r),
		Before:         before,
		After:          after,
	})
	if err != nil {
		slog.Warn("audit "+action+" failed", "err", err, "entityId", entityID)
	}
}
