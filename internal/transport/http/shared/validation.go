package shared

import (
	"net/http"
	"sort"
	"time"

	"hrkpi/internal/transport/http/api"
)

const dateLayout = "2006-01-02"

type ValidationIssue struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// Issues collects the problems the validate tags cannot express, such as
// dates that only make sense relative to each other.
type Issues []ValidationIssue

func (is *Issues) Add(field, reason string) {
	*is = append(*is, ValidationIssue{Field: field, Reason: reason})
}

func parseDate(raw string) (time.Time, error) {
	if t, err := time.Parse(dateLayout, raw); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, raw)
}

// DateRange parses a start/due pair. The due date must fall strictly after
// the start date. Unparseable values leave the zero time.
func (is *Issues) DateRange(startField, startRaw, dueField, dueRaw string) (start, due time.Time) {
	var startErr, dueErr error
	if start, startErr = parseDate(startRaw); startErr != nil {
		is.Add(startField, "must be a valid date in YYYY-MM-DD format")
	}
	if due, dueErr = parseDate(dueRaw); dueErr != nil {
		is.Add(dueField, "must be a valid date in YYYY-MM-DD format")
	}
	if startErr == nil && dueErr == nil && !start.Before(due) {
		is.Add(dueField, "must be after "+startField)
	}
	return start, due
}

// Reject writes a validation_error response when issues were collected.
func (is Issues) Reject(w http.ResponseWriter, requestID string) bool {
	if len(is) == 0 {
		return false
	}
	FailValidation(w, requestID, is)
	return true
}

func FailValidation(w http.ResponseWriter, requestID string, issues []ValidationIssue) {
	sorted := make([]ValidationIssue, len(issues))
	copy(sorted, issues)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Field < sorted[j].Field })
	api.FailWithDetails(w, http.StatusBadRequest, "validation_error", "payload validation failed",
		map[string]any{"fields": sorted}, requestID)
}
