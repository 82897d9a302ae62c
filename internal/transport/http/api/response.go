package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"hrkpi/internal/domain/apperr"
)

type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type Envelope struct {
	Success   bool   `json:"success"`
	Data      any    `json:"data,omitempty"`
	Error     *Error `json:"error,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}

func WriteJSON(w http.ResponseWriter, status int, payload Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Warn("write json failed", "err", err)
	}
}

func Success(w http.ResponseWriter, data any, requestID string) {
	WriteJSON(w, http.StatusOK, Envelope{Success: true, Data: data, RequestID: requestID})
}

func Created(w http.ResponseWriter, data any, requestID string) {
	WriteJSON(w, http.StatusCreated, Envelope{Success: true, Data: data, RequestID: requestID})
}

func Fail(w http.ResponseWriter, status int, code, message, requestID string) {
	WriteJSON(w, status, Envelope{Success: false, Error: &Error{Code: code, Message: message}, RequestID: requestID})
}

func FailWithDetails(w http.ResponseWriter, status int, code, message string, details any, requestID string) {
	WriteJSON(w, status, Envelope{Success: false, Error: &Error{Code: code, Message: message, Details: details}, RequestID: requestID})
}

// StatusFor maps an error kind to its HTTP status and stable error code. A
// code set on the error wins over the kind's default.
func StatusFor(err error) (int, string) {
	var appErr *apperr.Error
	if !errors.As(err, &appErr) {
		return http.StatusInternalServerError, "internal_error"
	}
	status, code := statusForKind(appErr.Kind)
	if appErr.Code != "" {
		code = appErr.Code
	}
	return status, code
}

func statusForKind(kind apperr.Kind) (int, string) {
	switch kind {
	case apperr.KindValidation:
		return http.StatusBadRequest, "validation_error"
	case apperr.KindNotFound:
		return http.StatusNotFound, "not_found"
	case apperr.KindConflict:
		return http.StatusConflict, "conflict"
	case apperr.KindUnauthorized:
		return http.StatusUnauthorized, "unauthorized"
	case apperr.KindForbidden:
		return http.StatusForbidden, "forbidden"
	case apperr.KindTransaction:
		return http.StatusInternalServerError, "transaction_failed"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// FailError writes the envelope for a service error. Validation errors carry
// the offending field; server errors are logged and their cause is hidden.
func FailError(w http.ResponseWriter, err error, requestID string) {
	status, code := StatusFor(err)
	if status >= http.StatusInternalServerError {
		slog.Error("request failed", "code", code, "requestId", requestID, "err", err)
		message := "internal server error"
		if code == "transaction_failed" {
			var appErr *apperr.Error
			if errors.As(err, &appErr) {
				message = appErr.Message
			}
		}
		Fail(w, status, code, message, requestID)
		return
	}

	var appErr *apperr.Error
	if !errors.As(err, &appErr) {
		Fail(w, status, code, err.Error(), requestID)
		return
	}
	if appErr.Field != "" {
		FailWithDetails(w, status, code, appErr.Field+" "+appErr.Message,
			map[string]any{"fields": []map[string]string{{"field": appErr.Field, "reason": appErr.Message}}}, requestID)
		return
	}
	Fail(w, status, code, appErr.Message, requestID)
}
