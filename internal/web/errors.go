package web

// errors.go turns errors into JSON responses.
//
// The technical error is logged with the request id; the client receives the
// Turkish message, suggested action and support code from core.MapError.

import (
	"context"
	"errors"
	"net/http"

	"github.com/JonMunkholm/examimport/internal/core"
	"github.com/JonMunkholm/examimport/internal/layout"
	"github.com/JonMunkholm/examimport/internal/logging"
	"github.com/JonMunkholm/examimport/internal/sheet"
)

// errNoFile is returned when a validate request carries no "file" part.
var errNoFile = errors.New("no file provided")

// ErrorResponse represents the JSON structure for API error responses.
// Includes both machine-readable (Code) and human-readable (Message, Action) fields.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
	Detail  string `json:"detail,omitempty"`
}

// retryAfterSeconds is sent with 503 responses for transient overload.
const retryAfterSeconds = "30"

// respondError logs err and writes the mapped user message with the status
// the error calls for.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	msg := core.MapError(err)
	status := statusFor(err, msg)

	log := logging.FromContext(r.Context())
	args := []any{
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", err.Error(),
		"code", msg.Code,
	}
	if status >= http.StatusInternalServerError {
		log.Error("request error", args...)
	} else {
		log.Warn("request rejected", args...)
	}

	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", retryAfterSeconds)
	}
	respondJSON(w, status, ErrorResponse{
		Error:   err.Error(),
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
		Detail:  msg.Detail,
	})
}

// statusFor picks the HTTP status for err.
func statusFor(err error, msg core.UserMessage) int {
	switch {
	case errors.Is(err, core.ErrUnrecognizedLayout),
		errors.Is(err, core.ErrExamTypeMismatch),
		errors.Is(err, sheet.ErrEmpty),
		errors.Is(err, sheet.ErrUnsupportedFormat),
		errors.Is(err, core.ErrNothingToImport),
		errors.Is(err, core.ErrClassUnresolved):
		return http.StatusUnprocessableEntity
	case errors.Is(err, core.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, core.ErrExamNotFound):
		return http.StatusNotFound
	case errors.Is(err, layout.ErrUnknownExamType),
		errors.Is(err, errNoFile):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrTooManyImports):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}

	switch msg.Code {
	case "DB003", "DB006":
		return http.StatusServiceUnavailable
	case "DB004":
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

// badRequest writes a 400 for a malformed request body.
func badRequest(w http.ResponseWriter, r *http.Request, err error) {
	logging.FromContext(r.Context()).Warn("bad request", "path", r.URL.Path, "error", err)
	respondJSON(w, http.StatusBadRequest, ErrorResponse{
		Error:   err.Error(),
		Message: "İstek okunamadı",
		Action:  "İstek gövdesinin geçerli JSON olduğunu kontrol edin",
		Code:    "REQ001",
	})
}
