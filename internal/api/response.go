package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/peoplesignal/attrition-api/internal/utils"
)

type errorBody struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeMessage(w http.ResponseWriter, status int, message string, details any) {
	writeJSON(w, status, errorBody{Status: "error", Message: message, Details: details})
}

// statusFor maps an error kind onto the HTTP status returned to clients.
func statusFor(kind utils.ErrorKind) int {
	switch kind {
	case utils.KindClientContract:
		return http.StatusBadRequest
	case utils.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders err in the client error shape. Only the AppError message
// and details reach the client; everything else is logged.
func writeError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	var appErr *utils.AppError
	if !errors.As(err, &appErr) {
		logger.ErrorContext(r.Context(), "unhandled request error",
			slog.String("request_id", requestIDFromContext(r.Context())),
			slog.String("path", r.URL.Path),
			slog.Any("error", err))
		writeMessage(w, http.StatusInternalServerError, "Internal server error", nil)
		return
	}

	status := statusFor(appErr.Kind)
	if status >= http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "request failed",
			slog.String("request_id", requestIDFromContext(r.Context())),
			slog.String("path", r.URL.Path),
			slog.String("kind", appErr.Kind.String()),
			slog.Any("error", err))
	}
	writeMessage(w, status, appErr.Msg, appErr.Details)
}
