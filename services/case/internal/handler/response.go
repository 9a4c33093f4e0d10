package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	apperrors "github.com/sos-echo/platform/pkg/errors"
	"github.com/sos-echo/platform/pkg/logger"
)

type errorBody struct {
	Error *apperrors.AppError `json:"error"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError writes err as {"error": {"code", "message", "details"}}. Errors
// outside the taxonomy are logged and reported as INTERNAL_ERROR without
// their text.
func respondError(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error) {
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		logger.FromContext(r.Context(), log).Error("unhandled error", "path", r.URL.Path, "error", err)
		appErr = apperrors.Internal("internal server error")
	}

	status := appErr.HTTPStatus
	if status == 0 {
		status = http.StatusInternalServerError
	}
	if status >= http.StatusInternalServerError {
		logger.FromContext(r.Context(), log).Error("request failed", "path", r.URL.Path, "code", appErr.Code, "error", err)
	}
	if secs, ok := appErr.Details["retry_after_seconds"].(int); ok && secs > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(secs))
	}

	respondJSON(w, status, errorBody{Error: &apperrors.AppError{
		Code:    appErr.Code,
		Message: appErr.Message,
		Details: appErr.Details,
	}})
}

func decodeJSON(r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return apperrors.BadRequest("invalid request body")
	}
	return nil
}
