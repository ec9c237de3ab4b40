package handler

// Every JSON endpoint answers with the same envelope:
//
//	{"message": "...", "data": ..., "statusCode": 200}
//
// Errors use it too, with data set to null, so the frontend can read
// message and statusCode without looking at the HTTP status.

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/coderover/internal/apperror"
	"github.com/sakif/coderover/internal/auth"
)

// gatewayPrefix starts every message about a failed GitHub call.
const gatewayPrefix = "Inter service error occurred : "

// Response is the envelope written by every JSON endpoint.
type Response struct {
	Message    string `json:"message"`
	Data       any    `json:"data"`
	StatusCode int    `json:"statusCode"`
}

// writeJSON sends status with the envelope around data. Headers must be set
// before WriteHeader.
func writeJSON(w http.ResponseWriter, status int, message string, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(Response{Message: message, Data: data, StatusCode: status}); err != nil {
		// Headers are already sent; logging is all that is left.
		slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
	}
}

// writeError is the only place domain errors become HTTP statuses.
//
//	credential expired/invalid, unauthorized → 401 re-authenticate message
//	email unavailable, forbidden             → 403
//	validation                               → 400
//	not found                                → 404
//	conflict                                 → 409
//	gateway (includes missing tree SHA)      → 500 with the upstream detail
//
// Errors that are not *apperror.AppError are logged and reported as a bare
// 500 so internals never reach the client.
func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		logger.Error("unhandled error", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, "An internal error occurred", nil)
		return
	}

	switch {
	case errors.Is(err, apperror.ErrCredentialExpired),
		errors.Is(err, apperror.ErrCredentialInvalid),
		errors.Is(err, apperror.ErrUnauthorized):
		writeJSON(w, http.StatusUnauthorized, auth.ReauthenticateMessage, nil)
	case errors.Is(err, apperror.ErrEmailUnavailable), errors.Is(err, apperror.ErrForbidden):
		writeJSON(w, http.StatusForbidden, appErr.Message, nil)
	case errors.Is(err, apperror.ErrValidation):
		writeJSON(w, http.StatusBadRequest, appErr.Message, nil)
	case errors.Is(err, apperror.ErrNotFound):
		writeJSON(w, http.StatusNotFound, appErr.Message, nil)
	case errors.Is(err, apperror.ErrConflict):
		writeJSON(w, http.StatusConflict, appErr.Message, nil)
	case errors.Is(err, apperror.ErrGateway):
		writeJSON(w, http.StatusInternalServerError, gatewayPrefix+appErr.Message, nil)
	default:
		writeJSON(w, http.StatusInternalServerError, appErr.Message, nil)
	}
}
