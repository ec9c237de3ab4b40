package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/sakif/coderover/internal/auth"
	"github.com/sakif/coderover/internal/model"
)

// UserInfoReader is implemented by *service.UserService.
type UserInfoReader interface {
	UserInfo(ctx context.Context, email string) (*model.User, error)
}

// UserHandler serves the logged-in user's stored profile.
type UserHandler struct {
	users  UserInfoReader
	logger *slog.Logger
}

// NewUserHandler creates a UserHandler.
func NewUserHandler(users UserInfoReader, logger *slog.Logger) *UserHandler {
	return &UserHandler{users: users, logger: logger}
}

// HandleUserInfo returns the stored profile of the caller.
//
// HTTP: GET /api/v1/user
// Auth: Required. The profile is looked up by the credential's email claim.
func (h *UserHandler) HandleUserInfo(w http.ResponseWriter, r *http.Request) {
	p, ok := auth.PrincipalFromContext(r.Context())
	if !ok || p.Claims == nil {
		writeJSON(w, http.StatusUnauthorized, auth.ReauthenticateMessage, nil)
		return
	}

	u, err := h.users.UserInfo(r.Context(), p.Claims.Email)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, "User info successfully fetched!", u)
}

// HandleHealth answers liveness probes.
//
// HTTP: GET /health
func HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("Up!"))
}
