package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/coderover/internal/apperror"
	"github.com/sakif/coderover/internal/auth"
	"github.com/sakif/coderover/internal/github"
	"github.com/sakif/coderover/internal/model"
)

// defaultBranch is used by the tree endpoint when ?branch= is omitted.
const defaultBranch = "master"

// RepositoryBrowser is implemented by *service.RepositoryService.
type RepositoryBrowser interface {
	ListRepos(ctx context.Context, token string, opts github.ListOptions) ([]model.Repo, error)
	GetTree(ctx context.Context, token, owner, repo, branch string) (*model.Tree, error)
	GetBlob(ctx context.Context, token, owner, repo, sha string) (*model.Blob, error)
	GetBranch(ctx context.Context, token, owner, repo, branch string) (*model.Branch, error)
	ListBranches(ctx context.Context, token, owner, repo string) ([]model.Branch, error)
}

// RepositoryHandler proxies repository traversal for the logged-in user.
// Every route needs a principal; the GitHub token is looked up per request.
type RepositoryHandler struct {
	repos  RepositoryBrowser
	tokens ProviderTokens
	logger *slog.Logger
}

// NewRepositoryHandler creates a RepositoryHandler.
func NewRepositoryHandler(repos RepositoryBrowser, tokens ProviderTokens, logger *slog.Logger) *RepositoryHandler {
	return &RepositoryHandler{repos: repos, tokens: tokens, logger: logger}
}

// HandleListRepos handles GET /api/v1/repos/user/repos?per_page=&page=
func (h *RepositoryHandler) HandleListRepos(w http.ResponseWriter, r *http.Request) {
	perPage, err := optionalInt(r, "per_page")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	page, err := optionalInt(r, "page")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	token, ok := h.providerToken(w, r)
	if !ok {
		return
	}

	repos, err := h.repos.ListRepos(r.Context(), token, github.ListOptions{PerPage: perPage, Page: page})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, "User repositories fetched successfully", repos)
}

// HandleTree handles GET /api/v1/repos/{owner}/{repo}/tree?branch=
func (h *RepositoryHandler) HandleTree(w http.ResponseWriter, r *http.Request) {
	branch := r.URL.Query().Get("branch")
	if branch == "" {
		branch = defaultBranch
	}

	token, ok := h.providerToken(w, r)
	if !ok {
		return
	}

	tree, err := h.repos.GetTree(r.Context(), token, chi.URLParam(r, "owner"), chi.URLParam(r, "repo"), branch)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, "Repo tree fetched successfully", tree)
}

// HandleBlob handles GET /api/v1/repos/{owner}/{repo}/blob?sha=
func (h *RepositoryHandler) HandleBlob(w http.ResponseWriter, r *http.Request) {
	sha := r.URL.Query().Get("sha")
	if sha == "" {
		writeError(w, h.logger, apperror.ValidationFailed("sha", "sha query parameter is required"))
		return
	}

	token, ok := h.providerToken(w, r)
	if !ok {
		return
	}

	blob, err := h.repos.GetBlob(r.Context(), token, chi.URLParam(r, "owner"), chi.URLParam(r, "repo"), sha)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, "File blob fetched successfully", blob)
}

// HandleBranches handles GET /api/v1/repos/{owner}/{repo}
func (h *RepositoryHandler) HandleBranches(w http.ResponseWriter, r *http.Request) {
	token, ok := h.providerToken(w, r)
	if !ok {
		return
	}

	branches, err := h.repos.ListBranches(r.Context(), token, chi.URLParam(r, "owner"), chi.URLParam(r, "repo"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, "All branches fetched successfully", branches)
}

// HandleBranch handles GET /api/v1/repos/{owner}/{repo}/branches/{branch}
func (h *RepositoryHandler) HandleBranch(w http.ResponseWriter, r *http.Request) {
	token, ok := h.providerToken(w, r)
	if !ok {
		return
	}

	// Wildcard route so branch names may contain slashes.
	branch := chi.URLParam(r, "*")
	if branch == "" {
		writeError(w, h.logger, apperror.ValidationFailed("branch", "branch name is required"))
		return
	}

	b, err := h.repos.GetBranch(r.Context(), token, chi.URLParam(r, "owner"), chi.URLParam(r, "repo"), branch)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, "Branch details fetched successfully", b)
}

// providerToken writes the error response itself and returns false when the
// request has no principal or the principal has no stored GitHub token.
func (h *RepositoryHandler) providerToken(w http.ResponseWriter, r *http.Request) (string, bool) {
	p, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, auth.ReauthenticateMessage, nil)
		return "", false
	}
	client, err := h.tokens.ProviderToken(r.Context(), p.Subject)
	if err != nil {
		writeError(w, h.logger, err)
		return "", false
	}
	return client.AccessToken, true
}

func optionalInt(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, apperror.ValidationFailed(name, name+" must be a positive integer")
	}
	return n, nil
}
