package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/sakif/coderover/internal/apperror"
	"github.com/sakif/coderover/internal/auth"
	"github.com/sakif/coderover/internal/github"
	"github.com/sakif/coderover/internal/handler"
	"github.com/sakif/coderover/internal/model"
	"github.com/sakif/coderover/internal/service"
)

var logger = slog.New(slog.NewTextHandler(io.Discard, nil))

// =========================================================================
// FAKES
// =========================================================================

type fakeTokens struct {
	clients map[string]*model.AuthorizedClient
}

func (f *fakeTokens) ProviderToken(ctx context.Context, subject string) (*model.AuthorizedClient, error) {
	c, ok := f.clients[subject]
	if !ok {
		return nil, apperror.Unauthorized("no provider token")
	}
	return c, nil
}

func tokensFor(subject, token string) *fakeTokens {
	return &fakeTokens{clients: map[string]*model.AuthorizedClient{
		subject: {Provider: auth.ProviderGitHub, Subject: subject, AccessToken: token, TokenType: "Bearer"},
	}}
}

type fakeBrowser struct {
	repos    []model.Repo
	tree     *model.Tree
	blob     *model.Blob
	branch   *model.Branch
	branches []model.Branch
	err      error

	gotToken  string
	gotOwner  string
	gotRepo   string
	gotArg    string
	gotListOp github.ListOptions
}

func (f *fakeBrowser) ListRepos(ctx context.Context, token string, opts github.ListOptions) ([]model.Repo, error) {
	f.gotToken, f.gotListOp = token, opts
	return f.repos, f.err
}

func (f *fakeBrowser) GetTree(ctx context.Context, token, owner, repo, branch string) (*model.Tree, error) {
	f.gotToken, f.gotOwner, f.gotRepo, f.gotArg = token, owner, repo, branch
	return f.tree, f.err
}

func (f *fakeBrowser) GetBlob(ctx context.Context, token, owner, repo, sha string) (*model.Blob, error) {
	f.gotToken, f.gotOwner, f.gotRepo, f.gotArg = token, owner, repo, sha
	return f.blob, f.err
}

func (f *fakeBrowser) GetBranch(ctx context.Context, token, owner, repo, branch string) (*model.Branch, error) {
	f.gotToken, f.gotOwner, f.gotRepo, f.gotArg = token, owner, repo, branch
	return f.branch, f.err
}

func (f *fakeBrowser) ListBranches(ctx context.Context, token, owner, repo string) ([]model.Branch, error) {
	f.gotToken, f.gotOwner, f.gotRepo = token, owner, repo
	return f.branches, f.err
}

// repoRouter mounts the repository handler the way the server does, with a
// fixed principal injected ahead of it.
func repoRouter(h *handler.RepositoryHandler, p *auth.Principal) http.Handler {
	r := chi.NewRouter()
	if p != nil {
		r.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
				next.ServeHTTP(w, req.WithContext(auth.WithPrincipal(req.Context(), p)))
			})
		})
	}
	r.Get("/api/v1/repos/user/repos", h.HandleListRepos)
	r.Get("/api/v1/repos/{owner}/{repo}/tree", h.HandleTree)
	r.Get("/api/v1/repos/{owner}/{repo}/blob", h.HandleBlob)
	r.Get("/api/v1/repos/{owner}/{repo}/branches/*", h.HandleBranch)
	r.Get("/api/v1/repos/{owner}/{repo}", h.HandleBranches)
	return r
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) handler.Response {
	t.Helper()
	var res handler.Response
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&res))
	return res
}

var ada = &auth.Principal{
	Subject:     "42",
	Authorities: []string{"ROLE_OAUTH2_USER"},
	Claims:      &auth.Claims{Name: "Ada", Email: "ada@example.com"},
}

// =========================================================================
// REPOSITORY HANDLER
// =========================================================================

func TestRepositoryHandler(t *testing.T) {
	java := "Java"

	t.Run("list repos forwards token and pagination", func(t *testing.T) {
		fb := &fakeBrowser{repos: []model.Repo{{Name: "a", Language: &java}}}
		h := handler.NewRepositoryHandler(fb, tokensFor("42", "gho_42"), logger)

		rr := httptest.NewRecorder()
		repoRouter(h, ada).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/repos/user/repos?per_page=5&page=2", nil))

		assert.Equal(t, http.StatusOK, rr.Code)
		res := decode(t, rr)
		assert.Equal(t, "User repositories fetched successfully", res.Message)
		assert.Equal(t, http.StatusOK, res.StatusCode)
		assert.Equal(t, "gho_42", fb.gotToken)
		assert.Equal(t, github.ListOptions{PerPage: 5, Page: 2}, fb.gotListOp)
	})

	t.Run("bad pagination is a 400", func(t *testing.T) {
		h := handler.NewRepositoryHandler(&fakeBrowser{}, tokensFor("42", "gho_42"), logger)

		rr := httptest.NewRecorder()
		repoRouter(h, ada).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/repos/user/repos?per_page=abc", nil))

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("tree defaults branch to master", func(t *testing.T) {
		fb := &fakeBrowser{tree: &model.Tree{SHA: "t1"}}
		h := handler.NewRepositoryHandler(fb, tokensFor("42", "gho_42"), logger)

		rr := httptest.NewRecorder()
		repoRouter(h, ada).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/repos/o/r/tree", nil))

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "o", fb.gotOwner)
		assert.Equal(t, "r", fb.gotRepo)
		assert.Equal(t, "master", fb.gotArg)
	})

	t.Run("missing tree sha is an inter service error", func(t *testing.T) {
		fb := &fakeBrowser{err: apperror.Gateway("Failed to fetch repo tree", apperror.MissingTreeSha())}
		h := handler.NewRepositoryHandler(fb, tokensFor("42", "gho_42"), logger)

		rr := httptest.NewRecorder()
		repoRouter(h, ada).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/repos/o/r/tree?branch=main", nil))

		assert.Equal(t, http.StatusInternalServerError, rr.Code)
		res := decode(t, rr)
		assert.Equal(t, "Inter service error occurred : Failed to fetch repo tree: Tree SHA missing in branch commit.", res.Message)
		assert.Nil(t, res.Data)
	})

	t.Run("blob requires sha", func(t *testing.T) {
		h := handler.NewRepositoryHandler(&fakeBrowser{}, tokensFor("42", "gho_42"), logger)

		rr := httptest.NewRecorder()
		repoRouter(h, ada).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/repos/o/r/blob", nil))

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("blob", func(t *testing.T) {
		fb := &fakeBrowser{blob: &model.Blob{SHA: "b1", Content: "aGk="}}
		h := handler.NewRepositoryHandler(fb, tokensFor("42", "gho_42"), logger)

		rr := httptest.NewRecorder()
		repoRouter(h, ada).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/repos/o/r/blob?sha=b1", nil))

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "b1", fb.gotArg)
	})

	t.Run("branch names may contain slashes", func(t *testing.T) {
		fb := &fakeBrowser{branch: &model.Branch{Name: "feature/x"}}
		h := handler.NewRepositoryHandler(fb, tokensFor("42", "gho_42"), logger)

		rr := httptest.NewRecorder()
		repoRouter(h, ada).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/repos/o/r/branches/feature/x", nil))

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "feature/x", fb.gotArg)
	})

	t.Run("all branches", func(t *testing.T) {
		fb := &fakeBrowser{branches: []model.Branch{{Name: "main"}, {Name: "dev"}}}
		h := handler.NewRepositoryHandler(fb, tokensFor("42", "gho_42"), logger)

		rr := httptest.NewRecorder()
		repoRouter(h, ada).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/repos/o/r", nil))

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "All branches fetched successfully", decode(t, rr).Message)
	})

	t.Run("anonymous request is a 401", func(t *testing.T) {
		fb := &fakeBrowser{}
		h := handler.NewRepositoryHandler(fb, tokensFor("42", "gho_42"), logger)

		rr := httptest.NewRecorder()
		repoRouter(h, nil).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/repos/o/r", nil))

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.Equal(t, auth.ReauthenticateMessage, decode(t, rr).Message)
		assert.Empty(t, fb.gotToken)
	})

	t.Run("no stored provider token is a 401", func(t *testing.T) {
		fb := &fakeBrowser{}
		h := handler.NewRepositoryHandler(fb, &fakeTokens{}, logger)

		rr := httptest.NewRecorder()
		repoRouter(h, ada).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/repos/o/r", nil))

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})
}

// =========================================================================
// AUTH HANDLER
// =========================================================================

type fakeProvider struct {
	identity *auth.Identity
	token    *oauth2.Token
	err      error
}

func (f *fakeProvider) AuthURL(state string) string {
	return "https://github.example/login/oauth/authorize?state=" + state
}

func (f *fakeProvider) Exchange(ctx context.Context, code string) (*auth.Identity, *oauth2.Token, error) {
	if code != "good-code" {
		return nil, nil, errors.New("bad verification code")
	}
	return f.identity, f.token, f.err
}

type fakeIssuer struct {
	result *service.IssueResult
	err    error
	calls  int
}

func (f *fakeIssuer) Issue(ctx context.Context, id *auth.Identity, tok *oauth2.Token) (*service.IssueResult, error) {
	f.calls++
	return f.result, f.err
}

func (f *fakeIssuer) TTL() time.Duration { return time.Hour }

func newAuthHandler(p *fakeProvider, iss *fakeIssuer) *handler.AuthHandler {
	return handler.NewAuthHandler(p, iss, tokensFor("42", "gho_42"), true, "/app", logger)
}

func callbackRequest(query, state string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/auth/github/callback?"+query, nil)
	if state != "" {
		req.AddCookie(&http.Cookie{Name: "oauth_state", Value: state})
	}
	return req
}

func findCookie(rr *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rr.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestAuthHandler_Login(t *testing.T) {
	h := newAuthHandler(&fakeProvider{}, &fakeIssuer{})

	rr := httptest.NewRecorder()
	h.HandleGitHubLogin(rr, httptest.NewRequest(http.MethodGet, "/auth/github/login", nil))

	assert.Equal(t, http.StatusTemporaryRedirect, rr.Code)
	state := findCookie(rr, "oauth_state")
	require.NotNil(t, state)
	assert.True(t, state.HttpOnly)
	assert.Contains(t, rr.Header().Get("Location"), "state="+state.Value)
}

func TestAuthHandler_Callback(t *testing.T) {
	identity := &auth.Identity{Provider: auth.ProviderGitHub, Subject: "42"}
	issued := &service.IssueResult{Token: "signed.jwt.value"}

	t.Run("success sets the credential cookie", func(t *testing.T) {
		iss := &fakeIssuer{result: issued}
		h := newAuthHandler(&fakeProvider{identity: identity, token: &oauth2.Token{AccessToken: "gho"}}, iss)

		rr := httptest.NewRecorder()
		h.HandleGitHubCallback(rr, callbackRequest("code=good-code&state=s1", "s1"))

		assert.Equal(t, http.StatusSeeOther, rr.Code)
		assert.Equal(t, "/app", rr.Header().Get("Location"))
		c := findCookie(rr, auth.CookieName)
		require.NotNil(t, c)
		assert.Equal(t, "signed.jwt.value", c.Value)
		assert.True(t, c.HttpOnly)
		assert.True(t, c.Secure)
		assert.Equal(t, "/", c.Path)
		assert.Equal(t, 3600, c.MaxAge)
	})

	t.Run("state mismatch", func(t *testing.T) {
		iss := &fakeIssuer{result: issued}
		h := newAuthHandler(&fakeProvider{identity: identity}, iss)

		rr := httptest.NewRecorder()
		h.HandleGitHubCallback(rr, callbackRequest("code=good-code&state=evil", "s1"))

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Zero(t, iss.calls)
	})

	t.Run("bad code", func(t *testing.T) {
		iss := &fakeIssuer{result: issued}
		h := newAuthHandler(&fakeProvider{identity: identity}, iss)

		rr := httptest.NewRecorder()
		h.HandleGitHubCallback(rr, callbackRequest("code=nope&state=s1", "s1"))

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.Zero(t, iss.calls)
	})

	t.Run("no verified email", func(t *testing.T) {
		iss := &fakeIssuer{err: apperror.EmailUnavailable()}
		h := newAuthHandler(&fakeProvider{identity: identity}, iss)

		rr := httptest.NewRecorder()
		h.HandleGitHubCallback(rr, callbackRequest("code=good-code&state=s1", "s1"))

		assert.Equal(t, http.StatusForbidden, rr.Code)
		assert.Equal(t, "no primary verified email available", decode(t, rr).Message)
		assert.Nil(t, findCookie(rr, auth.CookieName))
	})

	t.Run("user denied access", func(t *testing.T) {
		h := newAuthHandler(&fakeProvider{}, &fakeIssuer{})

		rr := httptest.NewRecorder()
		h.HandleGitHubCallback(rr, callbackRequest("error=access_denied&state=s1", "s1"))

		assert.Equal(t, http.StatusSeeOther, rr.Code)
		assert.Equal(t, "/app?auth=denied", rr.Header().Get("Location"))
	})
}

func TestAuthHandler_Logout(t *testing.T) {
	h := newAuthHandler(&fakeProvider{}, &fakeIssuer{})

	rr := httptest.NewRecorder()
	h.HandleLogout(rr, httptest.NewRequest(http.MethodPost, "/auth/logout", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	c := findCookie(rr, auth.CookieName)
	require.NotNil(t, c)
	assert.Equal(t, -1, c.MaxAge)
}

func TestAuthHandler_Token(t *testing.T) {
	h := newAuthHandler(&fakeProvider{}, &fakeIssuer{})

	req := httptest.NewRequest(http.MethodGet, "/auth/token", nil)
	req = req.WithContext(auth.WithPrincipal(req.Context(), ada))
	rr := httptest.NewRecorder()
	h.HandleToken(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	res := decode(t, rr)
	data, ok := res.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "42", data["subject"])
	assert.Equal(t, "gho_42", data["accessToken"])
}

// =========================================================================
// USER HANDLER
// =========================================================================

type fakeUsers struct {
	user *model.User
	err  error
	got  string
}

func (f *fakeUsers) UserInfo(ctx context.Context, email string) (*model.User, error) {
	f.got = email
	return f.user, f.err
}

func TestUserHandler(t *testing.T) {
	t.Run("looks up the credential email", func(t *testing.T) {
		fu := &fakeUsers{user: &model.User{ID: "u1", Email: "ada@example.com"}}
		h := handler.NewUserHandler(fu, logger)

		req := httptest.NewRequest(http.MethodGet, "/api/v1/user", nil)
		req = req.WithContext(auth.WithPrincipal(req.Context(), ada))
		rr := httptest.NewRecorder()
		h.HandleUserInfo(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "ada@example.com", fu.got)
		assert.Equal(t, "User info successfully fetched!", decode(t, rr).Message)
	})

	t.Run("missing record asks to re-authenticate", func(t *testing.T) {
		h := handler.NewUserHandler(&fakeUsers{err: apperror.Unauthorized("gone")}, logger)

		req := httptest.NewRequest(http.MethodGet, "/api/v1/user", nil)
		req = req.WithContext(auth.WithPrincipal(req.Context(), ada))
		rr := httptest.NewRecorder()
		h.HandleUserInfo(rr, req)

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.Equal(t, auth.ReauthenticateMessage, decode(t, rr).Message)
	})

	t.Run("anonymous", func(t *testing.T) {
		h := handler.NewUserHandler(&fakeUsers{}, logger)

		rr := httptest.NewRecorder()
		h.HandleUserInfo(rr, httptest.NewRequest(http.MethodGet, "/api/v1/user", nil))

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})
}

func TestHandleHealth(t *testing.T) {
	rr := httptest.NewRecorder()
	handler.HandleHealth(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "Up!", rr.Body.String())
}

func TestUnknownErrorIsGeneric500(t *testing.T) {
	fb := &fakeBrowser{err: errors.New("pq: relation users does not exist")}
	h := handler.NewRepositoryHandler(fb, tokensFor("42", "gho_42"), logger)

	rr := httptest.NewRecorder()
	repoRouter(h, ada).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/repos/o/r", nil))

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.NotContains(t, rr.Body.String(), "relation")
}
