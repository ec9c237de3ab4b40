// Package handler contains the HTTP handlers of coderover.
//
// Handlers only parse requests and write responses. They depend on small
// interfaces declared next to them, so tests can pass fakes, and they turn
// errors into statuses through writeError.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/rs/xid"
	"golang.org/x/oauth2"

	"github.com/sakif/coderover/internal/auth"
	"github.com/sakif/coderover/internal/model"
	"github.com/sakif/coderover/internal/service"
)

const stateCookie = "oauth_state"

// LoginProvider runs the OAuth2 authorization-code exchange.
// *auth.GitHubProvider implements it.
type LoginProvider interface {
	AuthURL(state string) string
	Exchange(ctx context.Context, code string) (*auth.Identity, *oauth2.Token, error)
}

// CredentialIssuer mints session credentials. *service.AuthService
// implements it.
type CredentialIssuer interface {
	Issue(ctx context.Context, id *auth.Identity, providerToken *oauth2.Token) (*service.IssueResult, error)
	TTL() time.Duration
}

// ProviderTokens looks up the GitHub token stored at login.
type ProviderTokens interface {
	ProviderToken(ctx context.Context, subject string) (*model.AuthorizedClient, error)
}

// AuthHandler drives the GitHub login flow and the session cookie.
//
//   - HandleGitHubLogin    → redirect to GitHub with a state cookie
//   - HandleGitHubCallback → exchange the code, issue the credential cookie
//   - HandleLogout         → drop the credential cookie
//   - HandleToken          → debug view of the session (only mounted on request)
type AuthHandler struct {
	provider     LoginProvider
	issuer       CredentialIssuer
	tokens       ProviderTokens
	cookieSecure bool
	redirectURL  string
	logger       *slog.Logger
}

// NewAuthHandler sends users back to redirectURL after login. cookieSecure
// sets the Secure flag on every cookie it writes.
func NewAuthHandler(
	provider LoginProvider,
	issuer CredentialIssuer,
	tokens ProviderTokens,
	cookieSecure bool,
	redirectURL string,
	logger *slog.Logger,
) *AuthHandler {
	return &AuthHandler{
		provider:     provider,
		issuer:       issuer,
		tokens:       tokens,
		cookieSecure: cookieSecure,
		redirectURL:  redirectURL,
		logger:       logger,
	}
}

// HandleGitHubLogin redirects to GitHub's consent page.
//
// HTTP: GET /auth/github/login
//
// The random state is echoed back by GitHub and compared with the cookie on
// callback, which ties the callback to a login this server started.
func (h *AuthHandler) HandleGitHubLogin(w http.ResponseWriter, r *http.Request) {
	state := xid.New().String()

	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   600,
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.provider.AuthURL(state), http.StatusTemporaryRedirect)
}

// HandleGitHubCallback completes the login.
//
// HTTP: GET /auth/github/callback?code=xxx&state=yyy
//
//  1. Check the state against the cookie
//  2. Exchange the code for an Identity and a GitHub token
//  3. Issue the credential (persists the user and the GitHub token)
//  4. Set the access_token cookie and redirect to the frontend
func (h *AuthHandler) HandleGitHubCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	c, err := r.Cookie(stateCookie)
	if err != nil || c.Value == "" || q.Get("state") != c.Value {
		h.logger.Warn("auth callback: state mismatch")
		writeJSON(w, http.StatusBadRequest, "invalid OAuth state", nil)
		return
	}

	// single use
	http.SetCookie(w, &http.Cookie{
		Name:   stateCookie,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})

	if errParam := q.Get("error"); errParam != "" {
		h.logger.Info("auth callback: authorization denied", slog.String("error", errParam))
		http.Redirect(w, r, h.redirectURL+"?auth=denied", http.StatusSeeOther)
		return
	}

	code := q.Get("code")
	if code == "" {
		writeJSON(w, http.StatusBadRequest, "missing OAuth code", nil)
		return
	}

	identity, token, err := h.provider.Exchange(r.Context(), code)
	if err != nil {
		h.logger.Error("auth callback: GitHub exchange failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusUnauthorized, "authentication failed", nil)
		return
	}

	res, err := h.issuer.Issue(r.Context(), identity, token)
	if err != nil {
		h.logger.Error("auth callback: issuing credential failed",
			slog.String("subject", identity.Subject),
			slog.String("error", err.Error()),
		)
		writeError(w, h.logger, err)
		return
	}

	auth.SetCredentialCookie(w, res.Token, h.issuer.TTL(), h.cookieSecure)
	http.Redirect(w, r, h.redirectURL, http.StatusSeeOther)
}

// HandleLogout clears the credential cookie.
//
// HTTP: POST /auth/logout
//
// The credential stays valid until it expires; there is no revocation list.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	auth.ClearCredentialCookie(w, h.cookieSecure)
	writeJSON(w, http.StatusOK, "logged out", nil)
}

type sessionView struct {
	Subject     string       `json:"subject"`
	Authorities []string     `json:"authorities"`
	Claims      *auth.Claims `json:"claims"`
	AccessToken string       `json:"accessToken"`
	TokenType   string       `json:"tokenType"`
	Scopes      []string     `json:"scopes"`
	ExpiresAt   time.Time    `json:"expiresAt,omitzero"`
}

// HandleToken shows the current principal and the stored GitHub token.
//
// HTTP: GET /auth/token
// Auth: Required. Mounted only when debug endpoints are enabled.
func (h *AuthHandler) HandleToken(w http.ResponseWriter, r *http.Request) {
	p, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, auth.ReauthenticateMessage, nil)
		return
	}

	client, err := h.tokens.ProviderToken(r.Context(), p.Subject)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	h.logger.Debug("session inspected", slog.String("subject", p.Subject))
	writeJSON(w, http.StatusOK, "Session details", sessionView{
		Subject:     p.Subject,
		Authorities: p.Authorities,
		Claims:      p.Claims,
		AccessToken: client.AccessToken,
		TokenType:   client.TokenType,
		Scopes:      client.Scopes,
		ExpiresAt:   client.ExpiresAt,
	})
}
