package auth

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/coderover/internal/apperror"
)

// RolePrefix is prepended to each role claim when it becomes an authority.
const RolePrefix = "ROLE_"

// ReauthenticateMessage is shown whenever a credential is rejected.
const ReauthenticateMessage = "Invalid token, please re-authenticate!"

// contextKey is unexported so only this package can read or write the
// principal stored in a request context.
type contextKey string

const principalKey contextKey = "principal"

// Principal is the authenticated caller for the rest of the request.
type Principal struct {
	Subject     string
	Authorities []string
	Claims      *Claims
}

// HasAuthority reports whether the principal holds the given authority.
func (p *Principal) HasAuthority(authority string) bool {
	for _, a := range p.Authorities {
		if a == authority {
			return true
		}
	}
	return false
}

// WithPrincipal returns a copy of ctx carrying p.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFromContext returns the authenticated caller, or (nil, false) for
// anonymous requests.
func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalKey).(*Principal)
	return p, ok && p != nil
}

// Authenticate is the credential filter for routes that need a principal.
// It runs before the handler:
//
//   - no access_token cookie: the request continues anonymously
//   - a principal is already in the context: left untouched
//   - expired, tampered or malformed credential: the cookie is cleared, 401
//     and the chain stops
//   - any other verification failure: 500 and the chain stops
//   - valid credential: a Principal with ROLE_-prefixed authorities is added
//
// It never touches persistence. secure must match the flag the cookie was
// set with so the browser accepts the clearing cookie.
func Authenticate(codec *Codec, secure bool, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, err := identify(codec, r)
			switch {
			case err == nil:
			case errors.Is(err, apperror.ErrCredentialExpired), errors.Is(err, apperror.ErrCredentialInvalid):
				logger.Warn("credential rejected",
					slog.String("path", r.URL.Path),
					slog.String("error", err.Error()),
				)
				ClearCredentialCookie(w, secure)
				writeAuthError(w, http.StatusUnauthorized, ReauthenticateMessage)
				return
			default:
				logger.Error("unexpected error verifying credential", slog.String("error", err.Error()))
				writeAuthError(w, http.StatusInternalServerError, "Unexpected error occurred while processing the credential")
				return
			}
			serveAs(w, r, next, p, logger)
		})
	}
}

// OptionalAuth is the credential filter for public routes. A valid
// credential adds a Principal; anything else, including a bad credential,
// leaves the request anonymous so login and logout stay reachable.
func OptionalAuth(codec *Codec, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, err := identify(codec, r)
			switch {
			case err == nil:
			case errors.Is(err, apperror.ErrCredentialExpired), errors.Is(err, apperror.ErrCredentialInvalid):
				logger.Debug("ignoring unusable credential on public route",
					slog.String("path", r.URL.Path),
					slog.String("error", err.Error()),
				)
			default:
				logger.Error("unexpected error verifying credential", slog.String("error", err.Error()))
			}
			serveAs(w, r, next, p, logger)
		})
	}
}

// identify returns the principal carried by r. A nil principal with a nil
// error means the request is anonymous or already authenticated.
func identify(codec *Codec, r *http.Request) (*Principal, error) {
	if _, ok := PrincipalFromContext(r.Context()); ok {
		return nil, nil
	}
	cookie, err := r.Cookie(CookieName)
	if err != nil || cookie.Value == "" {
		return nil, nil
	}
	claims, err := codec.Verify(cookie.Value)
	if err != nil {
		return nil, err
	}
	return &Principal{
		Subject:     claims.Subject,
		Authorities: prefixRoles(claims.Roles),
		Claims:      claims,
	}, nil
}

func serveAs(w http.ResponseWriter, r *http.Request, next http.Handler, p *Principal, logger *slog.Logger) {
	if p == nil {
		next.ServeHTTP(w, r)
		return
	}
	logger.Debug("authenticated request",
		slog.String("subject", p.Subject),
		slog.Any("authorities", p.Authorities),
	)
	next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
}

// RequireAuth rejects anonymous requests with 401. Mount it after
// Authenticate on routes that need a principal.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := PrincipalFromContext(r.Context()); !ok {
			writeAuthError(w, http.StatusUnauthorized, ReauthenticateMessage)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func prefixRoles(roles []string) []string {
	out := make([]string, 0, len(roles))
	for _, role := range roles {
		if role == "" {
			continue
		}
		out = append(out, RolePrefix+role)
	}
	return out
}

// authErrorBody matches handler.Response so every rejection has one shape.
type authErrorBody struct {
	Message    string `json:"message"`
	Data       any    `json:"data"`
	StatusCode int    `json:"statusCode"`
}

func writeAuthError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(authErrorBody{Message: message, StatusCode: status})
}
