// Package service holds coderover's business logic.
//
// Handlers parse HTTP and call services; services enforce the rules and talk
// to the repository layer and to GitHub through narrow interfaces, so every
// rule can be tested with plain Go fakes:
//
//	AuthHandler  → AuthService       → UserRepository, AuthorizedClientRepository, auth.Codec
//	RepoHandler  → RepositoryService → Gateway (internal/github)
//	UserHandler  → UserService       → UserRepository
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/sakif/coderover/internal/apperror"
	"github.com/sakif/coderover/internal/auth"
	"github.com/sakif/coderover/internal/model"
	"github.com/sakif/coderover/internal/repository"
)

// EmailLister is the provider capability used when the profile hides the
// user's email. *github.Client implements it.
type EmailLister interface {
	ListEmails(ctx context.Context, token string) ([]model.Email, error)
}

// AuthService turns a provider Identity into a signed session credential.
type AuthService struct {
	users   repository.UserRepository
	clients repository.AuthorizedClientRepository
	codec   *auth.Codec
	emails  EmailLister
	ttl     time.Duration
	logger  *slog.Logger
}

// NewAuthService wires the issuer. emails may be nil when no provider in use
// offers an email-list endpoint.
func NewAuthService(
	users repository.UserRepository,
	clients repository.AuthorizedClientRepository,
	codec *auth.Codec,
	emails EmailLister,
	ttl time.Duration,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:   users,
		clients: clients,
		codec:   codec,
		emails:  emails,
		ttl:     ttl,
		logger:  logger,
	}
}

// TTL is how long issued credentials stay valid. The cookie lifetime
// follows it.
func (s *AuthService) TTL() time.Duration { return s.ttl }

// IssueResult is what the callback handler needs to finish the login.
type IssueResult struct {
	User   *model.User
	Claims *auth.Claims
	Token  string
}

// Issue mints a credential for identity.
//
//  1. Resolve the email, falling back to the provider's primary verified
//     address when the profile has none.
//  2. Upsert the user record by email (first write wins).
//  3. Store the provider token for later GitHub calls.
//  4. Sign the claims with the configured TTL.
//
// No email after the fallback fails with apperror.ErrEmailUnavailable and
// nothing is persisted.
func (s *AuthService) Issue(ctx context.Context, id *auth.Identity, providerToken *oauth2.Token) (*IssueResult, error) {
	if id == nil {
		return nil, errors.New("service/auth: identity must not be nil")
	}
	if id.Subject == "" {
		return nil, apperror.ValidationFailed("subject", "identity subject must not be empty")
	}

	email, err := s.resolveEmail(ctx, id, providerToken)
	if err != nil {
		return nil, err
	}

	user, err := s.users.UpsertByEmail(ctx, userFromIdentity(id, email))
	if err != nil {
		return nil, fmt.Errorf("service/auth: persisting user %s: %w", email, err)
	}

	if providerToken != nil && providerToken.AccessToken != "" {
		client := &model.AuthorizedClient{
			Provider:    id.Provider,
			Subject:     id.Subject,
			AccessToken: providerToken.AccessToken,
			TokenType:   providerToken.Type(),
			Scopes:      auth.GrantedScopes(providerToken),
			ExpiresAt:   providerToken.Expiry,
		}
		if err := s.clients.SaveAuthorizedClient(ctx, client); err != nil {
			return nil, fmt.Errorf("service/auth: storing provider token: %w", err)
		}
	}

	claims := auth.Claims{
		Name:    deref(id.Name),
		Email:   email,
		Roles:   append([]string(nil), id.Authorities...),
		Picture: deref(id.AvatarURL),
	}
	claims.Subject = id.Subject

	token, err := s.codec.Sign(claims, s.ttl)
	if err != nil {
		return nil, fmt.Errorf("service/auth: signing credential: %w", err)
	}

	// Verify is the cheapest way to get the stamped iat/exp back.
	signed, err := s.codec.Verify(token)
	if err != nil {
		return nil, fmt.Errorf("service/auth: reading back credential: %w", err)
	}

	s.logger.Info("user logged in",
		slog.String("provider", id.Provider),
		slog.String("subject", id.Subject),
		slog.String("userID", user.ID),
	)

	return &IssueResult{User: user, Claims: signed, Token: token}, nil
}

// resolveEmail returns the trimmed address that keys both the user row and
// the email claim. A blank profile email counts as absent.
func (s *AuthService) resolveEmail(ctx context.Context, id *auth.Identity, token *oauth2.Token) (string, error) {
	if email := strings.TrimSpace(deref(id.Email)); email != "" {
		return email, nil
	}
	if id.Provider != auth.ProviderGitHub || s.emails == nil || token == nil {
		return "", apperror.EmailUnavailable()
	}

	emails, err := s.emails.ListEmails(ctx, token.AccessToken)
	if err != nil {
		return "", apperror.Gateway("Failed to fetch user emails", err)
	}
	if email := primaryVerified(emails); email != "" {
		return email, nil
	}

	s.logger.Warn("no primary verified email", slog.String("subject", id.Subject))
	return "", apperror.EmailUnavailable()
}

// ProviderToken returns the GitHub access token stored for subject at login.
// A subject that has no stored token must log in again.
func (s *AuthService) ProviderToken(ctx context.Context, subject string) (*model.AuthorizedClient, error) {
	c, err := s.clients.GetAuthorizedClient(ctx, auth.ProviderGitHub, subject)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.Unauthorized("no provider token stored for this session")
		}
		return nil, fmt.Errorf("service/auth: loading provider token: %w", err)
	}
	return c, nil
}

func primaryVerified(emails []model.Email) string {
	for _, e := range emails {
		if email := strings.TrimSpace(e.Email); e.Primary && e.Verified && email != "" {
			return email
		}
	}
	return ""
}

// userFromIdentity fills absent counters with 0, flags with false and
// strings with nil.
func userFromIdentity(id *auth.Identity, email string) *model.User {
	u := &model.User{
		Email:         email,
		Name:          id.Name,
		Login:         id.Login,
		ProfilePicURL: id.AvatarURL,
		Company:       id.Company,
		Blog:          id.Blog,
		Location:      id.Location,
		Bio:           id.Bio,
		AccountType:   id.AccountType,
		PlanName:      id.PlanName,
		PublicRepos:   derefOr(id.PublicRepos, 0),
		PrivateRepos:  derefOr(id.PrivateRepos, 0),
		PublicGists:   derefOr(id.PublicGists, 0),
		Followers:     derefOr(id.Followers, 0),
		Following:     derefOr(id.Following, 0),
		SiteAdmin:     derefOr(id.SiteAdmin, false),
		TwoFactorAuth: derefOr(id.TwoFactorAuth, false),
		PlanSpace:     derefOr(id.PlanSpace, 0),
	}
	return u
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func derefOr[T any](p *T, def T) T {
	if p == nil {
		return def
	}
	return *p
}
