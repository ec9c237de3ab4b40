// Package repository declares the persistence contracts the services depend
// on. Implementations live in sub-packages (repository/sqlite).
package repository

import (
	"context"

	"github.com/sakif/coderover/internal/model"
)

// UserRepository stores user profiles keyed by email.
type UserRepository interface {
	// UpsertByEmail inserts user if no record exists for user.Email and
	// returns it; otherwise it returns the stored record unchanged
	// (first write wins, no merge). An empty email is rejected.
	UpsertByEmail(ctx context.Context, user *model.User) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
}

// AuthorizedClientRepository keeps the provider access token captured at
// login so later requests can call the provider on the user's behalf.
type AuthorizedClientRepository interface {
	SaveAuthorizedClient(ctx context.Context, client *model.AuthorizedClient) error
	GetAuthorizedClient(ctx context.Context, provider, subject string) (*model.AuthorizedClient, error)
}
