package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sakif/coderover/internal/apperror"
	"github.com/sakif/coderover/internal/model"
	"github.com/sakif/coderover/internal/repository"
)

var _ repository.AuthorizedClientRepository = (*DB)(nil)

// SaveAuthorizedClient stores the provider token for (provider, subject),
// replacing any previous one. Each login yields a fresh token.
func (db *DB) SaveAuthorizedClient(ctx context.Context, c *model.AuthorizedClient) error {
	if c.Provider == "" || c.Subject == "" || c.AccessToken == "" {
		return apperror.ValidationFailed("authorizedClient", "provider, subject and access token are required")
	}

	c.UpdatedAt = time.Now().UTC()
	var expiresAt any
	if !c.ExpiresAt.IsZero() {
		expiresAt = c.ExpiresAt.UTC()
	}

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO authorized_clients (provider, subject, access_token, token_type, scopes, expires_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(provider, subject) DO UPDATE SET
			access_token = excluded.access_token,
			token_type   = excluded.token_type,
			scopes       = excluded.scopes,
			expires_at   = excluded.expires_at,
			updated_at   = excluded.updated_at`,
		c.Provider, c.Subject, c.AccessToken, c.TokenType,
		strings.Join(c.Scopes, ","), expiresAt, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: saving authorized client %s/%s: %w", c.Provider, c.Subject, err)
	}
	return nil
}

// GetAuthorizedClient returns apperror.ErrNotFound when the subject never
// logged in through provider.
func (db *DB) GetAuthorizedClient(ctx context.Context, provider, subject string) (*model.AuthorizedClient, error) {
	var (
		c         model.AuthorizedClient
		scopes    string
		expiresAt sql.NullTime
	)
	err := db.conn.QueryRowContext(ctx,
		`SELECT provider, subject, access_token, token_type, scopes, expires_at, updated_at
		 FROM authorized_clients WHERE provider = ? AND subject = ?`,
		provider, subject,
	).Scan(&c.Provider, &c.Subject, &c.AccessToken, &c.TokenType, &scopes, &expiresAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("authorized client", provider+"/"+subject)
		}
		return nil, fmt.Errorf("sqlite: getting authorized client %s/%s: %w", provider, subject, err)
	}

	if scopes != "" {
		c.Scopes = strings.Split(scopes, ",")
	}
	if expiresAt.Valid {
		c.ExpiresAt = expiresAt.Time
	}
	return &c, nil
}
