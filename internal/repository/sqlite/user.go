package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/coderover/internal/apperror"
	"github.com/sakif/coderover/internal/model"
	"github.com/sakif/coderover/internal/repository"
)

// compile-time check that *DB implements repository.UserRepository
var _ repository.UserRepository = (*DB)(nil)

const userColumns = `id, email, name, login, profile_pic_url, company, blog, location, bio,
	public_repos, private_repos, public_gists, followers, following,
	site_admin, two_factor_auth, account_type, plan_name, plan_space, created_at`

// UpsertByEmail inserts the user unless a row with the same email exists,
// then returns whatever row is stored for that email.
//
// INSERT ... ON CONFLICT DO NOTHING makes the check-and-insert a single
// statement, so two concurrent first logins cannot both insert.
func (db *DB) UpsertByEmail(ctx context.Context, user *model.User) (*model.User, error) {
	email := strings.TrimSpace(user.Email)
	if email == "" {
		return nil, apperror.ValidationFailed("email", "user email must not be empty")
	}

	id := user.ID
	if id == "" {
		id = xid.New().String()
	}
	createdAt := user.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(email) DO NOTHING`,
		id, email, user.Name, user.Login, user.ProfilePicURL,
		user.Company, user.Blog, user.Location, user.Bio,
		user.PublicRepos, user.PrivateRepos, user.PublicGists, user.Followers, user.Following,
		user.SiteAdmin, user.TwoFactorAuth, user.AccountType, user.PlanName, user.PlanSpace,
		createdAt,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: upserting user %s: %w", email, err)
	}

	return db.GetByEmail(ctx, email)
}

// GetByEmail returns apperror.ErrNotFound when no user has that email.
func (db *DB) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ?`, email)

	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", email)
		}
		return nil, fmt.Errorf("sqlite: getting user %s: %w", email, err)
	}
	return u, nil
}

func scanUser(row *sql.Row) (*model.User, error) {
	var u model.User
	err := row.Scan(
		&u.ID, &u.Email, &u.Name, &u.Login, &u.ProfilePicURL,
		&u.Company, &u.Blog, &u.Location, &u.Bio,
		&u.PublicRepos, &u.PrivateRepos, &u.PublicGists, &u.Followers, &u.Following,
		&u.SiteAdmin, &u.TwoFactorAuth, &u.AccountType, &u.PlanName, &u.PlanSpace,
		&u.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}
