package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/sakif/coderover/internal/apperror"
	"github.com/sakif/coderover/internal/model"
	"github.com/sakif/coderover/internal/repository"
)

// UserService reads stored profiles for the /api/v1/user endpoint.
type UserService struct {
	users         repository.UserRepository
	defaultAvatar string
}

// NewUserService substitutes defaultAvatar for users without a picture.
func NewUserService(users repository.UserRepository, defaultAvatar string) *UserService {
	return &UserService{users: users, defaultAvatar: defaultAvatar}
}

// UserInfo returns the profile stored for email with the default avatar
// filled in. A credential without an email, or one whose user record is gone,
// must re-authenticate.
func (s *UserService) UserInfo(ctx context.Context, email string) (*model.User, error) {
	if email == "" {
		return nil, apperror.Unauthorized("credential carries no email")
	}

	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.Unauthorized("no user record for this credential")
		}
		return nil, fmt.Errorf("service/user: fetching %s: %w", email, err)
	}

	info := *u
	if info.ProfilePicURL == nil && s.defaultAvatar != "" {
		avatar := s.defaultAvatar
		info.ProfilePicURL = &avatar
	}
	return &info, nil
}
