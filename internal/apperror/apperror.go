// Package apperror defines the error kinds shared by every layer of coderover.
//
// Services return an *AppError wrapping one of the sentinel errors below.
// Handlers never inspect concrete types. They match on the sentinel with
// errors.Is and translate it to an HTTP status in exactly one place
// (handler.writeError).
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("Validation Error")
	ErrConflict     = errors.New("conflict")
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")

	// Credential kinds. A missing credential is not an error at all: the
	// filter simply leaves the request anonymous.
	ErrCredentialExpired = errors.New("credential expired")
	ErrCredentialInvalid = errors.New("credential invalid")

	// ErrEmailUnavailable means the identity carried no email and the
	// provider could not supply a primary, verified one either.
	ErrEmailUnavailable = errors.New("no primary verified email available")

	// ErrMissingTreeSha means the branch call succeeded but its payload had
	// no commit.commit.tree.sha to follow.
	ErrMissingTreeSha = errors.New("tree SHA missing in branch commit")

	// ErrGateway is the single external-facing kind for anything that went
	// wrong while talking to the source-control API.
	ErrGateway = errors.New("inter service error")
)

type AppError struct {
	Err     error  // actual error
	Message string // Human-readable error message
	Field   string // Optional: field causing the error
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

func Conflict(resource, id string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: fmt.Sprintf("%s conflict with id %s", resource, id),
	}
}

// Forbidden returns an AppError indicating the caller lacks permission.
// HTTP handlers map this to 403 Forbidden.
func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Message: message,
	}
}

// Unauthorized is returned when a route needs a principal (or a stored
// provider token) and the request has none.
func Unauthorized(message string) *AppError {
	return &AppError{
		Err:     ErrUnauthorized,
		Message: message,
	}
}

// CredentialExpired reports a credential whose exp claim is at or before now.
func CredentialExpired() *AppError {
	return &AppError{
		Err:     ErrCredentialExpired,
		Message: "credential expired",
	}
}

// CredentialInvalid covers both bad signatures and tokens that cannot be
// parsed. reason is kept for logs; it is not shown to clients.
func CredentialInvalid(reason string) *AppError {
	return &AppError{
		Err:     ErrCredentialInvalid,
		Message: "credential invalid: " + reason,
	}
}

func EmailUnavailable() *AppError {
	return &AppError{
		Err:     ErrEmailUnavailable,
		Message: ErrEmailUnavailable.Error(),
		Field:   "email",
	}
}

func MissingTreeSha() *AppError {
	return &AppError{
		Err:     ErrMissingTreeSha,
		Message: "Tree SHA missing in branch commit.",
	}
}

// Gateway wraps any failure of a source-control call. The resulting message
// is "<action>: <cause>", e.g. "Failed to fetch repo tree: status 404".
//
// The cause itself is not reachable through Unwrap. The one exception is
// ErrMissingTreeSha, which stays matchable next to ErrGateway.
func Gateway(action string, cause error) *AppError {
	kind := ErrGateway
	if errors.Is(cause, ErrMissingTreeSha) {
		kind = errors.Join(ErrGateway, ErrMissingTreeSha)
	}
	return &AppError{
		Err:     kind,
		Message: fmt.Sprintf("%s: %s", action, cause.Error()),
	}
}
