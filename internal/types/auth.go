package types

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// validate is shared; validator instances cache struct metadata and are safe
// for concurrent use.
var validate = validator.New(validator.WithRequiredStructEnabled())

// NormalizeEmail trims and lowercases an address. Emails are stored and
// compared in this form.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// CreateUserRequest is the body of a registration.
type CreateUserRequest struct {
	Username string `json:"username" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

// Normalize trims the username and normalizes the email in place.
func (r *CreateUserRequest) Normalize() {
	r.Username = strings.TrimSpace(r.Username)
	r.Email = NormalizeEmail(r.Email)
}

// Validate checks the request after normalizing it.
func (r *CreateUserRequest) Validate() error {
	r.Normalize()
	return validate.Struct(r)
}

// LoginRequest is the body of a login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Validate checks the request after normalizing the email.
func (r *LoginRequest) Validate() error {
	r.Email = NormalizeEmail(r.Email)
	return validate.Struct(r)
}

// UpdatePasswordRequest changes the caller's password.
type UpdatePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=8"`
}

// User is the public profile returned by the auth endpoints.
type User struct {
	ID        uuid.UUID `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// LoginResponse carries the profile and the bearer token.
type LoginResponse struct {
	User  *User  `json:"user"`
	Token string `json:"token"`
}

// Practice is the per-user context every workflow operation runs under.
// It is created when a token is issued at login, travels with each
// authenticated request, and is destroyed at logout when the token is
// revoked and the user's open assessments are dropped.
type Practice struct {
	UserID   uuid.UUID
	Email    string
	Username string
	TokenID  string
}
