package db

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrEmailTaken is returned by CreateUser when the email already belongs to a
// registered account.
var ErrEmailTaken = errors.New("email already registered")

// ErrSessionExists is returned by AppendSession when the history already
// holds a record with the same id.
var ErrSessionExists = errors.New("session already recorded")

// User represents a user account row
type User struct {
	ID           uuid.UUID `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-" db:"password_hash"` // Never serialize to JSON
	PasswordSet  bool      `json:"password_set" db:"password_set"`
	AvgScore     float64   `json:"avg_score"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
