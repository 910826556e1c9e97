package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"golang.org/x/crypto/bcrypt"
)

// bcrypt ignores input past this many bytes.
const maxPasswordBytes = 72

// ErrPasswordTooLong is returned when a password plus pepper exceeds bcrypt's input limit.
var ErrPasswordTooLong = errors.New("password too long")

// ErrPasswordTooShort is returned when a password is below the minimum length.
var ErrPasswordTooShort = errors.New("password too short")

// PasswordConfig holds configuration for password hashing and verification.
type PasswordConfig struct {
	BcryptCost int
	Pepper     string // optional global secret appended before hashing
	MinLength  int
}

// NewPasswordConfig creates a new password configuration from environment variables.
// It reads BCRYPT_COST (default: 12), PASSWORD_MIN_LENGTH (default: 8) and
// optionally PASSWORD_PEPPER.
func NewPasswordConfig() (*PasswordConfig, error) {
	costStr := os.Getenv("BCRYPT_COST")
	if costStr == "" {
		costStr = "12" // default
	}

	cost, err := strconv.Atoi(costStr)
	if err != nil {
		return nil, fmt.Errorf("invalid BCRYPT_COST: %v", err)
	}

	config := &PasswordConfig{
		BcryptCost: cost,
		Pepper:     os.Getenv("PASSWORD_PEPPER"), // empty if not set
		MinLength:  getEnvInt("PASSWORD_MIN_LENGTH", 8),
	}

	if err := config.normalize(); err != nil {
		return nil, err
	}

	return config, nil
}

// normalize validates the configuration.
func (c *PasswordConfig) normalize() error {
	if c.BcryptCost < 10 || c.BcryptCost > 14 {
		return fmt.Errorf("bcrypt cost out of range: %d (must be 10-14)", c.BcryptCost)
	}
	if c.MinLength < 1 {
		return fmt.Errorf("password min length must be positive, got: %d", c.MinLength)
	}
	if len(c.Pepper) >= maxPasswordBytes-c.MinLength {
		return fmt.Errorf("PASSWORD_PEPPER too long: %d bytes", len(c.Pepper))
	}
	return nil
}

// peppered returns the bytes that are actually hashed.
func (c *PasswordConfig) peppered(pw string) ([]byte, error) {
	password := pw + c.Pepper
	if len(password) > maxPasswordBytes {
		return nil, ErrPasswordTooLong
	}
	return []byte(password), nil
}

// CheckLength applies the length policy without hashing.
func (c *PasswordConfig) CheckLength(pw string) error {
	if len(pw) < c.MinLength {
		return fmt.Errorf("%w: must be at least %d characters", ErrPasswordTooShort, c.MinLength)
	}
	if len(pw)+len(c.Pepper) > maxPasswordBytes {
		return ErrPasswordTooLong
	}
	return nil
}

// HashPassword hashes a password using bcrypt (with optional pepper).
func (c *PasswordConfig) HashPassword(pw string) (string, error) {
	if err := c.CheckLength(pw); err != nil {
		return "", err
	}
	password, err := c.peppered(pw)
	if err != nil {
		return "", err
	}

	hash, err := bcrypt.GenerateFromPassword(password, c.BcryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}

	return string(hash), nil
}

// VerifyPassword verifies a password against a stored hash (with optional pepper).
func (c *PasswordConfig) VerifyPassword(pw, storedHash string) bool {
	password, err := c.peppered(pw)
	if err != nil {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(storedHash), password) == nil
}
