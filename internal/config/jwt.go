package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

const (
	defaultJWTExpirationHours = 24
	defaultJWTIssuer          = "voice-coach"
	minJWTSecretLength        = 16
)

// JWTConfig holds configuration for login token generation and validation.
type JWTConfig struct {
	Secret          string
	ExpirationHours int
	Issuer          string
}

// NewJWTConfig reads JWT_SECRET (required), JWT_EXPIRATION_HOURS (default 24)
// and JWT_ISSUER (default voice-coach).
func NewJWTConfig() (*JWTConfig, error) {
	cfg := &JWTConfig{
		Secret:          os.Getenv("JWT_SECRET"),
		ExpirationHours: defaultJWTExpirationHours,
		Issuer:          os.Getenv("JWT_ISSUER"),
	}
	if cfg.Secret == "" {
		return nil, errors.New("JWT_SECRET is required but not set")
	}
	if raw := os.Getenv("JWT_EXPIRATION_HOURS"); raw != "" {
		hours, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid JWT_EXPIRATION_HOURS %q: %w", raw, err)
		}
		cfg.ExpirationHours = hours
	}
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Expiration returns the token lifetime.
func (c *JWTConfig) Expiration() time.Duration {
	return time.Duration(c.ExpirationHours) * time.Hour
}

func (c *JWTConfig) normalize() error {
	switch {
	case len(c.Secret) < minJWTSecretLength:
		return fmt.Errorf("JWT_SECRET must be at least %d characters", minJWTSecretLength)
	case c.ExpirationHours < 1:
		return fmt.Errorf("JWT_EXPIRATION_HOURS must be at least 1 hour, got: %d", c.ExpirationHours)
	}
	if c.Issuer == "" {
		c.Issuer = defaultJWTIssuer
	}
	return nil
}
