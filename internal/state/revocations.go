package state

import (
	"context"
	"errors"
	"time"
)

// Revocations tracks logged-out token ids until the tokens would have expired.
type Revocations struct {
	store Store
	now   func() time.Time
}

// NewRevocations wraps store.
func NewRevocations(store Store) *Revocations {
	return &Revocations{store: store, now: time.Now}
}

func revokedKey(jti string) string { return "revoked:" + jti }

// Revoke blocks jti until expiresAt. Tokens already past expiry are ignored.
func (r *Revocations) Revoke(ctx context.Context, jti string, expiresAt time.Time) error {
	if jti == "" {
		return nil
	}
	ttl := expiresAt.Sub(r.now())
	if ttl <= 0 {
		return nil
	}
	return r.store.Set(ctx, revokedKey(jti), []byte("1"), ttl)
}

// IsRevoked reports whether jti was revoked.
func (r *Revocations) IsRevoked(ctx context.Context, jti string) (bool, error) {
	if jti == "" {
		return false, nil
	}
	_, err := r.store.Get(ctx, revokedKey(jti))
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
