package llm

import (
	"context"
	"errors"
	"log"
	"time"
)

// RetryPolicy controls how rate-limited calls are retried.
type RetryPolicy struct {
	// MaxRetries is the number of extra attempts after the first one.
	MaxRetries int
	// InitialDelay is the wait before the first retry. It doubles after each retry.
	InitialDelay time.Duration
	// Sleep waits for d or until ctx is done. Tests replace it to avoid real waits.
	Sleep func(ctx context.Context, d time.Duration) error
}

// DefaultRetryPolicy returns 3 retries starting at 1s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:   3,
		InitialDelay: time.Second,
		Sleep:        sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// RetryingClient wraps a Client and retries calls that fail with ErrRateLimited.
// Any other error is returned immediately.
type RetryingClient struct {
	Client
	policy RetryPolicy
}

// WithRetry wraps client with the given policy.
func WithRetry(client Client, policy RetryPolicy) *RetryingClient {
	if policy.Sleep == nil {
		policy.Sleep = sleepContext
	}
	if policy.InitialDelay <= 0 {
		policy.InitialDelay = time.Second
	}
	return &RetryingClient{Client: client, policy: policy}
}

// GenerateContent generates text, retrying on rate limits
func (c *RetryingClient) GenerateContent(ctx context.Context, prompt string, tier ModelTier) (string, error) {
	return c.do(ctx, func() (string, error) {
		return c.Client.GenerateContent(ctx, prompt, tier)
	})
}

// GenerateJSON generates JSON, retrying on rate limits
func (c *RetryingClient) GenerateJSON(ctx context.Context, prompt string, tier ModelTier) (string, error) {
	return c.do(ctx, func() (string, error) {
		return c.Client.GenerateJSON(ctx, prompt, tier)
	})
}

func (c *RetryingClient) do(ctx context.Context, call func() (string, error)) (string, error) {
	delay := c.policy.InitialDelay
	for attempt := 0; ; attempt++ {
		text, err := call()
		if err == nil {
			return text, nil
		}
		if !errors.Is(err, ErrRateLimited) || attempt >= c.policy.MaxRetries {
			return "", err
		}

		log.Printf("[llm] rate limited, retry %d/%d in %s", attempt+1, c.policy.MaxRetries, delay)
		if sleepErr := c.policy.Sleep(ctx, delay); sleepErr != nil {
			return "", sleepErr
		}
		delay *= 2
	}
}
