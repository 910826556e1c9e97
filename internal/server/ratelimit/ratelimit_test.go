package ratelimit

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

// fakeClock is a settable time source.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newTestLimiter(config *Config) (*Limiter, *fakeClock) {
	clock := &fakeClock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	l := NewLimiter(config)
	l.now = clock.now
	return l, clock
}

func TestTokenBucket_TakeAndRefill(t *testing.T) {
	start := time.Now()
	bucket := newTokenBucket(10, 1.0, start) // 10 tokens, 1 token per second

	for i := 0; i < 10; i++ {
		if ok, _, _ := bucket.take(start); !ok {
			t.Errorf("Expected request %d to be allowed", i+1)
		}
	}
	if ok, _, _ := bucket.take(start); ok {
		t.Error("Expected 11th request to be denied")
	}

	ok, remaining, reset := bucket.take(start.Add(1100 * time.Millisecond))
	if !ok {
		t.Error("Expected request to be allowed after refill")
	}
	if remaining != 0 {
		t.Errorf("Expected 0 remaining, got %d", remaining)
	}
	if !reset.After(start) {
		t.Error("Reset time should be in the future")
	}
}

func TestLimiter_Allow(t *testing.T) {
	limiter, _ := newTestLimiter(&Config{Enabled: true, DefaultLimit: 10, DefaultWindow: time.Minute})
	defer limiter.Stop()

	for i := 0; i < 10; i++ {
		allowed, info := limiter.Allow("127.0.0.1", "/api/sessions", "GET")
		if !allowed {
			t.Errorf("Expected request %d to be allowed", i+1)
		}
		if info.Limit != 10 {
			t.Errorf("Expected limit 10, got %d", info.Limit)
		}
		if info.Remaining != 9-i {
			t.Errorf("Expected remaining %d, got %d", 9-i, info.Remaining)
		}
	}

	allowed, info := limiter.Allow("127.0.0.1", "/api/sessions", "GET")
	if allowed {
		t.Error("Expected 11th request to be denied")
	}
	if info.RetryAfter != 6*time.Second {
		t.Errorf("Expected retry after 6s, got %v", info.RetryAfter)
	}

	// Other clients have their own bucket
	if allowed, _ := limiter.Allow("10.0.0.1", "/api/sessions", "GET"); !allowed {
		t.Error("Expected a different client to be allowed")
	}
}

func TestLimiter_RefillsOverTime(t *testing.T) {
	limiter, clock := newTestLimiter(&Config{Enabled: true, DefaultLimit: 2, DefaultWindow: time.Minute})
	defer limiter.Stop()

	limiter.Allow("c", "/x", "GET")
	limiter.Allow("c", "/x", "GET")
	if allowed, _ := limiter.Allow("c", "/x", "GET"); allowed {
		t.Fatal("Expected bucket to be empty")
	}

	clock.advance(31 * time.Second)
	if allowed, _ := limiter.Allow("c", "/x", "GET"); !allowed {
		t.Error("Expected one token after half a window")
	}
}

func TestLimiter_WhitelistAndBlacklist(t *testing.T) {
	limiter, _ := newTestLimiter(&Config{
		Enabled:       true,
		DefaultLimit:  1,
		DefaultWindow: time.Minute,
		Whitelist:     map[string]bool{"1.1.1.1": true},
		Blacklist:     map[string]bool{"6.6.6.6": true},
	})
	defer limiter.Stop()

	for i := 0; i < 5; i++ {
		if allowed, _ := limiter.Allow("1.1.1.1", "/api/sessions", "GET"); !allowed {
			t.Errorf("Expected whitelisted request %d to be allowed", i+1)
		}
	}
	if allowed, _ := limiter.Allow("6.6.6.6", "/api/sessions", "GET"); allowed {
		t.Error("Expected blacklisted client to be denied")
	}
}

func TestLimiter_Disabled(t *testing.T) {
	limiter, _ := newTestLimiter(&Config{Enabled: false, DefaultLimit: 1})
	defer limiter.Stop()

	for i := 0; i < 5; i++ {
		if allowed, _ := limiter.Allow("c", "/api/sessions", "GET"); !allowed {
			t.Errorf("Expected request %d to be allowed when disabled", i+1)
		}
	}
}

func TestLimiter_EndpointBucketSharedAcrossIDs(t *testing.T) {
	limiter, _ := newTestLimiter(&Config{
		Enabled:         true,
		DefaultLimit:    100,
		DefaultWindow:   time.Minute,
		EndpointConfigs: DefaultEndpointConfigs(10, 20),
	})
	defer limiter.Stop()

	// llmPerHour 10 gives a burst of 1
	if allowed, info := limiter.Allow("c", "/api/assessments/a/analyze", "POST"); !allowed || info.Limit != 10 {
		t.Fatalf("Expected first analyze to be allowed with limit 10, got %v %d", allowed, info.Limit)
	}
	if allowed, _ := limiter.Allow("c", "/api/assessments/b/analyze", "POST"); allowed {
		t.Error("Expected a second analyze on another assessment to share the bucket")
	}
	if allowed, info := limiter.Allow("c", "/api/assessments/b", "GET"); !allowed || info.Limit != 100 {
		t.Error("Expected reads to fall back to the default limit")
	}
}

func TestLimiter_HealthUnlimited(t *testing.T) {
	limiter, _ := newTestLimiter(&Config{Enabled: true, DefaultLimit: 1, DefaultWindow: time.Minute})
	defer limiter.Stop()

	for i := 0; i < 5; i++ {
		if allowed, _ := limiter.Allow("c", "/health", "GET"); !allowed {
			t.Errorf("Expected health check %d to be allowed", i+1)
		}
	}
}

func TestLimiter_Concurrent(t *testing.T) {
	limiter, _ := newTestLimiter(&Config{Enabled: true, DefaultLimit: 50, DefaultWindow: time.Hour})
	defer limiter.Stop()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := limiter.Allow("c", "/api/sessions", "GET"); ok {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if allowed != 50 {
		t.Errorf("Expected exactly 50 allowed requests, got %d", allowed)
	}
}

func TestLimiter_Sweep(t *testing.T) {
	limiter, clock := newTestLimiter(&Config{Enabled: true, DefaultLimit: 5, DefaultWindow: time.Minute, IdleTTL: time.Hour})
	defer limiter.Stop()

	for i := 0; i < 3; i++ {
		limiter.Allow(fmt.Sprintf("client-%d", i), "/api/sessions", "GET")
	}
	if limiter.size() != 3 {
		t.Fatalf("Expected 3 buckets, got %d", limiter.size())
	}

	clock.advance(30 * time.Minute)
	limiter.Allow("client-0", "/api/sessions", "GET")
	clock.advance(45 * time.Minute)
	limiter.sweep()

	if limiter.size() != 1 {
		t.Errorf("Expected only the recently used bucket to remain, got %d", limiter.size())
	}
}

func TestLimiter_StopTwice(t *testing.T) {
	limiter := NewLimiter(&Config{Enabled: true, DefaultLimit: 1, DefaultWindow: time.Minute, CleanupInterval: time.Millisecond})
	limiter.Stop()
	limiter.Stop()
}

func TestNewLimiter_NilConfig(t *testing.T) {
	limiter := NewLimiter(nil)
	defer limiter.Stop()

	if allowed, info := limiter.Allow("c", "/api/sessions", "GET"); !allowed || info.Limit != 1000 {
		t.Errorf("Expected default limit 1000, got %v %d", allowed, info.Limit)
	}
}

func TestMatchEndpoint(t *testing.T) {
	configs := []EndpointConfig{
		{Pattern: "/api/assessments/*/analyze", Method: "POST", Limit: 1},
		{Pattern: "/api/assessments/", Method: "POST", Limit: 2},
		{Pattern: "/api/", Method: "POST", Limit: 3},
		{Pattern: "/auth/login", Method: "POST", Limit: 4},
	}

	tests := []struct {
		path   string
		method string
		want   int // -1 for no match
	}{
		{"/api/assessments/abc/analyze", "POST", 1},
		{"/api/assessments/abc/stages/core", "POST", 2},
		{"/api/assessments//analyze", "POST", 2},
		{"/api/session", "POST", 3},
		{"/auth/login", "POST", 4},
		{"/auth/login", "GET", -1},
		{"/health", "GET", 0},
		{"/other", "POST", -1},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			got := MatchEndpoint(tt.path, tt.method, configs)
			if tt.want < 0 {
				if got != nil {
					t.Errorf("Expected no match, got %+v", got)
				}
				return
			}
			if got == nil || got.Limit != tt.want {
				t.Errorf("Expected limit %d, got %+v", tt.want, got)
			}
		})
	}
}
