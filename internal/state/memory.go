package state

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	value     []byte
	members   map[string]struct{}
	expiresAt time.Time
}

func (e *memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

type memoryStore struct {
	items       map[string]*memoryEntry
	mutex       sync.Mutex
	cleanupFreq time.Duration
	now         func() time.Time
	stop        chan struct{}
	stopOnce    sync.Once
}

// NewMemory builds an in-process store. Expired keys are swept periodically.
func NewMemory(cfg Config) Store {
	cleanup := 5 * time.Minute
	if cfg.GCInterval > 0 {
		cleanup = cfg.GCInterval
	}
	s := &memoryStore{
		items:       make(map[string]*memoryEntry),
		cleanupFreq: cleanup,
		now:         time.Now,
		stop:        make(chan struct{}),
	}
	go s.gcLoop()
	return s
}

func (s *memoryStore) gcLoop() {
	ticker := time.NewTicker(s.cleanupFreq)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.sweep()
		case <-s.stop:
			return
		}
	}
}

func (s *memoryStore) sweep() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	now := s.now()
	for k, e := range s.items {
		if e.expired(now) {
			delete(s.items, k)
		}
	}
}

func (s *memoryStore) expiry(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return s.now().Add(ttl)
}

// live returns the entry for key, dropping it if expired. Caller holds the lock.
func (s *memoryStore) live(key string) *memoryEntry {
	e, ok := s.items[key]
	if !ok {
		return nil
	}
	if e.expired(s.now()) {
		delete(s.items, key)
		return nil
	}
	return e
}

func (s *memoryStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	e := s.live(key)
	if e == nil || e.value == nil {
		return nil, ErrNotFound
	}
	return append([]byte(nil), e.value...), nil
}

func (s *memoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.items[key] = &memoryEntry{value: append([]byte(nil), value...), expiresAt: s.expiry(ttl)}
	return nil
}

func (s *memoryStore) SetNX(_ context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.live(key) != nil {
		return false, nil
	}
	s.items[key] = &memoryEntry{value: append([]byte(nil), value...), expiresAt: s.expiry(ttl)}
	return true, nil
}

func (s *memoryStore) Delete(_ context.Context, keys ...string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	for _, k := range keys {
		delete(s.items, k)
	}
	return nil
}

func (s *memoryStore) AddMember(_ context.Context, key, member string, ttl time.Duration) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	e := s.live(key)
	if e == nil {
		e = &memoryEntry{members: make(map[string]struct{})}
		s.items[key] = e
	}
	if e.members == nil {
		e.members = make(map[string]struct{})
	}
	e.members[member] = struct{}{}
	e.expiresAt = s.expiry(ttl)
	return nil
}

func (s *memoryStore) RemoveMember(_ context.Context, key, member string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if e := s.live(key); e != nil {
		delete(e.members, member)
		if len(e.members) == 0 && e.value == nil {
			delete(s.items, key)
		}
	}
	return nil
}

func (s *memoryStore) Members(_ context.Context, key string) ([]string, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	e := s.live(key)
	if e == nil {
		return nil, nil
	}
	out := make([]string, 0, len(e.members))
	for m := range e.members {
		out = append(out, m)
	}
	return out, nil
}

func (s *memoryStore) Close() error {
	s.stopOnce.Do(func() { close(s.stop) })
	return nil
}
