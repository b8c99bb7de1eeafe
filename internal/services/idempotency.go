package services

import (
	"context"
	"sync"
	"time"

	"github.com/chachabrian/shupool-backend/internal/models"
)

// IdempotencyStore records which request key produced which result.
type IdempotencyStore interface {
	// Begin claims key. If a previous request under key has finished, its
	// result is returned with done set. A claim held by a request still in
	// flight yields models.ErrRequestInProgress.
	Begin(ctx context.Context, key string) (result string, done bool, err error)
	Complete(ctx context.Context, key, result string) error
	// Abort drops a claim so the request can be retried.
	Abort(ctx context.Context, key string) error
}

type memoryEntry struct {
	value   string
	expires time.Time
}

// MemoryIdempotencyStore is the single-process IdempotencyStore used when
// Redis is not configured. Expired keys are swept from Begin at most once
// per ttl.
type MemoryIdempotencyStore struct {
	mu        sync.Mutex
	ttl       time.Duration
	entries   map[string]memoryEntry
	nextSweep time.Time
	now       func() time.Time
}

func NewMemoryIdempotencyStore(ttl time.Duration) *MemoryIdempotencyStore {
	return &MemoryIdempotencyStore{ttl: ttl, entries: make(map[string]memoryEntry), now: time.Now}
}

func (s *MemoryIdempotencyStore) Begin(ctx context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	if !now.Before(s.nextSweep) {
		s.sweep(now)
	}
	if e, ok := s.entries[key]; ok && now.Before(e.expires) {
		if e.value == pendingMarker {
			return "", false, models.ErrRequestInProgress
		}
		return e.value, true, nil
	}
	s.entries[key] = memoryEntry{value: pendingMarker, expires: now.Add(s.ttl)}
	return "", false, nil
}

func (s *MemoryIdempotencyStore) sweep(now time.Time) {
	for key, e := range s.entries {
		if !now.Before(e.expires) {
			delete(s.entries, key)
		}
	}
	s.nextSweep = now.Add(s.ttl)
}

func (s *MemoryIdempotencyStore) Complete(ctx context.Context, key, result string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = memoryEntry{value: result, expires: s.now().Add(s.ttl)}
	return nil
}

func (s *MemoryIdempotencyStore) Abort(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}
