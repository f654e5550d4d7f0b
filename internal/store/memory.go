package store

import (
	"context"
	"sync"
	"time"
)

type entry struct {
	count   int64
	value   []byte
	expires time.Time
}

func (e entry) expired(now time.Time) bool {
	return !e.expires.IsZero() && !now.Before(e.expires)
}

// sweepInterval bounds how often writes scan the maps for expired entries.
const sweepInterval = time.Minute

// MemoryStore implements [Store] in process memory.
//
// Expired entries are dropped on access, and writes sweep both maps at most once per [sweepInterval].
type MemoryStore struct {
	mu        sync.Mutex
	counters  map[string]entry
	values    map[string]entry
	now       func() time.Time
	nextSweep time.Time
}

// NewMemoryStore creates an empty [MemoryStore] on the wall clock.
func NewMemoryStore() *MemoryStore {
	return NewMemoryStoreWithClock(time.Now)
}

// NewMemoryStoreWithClock creates an empty [MemoryStore] that reads time from now.
func NewMemoryStoreWithClock(now func() time.Time) *MemoryStore {
	return &MemoryStore{
		counters:  make(map[string]entry),
		values:    make(map[string]entry),
		now:       now,
		nextSweep: now().Add(sweepInterval),
	}
}

// sweep deletes expired entries once the sweep deadline has passed. Callers hold mu.
func (s *MemoryStore) sweep(now time.Time) {
	if now.Before(s.nextSweep) {
		return
	}
	for k, e := range s.counters {
		if e.expired(now) {
			delete(s.counters, k)
		}
	}
	for k, e := range s.values {
		if e.expired(now) {
			delete(s.values, k)
		}
	}
	s.nextSweep = now.Add(sweepInterval)
}

func (s *MemoryStore) Incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.sweep(now)

	e, ok := s.counters[key]
	if !ok || e.expired(now) {
		e = entry{expires: now.Add(window)}
	}
	e.count++
	s.counters[key] = e

	return e.count, nil
}

func (s *MemoryStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.values[key]
	if !ok {
		return nil, false, nil
	}
	if e.expired(s.now()) {
		delete(s.values, key)
		return nil, false, nil
	}

	out := make([]byte, len(e.value))
	copy(out, e.value)
	return out, true, nil
}

// Set stores a copy of value. A non-positive ttl keeps the entry until overwritten.
func (s *MemoryStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.sweep(now)

	e := entry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		e.expires = now.Add(ttl)
	}
	s.values[key] = e

	return nil
}

func (s *MemoryStore) Ping(context.Context) error { return nil }
func (s *MemoryStore) Close() error               { return nil }
