package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/contentgen/contentgen-backend/pkg/kv"
)

type entry struct {
	value     []byte
	hash      map[string][]byte
	expiresAt time.Time // zero means no expiry
}

func (e *entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// Store is an in-memory kv.Store with TTL support and a background
// janitor that evicts expired keys.
type Store struct {
	mu      sync.RWMutex
	entries map[string]*entry
	done    chan struct{}
	closed  sync.Once
}

func New(janitorInterval time.Duration) *Store {
	s := &Store{
		entries: make(map[string]*entry),
		done:    make(chan struct{}),
	}
	if janitorInterval > 0 {
		go s.janitor(janitorInterval)
	}
	return s
}

func (s *Store) janitor(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			now := time.Now()
			s.mu.Lock()
			for k, e := range s.entries {
				if e.expired(now) {
					delete(s.entries, k)
				}
			}
			s.mu.Unlock()
		}
	}
}

// live returns the entry for key if present and not expired.
// Callers must hold at least the read lock.
func (s *Store) live(key string) (*entry, bool) {
	e, ok := s.entries[key]
	if !ok || e.expired(time.Now()) {
		return nil, false
	}
	return e, true
}

func (s *Store) Set(ctx context.Context, key string, value []byte, ttl ...time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := &entry{value: append([]byte(nil), value...)}
	if len(ttl) > 0 && ttl[0] > 0 {
		e.expiresAt = time.Now().Add(ttl[0])
	}
	s.entries[key] = e
	return nil
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.live(key)
	if !ok || e.value == nil {
		return nil, kv.ErrNotFound
	}
	return append([]byte(nil), e.value...), nil
}

func (s *Store) Del(ctx context.Context, keys ...string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for _, key := range keys {
		if _, ok := s.live(key); ok {
			n++
		}
		delete(s.entries, key)
	}
	return n, nil
}

func (s *Store) Exists(ctx context.Context, keys ...string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for _, key := range keys {
		if _, ok := s.live(key); ok {
			n++
		}
	}
	return n, nil
}

func (s *Store) Expire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.live(key)
	if !ok {
		return false, nil
	}
	e.expiresAt = time.Now().Add(ttl)
	return true, nil
}

func (s *Store) TTL(ctx context.Context, key string) (time.Duration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.live(key)
	if !ok {
		return -2 * time.Second, nil // mirrors the Redis convention for missing keys
	}
	if e.expiresAt.IsZero() {
		return -1 * time.Second, nil
	}
	return time.Until(e.expiresAt), nil
}

func (s *Store) Scan(ctx context.Context, prefix string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := time.Now()
	var keys []string
	for k, e := range s.entries {
		if e.expired(now) {
			continue
		}
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

func (s *Store) IncrBy(ctx context.Context, key string, n int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var current int64
	if e, ok := s.live(key); ok && e.value != nil {
		parsed, err := parseInt(e.value)
		if err != nil {
			return 0, err
		}
		current = parsed
	}
	current += n
	s.entries[key] = &entry{value: formatInt(current)}
	return current, nil
}

func (s *Store) HSet(ctx context.Context, key string, field string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.live(key)
	if !ok {
		e = &entry{hash: make(map[string][]byte)}
		s.entries[key] = e
	}
	if e.hash == nil {
		e.hash = make(map[string][]byte)
	}
	e.hash[field] = append([]byte(nil), value...)
	return nil
}

func (s *Store) HGet(ctx context.Context, key string, field string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.live(key)
	if !ok || e.hash == nil {
		return nil, kv.ErrNotFound
	}
	v, ok := e.hash[field]
	if !ok {
		return nil, kv.ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

func (s *Store) HDel(ctx context.Context, key string, fields ...string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.live(key)
	if !ok || e.hash == nil {
		return 0, nil
	}
	var n int64
	for _, f := range fields {
		if _, ok := e.hash[f]; ok {
			delete(e.hash, f)
			n++
		}
	}
	return n, nil
}

func (s *Store) HGetAll(ctx context.Context, key string) (map[string][]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string][]byte)
	e, ok := s.live(key)
	if !ok || e.hash == nil {
		return out, nil
	}
	for f, v := range e.hash {
		out[f] = append([]byte(nil), v...)
	}
	return out, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return nil
}

func (s *Store) Close() error {
	s.closed.Do(func() { close(s.done) })
	return nil
}
