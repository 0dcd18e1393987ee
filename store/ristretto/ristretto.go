// Package ristretto adapts dgraph-io/ristretto as a local store for workloads
// that want admission-policed, cost-bounded memory instead of plain FIFO.
package ristretto

import (
	"context"
	"errors"
	"sync"
	"time"

	rc "github.com/dgraph-io/ristretto"

	"github.com/tandem-cache/tandem/internal/globber"
	"github.com/tandem-cache/tandem/store"
)

type Config struct {
	NumCounters int64
	MaxCost     int64
	BufferItems int64
	Metrics     bool
}

type Store struct {
	c *rc.Cache

	// Ristretto hashes keys away, so pattern deletion and Len work off this
	// advisory index. Entries evicted or expired by ristretto itself linger
	// here until the next Delete/DeletePattern touches them; treat Len as an
	// upper bound.
	mu   sync.Mutex
	keys map[string]struct{}
}

var (
	_ store.Store   = (*Store)(nil)
	_ store.Counter = (*Store)(nil)
)

func New(cfg Config) (*Store, error) {
	if cfg.NumCounters <= 0 || cfg.MaxCost <= 0 || cfg.BufferItems <= 0 {
		return nil, errors.New("ristretto: invalid config")
	}
	c, err := rc.NewCache(&rc.Config{
		NumCounters: cfg.NumCounters,
		MaxCost:     cfg.MaxCost,
		BufferItems: cfg.BufferItems,
		Metrics:     cfg.Metrics,
	})
	if err != nil {
		return nil, err
	}
	return &Store{c: c, keys: make(map[string]struct{})}, nil
}

func (s *Store) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := s.c.Get(key)
	if !ok {
		return nil, false, nil
	}
	b, _ := v.([]byte)
	if b == nil {
		// self-heal: drop unexpected entry shape
		s.c.Del(key)
		s.forget(key)
		return nil, false, nil
	}
	return b, true, nil
}

// Set is best-effort: ristretto's admission policy may decline the entry, and
// writes become visible asynchronously. Call Wait when you need visibility.
func (s *Store) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	cost := int64(len(value))
	if cost < 1 {
		cost = 1
	}

	s.mu.Lock()
	s.keys[key] = struct{}{}
	s.mu.Unlock()

	if ttl > 0 {
		s.c.SetWithTTL(key, value, cost, ttl)
	} else {
		s.c.Set(key, value, cost)
	}
	return nil
}

func (s *Store) Delete(_ context.Context, key string) error {
	s.c.Del(key)
	s.forget(key)
	return nil
}

func (s *Store) DeletePattern(_ context.Context, pattern string) (int, error) {
	s.mu.Lock()
	matched := make([]string, 0, len(s.keys))
	for k := range s.keys {
		if globber.Match(pattern, k) {
			matched = append(matched, k)
			delete(s.keys, k)
		}
	}
	s.mu.Unlock()

	for _, k := range matched {
		s.c.Del(k)
	}
	return len(matched), nil
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Len(context.Context) (int, error) {
	s.mu.Lock()
	n := len(s.keys)
	s.mu.Unlock()
	return n, nil
}

func (s *Store) Close(context.Context) error {
	s.c.Wait()
	s.c.Close()
	return nil
}

// Wait blocks until buffered writes have been applied. Mostly useful in tests.
func (s *Store) Wait() { s.c.Wait() }

// Metrics exposes ristretto's counters when Config.Metrics was set.
func (s *Store) Metrics() *rc.Metrics { return s.c.Metrics }

func (s *Store) forget(key string) {
	s.mu.Lock()
	delete(s.keys, key)
	s.mu.Unlock()
}
