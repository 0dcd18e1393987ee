// Package memory provides the default in-process fallback store: a bounded,
// TTL-expiring byte map safe for concurrent use from any caller.
package memory

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/tandem-cache/tandem/internal/globber"
	"github.com/tandem-cache/tandem/store"
)

// DefaultCapacity bounds the store when Config.Capacity is 0.
const DefaultCapacity = 1000

type Config struct {
	// Capacity is the maximum number of entries held. When full, the
	// oldest-inserted entry is silently dropped to make room (overwriting an
	// existing key keeps its original slot). 0 selects DefaultCapacity;
	// negative means unbounded.
	Capacity int

	// SweepInterval enables a background goroutine that purges expired
	// entries. 0 disables it; expired entries still evict lazily on access.
	SweepInterval time.Duration
}

type entry struct {
	key   string
	value []byte
	exp   time.Time // zero => no expiry
	elem  *list.Element
}

func (e *entry) expired(now time.Time) bool {
	return !e.exp.IsZero() && !e.exp.After(now)
}

type Store struct {
	mu    sync.RWMutex
	m     map[string]*entry
	order *list.List // insertion order; front = oldest
	cap   int

	now func() time.Time

	ticker    *time.Ticker
	stopCh    chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

var (
	_ store.Store   = (*Store)(nil)
	_ store.Counter = (*Store)(nil)
)

func New(cfg Config) *Store {
	capacity := cfg.Capacity
	if capacity == 0 {
		capacity = DefaultCapacity
	}
	s := &Store{
		m:     make(map[string]*entry),
		order: list.New(),
		cap:   capacity,
		now:   time.Now,
	}
	if cfg.SweepInterval > 0 {
		s.ticker = time.NewTicker(cfg.SweepInterval)
		s.stopCh = make(chan struct{})
		s.wg.Add(1)
		go s.sweepLoop()
	}
	return s
}

// Get returns the stored bytes. Expired entries are evicted on access and
// reported as a plain miss.
func (s *Store) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	e, ok := s.m[key]
	var (
		val     []byte
		expired bool
	)
	if ok {
		if e.expired(s.now()) {
			expired = true
		} else {
			val = e.value
		}
	}
	s.mu.RUnlock()

	if !ok {
		return nil, false, nil
	}
	if expired {
		s.mu.Lock()
		if cur, still := s.m[key]; still && cur == e && cur.expired(s.now()) {
			s.remove(cur)
		}
		s.mu.Unlock()
		return nil, false, nil
	}
	return val, true, nil
}

// Set overwrites unconditionally and recomputes the expiry as now+ttl
// (ttl <= 0 stores without expiry).
func (s *Store) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	var exp time.Time
	if ttl > 0 {
		exp = s.now().Add(ttl)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.m[key]; ok {
		e.value = value
		e.exp = exp
		return nil
	}
	for s.cap > 0 && len(s.m) >= s.cap {
		oldest := s.order.Front()
		if oldest == nil {
			break
		}
		s.remove(oldest.Value.(*entry))
	}
	e := &entry{key: key, value: value, exp: exp}
	e.elem = s.order.PushBack(e)
	s.m[key] = e
	return nil
}

func (s *Store) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	if e, ok := s.m[key]; ok {
		s.remove(e)
	}
	s.mu.Unlock()
	return nil
}

// DeletePattern snapshots the matching key set before deleting, so
// enumeration never observes a half-updated map.
func (s *Store) DeletePattern(_ context.Context, pattern string) (int, error) {
	s.mu.RLock()
	keys := make([]string, 0, len(s.m))
	for k := range s.m {
		if globber.Match(pattern, k) {
			keys = append(keys, k)
		}
	}
	s.mu.RUnlock()

	if len(keys) == 0 {
		return 0, nil
	}
	removed := 0
	s.mu.Lock()
	for _, k := range keys {
		if e, ok := s.m[k]; ok {
			s.remove(e)
			removed++
		}
	}
	s.mu.Unlock()
	return removed, nil
}

// Ping always succeeds: the store lives in-process.
func (s *Store) Ping(context.Context) error { return nil }

// Len reports how many entries are currently held, expired-but-unswept
// entries included.
func (s *Store) Len(context.Context) (int, error) {
	s.mu.RLock()
	n := len(s.m)
	s.mu.RUnlock()
	return n, nil
}

// Close stops the background sweeper. Safe to call multiple times.
func (s *Store) Close(context.Context) error {
	s.closeOnce.Do(func() {
		if s.stopCh != nil {
			close(s.stopCh)
			s.ticker.Stop()
			s.wg.Wait()
		}
	})
	return nil
}

// remove must be called with mu held for writing.
func (s *Store) remove(e *entry) {
	delete(s.m, e.key)
	s.order.Remove(e.elem)
}

func (s *Store) sweepLoop() {
	defer s.wg.Done()
	for {
		select {
		case <-s.ticker.C:
			s.sweep()
		case <-s.stopCh:
			return
		}
	}
}

func (s *Store) sweep() {
	now := s.now()
	s.mu.Lock()
	for _, e := range s.m {
		if e.expired(now) {
			s.remove(e)
		}
	}
	s.mu.Unlock()
}
