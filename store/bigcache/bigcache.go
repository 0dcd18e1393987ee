// Package bigcache adapts allegro/bigcache as a local store for workloads that
// want GC-friendly storage of many entries with a shared lifetime.
package bigcache

import (
	"context"
	"time"

	bc "github.com/allegro/bigcache/v3"

	"github.com/tandem-cache/tandem/internal/globber"
	"github.com/tandem-cache/tandem/store"
)

type Config struct {
	// LifeWindow is the shared lifetime of all entries; BigCache has no
	// per-entry TTL, so per-write TTLs are ignored. 0 selects 10 minutes.
	LifeWindow         time.Duration
	CleanWindow        time.Duration
	MaxEntriesInWindow int
	MaxEntrySize       int
	HardMaxCacheSizeMB int // ~ memory limit; 0 = unlimited
}

type Store struct {
	c *bc.BigCache
}

var (
	_ store.Store   = (*Store)(nil)
	_ store.Counter = (*Store)(nil)
)

func New(cfg Config) (*Store, error) {
	life := cfg.LifeWindow
	if life <= 0 {
		life = 10 * time.Minute
	}
	conf := bc.DefaultConfig(life)
	if cfg.CleanWindow > 0 {
		conf.CleanWindow = cfg.CleanWindow
	}
	if cfg.MaxEntriesInWindow > 0 {
		conf.MaxEntriesInWindow = cfg.MaxEntriesInWindow
	}
	if cfg.MaxEntrySize > 0 {
		conf.MaxEntrySize = cfg.MaxEntrySize
	}
	if cfg.HardMaxCacheSizeMB > 0 {
		conf.HardMaxCacheSize = cfg.HardMaxCacheSizeMB
	}
	c, err := bc.NewBigCache(conf)
	if err != nil {
		return nil, err
	}
	return &Store{c: c}, nil
}

func (s *Store) Get(_ context.Context, key string) ([]byte, bool, error) {
	b, err := s.c.Get(key)
	if err == bc.ErrEntryNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, &store.BackendError{Op: "get", Store: "bigcache", Err: err}
	}
	return b, true, nil
}

// Set stores under the cache-wide LifeWindow; the ttl argument is ignored.
func (s *Store) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	if err := s.c.Set(key, value); err != nil {
		return &store.BackendError{Op: "set", Store: "bigcache", Err: err}
	}
	return nil
}

func (s *Store) Delete(_ context.Context, key string) error {
	err := s.c.Delete(key)
	if err == nil || err == bc.ErrEntryNotFound {
		return nil
	}
	return &store.BackendError{Op: "delete", Store: "bigcache", Err: err}
}

func (s *Store) DeletePattern(_ context.Context, pattern string) (int, error) {
	matched := make([]string, 0, 16)
	it := s.c.Iterator()
	for it.SetNext() {
		info, err := it.Value()
		if err != nil {
			continue // entry vanished mid-iteration
		}
		if globber.Match(pattern, info.Key()) {
			matched = append(matched, info.Key())
		}
	}

	removed := 0
	for _, k := range matched {
		switch err := s.c.Delete(k); err {
		case nil:
			removed++
		case bc.ErrEntryNotFound:
		default:
			return removed, &store.BackendError{Op: "delete_pattern", Store: "bigcache", Err: err}
		}
	}
	return removed, nil
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Len(context.Context) (int, error) {
	return s.c.Len(), nil
}

func (s *Store) Close(context.Context) error {
	return s.c.Close()
}
