// Package redis adapts a go-redis client to the store contract.
package redis

import (
	"context"
	"errors"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/tandem-cache/tandem/store"
)

var ErrNilClient = errors.New("redis store: nil client")

const (
	defaultScanCount = 256
	delBatch         = 128
)

type Config struct {
	Client      goredis.UniversalClient
	CloseClient bool // set true only if this store exclusively owns the client

	// ScanCount is the COUNT hint passed to SCAN during DeletePattern.
	// 0 selects defaultScanCount.
	ScanCount int64
}

type Store struct {
	rdb         goredis.UniversalClient
	closeClient bool
	scanCount   int64
}

var (
	_ store.Store   = (*Store)(nil)
	_ store.Counter = (*Store)(nil)
)

func New(cfg Config) (*Store, error) {
	if cfg.Client == nil {
		return nil, ErrNilClient
	}
	scanCount := cfg.ScanCount
	if scanCount <= 0 {
		scanCount = defaultScanCount
	}
	return &Store{rdb: cfg.Client, closeClient: cfg.CloseClient, scanCount: scanCount}, nil
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := s.rdb.Get(ctx, key).Bytes()
	if err == goredis.Nil {
		return nil, false, nil // miss
	}
	if err != nil {
		return nil, false, classify("get", err)
	}
	return b, true, nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = 0 // treat non-positive TTLs as "no expiry" per store contract
	}
	if err := s.rdb.Set(ctx, key, value, ttl).Err(); err != nil {
		return classify("set", err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.rdb.Del(ctx, key).Err(); err != nil {
		return classify("delete", err)
	}
	return nil
}

// DeletePattern walks the keyspace with SCAN and removes matches in batches,
// so large pattern clears never block the server the way KEYS would.
func (s *Store) DeletePattern(ctx context.Context, pattern string) (int, error) {
	removed := 0
	batch := make([]string, 0, delBatch)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := s.rdb.Del(ctx, batch...).Result()
		removed += int(n)
		batch = batch[:0]
		return err
	}

	iter := s.rdb.Scan(ctx, 0, pattern, s.scanCount).Iterator()
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) >= delBatch {
			if err := flush(); err != nil {
				return removed, classify("delete_pattern", err)
			}
		}
	}
	if err := iter.Err(); err != nil {
		return removed, classify("delete_pattern", err)
	}
	if err := flush(); err != nil {
		return removed, classify("delete_pattern", err)
	}
	return removed, nil
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.rdb.Ping(ctx).Err(); err != nil {
		return classify("ping", err)
	}
	return nil
}

// Len reports the size of the selected database, not just keys this cache
// wrote. Callers that share a database should treat it as an upper bound.
func (s *Store) Len(ctx context.Context) (int, error) {
	n, err := s.rdb.DBSize(ctx).Result()
	if err != nil {
		return 0, classify("len", err)
	}
	return int(n), nil
}

// Close releases the underlying redis client only when this store owns it.
// Safe to call multiple times; repeated calls become no-ops.
func (s *Store) Close(context.Context) error {
	if s.closeClient {
		if err := s.rdb.Close(); err != nil && !errors.Is(err, goredis.ErrClosed) {
			return err
		}
	}
	return nil
}

// classify separates server replies from transport failures: anything the
// server actually said (WRONGTYPE, OOM, ...) is a BackendError, everything
// else (dial, timeout, closed pool) is a ConnectionError.
func classify(op string, err error) error {
	var rerr goredis.Error
	if errors.As(err, &rerr) {
		return &store.BackendError{Op: op, Store: "redis", Err: err}
	}
	return &store.ConnectionError{Op: op, Store: "redis", Err: err}
}
