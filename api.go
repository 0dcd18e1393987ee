package tandem

import (
	"context"
	"time"

	c "github.com/tandem-cache/tandem/codec"
	"github.com/tandem-cache/tandem/store"
)

// TTL sentinels accepted by Set and the memoization layer.
const (
	// NoTTL stores the entry without expiry.
	NoTTL time.Duration = 0

	// UseDefaultTTL resolves to Options.DefaultTTL at call time.
	UseDefaultTTL time.Duration = -1
)

// Cache is the high-level, store-agnostic cache API with remote-first reads
// and automatic local failover. Values are (de)serialized by a pluggable Codec.
type Cache interface {
	Enabled() bool
	Close(context.Context) error

	// Single-key operations. Get decodes into dest and reports (false, nil)
	// on a miss - a miss is never an error.
	Get(ctx context.Context, key string, dest any) (bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Delete(ctx context.Context, key string) error

	// ClearPattern removes every entry whose key matches pattern
	// ('*' any run, '?' one byte, '\' escapes) and returns how many entries
	// were removed across stores.
	ClearPattern(ctx context.Context, pattern string) (int, error)

	// State reports current remote connectivity. Local-only caches are
	// permanently StateUnavailable.
	State() ConnectionState

	Stats(ctx context.Context) Stats
}

// Stats is a point-in-time snapshot of cache activity.
type Stats struct {
	Enabled   bool
	State     ConnectionState
	Hits      uint64
	Misses    uint64
	Failovers uint64

	// Entry counts per store; -1 when the store cannot report one.
	LocalEntries  int
	RemoteEntries int
}

// Options tune the cache. Everything is optional: the zero value yields a
// local-only JSON cache.
type Options struct {
	// Remote is the shared backend (typically store/redis). nil runs the
	// cache local-only and State reports StateUnavailable forever.
	Remote store.Store

	// Local is the in-process store every write lands in. nil => bounded
	// memory store (memory.DefaultCapacity entries).
	Local store.Store

	Codec  c.Codec // nil => codec.JSON
	Logger Logger  // if nil, NopLogger is used
	Hooks  Hooks   // if nil, NopHooks is used

	// KeyPrefix namespaces every storage key as "<prefix>:<key>".
	KeyPrefix string

	// DefaultTTL applies when Set receives UseDefaultTTL; 0 => such entries
	// never expire.
	DefaultTTL time.Duration

	FailureThreshold int           // consecutive connection failures before Unavailable; 0 => 3
	ProbeInterval    time.Duration // background reachability probe cadence; 0 => 5s
	ProbeTimeout     time.Duration // per-probe budget; 0 => 2s

	// SkipInitialProbe suppresses the synchronous reachability check in New;
	// the first routed operation or background probe discovers the state.
	SkipInitialProbe bool

	// Disabled turns every operation into a cheap no-op (Get always misses).
	Disabled bool
}

func New(opts Options) (Cache, error) {
	return newManager(opts)
}
