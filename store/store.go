// Package store defines the storage abstraction shared by the remote and
// local backends: one capability interface, two kinds of implementation,
// selected per call by the manager.
//
// Implementations MUST be byte-for-byte transparent: Get must return exactly
// the same []byte that was previously passed to Set for a key (no
// prepended/appended metadata, no re-encoding, no mutation). If a store
// performs internal transforms (e.g., compression), they MUST be fully
// reversed so that the bytes returned by Get are identical to the bytes
// provided to Set.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Store is a minimal byte store with TTLs and pattern deletion.
// Must be safe for concurrent use.
type Store interface {
	// Get returns (value, true, nil) on hit; (nil, false, nil) on miss.
	// A miss is never an error.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores value with the given TTL. ttl <= 0 means "no expiry".
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a key. Absent keys are not an error.
	Delete(ctx context.Context, key string) error

	// DeletePattern removes every key matching pattern and reports how many
	// were removed. The guaranteed dialect is '*' (any run), '?' (one byte)
	// and '\' escape; anything richer is store-native. Not atomic: keys
	// written concurrently may survive.
	DeletePattern(ctx context.Context, pattern string) (int, error)

	// Ping reports whether the store is reachable.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close(ctx context.Context) error
}

// Counter is implemented by stores that can report how many entries they
// currently hold.
type Counter interface {
	Len(ctx context.Context) (int, error)
}

// ConnectionError is a transport-class failure: the store could not be
// reached at all (dial failure, timeout, dropped connection). The manager
// treats it as a failover trigger and never surfaces it alone for
// get/set/delete.
type ConnectionError struct {
	Op    string // operation that failed: "get", "set", ...
	Store string // which store: "redis", ...
	Err   error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("%s %s: connection: %v", e.Store, e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// BackendError is a failure reported by a reachable store: the operation
// itself was rejected (server error reply, malformed request, resource
// rejection). Surfaced to callers unchanged; never moves the connection
// state machine.
type BackendError struct {
	Op    string
	Store string
	Err   error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("%s %s: backend: %v", e.Store, e.Op, e.Err)
}

func (e *BackendError) Unwrap() error { return e.Err }

// IsConnection reports whether err is or wraps a *ConnectionError.
func IsConnection(err error) bool {
	var ce *ConnectionError
	return errors.As(err, &ce)
}

// IsBackend reports whether err is or wraps a *BackendError.
func IsBackend(err error) bool {
	var be *BackendError
	return errors.As(err, &be)
}
