package tandem

import (
	"fmt"

	"github.com/tandem-cache/tandem/store"
)

// ConnectionError and BackendError originate in the store adapters; the
// aliases let callers match against this package alone.
type (
	ConnectionError = store.ConnectionError
	BackendError    = store.BackendError
)

// IsConnectionError reports whether err (anywhere in its chain) marks the
// remote backend unreachable: dial failures, timeouts, closed pools.
func IsConnectionError(err error) bool { return store.IsConnection(err) }

// IsBackendError reports whether err (anywhere in its chain) is a reply the
// backend itself produced. These never affect connectivity state.
func IsBackendError(err error) bool { return store.IsBackend(err) }

// SerializationError wraps a codec failure. The cache surfaces these as-is:
// a value that cannot be encoded is a caller bug, and a stored value that
// cannot be decoded must not silently degrade into a miss.
type SerializationError struct {
	Op  string // "encode" or "decode"
	Key string // storage key, empty on encode
	Err error
}

func (e *SerializationError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("cache %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("cache %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *SerializationError) Unwrap() error { return e.Err }

// ConfigError reports an invalid configuration value. Construction surfaces
// it but still hands back a usable local-only cache where possible, so a bad
// redis URL degrades service instead of failing startup.
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("cache config %s: %v", e.Field, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }
