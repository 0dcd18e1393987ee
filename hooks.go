package tandem

import "time"

// Hooks lightweight callbacks for high-signal events.
// Implementations MUST be cheap and non-blocking.
// The cache calls them on hot paths.
type Hooks interface {
	// Remote connectivity moved between states.
	StateChange(from, to ConnectionState)

	// A remote operation failed on connectivity and the call was served from
	// the local store instead. op ∈ {"get", "set", "delete", "clear_pattern"}.
	Failover(op, storageKey string)

	// A background probe did not bring the backend back.
	ProbeFailed(err error, downFor time.Duration)
}

// NopHooks is the default no-op
type NopHooks struct{}

func (NopHooks) StateChange(ConnectionState, ConnectionState) {}
func (NopHooks) Failover(string, string)                      {}
func (NopHooks) ProbeFailed(error, time.Duration)             {}
