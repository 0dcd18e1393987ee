package tandem

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	c "github.com/tandem-cache/tandem/codec"
	"github.com/tandem-cache/tandem/internal/keyutil"
	"github.com/tandem-cache/tandem/store"
	"github.com/tandem-cache/tandem/store/memory"
)

type manager struct {
	prefix     string
	remote     store.Store
	local      store.Store
	codec      c.Codec
	log        Logger
	hooks      Hooks
	sel        *selector // nil when running local-only
	enabled    bool
	defaultTTL time.Duration

	hits      atomic.Uint64
	misses    atomic.Uint64
	failovers atomic.Uint64

	closeOnce sync.Once
	closeErr  error
}

var _ Cache = (*manager)(nil)

func newManager(opts Options) (*manager, error) {
	if opts.DefaultTTL < 0 {
		return nil, &ConfigError{Field: "DefaultTTL", Err: errors.New("must not be negative")}
	}
	if opts.FailureThreshold < 0 {
		return nil, &ConfigError{Field: "FailureThreshold", Err: errors.New("must not be negative")}
	}
	if opts.ProbeInterval < 0 || opts.ProbeTimeout < 0 {
		return nil, &ConfigError{Field: "ProbeInterval", Err: errors.New("must not be negative")}
	}

	m := &manager{
		prefix:     opts.KeyPrefix,
		remote:     opts.Remote,
		local:      opts.Local,
		codec:      opts.Codec,
		log:        opts.Logger,
		hooks:      opts.Hooks,
		enabled:    !opts.Disabled,
		defaultTTL: opts.DefaultTTL,
	}
	if m.local == nil {
		m.local = memory.New(memory.Config{})
	}
	if m.codec == nil {
		m.codec = c.JSON{}
	}
	if m.log == nil {
		m.log = NopLogger{}
	}
	if m.hooks == nil {
		m.hooks = NopHooks{}
	}
	if m.remote != nil && m.enabled {
		m.sel = newSelector(selectorConfig{
			remote:      m.remote,
			log:         m.log,
			hooks:       m.hooks,
			threshold:   coalesce(opts.FailureThreshold, 3),
			interval:    coalesce(opts.ProbeInterval, 5*time.Second),
			timeout:     coalesce(opts.ProbeTimeout, 2*time.Second),
			skipInitial: opts.SkipInitialProbe,
		})
	}
	return m, nil
}

func (m *manager) Enabled() bool { return m.enabled }

func (m *manager) State() ConnectionState {
	if m.sel == nil {
		return StateUnavailable
	}
	return m.sel.State()
}

// Get reads remote-first while routed. A remote miss still consults the local
// store: entries written during an outage only exist there. Connection errors
// trigger failover and are never surfaced to the caller on their own; backend
// replies surface as-is without touching connectivity state.
func (m *manager) Get(ctx context.Context, key string, dest any) (bool, error) {
	if !m.enabled {
		return false, nil
	}
	sk := m.storageKey(key)

	if m.routed() {
		b, ok, err := m.remote.Get(ctx, sk)
		switch {
		case err == nil && ok:
			m.sel.ReportSuccess()
			if derr := m.codec.Decode(b, dest); derr != nil {
				return false, &SerializationError{Op: "decode", Key: sk, Err: derr}
			}
			m.hits.Add(1)
			return true, nil
		case err == nil:
			m.sel.ReportSuccess()
		case store.IsConnection(err):
			m.failover("get", sk, err)
		default:
			return false, err
		}
	}

	b, ok, err := m.local.Get(ctx, sk)
	if err != nil {
		return false, err
	}
	if !ok {
		m.misses.Add(1)
		return false, nil
	}
	if derr := m.codec.Decode(b, dest); derr != nil {
		return false, &SerializationError{Op: "decode", Key: sk, Err: derr}
	}
	m.hits.Add(1)
	return true, nil
}

// Set encodes once, writes remote when routed, and always writes local - the
// local copy is what failover reads serve from. A remote connection error is
// swallowed after being recorded; a remote backend error is returned once the
// local write has completed.
func (m *manager) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if !m.enabled {
		return nil
	}
	switch {
	case ttl == UseDefaultTTL:
		ttl = m.defaultTTL
	case ttl < 0:
		return &ConfigError{Field: "ttl", Err: fmt.Errorf("negative ttl %v", ttl)}
	}

	b, err := m.codec.Encode(value)
	if err != nil {
		return &SerializationError{Op: "encode", Err: err}
	}
	sk := m.storageKey(key)

	var backendErr error
	if m.routed() {
		switch err := m.remote.Set(ctx, sk, b, ttl); {
		case err == nil:
			m.sel.ReportSuccess()
		case store.IsConnection(err):
			m.failover("set", sk, err)
		default:
			backendErr = err
		}
	}

	if err := m.local.Set(ctx, sk, b, ttl); err != nil {
		return errors.Join(backendErr, err)
	}
	return backendErr
}

// Delete removes the key from both stores, best-effort. Idempotent.
func (m *manager) Delete(ctx context.Context, key string) error {
	if !m.enabled {
		return nil
	}
	sk := m.storageKey(key)

	var backendErr error
	if m.routed() {
		switch err := m.remote.Delete(ctx, sk); {
		case err == nil:
			m.sel.ReportSuccess()
		case store.IsConnection(err):
			m.failover("delete", sk, err)
		default:
			backendErr = err
		}
	}

	if err := m.local.Delete(ctx, sk); err != nil {
		return errors.Join(backendErr, err)
	}
	return backendErr
}

// ClearPattern applies the prefixed pattern to both stores and sums the
// counts. Keys dual-written while Healthy are counted once per store they
// still live in.
func (m *manager) ClearPattern(ctx context.Context, pattern string) (int, error) {
	if !m.enabled {
		return 0, nil
	}
	sp := m.storageKey(pattern)

	removed := 0
	var backendErr error
	if m.routed() {
		n, err := m.remote.DeletePattern(ctx, sp)
		removed += n
		switch {
		case err == nil:
			m.sel.ReportSuccess()
		case store.IsConnection(err):
			m.failover("clear_pattern", sp, err)
		default:
			backendErr = err
		}
	}

	n, err := m.local.DeletePattern(ctx, sp)
	removed += n
	if err != nil {
		return removed, errors.Join(backendErr, err)
	}
	return removed, backendErr
}

func (m *manager) Stats(ctx context.Context) Stats {
	st := Stats{
		Enabled:       m.enabled,
		State:         m.State(),
		Hits:          m.hits.Load(),
		Misses:        m.misses.Load(),
		Failovers:     m.failovers.Load(),
		LocalEntries:  -1,
		RemoteEntries: -1,
	}
	if !m.enabled {
		return st
	}
	if ctr, ok := m.local.(store.Counter); ok {
		if n, err := ctr.Len(ctx); err == nil {
			st.LocalEntries = n
		}
	}
	if m.routed() {
		if ctr, ok := m.remote.(store.Counter); ok {
			if n, err := ctr.Len(ctx); err == nil {
				st.RemoteEntries = n
			}
		}
	}
	return st
}

// Close stops the prober and closes both stores. Safe to call multiple times.
func (m *manager) Close(ctx context.Context) error {
	m.closeOnce.Do(func() {
		if m.sel != nil {
			m.sel.Close()
		}
		errs := make([]error, 0, 2)
		if err := m.local.Close(ctx); err != nil {
			errs = append(errs, err)
		}
		if m.remote != nil {
			if err := m.remote.Close(ctx); err != nil {
				errs = append(errs, err)
			}
		}
		m.closeErr = errors.Join(errs...)
	})
	return m.closeErr
}

func (m *manager) routed() bool {
	return m.sel != nil && m.sel.Route()
}

func (m *manager) storageKey(key string) string {
	return keyutil.Join(m.prefix, key)
}

func (m *manager) failover(op, storageKey string, err error) {
	m.sel.ReportFailure()
	m.failovers.Add(1)
	m.hooks.Failover(op, storageKey)
	m.log.Warn("cache: remote unreachable, using local store", Fields{
		"op":  op,
		"key": storageKey,
		"err": err.Error(),
	})
}
