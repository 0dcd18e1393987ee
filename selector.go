package tandem

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tandem-cache/tandem/store"
)

// ConnectionState tracks remote backend connectivity. Reads are lock-free.
type ConnectionState int32

const (
	// StateUnavailable - backend considered down; operations skip it entirely
	// while a background prober keeps checking.
	StateUnavailable ConnectionState = iota

	// StateDegraded - recent connection failures, still routing to the backend.
	StateDegraded

	// StateHealthy - backend serving traffic normally.
	StateHealthy
)

func (s ConnectionState) String() string {
	switch s {
	case StateHealthy:
		return "healthy"
	case StateDegraded:
		return "degraded"
	default:
		return "unavailable"
	}
}

// selector decides per-operation whether the remote store is worth talking to.
// The manager reports every remote outcome; consecutive connection failures
// walk the state down to Unavailable, any success snaps it back to Healthy.
type selector struct {
	remote store.Store
	log    Logger
	hooks  Hooks

	threshold int
	interval  time.Duration
	timeout   time.Duration

	state atomic.Int32

	mu          sync.Mutex // guards consecutive and downSince
	consecutive int
	downSince   time.Time

	ticker    *time.Ticker
	stopCh    chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

type selectorConfig struct {
	remote      store.Store
	log         Logger
	hooks       Hooks
	threshold   int
	interval    time.Duration
	timeout     time.Duration
	skipInitial bool
}

func newSelector(cfg selectorConfig) *selector {
	s := &selector{
		remote:    cfg.remote,
		log:       cfg.log,
		hooks:     cfg.hooks,
		threshold: cfg.threshold,
		interval:  cfg.interval,
		timeout:   cfg.timeout,
	}
	s.state.Store(int32(StateUnavailable))
	if !cfg.skipInitial {
		s.probe(context.Background())
	}
	s.ticker = time.NewTicker(s.interval)
	s.stopCh = make(chan struct{})
	s.wg.Add(1)
	go s.probeLoop()
	return s
}

func (s *selector) State() ConnectionState {
	return ConnectionState(s.state.Load())
}

// Route answers "send this operation to the remote store?".
// Degraded still routes; only Unavailable short-circuits to local.
func (s *selector) Route() bool {
	return s.State() != StateUnavailable
}

// ReportSuccess resets the failure streak. Any successful remote operation
// counts, not just probes.
func (s *selector) ReportSuccess() {
	s.mu.Lock()
	s.consecutive = 0
	s.downSince = time.Time{}
	prev := ConnectionState(s.state.Swap(int32(StateHealthy)))
	s.mu.Unlock()

	if prev != StateHealthy {
		s.announce(prev, StateHealthy)
	}
}

// ReportFailure records one connection-class failure. The first failure out
// of Healthy lands in Degraded; threshold consecutive failures land in
// Unavailable. Backend replies must never be reported here.
func (s *selector) ReportFailure() {
	s.mu.Lock()
	s.consecutive++
	if s.downSince.IsZero() {
		s.downSince = time.Now()
	}
	prev := ConnectionState(s.state.Load())
	next := prev
	switch {
	case s.consecutive >= s.threshold:
		next = StateUnavailable
	case prev == StateHealthy:
		next = StateDegraded
	}
	s.state.Store(int32(next))
	s.mu.Unlock()

	if prev != next {
		s.announce(prev, next)
	}
}

// Close stops the prober. Safe to call multiple times.
func (s *selector) Close() {
	s.closeOnce.Do(func() {
		close(s.stopCh)
		s.ticker.Stop()
		s.wg.Wait()
	})
}

func (s *selector) probeLoop() {
	defer s.wg.Done()
	for {
		select {
		case <-s.ticker.C:
			if s.State() != StateHealthy {
				s.probe(context.Background())
			}
		case <-s.stopCh:
			return
		}
	}
}

func (s *selector) probe(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	err := s.remote.Ping(ctx)
	switch {
	case err == nil:
		s.ReportSuccess()
	case store.IsBackend(err):
		// The server answered, so connectivity is fine even if it is unhappy.
		s.hooks.ProbeFailed(err, s.downFor())
		s.log.Warn("cache: probe got backend error", Fields{"err": err.Error()})
	default:
		s.ReportFailure()
		s.hooks.ProbeFailed(err, s.downFor())
		s.log.Debug("cache: probe failed", Fields{
			"err":   err.Error(),
			"state": s.State().String(),
		})
	}
}

func (s *selector) downFor() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.downSince.IsZero() {
		return 0
	}
	return time.Since(s.downSince)
}

func (s *selector) announce(from, to ConnectionState) {
	s.hooks.StateChange(from, to)
	f := Fields{"from": from.String(), "to": to.String()}
	switch to {
	case StateHealthy:
		s.log.Info("cache: backend connection restored", f)
	case StateUnavailable:
		s.log.Warn("cache: backend unavailable, serving local-only", f)
	default:
		s.log.Warn("cache: backend degraded", f)
	}
}
