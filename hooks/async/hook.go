// usage:
//
// import (
//
//	"log/slog"
//
//	"github.com/tandem-cache/tandem"
//	"github.com/tandem-cache/tandem/hooks/async"
//	"github.com/tandem-cache/tandem/hookslog"
//
// )
//
//	raw := hookslog.New(slog.Default(), hookslog.Options{
//	    FailoverEvery: 10, // sample logs: ~every 10th failover
//	    ProbeEvery:    1,  // log every failed probe
//	})
//
// hooks := asynchook.New(raw, 1, 1000) // 1 worker; queue 1000 events
// defer hooks.Close()
//
//	cache, _ := tandem.New(tandem.Options{
//	    Remote: remote,
//	    Hooks:  hooks, // or `raw` if you don't want async
//	})
package asynchook

import (
	"sync"
	"time"

	"github.com/tandem-cache/tandem"
)

type Hooks struct {
	inner tandem.Hooks
	q     chan func()
	wg    sync.WaitGroup
	once  sync.Once
}

var _ tandem.Hooks = (*Hooks)(nil)

func New(inner tandem.Hooks, workers, qlen int) *Hooks {
	if workers <= 0 {
		workers = 1
	}
	if qlen <= 0 {
		qlen = 1024
	}

	h := &Hooks{inner: inner, q: make(chan func(), qlen)}
	h.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer h.wg.Done()
			for f := range h.q {
				f()
			}
		}()
	}
	return h
}

func (h *Hooks) Close() {
	h.once.Do(func() {
		close(h.q)
		h.wg.Wait()
	})
}

func (h *Hooks) try(f func()) {
	select {
	case h.q <- f:
	default: // drop
	}
}

func (h *Hooks) StateChange(from, to tandem.ConnectionState) {
	h.try(func() { h.inner.StateChange(from, to) })
}

func (h *Hooks) Failover(op, key string) {
	h.try(func() { h.inner.Failover(op, key) })
}

func (h *Hooks) ProbeFailed(err error, downFor time.Duration) {
	h.try(func() { h.inner.ProbeFailed(err, downFor) })
}
