package hookslog

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/tandem-cache/tandem"
)

type Options struct {
	// Sampling to avoid floods; 0/1 = log all.
	FailoverEvery uint64
	ProbeEvery    uint64
	// Optional key redactor. Defaults to SHA-256 prefix.
	Redact func(string) string
}

type Hooks struct {
	l    *slog.Logger
	opts Options

	failoverCtr atomic.Uint64
	probeCtr    atomic.Uint64
}

var _ tandem.Hooks = (*Hooks)(nil)

func New(l *slog.Logger, opts Options) *Hooks {
	return &Hooks{l: l, opts: opts}
}

func (h *Hooks) redact(k string) string {
	if h.opts.Redact != nil {
		return h.opts.Redact(k)
	}
	sum := sha256.Sum256([]byte(k))
	return hex.EncodeToString(sum[:8])
}

func sample(n uint64, ctr *atomic.Uint64) bool {
	if n == 0 || n == 1 {
		return true
	}
	return ctr.Add(1)%n == 0
}

func (h *Hooks) StateChange(from, to tandem.ConnectionState) {
	if h.l == nil {
		return
	}
	// State changes are rare and load-bearing; never sampled.
	if to == tandem.StateHealthy {
		h.l.Info("tandem.state_change",
			"from", from.String(),
			"to", to.String())
		return
	}
	h.l.Warn("tandem.state_change",
		"from", from.String(),
		"to", to.String())
}

func (h *Hooks) Failover(op, storageKey string) {
	if h.l == nil || !sample(h.opts.FailoverEvery, &h.failoverCtr) {
		return
	}
	h.l.Warn("tandem.failover",
		"op", op,
		"key", h.redact(storageKey))
}

func (h *Hooks) ProbeFailed(err error, downFor time.Duration) {
	if h.l == nil || !sample(h.opts.ProbeEvery, &h.probeCtr) {
		return
	}
	h.l.Warn("tandem.probe_failed",
		"err", err,
		"down_for", downFor)
}
