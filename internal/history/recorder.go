// Package history records toast lifecycle events: to a bounded in-memory
// ring always, and to a storage.Store when one is configured.
package history

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"toastd/internal/eventbus"
	"toastd/internal/storage"
	"toastd/internal/toast"
	logx "toastd/pkg/logx"
)

const (
	DefaultRingSize   = 300
	DefaultRatePerSec = 50
	writeTimeout      = 2 * time.Second
)

// Types are the event types a Recorder consumes.
var Types = []string{
	toast.EventShown,
	toast.EventPromoted,
	toast.EventExpired,
	toast.EventRemoved,
	toast.EventTransitioned,
}

type Recorder struct {
	log     logx.Logger
	store   storage.Store
	limiter *rate.Limiter

	mu   sync.Mutex
	ring []storage.Entry
	next int
	full bool

	written atomic.Uint64
	skipped atomic.Uint64
	failed  atomic.Uint64
}

type Option func(*Recorder)

func WithLogger(log logx.Logger) Option { return func(r *Recorder) { r.log = log } }

// WithRingSize sets how many entries Recent can return.
func WithRingSize(n int) Option {
	return func(r *Recorder) {
		if n > 0 {
			r.ring = make([]storage.Entry, n)
		}
	}
}

// WithRate bounds store writes per second. Entries above the rate stay in
// the ring but are not persisted.
func WithRate(perSec int) Option {
	return func(r *Recorder) {
		if perSec > 0 {
			r.limiter = rate.NewLimiter(rate.Limit(perSec), perSec)
		}
	}
}

// New returns a recorder. store may be nil.
func New(store storage.Store, opts ...Option) *Recorder {
	r := &Recorder{
		store:   store,
		ring:    make([]storage.Entry, DefaultRingSize),
		limiter: rate.NewLimiter(rate.Limit(DefaultRatePerSec), DefaultRatePerSec),
	}
	for _, o := range opts {
		if o != nil {
			o(r)
		}
	}
	if r.log.IsZero() {
		r.log = logx.Nop()
	}
	r.log = r.log.With(logx.String("comp", "history"))
	return r
}

// Run consumes events until ctx ends or events closes.
func (r *Recorder) Run(ctx context.Context, events <-chan eventbus.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			r.Record(ctx, e)
		}
	}
}

// Record handles one event. Events without a Lifecycle payload are ignored.
func (r *Recorder) Record(ctx context.Context, e eventbus.Event) {
	lc, ok := e.Data.(toast.Lifecycle)
	if !ok {
		return
	}
	entry := storage.Entry{
		At:       e.Time,
		Type:     e.Type,
		ToastID:  lc.ID,
		Title:    lc.Title,
		Message:  lc.Message,
		Category: lc.Category.String(),
		Stateful: lc.Stateful,
		State:    lc.State,
		Reason:   lc.Reason,
	}
	if entry.At.IsZero() {
		entry.At = time.Now()
	}
	r.push(entry)

	if r.store == nil {
		return
	}
	if !r.limiter.Allow() {
		if r.skipped.Add(1) == 1 {
			r.log.Warn("history write rate exceeded; entries kept in memory only")
		}
		return
	}
	wctx, cancel := context.WithTimeout(ctx, writeTimeout)
	err := r.store.AppendEvent(wctx, entry)
	cancel()
	if err != nil {
		r.failed.Add(1)
		r.log.Warn("history write failed", logx.String("id", entry.ToastID), logx.Err(err))
		return
	}
	r.written.Add(1)
}

func (r *Recorder) push(e storage.Entry) {
	r.mu.Lock()
	r.ring[r.next] = e
	r.next = (r.next + 1) % len(r.ring)
	if r.next == 0 {
		r.full = true
	}
	r.mu.Unlock()
}

// Recent returns up to n entries from memory, newest first. n <= 0 returns
// everything held.
func (r *Recorder) Recent(n int) []storage.Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	size := r.next
	if r.full {
		size = len(r.ring)
	}
	if n <= 0 || n > size {
		n = size
	}
	out := make([]storage.Entry, 0, n)
	for i := 1; i <= n; i++ {
		idx := (r.next - i + len(r.ring)) % len(r.ring)
		out = append(out, r.ring[idx])
	}
	return out
}

// Stats reports store writes, rate-skipped writes and failed writes.
type Stats struct {
	Written uint64 `json:"written"`
	Skipped uint64 `json:"skipped"`
	Failed  uint64 `json:"failed"`
}

func (r *Recorder) Stats() Stats {
	return Stats{Written: r.written.Load(), Skipped: r.skipped.Load(), Failed: r.failed.Load()}
}
