package toast

import (
	"container/heap"
	"context"
	"sync"
	"time"
)

type timerKind uint8

const (
	timerTimeout timerKind = iota + 1
	timerAdvance
	timerEnter
	timerExit
	timerPhase
)

func (k timerKind) String() string {
	switch k {
	case timerTimeout:
		return "timeout"
	case timerAdvance:
		return "advance"
	case timerEnter:
		return "enter"
	case timerExit:
		return "exit"
	case timerPhase:
		return "phase"
	default:
		return "unknown"
	}
}

// timerKey identifies one scheduled callback. Phase timers carry a unique
// seq so several queued transitions on one toast do not replace each other.
type timerKey struct {
	id   string
	kind timerKind
	seq  uint64
}

type timerEntry struct {
	key   timerKey
	at    time.Time
	order uint64
	fn    func()
	index int
}

type timerHeap []*timerEntry

func (h timerHeap) Len() int { return len(h) }
func (h timerHeap) Less(i, j int) bool {
	if h[i].at.Equal(h[j].at) {
		return h[i].order < h[j].order
	}
	return h[i].at.Before(h[j].at)
}
func (h timerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}
func (h *timerHeap) Push(x any) {
	e := x.(*timerEntry)
	e.index = len(*h)
	*h = append(*h, e)
}
func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}

// timers is the registry of every pending per-toast callback, driven by one
// deadline-ordered loop. Callbacks run on the loop goroutine without the
// registry lock held, so they may take the controller lock and schedule more.
type timers struct {
	mu     sync.Mutex
	h      timerHeap
	byKey  map[timerKey]*timerEntry
	order  uint64
	phase  uint64
	closed bool
	wake   chan struct{}
	now    func() time.Time
}

func newTimers() *timers {
	return &timers{
		byKey: map[timerKey]*timerEntry{},
		wake:  make(chan struct{}, 1),
		now:   time.Now,
	}
}

// schedule arms fn after d, replacing any pending entry with the same key.
// It is a no-op after close.
func (t *timers) schedule(key timerKey, d time.Duration, fn func()) {
	if fn == nil {
		return
	}
	if d < 0 {
		d = 0
	}
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	if old, ok := t.byKey[key]; ok {
		heap.Remove(&t.h, old.index)
	}
	t.order++
	e := &timerEntry{key: key, at: t.now().Add(d), order: t.order, fn: fn}
	heap.Push(&t.h, e)
	t.byKey[key] = e
	first := t.h[0] == e
	t.mu.Unlock()

	if first {
		t.signal()
	}
}

// schedulePhase arms a one-shot callback that no later schedule can replace.
func (t *timers) schedulePhase(id string, d time.Duration, fn func()) {
	t.mu.Lock()
	t.phase++
	seq := t.phase
	t.mu.Unlock()
	t.schedule(timerKey{id: id, kind: timerPhase, seq: seq}, d, fn)
}

func (t *timers) cancel(key timerKey) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.byKey[key]
	if !ok {
		return false
	}
	heap.Remove(&t.h, e.index)
	delete(t.byKey, key)
	return true
}

// release cancels the timeout and auto-advance entries of id. Unknown ids are
// a no-op.
func (t *timers) release(id string) {
	t.cancel(timerKey{id: id, kind: timerTimeout})
	t.cancel(timerKey{id: id, kind: timerAdvance})
}

// releaseAll cancels every entry that belongs to id, including pending
// entrance, exit and transition phases.
func (t *timers) releaseAll(id string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for k, e := range t.byKey {
		if k.id != id {
			continue
		}
		heap.Remove(&t.h, e.index)
		delete(t.byKey, k)
		n++
	}
	return n
}

func (t *timers) pending(id string, kind timerKind) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.byKey[timerKey{id: id, kind: kind}]
	return ok
}

func (t *timers) len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.h)
}

// close drops every pending entry. Safe to call more than once.
func (t *timers) close() {
	t.mu.Lock()
	t.closed = true
	t.h = nil
	t.byKey = map[timerKey]*timerEntry{}
	t.mu.Unlock()
	t.signal()
}

func (t *timers) signal() {
	select {
	case t.wake <- struct{}{}:
	default:
	}
}

// run fires due entries until ctx is done or the registry is closed.
func (t *timers) run(ctx context.Context) error {
	timer := time.NewTimer(time.Hour)
	defer timer.Stop()

	for {
		due, wait, closed := t.popDue()
		if closed {
			return nil
		}
		for _, fn := range due {
			fn()
		}
		if len(due) > 0 {
			continue
		}

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(wait)

		select {
		case <-ctx.Done():
			return nil
		case <-t.wake:
		case <-timer.C:
		}
	}
}

func (t *timers) popDue() ([]func(), time.Duration, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil, 0, true
	}
	now := t.now()
	var due []func()
	for len(t.h) > 0 && !t.h[0].at.After(now) {
		e := heap.Pop(&t.h).(*timerEntry)
		delete(t.byKey, e.key)
		due = append(due, e.fn)
	}
	if len(due) > 0 {
		return due, 0, false
	}
	if len(t.h) == 0 {
		return nil, time.Hour, false
	}
	return nil, t.h[0].at.Sub(now), false
}
