package toast

import (
	"sort"
	"time"
)

// toast is the controller-owned record. All fields are guarded by
// Controller.mu.
type toast struct {
	id        string
	title     string
	message   string
	category  Category
	size      Size
	createdAt time.Time
	data      map[string]any

	timeout  time.Duration
	progress float64

	visible  bool
	removing bool

	buttons []Button

	states         []State
	current        int
	skipped        map[int]struct{}
	showNavigation bool
	transitioning  int

	// epoch changes whenever a transition starts, the current state changes
	// or the toast is removed; late callbacks compare it before acting.
	epoch uint64
}

func (t *toast) stateful() bool { return len(t.states) > 0 }

func (t *toast) isSkipped(i int) bool {
	_, ok := t.skipped[i]
	return ok
}

// nextIndex is the smallest non-skipped index after current.
func (t *toast) nextIndex() (int, bool) {
	for i := t.current + 1; i < len(t.states); i++ {
		if !t.isSkipped(i) {
			return i, true
		}
	}
	return t.current, false
}

// prevIndex is the largest non-skipped index before current.
func (t *toast) prevIndex() (int, bool) {
	start := t.current - 1
	if start >= len(t.states) {
		start = len(t.states) - 1
	}
	for i := start; i >= 0; i-- {
		if !t.isSkipped(i) {
			return i, true
		}
	}
	return t.current, false
}

func (t *toast) inRange(i int) bool { return i >= 0 && i < len(t.states) }

// remaining counts non-skipped states after current.
func (t *toast) remaining() int {
	n := 0
	for i := t.current + 1; i < len(t.states); i++ {
		if !t.isSkipped(i) {
			n++
		}
	}
	return n
}

// completed counts non-skipped states up to and including current.
func (t *toast) completed() int {
	n := 0
	for i := 0; i <= t.current && i < len(t.states); i++ {
		if !t.isSkipped(i) {
			n++
		}
	}
	return n
}

func (t *toast) activeIndices() []int {
	out := make([]int, 0, len(t.states))
	for i := range t.states {
		if !t.isSkipped(i) {
			out = append(out, i)
		}
	}
	return out
}

// mirror copies state i onto the display fields.
func (t *toast) mirror(i int) {
	if !t.inRange(i) {
		return
	}
	s := t.states[i]
	t.title = s.Title
	t.message = s.Message
	t.category = s.Category
	t.buttons = append([]Button(nil), s.Buttons...)
}

func (t *toast) snapshot(active bool) Toast {
	out := Toast{
		ID:             t.id,
		Title:          t.title,
		Message:        t.message,
		Category:       t.category,
		Size:           t.size,
		CreatedAt:      t.createdAt,
		Timeout:        t.timeout,
		Progress:       t.progress,
		Active:         active,
		Visible:        t.visible,
		Removing:       t.removing,
		Transitioning:  t.transitioning > 0,
		Buttons:        append([]Button(nil), t.buttons...),
		CurrentState:   t.current,
		ShowNavigation: t.showNavigation,
	}
	if len(t.data) > 0 {
		out.Data = make(map[string]any, len(t.data))
		for k, v := range t.data {
			out.Data[k] = v
		}
	}
	if t.stateful() {
		out.States = append([]State(nil), t.states...)
		for i := range t.skipped {
			out.Skipped = append(out.Skipped, i)
		}
		sort.Ints(out.Skipped)
		_, out.HasNext = t.nextIndex()
		_, out.HasPrevious = t.prevIndex()
		out.Remaining = t.remaining()
		out.Completed = t.completed()
		out.ActiveStates = t.activeIndices()
	}
	return out
}

func (t *toast) lifecycle(reason string) Lifecycle {
	return Lifecycle{
		ID:       t.id,
		Title:    t.title,
		Message:  t.message,
		Category: t.category,
		Stateful: t.stateful(),
		State:    t.current,
		Reason:   reason,
	}
}
