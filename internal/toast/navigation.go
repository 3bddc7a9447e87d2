package toast

import logx "toastd/pkg/logx"

// resolver picks the landing index when a transition applies.
type resolver func(t *toast) (int, bool)

func resolveNext(t *toast) (int, bool) { return t.nextIndex() }
func resolvePrev(t *toast) (int, bool) { return t.prevIndex() }

func resolveTo(index int) resolver {
	return func(t *toast) (int, bool) { return index, t.inRange(index) }
}

// TransitionToNext moves to the next non-skipped state. It fails when no such
// state exists.
func (c *Controller) TransitionToNext(id string) bool {
	return c.transition(id, "next", resolveNext)
}

// TransitionToPrevious moves to the previous non-skipped state.
func (c *Controller) TransitionToPrevious(id string) bool {
	return c.transition(id, "previous", resolvePrev)
}

// TransitionToState jumps to index, even if it is skipped.
func (c *Controller) TransitionToState(id string, index int) bool {
	return c.transition(id, "jump", resolveTo(index))
}

// ConditionalJump asks selector for the target index and jumps there. The
// selector runs without the controller lock; a panic counts as failure.
func (c *Controller) ConditionalJump(id string, selector func(toastID string) int) bool {
	if selector == nil {
		return false
	}
	c.mu.Lock()
	t := c.visibleLocked(id)
	ok := t != nil && t.stateful() && !t.removing
	c.mu.Unlock()
	if !ok {
		return false
	}

	var index int
	if !c.guard("selector", id, func() { index = selector(id) }) {
		return false
	}
	return c.transition(id, "conditional", resolveTo(index))
}

// transition validates against the current index now and re-resolves when
// the phase fires, so queued transitions compose and a stale one is a no-op.
func (c *Controller) transition(id, direction string, resolve resolver) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.visibleLocked(id)
	if t == nil || !t.stateful() || t.removing {
		return false
	}
	if _, ok := resolve(t); !ok {
		return false
	}
	c.beginTransitionLocked(t, direction, resolve)
	return true
}

// beginTransitionLocked runs the two-phase protocol: mark transitioning, apply
// after TransitionOut, clear the flag after TransitionSettle.
func (c *Controller) beginTransitionLocked(t *toast, direction string, resolve resolver) {
	id := t.id
	t.transitioning++
	// A started transition supersedes any armed auto-advance.
	t.epoch++
	c.timers.cancel(timerKey{id: id, kind: timerAdvance})
	c.markChangedLocked()

	c.timers.schedulePhase(id, c.timing.TransitionOut, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.byID[id] != t || t.removing {
			return
		}
		if idx, ok := resolve(t); ok {
			c.applyStateLocked(t, idx, direction)
		} else {
			c.log.Debug("transition dropped", logx.String("id", id), logx.String("direction", direction), logx.Int("state", t.current))
			c.armAdvanceLocked(t)
		}
		c.timers.schedulePhase(id, c.timing.TransitionSettle, func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			if c.byID[id] != t {
				return
			}
			if t.transitioning > 0 {
				t.transitioning--
			}
			c.markChangedLocked()
		})
	})
}

func (c *Controller) applyStateLocked(t *toast, idx int, direction string) {
	from := t.current
	t.current = idx
	t.mirror(idx)
	t.epoch++
	c.timers.release(t.id)
	c.armAdvanceLocked(t)
	c.metrics.incTransition(direction)
	c.publishLocked(EventTransitioned, t, direction)
	c.markChangedLocked()
	c.log.Debug("toast state changed",
		logx.String("id", t.id),
		logx.Int("from", from),
		logx.Int("to", idx),
		logx.String("direction", direction),
	)
}

// armAdvanceLocked schedules auto-advance for the state t currently shows.
// The callback is a no-op if t moved or left since arming.
func (c *Controller) armAdvanceLocked(t *toast) {
	if !t.inRange(t.current) {
		return
	}
	st := t.states[t.current]
	if !st.AutoAdvance {
		return
	}
	delay := st.AutoAdvanceDelay
	if delay <= 0 {
		delay = c.timing.AutoAdvanceDelay
	}
	id := t.id
	epoch := t.epoch
	c.timers.schedule(timerKey{id: id, kind: timerAdvance}, delay, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.byID[id] != t || t.epoch != epoch || t.removing {
			return
		}
		if _, ok := t.nextIndex(); !ok {
			return
		}
		c.beginTransitionLocked(t, "auto", resolveNext)
	})
}

// SkipStates marks indices as skipped for relative navigation. Out-of-range
// indices are ignored. The current index does not move.
func (c *Controller) SkipStates(id string, indices ...int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.visibleLocked(id)
	if t == nil || !t.stateful() {
		return false
	}
	for _, i := range indices {
		if t.inRange(i) {
			t.skipped[i] = struct{}{}
		}
	}
	c.markChangedLocked()
	return true
}

func (c *Controller) UnskipState(id string, index int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.visibleLocked(id)
	if t == nil || !t.stateful() {
		return false
	}
	delete(t.skipped, index)
	c.markChangedLocked()
	return true
}
