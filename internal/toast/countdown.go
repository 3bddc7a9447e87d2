package toast

import (
	"context"
	"math"
	"time"

	logx "toastd/pkg/logx"
)

// countdownCandidateLocked is the first visible, non-exiting toast that
// declares a timeout.
func (c *Controller) countdownCandidateLocked() *toast {
	for _, t := range c.visible {
		if t.removing || t.stateful() || t.timeout <= 0 {
			continue
		}
		return t
	}
	return nil
}

// setupActiveTimeoutLocked keeps exactly one live countdown. A toast that
// stays the candidate keeps its running countdown.
func (c *Controller) setupActiveTimeoutLocked() {
	next := c.countdownCandidateLocked()
	if next != nil && next == c.active {
		return
	}
	if c.active != nil {
		c.timers.cancel(timerKey{id: c.active.id, kind: timerTimeout})
		c.active = nil
	}
	if next == nil {
		return
	}
	c.armCountdownLocked(next, next.timeout)
}

func (c *Controller) armCountdownLocked(t *toast, total time.Duration) {
	c.activeArm++
	arm := c.activeArm
	c.active = t
	c.activeStart = time.Now()
	c.activeTotal = total
	c.lastPublished = 100
	t.progress = 100
	c.markChangedLocked()

	id := t.id
	c.timers.schedule(timerKey{id: id, kind: timerTimeout}, total, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.active != t || c.activeArm != arm {
			return
		}
		c.expireLocked(t)
	})
}

func (c *Controller) expireLocked(t *toast) {
	t.progress = 0
	c.log.Debug("toast expired", logx.String("id", t.id), logx.Duration("timeout", c.activeTotal))
	c.removeLocked(t.id, ReasonExpired)
}

// tickProgress recomputes progress for the active toast only and publishes
// it when it moved by more than the epsilon.
func (c *Controller) tickProgress(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.active
	if t == nil || t.removing || c.activeTotal <= 0 {
		return
	}
	elapsed := now.Sub(c.activeStart)
	if elapsed >= c.activeTotal {
		c.expireLocked(t)
		return
	}
	p := math.Max(0, 100-float64(elapsed)/float64(c.activeTotal)*100)
	if p > t.progress {
		p = t.progress
	}
	if math.Abs(p-c.lastPublished) <= c.timing.ProgressEpsilon {
		return
	}
	t.progress = p
	c.lastPublished = p
	c.markChangedLocked()
}

func (c *Controller) runProgressTicker(ctx context.Context) {
	tick := time.NewTicker(c.timing.ProgressTick)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-tick.C:
			c.tickProgress(now)
		}
	}
}

// ExtendTimeout adds extra to a toast that declares a timeout. If the toast
// holds the countdown, it restarts from 100 over the remaining time plus
// extra.
func (c *Controller) ExtendTimeout(id string, extra time.Duration) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.visibleLocked(id)
	if t == nil || t.removing || t.stateful() || t.timeout <= 0 || extra <= 0 {
		return false
	}
	if c.active != t {
		t.timeout += extra
		c.markChangedLocked()
		return true
	}
	remaining := c.activeTotal - time.Since(c.activeStart)
	if remaining < 0 {
		remaining = 0
	}
	c.timers.cancel(timerKey{id: id, kind: timerTimeout})
	t.timeout = remaining + extra
	c.armCountdownLocked(t, t.timeout)
	c.log.Debug("toast timeout extended", logx.String("id", id), logx.Duration("timeout", t.timeout))
	return true
}

// MakePersistent clears the timeout of a visible toast. If it held the
// countdown, the next candidate takes over.
func (c *Controller) MakePersistent(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.visibleLocked(id)
	if t == nil || t.removing {
		return false
	}
	t.timeout = 0
	t.progress = 100
	if c.active == t {
		c.timers.cancel(timerKey{id: id, kind: timerTimeout})
		c.active = nil
		c.setupActiveTimeoutLocked()
	}
	c.markChangedLocked()
	return true
}
