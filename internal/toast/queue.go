package toast

import (
	"toastd/internal/eventbus"
	logx "toastd/pkg/logx"
)

func (c *Controller) enqueueLocked(t *toast, kind string) {
	c.byID[t.id] = t
	c.queue = append(c.queue, t)
	c.metrics.incShown(kind)
	c.publishLocked(EventShown, t, "")
	c.log.Debug("toast queued", logx.String("id", t.id), logx.String("kind", kind), logx.Int("queued", len(c.queue)))
	c.processQueueLocked()
	c.markChangedLocked()
}

// processQueueLocked promotes queue heads while capacity allows, keeping FIFO
// order, then re-evaluates the countdown.
func (c *Controller) processQueueLocked() {
	c.promoteLocked(c.maxVisible)
}

func (c *Controller) promoteLocked(limit int) {
	promoted := 0
	for len(c.queue) > 0 && len(c.visible) < limit {
		t := c.queue[0]
		c.queue[0] = nil
		c.queue = c.queue[1:]
		c.visible = append(c.visible, t)
		promoted++
		c.scheduleEntranceLocked(t)
		c.armAdvanceLocked(t)
		c.publishLocked(EventPromoted, t, "")
	}
	if len(c.queue) == 0 {
		c.queue = nil
	}
	if promoted > 0 {
		c.setupActiveTimeoutLocked()
		c.markChangedLocked()
	}
	c.metrics.setQueue(len(c.visible), len(c.queue))
}

// scheduleEntranceLocked flips visible after the entrance window.
func (c *Controller) scheduleEntranceLocked(t *toast) {
	id := t.id
	c.timers.schedule(timerKey{id: id, kind: timerEnter}, c.timing.Entrance, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.byID[id] != t || t.removing {
			return
		}
		t.visible = true
		c.markChangedLocked()
	})
}

// SetMaxVisibleToasts clamps n to [1,10] and promotes queued toasts if the
// limit grew. Shrinking never hides visible toasts.
func (c *Controller) SetMaxVisibleToasts(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.maxVisible = clampVisible(n)
	c.processQueueLocked()
	c.markChangedLocked()
}

func (c *Controller) MaxVisible() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.maxVisible
}

// FlushQueue promotes every queued toast regardless of the limit. The limit
// itself is unchanged.
func (c *Controller) FlushQueue() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.promoteLocked(len(c.visible) + len(c.queue))
}

// ClearQueue discards every queued toast. Visible toasts are untouched.
func (c *Controller) ClearQueue() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.queue) == 0 {
		return
	}
	n := len(c.queue)
	for _, t := range c.queue {
		delete(c.byID, t.id)
		c.timers.releaseAll(t.id)
		c.publishLocked(EventRemoved, t, ReasonDropped)
		c.metrics.incRemoved(ReasonDropped)
	}
	c.queue = nil
	c.bus.Publish(eventbus.Event{Type: EventQueueCleared, Data: n})
	c.metrics.setQueue(len(c.visible), 0)
	c.markChangedLocked()
}

func (c *Controller) QueueStatus() QueueStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return QueueStatus{
		Visible: len(c.visible),
		Queued:  len(c.queue),
		Total:   len(c.visible) + len(c.queue),
	}
}
