package toast

import (
	"context"
	"time"

	"toastd/internal/eventbus"
)

// Event types published on the controller bus. EventChanged carries no data;
// the others carry a Lifecycle value.
const (
	EventChanged      = "toast.changed"
	EventShown        = "toast.shown"
	EventPromoted     = "toast.promoted"
	EventExpired      = "toast.expired"
	EventRemoved      = "toast.removed"
	EventTransitioned = "toast.transitioned"
	EventQueueCleared = "toast.queue_cleared"
)

// Removal reasons reported in Lifecycle.Reason.
const (
	ReasonDismissed = "dismissed"
	ReasonExpired   = "expired"
	ReasonCleared   = "cleared"
	ReasonDropped   = "dropped"
)

// Lifecycle describes one toast lifecycle step.
type Lifecycle struct {
	ID       string   `json:"id"`
	Title    string   `json:"title,omitempty"`
	Message  string   `json:"message,omitempty"`
	Category Category `json:"category"`
	Stateful bool     `json:"stateful,omitempty"`
	State    int      `json:"state,omitempty"`
	Reason   string   `json:"reason,omitempty"`
}

// Subscribe returns a channel receiving change and lifecycle events, limited
// to types when given. Slow subscribers drop events; on each EventChanged a
// renderer re-reads Toasts().
func (c *Controller) Subscribe(buffer int, types ...string) (<-chan eventbus.Event, func()) {
	return c.bus.Subscribe(buffer, types...)
}

func (c *Controller) markChangedLocked() {
	c.pendingChange = true
}

func (c *Controller) publishLocked(typ string, t *toast, reason string) {
	c.bus.Publish(eventbus.Event{Type: typ, Data: t.lifecycle(reason)})
}

// flushChange fires at most one EventChanged for all mutations since the last
// call.
func (c *Controller) flushChange() bool {
	c.mu.Lock()
	fire := c.pendingChange
	c.pendingChange = false
	c.mu.Unlock()
	if !fire {
		return false
	}
	c.bus.Publish(eventbus.Event{Type: EventChanged})
	c.metrics.incChanges()
	return true
}

func (c *Controller) runChangeTicker(ctx context.Context) {
	tick := time.NewTicker(c.timing.ChangeTick)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
			c.flushChange()
		}
	}
}
