package toast

import (
	"context"
	"errors"
	"runtime/debug"
	"sync"
	"time"

	"toastd/internal/eventbus"
	rtsup "toastd/internal/runtime/supervisor"
	logx "toastd/pkg/logx"
)

var (
	// ErrNoStates rejects a stateful toast without states.
	ErrNoStates = errors.New("stateful toast requires at least one state")
	ErrStopped  = errors.New("toast controller stopped")
)

// Controller admits, times and removes toasts. Every exported method is safe
// for concurrent use; timer callbacks serialize through the same lock.
type Controller struct {
	mu sync.Mutex

	log     logx.Logger
	bus     eventbus.Bus
	metrics *Metrics
	timing  Timing
	timers  *timers

	maxVisible int
	appearance Appearance

	queue   []*toast
	visible []*toast
	byID    map[string]*toast
	seq     uint64

	active        *toast
	activeArm     uint64
	activeStart   time.Time
	activeTotal   time.Duration
	lastPublished float64

	pendingChange bool

	sup     *rtsup.Supervisor
	running bool
	stopped bool
}

func New(opts ...Option) *Controller {
	c := &Controller{
		bus:        eventbus.New(),
		timing:     DefaultTiming(),
		timers:     newTimers(),
		maxVisible: DefaultMaxVisible,
		byID:       map[string]*toast{},
	}
	for _, o := range opts {
		if o != nil {
			o(c)
		}
	}
	if c.log.IsZero() {
		c.log = logx.Nop()
	}
	c.log = c.log.With(logx.String("comp", "toast"))
	return c
}

// Start runs the timer loop, the progress ticker and the change ticker.
// Start is idempotent.
func (c *Controller) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return ErrStopped
	}
	if c.running {
		c.mu.Unlock()
		return nil
	}
	c.running = true
	c.sup = rtsup.NewSupervisor(ctx,
		rtsup.WithLogger(c.log),
		rtsup.WithCancelOnError(false),
	)
	sup := c.sup
	c.mu.Unlock()

	sup.GoRestart("timers", c.timers.run, rtsup.WithRestartBackoff(10*time.Millisecond, time.Second))
	sup.Go0("progress.tick", c.runProgressTicker)
	sup.Go0("changes.tick", c.runChangeTicker)
	c.log.Debug("controller started", logx.Int("max_visible", c.MaxVisible()))
	return nil
}

// Stop cancels every pending timer and waits for the loops to exit. Safe to
// call more than once and without Start.
func (c *Controller) Stop(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return nil
	}
	c.stopped = true
	c.running = false
	sup := c.sup
	c.sup = nil
	c.active = nil
	c.mu.Unlock()

	c.timers.close()
	if sup == nil {
		return nil
	}
	err := sup.Stop(ctx)
	c.log.Debug("controller stopped")
	return err
}

func (c *Controller) newToastLocked(message string, cfg showConfig) *toast {
	c.seq++
	return &toast{
		id:             newID(c.seq),
		title:          cfg.title,
		message:        message,
		category:       cfg.category,
		size:           cfg.size,
		createdAt:      time.Now(),
		data:           cfg.data,
		timeout:        cfg.timeout,
		progress:       100,
		current:        0,
		showNavigation: cfg.showNavigation,
	}
}

// ShowToast admits a simple toast. Defaults: Info, no title, the configured
// default timeout (5s), Medium.
func (c *Controller) ShowToast(message string, opts ...ShowOption) string {
	cfg := showConfig{category: CategoryInfo, timeout: c.timing.DefaultTimeout, size: SizeMedium}
	cfg.apply(opts)
	return c.admit(message, cfg, nil, "simple")
}

// ShowToastWithButtons admits a toast with buttons. Without WithTimeout it is
// persistent.
func (c *Controller) ShowToastWithButtons(message string, category Category, title string, buttons []Button, opts ...ShowOption) string {
	cfg := showConfig{category: category, title: title, size: SizeMedium}
	cfg.apply(opts)
	return c.admit(message, cfg, buttons, "buttons")
}

// ShowStatefulToast admits a toast that walks states. It never carries a
// toast-level timeout. Defaults: Large, start immediately.
func (c *Controller) ShowStatefulToast(states []State, opts ...ShowOption) (string, error) {
	if len(states) == 0 {
		return "", ErrNoStates
	}
	cfg := showConfig{size: SizeLarge, start: true, showNavigation: true}
	cfg.apply(opts)
	cfg.timeout = 0

	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.newToastLocked("", cfg)
	t.states = append([]State(nil), states...)
	for i := range t.states {
		t.states[i].Buttons = withButtonIDs(t.states[i].Buttons)
	}
	t.skipped = map[int]struct{}{}
	t.mirror(0)
	if !cfg.start {
		t.current = -1
	}
	c.enqueueLocked(t, "stateful")
	return t.id, nil
}

func (c *Controller) admit(message string, cfg showConfig, buttons []Button, kind string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.newToastLocked(message, cfg)
	t.buttons = withButtonIDs(buttons)
	c.enqueueLocked(t, kind)
	return t.id
}

func withButtonIDs(in []Button) []Button {
	if len(in) == 0 {
		return nil
	}
	out := append([]Button(nil), in...)
	for i := range out {
		if out[i].ID == "" {
			out[i].ID = NewButtonID()
		}
	}
	return out
}

// RemoveToast starts the exit of a visible toast. Unknown, queued or already
// exiting ids are a no-op.
func (c *Controller) RemoveToast(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.removeLocked(id, ReasonDismissed)
}

func (c *Controller) removeLocked(id, reason string) bool {
	t := c.visibleLocked(id)
	if t == nil || t.removing {
		return false
	}
	t.removing = true
	t.visible = false
	t.epoch++
	c.timers.release(id)
	c.timers.cancel(timerKey{id: id, kind: timerEnter})
	if c.active == t {
		c.active = nil
	}
	c.setupActiveTimeoutLocked()
	c.markChangedLocked()

	if reason == ReasonExpired {
		c.publishLocked(EventExpired, t, reason)
	}
	c.timers.schedule(timerKey{id: id, kind: timerExit}, c.timing.Exit, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.byID[id] != t || !t.removing {
			return
		}
		c.purgeLocked(t, reason)
	})
	c.log.Debug("toast removing", logx.String("id", id), logx.String("reason", reason))
	return true
}

// purgeLocked drops t from every structure and refills the visible set.
func (c *Controller) purgeLocked(t *toast, reason string) {
	for i, v := range c.visible {
		if v == t {
			c.visible = append(c.visible[:i], c.visible[i+1:]...)
			break
		}
	}
	delete(c.byID, t.id)
	c.timers.releaseAll(t.id)
	t.epoch++
	if c.active == t {
		c.active = nil
	}
	c.publishLocked(EventRemoved, t, reason)
	c.metrics.incRemoved(reason)
	c.processQueueLocked()
	c.setupActiveTimeoutLocked()
	c.markChangedLocked()
}

// RemoveAll drops every visible and queued toast immediately, without exit
// delays.
func (c *Controller) RemoveAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, t := range c.visible {
		c.timers.releaseAll(t.id)
		t.epoch++
		delete(c.byID, t.id)
		c.publishLocked(EventRemoved, t, ReasonCleared)
		c.metrics.incRemoved(ReasonCleared)
	}
	for _, t := range c.queue {
		c.timers.releaseAll(t.id)
		delete(c.byID, t.id)
		c.publishLocked(EventRemoved, t, ReasonCleared)
		c.metrics.incRemoved(ReasonCleared)
	}
	c.visible = nil
	c.queue = nil
	c.active = nil
	c.metrics.setQueue(0, 0)
	c.markChangedLocked()
}

// visibleLocked returns the toast with id if it is in the visible set.
func (c *Controller) visibleLocked(id string) *toast {
	t, ok := c.byID[id]
	if !ok {
		return nil
	}
	for _, v := range c.visible {
		if v == t {
			return t
		}
	}
	return nil
}

// GetToast returns a copy of a visible toast.
func (c *Controller) GetToast(id string) (Toast, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.visibleLocked(id)
	if t == nil {
		return Toast{}, false
	}
	return t.snapshot(c.active == t), true
}

// Toasts returns copies of the visible set in insertion order.
func (c *Controller) Toasts() []Toast {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Toast, 0, len(c.visible))
	for _, t := range c.visible {
		out = append(out, t.snapshot(c.active == t))
	}
	return out
}

// ActiveToastID returns the id holding the countdown, or "".
func (c *Controller) ActiveToastID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active == nil {
		return ""
	}
	return c.active.id
}

func (c *Controller) IsToastActive(id string) bool { return id != "" && c.ActiveToastID() == id }

func (c *Controller) UpdateToast(id string, u Update) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.visibleLocked(id)
	if t == nil {
		return false
	}
	if u.Message != nil {
		t.message = *u.Message
	}
	if u.Title != nil {
		t.title = *u.Title
	}
	if u.Category != nil {
		t.category = *u.Category
	}
	if len(u.Data) > 0 {
		t.data = mergeData(t.data, u.Data)
	}
	c.markChangedLocked()
	return true
}

// mergeData returns a fresh map so callers' maps are never written to.
func mergeData(cur, upd map[string]any) map[string]any {
	out := make(map[string]any, len(cur)+len(upd))
	for k, v := range cur {
		out[k] = v
	}
	for k, v := range upd {
		if v == nil {
			delete(out, k)
			continue
		}
		out[k] = v
	}
	return out
}

func (c *Controller) SetSize(id string, size Size) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.visibleLocked(id)
	if t == nil {
		return false
	}
	t.size = size
	c.markChangedLocked()
	return true
}

func (c *Controller) AddButton(id string, b Button) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.visibleLocked(id)
	if t == nil {
		return false
	}
	if b.ID == "" {
		b.ID = NewButtonID()
	}
	t.buttons = append(t.buttons, b)
	c.markChangedLocked()
	return true
}

func (c *Controller) RemoveButton(id, buttonID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.visibleLocked(id)
	if t == nil {
		return false
	}
	for i, b := range t.buttons {
		if b.ID == buttonID {
			t.buttons = append(t.buttons[:i:i], t.buttons[i+1:]...)
			c.markChangedLocked()
			return true
		}
	}
	return false
}

func (c *Controller) ClearButtons(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.visibleLocked(id)
	if t == nil {
		return false
	}
	t.buttons = nil
	c.markChangedLocked()
	return true
}

// Button looks up a button on a visible toast by id.
func (c *Controller) Button(id, buttonID string) (Button, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.visibleLocked(id)
	if t == nil {
		return Button{}, false
	}
	for _, b := range t.buttons {
		if b.ID == buttonID {
			return b, true
		}
	}
	return Button{}, false
}

func (c *Controller) SetPosition(p Position) {
	c.mu.Lock()
	c.appearance.Position = p
	c.markChangedLocked()
	c.mu.Unlock()
}

func (c *Controller) SetAnimation(a Animation) {
	c.mu.Lock()
	c.appearance.Animation = a
	c.markChangedLocked()
	c.mu.Unlock()
}

func (c *Controller) SetTheme(t Theme) {
	c.mu.Lock()
	c.appearance.Theme = t
	c.markChangedLocked()
	c.mu.Unlock()
}

func (c *Controller) Appearance() Appearance {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.appearance
}

// guard runs caller-supplied code and converts a panic into a logged error.
func (c *Controller) guard(what, id string, fn func()) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
			c.log.Error("caller callback panicked",
				logx.String("callback", what),
				logx.String("id", id),
				logx.Any("panic", r),
				logx.Stack(string(debug.Stack())),
			)
		}
	}()
	fn()
	return true
}
