package toast

import (
	"time"

	"toastd/internal/eventbus"
	logx "toastd/pkg/logx"
)

const (
	DefaultMaxVisible = 5
	MinVisible        = 1
	MaxVisibleLimit   = 10
)

// Timing holds every delay the controller uses. Zero fields take defaults.
type Timing struct {
	DefaultTimeout   time.Duration
	Entrance         time.Duration
	Exit             time.Duration
	TransitionOut    time.Duration
	TransitionSettle time.Duration
	ProgressTick     time.Duration
	ChangeTick       time.Duration
	AutoAdvanceDelay time.Duration
	// ProgressEpsilon is the minimum progress delta (percent points) that is
	// published.
	ProgressEpsilon float64
}

func DefaultTiming() Timing {
	return Timing{
		DefaultTimeout:   5 * time.Second,
		Entrance:         50 * time.Millisecond,
		Exit:             400 * time.Millisecond,
		TransitionOut:    50 * time.Millisecond,
		TransitionSettle: 300 * time.Millisecond,
		ProgressTick:     16 * time.Millisecond,
		ChangeTick:       50 * time.Millisecond,
		AutoAdvanceDelay: 2 * time.Second,
		ProgressEpsilon:  0.1,
	}
}

func (t Timing) withDefaults() Timing {
	d := DefaultTiming()
	if t.DefaultTimeout <= 0 {
		t.DefaultTimeout = d.DefaultTimeout
	}
	if t.Entrance <= 0 {
		t.Entrance = d.Entrance
	}
	if t.Exit <= 0 {
		t.Exit = d.Exit
	}
	if t.TransitionOut <= 0 {
		t.TransitionOut = d.TransitionOut
	}
	if t.TransitionSettle <= 0 {
		t.TransitionSettle = d.TransitionSettle
	}
	if t.ProgressTick <= 0 {
		t.ProgressTick = d.ProgressTick
	}
	if t.ChangeTick <= 0 {
		t.ChangeTick = d.ChangeTick
	}
	if t.AutoAdvanceDelay <= 0 {
		t.AutoAdvanceDelay = d.AutoAdvanceDelay
	}
	if t.ProgressEpsilon <= 0 {
		t.ProgressEpsilon = d.ProgressEpsilon
	}
	return t
}

// Option configures a Controller.
type Option func(*Controller)

func WithLogger(log logx.Logger) Option {
	return func(c *Controller) { c.log = log }
}

// WithBus publishes change and lifecycle events on bus instead of a private one.
func WithBus(bus eventbus.Bus) Option {
	return func(c *Controller) {
		if bus != nil {
			c.bus = bus
		}
	}
}

func WithMetrics(m *Metrics) Option {
	return func(c *Controller) { c.metrics = m }
}

func WithTiming(t Timing) Option {
	return func(c *Controller) { c.timing = t.withDefaults() }
}

func WithMaxVisible(n int) Option {
	return func(c *Controller) { c.maxVisible = clampVisible(n) }
}

func WithAppearance(a Appearance) Option {
	return func(c *Controller) { c.appearance = a }
}

func clampVisible(n int) int {
	if n < MinVisible {
		return MinVisible
	}
	if n > MaxVisibleLimit {
		return MaxVisibleLimit
	}
	return n
}

type showConfig struct {
	category       Category
	title          string
	timeout        time.Duration
	size           Size
	start          bool
	showNavigation bool
	data           map[string]any
}

// ShowOption adjusts a single Show call.
type ShowOption func(*showConfig)

// apply runs opts in order. Nil options are skipped.
func (s *showConfig) apply(opts []ShowOption) {
	for _, o := range opts {
		if o != nil {
			o(s)
		}
	}
}

func WithCategory(c Category) ShowOption { return func(s *showConfig) { s.category = c } }
func WithTitle(title string) ShowOption  { return func(s *showConfig) { s.title = title } }
func WithSize(size Size) ShowOption      { return func(s *showConfig) { s.size = size } }

// WithTimeout sets the auto-dismiss delay. Zero makes the toast persistent.
// Ignored for stateful toasts.
func WithTimeout(d time.Duration) ShowOption {
	return func(s *showConfig) {
		if d < 0 {
			d = 0
		}
		s.timeout = d
	}
}

// Persistent is WithTimeout(0).
func Persistent() ShowOption { return WithTimeout(0) }

// WithStartImmediately controls whether a stateful toast lands on its first
// state when shown. When false the toast waits before the first state and the
// first TransitionToNext enters it.
func WithStartImmediately(start bool) ShowOption {
	return func(s *showConfig) { s.start = start }
}

func WithNavigation(show bool) ShowOption {
	return func(s *showConfig) { s.showNavigation = show }
}

func WithData(data map[string]any) ShowOption {
	return func(s *showConfig) { s.data = data }
}
