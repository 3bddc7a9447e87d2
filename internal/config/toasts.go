package config

import (
	"fmt"
	"time"

	"toastd/internal/toast"
)

// ToastSettings is ToastsConfig resolved into controller values.
type ToastSettings struct {
	MaxVisible int
	Appearance toast.Appearance
	Timing     toast.Timing
}

// Resolve parses enums and durations. Empty fields resolve to controller
// defaults.
func (t ToastsConfig) Resolve() (ToastSettings, error) {
	var out ToastSettings

	out.MaxVisible = t.MaxVisible
	if out.MaxVisible == 0 {
		out.MaxVisible = toast.DefaultMaxVisible
	}
	if out.MaxVisible < toast.MinVisible || out.MaxVisible > toast.MaxVisibleLimit {
		return out, fmt.Errorf("toasts.max_visible: must be within %d..%d, got %d", toast.MinVisible, toast.MaxVisibleLimit, t.MaxVisible)
	}

	var err error
	if out.Appearance.Position, err = toast.ParsePosition(t.Position); err != nil {
		return out, fmt.Errorf("toasts.position: %w", err)
	}
	if out.Appearance.Animation, err = toast.ParseAnimation(t.Animation); err != nil {
		return out, fmt.Errorf("toasts.animation: %w", err)
	}
	if out.Appearance.Theme, err = toast.ParseTheme(t.Theme); err != nil {
		return out, fmt.Errorf("toasts.theme: %w", err)
	}

	def := toast.DefaultTiming()
	fields := []struct {
		path string
		raw  string
		dst  *time.Duration
		def  time.Duration
	}{
		{"toasts.default_timeout", t.DefaultTimeout, &out.Timing.DefaultTimeout, def.DefaultTimeout},
		{"toasts.timing.entrance", t.Timing.Entrance, &out.Timing.Entrance, def.Entrance},
		{"toasts.timing.exit", t.Timing.Exit, &out.Timing.Exit, def.Exit},
		{"toasts.timing.transition_out", t.Timing.TransitionOut, &out.Timing.TransitionOut, def.TransitionOut},
		{"toasts.timing.transition_settle", t.Timing.TransitionSettle, &out.Timing.TransitionSettle, def.TransitionSettle},
		{"toasts.timing.progress_tick", t.Timing.ProgressTick, &out.Timing.ProgressTick, def.ProgressTick},
		{"toasts.timing.change_tick", t.Timing.ChangeTick, &out.Timing.ChangeTick, def.ChangeTick},
		{"toasts.timing.auto_advance_delay", t.Timing.AutoAdvanceDelay, &out.Timing.AutoAdvanceDelay, def.AutoAdvanceDelay},
	}
	for _, f := range fields {
		d, err := ParseDurationOrDefault(f.path, f.raw, f.def)
		if err != nil {
			return out, err
		}
		*f.dst = d
	}
	out.Timing.ProgressEpsilon = def.ProgressEpsilon
	return out, nil
}
