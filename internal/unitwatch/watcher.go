// Package unitwatch raises toasts when watched systemd services change state.
package unitwatch

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	rtsup "toastd/internal/runtime/supervisor"
	"toastd/internal/toast"
	logx "toastd/pkg/logx"
)

const (
	DefaultInterval = 5 * time.Second
	restartTimeout  = 30 * time.Second
)

type Config struct {
	Names         []string
	Interval      time.Duration
	RestartButton bool
}

// Shower is the part of the controller the watcher uses.
type Shower interface {
	ShowToast(message string, opts ...toast.ShowOption) string
	ShowToastWithButtons(message string, category toast.Category, title string, buttons []toast.Button, opts ...toast.ShowOption) string
}

// Change is one observed state change.
type Change struct {
	Name     string
	OldState string
	NewState string
	Status   Status
	At       time.Time
}

// Watcher polls unit states. The first poll only records a baseline.
type Watcher struct {
	sd     Systemd
	shower Shower
	log    logx.Logger

	mu    sync.Mutex
	cfg   Config
	prev  map[string]string
	reset chan struct{}
	// sup runs restart requests while Run is active.
	sup *rtsup.Supervisor
}

func New(sd Systemd, shower Shower, cfg Config, log logx.Logger) *Watcher {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Watcher{
		sd:     sd,
		shower: shower,
		log:    log.With(logx.String("comp", "unitwatch")),
		cfg:    normalizeConfig(cfg),
		prev:   map[string]string{},
		reset:  make(chan struct{}, 1),
	}
}

func normalizeConfig(cfg Config) Config {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	names := make([]string, 0, len(cfg.Names))
	seen := map[string]struct{}{}
	for _, n := range cfg.Names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		names = append(names, n)
	}
	cfg.Names = names
	return cfg
}

// Apply swaps the watched set. Dropped units lose their baseline; new units
// get one on the next poll.
func (w *Watcher) Apply(cfg Config) {
	cfg = normalizeConfig(cfg)
	w.mu.Lock()
	keep := map[string]struct{}{}
	for _, n := range cfg.Names {
		keep[n] = struct{}{}
	}
	for n := range w.prev {
		if _, ok := keep[n]; !ok {
			delete(w.prev, n)
		}
	}
	w.cfg = cfg
	w.mu.Unlock()
	select {
	case w.reset <- struct{}{}:
	default:
	}
}

func (w *Watcher) config() Config {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.cfg
}

// Run polls until ctx ends. Restarts requested from toasts run under Run and
// are waited for before it returns.
func (w *Watcher) Run(ctx context.Context) error {
	sup := rtsup.NewSupervisor(ctx,
		rtsup.WithLogger(w.log),
		rtsup.WithCancelOnError(false),
	)
	w.mu.Lock()
	w.sup = sup
	w.mu.Unlock()
	defer func() {
		w.mu.Lock()
		w.sup = nil
		w.mu.Unlock()
		sctx, cancel := context.WithTimeout(context.Background(), restartTimeout)
		defer cancel()
		if err := sup.Stop(sctx); err != nil {
			w.log.Warn("unit restarts still running", logx.Err(err))
		}
	}()

	cfg := w.config()
	w.log.Info("unit watch started", logx.Strings("units", cfg.Names), logx.Duration("interval", cfg.Interval))
	w.Poll(ctx)

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-w.reset:
			ticker.Reset(w.config().Interval)
		case <-ticker.C:
			w.Poll(ctx)
		}
	}
}

// Poll checks every unit once and raises a toast per change.
func (w *Watcher) Poll(ctx context.Context) []Change {
	cfg := w.config()
	var changes []Change
	for _, name := range cfg.Names {
		st, err := w.sd.Status(ctx, name)
		if err != nil {
			if ctx.Err() != nil {
				return changes
			}
			w.log.Debug("unit status failed", logx.String("unit", name), logx.Err(err))
			continue
		}
		w.mu.Lock()
		prev, seen := w.prev[name]
		w.prev[name] = st.Active
		w.mu.Unlock()
		if !seen || prev == st.Active {
			continue
		}
		ch := Change{Name: name, OldState: prev, NewState: st.Active, Status: st, At: time.Now()}
		changes = append(changes, ch)
		w.log.Info("unit state changed",
			logx.String("unit", name),
			logx.String("from", prev),
			logx.String("to", st.Active),
		)
		w.notify(ch, cfg)
	}
	return changes
}

type notice struct {
	Title    string
	Message  string
	Category toast.Category
	Failed   bool
}

// describe maps a change to a toast. Transitional states raise nothing.
func describe(ch Change) (notice, bool) {
	switch {
	case ch.NewState == "failed":
		return notice{
			Title:    "Service failed",
			Message:  fmt.Sprintf("%s failed (%s)", ch.Name, ch.Status.SubState),
			Category: toast.CategoryError,
			Failed:   true,
		}, true
	case ch.NewState == "active" && (ch.OldState == "failed" || ch.OldState == "inactive"):
		return notice{Title: "Service recovered", Message: ch.Name + " is running again", Category: toast.CategorySuccess}, true
	case ch.NewState == "inactive" && ch.OldState == "active":
		return notice{Title: "Service stopped", Message: ch.Name + " stopped", Category: toast.CategoryWarning}, true
	}
	return notice{}, false
}

func (w *Watcher) notify(ch Change, cfg Config) {
	n, ok := describe(ch)
	if !ok {
		return
	}
	data := toast.WithData(map[string]any{"unit": ch.Name, "state": ch.NewState})
	if !n.Failed {
		w.shower.ShowToast(n.Message, toast.WithCategory(n.Category), toast.WithTitle(n.Title), data)
		return
	}
	if !cfg.RestartButton {
		w.shower.ShowToast(n.Message, toast.WithCategory(n.Category), toast.WithTitle(n.Title), toast.Persistent(), data)
		return
	}
	restart := toast.Button{
		Text:         "Restart",
		Style:        "danger",
		CloseOnClick: true,
		OnClick:      func(string) { w.requestRestart(ch.Name) },
	}
	w.shower.ShowToastWithButtons(n.Message, n.Category, n.Title, []toast.Button{restart, toast.CloseButton("Dismiss")}, data)
}

// requestRestart hands a restart to the Run supervisor so the click handler
// never blocks on systemd.
func (w *Watcher) requestRestart(name string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.sup == nil {
		w.log.Warn("unit restart ignored, watcher not running", logx.String("unit", name))
		return
	}
	w.sup.Go0("restart."+name, func(ctx context.Context) { w.restart(ctx, name) })
}

func (w *Watcher) restart(ctx context.Context, name string) {
	rctx, cancel := context.WithTimeout(ctx, restartTimeout)
	defer cancel()
	if err := w.sd.Restart(rctx, name); err != nil {
		w.log.Warn("unit restart failed", logx.String("unit", name), logx.Err(err))
		// Shutting down.
		if ctx.Err() != nil {
			return
		}
		w.shower.ShowToast(fmt.Sprintf("restart %s: %v", name, err), toast.WithCategory(toast.CategoryError), toast.WithTitle("Restart failed"))
		return
	}
	w.log.Info("unit restarted", logx.String("unit", name))
}
