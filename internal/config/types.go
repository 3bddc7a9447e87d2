package config

type Config struct {
	Logging LoggingConfig `json:"logging"`
	Toasts  ToastsConfig  `json:"toasts"`

	// Storage is optional. Nil disables lifecycle history.
	Storage *StorageConfig `json:"storage,omitempty"`

	Desktop  DesktopConfig  `json:"desktop"`
	Telegram TelegramConfig `json:"telegram"`

	Announcements []AnnouncementConfig `json:"announcements,omitempty"`

	Units UnitsConfig `json:"units"`

	Debug DebugConfig `json:"debug,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// ToastsConfig controls the controller.
//
// Durations are Go duration strings (e.g. "400ms", "5s"). Omitted fields keep
// the controller defaults.
//
// Hot reload applies max_visible, position, animation and theme. Timing
// changes need a restart.
type ToastsConfig struct {
	MaxVisible int `json:"max_visible,omitempty"` // 1..10, default 5

	Position  string `json:"position,omitempty"`  // e.g. "top-right"
	Animation string `json:"animation,omitempty"` // e.g. "slide-and-fade"
	Theme     string `json:"theme,omitempty"`     // "dark", "light", "colored"

	DefaultTimeout string       `json:"default_timeout,omitempty"`
	Timing         TimingConfig `json:"timing,omitempty"`
}

type TimingConfig struct {
	Entrance         string `json:"entrance,omitempty"`
	Exit             string `json:"exit,omitempty"`
	TransitionOut    string `json:"transition_out,omitempty"`
	TransitionSettle string `json:"transition_settle,omitempty"`
	ProgressTick     string `json:"progress_tick,omitempty"`
	ChangeTick       string `json:"change_tick,omitempty"`
	AutoAdvanceDelay string `json:"auto_advance_delay,omitempty"`
}

// StorageConfig controls the lifecycle history store.
//
// Example:
//
//	storage: { driver: sqlite, path: ./toastd.db }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // sqlite only

	// RatePerSec bounds history writes; bursts above it are counted and
	// skipped. 0 means 50.
	RatePerSec int `json:"rate_per_sec,omitempty"`
}

// DesktopConfig mirrors visible toasts as freedesktop notifications on the
// session bus.
type DesktopConfig struct {
	Enabled bool   `json:"enabled"`
	AppName string `json:"app_name,omitempty"` // default "toastd"
	Icon    string `json:"icon,omitempty"`
}

type TelegramConfig struct {
	Enabled bool   `json:"enabled"`
	Token   string `json:"token"`
	ChatID  int64  `json:"chat_id"`
	// PollTimeout is a Go duration string (e.g. "10s").
	PollTimeout string `json:"poll_timeout,omitempty"`
	// RatePerSec bounds sends and edits. 0 means 1.
	RatePerSec int `json:"rate_per_sec,omitempty"`
}

// AnnouncementConfig is a recurring toast.
//
// Schedule accepts 5-field cron specs and descriptors such as "@hourly" or
// "@every 30m".
type AnnouncementConfig struct {
	Name     string `json:"name"`
	Schedule string `json:"schedule"`
	Message  string `json:"message"`
	Title    string `json:"title,omitempty"`
	Category string `json:"category,omitempty"` // default "info"
	Size     string `json:"size,omitempty"`
	// Timeout is a Go duration string. "0s" makes the toast persistent;
	// empty uses toasts.default_timeout.
	Timeout  string `json:"timeout,omitempty"`
	Disabled bool   `json:"disabled,omitempty"`
}

// UnitsConfig raises a toast when a watched systemd service fails or
// recovers. Needs access to the system bus.
type UnitsConfig struct {
	Enabled bool `json:"enabled"`
	// Names are service names without the ".service" suffix.
	Names    []string `json:"names,omitempty"`
	Interval string   `json:"interval,omitempty"` // default "5s"
	// RestartButton adds a Restart action to failure toasts.
	RestartButton bool `json:"restart_button,omitempty"`
}

// DebugConfig controls the optional debug HTTP server (/metrics,
// /debug/pprof, /toasts, /history).
//
// Security note:
//   - Prefer binding to localhost (e.g. "127.0.0.1:6061").
//   - If you bind to a non-loopback address, set a token or explicitly allow_insecure.
type DebugConfig struct {
	Enabled       bool   `json:"enabled"`
	Addr          string `json:"addr,omitempty"`  // default: "127.0.0.1:6061"
	Token         string `json:"token,omitempty"` // optional bearer token (do not log)
	AllowInsecure bool   `json:"allow_insecure,omitempty"`

	// Server timeouts. WriteTimeout defaults to 0 (disabled) so
	// /debug/pprof/profile works.
	ReadTimeout  string `json:"read_timeout,omitempty"`
	WriteTimeout string `json:"write_timeout,omitempty"`
	IdleTimeout  string `json:"idle_timeout,omitempty"`
}
