package config

import (
	"errors"
	"fmt"
	"strings"

	"toastd/internal/announce"
	logx "toastd/pkg/logx"
)

// Validate checks every section and reports all problems at once.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	var errs []error

	if !logx.ValidLevel(cfg.Logging.Level) {
		errs = append(errs, fmt.Errorf("logging.level: unknown level %q", cfg.Logging.Level))
	}
	if cfg.Logging.File.Enabled && strings.TrimSpace(cfg.Logging.File.Path) == "" {
		errs = append(errs, errors.New("logging.file.path: required when file logging is enabled"))
	}

	if _, err := cfg.Toasts.Resolve(); err != nil {
		errs = append(errs, err)
	}

	if s := cfg.Storage; s != nil {
		switch strings.ToLower(strings.TrimSpace(s.Driver)) {
		case "", "none", "disabled", "off":
		case "file", "sqlite":
			if strings.TrimSpace(s.Path) == "" {
				errs = append(errs, fmt.Errorf("storage.path: required for driver %q", s.Driver))
			}
		default:
			errs = append(errs, fmt.Errorf("storage.driver: unknown driver %q", s.Driver))
		}
		if _, err := ParseDurationField("storage.busy_timeout", s.BusyTimeout); err != nil {
			errs = append(errs, err)
		}
		if s.RatePerSec < 0 {
			errs = append(errs, errors.New("storage.rate_per_sec: must be >= 0"))
		}
	}

	if cfg.Telegram.Enabled {
		if strings.TrimSpace(cfg.Telegram.Token) == "" {
			errs = append(errs, errors.New("telegram.token: required when telegram is enabled"))
		}
		if cfg.Telegram.ChatID == 0 {
			errs = append(errs, errors.New("telegram.chat_id: required when telegram is enabled"))
		}
	}
	if _, err := ParseDurationField("telegram.poll_timeout", cfg.Telegram.PollTimeout); err != nil {
		errs = append(errs, err)
	}
	if cfg.Telegram.RatePerSec < 0 {
		errs = append(errs, errors.New("telegram.rate_per_sec: must be >= 0"))
	}

	errs = append(errs, validateAnnouncements(cfg.Announcements)...)

	if cfg.Units.Enabled && len(cfg.Units.Names) == 0 {
		errs = append(errs, errors.New("units.names: required when units is enabled"))
	}
	for i, n := range cfg.Units.Names {
		if strings.TrimSpace(n) == "" {
			errs = append(errs, fmt.Errorf("units.names[%d]: empty", i))
		}
	}
	if _, err := ParseDurationField("units.interval", cfg.Units.Interval); err != nil {
		errs = append(errs, err)
	}

	for _, f := range []struct{ path, raw string }{
		{"debug.read_timeout", cfg.Debug.ReadTimeout},
		{"debug.write_timeout", cfg.Debug.WriteTimeout},
		{"debug.idle_timeout", cfg.Debug.IdleTimeout},
	} {
		if _, err := ParseDurationField(f.path, f.raw); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func validateAnnouncements(list []AnnouncementConfig) []error {
	var errs []error
	seen := make(map[string]struct{}, len(list))
	for i, a := range list {
		path := fmt.Sprintf("announcements[%d]", i)
		name := strings.TrimSpace(a.Name)
		if name == "" {
			errs = append(errs, fmt.Errorf("%s.name: required", path))
		} else if _, dup := seen[name]; dup {
			errs = append(errs, fmt.Errorf("%s.name: duplicate %q", path, name))
		}
		seen[name] = struct{}{}

		if _, err := announce.ParseSchedule(a.Schedule); err != nil {
			errs = append(errs, fmt.Errorf("%s.schedule: %w", path, err))
		}
		if strings.TrimSpace(a.Message) == "" {
			errs = append(errs, fmt.Errorf("%s.message: required", path))
		}
		if _, err := a.fields(path); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}
