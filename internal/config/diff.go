package config

import (
	"reflect"
	"sort"
	"strings"

	logx "toastd/pkg/logx"
)

// SummarizeConfigChange returns the changed top-level sections and safe log
// fields describing the new values. Tokens are never included; only whether
// one is set.
func SummarizeConfigChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 8)
	attrs := make([]logx.Field, 0, 16)

	if oldCfg.Logging != newCfg.Logging {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.console", newCfg.Logging.Console),
			logx.Bool("logging.file_enabled", newCfg.Logging.File.Enabled),
		)
	}

	if oldCfg.Toasts != newCfg.Toasts {
		changed = append(changed, "toasts")
		attrs = append(attrs,
			logx.Int("toasts.max_visible", newCfg.Toasts.MaxVisible),
			logx.String("toasts.position", newCfg.Toasts.Position),
			logx.String("toasts.animation", newCfg.Toasts.Animation),
			logx.String("toasts.theme", newCfg.Toasts.Theme),
			logx.Bool("toasts.timing_changed", oldCfg.Toasts.Timing != newCfg.Toasts.Timing ||
				oldCfg.Toasts.DefaultTimeout != newCfg.Toasts.DefaultTimeout),
		)
	}

	var oS, nS StorageConfig
	if oldCfg.Storage != nil {
		oS = *oldCfg.Storage
	}
	if newCfg.Storage != nil {
		nS = *newCfg.Storage
	}
	if oS != nS {
		changed = append(changed, "storage")
		attrs = append(attrs,
			logx.String("storage.driver", strings.TrimSpace(nS.Driver)),
			logx.Bool("storage.path_set", strings.TrimSpace(nS.Path) != ""),
		)
	}

	if oldCfg.Desktop != newCfg.Desktop {
		changed = append(changed, "desktop")
		attrs = append(attrs, logx.Bool("desktop.enabled", newCfg.Desktop.Enabled))
	}

	oT, nT := oldCfg.Telegram, newCfg.Telegram
	if oT.Enabled != nT.Enabled || oT.ChatID != nT.ChatID ||
		strings.TrimSpace(oT.PollTimeout) != strings.TrimSpace(nT.PollTimeout) ||
		oT.RatePerSec != nT.RatePerSec || oT.Token != nT.Token {
		changed = append(changed, "telegram")
		attrs = append(attrs,
			logx.Bool("telegram.enabled", nT.Enabled),
			logx.Bool("telegram.token_set", strings.TrimSpace(nT.Token) != ""),
			logx.Bool("telegram.chat_set", nT.ChatID != 0),
			logx.String("telegram.poll_timeout", strings.TrimSpace(nT.PollTimeout)),
		)
	}

	if !reflect.DeepEqual(oldCfg.Announcements, newCfg.Announcements) {
		changed = append(changed, "announcements")
		attrs = append(attrs,
			logx.Int("announcements.count", len(newCfg.Announcements)),
			logx.Strings("announcements.changed", diffAnnouncements(oldCfg.Announcements, newCfg.Announcements)),
		)
	}

	if !reflect.DeepEqual(oldCfg.Units, newCfg.Units) {
		changed = append(changed, "units")
		attrs = append(attrs,
			logx.Bool("units.enabled", newCfg.Units.Enabled),
			logx.Strings("units.names", newCfg.Units.Names),
			logx.String("units.interval", strings.TrimSpace(newCfg.Units.Interval)),
		)
	}

	oD, nD := oldCfg.Debug, newCfg.Debug
	if oD != nD {
		changed = append(changed, "debug")
		attrs = append(attrs,
			logx.Bool("debug.enabled", nD.Enabled),
			logx.String("debug.addr", strings.TrimSpace(nD.Addr)),
			logx.Bool("debug.token_set", strings.TrimSpace(nD.Token) != ""),
			logx.Bool("debug.allow_insecure", nD.AllowInsecure),
		)
	}

	sort.Strings(changed)
	return changed, attrs
}

// diffAnnouncements lists names that were added, removed or edited.
func diffAnnouncements(oldL, newL []AnnouncementConfig) []string {
	oldM := make(map[string]uint64, len(oldL))
	for _, a := range oldL {
		oldM[a.Name] = hashJSON(a)
	}
	newM := make(map[string]uint64, len(newL))
	for _, a := range newL {
		newM[a.Name] = hashJSON(a)
	}

	out := make([]string, 0)
	for name, h := range newM {
		if oh, ok := oldM[name]; !ok || oh != h {
			out = append(out, name)
		}
	}
	for name := range oldM {
		if _, ok := newM[name]; !ok {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}
