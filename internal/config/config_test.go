package config

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"toastd/internal/toast"
	logx "toastd/pkg/logx"
)

const sampleYAML = `
logging:
  level: debug
  console: true
toasts:
  max_visible: 3
  position: bottom-left
  theme: light
  default_timeout: 8s
  timing:
    exit: 250ms
storage:
  driver: sqlite
  path: ./toastd.db
telegram:
  enabled: false
announcements:
  - name: standup
    schedule: "0 9 * * 1-5"
    message: Standup in 5 minutes
    category: warning
  - name: heartbeat
    schedule: "@every 30m"
    message: still here
    timeout: 0s
debug:
  enabled: true
  addr: 127.0.0.1:6061
`

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(body), 0o600); err != nil {
		t.Fatalf("write %s: %v", p, err)
	}
	return p
}

func TestLoadYAML(t *testing.T) {
	t.Parallel()
	p := writeFile(t, t.TempDir(), "toastd.yaml", sampleYAML)

	m := NewConfigManager(p)
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if m.Get() != cfg {
		t.Fatalf("Load did not commit")
	}
	if cfg.Toasts.MaxVisible != 3 || cfg.Storage == nil || cfg.Storage.Driver != "sqlite" {
		t.Fatalf("decoded=%+v", cfg)
	}
	if len(cfg.Announcements) != 2 || cfg.Announcements[1].Timeout != "0s" {
		t.Fatalf("announcements=%+v", cfg.Announcements)
	}

	s, err := cfg.Toasts.Resolve()
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if s.MaxVisible != 3 || s.Appearance.Position != toast.PositionBottomLeft || s.Appearance.Theme != toast.ThemeLight {
		t.Fatalf("settings=%+v", s)
	}
	if s.Timing.DefaultTimeout != 8*time.Second || s.Timing.Exit != 250*time.Millisecond {
		t.Fatalf("timing=%+v", s.Timing)
	}
	if s.Timing.Entrance != toast.DefaultTiming().Entrance {
		t.Fatalf("entrance should default, got %v", s.Timing.Entrance)
	}
}

func TestDecodeRejectsUnknownAndTrailing(t *testing.T) {
	t.Parallel()

	if _, err := Decode("c.json", []byte(`{"toasts":{"max_visble":3}}`)); err == nil {
		t.Fatalf("unknown field accepted")
	}
	if _, err := Decode("c.json", []byte(`{"logging":{}} {"logging":{}}`)); err == nil {
		t.Fatalf("trailing data accepted")
	}
	if _, err := Decode("c.yml", []byte("toasts:\n  bogus: 1\n")); err == nil {
		t.Fatalf("unknown yaml field accepted")
	}
	if _, err := Decode("c.json", []byte(`{"toasts":{"max_visible":2}}`)); err != nil {
		t.Fatalf("valid json rejected: %v", err)
	}
}

func TestValidateReportsFieldPaths(t *testing.T) {
	t.Parallel()

	cfg := &Config{
		Logging: LoggingConfig{Level: "loud"},
		Toasts:  ToastsConfig{MaxVisible: 11, Timing: TimingConfig{Exit: "soon"}},
		Storage: &StorageConfig{Driver: "redis"},
		Telegram: TelegramConfig{
			Enabled: true,
		},
		Announcements: []AnnouncementConfig{
			{Name: "a", Schedule: "not a schedule", Message: "m"},
			{Name: "a", Schedule: "@hourly"},
		},
	}
	err := Validate(cfg)
	if err == nil {
		t.Fatalf("expected errors")
	}
	msg := err.Error()
	for _, want := range []string{
		"logging.level",
		"toasts.max_visible",
		"storage.driver",
		"telegram.token",
		"telegram.chat_id",
		"announcements[0].schedule",
		"announcements[1].name: duplicate",
		"announcements[1].message",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("missing %q in %q", want, msg)
		}
	}
}

func TestResolveRejectsBadTiming(t *testing.T) {
	t.Parallel()
	_, err := ToastsConfig{Timing: TimingConfig{Exit: "soon"}}.Resolve()
	if err == nil || !strings.Contains(err.Error(), "toasts.timing.exit") {
		t.Fatalf("err=%v", err)
	}
	_, err = ToastsConfig{Position: "middle"}.Resolve()
	if err == nil || !strings.Contains(err.Error(), "toasts.position") {
		t.Fatalf("err=%v", err)
	}
}

func TestSummarizeConfigChangeHidesTokens(t *testing.T) {
	t.Parallel()

	oldCfg := &Config{Telegram: TelegramConfig{Token: "secret-1"}}
	newCfg := &Config{
		Telegram:      TelegramConfig{Token: "secret-2"},
		Toasts:        ToastsConfig{MaxVisible: 4},
		Announcements: []AnnouncementConfig{{Name: "x", Schedule: "@hourly", Message: "m"}},
	}
	changed, attrs := SummarizeConfigChange(oldCfg, newCfg)
	if want := []string{"announcements", "telegram", "toasts"}; !reflect.DeepEqual(changed, want) {
		t.Fatalf("changed=%v, want %v", changed, want)
	}
	var buf bytes.Buffer
	logx.NewJSON(&buf, "debug").Info("config changed", attrs...)
	if strings.Contains(buf.String(), "secret") {
		t.Fatalf("token leaked: %s", buf.String())
	}
	if !strings.Contains(buf.String(), `"telegram.token_set":true`) {
		t.Fatalf("summary=%s", buf.String())
	}

	if changed, _ := SummarizeConfigChange(newCfg, newCfg); len(changed) != 0 {
		t.Fatalf("identical configs reported %v", changed)
	}
}

func TestDiffAnnouncements(t *testing.T) {
	t.Parallel()
	oldL := []AnnouncementConfig{{Name: "a", Message: "1"}, {Name: "b", Message: "1"}}
	newL := []AnnouncementConfig{{Name: "a", Message: "1"}, {Name: "b", Message: "2"}, {Name: "c"}}
	if got := diffAnnouncements(oldL, newL); !reflect.DeepEqual(got, []string{"b", "c"}) {
		t.Fatalf("diff=%v", got)
	}
	if got := diffAnnouncements(newL, oldL[:1]); !reflect.DeepEqual(got, []string{"b", "c"}) {
		t.Fatalf("removal diff=%v", got)
	}
}

func TestWatchPublishesValidChanges(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	p := writeFile(t, dir, "toastd.yaml", "toasts:\n  max_visible: 2\n")

	m := NewConfigManager(p)
	if _, err := m.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	updates := m.Subscribe(4)
	defer m.Unsubscribe(updates)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Watch(ctx) }()
	defer func() {
		cancel()
		<-done
	}()

	// Give the watcher time to register the directory.
	time.Sleep(100 * time.Millisecond)

	writeFile(t, dir, "toastd.yaml", "toasts:\n  max_visible: 99\n")
	select {
	case cfg := <-updates:
		t.Fatalf("invalid config published: %+v", cfg.Toasts)
	case <-time.After(600 * time.Millisecond):
	}

	writeFile(t, dir, "toastd.yaml", "toasts:\n  max_visible: 4\n")
	select {
	case cfg := <-updates:
		if cfg.Toasts.MaxVisible != 4 {
			t.Fatalf("published max_visible=%d", cfg.Toasts.MaxVisible)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("no update published")
	}
	if got := m.Get().Toasts.MaxVisible; got != 4 {
		t.Fatalf("committed max_visible=%d", got)
	}
}

func TestPublishKeepsNewest(t *testing.T) {
	t.Parallel()
	m := NewConfigManager("unused.yaml")
	ch := m.Subscribe(1)
	a, b := &Config{}, &Config{}
	m.publish(a)
	m.publish(b)
	if got := <-ch; got != b {
		t.Fatalf("slow subscriber should see the newest config")
	}
	m.Unsubscribe(ch)
	m.Unsubscribe(ch)
	m.publish(a)
}

func TestDefsConvertsAnnouncements(t *testing.T) {
	t.Parallel()
	defs, err := Defs([]AnnouncementConfig{
		{Name: "a", Schedule: "@hourly", Message: "m"},
		{Name: "b", Schedule: "@daily", Message: "m", Category: "error", Size: "small", Timeout: "0s"},
		{Name: "c", Schedule: "@daily", Message: "m", Disabled: true},
	})
	if err != nil {
		t.Fatalf("Defs: %v", err)
	}
	if len(defs) != 2 {
		t.Fatalf("defs=%+v", defs)
	}
	if defs[0].Category != toast.CategoryInfo || defs[0].HasTimeout {
		t.Fatalf("defaults=%+v", defs[0])
	}
	if defs[1].Category != toast.CategoryError || defs[1].Size != toast.SizeSmall || !defs[1].HasTimeout || defs[1].Timeout != 0 {
		t.Fatalf("explicit=%+v", defs[1])
	}
	if _, err := Defs([]AnnouncementConfig{{Name: "x", Category: "loud"}}); err == nil {
		t.Fatalf("bad category accepted")
	}
}
