package announce

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"testing"
	"time"

	"toastd/internal/toast"
	logx "toastd/pkg/logx"
)

type fakeShower struct {
	mu    sync.Mutex
	shown []string
}

func (f *fakeShower) ShowToast(message string, _ ...toast.ShowOption) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.shown = append(f.shown, message)
	return fmt.Sprintf("id%d", len(f.shown))
}

func (f *fakeShower) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.shown)
}

func TestParseSchedule(t *testing.T) {
	t.Parallel()
	for _, spec := range []string{"@hourly", "@every 30m", "0 9 * * 1-5", "*/10 * * * * *"} {
		if _, err := ParseSchedule(spec); err != nil {
			t.Fatalf("ParseSchedule(%q): %v", spec, err)
		}
	}
	for _, spec := range []string{"", "soon", "61 * * * *"} {
		if _, err := ParseSchedule(spec); err == nil {
			t.Fatalf("ParseSchedule(%q) accepted", spec)
		}
	}
}

func TestApplyReplacesSet(t *testing.T) {
	t.Parallel()
	s := New(&fakeShower{}, logx.Nop())

	err := s.Apply([]Def{
		{Name: "a", Schedule: "@hourly", Message: "a"},
		{Name: "b", Schedule: "@daily", Message: "b"},
		{Name: "bad", Schedule: "whenever", Message: "x"},
	})
	if err == nil {
		t.Fatalf("invalid schedule not reported")
	}
	if got := s.Names(); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Fatalf("names=%v", got)
	}

	if err := s.Apply([]Def{{Name: "b", Schedule: "@hourly", Message: "b2"}, {Name: "c", Schedule: "@daily", Message: "c"}}); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if got := s.Names(); !reflect.DeepEqual(got, []string{"b", "c"}) {
		t.Fatalf("names=%v", got)
	}
	if !s.Remove("c") || s.Remove("c") {
		t.Fatalf("Remove should succeed once")
	}
	if err := s.Upsert(Def{Name: "x", Schedule: "@hourly"}); err == nil {
		t.Fatalf("empty message accepted")
	}
}

func TestFireShowsToast(t *testing.T) {
	t.Parallel()
	sh := &fakeShower{}
	s := New(sh, logx.Nop())
	if err := s.Upsert(Def{Name: "hi", Schedule: "@daily", Message: "hello"}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if id, ok := s.Fire("hi"); !ok || id != "id1" {
		t.Fatalf("Fire=%q,%v", id, ok)
	}
	if _, ok := s.Fire("nope"); ok {
		t.Fatalf("unknown announcement fired")
	}
	if st := s.Snapshot(); len(st) != 1 || st[0].Fired != 1 {
		t.Fatalf("snapshot=%+v", st)
	}
}

func TestScheduledAnnouncementReachesController(t *testing.T) {
	t.Parallel()
	c := toast.New()
	s := New(c, logx.Nop())
	if err := s.Upsert(Def{Name: "tick", Schedule: "@every 1s", Message: "tick", Category: toast.CategorySuccess, HasTimeout: true}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	s.Start(context.Background())
	s.Start(context.Background())
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		s.Stop(ctx)
	}()

	if st := s.Snapshot(); len(st) != 1 || st[0].Next.IsZero() {
		t.Fatalf("snapshot=%+v", st)
	}

	deadline := time.Now().Add(3 * time.Second)
	for c.QueueStatus().Total == 0 && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
	}
	ts := c.Toasts()
	if len(ts) == 0 {
		t.Fatalf("no toast shown")
	}
	if ts[0].Message != "tick" || ts[0].Category != toast.CategorySuccess || ts[0].Timeout != 0 || ts[0].Data["announcement"] != "tick" {
		t.Fatalf("toast=%+v", ts[0])
	}
}

func TestStartStopsWhenContextEnds(t *testing.T) {
	t.Parallel()
	s := New(&fakeShower{}, logx.Nop())
	if err := s.Upsert(Def{Name: "tick", Schedule: "@every 1h", Message: "tick"}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	if st := s.Snapshot(); st[0].Next.IsZero() {
		t.Fatalf("not scheduled after Start: %+v", st)
	}

	cancel()
	deadline := time.Now().Add(2 * time.Second)
	for !s.Snapshot()[0].Next.IsZero() {
		if time.Now().After(deadline) {
			t.Fatalf("still scheduled after the start context ended")
		}
		time.Sleep(5 * time.Millisecond)
	}

	// A later Start runs again and is not affected by the old context.
	s.Start(context.Background())
	defer func() {
		sctx, scancel := context.WithTimeout(context.Background(), time.Second)
		defer scancel()
		s.Stop(sctx)
	}()
	if st := s.Snapshot(); st[0].Next.IsZero() {
		t.Fatalf("not scheduled after restart: %+v", st)
	}
}
