package history

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"toastd/internal/eventbus"
	"toastd/internal/storage"
	"toastd/internal/toast"
)

type memStore struct {
	mu      sync.Mutex
	entries []storage.Entry
	fail    bool
}

func (m *memStore) AppendEvent(_ context.Context, e storage.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errors.New("disk full")
	}
	m.entries = append(m.entries, e)
	return nil
}

func (m *memStore) Recent(_ context.Context, limit int) ([]storage.Entry, error) {
	return nil, nil
}

func (m *memStore) Close() error { return nil }

func (m *memStore) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func lifecycle(typ string, i int) eventbus.Event {
	return eventbus.Event{
		Type: typ,
		Time: time.Unix(int64(i), 0),
		Data: toast.Lifecycle{ID: fmt.Sprintf("T%d", i), Category: toast.CategoryWarning, Reason: "expired"},
	}
}

func TestRecordWritesStoreAndRing(t *testing.T) {
	t.Parallel()
	st := &memStore{}
	r := New(st, WithRingSize(3))

	for i := 1; i <= 5; i++ {
		r.Record(context.Background(), lifecycle(toast.EventRemoved, i))
	}
	r.Record(context.Background(), eventbus.Event{Type: toast.EventChanged})

	if st.len() != 5 {
		t.Fatalf("store has %d entries", st.len())
	}
	got := r.Recent(0)
	if len(got) != 3 || got[0].ToastID != "T5" || got[2].ToastID != "T3" {
		t.Fatalf("ring=%+v", got)
	}
	if got[0].Category != "warning" || got[0].Reason != "expired" || got[0].Type != toast.EventRemoved {
		t.Fatalf("entry=%+v", got[0])
	}
	if two := r.Recent(2); len(two) != 2 || two[1].ToastID != "T4" {
		t.Fatalf("Recent(2)=%+v", two)
	}
	if s := r.Stats(); s.Written != 5 || s.Skipped != 0 {
		t.Fatalf("stats=%+v", s)
	}
}

func TestRecordRateLimitsStoreOnly(t *testing.T) {
	t.Parallel()
	st := &memStore{}
	r := New(st, WithRate(2))

	for i := 1; i <= 10; i++ {
		r.Record(context.Background(), lifecycle(toast.EventShown, i))
	}
	if n := st.len(); n < 2 || n > 3 {
		t.Fatalf("store got %d writes, want about the burst of 2", n)
	}
	if len(r.Recent(0)) != 10 {
		t.Fatalf("ring should keep every entry")
	}
	if s := r.Stats(); s.Skipped == 0 || s.Written+s.Skipped != 10 {
		t.Fatalf("stats=%+v", s)
	}
}

func TestRecordCountsFailures(t *testing.T) {
	t.Parallel()
	r := New(&memStore{fail: true})
	r.Record(context.Background(), lifecycle(toast.EventExpired, 1))
	if s := r.Stats(); s.Failed != 1 || s.Written != 0 {
		t.Fatalf("stats=%+v", s)
	}
	if nilStore := New(nil); len(nilStore.Recent(5)) != 0 {
		t.Fatalf("empty recorder returned entries")
	}
}

func TestRunConsumesControllerEvents(t *testing.T) {
	t.Parallel()
	bus := eventbus.New()
	c := toast.New(toast.WithBus(bus), toast.WithTiming(toast.Timing{Exit: 5 * time.Millisecond, Entrance: time.Millisecond}))
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer c.Stop(context.Background())

	st := &memStore{}
	r := New(st)
	events, unsub := bus.Subscribe(64, Types...)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx, events)
		close(done)
	}()

	id := c.ShowToast("hello", toast.Persistent())
	c.RemoveToast(id)

	deadline := time.Now().Add(time.Second)
	for st.len() < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	<-done
	unsub()

	got := r.Recent(0)
	if len(got) != 3 {
		t.Fatalf("recorded %d entries: %+v", len(got), got)
	}
	want := []string{toast.EventRemoved, toast.EventPromoted, toast.EventShown}
	for i, e := range got {
		if e.Type != want[i] || e.ToastID != id {
			t.Fatalf("entry %d=%+v, want type %s", i, e, want[i])
		}
	}
	if got[0].Reason != toast.ReasonDismissed {
		t.Fatalf("removal reason=%q", got[0].Reason)
	}
}
