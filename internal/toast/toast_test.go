package toast

import (
	"reflect"
	"testing"
)

func statefulToast(n, current int, skipped ...int) *toast {
	t := &toast{states: make([]State, n), current: current, skipped: map[int]struct{}{}}
	for _, i := range skipped {
		t.skipped[i] = struct{}{}
	}
	return t
}

func TestNavigationIndices(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		n, cur    int
		skipped   []int
		next      int
		nextOK    bool
		prev      int
		prevOK    bool
		remaining int
		completed int
		active    []int
	}{
		{name: "start", n: 3, cur: 0, next: 1, nextOK: true, prev: 0, prevOK: false, remaining: 2, completed: 1, active: []int{0, 1, 2}},
		{name: "end", n: 3, cur: 2, next: 2, nextOK: false, prev: 1, prevOK: true, remaining: 0, completed: 3, active: []int{0, 1, 2}},
		{name: "skip middle", n: 3, cur: 0, skipped: []int{1}, next: 2, nextOK: true, prev: 0, prevOK: false, remaining: 1, completed: 1, active: []int{0, 2}},
		{name: "skip tail", n: 4, cur: 1, skipped: []int{2, 3}, next: 1, nextOK: false, prev: 0, prevOK: true, remaining: 0, completed: 2, active: []int{0, 1}},
		{name: "on skipped", n: 4, cur: 2, skipped: []int{2}, next: 3, nextOK: true, prev: 1, prevOK: true, remaining: 1, completed: 2, active: []int{0, 1, 3}},
		{name: "not started", n: 3, cur: -1, next: 0, nextOK: true, prev: -1, prevOK: false, remaining: 3, completed: 0, active: []int{0, 1, 2}},
		{name: "not started skip first", n: 3, cur: -1, skipped: []int{0}, next: 1, nextOK: true, prev: -1, prevOK: false, remaining: 2, completed: 0, active: []int{1, 2}},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			ts := statefulToast(tc.n, tc.cur, tc.skipped...)
			if got, ok := ts.nextIndex(); got != tc.next || ok != tc.nextOK {
				t.Fatalf("next=(%d,%v), want (%d,%v)", got, ok, tc.next, tc.nextOK)
			}
			if got, ok := ts.prevIndex(); got != tc.prev || ok != tc.prevOK {
				t.Fatalf("prev=(%d,%v), want (%d,%v)", got, ok, tc.prev, tc.prevOK)
			}
			if got := ts.remaining(); got != tc.remaining {
				t.Fatalf("remaining=%d, want %d", got, tc.remaining)
			}
			if got := ts.completed(); got != tc.completed {
				t.Fatalf("completed=%d, want %d", got, tc.completed)
			}
			if got := ts.activeIndices(); !reflect.DeepEqual(got, tc.active) {
				t.Fatalf("active=%v, want %v", got, tc.active)
			}
		})
	}
}

func TestMirrorCopiesButtons(t *testing.T) {
	t.Parallel()

	ts := &toast{states: []State{{Title: "a", Message: "m", Category: CategoryWarning, Buttons: []Button{{ID: "b1"}}}}}
	ts.mirror(0)
	if ts.title != "a" || ts.message != "m" || ts.category != CategoryWarning {
		t.Fatalf("display fields not mirrored: %+v", ts)
	}
	ts.buttons[0].ID = "changed"
	if ts.states[0].Buttons[0].ID != "b1" {
		t.Fatalf("mirror aliased the state's buttons")
	}
	ts.mirror(5)
	if ts.title != "a" {
		t.Fatalf("out-of-range mirror mutated fields")
	}
}

func TestParseEnums(t *testing.T) {
	t.Parallel()

	if p, err := ParsePosition("BottomLeft"); err != nil || p != PositionBottomLeft {
		t.Fatalf("ParsePosition=%v,%v", p, err)
	}
	if p, err := ParsePosition("top_center"); err != nil || p != PositionTopCenter {
		t.Fatalf("ParsePosition=%v,%v", p, err)
	}
	if a, err := ParseAnimation("slide-and-scale"); err != nil || a != AnimationSlideAndScale {
		t.Fatalf("ParseAnimation=%v,%v", a, err)
	}
	if th, err := ParseTheme(""); err != nil || th != ThemeDark {
		t.Fatalf("empty theme should default: %v,%v", th, err)
	}
	if _, err := ParseCategory("fatal"); err == nil {
		t.Fatalf("expected error for unknown category")
	}
	if s := SizeLarge.String(); s != "large" {
		t.Fatalf("SizeLarge.String()=%q", s)
	}
	if s := Category(42).String(); s != "unknown(42)" {
		t.Fatalf("unknown category string=%q", s)
	}
}

func TestNewIDUnique(t *testing.T) {
	t.Parallel()

	seen := map[string]struct{}{}
	for i := uint64(1); i <= 500; i++ {
		id := newID(i)
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicate id %q", id)
		}
		seen[id] = struct{}{}
	}
}
