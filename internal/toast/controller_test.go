package toast

import (
	"context"
	"errors"
	"reflect"
	"sync/atomic"
	"testing"
	"time"

	"toastd/internal/eventbus"
)

func fastTiming() Timing {
	return Timing{
		DefaultTimeout:   5 * time.Second,
		Entrance:         5 * time.Millisecond,
		Exit:             20 * time.Millisecond,
		TransitionOut:    5 * time.Millisecond,
		TransitionSettle: 10 * time.Millisecond,
		ProgressTick:     2 * time.Millisecond,
		ChangeTick:       5 * time.Millisecond,
		AutoAdvanceDelay: 50 * time.Millisecond,
		ProgressEpsilon:  0.1,
	}
}

func newTestController(t *testing.T, opts ...Option) *Controller {
	t.Helper()
	c := New(append([]Option{WithTiming(fastTiming())}, opts...)...)
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = c.Stop(ctx)
	})
	return c
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool, what string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for: %s", what)
}

func visibleIDs(c *Controller) []string {
	var ids []string
	for _, t := range c.Toasts() {
		ids = append(ids, t.ID)
	}
	return ids
}

func currentState(c *Controller, id string) int {
	t, ok := c.GetToast(id)
	if !ok {
		return -100
	}
	return t.CurrentState
}

func threeStates() []State {
	return []State{{Title: "S0"}, {Title: "S1"}, {Title: "S2"}}
}

func TestQueueAdmissionAndPromotion(t *testing.T) {
	t.Parallel()
	c := newTestController(t, WithMaxVisible(2))

	a := c.ShowToast("A", Persistent())
	b := c.ShowToast("B", Persistent())
	cc := c.ShowToast("C", Persistent())

	if got := c.QueueStatus(); got != (QueueStatus{Visible: 2, Queued: 1, Total: 3}) {
		t.Fatalf("status=%+v, want (2,1,3)", got)
	}
	if got := visibleIDs(c); !reflect.DeepEqual(got, []string{a, b}) {
		t.Fatalf("visible=%v, want [%s %s]", got, a, b)
	}
	if _, ok := c.GetToast(cc); ok {
		t.Fatalf("queued toast should not be visible")
	}

	c.RemoveToast(a)
	waitFor(t, time.Second, func() bool {
		return c.QueueStatus() == QueueStatus{Visible: 2, Queued: 0, Total: 2}
	}, "C promoted after A exits")
	if got := visibleIDs(c); !reflect.DeepEqual(got, []string{b, cc}) {
		t.Fatalf("visible=%v, want [%s %s]", got, b, cc)
	}
	waitFor(t, time.Second, func() bool {
		tc, ok := c.GetToast(cc)
		return ok && tc.Visible
	}, "entrance flag set")
}

func TestRemoveIsDeferredAndIdempotent(t *testing.T) {
	t.Parallel()
	c := newTestController(t)

	id := c.ShowToast("x", Persistent())
	c.RemoveToast(id)
	got, ok := c.GetToast(id)
	if !ok || !got.Removing || got.Visible {
		t.Fatalf("toast should be exiting but still present: %+v ok=%v", got, ok)
	}
	c.RemoveToast(id)
	c.RemoveToast("nope")
	waitFor(t, time.Second, func() bool { _, ok := c.GetToast(id); return !ok }, "purge after exit delay")
	c.RemoveToast(id)
	if got := c.QueueStatus(); got.Total != 0 {
		t.Fatalf("status=%+v", got)
	}
}

func TestVisibleNeverExceedsLimit(t *testing.T) {
	t.Parallel()
	c := newTestController(t, WithMaxVisible(3))

	for i := 1; i <= 20; i++ {
		c.ShowToast("m", Persistent())
		st := c.QueueStatus()
		if st.Visible > 3 {
			t.Fatalf("visible=%d exceeds limit", st.Visible)
		}
		if st.Queued != i-st.Visible || st.Total != i {
			t.Fatalf("after %d shows: %+v", i, st)
		}
	}

	c.FlushQueue()
	if got := c.QueueStatus(); got != (QueueStatus{Visible: 20, Queued: 0, Total: 20}) {
		t.Fatalf("after flush: %+v", got)
	}
	if got := c.MaxVisible(); got != 3 {
		t.Fatalf("flush changed limit to %d", got)
	}
}

func TestSetMaxVisibleClampsAndPromotes(t *testing.T) {
	t.Parallel()
	c := newTestController(t, WithMaxVisible(1))

	for i := 0; i < 4; i++ {
		c.ShowToast("m", Persistent())
	}
	c.SetMaxVisibleToasts(3)
	if got := c.QueueStatus(); got.Visible != 3 || got.Queued != 1 {
		t.Fatalf("status=%+v", got)
	}
	c.SetMaxVisibleToasts(0)
	if got := c.MaxVisible(); got != 1 {
		t.Fatalf("clamp low=%d", got)
	}
	if got := c.QueueStatus(); got.Visible != 3 {
		t.Fatalf("shrinking the limit hid toasts: %+v", got)
	}
	c.SetMaxVisibleToasts(99)
	if got := c.MaxVisible(); got != 10 {
		t.Fatalf("clamp high=%d", got)
	}
}

func TestClearQueueKeepsVisible(t *testing.T) {
	t.Parallel()
	c := newTestController(t, WithMaxVisible(1))

	first := c.ShowToast("a", Persistent())
	c.ShowToast("b", Persistent())
	c.ShowToast("c", Persistent())
	c.ClearQueue()

	if got := c.QueueStatus(); got != (QueueStatus{Visible: 1, Queued: 0, Total: 1}) {
		t.Fatalf("status=%+v", got)
	}
	if got := visibleIDs(c); !reflect.DeepEqual(got, []string{first}) {
		t.Fatalf("visible=%v", got)
	}
}

func TestRemoveAll(t *testing.T) {
	t.Parallel()
	c := newTestController(t, WithMaxVisible(1))

	c.ShowToast("a")
	c.ShowToast("b")
	c.RemoveAll()
	if got := c.QueueStatus(); got.Total != 0 {
		t.Fatalf("status=%+v", got)
	}
	if c.ActiveToastID() != "" {
		t.Fatalf("active survived RemoveAll")
	}
}

func TestStatefulNextTwiceThenFails(t *testing.T) {
	t.Parallel()
	c := newTestController(t)

	id, err := c.ShowStatefulToast(threeStates())
	if err != nil {
		t.Fatalf("ShowStatefulToast: %v", err)
	}
	if !c.TransitionToNext(id) || !c.TransitionToNext(id) {
		t.Fatalf("first two transitions should succeed")
	}
	waitFor(t, time.Second, func() bool { return currentState(c, id) == 2 }, "index 2")
	if c.TransitionToNext(id) {
		t.Fatalf("third next should fail")
	}
	time.Sleep(20 * time.Millisecond)
	if got := currentState(c, id); got != 2 {
		t.Fatalf("index=%d after failed next", got)
	}
	tc, _ := c.GetToast(id)
	if tc.Title != "S2" || tc.HasNext || !tc.HasPrevious || tc.Remaining != 0 || tc.Completed != 3 {
		t.Fatalf("snapshot=%+v", tc)
	}
}

func TestStatefulPreviousAndTransitioningFlag(t *testing.T) {
	t.Parallel()
	c := newTestController(t)

	id, _ := c.ShowStatefulToast(threeStates())
	if c.TransitionToPrevious(id) {
		t.Fatalf("previous from 0 should fail")
	}
	c.TransitionToState(id, 2)
	if tc, _ := c.GetToast(id); !tc.Transitioning || tc.CurrentState != 0 {
		t.Fatalf("during the out phase the old state stays: %+v", tc)
	}
	waitFor(t, time.Second, func() bool { return currentState(c, id) == 2 }, "jump to 2")
	waitFor(t, time.Second, func() bool { tc, _ := c.GetToast(id); return !tc.Transitioning }, "transitioning cleared")

	if !c.TransitionToPrevious(id) {
		t.Fatalf("previous from 2 should succeed")
	}
	waitFor(t, time.Second, func() bool { return currentState(c, id) == 1 }, "back to 1")
}

func TestSkipStateIsTransparentToNext(t *testing.T) {
	t.Parallel()
	c := newTestController(t)

	id, _ := c.ShowStatefulToast(threeStates())
	if !c.SkipStates(id, 1) {
		t.Fatalf("SkipStates failed")
	}
	if got := currentState(c, id); got != 0 {
		t.Fatalf("skip moved index to %d", got)
	}
	c.TransitionToNext(id)
	waitFor(t, time.Second, func() bool { return currentState(c, id) == 2 }, "next lands on 2")

	c.TransitionToPrevious(id)
	waitFor(t, time.Second, func() bool { return currentState(c, id) == 0 }, "previous skips 1")

	c.TransitionToState(id, 1)
	waitFor(t, time.Second, func() bool { return currentState(c, id) == 1 }, "explicit jump lands on skipped 1")

	tc, _ := c.GetToast(id)
	if !reflect.DeepEqual(tc.Skipped, []int{1}) || !reflect.DeepEqual(tc.ActiveStates, []int{0, 2}) {
		t.Fatalf("skipped=%v active=%v", tc.Skipped, tc.ActiveStates)
	}

	c.UnskipState(id, 1)
	if tc, _ := c.GetToast(id); len(tc.Skipped) != 0 {
		t.Fatalf("unskip left %v", tc.Skipped)
	}
}

func TestJumpOutOfRangeFailsWithoutMutation(t *testing.T) {
	t.Parallel()
	c := newTestController(t)

	id, _ := c.ShowStatefulToast(threeStates())
	for _, idx := range []int{-1, 3, 100} {
		if c.TransitionToState(id, idx) {
			t.Fatalf("jump to %d should fail", idx)
		}
	}
	tc, _ := c.GetToast(id)
	if tc.CurrentState != 0 || tc.Transitioning {
		t.Fatalf("failed jump mutated toast: %+v", tc)
	}
}

func TestAutoAdvanceFiresOnce(t *testing.T) {
	t.Parallel()
	c := newTestController(t)
	events, unsub := c.Subscribe(16, EventTransitioned)
	defer unsub()

	states := threeStates()
	states[0].AutoAdvance = true
	states[0].AutoAdvanceDelay = 60 * time.Millisecond
	id, _ := c.ShowStatefulToast(states)

	time.Sleep(30 * time.Millisecond)
	if got := currentState(c, id); got != 0 {
		t.Fatalf("advanced early to %d", got)
	}
	waitFor(t, time.Second, func() bool { return currentState(c, id) == 1 }, "auto-advance to 1")
	time.Sleep(150 * time.Millisecond)
	if got := currentState(c, id); got != 1 {
		t.Fatalf("advanced again to %d", got)
	}

	if transitions := len(events); transitions != 1 {
		t.Fatalf("transitions=%d, want 1", transitions)
	}
}

func TestAutoAdvanceUsesDefaultDelayAndChains(t *testing.T) {
	t.Parallel()
	c := newTestController(t)

	states := ProgressStates("Deploy", []string{"build", "push", "done"}, 0)
	id, _ := c.ShowStatefulToast(states)
	waitFor(t, 2*time.Second, func() bool { return currentState(c, id) == 2 }, "progress reaches last step")
	tc, _ := c.GetToast(id)
	if tc.Category != CategorySuccess || len(tc.Buttons) != 1 || !tc.Buttons[0].CloseOnClick {
		t.Fatalf("last step=%+v", tc)
	}
}

func TestStaleAutoAdvanceIsIgnored(t *testing.T) {
	t.Parallel()
	c := newTestController(t)

	states := threeStates()
	states[0].AutoAdvance = true
	states[0].AutoAdvanceDelay = 40 * time.Millisecond
	id, _ := c.ShowStatefulToast(states)

	c.TransitionToState(id, 2)
	waitFor(t, time.Second, func() bool { return currentState(c, id) == 2 }, "jump to 2")
	time.Sleep(80 * time.Millisecond)
	if got := currentState(c, id); got != 2 {
		t.Fatalf("stale advance moved toast to %d", got)
	}

	other, _ := c.ShowStatefulToast(states)
	c.RemoveToast(other)
	time.Sleep(80 * time.Millisecond)
	if _, ok := c.GetToast(other); ok {
		t.Fatalf("removed toast still present")
	}
}

func TestManualTransitionCancelsArmedAdvance(t *testing.T) {
	t.Parallel()
	tm := fastTiming()
	tm.TransitionOut = 30 * time.Millisecond
	c := newTestController(t, WithTiming(tm))

	states := threeStates()
	states[0].AutoAdvance = true
	states[0].AutoAdvanceDelay = 150 * time.Millisecond
	id, _ := c.ShowStatefulToast(states)
	waitFor(t, time.Second, func() bool { return currentState(c, id) == 0 }, "first state")

	if !c.TransitionToNext(id) {
		t.Fatalf("TransitionToNext failed")
	}
	waitFor(t, time.Second, func() bool { return currentState(c, id) == 1 }, "second state")
	time.Sleep(300 * time.Millisecond)
	if got := currentState(c, id); got != 1 {
		t.Fatalf("armed advance also fired: state=%d, want 1", got)
	}
}

func TestDroppedTransitionRearmsAdvance(t *testing.T) {
	t.Parallel()
	tm := fastTiming()
	tm.TransitionOut = 30 * time.Millisecond
	c := newTestController(t, WithTiming(tm))

	states := threeStates()
	states[0].AutoAdvance = true
	states[0].AutoAdvanceDelay = 200 * time.Millisecond
	id, _ := c.ShowStatefulToast(states)
	waitFor(t, time.Second, func() bool { return currentState(c, id) == 0 }, "first state")

	// Skipping every later state while the transition is in flight drops it.
	c.TransitionToNext(id)
	c.SkipStates(id, 1, 2)
	time.Sleep(60 * time.Millisecond)
	if got := currentState(c, id); got != 0 {
		t.Fatalf("dropped transition moved toast to %d", got)
	}
	c.UnskipState(id, 2)
	waitFor(t, time.Second, func() bool { return currentState(c, id) == 2 }, "re-armed advance")
}

func TestStartDeferred(t *testing.T) {
	t.Parallel()
	c := newTestController(t)

	states := threeStates()
	states[0].AutoAdvance = true
	id, _ := c.ShowStatefulToast(states, WithStartImmediately(false))
	tc, _ := c.GetToast(id)
	if tc.CurrentState != -1 || tc.Title != "S0" || tc.HasPrevious {
		t.Fatalf("deferred toast=%+v", tc)
	}
	time.Sleep(100 * time.Millisecond)
	if got := currentState(c, id); got != -1 {
		t.Fatalf("deferred toast auto-advanced to %d", got)
	}
	c.TransitionToNext(id)
	waitFor(t, time.Second, func() bool { return currentState(c, id) == 0 }, "enter first state")
}

func TestEmptyStatesRejected(t *testing.T) {
	t.Parallel()
	c := newTestController(t)

	id, err := c.ShowStatefulToast(nil)
	if !errors.Is(err, ErrNoStates) || id != "" {
		t.Fatalf("id=%q err=%v", id, err)
	}
	if got := c.QueueStatus(); got.Total != 0 {
		t.Fatalf("queue mutated: %+v", got)
	}
}

func TestUnknownIDsFailQuietly(t *testing.T) {
	t.Parallel()
	c := newTestController(t)

	simple := c.ShowToast("x", Persistent())
	checks := map[string]bool{
		"next":         c.TransitionToNext("nope"),
		"previous":     c.TransitionToPrevious("nope"),
		"jump":         c.TransitionToState("nope", 0),
		"conditional":  c.ConditionalJump("nope", func(string) int { return 0 }),
		"skip":         c.SkipStates("nope", 1),
		"update":       c.UpdateToast("nope", Update{}),
		"add button":   c.AddButton("nope", Button{}),
		"rm button":    c.RemoveButton(simple, "missing"),
		"extend":       c.ExtendTimeout("nope", time.Second),
		"persistent":   c.MakePersistent("nope"),
		"next simple":  c.TransitionToNext(simple),
		"extend nolim": c.ExtendTimeout(simple, time.Second),
	}
	for name, ok := range checks {
		if ok {
			t.Fatalf("%s: expected failure", name)
		}
	}
	if _, ok := c.GetToast("nope"); ok {
		t.Fatalf("GetToast found unknown id")
	}
}

func TestSingleActiveCountdown(t *testing.T) {
	t.Parallel()
	c := newTestController(t)

	first := c.ShowToast("first", WithTimeout(150*time.Millisecond))
	second := c.ShowToast("second", WithTimeout(400*time.Millisecond))
	persistent := c.ShowToast("p", Persistent())

	if got := c.ActiveToastID(); got != first {
		t.Fatalf("active=%q, want first %q", got, first)
	}
	waitFor(t, time.Second, func() bool {
		tc, _ := c.GetToast(first)
		return tc.Progress < 90
	}, "first progress moves")
	if tc, _ := c.GetToast(second); tc.Progress != 100 || tc.Active {
		t.Fatalf("inactive toast progress moved: %+v", tc)
	}

	waitFor(t, time.Second, func() bool { return c.ActiveToastID() == second }, "countdown passes to second")
	waitFor(t, time.Second, func() bool { _, ok := c.GetToast(first); return !ok }, "first purged")
	waitFor(t, 2*time.Second, func() bool { _, ok := c.GetToast(second); return !ok }, "second expires")
	if _, ok := c.GetToast(persistent); !ok {
		t.Fatalf("persistent toast expired")
	}
	if got := c.ActiveToastID(); got != "" {
		t.Fatalf("active=%q with only persistent toasts left", got)
	}
}

func TestProgressIsNonIncreasingAndExpiresOnTime(t *testing.T) {
	t.Parallel()
	c := newTestController(t)

	timeout := 200 * time.Millisecond
	start := time.Now()
	id := c.ShowToast("x", WithTimeout(timeout))
	last := 100.0
	for {
		tc, ok := c.GetToast(id)
		if !ok || tc.Removing {
			break
		}
		if tc.Progress > last {
			t.Fatalf("progress rose from %.2f to %.2f", last, tc.Progress)
		}
		last = tc.Progress
		time.Sleep(3 * time.Millisecond)
		if time.Since(start) > 2*time.Second {
			t.Fatalf("toast never expired")
		}
	}
	if elapsed := time.Since(start); elapsed < timeout {
		t.Fatalf("expired after %v, before timeout %v", elapsed, timeout)
	}
}

func TestExtendTimeoutResetsProgress(t *testing.T) {
	t.Parallel()
	c := newTestController(t)

	id := c.ShowToast("x", WithTimeout(150*time.Millisecond))
	waitFor(t, time.Second, func() bool { tc, _ := c.GetToast(id); return tc.Progress < 70 }, "progress drops")
	if !c.ExtendTimeout(id, 300*time.Millisecond) {
		t.Fatalf("ExtendTimeout failed")
	}
	tc, _ := c.GetToast(id)
	if tc.Progress != 100 || tc.Timeout <= 300*time.Millisecond {
		t.Fatalf("after extend: progress=%.1f timeout=%v", tc.Progress, tc.Timeout)
	}
	time.Sleep(150 * time.Millisecond)
	if tc, ok := c.GetToast(id); !ok || tc.Removing {
		t.Fatalf("toast expired on the original schedule")
	}
}

func TestMakePersistentHandsCountdownOn(t *testing.T) {
	t.Parallel()
	c := newTestController(t)

	first := c.ShowToast("first", WithTimeout(100*time.Millisecond))
	second := c.ShowToast("second", WithTimeout(time.Second))
	if !c.MakePersistent(first) {
		t.Fatalf("MakePersistent failed")
	}
	if got := c.ActiveToastID(); got != second {
		t.Fatalf("active=%q, want %q", got, second)
	}
	time.Sleep(200 * time.Millisecond)
	tc, ok := c.GetToast(first)
	if !ok || tc.Removing || tc.Timeout != 0 || tc.Progress != 100 {
		t.Fatalf("persistent toast=%+v ok=%v", tc, ok)
	}
}

func TestStatefulToastNeverCountsDown(t *testing.T) {
	t.Parallel()
	c := newTestController(t)

	id, _ := c.ShowStatefulToast(threeStates(), WithTimeout(10*time.Millisecond))
	tc, _ := c.GetToast(id)
	if tc.Timeout != 0 || tc.ShowProgress() || c.IsToastActive(id) {
		t.Fatalf("stateful toast has a countdown: %+v", tc)
	}
	if tc.Size != SizeLarge {
		t.Fatalf("stateful default size=%v", tc.Size)
	}
}

func TestConditionalJumpSelectorPanicIsContained(t *testing.T) {
	t.Parallel()
	c := newTestController(t)

	id, _ := c.ShowStatefulToast(threeStates())
	if c.ConditionalJump(id, func(string) int { panic("bad selector") }) {
		t.Fatalf("panicking selector should fail")
	}
	var seen atomic.Value
	if !c.ConditionalJump(id, func(toastID string) int { seen.Store(toastID); return 2 }) {
		t.Fatalf("conditional jump failed after a panic")
	}
	if got, _ := seen.Load().(string); got != id {
		t.Fatalf("selector got id %q", got)
	}
	waitFor(t, time.Second, func() bool { return currentState(c, id) == 2 }, "conditional target")
}

func TestButtonsAndUpdates(t *testing.T) {
	t.Parallel()
	c := newTestController(t)

	id := c.ShowToastWithButtons("body", CategoryWarning, "title", []Button{{Text: "ok"}})
	tc, _ := c.GetToast(id)
	if tc.Timeout != 0 || len(tc.Buttons) != 1 || tc.Buttons[0].ID == "" {
		t.Fatalf("toast=%+v", tc)
	}
	if !c.AddButton(id, Button{ID: "extra", Text: "more"}) {
		t.Fatalf("AddButton failed")
	}
	if !c.RemoveButton(id, tc.Buttons[0].ID) {
		t.Fatalf("RemoveButton failed")
	}
	msg, cat := "new body", CategoryError
	if !c.UpdateToast(id, Update{Message: &msg, Category: &cat}) {
		t.Fatalf("UpdateToast failed")
	}
	tc, _ = c.GetToast(id)
	if tc.Message != "new body" || tc.Title != "title" || tc.Category != CategoryError {
		t.Fatalf("update=%+v", tc)
	}
	if len(tc.Buttons) != 1 || tc.Buttons[0].ID != "extra" {
		t.Fatalf("buttons=%+v", tc.Buttons)
	}
	if b, ok := c.Button(id, "extra"); !ok || b.Text != "more" {
		t.Fatalf("Button lookup=%+v,%v", b, ok)
	}
}

func TestSetSizeAndClearButtons(t *testing.T) {
	t.Parallel()
	c := newTestController(t, WithMaxVisible(1))

	id := c.ShowToastWithButtons("body", CategoryInfo, "", []Button{{Text: "a"}, {Text: "b"}})
	queued := c.ShowToast("queued")
	if !c.SetSize(id, SizeSmall) {
		t.Fatalf("SetSize failed")
	}
	if tc, _ := c.GetToast(id); tc.Size != SizeSmall {
		t.Fatalf("size=%v", tc.Size)
	}
	if !c.ClearButtons(id) {
		t.Fatalf("ClearButtons failed")
	}
	if tc, _ := c.GetToast(id); len(tc.Buttons) != 0 {
		t.Fatalf("buttons=%+v", tc.Buttons)
	}
	// Queued and unknown toasts are not editable.
	if c.SetSize(queued, SizeLarge) || c.ClearButtons(queued) {
		t.Fatalf("queued toast was edited")
	}
	if c.SetSize("missing", SizeLarge) || c.ClearButtons("missing") {
		t.Fatalf("unknown toast was edited")
	}
}

func TestNilShowOptionsAreSkipped(t *testing.T) {
	t.Parallel()
	c := newTestController(t)

	id := c.ShowToast("plain", nil, WithTitle("t"), nil)
	if tc, ok := c.GetToast(id); !ok || tc.Title != "t" {
		t.Fatalf("plain=%+v ok=%v", tc, ok)
	}
	bid := c.ShowToastWithButtons("buttons", CategoryInfo, "", nil, nil)
	if _, ok := c.GetToast(bid); !ok {
		t.Fatalf("buttons toast missing")
	}
	sid, err := c.ShowStatefulToast(threeStates(), nil, WithSize(SizeSmall))
	if err != nil {
		t.Fatalf("ShowStatefulToast: %v", err)
	}
	if tc, ok := c.GetToast(sid); !ok || tc.Size != SizeSmall {
		t.Fatalf("stateful=%+v ok=%v", tc, ok)
	}
}

func TestToastDataSurvivesStates(t *testing.T) {
	t.Parallel()
	c := newTestController(t)

	orig := map[string]any{"job": "backup", "drop": true}
	id, _ := c.ShowStatefulToast(threeStates(), WithData(orig))
	if tc, _ := c.GetToast(id); tc.Category != CategoryDefault {
		t.Fatalf("zero state category=%v", tc.Category)
	}
	if !c.UpdateToast(id, Update{Data: map[string]any{"step": 1, "drop": nil}}) {
		t.Fatalf("UpdateToast failed")
	}
	if !c.TransitionToNext(id) {
		t.Fatalf("next failed")
	}
	waitFor(t, time.Second, func() bool { return currentState(c, id) == 1 }, "state 1")

	tc, _ := c.GetToast(id)
	want := map[string]any{"job": "backup", "step": 1}
	if !reflect.DeepEqual(tc.Data, want) {
		t.Fatalf("data=%v, want %v", tc.Data, want)
	}
	if len(orig) != 2 || orig["drop"] != true {
		t.Fatalf("caller map changed: %v", orig)
	}
}

func TestChangeNotificationsAreCoalesced(t *testing.T) {
	t.Parallel()
	bus := eventbus.New()
	c := New(WithTiming(Timing{ChangeTick: 40 * time.Millisecond}), WithBus(bus))
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { _ = c.Stop(context.Background()) })

	changes, unsub := bus.Subscribe(64, EventChanged)
	defer unsub()

	for i := 0; i < 50; i++ {
		c.ShowToast("m", Persistent())
	}
	waitFor(t, time.Second, func() bool { return len(changes) > 0 }, "first change notification")
	time.Sleep(200 * time.Millisecond)

	n := len(changes)
	if n > 6 {
		t.Fatalf("got %d notifications for one burst", n)
	}
	for i := 0; i < n; i++ {
		if e := <-changes; e.Data != nil {
			t.Fatalf("change event carries data: %v", e.Data)
		}
	}
	time.Sleep(120 * time.Millisecond)
	if extra := len(changes); extra != 0 {
		t.Fatalf("idle controller fired %d notifications", extra)
	}
}

func TestAppearanceIsStored(t *testing.T) {
	t.Parallel()
	c := New()
	c.SetPosition(PositionBottomCenter)
	c.SetAnimation(AnimationFade)
	c.SetTheme(ThemeColored)
	want := Appearance{Position: PositionBottomCenter, Animation: AnimationFade, Theme: ThemeColored}
	if got := c.Appearance(); got != want {
		t.Fatalf("appearance=%+v", got)
	}
}

func TestStopCancelsTimersAndIsIdempotent(t *testing.T) {
	t.Parallel()
	c := New(WithTiming(fastTiming()))
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	states := threeStates()
	states[0].AutoAdvance = true
	id, _ := c.ShowStatefulToast(states)
	c.ShowToast("x", WithTimeout(time.Hour))
	c.TransitionToNext(id)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := c.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := c.Stop(ctx); err != nil {
		t.Fatalf("second Stop: %v", err)
	}
	if n := c.timers.len(); n != 0 {
		t.Fatalf("%d timers survived Stop", n)
	}
	if err := c.Start(ctx); !errors.Is(err, ErrStopped) {
		t.Fatalf("Start after Stop err=%v", err)
	}
}
