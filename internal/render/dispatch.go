// Package render mirrors controller state onto notification surfaces and
// turns surface clicks back into controller calls.
package render

import (
	"runtime/debug"

	"toastd/internal/eventbus"
	"toastd/internal/toast"
	logx "toastd/pkg/logx"
)

// Controller is the slice of *toast.Controller renderers use.
type Controller interface {
	Toasts() []toast.Toast
	GetToast(id string) (toast.Toast, bool)
	Button(id, buttonID string) (toast.Button, bool)
	RemoveToast(id string)
	SkipStates(id string, indices ...int) bool
	ConditionalJump(id string, selector func(toastID string) int) bool
	TransitionToState(id string, index int) bool
	TransitionToNext(id string) bool
	TransitionToPrevious(id string) bool
	Subscribe(buffer int, types ...string) (<-chan eventbus.Event, func())
}

// Outcome reports what a click did.
type Outcome struct {
	Found     bool
	Navigated bool
	Removed   bool
}

// Dispatch runs the clicked button of a visible toast:
//  1. OnClick (a panic is logged and does not stop the rest)
//  2. SkipStates
//  3. one navigation directive: Selector, else TargetState, else Advance
//  4. CloseOnClick, only when the button has no navigation directive
//
// Disabled and unknown buttons do nothing.
func Dispatch(c Controller, toastID, buttonID string, log logx.Logger) Outcome {
	b, ok := c.Button(toastID, buttonID)
	if !ok || b.Disabled {
		return Outcome{}
	}
	out := Outcome{Found: true}

	if b.OnClick != nil {
		runGuarded(log, "button.onclick", toastID, func() { b.OnClick(toastID) })
	}
	if len(b.SkipStates) > 0 {
		c.SkipStates(toastID, b.SkipStates...)
	}

	switch {
	case b.Selector != nil:
		out.Navigated = c.ConditionalJump(toastID, b.Selector)
	case b.TargetState != nil:
		out.Navigated = c.TransitionToState(toastID, *b.TargetState)
	case b.Advance:
		out.Navigated = c.TransitionToNext(toastID)
	}

	if b.CloseOnClick && !b.HasNavigation() {
		c.RemoveToast(toastID)
		out.Removed = true
	}
	log.Debug("button dispatched",
		logx.String("id", toastID),
		logx.String("button", buttonID),
		logx.Bool("navigated", out.Navigated),
		logx.Bool("removed", out.Removed),
	)
	return out
}

func runGuarded(log logx.Logger, what, id string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("caller callback panicked",
				logx.String("callback", what),
				logx.String("id", id),
				logx.Any("panic", r),
				logx.Stack(string(debug.Stack())),
			)
		}
	}()
	fn()
}

// Action keys for the built-in previous/next controls of stateful toasts.
const (
	ActionPrev = "nav:prev"
	ActionNext = "nav:next"
)

// HandleAction routes a surface action key: the built-in navigation keys
// move between states, anything else is a button id.
func HandleAction(c Controller, toastID, key string, log logx.Logger) Outcome {
	switch key {
	case ActionPrev:
		return Outcome{Found: true, Navigated: c.TransitionToPrevious(toastID)}
	case ActionNext:
		return Outcome{Found: true, Navigated: c.TransitionToNext(toastID)}
	}
	return Dispatch(c, toastID, key, log)
}

// NavActions lists the navigation keys a surface should offer for t, in
// display order.
func NavActions(t toast.Toast) []string {
	if !t.Stateful() || !t.ShowNavigation {
		return nil
	}
	var out []string
	if t.HasPrevious {
		out = append(out, ActionPrev)
	}
	if t.HasNext {
		out = append(out, ActionNext)
	}
	return out
}
