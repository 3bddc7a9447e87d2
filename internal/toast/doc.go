// Package toast is the notification controller.
//
// A Controller admits toasts into a FIFO queue, promotes them into a
// capacity-bounded visible set, keeps a single live countdown on the first
// visible toast that declares a timeout, and walks stateful toasts through
// their ordered states (next, previous, jump, conditional jump, skip).
//
// Every mutation, whether from a caller or from a timer, runs under one lock.
// Timers are driven by a single deadline-ordered loop; each callback checks
// that its toast is still in the expected state before acting, so a callback
// that fires after cancellation is harmless.
//
// Renderers subscribe to the controller and re-read Toasts() on each
// EventChanged, which fires at most once per change tick.
package toast
