package render

import (
	"context"
	"strconv"
	"time"

	"toastd/internal/toast"
	logx "toastd/pkg/logx"
)

// Surface draws toasts somewhere: a log, the desktop, a chat.
type Surface interface {
	Name() string
	Show(ctx context.Context, t toast.Toast) error
	Update(ctx context.Context, t toast.Toast) error
	Close(ctx context.Context, id string) error
}

const (
	changeBuffer = 4
	closeTimeout = 3 * time.Second
)

// Run keeps s in sync with c until ctx ends, then closes everything it drew.
// A failed Show is retried on the next change.
func Run(ctx context.Context, c Controller, s Surface, log logx.Logger) error {
	if log.IsZero() {
		log = logx.Nop()
	}
	log = log.With(logx.String("surface", s.Name()))

	changes, unsub := c.Subscribe(changeBuffer, toast.EventChanged)
	defer unsub()

	tr := NewTracker()
	defer func() {
		cctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
		defer cancel()
		for _, id := range tr.Tracked() {
			if err := s.Close(cctx, id); err != nil {
				log.Debug("close on shutdown failed", logx.String("id", id), logx.Err(err))
			}
		}
	}()

	log.Debug("surface started")
	Sync(ctx, c, s, tr, log)
	for {
		select {
		case <-ctx.Done():
			log.Debug("surface stopped")
			return nil
		case _, ok := <-changes:
			if !ok {
				return nil
			}
			Sync(ctx, c, s, tr, log)
		}
	}
}

// Sync pushes one diff of the current snapshot to s.
func Sync(ctx context.Context, c Controller, s Surface, tr *Tracker, log logx.Logger) Diff {
	d := tr.Diff(c.Toasts())
	for _, id := range d.Removed {
		if err := s.Close(ctx, id); err != nil {
			log.Warn("surface close failed", logx.String("id", id), logx.Err(err))
		}
	}
	for _, t := range d.Added {
		if err := s.Show(ctx, t); err != nil {
			log.Warn("surface show failed", logx.String("id", t.ID), logx.Err(err))
			tr.Forget(t.ID)
		}
	}
	for _, t := range d.Updated {
		if err := s.Update(ctx, t); err != nil {
			log.Warn("surface update failed", logx.String("id", t.ID), logx.Err(err))
		}
	}
	return d
}

// Label is the plain text title line of a toast: "[category] title (n/m)".
func Label(t toast.Toast) string {
	s := "[" + t.Category.String() + "]"
	if t.Title != "" {
		s += " " + t.Title
	}
	if t.Stateful() {
		s += " (" + strconv.Itoa(t.CurrentState+1) + "/" + strconv.Itoa(len(t.States)) + ")"
	}
	return s
}
