// Package desktop renders toasts as freedesktop notifications over D-Bus.
package desktop

import (
	"context"
	"strings"
	"sync"

	"github.com/godbus/dbus/v5"

	"toastd/internal/render"
	"toastd/internal/toast"
	logx "toastd/pkg/logx"
)

const (
	urgencyLow      byte = 0
	urgencyNormal   byte = 1
	urgencyCritical byte = 2
)

type Options struct {
	AppName string
	Icon    string
}

// Surface maps toasts onto notification ids. Server-side expiry is disabled;
// the controller owns every timeout.
type Surface struct {
	srv  Server
	ctrl render.Controller
	log  logx.Logger
	opts Options

	mu       sync.Mutex
	byToast  map[string]uint32
	byNotify map[uint32]string
	actions  bool
}

func New(srv Server, ctrl render.Controller, opts Options, log logx.Logger) *Surface {
	if log.IsZero() {
		log = logx.Nop()
	}
	if strings.TrimSpace(opts.AppName) == "" {
		opts.AppName = "toastd"
	}
	return &Surface{
		srv:      srv,
		ctrl:     ctrl,
		log:      log.With(logx.String("comp", "desktop")),
		opts:     opts,
		byToast:  map[string]uint32{},
		byNotify: map[uint32]string{},
		actions:  true,
	}
}

func (s *Surface) Name() string { return "desktop" }

// Run queries the server capabilities, then renders and handles signals until ctx ends.
func (s *Surface) Run(ctx context.Context) error {
	if caps, err := s.srv.Capabilities(ctx); err != nil {
		s.log.Warn("capabilities query failed", logx.Err(err))
	} else {
		s.setCapabilities(caps)
		s.log.Info("notification server ready", logx.Strings("capabilities", caps))
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.listen(ctx)
	}()
	err := render.Run(ctx, s.ctrl, s, s.log)
	<-done
	return err
}

func (s *Surface) setCapabilities(caps []string) {
	has := false
	for _, c := range caps {
		if c == "actions" {
			has = true
			break
		}
	}
	s.mu.Lock()
	s.actions = has
	s.mu.Unlock()
}

func (s *Surface) listen(ctx context.Context) {
	sigs := s.srv.Signals()
	for {
		select {
		case <-ctx.Done():
			return
		case sig, ok := <-sigs:
			if !ok {
				return
			}
			s.handle(sig)
		}
	}
}

func (s *Surface) handle(sig Signal) {
	s.mu.Lock()
	id, ok := s.byNotify[sig.ID]
	if ok && sig.Kind == SignalClosed {
		delete(s.byNotify, sig.ID)
		delete(s.byToast, id)
	}
	s.mu.Unlock()
	if !ok {
		return
	}

	switch sig.Kind {
	case SignalAction:
		if sig.Action == "default" {
			return
		}
		render.HandleAction(s.ctrl, id, sig.Action, s.log)
	case SignalClosed:
		s.log.Debug("notification closed", logx.String("id", id), logx.Uint64("reason", uint64(sig.Reason)))
		if sig.Reason == ReasonDismissed {
			s.ctrl.RemoveToast(id)
		}
	}
}

func (s *Surface) Show(ctx context.Context, t toast.Toast) error {
	return s.notify(ctx, t)
}

func (s *Surface) Update(ctx context.Context, t toast.Toast) error {
	return s.notify(ctx, t)
}

func (s *Surface) notify(ctx context.Context, t toast.Toast) error {
	s.mu.Lock()
	replaces := s.byToast[t.ID]
	withActions := s.actions
	s.mu.Unlock()

	req := s.request(t, withActions)
	req.ReplacesID = replaces
	nid, err := s.srv.Notify(ctx, req)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if replaces != 0 && replaces != nid {
		delete(s.byNotify, replaces)
	}
	s.byToast[t.ID] = nid
	s.byNotify[nid] = t.ID
	s.mu.Unlock()
	return nil
}

func (s *Surface) Close(ctx context.Context, id string) error {
	s.mu.Lock()
	nid, ok := s.byToast[id]
	delete(s.byToast, id)
	delete(s.byNotify, nid)
	s.mu.Unlock()
	if !ok {
		return nil
	}
	return s.srv.CloseNotification(ctx, nid)
}

func (s *Surface) request(t toast.Toast, withActions bool) Request {
	summary := t.Title
	if summary == "" {
		summary = strings.TrimSpace(render.Label(t))
	}
	req := Request{
		AppName: s.opts.AppName,
		Icon:    s.opts.Icon,
		Summary: summary,
		Body:    t.Message,
		Hints: map[string]dbus.Variant{
			"urgency":  dbus.MakeVariant(urgency(t.Category)),
			"category": dbus.MakeVariant("toastd." + t.Category.String()),
		},
		ExpireTimeout: 0,
	}
	if t.Stateful() {
		req.Hints["resident"] = dbus.MakeVariant(true)
	}
	if !withActions {
		return req
	}
	for _, b := range t.Buttons {
		if b.Disabled {
			continue
		}
		req.Actions = append(req.Actions, b.ID, b.Text)
	}
	for _, key := range render.NavActions(t) {
		label := "Next"
		if key == render.ActionPrev {
			label = "Back"
		}
		req.Actions = append(req.Actions, key, label)
	}
	return req
}

func urgency(c toast.Category) byte {
	switch c {
	case toast.CategoryError:
		return urgencyCritical
	case toast.CategoryWarning, toast.CategoryDefault:
		return urgencyNormal
	default:
		return urgencyLow
	}
}
