package desktop

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/godbus/dbus/v5"
)

const (
	dbusObjectPath             = "/org/freedesktop/Notifications"
	dbusNotificationsInterface = "org.freedesktop.Notifications"
	signalNotificationClosed   = "org.freedesktop.Notifications.NotificationClosed"
	signalActionInvoked        = "org.freedesktop.Notifications.ActionInvoked"
	callGetCapabilities        = "org.freedesktop.Notifications.GetCapabilities"
	callCloseNotification      = "org.freedesktop.Notifications.CloseNotification"
	callNotify                 = "org.freedesktop.Notifications.Notify"

	channelBufferSize = 16
)

// Close reasons from the NotificationClosed signal.
const (
	ReasonExpired      uint32 = 1
	ReasonDismissed    uint32 = 2
	ReasonClosedByCall uint32 = 3
	ReasonUnknown      uint32 = 4
)

// Request is one Notify call.
type Request struct {
	AppName    string
	ReplacesID uint32
	Icon       string
	Summary    string
	Body       string
	// Actions are (key, label) pairs.
	Actions []string
	Hints   map[string]dbus.Variant
	// ExpireTimeout is in milliseconds; 0 means never, -1 server default.
	ExpireTimeout int32
}

type SignalKind int

const (
	SignalClosed SignalKind = iota + 1
	SignalAction
)

type Signal struct {
	Kind   SignalKind
	ID     uint32
	Action string
	Reason uint32
}

// Server is the notification daemon as the surface sees it.
type Server interface {
	Notify(ctx context.Context, req Request) (uint32, error)
	CloseNotification(ctx context.Context, id uint32) error
	Capabilities(ctx context.Context) ([]string, error)
	// Signals is closed when the connection ends.
	Signals() <-chan Signal
	Close() error
}

type dbusServer struct {
	conn *dbus.Conn
	obj  dbus.BusObject
	raw  chan *dbus.Signal
	out  chan Signal

	closeOnce sync.Once
	closeErr  error
}

// Dial connects to the session bus and subscribes to notification signals.
func Dial() (Server, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("session bus: %w", err)
	}
	err = conn.AddMatchSignal(
		dbus.WithMatchObjectPath(dbusObjectPath),
		dbus.WithMatchInterface(dbusNotificationsInterface),
	)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("add match: %w", err)
	}
	s := &dbusServer{
		conn: conn,
		obj:  conn.Object(dbusNotificationsInterface, dbusObjectPath),
		raw:  make(chan *dbus.Signal, channelBufferSize),
		out:  make(chan Signal, channelBufferSize),
	}
	conn.Signal(s.raw)
	go s.eventLoop()
	return s, nil
}

func (s *dbusServer) eventLoop() {
	defer close(s.out)
	for sig := range s.raw {
		if v, ok := parseSignal(sig); ok {
			s.out <- v
		}
	}
}

func parseSignal(sig *dbus.Signal) (Signal, bool) {
	if sig == nil || len(sig.Body) < 2 {
		return Signal{}, false
	}
	id, ok := sig.Body[0].(uint32)
	if !ok {
		return Signal{}, false
	}
	switch sig.Name {
	case signalNotificationClosed:
		reason, _ := sig.Body[1].(uint32)
		return Signal{Kind: SignalClosed, ID: id, Reason: reason}, true
	case signalActionInvoked:
		action, _ := sig.Body[1].(string)
		return Signal{Kind: SignalAction, ID: id, Action: action}, true
	}
	return Signal{}, false
}

func (s *dbusServer) Notify(ctx context.Context, req Request) (uint32, error) {
	if len(req.Actions)%2 != 0 {
		return 0, errors.New("actions must be pairs of (key, label)")
	}
	if req.Actions == nil {
		req.Actions = []string{}
	}
	if req.Hints == nil {
		req.Hints = map[string]dbus.Variant{}
	}
	call := s.obj.CallWithContext(ctx, callNotify, 0,
		req.AppName,
		req.ReplacesID,
		req.Icon,
		req.Summary,
		req.Body,
		req.Actions,
		req.Hints,
		req.ExpireTimeout)
	if call.Err != nil {
		return 0, call.Err
	}
	var id uint32
	if err := call.Store(&id); err != nil {
		return 0, err
	}
	return id, nil
}

func (s *dbusServer) CloseNotification(ctx context.Context, id uint32) error {
	return s.obj.CallWithContext(ctx, callCloseNotification, 0, id).Err
}

func (s *dbusServer) Capabilities(ctx context.Context) ([]string, error) {
	var caps []string
	if err := s.obj.CallWithContext(ctx, callGetCapabilities, 0).Store(&caps); err != nil {
		return nil, err
	}
	return caps, nil
}

func (s *dbusServer) Signals() <-chan Signal { return s.out }

func (s *dbusServer) Close() error {
	s.closeOnce.Do(func() {
		s.conn.RemoveSignal(s.raw)
		close(s.raw)
		s.closeErr = s.conn.Close()
	})
	return s.closeErr
}
