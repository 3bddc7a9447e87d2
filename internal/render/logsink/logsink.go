// Package logsink renders toasts as structured log lines.
package logsink

import (
	"context"

	"toastd/internal/render"
	"toastd/internal/toast"
	logx "toastd/pkg/logx"
)

type Sink struct {
	log logx.Logger
}

func New(log logx.Logger) *Sink {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Sink{log: log.With(logx.String("comp", "toast"))}
}

func (s *Sink) Name() string { return "log" }

func (s *Sink) Show(_ context.Context, t toast.Toast) error {
	s.log.Info(render.Label(t), fields(t)...)
	return nil
}

func (s *Sink) Update(_ context.Context, t toast.Toast) error {
	s.log.Info(render.Label(t), append(fields(t), logx.Bool("update", true))...)
	return nil
}

func (s *Sink) Close(_ context.Context, id string) error {
	s.log.Info("toast closed", logx.String("id", id))
	return nil
}

func fields(t toast.Toast) []logx.Field {
	out := []logx.Field{
		logx.String("id", t.ID),
		logx.String("message", t.Message),
		logx.String("size", t.Size.String()),
	}
	if t.Timeout > 0 {
		out = append(out, logx.Duration("timeout", t.Timeout))
	}
	if len(t.Buttons) > 0 {
		labels := make([]string, 0, len(t.Buttons))
		for _, b := range t.Buttons {
			labels = append(labels, b.Text)
		}
		out = append(out, logx.Strings("buttons", labels))
	}
	if t.Stateful() && t.CurrentState >= 0 && t.CurrentState < len(t.States) {
		if id := t.States[t.CurrentState].ID; id != "" {
			out = append(out, logx.String("state", id))
		}
	}
	return out
}
