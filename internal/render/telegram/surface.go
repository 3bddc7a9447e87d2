package telegram

import (
	"context"
	"errors"
	"strings"
	"sync"

	"golang.org/x/time/rate"
	tele "gopkg.in/telebot.v4"

	"toastd/internal/render"
	"toastd/internal/toast"
	logx "toastd/pkg/logx"
)

const (
	callbackPrefix = "t:"
	buttonsPerRow  = 3
)

// Surface keeps one chat message per visible toast.
type Surface struct {
	bot     Bot
	ctrl    render.Controller
	log     logx.Logger
	chatID  int64
	limiter *rate.Limiter

	mu   sync.Mutex
	msgs map[string]int
}

// NewSurface sends to chatID at most ratePerSec API calls per second
// (default 1).
func NewSurface(bot Bot, ctrl render.Controller, chatID int64, ratePerSec int, log logx.Logger) *Surface {
	if log.IsZero() {
		log = logx.Nop()
	}
	if ratePerSec <= 0 {
		ratePerSec = 1
	}
	return &Surface{
		bot:     bot,
		ctrl:    ctrl,
		log:     log.With(logx.String("comp", "telegram")),
		chatID:  chatID,
		limiter: rate.NewLimiter(rate.Limit(ratePerSec), ratePerSec),
		msgs:    map[string]int{},
	}
}

func (s *Surface) Name() string { return "telegram" }

func (s *Surface) Run(ctx context.Context) error {
	return render.Run(ctx, s.ctrl, s, s.log)
}

func (s *Surface) Show(ctx context.Context, t toast.Toast) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}
	id, err := s.bot.Send(ctx, s.chatID, Text(t), Markup(t))
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.msgs[t.ID] = id
	s.mu.Unlock()
	return nil
}

func (s *Surface) Update(ctx context.Context, t toast.Toast) error {
	s.mu.Lock()
	msgID, ok := s.msgs[t.ID]
	s.mu.Unlock()
	if !ok {
		return s.Show(ctx, t)
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}
	err := s.bot.Edit(ctx, s.chatID, msgID, Text(t), Markup(t))
	if errors.Is(err, tele.ErrSameMessageContent) {
		return nil
	}
	return err
}

func (s *Surface) Close(ctx context.Context, id string) error {
	s.mu.Lock()
	msgID, ok := s.msgs[id]
	delete(s.msgs, id)
	s.mu.Unlock()
	if !ok {
		return nil
	}
	// Deletes are not rate limited so shutdown is not held up.
	return s.bot.Delete(ctx, s.chatID, msgID)
}

// HandleCallback runs the action encoded in data and returns the text shown
// to the user.
func (s *Surface) HandleCallback(data string) string {
	toastID, key, err := ParseCallback(data)
	if err != nil {
		s.log.Debug("callback ignored", logx.String("data", data), logx.Err(err))
		return ""
	}
	out := render.HandleAction(s.ctrl, toastID, key, s.log)
	if !out.Found {
		return "This notification is gone."
	}
	return ""
}

// Listing describes the visible toasts for the /toasts command.
func (s *Surface) Listing() string {
	snaps := s.ctrl.Toasts()
	if len(snaps) == 0 {
		return "No notifications."
	}
	var b strings.Builder
	for _, t := range snaps {
		if t.Removing {
			continue
		}
		b.WriteString("• ")
		b.WriteString(render.Label(t))
		if t.Message != "" {
			b.WriteString(": ")
			b.WriteString(t.Message)
		}
		b.WriteByte('\n')
	}
	return strings.TrimSpace(b.String())
}

// Text is the message body for t.
func Text(t toast.Toast) string {
	var b strings.Builder
	b.WriteString(render.Label(t))
	if t.Message != "" {
		b.WriteString("\n")
		b.WriteString(t.Message)
	}
	return b.String()
}

// Markup builds the inline keyboard: the toast's enabled buttons, then a
// navigation row for stateful toasts.
func Markup(t toast.Toast) *tele.ReplyMarkup {
	rm := &tele.ReplyMarkup{}
	var rows [][]tele.InlineButton
	var row []tele.InlineButton
	for _, b := range t.Buttons {
		if b.Disabled {
			continue
		}
		row = append(row, tele.InlineButton{Text: b.Text, Data: CallbackData(t.ID, b.ID)})
		if len(row) == buttonsPerRow {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	var nav []tele.InlineButton
	for _, key := range render.NavActions(t) {
		label := "Next ›"
		if key == render.ActionPrev {
			label = "‹ Back"
		}
		nav = append(nav, tele.InlineButton{Text: label, Data: CallbackData(t.ID, key)})
	}
	if len(nav) > 0 {
		rows = append(rows, nav)
	}
	if len(rows) == 0 {
		return nil
	}
	rm.InlineKeyboard = rows
	return rm
}

func CallbackData(toastID, key string) string {
	return callbackPrefix + toastID + ":" + key
}

var errBadCallback = errors.New("malformed callback data")

func ParseCallback(data string) (toastID, key string, err error) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(data), callbackPrefix)
	if !ok {
		return "", "", errBadCallback
	}
	toastID, key, ok = strings.Cut(rest, ":")
	if !ok || toastID == "" || key == "" {
		return "", "", errBadCallback
	}
	return toastID, key, nil
}
