// Package telegram renders toasts as chat messages with inline keyboards.
package telegram

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	tele "gopkg.in/telebot.v4"

	logx "toastd/pkg/logx"
)

type Config struct {
	Token       string
	ChatID      int64
	PollTimeout time.Duration
	RatePerSec  int
}

// Bot is the subset of the Bot API the surface needs.
type Bot interface {
	Send(ctx context.Context, chatID int64, text string, rm *tele.ReplyMarkup) (int, error)
	Edit(ctx context.Context, chatID int64, msgID int, text string, rm *tele.ReplyMarkup) error
	Delete(ctx context.Context, chatID int64, msgID int) error
}

// Client owns the long-poll loop and implements Bot.
type Client struct {
	cfg Config
	log logx.Logger
	bot *tele.Bot

	runMu   sync.Mutex
	running bool
}

func Dial(cfg Config, log logx.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	timeout := cfg.PollTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	b, err := tele.NewBot(tele.Settings{
		Token:  cfg.Token,
		Poller: &tele.LongPoller{Timeout: timeout},
	})
	if err != nil {
		return nil, err
	}
	return &Client{cfg: cfg, log: log.With(logx.String("comp", "telegram")), bot: b}, nil
}

func (c *Client) Send(_ context.Context, chatID int64, text string, rm *tele.ReplyMarkup) (int, error) {
	m, err := c.bot.Send(&tele.Chat{ID: chatID}, text, &tele.SendOptions{ReplyMarkup: rm, DisableWebPagePreview: true})
	if err != nil {
		return 0, err
	}
	return m.ID, nil
}

func (c *Client) Edit(_ context.Context, chatID int64, msgID int, text string, rm *tele.ReplyMarkup) error {
	m := &tele.Message{ID: msgID, Chat: &tele.Chat{ID: chatID}}
	_, err := c.bot.Edit(m, text, &tele.SendOptions{ReplyMarkup: rm, DisableWebPagePreview: true})
	return err
}

func (c *Client) Delete(_ context.Context, chatID int64, msgID int) error {
	return c.bot.Delete(&tele.Message{ID: msgID, Chat: &tele.Chat{ID: chatID}})
}

// Serve routes callbacks and commands from the configured chat to s and
// polls until ctx ends.
func (c *Client) Serve(ctx context.Context, s *Surface) error {
	c.runMu.Lock()
	if c.running {
		c.runMu.Unlock()
		return errors.New("telegram client already serving")
	}
	c.running = true
	c.runMu.Unlock()
	defer func() {
		c.runMu.Lock()
		c.running = false
		c.runMu.Unlock()
	}()

	c.bot.Handle(tele.OnCallback, func(tc tele.Context) error {
		cb := tc.Callback()
		if cb == nil || tc.Chat() == nil || tc.Chat().ID != c.cfg.ChatID {
			return nil
		}
		text := s.HandleCallback(cb.Data)
		return tc.Respond(&tele.CallbackResponse{Text: text})
	})
	c.bot.Handle("/toasts", func(tc tele.Context) error {
		if tc.Chat() == nil || tc.Chat().ID != c.cfg.ChatID {
			return nil
		}
		return tc.Send(s.Listing())
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		c.log.Info("polling started")
		c.bot.Start()
	}()

	<-ctx.Done()
	c.bot.Stop()

	grace := time.NewTimer(2 * time.Second)
	defer grace.Stop()
	select {
	case <-done:
		c.log.Info("polling stopped")
	case <-grace.C:
		c.log.Warn("telegram stop grace elapsed; continuing shutdown")
	}
	return nil
}
