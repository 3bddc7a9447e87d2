package storage

import (
	"context"
	"errors"
	"time"
)

var (
	ErrDisabled = errors.New("storage disabled")
	ErrClosed   = errors.New("storage closed")
)

// DefaultMaxEntries bounds both drivers when Config.MaxEntries is 0.
const DefaultMaxEntries = 10000

// Config configures storage.
//
// Driver values:
//   - "file": JSON Lines file
//   - "sqlite": SQLite database file
//
// If Driver is empty or "none", storage is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
	MaxEntries  int
}

// Entry is one recorded lifecycle event. Keep it compact and schema-stable.
type Entry struct {
	At       time.Time `json:"at"`
	Type     string    `json:"type"`
	ToastID  string    `json:"toast_id"`
	Title    string    `json:"title,omitempty"`
	Message  string    `json:"message,omitempty"`
	Category string    `json:"category,omitempty"`
	Stateful bool      `json:"stateful,omitempty"`
	State    int       `json:"state,omitempty"`
	Reason   string    `json:"reason,omitempty"`
}

// Store is the history API used by the recorder and the CLI.
type Store interface {
	AppendEvent(ctx context.Context, e Entry) error
	// Recent returns up to limit entries, newest first.
	Recent(ctx context.Context, limit int) ([]Entry, error)
	Close() error
}
