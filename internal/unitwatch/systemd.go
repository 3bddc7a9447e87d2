package unitwatch

import (
	"context"
	"fmt"
	"strings"

	"github.com/coreos/go-systemd/v22/dbus"
)

// Status is the core state of one service unit.
type Status struct {
	Name        string
	Active      string // active, inactive, failed, activating, ...
	SubState    string
	LoadState   string
	Description string
}

func (s Status) Found() bool { return s.LoadState != "not-found" }

// Systemd is the part of the service manager the watcher uses.
type Systemd interface {
	Status(ctx context.Context, name string) (Status, error)
	Restart(ctx context.Context, name string) error
	Close()
}

type systemdConn struct {
	conn *dbus.Conn
}

// Connect opens a connection to systemd on the system bus.
func Connect(ctx context.Context) (Systemd, error) {
	conn, err := dbus.NewSystemConnectionContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to systemd: %w", err)
	}
	return &systemdConn{conn: conn}, nil
}

func unitName(name string) string {
	if strings.Contains(name, ".") {
		return name
	}
	return name + ".service"
}

func (c *systemdConn) Status(ctx context.Context, name string) (Status, error) {
	unit := unitName(name)
	units, err := c.conn.ListUnitsByPatternsContext(ctx, nil, []string{unit})
	if err == nil && len(units) > 0 {
		u := units[0]
		for _, x := range units {
			if x.Name == unit {
				u = x
				break
			}
		}
		return normalize(Status{
			Name:        name,
			Active:      u.ActiveState,
			SubState:    u.SubState,
			LoadState:   u.LoadState,
			Description: u.Description,
		}), nil
	}

	// Units that are not loaded do not show up in the listing.
	props, err := c.conn.GetUnitPropertiesContext(ctx, unit)
	if err != nil {
		if isNoSuchUnitErr(err) {
			return notFound(name), nil
		}
		return Status{}, fmt.Errorf("failed to get status for %s: %w", name, err)
	}
	return normalize(Status{
		Name:        name,
		Active:      stringProp(props, "ActiveState"),
		SubState:    stringProp(props, "SubState"),
		LoadState:   stringProp(props, "LoadState"),
		Description: stringProp(props, "Description"),
	}), nil
}

func (c *systemdConn) Restart(ctx context.Context, name string) error {
	done := make(chan string, 1)
	if _, err := c.conn.RestartUnitContext(ctx, unitName(name), "replace", done); err != nil {
		return err
	}
	select {
	case res := <-done:
		if res != "done" {
			return fmt.Errorf("restart %s: job %s", name, res)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *systemdConn) Close() { c.conn.Close() }

func notFound(name string) Status {
	return Status{Name: name, Active: "unknown", SubState: "not-found", LoadState: "not-found"}
}

func normalize(s Status) Status {
	if s.LoadState == "not-found" || s.SubState == "not-found" {
		return notFound(s.Name)
	}
	return s
}

func stringProp(props map[string]interface{}, key string) string {
	v, _ := props[key].(string)
	return v
}

func isNoSuchUnitErr(err error) bool {
	if err == nil {
		return false
	}
	es := err.Error()
	// systemd answers org.freedesktop.systemd1.NoSuchUnit.
	return strings.Contains(es, "NoSuchUnit") || strings.Contains(es, "not-found")
}
