//go:build linux

package systemdmanager

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/coreos/go-systemd/v22/dbus"
)

var errClosed = errors.New("systemd connection is closed")

// Controller starts, stops and inspects systemd units over D-Bus.
type Controller struct {
	mu   sync.RWMutex
	conn *dbus.Conn
}

// NewController connects to the system bus. If ctx is nil,
// context.Background() is used.
func NewController(ctx context.Context) (*Controller, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	conn, err := dbus.NewSystemConnectionContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to systemd: %w", err)
	}
	return &Controller{conn: conn}, nil
}

// Close closes the systemd connection.
func (c *Controller) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	return nil
}

func (c *Controller) connection() (*dbus.Conn, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.conn == nil {
		return nil, errClosed
	}
	return c.conn, nil
}

// Start queues a start job and waits for its result.
func (c *Controller) Start(ctx context.Context, unit string) error {
	return c.job(ctx, "start", UnitName(unit), func(conn *dbus.Conn, name string, ch chan<- string) (int, error) {
		return conn.StartUnitContext(ctx, name, "replace", ch)
	})
}

// Stop queues a stop job and waits for its result.
func (c *Controller) Stop(ctx context.Context, unit string) error {
	return c.job(ctx, "stop", UnitName(unit), func(conn *dbus.Conn, name string, ch chan<- string) (int, error) {
		return conn.StopUnitContext(ctx, name, "replace", ch)
	})
}

func (c *Controller) job(ctx context.Context, action, name string, enqueue func(*dbus.Conn, string, chan<- string) (int, error)) error {
	conn, err := c.connection()
	if err != nil {
		return err
	}
	done := make(chan string, 1)
	if _, err := enqueue(conn, name, done); err != nil {
		return fmt.Errorf("failed to %s %s: %w", action, name, err)
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case result := <-done:
		if result != "done" {
			return fmt.Errorf("failed to %s %s: job %s", action, name, result)
		}
		return nil
	}
}

// Status returns the unit state. A unit systemd does not know is reported
// with LoadState "not-found" rather than as an error.
func (c *Controller) Status(ctx context.Context, unit string) (*ServiceStatus, error) {
	conn, err := c.connection()
	if err != nil {
		return nil, err
	}
	name := UnitName(unit)
	props, err := conn.GetUnitPropertiesContext(ctx, name)
	if err != nil {
		if isNoSuchUnitErr(err) {
			return notFound(name), nil
		}
		return nil, fmt.Errorf("failed to get status for %s: %w", name, err)
	}
	return statusFromProps(name, props), nil
}
