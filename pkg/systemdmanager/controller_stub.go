//go:build !linux

package systemdmanager

import (
	"context"
	"errors"
)

var ErrUnsupported = errors.New("systemdmanager: unsupported OS (linux only)")

type Controller struct{}

func NewController(ctx context.Context) (*Controller, error) { return &Controller{}, nil }

func (c *Controller) Close() error { return nil }

func (c *Controller) Start(ctx context.Context, unit string) error { return ErrUnsupported }

func (c *Controller) Stop(ctx context.Context, unit string) error { return ErrUnsupported }

func (c *Controller) Status(ctx context.Context, unit string) (*ServiceStatus, error) {
	return &ServiceStatus{Name: UnitName(unit), Active: "unknown", SubState: "unsupported", LoadState: "unsupported"}, nil
}
