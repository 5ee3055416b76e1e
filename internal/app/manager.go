package app

import (
	"context"
	"sync"

	"backupd/internal/manager"
	"backupd/internal/schedule"
	"backupd/pkg/logx"
	"backupd/pkg/systemdmanager"
)

// Manager is backup-manager: one CLI command per process.
type Manager struct {
	*env
	*manager.Manager

	units *lazyUnits
}

func NewManager(cfgPath string) (*Manager, error) {
	e, err := bootstrap(cfgPath, ManagerLogFile, "manager")
	if err != nil {
		return nil, err
	}
	cfg := e.cfgm.Get()

	units := &lazyUnits{}
	deps := manager.Deps{
		Store:     schedule.NewStore(cfg.Schedules.Path),
		BackupDir: cfg.Backups.Dir,
		Units:     units,
		Unit:      systemdmanager.UnitName(cfg.Service.SystemdUnit),
		Log:       e.log,
	}
	if e.store != nil {
		deps.History = e.store
	}
	return &Manager{env: e, Manager: manager.New(deps), units: units}, nil
}

func (m *Manager) Log() logx.Logger { return m.log }

func (m *Manager) Close() error {
	m.units.close()
	m.close()
	return nil
}

// lazyUnits connects to systemd only when a service command needs it.
type lazyUnits struct {
	once sync.Once
	ctl  *systemdmanager.Controller
	err  error
}

func (u *lazyUnits) get(ctx context.Context) (*systemdmanager.Controller, error) {
	u.once.Do(func() {
		u.ctl, u.err = systemdmanager.NewController(ctx)
	})
	return u.ctl, u.err
}

func (u *lazyUnits) Start(ctx context.Context, unit string) error {
	ctl, err := u.get(ctx)
	if err != nil {
		return err
	}
	return ctl.Start(ctx, unit)
}

func (u *lazyUnits) Stop(ctx context.Context, unit string) error {
	ctl, err := u.get(ctx)
	if err != nil {
		return err
	}
	return ctl.Stop(ctx, unit)
}

func (u *lazyUnits) Status(ctx context.Context, unit string) (*systemdmanager.ServiceStatus, error) {
	ctl, err := u.get(ctx)
	if err != nil {
		return nil, err
	}
	return ctl.Status(ctx, unit)
}

func (u *lazyUnits) close() {
	if u.ctl != nil {
		_ = u.ctl.Close()
	}
}
