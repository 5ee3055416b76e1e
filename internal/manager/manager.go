package manager

import (
	"context"
	"errors"
	"fmt"
	"time"

	"backupd/internal/archive"
	"backupd/internal/schedule"
	"backupd/internal/storage"
	"backupd/pkg/logx"
	"backupd/pkg/systemdmanager"
)

// UnitController starts and stops the backup service.
type UnitController interface {
	Start(ctx context.Context, unit string) error
	Stop(ctx context.Context, unit string) error
	Status(ctx context.Context, unit string) (*systemdmanager.ServiceStatus, error)
}

// History is the read side of the run store.
type History interface {
	RecentRuns(ctx context.Context, limit int) ([]storage.RunRecord, error)
}

var ErrNoUnitController = errors.New("service control unavailable")

// Entry is one line of the schedule file as shown by "list".
// Schedule is nil for lines that do not validate; Next is then zero.
type Entry struct {
	Index    int
	Line     string
	Schedule *schedule.Schedule
	Next     time.Time
}

type Deps struct {
	Store     *schedule.Store
	BackupDir string
	History   History        // optional
	Units     UnitController // optional
	Unit      string
	Now       func() time.Time
	Log       logx.Logger
}

type Manager struct {
	store     *schedule.Store
	backupDir string
	history   History
	units     UnitController
	unit      string
	now       func() time.Time
	log       logx.Logger
}

func New(d Deps) *Manager {
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Log.IsZero() {
		d.Log = logx.Nop()
	}
	return &Manager{
		store:     d.Store,
		backupDir: d.BackupDir,
		history:   d.History,
		units:     d.Units,
		unit:      d.Unit,
		now:       d.Now,
		log:       d.Log,
	}
}

func (m *Manager) Unit() string { return m.unit }

// ListSchedules returns every line of the schedule file in order.
func (m *Manager) ListSchedules(ctx context.Context) ([]Entry, error) {
	lines, err := m.store.List()
	if err != nil {
		if errors.Is(err, schedule.ErrStoreNotFound) {
			m.log.Error("Error: can't find " + m.store.Path())
		}
		return nil, err
	}
	m.log.Info("Show schedules list", logx.Int("count", len(lines)))

	now := m.now()
	out := make([]Entry, 0, len(lines))
	for i, line := range lines {
		e := Entry{Index: i, Line: line}
		if s, err := schedule.Parse(line); err == nil {
			e.Schedule = &s
			e.Next = schedule.NextRun(s, now)
		}
		out = append(out, e)
	}
	return out, nil
}

// CreateSchedule validates raw and appends it to the schedule file.
func (m *Manager) CreateSchedule(ctx context.Context, raw string) (schedule.Schedule, error) {
	s, err := schedule.Parse(raw)
	if err != nil {
		m.log.Error("Error: malformed schedule: "+raw, logx.Err(err))
		return schedule.Schedule{}, err
	}
	if err := m.store.Append(s); err != nil {
		m.log.Error("Error: can't write "+m.store.Path(), logx.Err(err))
		return schedule.Schedule{}, fmt.Errorf("append schedule: %w", err)
	}
	m.log.Info("New schedule added: " + raw)
	return s, nil
}

// DeleteSchedule removes the line at index from the current file and
// returns it. Indexes shift after every deletion.
func (m *Manager) DeleteSchedule(ctx context.Context, index int) (string, error) {
	line, err := m.store.RemoveAt(index)
	if err != nil {
		if errors.Is(err, schedule.ErrIndexOutOfRange) {
			m.log.Error(fmt.Sprintf("Error: can't find schedule at index %d", index))
		} else {
			m.log.Error("Error: can't update "+m.store.Path(), logx.Err(err))
		}
		return "", err
	}
	m.log.Info("Schedule deleted: " + line)
	return line, nil
}

// ListBackups returns the archives in the backup directory.
func (m *Manager) ListBackups(ctx context.Context) ([]archive.Info, error) {
	infos, err := archive.List(m.backupDir)
	if err != nil {
		m.log.Error("Error: can't read "+m.backupDir, logx.Err(err))
		return nil, err
	}
	m.log.Info("Show backups list", logx.Int("count", len(infos)))
	return infos, nil
}

// History returns up to limit recent runs, newest first.
func (m *Manager) History(ctx context.Context, limit int) ([]storage.RunRecord, error) {
	if m.history == nil {
		return nil, storage.ErrDisabled
	}
	if limit <= 0 {
		limit = storage.DefaultHistoryLimit
	}
	return m.history.RecentRuns(ctx, limit)
}

func (m *Manager) StartService(ctx context.Context) error {
	if m.units == nil {
		return ErrNoUnitController
	}
	if err := m.units.Start(ctx, m.unit); err != nil {
		m.log.Error("Error: can't start "+m.unit, logx.Err(err))
		return err
	}
	m.log.Info("backup_service started", logx.String("unit", m.unit))
	return nil
}

func (m *Manager) StopService(ctx context.Context) error {
	if m.units == nil {
		return ErrNoUnitController
	}
	if err := m.units.Stop(ctx, m.unit); err != nil {
		m.log.Error("Error: can't stop "+m.unit, logx.Err(err))
		return err
	}
	m.log.Info("backup_service stopped", logx.String("unit", m.unit))
	return nil
}

func (m *Manager) ServiceStatus(ctx context.Context) (*systemdmanager.ServiceStatus, error) {
	if m.units == nil {
		return nil, ErrNoUnitController
	}
	return m.units.Status(ctx, m.unit)
}
