package app

import (
	"context"
	"errors"
	"strings"
	"time"

	"backupd/internal/archive"
	"backupd/internal/config"
	"backupd/internal/poller"
	"backupd/internal/runtime/supervisor"
	"backupd/internal/schedule"
	"backupd/pkg/logx"
	"backupd/pkg/systemd"
)

// Service is backup-service: the poll loop plus config hot reload and
// systemd integration.
type Service struct {
	*env

	sup       *supervisor.Supervisor
	poll      *poller.Service
	archiver  *liveArchiver
	schedules *liveSchedules
	watchdog  bool
}

func NewService(cfgPath string) (*Service, error) {
	e, err := bootstrap(cfgPath, ServiceLogFile, "service")
	if err != nil {
		return nil, err
	}
	cfg := e.cfgm.Get()

	pcfg, err := mapPollerConfig(cfg)
	if err != nil {
		e.close()
		return nil, err
	}
	arch := newLiveArchiver(archive.New(mapArchiveConfig(cfg)))
	sched := newLiveSchedules(schedule.NewStore(cfg.Schedules.Path))

	deps := poller.Deps{
		Source:   sched,
		Archiver: arch,
		Log:      e.log.With(logx.String("comp", "poller")),
	}
	if e.store != nil {
		deps.Recorder = e.store
		deps.Dedup = e.store
	}

	return &Service{
		env:       e,
		poll:      poller.New(pcfg, deps),
		archiver:  arch,
		schedules: sched,
		watchdog:  cfg.Service.Watchdog,
	}, nil
}

// Done is closed when the supervisor context is cancelled (fatal error or Stop).
func (s *Service) Done() <-chan struct{} {
	if s.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return s.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor.
func (s *Service) Err() error {
	if s.sup == nil {
		return nil
	}
	return s.sup.Err()
}

func (s *Service) Poller() *poller.Service { return s.poll }

func (s *Service) Start(ctx context.Context) error {
	s.sup = supervisor.New(ctx, supervisor.WithLogger(s.log), supervisor.WithCancelOnError(true))

	s.cfgm.SetLogger(s.log.With(logx.String("comp", "config")))
	s.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error {
		return validate(cfg)
	})

	s.sup.GoRestart("poller", s.poll.Run, supervisor.WithRestartBackoff(time.Second, 30*time.Second))

	sub := s.cfgm.Subscribe(8)
	s.sup.Go("config.reload", func(c context.Context) error {
		defer s.cfgm.Unsubscribe(sub)
		lastApplied := s.cfgm.Get()
		for {
			select {
			case <-c.Done():
				return nil
			case newCfg, ok := <-sub:
				if !ok {
					return nil
				}
				// Coalesce bursts: keep only the latest config.
				for drained := false; !drained; {
					select {
					case newer := <-sub:
						if newer != nil {
							newCfg = newer
						}
					default:
						drained = true
					}
				}
				s.applyConfig(lastApplied, newCfg)
				lastApplied = newCfg
			}
		}
	})

	s.sup.GoRestart("config.watch", s.cfgm.Watch, supervisor.WithRestartBackoff(250*time.Millisecond, 5*time.Second))

	if s.watchdog {
		s.sup.Go("systemd.watchdog", systemd.RunWatchdog)
	}

	if sent, err := systemd.Ready(); err != nil {
		s.log.Warn("sd_notify READY failed", logx.Err(err))
	} else if sent {
		s.log.Debug("sd_notify READY sent")
	}
	return nil
}

func (s *Service) applyConfig(oldCfg, newCfg *config.Config) {
	sections, attrs := config.SummarizeConfigChange(oldCfg, newCfg)
	if len(sections) == 0 {
		s.log.Info("config reloaded (no changes)")
		return
	}

	s.logs.Apply(mapLogConfig(newCfg, s.logFile))

	for _, sec := range sections {
		switch sec {
		case "service":
			pcfg, err := mapPollerConfig(newCfg)
			if err != nil {
				s.log.Warn("invalid service config; keeping previous", logx.Err(err))
				continue
			}
			s.poll.Apply(pcfg)
			if newCfg.Service.Watchdog != oldCfg.Service.Watchdog {
				s.log.Warn("service.watchdog changed; restart required for changes to take effect")
			}
		case "backups":
			s.archiver.Set(archive.New(mapArchiveConfig(newCfg)))
		case "schedules":
			s.schedules.Set(schedule.NewStore(newCfg.Schedules.Path))
		case "storage", "telegram":
			s.log.Warn(sec + " config changed; restart required for changes to take effect")
		}
	}

	fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
	s.log.Info("config reloaded", fields...)
}

func (s *Service) Stop(ctx context.Context, reason StopReason) error {
	if s.sup == nil {
		s.close()
		return nil
	}
	s.log.Info("stopping", logx.String("reason", string(reason)))
	if _, err := systemd.Stopping(); err != nil {
		s.log.Debug("sd_notify STOPPING failed", logx.Err(err))
	}

	// An archive in progress is abandoned on cancel; its temp file is removed
	// and the previous archive stays in place.
	err := s.sup.Stop(ctx)
	if errors.Is(err, context.DeadlineExceeded) {
		s.log.Warn("supervisor did not stop in time", logx.Err(err))
	} else if err != nil {
		s.log.Warn("stopped with error", logx.Err(err))
	}

	s.log.Info("stopped")
	s.close()
	return err
}
