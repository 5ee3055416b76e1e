package poller

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"backupd/internal/schedule"
	"backupd/internal/storage"
	"backupd/pkg/logx"
)

const (
	defaultInterval = 30 * time.Second

	minuteLayout = "15:04"
	dedupLayout  = "2006-01-02T15:04"
)

// Service is the service-side poll loop: Idle, then Scanning every Interval,
// then Idle again, until its context is cancelled.
// Backups within a cycle run one after another; a failure never stops the
// remaining schedules.
type Service struct {
	clock    Clock
	source   Source
	archiver Archiver
	recorder Recorder
	dedup    DedupStore
	log      logx.Logger

	mu  sync.Mutex
	cfg Config

	// fired holds dedup keys of the minute currently being matched.
	fired map[string]struct{}

	warnLimiter *rate.Limiter

	cycles atomic.Uint64
	last   atomic.Value // CycleReport
}

func New(cfg Config, deps Deps) *Service {
	if deps.Clock == nil {
		deps.Clock = realClock{}
	}
	if deps.Log.IsZero() {
		deps.Log = logx.Nop()
	}
	return &Service{
		clock:    deps.Clock,
		source:   deps.Source,
		archiver: deps.Archiver,
		recorder: deps.Recorder,
		dedup:    deps.Dedup,
		log:      deps.Log,
		cfg:      normalize(cfg),
		fired:    map[string]struct{}{},
		// A bad line is seen every cycle; report a few, then once per 10 minutes.
		warnLimiter: rate.NewLimiter(rate.Every(10*time.Minute), 3),
	}
}

func normalize(cfg Config) Config {
	if cfg.Interval <= 0 || cfg.Interval >= time.Minute {
		cfg.Interval = defaultInterval
	}
	return cfg
}

// Apply swaps interval and dedup mode at runtime. Safe to call concurrently.
func (s *Service) Apply(cfg Config) {
	cfg = normalize(cfg)
	s.mu.Lock()
	prev := s.cfg
	s.cfg = cfg
	s.mu.Unlock()
	if prev != cfg {
		s.log.Info("poller config applied",
			logx.Duration("interval", cfg.Interval),
			logx.Bool("dedup_per_minute", cfg.DedupPerMinute),
		)
	}
}

func (s *Service) config() Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

// Cycles returns how many poll cycles have completed.
func (s *Service) Cycles() uint64 { return s.cycles.Load() }

// LastReport returns the report of the most recent cycle.
func (s *Service) LastReport() (CycleReport, bool) {
	r, ok := s.last.Load().(CycleReport)
	return r, ok
}

// Run polls until ctx is cancelled. The sleep between cycles is interruptible.
func (s *Service) Run(ctx context.Context) error {
	cfg := s.config()
	s.log.Info("backup_service started",
		logx.Duration("interval", cfg.Interval),
		logx.Bool("dedup_per_minute", cfg.DedupPerMinute),
	)

	t := time.NewTimer(0)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			s.log.Info("backup_service stopped", logx.Int64("cycles", int64(s.Cycles())))
			return nil
		case <-t.C:
		}

		s.RunCycle(ctx)
		t.Reset(s.config().Interval)
	}
}

// RunCycle performs one scan: read all schedule lines, and archive every line
// whose HH:MM equals the current local minute.
func (s *Service) RunCycle(ctx context.Context) CycleReport {
	cfg := s.config()
	now := s.clock.Now().Truncate(time.Minute)
	rep := CycleReport{At: now, Key: now.Format(minuteLayout)}
	defer func() {
		s.last.Store(rep)
		s.cycles.Add(1)
	}()

	if cfg.DedupPerMinute {
		s.pruneFired(now)
	}

	lines, err := s.source.Load()
	if err != nil {
		rep.LoadErr = err
		s.log.Error("Error reading schedules", logx.Err(err))
		return rep
	}
	rep.Lines = len(lines)

	for i, line := range lines {
		if ctx.Err() != nil {
			return rep
		}
		src, tod, name, ok := schedule.Split(line)
		if !ok {
			rep.Skipped++
			s.warnMalformed(i, line)
			continue
		}
		if tod != rep.Key {
			continue
		}
		rep.Matched++

		if cfg.DedupPerMinute {
			key := dedupKey(name, src, now)
			if s.alreadyFired(ctx, key) {
				rep.Deduped++
				s.log.Debug("schedule already fired this minute", logx.String("schedule", line))
				continue
			}
			s.markFired(ctx, key, now)
		}

		if s.fire(ctx, line, src, name) {
			rep.Succeeded++
		} else {
			rep.Failed++
		}
	}

	if rep.Matched > 0 || rep.Skipped > 0 {
		s.log.Debug("poll cycle done",
			logx.String("minute", rep.Key),
			logx.Int("lines", rep.Lines),
			logx.Int("matched", rep.Matched),
			logx.Int("ok", rep.Succeeded),
			logx.Int("failed", rep.Failed),
			logx.Int("skipped", rep.Skipped),
			logx.Int("deduped", rep.Deduped),
		)
	}
	return rep
}

// fire runs the archiver for one schedule and reports success.
func (s *Service) fire(ctx context.Context, line, src, name string) bool {
	start := time.Now()
	res, err := s.archiver.CreateBackup(ctx, src, name)

	rec := storage.RunRecord{
		ID:       uuid.NewString(),
		At:       s.clock.Now(),
		Schedule: line,
		Source:   src,
		Name:     name,
		OK:       err == nil,
		TookMS:   time.Since(start).Milliseconds(),
	}
	if err != nil {
		rec.Error = err.Error()
		s.log.Error("Error creating backup for "+src, logx.String("name", name), logx.Err(err))
	} else {
		rec.Path = res.Path
		rec.Bytes = res.Bytes
		s.log.Info("Backup done for "+src+" in "+res.Path,
			logx.String("name", name),
			logx.Int64("bytes", res.Bytes),
			logx.Int("entries", res.Entries),
		)
	}
	s.record(ctx, rec)
	return err == nil
}

func (s *Service) record(ctx context.Context, rec storage.RunRecord) {
	if s.recorder == nil {
		return
	}
	if err := s.recorder.AppendRun(ctx, rec); err != nil {
		s.log.Warn("run record failed", logx.String("name", rec.Name), logx.Err(err))
	}
}

func (s *Service) warnMalformed(index int, line string) {
	if s.warnLimiter.Allow() {
		s.log.Warn("skipping malformed schedule line", logx.Int("index", index), logx.String("line", line))
		return
	}
	s.log.Debug("skipping malformed schedule line", logx.Int("index", index), logx.String("line", line))
}

func dedupKey(name, src string, minute time.Time) string {
	return name + "|" + src + "@" + minute.Format(dedupLayout)
}

func (s *Service) pruneFired(now time.Time) {
	suffix := "@" + now.Format(dedupLayout)
	s.mu.Lock()
	for k := range s.fired {
		if !strings.HasSuffix(k, suffix) {
			delete(s.fired, k)
		}
	}
	s.mu.Unlock()
}

func (s *Service) alreadyFired(ctx context.Context, key string) bool {
	s.mu.Lock()
	_, ok := s.fired[key]
	s.mu.Unlock()
	if ok || s.dedup == nil {
		return ok
	}
	_, ok, err := s.dedup.GetDedup(ctx, key)
	if err != nil {
		s.log.Warn("dedup lookup failed", logx.String("key", key), logx.Err(err))
		return false
	}
	return ok
}

func (s *Service) markFired(ctx context.Context, key string, minute time.Time) {
	s.mu.Lock()
	s.fired[key] = struct{}{}
	s.mu.Unlock()
	if s.dedup == nil {
		return
	}
	// Keep the key a little past its minute so a restart right at the
	// boundary still sees it.
	if err := s.dedup.PutDedup(ctx, key, minute.Add(2*time.Minute)); err != nil {
		s.log.Warn("dedup persist failed", logx.String("key", key), logx.Err(err))
	}
}
