// Package supervisor runs the long-lived goroutines of backup-service (poll
// loop, config watcher, systemd watchdog) under one cancellable context.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"backupd/pkg/logx"
)

// healthyRun is how long a restarted task must stay up before its backoff
// starts over from the minimum.
const healthyRun = 30 * time.Second

type Supervisor struct {
	ctx    context.Context
	cancel context.CancelFunc
	log    logx.Logger

	cancelOnErr bool

	wg      sync.WaitGroup
	running atomic.Int64
	waiting sync.Once
	done    chan struct{}

	mu       sync.Mutex
	err      error
	restarts map[string]int
}

type Option func(*Supervisor)

func WithLogger(log logx.Logger) Option {
	return func(s *Supervisor) { s.log = log }
}

// WithCancelOnError makes the first task error cancel every other task.
func WithCancelOnError(enabled bool) Option {
	return func(s *Supervisor) { s.cancelOnErr = enabled }
}

func New(parent context.Context, opts ...Option) *Supervisor {
	s := &Supervisor{
		log:      logx.Nop(),
		done:     make(chan struct{}),
		restarts: make(map[string]int),
	}
	s.ctx, s.cancel = context.WithCancel(parent)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Supervisor) Context() context.Context { return s.ctx }

// Active is the number of tasks still running.
func (s *Supervisor) Active() int64 { return s.running.Load() }

func (s *Supervisor) Restarts(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.restarts[name]
}

// Err is the first task failure, or nil.
func (s *Supervisor) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Go runs fn once. A panic or a non-cancellation error is recorded as the
// supervisor error.
func (s *Supervisor) Go(name string, fn func(ctx context.Context) error) {
	if fn == nil {
		return
	}
	s.running.Add(1)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.running.Add(-1)

		log := s.log.With(logx.String("task", name))
		log.Debug("task started")
		err := s.call(log, fn)
		var p *panicError
		switch {
		case errors.As(err, &p):
			s.fail(fmt.Errorf("panic in %s: %v", name, p.value))
		case err != nil && !errors.Is(err, context.Canceled):
			s.fail(fmt.Errorf("%s: %w", name, err))
		}
		log.Debug("task stopped")
	}()
}

type panicError struct{ value any }

func (p *panicError) Error() string { return fmt.Sprintf("panic: %v", p.value) }

// call runs fn, turning a panic into *panicError.
func (s *Supervisor) call(log logx.Logger, fn func(context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("task panicked", logx.Any("panic", r), logx.String("stack", string(debug.Stack())))
			err = &panicError{value: r}
		}
	}()
	return fn(s.ctx)
}

func (s *Supervisor) fail(err error) {
	s.record(err)
	if s.cancelOnErr {
		s.cancel()
	}
}

func (s *Supervisor) record(err error) {
	s.mu.Lock()
	if s.err == nil {
		s.err = err
	}
	s.mu.Unlock()
}

type RestartOption func(*restartPolicy)

type restartPolicy struct {
	min, max    time.Duration
	maxRestarts int // 0 means unlimited
	publish     bool
}

// WithRestartBackoff sets the first and the longest pause between restarts.
func WithRestartBackoff(min, max time.Duration) RestartOption {
	return func(p *restartPolicy) {
		if min > 0 {
			p.min = min
		}
		if max > 0 {
			p.max = max
		}
	}
}

// WithMaxRestarts gives up after n restarts; the first run is not counted.
func WithMaxRestarts(n int) RestartOption {
	return func(p *restartPolicy) { p.maxRestarts = n }
}

// WithPublishFirstError records each failure as the supervisor error even
// when the task later recovers.
func WithPublishFirstError(enabled bool) RestartOption {
	return func(p *restartPolicy) { p.publish = enabled }
}

// GoRestart keeps fn running: after an error or panic it waits (doubling,
// with jitter) and calls fn again. fn returning nil ends the task.
func (s *Supervisor) GoRestart(name string, fn func(ctx context.Context) error, opts ...RestartOption) {
	if fn == nil {
		return
	}
	p := restartPolicy{min: 250 * time.Millisecond, max: 30 * time.Second}
	for _, opt := range opts {
		opt(&p)
	}
	p.max = max(p.max, p.min)

	s.Go(name, func(ctx context.Context) error {
		log := s.log.With(logx.String("task", name))
		delay := p.min
		for n := 1; ; n++ {
			started := time.Now()
			err := s.call(log, fn)
			if err == nil || ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			if p.publish {
				s.record(fmt.Errorf("%s: %w", name, err))
			}
			s.mu.Lock()
			s.restarts[name] = n
			s.mu.Unlock()

			if p.maxRestarts > 0 && n > p.maxRestarts {
				log.Error("task gave up", logx.Int("restarts", n-1), logx.Err(err))
				return err
			}
			if time.Since(started) >= healthyRun {
				delay = p.min
			}
			wait := delay + jitter(delay)
			log.Warn("task restarting", logx.Duration("backoff", wait), logx.Err(err))
			if !sleep(ctx, wait) {
				return nil
			}
			delay = min(delay*2, p.max)
		}
	})
}

// jitter returns up to 20% of d.
func jitter(d time.Duration) time.Duration {
	if d < 5 {
		return 0
	}
	return rand.N(d / 5)
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// Stop cancels all tasks and waits for them within ctx.
func (s *Supervisor) Stop(ctx context.Context) error {
	s.cancel()
	return s.Wait(ctx)
}

// Wait blocks until every task has returned or ctx ends.
func (s *Supervisor) Wait(ctx context.Context) error {
	s.waiting.Do(func() {
		go func() {
			s.wg.Wait()
			close(s.done)
		}()
	})
	select {
	case <-s.done:
		return s.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}
