package logx

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	kit "backupd/internal/transport"
)

type Config struct {
	Level    string
	Console  bool
	File     FileConfig
	Telegram TelegramConfig
}

type FileConfig struct {
	Enabled bool
	Path    string
	// Format is "plain" (default) or "json".
	Format string
}

type TelegramConfig struct {
	Enabled    bool
	ChatID     int64
	ThreadID   int
	MinLevel   string // default warn
	RatePerSec int    // default 1
}

const defaultLogFile = "./backupd.log"

// Service owns the log sinks. Apply swaps them atomically; loggers handed
// out earlier pick up the change on their next event.
type Service struct {
	mu   sync.Mutex
	file *os.File
	tg   *telegramSink // nil without a sender

	root atomic.Pointer[zerolog.Logger]
}

// New builds the service and applies cfg. sender may be nil when no Telegram
// bot is configured.
func New(cfg Config, sender kit.Sender) (*Service, Logger) {
	setGlobals()
	s := &Service{}
	if sender != nil {
		s.tg = newTelegramSink(sender)
	}
	s.Apply(cfg)
	return s, Logger{svc: s}
}

func (s *Service) Logger() Logger { return Logger{svc: s} }

func (s *Service) current() zerolog.Logger {
	if zl := s.root.Load(); zl != nil {
		return *zl
	}
	return zerolog.Nop()
}

// Apply reconfigures level and sinks. Safe to call concurrently.
func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file != nil {
		_ = s.file.Close()
		s.file = nil
	}

	var writers []io.Writer
	if cfg.Console {
		writers = append(writers, newConsoleWriter(os.Stderr))
	}
	if cfg.File.Enabled {
		path := strings.TrimSpace(cfg.File.Path)
		if path == "" {
			path = defaultLogFile
		}
		if f, err := openLogFile(path); err != nil {
			fmt.Fprintf(os.Stderr, "logx: failed opening log file %q: %v\n", path, err)
		} else {
			s.file = f
			writers = append(writers, zerolog.SyncWriter(fileWriter(f, cfg.File.Format)))
		}
	}
	if cfg.Telegram.Enabled {
		switch {
		case s.tg == nil:
			fmt.Fprintln(os.Stderr, "logx: telegram logging enabled but telegram.token is not set")
		case cfg.Telegram.ChatID == 0:
			fmt.Fprintln(os.Stderr, "logx: telegram logging enabled but telegram.chat_id is not set")
		default:
			s.tg.configure(cfg.Telegram)
			writers = append(writers, s.tg)
		}
	}
	if len(writers) == 0 {
		writers = append(writers, newConsoleWriter(os.Stderr))
	}

	zl := zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(parseLevel(cfg.Level, zerolog.InfoLevel)).
		With().Timestamp().Logger()
	s.root.Store(&zl)
}

// Close flushes pending Telegram messages (bounded) and closes the log file.
func (s *Service) Close() error {
	s.mu.Lock()
	f := s.file
	s.file = nil
	s.mu.Unlock()

	if s.tg != nil {
		s.tg.close()
	}
	if f != nil {
		return f.Close()
	}
	return nil
}
