package logx

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	kit "backupd/internal/transport"
)

const (
	telegramMaxMessage = 3500
	telegramMaxField   = 600
	telegramDrainLimit = 2 * time.Second
)

// telegramSink is a zerolog.LevelWriter that forwards events at or above
// MinLevel to a chat. Delivery is asynchronous; when the queue is full or the
// rate limit is hit the event is dropped.
type telegramSink struct {
	sender kit.Sender
	queue  chan telegramItem

	mu       sync.Mutex
	to       kit.ChatTarget
	minLevel zerolog.Level
	limiter  *rate.Limiter

	startOnce sync.Once
	stopOnce  sync.Once
	cancel    context.CancelFunc
	done      chan struct{}
}

type telegramItem struct {
	to  kit.ChatTarget
	msg string
}

func newTelegramSink(sender kit.Sender) *telegramSink {
	return &telegramSink{
		sender: sender,
		queue:  make(chan telegramItem, 256),
		done:   make(chan struct{}),
	}
}

func (t *telegramSink) configure(cfg TelegramConfig) {
	rps := max(1, cfg.RatePerSec)
	t.mu.Lock()
	t.to = kit.ChatTarget{ChatID: cfg.ChatID, ThreadID: cfg.ThreadID}
	t.minLevel = parseLevel(cfg.MinLevel, zerolog.WarnLevel)
	t.limiter = rate.NewLimiter(rate.Limit(rps), rps)
	t.mu.Unlock()

	t.startOnce.Do(func() {
		ctx, cancel := context.WithCancel(context.Background())
		t.cancel = cancel
		go t.run(ctx)
	})
}

func (t *telegramSink) run(ctx context.Context) {
	defer close(t.done)
	for {
		select {
		case <-ctx.Done():
			return
		case it := <-t.queue:
			t.send(ctx, it)
		}
	}
}

func (t *telegramSink) send(ctx context.Context, it telegramItem) {
	sctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	_, _ = t.sender.SendText(sctx, it.to, it.msg, &kit.SendOptions{DisablePreview: true})
}

// close sends what is still queued, so short CLI runs keep their alerts,
// then stops the worker.
func (t *telegramSink) close() {
	t.stopOnce.Do(func() {
		if t.cancel == nil {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), telegramDrainLimit)
		defer cancel()
		t.cancel()
		<-t.done
	drain:
		for ctx.Err() == nil {
			select {
			case it := <-t.queue:
				t.send(ctx, it)
			default:
				break drain
			}
		}
	})
}

func (t *telegramSink) Write(p []byte) (int, error) {
	return t.WriteLevel(zerolog.InfoLevel, p)
}

func (t *telegramSink) WriteLevel(level zerolog.Level, p []byte) (int, error) {
	t.mu.Lock()
	to, minLevel, lim := t.to, t.minLevel, t.limiter
	t.mu.Unlock()

	if to.ChatID == 0 || lim == nil || level < minLevel || !lim.Allow() {
		return len(p), nil
	}
	if msg := formatTelegramJSON(p); msg != "" {
		select {
		case t.queue <- telegramItem{to: to, msg: msg}:
		default:
		}
	}
	return len(p), nil
}

// formatTelegramJSON turns a zerolog JSON line into "[LEVEL] message" plus
// one "- key=value" line per field, sorted by key.
func formatTelegramJSON(p []byte) string {
	p = bytes.TrimSpace(p)
	var m map[string]any
	if err := json.Unmarshal(p, &m); err != nil {
		return truncate(string(p), telegramMaxMessage)
	}

	var b strings.Builder
	if lvl, _ := m[zerolog.LevelFieldName].(string); lvl != "" {
		b.WriteString("[" + strings.ToUpper(lvl) + "] ")
	}
	msg, _ := m[zerolog.MessageFieldName].(string)
	b.WriteString(msg)

	keys := make([]string, 0, len(m))
	for k := range m {
		switch k {
		case zerolog.TimestampFieldName, zerolog.LevelFieldName, zerolog.MessageFieldName, zerolog.CallerFieldName:
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "\n- %s=%s", k, truncate(fmt.Sprint(m[k]), telegramMaxField))
	}
	return truncate(b.String(), telegramMaxMessage)
}

func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	if n < 10 {
		return s[:n]
	}
	return s[:n-3] + "..."
}
