package telegram

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	kit "backupd/internal/transport"
)

func TestNewRequiresToken(t *testing.T) {
	if _, err := New(Config{Token: "  "}); err == nil {
		t.Fatal("expected error for empty token")
	}
}

func TestSendText(t *testing.T) {
	var (
		mu   sync.Mutex
		path string
		body string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		mu.Lock()
		path, body = r.URL.Path, string(b)
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"ok":true,"result":{"message_id":42,"date":0,"chat":{"id":-100,"type":"supergroup"}}}`)
	}))
	defer srv.Close()

	s, err := New(Config{Token: "123:abc", APIURL: srv.URL})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ref, err := s.SendText(context.Background(), kit.ChatTarget{ChatID: -100, ThreadID: 7}, "[ERROR] backup failed", nil)
	if err != nil {
		t.Fatalf("SendText: %v", err)
	}
	if ref.MessageID != 42 || ref.ChatID != -100 || ref.ThreadID != 7 {
		t.Fatalf("ref = %+v", ref)
	}

	mu.Lock()
	defer mu.Unlock()
	if !strings.HasSuffix(path, "/bot123:abc/sendMessage") {
		t.Fatalf("path = %q", path)
	}
	if !strings.Contains(body, "backup failed") || !strings.Contains(body, "-100") {
		t.Fatalf("body = %q", body)
	}
}

func TestSendTextCancelled(t *testing.T) {
	s, err := New(Config{Token: "123:abc", APIURL: "http://127.0.0.1:1"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.SendText(ctx, kit.ChatTarget{ChatID: 1}, "x", nil); err == nil {
		t.Fatal("expected error for cancelled context")
	}
}
