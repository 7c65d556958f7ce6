package platform_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"slices"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-telegram/bot"

	"github.com/cfd24/hoyolab-auto/internal/config"
	"github.com/cfd24/hoyolab-auto/internal/logger"
	"github.com/cfd24/hoyolab-auto/internal/platform"
)

func TestParseCommand(t *testing.T) {
	t.Parallel()

	tests := []struct {
		text string
		name string
		args []string
		ok   bool
	}{
		{"/notes", "notes", []string{}, true},
		{"/Redeem@hoyolab_auto_bot  CODE1 code2", "redeem", []string{"CODE1", "code2"}, true},
		{"hello /notes", "", nil, false},
		{"/", "", nil, false},
		{"", "", nil, false},
	}

	for _, tc := range tests {
		name, args, ok := platform.ParseCommand(tc.text)
		if name != tc.name || ok != tc.ok || (ok && !slices.Equal(args, tc.args)) {
			t.Errorf("ParseCommand(%q) = %q, %q, %v; want %q, %q, %v", tc.text, name, args, ok, tc.name, tc.args, tc.ok)
		}
	}
}

func TestHelpText(t *testing.T) {
	t.Parallel()

	got := platform.HelpText([]platform.Command{
		{Name: "redeem", Usage: "<code>", Description: "Redeem gift codes"},
		{Name: "notes", Description: "Show notes"},
	})
	want := "Available commands:\n/notes - Show notes\n/redeem <code> - Redeem gift codes"
	if got != want {
		t.Errorf("HelpText() = %q, want %q", got, want)
	}
}

// pollingServer hands out queued updates through getUpdates and records replies.
type pollingServer struct {
	mu      sync.Mutex
	updates []string
	replies map[string]string
	nextID  atomic.Int64
}

func (s *pollingServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	switch {
	case strings.HasSuffix(r.URL.Path, "/getUpdates"):
		s.mu.Lock()
		if len(s.updates) == 0 {
			s.mu.Unlock()
			select {
			case <-r.Context().Done():
			case <-time.After(50 * time.Millisecond):
			}
			_, _ = io.WriteString(w, `{"ok":true,"result":[]}`)
			return
		}
		text := s.updates[0]
		s.updates = s.updates[1:]
		s.mu.Unlock()

		id := s.nextID.Add(1)
		chatID := "1001"
		if strings.HasPrefix(text, "stranger:") {
			chatID = "666"
			text = strings.TrimPrefix(text, "stranger:")
		}
		cmdLen := len(strings.Fields(text)[0])
		_, _ = io.WriteString(w, `{"ok":true,"result":[{"update_id":`+strconv.FormatInt(id, 10)+`,"message":{"message_id":`+strconv.FormatInt(id, 10)+
			`,"date":0,"chat":{"id":`+chatID+`,"type":"private"},"text":"`+text+
			`","entities":[{"type":"bot_command","offset":0,"length":`+strconv.Itoa(cmdLen)+`}]}}]}`)
	case strings.HasSuffix(r.URL.Path, "/sendMessage"):
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		s.mu.Lock()
		s.replies[r.FormValue("chat_id")] += r.FormValue("text") + "\n---\n"
		s.mu.Unlock()
		_, _ = io.WriteString(w, `{"ok":true,"result":{"message_id":1,"date":0,"chat":{"id":1001,"type":"private"}}}`)
	default:
		_, _ = io.WriteString(w, `{"ok":true,"result":true}`)
	}
}

func (s *pollingServer) reply(chatID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.replies[chatID]
}

func TestTelegramListenAnswersCommands(t *testing.T) {
	t.Parallel()

	srv := &pollingServer{
		updates: []string{"stranger:/notes", "/notes", "/redeem CODE1", "/help"},
		replies: map[string]string{},
	}
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)

	tg, err := platform.NewTelegram(config.PlatformConfig{
		Type:   platform.TypeTelegram,
		Token:  "123456:TEST-TOKEN",
		ChatID: 1001,
	}, logger.Discard(), bot.WithServerURL(ts.URL))
	if err != nil {
		t.Fatalf("NewTelegram() error = %v", err)
	}

	var gotArgs atomic.Value
	cmds := []platform.Command{
		{Name: "notes", Description: "Show notes", Run: func(context.Context, []string) (string, error) {
			return "Original Resin: 120/200", nil
		}},
		{Name: "redeem", Usage: "<code>", Run: func(_ context.Context, args []string) (string, error) {
			gotArgs.Store(strings.Join(args, ","))
			return "", errors.New("hoyolab unavailable")
		}},
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- tg.Listen(ctx, cmds) }()

	deadline := time.Now().Add(5 * time.Second)
	for strings.Count(srv.reply("1001"), "---") < 3 && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
	}
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Listen() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Listen() did not return after cancel")
	}

	replies := srv.reply("1001")
	for _, want := range []string{"Original Resin: 120/200", "/redeem failed: hoyolab unavailable", "Available commands:"} {
		if !strings.Contains(replies, want) {
			t.Errorf("replies = %q, missing %q", replies, want)
		}
	}
	if got, _ := gotArgs.Load().(string); got != "CODE1" {
		t.Errorf("redeem args = %q, want CODE1", got)
	}
	if stranger := srv.reply("666"); stranger != "" {
		t.Errorf("unknown chat got a reply: %q", stranger)
	}
}
