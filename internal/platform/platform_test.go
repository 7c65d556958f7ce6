package platform_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/go-telegram/bot"

	"github.com/cfd24/hoyolab-auto/internal/config"
	apperrors "github.com/cfd24/hoyolab-auto/internal/errors"
	"github.com/cfd24/hoyolab-auto/internal/logger"
	"github.com/cfd24/hoyolab-auto/internal/platform"
)

func TestMessageText(t *testing.T) {
	t.Parallel()

	tests := []struct {
		msg  platform.Message
		want string
	}{
		{platform.Message{Title: "Check-in", Body: "Signed"}, "Check-in\nSigned"},
		{platform.Message{Title: "Check-in"}, "Check-in"},
		{platform.Message{Body: "Signed"}, "Signed"},
	}
	for _, tc := range tests {
		if got := tc.msg.Text(); got != tc.want {
			t.Errorf("Text() = %q, want %q", got, tc.want)
		}
	}
}

type telegramServer struct {
	mu    sync.Mutex
	texts []string
	chats []string
}

func (s *telegramServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	switch {
	case strings.HasSuffix(r.URL.Path, "/getMe"):
		_, _ = io.WriteString(w, `{"ok":true,"result":{"id":42,"is_bot":true,"first_name":"HoYoLAB","username":"hoyolab_auto_bot"}}`)
	case strings.HasSuffix(r.URL.Path, "/sendMessage"):
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		s.mu.Lock()
		s.texts = append(s.texts, r.FormValue("text"))
		s.chats = append(s.chats, r.FormValue("chat_id"))
		s.mu.Unlock()
		_, _ = io.WriteString(w, `{"ok":true,"result":{"message_id":1,"date":0,"chat":{"id":1001,"type":"private"}}}`)
	default:
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"ok":false,"error_code":404,"description":"Not Found"}`)
	}
}

func TestTelegramConnectAndSend(t *testing.T) {
	t.Parallel()

	srv := &telegramServer{}
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)

	tg, err := platform.NewTelegram(config.PlatformConfig{
		Type:   platform.TypeTelegram,
		Active: true,
		Token:  "123456:TEST-TOKEN",
		ChatID: 1001,
	}, logger.Discard(), bot.WithServerURL(ts.URL))
	if err != nil {
		t.Fatalf("NewTelegram() error = %v", err)
	}
	if tg.ID() != "telegram:1001" || tg.Type() != platform.TypeTelegram {
		t.Errorf("ID() = %s, Type() = %s", tg.ID(), tg.Type())
	}

	ctx := context.Background()
	if err := tg.Connect(ctx); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if err := tg.Send(ctx, platform.Message{Title: "Check-in", Body: "Traveler signed in"}); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	srv.mu.Lock()
	defer srv.mu.Unlock()
	if len(srv.texts) != 1 || srv.texts[0] != "Check-in\nTraveler signed in" || srv.chats[0] != "1001" {
		t.Errorf("sent texts = %q to chats %q", srv.texts, srv.chats)
	}
}

func TestNewTelegramValidation(t *testing.T) {
	t.Parallel()

	if _, err := platform.NewTelegram(config.PlatformConfig{Type: platform.TypeTelegram, ChatID: 1}, logger.Discard()); err == nil {
		t.Error("NewTelegram() without token expected error")
	}
	if _, err := platform.NewTelegram(config.PlatformConfig{Type: platform.TypeTelegram, Token: "1:x"}, logger.Discard()); err == nil {
		t.Error("NewTelegram() without chat id expected error")
	}
}

func TestWebhookConnectAndSend(t *testing.T) {
	t.Parallel()

	var (
		mu      sync.Mutex
		payload map[string]any
	)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			_, _ = io.WriteString(w, `{"id":"1","type":1}`)
		case http.MethodPost:
			mu.Lock()
			defer mu.Unlock()
			if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
				t.Errorf("decode payload: %v", err)
			}
			w.WriteHeader(http.StatusNoContent)
		}
	}))
	t.Cleanup(ts.Close)

	wh, err := platform.NewWebhook(config.PlatformConfig{Type: platform.TypeWebhook, ID: "discord", URL: ts.URL}, ts.Client(), logger.Discard())
	if err != nil {
		t.Fatalf("NewWebhook() error = %v", err)
	}
	if wh.ID() != "webhook:discord" {
		t.Errorf("ID() = %s", wh.ID())
	}

	ctx := context.Background()
	if err := wh.Connect(ctx); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if err := wh.Send(ctx, platform.Message{Title: "Stamina", Body: "Resin is almost full"}); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	embeds, ok := payload["embeds"].([]any)
	if !ok || len(embeds) != 1 {
		t.Fatalf("payload = %v, want one embed", payload)
	}
	embed, _ := embeds[0].(map[string]any)
	if embed["title"] != "Stamina" || embed["description"] != "Resin is almost full" {
		t.Errorf("embed = %v", embed)
	}
}

func TestWebhookConnectFails(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.NotFoundHandler())
	t.Cleanup(ts.Close)

	wh, err := platform.NewWebhook(config.PlatformConfig{Type: platform.TypeWebhook, URL: ts.URL}, ts.Client(), logger.Discard())
	if err != nil {
		t.Fatalf("NewWebhook() error = %v", err)
	}
	if err := wh.Connect(context.Background()); err == nil {
		t.Error("Connect() to missing webhook expected error")
	}

	if _, err := platform.NewWebhook(config.PlatformConfig{Type: platform.TypeWebhook, URL: "not a url"}, nil, nil); err == nil {
		t.Error("NewWebhook() with invalid url expected error")
	}
}

type fakePlatform struct {
	id   string
	err  error
	mu   sync.Mutex
	sent []platform.Message
}

func (f *fakePlatform) ID() string                    { return f.id }
func (f *fakePlatform) Type() string                  { return "fake" }
func (f *fakePlatform) Connect(context.Context) error { return nil }

func (f *fakePlatform) Send(_ context.Context, msg platform.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, msg)
	return f.err
}

func TestDispatcherIsolatesPlatformFailures(t *testing.T) {
	t.Parallel()

	broken := &fakePlatform{id: "webhook:broken", err: errors.New("410 Gone")}
	healthy := &fakePlatform{id: "telegram:1"}
	d := platform.NewDispatcher([]platform.Platform{broken, healthy}, config.NotificationConfig{RatePerSec: 100}, logger.Discard())

	err := d.Notify(context.Background(), platform.Message{Title: "Expedition"})
	if err == nil || !strings.Contains(err.Error(), "webhook:broken") {
		t.Errorf("Notify() error = %v, want failure of webhook:broken", err)
	}
	if len(healthy.sent) != 1 {
		t.Errorf("healthy platform got %d messages, want 1", len(healthy.sent))
	}
}

func TestDispatcherWithoutPlatforms(t *testing.T) {
	t.Parallel()

	d := platform.NewDispatcher(nil, config.NotificationConfig{}, logger.Discard())
	if err := d.Notify(context.Background(), platform.Message{Title: "x"}); err != nil {
		t.Errorf("Notify() error = %v", err)
	}
}

func TestDispatcherCancelledContext(t *testing.T) {
	t.Parallel()

	p := &fakePlatform{id: "telegram:1"}
	d := platform.NewDispatcher([]platform.Platform{p, p}, config.NotificationConfig{RatePerSec: 1}, logger.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := d.Notify(ctx, platform.Message{Title: "x"}); !errors.Is(err, context.Canceled) {
		t.Errorf("Notify() error = %v, want context.Canceled", err)
	}
}

func TestFactory(t *testing.T) {
	t.Parallel()

	f := platform.NewFactory(logger.Discard(), nil)

	p, err := f.Create(platform.TypeWebhook, config.PlatformConfig{Type: platform.TypeWebhook, URL: "https://discord.com/api/webhooks/1/abc"})
	if err != nil {
		t.Fatalf("Create(webhook) error = %v", err)
	}
	if p.Type() != platform.TypeWebhook || p.ID() != "webhook:discord.com" {
		t.Errorf("webhook platform = %s %s", p.Type(), p.ID())
	}

	_, err = f.Create("slack", config.PlatformConfig{Type: "slack"})
	if !errors.Is(err, &apperrors.ConfigError{Kind: apperrors.UnknownType, Name: "slack"}) {
		t.Errorf("Create(slack) error = %v, want UnknownType", err)
	}
}
