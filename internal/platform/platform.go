// Package platform delivers task notifications to chat platforms. Each
// configured platform is a bootstrap session that must connect before the
// scheduler starts.
package platform

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/cfd24/hoyolab-auto/internal/bootstrap"
	"github.com/cfd24/hoyolab-auto/internal/config"
)

// Platform type tags accepted in the platforms configuration.
const (
	TypeTelegram = "telegram"
	TypeWebhook  = "webhook"
)

// Message is one notification.
type Message struct {
	Title string
	Body  string
}

// Text renders the message as plain text.
func (m Message) Text() string {
	switch {
	case m.Title == "":
		return m.Body
	case m.Body == "":
		return m.Title
	default:
		return m.Title + "\n" + m.Body
	}
}

// Platform is a connected notification target.
type Platform interface {
	bootstrap.Session
	// Type returns the platform's type tag.
	Type() string
	// Send delivers msg.
	Send(ctx context.Context, msg Message) error
}

// NewFactory returns a platform factory with every supported type
// registered. Webhooks share httpClient.
func NewFactory(logger *slog.Logger, httpClient *http.Client) *bootstrap.Factory[config.PlatformConfig, Platform] {
	f := bootstrap.NewFactory[config.PlatformConfig, Platform]()
	f.Register(TypeTelegram, func(cfg config.PlatformConfig) (Platform, error) {
		return NewTelegram(cfg, logger)
	})
	f.Register(TypeWebhook, func(cfg config.PlatformConfig) (Platform, error) {
		return NewWebhook(cfg, httpClient, logger)
	})
	return f
}

func platformID(cfg config.PlatformConfig, fallback string) string {
	if id := strings.TrimSpace(cfg.ID); id != "" {
		return cfg.Type + ":" + id
	}
	return cfg.Type + ":" + fallback
}
