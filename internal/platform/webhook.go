package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/cfd24/hoyolab-auto/internal/config"
)

// embed limits imposed by Discord-compatible webhooks.
const (
	maxEmbedTitle       = 256
	maxEmbedDescription = 4096
)

type webhookEmbed struct {
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	Timestamp   string `json:"timestamp,omitempty"`
}

type webhookPayload struct {
	Username string         `json:"username,omitempty"`
	Embeds   []webhookEmbed `json:"embeds"`
}

// Webhook posts notifications as Discord-compatible embeds.
type Webhook struct {
	id         string
	url        string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewWebhook validates the webhook URL.
func NewWebhook(cfg config.PlatformConfig, httpClient *http.Client, logger *slog.Logger) (*Webhook, error) {
	u, err := url.Parse(cfg.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid webhook url %q", cfg.URL)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}

	id := platformID(cfg, u.Host)
	return &Webhook{
		id:         id,
		url:        cfg.URL,
		httpClient: httpClient,
		logger:     logger.With("component", "webhook", "platform", id),
	}, nil
}

// ID implements bootstrap.Session.
func (w *Webhook) ID() string { return w.id }

// Type implements Platform.
func (w *Webhook) Type() string { return TypeWebhook }

// Connect checks that the webhook exists.
func (w *Webhook) Connect(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, w.url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if err := w.roundTrip(req); err != nil {
		return fmt.Errorf("webhook check failed: %w", err)
	}
	w.logger.Info("Webhook connected")
	return nil
}

// Send posts msg as a single embed.
func (w *Webhook) Send(ctx context.Context, msg Message) error {
	payload := webhookPayload{
		Username: "HoYoLAB Auto",
		Embeds: []webhookEmbed{{
			Title:       truncate(msg.Title, maxEmbedTitle),
			Description: truncate(msg.Body, maxEmbedDescription),
			Timestamp:   time.Now().UTC().Format(time.RFC3339),
		}},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	if err := w.roundTrip(req); err != nil {
		return fmt.Errorf("webhook send failed: %w", err)
	}
	w.logger.Debug("Webhook message sent", "title", msg.Title)
	return nil
}

func (w *Webhook) roundTrip(req *http.Request) error {
	resp, err := w.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return errors.New(resp.Status)
	}
	return nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
