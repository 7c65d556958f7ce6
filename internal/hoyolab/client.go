package hoyolab

import (
	"bytes"
	"context"
	"crypto/md5" //nolint:gosec // required by the DS header scheme
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/avast/retry-go/v4"
)

const (
	dsSalt        = "6s25p5ox5y14umn1p61aqyyvbvvl3lrt"
	appVersion    = "1.5.0"
	clientType    = "5"
	userAgent     = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"
	defaultLang   = "en-us"
	maxBodyBytes  = 1 << 20
	retryAttempts = 3
	retryDelay    = time.Second
)

// envelope is the common HoYoLAB response wrapper.
type envelope struct {
	Retcode int             `json:"retcode"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithLogger sets the client logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRetryDelay sets the initial backoff between attempts.
func WithRetryDelay(d time.Duration) ClientOption {
	return func(c *Client) {
		c.retryDelay = d
	}
}

// Client performs authenticated HoYoLAB requests. It is safe for
// concurrent use; the cookie is passed per request.
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	retryDelay time.Duration
	now        func() time.Time
}

// NewClient returns a Client with a 30 second request timeout.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     slog.Default(),
		retryDelay: retryDelay,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "hoyolab")
	return c
}

// request describes one API call.
type request struct {
	method string
	url    string
	query  url.Values
	body   any
	cookie string
	// ds adds the dynamic secret header game-record endpoints require.
	ds      bool
	headers map[string]string
}

// do sends req, retrying transient failures, and decodes the envelope's
// data into out when out is non-nil.
func (c *Client) do(ctx context.Context, req request, out any) error {
	return retry.Do(
		func() error {
			return c.doOnce(ctx, req, out)
		},
		retry.Context(ctx),
		retry.Attempts(retryAttempts),
		retry.Delay(c.retryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(isRetryable),
		retry.OnRetry(func(n uint, err error) {
			c.logger.Debug("Retrying request",
				"url", req.url,
				"attempt", n+1,
				"max_attempts", retryAttempts,
				"error", err)
		}),
	)
}

func (c *Client) doOnce(ctx context.Context, req request, out any) error {
	httpReq, err := c.buildRequest(ctx, req)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", req.url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return &StatusError{StatusCode: resp.StatusCode, URL: req.url}
	}

	var env envelope
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&env); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", req.url, err)
	}
	if env.Retcode != retcodeOK {
		return &APIError{Retcode: env.Retcode, Message: env.Message, URL: req.url}
	}

	if out == nil || len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("failed to decode data from %s: %w", req.url, err)
	}

	return nil
}

func (c *Client) buildRequest(ctx context.Context, req request) (*http.Request, error) {
	var bodyReader io.Reader
	if req.body != nil {
		jsonBody, err := json.Marshal(req.body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	target := req.url
	if len(req.query) > 0 {
		target += "?" + req.query.Encode()
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, target, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", userAgent)
	httpReq.Header.Set("Cookie", req.cookie)
	httpReq.Header.Set("x-rpc-app_version", appVersion)
	httpReq.Header.Set("x-rpc-client_type", clientType)
	httpReq.Header.Set("x-rpc-language", defaultLang)
	if req.body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if req.ds {
		httpReq.Header.Set("DS", c.dynamicSecret())
	}
	for k, v := range req.headers {
		httpReq.Header.Set(k, v)
	}

	return httpReq, nil
}

const dsAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// dynamicSecret builds the "t,r,h" DS header value.
func (c *Client) dynamicSecret() string {
	t := strconv.FormatInt(c.now().Unix(), 10)

	r := make([]byte, 6)
	for i := range r {
		r[i] = dsAlphabet[rand.IntN(len(dsAlphabet))] //nolint:gosec // not security sensitive
	}

	return t + "," + string(r) + "," + dsHash(t, string(r))
}

func dsHash(t, r string) string {
	sum := md5.Sum([]byte("salt=" + dsSalt + "&t=" + t + "&r=" + r)) //nolint:gosec // required by the DS header scheme
	return hex.EncodeToString(sum[:])
}

func isRetryable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Retryable()
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Retryable()
	}
	// decoding failures will not fix themselves
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return false
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}
