package bili

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	DefaultAPIURL      = "https://api.live.bilibili.com/room/v1/Room/get_status_info_by_uids"
	DefaultProxyPrefix = "https://api.codetabs.com/v1/proxy/?quest="

	maxAttempts = 3
	baseDelay   = 1500 * time.Millisecond

	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/130.0.0.0 Safari/537.36 Edg/130.0.0.0"
)

// AttemptRecorder observes the outcome of each upstream attempt.
type AttemptRecorder interface {
	UpstreamAttempt(result string)
}

// Options configures a Client. Zero values fall back to defaults.
type Options struct {
	APIURL            string
	ProxyPrefix       string
	Direct            bool // ignore ProxyPrefix and call APIURL directly
	RequestsPerMinute int
	HTTPClient        *http.Client
	Recorder          AttemptRecorder
}

// Client fetches room status through the proxy relay.
type Client struct {
	httpClient  *http.Client
	apiURL      string
	proxyPrefix string
	limiter     *rate.Limiter
	validator   *Validator
	recorder    AttemptRecorder
	logger      *slog.Logger

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewClient creates a status client with rate limiting and schema validation.
func NewClient(opts Options, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}

	validator, err := NewValidator()
	if err != nil {
		return nil, err
	}

	apiURL := opts.APIURL
	if apiURL == "" {
		apiURL = DefaultAPIURL
	}
	proxy := opts.ProxyPrefix
	if opts.Direct {
		proxy = ""
	} else if proxy == "" {
		proxy = DefaultProxyPrefix
	}
	rpm := opts.RequestsPerMinute
	if rpm <= 0 {
		rpm = 30
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	return &Client{
		httpClient:  httpClient,
		apiURL:      apiURL,
		proxyPrefix: proxy,
		limiter:     rate.NewLimiter(rate.Limit(float64(rpm)/60.0), maxAttempts),
		validator:   validator,
		recorder:    opts.Recorder,
		logger:      logger,
		now:         time.Now,
		sleep:       sleepCtx,
	}, nil
}

// FetchStatuses returns the current status of every id in one batched
// request. An empty id list is a no-op and returns a nil snapshot.
//
// Failed attempts are followed by a 1500ms*2^attempt wait, including the last
// one, before the next attempt or the final UpstreamError.
func (c *Client) FetchStatuses(ctx context.Context, ids []string) (Snapshot, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		snap, err := c.fetchOnce(ctx, ids)
		if err == nil {
			c.record("ok")
			return snap, nil
		}
		if apiErr, ok := err.(*APIError); ok {
			c.record("api_error")
			return nil, apiErr
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		c.record("retry")
		lastErr = err
		wait := baseDelay * time.Duration(1<<attempt)
		c.logger.Warn("bili status fetch failed",
			"attempt", attempt+1,
			"max_attempts", maxAttempts,
			"wait", wait,
			"error", err)

		if err := c.sleep(ctx, wait); err != nil {
			return nil, err
		}
	}

	c.record("exhausted")
	return nil, &UpstreamError{Attempts: maxAttempts, Err: lastErr}
}

// fetchOnce performs a single rate-limited attempt.
func (c *Client) fetchOnce(ctx context.Context, ids []string) (Snapshot, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.requestURL(ids), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json,*/*")
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("status endpoint returned %d: %s", resp.StatusCode, truncate(body, 200))
	}

	if err := c.validator.Validate(body); err != nil {
		return nil, fmt.Errorf("%w (body: %s)", err, truncate(body, 200))
	}

	var result statusResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if result.Code != 0 {
		return nil, &APIError{Code: result.Code, Message: result.Message}
	}

	return Snapshot(result.Data), nil
}

// requestURL builds the target URL with a fresh cache-buster and wraps it in
// the proxy relay.
func (c *Client) requestURL(ids []string) string {
	var b strings.Builder
	b.WriteString(c.apiURL)
	if strings.Contains(c.apiURL, "?") {
		b.WriteByte('&')
	} else {
		b.WriteByte('?')
	}
	for _, id := range ids {
		b.WriteString("uids[]=")
		b.WriteString(url.QueryEscape(id))
		b.WriteByte('&')
	}
	b.WriteString("_t=")
	b.WriteString(strconv.FormatInt(c.now().UnixMilli(), 10))

	target := b.String()
	if c.proxyPrefix == "" {
		return target
	}
	return c.proxyPrefix + url.QueryEscape(target)
}

func (c *Client) record(result string) {
	if c.recorder != nil {
		c.recorder.UpstreamAttempt(result)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// truncate returns a truncated string representation for error messages.
func truncate(b []byte, maxLen int) string {
	if len(b) <= maxLen {
		return string(b)
	}
	return string(b[:maxLen]) + "..."
}
