package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/yuin/goldmark"
)

const wxPusherURL = "https://wxpusher.zjiecode.com/api/send/message"

// contentTypeHTML tells WxPusher the content is HTML.
const contentTypeHTML = 2

// WxPusherConfig holds the application credentials and target user.
type WxPusherConfig struct {
	AppID    int
	AppToken string
	UserID   string
	URL      string // override for tests
}

// WxPusher sends the digest as HTML through wxpusher.zjiecode.com.
type WxPusher struct {
	cfg        WxPusherConfig
	httpClient *http.Client
	md         goldmark.Markdown
	logger     *slog.Logger
}

// NewWxPusher creates a WxPusher notifier.
func NewWxPusher(cfg WxPusherConfig, httpClient *http.Client, logger *slog.Logger) *WxPusher {
	if cfg.URL == "" {
		cfg.URL = wxPusherURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: requestTimeout}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &WxPusher{cfg: cfg, httpClient: httpClient, md: goldmark.New(), logger: logger}
}

type wxPusherMessage struct {
	AppID       int      `json:"appId"`
	AppToken    string   `json:"appToken"`
	UIDs        []string `json:"uids"`
	TopicIDs    []int    `json:"topicIds"`
	Summary     string   `json:"summary"`
	Content     string   `json:"content"`
	ContentType int      `json:"contentType"`
	VerifyPay   bool     `json:"verifyPay"`
}

type wxPusherResponse struct {
	Code    int    `json:"code"`
	Msg     string `json:"msg"`
	Success bool   `json:"success"`
}

// Send renders body to HTML and posts it.
func (w *WxPusher) Send(ctx context.Context, title, body string) error {
	var html bytes.Buffer
	if err := w.md.Convert([]byte(body), &html); err != nil {
		return fmt.Errorf("render markdown: %w", err)
	}

	payload, err := json.Marshal(wxPusherMessage{
		AppID:       w.cfg.AppID,
		AppToken:    w.cfg.AppToken,
		UIDs:        []string{w.cfg.UserID},
		TopicIDs:    []int{},
		Summary:     title,
		Content:     html.String(),
		ContentType: contentTypeHTML,
	})
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.cfg.URL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "*/*")
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Content-Type", "application/json;charset=utf-8")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("wxpusher request: %w", err)
	}
	defer resp.Body.Close()

	var res wxPusherResponse
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return fmt.Errorf("decode wxpusher response (status %d): %w", resp.StatusCode, err)
	}
	// 1000 is WxPusher's success code.
	if res.Code != 1000 || !res.Success {
		return &SubmitError{Code: res.Code, Message: res.Msg}
	}

	w.logger.Info("WxPusher message delivered", "title", title)
	return nil
}
