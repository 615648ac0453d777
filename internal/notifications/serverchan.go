package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

// ServerChan sends through sctapi.ftqq.com and confirms WeChat delivery.
type ServerChan struct {
	httpClient *http.Client
	baseURL    string
	sendKey    string
	logger     *slog.Logger

	sleep func(ctx context.Context, d time.Duration) error
}

// NewServerChan creates a ServerChan notifier for sendKey.
func NewServerChan(baseURL, sendKey string, httpClient *http.Client, logger *slog.Logger) *ServerChan {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: requestTimeout}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ServerChan{
		httpClient: httpClient,
		baseURL:    baseURL,
		sendKey:    sendKey,
		logger:     logger,
		sleep:      sleepCtx,
	}
}

type submitResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    *struct {
		PushID  scalar `json:"pushid"`
		ReadKey string `json:"readkey"`
	} `json:"data"`
}

type statusResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    *struct {
		ID       scalar `json:"id"`
		WxStatus string `json:"wxstatus"`
	} `json:"data"`
}

// wxStatus is the JSON document carried as a string in statusResponse.
type wxStatus struct {
	ErrCode int    `json:"errcode"`
	ErrMsg  string `json:"errmsg"`
}

// Send submits the message, waits for it to settle, then confirms that the
// WeChat leg reported errcode 0. Nothing is retried.
func (s *ServerChan) Send(ctx context.Context, title, body string) error {
	pushID, readKey, err := s.submit(ctx, title, body)
	if err != nil {
		return err
	}
	s.logger.Debug("ServerChan message submitted", "pushid", pushID)

	if err := s.sleep(ctx, settleDelay); err != nil {
		return err
	}

	if err := s.confirm(ctx, pushID, readKey); err != nil {
		return err
	}
	s.logger.Info("ServerChan message delivered", "pushid", pushID, "title", title)
	return nil
}

func (s *ServerChan) submit(ctx context.Context, title, body string) (string, string, error) {
	payload, err := json.Marshal(map[string]string{"title": title, "desp": body})
	if err != nil {
		return "", "", fmt.Errorf("encode message: %w", err)
	}

	u := fmt.Sprintf("%s/%s.send", s.baseURL, s.sendKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(payload))
	if err != nil {
		return "", "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json;charset=utf-8")

	var res submitResponse
	if err := s.do(req, &res); err != nil {
		return "", "", fmt.Errorf("serverchan submit: %w", err)
	}
	if res.Code != 0 {
		return "", "", &SubmitError{Code: res.Code, Message: res.Message}
	}
	if res.Data == nil || res.Data.PushID == "" {
		return "", "", &ConfirmError{Reason: "submit response carried no pushid"}
	}
	return string(res.Data.PushID), res.Data.ReadKey, nil
}

func (s *ServerChan) confirm(ctx context.Context, pushID, readKey string) error {
	q := url.Values{}
	q.Set("id", pushID)
	q.Set("readkey", readKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/push?"+q.Encode(), nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	var res statusResponse
	if err := s.do(req, &res); err != nil {
		return &ConfirmError{Reason: "status request failed", Err: err}
	}
	if res.Code != 0 || res.Data == nil || res.Data.WxStatus == "" {
		return &ConfirmError{Reason: fmt.Sprintf("status code %d: %s", res.Code, res.Message)}
	}

	var status wxStatus
	if err := json.Unmarshal([]byte(res.Data.WxStatus), &status); err != nil {
		return &ConfirmError{Reason: "wxstatus is not valid JSON", Err: err}
	}
	if status.ErrCode != 0 {
		return &ConfirmError{Reason: fmt.Sprintf("wechat errcode %d: %s", status.ErrCode, status.ErrMsg)}
	}
	return nil
}

func (s *ServerChan) do(req *http.Request, out any) error {
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response (status %d): %w: %s", resp.StatusCode, err, truncate(body, 200))
	}
	return nil
}

// scalar accepts a JSON string or number and keeps its text form. The push
// API has returned ids in both shapes.
type scalar string

func (s *scalar) UnmarshalJSON(b []byte) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return err
	}
	switch x := v.(type) {
	case nil:
		*s = ""
	case string:
		*s = scalar(x)
	case json.Number:
		*s = scalar(x.String())
	default:
		return fmt.Errorf("unsupported id value %s", b)
	}
	return nil
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
