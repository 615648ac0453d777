// Package notifications delivers the live digest to a WeChat push provider.
//
// ServerChan is the default channel: submit, wait for the message to settle,
// then poll the delivery status. WxPusher is a single-call alternative.
package notifications

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/lovetingyuan/bili-live/internal/config"
)

// --------------------------------------------------------------------------
// Constants
// --------------------------------------------------------------------------

const (
	settleDelay    = 3000 * time.Millisecond
	requestTimeout = 15 * time.Second

	// FailureTitle heads the report sent when a scheduled cycle fails.
	FailureTitle = "检查bili live失败"
)

// --------------------------------------------------------------------------
// Types
// --------------------------------------------------------------------------

// Notifier sends one titled markdown message.
type Notifier interface {
	Send(ctx context.Context, title, body string) error
}

// SubmitError is returned when the provider rejects the message outright.
type SubmitError struct {
	Code    int
	Message string
}

func (e *SubmitError) Error() string {
	return fmt.Sprintf("failed to send wechat %d: %s", e.Code, e.Message)
}

// ConfirmError is returned when delivery could not be confirmed.
type ConfirmError struct {
	Reason string
	Err    error
}

func (e *ConfirmError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("failed to get wechat notify status: %s: %v", e.Reason, e.Err)
	}
	return "failed to get wechat notify status: " + e.Reason
}

func (e *ConfirmError) Unwrap() error { return e.Err }

// New builds the notifier selected by cfg.NotifyChannel. Returns an error
// when the selected channel is missing credentials.
func New(cfg *config.Config, logger *slog.Logger) (Notifier, error) {
	httpClient := &http.Client{Timeout: requestTimeout}

	switch cfg.NotifyChannel {
	case config.ChannelWxPusher:
		if cfg.WxPusherAppToken == "" || cfg.WxPusherUserID == "" {
			return nil, fmt.Errorf("WX_PUSHER_APP_TOKEN and WX_PUSHER_USER_ID are required for the wxpusher channel")
		}
		return NewWxPusher(WxPusherConfig{
			AppID:    cfg.WxPusherAppID,
			AppToken: cfg.WxPusherAppToken,
			UserID:   cfg.WxPusherUserID,
		}, httpClient, logger), nil

	default:
		if cfg.FTSendKey == "" {
			return nil, fmt.Errorf("FT_SEND_KEY is required for the serverchan channel")
		}
		return NewServerChan(cfg.ServerChanBaseURL, cfg.FTSendKey, httpClient, logger), nil
	}
}
