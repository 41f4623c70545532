// Package providers holds the outbound delivery channels. Each provider
// addresses a recipient by one destination kind and reports
// dispatch.ErrNoDestination when the recipient never registered it.
package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"task-timeout-service/internal/config"
	"task-timeout-service/internal/dispatch"
	"task-timeout-service/internal/logging"
	"task-timeout-service/internal/models"
	"task-timeout-service/internal/utils"
)

// PushSender delivers messages to a recipient's device token over an
// FCM-style HTTP endpoint.
type PushSender struct {
	endpoint  string
	serverKey string
	client    *http.Client
	limiter   *rate.Limiter
	logger    *logging.Logger
}

// NewPushSender returns an error when the transport is unconfigured; the
// caller degrades dispatching to a logged no-op in that case.
func NewPushSender(cfg config.Config, logger *logging.Logger) (*PushSender, error) {
	if cfg.Push.ServerKey == "" {
		return nil, fmt.Errorf("push transport not configured: PUSH_SERVER_KEY is empty")
	}
	return &PushSender{
		endpoint:  cfg.Push.Endpoint,
		serverKey: cfg.Push.ServerKey,
		client:    &http.Client{Timeout: 15 * time.Second},
		limiter:   rate.NewLimiter(rate.Limit(float64(cfg.Push.RateLimit)), cfg.Push.RateLimit),
		logger:    logger,
	}, nil
}

func (p *PushSender) Name() string { return "push" }

type pushPayload struct {
	To           string            `json:"to"`
	Notification pushNotification  `json:"notification"`
	Data         map[string]string `json:"data"`
}

type pushNotification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

func (p *PushSender) Send(ctx context.Context, rec models.Recipient, msg dispatch.Message) error {
	if rec.DeviceToken == "" {
		return dispatch.ErrNoDestination
	}

	if err := p.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("push rate limit wait failed: %w", err)
	}

	body, err := json.Marshal(pushPayload{
		To:           rec.DeviceToken,
		Notification: pushNotification{Title: msg.Title, Body: msg.Body},
		Data:         msg.Data,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal push payload: %w", err)
	}

	return utils.Retry(p.logger, 3, time.Second, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("failed to create push request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "key="+p.serverKey)

		resp, err := p.client.Do(req)
		if err != nil {
			return fmt.Errorf("failed to send push to user %d: %w", rec.UserID, err)
		}
		defer resp.Body.Close()
		_, _ = io.Copy(io.Discard, resp.Body)

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return fmt.Errorf("push endpoint returned %d for user %d", resp.StatusCode, rec.UserID)
		}
		return nil
	})
}
