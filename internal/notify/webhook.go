package notify

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"woms-rules/internal/config"
)

// WebhookNotifier posts AlertRaised events as JSON to an HTTP endpoint.
type WebhookNotifier struct {
	endpoint   string
	httpClient *resty.Client
	logger     zerolog.Logger
}

// NewWebhookNotifier creates a webhook notifier with the shared retry policy.
func NewWebhookNotifier(cfg config.WebhookConfig, retryCfg *config.RetryConfig, logger zerolog.Logger) *WebhookNotifier {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	retry := config.RetryConfig{
		MaxRetries: 3,
		BaseDelay:  1 * time.Second,
	}
	if retryCfg != nil {
		retry = *retryCfg
	}

	httpClient := resty.New().
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetRetryCount(retry.MaxRetries).
		SetRetryWaitTime(retry.BaseDelay).
		SetRetryMaxWaitTime(retry.BaseDelay * 8).
		AddRetryCondition(retryCondition)
	if cfg.Token != "" {
		httpClient.SetAuthToken(cfg.Token)
	}

	return &WebhookNotifier{
		endpoint:   cfg.Endpoint,
		httpClient: httpClient,
		logger:     logger.With().Str("component", "webhook-notifier").Logger(),
	}
}

// retryCondition retries on transport errors and 5xx responses only.
func retryCondition(resp *resty.Response, err error) bool {
	if err != nil {
		return true
	}
	return resp != nil && resp.StatusCode() >= http.StatusInternalServerError
}

// Notify posts the event payload.
func (n *WebhookNotifier) Notify(ctx context.Context, event AlertRaised) error {
	if event.Alert == nil {
		return nil
	}

	resp, err := n.httpClient.R().
		SetContext(ctx).
		SetBody(newPayload(event)).
		Post(n.endpoint)
	if err != nil {
		return fmt.Errorf("webhook notify %s: %w", event.Alert.ID, err)
	}
	if resp.IsError() {
		return fmt.Errorf("webhook notify %s: unexpected status %d", event.Alert.ID, resp.StatusCode())
	}

	n.logger.Debug().
		Str("alert_id", event.Alert.ID).
		Int("status", resp.StatusCode()).
		Msg("webhook delivered")
	return nil
}
