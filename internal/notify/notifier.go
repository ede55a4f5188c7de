// Package notify delivers AlertRaised events to external channels.
package notify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"woms-rules/internal/config"
	"woms-rules/internal/model"
)

// AlertRaised is emitted after commit for every newly created alert that
// meets the configured minimum urgency.
type AlertRaised struct {
	Alert    *model.Alert
	Metric   *model.MetricRecord
	RaisedAt time.Time
}

// Notifier delivers AlertRaised events. Delivery is best-effort: callers log
// the returned error and never roll back the alert.
type Notifier interface {
	Notify(ctx context.Context, event AlertRaised) error
}

// payload is the wire representation shared by the webhook and kafka notifiers.
type payload struct {
	Event              string               `json:"event"`
	AlertID            string               `json:"alert_id"`
	SubjectID          string               `json:"subject_id"`
	MetricID           string               `json:"metric_id,omitempty"`
	Type               model.AlertType      `json:"type"`
	Urgency            model.Urgency        `json:"urgency"`
	Title              string               `json:"title"`
	Description        string               `json:"description,omitempty"`
	TriggeringValue    decimal.NullDecimal  `json:"triggering_value"`
	ReferenceThreshold decimal.NullDecimal  `json:"reference_threshold"`
	Classification     model.Classification `json:"classification,omitempty"`
	Assignee           string               `json:"assignee,omitempty"`
	CreatedAt          time.Time            `json:"created_at"`
	RaisedAt           time.Time            `json:"raised_at"`
}

func newPayload(event AlertRaised) payload {
	a := event.Alert
	p := payload{
		Event:              "alert.raised",
		AlertID:            a.ID,
		SubjectID:          a.SubjectID,
		MetricID:           a.MetricID,
		Type:               a.Type,
		Urgency:            a.Urgency,
		Title:              a.Title,
		Description:        a.Description,
		TriggeringValue:    a.TriggeringValue,
		ReferenceThreshold: a.ReferenceThreshold,
		Assignee:           a.Assignee,
		CreatedAt:          a.CreatedAt,
		RaisedAt:           event.RaisedAt,
	}
	if event.Metric != nil {
		p.Classification = event.Metric.Classification
	}
	return p
}

// MultiNotifier dispatches events to multiple notifiers.
type MultiNotifier struct {
	notifiers []Notifier
}

// NewMultiNotifier constructs a MultiNotifier, skipping nil entries.
func NewMultiNotifier(notifiers ...Notifier) *MultiNotifier {
	m := &MultiNotifier{}
	for _, n := range notifiers {
		if n != nil {
			m.notifiers = append(m.notifiers, n)
		}
	}
	return m
}

// Notify forwards the event to every notifier and joins their errors.
func (m *MultiNotifier) Notify(ctx context.Context, event AlertRaised) error {
	if m == nil {
		return nil
	}
	var errs []error
	for _, n := range m.notifiers {
		if err := n.Notify(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Len returns the number of wrapped notifiers.
func (m *MultiNotifier) Len() int {
	if m == nil {
		return 0
	}
	return len(m.notifiers)
}

// Close closes every wrapped notifier that holds resources.
func (m *MultiNotifier) Close() error {
	if m == nil {
		return nil
	}
	var errs []error
	for _, n := range m.notifiers {
		if c, ok := n.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// LogNotifier writes events to the structured log.
type LogNotifier struct {
	logger zerolog.Logger
}

// NewLogNotifier creates a LogNotifier.
func NewLogNotifier(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.With().Str("component", "log-notifier").Logger()}
}

// Notify logs the alert at warn level.
func (n *LogNotifier) Notify(_ context.Context, event AlertRaised) error {
	a := event.Alert
	n.logger.Warn().
		Str("alert_id", a.ID).
		Str("subject_id", a.SubjectID).
		Str("type", string(a.Type)).
		Str("urgency", string(a.Urgency)).
		Str("assignee", a.Assignee).
		Msg(a.Title)
	return nil
}

// New builds the notifier chain described by the configuration.
func New(cfg config.NotifyConfig, retry config.RetryConfig, logger zerolog.Logger) (*MultiNotifier, error) {
	var notifiers []Notifier
	if cfg.Log {
		notifiers = append(notifiers, NewLogNotifier(logger))
	}
	if cfg.Webhook.Enabled {
		if cfg.Webhook.Endpoint == "" {
			return nil, fmt.Errorf("webhook notifier: endpoint is required")
		}
		notifiers = append(notifiers, NewWebhookNotifier(cfg.Webhook, &retry, logger))
	}
	if cfg.Kafka.Enabled {
		k, err := NewKafkaNotifier(cfg.Kafka, logger)
		if err != nil {
			return nil, err
		}
		notifiers = append(notifiers, k)
	}
	return NewMultiNotifier(notifiers...), nil
}
