package service

import (
	"time"

	"woms-rules/internal/metrics"
	"woms-rules/internal/model"
	"woms-rules/internal/notify"
)

// Clock provides time for lifecycle stamps.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

type options struct {
	clock      Clock
	metrics    *metrics.Metrics
	notifier   notify.Notifier
	minUrgency model.Urgency
}

func defaultOptions() options {
	return options{
		clock:      systemClock{},
		minUrgency: model.UrgencyUrgent,
	}
}

func applyOptions(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Option configures registry, cascade and processor.
type Option func(*options)

// WithClock overrides the default clock.
func WithClock(clock Clock) Option {
	return func(o *options) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// WithMetrics records counters on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// WithNotifier sends AlertRaised for new alerts at or above minUrgency.
func WithNotifier(n notify.Notifier, minUrgency model.Urgency) Option {
	return func(o *options) {
		o.notifier = n
		if minUrgency != "" {
			o.minUrgency = minUrgency
		}
	}
}
