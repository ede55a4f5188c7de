package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"woms-rules/internal/metrics"
	"woms-rules/internal/model"
	"woms-rules/internal/notify"
	"woms-rules/internal/store"
)

// SubmitResult is the outcome of one submission.
type SubmitResult struct {
	Record  *model.MetricRecord
	Outcome Outcome
	Alert   *model.Alert
}

// Processor is the metric write path: validate, derive, save and cascade in
// one unit of work, then emit counters and notifications after commit.
type Processor struct {
	store      store.Store
	engine     *DerivationEngine
	cascade    *AlertCascade
	clock      Clock
	metrics    *metrics.Metrics
	notifier   notify.Notifier
	minUrgency model.Urgency
	logger     zerolog.Logger
}

// NewProcessor creates a Processor.
func NewProcessor(st store.Store, engine *DerivationEngine, cascade *AlertCascade, logger zerolog.Logger, opts ...Option) *Processor {
	o := applyOptions(opts)
	return &Processor{
		store:      st,
		engine:     engine,
		cascade:    cascade,
		clock:      o.clock,
		metrics:    o.metrics,
		notifier:   o.notifier,
		minUrgency: o.minUrgency,
		logger:     logger.With().Str("component", "processor").Logger(),
	}
}

// SubmitMetric records a new measurement.
// Invalid input is rejected with an error matching model.ErrInvalidMetricInput
// and nothing is persisted.
func (p *Processor) SubmitMetric(ctx context.Context, sub *model.MetricSubmission) (*SubmitResult, error) {
	start := time.Now()
	record, err := ParseSubmission(sub)
	if err != nil {
		p.observe(sub, err, start)
		return nil, err
	}
	now := p.clock.Now()
	record.ID = uuid.NewString()
	record.MeasuredAt = now
	record.UpdatedAt = now

	result, err := p.save(ctx, record)
	p.observe(sub, err, start)
	if err != nil {
		return nil, err
	}
	p.afterCommit(ctx, result)
	return result, nil
}

// UpdateMetric replaces the raw values of an existing record and re-runs
// derivation and the cascade. ID and MeasuredAt are kept.
func (p *Processor) UpdateMetric(ctx context.Context, id string, sub *model.MetricSubmission) (*SubmitResult, error) {
	start := time.Now()
	record, err := ParseSubmission(sub)
	if err != nil {
		p.observe(sub, err, start)
		return nil, err
	}

	var result *SubmitResult
	err = p.store.WithTx(ctx, func(tx store.Repository) error {
		existing, err := tx.GetMetric(ctx, id)
		if err != nil {
			return err
		}
		record.ID = existing.ID
		record.MeasuredAt = existing.MeasuredAt
		record.UpdatedAt = p.clock.Now()

		result, err = p.evaluate(ctx, tx, record)
		return err
	})
	p.observe(sub, err, start)
	if err != nil {
		return nil, err
	}
	p.afterCommit(ctx, result)
	return result, nil
}

func (p *Processor) save(ctx context.Context, record *model.MetricRecord) (*SubmitResult, error) {
	var result *SubmitResult
	err := p.store.WithTx(ctx, func(tx store.Repository) error {
		var err error
		result, err = p.evaluate(ctx, tx, record)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// evaluate derives, saves and cascades record inside tx. Derivation happens
// before the save so the cascade never sees stale derived fields.
func (p *Processor) evaluate(ctx context.Context, tx store.Repository, record *model.MetricRecord) (*SubmitResult, error) {
	p.engine.Derive(record)
	if err := tx.SaveMetric(ctx, record); err != nil {
		return nil, fmt.Errorf("save metric %s: %w", record.ID, err)
	}
	cascade, err := p.cascade.Evaluate(ctx, tx, record)
	if err != nil {
		return nil, err
	}
	return &SubmitResult{Record: record, Outcome: cascade.Outcome, Alert: cascade.Alert}, nil
}

func (p *Processor) afterCommit(ctx context.Context, result *SubmitResult) {
	record := result.Record
	p.metrics.ObserveClassification(string(record.Kind), string(record.Classification))
	p.metrics.ObserveCascade(string(result.Outcome))

	p.logger.Info().
		Str("metric_id", record.ID).
		Str("subject_id", record.SubjectID).
		Str("kind", string(record.Kind)).
		Str("classification", string(record.Classification)).
		Str("outcome", string(result.Outcome)).
		Msg("metric recorded")

	if result.Outcome != OutcomeCreated || p.notifier == nil {
		return
	}
	if result.Alert.Urgency.Priority() < p.minUrgency.Priority() {
		return
	}
	err := p.notifier.Notify(ctx, notify.AlertRaised{
		Alert:    result.Alert,
		Metric:   record,
		RaisedAt: p.clock.Now(),
	})
	p.metrics.ObserveNotification(err)
	if err != nil {
		p.logger.Warn().Err(err).Str("alert_id", result.Alert.ID).Msg("alert notification failed")
	}
}

func (p *Processor) observe(sub *model.MetricSubmission, err error, start time.Time) {
	kind := "unknown"
	if sub != nil && sub.Kind.IsValid() {
		kind = string(sub.Kind)
	}
	result := "ok"
	switch {
	case errors.Is(err, model.ErrInvalidMetricInput):
		result = "invalid"
	case err != nil:
		result = "error"
	}
	p.metrics.ObserveSubmission(kind, result, time.Since(start))
}
