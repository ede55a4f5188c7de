package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"woms-rules/internal/metrics"
	"woms-rules/internal/model"
	"woms-rules/internal/store"
)

// transition describes one lifecycle call: the statuses it is legal from, the
// status it leads to and the fields it stamps.
type transition struct {
	action string
	from   []model.AlertStatus
	to     model.AlertStatus
	stamp  func(a *model.Alert, actor, note string, now time.Time)
}

var (
	acknowledgeTransition = transition{
		action: "acknowledge",
		from:   []model.AlertStatus{model.AlertStatusNew},
		to:     model.AlertStatusAcknowledged,
		stamp: func(a *model.Alert, actor, _ string, now time.Time) {
			a.AcknowledgedBy = actor
			a.AcknowledgedAt = &now
		},
	}
	startTransition = transition{
		action: "start",
		from:   []model.AlertStatus{model.AlertStatusNew, model.AlertStatusAcknowledged},
		to:     model.AlertStatusInProgress,
		stamp: func(a *model.Alert, actor, _ string, now time.Time) {
			if actor != "" {
				a.Assignee = actor
			}
			a.StartedAt = &now
		},
	}
	resolveTransition = transition{
		action: "resolve",
		from:   model.OpenStatuses,
		to:     model.AlertStatusResolved,
		stamp: func(a *model.Alert, actor, note string, now time.Time) {
			a.ResolvedBy = actor
			a.ResolvedAt = &now
			a.ActionsTaken = note
			a.Active = false
		},
	}
)

// AlertRegistry owns alert creation, deduplication lookups and the lifecycle
// state machine NEW -> ACKNOWLEDGED -> IN_PROGRESS -> RESOLVED.
type AlertRegistry struct {
	repo    store.Repository
	clock   Clock
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

// NewAlertRegistry creates a registry on top of repo.
func NewAlertRegistry(repo store.Repository, logger zerolog.Logger, opts ...Option) *AlertRegistry {
	o := applyOptions(opts)
	return &AlertRegistry{
		repo:    repo,
		clock:   o.clock,
		metrics: o.metrics,
		logger:  logger.With().Str("component", "alert-registry").Logger(),
	}
}

// WithRepository returns a copy of the registry bound to repo, typically a transaction.
func (r *AlertRegistry) WithRepository(repo store.Repository) *AlertRegistry {
	c := *r
	c.repo = repo
	return &c
}

// FindOpenAlert returns the most recent open alert on subject of the given type
// whose title contains titleFragment (case-insensitive), or nil if none exists.
func (r *AlertRegistry) FindOpenAlert(ctx context.Context, subjectID string, alertType model.AlertType, titleFragment string) (*model.Alert, error) {
	alerts, err := r.repo.ListAlerts(ctx, model.AlertFilter{
		SubjectID:     subjectID,
		Type:          alertType,
		TitleContains: titleFragment,
		OpenOnly:      true,
		Limit:         1,
	})
	if err != nil {
		return nil, fmt.Errorf("find open alert: %w", err)
	}
	if len(alerts) == 0 {
		return nil, nil
	}
	return alerts[0], nil
}

// findOpenByTitle is the dedup lookup: same subject, type and exact title.
func (r *AlertRegistry) findOpenByTitle(ctx context.Context, subjectID string, alertType model.AlertType, title string) (*model.Alert, error) {
	alerts, err := r.repo.ListAlerts(ctx, model.AlertFilter{
		SubjectID:     subjectID,
		Type:          alertType,
		TitleContains: title,
		OpenOnly:      true,
	})
	if err != nil {
		return nil, fmt.Errorf("find open alert: %w", err)
	}
	for _, a := range alerts {
		if a.Title == title {
			return a, nil
		}
	}
	return nil, nil
}

// Create inserts alert as a NEW, active alert stamped with the current time.
// It returns model.ErrDuplicateOpenAlert when an open alert already holds the
// same (subject, type, title).
func (r *AlertRegistry) Create(ctx context.Context, alert *model.Alert) (*model.Alert, error) {
	if alert == nil {
		return nil, errors.New("create alert: nil alert")
	}
	if alert.SubjectID == "" || alert.Type == "" || alert.Title == "" {
		return nil, errors.New("create alert: subject, type and title are required")
	}
	if alert.ID == "" {
		alert.ID = uuid.NewString()
	}
	if alert.Urgency == "" {
		alert.Urgency = model.UrgencyAttention
	}
	alert.Status = model.AlertStatusNew
	alert.Active = true
	alert.CreatedAt = r.clock.Now()

	if err := r.repo.InsertAlert(ctx, alert); err != nil {
		return nil, err
	}

	r.logger.Info().
		Str("alert_id", alert.ID).
		Str("subject_id", alert.SubjectID).
		Str("type", string(alert.Type)).
		Str("urgency", string(alert.Urgency)).
		Msg("alert created")
	return alert, nil
}

// Acknowledge moves a NEW alert to ACKNOWLEDGED.
func (r *AlertRegistry) Acknowledge(ctx context.Context, id, actor string) (*model.Alert, error) {
	return r.apply(ctx, id, actor, "", acknowledgeTransition)
}

// StartProcessing moves a NEW or ACKNOWLEDGED alert to IN_PROGRESS and assigns it to actor.
func (r *AlertRegistry) StartProcessing(ctx context.Context, id, actor string) (*model.Alert, error) {
	return r.apply(ctx, id, actor, "", startTransition)
}

// Resolve moves any open alert to RESOLVED and records the actions taken.
func (r *AlertRegistry) Resolve(ctx context.Context, id, actor, actionsTaken string) (*model.Alert, error) {
	return r.apply(ctx, id, actor, actionsTaken, resolveTransition)
}

func (r *AlertRegistry) apply(ctx context.Context, id, actor, note string, t transition) (*model.Alert, error) {
	alert, err := r.transition(ctx, id, actor, note, t)
	r.metrics.ObserveTransition(t.action, err)
	if err != nil {
		return nil, err
	}
	r.logger.Info().
		Str("alert_id", alert.ID).
		Str("action", t.action).
		Str("actor", actor).
		Str("status", string(alert.Status)).
		Msg("alert transitioned")
	return alert, nil
}

func (r *AlertRegistry) transition(ctx context.Context, id, actor, note string, t transition) (*model.Alert, error) {
	alert, err := r.repo.GetAlert(ctx, id)
	if err != nil {
		return nil, err
	}
	if !slices.Contains(t.from, alert.Status) {
		return nil, &model.TransitionError{AlertID: id, From: alert.Status, Action: t.action}
	}

	from := alert.Status
	t.stamp(alert, actor, note, r.clock.Now())
	alert.Status = t.to

	err = r.repo.UpdateAlert(ctx, alert, from)
	if errors.Is(err, store.ErrStatusConflict) {
		current, getErr := r.repo.GetAlert(ctx, id)
		if getErr != nil {
			return nil, getErr
		}
		return nil, &model.TransitionError{AlertID: id, From: current.Status, Action: t.action}
	}
	if err != nil {
		return nil, err
	}
	return alert, nil
}

// Get returns one alert.
func (r *AlertRegistry) Get(ctx context.Context, id string) (*model.Alert, error) {
	return r.repo.GetAlert(ctx, id)
}

// List returns alerts matching filter, most recent first.
func (r *AlertRegistry) List(ctx context.Context, filter model.AlertFilter) ([]*model.Alert, error) {
	return r.repo.ListAlerts(ctx, filter)
}

// Statistics aggregates the alerts matching filter.
func (r *AlertRegistry) Statistics(ctx context.Context, filter model.AlertFilter) (*model.AlertSummary, error) {
	filter.Limit = 0
	alerts, err := r.repo.ListAlerts(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("alert statistics: %w", err)
	}
	return model.NewAlertSummary(alerts), nil
}

// SubjectSummary returns the performance overview of one subject.
func (r *AlertRegistry) SubjectSummary(ctx context.Context, subjectID string) (*model.SubjectSummary, error) {
	records, err := r.repo.ListMetrics(ctx, model.MetricFilter{SubjectID: subjectID})
	if err != nil {
		return nil, fmt.Errorf("subject summary: %w", err)
	}
	alerts, err := r.repo.ListAlerts(ctx, model.AlertFilter{SubjectID: subjectID, OpenOnly: true})
	if err != nil {
		return nil, fmt.Errorf("subject summary: %w", err)
	}
	return model.NewSubjectSummary(subjectID, records, alerts), nil
}

// CountByClassification counts matching records per kind and bucket.
func (r *AlertRegistry) CountByClassification(ctx context.Context, filter model.MetricFilter) ([]model.ClassificationCount, error) {
	filter.Limit = 0
	records, err := r.repo.ListMetrics(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("count by classification: %w", err)
	}
	return model.CountClassifications(records), nil
}
