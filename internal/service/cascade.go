package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"woms-rules/internal/config"
	"woms-rules/internal/model"
	"woms-rules/internal/store"
)

// Outcome is the result of one cascade evaluation.
type Outcome string

const (
	OutcomeNone       Outcome = "none"       // record not in the critical tier
	OutcomeCreated    Outcome = "created"    // a new alert was raised
	OutcomeSuppressed Outcome = "suppressed" // an open alert already covers the condition
)

// CascadeRule maps a critical record of one kind to the alert it raises.
type CascadeRule struct {
	Trigger     model.Classification
	AlertType   model.AlertType
	Urgency     model.Urgency
	Title       func(r *model.MetricRecord) string
	Description func(r *model.MetricRecord) string
	Source      func(r *model.MetricRecord) string
	// Reference returns the value the triggering actual is compared against.
	Reference func(r *model.MetricRecord) decimal.NullDecimal
}

// CascadeRules holds one rule per metric kind. Built once at startup.
type CascadeRules struct {
	Variance   CascadeRule
	Attainment CascadeRule
}

// DefaultCascadeRules returns the standard mapping: critical variances raise
// an URGENT ECART_IMPORTANT alert, critical KPIs a CRITIQUE PERFORMANCE_DEGRADEE alert.
func DefaultCascadeRules() CascadeRules {
	return CascadeRules{
		Variance: CascadeRule{
			Trigger:   model.ClassificationCritique,
			AlertType: model.AlertTypeEcartImportant,
			Urgency:   model.UrgencyUrgent,
			Title: func(r *model.MetricRecord) string {
				return "Écart critique détecté - " + indicatorLabel(r)
			},
			Description: func(r *model.MetricRecord) string {
				return fmt.Sprintf("Un écart de %s%% a été détecté sur %s pour %s.",
					formatDecimal(r.PercentageDelta), indicatorLabel(r), subjectLabel(r))
			},
			Source: func(r *model.MetricRecord) string {
				return "Analyse d'écart - " + subjectLabel(r)
			},
			Reference: func(r *model.MetricRecord) decimal.NullDecimal { return r.PlannedValue },
		},
		Attainment: CascadeRule{
			Trigger:   model.ClassificationCritique,
			AlertType: model.AlertTypePerformanceDegradee,
			Urgency:   model.UrgencyCritique,
			Title: func(r *model.MetricRecord) string {
				return "Performance critique - " + r.DisplayName()
			},
			Description: func(r *model.MetricRecord) string {
				return fmt.Sprintf("Le KPI %s a atteint un niveau critique avec %s%% d'atteinte de l'objectif.",
					r.DisplayName(), formatDecimal(r.PercentageAttained))
			},
			Source: func(r *model.MetricRecord) string {
				if r.Category == "" {
					return "Tableau de bord KPI"
				}
				return "Tableau de bord KPI - " + r.Category
			},
			Reference: func(r *model.MetricRecord) decimal.NullDecimal { return r.TargetValue },
		},
	}
}

func (rules CascadeRules) ruleFor(r *model.MetricRecord) (CascadeRule, bool) {
	var rule CascadeRule
	switch r.Kind {
	case model.MetricKindVariance:
		rule = rules.Variance
	case model.MetricKindAttainment:
		rule = rules.Attainment
	default:
		return CascadeRule{}, false
	}
	if rule.Title == nil || r.Classification != rule.Trigger {
		return CascadeRule{}, false
	}
	return rule, true
}

// CascadeResult reports what one evaluation did. Alert is the created alert,
// or the existing open alert when the outcome is OutcomeSuppressed.
type CascadeResult struct {
	Outcome Outcome
	Alert   *model.Alert
}

// AlertCascade raises alerts for records that reach the critical tier.
// It never updates or resolves existing alerts.
type AlertCascade struct {
	rules      CascadeRules
	registry   *AlertRegistry
	enabled    bool
	autoAssign bool
	logger     zerolog.Logger
}

// NewAlertCascade creates a cascade writing through registry.
func NewAlertCascade(rules CascadeRules, registry *AlertRegistry, cfg config.CascadeConfig, logger zerolog.Logger) *AlertCascade {
	return &AlertCascade{
		rules:      rules,
		registry:   registry,
		enabled:    cfg.Enabled,
		autoAssign: cfg.AutoAssign,
		logger:     logger.With().Str("component", "alert-cascade").Logger(),
	}
}

// Evaluate runs the cascade for a freshly derived record inside tx.
func (c *AlertCascade) Evaluate(ctx context.Context, tx store.Repository, record *model.MetricRecord) (*CascadeResult, error) {
	if !c.enabled {
		return &CascadeResult{Outcome: OutcomeNone}, nil
	}
	rule, ok := c.rules.ruleFor(record)
	if !ok {
		return &CascadeResult{Outcome: OutcomeNone}, nil
	}

	registry := c.registry.WithRepository(tx)
	title := rule.Title(record)

	existing, err := registry.findOpenByTitle(ctx, record.SubjectID, rule.AlertType, title)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		c.logSuppressed(record, existing)
		return &CascadeResult{Outcome: OutcomeSuppressed, Alert: existing}, nil
	}

	alert := &model.Alert{
		SubjectID:          record.SubjectID,
		MetricID:           record.ID,
		Type:               rule.AlertType,
		Urgency:            rule.Urgency,
		Title:              title,
		TriggeringValue:    record.ActualValue,
		ReferenceThreshold: rule.Reference(record),
	}
	if rule.Description != nil {
		alert.Description = rule.Description(record)
	}
	if rule.Source != nil {
		alert.Source = rule.Source(record)
	}
	if c.autoAssign && alert.Urgency.IsUrgentOrCritical() && alert.Assignee == "" {
		c.assign(ctx, tx, alert, record)
	}

	created, err := registry.Create(ctx, alert)
	if errors.Is(err, model.ErrDuplicateOpenAlert) {
		// A concurrent writer raised the same alert first.
		existing, findErr := registry.findOpenByTitle(ctx, record.SubjectID, rule.AlertType, title)
		if findErr != nil {
			return nil, findErr
		}
		if existing == nil {
			// The winner was resolved between the insert and the re-read.
			return nil, fmt.Errorf("raise alert for %s: %w", record.ID, err)
		}
		c.logSuppressed(record, existing)
		return &CascadeResult{Outcome: OutcomeSuppressed, Alert: existing}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("raise alert for %s: %w", record.ID, err)
	}
	return &CascadeResult{Outcome: OutcomeCreated, Alert: created}, nil
}

// assign picks the analyst of the most recent other record on the subject.
// Failures are logged and never block alert creation.
func (c *AlertCascade) assign(ctx context.Context, tx store.Repository, alert *model.Alert, record *model.MetricRecord) {
	analyst, err := tx.LatestAnalyst(ctx, record.SubjectID, record.ID)
	if err != nil {
		c.logger.Warn().Err(err).Str("subject_id", record.SubjectID).Msg("auto-assignment lookup failed")
		return
	}
	if analyst == "" {
		c.logger.Debug().Str("subject_id", record.SubjectID).Msg("no analyst to auto-assign")
		return
	}
	alert.Assignee = analyst
}

func (c *AlertCascade) logSuppressed(record *model.MetricRecord, existing *model.Alert) {
	event := c.logger.Info().
		Str("metric_id", record.ID).
		Str("subject_id", record.SubjectID)
	if existing != nil {
		event = event.Str("alert_id", existing.ID).Str("status", string(existing.Status))
	}
	event.Msg("duplicate alert suppressed")
}

func indicatorLabel(r *model.MetricRecord) string {
	if r.Category != "" {
		return r.Category
	}
	return r.DisplayName()
}

func subjectLabel(r *model.MetricRecord) string {
	if r.SubjectName != "" {
		return r.SubjectName
	}
	return r.SubjectID
}

func formatDecimal(d decimal.NullDecimal) string {
	if !d.Valid {
		return "N/A"
	}
	return d.Decimal.String()
}
