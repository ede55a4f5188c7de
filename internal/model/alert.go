// Package model provides data models for the WOMS rules engine.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// AlertType identifies the condition that raised an alert.
type AlertType string

const (
	AlertTypeSeuilDepasse        AlertType = "SEUIL_DEPASSE"
	AlertTypeAnomalieDetectee    AlertType = "ANOMALIE_DETECTEE"
	AlertTypePerformanceDegradee AlertType = "PERFORMANCE_DEGRADEE"
	AlertTypePredictionCritique  AlertType = "PREDICTION_CRITIQUE"
	AlertTypeEcartImportant      AlertType = "ECART_IMPORTANT"
)

var alertTypeLabels = map[AlertType]string{
	AlertTypeSeuilDepasse:        "Seuil dépassé",
	AlertTypeAnomalieDetectee:    "Anomalie détectée",
	AlertTypePerformanceDegradee: "Performance dégradée",
	AlertTypePredictionCritique:  "Prédiction critique",
	AlertTypeEcartImportant:      "Écart important",
}

// Label returns the display label of the alert type.
func (t AlertType) Label() string {
	if label, ok := alertTypeLabels[t]; ok {
		return label
	}
	return string(t)
}

// Urgency is the urgency level of an alert.
type Urgency string

const (
	UrgencyInfo      Urgency = "INFO"
	UrgencyAttention Urgency = "ATTENTION"
	UrgencyUrgent    Urgency = "URGENT"
	UrgencyCritique  Urgency = "CRITIQUE"
)

var urgencyLabels = map[Urgency]string{
	UrgencyInfo:      "Information",
	UrgencyAttention: "Attention",
	UrgencyUrgent:    "Urgent",
	UrgencyCritique:  "Critique",
}

// Label returns the display label of the urgency.
func (u Urgency) Label() string {
	if label, ok := urgencyLabels[u]; ok {
		return label
	}
	return string(u)
}

// Priority orders urgencies, higher is more urgent.
func (u Urgency) Priority() int {
	switch u {
	case UrgencyCritique:
		return 3
	case UrgencyUrgent:
		return 2
	case UrgencyAttention:
		return 1
	default:
		return 0
	}
}

// IsUrgentOrCritical reports whether the urgency warrants notification and auto-assignment.
func (u Urgency) IsUrgentOrCritical() bool {
	return u == UrgencyUrgent || u == UrgencyCritique
}

// AlertStatus is the lifecycle state of an alert.
type AlertStatus string

const (
	AlertStatusNew          AlertStatus = "NEW"
	AlertStatusAcknowledged AlertStatus = "ACKNOWLEDGED"
	AlertStatusInProgress   AlertStatus = "IN_PROGRESS"
	AlertStatusResolved     AlertStatus = "RESOLVED"

	// AlertStatusClosed exists in stored data definitions but no transition reaches it.
	AlertStatusClosed AlertStatus = "CLOSED"
)

var alertStatusLabels = map[AlertStatus]string{
	AlertStatusNew:          "Nouvelle",
	AlertStatusAcknowledged: "Accusée de réception",
	AlertStatusInProgress:   "En cours de traitement",
	AlertStatusResolved:     "Résolue",
	AlertStatusClosed:       "Fermée",
}

// Label returns the display label of the status.
func (s AlertStatus) Label() string {
	if label, ok := alertStatusLabels[s]; ok {
		return label
	}
	return string(s)
}

// IsOpen reports whether the status counts as open for deduplication.
func (s AlertStatus) IsOpen() bool {
	switch s {
	case AlertStatusNew, AlertStatusAcknowledged, AlertStatusInProgress:
		return true
	default:
		return false
	}
}

// OpenStatuses lists the statuses that count as open.
var OpenStatuses = []AlertStatus{AlertStatusNew, AlertStatusAcknowledged, AlertStatusInProgress}

// Alert is a notable condition on a subject that requires human attention.
type Alert struct {
	ID                 string              `json:"id"`
	SubjectID          string              `json:"subject_id"`
	MetricID           string              `json:"metric_id,omitempty"`
	Type               AlertType           `json:"type"`
	Urgency            Urgency             `json:"urgency"`
	Title              string              `json:"title"`
	Description        string              `json:"description"`
	TriggeringValue    decimal.NullDecimal `json:"triggering_value"`
	ReferenceThreshold decimal.NullDecimal `json:"reference_threshold"`
	Source             string              `json:"source,omitempty"`
	Status             AlertStatus         `json:"status"`
	Active             bool                `json:"active"`

	CreatedAt      time.Time  `json:"created_at"`
	AcknowledgedBy string     `json:"acknowledged_by,omitempty"`
	AcknowledgedAt *time.Time `json:"acknowledged_at,omitempty"`
	Assignee       string     `json:"assignee,omitempty"`
	StartedAt      *time.Time `json:"started_at,omitempty"`
	ResolvedBy     string     `json:"resolved_by,omitempty"`
	ResolvedAt     *time.Time `json:"resolved_at,omitempty"`
	ActionsTaken   string     `json:"actions_taken,omitempty"`
}

// IsOpen reports whether the alert is still open.
func (a *Alert) IsOpen() bool {
	return a.Status.IsOpen()
}

// OpenDuration returns how long the alert has been (or was) open.
func (a *Alert) OpenDuration(now time.Time) time.Duration {
	end := now
	if a.ResolvedAt != nil {
		end = *a.ResolvedAt
	}
	if end.Before(a.CreatedAt) {
		return 0
	}
	return end.Sub(a.CreatedAt)
}

// AlertFilter narrows alert queries. Zero values mean "any".
type AlertFilter struct {
	SubjectID     string
	Type          AlertType
	Urgency       Urgency
	Status        AlertStatus
	TitleContains string
	OpenOnly      bool
	Limit         int
}

// Matches reports whether a satisfies the filter (Limit is ignored).
func (f AlertFilter) Matches(a *Alert) bool {
	if a == nil {
		return false
	}
	if f.SubjectID != "" && a.SubjectID != f.SubjectID {
		return false
	}
	if f.Type != "" && a.Type != f.Type {
		return false
	}
	if f.Urgency != "" && a.Urgency != f.Urgency {
		return false
	}
	if f.Status != "" && a.Status != f.Status {
		return false
	}
	if f.OpenOnly && !a.IsOpen() {
		return false
	}
	if f.TitleContains != "" && !containsFold(a.Title, f.TitleContains) {
		return false
	}
	return true
}

// AlertSummary provides aggregated alert statistics.
type AlertSummary struct {
	TotalAlerts          int                 `json:"total_alerts"`
	OpenAlerts           int                 `json:"open_alerts"`
	CriticalOrUrgent     int                 `json:"critical_or_urgent"`
	Unacknowledged       int                 `json:"unacknowledged"`
	ByType               map[AlertType]int   `json:"by_type"`
	ByUrgency            map[Urgency]int     `json:"by_urgency"`
	ByStatus             map[AlertStatus]int `json:"by_status"`
	MeanResolutionTime   time.Duration       `json:"mean_resolution_time"`
	ResolvedAlertsSample int                 `json:"resolved_alerts_sample"`
}

// NewAlertSummary creates a new AlertSummary from a list of alerts.
func NewAlertSummary(alerts []*Alert) *AlertSummary {
	summary := &AlertSummary{
		ByType:    make(map[AlertType]int),
		ByUrgency: make(map[Urgency]int),
		ByStatus:  make(map[AlertStatus]int),
	}
	var resolvedTotal time.Duration
	for _, alert := range alerts {
		if alert == nil {
			continue
		}
		summary.TotalAlerts++
		summary.ByType[alert.Type]++
		summary.ByUrgency[alert.Urgency]++
		summary.ByStatus[alert.Status]++
		if alert.IsOpen() {
			summary.OpenAlerts++
		}
		if alert.Urgency.IsUrgentOrCritical() {
			summary.CriticalOrUrgent++
		}
		if alert.AcknowledgedAt == nil && alert.Status == AlertStatusNew {
			summary.Unacknowledged++
		}
		if alert.ResolvedAt != nil {
			resolvedTotal += alert.OpenDuration(*alert.ResolvedAt)
			summary.ResolvedAlertsSample++
		}
	}
	if summary.ResolvedAlertsSample > 0 {
		summary.MeanResolutionTime = resolvedTotal / time.Duration(summary.ResolvedAlertsSample)
	}
	return summary
}
