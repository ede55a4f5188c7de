// Package model provides data models for the WOMS rules engine.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// SubjectSummary is the performance overview of one subject (well, phase, operation).
type SubjectSummary struct {
	SubjectID        string                 `json:"subject_id"`
	SubjectName      string                 `json:"subject_name,omitempty"`
	TotalRecords     int                    `json:"total_records"`
	ByClassification map[Classification]int `json:"by_classification"`
	ExcellentKPIs    int                    `json:"excellent_kpis"`
	CriticalKPIs     int                    `json:"critical_kpis"`
	CriticalVariance int                    `json:"critical_variances"`
	OpenAlerts       int                    `json:"open_alerts"`
	MeanAttainment   decimal.NullDecimal    `json:"mean_attainment"`
	LastMeasuredAt   time.Time              `json:"last_measured_at"`
}

// NewSubjectSummary aggregates a subject's records and alerts.
func NewSubjectSummary(subjectID string, records []*MetricRecord, alerts []*Alert) *SubjectSummary {
	summary := &SubjectSummary{
		SubjectID:        subjectID,
		ByClassification: make(map[Classification]int),
	}
	sum := decimal.Zero
	attained := 0
	for _, r := range records {
		if r == nil || r.SubjectID != subjectID {
			continue
		}
		summary.TotalRecords++
		summary.ByClassification[r.Classification]++
		if summary.SubjectName == "" {
			summary.SubjectName = r.SubjectName
		}
		if r.MeasuredAt.After(summary.LastMeasuredAt) {
			summary.LastMeasuredAt = r.MeasuredAt
		}
		switch r.Kind {
		case MetricKindAttainment:
			if r.Classification == ClassificationExcellent {
				summary.ExcellentKPIs++
			}
			if r.IsCritical() {
				summary.CriticalKPIs++
			}
			if r.PercentageAttained.Valid {
				sum = sum.Add(r.PercentageAttained.Decimal)
				attained++
			}
		case MetricKindVariance:
			if r.IsCritical() {
				summary.CriticalVariance++
			}
		}
	}
	if attained > 0 {
		summary.MeanAttainment = decimal.NewNullDecimal(sum.Div(decimal.NewFromInt(int64(attained))).Round(2))
	}
	for _, a := range alerts {
		if a != nil && a.SubjectID == subjectID && a.IsOpen() {
			summary.OpenAlerts++
		}
	}
	return summary
}

// Report is the dataset rendered by report writers.
type Report struct {
	GeneratedAt     time.Time             `json:"generated_at"`
	Records         []*MetricRecord       `json:"records"`
	Alerts          []*Alert              `json:"alerts"`
	AlertSummary    *AlertSummary         `json:"alert_summary"`
	Classifications []ClassificationCount `json:"classifications"`
	Subjects        []*SubjectSummary     `json:"subjects"`
	Version         string                `json:"version,omitempty"`
}

// NewReport builds a report from records and alerts, computing all summaries.
func NewReport(generatedAt time.Time, records []*MetricRecord, alerts []*Alert) *Report {
	r := &Report{
		GeneratedAt: generatedAt,
		Records:     records,
		Alerts:      alerts,
	}
	r.AlertSummary = NewAlertSummary(alerts)
	r.Classifications = CountClassifications(records)

	seen := make(map[string]bool)
	for _, rec := range records {
		if rec == nil || seen[rec.SubjectID] {
			continue
		}
		seen[rec.SubjectID] = true
		r.Subjects = append(r.Subjects, NewSubjectSummary(rec.SubjectID, records, alerts))
	}
	return r
}

// CountClassifications counts records per kind and bucket, in scale order.
func CountClassifications(records []*MetricRecord) []ClassificationCount {
	counts := make(map[MetricKind]map[Classification]int)
	for _, r := range records {
		if r == nil {
			continue
		}
		if counts[r.Kind] == nil {
			counts[r.Kind] = make(map[Classification]int)
		}
		counts[r.Kind][r.Classification]++
	}

	var result []ClassificationCount
	for _, kind := range []MetricKind{MetricKindVariance, MetricKindAttainment} {
		byBucket := counts[kind]
		if byBucket == nil {
			continue
		}
		for _, c := range ScaleFor(kind) {
			if n := byBucket[c]; n > 0 {
				result = append(result, ClassificationCount{Kind: kind, Classification: c, Count: n})
			}
		}
		if n := byBucket[ClassificationInconnu]; n > 0 {
			result = append(result, ClassificationCount{Kind: kind, Classification: ClassificationInconnu, Count: n})
		}
	}
	return result
}
