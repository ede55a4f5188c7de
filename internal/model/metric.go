// Package model provides data models for the WOMS rules engine.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// MetricKind selects which derivation and classification scale applies to a record.
type MetricKind string

const (
	MetricKindVariance   MetricKind = "VARIANCE"   // planned vs actual
	MetricKindAttainment MetricKind = "ATTAINMENT" // actual vs target
)

var metricKindLabels = map[MetricKind]string{
	MetricKindVariance:   "Analyse d'écart",
	MetricKindAttainment: "KPI de tableau de bord",
}

// Label returns the display label of the kind.
func (k MetricKind) Label() string {
	if label, ok := metricKindLabels[k]; ok {
		return label
	}
	return string(k)
}

// IsValid reports whether k is a known kind.
func (k MetricKind) IsValid() bool {
	_, ok := metricKindLabels[k]
	return ok
}

// Classification is a named severity or status bucket derived from a percentage.
// The variance and attainment scales share the MOYEN and CRITIQUE names.
type Classification string

const (
	// Variance scale
	ClassificationFaible Classification = "FAIBLE"
	ClassificationMoyen  Classification = "MOYEN"
	ClassificationEleve  Classification = "ELEVE"

	// Attainment scale
	ClassificationExcellent    Classification = "EXCELLENT"
	ClassificationBon          Classification = "BON"
	ClassificationSatisfaisant Classification = "SATISFAISANT"
	ClassificationInsuffisant  Classification = "INSUFFISANT"

	// Shared by both scales
	ClassificationCritique Classification = "CRITIQUE"

	// ClassificationInconnu is only produced when the unknown bucket is enabled
	// and the percentage could not be computed.
	ClassificationInconnu Classification = "INCONNU"
)

var classificationLabels = map[Classification]string{
	ClassificationFaible:       "Faible",
	ClassificationMoyen:        "Moyen",
	ClassificationEleve:        "Élevé",
	ClassificationExcellent:    "Excellent",
	ClassificationBon:          "Bon",
	ClassificationSatisfaisant: "Satisfaisant",
	ClassificationInsuffisant:  "Insuffisant",
	ClassificationCritique:     "Critique",
	ClassificationInconnu:      "Inconnu",
}

// Label returns the display label of the bucket.
func (c Classification) Label() string {
	if label, ok := classificationLabels[c]; ok {
		return label
	}
	return string(c)
}

// VarianceScale lists the variance buckets from least to most severe.
var VarianceScale = []Classification{
	ClassificationFaible,
	ClassificationMoyen,
	ClassificationEleve,
	ClassificationCritique,
}

// AttainmentScale lists the attainment buckets from best to worst.
var AttainmentScale = []Classification{
	ClassificationExcellent,
	ClassificationBon,
	ClassificationSatisfaisant,
	ClassificationMoyen,
	ClassificationInsuffisant,
	ClassificationCritique,
}

// ScaleFor returns the ordered bucket list of a kind, nil for unknown kinds.
func ScaleFor(kind MetricKind) []Classification {
	switch kind {
	case MetricKindVariance:
		return VarianceScale
	case MetricKindAttainment:
		return AttainmentScale
	default:
		return nil
	}
}

// MetricRecord is one measured indicator attached to a subject (well, phase or operation).
// Derived fields are owned by the derivation engine and must never be set by callers.
type MetricRecord struct {
	ID          string     `json:"id"`
	SubjectID   string     `json:"subject_id"` // well, phase or operation
	SubjectName string     `json:"subject_name,omitempty"`
	Kind        MetricKind `json:"kind"`
	Name        string     `json:"name"`               // KPI or indicator name
	Category    string     `json:"category,omitempty"` // TEMPS, COUT, PRODUCTION...
	Unit        string     `json:"unit,omitempty"`
	Period      string     `json:"period,omitempty"`
	Analyst     string     `json:"analyst,omitempty"`
	Comment     string     `json:"comment,omitempty"`

	// Raw values
	PlannedValue  decimal.NullDecimal `json:"planned_value"`
	ActualValue   decimal.NullDecimal `json:"actual_value"`
	PreviousValue decimal.NullDecimal `json:"previous_value"`
	TargetValue   decimal.NullDecimal `json:"target_value"`

	// Derived values
	AbsoluteDelta       decimal.NullDecimal `json:"absolute_delta"`
	PercentageDelta     decimal.NullDecimal `json:"percentage_delta"`
	PercentageAttained  decimal.NullDecimal `json:"percentage_attained"`
	PercentageEvolution decimal.NullDecimal `json:"percentage_evolution"`
	Classification      Classification      `json:"classification"`

	MeasuredAt time.Time `json:"measured_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// IsCritical reports whether the record sits in the critical tier of its scale.
func (r *MetricRecord) IsCritical() bool {
	return r.Classification == ClassificationCritique
}

// DisplayName returns the indicator name, falling back to its category.
func (r *MetricRecord) DisplayName() string {
	if r.Name != "" {
		return r.Name
	}
	if r.Category != "" {
		return r.Category
	}
	return string(r.Kind)
}

// RawValues holds the raw numeric inputs of a submission as text,
// so that non-numeric input can be rejected with a field-level reason.
type RawValues struct {
	Planned  string `yaml:"planned,omitempty" json:"planned,omitempty" validate:"omitempty,numeric"`
	Actual   string `yaml:"actual,omitempty" json:"actual,omitempty" validate:"omitempty,numeric"`
	Previous string `yaml:"previous,omitempty" json:"previous,omitempty" validate:"omitempty,numeric"`
	Target   string `yaml:"target,omitempty" json:"target,omitempty" validate:"omitempty,numeric"`
}

// MetricSubmission is the inbound request to record a measurement.
type MetricSubmission struct {
	SubjectID   string     `yaml:"subject_id" json:"subject_id" validate:"required"`
	SubjectName string     `yaml:"subject_name,omitempty" json:"subject_name,omitempty"`
	Kind        MetricKind `yaml:"kind" json:"kind" validate:"required,oneof=VARIANCE ATTAINMENT"`
	Name        string     `yaml:"name,omitempty" json:"name,omitempty" validate:"max=200"`
	Category    string     `yaml:"category,omitempty" json:"category,omitempty" validate:"max=50"`
	Unit        string     `yaml:"unit,omitempty" json:"unit,omitempty" validate:"max=50"`
	Period      string     `yaml:"period,omitempty" json:"period,omitempty" validate:"max=50"`
	Analyst     string     `yaml:"analyst,omitempty" json:"analyst,omitempty"`
	Comment     string     `yaml:"comment,omitempty" json:"comment,omitempty"`
	Values      RawValues  `yaml:"values" json:"values"`
}

// SubmissionBatch is the root structure of a submissions YAML file.
type SubmissionBatch struct {
	Submissions []*MetricSubmission `yaml:"submissions" json:"submissions"`
}

// ClassificationCount is the number of records per bucket.
type ClassificationCount struct {
	Kind           MetricKind     `json:"kind"`
	Classification Classification `json:"classification"`
	Count          int            `json:"count"`
}

// MetricFilter narrows metric queries. Zero values mean "any".
type MetricFilter struct {
	SubjectID      string
	Kind           MetricKind
	Classification Classification
	Limit          int
}

// Matches reports whether r satisfies the filter (Limit is ignored).
func (f MetricFilter) Matches(r *MetricRecord) bool {
	if r == nil {
		return false
	}
	if f.SubjectID != "" && r.SubjectID != f.SubjectID {
		return false
	}
	if f.Kind != "" && r.Kind != f.Kind {
		return false
	}
	if f.Classification != "" && r.Classification != f.Classification {
		return false
	}
	return true
}

// Tone groups buckets for report highlighting.
type Tone string

const (
	ToneNeutral  Tone = ""
	ToneNormal   Tone = "normal"
	ToneWarning  Tone = "warning"
	ToneCritical Tone = "critical"
)

// Tone returns the highlight group of the bucket.
func (c Classification) Tone() Tone {
	switch c {
	case ClassificationCritique:
		return ToneCritical
	case ClassificationEleve, ClassificationInsuffisant:
		return ToneWarning
	case ClassificationFaible, ClassificationBon, ClassificationExcellent:
		return ToneNormal
	default:
		return ToneNeutral
	}
}
