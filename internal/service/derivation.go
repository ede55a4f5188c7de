package service

import (
	"github.com/shopspring/decimal"

	"woms-rules/internal/model"
)

const (
	variancePlaces = 4
	percentPlaces  = 2
)

var hundred = decimal.NewFromInt(100)

// DerivationEngine computes the derived fields of a MetricRecord from its raw
// values. It performs no I/O.
type DerivationEngine struct {
	classifier *Classifier
}

// NewDerivationEngine creates a DerivationEngine using the given classifier.
func NewDerivationEngine(classifier *Classifier) *DerivationEngine {
	return &DerivationEngine{classifier: classifier}
}

// ComputeVariance returns actual-planned and its percentage of planned.
// The percentage is unset when planned is null or zero.
func (e *DerivationEngine) ComputeVariance(planned, actual decimal.NullDecimal) (absoluteDelta, percentageDelta decimal.NullDecimal) {
	absoluteDelta, exact := variance(planned, actual)
	return absoluteDelta, rounded(exact, variancePlaces)
}

// ComputeAttainment returns actual as a percentage of target, unset when target is null or zero.
func (e *DerivationEngine) ComputeAttainment(actual, target decimal.NullDecimal) decimal.NullDecimal {
	return rounded(percentOf(actual, target), percentPlaces)
}

// ComputeEvolution returns the change from previous to actual as a percentage
// of previous, unset when previous is null or zero.
func (e *DerivationEngine) ComputeEvolution(actual, previous decimal.NullDecimal) decimal.NullDecimal {
	return rounded(evolution(actual, previous), percentPlaces)
}

// Classify applies the classification scale of kind.
func (e *DerivationEngine) Classify(kind model.MetricKind, percentage decimal.NullDecimal) model.Classification {
	return e.classifier.Classify(kind, percentage)
}

// Derive resets and recomputes every derived field of r.
func (e *DerivationEngine) Derive(r *model.MetricRecord) {
	r.AbsoluteDelta = decimal.NullDecimal{}
	r.PercentageDelta = decimal.NullDecimal{}
	r.PercentageAttained = decimal.NullDecimal{}
	r.PercentageEvolution = decimal.NullDecimal{}

	// Buckets are chosen on the unrounded percentages; only stored values are rounded.
	switch r.Kind {
	case model.MetricKindVariance:
		delta, exact := variance(r.PlannedValue, r.ActualValue)
		r.AbsoluteDelta = delta
		r.PercentageDelta = rounded(exact, variancePlaces)
		r.Classification = e.Classify(r.Kind, exact)
	case model.MetricKindAttainment:
		if r.ActualValue.Valid && r.TargetValue.Valid {
			r.AbsoluteDelta = decimal.NewNullDecimal(r.ActualValue.Decimal.Sub(r.TargetValue.Decimal))
		}
		exact := percentOf(r.ActualValue, r.TargetValue)
		r.PercentageAttained = rounded(exact, percentPlaces)
		r.Classification = e.Classify(r.Kind, exact)
	default:
		r.Classification = e.classifier.Fallback()
	}

	r.PercentageEvolution = rounded(evolution(r.ActualValue, r.PreviousValue), percentPlaces)
}

func variance(planned, actual decimal.NullDecimal) (delta, percentage decimal.NullDecimal) {
	if !planned.Valid || !actual.Valid {
		return decimal.NullDecimal{}, decimal.NullDecimal{}
	}
	d := actual.Decimal.Sub(planned.Decimal)
	return decimal.NewNullDecimal(d), percentOf(decimal.NewNullDecimal(d), planned)
}

func evolution(actual, previous decimal.NullDecimal) decimal.NullDecimal {
	if !actual.Valid || !previous.Valid {
		return decimal.NullDecimal{}
	}
	return percentOf(decimal.NewNullDecimal(actual.Decimal.Sub(previous.Decimal)), previous)
}

// percentOf returns num/den*100 unrounded, unset when either side is null or den is zero.
func percentOf(num, den decimal.NullDecimal) decimal.NullDecimal {
	if !num.Valid || !den.Valid || den.Decimal.IsZero() {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(num.Decimal.Mul(hundred).Div(den.Decimal))
}

func rounded(d decimal.NullDecimal, places int32) decimal.NullDecimal {
	if !d.Valid {
		return d
	}
	return decimal.NewNullDecimal(d.Decimal.Round(places))
}
