package service

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"woms-rules/internal/config"
	"woms-rules/internal/model"
)

func assertDecimal(t *testing.T, want string, got decimal.NullDecimal) {
	t.Helper()
	require.True(t, got.Valid, "expected %s, got undefined", want)
	assert.True(t, decimal.RequireFromString(want).Equal(got.Decimal), "expected %s, got %s", want, got.Decimal)
}

func newEngine(unknownBucket bool) *DerivationEngine {
	return NewDerivationEngine(NewClassifier(config.ClassificationConfig{UnknownBucket: unknownBucket}))
}

func TestDerive_Variance(t *testing.T) {
	r := &model.MetricRecord{
		Kind:         model.MetricKindVariance,
		PlannedValue: pct("100"),
		ActualValue:  pct("50"),
	}
	newEngine(false).Derive(r)

	assertDecimal(t, "-50", r.AbsoluteDelta)
	assertDecimal(t, "-50.0", r.PercentageDelta)
	assert.False(t, r.PercentageAttained.Valid)
	assert.False(t, r.PercentageEvolution.Valid)
	assert.Equal(t, model.ClassificationCritique, r.Classification)
}

func TestDerive_Attainment(t *testing.T) {
	r := &model.MetricRecord{
		Kind:          model.MetricKindAttainment,
		ActualValue:   pct("950"),
		TargetValue:   pct("1000"),
		PreviousValue: pct("900"),
	}
	newEngine(false).Derive(r)

	assertDecimal(t, "95", r.PercentageAttained)
	assertDecimal(t, "5.56", r.PercentageEvolution)
	assertDecimal(t, "-50", r.AbsoluteDelta)
	assert.False(t, r.PercentageDelta.Valid)
	assert.Equal(t, model.ClassificationSatisfaisant, r.Classification)
}

func TestDerive_DivisionByZero(t *testing.T) {
	tests := []struct {
		name          string
		unknownBucket bool
		want          model.Classification
	}{
		{"neutral default", false, model.ClassificationMoyen},
		{"unknown bucket", true, model.ClassificationInconnu},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &model.MetricRecord{
				Kind:          model.MetricKindVariance,
				PlannedValue:  pct("0"),
				ActualValue:   pct("120"),
				PreviousValue: pct("0"),
			}
			assert.NotPanics(t, func() { newEngine(tt.unknownBucket).Derive(r) })

			assertDecimal(t, "120", r.AbsoluteDelta)
			assert.False(t, r.PercentageDelta.Valid)
			assert.False(t, r.PercentageEvolution.Valid)
			assert.Equal(t, tt.want, r.Classification)
		})
	}

	e := newEngine(false)
	assert.False(t, e.ComputeAttainment(pct("10"), pct("0")).Valid)
	assert.False(t, e.ComputeAttainment(pct("10"), decimal.NullDecimal{}).Valid)
}

func TestDerive_Rounding(t *testing.T) {
	e := newEngine(false)

	_, p := e.ComputeVariance(pct("3"), pct("4"))
	assertDecimal(t, "33.3333", p)

	assertDecimal(t, "66.67", e.ComputeAttainment(pct("2"), pct("3")))
	assertDecimal(t, "-33.33", e.ComputeEvolution(pct("2"), pct("3")))
}

func TestDerive_ResetsStaleFields(t *testing.T) {
	r := &model.MetricRecord{
		Kind:               model.MetricKindVariance,
		PlannedValue:       pct("200"),
		ActualValue:        pct("210"),
		PercentageAttained: pct("12"),
		Classification:     model.ClassificationCritique,
	}
	e := newEngine(false)
	e.Derive(r)
	first := *r
	e.Derive(r)

	assert.False(t, r.PercentageAttained.Valid)
	assert.Equal(t, model.ClassificationFaible, r.Classification)
	assert.Equal(t, first, *r)
}

func TestDerive_ClassifiesBeforeRounding(t *testing.T) {
	tests := []struct {
		name      string
		record    model.MetricRecord
		stored    func(r *model.MetricRecord) decimal.NullDecimal
		wantPct   string
		wantClass model.Classification
	}{
		{
			name:      "attainment just below critical bound",
			record:    model.MetricRecord{Kind: model.MetricKindAttainment, ActualValue: pct("49.999"), TargetValue: pct("100")},
			stored:    func(r *model.MetricRecord) decimal.NullDecimal { return r.PercentageAttained },
			wantPct:   "50",
			wantClass: model.ClassificationCritique,
		},
		{
			name:      "attainment just below excellent bound",
			record:    model.MetricRecord{Kind: model.MetricKindAttainment, ActualValue: pct("119.999"), TargetValue: pct("100")},
			stored:    func(r *model.MetricRecord) decimal.NullDecimal { return r.PercentageAttained },
			wantPct:   "120",
			wantClass: model.ClassificationBon,
		},
		{
			name:      "variance just below critical bound",
			record:    model.MetricRecord{Kind: model.MetricKindVariance, PlannedValue: pct("100000"), ActualValue: pct("149999.96")},
			stored:    func(r *model.MetricRecord) decimal.NullDecimal { return r.PercentageDelta },
			wantPct:   "50",
			wantClass: model.ClassificationEleve,
		},
		{
			name:      "negative variance just below critical bound",
			record:    model.MetricRecord{Kind: model.MetricKindVariance, PlannedValue: pct("100000"), ActualValue: pct("50000.04")},
			stored:    func(r *model.MetricRecord) decimal.NullDecimal { return r.PercentageDelta },
			wantPct:   "-50",
			wantClass: model.ClassificationEleve,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := tt.record
			newEngine(false).Derive(&r)

			assertDecimal(t, tt.wantPct, tt.stored(&r))
			assert.Equal(t, tt.wantClass, r.Classification)
		})
	}
}
