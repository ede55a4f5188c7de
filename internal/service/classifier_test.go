package service

import (
	"slices"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"woms-rules/internal/config"
	"woms-rules/internal/model"
)

func pct(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.RequireFromString(s))
}

func TestClassifier_Variance(t *testing.T) {
	c := NewClassifier(config.ClassificationConfig{})

	tests := []struct {
		name string
		p    string
		want model.Classification
	}{
		{"zero", "0", model.ClassificationFaible},
		{"just below moyen", "9.9999", model.ClassificationFaible},
		{"moyen lower bound", "10", model.ClassificationMoyen},
		{"negative moyen", "-24.99", model.ClassificationMoyen},
		{"eleve lower bound", "25", model.ClassificationEleve},
		{"just below critique", "49.9999", model.ClassificationEleve},
		{"critique lower bound", "50", model.ClassificationCritique},
		{"negative critique", "-50", model.ClassificationCritique},
		{"far overrun", "340", model.ClassificationCritique},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.ClassifyVariance(pct(tt.p)))
		})
	}
}

func TestClassifier_Attainment(t *testing.T) {
	c := NewClassifier(config.ClassificationConfig{})

	tests := []struct {
		a    string
		want model.Classification
	}{
		{"150", model.ClassificationExcellent},
		{"120", model.ClassificationExcellent},
		{"119.99", model.ClassificationBon},
		{"100", model.ClassificationBon},
		{"99.99", model.ClassificationSatisfaisant},
		{"90", model.ClassificationSatisfaisant},
		{"89.99", model.ClassificationMoyen},
		{"75", model.ClassificationMoyen},
		{"74.99", model.ClassificationInsuffisant},
		{"50", model.ClassificationInsuffisant},
		{"49.99", model.ClassificationCritique},
		{"0", model.ClassificationCritique},
		{"-10", model.ClassificationCritique},
	}
	for _, tt := range tests {
		t.Run(tt.a, func(t *testing.T) {
			assert.Equal(t, tt.want, c.ClassifyAttainment(pct(tt.a)))
		})
	}
}

func TestClassifier_Monotonic(t *testing.T) {
	c := NewClassifier(config.ClassificationConfig{})
	step := decimal.RequireFromString("0.25")

	prev := -1
	for v := decimal.Zero; v.LessThanOrEqual(decimal.NewFromInt(200)); v = v.Add(step) {
		for _, signed := range []decimal.Decimal{v, v.Neg()} {
			got := c.ClassifyVariance(decimal.NewNullDecimal(signed))
			idx := slices.Index(model.VarianceScale, got)
			if !assert.GreaterOrEqual(t, idx, 0, "bucket %s outside variance scale", got) {
				return
			}
			if !assert.GreaterOrEqual(t, idx, prev, "severity decreased at |p|=%s", v) {
				return
			}
			prev = idx
		}
	}

	// Attainment scale is ordered best first, so the index must never grow as a rises.
	prev = len(model.AttainmentScale)
	for v := decimal.NewFromInt(-20); v.LessThanOrEqual(decimal.NewFromInt(200)); v = v.Add(step) {
		got := c.ClassifyAttainment(decimal.NewNullDecimal(v))
		idx := slices.Index(model.AttainmentScale, got)
		if !assert.GreaterOrEqual(t, idx, 0, "bucket %s outside attainment scale", got) {
			return
		}
		if !assert.LessOrEqual(t, idx, prev, "bucket worsened at a=%s", v) {
			return
		}
		prev = idx
	}
}

func TestClassifier_Fallback(t *testing.T) {
	undefined := decimal.NullDecimal{}

	c := NewClassifier(config.ClassificationConfig{})
	assert.Equal(t, model.ClassificationMoyen, c.Classify(model.MetricKindVariance, undefined))
	assert.Equal(t, model.ClassificationMoyen, c.Classify(model.MetricKindAttainment, undefined))
	assert.Equal(t, model.ClassificationMoyen, c.Classify("OTHER", pct("80")))

	unknown := NewClassifier(config.ClassificationConfig{UnknownBucket: true})
	assert.Equal(t, model.ClassificationInconnu, unknown.Classify(model.MetricKindVariance, undefined))
	assert.Equal(t, model.ClassificationCritique, unknown.Classify(model.MetricKindVariance, pct("60")))
}
