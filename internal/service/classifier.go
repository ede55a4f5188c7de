// Package service provides the rules engine: classification, derivation,
// alert cascade and alert lifecycle.
package service

import (
	"github.com/shopspring/decimal"

	"woms-rules/internal/config"
	"woms-rules/internal/model"
)

// bucketBound is the inclusive lower bound of a named bucket.
type bucketBound struct {
	min            decimal.Decimal
	classification model.Classification
}

// Bounds are ordered from the highest lower bound down; the first match wins.
var (
	varianceBounds = []bucketBound{
		{decimal.NewFromInt(50), model.ClassificationCritique},
		{decimal.NewFromInt(25), model.ClassificationEleve},
		{decimal.NewFromInt(10), model.ClassificationMoyen},
	}
	varianceFloor = model.ClassificationFaible

	attainmentBounds = []bucketBound{
		{decimal.NewFromInt(120), model.ClassificationExcellent},
		{decimal.NewFromInt(100), model.ClassificationBon},
		{decimal.NewFromInt(90), model.ClassificationSatisfaisant},
		{decimal.NewFromInt(75), model.ClassificationMoyen},
		{decimal.NewFromInt(50), model.ClassificationInsuffisant},
	}
	attainmentFloor = model.ClassificationCritique
)

// Classifier maps percentages to classification buckets.
type Classifier struct {
	fallback model.Classification
}

// NewClassifier creates a Classifier. Undefined percentages fall back to MOYEN,
// or to INCONNU when the unknown bucket is enabled.
func NewClassifier(cfg config.ClassificationConfig) *Classifier {
	fallback := model.ClassificationMoyen
	if cfg.UnknownBucket {
		fallback = model.ClassificationInconnu
	}
	return &Classifier{fallback: fallback}
}

// Fallback returns the bucket used when no percentage could be computed.
func (c *Classifier) Fallback() model.Classification {
	return c.fallback
}

// ClassifyVariance classifies a variance percentage by its absolute value.
func (c *Classifier) ClassifyVariance(p decimal.NullDecimal) model.Classification {
	if !p.Valid {
		return c.fallback
	}
	return pick(p.Decimal.Abs(), varianceBounds, varianceFloor)
}

// ClassifyAttainment classifies an attainment percentage.
func (c *Classifier) ClassifyAttainment(a decimal.NullDecimal) model.Classification {
	if !a.Valid {
		return c.fallback
	}
	return pick(a.Decimal, attainmentBounds, attainmentFloor)
}

// Classify applies the scale of the given kind.
func (c *Classifier) Classify(kind model.MetricKind, percentage decimal.NullDecimal) model.Classification {
	switch kind {
	case model.MetricKindVariance:
		return c.ClassifyVariance(percentage)
	case model.MetricKindAttainment:
		return c.ClassifyAttainment(percentage)
	default:
		return c.fallback
	}
}

func pick(v decimal.Decimal, bounds []bucketBound, floor model.Classification) model.Classification {
	for _, b := range bounds {
		if v.GreaterThanOrEqual(b.min) {
			return b.classification
		}
	}
	return floor
}
