package service

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"woms-rules/internal/model"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Report fields by their yaml names ("values.planned").
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

// requiredValues lists the raw values each kind cannot be derived without.
var requiredValues = map[model.MetricKind][]string{
	model.MetricKindVariance:   {"planned", "actual"},
	model.MetricKindAttainment: {"actual"},
}

// ParseSubmission validates a submission and converts it into an underived
// MetricRecord. Rejections are *model.InputError values matching
// model.ErrInvalidMetricInput.
func ParseSubmission(sub *model.MetricSubmission) (*model.MetricRecord, error) {
	if sub == nil {
		return nil, &model.InputError{Fields: []model.FieldError{{Field: "submission", Message: "submission is empty"}}}
	}

	var fields []model.FieldError
	if err := validate.Struct(sub); err != nil {
		var fieldErrors validator.ValidationErrors
		if !errors.As(err, &fieldErrors) {
			return nil, fmt.Errorf("validate submission: %w", err)
		}
		for _, fe := range fieldErrors {
			fields = append(fields, model.FieldError{
				Field:   formatFieldName(fe.Namespace()),
				Message: translateError(fe),
			})
		}
	}

	raw := map[string]string{
		"planned":  strings.TrimSpace(sub.Values.Planned),
		"actual":   strings.TrimSpace(sub.Values.Actual),
		"previous": strings.TrimSpace(sub.Values.Previous),
		"target":   strings.TrimSpace(sub.Values.Target),
	}
	for _, name := range requiredValues[sub.Kind] {
		if raw[name] == "" {
			fields = append(fields, model.FieldError{
				Field:   "values." + name,
				Message: fmt.Sprintf("this field is required for kind %s", sub.Kind),
			})
		}
	}

	parsed := make(map[string]decimal.NullDecimal, len(raw))
	for name, text := range raw {
		if text == "" {
			continue
		}
		d, err := decimal.NewFromString(text)
		if err != nil {
			if !hasField(fields, "values."+name) {
				fields = append(fields, model.FieldError{Field: "values." + name, Message: fmt.Sprintf("not a number: %q", text)})
			}
			continue
		}
		parsed[name] = decimal.NewNullDecimal(d)
	}

	if len(fields) > 0 {
		return nil, &model.InputError{Fields: fields}
	}

	return &model.MetricRecord{
		SubjectID:     strings.TrimSpace(sub.SubjectID),
		SubjectName:   sub.SubjectName,
		Kind:          sub.Kind,
		Name:          sub.Name,
		Category:      sub.Category,
		Unit:          sub.Unit,
		Period:        sub.Period,
		Analyst:       sub.Analyst,
		Comment:       sub.Comment,
		PlannedValue:  parsed["planned"],
		ActualValue:   parsed["actual"],
		PreviousValue: parsed["previous"],
		TargetValue:   parsed["target"],
	}, nil
}

func hasField(fields []model.FieldError, name string) bool {
	for _, f := range fields {
		if f.Field == name {
			return true
		}
	}
	return false
}

// formatFieldName drops the root struct name: "MetricSubmission.values.planned" -> "values.planned".
func formatFieldName(namespace string) string {
	parts := strings.Split(namespace, ".")
	if len(parts) > 1 {
		parts = parts[1:]
	}
	return strings.Join(parts, ".")
}

// translateError converts a validator.FieldError to a user-friendly message.
func translateError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "this field is required"
	case "oneof":
		return fmt.Sprintf("value must be one of: %s", fe.Param())
	case "max":
		return fmt.Sprintf("value must be at most %s characters", fe.Param())
	case "numeric":
		return fmt.Sprintf("not a number: %q", fe.Value())
	default:
		return fmt.Sprintf("validation failed on '%s' tag", fe.Tag())
	}
}
