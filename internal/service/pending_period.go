package service

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/noah-isme/pending-subjects-api/internal/dto"
	"github.com/noah-isme/pending-subjects-api/internal/models"
	appErrors "github.com/noah-isme/pending-subjects-api/pkg/errors"
)

const (
	minFinalGrade = 1
	maxFinalGrade = 10
)

// ParsePeriod resolves a checkpoint name.
func ParsePeriod(raw string) (models.Period, bool) {
	p := models.Period(strings.ToLower(strings.TrimSpace(raw)))
	for _, known := range models.Periods {
		if p == known {
			return p, true
		}
	}
	return "", false
}

// ParsePeriodValue accepts AA, CCA, CSA in any case; blank means unset.
func ParsePeriodValue(raw string) (models.PeriodValue, error) {
	trimmed := strings.ToUpper(strings.TrimSpace(raw))
	if trimmed == "" {
		return models.PeriodValueUnset, nil
	}
	v := models.PeriodValue(trimmed)
	if !v.Valid() {
		return models.PeriodValueUnset, appErrors.Clone(appErrors.ErrInvalidValue, fmt.Sprintf("period value must be AA, CCA or CSA, got %q", raw))
	}
	return v, nil
}

// ParseField resolves an updatable field name; state and unknown names are rejected.
func ParseField(raw string) (models.PendingField, error) {
	name := strings.TrimSpace(raw)
	for _, f := range models.UpdatableFields {
		if string(f) == name {
			return f, nil
		}
	}
	return "", appErrors.Clone(appErrors.ErrInvalidField, fmt.Sprintf("field %q cannot be updated", raw))
}

type fieldSetter func(raw json.RawMessage) (models.FieldValue, error)

var fieldSetters = map[models.PendingField]fieldSetter{
	models.FieldMarch:       setPeriodValue,
	models.FieldJuly:        setPeriodValue,
	models.FieldAugust:      setPeriodValue,
	models.FieldDecember:    setPeriodValue,
	models.FieldFebruary:    setPeriodValue,
	models.FieldFinalGrade:  setFinalGrade,
	models.FieldClosingGaps: setClosingGaps,
}

// ParseFieldValue parses a raw JSON value with the setter owned by field.
func ParseFieldValue(field models.PendingField, raw json.RawMessage) (models.FieldValue, error) {
	setter, ok := fieldSetters[field]
	if !ok {
		return models.FieldValue{}, appErrors.Clone(appErrors.ErrInvalidField, fmt.Sprintf("field %q cannot be updated", field))
	}
	return setter(raw)
}

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

func setPeriodValue(raw json.RawMessage) (models.FieldValue, error) {
	if isNull(raw) {
		return models.FieldValue{}, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return models.FieldValue{}, appErrors.Clone(appErrors.ErrInvalidValue, "period value must be a string")
	}
	v, err := ParsePeriodValue(s)
	if err != nil {
		return models.FieldValue{}, err
	}
	return models.FieldValue{Period: v}, nil
}

func setFinalGrade(raw json.RawMessage) (models.FieldValue, error) {
	if isNull(raw) {
		return models.FieldValue{}, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var decoded interface{}
	if err := dec.Decode(&decoded); err != nil {
		return models.FieldValue{}, appErrors.Clone(appErrors.ErrInvalidValue, "final grade must be an integer")
	}
	var text string
	switch v := decoded.(type) {
	case json.Number:
		text = v.String()
	case string:
		text = strings.TrimSpace(v)
		if text == "" {
			return models.FieldValue{}, nil
		}
	default:
		return models.FieldValue{}, appErrors.Clone(appErrors.ErrInvalidValue, "final grade must be an integer")
	}
	grade, err := strconv.Atoi(text)
	if err != nil {
		return models.FieldValue{}, appErrors.Clone(appErrors.ErrInvalidValue, "final grade must be an integer")
	}
	if grade < minFinalGrade || grade > maxFinalGrade {
		return models.FieldValue{}, appErrors.Clone(appErrors.ErrInvalidValue, fmt.Sprintf("final grade must be between %d and %d", minFinalGrade, maxFinalGrade))
	}
	return models.FieldValue{Grade: &grade}, nil
}

func setClosingGaps(raw json.RawMessage) (models.FieldValue, error) {
	if isNull(raw) {
		return models.FieldValue{}, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return models.FieldValue{}, appErrors.Clone(appErrors.ErrInvalidValue, "closing gaps must be text")
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return models.FieldValue{}, nil
	}
	return models.FieldValue{Text: &s}, nil
}

// CurrentStatus is the last checkpoint in chronological order holding a value.
func CurrentStatus(values []models.PeriodValue) models.PeriodValue {
	for i := len(values) - 1; i >= 0; i-- {
		if values[i] != models.PeriodValueUnset {
			return values[i]
		}
	}
	return models.PeriodValueUnset
}

// Outcome derives the badge. A final grade wins over qualitative checkpoints.
func Outcome(finalGrade *int, status models.PeriodValue) dto.Outcome {
	if finalGrade != nil {
		if *finalGrade >= models.PassingGrade {
			return dto.OutcomePass
		}
		return dto.OutcomeFail
	}
	switch status {
	case models.PeriodValueAA:
		return dto.OutcomePass
	case models.PeriodValueCCA:
		return dto.OutcomeInProgress
	case models.PeriodValueCSA:
		return dto.OutcomeFail
	}
	return dto.OutcomeUnevaluated
}
