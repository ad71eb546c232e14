package service

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/pending-subjects-api/internal/dto"
	"github.com/noah-isme/pending-subjects-api/internal/models"
	appErrors "github.com/noah-isme/pending-subjects-api/pkg/errors"
)

func TestCurrentStatusUsesLastChronologicalCheckpoint(t *testing.T) {
	values := []models.PeriodValue{models.PeriodValueCSA, models.PeriodValueAA, "", "", ""}
	assert.Equal(t, models.PeriodValueAA, CurrentStatus(values))

	values = []models.PeriodValue{models.PeriodValueAA, "", "", models.PeriodValueCSA, ""}
	assert.Equal(t, models.PeriodValueCSA, CurrentStatus(values))

	assert.Equal(t, models.PeriodValueUnset, CurrentStatus(make([]models.PeriodValue, 5)))
}

func TestOutcome(t *testing.T) {
	assert.Equal(t, dto.OutcomePass, Outcome(gradePtr(4), models.PeriodValueCSA))
	assert.Equal(t, dto.OutcomeFail, Outcome(gradePtr(3), models.PeriodValueAA))
	assert.Equal(t, dto.OutcomePass, Outcome(nil, models.PeriodValueAA))
	assert.Equal(t, dto.OutcomeInProgress, Outcome(nil, models.PeriodValueCCA))
	assert.Equal(t, dto.OutcomeFail, Outcome(nil, models.PeriodValueCSA))
	assert.Equal(t, dto.OutcomeUnevaluated, Outcome(nil, models.PeriodValueUnset))
}

func TestParseField(t *testing.T) {
	f, err := ParseField("finalGrade")
	require.NoError(t, err)
	assert.Equal(t, models.FieldFinalGrade, f)

	for _, bad := range []string{"state", "created_by", "march; DROP TABLE x", ""} {
		_, err := ParseField(bad)
		require.Error(t, err, bad)
		assert.True(t, errors.Is(err, appErrors.ErrInvalidField), bad)
	}
}

func TestParsePeriodAndValue(t *testing.T) {
	p, ok := ParsePeriod(" December ")
	assert.True(t, ok)
	assert.Equal(t, models.PeriodDecember, p)
	_, ok = ParsePeriod("june")
	assert.False(t, ok)

	v, err := ParsePeriodValue("cca")
	require.NoError(t, err)
	assert.Equal(t, models.PeriodValueCCA, v)

	_, err = ParsePeriodValue("XX")
	assert.True(t, errors.Is(err, appErrors.ErrInvalidValue))
}

func TestParseFieldValue(t *testing.T) {
	cases := []struct {
		name  string
		field models.PendingField
		raw   string
		check func(t *testing.T, v models.FieldValue)
	}{
		{"period set", models.FieldJuly, `"aa"`, func(t *testing.T, v models.FieldValue) {
			assert.Equal(t, models.PeriodValueAA, v.Period)
		}},
		{"period cleared", models.FieldJuly, `null`, func(t *testing.T, v models.FieldValue) {
			assert.Equal(t, models.PeriodValueUnset, v.Period)
		}},
		{"grade number", models.FieldFinalGrade, `7`, func(t *testing.T, v models.FieldValue) {
			require.NotNil(t, v.Grade)
			assert.Equal(t, 7, *v.Grade)
		}},
		{"grade string", models.FieldFinalGrade, `"10"`, func(t *testing.T, v models.FieldValue) {
			require.NotNil(t, v.Grade)
			assert.Equal(t, 10, *v.Grade)
		}},
		{"grade cleared", models.FieldFinalGrade, `null`, func(t *testing.T, v models.FieldValue) {
			assert.Nil(t, v.Grade)
		}},
		{"closing gaps", models.FieldClosingGaps, `"  fractions  "`, func(t *testing.T, v models.FieldValue) {
			require.NotNil(t, v.Text)
			assert.Equal(t, "fractions", *v.Text)
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			v, err := ParseFieldValue(tc.field, json.RawMessage(tc.raw))
			require.NoError(t, err)
			tc.check(t, v)
		})
	}
}

func TestParseFieldValueRejectsInvalidValues(t *testing.T) {
	invalid := []struct {
		field models.PendingField
		raw   string
	}{
		{models.FieldMarch, `"PASS"`},
		{models.FieldMarch, `3`},
		{models.FieldFinalGrade, `0`},
		{models.FieldFinalGrade, `11`},
		{models.FieldFinalGrade, `7.5`},
		{models.FieldFinalGrade, `"seven"`},
		{models.FieldFinalGrade, `true`},
		{models.FieldClosingGaps, `{"a":1}`},
	}
	for _, tc := range invalid {
		_, err := ParseFieldValue(tc.field, json.RawMessage(tc.raw))
		require.Error(t, err, "%s %s", tc.field, tc.raw)
		assert.True(t, errors.Is(err, appErrors.ErrInvalidValue), "%s %s", tc.field, tc.raw)
	}

	_, err := ParseFieldValue(models.FieldState, json.RawMessage(`"inactive"`))
	assert.True(t, errors.Is(err, appErrors.ErrInvalidField))
}
