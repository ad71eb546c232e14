package models

import (
	"strconv"
	"time"
)

// Period names one of the five yearly intensification checkpoints.
type Period string

// Checkpoints in chronological order within an academic cycle.
const (
	PeriodMarch    Period = "march"
	PeriodJuly     Period = "july"
	PeriodAugust   Period = "august"
	PeriodDecember Period = "december"
	PeriodFebruary Period = "february"
)

// Periods lists checkpoints in chronological order.
var Periods = []Period{PeriodMarch, PeriodJuly, PeriodAugust, PeriodDecember, PeriodFebruary}

// PeriodValue is the qualitative assessment recorded at a checkpoint.
type PeriodValue string

// Qualitative scale values. Unset is represented by a nil pointer or the empty value.
const (
	PeriodValueUnset PeriodValue = ""
	PeriodValueAA    PeriodValue = "AA"
	PeriodValueCCA   PeriodValue = "CCA"
	PeriodValueCSA   PeriodValue = "CSA"
)

// Valid reports whether v is one of AA, CCA or CSA.
func (v PeriodValue) Valid() bool {
	switch v {
	case PeriodValueAA, PeriodValueCCA, PeriodValueCSA:
		return true
	}
	return false
}

// RegistrationState is the soft-delete lifecycle of a pending registration.
type RegistrationState string

const (
	RegistrationStateActive   RegistrationState = "active"
	RegistrationStateInactive RegistrationState = "inactive"
	// RegistrationStateAll is a list filter that disables state filtering.
	RegistrationStateAll RegistrationState = "all"
)

// PassingGrade is the lowest final grade counted as passed.
const PassingGrade = 4

// PendingRegistration records one subject a student still owes for a cycle.
type PendingRegistration struct {
	ID                string            `db:"id" json:"id"`
	StudentID         string            `db:"student_id" json:"student_id"`
	SubjectOfferingID string            `db:"subject_offering_id" json:"subject_offering_id"`
	CycleID           string            `db:"cycle_id" json:"cycle_id"`
	InitialGaps       string            `db:"initial_gaps" json:"initial_gaps"`
	March             *PeriodValue      `db:"period_march" json:"march,omitempty"`
	July              *PeriodValue      `db:"period_july" json:"july,omitempty"`
	August            *PeriodValue      `db:"period_august" json:"august,omitempty"`
	December          *PeriodValue      `db:"period_december" json:"december,omitempty"`
	February          *PeriodValue      `db:"period_february" json:"february,omitempty"`
	FinalGrade        *int              `db:"final_grade" json:"final_grade,omitempty"`
	ClosingGaps       *string           `db:"closing_gaps" json:"closing_gaps,omitempty"`
	State             RegistrationState `db:"state" json:"state"`
	Version           int               `db:"version" json:"version"`
	CreatedBy         string            `db:"created_by" json:"created_by"`
	ModifiedBy        *string           `db:"modified_by" json:"modified_by,omitempty"`
	CreatedAt         time.Time         `db:"created_at" json:"created_at"`
	ModifiedAt        time.Time         `db:"modified_at" json:"modified_at"`
}

// PeriodValue returns the value recorded at p, or unset.
func (r *PendingRegistration) PeriodValue(p Period) PeriodValue {
	var v *PeriodValue
	switch p {
	case PeriodMarch:
		v = r.March
	case PeriodJuly:
		v = r.July
	case PeriodAugust:
		v = r.August
	case PeriodDecember:
		v = r.December
	case PeriodFebruary:
		v = r.February
	}
	if v == nil {
		return PeriodValueUnset
	}
	return *v
}

// SetPeriodValue writes value at p; unset clears the checkpoint.
func (r *PendingRegistration) SetPeriodValue(p Period, value PeriodValue) {
	var v *PeriodValue
	if value != PeriodValueUnset {
		copied := value
		v = &copied
	}
	switch p {
	case PeriodMarch:
		r.March = v
	case PeriodJuly:
		r.July = v
	case PeriodAugust:
		r.August = v
	case PeriodDecember:
		r.December = v
	case PeriodFebruary:
		r.February = v
	}
}

// PeriodValues returns the checkpoints in chronological order.
func (r *PendingRegistration) PeriodValues() []PeriodValue {
	values := make([]PeriodValue, len(Periods))
	for i, p := range Periods {
		values[i] = r.PeriodValue(p)
	}
	return values
}

// AnyPeriodSet reports whether at least one checkpoint holds a value.
func (r *PendingRegistration) AnyPeriodSet() bool {
	for _, p := range Periods {
		if r.PeriodValue(p) != PeriodValueUnset {
			return true
		}
	}
	return false
}

// PendingRegistrationDetail enriches a registration with collaborator data used by views.
type PendingRegistrationDetail struct {
	PendingRegistration
	StudentName   string  `db:"student_name" json:"student_name"`
	SubjectName   string  `db:"subject_name" json:"subject_name"`
	SubjectCode   string  `db:"subject_code" json:"subject_code"`
	CourseID      string  `db:"course_id" json:"course_id"`
	CourseName    string  `db:"course_name" json:"course_name"`
	CourseYear    int     `db:"course_year" json:"course_year"`
	ProfessorName *string `db:"professor_name" json:"professor_name,omitempty"`
	GroupID       *string `db:"group_id" json:"group_id,omitempty"`
	GroupName     *string `db:"group_name" json:"group_name,omitempty"`
	GroupCode     *string `db:"group_code" json:"group_code,omitempty"`
	GroupOrder    *int    `db:"group_order" json:"-"`
}

// DisplayName prefers the group name over the subject name.
func (d *PendingRegistrationDetail) DisplayName() string {
	if d.GroupName != nil && *d.GroupName != "" {
		return *d.GroupName
	}
	return d.SubjectName
}

// DisplayCode prefers the group code over the subject code.
func (d *PendingRegistrationDetail) DisplayCode() string {
	if d.GroupCode != nil && *d.GroupCode != "" {
		return *d.GroupCode
	}
	return d.SubjectCode
}

// PendingRegistrationFilter scopes list queries.
type PendingRegistrationFilter struct {
	ProfessorID       string
	SubjectOfferingID string
	CourseID          string
	StudentID         string
	CycleID           string
	State             RegistrationState
	Page              int
	PageSize          int
	SortBy            string
	SortOrder         string
}

// PendingField enumerates the columns a caller may update after creation.
type PendingField string

const (
	FieldMarch       PendingField = "march"
	FieldJuly        PendingField = "july"
	FieldAugust      PendingField = "august"
	FieldDecember    PendingField = "december"
	FieldFebruary    PendingField = "february"
	FieldFinalGrade  PendingField = "finalGrade"
	FieldClosingGaps PendingField = "closingGaps"
	// FieldState is written only by create and soft delete; it is never caller-updatable.
	FieldState PendingField = "state"
)

// UpdatableFields is the closed set accepted by update requests.
var UpdatableFields = []PendingField{FieldMarch, FieldJuly, FieldAugust, FieldDecember, FieldFebruary, FieldFinalGrade, FieldClosingGaps}

// Column maps a field to its fixed column name; ok is false outside the closed set.
func (f PendingField) Column() (string, bool) {
	switch f {
	case FieldMarch:
		return "period_march", true
	case FieldJuly:
		return "period_july", true
	case FieldAugust:
		return "period_august", true
	case FieldDecember:
		return "period_december", true
	case FieldFebruary:
		return "period_february", true
	case FieldFinalGrade:
		return "final_grade", true
	case FieldClosingGaps:
		return "closing_gaps", true
	case FieldState:
		return "state", true
	}
	return "", false
}

// Period returns the checkpoint a period field writes to.
func (f PendingField) Period() (Period, bool) {
	switch f {
	case FieldMarch, FieldJuly, FieldAugust, FieldDecember, FieldFebruary:
		return Period(f), true
	}
	return "", false
}

// FieldValue is a typed value for one field. Exactly one member is meaningful per field.
type FieldValue struct {
	Period PeriodValue
	Grade  *int
	Text   *string
}

// Arg returns the value bound to the column.
func (v FieldValue) Arg(f PendingField) interface{} {
	switch f {
	case FieldFinalGrade:
		if v.Grade == nil {
			return nil
		}
		return *v.Grade
	case FieldClosingGaps, FieldState:
		if v.Text == nil {
			return nil
		}
		return *v.Text
	default:
		if v.Period == PeriodValueUnset {
			return nil
		}
		return string(v.Period)
	}
}

// Audit renders the value for the audit trail; nil means unset.
func (v FieldValue) Audit(f PendingField) *string {
	switch arg := v.Arg(f).(type) {
	case nil:
		return nil
	case int:
		s := strconv.Itoa(arg)
		return &s
	case string:
		return &arg
	}
	return nil
}

// CurrentValue extracts the stored value of f from r.
func (r *PendingRegistration) CurrentValue(f PendingField) FieldValue {
	switch f {
	case FieldFinalGrade:
		return FieldValue{Grade: r.FinalGrade}
	case FieldClosingGaps:
		return FieldValue{Text: r.ClosingGaps}
	case FieldState:
		state := string(r.State)
		return FieldValue{Text: &state}
	}
	if p, ok := f.Period(); ok {
		return FieldValue{Period: r.PeriodValue(p)}
	}
	return FieldValue{}
}

// FieldChange is a validated single-field mutation.
type FieldChange struct {
	RegistrationID  string
	Field           PendingField
	Value           FieldValue
	ExpectedVersion int
	EditorID        string
	At              time.Time
}
