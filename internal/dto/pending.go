package dto

import (
	"encoding/json"

	"github.com/noah-isme/pending-subjects-api/internal/models"
)

// CreatePendingRequest registers a single pending subject for a student.
type CreatePendingRequest struct {
	StudentID         string `json:"studentId" validate:"required"`
	SubjectOfferingID string `json:"subjectOfferingId" validate:"required"`
	CycleID           string `json:"cycleId" validate:"required"`
	InitialGaps       string `json:"initialGaps" validate:"required"`
}

// BulkAssignItem is one subject inside a bulk assignment.
type BulkAssignItem struct {
	SubjectOfferingID string `json:"subjectOfferingId" validate:"required"`
	InitialGaps       string `json:"initialGaps" validate:"required"`
}

// BulkAssignRequest registers several subjects for one student atomically.
type BulkAssignRequest struct {
	StudentID string           `json:"studentId" validate:"required"`
	CycleID   string           `json:"cycleId" validate:"required"`
	Items     []BulkAssignItem `json:"items" validate:"required,min=1,dive"`
}

// UpdatePendingFieldRequest changes one field. Value is raw JSON so each field parses it with its own setter.
type UpdatePendingFieldRequest struct {
	Field   string          `json:"field" validate:"required"`
	Value   json.RawMessage `json:"value"`
	Version *int            `json:"version,omitempty" validate:"omitempty,min=1"`
}

// PendingListQuery carries raw list filters from the query string.
type PendingListQuery struct {
	ProfessorID       string
	SubjectOfferingID string
	CourseID          string
	StudentID         string
	CycleID           string
	State             string
	Page              int
	PageSize          int
	SortBy            string
	SortOrder         string
}

// Outcome is the pass/fail badge shown for an item.
type Outcome string

const (
	OutcomePass        Outcome = "PASS"
	OutcomeInProgress  Outcome = "IN_PROGRESS"
	OutcomeFail        Outcome = "FAIL"
	OutcomeUnevaluated Outcome = "UNEVALUATED"
)

// CheckpointStatus is the consolidated value of one checkpoint. Evaluated/Total count members with a value.
type CheckpointStatus struct {
	Period    models.Period      `json:"period"`
	Value     models.PeriodValue `json:"value,omitempty"`
	Evaluated int                `json:"evaluated"`
	Total     int                `json:"total"`
}

// GroupMember is one underlying registration of a grouped item.
type GroupMember struct {
	RegistrationID    string               `json:"registrationId"`
	SubjectOfferingID string               `json:"subjectOfferingId"`
	SubjectName       string               `json:"subjectName"`
	SubjectCode       string               `json:"subjectCode"`
	ProfessorName     *string              `json:"professorName,omitempty"`
	Periods           []models.PeriodValue `json:"periods"`
	CurrentStatus     models.PeriodValue   `json:"currentStatus,omitempty"`
	FinalGrade        *int                 `json:"finalGrade,omitempty"`
	Version           int                  `json:"version"`
}

// PendingItem is a displayable row: either a single registration or a consolidated group.
type PendingItem struct {
	Key            string             `json:"key"`
	IsGroup        bool               `json:"isGroup"`
	GroupID        *string            `json:"groupId,omitempty"`
	DisplayName    string             `json:"displayName"`
	DisplayCode    string             `json:"displayCode"`
	InitialGaps    string             `json:"initialGaps"`
	ClosingGaps    *string            `json:"closingGaps,omitempty"`
	Checkpoints    []CheckpointStatus `json:"checkpoints"`
	CurrentStatus  models.PeriodValue `json:"currentStatus,omitempty"`
	FinalGrade     *int               `json:"finalGrade,omitempty"`
	Outcome        Outcome            `json:"outcome"`
	AutoSettleable bool               `json:"autoSettleable"`
	AnyEvaluated   bool               `json:"anyEvaluated"`
	Active         bool               `json:"active"`
	ProfessorNames []string           `json:"professorNames"`
	Members        []GroupMember      `json:"members"`
}

// PendingStatistics summarises a student's items. The four buckets always sum to Total.
type PendingStatistics struct {
	Total       int `json:"total"`
	Approved    int `json:"approved"`
	NotApproved int `json:"notApproved"`
	InProgress  int `json:"inProgress"`
	Unevaluated int `json:"unevaluated"`
}

// CourseSummary is the student's current course shown in a grouped view.
type CourseSummary struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Year int    `json:"year"`
}

// GroupedViewResponse is the consolidated pending view for one student and cycle.
type GroupedViewResponse struct {
	StudentID  string            `json:"studentId"`
	CycleID    string            `json:"cycleId"`
	Course     *CourseSummary    `json:"course,omitempty"`
	Items      []PendingItem     `json:"items"`
	Statistics PendingStatistics `json:"statistics"`
}

// CourseViewEntry is one enrolled student's grouped view inside a course view.
type CourseViewEntry struct {
	StudentID  string            `json:"studentId"`
	FirstName  string            `json:"firstName"`
	LastName   string            `json:"lastName"`
	DocumentID string            `json:"documentId"`
	Items      []PendingItem     `json:"items"`
	Statistics PendingStatistics `json:"statistics"`
}

// CourseViewResponse lists pending views for every student of a course who owes subjects.
type CourseViewResponse struct {
	CourseID string            `json:"courseId"`
	CycleID  string            `json:"cycleId"`
	Students []CourseViewEntry `json:"students"`
}

// SubjectGroupResponse answers a group lookup for a subject offering.
type SubjectGroupResponse struct {
	SubjectOfferingID string               `json:"subjectOfferingId"`
	Group             *models.SubjectGroup `json:"group"`
}
