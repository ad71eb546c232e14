package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/pending-subjects-api/internal/models"
)

var (
	// ErrDuplicateActive is returned when the store rejects a second active registration for a triple.
	ErrDuplicateActive = errors.New("active pending registration already exists")
	// ErrVersionConflict is returned when the row changed since the caller read it.
	ErrVersionConflict = errors.New("pending registration version conflict")
	// ErrRegistrationInactive is returned when mutating a soft-deleted registration.
	ErrRegistrationInactive = errors.New("pending registration is inactive")
	// ErrUnknownField guards the column mapping.
	ErrUnknownField = errors.New("unknown pending registration field")
)

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

const registrationColumns = `pr.id, pr.student_id, pr.subject_offering_id, pr.cycle_id, pr.initial_gaps,
       pr.period_march, pr.period_july, pr.period_august, pr.period_december, pr.period_february,
       pr.final_grade, pr.closing_gaps, pr.state, pr.version, pr.created_by, pr.modified_by,
       pr.created_at, pr.modified_at`

const detailFrom = `
FROM pending_registrations pr
JOIN students st ON st.id = pr.student_id
JOIN subject_offerings so ON so.id = pr.subject_offering_id
JOIN courses co ON co.id = so.course_id
LEFT JOIN users pu ON pu.id = so.professor_id
LEFT JOIN group_memberships gm ON gm.subject_offering_id = pr.subject_offering_id AND gm.active
LEFT JOIN subject_groups sg ON sg.id = gm.group_id AND sg.active`

const detailColumns = registrationColumns + `,
       st.last_name || ', ' || st.first_name AS student_name,
       so.name AS subject_name, so.code AS subject_code,
       co.id AS course_id, co.name AS course_name, co.year AS course_year,
       pu.full_name AS professor_name,
       sg.id AS group_id, sg.name AS group_name, sg.code AS group_code, sg.display_order AS group_order`

// PendingRegistrationRepository persists pending registrations and their audit trail.
type PendingRegistrationRepository struct {
	db *sqlx.DB
}

// NewPendingRegistrationRepository constructs the repository.
func NewPendingRegistrationRepository(db *sqlx.DB) *PendingRegistrationRepository {
	return &PendingRegistrationRepository{db: db}
}

// ExistsActive checks whether an active registration exists for the triple.
func (r *PendingRegistrationRepository) ExistsActive(ctx context.Context, studentID, subjectOfferingID, cycleID string) (bool, error) {
	const query = `SELECT 1 FROM pending_registrations WHERE student_id = $1 AND subject_offering_id = $2 AND cycle_id = $3 AND state = 'active' LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, studentID, subjectOfferingID, cycleID); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check active pending registration: %w", err)
	}
	return true, nil
}

// Create inserts a single registration with its creation audit entry.
func (r *PendingRegistrationRepository) Create(ctx context.Context, reg *models.PendingRegistration) error {
	return r.CreateMany(ctx, []*models.PendingRegistration{reg})
}

// CreateMany inserts every registration in one transaction. Any failure rolls back all rows.
func (r *PendingRegistrationRepository) CreateMany(ctx context.Context, regs []*models.PendingRegistration) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin pending registration transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const query = `INSERT INTO pending_registrations
	(id, student_id, subject_offering_id, cycle_id, initial_gaps, state, version, created_by, created_at, modified_at)
	VALUES (:id, :student_id, :subject_offering_id, :cycle_id, :initial_gaps, :state, :version, :created_by, :created_at, :modified_at)`

	now := time.Now().UTC()
	for _, reg := range regs {
		if reg.ID == "" {
			reg.ID = uuid.NewString()
		}
		if reg.CreatedAt.IsZero() {
			reg.CreatedAt = now
		}
		reg.ModifiedAt = reg.CreatedAt
		reg.State = models.RegistrationStateActive
		reg.Version = 1

		if _, err = tx.NamedExecContext(ctx, query, reg); err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("create pending registration: %w", ErrDuplicateActive)
			}
			return fmt.Errorf("create pending registration: %w", err)
		}
		state := string(models.RegistrationStateActive)
		if err = insertAuditEntry(ctx, tx, &models.PendingAuditEntry{
			RegistrationID: reg.ID,
			Field:          models.FieldState,
			NewValue:       &state,
			EditorID:       reg.CreatedBy,
			CreatedAt:      reg.CreatedAt,
		}); err != nil {
			return err
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit pending registrations: %w", err)
	}
	return nil
}

// FindByID fetches a registration without joins.
func (r *PendingRegistrationRepository) FindByID(ctx context.Context, id string) (*models.PendingRegistration, error) {
	query := fmt.Sprintf("SELECT %s FROM pending_registrations pr WHERE pr.id = $1", registrationColumns)
	var reg models.PendingRegistration
	if err := r.db.GetContext(ctx, &reg, query, id); err != nil {
		return nil, err
	}
	return &reg, nil
}

// FindDetailByID fetches a registration with display data.
func (r *PendingRegistrationRepository) FindDetailByID(ctx context.Context, id string) (*models.PendingRegistrationDetail, error) {
	query := fmt.Sprintf("SELECT %s %s WHERE pr.id = $1", detailColumns, detailFrom)
	var detail models.PendingRegistrationDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// List returns registrations matching the filter and the total count.
func (r *PendingRegistrationRepository) List(ctx context.Context, filter models.PendingRegistrationFilter) ([]models.PendingRegistrationDetail, int, error) {
	args := []interface{}{}
	conditions := []string{"1=1"}

	if filter.State != models.RegistrationStateAll {
		state := filter.State
		if state == "" {
			state = models.RegistrationStateActive
		}
		conditions = append(conditions, fmt.Sprintf("pr.state = $%d", len(args)+1))
		args = append(args, string(state))
	}
	if filter.ProfessorID != "" {
		idx := len(args) + 1
		conditions = append(conditions, fmt.Sprintf("(so.professor_id = $%d OR so.professor_id_2 = $%d OR so.professor_id_3 = $%d)", idx, idx, idx))
		args = append(args, filter.ProfessorID)
	}
	if filter.SubjectOfferingID != "" {
		conditions = append(conditions, fmt.Sprintf("pr.subject_offering_id = $%d", len(args)+1))
		args = append(args, filter.SubjectOfferingID)
	}
	if filter.CourseID != "" {
		conditions = append(conditions, fmt.Sprintf("so.course_id = $%d", len(args)+1))
		args = append(args, filter.CourseID)
	}
	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("pr.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.CycleID != "" {
		conditions = append(conditions, fmt.Sprintf("pr.cycle_id = $%d", len(args)+1))
		args = append(args, filter.CycleID)
	}

	where := " WHERE " + strings.Join(conditions, " AND ")

	allowedSorts := map[string][]string{
		"student":     {"st.last_name", "st.first_name"},
		"subject":     {"so.name"},
		"course":      {"co.year", "co.name"},
		"created_at":  {"pr.created_at"},
		"modified_at": {"pr.modified_at"},
	}
	columns, ok := allowedSorts[filter.SortBy]
	if !ok {
		columns = allowedSorts["student"]
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "ASC"
	}
	orderBy := make([]string, len(columns))
	for i, column := range columns {
		orderBy[i] = column + " " + order
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s%s ORDER BY %s, pr.id LIMIT %d OFFSET %d", detailColumns, detailFrom, where, strings.Join(orderBy, ", "), size, offset)
	var items []models.PendingRegistrationDetail
	if err := r.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list pending registrations: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s%s", detailFrom, where)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count pending registrations: %w", err)
	}
	return items, total, nil
}

// ListActiveByStudents returns active registrations with display data for the students in a cycle.
func (r *PendingRegistrationRepository) ListActiveByStudents(ctx context.Context, studentIDs []string, cycleID string) ([]models.PendingRegistrationDetail, error) {
	if len(studentIDs) == 0 {
		return []models.PendingRegistrationDetail{}, nil
	}
	query := fmt.Sprintf(`SELECT %s %s
WHERE pr.student_id = ANY($1) AND pr.cycle_id = $2 AND pr.state = 'active'
ORDER BY pr.student_id, so.name, pr.id`, detailColumns, detailFrom)
	var items []models.PendingRegistrationDetail
	if err := r.db.SelectContext(ctx, &items, query, pq.Array(studentIDs), cycleID); err != nil {
		return nil, fmt.Errorf("list pending registrations by student: %w", err)
	}
	return items, nil
}

// ApplyChange writes one field under the row lock. The version must match the expected
// version (or the loaded one when zero). A change that leaves the value untouched is not
// written and reports changed=false.
func (r *PendingRegistrationRepository) ApplyChange(ctx context.Context, change models.FieldChange) (reg *models.PendingRegistration, changed bool, err error) {
	column, ok := change.Field.Column()
	if !ok {
		return nil, false, ErrUnknownField
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("begin pending update transaction: %w", err)
	}
	defer func() {
		if err != nil || !changed {
			_ = tx.Rollback()
		}
	}()

	var current models.PendingRegistration
	selectQuery := fmt.Sprintf("SELECT %s FROM pending_registrations pr WHERE pr.id = $1 FOR UPDATE", registrationColumns)
	if err = tx.GetContext(ctx, &current, selectQuery, change.RegistrationID); err != nil {
		if err == sql.ErrNoRows {
			return nil, false, err
		}
		return nil, false, fmt.Errorf("lock pending registration: %w", err)
	}
	if current.State != models.RegistrationStateActive {
		err = ErrRegistrationInactive
		return nil, false, err
	}
	expected := change.ExpectedVersion
	if expected == 0 {
		expected = current.Version
	}
	if expected != current.Version {
		err = ErrVersionConflict
		return nil, false, err
	}

	oldValue := current.CurrentValue(change.Field).Audit(change.Field)
	newValue := change.Value.Audit(change.Field)
	if equalValues(oldValue, newValue) {
		return &current, false, nil
	}

	at := change.At
	if at.IsZero() {
		at = time.Now().UTC()
	}
	updateQuery := fmt.Sprintf(`UPDATE pending_registrations
SET %s = $1, version = version + 1, modified_by = $2, modified_at = $3
WHERE id = $4 AND version = $5`, column)
	result, err := tx.ExecContext(ctx, updateQuery, change.Value.Arg(change.Field), change.EditorID, at, current.ID, current.Version)
	if err != nil {
		return nil, false, fmt.Errorf("update pending registration %s: %w", change.Field, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("update pending registration rows affected: %w", err)
	}
	if affected == 0 {
		err = ErrVersionConflict
		return nil, false, err
	}

	if err = insertAuditEntry(ctx, tx, &models.PendingAuditEntry{
		RegistrationID: current.ID,
		Field:          change.Field,
		OldValue:       oldValue,
		NewValue:       newValue,
		EditorID:       change.EditorID,
		CreatedAt:      at,
	}); err != nil {
		return nil, false, err
	}

	// changed must be true before commit so the deferred rollback is skipped.
	changed = true
	if err = tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("commit pending update: %w", err)
	}

	applyField(&current, change)
	current.Version++
	editor := change.EditorID
	current.ModifiedBy = &editor
	current.ModifiedAt = at
	return &current, true, nil
}

// SoftDelete moves an active registration to inactive, keeping its values.
func (r *PendingRegistrationRepository) SoftDelete(ctx context.Context, id, editorID string, at time.Time) (*models.PendingRegistration, error) {
	inactive := string(models.RegistrationStateInactive)
	reg, _, err := r.ApplyChange(ctx, models.FieldChange{
		RegistrationID: id,
		Field:          models.FieldState,
		Value:          models.FieldValue{Text: &inactive},
		EditorID:       editorID,
		At:             at,
	})
	return reg, err
}

func applyField(reg *models.PendingRegistration, change models.FieldChange) {
	switch change.Field {
	case models.FieldFinalGrade:
		reg.FinalGrade = change.Value.Grade
	case models.FieldClosingGaps:
		reg.ClosingGaps = change.Value.Text
	case models.FieldState:
		if change.Value.Text != nil {
			reg.State = models.RegistrationState(*change.Value.Text)
		}
	default:
		if p, ok := change.Field.Period(); ok {
			reg.SetPeriodValue(p, change.Value.Period)
		}
	}
}

func equalValues(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
