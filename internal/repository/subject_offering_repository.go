package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/pending-subjects-api/internal/models"
)

// SubjectOfferingRepository reads subject offerings owned by the course catalogue.
type SubjectOfferingRepository struct {
	db *sqlx.DB
}

// NewSubjectOfferingRepository constructs the repository.
func NewSubjectOfferingRepository(db *sqlx.DB) *SubjectOfferingRepository {
	return &SubjectOfferingRepository{db: db}
}

// FindByID fetches an offering with its course name.
func (r *SubjectOfferingRepository) FindByID(ctx context.Context, id string) (*models.SubjectOffering, error) {
	const query = `SELECT so.id, so.name, so.code, so.course_id, co.name AS course_name
FROM subject_offerings so
JOIN courses co ON co.id = so.course_id
WHERE so.id = $1`
	var offering models.SubjectOffering
	if err := r.db.GetContext(ctx, &offering, query, id); err != nil {
		return nil, err
	}
	return &offering, nil
}

// HasSubjectAccess reports whether the teacher is one of the offering's professors.
func (r *SubjectOfferingRepository) HasSubjectAccess(ctx context.Context, teacherID, subjectOfferingID string) (bool, error) {
	const query = `SELECT 1 FROM subject_offerings
WHERE id = $1 AND (professor_id = $2 OR professor_id_2 = $2 OR professor_id_3 = $2) LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, subjectOfferingID, teacherID); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check subject access: %w", err)
	}
	return true, nil
}
