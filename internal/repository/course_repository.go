package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/pending-subjects-api/internal/models"
)

// CourseRepository answers course and enrollment lookups.
type CourseRepository struct {
	db *sqlx.DB
}

// NewCourseRepository constructs the repository.
func NewCourseRepository(db *sqlx.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

// FindByID fetches a course.
func (r *CourseRepository) FindByID(ctx context.Context, id string) (*models.Course, error) {
	const query = `SELECT id, name, year, cycle_id FROM courses WHERE id = $1`
	var course models.Course
	if err := r.db.GetContext(ctx, &course, query, id); err != nil {
		return nil, err
	}
	return &course, nil
}

// FindCurrentForStudent returns the course of the student's active enrollment, or sql.ErrNoRows.
func (r *CourseRepository) FindCurrentForStudent(ctx context.Context, studentID string) (*models.Course, error) {
	const query = `SELECT co.id, co.name, co.year, co.cycle_id
FROM enrollments e
JOIN courses co ON co.id = e.course_id
WHERE e.student_id = $1 AND e.state = 'active'
ORDER BY e.enrolled_at DESC
LIMIT 1`
	var course models.Course
	if err := r.db.GetContext(ctx, &course, query, studentID); err != nil {
		return nil, err
	}
	return &course, nil
}

// StudentExists reports whether the student record exists.
func (r *CourseRepository) StudentExists(ctx context.Context, studentID string) (bool, error) {
	const query = `SELECT 1 FROM students WHERE id = $1 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, studentID); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check student: %w", err)
	}
	return true, nil
}

// ListActiveStudents returns students with an active enrollment, ordered by surname.
func (r *CourseRepository) ListActiveStudents(ctx context.Context, courseID string) ([]models.CourseStudent, error) {
	const query = `SELECT st.id, st.first_name, st.last_name, st.document_id
FROM enrollments e
JOIN students st ON st.id = e.student_id
WHERE e.course_id = $1 AND e.state = 'active'
ORDER BY st.last_name ASC, st.first_name ASC`
	students := []models.CourseStudent{}
	if err := r.db.SelectContext(ctx, &students, query, courseID); err != nil {
		return nil, fmt.Errorf("list course students: %w", err)
	}
	return students, nil
}
