package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/pending-subjects-api/internal/models"
)

// SubjectGroupRepository resolves active group memberships.
type SubjectGroupRepository struct {
	db *sqlx.DB
}

// NewSubjectGroupRepository constructs the repository.
func NewSubjectGroupRepository(db *sqlx.DB) *SubjectGroupRepository {
	return &SubjectGroupRepository{db: db}
}

// FindActiveByOffering returns the active group of an offering or sql.ErrNoRows.
// Inactive memberships and inactive groups are ignored.
func (r *SubjectGroupRepository) FindActiveByOffering(ctx context.Context, subjectOfferingID string) (*models.SubjectGroup, error) {
	const query = `SELECT sg.id, sg.name, sg.code, sg.display_order, sg.active
FROM group_memberships gm
JOIN subject_groups sg ON sg.id = gm.group_id
WHERE gm.subject_offering_id = $1 AND gm.active AND sg.active
LIMIT 1`
	var group models.SubjectGroup
	if err := r.db.GetContext(ctx, &group, query, subjectOfferingID); err != nil {
		return nil, err
	}
	return &group, nil
}

type offeringGroupRow struct {
	SubjectOfferingID string `db:"subject_offering_id"`
	models.SubjectGroup
}

// FindActiveByOfferings resolves several offerings at once. Ungrouped offerings are absent from the map.
func (r *SubjectGroupRepository) FindActiveByOfferings(ctx context.Context, subjectOfferingIDs []string) (map[string]models.SubjectGroup, error) {
	result := make(map[string]models.SubjectGroup, len(subjectOfferingIDs))
	if len(subjectOfferingIDs) == 0 {
		return result, nil
	}
	const query = `SELECT gm.subject_offering_id, sg.id, sg.name, sg.code, sg.display_order, sg.active
FROM group_memberships gm
JOIN subject_groups sg ON sg.id = gm.group_id
WHERE gm.subject_offering_id = ANY($1) AND gm.active AND sg.active`
	var rows []offeringGroupRow
	if err := r.db.SelectContext(ctx, &rows, query, pq.Array(subjectOfferingIDs)); err != nil {
		return nil, fmt.Errorf("resolve subject groups: %w", err)
	}
	for _, row := range rows {
		result[row.SubjectOfferingID] = row.SubjectGroup
	}
	return result, nil
}
