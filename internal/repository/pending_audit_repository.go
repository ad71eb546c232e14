package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/pending-subjects-api/internal/models"
)

// PendingAuditRepository reads the append-only field history of pending registrations.
type PendingAuditRepository struct {
	db *sqlx.DB
}

// NewPendingAuditRepository constructs the repository.
func NewPendingAuditRepository(db *sqlx.DB) *PendingAuditRepository {
	return &PendingAuditRepository{db: db}
}

// ListByRegistration returns entries oldest first.
func (r *PendingAuditRepository) ListByRegistration(ctx context.Context, registrationID string) ([]models.PendingAuditEntry, error) {
	const query = `SELECT id, registration_id, field, old_value, new_value, editor_id, created_at
FROM pending_audit_entries WHERE registration_id = $1 ORDER BY created_at ASC, id ASC`
	entries := []models.PendingAuditEntry{}
	if err := r.db.SelectContext(ctx, &entries, query, registrationID); err != nil {
		return nil, fmt.Errorf("list pending audit entries: %w", err)
	}
	return entries, nil
}

// insertAuditEntry appends an entry inside the caller's transaction.
func insertAuditEntry(ctx context.Context, ext sqlx.ExtContext, entry *models.PendingAuditEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO pending_audit_entries (id, registration_id, field, old_value, new_value, editor_id, created_at)
VALUES (:id, :registration_id, :field, :old_value, :new_value, :editor_id, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, ext, query, entry); err != nil {
		return fmt.Errorf("insert pending audit entry: %w", err)
	}
	return nil
}
