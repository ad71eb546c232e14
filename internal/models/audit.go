package models

import "time"

// PendingAuditEntry is one append-only field mutation record.
type PendingAuditEntry struct {
	ID             string       `db:"id" json:"id"`
	RegistrationID string       `db:"registration_id" json:"registration_id"`
	Field          PendingField `db:"field" json:"field"`
	OldValue       *string      `db:"old_value" json:"old_value,omitempty"`
	NewValue       *string      `db:"new_value" json:"new_value,omitempty"`
	EditorID       string       `db:"editor_id" json:"editor_id"`
	CreatedAt      time.Time    `db:"created_at" json:"created_at"`
}
