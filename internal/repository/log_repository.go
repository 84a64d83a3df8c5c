package repository

import (
	"context"
	"database/sql"

	"github.com/accordharmony/foundation-api/internal/model"
	"github.com/accordharmony/foundation-api/internal/utils"
)

// EmailLogRepo records every transactional email attempt.
type EmailLogRepo struct{ DB *sql.DB }

func NewEmailLogRepo(db *sql.DB) *EmailLogRepo { return &EmailLogRepo{DB: db} }

func (r *EmailLogRepo) Create(ctx context.Context, l *model.EmailLog) error {
	l.ID = utils.NewID("eml")
	_, err := r.DB.ExecContext(ctx,
		`INSERT INTO email_logs (id, user_id, email_to, email_type, subject,
			provider, provider_message_id, status, created_at)
		 VALUES (?,?,?,?,?,?,?,?,NOW())`,
		l.ID, l.UserID, l.EmailTo, l.EmailType, l.Subject,
		l.Provider, l.MessageID, l.Status)
	return err
}

// AuditLogRepo is a write-only trail of sensitive actions. Failures
// here are reported but must never abort the action being audited;
// that policy lives in the callers.
type AuditLogRepo struct{ DB *sql.DB }

func NewAuditLogRepo(db *sql.DB) *AuditLogRepo { return &AuditLogRepo{DB: db} }

func (r *AuditLogRepo) Create(ctx context.Context, e *model.AuditEntry) error {
	e.ID = utils.NewID("aud")
	_, err := r.DB.ExecContext(ctx,
		`INSERT INTO audit_logs (id, user_id, action_type, entity_type,
			entity_id, ip_address, user_agent, changes, created_at)
		 VALUES (?,?,?,?,?,?,?,?,NOW())`,
		e.ID, e.UserID, e.ActionType, e.EntityType,
		e.EntityID, e.IPAddress, e.UserAgent, e.Changes)
	return err
}
