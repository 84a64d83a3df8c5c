package model

import "time"

// Audit action types recorded in `audit_logs`.
const (
	ActionLogin             = "login"
	ActionLogout            = "logout"
	ActionOAuthLogin        = "oauth_login"
	ActionPurchaseCompleted = "purchase_completed"
	ActionDonationCompleted = "donation_completed"
	ActionPaymentFailed     = "payment_failed"
	ActionDownload          = "download"
)

// AuditEntry is a write-only diagnostic record of a sensitive action.
// Changes holds an optional JSON blob describing what happened.
type AuditEntry struct {
	ID         string    // audit_logs.id, "aud_" prefixed
	UserID     *string   // audit_logs.user_id (nullable)
	ActionType string    // audit_logs.action_type
	EntityType string    // audit_logs.entity_type
	EntityID   string    // audit_logs.entity_id
	IPAddress  *string   // audit_logs.ip_address (nullable)
	UserAgent  *string   // audit_logs.user_agent (nullable)
	Changes    *string   // audit_logs.changes (nullable JSON)
	CreatedAt  time.Time // audit_logs.created_at
}

// EmailLog records one attempted transactional email, regardless of
// whether the provider accepted it.
type EmailLog struct {
	ID        string    // email_logs.id, "eml_" prefixed
	UserID    *string   // email_logs.user_id (nullable)
	EmailTo   string    // email_logs.email_to
	EmailType string    // email_logs.email_type ("welcome", "purchase_confirmation", ...)
	Subject   string    // email_logs.subject
	Provider  string    // email_logs.provider ("resend")
	MessageID *string   // email_logs.provider_message_id (nullable)
	Status    string    // email_logs.status ("sent" or "failed")
	CreatedAt time.Time // email_logs.created_at
}
