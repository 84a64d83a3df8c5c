package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/accordharmony/foundation-api/internal/utils"
)

// NewsletterRepo stores newsletter signups. Subscribing an address
// that is already present is a silent success.
type NewsletterRepo struct{ DB *sql.DB }

func NewNewsletterRepo(db *sql.DB) *NewsletterRepo { return &NewsletterRepo{DB: db} }

func (r *NewsletterRepo) Subscribe(ctx context.Context, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	_, err := r.DB.ExecContext(ctx,
		`INSERT INTO newsletter_subscribers (id, email, subscribed_at)
		 VALUES (?,?,NOW())`,
		utils.NewID("nws"), email)
	if err != nil && isDuplicateKey(err) {
		return nil
	}
	return err
}
