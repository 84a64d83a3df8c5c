package repository

import (
	"context"
	"database/sql"

	"github.com/accordharmony/foundation-api/internal/model"
	"github.com/accordharmony/foundation-api/internal/utils"
)

// BookPurchaseRepo stores direct (PayPal, no account) book purchases.
// Each row carries its own download token and a pre-watermarked file
// key; the artifact is produced eagerly at purchase time.
type BookPurchaseRepo struct{ DB *sql.DB }

func NewBookPurchaseRepo(db *sql.DB) *BookPurchaseRepo { return &BookPurchaseRepo{DB: db} }

const bookPurchaseColumns = "id, email, name, language, amount_cents, currency, paypal_order_id, download_token, receipt_number, purchase_date, expiry_date, download_count, file_key, last_download_at"

func (r *BookPurchaseRepo) Create(ctx context.Context, p *model.BookPurchase) error {
	p.ID = utils.NewID("bkp")
	_, err := r.DB.ExecContext(ctx,
		`INSERT INTO book_purchases (id, email, name, language, amount_cents,
			currency, paypal_order_id, download_token, receipt_number,
			purchase_date, expiry_date, download_count, file_key)
		 VALUES (?,?,?,?,?,?,?,?,?,?,?,0,?)`,
		p.ID, p.Email, p.Name, p.Language, p.AmountCents,
		p.Currency, p.PayPalOrderID, p.DownloadToken, p.ReceiptNumber,
		p.PurchaseDate, p.ExpiryDate, p.FileKey)
	if err != nil && isDuplicateKey(err) {
		return ErrDuplicate
	}
	return err
}

func (r *BookPurchaseRepo) scanRow(row *sql.Row) (model.BookPurchase, error) {
	var p model.BookPurchase
	err := row.Scan(
		&p.ID, &p.Email, &p.Name, &p.Language, &p.AmountCents, &p.Currency,
		&p.PayPalOrderID, &p.DownloadToken, &p.ReceiptNumber,
		&p.PurchaseDate, &p.ExpiryDate, &p.DownloadCount, &p.FileKey,
		&p.LastDownloadAt)
	if err == sql.ErrNoRows {
		return model.BookPurchase{}, ErrNotFound
	}
	return p, err
}

func (r *BookPurchaseRepo) FindByToken(ctx context.Context, token string) (model.BookPurchase, error) {
	return r.scanRow(r.DB.QueryRowContext(ctx,
		"SELECT "+bookPurchaseColumns+" FROM book_purchases WHERE download_token=? LIMIT 1", token))
}

// FindByOrderID makes direct purchase recording idempotent per PayPal
// order: a retried confirmation returns the original row.
func (r *BookPurchaseRepo) FindByOrderID(ctx context.Context, orderID string) (model.BookPurchase, error) {
	return r.scanRow(r.DB.QueryRowContext(ctx,
		"SELECT "+bookPurchaseColumns+" FROM book_purchases WHERE paypal_order_id=? LIMIT 1", orderID))
}

// IncrementDownload counts one download, capped at the limit.
func (r *BookPurchaseRepo) IncrementDownload(ctx context.Context, id string, max int) (bool, error) {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE book_purchases
		 SET download_count = download_count + 1, last_download_at = NOW()
		 WHERE id = ? AND download_count < ?`, id, max)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}
