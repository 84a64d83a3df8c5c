package repository

import (
	"context"
	"database/sql"

	"github.com/accordharmony/foundation-api/internal/model"
	"github.com/accordharmony/foundation-api/internal/utils"
)

// DownloadRepo manages token-gated download grants minted by the
// fulfillment pipeline. transaction_id carries a unique index, which
// is what makes fulfillment idempotent under webhook replays.
type DownloadRepo struct{ DB *sql.DB }

func NewDownloadRepo(db *sql.DB) *DownloadRepo { return &DownloadRepo{DB: db} }

const downloadColumns = "id, user_id, transaction_id, product_id, download_token, token_expires_at, watermark_text, watermarked_file_key, max_downloads, download_count, ip_addresses, first_download_at, last_download_at, created_at, updated_at"

// Create inserts a grant. A second grant for the same transaction
// trips the unique index and comes back as ErrDuplicate.
func (r *DownloadRepo) Create(ctx context.Context, d *model.Download) error {
	d.ID = utils.NewID("dl")
	if d.IPAddresses == "" {
		d.IPAddresses = "[]"
	}
	_, err := r.DB.ExecContext(ctx,
		`INSERT INTO downloads (id, user_id, transaction_id, product_id,
			download_token, token_expires_at, watermark_text, max_downloads,
			download_count, ip_addresses, created_at, updated_at)
		 VALUES (?,?,?,?,?,?,?,?,0,?,NOW(),NOW())`,
		d.ID, d.UserID, d.TransactionID, d.ProductID,
		d.DownloadToken, d.TokenExpiresAt, d.WatermarkText, d.MaxDownloads,
		d.IPAddresses)
	if err != nil {
		if isDuplicateKey(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// DownloadDetail joins a grant with the product it unlocks.
type DownloadDetail struct {
	model.Download
	ProductName   string
	SourceFileKey string
	UserEmail     string
	UserFullName  string
}

// FindByToken resolves a raw download token to its grant, product and
// owner. Expiry and count limits are NOT enforced here; the delivery
// service applies policy so it can report the precise failure.
func (r *DownloadRepo) FindByToken(ctx context.Context, token string) (DownloadDetail, error) {
	var d DownloadDetail
	err := r.DB.QueryRowContext(ctx,
		`SELECT d.id, d.user_id, d.transaction_id, d.product_id,
			d.download_token, d.token_expires_at, d.watermark_text,
			d.watermarked_file_key, d.max_downloads, d.download_count,
			d.ip_addresses, d.first_download_at, d.last_download_at,
			d.created_at, d.updated_at,
			p.name, p.file_key, u.email, u.full_name
		 FROM downloads d
		 JOIN products p ON p.id = d.product_id
		 JOIN users u ON u.id = d.user_id
		 WHERE d.download_token = ? LIMIT 1`, token).Scan(
		&d.ID, &d.UserID, &d.TransactionID, &d.ProductID,
		&d.DownloadToken, &d.TokenExpiresAt, &d.WatermarkText,
		&d.WatermarkedFileKey, &d.MaxDownloads, &d.DownloadCount,
		&d.IPAddresses, &d.FirstDownloadAt, &d.LastDownloadAt,
		&d.CreatedAt, &d.UpdatedAt,
		&d.ProductName, &d.SourceFileKey, &d.UserEmail, &d.UserFullName)
	if err == sql.ErrNoRows {
		return DownloadDetail{}, ErrNotFound
	}
	return d, err
}

// IncrementDownload records one successful download: bumps the
// counter, appends the client IP to the JSON list, and stamps the
// first/last timestamps. The WHERE guard keeps the counter from ever
// passing max_downloads under concurrent requests.
func (r *DownloadRepo) IncrementDownload(ctx context.Context, id, clientIP string) (bool, error) {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE downloads
		 SET download_count = download_count + 1,
			 ip_addresses = JSON_ARRAY_APPEND(ip_addresses, '$', ?),
			 first_download_at = COALESCE(first_download_at, NOW()),
			 last_download_at = NOW(),
			 updated_at = NOW()
		 WHERE id = ? AND download_count < max_downloads`,
		clientIP, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// SetWatermarkedKey memoizes the stamped artifact's object key so
// later downloads reuse it instead of re-rendering.
func (r *DownloadRepo) SetWatermarkedKey(ctx context.Context, id, key string) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE downloads SET watermarked_file_key=?, updated_at=NOW() WHERE id=?", key, id)
	return err
}

// FindByTransaction returns the grant minted for a transaction, if
// any. Used by the download-info endpoint.
func (r *DownloadRepo) FindByTransaction(ctx context.Context, transactionID string) (model.Download, error) {
	var d model.Download
	err := r.DB.QueryRowContext(ctx,
		"SELECT "+downloadColumns+" FROM downloads WHERE transaction_id=? LIMIT 1",
		transactionID).Scan(
		&d.ID, &d.UserID, &d.TransactionID, &d.ProductID,
		&d.DownloadToken, &d.TokenExpiresAt, &d.WatermarkText,
		&d.WatermarkedFileKey, &d.MaxDownloads, &d.DownloadCount,
		&d.IPAddresses, &d.FirstDownloadAt, &d.LastDownloadAt,
		&d.CreatedAt, &d.UpdatedAt)
	if err == sql.ErrNoRows {
		return model.Download{}, ErrNotFound
	}
	return d, err
}
