package model

import "time"

// Download is a grant of access to one purchased artifact, created
// when a product-purchase transaction completes. The opaque token is
// the only credential needed to download; it is bounded by expiry
// and a maximum use count.
//
// Invariants: DownloadCount <= MaxDownloads at all times, and
// TransactionID is unique so a replayed webhook cannot mint a second
// grant for the same purchase. WatermarkedFileKey is set once, on the
// first download, and reused afterwards.
type Download struct {
	ID                 string     // downloads.id, "dl_" prefixed
	UserID             string     // downloads.user_id
	TransactionID      string     // downloads.transaction_id (UNIQUE)
	ProductID          string     // downloads.product_id
	DownloadToken      string     // downloads.download_token
	TokenExpiresAt     time.Time  // downloads.token_expires_at
	WatermarkText      string     // downloads.watermark_text
	WatermarkedFileKey *string    // downloads.watermarked_file_key (nullable)
	MaxDownloads       int        // downloads.max_downloads
	DownloadCount      int        // downloads.download_count
	IPAddresses        string     // downloads.ip_addresses (JSON array)
	FirstDownloadAt    *time.Time // downloads.first_download_at (nullable)
	LastDownloadAt     *time.Time // downloads.last_download_at (nullable)
	CreatedAt          time.Time  // downloads.created_at
	UpdatedAt          time.Time  // downloads.updated_at
}

// BookPurchase is the direct (unauthenticated) PayPal purchase path's
// record in `book_purchases`. It carries its own token and receipt
// number; the watermarked artifact is produced eagerly at purchase
// time and the token lives 30 days with the same 5-download cap.
type BookPurchase struct {
	ID             string     // book_purchases.id, "bkp_" prefixed
	Email          string     // book_purchases.email
	Name           string     // book_purchases.name
	Language       string     // book_purchases.language ("en","de","fr","bg")
	AmountCents    int64      // book_purchases.amount_cents
	Currency       string     // book_purchases.currency
	PayPalOrderID  string     // book_purchases.paypal_order_id
	DownloadToken  string     // book_purchases.download_token
	ReceiptNumber  string     // book_purchases.receipt_number (AHF-YYYY-NNNN)
	PurchaseDate   time.Time  // book_purchases.purchase_date
	ExpiryDate     time.Time  // book_purchases.expiry_date
	DownloadCount  int        // book_purchases.download_count
	FileKey        string     // book_purchases.file_key (watermarked artifact)
	LastDownloadAt *time.Time // book_purchases.last_download_at (nullable)
}
