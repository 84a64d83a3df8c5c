package model

import "time"

// Transaction status values. A transaction is created pending and
// transitions to completed or failed exactly once, driven by a
// processor webhook. Terminal states are never revisited.
const (
	TxPending   = "pending"
	TxCompleted = "completed"
	TxFailed    = "failed"
)

// Transaction type values.
const (
	TxTypePurchase = "product_purchase"
	TxTypeDonation = "donation"
)

// Transaction records one payment attempt in the `transactions`
// table, independent of whether it succeeds. ProductID is nil for
// pure donations. The Stripe identifiers are captured as the
// checkout flow progresses so the webhook can correlate back.
type Transaction struct {
	ID              string     // transactions.id, "txn_" prefixed
	UserID          string     // transactions.user_id
	ProductID       *string    // transactions.product_id (nullable)
	AmountCents     int64      // transactions.amount_cents
	Currency        string     // transactions.currency
	PaymentMethod   string     // transactions.payment_method ("stripe", "paypal")
	PaymentStatus   string     // transactions.payment_status
	TransactionType string     // transactions.transaction_type
	IsRecurring     bool       // transactions.is_recurring
	StripeSessionID *string    // transactions.stripe_session_id (nullable)
	StripeIntentID  *string    // transactions.stripe_payment_intent_id (nullable)
	StripeCustomer  *string    // transactions.stripe_customer_id (nullable)
	CreatedAt       time.Time  // transactions.created_at
	UpdatedAt       time.Time  // transactions.updated_at
	CompletedAt     *time.Time // transactions.completed_at (nullable)
}
