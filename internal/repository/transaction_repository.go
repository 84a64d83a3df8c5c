package repository

import (
	"context"
	"database/sql"

	"github.com/accordharmony/foundation-api/internal/model"
	"github.com/accordharmony/foundation-api/internal/utils"
)

// TransactionRepo is the payment ledger. Rows are created pending
// before the user ever reaches the payment provider, and completed by
// the webhook; MarkCompleted is guarded so a replayed webhook cannot
// complete the same row twice.
type TransactionRepo struct{ DB *sql.DB }

func NewTransactionRepo(db *sql.DB) *TransactionRepo { return &TransactionRepo{DB: db} }

const txColumns = "id, user_id, product_id, amount_cents, currency, payment_method, payment_status, transaction_type, is_recurring, stripe_session_id, stripe_payment_intent_id, stripe_customer_id, created_at, updated_at, completed_at"

func (r *TransactionRepo) Create(ctx context.Context, t *model.Transaction) error {
	t.ID = utils.NewID("txn")
	t.PaymentStatus = model.TxPending
	_, err := r.DB.ExecContext(ctx,
		`INSERT INTO transactions (id, user_id, product_id, amount_cents, currency,
			payment_method, payment_status, transaction_type, is_recurring,
			created_at, updated_at)
		 VALUES (?,?,?,?,?,?,?,?,?,NOW(),NOW())`,
		t.ID, t.UserID, t.ProductID, t.AmountCents, t.Currency,
		t.PaymentMethod, t.PaymentStatus, t.TransactionType, t.IsRecurring)
	return err
}

// UpdateStripeInfo attaches the checkout session id once Stripe has
// allocated one.
func (r *TransactionRepo) UpdateStripeInfo(ctx context.Context, id, sessionID string) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE transactions SET stripe_session_id=?, updated_at=NOW() WHERE id=?",
		sessionID, id)
	return err
}

// AttachPaymentRefs records the payment-intent and customer ids from
// a finished checkout session without touching payment_status; the
// payment-intent events settle the transaction.
func (r *TransactionRepo) AttachPaymentRefs(ctx context.Context, id string, intentID, customerID *string) error {
	_, err := r.DB.ExecContext(ctx,
		`UPDATE transactions
		 SET stripe_payment_intent_id=COALESCE(?, stripe_payment_intent_id),
			 stripe_customer_id=COALESCE(?, stripe_customer_id),
			 updated_at=NOW()
		 WHERE id=?`,
		intentID, customerID, id)
	return err
}

// MarkCompleted transitions pending -> completed and records the
// provider references. Returns true only when this call performed the
// transition; a second webhook for the same transaction gets false.
func (r *TransactionRepo) MarkCompleted(ctx context.Context, id string, intentID, customerID *string) (bool, error) {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE transactions
		 SET payment_status=?,
			 stripe_payment_intent_id=COALESCE(?, stripe_payment_intent_id),
			 stripe_customer_id=COALESCE(?, stripe_customer_id),
			 completed_at=NOW(), updated_at=NOW()
		 WHERE id=? AND payment_status=?`,
		model.TxCompleted, intentID, customerID, id, model.TxPending)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r *TransactionRepo) MarkFailed(ctx context.Context, id string) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE transactions SET payment_status=?, updated_at=NOW() WHERE id=? AND payment_status=?",
		model.TxFailed, id, model.TxPending)
	return err
}

func (r *TransactionRepo) scanRow(row *sql.Row) (model.Transaction, error) {
	var t model.Transaction
	err := row.Scan(
		&t.ID, &t.UserID, &t.ProductID, &t.AmountCents, &t.Currency,
		&t.PaymentMethod, &t.PaymentStatus, &t.TransactionType, &t.IsRecurring,
		&t.StripeSessionID, &t.StripeIntentID, &t.StripeCustomer,
		&t.CreatedAt, &t.UpdatedAt, &t.CompletedAt)
	if err == sql.ErrNoRows {
		return model.Transaction{}, ErrNotFound
	}
	return t, err
}

func (r *TransactionRepo) GetByID(ctx context.Context, id string) (model.Transaction, error) {
	return r.scanRow(r.DB.QueryRowContext(ctx,
		"SELECT "+txColumns+" FROM transactions WHERE id=? LIMIT 1", id))
}

// FindByPaymentIntent locates the transaction a payment_intent webhook
// refers to when the event carries no transaction metadata.
func (r *TransactionRepo) FindByPaymentIntent(ctx context.Context, intentID string) (model.Transaction, error) {
	return r.scanRow(r.DB.QueryRowContext(ctx,
		"SELECT "+txColumns+" FROM transactions WHERE stripe_payment_intent_id=? LIMIT 1", intentID))
}

// TransactionDetail joins the ledger row with the buyer and product
// for fulfillment and receipts.
type TransactionDetail struct {
	model.Transaction
	UserEmail    string
	UserFullName string
	ProductName  string
	FileKey      string
}

func (r *TransactionRepo) Detail(ctx context.Context, id string) (TransactionDetail, error) {
	var d TransactionDetail
	err := r.DB.QueryRowContext(ctx,
		`SELECT t.id, t.user_id, t.product_id, t.amount_cents, t.currency,
			t.payment_method, t.payment_status, t.transaction_type, t.is_recurring,
			t.stripe_session_id, t.stripe_payment_intent_id, t.stripe_customer_id,
			t.created_at, t.updated_at, t.completed_at,
			u.email, u.full_name,
			COALESCE(p.name, ''), COALESCE(p.file_key, '')
		 FROM transactions t
		 JOIN users u ON u.id = t.user_id
		 LEFT JOIN products p ON p.id = t.product_id
		 WHERE t.id=? LIMIT 1`, id).Scan(
		&d.ID, &d.UserID, &d.ProductID, &d.AmountCents, &d.Currency,
		&d.PaymentMethod, &d.PaymentStatus, &d.TransactionType, &d.IsRecurring,
		&d.StripeSessionID, &d.StripeIntentID, &d.StripeCustomer,
		&d.CreatedAt, &d.UpdatedAt, &d.CompletedAt,
		&d.UserEmail, &d.UserFullName, &d.ProductName, &d.FileKey)
	if err == sql.ErrNoRows {
		return TransactionDetail{}, ErrNotFound
	}
	return d, err
}

func (r *TransactionRepo) ListForUser(ctx context.Context, userID string) ([]model.Transaction, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+txColumns+" FROM transactions WHERE user_id=? ORDER BY created_at DESC", userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Transaction
	for rows.Next() {
		var t model.Transaction
		if err := rows.Scan(
			&t.ID, &t.UserID, &t.ProductID, &t.AmountCents, &t.Currency,
			&t.PaymentMethod, &t.PaymentStatus, &t.TransactionType, &t.IsRecurring,
			&t.StripeSessionID, &t.StripeIntentID, &t.StripeCustomer,
			&t.CreatedAt, &t.UpdatedAt, &t.CompletedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
