package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/accordharmony/foundation-api/internal/middleware"
	"github.com/accordharmony/foundation-api/internal/model"
	"github.com/accordharmony/foundation-api/internal/payment"
	"github.com/accordharmony/foundation-api/internal/repository"
)

// stripeTimeout bounds handler-side Stripe calls; the SDK has its own
// retry budget on top.
const stripeTimeout = 15 * time.Second

// TransactionStore is the ledger surface the read endpoints use.
type TransactionStore interface {
	GetByID(ctx context.Context, id string) (model.Transaction, error)
	ListForUser(ctx context.Context, userID string) ([]model.Transaction, error)
}

// CheckoutHandler opens Stripe Checkout sessions and reports
// transaction state back to the frontend.
type CheckoutHandler struct {
	Payments     *payment.Service
	Transactions TransactionStore
}

type productCheckoutReq struct {
	ProductID string `json:"productId"`
	Currency  string `json:"currency"` // optional override
	Amount    int64  `json:"amount"`   // optional override, minor units
}
type donationCheckoutReq struct {
	Amount    int64  `json:"amount"` // minor units
	Currency  string `json:"currency"`
	Recurring bool   `json:"recurring"`
}

func checkoutData(res payment.CheckoutResult) echo.Map {
	return echo.Map{
		"sessionId":     res.SessionID,
		"sessionUrl":    res.CheckoutURL,
		"transactionId": res.TransactionID,
	}
}

// CreateProductCheckout starts a purchase of a catalog product.
func (h *CheckoutHandler) CreateProductCheckout(c echo.Context) error {
	u, okUser := middleware.CurrentUser(c)
	if !okUser {
		return fail(c, http.StatusUnauthorized, "Authentication required")
	}
	var req productCheckoutReq
	if err := c.Bind(&req); err != nil || req.ProductID == "" {
		return badRequest(c, "productId is required")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), stripeTimeout)
	defer cancel()

	res, err := h.Payments.CreateProductCheckout(ctx, u.ID, u.Email, req.ProductID, req.Currency, req.Amount)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fail(c, http.StatusNotFound, "Product not found")
		}
		c.Logger().Errorf("checkout: product session failed: %v", err)
		return fail(c, http.StatusBadGateway, "Could not start checkout")
	}
	return ok(c, http.StatusCreated, "Checkout session created", checkoutData(res))
}

// CreateDonationCheckout starts a one-time or monthly donation.
func (h *CheckoutHandler) CreateDonationCheckout(c echo.Context) error {
	u, okUser := middleware.CurrentUser(c)
	if !okUser {
		return fail(c, http.StatusUnauthorized, "Authentication required")
	}
	var req donationCheckoutReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), stripeTimeout)
	defer cancel()

	res, err := h.Payments.CreateDonationCheckout(ctx, u.ID, u.Email, req.Amount, req.Currency, req.Recurring)
	if err != nil {
		if errors.Is(err, payment.ErrInvalidAmount) {
			return badRequest(c, "Donation amount out of range")
		}
		c.Logger().Errorf("checkout: donation session failed: %v", err)
		return fail(c, http.StatusBadGateway, "Could not start checkout")
	}
	return ok(c, http.StatusCreated, "Checkout session created", checkoutData(res))
}

// SessionStatus lets the success page poll the payment state of a
// checkout session while the webhook settles the transaction.
func (h *CheckoutHandler) SessionStatus(c echo.Context) error {
	if _, okUser := middleware.CurrentUser(c); !okUser {
		return fail(c, http.StatusUnauthorized, "Authentication required")
	}
	sess, err := h.Payments.SessionStatus(c.Param("id"))
	if err != nil {
		return fail(c, http.StatusNotFound, "Session not found")
	}
	return ok(c, http.StatusOK, "", echo.Map{
		"sessionId":     sess.ID,
		"paymentStatus": sess.PaymentStatus,
		"status":        sess.Status,
	})
}

type transactionPart struct {
	ID              string     `json:"id"`
	ProductID       *string    `json:"product_id,omitempty"`
	AmountCents     int64      `json:"amount_cents"`
	Currency        string     `json:"currency"`
	PaymentMethod   string     `json:"payment_method"`
	PaymentStatus   string     `json:"payment_status"`
	TransactionType string     `json:"transaction_type"`
	IsRecurring     bool       `json:"is_recurring"`
	CreatedAt       time.Time  `json:"created_at"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
}

func toTransactionPart(t model.Transaction) transactionPart {
	return transactionPart{
		ID:              t.ID,
		ProductID:       t.ProductID,
		AmountCents:     t.AmountCents,
		Currency:        t.Currency,
		PaymentMethod:   t.PaymentMethod,
		PaymentStatus:   t.PaymentStatus,
		TransactionType: t.TransactionType,
		IsRecurring:     t.IsRecurring,
		CreatedAt:       t.CreatedAt,
		CompletedAt:     t.CompletedAt,
	}
}

// ListTransactions returns the caller's payment history.
func (h *CheckoutHandler) ListTransactions(c echo.Context) error {
	u, okUser := middleware.CurrentUser(c)
	if !okUser {
		return fail(c, http.StatusUnauthorized, "Authentication required")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	txns, err := h.Transactions.ListForUser(ctx, u.ID)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "Could not load transactions")
	}
	out := make([]transactionPart, 0, len(txns))
	for _, t := range txns {
		out = append(out, toTransactionPart(t))
	}
	return ok(c, http.StatusOK, "", out)
}

// GetTransaction returns one transaction, owner-only.
func (h *CheckoutHandler) GetTransaction(c echo.Context) error {
	u, okUser := middleware.CurrentUser(c)
	if !okUser {
		return fail(c, http.StatusUnauthorized, "Authentication required")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	t, err := h.Transactions.GetByID(ctx, c.Param("id"))
	if err != nil || t.UserID != u.ID {
		// ownership failures look identical to missing rows
		return fail(c, http.StatusNotFound, "Transaction not found")
	}
	return ok(c, http.StatusOK, "", toTransactionPart(t))
}
