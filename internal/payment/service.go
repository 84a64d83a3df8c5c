// Package payment drives the Stripe checkout flow and the webhook
// fulfillment pipeline. Transactions are created pending before the
// buyer is redirected to Stripe; the webhook is the only path that
// completes them.
package payment

import (
	"context"
	"errors"
	"fmt"

	"github.com/stripe/stripe-go/v74"

	"github.com/accordharmony/foundation-api/internal/email"
	"github.com/accordharmony/foundation-api/internal/model"
	"github.com/accordharmony/foundation-api/internal/queue"
	"github.com/accordharmony/foundation-api/internal/repository"
)

// ErrInvalidAmount rejects donation amounts outside the accepted range.
var ErrInvalidAmount = errors.New("invalid amount")

// Donation bounds in minor units: 1.00 to 100,000.00.
const (
	minDonationCents = 100
	maxDonationCents = 10_000_000
)

// Ledger is the transaction-repo surface the service needs.
type Ledger interface {
	Create(ctx context.Context, t *model.Transaction) error
	UpdateStripeInfo(ctx context.Context, id, sessionID string) error
	AttachPaymentRefs(ctx context.Context, id string, intentID, customerID *string) error
	MarkCompleted(ctx context.Context, id string, intentID, customerID *string) (bool, error)
	MarkFailed(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (model.Transaction, error)
	Detail(ctx context.Context, id string) (repository.TransactionDetail, error)
	FindByPaymentIntent(ctx context.Context, intentID string) (model.Transaction, error)
}

// Catalog is the product-repo surface the service needs.
type Catalog interface {
	GetByID(ctx context.Context, id string) (model.Product, error)
	IncrementSales(ctx context.Context, id string) error
}

// Downloads mints download grants. *repository.DownloadRepo satisfies it.
type Downloads interface {
	Create(ctx context.Context, d *model.Download) error
}

// Mailer is the email-service surface fulfillment uses.
type Mailer interface {
	SendPurchaseConfirmation(ctx context.Context, userID, to string, info email.PurchaseInfo) error
	SendDonationReceipt(ctx context.Context, userID, to, name string, amountCents int64, currency string) error
}

// Publisher emits fulfillment events to the broker.
type Publisher func(ctx context.Context, event queue.PurchaseCompletedEvent) error

// Auditor records sensitive actions. *repository.AuditLogRepo satisfies it.
type Auditor interface {
	Create(ctx context.Context, e *model.AuditEntry) error
}

// StripeAPI is the slice of the Stripe client the service calls,
// abstracted so tests can run without network access.
type StripeAPI interface {
	NewCheckoutSession(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
	GetCheckoutSession(id string) (*stripe.CheckoutSession, error)
}

// Service wires the checkout and fulfillment flows together.
type Service struct {
	Ledger      Ledger
	Catalog     Catalog
	Downloads   Downloads
	Mailer      Mailer
	Publish     Publisher
	Audit       Auditor
	Stripe      StripeAPI
	FrontendURL string

	// WebhookSecret verifies inbound event signatures.
	WebhookSecret string
}

// CheckoutResult is what the handlers return to the frontend.
type CheckoutResult struct {
	TransactionID string
	SessionID     string
	CheckoutURL   string
}

// CreateProductCheckout opens a Stripe Checkout session for a catalog
// product. A pending transaction is written first so the webhook
// always finds a row to complete, even if the user abandons the
// session. Currency and amount default to the catalog entry; non-zero
// overrides take precedence so a promotional price can be applied
// per request.
func (s *Service) CreateProductCheckout(ctx context.Context, userID, userEmail, productID, currencyOverride string, amountOverride int64) (CheckoutResult, error) {
	p, err := s.Catalog.GetByID(ctx, productID)
	if err != nil {
		return CheckoutResult{}, err
	}
	currency := p.Currency
	if currencyOverride != "" {
		currency = currencyOverride
	}
	amount := p.PriceCents
	if amountOverride > 0 {
		amount = amountOverride
	}

	tx := model.Transaction{
		UserID:          userID,
		ProductID:       &p.ID,
		AmountCents:     amount,
		Currency:        currency,
		PaymentMethod:   "stripe",
		TransactionType: model.TxTypePurchase,
	}
	if err := s.Ledger.Create(ctx, &tx); err != nil {
		return CheckoutResult{}, err
	}

	params := &stripe.CheckoutSessionParams{
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		ClientReferenceID:  stripe.String(tx.ID),
		CustomerEmail:      stripe.String(userEmail),
		SuccessURL:         stripe.String(s.FrontendURL + "/purchase/success?session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:          stripe.String(s.FrontendURL + "/purchase/cancelled"),
		PaymentIntentData:  &stripe.CheckoutSessionPaymentIntentDataParams{},
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			Quantity: stripe.Int64(1),
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(currency),
				UnitAmount: stripe.Int64(amount),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name:        stripe.String(p.Name),
					Description: stripe.String(p.Description),
				},
			},
		}},
	}
	params.AddMetadata("transaction_id", tx.ID)
	params.AddMetadata("product_id", p.ID)
	params.PaymentIntentData.Metadata = map[string]string{"transaction_id": tx.ID}

	sess, err := s.Stripe.NewCheckoutSession(params)
	if err != nil {
		return CheckoutResult{}, fmt.Errorf("create checkout session: %w", err)
	}
	if err := s.Ledger.UpdateStripeInfo(ctx, tx.ID, sess.ID); err != nil {
		return CheckoutResult{}, err
	}
	return CheckoutResult{TransactionID: tx.ID, SessionID: sess.ID, CheckoutURL: sess.URL}, nil
}

// CreateDonationCheckout opens a Stripe Checkout session for a one-time
// or monthly recurring donation of a caller-chosen amount.
func (s *Service) CreateDonationCheckout(ctx context.Context, userID, userEmail string, amountCents int64, currency string, recurring bool) (CheckoutResult, error) {
	if amountCents < minDonationCents || amountCents > maxDonationCents {
		return CheckoutResult{}, ErrInvalidAmount
	}
	if currency == "" {
		currency = "eur"
	}

	tx := model.Transaction{
		UserID:          userID,
		AmountCents:     amountCents,
		Currency:        currency,
		PaymentMethod:   "stripe",
		TransactionType: model.TxTypeDonation,
		IsRecurring:     recurring,
	}
	if err := s.Ledger.Create(ctx, &tx); err != nil {
		return CheckoutResult{}, err
	}

	mode := stripe.CheckoutSessionModePayment
	priceData := &stripe.CheckoutSessionLineItemPriceDataParams{
		Currency:   stripe.String(currency),
		UnitAmount: stripe.Int64(amountCents),
		ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
			Name: stripe.String("Donation to the Accord and Harmony Foundation"),
		},
	}
	if recurring {
		mode = stripe.CheckoutSessionModeSubscription
		priceData.Recurring = &stripe.CheckoutSessionLineItemPriceDataRecurringParams{
			Interval: stripe.String(string(stripe.PriceRecurringIntervalMonth)),
		}
	}

	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(mode)),
		ClientReferenceID: stripe.String(tx.ID),
		CustomerEmail:     stripe.String(userEmail),
		SuccessURL:        stripe.String(s.FrontendURL + "/donate/success?session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:         stripe.String(s.FrontendURL + "/donate/cancelled"),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			Quantity:  stripe.Int64(1),
			PriceData: priceData,
		}},
	}
	params.AddMetadata("transaction_id", tx.ID)
	if !recurring {
		params.PaymentIntentData = &stripe.CheckoutSessionPaymentIntentDataParams{
			Metadata: map[string]string{"transaction_id": tx.ID},
		}
	}

	sess, err := s.Stripe.NewCheckoutSession(params)
	if err != nil {
		return CheckoutResult{}, fmt.Errorf("create checkout session: %w", err)
	}
	if err := s.Ledger.UpdateStripeInfo(ctx, tx.ID, sess.ID); err != nil {
		return CheckoutResult{}, err
	}
	return CheckoutResult{TransactionID: tx.ID, SessionID: sess.ID, CheckoutURL: sess.URL}, nil
}

// SessionStatus reports a checkout session's payment state, used by
// the success page to poll while the webhook lands.
func (s *Service) SessionStatus(id string) (*stripe.CheckoutSession, error) {
	return s.Stripe.GetCheckoutSession(id)
}
