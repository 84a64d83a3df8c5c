package payment

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v74"

	"github.com/accordharmony/foundation-api/internal/email"
	"github.com/accordharmony/foundation-api/internal/model"
	"github.com/accordharmony/foundation-api/internal/queue"
	"github.com/accordharmony/foundation-api/internal/repository"
)

// fakeLedger mirrors the guarded-transition semantics of the real
// transaction repo: MarkCompleted succeeds only once per transaction.
type fakeLedger struct {
	txns        map[string]*model.Transaction
	details     map[string]repository.TransactionDetail
	byIntent    map[string]string
	created     []*model.Transaction
	sessions    map[string]string
	markedFails []string
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		txns:     map[string]*model.Transaction{},
		details:  map[string]repository.TransactionDetail{},
		byIntent: map[string]string{},
		sessions: map[string]string{},
	}
}

func (f *fakeLedger) Create(_ context.Context, t *model.Transaction) error {
	if t.ID == "" {
		t.ID = "txn_new"
	}
	t.PaymentStatus = model.TxPending
	f.txns[t.ID] = t
	f.created = append(f.created, t)
	return nil
}

func (f *fakeLedger) UpdateStripeInfo(_ context.Context, id, sessionID string) error {
	f.sessions[id] = sessionID
	return nil
}

func (f *fakeLedger) AttachPaymentRefs(_ context.Context, id string, intentID, customerID *string) error {
	t, ok := f.txns[id]
	if !ok {
		return nil
	}
	if intentID != nil {
		t.StripeIntentID = intentID
		f.byIntent[*intentID] = id
	}
	if customerID != nil {
		t.StripeCustomer = customerID
	}
	return nil
}

func (f *fakeLedger) MarkCompleted(_ context.Context, id string, intentID, customerID *string) (bool, error) {
	t, ok := f.txns[id]
	if !ok {
		return false, repository.ErrNotFound
	}
	if t.PaymentStatus != model.TxPending {
		return false, nil
	}
	t.PaymentStatus = model.TxCompleted
	if intentID != nil {
		t.StripeIntentID = intentID
	}
	if customerID != nil {
		t.StripeCustomer = customerID
	}
	return true, nil
}

func (f *fakeLedger) MarkFailed(_ context.Context, id string) error {
	t, ok := f.txns[id]
	if !ok || t.PaymentStatus != model.TxPending {
		return nil
	}
	t.PaymentStatus = model.TxFailed
	f.markedFails = append(f.markedFails, id)
	return nil
}

func (f *fakeLedger) GetByID(_ context.Context, id string) (model.Transaction, error) {
	t, ok := f.txns[id]
	if !ok {
		return model.Transaction{}, repository.ErrNotFound
	}
	return *t, nil
}

func (f *fakeLedger) Detail(_ context.Context, id string) (repository.TransactionDetail, error) {
	d, ok := f.details[id]
	if !ok {
		return repository.TransactionDetail{}, repository.ErrNotFound
	}
	return d, nil
}

func (f *fakeLedger) FindByPaymentIntent(_ context.Context, intentID string) (model.Transaction, error) {
	id, ok := f.byIntent[intentID]
	if !ok {
		return model.Transaction{}, repository.ErrNotFound
	}
	return *f.txns[id], nil
}

type fakeCatalog struct {
	products map[string]model.Product
	sales    []string
}

func (f *fakeCatalog) GetByID(_ context.Context, id string) (model.Product, error) {
	p, ok := f.products[id]
	if !ok {
		return model.Product{}, repository.ErrNotFound
	}
	return p, nil
}

func (f *fakeCatalog) IncrementSales(_ context.Context, id string) error {
	f.sales = append(f.sales, id)
	return nil
}

// fakeDownloads enforces the one-grant-per-transaction constraint.
type fakeDownloads struct {
	grants []model.Download
	seen   map[string]bool
}

func (f *fakeDownloads) Create(_ context.Context, d *model.Download) error {
	if f.seen == nil {
		f.seen = map[string]bool{}
	}
	if f.seen[d.TransactionID] {
		return repository.ErrDuplicate
	}
	f.seen[d.TransactionID] = true
	d.ID = "dl_test"
	f.grants = append(f.grants, *d)
	return nil
}

type fakeMailer struct {
	purchases []email.PurchaseInfo
	donations []int64
	failMail  bool
}

func (f *fakeMailer) SendPurchaseConfirmation(_ context.Context, _, _ string, info email.PurchaseInfo) error {
	if f.failMail {
		return errors.New("provider down")
	}
	f.purchases = append(f.purchases, info)
	return nil
}

func (f *fakeMailer) SendDonationReceipt(_ context.Context, _, _, _ string, amountCents int64, _ string) error {
	f.donations = append(f.donations, amountCents)
	return nil
}

type fakeAuditor struct {
	entries []model.AuditEntry
}

func (f *fakeAuditor) Create(_ context.Context, e *model.AuditEntry) error {
	f.entries = append(f.entries, *e)
	return nil
}

type fakeStripe struct {
	lastParams *stripe.CheckoutSessionParams
	session    *stripe.CheckoutSession
	fail       bool
}

func (f *fakeStripe) NewCheckoutSession(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	if f.fail {
		return nil, errors.New("stripe unavailable")
	}
	f.lastParams = params
	if f.session == nil {
		f.session = &stripe.CheckoutSession{ID: "cs_test_1", URL: "https://checkout.stripe.com/pay/cs_test_1"}
	}
	return f.session, nil
}

func (f *fakeStripe) GetCheckoutSession(id string) (*stripe.CheckoutSession, error) {
	return &stripe.CheckoutSession{ID: id, PaymentStatus: stripe.CheckoutSessionPaymentStatusPaid}, nil
}

type testEnv struct {
	svc       *Service
	ledger    *fakeLedger
	catalog   *fakeCatalog
	downloads *fakeDownloads
	mailer    *fakeMailer
	audit     *fakeAuditor
	stripeAPI *fakeStripe
	published []queue.PurchaseCompletedEvent
}

func newTestEnv() *testEnv {
	env := &testEnv{
		ledger:    newFakeLedger(),
		catalog:   &fakeCatalog{products: map[string]model.Product{}},
		downloads: &fakeDownloads{},
		mailer:    &fakeMailer{},
		audit:     &fakeAuditor{},
		stripeAPI: &fakeStripe{},
	}
	env.svc = &Service{
		Ledger:    env.ledger,
		Catalog:   env.catalog,
		Downloads: env.downloads,
		Mailer:    env.mailer,
		Audit:     env.audit,
		Stripe:    env.stripeAPI,
		Publish: func(_ context.Context, evt queue.PurchaseCompletedEvent) error {
			env.published = append(env.published, evt)
			return nil
		},
		FrontendURL:   "https://example.org",
		WebhookSecret: "whsec_test",
	}
	return env
}

// seedPurchase installs a pending product purchase the webhook can
// complete.
func (env *testEnv) seedPurchase(txnID string) {
	productID := "prd_book"
	tx := &model.Transaction{
		ID:              txnID,
		UserID:          "usr_1",
		ProductID:       &productID,
		AmountCents:     1999,
		Currency:        "eur",
		PaymentMethod:   "stripe",
		PaymentStatus:   model.TxPending,
		TransactionType: model.TxTypePurchase,
	}
	env.ledger.txns[txnID] = tx
	env.ledger.details[txnID] = repository.TransactionDetail{
		Transaction:  *tx,
		UserEmail:    "ann@example.com",
		UserFullName: "Ann Reader",
		ProductName:  "The Harmony Principle",
		FileKey:      "books/master.pdf",
	}
	env.catalog.products[productID] = model.Product{ID: productID, Name: "The Harmony Principle", PriceCents: 1999, Currency: "eur"}
}

func checkoutCompletedEvent(txnID, mode string) stripe.Event {
	raw, _ := json.Marshal(map[string]any{
		"id":                  "cs_test_1",
		"mode":                mode,
		"client_reference_id": txnID,
		"payment_intent":      map[string]any{"id": "pi_1"},
		"customer":            map[string]any{"id": "cus_1"},
	})
	return stripe.Event{Type: "checkout.session.completed", Data: &stripe.EventData{Raw: raw}}
}

func paymentIntentEvent(evType, intentID, txnID string) stripe.Event {
	payload := map[string]any{"id": intentID}
	if txnID != "" {
		payload["metadata"] = map[string]string{"transaction_id": txnID}
	}
	raw, _ := json.Marshal(payload)
	return stripe.Event{Type: evType, Data: &stripe.EventData{Raw: raw}}
}

func TestCheckoutCompletedAttachesRefsWithoutFulfilling(t *testing.T) {
	env := newTestEnv()
	env.seedPurchase("txn_1")

	require.NoError(t, env.svc.HandleEvent(context.Background(), checkoutCompletedEvent("txn_1", "payment")))

	// checkout finishing is not payment succeeding: the provider refs
	// land on the row, but nothing is delivered yet
	tx := env.ledger.txns["txn_1"]
	require.Equal(t, model.TxPending, tx.PaymentStatus)
	require.NotNil(t, tx.StripeIntentID)
	require.Equal(t, "pi_1", *tx.StripeIntentID)
	require.NotNil(t, tx.StripeCustomer)
	require.Equal(t, "cus_1", *tx.StripeCustomer)
	require.Empty(t, env.downloads.grants)
	require.Empty(t, env.mailer.purchases)
	require.Empty(t, env.published)
}

func TestPaymentIntentSucceededFulfillsPurchase(t *testing.T) {
	env := newTestEnv()
	env.seedPurchase("txn_1")

	require.NoError(t, env.svc.HandleEvent(context.Background(), checkoutCompletedEvent("txn_1", "payment")))
	require.NoError(t, env.svc.HandleEvent(context.Background(),
		paymentIntentEvent("payment_intent.succeeded", "pi_1", "txn_1")))

	// transaction settled with the intent and customer recorded
	tx := env.ledger.txns["txn_1"]
	require.Equal(t, model.TxCompleted, tx.PaymentStatus)
	require.NotNil(t, tx.StripeIntentID)
	require.Equal(t, "pi_1", *tx.StripeIntentID)
	require.NotNil(t, tx.StripeCustomer)
	require.Equal(t, "cus_1", *tx.StripeCustomer)

	// grant minted with a fresh 64-char token and the email-flow policy
	require.Len(t, env.downloads.grants, 1)
	grant := env.downloads.grants[0]
	require.Equal(t, "txn_1", grant.TransactionID)
	require.Len(t, grant.DownloadToken, 64)
	require.Equal(t, 5, grant.MaxDownloads)
	require.Contains(t, grant.WatermarkText, "Ann Reader")

	// confirmation mail carries the same token
	require.Len(t, env.mailer.purchases, 1)
	require.Equal(t, grant.DownloadToken, env.mailer.purchases[0].DownloadToken)
	require.Equal(t, 24, env.mailer.purchases[0].ExpiresHours)

	// sales counter, queue event and audit entry
	require.Equal(t, []string{"prd_book"}, env.catalog.sales)
	require.Len(t, env.published, 1)
	require.Equal(t, "txn_1", env.published[0].TransactionID)
	require.Equal(t, model.TxTypePurchase, env.published[0].Type)
	require.Len(t, env.audit.entries, 1)
	require.Equal(t, model.ActionPurchaseCompleted, env.audit.entries[0].ActionType)
}

func TestWebhookReplayDoesNotRefulfill(t *testing.T) {
	env := newTestEnv()
	env.seedPurchase("txn_1")

	ev := paymentIntentEvent("payment_intent.succeeded", "pi_1", "txn_1")
	require.NoError(t, env.svc.HandleEvent(context.Background(), ev))
	require.NoError(t, env.svc.HandleEvent(context.Background(), ev))

	require.Len(t, env.downloads.grants, 1)
	require.Len(t, env.mailer.purchases, 1)
	require.Len(t, env.published, 1)
}

func TestFailedAsyncPaymentAfterCheckout(t *testing.T) {
	env := newTestEnv()
	env.seedPurchase("txn_1")

	// the session completes before the charge settles, then the
	// charge bounces
	require.NoError(t, env.svc.HandleEvent(context.Background(), checkoutCompletedEvent("txn_1", "payment")))
	require.NoError(t, env.svc.HandleEvent(context.Background(),
		paymentIntentEvent("payment_intent.payment_failed", "pi_1", "txn_1")))

	require.Equal(t, model.TxFailed, env.ledger.txns["txn_1"].PaymentStatus)
	require.Empty(t, env.downloads.grants)
	require.Empty(t, env.mailer.purchases)
}

func TestPaymentIntentSucceededViaMetadata(t *testing.T) {
	env := newTestEnv()
	env.seedPurchase("txn_1")

	ev := paymentIntentEvent("payment_intent.succeeded", "pi_9", "txn_1")
	require.NoError(t, env.svc.HandleEvent(context.Background(), ev))

	require.Equal(t, model.TxCompleted, env.ledger.txns["txn_1"].PaymentStatus)
	require.Len(t, env.downloads.grants, 1)
}

func TestPaymentIntentSucceededViaIntentLookup(t *testing.T) {
	env := newTestEnv()
	env.seedPurchase("txn_1")
	env.ledger.byIntent["pi_9"] = "txn_1"

	ev := paymentIntentEvent("payment_intent.succeeded", "pi_9", "")
	require.NoError(t, env.svc.HandleEvent(context.Background(), ev))
	require.Equal(t, model.TxCompleted, env.ledger.txns["txn_1"].PaymentStatus)
}

func TestPaymentIntentSucceededUnknownIntentIsAcknowledged(t *testing.T) {
	env := newTestEnv()
	ev := paymentIntentEvent("payment_intent.succeeded", "pi_unknown", "")
	require.NoError(t, env.svc.HandleEvent(context.Background(), ev))
	require.Empty(t, env.downloads.grants)
}

func TestPaymentFailedMarksTransaction(t *testing.T) {
	env := newTestEnv()
	env.seedPurchase("txn_1")

	ev := paymentIntentEvent("payment_intent.payment_failed", "pi_9", "txn_1")
	require.NoError(t, env.svc.HandleEvent(context.Background(), ev))

	require.Equal(t, []string{"txn_1"}, env.ledger.markedFails)
	require.Len(t, env.audit.entries, 1)
	require.Equal(t, model.ActionPaymentFailed, env.audit.entries[0].ActionType)
	require.Empty(t, env.downloads.grants)
}

func TestSubscriptionCheckoutCompletesRecurringDonation(t *testing.T) {
	env := newTestEnv()
	tx := &model.Transaction{
		ID:              "txn_d",
		UserID:          "usr_1",
		AmountCents:     5000,
		Currency:        "eur",
		PaymentMethod:   "stripe",
		PaymentStatus:   model.TxPending,
		TransactionType: model.TxTypeDonation,
		IsRecurring:     true,
	}
	env.ledger.txns["txn_d"] = tx
	env.ledger.details["txn_d"] = repository.TransactionDetail{
		Transaction:  *tx,
		UserEmail:    "ann@example.com",
		UserFullName: "Ann Reader",
	}

	// subscription sessions have no payment intent of their own, so
	// checkout completion is the settlement signal
	require.NoError(t, env.svc.HandleEvent(context.Background(), checkoutCompletedEvent("txn_d", "subscription")))

	require.Equal(t, model.TxCompleted, env.ledger.txns["txn_d"].PaymentStatus)
	require.Equal(t, []int64{5000}, env.mailer.donations)
	require.Empty(t, env.downloads.grants)
	require.Len(t, env.audit.entries, 1)
	require.Equal(t, model.ActionDonationCompleted, env.audit.entries[0].ActionType)
}

func TestMailFailureDoesNotFailWebhook(t *testing.T) {
	env := newTestEnv()
	env.seedPurchase("txn_1")
	env.mailer.failMail = true

	require.NoError(t, env.svc.HandleEvent(context.Background(),
		paymentIntentEvent("payment_intent.succeeded", "pi_1", "txn_1")))
	// the grant still exists for the resend endpoint to use
	require.Len(t, env.downloads.grants, 1)
}

func TestUnknownEventTypesAreIgnored(t *testing.T) {
	env := newTestEnv()
	ev := stripe.Event{Type: "invoice.paid", Data: &stripe.EventData{Raw: []byte(`{}`)}}
	require.NoError(t, env.svc.HandleEvent(context.Background(), ev))
}
