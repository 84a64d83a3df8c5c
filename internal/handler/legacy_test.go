package handler

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeContactMailer struct {
	contacts []string
	receipts []int64
	fail     bool
}

func (f *fakeContactMailer) ForwardContactForm(_ context.Context, fromName, fromEmail, message string) error {
	if f.fail {
		return errors.New("provider down")
	}
	f.contacts = append(f.contacts, fromEmail)
	return nil
}

func (f *fakeContactMailer) SendDonationReceipt(_ context.Context, userID, to, name string, amountCents int64, currency string) error {
	if f.fail {
		return errors.New("provider down")
	}
	f.receipts = append(f.receipts, amountCents)
	return nil
}

type fakeNewsletter struct {
	subscribed []string
}

func (f *fakeNewsletter) Subscribe(_ context.Context, email string) error {
	f.subscribed = append(f.subscribed, email)
	return nil
}

func newLegacyHandler() (*LegacyHandler, *fakeContactMailer, *fakeNewsletter) {
	mailer := &fakeContactMailer{}
	news := &fakeNewsletter{}
	return &LegacyHandler{Mail: mailer, Subscribers: news}, mailer, news
}

func TestContactForm(t *testing.T) {
	h, mailer, _ := newLegacyHandler()

	rec, _ := do(t, h.Contact, http.MethodPost, "/api/contact",
		`{"name":"Visitor","email":"v@example.com","message":"Hello"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, []string{"v@example.com"}, mailer.contacts)
}

func TestContactFormValidation(t *testing.T) {
	h, mailer, _ := newLegacyHandler()

	rec, _ := do(t, h.Contact, http.MethodPost, "/api/contact",
		`{"name":"Visitor","email":"bad","message":"Hello"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = do(t, h.Contact, http.MethodPost, "/api/contact",
		`{"name":"","email":"v@example.com","message":"Hello"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Empty(t, mailer.contacts)
}

func TestNewsletterSubscribe(t *testing.T) {
	h, _, news := newLegacyHandler()

	rec, _ := do(t, h.Newsletter, http.MethodPost, "/api/newsletter",
		`{"email":"v@example.com"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, []string{"v@example.com"}, news.subscribed)

	rec, _ = do(t, h.Newsletter, http.MethodPost, "/api/newsletter",
		`{"email":"not-an-email"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPayPalNotifySendsReceipt(t *testing.T) {
	h, mailer, _ := newLegacyHandler()

	rec, _ := do(t, h.PayPalNotify, http.MethodPost, "/api/paypal-notify",
		`{"email":"donor@example.com","name":"Donor","amount":2500}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, []int64{2500}, mailer.receipts)
}

func TestCSRFToken(t *testing.T) {
	h, _, _ := newLegacyHandler()

	rec, env := do(t, h.CSRFToken, http.MethodGet, "/api/csrf-token", "")
	require.Equal(t, http.StatusOK, rec.Code)

	token, _ := dataOf(t, env)["csrfToken"].(string)
	require.Len(t, token, 32)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	require.Equal(t, "csrf_token", cookies[0].Name)
	require.Equal(t, token, cookies[0].Value)
	require.False(t, cookies[0].HttpOnly)
	require.True(t, cookies[0].Secure)
}
