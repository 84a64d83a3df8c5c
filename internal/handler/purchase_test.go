package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"github.com/accordharmony/foundation-api/internal/delivery"
	"github.com/accordharmony/foundation-api/internal/email"
	"github.com/accordharmony/foundation-api/internal/model"
	"github.com/accordharmony/foundation-api/internal/repository"
	"github.com/accordharmony/foundation-api/internal/storage"
	"github.com/accordharmony/foundation-api/internal/utils"
)

type fakeBookPurchases struct {
	byOrder map[string]model.BookPurchase
	byToken map[string]model.BookPurchase
}

func newFakeBookPurchases() *fakeBookPurchases {
	return &fakeBookPurchases{byOrder: map[string]model.BookPurchase{}, byToken: map[string]model.BookPurchase{}}
}

func (f *fakeBookPurchases) Create(_ context.Context, p *model.BookPurchase) error {
	if _, exists := f.byOrder[p.PayPalOrderID]; exists {
		return repository.ErrDuplicate
	}
	p.ID = utils.NewID("bkp")
	f.byOrder[p.PayPalOrderID] = *p
	f.byToken[p.DownloadToken] = *p
	return nil
}

func (f *fakeBookPurchases) FindByOrderID(_ context.Context, orderID string) (model.BookPurchase, error) {
	p, ok := f.byOrder[orderID]
	if !ok {
		return model.BookPurchase{}, repository.ErrNotFound
	}
	return p, nil
}

// grant-store view so the handler's Download endpoint can serve what
// Create stamped.
func (f *fakeBookPurchases) FindByToken(_ context.Context, token string) (delivery.Grant, error) {
	p, ok := f.byToken[token]
	if !ok {
		return delivery.Grant{}, repository.ErrNotFound
	}
	key := p.FileKey
	return delivery.Grant{
		ID:            p.ID,
		Token:         p.DownloadToken,
		ExpiresAt:     p.ExpiryDate,
		DownloadCount: p.DownloadCount,
		MaxDownloads:  delivery.DirectPolicy.MaxDownloads,
		SourceKey:     key,
		ArtifactKey:   &key,
		FileName:      "book.pdf",
	}, nil
}

func (f *fakeBookPurchases) RecordDownload(_ context.Context, grantID, _ string) (bool, error) {
	for tok, p := range f.byToken {
		if p.ID == grantID {
			if p.DownloadCount >= delivery.DirectPolicy.MaxDownloads {
				return false, nil
			}
			p.DownloadCount++
			f.byToken[tok] = p
			f.byOrder[p.PayPalOrderID] = p
			return true, nil
		}
	}
	return false, repository.ErrNotFound
}

func (f *fakeBookPurchases) SetArtifactKey(_ context.Context, _, _ string) error { return nil }

type fakeDeliveryMailer struct {
	sent []email.BookDeliveryInfo
	to   []string
}

func (f *fakeDeliveryMailer) SendBookDelivery(_ context.Context, to string, info email.BookDeliveryInfo) error {
	f.sent = append(f.sent, info)
	f.to = append(f.to, to)
	return nil
}

func newBookHandler(t *testing.T) (*BookPurchaseHandler, *fakeBookPurchases, *fakeDeliveryMailer, *storage.MemoryStore) {
	t.Helper()
	objects := storage.NewMemoryStore()
	require.NoError(t, objects.Put(context.Background(), "books/source.pdf", []byte("book"), "application/pdf"))

	purchases := newFakeBookPurchases()
	mailer := &fakeDeliveryMailer{}
	h := &BookPurchaseHandler{
		Purchases:     purchases,
		Delivery:      &delivery.Service{Store: purchases, Objects: objects, Stamper: passthroughStamper{}},
		Mail:          mailer,
		SourceBookKey: "books/source.pdf",
	}
	return h, purchases, mailer, objects
}

const validPurchaseBody = `{"paypalOrderId":"PAYPAL-1","email":"ben@example.com","name":"Ben Buyer","language":"de","amount":2500,"currency":"eur"}`

func TestBookPurchaseCreate(t *testing.T) {
	h, purchases, mailer, objects := newBookHandler(t)

	rec, env := do(t, h.Create, http.MethodPost, "/api/book-purchase", validPurchaseBody)
	require.Equal(t, http.StatusCreated, rec.Code)

	data := dataOf(t, env)
	token, _ := data["downloadToken"].(string)
	require.Len(t, token, 64)
	require.Regexp(t, regexp.MustCompile(`^AHF-\d{4}-\d{4}$`), data["receiptNumber"])
	require.NotEmpty(t, data["expiryDate"])

	// the stamped copy already exists in object storage
	p := purchases.byOrder["PAYPAL-1"]
	stamped, err := objects.Get(context.Background(), p.FileKey)
	require.NoError(t, err)
	require.Equal(t, []byte("stamped:book"), stamped)
	require.WithinDuration(t, time.Now().Add(30*24*time.Hour), p.ExpiryDate, time.Minute)

	// localized delivery mail carries the same token
	require.Len(t, mailer.sent, 1)
	require.Equal(t, token, mailer.sent[0].DownloadToken)
	require.Equal(t, "de", mailer.sent[0].Language)
	require.Equal(t, []string{"ben@example.com"}, mailer.to)
}

func TestBookPurchaseIdempotentPerOrder(t *testing.T) {
	h, _, mailer, _ := newBookHandler(t)

	rec, env := do(t, h.Create, http.MethodPost, "/api/book-purchase", validPurchaseBody)
	require.Equal(t, http.StatusCreated, rec.Code)
	firstToken := dataOf(t, env)["downloadToken"]

	rec, env = do(t, h.Create, http.MethodPost, "/api/book-purchase", validPurchaseBody)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "Purchase already recorded", env["message"])
	require.Equal(t, firstToken, dataOf(t, env)["downloadToken"])
	require.Len(t, mailer.sent, 1, "replay must not mail again")
}

func TestBookPurchaseValidation(t *testing.T) {
	h, _, _, _ := newBookHandler(t)

	rec, _ := do(t, h.Create, http.MethodPost, "/api/book-purchase",
		`{"email":"ben@example.com","name":"Ben","amount":2500}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = do(t, h.Create, http.MethodPost, "/api/book-purchase",
		`{"paypalOrderId":"P-1","email":"bad","name":"Ben","amount":2500}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = do(t, h.Create, http.MethodPost, "/api/book-purchase",
		`{"paypalOrderId":"P-1","email":"ben@example.com","name":"","amount":2500}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBookPurchaseUnknownLanguageFallsBack(t *testing.T) {
	h, purchases, _, _ := newBookHandler(t)

	body := `{"paypalOrderId":"P-2","email":"ben@example.com","name":"Ben","language":"es","amount":2500,"currency":"eur"}`
	rec, _ := do(t, h.Create, http.MethodPost, "/api/book-purchase", body)
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Equal(t, "en", purchases.byOrder["P-2"].Language)
}

func TestBookDownloadByToken(t *testing.T) {
	h, _, _, _ := newBookHandler(t)

	_, env := do(t, h.Create, http.MethodPost, "/api/book-purchase", validPurchaseBody)
	token := dataOf(t, env)["downloadToken"].(string)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/download-book/"+token, nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("token")
	c.SetParamValues(token)

	require.NoError(t, h.Download(c))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "stamped:book", rec.Body.String())
	require.Equal(t, "4", rec.Header().Get("X-Downloads-Remaining"))
}

func TestBookDownloadExpiredToken(t *testing.T) {
	h, purchases, _, _ := newBookHandler(t)

	_, env := do(t, h.Create, http.MethodPost, "/api/book-purchase", validPurchaseBody)
	token := dataOf(t, env)["downloadToken"].(string)

	p := purchases.byToken[token]
	p.ExpiryDate = time.Now().Add(-time.Hour)
	purchases.byToken[token] = p

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/download-book/"+token, nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("token")
	c.SetParamValues(token)

	require.NoError(t, h.Download(c))
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Contains(t, rec.Body.String(), "expired")
}

func TestBookDownloadUnknownToken(t *testing.T) {
	h, _, _, _ := newBookHandler(t)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/download-book/none", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("token")
	c.SetParamValues("none")

	require.NoError(t, h.Download(c))
	require.Equal(t, http.StatusNotFound, rec.Code)
}
