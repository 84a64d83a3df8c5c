package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"github.com/accordharmony/foundation-api/internal/delivery"
	"github.com/accordharmony/foundation-api/internal/email"
	"github.com/accordharmony/foundation-api/internal/middleware"
	"github.com/accordharmony/foundation-api/internal/model"
	"github.com/accordharmony/foundation-api/internal/repository"
	"github.com/accordharmony/foundation-api/internal/storage"
	"github.com/accordharmony/foundation-api/internal/watermark"
)

// fakeDownloadRepo backs both the handler's metadata lookups and the
// delivery pipeline's grant store, so the full serve path runs
// against one consistent grant.
type fakeDownloadRepo struct {
	detail  repository.DownloadDetail
	missing bool
}

func (f *fakeDownloadRepo) FindByToken(_ context.Context, token string) (repository.DownloadDetail, error) {
	if f.missing || token != f.detail.DownloadToken {
		return repository.DownloadDetail{}, repository.ErrNotFound
	}
	return f.detail, nil
}

func (f *fakeDownloadRepo) FindByTransaction(_ context.Context, transactionID string) (model.Download, error) {
	if f.missing || transactionID != f.detail.TransactionID {
		return model.Download{}, repository.ErrNotFound
	}
	return f.detail.Download, nil
}

// grant-store view used by delivery.Service
func (f *fakeDownloadRepo) grantStore() delivery.GrantStore { return (*repoGrantStore)(f) }

type repoGrantStore fakeDownloadRepo

func (r *repoGrantStore) FindByToken(_ context.Context, token string) (delivery.Grant, error) {
	if r.missing || token != r.detail.DownloadToken {
		return delivery.Grant{}, repository.ErrNotFound
	}
	d := r.detail
	return delivery.Grant{
		ID:            d.ID,
		Token:         d.DownloadToken,
		ExpiresAt:     d.TokenExpiresAt,
		DownloadCount: d.DownloadCount,
		MaxDownloads:  d.MaxDownloads,
		SourceKey:     d.SourceFileKey,
		ArtifactKey:   d.WatermarkedFileKey,
		KeyPrefix:     "watermarked/" + d.TransactionID,
		FileName:      "book.pdf",
		Meta:          watermark.Meta{Name: d.UserFullName, Email: d.UserEmail, Receipt: d.TransactionID, Date: d.CreatedAt},
	}, nil
}

func (r *repoGrantStore) RecordDownload(_ context.Context, grantID, clientIP string) (bool, error) {
	if r.detail.DownloadCount >= r.detail.MaxDownloads {
		return false, nil
	}
	r.detail.DownloadCount++
	return true, nil
}

func (r *repoGrantStore) SetArtifactKey(_ context.Context, grantID, key string) error {
	r.detail.WatermarkedFileKey = &key
	return nil
}

type passthroughStamper struct{}

func (passthroughStamper) Stamp(_ context.Context, src []byte, _ watermark.Meta) ([]byte, error) {
	return append([]byte("stamped:"), src...), nil
}

type fakePurchaseMailer struct {
	sent []email.PurchaseInfo
	to   []string
}

func (f *fakePurchaseMailer) SendPurchaseConfirmation(_ context.Context, _, to string, info email.PurchaseInfo) error {
	f.sent = append(f.sent, info)
	f.to = append(f.to, to)
	return nil
}

func newDownloadHandler(t *testing.T) (*DownloadHandler, *fakeDownloadRepo, *fakePurchaseMailer) {
	t.Helper()
	objects := storage.NewMemoryStore()
	require.NoError(t, objects.Put(context.Background(), "books/master.pdf", []byte("master"), "application/pdf"))

	repo := &fakeDownloadRepo{detail: repository.DownloadDetail{
		Download: model.Download{
			ID:             "dl_1",
			UserID:         "usr_1",
			TransactionID:  "txn_1",
			ProductID:      "prd_book",
			DownloadToken:  "tok-1",
			TokenExpiresAt: time.Now().Add(12 * time.Hour),
			MaxDownloads:   5,
		},
		ProductName:   "The Harmony Principle",
		SourceFileKey: "books/master.pdf",
		UserEmail:     "ann@example.com",
		UserFullName:  "Ann Reader",
	}}
	mailer := &fakePurchaseMailer{}
	h := &DownloadHandler{
		Delivery:  &delivery.Service{Store: repo.grantStore(), Objects: objects, Stamper: passthroughStamper{}},
		Downloads: repo,
		Ledger:    &fixedLedgerReader{},
		Mail:      mailer,
	}
	return h, repo, mailer
}

type fixedLedgerReader struct{}

func (fixedLedgerReader) Detail(_ context.Context, id string) (repository.TransactionDetail, error) {
	productID := "prd_book"
	return repository.TransactionDetail{
		Transaction: model.Transaction{
			ID:          id,
			UserID:      "usr_1",
			ProductID:   &productID,
			AmountCents: 1999,
			Currency:    "eur",
		},
		UserEmail:    "ann@example.com",
		UserFullName: "Ann Reader",
		ProductName:  "The Harmony Principle",
	}, nil
}

func getWithQuery(t *testing.T, fn echo.HandlerFunc, target string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	require.NoError(t, fn(e.NewContext(req, rec)))
	return rec
}

func TestDownloadServe(t *testing.T) {
	h, repo, _ := newDownloadHandler(t)

	rec := getWithQuery(t, h.Serve, "/api/download?token=tok-1")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "application/pdf", rec.Header().Get(echo.HeaderContentType))
	require.Contains(t, rec.Header().Get("Content-Disposition"), "attachment")
	require.Equal(t, "4", rec.Header().Get("X-Downloads-Remaining"))
	require.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	require.Equal(t, "stamped:master", rec.Body.String())
	require.Equal(t, 1, repo.detail.DownloadCount)
}

func TestDownloadServeErrorMapping(t *testing.T) {
	h, repo, _ := newDownloadHandler(t)

	rec := getWithQuery(t, h.Serve, "/api/download?token=wrong")
	require.Equal(t, http.StatusNotFound, rec.Code)

	repo.detail.TokenExpiresAt = time.Now().Add(-time.Hour)
	rec = getWithQuery(t, h.Serve, "/api/download?token=tok-1")
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Contains(t, rec.Body.String(), "expired")

	repo.detail.TokenExpiresAt = time.Now().Add(time.Hour)
	repo.detail.DownloadCount = 5
	rec = getWithQuery(t, h.Serve, "/api/download?token=tok-1")
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = getWithQuery(t, h.Serve, "/api/download")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDownloadLimitReachedAfterFiveServes(t *testing.T) {
	h, _, _ := newDownloadHandler(t)

	for i := 0; i < 5; i++ {
		rec := getWithQuery(t, h.Serve, "/api/download?token=tok-1")
		require.Equal(t, http.StatusOK, rec.Code, "download %d should succeed", i+1)
	}
	rec := getWithQuery(t, h.Serve, "/api/download?token=tok-1")
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestDownloadInfoDoesNotConsume(t *testing.T) {
	h, repo, _ := newDownloadHandler(t)

	rec, env := do(t, h.Info, http.MethodGet, "/api/download/info?token=tok-1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	data := dataOf(t, env)
	require.Equal(t, "The Harmony Principle", data["product_name"])
	require.Equal(t, float64(0), data["download_count"])
	require.Equal(t, float64(5), data["max_downloads"])
	require.Equal(t, false, data["is_expired"])
	require.Equal(t, 0, repo.detail.DownloadCount)
}

func TestDownloadInfoUnknownToken(t *testing.T) {
	h, _, _ := newDownloadHandler(t)
	rec, _ := do(t, h.Info, http.MethodGet, "/api/download/info?token=wrong", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

// resend runs an authenticated request through the handler with the
// user preloaded in context, the way the auth middleware would.
func doResend(t *testing.T, h *DownloadHandler, u model.User, body string) (*httptest.ResponseRecorder, error) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/download/resend", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	middleware.SetCurrentUser(c, u)
	return rec, h.Resend(c)
}

func TestResendMailsExistingToken(t *testing.T) {
	h, _, mailer := newDownloadHandler(t)
	owner := model.User{ID: "usr_1", Email: "ann@example.com", FullName: "Ann Reader"}

	rec, err := doResend(t, h, owner, `{"transactionId":"txn_1"}`)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, mailer.sent, 1)
	require.Equal(t, "tok-1", mailer.sent[0].DownloadToken)
	require.Equal(t, []string{"ann@example.com"}, mailer.to)
}

func TestResendRejectsNonOwner(t *testing.T) {
	h, _, mailer := newDownloadHandler(t)
	other := model.User{ID: "usr_2", Email: "other@example.com"}

	rec, err := doResend(t, h, other, `{"transactionId":"txn_1"}`)
	require.NoError(t, err)
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Empty(t, mailer.sent)
}

func TestResendExpiredGrant(t *testing.T) {
	h, repo, _ := newDownloadHandler(t)
	repo.detail.TokenExpiresAt = time.Now().Add(-time.Hour)
	owner := model.User{ID: "usr_1", Email: "ann@example.com"}

	rec, err := doResend(t, h, owner, `{"transactionId":"txn_1"}`)
	require.NoError(t, err)
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Contains(t, rec.Body.String(), "expired")
}

func TestResendExhaustedGrant(t *testing.T) {
	h, repo, _ := newDownloadHandler(t)
	repo.detail.DownloadCount = 5
	owner := model.User{ID: "usr_1", Email: "ann@example.com"}

	rec, err := doResend(t, h, owner, `{"transactionId":"txn_1"}`)
	require.NoError(t, err)
	require.Equal(t, http.StatusForbidden, rec.Code)
}
