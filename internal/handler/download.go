package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/accordharmony/foundation-api/internal/delivery"
	"github.com/accordharmony/foundation-api/internal/email"
	"github.com/accordharmony/foundation-api/internal/middleware"
	"github.com/accordharmony/foundation-api/internal/model"
	"github.com/accordharmony/foundation-api/internal/repository"
)

// deliveryTimeout bounds a full download: object fetch, stamping on
// first use, and the response write.
const deliveryTimeout = 60 * time.Second

// DownloadStore is the download-repo surface the endpoints read.
type DownloadStore interface {
	FindByToken(ctx context.Context, token string) (repository.DownloadDetail, error)
	FindByTransaction(ctx context.Context, transactionID string) (model.Download, error)
}

// LedgerReader resolves transaction context for the resend flow.
type LedgerReader interface {
	Detail(ctx context.Context, id string) (repository.TransactionDetail, error)
}

// PurchaseMailer re-sends the purchase confirmation.
type PurchaseMailer interface {
	SendPurchaseConfirmation(ctx context.Context, userID, to string, info email.PurchaseInfo) error
}

// DownloadHandler serves watermarked artifacts for the email
// (account) purchase flow and its metadata endpoints.
type DownloadHandler struct {
	Delivery  *delivery.Service
	Downloads DownloadStore
	Ledger    LedgerReader
	Mail      PurchaseMailer
	Audit     Auditor
}

// Serve streams the watermarked PDF for a valid token. The three
// refusal reasons are spelled out for the user; "denied" with no
// explanation generates support mail.
func (h *DownloadHandler) Serve(c echo.Context) error {
	token := c.QueryParam("token")
	if token == "" {
		return badRequest(c, "Download token is required")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), deliveryTimeout)
	defer cancel()

	res, err := h.Delivery.Serve(ctx, token, c.RealIP())
	if err != nil {
		switch {
		case errors.Is(err, delivery.ErrUnknownToken):
			return fail(c, http.StatusNotFound, "Download not found")
		case errors.Is(err, delivery.ErrExpired):
			return fail(c, http.StatusForbidden, "Download link expired")
		case errors.Is(err, delivery.ErrLimitExceeded):
			return fail(c, http.StatusForbidden, "Download limit reached")
		default:
			c.Logger().Errorf("download: serve failed: %v", err)
			return fail(c, http.StatusInternalServerError, "Download failed")
		}
	}

	h.auditDownload(ctx, c, token)

	hdr := c.Response().Header()
	hdr.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", res.FileName))
	hdr.Set("X-Downloads-Remaining", strconv.Itoa(res.Remaining))
	hdr.Set("Cache-Control", "no-store")
	return c.Blob(http.StatusOK, "application/pdf", res.Data)
}

// Info reports a grant's state without consuming a download.
func (h *DownloadHandler) Info(c echo.Context) error {
	token := c.QueryParam("token")
	if token == "" {
		return badRequest(c, "Download token is required")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	d, err := h.Downloads.FindByToken(ctx, token)
	if err != nil {
		return fail(c, http.StatusNotFound, "Download not found")
	}
	return ok(c, http.StatusOK, "", echo.Map{
		"product_name":   d.ProductName,
		"download_count": d.DownloadCount,
		"max_downloads":  d.MaxDownloads,
		"expires_at":     d.TokenExpiresAt,
		"is_expired":     time.Now().After(d.TokenExpiresAt),
	})
}

type resendReq struct {
	TransactionID string `json:"transactionId"`
}

// Resend re-sends the purchase confirmation email carrying the
// existing download token. Owner-only; a lapsed grant is reported
// instead of silently mailing a dead link.
func (h *DownloadHandler) Resend(c echo.Context) error {
	u, okUser := middleware.CurrentUser(c)
	if !okUser {
		return fail(c, http.StatusUnauthorized, "Authentication required")
	}
	var req resendReq
	if err := c.Bind(&req); err != nil || req.TransactionID == "" {
		return badRequest(c, "transactionId is required")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	grant, err := h.Downloads.FindByTransaction(ctx, req.TransactionID)
	if err != nil || grant.UserID != u.ID {
		return fail(c, http.StatusNotFound, "Download not found")
	}
	if time.Now().After(grant.TokenExpiresAt) {
		return fail(c, http.StatusForbidden, "Download link expired")
	}
	if grant.DownloadCount >= grant.MaxDownloads {
		return fail(c, http.StatusForbidden, "Download limit reached")
	}

	d, err := h.Ledger.Detail(ctx, req.TransactionID)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "Resend failed")
	}

	remaining := time.Until(grant.TokenExpiresAt)
	info := email.PurchaseInfo{
		Name:          u.FullName,
		ProductName:   d.ProductName,
		AmountCents:   d.AmountCents,
		Currency:      d.Currency,
		TransactionID: d.ID,
		DownloadToken: grant.DownloadToken,
		ExpiresHours:  int(remaining.Hours()) + 1,
		MaxDownloads:  grant.MaxDownloads - grant.DownloadCount,
	}
	if err := h.Mail.SendPurchaseConfirmation(ctx, u.ID, u.Email, info); err != nil {
		c.Logger().Errorf("download: resend for %s failed: %v", req.TransactionID, err)
		return fail(c, http.StatusInternalServerError, "Resend failed")
	}
	return ok(c, http.StatusOK, "Download link sent", nil)
}

func (h *DownloadHandler) auditDownload(ctx context.Context, c echo.Context, token string) {
	if h.Audit == nil {
		return
	}
	d, err := h.Downloads.FindByToken(ctx, token)
	if err != nil {
		return
	}
	e := model.AuditEntry{
		UserID:     &d.UserID,
		ActionType: model.ActionDownload,
		EntityType: "download",
		EntityID:   d.ID,
	}
	if ip := c.RealIP(); ip != "" {
		e.IPAddress = &ip
	}
	if err := h.Audit.Create(ctx, &e); err != nil {
		c.Logger().Warnf("audit: download write failed: %v", err)
	}
}
