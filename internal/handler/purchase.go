package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/mail"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/accordharmony/foundation-api/internal/delivery"
	"github.com/accordharmony/foundation-api/internal/email"
	"github.com/accordharmony/foundation-api/internal/model"
	"github.com/accordharmony/foundation-api/internal/repository"
	"github.com/accordharmony/foundation-api/internal/utils"
	"github.com/accordharmony/foundation-api/internal/watermark"
)

// BookPurchaseStore is the repo surface for the direct purchase path.
type BookPurchaseStore interface {
	Create(ctx context.Context, p *model.BookPurchase) error
	FindByOrderID(ctx context.Context, orderID string) (model.BookPurchase, error)
}

// DeliveryMailer sends the localized download email.
type DeliveryMailer interface {
	SendBookDelivery(ctx context.Context, to string, info email.BookDeliveryInfo) error
}

// BookPurchaseHandler implements the direct PayPal purchase path: no
// account, payment confirmed client-side by PayPal, watermarked copy
// produced eagerly and a 30-day token returned on the spot.
type BookPurchaseHandler struct {
	Purchases BookPurchaseStore
	Delivery  *delivery.Service
	Mail      DeliveryMailer

	// SourceBookKey is the canonical artifact every direct purchase
	// stamps from.
	SourceBookKey string
}

type bookPurchaseReq struct {
	PayPalOrderID string `json:"paypalOrderId"`
	Email         string `json:"email"`
	Name          string `json:"name"`
	Language      string `json:"language"`
	Amount        int64  `json:"amount"` // minor units
	Currency      string `json:"currency"`
}

// Create records a confirmed PayPal order, stamps the buyer's copy
// and mails the download link. Submitting the same order id twice
// returns the original purchase instead of minting a second token.
func (h *BookPurchaseHandler) Create(c echo.Context) error {
	var req bookPurchaseReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Name = strings.TrimSpace(req.Name)
	if req.PayPalOrderID == "" {
		return badRequest(c, "paypalOrderId is required")
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		return badRequest(c, "Valid email is required")
	}
	if req.Name == "" {
		return badRequest(c, "Name is required")
	}
	switch req.Language {
	case "en", "de", "fr", "bg":
	default:
		req.Language = "en"
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), deliveryTimeout)
	defer cancel()

	// Idempotent per PayPal order.
	if existing, err := h.Purchases.FindByOrderID(ctx, req.PayPalOrderID); err == nil {
		return ok(c, http.StatusOK, "Purchase already recorded", purchaseData(existing))
	} else if !errors.Is(err, repository.ErrNotFound) {
		return fail(c, http.StatusInternalServerError, "Purchase failed")
	}

	token, err := utils.RandomHex(32)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "Purchase failed")
	}
	now := time.Now().UTC()
	p := model.BookPurchase{
		Email:         req.Email,
		Name:          req.Name,
		Language:      req.Language,
		AmountCents:   req.Amount,
		Currency:      req.Currency,
		PayPalOrderID: req.PayPalOrderID,
		DownloadToken: token,
		ReceiptNumber: utils.NewReceiptNumber(),
		PurchaseDate:  now,
		ExpiryDate:    delivery.DirectPolicy.TokenExpiry(now),
	}
	p.FileKey = fmt.Sprintf("books/watermarked/%s_%s.pdf", token, p.ReceiptNumber)

	meta := watermark.Meta{
		Name:    p.Name,
		Email:   p.Email,
		Receipt: p.ReceiptNumber,
		Date:    p.PurchaseDate,
	}
	if err := h.Delivery.StampTo(ctx, h.SourceBookKey, p.FileKey, meta); err != nil {
		c.Logger().Errorf("book-purchase: stamping failed for order %s: %v", req.PayPalOrderID, err)
		return fail(c, http.StatusInternalServerError, "Purchase failed")
	}

	if err := h.Purchases.Create(ctx, &p); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			if existing, ferr := h.Purchases.FindByOrderID(ctx, req.PayPalOrderID); ferr == nil {
				return ok(c, http.StatusOK, "Purchase already recorded", purchaseData(existing))
			}
		}
		return fail(c, http.StatusInternalServerError, "Purchase failed")
	}

	info := email.BookDeliveryInfo{
		Name:          p.Name,
		Language:      p.Language,
		ReceiptNumber: p.ReceiptNumber,
		DownloadToken: p.DownloadToken,
		ExpiryDays:    int(delivery.DirectPolicy.TokenTTL.Hours() / 24),
		MaxDownloads:  delivery.DirectPolicy.MaxDownloads,
	}
	if err := h.Mail.SendBookDelivery(ctx, p.Email, info); err != nil {
		// token is already in the response; mail is a convenience copy
		c.Logger().Errorf("book-purchase: delivery email to %s failed: %v", p.Email, err)
	}

	return ok(c, http.StatusCreated, "Purchase recorded", purchaseData(p))
}

func purchaseData(p model.BookPurchase) echo.Map {
	return echo.Map{
		"receiptNumber": p.ReceiptNumber,
		"downloadToken": p.DownloadToken,
		"expiryDate":    p.ExpiryDate,
	}
}

// Download streams the watermarked book for a direct purchase token.
func (h *BookPurchaseHandler) Download(c echo.Context) error {
	token := c.Param("token")
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
			c.Logger().Errorf("book-download: serve failed: %v", err)
			return fail(c, http.StatusInternalServerError, "Download failed")
		}
	}

	hdr := c.Response().Header()
	hdr.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", res.FileName))
	hdr.Set("X-Downloads-Remaining", strconv.Itoa(res.Remaining))
	hdr.Set("Cache-Control", "no-store")
	return c.Blob(http.StatusOK, "application/pdf", res.Data)
}
