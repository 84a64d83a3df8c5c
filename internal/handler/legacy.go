package handler

import (
	"context"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/accordharmony/foundation-api/internal/utils"
)

// The endpoints in this file predate the account flow and are kept
// for the website forms that still post to them.

// ContactMailer forwards contact-form submissions.
type ContactMailer interface {
	ForwardContactForm(ctx context.Context, fromName, fromEmail, message string) error
	SendDonationReceipt(ctx context.Context, userID, to, name string, amountCents int64, currency string) error
}

// NewsletterStore records newsletter signups.
type NewsletterStore interface {
	Subscribe(ctx context.Context, email string) error
}

// LegacyHandler serves the website form endpoints.
type LegacyHandler struct {
	Mail        ContactMailer
	Subscribers NewsletterStore
}

type contactReq struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Message string `json:"message"`
}

// Contact forwards a form submission to the foundation inbox.
func (h *LegacyHandler) Contact(c echo.Context) error {
	var req contactReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Message = strings.TrimSpace(req.Message)
	if _, err := mail.ParseAddress(strings.TrimSpace(req.Email)); err != nil {
		return badRequest(c, "Valid email is required")
	}
	if req.Name == "" || req.Message == "" {
		return badRequest(c, "Name and message are required")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	if err := h.Mail.ForwardContactForm(ctx, req.Name, req.Email, req.Message); err != nil {
		c.Logger().Errorf("contact: forward failed: %v", err)
		return fail(c, http.StatusInternalServerError, "Could not send message")
	}
	return ok(c, http.StatusOK, "Message sent", nil)
}

type newsletterReq struct {
	Email string `json:"email"`
}

// Newsletter subscribes an address; resubscribing is a silent success.
func (h *LegacyHandler) Newsletter(c echo.Context) error {
	var req newsletterReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if _, err := mail.ParseAddress(strings.TrimSpace(req.Email)); err != nil {
		return badRequest(c, "Valid email is required")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	if err := h.Subscribers.Subscribe(ctx, req.Email); err != nil {
		return fail(c, http.StatusInternalServerError, "Subscription failed")
	}
	return ok(c, http.StatusOK, "Subscribed", nil)
}

type paypalNotifyReq struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Amount   int64  `json:"amount"` // minor units
	Currency string `json:"currency"`
}

// PayPalNotify sends a thank-you receipt for a donation made through
// the website's PayPal button, outside the account flow.
func (h *LegacyHandler) PayPalNotify(c echo.Context) error {
	var req paypalNotifyReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if _, err := mail.ParseAddress(strings.TrimSpace(req.Email)); err != nil {
		return badRequest(c, "Valid email is required")
	}
	if req.Currency == "" {
		req.Currency = "eur"
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	if err := h.Mail.SendDonationReceipt(ctx, "", req.Email, req.Name, req.Amount, req.Currency); err != nil {
		c.Logger().Errorf("paypal-notify: receipt to %s failed: %v", req.Email, err)
		return fail(c, http.StatusInternalServerError, "Could not send receipt")
	}
	return ok(c, http.StatusOK, "Receipt sent", nil)
}

// CSRFToken hands the website a double-submit token: mirrored in a
// cookie and in the body so the frontend can echo it in a header.
func (h *LegacyHandler) CSRFToken(c echo.Context) error {
	token, err := utils.RandomHex(16)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "Token generation failed")
	}
	c.SetCookie(&http.Cookie{
		Name:     "csrf_token",
		Value:    token,
		Path:     "/",
		Expires:  time.Now().Add(2 * time.Hour),
		HttpOnly: false, // the frontend must read it to echo it
		Secure:   true,
		SameSite: http.SameSiteStrictMode,
	})
	return ok(c, http.StatusOK, "", echo.Map{"csrfToken": token})
}
