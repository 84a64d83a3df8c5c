package handler

import (
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/accordharmony/foundation-api/internal/payment"
)

// Stripe caps event payloads well below this; anything larger is not
// a Stripe webhook.
const maxWebhookBody = 1 << 20

// WebhookHandler receives Stripe events. The route is public but every
// payload must carry a valid Stripe-Signature header.
type WebhookHandler struct {
	Payments *payment.Service
}

// HandleStripe verifies and processes one webhook delivery. A 2xx
// tells Stripe the event is settled; processing errors return 500 so
// Stripe redelivers, which the fulfillment pipeline tolerates.
func (h *WebhookHandler) HandleStripe(c echo.Context) error {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookBody))
	if err != nil {
		return badRequest(c, "Could not read payload")
	}

	ev, err := h.Payments.VerifySignature(body, c.Request().Header.Get("Stripe-Signature"))
	if err != nil {
		c.Logger().Warnf("webhook: signature rejected: %v", err)
		return fail(c, http.StatusBadRequest, "Invalid signature")
	}

	if err := h.Payments.HandleEvent(c.Request().Context(), ev); err != nil {
		c.Logger().Errorf("webhook: event %s (%s) failed: %v", ev.ID, ev.Type, err)
		return fail(c, http.StatusInternalServerError, "Event processing failed")
	}
	return ok(c, http.StatusOK, "Received", nil)
}
