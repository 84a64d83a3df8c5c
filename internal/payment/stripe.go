package payment

import (
	"github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/client"
	"github.com/stripe/stripe-go/v74/webhook"
)

// StripeClient backs StripeAPI with the real Stripe SDK.
type StripeClient struct {
	sc *client.API
}

func NewStripeClient(secretKey string) *StripeClient {
	sc := &client.API{}
	sc.Init(secretKey, nil)
	return &StripeClient{sc: sc}
}

func (c *StripeClient) NewCheckoutSession(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	return c.sc.CheckoutSessions.New(params)
}

func (c *StripeClient) GetCheckoutSession(id string) (*stripe.CheckoutSession, error) {
	return c.sc.CheckoutSessions.Get(id, nil)
}

// VerifySignature validates a webhook payload against its
// Stripe-Signature header and returns the parsed event. Handlers must
// reject the request when this fails; an unsigned payload is not a
// Stripe event. The account's webhook endpoint pins its own API
// version, so the SDK's exact-version check would refuse every
// delivery; the signature is what authenticates the payload.
func (s *Service) VerifySignature(payload []byte, sigHeader string) (stripe.Event, error) {
	return webhook.ConstructEventWithOptions(payload, sigHeader, s.WebhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
}
