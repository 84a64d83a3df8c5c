// Package queue defines message payloads exchanged over the message broker.
package queue

// PurchaseCompletedEvent is published when a payment transaction is
// fulfilled. It carries enough information for downstream consumers to
// log, notify, or feed analytics without querying the primary database.
type PurchaseCompletedEvent struct {
	TransactionID string `json:"transaction_id"`
	UserID        string `json:"user_id"`
	ProductID     string `json:"product_id,omitempty"`
	ProductName   string `json:"product_name,omitempty"`
	Type          string `json:"type"` // product_purchase | donation
	AmountCents   int64  `json:"amount_cents"`
	Currency      string `json:"currency"`
	PaymentMethod string `json:"payment_method"`
	CompletedAt   string `json:"completed_at"`
}
