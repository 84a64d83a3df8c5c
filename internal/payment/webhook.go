package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/stripe/stripe-go/v74"

	"github.com/accordharmony/foundation-api/internal/delivery"
	"github.com/accordharmony/foundation-api/internal/email"
	"github.com/accordharmony/foundation-api/internal/model"
	"github.com/accordharmony/foundation-api/internal/queue"
	"github.com/accordharmony/foundation-api/internal/repository"
	"github.com/accordharmony/foundation-api/internal/utils"
)

// HandleEvent dispatches one verified Stripe event. Unrecognized
// event types are acknowledged without action so Stripe stops
// retrying them. The handler is idempotent: replays of completed
// transactions are detected by the guarded status transition and the
// unique download-per-transaction constraint.
func (s *Service) HandleEvent(ctx context.Context, ev stripe.Event) error {
	switch ev.Type {
	case "checkout.session.completed":
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(ev.Data.Raw, &sess); err != nil {
			return fmt.Errorf("decode checkout session: %w", err)
		}
		txnID := sess.ClientReferenceID
		if txnID == "" {
			txnID = sess.Metadata["transaction_id"]
		}
		if txnID == "" {
			log.Printf("webhook: checkout.session.completed %s carries no transaction reference", sess.ID)
			return nil
		}
		var intentID, customerID *string
		if sess.PaymentIntent != nil {
			intentID = &sess.PaymentIntent.ID
		}
		if sess.Customer != nil {
			customerID = &sess.Customer.ID
		}
		// This event fires as soon as checkout finishes, which for
		// async payment methods is before any money moves. Record
		// the provider references now; one-time payments settle on
		// payment_intent.succeeded. Subscriptions have no payment
		// intent of their own, so they complete here.
		if err := s.Ledger.AttachPaymentRefs(ctx, txnID, intentID, customerID); err != nil {
			return err
		}
		if sess.Mode == stripe.CheckoutSessionModeSubscription {
			return s.completeAndFulfill(ctx, txnID, intentID, customerID)
		}
		return nil

	case "payment_intent.succeeded":
		// The authoritative completion signal for one-time payments.
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(ev.Data.Raw, &pi); err != nil {
			return fmt.Errorf("decode payment intent: %w", err)
		}
		txnID := pi.Metadata["transaction_id"]
		if txnID == "" {
			tx, err := s.Ledger.FindByPaymentIntent(ctx, pi.ID)
			if err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					log.Printf("webhook: payment_intent.succeeded %s matches no transaction", pi.ID)
					return nil
				}
				return err
			}
			txnID = tx.ID
		}
		return s.completeAndFulfill(ctx, txnID, &pi.ID, nil)

	case "payment_intent.payment_failed":
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(ev.Data.Raw, &pi); err != nil {
			return fmt.Errorf("decode payment intent: %w", err)
		}
		txnID := pi.Metadata["transaction_id"]
		if txnID == "" {
			tx, err := s.Ledger.FindByPaymentIntent(ctx, pi.ID)
			if err != nil {
				return nil // nothing to fail
			}
			txnID = tx.ID
		}
		if err := s.Ledger.MarkFailed(ctx, txnID); err != nil {
			return err
		}
		s.audit(ctx, nil, model.ActionPaymentFailed, "transaction", txnID, nil)
		return nil

	case "customer.subscription.created",
		"customer.subscription.updated",
		"customer.subscription.deleted":
		// Recurring donations renew through invoice events handled by
		// Stripe itself; we only acknowledge the lifecycle here.
		log.Printf("webhook: acknowledged %s", ev.Type)
		return nil

	default:
		log.Printf("webhook: ignoring event type %s", ev.Type)
		return nil
	}
}

// completeAndFulfill transitions the transaction and, when this call
// won the transition, runs fulfillment: grant, counter, email, queue
// event, audit entry.
func (s *Service) completeAndFulfill(ctx context.Context, txnID string, intentID, customerID *string) error {
	transitioned, err := s.Ledger.MarkCompleted(ctx, txnID, intentID, customerID)
	if err != nil {
		return err
	}
	if !transitioned {
		log.Printf("webhook: transaction %s already settled, skipping fulfillment", txnID)
		return nil
	}

	d, err := s.Ledger.Detail(ctx, txnID)
	if err != nil {
		return err
	}

	switch d.TransactionType {
	case model.TxTypePurchase:
		if err := s.fulfillPurchase(ctx, d); err != nil {
			return err
		}
	case model.TxTypeDonation:
		if err := s.Mailer.SendDonationReceipt(ctx, d.UserID, d.UserEmail, d.UserFullName, d.AmountCents, d.Currency); err != nil {
			log.Printf("webhook: donation receipt for %s failed: %v", txnID, err)
		}
	}

	evt := queue.PurchaseCompletedEvent{
		TransactionID: txnID,
		UserID:        d.UserID,
		Type:          d.TransactionType,
		AmountCents:   d.AmountCents,
		Currency:      d.Currency,
		PaymentMethod: d.PaymentMethod,
		ProductName:   d.ProductName,
		CompletedAt:   time.Now().UTC().Format(time.RFC3339),
	}
	if d.ProductID != nil {
		evt.ProductID = *d.ProductID
	}
	if s.Publish != nil {
		if err := s.Publish(ctx, evt); err != nil {
			log.Printf("webhook: publish event for %s failed: %v", txnID, err)
		}
	}

	action := model.ActionPurchaseCompleted
	if d.TransactionType == model.TxTypeDonation {
		action = model.ActionDonationCompleted
	}
	s.audit(ctx, &d.UserID, action, "transaction", txnID, nil)
	return nil
}

// fulfillPurchase mints the download grant and mails the link. A
// duplicate grant means another delivery of the same event already
// fulfilled; that is success, not failure.
func (s *Service) fulfillPurchase(ctx context.Context, d repository.TransactionDetail) error {
	if d.ProductID == nil {
		return fmt.Errorf("purchase transaction %s has no product", d.ID)
	}

	token, err := utils.RandomHex(32)
	if err != nil {
		return err
	}
	grant := model.Download{
		UserID:         d.UserID,
		TransactionID:  d.ID,
		ProductID:      *d.ProductID,
		DownloadToken:  token,
		TokenExpiresAt: delivery.EmailFlowPolicy.TokenExpiry(time.Now().UTC()),
		WatermarkText:  fmt.Sprintf("Licensed to: %s (%s)", d.UserFullName, d.UserEmail),
		MaxDownloads:   delivery.EmailFlowPolicy.MaxDownloads,
	}
	if err := s.Downloads.Create(ctx, &grant); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			log.Printf("webhook: grant for transaction %s already exists", d.ID)
			return nil
		}
		return err
	}

	if err := s.Catalog.IncrementSales(ctx, *d.ProductID); err != nil {
		log.Printf("webhook: sales counter for %s failed: %v", *d.ProductID, err)
	}

	info := email.PurchaseInfo{
		Name:          d.UserFullName,
		ProductName:   d.ProductName,
		AmountCents:   d.AmountCents,
		Currency:      d.Currency,
		TransactionID: d.ID,
		DownloadToken: token,
		ExpiresHours:  int(delivery.EmailFlowPolicy.TokenTTL.Hours()),
		MaxDownloads:  delivery.EmailFlowPolicy.MaxDownloads,
	}
	if err := s.Mailer.SendPurchaseConfirmation(ctx, d.UserID, d.UserEmail, info); err != nil {
		// The grant exists; the buyer can still reach it through the
		// account's download-info endpoint.
		log.Printf("webhook: purchase confirmation for %s failed: %v", d.ID, err)
	}
	return nil
}

func (s *Service) audit(ctx context.Context, userID *string, action, entityType, entityID string, changes *string) {
	if s.Audit == nil {
		return
	}
	e := model.AuditEntry{
		UserID:     userID,
		ActionType: action,
		EntityType: entityType,
		EntityID:   entityID,
		Changes:    changes,
	}
	if err := s.Audit.Create(ctx, &e); err != nil {
		log.Printf("audit: write failed (%s %s): %v", action, entityID, err)
	}
}
