// Package email sends the foundation's transactional mail through
// Resend and records every attempt in email_logs. Delivery failures
// for courtesy mail (welcome) are swallowed; failures for mail the
// user depends on (download links, password resets) are surfaced.
package email

import (
	"context"
	"log"

	"github.com/accordharmony/foundation-api/internal/model"
)

// Email types recorded in email_logs.
const (
	TypeWelcome       = "welcome"
	TypePurchase      = "purchase_confirmation"
	TypeDonation      = "donation_receipt"
	TypePasswordReset = "password_reset"
	TypeBookDelivery  = "book_delivery"
	TypeContact       = "contact_form"
)

// Sender submits one message to the mail provider and returns its
// message id.
type Sender interface {
	Send(ctx context.Context, to, subject, html, text string) (string, error)
}

// Log records email attempts. *repository.EmailLogRepo satisfies it.
type Log interface {
	Create(ctx context.Context, l *model.EmailLog) error
}

// Service composes and sends the application's messages.
type Service struct {
	Sender       Sender
	Log          Log
	From         string // informational; the sender binds the from address
	FrontendURL  string
	ContactEmail string
}

// send dispatches and logs one message. The returned error reflects
// provider delivery only; a logging failure is printed and dropped.
func (s *Service) send(ctx context.Context, userID *string, to, emailType, subject, html, text string) error {
	msgID, err := s.Sender.Send(ctx, to, subject, html, text)

	entry := model.EmailLog{
		UserID:    userID,
		EmailTo:   to,
		EmailType: emailType,
		Subject:   subject,
		Provider:  "resend",
		Status:    "sent",
	}
	if msgID != "" {
		entry.MessageID = &msgID
	}
	if err != nil {
		entry.Status = "failed"
	}
	if logErr := s.Log.Create(ctx, &entry); logErr != nil {
		log.Printf("email: log write failed (%s to %s): %v", emailType, to, logErr)
	}
	return err
}

// SendWelcome greets a new account. Failure is logged but never
// blocks registration.
func (s *Service) SendWelcome(ctx context.Context, userID, to, name string) {
	subject, html, text := welcomeMessage(name, s.FrontendURL)
	if err := s.send(ctx, &userID, to, TypeWelcome, subject, html, text); err != nil {
		log.Printf("email: welcome to %s failed: %v", to, err)
	}
}

// PurchaseInfo carries everything the confirmation template needs.
type PurchaseInfo struct {
	Name          string
	ProductName   string
	AmountCents   int64
	Currency      string
	TransactionID string
	DownloadToken string
	ExpiresHours  int
	MaxDownloads  int
}

// SendPurchaseConfirmation delivers the download link after a product
// purchase completes. This is the mail the buyer is waiting for, so
// the error is returned.
func (s *Service) SendPurchaseConfirmation(ctx context.Context, userID, to string, info PurchaseInfo) error {
	subject, html, text := purchaseMessage(info, s.FrontendURL)
	return s.send(ctx, &userID, to, TypePurchase, subject, html, text)
}

// SendDonationReceipt thanks a donor after their payment completes.
// userID may be empty for donations arriving outside the account flow.
func (s *Service) SendDonationReceipt(ctx context.Context, userID, to, name string, amountCents int64, currency string) error {
	subject, html, text := donationMessage(name, amountCents, currency)
	var uid *string
	if userID != "" {
		uid = &userID
	}
	return s.send(ctx, uid, to, TypeDonation, subject, html, text)
}

// SendPasswordReset mails the one-hour reset link.
func (s *Service) SendPasswordReset(ctx context.Context, userID, to, name, token string) error {
	subject, html, text := passwordResetMessage(name, token, s.FrontendURL)
	return s.send(ctx, &userID, to, TypePasswordReset, subject, html, text)
}

// BookDeliveryInfo parameterizes the direct-purchase delivery mail.
type BookDeliveryInfo struct {
	Name          string
	Language      string // "en", "de", "fr", "bg"
	ReceiptNumber string
	DownloadToken string
	ExpiryDays    int
	MaxDownloads  int
}

// SendBookDelivery mails the download link and receipt for a direct
// PayPal book purchase, localized to the buyer's language.
func (s *Service) SendBookDelivery(ctx context.Context, to string, info BookDeliveryInfo) error {
	subject, html, text := bookDeliveryMessage(info, s.FrontendURL)
	return s.send(ctx, nil, to, TypeBookDelivery, subject, html, text)
}

// ForwardContactForm relays a website contact submission to the
// foundation inbox.
func (s *Service) ForwardContactForm(ctx context.Context, fromName, fromEmail, message string) error {
	subject, html, text := contactMessage(fromName, fromEmail, message)
	return s.send(ctx, nil, s.ContactEmail, TypeContact, subject, html, text)
}
