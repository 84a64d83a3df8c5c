package main // Entry point package

import (
	"log"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/accordharmony/foundation-api/internal/auth"
	"github.com/accordharmony/foundation-api/internal/config"
	"github.com/accordharmony/foundation-api/internal/database"
	"github.com/accordharmony/foundation-api/internal/delivery"
	"github.com/accordharmony/foundation-api/internal/email"
	"github.com/accordharmony/foundation-api/internal/handler"
	"github.com/accordharmony/foundation-api/internal/payment"
	"github.com/accordharmony/foundation-api/internal/queue"
	"github.com/accordharmony/foundation-api/internal/repository"
	"github.com/accordharmony/foundation-api/internal/router"
	queuepublisher "github.com/accordharmony/foundation-api/internal/service"
	"github.com/accordharmony/foundation-api/internal/storage"
	"github.com/accordharmony/foundation-api/internal/watermark"
)

func main() {
	_ = godotenv.Load() // .env is optional; real env always wins
	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Printf("redis unavailable; rate limiting and caching disabled")
	}

	objects, err := storage.NewS3Store(cfg.S3Endpoint, cfg.S3AccessKey, cfg.S3SecretKey, cfg.S3Bucket, "auto", cfg.S3UseSSL)
	if err != nil {
		log.Fatalf("object storage: %v", err)
	}

	// repositories
	users := repository.NewUserRepo(db)
	sessions := repository.NewSessionRepo(db)
	products := repository.NewProductRepo(db)
	transactions := repository.NewTransactionRepo(db)
	downloads := repository.NewDownloadRepo(db)
	bookPurchases := repository.NewBookPurchaseRepo(db)
	emailLogs := repository.NewEmailLogRepo(db)
	auditLogs := repository.NewAuditLogRepo(db)
	newsletter := repository.NewNewsletterRepo(db)

	// services
	mailer := &email.Service{
		Sender:       email.NewResendSender(cfg.ResendAPIKey, cfg.EmailFrom),
		Log:          emailLogs,
		From:         cfg.EmailFrom,
		FrontendURL:  cfg.FrontendURL,
		ContactEmail: cfg.ContactEmail,
	}
	stamper := watermark.NewPDFStamper()
	accountDelivery := &delivery.Service{
		Store:   &delivery.DownloadStore{Repo: downloads},
		Objects: objects,
		Stamper: stamper,
	}
	directDelivery := &delivery.Service{
		Store:   &delivery.BookPurchaseStore{Repo: bookPurchases, FileName: "book.pdf"},
		Objects: objects,
		Stamper: stamper,
	}
	payments := &payment.Service{
		Ledger:        transactions,
		Catalog:       products,
		Downloads:     downloads,
		Mailer:        mailer,
		Publish:       queuepublisher.PublishPurchaseCompleted,
		Audit:         auditLogs,
		Stripe:        payment.NewStripeClient(cfg.StripeSecretKey),
		FrontendURL:   cfg.FrontendURL,
		WebhookSecret: cfg.StripeWebhookSecret,
	}

	var google, facebook auth.Exchanger
	if cfg.GoogleClientID != "" {
		google = auth.NewGoogleExchanger(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.FrontendURL+"/auth/google/callback")
	}
	if cfg.FacebookAppID != "" {
		facebook = auth.NewFacebookExchanger(cfg.FacebookAppID, cfg.FacebookAppSecret, cfg.FrontendURL+"/auth/facebook/callback")
	}

	// background consumer mirroring fulfillment events to the local log
	go func() {
		if err := queue.StartPurchaseConsumer(); err != nil {
			log.Printf("purchase-consumer stopped: %v", err)
		}
	}()

	e := echo.New()
	e.HideBanner = true
	router.Register(e, router.Deps{
		Cfg:   cfg,
		Redis: rdb,
		Users: users,
		Auth: &handler.AuthHandler{
			Cfg: cfg, Users: users, Sessions: sessions,
			Mail: mailer, Audit: auditLogs, Google: google, Facebook: facebook,
		},
		Products: &handler.ProductHandler{Products: products},
		Checkout: &handler.CheckoutHandler{Payments: payments, Transactions: transactions},
		Webhooks: &handler.WebhookHandler{Payments: payments},
		Downloads: &handler.DownloadHandler{
			Delivery: accountDelivery, Downloads: downloads,
			Ledger: transactions, Mail: mailer, Audit: auditLogs,
		},
		Books: &handler.BookPurchaseHandler{
			Purchases: bookPurchases, Delivery: directDelivery,
			Mail: mailer, SourceBookKey: cfg.SourceBookKey,
		},
		Legacy: &handler.LegacyHandler{Mail: mailer, Subscribers: newsletter},
	})

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)

	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
