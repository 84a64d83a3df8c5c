// Package router defines how HTTP routes are registered for the API.
package router

import (
	"net/http"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/accordharmony/foundation-api/internal/config"
	"github.com/accordharmony/foundation-api/internal/handler"
	"github.com/accordharmony/foundation-api/internal/middleware"
)

// Deps carries everything the route table needs. Handlers are built
// in main and wired here so the table stays readable in one place.
type Deps struct {
	Cfg   config.Config
	Redis *redis.Client
	Users middleware.UserSource

	Auth      *handler.AuthHandler
	Products  *handler.ProductHandler
	Checkout  *handler.CheckoutHandler
	Webhooks  *handler.WebhookHandler
	Downloads *handler.DownloadHandler
	Books     *handler.BookPurchaseHandler
	Legacy    *handler.LegacyHandler
}

// Register attaches middleware and the full route table to e.
func Register(e *echo.Echo, d Deps) {
	e.Use(echomw.Recover())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: []string{d.Cfg.FrontendURL},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderContentType, echo.HeaderAuthorization, "X-CSRF-Token"},
	}))

	e.GET("/healthz", handler.Health)

	api := e.Group("/api")
	api.Use(middleware.NewTokenBucket(config.LoadRateLimitConfig(), d.Redis))

	requireAuth := middleware.Authenticate(d.Cfg.JWTSecret, d.Users)

	// auth
	auth := api.Group("/auth")
	auth.POST("/register", d.Auth.Register)
	auth.POST("/login", d.Auth.Login)
	auth.POST("/refresh", d.Auth.Refresh)
	auth.POST("/logout", d.Auth.Logout)
	auth.POST("/google", d.Auth.OAuthGoogle)
	auth.POST("/facebook", d.Auth.OAuthFacebook)
	auth.POST("/password-reset", d.Auth.RequestPasswordReset)
	auth.POST("/password-reset/confirm", d.Auth.ConfirmPasswordReset)
	auth.GET("/me", d.Auth.Me, requireAuth)

	// catalog, cached: the products are reference data
	cache := middleware.NewRedisCache(config.LoadCacheConfig(), d.Redis)
	api.GET("/products", d.Products.List, cache)
	api.GET("/products/:id", d.Products.Get, cache)

	// checkout + transaction history (account flow)
	api.POST("/checkout/book", d.Checkout.CreateProductCheckout, requireAuth)
	api.POST("/checkout/donation", d.Checkout.CreateDonationCheckout, requireAuth)
	api.GET("/checkout/session/:id", d.Checkout.SessionStatus, requireAuth)
	api.GET("/transactions", d.Checkout.ListTransactions, requireAuth)
	api.GET("/transactions/:id", d.Checkout.GetTransaction, requireAuth)

	// the webhook authenticates with its signature, not a session
	api.POST("/webhooks/stripe", d.Webhooks.HandleStripe)

	// downloads carry their own token; no session required
	api.GET("/download", d.Downloads.Serve)
	api.GET("/download/info", d.Downloads.Info)
	api.POST("/download/resend", d.Downloads.Resend, requireAuth)

	// direct PayPal purchase path
	api.POST("/book-purchase", d.Books.Create)
	api.GET("/download-book/:token", d.Books.Download)

	// website form endpoints
	api.POST("/contact", d.Legacy.Contact)
	api.POST("/newsletter", d.Legacy.Newsletter)
	api.POST("/paypal-notify", d.Legacy.PayPalNotify)
	api.GET("/csrf-token", d.Legacy.CSRFToken)
}
