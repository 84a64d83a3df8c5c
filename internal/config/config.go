package config // package config loads application configuration from environment variables

import (
    "log"     // log is used to report configuration errors and halt execution
    "os"      // os provides access to environment variables
    "strconv" // strconv converts strings to other types
    "time"    // time parses duration-valued variables
)

// Config holds all runtime configuration values. Each field maps to an
// environment variable. The struct is built once at startup and passed
// by value into the components that need it; nothing reads the
// environment after Load returns.
type Config struct {
	Env  string // application environment (e.g. "dev", "prod")
	Port string // HTTP port to listen on

	DBUser string // database username
	DBPass string // database password (optional)
	DBHost string // database host address
	DBPort string // database port number
	DBName string // database name

	JWTSecret      string // secret used to sign JWTs
	AccessTTLMin   int    // access token time-to-live in minutes
	RefreshTTLDays int    // refresh token time-to-live in days
	BcryptCost     int    // bcrypt cost for password hashing

	FrontendURL string // public site origin for redirects and email links

	StripeSecretKey     string // Stripe API secret key
	StripeWebhookSecret string // Stripe webhook signing secret

	ResendAPIKey string // Resend API key for transactional email
	EmailFrom    string // From header, e.g. `Foundation <noreply@example.org>`
	ContactEmail string // inbox receiving contact-form submissions

	GoogleClientID     string // Google OAuth client id
	GoogleClientSecret string // Google OAuth client secret
	FacebookAppID      string // Facebook OAuth app id
	FacebookAppSecret  string // Facebook OAuth app secret

	S3Endpoint  string // object storage endpoint (R2/S3 compatible)
	S3AccessKey string // object storage access key
	S3SecretKey string // object storage secret key
	S3Bucket    string // bucket holding source and watermarked artifacts
	S3UseSSL    bool   // whether to talk TLS to the endpoint

	SourceBookKey string // well-known key of the canonical book PDF
}

// Load reads configuration from environment variables. Required
// variables are enforced by must(); missing values cause the program
// to exit with a fatal log message. Provider credentials are read
// with must() too: the service cannot fulfill purchases without them.
func Load() Config {
	return Config{
		Env:  must("APP_ENV"),
		Port: must("APP_PORT"),

		DBUser: must("DB_USER"),
		DBPass: os.Getenv("DB_PASS"), // empty allowed
		DBHost: must("DB_HOST"),
		DBPort: must("DB_PORT"),
		DBName: must("DB_NAME"),

		JWTSecret:      must("JWT_SECRET"),
		AccessTTLMin:   mustInt("ACCESS_TOKEN_TTL_MIN"),
		RefreshTTLDays: mustInt("REFRESH_TOKEN_TTL_DAYS"),
		BcryptCost:     mustInt("BCRYPT_COST"),

		FrontendURL: must("FRONTEND_URL"),

		StripeSecretKey:     must("STRIPE_SECRET_KEY"),
		StripeWebhookSecret: must("STRIPE_WEBHOOK_SECRET"),

		ResendAPIKey: must("RESEND_API_KEY"),
		EmailFrom:    envStr("EMAIL_FROM", "Accord and Harmony Foundation <noreply@accordandharmony.org>"),
		ContactEmail: envStr("CONTACT_EMAIL", "contact@acchm.org"),

		GoogleClientID:     os.Getenv("GOOGLE_CLIENT_ID"),
		GoogleClientSecret: os.Getenv("GOOGLE_CLIENT_SECRET"),
		FacebookAppID:      os.Getenv("FACEBOOK_APP_ID"),
		FacebookAppSecret:  os.Getenv("FACEBOOK_APP_SECRET"),

		S3Endpoint:  must("S3_ENDPOINT"),
		S3AccessKey: must("S3_ACCESS_KEY"),
		S3SecretKey: must("S3_SECRET_KEY"),
		S3Bucket:    must("S3_BUCKET"),
		S3UseSSL:    envBool("S3_USE_SSL", true),

		SourceBookKey: envStr("SOURCE_BOOK_KEY", "books/master/JAZZ_TRUMPET_MASTER_CLASS.pdf"),
	}
}

// must retrieves the value of a required environment variable. If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

// mustInt is like must() but converts the retrieved string into an integer.
func mustInt(key string) int {
	s := must(key)
	n, err := strconv.Atoi(s)
	if err != nil {
		log.Fatalf("invalid int for %s: %q", key, s)
	}
	return n
}

func envStr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func envBool(k string, d bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	switch v {
	case "1", "true", "TRUE", "True", "yes", "YES", "on", "ON":
		return true
	case "0", "false", "FALSE", "False", "no", "NO", "off", "OFF":
		return false
	}
	return d
}

func envInt(k string, d int) int {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return n
	}
	return d
}

func envDur(k string, d time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if dur, err := time.ParseDuration(v); err == nil {
		return dur
	}
	return d
}
