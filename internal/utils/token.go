package utils // package utils provides helpers for token creation, hashing and IDs

import (
    "crypto/rand"   // secure random number generation
    "crypto/sha256" // SHA-256 hashing for stored access tokens
    "encoding/hex"  // hex encoding of digests and random bytes
    "errors"        // sentinel error values
    "fmt"           // receipt number formatting
    "math/big"      // uniform random receipt suffixes
    "strings"       // id prefix assembly
    "time"          // expiry computation

    "github.com/golang-jwt/jwt/v5" // JWT library for creating signed tokens
    "github.com/google/uuid"       // UUIDv4 source for entity ids
)

// Token type claims. Every JWT carries a "type" claim so an access
// token can never be replayed as a refresh token or vice versa.
const (
	TokenAccess  = "access"
	TokenRefresh = "refresh"
	TokenReset   = "reset"
)

// Reset tokens are always short-lived regardless of configuration.
const resetTokenTTL = time.Hour

var (
	// ErrTokenExpired reports a structurally valid token past its exp.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenInvalid reports a malformed or badly signed token.
	ErrTokenInvalid = errors.New("invalid token")
)

// Claims is the decoded, validated payload of one of our JWTs.
type Claims struct {
	UserID string // "sub"
	Email  string // "email"
	Type   string // "type": access | refresh | reset
	JTI    string // "jti", set on refresh tokens only
}

// NewAccessToken signs a short-lived HS256 access token for the user.
// The token proves identity only; the caller must still confirm the
// user is active before trusting it.
func NewAccessToken(secret, userID, email string, ttlMin int) (string, time.Time, error) {
	exp := time.Now().UTC().Add(time.Duration(ttlMin) * time.Minute)
	return signToken(secret, jwt.MapClaims{
		"sub":   userID,
		"email": email,
		"type":  TokenAccess,
		"exp":   exp.Unix(),
		"iat":   time.Now().UTC().Unix(),
	}, exp)
}

// NewRefreshToken signs a long-lived HS256 refresh token. The jti
// claim gives each refresh token a unique identity even when the same
// user logs in twice within one second.
func NewRefreshToken(secret, userID, email string, ttlDays int) (string, time.Time, error) {
	exp := time.Now().UTC().Add(time.Duration(ttlDays) * 24 * time.Hour)
	return signToken(secret, jwt.MapClaims{
		"sub":   userID,
		"email": email,
		"type":  TokenRefresh,
		"jti":   uuid.NewString(),
		"exp":   exp.Unix(),
		"iat":   time.Now().UTC().Unix(),
	}, exp)
}

// NewResetToken signs a one-hour password-reset token.
func NewResetToken(secret, userID, email string) (string, time.Time, error) {
	exp := time.Now().UTC().Add(resetTokenTTL)
	return signToken(secret, jwt.MapClaims{
		"sub":   userID,
		"email": email,
		"type":  TokenReset,
		"exp":   exp.Unix(),
		"iat":   time.Now().UTC().Unix(),
	}, exp)
}

func signToken(secret string, claims jwt.MapClaims, exp time.Time) (string, time.Time, error) {
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString([]byte(secret))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// VerifyToken checks signature and expiry and returns the decoded
// claims. Expired and invalid tokens are distinguished so callers can
// tell a client to refresh versus to re-authenticate. It does not
// check that the user still exists or is active.
func VerifyToken(secret, raw string) (Claims, error) {
	tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrTokenInvalid
		}
		return []byte(secret), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Claims{}, ErrTokenExpired
		}
		return Claims{}, ErrTokenInvalid
	}
	mc, ok := tok.Claims.(jwt.MapClaims)
	if !ok || !tok.Valid {
		return Claims{}, ErrTokenInvalid
	}
	c := Claims{}
	if v, ok := mc["sub"].(string); ok {
		c.UserID = v
	}
	if v, ok := mc["email"].(string); ok {
		c.Email = v
	}
	if v, ok := mc["type"].(string); ok {
		c.Type = v
	}
	if v, ok := mc["jti"].(string); ok {
		c.JTI = v
	}
	if c.UserID == "" || c.Type == "" {
		return Claims{}, ErrTokenInvalid
	}
	return c, nil
}

// HashToken returns the SHA-256 hex digest of a token. Access tokens
// are stored on the session row only in this form.
func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// RandomHex returns n bytes of cryptographically secure random data
// hex-encoded (2n characters). Used for opaque download tokens.
func RandomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// NewID returns a prefixed unique identifier such as "usr_3f2a...".
func NewID(prefix string) string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	if prefix == "" {
		return id
	}
	return prefix + "_" + id
}

// NewReceiptNumber builds a human-readable receipt number in the
// AHF-YYYY-NNNN form used on tax receipts.
func NewReceiptNumber() string {
	n, err := rand.Int(rand.Reader, big.NewInt(10000))
	if err != nil {
		// crypto/rand failing is unrecoverable for practical purposes
		n = big.NewInt(time.Now().UnixNano() % 10000)
	}
	return fmt.Sprintf("AHF-%d-%04d", time.Now().UTC().Year(), n.Int64())
}
