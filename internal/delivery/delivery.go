// Package delivery serves watermarked artifacts against download
// tokens. Both purchase paths (account checkout and direct PayPal)
// funnel into the same pipeline; only the policy attached to the
// grant differs.
package delivery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/accordharmony/foundation-api/internal/storage"
	"github.com/accordharmony/foundation-api/internal/utils"
	"github.com/accordharmony/foundation-api/internal/watermark"
)

var (
	// ErrUnknownToken means no grant exists for the presented token.
	ErrUnknownToken = errors.New("unknown download token")
	// ErrExpired means the grant exists but its token has lapsed.
	ErrExpired = errors.New("download link expired")
	// ErrLimitExceeded means the grant's download cap is used up.
	ErrLimitExceeded = errors.New("download limit reached")
)

// Policy bounds a grant: how long its token lives and how many
// downloads it permits.
type Policy struct {
	TokenTTL     time.Duration
	MaxDownloads int
}

// EmailFlowPolicy covers grants minted by webhook fulfillment and
// delivered by email: a short window, since the buyer is expected to
// click through promptly.
var EmailFlowPolicy = Policy{TokenTTL: 24 * time.Hour, MaxDownloads: 5}

// DirectPolicy covers direct PayPal purchases, where the token is
// shown on the confirmation page and may be revisited for a month.
var DirectPolicy = Policy{TokenTTL: 30 * 24 * time.Hour, MaxDownloads: 5}

// Grant is one buyer's right to download one artifact.
type Grant struct {
	ID            string
	Token         string
	ExpiresAt     time.Time
	DownloadCount int
	MaxDownloads  int

	// SourceKey is the master artifact; ArtifactKey, when set, is the
	// already-stamped personal copy. KeyPrefix is where a freshly
	// stamped copy should be stored.
	SourceKey   string
	ArtifactKey *string
	KeyPrefix   string

	FileName string
	Meta     watermark.Meta
}

// GrantStore resolves tokens to grants and records downloads. Both
// the downloads table and the book_purchases table satisfy it through
// adapters.
type GrantStore interface {
	FindByToken(ctx context.Context, token string) (Grant, error)
	// RecordDownload counts one download; false means the cap was
	// already reached (the count never passes the cap).
	RecordDownload(ctx context.Context, grantID, clientIP string) (bool, error)
	// SetArtifactKey memoizes the stamped copy's object key.
	SetArtifactKey(ctx context.Context, grantID, key string) error
}

// Result is a served artifact plus the headers' worth of metadata.
type Result struct {
	Data      []byte
	FileName  string
	Remaining int
}

// Service runs the delivery pipeline: resolve, authorize, stamp (or
// reuse), count, serve.
type Service struct {
	Store   GrantStore
	Objects storage.ObjectStore
	Stamper watermark.Stamper
}

// Serve validates token and returns the watermarked artifact. The
// stamped copy is produced on first download and reused afterwards,
// so repeated downloads cost one object fetch instead of a render.
func (s *Service) Serve(ctx context.Context, token, clientIP string) (Result, error) {
	g, err := s.Store.FindByToken(ctx, token)
	if err != nil {
		return Result{}, ErrUnknownToken
	}
	if time.Now().After(g.ExpiresAt) {
		return Result{}, ErrExpired
	}
	if g.DownloadCount >= g.MaxDownloads {
		return Result{}, ErrLimitExceeded
	}

	data, err := s.artifact(ctx, &g)
	if err != nil {
		return Result{}, err
	}

	ok, err := s.Store.RecordDownload(ctx, g.ID, clientIP)
	if err != nil {
		return Result{}, err
	}
	if !ok {
		// lost a race against a concurrent download on the last slot
		return Result{}, ErrLimitExceeded
	}

	return Result{
		Data:      data,
		FileName:  g.FileName,
		Remaining: g.MaxDownloads - g.DownloadCount - 1,
	}, nil
}

// artifact returns the stamped copy, producing and memoizing it if
// this is the first download.
func (s *Service) artifact(ctx context.Context, g *Grant) ([]byte, error) {
	if g.ArtifactKey != nil {
		data, err := s.Objects.Get(ctx, *g.ArtifactKey)
		if err == nil {
			return data, nil
		}
		if !errors.Is(err, storage.ErrObjectNotFound) {
			return nil, err
		}
		// fall through and re-stamp if the memoized object vanished
	}

	src, err := s.Objects.Get(ctx, g.SourceKey)
	if err != nil {
		return nil, fmt.Errorf("fetch source artifact: %w", err)
	}
	stamped, err := s.Stamper.Stamp(ctx, src, g.Meta)
	if err != nil {
		return nil, fmt.Errorf("watermark artifact: %w", err)
	}

	rnd, err := utils.RandomHex(8)
	if err != nil {
		return nil, err
	}
	key := fmt.Sprintf("%s/%s.pdf", g.KeyPrefix, rnd)
	if err := s.Objects.Put(ctx, key, stamped, "application/pdf"); err != nil {
		return nil, fmt.Errorf("store stamped artifact: %w", err)
	}
	if err := s.Store.SetArtifactKey(ctx, g.ID, key); err != nil {
		return nil, err
	}
	g.ArtifactKey = &key
	return stamped, nil
}

// StampTo renders and stores a stamped copy eagerly under key, used
// by the direct purchase path which watermarks at purchase time.
func (s *Service) StampTo(ctx context.Context, sourceKey, destKey string, meta watermark.Meta) error {
	src, err := s.Objects.Get(ctx, sourceKey)
	if err != nil {
		return fmt.Errorf("fetch source artifact: %w", err)
	}
	stamped, err := s.Stamper.Stamp(ctx, src, meta)
	if err != nil {
		return fmt.Errorf("watermark artifact: %w", err)
	}
	return s.Objects.Put(ctx, destKey, stamped, "application/pdf")
}
