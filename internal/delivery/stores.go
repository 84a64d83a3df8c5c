package delivery

import (
	"context"
	"strings"
	"time"

	"github.com/accordharmony/foundation-api/internal/repository"
	"github.com/accordharmony/foundation-api/internal/watermark"
)

// DownloadStore adapts the downloads table (email-flow grants) to the
// GrantStore interface.
type DownloadStore struct {
	Repo *repository.DownloadRepo
}

func (s *DownloadStore) FindByToken(ctx context.Context, token string) (Grant, error) {
	d, err := s.Repo.FindByToken(ctx, token)
	if err != nil {
		return Grant{}, err
	}
	return Grant{
		ID:            d.ID,
		Token:         d.DownloadToken,
		ExpiresAt:     d.TokenExpiresAt,
		DownloadCount: d.DownloadCount,
		MaxDownloads:  d.MaxDownloads,
		SourceKey:     d.SourceFileKey,
		ArtifactKey:   d.WatermarkedFileKey,
		KeyPrefix:     "watermarked/" + d.TransactionID,
		FileName:      artifactFileName(d.ProductName),
		Meta: watermark.Meta{
			Name:    d.UserFullName,
			Email:   d.UserEmail,
			Receipt: d.TransactionID,
			Date:    d.CreatedAt,
		},
	}, nil
}

func (s *DownloadStore) RecordDownload(ctx context.Context, grantID, clientIP string) (bool, error) {
	return s.Repo.IncrementDownload(ctx, grantID, clientIP)
}

func (s *DownloadStore) SetArtifactKey(ctx context.Context, grantID, key string) error {
	return s.Repo.SetWatermarkedKey(ctx, grantID, key)
}

// BookPurchaseStore adapts direct PayPal purchases. Their artifact is
// stamped eagerly at purchase time, so ArtifactKey is always set and
// the pipeline's stamping branch is never taken.
type BookPurchaseStore struct {
	Repo     *repository.BookPurchaseRepo
	FileName string
}

func (s *BookPurchaseStore) FindByToken(ctx context.Context, token string) (Grant, error) {
	p, err := s.Repo.FindByToken(ctx, token)
	if err != nil {
		return Grant{}, err
	}
	key := p.FileKey
	return Grant{
		ID:            p.ID,
		Token:         p.DownloadToken,
		ExpiresAt:     p.ExpiryDate,
		DownloadCount: p.DownloadCount,
		MaxDownloads:  DirectPolicy.MaxDownloads,
		SourceKey:     key,
		ArtifactKey:   &key,
		FileName:      s.FileName,
		Meta: watermark.Meta{
			Name:    p.Name,
			Email:   p.Email,
			Receipt: p.ReceiptNumber,
			Date:    p.PurchaseDate,
		},
	}, nil
}

func (s *BookPurchaseStore) RecordDownload(ctx context.Context, grantID, _ string) (bool, error) {
	return s.Repo.IncrementDownload(ctx, grantID, DirectPolicy.MaxDownloads)
}

func (s *BookPurchaseStore) SetArtifactKey(ctx context.Context, grantID, key string) error {
	// artifact key is fixed at purchase time
	return nil
}

// artifactFileName turns a product name into a safe attachment
// filename.
func artifactFileName(product string) string {
	name := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == ' ', r == '-', r == '_':
			return '_'
		default:
			return -1
		}
	}, product)
	if name == "" {
		name = "download"
	}
	return name + ".pdf"
}

// TokenExpiry computes the expiry a policy gives a token minted now.
func (p Policy) TokenExpiry(now time.Time) time.Time {
	return now.Add(p.TokenTTL)
}
