// Package watermark stamps purchased PDFs with buyer-identifying
// footer text before delivery. Every page gets a three-part footer
// (page number, licensee, receipt) and the first page additionally
// carries a usage notice at the top.
package watermark

import (
	"context"
	"fmt"
	"time"
)

// Meta identifies the buyer a copy is licensed to.
type Meta struct {
	Name    string
	Email   string
	Receipt string
	Date    time.Time
}

// Stamper renders a personalized copy of a source PDF.
type Stamper interface {
	Stamp(ctx context.Context, src []byte, meta Meta) ([]byte, error)
}

// footer text builders, split out so the layout is testable without
// rendering a PDF.

func pageFooter(page, total int) string {
	return fmt.Sprintf("Page %d of %d", page, total)
}

func licenseFooter(m Meta) string {
	return fmt.Sprintf("Licensed to: %s\n%s", m.Name, m.Email)
}

func receiptFooter(m Meta) string {
	return fmt.Sprintf("Receipt: %s\n%s", m.Receipt, m.Date.UTC().Format("2006-01-02"))
}

const usageNotice = "For Personal, Non-Commercial Use Only"
