package watermark

import (
	"bytes"
	"context"
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	pdfmodel "github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// Watermark layout constants. Sizes are in points; the gray footer
// text sits just inside the bottom margin, the bronze notice just
// under the top edge of page one.
const (
	footerGray   = "#666666"
	noticeBronze = "#8b6914"
	footerOp     = 0.4
	noticeOp     = 0.5
)

// PDFStamper renders watermarks with pdfcpu, entirely in memory.
type PDFStamper struct {
	conf *pdfmodel.Configuration
}

func NewPDFStamper() *PDFStamper {
	c := pdfmodel.NewDefaultConfiguration()
	c.ValidationMode = pdfmodel.ValidationRelaxed
	return &PDFStamper{conf: c}
}

// Stamp returns a copy of src with the buyer footer on every page and
// the usage notice on page one. The context is checked between the
// page-count pass and the render pass; pdfcpu itself is not
// cancellable mid-render.
func (s *PDFStamper) Stamp(ctx context.Context, src []byte, meta Meta) ([]byte, error) {
	pages, err := api.PageCount(bytes.NewReader(src), s.conf)
	if err != nil {
		return nil, fmt.Errorf("count pages: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	marks := make(map[int][]*pdfmodel.Watermark, pages)
	for p := 1; p <= pages; p++ {
		pageNum, err := textMark(pageFooter(p, pages),
			fmt.Sprintf("points:6, pos:bc, off:0 14, fillc:%s, op:%.1f, rot:0", footerGray, footerOp))
		if err != nil {
			return nil, err
		}
		lic, err := textMark(licenseFooter(meta),
			fmt.Sprintf("points:5, pos:bl, off:30 12, fillc:%s, op:%.1f, rot:0", footerGray, footerOp))
		if err != nil {
			return nil, err
		}
		rcpt, err := textMark(receiptFooter(meta),
			fmt.Sprintf("points:5, pos:br, off:-30 12, fillc:%s, op:%.1f, rot:0", footerGray, footerOp))
		if err != nil {
			return nil, err
		}
		marks[p] = []*pdfmodel.Watermark{pageNum, lic, rcpt}
	}

	notice, err := textMark(usageNotice,
		fmt.Sprintf("points:8, pos:tc, off:0 -16, fillc:%s, op:%.1f, rot:0", noticeBronze, noticeOp))
	if err != nil {
		return nil, err
	}
	marks[1] = append(marks[1], notice)

	var out bytes.Buffer
	if err := api.AddWatermarksSliceMap(bytes.NewReader(src), &out, marks, s.conf); err != nil {
		return nil, fmt.Errorf("stamp pdf: %w", err)
	}
	return out.Bytes(), nil
}

func textMark(text, desc string) (*pdfmodel.Watermark, error) {
	// onTop so the text overlays page content instead of hiding
	// behind opaque backgrounds.
	return api.TextWatermark(text, desc, true, false, types.POINTS)
}
