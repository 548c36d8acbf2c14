package parser

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"

	pdflib "github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/dgallion1/tenkview/internal/layout"
)

// Glyph grouping thresholds, as multiples of the glyph's font size.
const (
	rowTolerance  = 0.5
	wordGap       = 0.25
	fragmentGap   = 1.2
	minGlyphSize  = 1.0
	defaultGlyphH = 10.0
)

// PDFParser reconstructs positioned lines from a PDF's content streams.
type PDFParser struct {
	Log *slog.Logger
}

func (p *PDFParser) Parse(ctx context.Context, data []byte) (*layout.Document, error) {
	log := p.Log
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	structPages, structErr := inspectPDF(data)

	r, err := openPDF(data)
	if err != nil {
		if structErr != nil {
			return nil, fmt.Errorf("%w: %v (structure: %v)", layout.ErrUnreadablePDF, err, structErr)
		}
		return nil, fmt.Errorf("%w: %v", layout.ErrUnreadablePDF, err)
	}

	numPages := r.NumPage()
	total := pageCount(log, structPages, structErr, numPages)

	pages := make([]layout.Page, 0, total)
	for i := 1; i <= total; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var lines []layout.Line
		if i <= numPages {
			lines, err = readPage(r, i)
			if err != nil {
				log.Warn("page content unreadable", "page", i, "error", err)
			}
		}
		pages = append(pages, layout.Page{Number: i, Lines: lines})
	}

	doc := layout.NewDocument(pages)
	if !doc.HasText() {
		return nil, fmt.Errorf("%w: no extractable text in %d pages", layout.ErrUnreadablePDF, total)
	}
	return doc, nil
}

// pageCount settles how many pages the document has. It is never below the
// page tree count read by pdfcpu, so pages the content reader misses are kept
// as empty pages and page numbers stay true to the file.
func pageCount(log *slog.Logger, structPages int, structErr error, contentPages int) int {
	if structErr != nil {
		log.Warn("pdf structure check failed, continuing with content reader", "error", structErr)
		return contentPages
	}
	if structPages == contentPages {
		return contentPages
	}
	log.Warn("pdf page count disagreement", "structure", structPages, "content", contentPages)
	return max(structPages, contentPages)
}

// inspectPDF reads the cross-reference structure and returns the page count.
func inspectPDF(data []byte) (n int, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			n, err = 0, fmt.Errorf("read pdf context: %v", rec)
		}
	}()
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	ctx, err := api.ReadContext(bytes.NewReader(data), conf)
	if err != nil {
		return 0, fmt.Errorf("read pdf context: %w", err)
	}
	if err := ctx.EnsurePageCount(); err != nil {
		return 0, fmt.Errorf("page count: %w", err)
	}
	return ctx.PageCount, nil
}

func openPDF(data []byte) (r *pdflib.Reader, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			r, err = nil, fmt.Errorf("open pdf: %v", rec)
		}
	}()
	r, err = pdflib.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	return r, nil
}

func readPage(r *pdflib.Reader, n int) (lines []layout.Line, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			lines, err = nil, fmt.Errorf("decode page %d: %v", n, rec)
		}
	}()
	page := r.Page(n)
	if page.V.IsNull() {
		return nil, nil
	}
	return glyphLines(page.Content().Text), nil
}

// glyphLines groups glyphs into rows by baseline, then rows into word-joined fragments.
func glyphLines(glyphs []pdflib.Text) []layout.Line {
	glyphs = nonEmptyGlyphs(glyphs)
	if len(glyphs) == 0 {
		return nil
	}
	sort.SliceStable(glyphs, func(i, j int) bool { return glyphs[i].Y > glyphs[j].Y })

	var rows [][]pdflib.Text
	var rowY float64
	for _, g := range glyphs {
		if n := len(rows); n > 0 && math.Abs(rowY-g.Y) <= rowTolerance*glyphSize(g) {
			rows[n-1] = append(rows[n-1], g)
			continue
		}
		rows = append(rows, []pdflib.Text{g})
		rowY = g.Y
	}

	lines := make([]layout.Line, 0, len(rows))
	for _, row := range rows {
		sort.SliceStable(row, func(i, j int) bool { return row[i].X < row[j].X })
		frags := rowFragments(row)
		if len(frags) == 0 {
			continue
		}
		lines = append(lines, layout.Line{Y: row[0].Y, Fragments: frags})
	}
	return lines
}

func nonEmptyGlyphs(glyphs []pdflib.Text) []pdflib.Text {
	out := make([]pdflib.Text, 0, len(glyphs))
	for _, g := range glyphs {
		if g.S == "" {
			continue
		}
		out = append(out, g)
	}
	return out
}

func rowFragments(row []pdflib.Text) []layout.Fragment {
	var frags []layout.Fragment
	var cur *layout.Fragment
	var sb strings.Builder
	var prevRight float64
	pendingSpace := false

	flush := func() {
		if cur == nil {
			return
		}
		cur.Text = strings.TrimSpace(sb.String())
		if cur.Text != "" {
			frags = append(frags, *cur)
		}
		cur = nil
		sb.Reset()
	}

	for _, g := range row {
		if strings.TrimSpace(g.S) == "" {
			pendingSpace = true
			continue
		}
		size := glyphSize(g)
		bold, italic := fontStyle(g.Font)
		gap := g.X - prevRight

		if cur != nil && (bold != cur.Bold || gap > fragmentGap*size) {
			flush()
		}
		right := g.X + g.W
		if cur == nil {
			cur = &layout.Fragment{X: g.X, Y: g.Y, FontSize: size, Bold: bold, Italic: italic}
			prevRight = right
		} else if pendingSpace || gap > wordGap*size {
			sb.WriteByte(' ')
		}
		pendingSpace = false

		sb.WriteString(g.S)
		if size > cur.FontSize {
			cur.FontSize = size
		}
		if right > prevRight {
			prevRight = right
		}
		cur.Width = prevRight - cur.X
	}
	flush()
	return frags
}

func glyphSize(g pdflib.Text) float64 {
	if g.FontSize < minGlyphSize {
		return defaultGlyphH
	}
	return g.FontSize
}

// fontStyle infers weight and slant from the PostScript font name.
func fontStyle(font string) (bold, italic bool) {
	name := strings.ToLower(font)
	if i := strings.IndexByte(name, '+'); i >= 0 {
		name = name[i+1:]
	}
	for _, w := range []string{"bold", "black", "heavy", "semibold", "demi"} {
		if strings.Contains(name, w) {
			bold = true
			break
		}
	}
	italic = strings.Contains(name, "italic") || strings.Contains(name, "oblique")
	return bold, italic
}
