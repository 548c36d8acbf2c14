// Package metadata derives the overview facts shown for a filing.
package metadata

import (
	"regexp"
	"strings"
	"time"

	"github.com/dgallion1/tenkview/internal/layout"
	"github.com/dgallion1/tenkview/internal/textutil"
)

// DefaultPreviewChars bounds the preview text.
const DefaultPreviewChars = 1000

// DateLayout is the display form of the fiscal-year date.
const DateLayout = "January 2, 2006"

// fiscalPages is how many leading pages are searched for the fiscal year.
const fiscalPages = 2

var fiscalYearPattern = regexp.MustCompile(`(?i)(?:fiscal\s+)?year\s+ended\s+(january|february|march|april|may|june|july|august|september|october|november|december)\s+(\d{1,2})\s*,?\s*(\d{4})`)

// Metadata is the overview for one filing.
type Metadata struct {
	Filename       string  `json:"filename"`
	NumPages       int     `json:"num_pages"`
	Preview        string  `json:"preview"`
	FiscalYearDate *string `json:"fiscal_year_date"`
	FirstPage      string  `json:"first_page"`
	BodyFontSize   float64 `json:"body_font_size"`
	WordCount      int     `json:"word_count"`
}

// Options tunes the preview.
type Options struct {
	PreviewChars int
}

// Extract computes the overview. It does not fail: missing facts are empty or nil.
func Extract(doc *layout.Document, filename string, opts Options) Metadata {
	limit := opts.PreviewChars
	if limit <= 0 {
		limit = DefaultPreviewChars
	}

	words := 0
	for _, l := range doc.Lines() {
		words += textutil.WordCount(l.Text())
	}

	return Metadata{
		Filename:       filename,
		NumPages:       doc.NumPages(),
		Preview:        Preview(doc, limit),
		FiscalYearDate: FiscalYearDate(doc),
		FirstPage:      doc.PageMarkdown(1),
		BodyFontSize:   doc.BodyFontSize(),
		WordCount:      words,
	}
}

// Preview is the body text after the cover page, cut at a paragraph boundary.
// Single-page filings preview page 1.
func Preview(doc *layout.Document, limit int) string {
	first := 2
	if doc.NumPages() < 2 {
		first = 1
	}
	var lines []layout.Line
	for _, p := range doc.Pages() {
		if p.Number >= first {
			lines = append(lines, p.Lines...)
		}
	}
	text := strings.ReplaceAll(doc.Markdown(lines), "**", "")
	return textutil.Truncate(text, limit)
}

// FiscalYearDate finds "fiscal year ended <Month> <d>, <yyyy>" on the first
// pages. Dates that are not on the calendar, such as February 30, yield nil.
func FiscalYearDate(doc *layout.Document) *string {
	for n := 1; n <= min(fiscalPages, doc.NumPages()); n++ {
		p, _ := doc.Page(n)
		var sb strings.Builder
		for _, l := range p.Lines {
			sb.WriteString(l.Text())
			sb.WriteByte('\n')
		}
		for _, m := range fiscalYearPattern.FindAllStringSubmatch(sb.String(), -1) {
			raw := strings.ToUpper(m[1][:1]) + strings.ToLower(m[1][1:]) + " " + m[2] + ", " + m[3]
			t, err := time.Parse(DateLayout, raw)
			if err != nil {
				continue
			}
			s := t.Format(DateLayout)
			return &s
		}
	}
	return nil
}
