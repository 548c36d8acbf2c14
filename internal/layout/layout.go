package layout

import (
	"errors"
	"math"
	"regexp"
	"strings"
)

// ErrUnreadablePDF is returned when a filing cannot be decoded or yields no text.
var ErrUnreadablePDF = errors.New("layout: unreadable pdf")

// Fragment is a run of text sharing one font, positioned on a page.
type Fragment struct {
	Text     string  `json:"text"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Width    float64 `json:"width"`
	FontSize float64 `json:"font_size"`
	Bold     bool    `json:"bold,omitempty"`
	Italic   bool    `json:"italic,omitempty"`
}

// Right is the x coordinate of the fragment's right edge.
func (f Fragment) Right() float64 { return f.X + f.Width }

// Line is one visual row of text on a page, fragments ordered left to right.
type Line struct {
	Page      int        `json:"page"`
	Index     int        `json:"index"`      // position in Document.Lines
	PageIndex int        `json:"page_index"` // position on its page
	Y         float64    `json:"y"`
	GapBefore float64    `json:"gap_before"` // vertical distance from the previous line on the page
	Fragments []Fragment `json:"fragments"`
}

// Text joins the line's fragments with single spaces.
func (l Line) Text() string {
	parts := make([]string, 0, len(l.Fragments))
	for _, f := range l.Fragments {
		if t := strings.TrimSpace(f.Text); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}

// Markdown renders the line with bold runs wrapped in **.
func (l Line) Markdown() string {
	var rb runBuilder
	rb.addLine(l)
	return rb.String()
}

// FontSize is the largest font size on the line.
func (l Line) FontSize() float64 {
	var max float64
	for _, f := range l.Fragments {
		if f.FontSize > max {
			max = f.FontSize
		}
	}
	return max
}

// Bold reports whether every non-blank fragment is bold.
func (l Line) Bold() bool {
	seen := false
	for _, f := range l.Fragments {
		if strings.TrimSpace(f.Text) == "" {
			continue
		}
		if !f.Bold {
			return false
		}
		seen = true
	}
	return seen
}

// ColumnCount is the number of horizontally separated cells on the line.
// Fragments closer than 1.2 em to their neighbour belong to the same cell.
func (l Line) ColumnCount() int {
	n := 0
	var prevRight float64
	for i, f := range l.Fragments {
		if strings.TrimSpace(f.Text) == "" {
			continue
		}
		size := f.FontSize
		if size <= 0 {
			size = 10
		}
		if i == 0 || n == 0 || f.X-prevRight > 1.2*size {
			n++
		}
		prevRight = f.Right()
	}
	return n
}

// Left is the x coordinate of the first fragment.
func (l Line) Left() float64 {
	if len(l.Fragments) == 0 {
		return 0
	}
	return l.Fragments[0].X
}

var (
	pageNumberPattern = regexp.MustCompile(`(?i)^(\d{1,3}|F\s?-\s?\d{1,3}|page\s+\d{1,3}(\s+of\s+\d{1,4})?)$`)
	tocLinkPattern    = regexp.MustCompile(`(?i)^(table\s+of\s+contents|index\s+to\s+financial\s+statements)$`)
)

// IsFurniture reports page numbers and running "Table of Contents" links.
// Page numbers only count near the top or bottom of a page.
func (l Line) IsFurniture(pageLines int) bool {
	text := strings.TrimSpace(l.Text())
	if text == "" {
		return true
	}
	if tocLinkPattern.MatchString(text) {
		return true
	}
	if !pageNumberPattern.MatchString(text) {
		return false
	}
	return l.PageIndex < 2 || l.PageIndex >= pageLines-2
}

// Page is one page of a filing. Numbers start at 1.
type Page struct {
	Number int    `json:"number"`
	Lines  []Line `json:"lines"`
}

// Document is the ordered, read-only layout of a filing.
type Document struct {
	pages    []Page
	lines    []Line
	bodySize float64
}

// NewDocument numbers the pages' lines and computes document statistics.
func NewDocument(pages []Page) *Document {
	d := &Document{pages: make([]Page, len(pages))}
	idx := 0
	for pi, p := range pages {
		p.Number = pi + 1
		lines := make([]Line, len(p.Lines))
		for li, l := range p.Lines {
			l.Page = p.Number
			l.PageIndex = li
			l.Index = idx
			l.GapBefore = 0
			if li > 0 {
				l.GapBefore = math.Abs(p.Lines[li-1].Y - l.Y)
			}
			lines[li] = l
			d.lines = append(d.lines, l)
			idx++
		}
		p.Lines = lines
		d.pages[pi] = p
	}
	d.bodySize = modeFontSize(d.lines)
	return d
}

// NumPages is the number of pages, including pages with no text.
func (d *Document) NumPages() int { return len(d.pages) }

// Page returns page n (1-based) and false when n is out of range.
func (d *Document) Page(n int) (Page, bool) {
	if n < 1 || n > len(d.pages) {
		return Page{}, false
	}
	return d.pages[n-1], true
}

// Pages returns all pages. Callers must not modify the result.
func (d *Document) Pages() []Page { return d.pages }

// Lines returns every line in reading order. Callers must not modify the result.
func (d *Document) Lines() []Line { return d.lines }

// PageLineCount is the number of lines on page n.
func (d *Document) PageLineCount(n int) int {
	p, ok := d.Page(n)
	if !ok {
		return 0
	}
	return len(p.Lines)
}

// BodyFontSize is the character-weighted most common font size.
func (d *Document) BodyFontSize() float64 { return d.bodySize }

// HasText reports whether any page produced text.
func (d *Document) HasText() bool {
	for _, l := range d.lines {
		if strings.TrimSpace(l.Text()) != "" {
			return true
		}
	}
	return false
}

func modeFontSize(lines []Line) float64 {
	weights := make(map[float64]int)
	for _, l := range lines {
		for _, f := range l.Fragments {
			if f.FontSize <= 0 {
				continue
			}
			size := math.Round(f.FontSize*2) / 2
			weights[size] += len([]rune(f.Text))
		}
	}
	var best float64
	bestWeight := -1
	for size, w := range weights {
		if w > bestWeight || (w == bestWeight && size < best) {
			best, bestWeight = size, w
		}
	}
	if bestWeight < 0 {
		return 0
	}
	return best
}
