// Package layouttest builds synthetic layout documents for tests.
package layouttest

import (
	"strings"

	"github.com/dgallion1/tenkview/internal/layout"
)

const (
	BodySize    = 10.0
	HeadingSize = 12.0
	LeftMargin  = 72.0
	charWidth   = 5.0
	lineStep    = 12.0
	topY        = 740.0
)

// Builder appends lines top to bottom, one page at a time.
type Builder struct {
	pages []layout.Page
	y     float64
}

// New returns a builder positioned at the top of page 1.
func New() *Builder {
	b := &Builder{}
	b.Page()
	return b
}

// Page starts a new page.
func (b *Builder) Page() *Builder {
	b.pages = append(b.pages, layout.Page{Number: len(b.pages) + 1})
	b.y = topY
	return b
}

// Gap inserts a paragraph-sized vertical gap.
func (b *Builder) Gap() *Builder {
	b.y -= 2 * lineStep
	return b
}

// Text adds a body line.
func (b *Builder) Text(text string) *Builder {
	return b.add(layout.Fragment{Text: text, X: LeftMargin, FontSize: BodySize})
}

// Bold adds a bold body-size line.
func (b *Builder) Bold(text string) *Builder {
	return b.add(layout.Fragment{Text: text, X: LeftMargin, FontSize: BodySize, Bold: true})
}

// Heading adds a bold line at heading size.
func (b *Builder) Heading(text string) *Builder {
	return b.add(layout.Fragment{Text: text, X: LeftMargin, FontSize: HeadingSize, Bold: true})
}

// Fragments adds a line made of the given fragments.
func (b *Builder) Fragments(frags ...layout.Fragment) *Builder {
	return b.add(frags...)
}

// Column right edges used by Row and Header.
var Columns = []float64{400, 480, 560}

// Row adds a table row: a left label and right-aligned cells.
func (b *Builder) Row(label string, cells ...string) *Builder {
	return b.add(rowFragments(label, false, cells)...)
}

// Header adds a bold row of column labels without a left label.
func (b *Builder) Header(cells ...string) *Builder {
	return b.add(rowFragments("", true, cells)...)
}

func rowFragments(label string, bold bool, cells []string) []layout.Fragment {
	var frags []layout.Fragment
	if label != "" {
		frags = append(frags, layout.Fragment{Text: label, X: LeftMargin, FontSize: BodySize, Bold: bold})
	}
	for i, c := range cells {
		if c == "" || i >= len(Columns) {
			continue
		}
		w := Width(c)
		frags = append(frags, layout.Fragment{Text: c, X: Columns[i] - w, FontSize: BodySize, Bold: bold})
	}
	return frags
}

// Width is the synthetic width of text.
func Width(text string) float64 {
	return float64(len([]rune(text))) * charWidth
}

// Paragraph adds text as a single body line followed by a gap.
func (b *Builder) Paragraph(text string) *Builder {
	return b.Text(text).Gap()
}

// Lines adds each newline-separated line as body text.
func (b *Builder) Lines(text string) *Builder {
	for _, l := range strings.Split(text, "\n") {
		b.Text(l)
	}
	return b
}

func (b *Builder) add(frags ...layout.Fragment) *Builder {
	p := &b.pages[len(b.pages)-1]
	for i := range frags {
		frags[i].Y = b.y
		if frags[i].Width == 0 {
			frags[i].Width = Width(frags[i].Text)
		}
	}
	p.Lines = append(p.Lines, layout.Line{Y: b.y, Fragments: frags})
	b.y -= lineStep
	return b
}

// Document finalizes the pages.
func (b *Builder) Document() *layout.Document {
	return layout.NewDocument(b.pages)
}
