package layout

import (
	"math"
	"strings"
)

// Markdown renders lines as paragraphs separated by blank lines, with bold
// runs wrapped in **. Page furniture is dropped.
func (d *Document) Markdown(lines []Line) string {
	var paras []string
	var rb runBuilder
	flush := func() {
		if s := rb.String(); s != "" {
			paras = append(paras, s)
		}
		rb.reset()
	}

	var prev *Line
	for i := range lines {
		l := &lines[i]
		if l.IsFurniture(d.PageLineCount(l.Page)) {
			continue
		}
		if prev != nil && breaksParagraph(*prev, *l) {
			flush()
		}
		rb.addLine(*l)
		prev = l
	}
	flush()
	return strings.Join(paras, "\n\n")
}

// PageMarkdown renders a single page.
func (d *Document) PageMarkdown(n int) string {
	p, ok := d.Page(n)
	if !ok {
		return ""
	}
	return d.Markdown(p.Lines)
}

func breaksParagraph(prev, cur Line) bool {
	if prev.Bold() != cur.Bold() {
		return true
	}
	if cur.Page != prev.Page {
		return endsSentence(prev.Text())
	}
	size := math.Max(prev.FontSize(), cur.FontSize())
	if size <= 0 {
		size = 10
	}
	if cur.GapBefore > 1.6*size {
		return true
	}
	if math.Abs(prev.FontSize()-cur.FontSize()) > 1 {
		return true
	}
	// Multi-column rows stay one per paragraph.
	return prev.ColumnCount() >= 3 || cur.ColumnCount() >= 3
}

func endsSentence(s string) bool {
	s = strings.TrimRight(strings.TrimSpace(s), `"')”’*`)
	if s == "" {
		return true
	}
	switch s[len(s)-1] {
	case '.', '!', '?', ':', ';':
		return true
	}
	return false
}

type piece struct {
	text string
	bold bool
}

// runBuilder accumulates fragment text and merges adjacent runs of equal weight.
type runBuilder struct {
	pieces []piece
}

func (rb *runBuilder) reset() { rb.pieces = rb.pieces[:0] }

func (rb *runBuilder) addLine(l Line) {
	for _, f := range l.Fragments {
		t := strings.Join(strings.Fields(f.Text), " ")
		if t == "" {
			continue
		}
		if n := len(rb.pieces); n > 0 && rb.pieces[n-1].bold == f.Bold {
			rb.pieces[n-1].text += " " + t
			continue
		}
		rb.pieces = append(rb.pieces, piece{text: t, bold: f.Bold})
	}
}

func (rb *runBuilder) String() string {
	var sb strings.Builder
	for i, p := range rb.pieces {
		if i > 0 {
			sb.WriteByte(' ')
		}
		if p.bold {
			sb.WriteString("**")
			sb.WriteString(p.text)
			sb.WriteString("**")
		} else {
			sb.WriteString(p.text)
		}
	}
	return sb.String()
}
