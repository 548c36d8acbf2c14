package parser

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/net/html"

	"github.com/dgallion1/tenkview/internal/layout"
)

// Synthetic geometry for HTML filings, which carry no coordinates.
const (
	htmlLeft      = 72.0
	htmlCharWidth = 5.0
	htmlLineStep  = 12.0
	htmlTopY      = 740.0
	htmlBodySize  = 10.0
	htmlGridWidth = 48.0 // one table grid column
)

// HTMLParser handles EDGAR HTML and inline XBRL filings.
type HTMLParser struct{}

func (p *HTMLParser) Parse(ctx context.Context, data []byte) (*layout.Document, error) {
	root, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: parse html: %v", layout.ErrUnreadablePDF, err)
	}

	w := &htmlWalker{ctx: ctx}
	w.newPage()
	body := findBody(root)
	if body == nil {
		body = root
	}
	w.walk(body, htmlStyle{size: htmlBodySize})
	w.flushLine()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Trailing page breaks leave empty pages behind.
	pages := w.pages
	for len(pages) > 1 && len(pages[len(pages)-1].Lines) == 0 {
		pages = pages[:len(pages)-1]
	}

	doc := layout.NewDocument(pages)
	if !doc.HasText() {
		return nil, fmt.Errorf("%w: html filing has no text", layout.ErrUnreadablePDF)
	}
	return doc, nil
}

type htmlStyle struct {
	bold   bool
	italic bool
	size   float64
}

type htmlWalker struct {
	ctx   context.Context
	pages []layout.Page
	y     float64
	cur   []layout.Fragment
	x     float64
}

var (
	fontSizeStyle   = regexp.MustCompile(`(?i)font-size:\s*([\d.]+)\s*(pt|px|em|rem|%)?`)
	fontWeightStyle = regexp.MustCompile(`(?i)font-weight:\s*(bold|bolder|[6-9]00)`)
	italicStyle     = regexp.MustCompile(`(?i)font-style:\s*(italic|oblique)`)
	hiddenStyle     = regexp.MustCompile(`(?i)display:\s*none`)
	breakBefore     = regexp.MustCompile(`(?i)(page-break-before|break-before):\s*(always|page)`)
	breakAfter      = regexp.MustCompile(`(?i)(page-break-after|break-after):\s*(always|page)`)
)

var headingSizes = map[string]float64{"h1": 18, "h2": 16, "h3": 14, "h4": 12, "h5": 11, "h6": 10}

var blockTags = map[string]bool{
	"p": true, "div": true, "li": true, "ul": true, "ol": true, "dl": true, "dt": true, "dd": true,
	"blockquote": true, "section": true, "article": true, "center": true, "pre": true, "address": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
}

var paragraphTags = map[string]bool{
	"p": true, "li": true, "h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
}

func (w *htmlWalker) walk(n *html.Node, st htmlStyle) {
	if w.ctx.Err() != nil {
		return
	}
	switch n.Type {
	case html.TextNode:
		w.appendText(n.Data, st)
		return
	case html.ElementNode:
	default:
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			w.walk(c, st)
		}
		return
	}

	tag := n.Data
	switch tag {
	case "script", "style", "head", "title", "noscript", "template":
		return
	}
	style := attr(n, "style")
	if hiddenStyle.MatchString(style) || strings.HasPrefix(tag, "ix:header") {
		return
	}
	st = deriveStyle(n, tag, style, st)

	if breakBefore.MatchString(style) {
		w.flushLine()
		w.newPage()
	}

	switch {
	case tag == "br":
		w.flushLine()
	case tag == "hr":
		w.flushLine()
		w.newPage()
	case tag == "table":
		w.flushLine()
		w.walkTable(n, st)
		w.gap()
	case blockTags[tag]:
		w.flushLine()
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			w.walk(c, st)
		}
		w.flushLine()
		if paragraphTags[tag] {
			w.gap()
		}
	default:
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			w.walk(c, st)
		}
	}

	if breakAfter.MatchString(style) {
		w.flushLine()
		w.newPage()
	}
}

func deriveStyle(n *html.Node, tag, style string, st htmlStyle) htmlStyle {
	switch tag {
	case "b", "strong", "th":
		st.bold = true
	case "i", "em":
		st.italic = true
	}
	if size, ok := headingSizes[tag]; ok {
		st.size = size
		st.bold = true
	}
	if m := fontSizeStyle.FindStringSubmatch(style); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil && v > 0 {
			switch strings.ToLower(m[2]) {
			case "px":
				st.size = v * 0.75
			case "em", "rem":
				st.size = v * st.size
			case "%":
				st.size = v / 100 * st.size
			default:
				st.size = v
			}
		}
	}
	if fontWeightStyle.MatchString(style) {
		st.bold = true
	}
	if italicStyle.MatchString(style) {
		st.italic = true
	}
	return st
}

func (w *htmlWalker) appendText(raw string, st htmlStyle) {
	text := strings.Join(strings.Fields(raw), " ")
	if text == "" {
		return
	}
	if n := len(w.cur); n > 0 {
		last := &w.cur[n-1]
		if last.Bold == st.bold && last.Italic == st.italic && last.FontSize == st.size {
			last.Text += " " + text
			last.Width = float64(len([]rune(last.Text))) * htmlCharWidth
			w.x = last.Right()
			return
		}
	}
	if len(w.cur) == 0 {
		w.x = htmlLeft
	}
	width := float64(len([]rune(text))) * htmlCharWidth
	w.cur = append(w.cur, layout.Fragment{
		Text: text, X: w.x, Width: width, FontSize: st.size, Bold: st.bold, Italic: st.italic,
	})
	w.x += width
}

// walkTable emits one line per row with cells on a grid keyed by column index.
// Single-cell rows are layout wrappers and are walked as normal flow.
func (w *htmlWalker) walkTable(table *html.Node, st htmlStyle) {
	for _, tr := range rowsOf(table) {
		cells := cellsOf(tr)
		if countNonEmpty(cells) <= 1 {
			for _, c := range cells {
				w.flushLine()
				for cc := c.node.FirstChild; cc != nil; cc = cc.NextSibling {
					w.walk(cc, deriveStyle(c.node, c.node.Data, attr(c.node, "style"), st))
				}
			}
			w.flushLine()
			continue
		}

		var frags []layout.Fragment
		col := 0
		for _, c := range cells {
			span := c.colspan
			end := col + span - 1
			col += span
			text, bold, size := cellText(c.node, st)
			if text == "" {
				continue
			}
			right := htmlLeft + float64(end+1)*htmlGridWidth
			switch {
			case text == "$" || text == "(" || text == "$(":
				// Currency markers merge forward.
				frags = append(frags, layout.Fragment{Text: text, X: right - htmlCharWidth, Width: htmlCharWidth, FontSize: size, Bold: bold})
				continue
			case (text == ")" || text == "%" || text == ")%") && len(frags) > 0:
				last := &frags[len(frags)-1]
				last.Text += text
				last.Width += float64(len(text)) * htmlCharWidth
				continue
			}
			width := float64(len([]rune(text))) * htmlCharWidth
			x := right - width
			if end == span-1 {
				// First column holds the row label, left aligned.
				x = htmlLeft
			}
			if n := len(frags); n > 0 && isCurrencyMarker(frags[n-1].Text) {
				prefix := frags[n-1].Text
				frags = frags[:n-1]
				text = prefix + text
				width = float64(len([]rune(text))) * htmlCharWidth
				if x != htmlLeft {
					x = right - width
				}
			}
			frags = append(frags, layout.Fragment{Text: text, X: x, Width: width, FontSize: size, Bold: bold})
		}
		if len(frags) == 0 {
			continue
		}
		w.flushLine()
		w.emit(frags)
	}
}

func isCurrencyMarker(s string) bool {
	return s == "$" || s == "(" || s == "$("
}

type htmlCell struct {
	node    *html.Node
	colspan int
}

func rowsOf(table *html.Node) []*html.Node {
	var rows []*html.Node
	var visit func(*html.Node)
	visit = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type != html.ElementNode {
				continue
			}
			switch c.Data {
			case "tr":
				rows = append(rows, c)
			case "thead", "tbody", "tfoot":
				visit(c)
			}
		}
	}
	visit(table)
	return rows
}

func cellsOf(tr *html.Node) []htmlCell {
	var cells []htmlCell
	for c := tr.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode || (c.Data != "td" && c.Data != "th") {
			continue
		}
		span := 1
		if v, err := strconv.Atoi(attr(c, "colspan")); err == nil && v > 1 {
			span = v
		}
		cells = append(cells, htmlCell{node: c, colspan: span})
	}
	return cells
}

func countNonEmpty(cells []htmlCell) int {
	n := 0
	for _, c := range cells {
		if strings.TrimSpace(textContent(c.node)) != "" {
			n++
		}
	}
	return n
}

// cellText returns the cell's text, whether all of it is bold, and its size.
func cellText(n *html.Node, st htmlStyle) (string, bool, float64) {
	var parts []string
	allBold := true
	size := 0.0
	var visit func(*html.Node, htmlStyle)
	visit = func(n *html.Node, st htmlStyle) {
		if n.Type == html.TextNode {
			t := strings.Join(strings.Fields(n.Data), " ")
			if t == "" {
				return
			}
			parts = append(parts, t)
			allBold = allBold && st.bold
			if size == 0 {
				size = st.size
			}
			return
		}
		if n.Type == html.ElementNode {
			style := attr(n, "style")
			if hiddenStyle.MatchString(style) {
				return
			}
			st = deriveStyle(n, n.Data, style, st)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			visit(c, st)
		}
	}
	visit(n, st)
	if size == 0 {
		size = st.size
	}
	text := strings.Join(parts, " ")
	return text, allBold && text != "", size
}

func (w *htmlWalker) flushLine() {
	if len(w.cur) == 0 {
		return
	}
	frags := w.cur
	w.cur = nil
	w.emit(frags)
}

func (w *htmlWalker) emit(frags []layout.Fragment) {
	p := &w.pages[len(w.pages)-1]
	for i := range frags {
		frags[i].Y = w.y
	}
	p.Lines = append(p.Lines, layout.Line{Y: w.y, Fragments: frags})
	w.y -= htmlLineStep
}

func (w *htmlWalker) gap() {
	w.y -= htmlLineStep
}

func (w *htmlWalker) newPage() {
	if n := len(w.pages); n > 0 && len(w.pages[n-1].Lines) == 0 {
		return
	}
	w.pages = append(w.pages, layout.Page{Number: len(w.pages) + 1})
	w.y = htmlTopY
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func textContent(n *html.Node) string {
	var buf strings.Builder
	var extract func(*html.Node)
	extract = func(n *html.Node) {
		if n.Type == html.TextNode {
			buf.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			extract(c)
		}
	}
	extract(n)
	return strings.TrimSpace(buf.String())
}

func findBody(n *html.Node) *html.Node {
	if n.Type == html.ElementNode && n.Data == "body" {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if b := findBody(c); b != nil {
			return b
		}
	}
	return nil
}
