// Package render converts the markdown body text of a section into HTML or
// plain text for the dashboard.
package render

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// Format names accepted by ParseFormat.
const (
	FormatMarkdown = "markdown"
	FormatHTML     = "html"
	FormatText     = "text"
)

var md = goldmark.New()

// ParseFormat normalizes a requested output format. Empty means markdown.
func ParseFormat(s string) (string, error) {
	switch f := strings.ToLower(strings.TrimSpace(s)); f {
	case "", "md", FormatMarkdown:
		return FormatMarkdown, nil
	case FormatHTML, FormatText:
		return f, nil
	default:
		return "", fmt.Errorf("unknown format %q", s)
	}
}

// HTML renders markdown. Raw HTML in the source is not passed through.
func HTML(markdown string) (string, error) {
	var buf bytes.Buffer
	if err := md.Convert([]byte(markdown), &buf); err != nil {
		return "", fmt.Errorf("render html: %w", err)
	}
	return buf.String(), nil
}

// Text strips markdown markup, keeping one blank line between blocks.
func Text(markdown string) string {
	src := []byte(markdown)
	doc := md.Parser().Parse(text.NewReader(src))

	var sb strings.Builder
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		switch node := n.(type) {
		case *ast.Text:
			if entering {
				sb.Write(node.Segment.Value(src))
				if node.SoftLineBreak() || node.HardLineBreak() {
					sb.WriteByte(' ')
				}
			}
		case *ast.String:
			if entering {
				sb.Write(node.Value)
			}
		default:
			if !entering && n.Type() == ast.TypeBlock && n.Parent() != nil && n.Parent().Kind() == ast.KindDocument {
				sb.WriteString("\n\n")
			}
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(sb.String())
}
