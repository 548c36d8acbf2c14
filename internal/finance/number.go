package finance

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/dgallion1/tenkview/internal/layout"
)

var (
	plainNumber = regexp.MustCompile(`^[-+]?(\d+\.?\d*|\.\d+)$`)
	yearPattern = regexp.MustCompile(`(^|\D)(19|20)\d{2}(\D|$)`)
	bareYear    = regexp.MustCompile(`^(19|20)\d{2}$`)
	afterOpen   = regexp.MustCompile(`([$(])\s+`)
	beforeClose = regexp.MustCompile(`\s+([)%])`)
)

var (
	stripper  = strings.NewReplacer("$", "", ",", "", " ", "", "\u00a0", "")
	separator = strings.NewReplacer("$", "", ",", "")
)

// tighten drops the spaces a filing may set after "$" or "(" and before ")"
// or "%". Any other whitespace still separates figures.
func tighten(s string) string {
	s = strings.TrimSpace(strings.ReplaceAll(s, "\u00a0", " "))
	s = afterOpen.ReplaceAllString(s, "$1")
	return beforeClose.ReplaceAllString(s, "$1")
}

// ParseNumber reads a US-formatted figure. "$" and commas are ignored,
// parentheses mean negative and a trailing % is dropped. Spaces are allowed
// only next to "$" or inside the parentheses. Anything else, including two
// figures in one string and dash placeholders, yields nil.
func ParseNumber(s string) *float64 {
	t := tighten(s)
	if strings.ContainsFunc(t, unicode.IsSpace) {
		return nil
	}
	t = strings.TrimSuffix(separator.Replace(t), "%")
	neg := false
	if strings.HasPrefix(t, "(") && strings.HasSuffix(t, ")") {
		neg = true
		t = strings.TrimSuffix(t[1:len(t)-1], "%")
	}
	if !plainNumber.MatchString(t) {
		return nil
	}
	v, err := strconv.ParseFloat(t, 64)
	if err != nil {
		return nil
	}
	if neg {
		v = -v
	}
	return &v
}

// IsPlaceholder reports the dash and N/A markers filings print for empty cells.
func IsPlaceholder(s string) bool {
	switch strings.ToUpper(stripper.Replace(strings.TrimSpace(s))) {
	case "—", "–", "-", "−", "N/A":
		return true
	}
	return false
}

// isNumeric is a cell that belongs in a numeric column, parseable or not.
func isNumeric(s string) bool {
	return ParseNumber(s) != nil || IsPlaceholder(s)
}

// isPeriodLabel matches column headings such as "2023", "Fiscal 2023" or
// "December 31, 2023".
func isPeriodLabel(s string) bool {
	s = strings.TrimSpace(s)
	if len(s) > 60 || strings.Contains(s, "$") || !yearPattern.MatchString(s) {
		return false
	}
	return ParseNumber(s) == nil || bareYear.MatchString(s)
}

// ignorable is text left over from currency and percent signs set in their own cell.
func ignorable(s string) bool {
	return strings.Trim(stripper.Replace(s), "%()") == ""
}

// splitFigures breaks a fragment holding several whitespace-separated figures
// into one fragment per figure, spreading the width by rune offset. It returns
// nil unless every token is numeric.
func splitFigures(f layout.Fragment) []layout.Fragment {
	t := tighten(f.Text)
	tokens := strings.Fields(t)
	if len(tokens) < 2 {
		return nil
	}
	for _, tok := range tokens {
		if !isNumeric(tok) {
			return nil
		}
	}
	runes := []rune(t)
	per := f.Width / float64(len(runes))
	out := make([]layout.Fragment, 0, len(tokens))
	rest, offset := t, 0
	for _, tok := range tokens {
		i := strings.Index(rest, tok)
		offset += utf8.RuneCountInString(rest[:i])
		n := utf8.RuneCountInString(tok)
		part := f
		part.Text = tok
		part.X = f.X + float64(offset)*per
		part.Width = float64(n) * per
		out = append(out, part)
		offset += n
		rest = rest[i+len(tok):]
	}
	return out
}
