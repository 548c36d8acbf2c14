package textutil

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Paragraphs splits on blank lines and drops empty parts.
func Paragraphs(text string) []string {
	parts := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n\n")
	var result []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}

// Sentences does basic sentence splitting on terminal punctuation followed by a space.
func Sentences(text string) []string {
	var sentences []string
	var current strings.Builder

	for i, r := range text {
		current.WriteRune(r)
		if (r == '.' || r == '!' || r == '?') && i+1 < len(text) && text[i+1] == ' ' {
			if s := strings.TrimSpace(current.String()); s != "" {
				sentences = append(sentences, s)
			}
			current.Reset()
		}
	}
	if s := strings.TrimSpace(current.String()); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}

// Truncate returns at most limit runes of text, cut at the last paragraph
// boundary that fits. A first paragraph longer than limit is cut at a sentence,
// then at a word.
func Truncate(text string, limit int) string {
	text = strings.TrimSpace(text)
	if limit <= 0 {
		return ""
	}
	if utf8.RuneCountInString(text) <= limit {
		return text
	}

	paras := Paragraphs(text)
	if out := join(paras, "\n\n", limit); out != "" {
		return out
	}
	if len(paras) == 0 {
		return ""
	}
	if out := join(Sentences(paras[0]), " ", limit); out != "" {
		return out
	}
	return join(strings.Fields(paras[0]), " ", limit)
}

// join concatenates leading parts while the result stays within limit runes.
func join(parts []string, sep string, limit int) string {
	var sb strings.Builder
	n := 0
	for _, p := range parts {
		add := utf8.RuneCountInString(p)
		if sb.Len() > 0 {
			add += utf8.RuneCountInString(sep)
		}
		if n+add > limit {
			break
		}
		if sb.Len() > 0 {
			sb.WriteString(sep)
		}
		sb.WriteString(p)
		n += add
	}
	return sb.String()
}

// WordCount counts whitespace-separated words.
func WordCount(text string) int {
	return len(strings.Fields(text))
}

// StripBold removes markdown bold markers.
func StripBold(s string) string {
	return strings.TrimSpace(strings.ReplaceAll(s, "**", ""))
}

// FullyBold reports whether s is a single **bold** run.
func FullyBold(s string) bool {
	s = strings.TrimSpace(s)
	return len(s) > 4 && strings.HasPrefix(s, "**") && strings.HasSuffix(s, "**") && strings.Count(s, "**") == 2
}

// Unique returns name if seen has not recorded it, otherwise name suffixed
// " (n)" with the smallest free n above the last suffix used. The result is
// recorded in seen.
func Unique(name string, seen map[string]int) string {
	if seen[name] == 0 {
		seen[name] = 1
		return name
	}
	for n := seen[name] + 1; ; n++ {
		out := fmt.Sprintf("%s (%d)", name, n)
		if seen[out] == 0 {
			seen[name] = n
			seen[out] = 1
			return out
		}
	}
}
