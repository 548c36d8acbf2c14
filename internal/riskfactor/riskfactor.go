// Package riskfactor splits the Risk Factors section into an introduction and
// titled risk items.
package riskfactor

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/dgallion1/tenkview/internal/layout"
	"github.com/dgallion1/tenkview/internal/section"
	"github.com/dgallion1/tenkview/internal/textutil"
)

// ErrRiskNotFound is returned for a detail index outside the set.
var ErrRiskNotFound = errors.New("riskfactor: no such item")

// DefaultMaxTitleLen is the rune length a title must stay under.
const DefaultMaxTitleLen = 250

// Set holds the parallel title and description lists. Both always have the
// same length and are never nil.
type Set struct {
	Introduction string   `json:"introduction"`
	Titles       []string `json:"risk_titles"`
	Descriptions []string `json:"risk_descriptions"`
}

// Item is one risk with its position in the set.
type Item struct {
	Index       int    `json:"index"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Options tunes title detection.
type Options struct {
	MaxTitleLen int
}

func (o Options) maxTitleLen() int {
	if o.MaxTitleLen <= 0 {
		return DefaultMaxTitleLen
	}
	return o.MaxTitleLen
}

// Len is the number of risk items.
func (s Set) Len() int { return len(s.Titles) }

// Item returns the i-th risk.
func (s Set) Item(i int) (Item, error) {
	if i < 0 || i >= len(s.Titles) {
		return Item{}, fmt.Errorf("%w: index %d of %d", ErrRiskNotFound, i, len(s.Titles))
	}
	return Item{Index: i, Title: s.Titles[i], Description: s.Descriptions[i]}, nil
}

// Extract locates Item 1A and splits it.
func Extract(doc *layout.Document, opts Options) (Set, error) {
	sec, err := section.Get(doc, section.RiskFactors)
	if err != nil {
		return empty(""), err
	}
	return Split(sec.Content, opts), nil
}

// Split divides markdown text into blocks and classifies each as a title or
// part of the preceding title's description.
func Split(text string, opts Options) Set {
	blocks := textutil.Paragraphs(text)
	limit := opts.maxTitleLen()

	set := empty("")
	var intro []string
	var desc []string
	seen := make(map[string]int)
	inItem := false

	closeItem := func() {
		if inItem {
			set.Descriptions = append(set.Descriptions, strings.Join(desc, "\n\n"))
		}
		desc = nil
	}

	for i, b := range blocks {
		next := ""
		if i+1 < len(blocks) {
			next = blocks[i+1]
		}
		if isTitle(b, next, limit) {
			closeItem()
			set.Titles = append(set.Titles, textutil.Unique(textutil.StripBold(b), seen))
			inItem = true
			continue
		}
		if inItem {
			desc = append(desc, b)
		} else {
			intro = append(intro, b)
		}
	}
	closeItem()

	if len(set.Titles) == 0 {
		return empty(strings.TrimSpace(text))
	}
	set.Introduction = strings.Join(intro, "\n\n")
	return set
}

// isTitle requires a short block, a longer next block, and either no
// terminal punctuation or a fully bold block.
func isTitle(block, next string, limit int) bool {
	if next == "" {
		return false
	}
	plain := textutil.StripBold(block)
	n := utf8.RuneCountInString(plain)
	if n == 0 || n >= limit {
		return false
	}
	if utf8.RuneCountInString(textutil.StripBold(next)) <= n {
		return false
	}
	return !endsWithTerminal(plain) || textutil.FullyBold(block)
}

func endsWithTerminal(s string) bool {
	s = strings.TrimRight(s, `"')”’ `)
	if s == "" {
		return false
	}
	switch s[len(s)-1] {
	case '.', '!', '?':
		return true
	}
	return false
}

func empty(intro string) Set {
	return Set{Introduction: intro, Titles: []string{}, Descriptions: []string{}}
}
