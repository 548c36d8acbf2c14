package section

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/dgallion1/tenkview/internal/layout"
)

// Section is the body of one item, from just after its heading to the next item heading.
type Section struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Heading   string `json:"heading"`
	Content   string `json:"content"`
	StartPage int    `json:"start_page"`
	EndPage   int    `json:"end_page"`
}

// MinScore is the score a heading candidate needs to be used as a boundary.
const MinScore = 2

var (
	headingPattern  = regexp.MustCompile(`(?i)^\s*items?\s*(\d{1,2}[a-c]?)\b\s*[\.:\-–—]?\s*(.*)$`)
	trailingPageNum = regexp.MustCompile(`(^|\s)\d{1,3}$`)
	nonWordRun      = regexp.MustCompile(`[^a-z0-9]+`)
)

const (
	maxHeadingLen     = 150
	maxTitleLineLen   = 120
	bodyLineMinLen    = 60
	shortLineLen      = 40
	denseItemsPerPage = 4
)

// Candidate is a line that looks like an item heading.
type Candidate struct {
	Number    string `json:"number"`
	Title     string `json:"title"`
	LineIndex int    `json:"line_index"`
	Page      int    `json:"page"`
	// TitleLine is the index of a separate title line absorbed into the heading, or -1.
	TitleLine int      `json:"title_line"`
	Score     int      `json:"score"`
	Signals   []string `json:"signals,omitempty"`

	rest string // heading text after the item number
}

// bodyStart is the first line index after the heading.
func (c Candidate) bodyStart() int {
	if c.TitleLine >= 0 {
		return c.TitleLine + 1
	}
	return c.LineIndex + 1
}

// Index holds the chosen start of every item found in a filing.
type Index struct {
	doc    *layout.Document
	starts []Candidate // ordered by line index
}

// Segment scans the document once and selects item boundaries.
func Segment(doc *layout.Document) *Index {
	sc := newScorer(doc)
	cands := sc.candidates()
	return &Index{doc: doc, starts: selectStarts(cands)}
}

// Get is Segment followed by Index.Get.
func Get(doc *layout.Document, id string) (Section, error) {
	return Segment(doc).Get(id)
}

// Found lists the ids of the items located, in document order.
func (ix *Index) Found() []string {
	ids := make([]string, 0, len(ix.starts))
	for _, s := range ix.starts {
		d, _ := Lookup(s.Number)
		ids = append(ids, d.ID)
	}
	return ids
}

// Starts returns the chosen heading for every item found.
func (ix *Index) Starts() []Candidate { return ix.starts }

// Get returns the section text for id, or ErrSectionNotFound. An id that is
// not a Form 10-K item also matches ErrUnknownSection.
func (ix *Index) Get(id string) (Section, error) {
	canonical, err := ParseID(id)
	if err != nil {
		return Section{}, fmt.Errorf("%w: %w", ErrSectionNotFound, err)
	}
	def, _ := Lookup(strings.TrimPrefix(canonical, "Item "))

	lines := ix.doc.Lines()
	for i, s := range ix.starts {
		if s.Number != def.Number {
			continue
		}
		end := len(lines)
		if i+1 < len(ix.starts) {
			end = ix.starts[i+1].LineIndex
		}
		from := s.bodyStart()
		if from > end {
			from = end
		}
		body := lines[from:end]

		heading := lines[s.LineIndex].Text()
		if s.TitleLine >= 0 {
			heading += " " + lines[s.TitleLine].Text()
		}
		endPage := s.Page
		if len(body) > 0 {
			endPage = body[len(body)-1].Page
		}
		return Section{
			ID:        def.ID,
			Name:      def.Title,
			Heading:   heading,
			Content:   ix.doc.Markdown(body),
			StartPage: s.Page,
			EndPage:   endPage,
		}, nil
	}
	return Section{}, fmt.Errorf("%w: %s", ErrSectionNotFound, def.ID)
}

// Range returns the line span [from, to) of the item's body and false when missing.
func (ix *Index) Range(id string) (int, int, bool) {
	canonical, err := ParseID(id)
	if err != nil {
		return 0, 0, false
	}
	number := strings.TrimPrefix(canonical, "Item ")
	for i, s := range ix.starts {
		if s.Number != number {
			continue
		}
		end := len(ix.doc.Lines())
		if i+1 < len(ix.starts) {
			end = ix.starts[i+1].LineIndex
		}
		return min(s.bodyStart(), end), end, true
	}
	return 0, 0, false
}

// selectStarts walks the catalog backwards. Each item takes its last qualifying
// candidate before the start already chosen for the item that follows it.
func selectStarts(cands []Candidate) []Candidate {
	byNum := make(map[string][]Candidate)
	for _, c := range cands {
		if c.Score >= MinScore {
			byNum[c.Number] = append(byNum[c.Number], c)
		}
	}

	bound := int(^uint(0) >> 1)
	var starts []Candidate
	for i := len(Catalog) - 1; i >= 0; i-- {
		list := byNum[Catalog[i].Number]
		for j := len(list) - 1; j >= 0; j-- {
			if list[j].LineIndex < bound {
				starts = append(starts, list[j])
				bound = list[j].LineIndex
				break
			}
		}
	}
	sort.Slice(starts, func(i, j int) bool { return starts[i].LineIndex < starts[j].LineIndex })
	return starts
}

// predicate is one heading signal. Weights may be negative.
type predicate struct {
	name   string
	weight int
	test   func(sc *scorer, c Candidate) bool
}

var predicates = []predicate{
	{"larger_font", 1, (*scorer).largerFont},
	{"bold", 1, (*scorer).bold},
	{"starts_block", 1, (*scorer).startsBlock},
	{"followed_by_body", 1, (*scorer).followedByBody},
	{"title_matches", 1, (*scorer).titleMatches},
	{"trailing_page_number", -3, (*scorer).trailingPageNumber},
	{"overlong", -3, (*scorer).overlong},
	{"dense_item_page", -2, (*scorer).denseItemPage},
	{"mid_sentence", -2, (*scorer).midSentence},
}

type scorer struct {
	doc       *layout.Document
	lines     []layout.Line
	body      float64
	furniture []bool
	isCand    []bool
	perPage   map[int]map[string]bool
}

func newScorer(doc *layout.Document) *scorer {
	lines := doc.Lines()
	sc := &scorer{
		doc:       doc,
		lines:     lines,
		body:      doc.BodyFontSize(),
		furniture: make([]bool, len(lines)),
		isCand:    make([]bool, len(lines)),
		perPage:   make(map[int]map[string]bool),
	}
	for i, l := range lines {
		sc.furniture[i] = l.IsFurniture(doc.PageLineCount(l.Page))
	}
	return sc
}

func (sc *scorer) candidates() []Candidate {
	var raw []Candidate
	for i, l := range sc.lines {
		if sc.furniture[i] {
			continue
		}
		m := headingPattern.FindStringSubmatch(l.Text())
		if m == nil {
			continue
		}
		number := strings.ToUpper(m[1])
		if order(number) < 0 {
			continue
		}
		rest := strings.TrimSpace(m[2])
		raw = append(raw, Candidate{
			Number:    number,
			Title:     rest,
			rest:      rest,
			LineIndex: i,
			Page:      l.Page,
			TitleLine: -1,
		})
		sc.isCand[i] = true
		if sc.perPage[l.Page] == nil {
			sc.perPage[l.Page] = make(map[string]bool)
		}
		sc.perPage[l.Page][number] = true
	}

	for i := range raw {
		sc.absorbTitle(&raw[i])
		for _, p := range predicates {
			if p.test(sc, raw[i]) {
				raw[i].Score += p.weight
				raw[i].Signals = append(raw[i].Signals, p.name)
			}
		}
	}
	return raw
}

// absorbTitle attaches a following title line to a bare "Item 1A." heading.
func (sc *scorer) absorbTitle(c *Candidate) {
	if strings.TrimFunc(c.Title, func(r rune) bool { return !unicode.IsLetter(r) }) != "" {
		return
	}
	next := sc.nextContent(c.LineIndex)
	if next < 0 || sc.isCand[next] {
		return
	}
	l := sc.lines[next]
	text := l.Text()
	if len(text) > maxTitleLineLen {
		return
	}
	if l.Bold() || l.FontSize() > sc.body+0.5 || matchesTitle(text, c.Number) {
		c.Title = text
		c.TitleLine = next
	}
}

// nextContent is the index of the next non-furniture line after i, or -1.
func (sc *scorer) nextContent(i int) int {
	for j := i + 1; j < len(sc.lines); j++ {
		if !sc.furniture[j] {
			return j
		}
	}
	return -1
}

// prevContent is the index of the previous non-furniture line on the same page, or -1.
func (sc *scorer) prevContent(i int) int {
	for j := i - 1; j >= 0 && sc.lines[j].Page == sc.lines[i].Page; j-- {
		if !sc.furniture[j] {
			return j
		}
	}
	return -1
}

func (sc *scorer) largerFont(c Candidate) bool {
	return sc.lines[c.LineIndex].FontSize() > sc.body+0.5
}

func (sc *scorer) bold(c Candidate) bool {
	return sc.lines[c.LineIndex].Bold()
}

func (sc *scorer) startsBlock(c Candidate) bool {
	prev := sc.prevContent(c.LineIndex)
	if prev < 0 {
		return true
	}
	l, p := sc.lines[c.LineIndex], sc.lines[prev]
	size := max(l.FontSize(), p.FontSize(), 1)
	return l.GapBefore > 1.5*size || endsSentence(p.Text()) || len(p.Text()) < shortLineLen
}

func (sc *scorer) midSentence(c Candidate) bool {
	prev := sc.prevContent(c.LineIndex)
	if prev < 0 {
		return false
	}
	l, p := sc.lines[c.LineIndex], sc.lines[prev]
	if l.Bold() || p.Bold() || len(p.Text()) < bodyLineMinLen {
		return false
	}
	size := max(l.FontSize(), p.FontSize(), 1)
	return l.GapBefore <= 1.5*size && !endsSentence(p.Text())
}

// followedByBody looks a few lines ahead for a paragraph line before any other heading.
func (sc *scorer) followedByBody(c Candidate) bool {
	i := c.bodyStart() - 1
	for n := 0; n < 4; n++ {
		i = sc.nextContent(i)
		if i < 0 || sc.isCand[i] {
			return false
		}
		l := sc.lines[i]
		if !l.Bold() && len(l.Text()) >= bodyLineMinLen {
			return true
		}
	}
	return false
}

func (sc *scorer) titleMatches(c Candidate) bool {
	return matchesTitle(c.Title, c.Number)
}

func (sc *scorer) trailingPageNumber(c Candidate) bool {
	if c.rest != "" && trailingPageNum.MatchString(c.rest) {
		return true
	}
	if c.TitleLine >= 0 {
		return trailingPageNum.MatchString(sc.lines[c.TitleLine].Text())
	}
	return false
}

func (sc *scorer) overlong(c Candidate) bool {
	return len(sc.lines[c.LineIndex].Text()) > maxHeadingLen
}

func (sc *scorer) denseItemPage(c Candidate) bool {
	return len(sc.perPage[c.Page]) >= denseItemsPerPage
}

// matchesTitle compares normalized text against the catalog title for number.
func matchesTitle(text, number string) bool {
	d, ok := Lookup(number)
	if !ok {
		return false
	}
	got := normalize(trailingPageNum.ReplaceAllString(text, ""))
	want := normalize(d.Title)
	if len(got) < 4 {
		return false
	}
	n := min(len(want), 12)
	return strings.HasPrefix(got, want[:n]) || strings.HasPrefix(want, got)
}

func normalize(s string) string {
	s = strings.ToLower(strings.ReplaceAll(s, "’", "'"))
	return strings.Trim(nonWordRun.ReplaceAllString(s, " "), " ")
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
