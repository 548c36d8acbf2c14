package finance

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"slices"
	"sort"
	"strings"
	"unicode"

	"github.com/dgallion1/tenkview/internal/layout"
	"github.com/dgallion1/tenkview/internal/section"
	"github.com/dgallion1/tenkview/internal/textutil"
)

const (
	minNumericRows   = 3
	maxBridgeLines   = 3
	headerLookback   = 6
	titleLookback    = 15
	maxTitleLen      = 150
	clusterTolerance = 1.5
)

var (
	unitPattern      = regexp.MustCompile(`(?i)\(((?:in|amounts in|dollars in|\$ in)\s[^)]*)\)`)
	statementPattern = regexp.MustCompile(`(?i)(consolidated|balance\s+sheets?|statements?\s+of|income\s+statements?)`)
	continuedPattern = regexp.MustCompile(`(?i)[\s\-–—]*\(?\s*continued\s*\)?\s*$`)
	leaderDots       = regexp.MustCompile(`(\s*\.){2,}\s*$`)
)

// Region returns the line spans that hold the financial statements: the Item 8
// body and everything from the Item 15 heading on. ok is false when neither
// item was found and the whole document is returned instead.
func Region(doc *layout.Document) (spans [][]layout.Line, ok bool) {
	ix := section.Segment(doc)
	lines := doc.Lines()
	if from, to, found := ix.Range(section.FinancialData); found && to > from {
		spans = append(spans, lines[from:to])
	}
	if from, _, found := ix.Range(section.FinancialStatements); found && from < len(lines) {
		spans = append(spans, lines[from:])
	}
	if len(spans) == 0 {
		return [][]layout.Line{lines}, false
	}
	return spans, true
}

// Extract finds every table in the financial statements region. An empty
// result is valid.
func Extract(doc *layout.Document) []Table {
	spans, _ := Region(doc)
	return FromLines(doc, spans...)
}

// FromLines scans each span independently and merges continued tables.
func FromLines(doc *layout.Document, spans ...[]layout.Line) []Table {
	tables, _ := FromLinesContext(context.Background(), doc, spans...)
	return tables
}

// FromLinesContext is FromLines that stops with ctx's error once ctx is done.
func FromLinesContext(ctx context.Context, doc *layout.Document, spans ...[]layout.Line) ([]Table, error) {
	e := newExtractor(doc)
	var tables []Table
	for _, span := range spans {
		found, err := e.scan(ctx, span)
		if err != nil {
			return nil, err
		}
		tables = append(tables, found...)
	}
	return merge(tables), nil
}

type lineKind int

const (
	kindOther lineKind = iota
	kindNumeric
	kindHeader
)

type parsedLine struct {
	line    layout.Line
	kind    lineKind
	label   string
	values  []layout.Fragment
	periods []layout.Fragment
}

type extractor struct {
	doc  *layout.Document
	body float64
	tol  float64
}

func newExtractor(doc *layout.Document) *extractor {
	body := doc.BodyFontSize()
	if body <= 0 {
		body = 10
	}
	return &extractor{doc: doc, body: body, tol: clusterTolerance * body}
}

func (e *extractor) scan(ctx context.Context, span []layout.Line) ([]Table, error) {
	var pl []parsedLine
	for i, l := range span {
		if i%256 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		if l.IsFurniture(e.doc.PageLineCount(l.Page)) {
			continue
		}
		pl = append(pl, parseLine(l))
	}

	var tables []Table
	low := 0
	for _, r := range findRegions(pl) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if t, ok := e.build(pl, r[0], r[1], low); ok {
			tables = append(tables, t)
		}
		low = r[1]
	}
	return tables, nil
}

func parseLine(l layout.Line) parsedLine {
	p := parsedLine{line: l}
	var label []string
	inLabel := true
	for _, f := range l.Fragments {
		t := strings.TrimSpace(f.Text)
		if t == "" {
			continue
		}
		if isNumeric(t) {
			inLabel = false
			p.values = append(p.values, f)
			continue
		}
		if parts := splitFigures(f); parts != nil {
			inLabel = false
			p.values = append(p.values, parts...)
			continue
		}
		if inLabel {
			label = append(label, t)
		} else if !ignorable(t) {
			// Trailing notes after the figures end the row.
			break
		}
	}
	p.label = cleanLabel(strings.Join(label, " "))

	if periods, ok := headerPeriods(l); ok {
		p.kind = kindHeader
		p.periods = periods
		return p
	}
	if len(p.values) >= 2 {
		p.kind = kindNumeric
	}
	return p
}

// headerPeriods accepts a line of period labels, optionally after a leading caption.
func headerPeriods(l layout.Line) ([]layout.Fragment, bool) {
	var periods []layout.Fragment
	for _, f := range l.Fragments {
		t := strings.TrimSpace(f.Text)
		if t == "" {
			continue
		}
		if isPeriodLabel(t) {
			periods = append(periods, f)
			continue
		}
		if len(periods) > 0 {
			return nil, false
		}
	}
	return periods, len(periods) > 0
}

func cleanLabel(s string) string {
	s = leaderDots.ReplaceAllString(s, "")
	s = strings.TrimRight(strings.TrimSpace(s), "$ ")
	return strings.Join(strings.Fields(s), " ")
}

// findRegions returns [start, end) runs of numeric rows. Up to maxBridgeLines
// other lines may sit between numeric rows; headers and page breaks end a run.
func findRegions(pl []parsedLine) [][2]int {
	var out [][2]int
	i := 0
	for i < len(pl) {
		if pl[i].kind != kindNumeric {
			i++
			continue
		}
		start, end := i, i+1
		numeric, gap := 1, 0
		for j := i + 1; j < len(pl); j++ {
			if pl[j].kind == kindHeader || pl[j].line.Page != pl[j-1].line.Page {
				break
			}
			if pl[j].kind == kindNumeric {
				numeric++
				end = j + 1
				gap = 0
				continue
			}
			gap++
			if gap > maxBridgeLines {
				break
			}
		}
		if numeric >= minNumericRows && numeric*2 > end-start {
			out = append(out, [2]int{start, end})
		}
		i = end
	}
	return out
}

func (e *extractor) build(pl []parsedLine, start, end, low int) (Table, bool) {
	cols := e.columns(pl[start:end])
	if len(cols) == 0 {
		return Table{}, false
	}

	var header *parsedLine
	for i := start - 1; i >= max(low, start-headerLookback); i-- {
		if pl[i].kind == kindHeader {
			header = &pl[i]
			break
		}
	}
	periods := e.periodLabels(header, cols)

	t := Table{
		Statement: e.statementName(pl, start, low),
		Unit:      unit(pl, start, end, low),
		Periods:   periods,
		Rows:      []Row{},
		StartPage: pl[start].line.Page,
		EndPage:   pl[end-1].line.Page,
	}
	for _, r := range pl[start:end] {
		if row, ok := e.row(r, cols, periods); ok {
			t.Rows = append(t.Rows, row)
		}
	}
	if len(t.Rows) == 0 {
		return Table{}, false
	}
	return t, true
}

type cluster struct {
	sum  float64
	n    int
	rows map[int]bool
}

func (c *cluster) mean() float64 { return c.sum / float64(c.n) }

// columns clusters right edges of numeric cells and keeps the clusters that
// appear in at least half of the numeric rows.
func (e *extractor) columns(rows []parsedLine) []float64 {
	type edge struct {
		x   float64
		row int
	}
	var edges []edge
	numeric := 0
	for i, r := range rows {
		if r.kind != kindNumeric {
			continue
		}
		numeric++
		for _, f := range r.values {
			edges = append(edges, edge{f.Right(), i})
		}
	}
	sort.Slice(edges, func(i, j int) bool { return edges[i].x < edges[j].x })

	var clusters []*cluster
	for _, ed := range edges {
		if n := len(clusters); n > 0 && ed.x-clusters[n-1].mean() <= e.tol {
			c := clusters[n-1]
			c.sum += ed.x
			c.n++
			c.rows[ed.row] = true
			continue
		}
		clusters = append(clusters, &cluster{sum: ed.x, n: 1, rows: map[int]bool{ed.row: true}})
	}

	var cols []float64
	for _, c := range clusters {
		if len(c.rows)*2 >= numeric {
			cols = append(cols, c.mean())
		}
	}
	return cols
}

func nearest(x float64, cols []float64) (int, float64) {
	best, bestD := 0, math.Inf(1)
	for i, c := range cols {
		if d := math.Abs(x - c); d < bestD {
			best, bestD = i, d
		}
	}
	return best, bestD
}

// periodLabels maps header fragments onto columns. Unmatched columns are
// "Period n". Labels are unique and never collide with the category key.
func (e *extractor) periodLabels(header *parsedLine, cols []float64) []string {
	labels := make([]string, len(cols))
	if header != nil {
		frags := header.periods
		if len(frags) == len(cols) {
			for i, f := range frags {
				labels[i] = strings.Join(strings.Fields(f.Text), " ")
			}
		} else {
			used := make(map[int]bool)
			for i, c := range cols {
				best, bestD := -1, math.Inf(1)
				for j, f := range frags {
					if used[j] {
						continue
					}
					center := f.X + f.Width/2
					if d := math.Min(math.Abs(f.Right()-c), math.Abs(center-c)); d < bestD {
						best, bestD = j, d
					}
				}
				if best >= 0 && bestD <= 4*e.tol {
					labels[i] = strings.Join(strings.Fields(frags[best].Text), " ")
					used[best] = true
				}
			}
		}
	}

	seen := map[string]int{categoryKey: 1}
	for i := range labels {
		if labels[i] == "" {
			labels[i] = fmt.Sprintf("Period %d", i+1)
		}
		labels[i] = textutil.Unique(labels[i], seen)
	}
	return labels
}

// statementName prefers a nearby title that names a statement, then any bold
// or larger line.
func (e *extractor) statementName(pl []parsedLine, start, low int) string {
	var fallback string
	for i := start - 1; i >= max(low, start-titleLookback); i-- {
		if !e.titleLike(pl[i]) {
			continue
		}
		text := pl[i].line.Text()
		if statementPattern.MatchString(text) {
			return normalizeStatement(text)
		}
		if fallback == "" {
			fallback = text
		}
	}
	if fallback != "" {
		return normalizeStatement(fallback)
	}
	return UnnamedStatement
}

func (e *extractor) titleLike(p parsedLine) bool {
	if p.kind != kindOther || len(p.values) > 0 {
		return false
	}
	l := p.line
	text := l.Text()
	if len(text) > maxTitleLen || !strings.ContainsFunc(text, unicode.IsLetter) {
		return false
	}
	return l.Bold() || l.FontSize() > e.body+0.5
}

func normalizeStatement(s string) string {
	s = unitPattern.ReplaceAllString(s, "")
	s = continuedPattern.ReplaceAllString(s, "")
	s = strings.Join(strings.Fields(s), " ")
	if s == "" {
		return UnnamedStatement
	}
	return s
}

// unit looks for an "(in millions)" caption, nearest to the table start first.
func unit(pl []parsedLine, start, end, low int) string {
	for i := start - 1; i >= max(low, start-titleLookback); i-- {
		if m := unitPattern.FindStringSubmatch(pl[i].line.Text()); m != nil {
			return strings.TrimSpace(m[1])
		}
	}
	for i := start; i < min(end, start+2); i++ {
		if m := unitPattern.FindStringSubmatch(pl[i].line.Text()); m != nil {
			return strings.TrimSpace(m[1])
		}
	}
	return DefaultUnit
}

// row snaps each figure to its nearest column. Placeholders and unparseable
// figures stay nil. A row with no value at all is dropped.
func (e *extractor) row(p parsedLine, cols []float64, periods []string) (Row, bool) {
	if p.kind == kindHeader || len(p.values) == 0 {
		return Row{}, false
	}
	cells := make([]Cell, len(cols))
	dist := make([]float64, len(cols))
	for i := range cells {
		cells[i].Period = periods[i]
		dist[i] = math.Inf(1)
	}
	for _, f := range p.values {
		i, d := nearest(f.Right(), cols)
		if d < dist[i] {
			cells[i].Value = ParseNumber(f.Text)
			dist[i] = d
		}
	}
	for _, c := range cells {
		if c.Value != nil {
			return Row{Category: p.label, Cells: cells}, true
		}
	}
	return Row{}, false
}

// merge joins a table continued on the next page onto its first part and
// suffixes the names of unrelated tables that share a statement name.
func merge(tables []Table) []Table {
	out := make([]Table, 0, len(tables))
	for _, t := range tables {
		if n := len(out); n > 0 && continues(out[n-1], t) {
			last := &out[n-1]
			last.Rows = append(last.Rows, t.Rows...)
			last.EndPage = t.EndPage
			if last.Unit == DefaultUnit {
				last.Unit = t.Unit
			}
			continue
		}
		out = append(out, t)
	}

	seen := make(map[string]int)
	for i := range out {
		out[i].Statement = textutil.Unique(out[i].Statement, seen)
	}
	return out
}

func continues(prev, next Table) bool {
	if !slices.Equal(prev.Periods, next.Periods) {
		return false
	}
	if next.Statement == prev.Statement && next.Statement != UnnamedStatement {
		return true
	}
	return next.Statement == UnnamedStatement && next.StartPage == prev.EndPage+1
}
