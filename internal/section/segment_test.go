package section

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgallion1/tenkview/internal/layout"
	"github.com/dgallion1/tenkview/internal/layout/layouttest"
)

const (
	businessBody = "Acme Corporation designs, manufactures and sells industrial widgets to customers worldwide."
	riskBody     = "Our business is subject to numerous risks, including those described below in this section."
	mdaBody      = "The following discussion should be read together with our consolidated financial statements."
	item8Body    = "The financial statements required by this item are included in Part IV of this annual report."
	item15Body   = "The following documents are filed as part of this report, including the financial statements."
)

// filingWithTOC lays out a cover, a table of contents that repeats every heading,
// and the body headings themselves.
func filingWithTOC() *layout.Document {
	return layouttest.New().
		Heading("FORM 10-K").
		Text("For the fiscal year ended December 31, 2023").
		Page().
		Text("Table of Contents").
		Text("Item 1. Business 3").
		Text("Item 1A. Risk Factors 5").
		Text("Item 7. Management's Discussion and Analysis 9").
		Text("Item 8. Financial Statements and Supplementary Data 12").
		Text("Item 15. Exhibits and Financial Statement Schedules 20").
		Page().
		Heading("Item 1. Business").
		Text(businessBody).
		Text("We operate in three segments.").
		Gap().
		Bold("Item 1A. Risk Factors").
		Text(riskBody).
		Page().
		Heading("Item 7. Management's Discussion and Analysis of Financial Condition and Results of Operations").
		Text(mdaBody).
		Page().
		Heading("Item 8. Financial Statements and Supplementary Data").
		Text(item8Body).
		Page().
		Heading("Item 15. Exhibits and Financial Statement Schedules").
		Text(item15Body).
		Document()
}

func TestGet_PrefersBodyHeadingsOverTOC(t *testing.T) {
	doc := filingWithTOC()
	ix := Segment(doc)

	tests := []struct {
		id, contains string
		page         int
	}{
		{Business, businessBody, 3},
		{RiskFactors, riskBody, 3},
		{MDA, mdaBody, 4},
		{FinancialData, item8Body, 5},
		{FinancialStatements, item15Body, 6},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			sec, err := ix.Get(tt.id)
			require.NoError(t, err)
			assert.Contains(t, sec.Content, tt.contains)
			assert.Equal(t, tt.page, sec.StartPage)
			assert.NotContains(t, sec.Content, "Table of Contents")
		})
	}
}

func TestGet_ExcludesFollowingHeading(t *testing.T) {
	sec, err := Get(filingWithTOC(), "Item 1")
	require.NoError(t, err)
	assert.Equal(t, businessBody+" We operate in three segments.", sec.Content)
	assert.NotContains(t, sec.Content, "Item 1A")
	assert.NotContains(t, sec.Content, "Risk Factors")
	assert.Equal(t, "Item 1. Business", sec.Heading)
	assert.Equal(t, "Business", sec.Name)
}

func TestGet_LastSectionRunsToEnd(t *testing.T) {
	sec, err := Get(filingWithTOC(), "item-15")
	require.NoError(t, err)
	assert.Equal(t, item15Body, sec.Content)
	assert.Equal(t, 6, sec.EndPage)
}

func TestGet_MissingSection(t *testing.T) {
	_, err := Get(filingWithTOC(), "Item 9A")
	assert.True(t, errors.Is(err, ErrSectionNotFound))

	_, err = Get(filingWithTOC(), "Item 99")
	assert.True(t, errors.Is(err, ErrSectionNotFound))
}

func TestGet_UnknownIDKeepsBothSentinels(t *testing.T) {
	for _, id := range []string{"Part II", "Item 99"} {
		_, err := Get(filingWithTOC(), id)
		assert.ErrorIs(t, err, ErrSectionNotFound, id)
		assert.ErrorIs(t, err, ErrUnknownSection, id)
	}
	_, err := Get(filingWithTOC(), "Item 9A")
	assert.ErrorIs(t, err, ErrSectionNotFound)
	assert.NotErrorIs(t, err, ErrUnknownSection)
}

func TestGet_NoHeadingsAtAll(t *testing.T) {
	doc := layouttest.New().Text("Just a letter to shareholders with no items.").Document()
	_, err := Get(doc, RiskFactors)
	assert.ErrorIs(t, err, ErrSectionNotFound)
}

func TestSegment_AbsorbsSeparateTitleLine(t *testing.T) {
	doc := layouttest.New().
		Bold("Item 1A.").
		Bold("Risk Factors").
		Text(riskBody).
		Gap().
		Bold("Item 1B.").
		Bold("Unresolved Staff Comments").
		Text("None.").
		Document()

	sec, err := Get(doc, RiskFactors)
	require.NoError(t, err)
	assert.Equal(t, "Item 1A. Risk Factors", sec.Heading)
	assert.Equal(t, riskBody, sec.Content)
}

func TestSegment_PlainStyledHeadings(t *testing.T) {
	doc := layouttest.New().
		Text("ITEM 1. BUSINESS").
		Text(businessBody).
		Gap().
		Text("ITEM 1A. RISK FACTORS").
		Text(riskBody).
		Document()

	assert.Equal(t, []string{"Item 1", "Item 1A"}, Segment(doc).Found())
}

func TestSegment_IgnoresWrappedCrossReference(t *testing.T) {
	doc := layouttest.New().
		Heading("Item 1A. Risk Factors").
		Text("Changes in demand could harm our results, as discussed further in Part II under").
		Text("Item 7. Management's Discussion and Analysis of Financial Condition, in detail").
		Text("and in the notes to our consolidated financial statements included in this report.").
		Document()

	ix := Segment(doc)
	assert.Equal(t, []string{"Item 1A"}, ix.Found())
	sec, err := ix.Get(RiskFactors)
	require.NoError(t, err)
	assert.Contains(t, sec.Content, "Item 7. Management's Discussion")
}

func TestSegment_UsesLastQualifyingBeforeNextStart(t *testing.T) {
	// Two strong "Item 1" headings: the later one, still before Item 1A, wins.
	doc := layouttest.New().
		Heading("Item 1. Business").
		Text("Overview text that precedes the real business narrative in this filing.").
		Page().
		Heading("Item 1. Business").
		Text(businessBody).
		Page().
		Heading("Item 1A. Risk Factors").
		Text(riskBody).
		Document()

	sec, err := Get(doc, Business)
	require.NoError(t, err)
	assert.Equal(t, 2, sec.StartPage)
	assert.Equal(t, businessBody, sec.Content)
}

func candidateFor(t *testing.T, doc *layout.Document, number string) (*scorer, Candidate) {
	t.Helper()
	sc := newScorer(doc)
	for _, c := range sc.candidates() {
		if c.Number == number {
			return sc, c
		}
	}
	t.Fatalf("no candidate for item %s", number)
	return nil, Candidate{}
}

func TestPredicates(t *testing.T) {
	t.Run("larger_font", func(t *testing.T) {
		sc, c := candidateFor(t, layouttest.New().Heading("Item 2. Properties").Text(businessBody).Document(), "2")
		assert.True(t, sc.largerFont(c))
		assert.True(t, sc.bold(c))
	})
	t.Run("regular_body_line", func(t *testing.T) {
		sc, c := candidateFor(t, layouttest.New().Text(businessBody).Text("Item 2 of this report describes our facilities.").Document(), "2")
		assert.False(t, sc.largerFont(c))
		assert.False(t, sc.bold(c))
		assert.False(t, sc.titleMatches(c))
	})
	t.Run("trailing_page_number", func(t *testing.T) {
		sc, c := candidateFor(t, layouttest.New().Text("Item 3. Legal Proceedings 27").Document(), "3")
		assert.True(t, sc.trailingPageNumber(c))
		assert.True(t, sc.titleMatches(c))
	})
	t.Run("bare_number_is_not_a_page_number", func(t *testing.T) {
		sc, c := candidateFor(t, layouttest.New().Bold("Item 7").Text(mdaBody).Document(), "7")
		assert.False(t, sc.trailingPageNumber(c))
	})
	t.Run("overlong", func(t *testing.T) {
		long := "Item 4 " + strings.Repeat("mine safety disclosure text ", 8)
		sc, c := candidateFor(t, layouttest.New().Text(long).Document(), "4")
		assert.True(t, sc.overlong(c))
	})
	t.Run("dense_item_page", func(t *testing.T) {
		doc := layouttest.New().
			Text("Item 1. Business").Text("Item 1A. Risk Factors").
			Text("Item 2. Properties").Text("Item 3. Legal Proceedings").
			Document()
		sc, c := candidateFor(t, doc, "2")
		assert.True(t, sc.denseItemPage(c))
	})
	t.Run("followed_by_body", func(t *testing.T) {
		sc, c := candidateFor(t, layouttest.New().Bold("Item 5. Market").Bold("Overview").Text(businessBody).Document(), "5")
		assert.True(t, sc.followedByBody(c))

		sc, c = candidateFor(t, layouttest.New().Text("Item 5. Market").Text("Item 6. [Reserved]").Document(), "5")
		assert.False(t, sc.followedByBody(c))
	})
	t.Run("mid_sentence", func(t *testing.T) {
		doc := layouttest.New().
			Text("Our liquidity is described in more detail elsewhere in this annual report under").
			Text("Item 7 and in the notes to the consolidated financial statements.").
			Document()
		sc, c := candidateFor(t, doc, "7")
		assert.True(t, sc.midSentence(c))
		assert.False(t, sc.startsBlock(c))
	})
}

func TestParseID(t *testing.T) {
	tests := map[string]string{
		"1a":        "Item 1A",
		"Item 1A":   "Item 1A",
		"ITEM 7.":   "Item 7",
		"item-15":   "Item 15",
		"item_7a":   "Item 7A",
		" item 9c ": "Item 9C",
	}
	for in, want := range tests {
		got, err := ParseID(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	for _, bad := range []string{"", "Item 17", "Part II", "1D"} {
		_, err := ParseID(bad)
		assert.ErrorIs(t, err, ErrUnknownSection, bad)
	}
}
