package riskfactor

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgallion1/tenkview/internal/layout/layouttest"
	"github.com/dgallion1/tenkview/internal/section"
)

const (
	introText  = "Investing in our securities involves a high degree of risk. You should carefully consider the risks below."
	supplyRisk = "We rely on a limited number of suppliers for key components, and any disruption could delay shipments and increase costs."
	rateRisk   = "Rising interest rates increase our borrowing costs and may reduce demand for financed purchases by our customers."
)

func TestSplit_TitlesAndDescriptions(t *testing.T) {
	text := strings.Join([]string{
		introText,
		"Risks Related to Our Operations",
		"**We depend on a small number of suppliers.**",
		supplyRisk,
		"Supplier consolidation may make this worse over time, particularly for specialized semiconductor parts.",
		"Interest rate changes could hurt demand",
		rateRisk,
	}, "\n\n")

	set := Split(text, Options{})
	require.Equal(t, len(set.Titles), len(set.Descriptions))
	assert.Equal(t, introText, set.Introduction)
	assert.Equal(t, []string{
		"Risks Related to Our Operations",
		"We depend on a small number of suppliers.",
		"Interest rate changes could hurt demand",
	}, set.Titles)

	// The category heading has no body of its own before the next title.
	assert.Equal(t, "", set.Descriptions[0])
	assert.Contains(t, set.Descriptions[1], supplyRisk)
	assert.Contains(t, set.Descriptions[1], "\n\nSupplier consolidation")
	assert.Equal(t, rateRisk, set.Descriptions[2])
}

func TestSplit_NoTitles(t *testing.T) {
	text := "We face many risks.\n\nThey are described in our other filings."
	set := Split(text, Options{})
	assert.Equal(t, text, set.Introduction)
	assert.NotNil(t, set.Titles)
	assert.NotNil(t, set.Descriptions)
	assert.Empty(t, set.Titles)
	assert.Equal(t, len(set.Titles), len(set.Descriptions))
}

func TestSplit_EmptyText(t *testing.T) {
	set := Split("", Options{})
	assert.Equal(t, "", set.Introduction)
	assert.Equal(t, 0, set.Len())
}

func TestSplit_PunctuatedPlainBlockIsNotTitle(t *testing.T) {
	text := "Short sentence ends here.\n\n" + supplyRisk
	set := Split(text, Options{})
	assert.Equal(t, 0, set.Len())
}

func TestSplit_TitleNeedsLongerFollower(t *testing.T) {
	text := "A heading without a period\n\nshort"
	set := Split(text, Options{})
	assert.Equal(t, 0, set.Len())
}

func TestSplit_MaxTitleLen(t *testing.T) {
	title := "Cybersecurity incidents could disrupt our operations"
	text := title + "\n\n" + supplyRisk
	assert.Equal(t, 1, Split(text, Options{}).Len())
	assert.Equal(t, 0, Split(text, Options{MaxTitleLen: 20}).Len())
}

func TestSplit_DuplicateTitlesSuffixed(t *testing.T) {
	text := strings.Join([]string{
		"General risks", supplyRisk,
		"General risks", rateRisk,
		"General risks", supplyRisk,
	}, "\n\n")
	set := Split(text, Options{})
	assert.Equal(t, []string{"General risks", "General risks (2)", "General risks (3)"}, set.Titles)
}

func TestSplit_SuffixedTitleAlreadyPresent(t *testing.T) {
	text := strings.Join([]string{
		"Competition", supplyRisk,
		"Competition", rateRisk,
		"Competition (2)", supplyRisk,
	}, "\n\n")
	set := Split(text, Options{})
	require.Len(t, set.Titles, 3)
	assert.Equal(t, []string{"Competition", "Competition (2)", "Competition (2) (2)"}, set.Titles)
	item, err := set.Item(2)
	require.NoError(t, err)
	assert.Equal(t, "Competition (2) (2)", item.Title)
}

func TestSet_Item(t *testing.T) {
	set := Split("Title one\n\n"+supplyRisk, Options{})
	it, err := set.Item(0)
	require.NoError(t, err)
	assert.Equal(t, Item{Index: 0, Title: "Title one", Description: supplyRisk}, it)

	_, err = set.Item(1)
	assert.ErrorIs(t, err, ErrRiskNotFound)
	_, err = set.Item(-1)
	assert.ErrorIs(t, err, ErrRiskNotFound)
}

func TestExtract_FromDocument(t *testing.T) {
	doc := layouttest.New().
		Heading("Item 1A. Risk Factors").
		Paragraph(introText).
		Bold("We depend on a small number of suppliers.").
		Paragraph(supplyRisk).
		Heading("Item 1B. Unresolved Staff Comments").
		Text("None.").
		Document()

	set, err := Extract(doc, Options{})
	require.NoError(t, err)
	assert.Equal(t, introText, set.Introduction)
	assert.Equal(t, []string{"We depend on a small number of suppliers."}, set.Titles)
	assert.Equal(t, []string{supplyRisk}, set.Descriptions)
}

func TestExtract_MissingSection(t *testing.T) {
	doc := layouttest.New().Text("No items here at all in this short document text.").Document()
	set, err := Extract(doc, Options{})
	assert.ErrorIs(t, err, section.ErrSectionNotFound)
	assert.Equal(t, len(set.Titles), len(set.Descriptions))
}
