package metadata

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgallion1/tenkview/internal/layout/layouttest"
)

func TestExtract_Overview(t *testing.T) {
	doc := layouttest.New().
		Heading("UNITED STATES SECURITIES AND EXCHANGE COMMISSION").
		Bold("FORM 10-K").
		Text("ANNUAL REPORT PURSUANT TO SECTION 13 OR 15(d)").
		Text("For the fiscal year ended September 30, 2023").
		Page().
		Paragraph("Acme Corporation designs and sells industrial widgets across three continents.").
		Paragraph("This annual report contains forward-looking statements about our business.").
		Page().
		Document()

	md := Extract(doc, "acme-10k.pdf", Options{})
	assert.Equal(t, "acme-10k.pdf", md.Filename)
	assert.Equal(t, 3, md.NumPages)
	require.NotNil(t, md.FiscalYearDate)
	assert.Equal(t, "September 30, 2023", *md.FiscalYearDate)
	assert.True(t, strings.HasPrefix(md.Preview, "Acme Corporation designs"))
	assert.NotContains(t, md.Preview, "FORM 10-K")
	assert.Contains(t, md.FirstPage, "**FORM 10-K**")
	assert.Equal(t, layouttest.BodySize, md.BodyFontSize)
	assert.Greater(t, md.WordCount, 20)
}

func TestPreview_CutsAtParagraph(t *testing.T) {
	b := layouttest.New().Text("Cover").Page()
	for i := 0; i < 30; i++ {
		b.Paragraph(strings.Repeat("Widgets are our main product line. ", 3))
	}
	doc := b.Document()

	got := Preview(doc, 250)
	assert.LessOrEqual(t, utf8.RuneCountInString(got), 250)
	assert.True(t, strings.HasSuffix(got, "product line."))
	assert.Contains(t, got, "\n\n")
}

func TestPreview_SinglePage(t *testing.T) {
	doc := layouttest.New().Text("Only page of a very short filing.").Document()
	assert.Equal(t, "Only page of a very short filing.", Preview(doc, 100))
}

func TestFiscalYearDate(t *testing.T) {
	tests := []struct {
		name string
		line string
		want string
	}{
		{"upper case", "FOR THE FISCAL YEAR ENDED DECEMBER 31, 2023", "December 31, 2023"},
		{"no comma", "for the year ended June 5 2021", "June 5, 2021"},
		{"impossible date", "For the fiscal year ended February 30, 2023", ""},
		{"absent", "Quarterly report for the period", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := layouttest.New().Text(tt.line).Document()
			got := FiscalYearDate(doc)
			if tt.want == "" {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, tt.want, *got)
		})
	}
}

func TestFiscalYearDate_OnlyFirstTwoPages(t *testing.T) {
	doc := layouttest.New().
		Text("Cover").Page().
		Text("Contents").Page().
		Text("For the fiscal year ended December 31, 2023").
		Document()
	assert.Nil(t, FiscalYearDate(doc))
}
