package section

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	// ErrSectionNotFound means the filing has no recognizable heading for the item.
	ErrSectionNotFound = errors.New("section: not found")
	// ErrUnknownSection means the id is not a Form 10-K item.
	ErrUnknownSection = errors.New("section: unknown id")
)

// Definition is one Form 10-K item.
type Definition struct {
	ID     string `json:"id"`     // canonical, e.g. "Item 1A"
	Number string `json:"number"` // e.g. "1A"
	Title  string `json:"title"`
}

// Catalog lists every Form 10-K item in filing order. All of them act as boundaries.
var Catalog = []Definition{
	{"Item 1", "1", "Business"},
	{"Item 1A", "1A", "Risk Factors"},
	{"Item 1B", "1B", "Unresolved Staff Comments"},
	{"Item 1C", "1C", "Cybersecurity"},
	{"Item 2", "2", "Properties"},
	{"Item 3", "3", "Legal Proceedings"},
	{"Item 4", "4", "Mine Safety Disclosures"},
	{"Item 5", "5", "Market for Registrant's Common Equity, Related Stockholder Matters and Issuer Purchases of Equity Securities"},
	{"Item 6", "6", "[Reserved]"},
	{"Item 7", "7", "Management's Discussion and Analysis of Financial Condition and Results of Operations"},
	{"Item 7A", "7A", "Quantitative and Qualitative Disclosures About Market Risk"},
	{"Item 8", "8", "Financial Statements and Supplementary Data"},
	{"Item 9", "9", "Changes in and Disagreements with Accountants on Accounting and Financial Disclosure"},
	{"Item 9A", "9A", "Controls and Procedures"},
	{"Item 9B", "9B", "Other Information"},
	{"Item 9C", "9C", "Disclosure Regarding Foreign Jurisdictions that Prevent Inspections"},
	{"Item 10", "10", "Directors, Executive Officers and Corporate Governance"},
	{"Item 11", "11", "Executive Compensation"},
	{"Item 12", "12", "Security Ownership of Certain Beneficial Owners and Management and Related Stockholder Matters"},
	{"Item 13", "13", "Certain Relationships and Related Transactions, and Director Independence"},
	{"Item 14", "14", "Principal Accountant Fees and Services"},
	{"Item 15", "15", "Exhibits and Financial Statement Schedules"},
	{"Item 16", "16", "Form 10-K Summary"},
}

// Dashboard sections.
const (
	Business            = "Item 1"
	RiskFactors         = "Item 1A"
	MDA                 = "Item 7"
	FinancialData       = "Item 8"
	FinancialStatements = "Item 15"
)

// Dashboard lists the sections shown as tabs, with their tab names.
var Dashboard = []struct {
	ID   string
	Name string
}{
	{Business, "Business"},
	{RiskFactors, "Risk Factors"},
	{MDA, "MD&A"},
	{FinancialStatements, "Financial Statements"},
}

var byNumber = func() map[string]int {
	m := make(map[string]int, len(Catalog))
	for i, d := range Catalog {
		m[d.Number] = i
	}
	return m
}()

var idPattern = regexp.MustCompile(`(?i)^\s*(?:item[\s_\-]*)?(\d{1,2}[a-c]?)\.?\s*$`)

// ParseID normalizes "1a", "item-1a", "ITEM 1A." and similar to "Item 1A".
func ParseID(s string) (string, error) {
	m := idPattern.FindStringSubmatch(s)
	if m == nil {
		return "", fmt.Errorf("%w: %q", ErrUnknownSection, s)
	}
	d, ok := Lookup(m[1])
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownSection, s)
	}
	return d.ID, nil
}

// Lookup finds an item by its number, case-insensitively.
func Lookup(number string) (Definition, bool) {
	i, ok := byNumber[strings.ToUpper(strings.TrimLeft(number, "0"))]
	if !ok {
		return Definition{}, false
	}
	return Catalog[i], true
}

func order(number string) int {
	i, ok := byNumber[number]
	if !ok {
		return -1
	}
	return i
}
