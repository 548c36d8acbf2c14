package extract

import (
	"errors"
	"fmt"
	"slices"

	"github.com/dgallion1/tenkview/internal/finance"
	"github.com/dgallion1/tenkview/internal/riskfactor"
)

// ErrInvalidBundle wraps every invariant violation found by Validate.
var ErrInvalidBundle = errors.New("extract: invalid bundle")

// Validate checks the shape guarantees the views rely on. It returns nil or an
// error wrapping ErrInvalidBundle that joins every violation.
func Validate(b *Bundle) error {
	if b == nil {
		return fmt.Errorf("%w: nil bundle", ErrInvalidBundle)
	}
	var errs []error
	if b.Metadata.NumPages <= 0 {
		errs = append(errs, errors.New("no pages"))
	}
	for id, r := range b.Sections {
		if r.Found != (r.Section != nil) {
			errs = append(errs, fmt.Errorf("section %s: found=%v but section present=%v", id, r.Found, r.Section != nil))
		}
	}
	errs = append(errs, ValidateRisks(b.RiskFactors.Set)...)
	for i, t := range b.Tables.Tables {
		errs = append(errs, ValidateTable(t, i)...)
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidBundle, errors.Join(errs...))
}

// ValidateRisks checks that titles and descriptions pair up and titles are unique.
func ValidateRisks(s riskfactor.Set) []error {
	var errs []error
	if s.Titles == nil || s.Descriptions == nil {
		errs = append(errs, errors.New("risk lists must not be nil"))
	}
	if len(s.Titles) != len(s.Descriptions) {
		errs = append(errs, fmt.Errorf("risk lists differ: %d titles, %d descriptions", len(s.Titles), len(s.Descriptions)))
	}
	seen := make(map[string]bool, len(s.Titles))
	for _, title := range s.Titles {
		if seen[title] {
			errs = append(errs, fmt.Errorf("duplicate risk title %q", title))
		}
		seen[title] = true
	}
	return errs
}

// ValidateTable checks that every row has exactly the table's periods, in
// order, and at least one value.
func ValidateTable(t finance.Table, i int) []error {
	var errs []error
	if len(t.Periods) == 0 {
		errs = append(errs, fmt.Errorf("table %d (%s): no periods", i, t.Statement))
	}
	if len(slices.Compact(slices.Sorted(slices.Values(t.Periods)))) != len(t.Periods) {
		errs = append(errs, fmt.Errorf("table %d (%s): duplicate periods", i, t.Statement))
	}
	for j, r := range t.Rows {
		periods := make([]string, len(r.Cells))
		hasValue := false
		for k, c := range r.Cells {
			periods[k] = c.Period
			hasValue = hasValue || c.Value != nil
		}
		if !slices.Equal(periods, t.Periods) {
			errs = append(errs, fmt.Errorf("table %d (%s) row %d: periods %v, want %v", i, t.Statement, j, periods, t.Periods))
		}
		if !hasValue {
			errs = append(errs, fmt.Errorf("table %d (%s) row %d: no values", i, t.Statement, j))
		}
	}
	return errs
}
