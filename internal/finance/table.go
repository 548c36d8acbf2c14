// Package finance recovers financial statement tables from positioned text.
package finance

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

const (
	// DefaultUnit is reported when no "(in millions)" style caption is found.
	DefaultUnit = "not specified"
	// UnnamedStatement is used when no title line precedes a table.
	UnnamedStatement = "Unnamed Statement"
	categoryKey      = "Category"
)

// Table is one financial statement. Every row carries exactly Periods, in order.
type Table struct {
	Statement string   `json:"statement"`
	Unit      string   `json:"unit"`
	Periods   []string `json:"periods"`
	Rows      []Row    `json:"rows"`
	StartPage int      `json:"start_page"`
	EndPage   int      `json:"end_page"`
}

// Cell is one period's value. A nil Value is a missing or unparseable figure.
type Cell struct {
	Period string
	Value  *float64
}

// Row is a line item and its per-period cells.
type Row struct {
	Category string
	Cells    []Cell
}

// Value looks up the cell for period.
func (r Row) Value(period string) (*float64, bool) {
	for _, c := range r.Cells {
		if c.Period == period {
			return c.Value, true
		}
	}
	return nil, false
}

// MarshalJSON writes {"Category": ..., "<period>": number|null, ...} with keys
// in column order.
func (r Row) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	if err := writeField(&buf, categoryKey, r.Category); err != nil {
		return nil, err
	}
	for _, c := range r.Cells {
		buf.WriteByte(',')
		if err := writeField(&buf, c.Period, c.Value); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func writeField(buf *bytes.Buffer, key string, v any) error {
	k, err := json.Marshal(key)
	if err != nil {
		return err
	}
	val, err := json.Marshal(v)
	if err != nil {
		return err
	}
	buf.Write(k)
	buf.WriteByte(':')
	buf.Write(val)
	return nil
}

// UnmarshalJSON reads a row back, keeping key order as column order.
func (r *Row) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return errors.New("finance: row must be a JSON object")
	}
	*r = Row{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("finance: unexpected token %v", tok)
		}
		if key == categoryKey {
			if err := dec.Decode(&r.Category); err != nil {
				return fmt.Errorf("finance: category: %w", err)
			}
			continue
		}
		var v *float64
		if err := dec.Decode(&v); err != nil {
			return fmt.Errorf("finance: period %q: %w", key, err)
		}
		r.Cells = append(r.Cells, Cell{Period: key, Value: v})
	}
	_, err = dec.Token()
	return err
}
