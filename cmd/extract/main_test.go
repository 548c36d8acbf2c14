package main

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"
)

const filingHTML = `<html><body>
<p><b>FORM 10-K</b></p>
<p>For the fiscal year ended September 30, 2023</p>
<hr style="page-break-after:always"/>
<p><b>Item 1. Business</b></p>
<p>Acme Corporation designs, manufactures and sells industrial widgets to customers worldwide.</p>
</body></html>`

func writeFiling(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "acme.htm")
	if err := os.WriteFile(path, []byte(filingHTML), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRun_PrintsBundle(t *testing.T) {
	path := writeFiling(t)
	xlsx := filepath.Join(t.TempDir(), "tables.xlsx")

	var out bytes.Buffer
	err := run(options{file: path, tablesXLSX: xlsx, timeout: time.Minute, preview: 100}, &out, slog.New(slog.DiscardHandler))
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	var bundle struct {
		Filename string `json:"filename"`
		Metadata struct {
			NumPages       int     `json:"num_pages"`
			FiscalYearDate *string `json:"fiscal_year_date"`
		} `json:"metadata"`
	}
	if err := json.Unmarshal(out.Bytes(), &bundle); err != nil {
		t.Fatalf("output is not json: %v", err)
	}
	if bundle.Filename != "acme.htm" || bundle.Metadata.NumPages != 2 {
		t.Errorf("unexpected bundle %+v", bundle)
	}
	if bundle.Metadata.FiscalYearDate == nil || *bundle.Metadata.FiscalYearDate != "September 30, 2023" {
		t.Errorf("unexpected fiscal year date %v", bundle.Metadata.FiscalYearDate)
	}

	f, err := excelize.OpenFile(xlsx)
	if err != nil {
		t.Fatalf("expected xlsx written: %v", err)
	}
	f.Close()
}

func TestRun_Section(t *testing.T) {
	var out bytes.Buffer
	err := run(options{file: writeFiling(t), section: "1", timeout: time.Minute, preview: 100}, &out, slog.New(slog.DiscardHandler))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	var res struct {
		Found   bool `json:"found"`
		Section struct {
			ID string `json:"id"`
		} `json:"section"`
	}
	if err := json.Unmarshal(out.Bytes(), &res); err != nil {
		t.Fatal(err)
	}
	if !res.Found || res.Section.ID != "Item 1" {
		t.Errorf("unexpected section result %+v", res)
	}
}

func TestRun_Errors(t *testing.T) {
	log := slog.New(slog.DiscardHandler)
	if err := run(options{file: "/nonexistent/10k.pdf", timeout: time.Minute}, &bytes.Buffer{}, log); err == nil {
		t.Error("expected error for missing file")
	}
	if err := run(options{file: writeFiling(t), section: "Part II", timeout: time.Minute}, &bytes.Buffer{}, log); err == nil {
		t.Error("expected error for unknown section")
	}
}
