package api

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/dgallion1/tenkview/internal/config"
	"github.com/dgallion1/tenkview/internal/extract"
	"github.com/dgallion1/tenkview/internal/layout/layouttest"
	"github.com/dgallion1/tenkview/internal/pipeline"
	"github.com/dgallion1/tenkview/internal/store"
)

const (
	businessBody = "Acme Corporation designs, manufactures and sells industrial widgets to customers worldwide."
	riskIntro    = "Our business is subject to numerous risks, including those described below in this section."
	supplyRisk   = "We rely on a limited number of suppliers for key components, and disruptions could delay shipments."
	seededBytes  = "%PDF-1.7 seeded"
)

const filingHTML = `<html><body>
<p><b>FORM 10-K</b></p>
<p>For the fiscal year ended December 31, 2023</p>
<hr style="page-break-after:always"/>
<p><b>Item 1. Business</b></p>
<p>Acme Corporation designs, manufactures and sells industrial widgets to customers worldwide.</p>
</body></html>`

type testEnv struct {
	srv   *Server
	store *store.LocalStore
}

func newTestEnv(t *testing.T, apiKey string) *testEnv {
	t.Helper()
	cfg := config.Default()
	cfg.DataDir = t.TempDir()
	cfg.APIKey = apiKey
	cfg.WorkerCount = 1

	st, err := store.NewLocalStore(cfg.DataDir)
	require.NoError(t, err)
	log := slog.New(slog.DiscardHandler)
	svc := pipeline.NewService(st, cfg, extract.NewStats(time.Hour), log)
	orch := pipeline.NewOrchestrator(cfg, svc, log)
	orch.Start(context.Background())
	t.Cleanup(orch.Stop)

	return &testEnv{srv: NewServer(orch, log, cfg), store: st}
}

// seed stores an upload with a bundle built from a synthetic layout, so reads
// are served from the store without parsing.
func (e *testEnv) seed(t *testing.T, name string) {
	t.Helper()
	doc := layouttest.New().
		Heading("FORM 10-K").
		Text("For the fiscal year ended December 31, 2023").
		Page().
		Heading("Item 1. Business").
		Paragraph(businessBody).
		Heading("Item 1A. Risk Factors").
		Paragraph(riskIntro).
		Bold("Supplier concentration").
		Paragraph(supplyRisk).
		Page().
		Heading("Item 8. Financial Statements and Supplementary Data").
		Heading("Consolidated Balance Sheets").
		Header("2023", "2022").
		Row("Cash", "$1,234", "$1,100").
		Row("Receivables", "(56)", "—").
		Row("Total assets", "1,178", "1,100").
		Document()

	b, err := extract.Run(context.Background(), doc, extract.Options{Filename: name})
	require.NoError(t, err)
	_, err = e.store.SaveUpload(name, []byte(seededBytes))
	require.NoError(t, err)
	require.NoError(t, e.store.PutArtifactIfUnchanged(name, []byte(seededBytes), b))
}

func (e *testEnv) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	e.srv.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) get(t *testing.T, path string) *httptest.ResponseRecorder {
	return e.do(t, httptest.NewRequest(http.MethodGet, path, nil))
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func uploadRequest(t *testing.T, filename string, data []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/filings", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestHealth(t *testing.T) {
	e := newTestEnv(t, "secret")
	rec := e.get(t, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestAuth(t *testing.T) {
	e := newTestEnv(t, "secret")

	rec := e.get(t, "/api/filings")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/filings", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	assert.Equal(t, http.StatusUnauthorized, e.do(t, req).Code)

	req = httptest.NewRequest(http.MethodGet, "/api/filings", nil)
	req.Header.Set("Authorization", "Bearer secret")
	assert.Equal(t, http.StatusOK, e.do(t, req).Code)
}

func TestUploadAndPollJob(t *testing.T) {
	e := newTestEnv(t, "")

	rec := e.do(t, uploadRequest(t, "../acme.htm", []byte(filingHTML)))
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	resp := decode(t, rec)
	assert.Equal(t, "acme.htm", resp["filename"])
	pollURL, _ := resp["poll_url"].(string)
	require.NotEmpty(t, pollURL)

	var status map[string]any
	require.Eventually(t, func() bool {
		status = decode(t, e.get(t, pollURL))
		s := status["status"]
		return s == string(pipeline.StatusCompleted) || s == string(pipeline.StatusFailed)
	}, 5*time.Second, 10*time.Millisecond)
	require.Equal(t, string(pipeline.StatusCompleted), status["status"], status)
	progress := status["progress"].(map[string]any)
	assert.EqualValues(t, 2, progress["pages"])

	rec = e.get(t, "/api/filings/acme.htm/metadata")
	require.Equal(t, http.StatusOK, rec.Code)
	meta := decode(t, rec)
	assert.EqualValues(t, 2, meta["num_pages"])
	assert.Equal(t, "December 31, 2023", meta["fiscal_year_date"])

	list := decode(t, e.get(t, "/api/filings"))
	filings := list["filings"].([]any)
	require.Len(t, filings, 1)
	assert.Equal(t, true, filings[0].(map[string]any)["extracted"])
}

func TestUploadRejections(t *testing.T) {
	e := newTestEnv(t, "")

	rec := e.do(t, uploadRequest(t, "notes.txt", []byte("hello")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = e.do(t, uploadRequest(t, "empty.pdf", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/filings", bytes.NewBufferString("not multipart"))
	assert.Equal(t, http.StatusBadRequest, e.do(t, req).Code)
}

func TestUnreadableFiling(t *testing.T) {
	e := newTestEnv(t, "")
	_, err := e.store.SaveUpload("scan.pdf", []byte("not really a pdf"))
	require.NoError(t, err)

	rec := e.get(t, "/api/filings/scan.pdf/metadata")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestSections(t *testing.T) {
	e := newTestEnv(t, "")
	e.seed(t, "acme.pdf")

	rec := e.get(t, "/api/filings/acme.pdf/sections/1")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	sec := decode(t, rec)
	assert.Equal(t, "Item 1", sec["id"])
	assert.Equal(t, businessBody, sec["content"])
	assert.NotContains(t, sec, "html")

	rec = e.get(t, "/api/filings/acme.pdf/sections/item%201a?format=html")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, decode(t, rec)["html"], "<strong>Supplier concentration</strong>")

	// Item 7 is absent from the filing.
	rec = e.get(t, "/api/filings/acme.pdf/sections/7")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, decode(t, rec)["error"], extract.SectionUnavailable)

	assert.Equal(t, http.StatusBadRequest, e.get(t, "/api/filings/acme.pdf/sections/99").Code)
	assert.Equal(t, http.StatusBadRequest, e.get(t, "/api/filings/acme.pdf/sections/1?format=pdf").Code)

	tabs := decode(t, e.get(t, "/api/filings/acme.pdf/sections"))["sections"].([]any)
	require.Len(t, tabs, 4)
	assert.Equal(t, true, tabs[0].(map[string]any)["found"])
}

func TestRiskFactors(t *testing.T) {
	e := newTestEnv(t, "")
	e.seed(t, "acme.pdf")

	rec := e.get(t, "/api/filings/acme.pdf/risk-factors")
	require.Equal(t, http.StatusOK, rec.Code)
	set := decode(t, rec)
	assert.Equal(t, riskIntro, set["introduction"])
	assert.Equal(t, []any{"Supplier concentration"}, set["risk_titles"])
	assert.Equal(t, []any{supplyRisk}, set["risk_descriptions"])

	rec = e.get(t, "/api/filings/acme.pdf/risk-factors/0")
	require.Equal(t, http.StatusOK, rec.Code)
	item := decode(t, rec)
	assert.EqualValues(t, 0, item["index"])
	assert.Equal(t, "Supplier concentration", item["title"])

	assert.Equal(t, http.StatusNotFound, e.get(t, "/api/filings/acme.pdf/risk-factors/3").Code)
	assert.Equal(t, http.StatusBadRequest, e.get(t, "/api/filings/acme.pdf/risk-factors/x").Code)
}

func TestTables(t *testing.T) {
	e := newTestEnv(t, "")
	e.seed(t, "acme.pdf")

	rec := e.get(t, "/api/filings/acme.pdf/tables")
	require.Equal(t, http.StatusOK, rec.Code)
	tables := decode(t, rec)["tables"].([]any)
	require.Len(t, tables, 1)
	table := tables[0].(map[string]any)
	assert.Equal(t, "Consolidated Balance Sheets", table["statement"])
	rows := table["rows"].([]any)
	receivables := rows[1].(map[string]any)
	assert.Equal(t, "Receivables", receivables["Category"])
	assert.EqualValues(t, -56, receivables["2023"])
	assert.Nil(t, receivables["2022"])
	assert.Contains(t, receivables, "2022")

	rec = e.get(t, "/api/filings/acme.pdf/tables.xlsx")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, xlsxContentType, rec.Header().Get("Content-Type"))
	f, err := excelize.OpenReader(rec.Body)
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{"Consolidated Balance Sheets"}, f.GetSheetList())
}

func TestRepeatReadsAreIdentical(t *testing.T) {
	e := newTestEnv(t, "")
	e.seed(t, "acme.pdf")

	first := e.get(t, "/api/filings/acme.pdf/tables").Body.String()
	second := e.get(t, "/api/filings/acme.pdf/tables").Body.String()
	assert.Equal(t, first, second)
}

func TestMissingAndInvalidFilenames(t *testing.T) {
	e := newTestEnv(t, "")
	assert.Equal(t, http.StatusNotFound, e.get(t, "/api/filings/nope.pdf/metadata").Code)
	assert.Equal(t, http.StatusBadRequest, e.get(t, "/api/filings/.env/metadata").Code)
	assert.Equal(t, http.StatusNotFound, e.get(t, "/api/jobs/unknown/status").Code)
}

func TestDeleteFiling(t *testing.T) {
	e := newTestEnv(t, "")
	e.seed(t, "acme.pdf")

	rec := e.do(t, httptest.NewRequest(http.MethodDelete, "/api/filings/acme.pdf", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, http.StatusNotFound, e.get(t, "/api/filings/acme.pdf/metadata").Code)

	rec = e.do(t, httptest.NewRequest(http.MethodDelete, "/api/filings/acme.pdf", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestExtractStats(t *testing.T) {
	e := newTestEnv(t, "")
	_, err := e.store.SaveUpload("acme.htm", []byte(filingHTML))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, e.get(t, "/api/filings/acme.htm/metadata").Code)

	stats := decode(t, e.get(t, "/api/stats/extract"))
	byStage := stats["stats"].(map[string]any)
	assert.Contains(t, byStage, extract.StageParse)
	assert.Contains(t, byStage, extract.StageTotal)
}
