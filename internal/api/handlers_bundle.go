package api

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/dgallion1/tenkview/internal/export"
	"github.com/dgallion1/tenkview/internal/extract"
	"github.com/dgallion1/tenkview/internal/render"
	"github.com/dgallion1/tenkview/internal/section"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// bundle loads the filing's bundle, computing it on first use. On failure the
// error response has been written.
func (s *Server) bundle(w http.ResponseWriter, r *http.Request) (*extract.Bundle, bool) {
	filename, err := filenameParam(r)
	if err != nil {
		s.writeError(w, r, err)
		return nil, false
	}
	b, err := s.svc.Bundle(r.Context(), filename)
	if err != nil {
		s.writeError(w, r, err)
		return nil, false
	}
	return b, true
}

func (s *Server) handleMetadata(w http.ResponseWriter, r *http.Request) {
	b, ok := s.bundle(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, b.Metadata)
}

// handleListSections reports which dashboard tabs have content.
func (s *Server) handleListSections(w http.ResponseWriter, r *http.Request) {
	b, ok := s.bundle(w, r)
	if !ok {
		return
	}
	tabs := make([]map[string]any, 0, len(section.Dashboard))
	for _, tab := range section.Dashboard {
		res, _ := b.Section(tab.ID)
		tabs = append(tabs, map[string]any{
			"id":    tab.ID,
			"name":  tab.Name,
			"found": res.Found,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"sections": tabs})
}

func (s *Server) handleSection(w http.ResponseWriter, r *http.Request) {
	rawID, _ := url.PathUnescape(chi.URLParam(r, "sectionID"))
	id, err := section.ParseID(rawID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	format, err := render.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	b, ok := s.bundle(w, r)
	if !ok {
		return
	}
	res, err := b.Section(id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if !res.Found || res.Section == nil {
		jsonError(w, fmt.Sprintf("%s: %s", id, extract.SectionUnavailable), http.StatusNotFound)
		return
	}

	sec := res.Section
	body := map[string]any{
		"id":         sec.ID,
		"name":       sec.Name,
		"heading":    sec.Heading,
		"content":    sec.Content,
		"start_page": sec.StartPage,
		"end_page":   sec.EndPage,
	}
	switch format {
	case render.FormatHTML:
		html, err := render.HTML(sec.Content)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		body["html"] = html
	case render.FormatText:
		body["text"] = render.Text(sec.Content)
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) handleRiskFactors(w http.ResponseWriter, r *http.Request) {
	b, ok := s.bundle(w, r)
	if !ok {
		return
	}
	if !b.RiskFactors.Available {
		jsonError(w, "risk factors: "+extract.SectionUnavailable, http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, b.RiskFactors.Set)
}

func (s *Server) handleRiskFactor(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		jsonError(w, "index must be an integer", http.StatusBadRequest)
		return
	}
	b, ok := s.bundle(w, r)
	if !ok {
		return
	}
	if !b.RiskFactors.Available {
		jsonError(w, "risk factors: "+extract.SectionUnavailable, http.StatusNotFound)
		return
	}
	item, err := b.RiskFactors.Set.Item(index)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (s *Server) handleTables(w http.ResponseWriter, r *http.Request) {
	b, ok := s.bundle(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"tables":         b.Tables.Tables,
		"whole_document": b.Tables.WholeDocument,
	})
}

func (s *Server) handleTablesXLSX(w http.ResponseWriter, r *http.Request) {
	b, ok := s.bundle(w, r)
	if !ok {
		return
	}
	f, err := export.Workbook(b.Tables.Tables)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", b.Filename+".tables.xlsx"))
	if _, err := f.WriteTo(w); err != nil {
		s.log.Warn("xlsx write failed", "filename", b.Filename, "error", err)
	}
}
