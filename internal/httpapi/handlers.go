package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/joelkehle/roimap/internal/cityview"
	"github.com/joelkehle/roimap/internal/docsource"
	"github.com/joelkehle/roimap/internal/render"
)

// warningsHeader carries the number of features or opportunities dropped
// while assembling a report.
const warningsHeader = "X-Roimap-Warnings"

type cityEntry struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type chatRequest struct {
	Question string          `json:"question"`
	Report   json.RawMessage `json:"report"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleCities(w http.ResponseWriter, r *http.Request) {
	cities := s.cities.Cities()
	out := make([]cityEntry, 0, len(cities))
	for _, c := range cities {
		out = append(out, cityEntry{ID: c.ID, Name: c.Name})
	}
	writeJSON(w, http.StatusOK, map[string]any{"cities": out})
}

func (s *Server) handleCityData(w http.ResponseWriter, r *http.Request) {
	cityID := chi.URLParam(r, "cityID")
	res, err := s.cities.Report(r.Context(), cityID)
	if err != nil {
		s.writeCityError(w, cityID, err)
		return
	}
	w.Header().Set(warningsHeader, strconv.Itoa(len(res.ParsingWarnings())))
	writeJSON(w, http.StatusOK, res.Report)
}

func (s *Server) handleRegionReport(w http.ResponseWriter, r *http.Request) {
	page, _, err := s.regionPage(r)
	if err != nil {
		s.writeCityError(w, chi.URLParam(r, "cityID"), err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(page))
}

func (s *Server) handleRegionPDF(w http.ResponseWriter, r *http.Request) {
	if s.pdf == nil {
		writeError(w, errUnavailable("pdf rendering is not configured"))
		return
	}
	page, filename, err := s.regionPage(r)
	if err != nil {
		s.writeCityError(w, chi.URLParam(r, "cityID"), err)
		return
	}
	pdf, err := s.pdf.RenderPDF(r.Context(), page)
	if err != nil {
		s.log.Error().Err(err).Str("file", filename).Msg("pdf render failed")
		writeError(w, fmt.Errorf("render pdf: %w", err))
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(pdf)
}

func (s *Server) regionPage(r *http.Request) (string, string, error) {
	cityID := chi.URLParam(r, "cityID")
	regionID := chi.URLParam(r, "regionID")
	rep, region, err := s.cities.Region(r.Context(), cityID, regionID)
	if err != nil {
		return "", "", err
	}
	page, err := render.RegionPage(rep.City, region)
	if err != nil {
		return "", "", err
	}
	return page, strings.ToLower(cityID + "-" + region.ID + ".pdf"), nil
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if s.chat == nil {
		writeError(w, errUnavailable("chat is not configured"))
		return
	}
	var req chatRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, errBadRequest("invalid JSON body"))
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeError(w, errBadRequest("question is required"))
		return
	}
	var region map[string]any
	if err := json.Unmarshal(req.Report, &region); err != nil || region == nil {
		writeError(w, errBadRequest("report must be a region object"))
		return
	}
	answer := s.chat.Answer(r.Context(), req.Question, region)
	writeJSON(w, http.StatusOK, map[string]string{"answer": answer})
}

// writeCityError turns a missing upstream document into "No data for <city>"
// and logs server-side failures.
func (s *Server) writeCityError(w http.ResponseWriter, cityID string, err error) {
	switch {
	case errors.Is(err, cityview.ErrUnknownCity), errors.Is(err, cityview.ErrUnknownRegion):
		writeError(w, err)
		return
	case errors.Is(err, docsource.ErrNotFound):
		s.log.Warn().Err(err).Str("city", cityID).Msg("city documents not found")
		writeError(w, errNotFound("No data for "+s.cityName(cityID)))
		return
	}
	s.log.Error().Err(err).Str("city", cityID).Msg("city request failed")
	writeError(w, err)
}

func (s *Server) cityName(cityID string) string {
	for _, c := range s.cities.Cities() {
		if strings.EqualFold(c.ID, cityID) {
			return c.Name
		}
	}
	return cityID
}
