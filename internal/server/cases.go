package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/riftfin/riftcore/internal/caseflow"
)

func (s *Server) handleCaseOpen(w http.ResponseWriter, r *http.Request) {
	var req caseflow.OpenRequest
	if !decodeBody(w, r, &req) {
		return
	}
	c, err := s.cases.Open(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (s *Server) handleCaseGet(w http.ResponseWriter, r *http.Request) {
	c, err := s.store.GetCase(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleCasePrescreen(w http.ResponseWriter, r *http.Request) {
	var req caseflow.PrescreenRequest
	if !decodeBody(w, r, &req) {
		return
	}
	req.CaseID = chi.URLParam(r, "id")
	c, err := s.cases.Prescreen(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleCaseDecide(w http.ResponseWriter, r *http.Request) {
	var req caseflow.DecideRequest
	if !decodeBody(w, r, &req) {
		return
	}
	req.CaseID = chi.URLParam(r, "id")
	c, err := s.cases.Decide(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"new_status": c.Status,
		"case":       c,
	})
}

func (s *Server) handleCaseRequestInfo(w http.ResponseWriter, r *http.Request) {
	var req caseflow.MoreInfoRequest
	if !decodeBody(w, r, &req) {
		return
	}
	req.CaseID = chi.URLParam(r, "id")
	c, err := s.cases.RequestMoreInfo(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"new_status": c.Status,
		"missing":    c.MissingDocs,
	})
}
