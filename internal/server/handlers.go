package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/riftfin/riftcore/internal/gate"
	"github.com/riftfin/riftcore/internal/model"
	"github.com/riftfin/riftcore/internal/pricing"
)

type scoreCalculateRequest struct {
	EntityType model.EntityType   `json:"entity_type"`
	EntityID   string             `json:"entity_id"`
	Inputs     map[string]float64 `json:"inputs"`
}

func (s *Server) handleScoreCalculate(w http.ResponseWriter, r *http.Request) {
	var req scoreCalculateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	rec, err := s.scores.Calculate(r.Context(), req.EntityType, req.EntityID, req.Inputs)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

type scoreOverrideRequest struct {
	EntityType model.EntityType `json:"entity_type"`
	EntityID   string           `json:"entity_id"`
	Delta      float64          `json:"delta"`
	Reason     string           `json:"reason"`
	Actor      string           `json:"actor"`
}

func (s *Server) handleScoreOverride(w http.ResponseWriter, r *http.Request) {
	var req scoreOverrideRequest
	if !decodeBody(w, r, &req) {
		return
	}
	rec, err := s.scores.Override(r.Context(), req.EntityType, req.EntityID, req.Delta, req.Reason, req.Actor)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

func (s *Server) handleScoreHistory(w http.ResponseWriter, r *http.Request) {
	entityType := model.EntityType(chi.URLParam(r, "entityType"))
	entityID := chi.URLParam(r, "entityID")
	records, err := s.scores.History(r.Context(), entityType, entityID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"records": records})
}

func (s *Server) handlePricingQuote(w http.ResponseWriter, r *http.Request) {
	var req pricing.Request
	if !decodeBody(w, r, &req) {
		return
	}
	quote, err := s.pricing.Price(req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, quote)
}

func (s *Server) handleGateVerify(w http.ResponseWriter, r *http.Request) {
	var req gate.Request
	if !decodeBody(w, r, &req) {
		return
	}
	rec, err := s.gate.Verify(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleAuditList(w http.ResponseWriter, r *http.Request) {
	entity := chi.URLParam(r, "entity")
	entityID := chi.URLParam(r, "id")
	trail, err := s.store.ListAudit(r.Context(), entity, entityID, 100)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"records": trail})
}
