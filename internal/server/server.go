// Package server exposes the engines over HTTP. Handlers stay thin: decode,
// call the engine, map the error kind to a status code.
package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/riftfin/riftcore/internal/caseflow"
	"github.com/riftfin/riftcore/internal/config"
	"github.com/riftfin/riftcore/internal/gate"
	"github.com/riftfin/riftcore/internal/ledger"
	"github.com/riftfin/riftcore/internal/pricing"
	"github.com/riftfin/riftcore/internal/riftscore"
	"github.com/riftfin/riftcore/internal/riskadapter"
	"github.com/riftfin/riftcore/internal/store"
)

// Server wires the engines behind the HTTP API. The ledger is nil when the
// configured store backend cannot host it; pool endpoints then answer 503.
type Server struct {
	store   store.Store
	adapter riskadapter.Port
	scores  *riftscore.Engine
	pricing *pricing.Engine
	cases   *caseflow.Service
	gate    *gate.Verifier
	ledger  *ledger.Ledger
	cfg     config.ServerConfig
}

// New assembles the server from its engines.
func New(st store.Store, adapter riskadapter.Port, scores *riftscore.Engine, pricingEngine *pricing.Engine,
	cases *caseflow.Service, gateVerifier *gate.Verifier, led *ledger.Ledger, cfg config.ServerConfig) *Server {
	return &Server{
		store:   st,
		adapter: adapter,
		scores:  scores,
		pricing: pricingEngine,
		cases:   cases,
		gate:    gateVerifier,
		ledger:  led,
		cfg:     cfg,
	}
}

// Router builds the chi handler tree with the standard middleware chain.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	if len(s.cfg.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: s.cfg.AllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
			MaxAge:         300,
		}))
	}

	r.Get("/health", s.handleHealth)

	r.Route("/v1", func(r chi.Router) {
		r.Post("/score/calculate", s.handleScoreCalculate)
		r.Post("/score/override", s.handleScoreOverride)
		r.Get("/score/{entityType}/{entityID}/history", s.handleScoreHistory)

		r.Post("/pricing/quote", s.handlePricingQuote)

		r.Post("/cases", s.handleCaseOpen)
		r.Get("/cases/{id}", s.handleCaseGet)
		r.Post("/cases/{id}/prescreen", s.handleCasePrescreen)
		r.Post("/cases/{id}/decide", s.handleCaseDecide)
		r.Post("/cases/{id}/request-info", s.handleCaseRequestInfo)

		r.Post("/gate/verify", s.handleGateVerify)

		r.Get("/pools", s.handlePoolList)
		r.Get("/pools/{tenor}/conservation", s.handlePoolConservation)
		r.Post("/pools/deposit", s.handlePoolDeposit)
		r.Post("/pools/withdraw", s.handlePoolWithdraw)
		r.Post("/pools/allocate", s.handlePoolAllocate)
		r.Post("/pools/repayment", s.handlePoolRepayment)
		r.Post("/insurance/event", s.handleInsuranceEvent)

		r.Get("/audit/{entity}/{id}", s.handleAuditList)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
