package server

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/riftfin/riftcore/internal/ledger"
	"github.com/riftfin/riftcore/internal/riskadapter"
)

// poolsUnavailable answers for all ledger routes when the configured store
// backend cannot host the pool ledger.
func (s *Server) poolsUnavailable(w http.ResponseWriter) bool {
	if s.ledger != nil {
		return false
	}
	writeJSON(w, http.StatusServiceUnavailable, map[string]string{
		"error": "pool ledger requires the postgres store backend",
	})
	return true
}

func (s *Server) handlePoolList(w http.ResponseWriter, r *http.Request) {
	if s.poolsUnavailable(w) {
		return
	}
	pools, err := s.ledger.Pools(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"pools": pools})
}

func (s *Server) handlePoolConservation(w http.ResponseWriter, r *http.Request) {
	if s.poolsUnavailable(w) {
		return
	}
	tenor, err := strconv.Atoi(chi.URLParam(r, "tenor"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "tenor must be an integer"})
		return
	}
	report, verr := s.ledger.VerifyConservation(r.Context(), tenor)
	if verr != nil && report == nil {
		writeError(w, r, verr)
		return
	}
	// A failed check still returns the report; the status code carries the
	// verdict.
	status := http.StatusOK
	if verr != nil {
		status = http.StatusConflict
	}
	writeJSON(w, status, report)
}

func (s *Server) handlePoolDeposit(w http.ResponseWriter, r *http.Request) {
	if s.poolsUnavailable(w) {
		return
	}
	var req ledger.DepositRequest
	if !decodeBody(w, r, &req) {
		return
	}
	out, err := s.ledger.Deposit(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

func (s *Server) handlePoolWithdraw(w http.ResponseWriter, r *http.Request) {
	if s.poolsUnavailable(w) {
		return
	}
	var req ledger.WithdrawRequest
	if !decodeBody(w, r, &req) {
		return
	}
	out, err := s.ledger.Withdraw(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

func (s *Server) handlePoolAllocate(w http.ResponseWriter, r *http.Request) {
	if s.poolsUnavailable(w) {
		return
	}
	var req ledger.AllocateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	out, err := s.ledger.Allocate(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	status := http.StatusCreated
	if out.Replayed {
		status = http.StatusOK
	}
	writeJSON(w, status, out)
}

func (s *Server) handlePoolRepayment(w http.ResponseWriter, r *http.Request) {
	if s.poolsUnavailable(w) {
		return
	}
	var req ledger.RepaymentRequest
	if !decodeBody(w, r, &req) {
		return
	}
	// Settle through the fiat rails first unless the caller already carries a
	// settlement reference; a rails failure means no ledger write.
	if req.Reference == "" {
		credit, err := s.adapter.CreditFiatRepayment(r.Context(), riskadapter.RepaymentCredit{
			InvoiceID:   req.InvoiceID,
			AmountCents: req.AmountCents,
			Currency:    "EUR",
		})
		if err != nil {
			writeError(w, r, err)
			return
		}
		req.Reference = credit.Reference
	}
	out, err := s.ledger.CreditRepayment(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

type insuranceEventRequest struct {
	ledger.InsuranceEventRequest
	CoveragePct float64 `json:"coverage_pct,omitempty"`
}

func (s *Server) handleInsuranceEvent(w http.ResponseWriter, r *http.Request) {
	if s.poolsUnavailable(w) {
		return
	}
	var req insuranceEventRequest
	if !decodeBody(w, r, &req) {
		return
	}
	// Binding goes out to the insurer and projects the cover onto the
	// invoice before the event is recorded.
	if req.Event == "bind" {
		bind, err := s.adapter.BindInsurance(r.Context(), riskadapter.InsurancePolicy{
			InvoiceID:   req.InvoiceID,
			CoveragePct: req.CoveragePct,
		})
		if err != nil {
			writeError(w, r, err)
			return
		}
		req.PolicyID = bind.PolicyID
		if err := s.store.SetInvoiceInsurance(r.Context(), req.InvoiceID, req.CoveragePct, bind.PolicyID); err != nil {
			writeError(w, r, err)
			return
		}
	}
	out, err := s.ledger.RecordInsuranceEvent(r.Context(), req.InsuranceEventRequest)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}
