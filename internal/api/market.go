package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/tomoyukiirino/spy-credit-spread/internal/market"
)

// statusResponse is the JSON response for GET /v1/status.
type statusResponse struct {
	State  string `json:"state"`
	Reason string `json:"reason,omitempty"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st, reason := s.bridge.State()
	s.writeJSON(w, http.StatusOK, statusResponse{
		State:  st.String(),
		Reason: reason,
	})
}

func (s *Server) handleQuote(w http.ResponseWriter, r *http.Request) {
	symbol := r.URL.Query().Get("symbol")
	if symbol == "" {
		symbol = "SPY"
	}

	ctx, cancel := s.callContext(r)
	defer cancel()

	q, err := s.svc.Quote(ctx, symbol)
	if err != nil {
		s.writeBridgeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, q)
}

func (s *Server) handleFxRate(w http.ResponseWriter, r *http.Request) {
	pair := r.URL.Query().Get("pair")
	if pair == "" {
		pair = "USDJPY"
	}

	ctx, cancel := s.callContext(r)
	defer cancel()

	fx, err := s.svc.FxRate(ctx, pair)
	if err != nil {
		s.writeBridgeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, fx)
}

func (s *Server) handleAccount(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.callContext(r)
	defer cancel()

	acct, err := s.svc.AccountSummary(ctx)
	if err != nil {
		s.writeBridgeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, acct)
}

// scanResponse is the JSON response for GET /v1/spreads/scan.
type scanResponse struct {
	Params     market.ScanParams        `json:"params"`
	Candidates []market.SpreadCandidate `json:"candidates"`
}

func (s *Server) handleScanSpreads(w http.ResponseWriter, r *http.Request) {
	p := market.DefaultScanParams()
	if v := r.URL.Query().Get("min_dte"); v != "" {
		p.MinDTE = parseIntQuery(v, p.MinDTE)
	}
	if v := r.URL.Query().Get("max_dte"); v != "" {
		p.MaxDTE = parseIntQuery(v, p.MaxDTE)
	}
	if p.MinDTE < 0 || p.MaxDTE < p.MinDTE {
		s.writeError(w, http.StatusBadRequest, "invalid dte range")
		return
	}

	ctx, cancel := s.callContext(r)
	defer cancel()

	candidates, err := s.svc.ScanSpreads(ctx, p)
	if err != nil {
		s.writeBridgeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, scanResponse{Params: p, Candidates: candidates})
}

// callContext bounds a handler's venue call. Waiting on the bridge only
// suspends this request; every other handler keeps its own await.
func (s *Server) callContext(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), venueCallTimeout)
}

// parseIntQuery parses an integer query value with a fallback.
func parseIntQuery(s string, defaultVal int) int {
	v, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return v
}
