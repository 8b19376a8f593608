package marketserver

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mintbay/gomart/internal/market"
)

type depositRequest struct {
	Address string          `json:"address"`
	Amount  decimal.Decimal `json:"amount"`
}

// handleDeposit is the dev faucet standing in for external funding.
func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	var req depositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if strings.TrimSpace(req.Address) == "" {
		writeError(w, http.StatusBadRequest, "address is required")
		return
	}
	if !req.Amount.IsPositive() {
		writeError(w, http.StatusBadRequest, "amount must be positive")
		return
	}
	if !s.faucetLimiter.Allow(strings.ToLower(strings.TrimSpace(req.Address))) {
		writeError(w, http.StatusTooManyRequests, "faucet throttled, try again later")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	if err := s.ledger.Deposit(ctx, req.Address, req.Amount); err != nil {
		writeLedgerError(w, err)
		return
	}
	balance, err := s.ledger.Balance(ctx, req.Address)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"address": strings.ToLower(req.Address), "balance": balance})
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	address := strings.TrimSpace(urlParam(r, "address"))
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	balance, err := s.ledger.Balance(ctx, address)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"address": strings.ToLower(address), "balance": balance})
}

func (s *Server) handleReceiptsList(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := strings.TrimSpace(r.URL.Query().Get("limit")); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	receipts, err := s.ledger.Receipts(ctx, limit)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	if receipts == nil {
		receipts = []market.Receipt{}
	}
	writeJSON(w, http.StatusOK, receipts)
}
