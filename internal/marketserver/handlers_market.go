package marketserver

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type createItemRequest struct {
	Caller     string          `json:"caller"`
	Registry   string          `json:"registry"`
	TokenID    int64           `json:"token_id"`
	Price      decimal.Decimal `json:"price"`
	FeePayment decimal.Decimal `json:"fee_payment"`
}

func (s *Server) handleItemCreate(w http.ResponseWriter, r *http.Request) {
	var req createItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if strings.TrimSpace(req.Caller) == "" || strings.TrimSpace(req.Registry) == "" {
		writeError(w, http.StatusBadRequest, "caller and registry are required")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	item, err := s.ledger.CreateMarketItem(ctx, req.Registry, req.TokenID, req.Caller, req.Price, req.FeePayment)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

type buyItemRequest struct {
	Caller   string          `json:"caller"`
	Registry string          `json:"registry"`
	Payment  decimal.Decimal `json:"payment"`
}

func (s *Server) handleItemBuy(w http.ResponseWriter, r *http.Request) {
	itemID, err := strconv.ParseInt(urlParam(r, "itemID"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid item id")
		return
	}
	var req buyItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if strings.TrimSpace(req.Caller) == "" || strings.TrimSpace(req.Registry) == "" {
		writeError(w, http.StatusBadRequest, "caller and registry are required")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	item, err := s.ledger.CreateMarketSale(ctx, req.Registry, itemID, req.Caller, req.Payment)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

// handleItemsList serves the three market views: no filter is the
// unsold listing, ?owner= the buyer's holdings, ?seller= a seller's
// history.
func (s *Server) handleItemsList(w http.ResponseWriter, r *http.Request) {
	owner := strings.TrimSpace(r.URL.Query().Get("owner"))
	sellerQ := strings.TrimSpace(r.URL.Query().Get("seller"))
	if owner != "" && sellerQ != "" {
		writeError(w, http.StatusBadRequest, "owner and seller filters are exclusive")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	var (
		items any
		err   error
	)
	switch {
	case owner != "":
		items, err = s.ledger.FetchMyNFTs(ctx, owner)
	case sellerQ != "":
		items, err = s.ledger.FetchItemsListed(ctx, sellerQ)
	default:
		items, err = s.ledger.FetchMarketItems(ctx)
	}
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *Server) handleListingFeeGet(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	fee, err := s.ledger.ListingFee(ctx)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	collector, err := s.ledger.FeeCollector(ctx)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"listing_fee": fee, "collector": collector})
}

func (s *Server) handleListingFeeSet(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Caller string          `json:"caller"`
		Fee    decimal.Decimal `json:"fee"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if strings.TrimSpace(req.Caller) == "" {
		writeError(w, http.StatusBadRequest, "caller is required")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	if err := s.ledger.SetListingFee(ctx, req.Caller, req.Fee); err != nil {
		writeLedgerError(w, err)
		return
	}
	fee, err := s.ledger.ListingFee(ctx)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"listing_fee": fee})
}
