package marketserver

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/mintbay/gomart/internal/market"
)

func (s *Server) handleRegistriesCreate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	reg, err := s.ledger.CreateRegistry(ctx, req.Name)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, reg)
}

func (s *Server) handleRegistriesList(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	regs, err := s.ledger.Registries(ctx)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	if regs == nil {
		regs = []market.Registry{}
	}
	writeJSON(w, http.StatusOK, regs)
}

func (s *Server) handleTokenMint(w http.ResponseWriter, r *http.Request) {
	registry := strings.TrimSpace(urlParam(r, "registry"))
	var req struct {
		Caller string `json:"caller"`
		URI    string `json:"uri"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if strings.TrimSpace(req.Caller) == "" || strings.TrimSpace(req.URI) == "" {
		writeError(w, http.StatusBadRequest, "caller and uri are required")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	tok, err := s.ledger.MintToken(ctx, registry, req.Caller, req.URI)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, tok)
}

func (s *Server) handleTokenGet(w http.ResponseWriter, r *http.Request) {
	registry := strings.TrimSpace(urlParam(r, "registry"))
	tokenID, err := strconv.ParseInt(urlParam(r, "tokenID"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid token id")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	tok, err := s.ledger.GetToken(ctx, registry, tokenID)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tok)
}

func (s *Server) handleTokenTransfer(w http.ResponseWriter, r *http.Request) {
	registry := strings.TrimSpace(urlParam(r, "registry"))
	tokenID, err := strconv.ParseInt(urlParam(r, "tokenID"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid token id")
		return
	}
	var req struct {
		Caller string `json:"caller"`
		To     string `json:"to"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if strings.TrimSpace(req.Caller) == "" || strings.TrimSpace(req.To) == "" {
		writeError(w, http.StatusBadRequest, "caller and to are required")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	if err := s.ledger.TransferToken(ctx, registry, tokenID, req.Caller, req.To); err != nil {
		writeLedgerError(w, err)
		return
	}
	tok, err := s.ledger.GetToken(ctx, registry, tokenID)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tok)
}
