package marketserver

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mintbay/gomart/internal/market"
	"github.com/mintbay/gomart/pkg/logger"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Errorf("write json response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"error": msg})
}

// writeLedgerError maps the ledger's failure taxonomy onto HTTP status
// codes. Every one of these is a pre-commit abort: nothing moved.
func writeLedgerError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, market.ErrUnknownItem),
		errors.Is(err, market.ErrUnknownToken),
		errors.Is(err, market.ErrUnknownRegistry):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, market.ErrNotOwner),
		errors.Is(err, market.ErrNotFeeCollector):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, market.ErrAlreadySold),
		errors.Is(err, market.ErrIncorrectFee),
		errors.Is(err, market.ErrIncorrectPayment),
		errors.Is(err, market.ErrInsufficientFunds):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, market.ErrInvalidPrice),
		errors.Is(err, market.ErrInvalidAddress):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		logger.Errorf("ledger error: %v", err)
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
