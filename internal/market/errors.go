package market

import "errors"

// Validation failures abort the whole operation before any state is
// touched; there is no partial-failure mode.
var (
	ErrInvalidAddress    = errors.New("invalid address")
	ErrInvalidPrice      = errors.New("price must be greater than zero")
	ErrIncorrectFee      = errors.New("fee payment does not match listing fee")
	ErrIncorrectPayment  = errors.New("payment does not match item price")
	ErrNotOwner          = errors.New("caller does not own token")
	ErrAlreadySold       = errors.New("item already sold")
	ErrUnknownItem       = errors.New("unknown item")
	ErrUnknownToken      = errors.New("unknown token")
	ErrUnknownRegistry   = errors.New("unknown registry")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrNotFeeCollector   = errors.New("caller is not the fee collector")
)
