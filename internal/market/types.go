package market

import (
	"time"

	"github.com/shopspring/decimal"
)

type Registry struct {
	Address   string    `json:"address"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

type Token struct {
	Registry string    `json:"registry"`
	TokenID  int64     `json:"token_id"`
	Owner    string    `json:"owner"`
	URI      string    `json:"uri"`
	MintedAt time.Time `json:"minted_at"`
}

// MarketItem is one listing. A token listed, sold and re-listed gets a
// fresh ItemID each time; sold items stay forever as history.
type MarketItem struct {
	ItemID   int64           `json:"item_id"`
	Registry string          `json:"registry"`
	TokenID  int64           `json:"token_id"`
	Seller   string          `json:"seller"`
	Owner    string          `json:"owner"`
	Price    decimal.Decimal `json:"price"`
	Sold     bool            `json:"sold"`
	ListedAt time.Time       `json:"listed_at"`
	SoldAt   *time.Time      `json:"sold_at,omitempty"`
}

// Receipt is the committed record of one mutating operation, the
// ledger's analogue of a transaction in the chain history.
type Receipt struct {
	ID        string           `json:"id"`
	Op        string           `json:"op"`
	Registry  string           `json:"registry,omitempty"`
	TokenID   *int64           `json:"token_id,omitempty"`
	ItemID    *int64           `json:"item_id,omitempty"`
	Caller    string           `json:"caller"`
	Amount    *decimal.Decimal `json:"amount,omitempty"`
	Fee       *decimal.Decimal `json:"fee,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
}

const (
	OpCreateRegistry   = "create_registry"
	OpMint             = "mint"
	OpTransfer         = "transfer"
	OpCreateMarketItem = "create_market_item"
	OpCreateMarketSale = "create_market_sale"
	OpSetListingFee    = "set_listing_fee"
	OpDeposit          = "deposit"
)
