package api

import (
	"time"

	"github.com/shopspring/decimal"
)

// Wire types for the marketplace API. Kept separate from the server's
// storage types so the SDK stands on its own.

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

type ListingFee struct {
	ListingFee decimal.Decimal `json:"listing_fee"`
	Collector  string          `json:"collector,omitempty"`
}

type BalanceResponse struct {
	Address string          `json:"address"`
	Balance decimal.Decimal `json:"balance"`
}

type StoredBlob struct {
	CID string `json:"cid"`
	URI string `json:"uri"`
}

type Event struct {
	Type     string           `json:"type"`
	Registry string           `json:"registry,omitempty"`
	TokenID  *int64           `json:"token_id,omitempty"`
	ItemID   *int64           `json:"item_id,omitempty"`
	Caller   string           `json:"caller,omitempty"`
	Owner    string           `json:"owner,omitempty"`
	URI      string           `json:"uri,omitempty"`
	Amount   *decimal.Decimal `json:"amount,omitempty"`
	Fee      *decimal.Decimal `json:"fee,omitempty"`
	At       time.Time        `json:"at"`
}

// NFTMetadata is the conventional shape of listing metadata blobs. The
// server treats blobs as opaque; only clients interpret this.
type NFTMetadata struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Image       string `json:"image"`
}
