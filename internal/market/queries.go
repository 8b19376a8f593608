package market

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Read-side aggregation. Each query is a linear scan over the item
// history inside its own read transaction, returning point-in-time
// copies: sales committing after the scan starts are not observed.
// O(n) over total historical listings is an accepted trade-off at this
// scale.

// FetchMarketItems returns unsold items in ascending item id order.
func (l *Ledger) FetchMarketItems(ctx context.Context) ([]MarketItem, error) {
	return l.scanItems(ctx, `WHERE sold=0`)
}

// FetchMyNFTs returns items whose owner of record is the given address,
// i.e. the buyer's holdings after sales settle.
func (l *Ledger) FetchMyNFTs(ctx context.Context, owner string) ([]MarketItem, error) {
	owner, err := NormalizeAddress(owner)
	if err != nil {
		return nil, err
	}
	return l.scanItems(ctx, `WHERE owner=?`, owner)
}

// FetchItemsListed returns every item the given address created, sold
// or not.
func (l *Ledger) FetchItemsListed(ctx context.Context, seller string) ([]MarketItem, error) {
	seller, err := NormalizeAddress(seller)
	if err != nil {
		return nil, err
	}
	return l.scanItems(ctx, `WHERE seller=?`, seller)
}

func (l *Ledger) scanItems(ctx context.Context, where string, args ...any) ([]MarketItem, error) {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin read tx: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.Query(`
SELECT item_id, registry, token_id, seller, owner, price, sold, listed_at, sold_at
FROM items `+where+` ORDER BY item_id ASC`, args...)
	if err != nil {
		return nil, fmt.Errorf("scan items: %w", err)
	}
	defer rows.Close()

	out := []MarketItem{}
	for rows.Next() {
		var (
			it     MarketItem
			price  string
			sold   int
			listed string
			soldAt sql.NullString
		)
		if err := rows.Scan(&it.ItemID, &it.Registry, &it.TokenID, &it.Seller, &it.Owner, &price, &sold, &listed, &soldAt); err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		it.Price, err = decimal.NewFromString(price)
		if err != nil {
			return nil, fmt.Errorf("item %d price: %w", it.ItemID, err)
		}
		it.Sold = sold != 0
		it.ListedAt, _ = time.Parse(time.RFC3339Nano, listed)
		if soldAt.Valid {
			t, _ := time.Parse(time.RFC3339Nano, soldAt.String)
			it.SoldAt = &t
		}
		out = append(out, it)
	}
	return out, rows.Err()
}
