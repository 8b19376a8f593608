package market

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Escrow state machine. One state transition per item: Listed -> Sold.
// There is no cancel; relisting a bought-back token allocates a fresh
// item id through CreateMarketItem.

// CreateMarketItem lists a token the caller owns at a fixed price. The
// fee payment must equal the listing fee exactly. Fee custody follows
// ReForwardFeeOnSale (see Config). Fee debit, token escrow and the item
// row commit as one unit.
func (l *Ledger) CreateMarketItem(ctx context.Context, registry string, tokenID int64, caller string, price, feePayment decimal.Decimal) (*MarketItem, error) {
	caller, err := NormalizeAddress(caller)
	if err != nil {
		return nil, err
	}
	if !price.IsPositive() {
		return nil, ErrInvalidPrice
	}

	var (
		itemID int64
		now    = time.Now()
		escrow = EscrowAddress()
	)
	err = l.withTx(ctx, func(tx *sql.Tx) (*Event, error) {
		listingFee, collector, err := feeStateTx(tx)
		if err != nil {
			return nil, err
		}
		if !feePayment.Equal(listingFee) {
			return nil, ErrIncorrectFee
		}

		// Token into escrow; fails ErrNotOwner / ErrUnknownToken.
		if err := moveTokenTx(tx, registry, tokenID, caller, escrow); err != nil {
			return nil, err
		}

		feeDest := collector
		if l.cfg.ReForwardFeeOnSale {
			feeDest = FeeVaultAddress()
		}
		if err := transferTx(tx, caller, feeDest, feePayment); err != nil {
			return nil, err
		}

		itemID, err = nextItemIDTx(tx)
		if err != nil {
			return nil, err
		}
		if _, err := tx.Exec(`
INSERT INTO items (item_id, registry, token_id, seller, owner, price, sold, fee_held, listed_at)
VALUES (?,?,?,?,?,?,0,?,?)
`, itemID, registry, tokenID, caller, escrow, price.String(), feePayment.String(), now.Format(time.RFC3339Nano)); err != nil {
			return nil, fmt.Errorf("insert item: %w", err)
		}
		if err := writeReceiptTx(tx, Receipt{
			Op:       OpCreateMarketItem,
			Registry: registry,
			TokenID:  &tokenID,
			ItemID:   &itemID,
			Caller:   caller,
			Amount:   &price,
			Fee:      &feePayment,
		}); err != nil {
			return nil, err
		}
		return &Event{
			Type: EventItemListed, Registry: registry, TokenID: &tokenID, ItemID: &itemID,
			Caller: caller, Amount: &price, At: now,
		}, nil
	})
	if err != nil {
		return nil, err
	}

	return &MarketItem{
		ItemID:   itemID,
		Registry: registry,
		TokenID:  tokenID,
		Seller:   caller,
		Owner:    escrow,
		Price:    price,
		Sold:     false,
		ListedAt: now,
	}, nil
}

// CreateMarketSale settles a listing: price to the seller, the held fee
// to the collector (when deferred), token out of escrow to the buyer,
// sold flipped exactly once. A second sale of the same item always
// fails ErrAlreadySold.
func (l *Ledger) CreateMarketSale(ctx context.Context, registry string, itemID int64, caller string, payment decimal.Decimal) (*MarketItem, error) {
	caller, err := NormalizeAddress(caller)
	if err != nil {
		return nil, err
	}

	var (
		item MarketItem
		now  = time.Now()
	)
	err = l.withTx(ctx, func(tx *sql.Tx) (*Event, error) {
		row := tx.QueryRow(`
SELECT item_id, registry, token_id, seller, owner, price, sold, fee_held, listed_at
FROM items WHERE item_id=? AND registry=?
`, itemID, registry)
		var (
			price, feeHeld, listed string
			sold                   int
		)
		if err := row.Scan(&item.ItemID, &item.Registry, &item.TokenID, &item.Seller, &item.Owner, &price, &sold, &feeHeld, &listed); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, ErrUnknownItem
			}
			return nil, fmt.Errorf("get item: %w", err)
		}
		if sold != 0 {
			return nil, ErrAlreadySold
		}
		item.Price, err = decimal.NewFromString(price)
		if err != nil {
			return nil, fmt.Errorf("item price: %w", err)
		}
		if !payment.Equal(item.Price) {
			return nil, ErrIncorrectPayment
		}
		item.ListedAt, _ = time.Parse(time.RFC3339Nano, listed)

		// Buyer pays the seller.
		if err := transferTx(tx, caller, item.Seller, payment); err != nil {
			return nil, err
		}

		// Deferred fee leaves the vault for the collector.
		if l.cfg.ReForwardFeeOnSale {
			fee, err := decimal.NewFromString(feeHeld)
			if err != nil {
				return nil, fmt.Errorf("item fee: %w", err)
			}
			_, collector, err := feeStateTx(tx)
			if err != nil {
				return nil, err
			}
			if err := transferTx(tx, FeeVaultAddress(), collector, fee); err != nil {
				return nil, err
			}
		}

		// Token out of escrow to the buyer.
		if err := moveTokenTx(tx, registry, item.TokenID, EscrowAddress(), caller); err != nil {
			return nil, err
		}

		if _, err := tx.Exec(`
UPDATE items SET sold=1, owner=?, sold_at=? WHERE item_id=?
`, caller, now.Format(time.RFC3339Nano), itemID); err != nil {
			return nil, fmt.Errorf("settle item: %w", err)
		}
		if err := writeReceiptTx(tx, Receipt{
			Op:       OpCreateMarketSale,
			Registry: registry,
			TokenID:  &item.TokenID,
			ItemID:   &itemID,
			Caller:   caller,
			Amount:   &payment,
		}); err != nil {
			return nil, err
		}
		return &Event{
			Type: EventItemSold, Registry: registry, TokenID: &item.TokenID, ItemID: &itemID,
			Caller: caller, Amount: &payment, At: now,
		}, nil
	})
	if err != nil {
		return nil, err
	}

	item.Owner = caller
	item.Sold = true
	item.SoldAt = &now
	return &item, nil
}

// ListingFee is the pure read of the current fee.
func (l *Ledger) ListingFee(ctx context.Context) (decimal.Decimal, error) {
	var fee string
	err := l.db.QueryRowContext(ctx, `SELECT listing_fee FROM fee_state WHERE id=1`).Scan(&fee)
	if err != nil {
		return decimal.Zero, fmt.Errorf("fee state: %w", err)
	}
	return decimal.NewFromString(fee)
}

// SetListingFee updates the fee. Only the collector fixed at ledger
// creation may call it; listings already created keep the fee they
// paid.
func (l *Ledger) SetListingFee(ctx context.Context, caller string, fee decimal.Decimal) error {
	caller, err := NormalizeAddress(caller)
	if err != nil {
		return err
	}
	if fee.IsNegative() {
		return errors.New("listing fee must not be negative")
	}
	return l.withTx(ctx, func(tx *sql.Tx) (*Event, error) {
		_, collector, err := feeStateTx(tx)
		if err != nil {
			return nil, err
		}
		if caller != collector {
			return nil, ErrNotFeeCollector
		}
		if _, err := tx.Exec(`UPDATE fee_state SET listing_fee=? WHERE id=1`, fee.String()); err != nil {
			return nil, fmt.Errorf("update fee: %w", err)
		}
		if err := writeReceiptTx(tx, Receipt{Op: OpSetListingFee, Caller: caller, Fee: &fee}); err != nil {
			return nil, err
		}
		return &Event{Type: EventFeeUpdated, Caller: caller, Fee: &fee, At: time.Now()}, nil
	})
}

func feeStateTx(tx *sql.Tx) (decimal.Decimal, string, error) {
	var fee, collector string
	if err := tx.QueryRow(`SELECT listing_fee, collector FROM fee_state WHERE id=1`).Scan(&fee, &collector); err != nil {
		return decimal.Zero, "", fmt.Errorf("fee state: %w", err)
	}
	d, err := decimal.NewFromString(fee)
	if err != nil {
		return decimal.Zero, "", fmt.Errorf("fee state: %w", err)
	}
	return d, collector, nil
}

func nextItemIDTx(tx *sql.Tx) (int64, error) {
	var id int64
	if err := tx.QueryRow(`SELECT value FROM counters WHERE name='next_item_id'`).Scan(&id); err != nil {
		return 0, fmt.Errorf("item counter: %w", err)
	}
	if _, err := tx.Exec(`UPDATE counters SET value=? WHERE name='next_item_id'`, id+1); err != nil {
		return 0, fmt.Errorf("advance item counter: %w", err)
	}
	return id, nil
}
