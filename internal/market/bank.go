package market

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// The balance book stands in for the execution environment's native
// value transfer. Attached payments are debited from the caller inside
// the operation's transaction, so a rolled-back operation never moves
// funds.

func balanceTx(tx *sql.Tx, addr string) (decimal.Decimal, error) {
	var amount string
	err := tx.QueryRow(`SELECT amount FROM balances WHERE address=?`, addr).Scan(&amount)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("balance %s: %w", addr, err)
	}
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return decimal.Zero, fmt.Errorf("balance %s: %w", addr, err)
	}
	return d, nil
}

func creditTx(tx *sql.Tx, addr string, amount decimal.Decimal) error {
	if amount.IsZero() {
		return nil
	}
	cur, err := balanceTx(tx, addr)
	if err != nil {
		return err
	}
	_, err = tx.Exec(`
INSERT INTO balances (address, amount) VALUES (?, ?)
ON CONFLICT(address) DO UPDATE SET amount=excluded.amount
`, addr, cur.Add(amount).String())
	if err != nil {
		return fmt.Errorf("credit %s: %w", addr, err)
	}
	return nil
}

func debitTx(tx *sql.Tx, addr string, amount decimal.Decimal) error {
	if amount.IsZero() {
		return nil
	}
	cur, err := balanceTx(tx, addr)
	if err != nil {
		return err
	}
	if cur.LessThan(amount) {
		return ErrInsufficientFunds
	}
	_, err = tx.Exec(`UPDATE balances SET amount=? WHERE address=?`, cur.Sub(amount).String(), addr)
	if err != nil {
		return fmt.Errorf("debit %s: %w", addr, err)
	}
	return nil
}

// transferTx moves amount from one identity to another, both legs in
// the same transaction.
func transferTx(tx *sql.Tx, from, to string, amount decimal.Decimal) error {
	if err := debitTx(tx, from, amount); err != nil {
		return err
	}
	return creditTx(tx, to, amount)
}

// Deposit is the dev faucet: it mints native funds into an address.
func (l *Ledger) Deposit(ctx context.Context, addr string, amount decimal.Decimal) error {
	addr, err := NormalizeAddress(addr)
	if err != nil {
		return err
	}
	if !amount.IsPositive() {
		return fmt.Errorf("deposit amount must be positive")
	}
	return l.withTx(ctx, func(tx *sql.Tx) (*Event, error) {
		if err := creditTx(tx, addr, amount); err != nil {
			return nil, err
		}
		if err := writeReceiptTx(tx, Receipt{
			Op:     OpDeposit,
			Caller: addr,
			Amount: &amount,
		}); err != nil {
			return nil, err
		}
		return &Event{Type: EventDeposit, Caller: addr, Amount: &amount, At: time.Now()}, nil
	})
}

// Balance reads an address's current funds; unknown addresses are zero.
func (l *Ledger) Balance(ctx context.Context, addr string) (decimal.Decimal, error) {
	addr, err := NormalizeAddress(addr)
	if err != nil {
		return decimal.Zero, err
	}
	var amount string
	err = l.db.QueryRowContext(ctx, `SELECT amount FROM balances WHERE address=?`, addr).Scan(&amount)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("balance: %w", err)
	}
	return decimal.NewFromString(amount)
}
