package market

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func writeReceiptTx(tx *sql.Tx, r Receipt) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	var amount, fee *string
	if r.Amount != nil {
		s := r.Amount.String()
		amount = &s
	}
	if r.Fee != nil {
		s := r.Fee.String()
		fee = &s
	}
	_, err := tx.Exec(`
INSERT INTO receipts (id,op,registry,token_id,item_id,caller,amount,fee,created_at)
VALUES (?,?,?,?,?,?,?,?,?)
`, r.ID, r.Op, nullStr(r.Registry), r.TokenID, r.ItemID, r.Caller, amount, fee, r.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("write receipt: %w", err)
	}
	return nil
}

func nullStr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Receipts lists committed operations, newest first.
func (l *Ledger) Receipts(ctx context.Context, limit int) ([]Receipt, error) {
	if limit <= 0 || limit > 1000 {
		limit = 200
	}
	rows, err := l.db.QueryContext(ctx, `
SELECT id,op,registry,token_id,item_id,caller,amount,fee,created_at
FROM receipts ORDER BY created_at DESC, id LIMIT ?
`, limit)
	if err != nil {
		return nil, fmt.Errorf("list receipts: %w", err)
	}
	defer rows.Close()

	var out []Receipt
	for rows.Next() {
		r, err := scanReceipt(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func scanReceipt(rows *sql.Rows) (Receipt, error) {
	var (
		r        Receipt
		registry sql.NullString
		amount   sql.NullString
		fee      sql.NullString
		created  string
	)
	if err := rows.Scan(&r.ID, &r.Op, &registry, &r.TokenID, &r.ItemID, &r.Caller, &amount, &fee, &created); err != nil {
		return Receipt{}, fmt.Errorf("scan receipt: %w", err)
	}
	if registry.Valid {
		r.Registry = registry.String
	}
	if amount.Valid {
		if d, err := decimal.NewFromString(amount.String); err == nil {
			r.Amount = &d
		}
	}
	if fee.Valid {
		if d, err := decimal.NewFromString(fee.String); err == nil {
			r.Fee = &d
		}
	}
	r.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
	return r, nil
}
