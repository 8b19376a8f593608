package market

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"
)

type Config struct {
	DBPath string

	// FeeCollector receives listing fees. Fixed at ledger creation;
	// a later Open against the same DB keeps the stored collector.
	FeeCollector string

	// ListingFee is the initial fee. Ignored when the DB already has
	// fee state (use SetListingFee to change it).
	ListingFee decimal.Decimal

	// ReForwardFeeOnSale controls fee custody timing: true holds the
	// fee in the ledger's fee vault at listing and forwards it to the
	// collector when the sale settles; false forwards it to the
	// collector immediately at listing. The fee is charged once in
	// both modes.
	ReForwardFeeOnSale bool
}

// Ledger is the marketplace state machine: token registries, market
// items, the balance book and the listing-fee policy, all backed by a
// single SQLite database. Every mutating operation runs as one
// serialized transaction; it commits in full or leaves no trace.
type Ledger struct {
	cfg Config
	db  *sql.DB

	mu     sync.Mutex // serializes mutating operations
	events *Broadcaster
}

func Open(cfg Config) (*Ledger, error) {
	if cfg.DBPath == "" {
		return nil, errors.New("db path is required")
	}
	if cfg.FeeCollector == "" {
		return nil, errors.New("fee collector is required")
	}
	collector, err := NormalizeAddress(cfg.FeeCollector)
	if err != nil {
		return nil, fmt.Errorf("fee collector: %w", err)
	}
	cfg.FeeCollector = collector
	if cfg.ListingFee.IsNegative() {
		return nil, errors.New("listing fee must not be negative")
	}

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		return nil, fmt.Errorf("mkdir db dir: %w", err)
	}

	db, err := sql.Open("sqlite", cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	l := &Ledger{cfg: cfg, db: db, events: NewBroadcaster()}
	if err := l.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := l.seedFeeState(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return l, nil
}

func (l *Ledger) Close() error {
	l.events.Close()
	if l.db != nil {
		return l.db.Close()
	}
	return nil
}

// Events exposes the post-commit event stream.
func (l *Ledger) Events() *Broadcaster { return l.events }

// FeeCollector returns the collector identity fixed at ledger creation.
func (l *Ledger) FeeCollector(ctx context.Context) (string, error) {
	var collector string
	err := l.db.QueryRowContext(ctx, `SELECT collector FROM fee_state WHERE id=1`).Scan(&collector)
	if err != nil {
		return "", fmt.Errorf("fee state: %w", err)
	}
	return collector, nil
}

// withTx runs fn inside a single write transaction. The ledger mutex
// plus the single SQLite connection give the total order every
// mutating operation must observe. An event returned by fn is
// published after commit while the mutex is still held, so the stream
// sees events in commit order.
func (l *Ledger) withTx(ctx context.Context, fn func(tx *sql.Tx) (*Event, error)) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	ev, err := fn(tx)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	if ev != nil {
		l.events.Publish(*ev)
	}
	return nil
}

func (l *Ledger) seedFeeState() error {
	ctx := context.Background()
	fee := l.cfg.ListingFee
	if fee.IsZero() {
		fee = decimal.Zero
	}
	_, err := l.db.ExecContext(ctx, `
INSERT INTO fee_state (id, collector, listing_fee) VALUES (1, ?, ?)
ON CONFLICT(id) DO NOTHING
`, l.cfg.FeeCollector, fee.String())
	if err != nil {
		return fmt.Errorf("seed fee state: %w", err)
	}
	return nil
}
