package market

import (
	"context"
	"fmt"
	"time"
)

func (l *Ledger) migrate() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stmts := []string{
		`PRAGMA journal_mode=WAL;`,
		`PRAGMA foreign_keys=ON;`,
		`
CREATE TABLE IF NOT EXISTS registries (
  address TEXT PRIMARY KEY,
  name TEXT NOT NULL UNIQUE,
  next_token_id INTEGER NOT NULL DEFAULT 1,
  created_at TEXT NOT NULL
);`,
		`
CREATE TABLE IF NOT EXISTS tokens (
  registry TEXT NOT NULL REFERENCES registries(address),
  token_id INTEGER NOT NULL,
  owner TEXT NOT NULL,
  uri TEXT NOT NULL,
  minted_at TEXT NOT NULL,
  PRIMARY KEY (registry, token_id)
);`,
		`
CREATE TABLE IF NOT EXISTS counters (
  name TEXT PRIMARY KEY,
  value INTEGER NOT NULL
);`,
		`INSERT INTO counters (name, value) VALUES ('next_item_id', 1) ON CONFLICT(name) DO NOTHING;`,
		`
CREATE TABLE IF NOT EXISTS items (
  item_id INTEGER PRIMARY KEY,
  registry TEXT NOT NULL REFERENCES registries(address),
  token_id INTEGER NOT NULL,
  seller TEXT NOT NULL,
  owner TEXT NOT NULL,
  price TEXT NOT NULL,
  sold INTEGER NOT NULL DEFAULT 0,
  fee_held TEXT NOT NULL,
  listed_at TEXT NOT NULL,
  sold_at TEXT
);`,
		`CREATE INDEX IF NOT EXISTS idx_items_sold ON items(sold, item_id);`,
		`CREATE INDEX IF NOT EXISTS idx_items_seller ON items(seller, item_id);`,
		`CREATE INDEX IF NOT EXISTS idx_items_owner ON items(owner, item_id);`,
		`
CREATE TABLE IF NOT EXISTS balances (
  address TEXT PRIMARY KEY,
  amount TEXT NOT NULL
);`,
		`
CREATE TABLE IF NOT EXISTS fee_state (
  id INTEGER PRIMARY KEY CHECK (id = 1),
  collector TEXT NOT NULL,
  listing_fee TEXT NOT NULL
);`,
		`
CREATE TABLE IF NOT EXISTS receipts (
  id TEXT PRIMARY KEY,
  op TEXT NOT NULL,
  registry TEXT,
  token_id INTEGER,
  item_id INTEGER,
  caller TEXT NOT NULL,
  amount TEXT,
  fee TEXT,
  created_at TEXT NOT NULL
);`,
		`CREATE INDEX IF NOT EXISTS idx_receipts_created ON receipts(created_at);`,
	}

	for _, stmt := range stmts {
		if _, err := l.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
