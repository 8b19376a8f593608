package market

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Token registry operations. Transfer of a listed token is driven by
// the ledger only: once a token sits with the escrow identity, its
// previous owner no longer passes the from-check.

// CreateRegistry registers a named token registry and derives its
// address. Several registries can list against the same ledger.
func (l *Ledger) CreateRegistry(ctx context.Context, name string) (*Registry, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("registry name is required")
	}
	addr := RegistryAddress(name)
	now := time.Now()
	err := l.withTx(ctx, func(tx *sql.Tx) (*Event, error) {
		_, err := tx.Exec(`
INSERT INTO registries (address, name, next_token_id, created_at) VALUES (?, ?, 1, ?)
ON CONFLICT(address) DO NOTHING
`, addr, name, now.Format(time.RFC3339Nano))
		if err != nil {
			return nil, fmt.Errorf("insert registry: %w", err)
		}
		return nil, writeReceiptTx(tx, Receipt{Op: OpCreateRegistry, Registry: addr, Caller: addr})
	})
	if err != nil {
		return nil, err
	}
	return l.GetRegistry(ctx, addr)
}

func (l *Ledger) GetRegistry(ctx context.Context, addr string) (*Registry, error) {
	row := l.db.QueryRowContext(ctx, `SELECT address, name, created_at FROM registries WHERE address=?`, addr)
	var r Registry
	var created string
	if err := row.Scan(&r.Address, &r.Name, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUnknownRegistry
		}
		return nil, fmt.Errorf("get registry: %w", err)
	}
	r.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
	return &r, nil
}

func (l *Ledger) Registries(ctx context.Context) ([]Registry, error) {
	rows, err := l.db.QueryContext(ctx, `SELECT address, name, created_at FROM registries ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list registries: %w", err)
	}
	defer rows.Close()

	var out []Registry
	for rows.Next() {
		var r Registry
		var created string
		if err := rows.Scan(&r.Address, &r.Name, &created); err != nil {
			return nil, fmt.Errorf("scan registry: %w", err)
		}
		r.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
		out = append(out, r)
	}
	return out, rows.Err()
}

// MintToken assigns the registry's next sequential token id to the
// caller with an immutable URI. The counter advances only on commit, so
// a failed mint never burns an id.
func (l *Ledger) MintToken(ctx context.Context, registry, caller, uri string) (*Token, error) {
	caller, err := NormalizeAddress(caller)
	if err != nil {
		return nil, err
	}
	uri = strings.TrimSpace(uri)
	if uri == "" {
		return nil, errors.New("token uri is required")
	}

	var tokenID int64
	now := time.Now()
	err = l.withTx(ctx, func(tx *sql.Tx) (*Event, error) {
		if err := tx.QueryRow(`SELECT next_token_id FROM registries WHERE address=?`, registry).Scan(&tokenID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, ErrUnknownRegistry
			}
			return nil, fmt.Errorf("registry counter: %w", err)
		}
		if _, err := tx.Exec(`UPDATE registries SET next_token_id=? WHERE address=?`, tokenID+1, registry); err != nil {
			return nil, fmt.Errorf("advance token counter: %w", err)
		}
		if _, err := tx.Exec(`
INSERT INTO tokens (registry, token_id, owner, uri, minted_at) VALUES (?,?,?,?,?)
`, registry, tokenID, caller, uri, now.Format(time.RFC3339Nano)); err != nil {
			return nil, fmt.Errorf("insert token: %w", err)
		}
		if err := writeReceiptTx(tx, Receipt{Op: OpMint, Registry: registry, TokenID: &tokenID, Caller: caller}); err != nil {
			return nil, err
		}
		return &Event{Type: EventTokenMinted, Registry: registry, TokenID: &tokenID, Caller: caller, URI: uri, At: now}, nil
	})
	if err != nil {
		return nil, err
	}

	return &Token{Registry: registry, TokenID: tokenID, Owner: caller, URI: uri, MintedAt: now}, nil
}

// TransferToken reassigns ownership of an un-escrowed token. Tokens in
// escrow fail the from-check because the escrow identity owns them.
func (l *Ledger) TransferToken(ctx context.Context, registry string, tokenID int64, from, to string) error {
	from, err := NormalizeAddress(from)
	if err != nil {
		return err
	}
	to, err = NormalizeAddress(to)
	if err != nil {
		return err
	}
	return l.withTx(ctx, func(tx *sql.Tx) (*Event, error) {
		if err := moveTokenTx(tx, registry, tokenID, from, to); err != nil {
			return nil, err
		}
		if err := writeReceiptTx(tx, Receipt{Op: OpTransfer, Registry: registry, TokenID: &tokenID, Caller: from}); err != nil {
			return nil, err
		}
		return &Event{Type: EventTokenTransferred, Registry: registry, TokenID: &tokenID, Caller: from, Owner: to, At: time.Now()}, nil
	})
}

// moveTokenTx is the registry transfer primitive the ledger settles
// with: it fails ErrNotOwner unless from currently holds the token.
func moveTokenTx(tx *sql.Tx, registry string, tokenID int64, from, to string) error {
	var owner string
	err := tx.QueryRow(`SELECT owner FROM tokens WHERE registry=? AND token_id=?`, registry, tokenID).Scan(&owner)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrUnknownToken
	}
	if err != nil {
		return fmt.Errorf("token owner: %w", err)
	}
	if owner != from {
		return ErrNotOwner
	}
	if _, err := tx.Exec(`UPDATE tokens SET owner=? WHERE registry=? AND token_id=?`, to, registry, tokenID); err != nil {
		return fmt.Errorf("move token: %w", err)
	}
	return nil
}

// GetToken looks up a token; TokenURI is the pure uriOf lookup.
func (l *Ledger) GetToken(ctx context.Context, registry string, tokenID int64) (*Token, error) {
	row := l.db.QueryRowContext(ctx, `
SELECT registry, token_id, owner, uri, minted_at FROM tokens WHERE registry=? AND token_id=?
`, registry, tokenID)
	var t Token
	var minted string
	if err := row.Scan(&t.Registry, &t.TokenID, &t.Owner, &t.URI, &minted); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUnknownToken
		}
		return nil, fmt.Errorf("get token: %w", err)
	}
	t.MintedAt, _ = time.Parse(time.RFC3339Nano, minted)
	return &t, nil
}

func (l *Ledger) TokenURI(ctx context.Context, registry string, tokenID int64) (string, error) {
	t, err := l.GetToken(ctx, registry, tokenID)
	if err != nil {
		return "", err
	}
	return t.URI, nil
}
