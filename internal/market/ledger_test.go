package market

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
)

var (
	seller    = "0x1111111111111111111111111111111111111111"
	buyer     = "0x2222222222222222222222222222222222222222"
	collector = "0x3333333333333333333333333333333333333333"
	stranger  = "0x4444444444444444444444444444444444444444"
)

func newTestLedger(t *testing.T, reForward bool) *Ledger {
	t.Helper()
	l, err := Open(Config{
		DBPath:             filepath.Join(t.TempDir(), "market.db"),
		FeeCollector:       collector,
		ListingFee:         decimal.RequireFromString("0.025"),
		ReForwardFeeOnSale: reForward,
	})
	if err != nil {
		t.Fatalf("open ledger: %v", err)
	}
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func fund(t *testing.T, l *Ledger, addr string, amount string) {
	t.Helper()
	if err := l.Deposit(context.Background(), addr, decimal.RequireFromString(amount)); err != nil {
		t.Fatalf("deposit %s to %s: %v", amount, addr, err)
	}
}

func mustRegistry(t *testing.T, l *Ledger) *Registry {
	t.Helper()
	reg, err := l.CreateRegistry(context.Background(), "gomart-nft")
	if err != nil {
		t.Fatalf("create registry: %v", err)
	}
	return reg
}

func listOne(t *testing.T, l *Ledger, reg string, uri, price string) *MarketItem {
	t.Helper()
	ctx := context.Background()
	tok, err := l.MintToken(ctx, reg, seller, uri)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	fee, err := l.ListingFee(ctx)
	if err != nil {
		t.Fatalf("listing fee: %v", err)
	}
	item, err := l.CreateMarketItem(ctx, reg, tok.TokenID, seller, decimal.RequireFromString(price), fee)
	if err != nil {
		t.Fatalf("create market item: %v", err)
	}
	return item
}

// Scenario A: mint, list at 1.0, unsold view holds exactly that item.
func TestListThenFetchUnsold(t *testing.T) {
	l := newTestLedger(t, true)
	ctx := context.Background()
	reg := mustRegistry(t, l)
	fund(t, l, seller, "10")

	item := listOne(t, l, reg.Address, "ipfs://a", "1.0")

	items, err := l.FetchMarketItems(ctx)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("unsold items got=%d want=1", len(items))
	}
	got := items[0]
	if got.ItemID != item.ItemID || got.TokenID != item.TokenID {
		t.Fatalf("wrong item: %+v", got)
	}
	if !got.Price.Equal(decimal.RequireFromString("1.0")) {
		t.Fatalf("price got=%s want=1.0", got.Price)
	}
	if got.Sold {
		t.Fatalf("item should be unsold")
	}
	if got.Owner != EscrowAddress() {
		t.Fatalf("unsold item owner got=%s want escrow", got.Owner)
	}

	// The underlying token sits with the escrow identity while listed.
	tok, err := l.GetToken(ctx, reg.Address, item.TokenID)
	if err != nil {
		t.Fatalf("get token: %v", err)
	}
	if tok.Owner != EscrowAddress() {
		t.Fatalf("token owner got=%s want escrow", tok.Owner)
	}
}

// Scenario B: exact payment settles, empties the unsold view and hands
// the token to the buyer.
func TestSaleSettlesAtomically(t *testing.T) {
	l := newTestLedger(t, true)
	ctx := context.Background()
	reg := mustRegistry(t, l)
	fund(t, l, seller, "10")
	fund(t, l, buyer, "10")

	item := listOne(t, l, reg.Address, "ipfs://a", "1.0")

	sold, err := l.CreateMarketSale(ctx, reg.Address, item.ItemID, buyer, decimal.RequireFromString("1.0"))
	if err != nil {
		t.Fatalf("sale: %v", err)
	}
	if !sold.Sold || sold.Owner != buyer {
		t.Fatalf("settled item: %+v", sold)
	}

	items, err := l.FetchMarketItems(ctx)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("unsold after sale got=%d want=0", len(items))
	}

	tok, err := l.GetToken(ctx, reg.Address, item.TokenID)
	if err != nil {
		t.Fatalf("get token: %v", err)
	}
	if tok.Owner != buyer {
		t.Fatalf("token owner got=%s want buyer", tok.Owner)
	}

	mine, err := l.FetchMyNFTs(ctx, buyer)
	if err != nil {
		t.Fatalf("fetch mine: %v", err)
	}
	if len(mine) != 1 || mine[0].ItemID != item.ItemID {
		t.Fatalf("buyer holdings: %+v", mine)
	}
}

// Scenario C: underpayment fails IncorrectPayment and moves nothing.
func TestUnderpaymentMovesNothing(t *testing.T) {
	l := newTestLedger(t, true)
	ctx := context.Background()
	reg := mustRegistry(t, l)
	fund(t, l, seller, "10")
	fund(t, l, buyer, "10")

	item := listOne(t, l, reg.Address, "ipfs://a", "1.0")
	before, _ := l.Balance(ctx, buyer)

	_, err := l.CreateMarketSale(ctx, reg.Address, item.ItemID, buyer, decimal.RequireFromString("0.9"))
	if !errors.Is(err, ErrIncorrectPayment) {
		t.Fatalf("err got=%v want ErrIncorrectPayment", err)
	}

	after, _ := l.Balance(ctx, buyer)
	if !before.Equal(after) {
		t.Fatalf("buyer balance moved: before=%s after=%s", before, after)
	}
	items, _ := l.FetchMarketItems(ctx)
	if len(items) != 1 || items[0].Sold {
		t.Fatalf("item state changed: %+v", items)
	}
}

// Scenario D: listing a token the caller does not own fails NotOwner
// and never allocates an item id.
func TestListNotOwnedAllocatesNothing(t *testing.T) {
	l := newTestLedger(t, true)
	ctx := context.Background()
	reg := mustRegistry(t, l)
	fund(t, l, seller, "10")
	fund(t, l, stranger, "10")

	tok, err := l.MintToken(ctx, reg.Address, seller, "ipfs://a")
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	fee, _ := l.ListingFee(ctx)

	_, err = l.CreateMarketItem(ctx, reg.Address, tok.TokenID, stranger, decimal.RequireFromString("1.0"), fee)
	if !errors.Is(err, ErrNotOwner) {
		t.Fatalf("err got=%v want ErrNotOwner", err)
	}

	// Next successful listing still takes item id 1.
	item, err := l.CreateMarketItem(ctx, reg.Address, tok.TokenID, seller, decimal.RequireFromString("1.0"), fee)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if item.ItemID != 1 {
		t.Fatalf("item id got=%d want=1 (failed attempt must not burn an id)", item.ItemID)
	}
}

// Scenario E: a second sale of the same item always fails AlreadySold,
// even with correct payment, and takes no funds.
func TestDoubleSaleRejected(t *testing.T) {
	l := newTestLedger(t, true)
	ctx := context.Background()
	reg := mustRegistry(t, l)
	fund(t, l, seller, "10")
	fund(t, l, buyer, "10")
	fund(t, l, stranger, "10")

	item := listOne(t, l, reg.Address, "ipfs://a", "1.0")

	if _, err := l.CreateMarketSale(ctx, reg.Address, item.ItemID, buyer, decimal.RequireFromString("1.0")); err != nil {
		t.Fatalf("first sale: %v", err)
	}

	before, _ := l.Balance(ctx, stranger)
	_, err := l.CreateMarketSale(ctx, reg.Address, item.ItemID, stranger, decimal.RequireFromString("1.0"))
	if !errors.Is(err, ErrAlreadySold) {
		t.Fatalf("err got=%v want ErrAlreadySold", err)
	}
	after, _ := l.Balance(ctx, stranger)
	if !before.Equal(after) {
		t.Fatalf("second buyer charged: before=%s after=%s", before, after)
	}

	tok, _ := l.GetToken(ctx, reg.Address, item.TokenID)
	if tok.Owner != buyer {
		t.Fatalf("token owner got=%s want first buyer", tok.Owner)
	}
}

func TestWrongFeeRejected(t *testing.T) {
	l := newTestLedger(t, true)
	ctx := context.Background()
	reg := mustRegistry(t, l)
	fund(t, l, seller, "10")

	tok, err := l.MintToken(ctx, reg.Address, seller, "ipfs://a")
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	// Exact match only: overpaying the fee is rejected too.
	for _, fee := range []string{"0", "0.02", "0.03", "1"} {
		_, err := l.CreateMarketItem(ctx, reg.Address, tok.TokenID, seller, decimal.RequireFromString("1.0"), decimal.RequireFromString(fee))
		if !errors.Is(err, ErrIncorrectFee) {
			t.Fatalf("fee=%s err got=%v want ErrIncorrectFee", fee, err)
		}
	}

	// Token never left the seller.
	got, _ := l.GetToken(ctx, reg.Address, tok.TokenID)
	if got.Owner != seller {
		t.Fatalf("token owner got=%s want seller", got.Owner)
	}
	bal, _ := l.Balance(ctx, seller)
	if !bal.Equal(decimal.RequireFromString("10")) {
		t.Fatalf("seller balance got=%s want=10", bal)
	}
}

func TestInvalidPriceRejected(t *testing.T) {
	l := newTestLedger(t, true)
	ctx := context.Background()
	reg := mustRegistry(t, l)
	fund(t, l, seller, "10")

	tok, _ := l.MintToken(ctx, reg.Address, seller, "ipfs://a")
	fee, _ := l.ListingFee(ctx)

	for _, price := range []string{"0", "-1"} {
		_, err := l.CreateMarketItem(ctx, reg.Address, tok.TokenID, seller, decimal.RequireFromString(price), fee)
		if !errors.Is(err, ErrInvalidPrice) {
			t.Fatalf("price=%s err got=%v want ErrInvalidPrice", price, err)
		}
	}
}

func TestUnknownItemAndToken(t *testing.T) {
	l := newTestLedger(t, true)
	ctx := context.Background()
	reg := mustRegistry(t, l)
	fund(t, l, buyer, "10")

	if _, err := l.CreateMarketSale(ctx, reg.Address, 42, buyer, decimal.RequireFromString("1.0")); !errors.Is(err, ErrUnknownItem) {
		t.Fatalf("err got=%v want ErrUnknownItem", err)
	}
	if _, err := l.TokenURI(ctx, reg.Address, 42); !errors.Is(err, ErrUnknownToken) {
		t.Fatalf("err got=%v want ErrUnknownToken", err)
	}
}

func TestInsufficientFundsAborts(t *testing.T) {
	l := newTestLedger(t, true)
	ctx := context.Background()
	reg := mustRegistry(t, l)
	fund(t, l, seller, "10")
	// buyer has no funds at all

	item := listOne(t, l, reg.Address, "ipfs://a", "1.0")

	_, err := l.CreateMarketSale(ctx, reg.Address, item.ItemID, buyer, decimal.RequireFromString("1.0"))
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("err got=%v want ErrInsufficientFunds", err)
	}
	// Token stays in escrow, item stays listed.
	tok, _ := l.GetToken(ctx, reg.Address, item.TokenID)
	if tok.Owner != EscrowAddress() {
		t.Fatalf("token owner got=%s want escrow", tok.Owner)
	}
	items, _ := l.FetchMarketItems(ctx)
	if len(items) != 1 {
		t.Fatalf("unsold got=%d want=1", len(items))
	}
}

// Fee custody in both policy modes. The fee is charged exactly once
// either way; the policy only decides when the collector sees it.
func TestFeeCustodyModes(t *testing.T) {
	feeStr := "0.025"
	price := "1.0"

	for _, mode := range []bool{true, false} {
		l := newTestLedger(t, mode)
		ctx := context.Background()
		reg := mustRegistry(t, l)
		fund(t, l, seller, "10")
		fund(t, l, buyer, "10")

		item := listOne(t, l, reg.Address, "ipfs://a", price)

		collected, _ := l.Balance(ctx, collector)
		vault, _ := l.Balance(ctx, FeeVaultAddress())
		if mode {
			if !collected.IsZero() || !vault.Equal(decimal.RequireFromString(feeStr)) {
				t.Fatalf("deferred mode after listing: collector=%s vault=%s", collected, vault)
			}
		} else {
			if !collected.Equal(decimal.RequireFromString(feeStr)) || !vault.IsZero() {
				t.Fatalf("immediate mode after listing: collector=%s vault=%s", collected, vault)
			}
		}

		if _, err := l.CreateMarketSale(ctx, reg.Address, item.ItemID, buyer, decimal.RequireFromString(price)); err != nil {
			t.Fatalf("sale: %v", err)
		}

		collected, _ = l.Balance(ctx, collector)
		vault, _ = l.Balance(ctx, FeeVaultAddress())
		if !collected.Equal(decimal.RequireFromString(feeStr)) {
			t.Fatalf("mode=%v collector after sale got=%s want=%s", mode, collected, feeStr)
		}
		if !vault.IsZero() {
			t.Fatalf("mode=%v vault after sale got=%s want=0", mode, vault)
		}

		// Conservation: total deposits still add up across every book.
		sellerBal, _ := l.Balance(ctx, seller)
		buyerBal, _ := l.Balance(ctx, buyer)
		total := sellerBal.Add(buyerBal).Add(collected).Add(vault)
		if !total.Equal(decimal.RequireFromString("20")) {
			t.Fatalf("mode=%v conservation broken: total=%s want=20", mode, total)
		}
		// Seller ends with deposit - fee + price.
		wantSeller := decimal.RequireFromString("10").
			Sub(decimal.RequireFromString(feeStr)).
			Add(decimal.RequireFromString(price))
		if !sellerBal.Equal(wantSeller) {
			t.Fatalf("mode=%v seller got=%s want=%s", mode, sellerBal, wantSeller)
		}
	}
}

func TestSetListingFee(t *testing.T) {
	l := newTestLedger(t, true)
	ctx := context.Background()
	reg := mustRegistry(t, l)
	fund(t, l, seller, "10")

	if err := l.SetListingFee(ctx, seller, decimal.RequireFromString("0.5")); !errors.Is(err, ErrNotFeeCollector) {
		t.Fatalf("err got=%v want ErrNotFeeCollector", err)
	}
	if err := l.SetListingFee(ctx, collector, decimal.RequireFromString("0.5")); err != nil {
		t.Fatalf("set fee: %v", err)
	}
	fee, err := l.ListingFee(ctx)
	if err != nil {
		t.Fatalf("listing fee: %v", err)
	}
	if !fee.Equal(decimal.RequireFromString("0.5")) {
		t.Fatalf("fee got=%s want=0.5", fee)
	}

	// New listings must pay the new fee; the old one is now incorrect.
	tok, _ := l.MintToken(ctx, reg.Address, seller, "ipfs://a")
	_, err = l.CreateMarketItem(ctx, reg.Address, tok.TokenID, seller, decimal.RequireFromString("1"), decimal.RequireFromString("0.025"))
	if !errors.Is(err, ErrIncorrectFee) {
		t.Fatalf("err got=%v want ErrIncorrectFee", err)
	}
}

// Relisting a bought token allocates a fresh item id and leaves the
// sold item untouched as history.
func TestRelistAllocatesFreshItem(t *testing.T) {
	l := newTestLedger(t, true)
	ctx := context.Background()
	reg := mustRegistry(t, l)
	fund(t, l, seller, "10")
	fund(t, l, buyer, "10")

	item := listOne(t, l, reg.Address, "ipfs://a", "1.0")
	if _, err := l.CreateMarketSale(ctx, reg.Address, item.ItemID, buyer, decimal.RequireFromString("1.0")); err != nil {
		t.Fatalf("sale: %v", err)
	}

	fee, _ := l.ListingFee(ctx)
	relisted, err := l.CreateMarketItem(ctx, reg.Address, item.TokenID, buyer, decimal.RequireFromString("2.0"), fee)
	if err != nil {
		t.Fatalf("relist: %v", err)
	}
	if relisted.ItemID == item.ItemID {
		t.Fatalf("relist reused item id %d", item.ItemID)
	}
	if relisted.Seller != buyer {
		t.Fatalf("relist seller got=%s want buyer", relisted.Seller)
	}

	// History keeps the first, settled listing.
	listed, err := l.FetchItemsListed(ctx, seller)
	if err != nil {
		t.Fatalf("fetch listed: %v", err)
	}
	if len(listed) != 1 || !listed[0].Sold {
		t.Fatalf("seller history: %+v", listed)
	}
}

func TestReceiptsRecordOperations(t *testing.T) {
	l := newTestLedger(t, true)
	ctx := context.Background()
	reg := mustRegistry(t, l)
	fund(t, l, seller, "10")
	fund(t, l, buyer, "10")

	item := listOne(t, l, reg.Address, "ipfs://a", "1.0")
	if _, err := l.CreateMarketSale(ctx, reg.Address, item.ItemID, buyer, decimal.RequireFromString("1.0")); err != nil {
		t.Fatalf("sale: %v", err)
	}

	receipts, err := l.Receipts(ctx, 100)
	if err != nil {
		t.Fatalf("receipts: %v", err)
	}
	ops := map[string]int{}
	for _, r := range receipts {
		ops[r.Op]++
	}
	for _, op := range []string{OpCreateRegistry, OpDeposit, OpMint, OpCreateMarketItem, OpCreateMarketSale} {
		if ops[op] == 0 {
			t.Fatalf("missing %s receipt, got %v", op, ops)
		}
	}
}
