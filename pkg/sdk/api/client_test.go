package api

import (
	"context"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/mintbay/gomart/internal/market"
	"github.com/mintbay/gomart/internal/marketserver"
	"github.com/mintbay/gomart/pkg/contentstore"
)

const (
	sellerAddr    = "0x1111111111111111111111111111111111111111"
	buyerAddr     = "0x2222222222222222222222222222222222222222"
	collectorAddr = "0x3333333333333333333333333333333333333333"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	dir := t.TempDir()

	ledger, err := market.Open(market.Config{
		DBPath:             filepath.Join(dir, "market.db"),
		FeeCollector:       collectorAddr,
		ListingFee:         decimal.RequireFromString("0.025"),
		ReForwardFeeOnSale: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = ledger.Close() })

	store, err := contentstore.Open(filepath.Join(dir, "blobs"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	srv, err := marketserver.New(marketserver.Config{Ledger: ledger, Store: store})
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return NewClient(ts.URL)
}

func TestClientLifecycle(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, c.Health(ctx))

	_, err := c.Deposit(ctx, sellerAddr, decimal.RequireFromString("10"))
	require.NoError(t, err)
	_, err = c.Deposit(ctx, buyerAddr, decimal.RequireFromString("10"))
	require.NoError(t, err)

	reg, err := c.CreateRegistry(ctx, "gomart-nft")
	require.NoError(t, err)
	require.NotEmpty(t, reg.Address)

	regs, err := c.Registries(ctx)
	require.NoError(t, err)
	require.Len(t, regs, 1)

	stored, err := c.StoreAddJSON(ctx, NFTMetadata{Name: "one", Description: "first", Image: "cas://img"})
	require.NoError(t, err)
	require.NotEmpty(t, stored.CID)

	tok, err := c.Mint(ctx, reg.Address, sellerAddr, stored.URI)
	require.NoError(t, err)
	require.Equal(t, int64(1), tok.TokenID)
	require.Equal(t, sellerAddr, tok.Owner)

	fee, err := c.ListingFee(ctx)
	require.NoError(t, err)
	require.True(t, fee.ListingFee.Equal(decimal.RequireFromString("0.025")))

	item, err := c.CreateItem(ctx, reg.Address, tok.TokenID, sellerAddr,
		decimal.RequireFromString("1.0"), fee.ListingFee)
	require.NoError(t, err)
	require.Equal(t, int64(1), item.ItemID)
	require.False(t, item.Sold)

	unsold, err := c.MarketItems(ctx)
	require.NoError(t, err)
	require.Len(t, unsold, 1)

	blob, err := c.StoreGet(ctx, stored.CID)
	require.NoError(t, err)
	require.Contains(t, string(blob), `"name":"one"`)

	sold, err := c.Buy(ctx, reg.Address, item.ItemID, buyerAddr, item.Price)
	require.NoError(t, err)
	require.True(t, sold.Sold)
	require.Equal(t, buyerAddr, sold.Owner)

	mine, err := c.MyNFTs(ctx, buyerAddr)
	require.NoError(t, err)
	require.Len(t, mine, 1)

	listed, err := c.ItemsListed(ctx, sellerAddr)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	require.True(t, listed[0].Sold)

	receipts, err := c.Receipts(ctx, 0)
	require.NoError(t, err)
	require.NotEmpty(t, receipts)
}

func TestClientSurfacesAPIErrors(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	_, err := c.Buy(ctx, "0x9999999999999999999999999999999999999999", 42, buyerAddr,
		decimal.RequireFromString("1.0"))
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, 404, apiErr.Status)
	require.NotEmpty(t, apiErr.Message)
}

func TestClientWatchEvents(t *testing.T) {
	c := newTestClient(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	events, err := c.WatchEvents(ctx)
	require.NoError(t, err)

	_, err = c.Deposit(ctx, sellerAddr, decimal.RequireFromString("5"))
	require.NoError(t, err)

	select {
	case ev := <-events:
		require.Equal(t, "deposit", ev.Type)
		require.Equal(t, sellerAddr, ev.Caller)
	case <-ctx.Done():
		t.Fatal("timed out waiting for deposit event")
	}
}
