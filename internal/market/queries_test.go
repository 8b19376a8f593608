package market

import (
	"context"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
)

func TestQueriesFilterAndOrder(t *testing.T) {
	l := newTestLedger(t, true)
	ctx := context.Background()
	reg := mustRegistry(t, l)
	fund(t, l, seller, "10")
	fund(t, l, stranger, "10")
	fund(t, l, buyer, "10")

	fee, _ := l.ListingFee(ctx)

	// seller lists items 1 and 2, stranger lists item 3.
	t1, _ := l.MintToken(ctx, reg.Address, seller, "ipfs://1")
	t2, _ := l.MintToken(ctx, reg.Address, seller, "ipfs://2")
	t3, _ := l.MintToken(ctx, reg.Address, stranger, "ipfs://3")
	i1, _ := l.CreateMarketItem(ctx, reg.Address, t1.TokenID, seller, decimal.RequireFromString("1"), fee)
	i2, _ := l.CreateMarketItem(ctx, reg.Address, t2.TokenID, seller, decimal.RequireFromString("2"), fee)
	i3, _ := l.CreateMarketItem(ctx, reg.Address, t3.TokenID, stranger, decimal.RequireFromString("3"), fee)

	// buyer takes item 2.
	if _, err := l.CreateMarketSale(ctx, reg.Address, i2.ItemID, buyer, decimal.RequireFromString("2")); err != nil {
		t.Fatalf("sale: %v", err)
	}

	unsold, err := l.FetchMarketItems(ctx)
	if err != nil {
		t.Fatalf("unsold: %v", err)
	}
	if len(unsold) != 2 || unsold[0].ItemID != i1.ItemID || unsold[1].ItemID != i3.ItemID {
		t.Fatalf("unsold view: %+v", unsold)
	}

	mine, err := l.FetchMyNFTs(ctx, buyer)
	if err != nil {
		t.Fatalf("mine: %v", err)
	}
	if len(mine) != 1 || mine[0].ItemID != i2.ItemID || !mine[0].Sold {
		t.Fatalf("buyer view: %+v", mine)
	}

	listed, err := l.FetchItemsListed(ctx, seller)
	if err != nil {
		t.Fatalf("listed: %v", err)
	}
	if len(listed) != 2 || listed[0].ItemID != i1.ItemID || listed[1].ItemID != i2.ItemID {
		t.Fatalf("seller view: %+v", listed)
	}
	if listed[0].Sold || !listed[1].Sold {
		t.Fatalf("seller view sold flags: %+v", listed)
	}
}

func TestQueriesReturnCopies(t *testing.T) {
	l := newTestLedger(t, true)
	ctx := context.Background()
	reg := mustRegistry(t, l)
	fund(t, l, seller, "10")
	fund(t, l, buyer, "10")

	item := listOne(t, l, reg.Address, "ipfs://a", "1.0")

	snapshot, err := l.FetchMarketItems(ctx)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}

	// A sale after the read does not mutate the returned snapshot.
	if _, err := l.CreateMarketSale(ctx, reg.Address, item.ItemID, buyer, decimal.RequireFromString("1.0")); err != nil {
		t.Fatalf("sale: %v", err)
	}
	if len(snapshot) != 1 || snapshot[0].Sold {
		t.Fatalf("snapshot mutated: %+v", snapshot)
	}
}

func TestEmptyViewsAreEmptySlices(t *testing.T) {
	l := newTestLedger(t, true)
	ctx := context.Background()

	items, err := l.FetchMarketItems(ctx)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if items == nil || len(items) != 0 {
		t.Fatalf("want empty slice, got %#v", items)
	}
}

func TestEventsPublishedAfterCommit(t *testing.T) {
	l := newTestLedger(t, true)
	ctx := context.Background()
	reg := mustRegistry(t, l)
	fund(t, l, seller, "10")
	fund(t, l, buyer, "10")

	events, cancel := l.Events().Subscribe()
	defer cancel()

	item := listOne(t, l, reg.Address, "ipfs://a", "1.0")
	if _, err := l.CreateMarketSale(ctx, reg.Address, item.ItemID, buyer, decimal.RequireFromString("1.0")); err != nil {
		t.Fatalf("sale: %v", err)
	}

	var types []EventType
	for len(types) < 3 {
		ev, ok := <-events
		if !ok {
			t.Fatalf("event channel closed early, got %v", types)
		}
		types = append(types, ev.Type)
	}
	want := []EventType{EventTokenMinted, EventItemListed, EventItemSold}
	for i := range want {
		if types[i] != want[i] {
			t.Fatalf("event %d got=%s want=%s (all=%v)", i, types[i], want[i], types)
		}
	}
}

// Concurrent mints commit in some serial order; the stream must deliver
// their events in that same order. Token ids are the commit sequence.
func TestEventOrderMatchesCommitOrder(t *testing.T) {
	l := newTestLedger(t, true)
	ctx := context.Background()
	reg := mustRegistry(t, l)

	events, cancel := l.Events().Subscribe()
	defer cancel()

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := l.MintToken(ctx, reg.Address, seller, "ipfs://x"); err != nil {
				t.Errorf("mint: %v", err)
			}
		}()
	}
	wg.Wait()

	var last int64
	for i := 0; i < n; i++ {
		ev, ok := <-events
		if !ok {
			t.Fatalf("event channel closed after %d events", i)
		}
		if ev.Type != EventTokenMinted || ev.TokenID == nil {
			t.Fatalf("unexpected event: %+v", ev)
		}
		if *ev.TokenID <= last {
			t.Fatalf("event %d out of commit order: token %d after %d", i, *ev.TokenID, last)
		}
		last = *ev.TokenID
	}
}
