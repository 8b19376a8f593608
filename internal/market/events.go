package market

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

type EventType string

const (
	EventTokenMinted      EventType = "token_minted"
	EventTokenTransferred EventType = "token_transferred"
	EventItemListed       EventType = "item_listed"
	EventItemSold         EventType = "item_sold"
	EventFeeUpdated       EventType = "fee_updated"
	EventDeposit          EventType = "deposit"
)

// Event is published after an operation commits, in commit order;
// subscribers never see rolled-back work.
type Event struct {
	Type     EventType        `json:"type"`
	Registry string           `json:"registry,omitempty"`
	TokenID  *int64           `json:"token_id,omitempty"`
	ItemID   *int64           `json:"item_id,omitempty"`
	Caller   string           `json:"caller,omitempty"`
	Owner    string           `json:"owner,omitempty"`
	URI      string           `json:"uri,omitempty"`
	Amount   *decimal.Decimal `json:"amount,omitempty"`
	Fee      *decimal.Decimal `json:"fee,omitempty"`
	At       time.Time        `json:"at"`
}

// Broadcaster fans events out to subscribers. Slow subscribers drop
// events rather than block the ledger.
type Broadcaster struct {
	mu     sync.Mutex
	subs   map[int]chan Event
	nextID int
	closed bool
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[int]chan Event)}
}

// Subscribe returns a buffered event channel and a cancel func. The
// channel is closed on cancel or broadcaster shutdown.
func (b *Broadcaster) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		ch := make(chan Event)
		close(ch)
		return ch, func() {}
	}
	id := b.nextID
	b.nextID++
	ch := make(chan Event, 64)
	b.subs[id] = ch

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if c, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(c)
		}
	}
	return ch, cancel
}

func (b *Broadcaster) Publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}
