package engine

import (
	"sync"

	"clob-venue/src/custody"
)

// PairKey addresses one orderbook aggregate by its asset pair.
func PairKey(baseAsset, quoteAsset string) string {
	return baseAsset + "-" + quoteAsset
}

// book pairs an aggregate with the mutex that serializes operations on it.
// The aggregate itself is lock-free; this is the execution environment that
// guarantees single-writer access per pair.
type book struct {
	mu sync.Mutex
	ob *OrderBook
}

// Matcher is the venue: a registry of independent orderbook aggregates plus
// the custody coupling for deposits and withdrawals. Every mutating operation
// runs against a clone of the aggregate and commits the clone only when the
// whole operation has succeeded.
type Matcher struct {
	mu        sync.RWMutex
	books     map[string]*book
	custodian custody.Custodian
}

func NewMatcher(custodian custody.Custodian) *Matcher {
	return &Matcher{
		books:     make(map[string]*book),
		custodian: custodian,
	}
}

// InitOrderBook creates the aggregate for a pair, or returns the existing one
// unchanged. Re-initialization never resets state.
func (m *Matcher) InitOrderBook(baseAsset, quoteAsset string, baseDecimals, quoteDecimals uint8, authority Principal, reinsertByTime bool) *OrderBook {
	key := PairKey(baseAsset, quoteAsset)

	m.mu.RLock()
	if b, exists := m.books[key]; exists {
		m.mu.RUnlock()
		return b.snapshot()
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()

	// edge case: double-check after acquiring write lock
	if b, exists := m.books[key]; exists {
		return b.snapshot()
	}

	ob := NewOrderBook(baseAsset, quoteAsset, baseDecimals, quoteDecimals, authority)
	ob.ReinsertByTime = reinsertByTime
	m.books[key] = &book{ob: ob}
	return ob.Clone()
}

func (m *Matcher) get(pair string) (*book, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, exists := m.books[pair]
	if !exists {
		return nil, ErrOrderbookNotFound
	}
	return b, nil
}

func (b *book) snapshot() *OrderBook {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ob.Clone()
}

// CreateOrder admits a new order, reserving the required balance.
func (m *Matcher) CreateOrder(pair string, owner Principal, side Side, price, amount uint64) (Order, error) {
	b, err := m.get(pair)
	if err != nil {
		return Order{}, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	next := b.ob.Clone()
	order, err := next.CreateOrder(owner, side, price, amount)
	if err != nil {
		return Order{}, err
	}
	b.ob = next
	return order, nil
}

// MatchOrder crosses an existing order against the opposite side.
func (m *Matcher) MatchOrder(pair string, caller Principal, orderID uint64) (*MatchResult, error) {
	b, err := m.get(pair)
	if err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	next := b.ob.Clone()
	result, err := next.MatchOrder(caller, orderID)
	if err != nil {
		return nil, err
	}
	b.ob = next
	return result, nil
}

// Deposit moves value in through custody and credits the ledger. The custody
// legs and the ledger credit commit together or not at all.
func (m *Matcher) Deposit(pair string, owner Principal, baseAmount, quoteAmount uint64) error {
	b, err := m.get(pair)
	if err != nil {
		return err
	}
	if baseAmount == 0 && quoteAmount == 0 {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	next := b.ob.Clone()
	tx := m.custodian.Begin()

	if quoteAmount > 0 {
		if err := tx.TransferIn(string(owner), next.QuoteAsset, quoteAmount); err != nil {
			tx.Rollback()
			return err
		}
		if err := next.Balances.Credit(owner, 0, quoteAmount); err != nil {
			tx.Rollback()
			return err
		}
	}
	if baseAmount > 0 {
		if err := tx.TransferIn(string(owner), next.BaseAsset, baseAmount); err != nil {
			tx.Rollback()
			return err
		}
		if err := next.Balances.Credit(owner, baseAmount, 0); err != nil {
			tx.Rollback()
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	b.ob = next
	return nil
}

// Withdraw debits the ledger and moves value out through custody as one unit
// of work: a failed custody leg leaves the ledger untouched.
func (m *Matcher) Withdraw(pair string, owner Principal, baseAmount, quoteAmount uint64) error {
	b, err := m.get(pair)
	if err != nil {
		return err
	}
	if baseAmount == 0 && quoteAmount == 0 {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	base, quote := b.ob.Balances.Query(owner)
	if base < baseAmount || quote < quoteAmount {
		return ErrInsufficientBalance
	}

	next := b.ob.Clone()
	if err := next.Balances.Debit(owner, baseAmount, quoteAmount); err != nil {
		return err
	}

	tx := m.custodian.Begin()
	if baseAmount > 0 {
		if err := tx.TransferOut(string(owner), next.BaseAsset, baseAmount); err != nil {
			tx.Rollback()
			return err
		}
	}
	if quoteAmount > 0 {
		if err := tx.TransferOut(string(owner), next.QuoteAsset, quoteAmount); err != nil {
			tx.Rollback()
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	b.ob = next
	return nil
}

// SetRelocated flips the relocation marker and returns a snapshot of the
// aggregate for checkpointing.
func (m *Matcher) SetRelocated(pair string, caller Principal, relocated bool) (*OrderBook, error) {
	b, err := m.get(pair)
	if err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	next := b.ob.Clone()
	if err := next.SetRelocated(caller, relocated); err != nil {
		return nil, err
	}
	b.ob = next
	return next.Clone(), nil
}

// Balance reports the owner's settled ledger balances for a pair.
func (m *Matcher) Balance(pair string, owner Principal) (base, quote uint64, err error) {
	b, err := m.get(pair)
	if err != nil {
		return 0, 0, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	base, quote = b.ob.Balances.Query(owner)
	return base, quote, nil
}

// GetOrder returns a copy of an open order.
func (m *Matcher) GetOrder(pair string, orderID uint64) (Order, error) {
	b, err := m.get(pair)
	if err != nil {
		return Order{}, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	order, found := b.ob.FindOrder(orderID)
	if !found {
		return Order{}, ErrOrderNotFound
	}
	return order, nil
}

// Depth returns the aggregated price levels for a pair.
func (m *Matcher) Depth(pair string, levels int) (bids, asks []PriceLevel, err error) {
	b, err := m.get(pair)
	if err != nil {
		return nil, nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	bids, asks = b.ob.Depth(levels)
	return bids, asks, nil
}

// OpenOrders counts resting orders across all pairs.
func (m *Matcher) OpenOrders() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var total int64
	for _, b := range m.books {
		b.mu.Lock()
		total += int64(len(b.ob.Buys) + len(b.ob.Sells))
		b.mu.Unlock()
	}
	return total
}

// Snapshot deep-copies every aggregate, keyed by pair.
func (m *Matcher) Snapshot() map[string]*OrderBook {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]*OrderBook, len(m.books))
	for key, b := range m.books {
		out[key] = b.snapshot()
	}
	return out
}

// Restore replaces the registry contents with previously snapshotted
// aggregates. Intended for boot-time recovery before the venue serves
// requests.
func (m *Matcher) Restore(books map[string]*OrderBook) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, ob := range books {
		m.books[key] = &book{ob: ob.Clone()}
	}
}
