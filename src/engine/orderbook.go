package engine

import (
	"time"
)

// MaxOrders bounds each side of the book.
const MaxOrders = 100

// OrderBook is the aggregate for one traded pair. It owns all orders and
// balance entries for the pair; callers outside the engine only ever see
// copies. The aggregate itself performs no locking — the registry serializes
// operations per book and commits mutations through clones, so a failed
// operation never leaves a partial state behind.
type OrderBook struct {
	BaseAsset     string
	QuoteAsset    string
	BaseDecimals  uint8
	QuoteDecimals uint8

	Buys  []Order
	Sells []Order

	Balances Ledger

	OrderCounter uint64
	Authority    Principal
	IsRelocated  bool

	// ReinsertByTime controls where a partially filled taker re-enters its
	// side: false appends (the historical behavior), true restores admission
	// order so strict price-time priority survives a partial fill.
	ReinsertByTime bool
}

func NewOrderBook(baseAsset, quoteAsset string, baseDecimals, quoteDecimals uint8, authority Principal) *OrderBook {
	return &OrderBook{
		BaseAsset:     baseAsset,
		QuoteAsset:    quoteAsset,
		BaseDecimals:  baseDecimals,
		QuoteDecimals: quoteDecimals,
		Buys:          make([]Order, 0, MaxOrders),
		Sells:         make([]Order, 0, MaxOrders),
		Authority:     authority,
	}
}

func (ob *OrderBook) nextOrderID() uint64 {
	id := ob.OrderCounter
	ob.OrderCounter++
	return id
}

// CreateOrder validates the request, reserves the required balance and
// appends the order to its side. It never crosses the book: matching is a
// separate, explicitly invoked operation.
func (ob *OrderBook) CreateOrder(owner Principal, side Side, price, amount uint64) (Order, error) {
	if amount == 0 {
		return Order{}, ErrInvalidOrderAmount
	}
	if price == 0 {
		return Order{}, ErrInvalidOrderPrice
	}
	if side != SideBuy && side != SideSell {
		return Order{}, ErrInvalidOrderSide
	}

	switch side {
	case SideBuy:
		if len(ob.Buys) >= MaxOrders {
			return Order{}, ErrOrderbookFull
		}
		quoteReserved, err := checkedMul(price, amount)
		if err != nil {
			return Order{}, err
		}
		if err := ob.Balances.Debit(owner, 0, quoteReserved); err != nil {
			return Order{}, err
		}
	case SideSell:
		if len(ob.Sells) >= MaxOrders {
			return Order{}, ErrOrderbookFull
		}
		if err := ob.Balances.Debit(owner, amount, 0); err != nil {
			return Order{}, err
		}
	}

	order := Order{
		ID:              ob.nextOrderID(),
		Owner:           owner,
		Side:            side,
		Price:           price,
		OriginalAmount:  amount,
		RemainingAmount: amount,
		CreatedAt:       time.Now().UnixMilli(),
	}

	if side == SideBuy {
		ob.Buys = append(ob.Buys, order)
	} else {
		ob.Sells = append(ob.Sells, order)
	}
	return order, nil
}

// SetRelocated flips the relocation marker. The engine records the flag but
// never interprets it; only the book authority may change it.
func (ob *OrderBook) SetRelocated(caller Principal, relocated bool) error {
	if caller != ob.Authority {
		return ErrUnauthorized
	}
	ob.IsRelocated = relocated
	return nil
}

// FindOrder returns a copy of the open order with the given id.
func (ob *OrderBook) FindOrder(orderID uint64) (Order, bool) {
	for i := range ob.Buys {
		if ob.Buys[i].ID == orderID {
			return ob.Buys[i], true
		}
	}
	for i := range ob.Sells {
		if ob.Sells[i].ID == orderID {
			return ob.Sells[i], true
		}
	}
	return Order{}, false
}

// Clone deep-copies the aggregate. Mutating operations run against a clone
// and the registry swaps it in only when every fallible step has succeeded.
func (ob *OrderBook) Clone() *OrderBook {
	next := *ob
	next.Buys = make([]Order, len(ob.Buys), MaxOrders)
	copy(next.Buys, ob.Buys)
	next.Sells = make([]Order, len(ob.Sells), MaxOrders)
	copy(next.Sells, ob.Sells)
	next.Balances = ob.Balances.clone()
	return &next
}
