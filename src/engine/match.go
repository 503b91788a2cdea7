package engine

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// Trade records one fill between a taker and a resting maker.
type Trade struct {
	TradeID      string
	TakerOrderID uint64
	MakerOrderID uint64
	Price        uint64 // execution price, always the maker's limit
	Amount       uint64 // base amount exchanged
	QuoteAmount  uint64
	Timestamp    int64
}

type MatchResult struct {
	OrderID         uint64
	FilledAmount    uint64
	RemainingAmount uint64
	Trades          []Trade
}

// MatchOrder crosses the caller's open order against the opposite side by
// price-time priority. The opposite side is re-sorted stably by price on each
// call, so equally priced makers are consumed in admission order. Fills
// execute at the maker's price; the admission-time reservation of both
// parties funds the settlement, with the taker refunded any quote surplus
// from price improvement.
//
// On error the receiver may be partially mutated — callers must run this
// against a clone and discard it unless the call succeeds.
func (ob *OrderBook) MatchOrder(caller Principal, orderID uint64) (*MatchResult, error) {
	takerIdx := -1
	takerSide := SideBuy
	for i := range ob.Buys {
		if ob.Buys[i].ID == orderID {
			if ob.Buys[i].Owner != caller {
				return nil, ErrNotOrderOwner
			}
			takerIdx = i
			break
		}
	}
	if takerIdx < 0 {
		for i := range ob.Sells {
			if ob.Sells[i].ID == orderID {
				if ob.Sells[i].Owner != caller {
					return nil, ErrNotOrderOwner
				}
				takerIdx = i
				takerSide = SideSell
				break
			}
		}
	}
	if takerIdx < 0 {
		return nil, ErrOrderNotFound
	}

	// The taker leaves its collection for the duration of the operation.
	var taker Order
	if takerSide == SideBuy {
		taker = ob.Buys[takerIdx]
		ob.Buys = append(ob.Buys[:takerIdx], ob.Buys[takerIdx+1:]...)
	} else {
		taker = ob.Sells[takerIdx]
		ob.Sells = append(ob.Sells[:takerIdx], ob.Sells[takerIdx+1:]...)
	}

	result := &MatchResult{
		OrderID:         orderID,
		RemainingAmount: taker.RemainingAmount,
	}

	var err error
	if takerSide == SideBuy {
		err = ob.crossBuy(&taker, result)
	} else {
		err = ob.crossSell(&taker, result)
	}
	if err != nil {
		return nil, err
	}

	if result.RemainingAmount > 0 {
		taker.RemainingAmount = result.RemainingAmount
		if err := ob.reinsert(taker); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// crossBuy consumes sells, cheapest first.
func (ob *OrderBook) crossBuy(taker *Order, result *MatchResult) error {
	sort.SliceStable(ob.Sells, func(i, j int) bool {
		return ob.Sells[i].Price < ob.Sells[j].Price
	})

	i := 0
	for i < len(ob.Sells) && result.RemainingAmount > 0 {
		maker := &ob.Sells[i]
		if taker.Price < maker.Price {
			break
		}

		matchAmount := min(result.RemainingAmount, maker.RemainingAmount)
		if matchAmount == 0 {
			i++
			continue
		}

		quoteAmount, err := checkedMul(matchAmount, maker.Price)
		if err != nil {
			return err
		}
		// Quote surplus from executing below the taker's limit goes back to
		// the taker; the rest of its reservation pays the maker.
		priceDiff, err := checkedSub(taker.Price, maker.Price)
		if err != nil {
			return err
		}
		refund, err := checkedMul(matchAmount, priceDiff)
		if err != nil {
			return err
		}

		if err := ob.applyFill(maker, matchAmount, result); err != nil {
			return err
		}
		if err := ob.Balances.Credit(taker.Owner, matchAmount, refund); err != nil {
			return err
		}
		if err := ob.Balances.Credit(maker.Owner, 0, quoteAmount); err != nil {
			return err
		}

		result.Trades = append(result.Trades, Trade{
			TradeID:      uuid.New().String(),
			TakerOrderID: taker.ID,
			MakerOrderID: maker.ID,
			Price:        maker.Price,
			Amount:       matchAmount,
			QuoteAmount:  quoteAmount,
			Timestamp:    time.Now().UnixMilli(),
		})

		if maker.RemainingAmount == 0 {
			ob.Sells = append(ob.Sells[:i], ob.Sells[i+1:]...)
			continue
		}
		i++
	}
	return nil
}

// crossSell consumes buys, highest bid first.
func (ob *OrderBook) crossSell(taker *Order, result *MatchResult) error {
	sort.SliceStable(ob.Buys, func(i, j int) bool {
		return ob.Buys[i].Price > ob.Buys[j].Price
	})

	i := 0
	for i < len(ob.Buys) && result.RemainingAmount > 0 {
		maker := &ob.Buys[i]
		if taker.Price > maker.Price {
			break
		}

		matchAmount := min(result.RemainingAmount, maker.RemainingAmount)
		if matchAmount == 0 {
			i++
			continue
		}

		// The buy maker reserved exactly matchAmount * its own price, which
		// is the execution price, so no refund leg exists on this path.
		quoteAmount, err := checkedMul(matchAmount, maker.Price)
		if err != nil {
			return err
		}

		if err := ob.applyFill(maker, matchAmount, result); err != nil {
			return err
		}
		if err := ob.Balances.Credit(taker.Owner, 0, quoteAmount); err != nil {
			return err
		}
		if err := ob.Balances.Credit(maker.Owner, matchAmount, 0); err != nil {
			return err
		}

		result.Trades = append(result.Trades, Trade{
			TradeID:      uuid.New().String(),
			TakerOrderID: taker.ID,
			MakerOrderID: maker.ID,
			Price:        maker.Price,
			Amount:       matchAmount,
			QuoteAmount:  quoteAmount,
			Timestamp:    time.Now().UnixMilli(),
		})

		if maker.RemainingAmount == 0 {
			ob.Buys = append(ob.Buys[:i], ob.Buys[i+1:]...)
			continue
		}
		i++
	}
	return nil
}

func (ob *OrderBook) applyFill(maker *Order, matchAmount uint64, result *MatchResult) error {
	remaining, err := checkedSub(maker.RemainingAmount, matchAmount)
	if err != nil {
		return err
	}
	maker.RemainingAmount = remaining

	result.RemainingAmount, err = checkedSub(result.RemainingAmount, matchAmount)
	if err != nil {
		return err
	}
	result.FilledAmount, err = checkedAdd(result.FilledAmount, matchAmount)
	return err
}

func (ob *OrderBook) reinsert(taker Order) error {
	side := &ob.Buys
	if taker.Side == SideSell {
		side = &ob.Sells
	}
	if len(*side) >= MaxOrders {
		return ErrOrderbookFull
	}
	*side = append(*side, taker)
	if ob.ReinsertByTime {
		s := *side
		sort.SliceStable(s, func(i, j int) bool {
			if s[i].CreatedAt != s[j].CreatedAt {
				return s[i].CreatedAt < s[j].CreatedAt
			}
			return s[i].ID < s[j].ID
		})
	}
	return nil
}
