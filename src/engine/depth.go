package engine

import (
	"github.com/google/btree"
)

// PriceLevel aggregates the remaining amount resting at one price.
type PriceLevel struct {
	Price  uint64
	Amount uint64
}

type bidLevelItem struct {
	level *PriceLevel
}

func (p *bidLevelItem) Less(than btree.Item) bool {
	other := than.(*bidLevelItem)
	return p.level.Price > other.level.Price
}

type askLevelItem struct {
	level *PriceLevel
}

func (p *askLevelItem) Less(than btree.Item) bool {
	other := than.(*askLevelItem)
	return p.level.Price < other.level.Price
}

// Depth aggregates open orders into price levels, bids descending and asks
// ascending, truncated to the requested number of levels per side.
func (ob *OrderBook) Depth(levels int) (bids, asks []PriceLevel) {
	bidTree := btree.New(32)
	for i := range ob.Buys {
		order := &ob.Buys[i]
		probe := &bidLevelItem{level: &PriceLevel{Price: order.Price}}
		if existing := bidTree.Get(probe); existing != nil {
			existing.(*bidLevelItem).level.Amount += order.RemainingAmount
		} else {
			probe.level.Amount = order.RemainingAmount
			bidTree.ReplaceOrInsert(probe)
		}
	}

	askTree := btree.New(32)
	for i := range ob.Sells {
		order := &ob.Sells[i]
		probe := &askLevelItem{level: &PriceLevel{Price: order.Price}}
		if existing := askTree.Get(probe); existing != nil {
			existing.(*askLevelItem).level.Amount += order.RemainingAmount
		} else {
			probe.level.Amount = order.RemainingAmount
			askTree.ReplaceOrInsert(probe)
		}
	}

	bids = make([]PriceLevel, 0, levels)
	bidTree.Ascend(func(item btree.Item) bool {
		if len(bids) >= levels {
			return false
		}
		bids = append(bids, *item.(*bidLevelItem).level)
		return true
	})

	asks = make([]PriceLevel, 0, levels)
	askTree.Ascend(func(item btree.Item) bool {
		if len(asks) >= levels {
			return false
		}
		asks = append(asks, *item.(*askLevelItem).level)
		return true
	})

	return bids, asks
}
