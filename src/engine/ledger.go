package engine

// MaxUsers bounds the number of principals with open exposure per orderbook.
const MaxUsers = 20

// UserBalance is the settled (unreserved) holdings of one principal.
type UserBalance struct {
	Owner       Principal
	BaseAmount  uint64
	QuoteAmount uint64
}

// Ledger is a bounded, unordered collection of user balances. An entry exists
// only while at least one of its amounts is nonzero, so len(Entries) equals
// the number of principals with strictly positive exposure.
type Ledger struct {
	Entries []UserBalance
}

func (l *Ledger) find(owner Principal) int {
	for i := range l.Entries {
		if l.Entries[i].Owner == owner {
			return i
		}
	}
	return -1
}

// Credit adds the deltas to the owner's balance, creating the entry lazily.
func (l *Ledger) Credit(owner Principal, baseDelta, quoteDelta uint64) error {
	if baseDelta == 0 && quoteDelta == 0 {
		return nil
	}

	i := l.find(owner)
	if i < 0 {
		if len(l.Entries) >= MaxUsers {
			return ErrTooManyUsers
		}
		l.Entries = append(l.Entries, UserBalance{
			Owner:       owner,
			BaseAmount:  baseDelta,
			QuoteAmount: quoteDelta,
		})
		return nil
	}

	base, err := checkedAdd(l.Entries[i].BaseAmount, baseDelta)
	if err != nil {
		return err
	}
	quote, err := checkedAdd(l.Entries[i].QuoteAmount, quoteDelta)
	if err != nil {
		return err
	}
	l.Entries[i].BaseAmount = base
	l.Entries[i].QuoteAmount = quote
	return nil
}

// Debit subtracts the deltas from the owner's balance. The entry is removed
// once both amounts reach zero.
func (l *Ledger) Debit(owner Principal, baseDelta, quoteDelta uint64) error {
	if baseDelta == 0 && quoteDelta == 0 {
		return nil
	}

	i := l.find(owner)
	if i < 0 {
		return ErrUserNotFound
	}

	if l.Entries[i].BaseAmount < baseDelta || l.Entries[i].QuoteAmount < quoteDelta {
		return ErrInsufficientBalance
	}

	base, err := checkedSub(l.Entries[i].BaseAmount, baseDelta)
	if err != nil {
		return err
	}
	quote, err := checkedSub(l.Entries[i].QuoteAmount, quoteDelta)
	if err != nil {
		return err
	}

	if base == 0 && quote == 0 {
		l.Entries = append(l.Entries[:i], l.Entries[i+1:]...)
		return nil
	}
	l.Entries[i].BaseAmount = base
	l.Entries[i].QuoteAmount = quote
	return nil
}

// Query returns the owner's balances, (0, 0) when no entry exists.
func (l *Ledger) Query(owner Principal) (base, quote uint64) {
	i := l.find(owner)
	if i < 0 {
		return 0, 0
	}
	return l.Entries[i].BaseAmount, l.Entries[i].QuoteAmount
}

func (l *Ledger) clone() Ledger {
	entries := make([]UserBalance, len(l.Entries))
	copy(entries, l.Entries)
	return Ledger{Entries: entries}
}
