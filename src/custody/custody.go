// Package custody abstracts the external mechanism that actually moves value
// between user-controlled accounts and the venue's pooled vault. The engine
// only records the effect of a transfer in its ledger; the custodian performs
// it. Transfers are staged on a transaction handle so the caller can couple
// them with a ledger mutation and commit or discard both together.
package custody

import (
	"github.com/pkg/errors"
)

var ErrInsufficientFunds = errors.New("insufficient funds in custody account")

// Tx is a staged batch of transfers. Legs are validated when staged and
// applied atomically on Commit; Rollback discards all staged legs.
type Tx interface {
	// TransferIn moves amount of asset from the owner's account into the vault.
	TransferIn(owner, asset string, amount uint64) error
	// TransferOut moves amount of asset from the vault back to the owner.
	TransferOut(owner, asset string, amount uint64) error
	Commit() error
	Rollback()
}

type Custodian interface {
	Begin() Tx
}
