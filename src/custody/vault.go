package custody

import (
	"sync"

	"github.com/pkg/errors"
)

// Vault is an in-memory custodian: it tracks per-owner external accounts and
// the venue's pooled holdings. Real deployments would back this with a token
// bridge or bank integration; the interface is the contract.
type Vault struct {
	mu       sync.Mutex
	accounts map[string]map[string]uint64 // owner -> asset -> amount
	pooled   map[string]uint64            // asset -> amount held by the venue
}

func NewVault() *Vault {
	return &Vault{
		accounts: make(map[string]map[string]uint64),
		pooled:   make(map[string]uint64),
	}
}

// Fund credits an owner's external account. Bootstrap and test helper.
func (v *Vault) Fund(owner, asset string, amount uint64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.accounts[owner] == nil {
		v.accounts[owner] = make(map[string]uint64)
	}
	v.accounts[owner][asset] += amount
}

func (v *Vault) AccountBalance(owner, asset string) uint64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.accounts[owner][asset]
}

func (v *Vault) PooledBalance(asset string) uint64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.pooled[asset]
}

func (v *Vault) Begin() Tx {
	return &vaultTx{vault: v}
}

type leg struct {
	owner   string
	asset   string
	amount  uint64
	inbound bool
}

type vaultTx struct {
	vault *Vault
	legs  []leg
	done  bool
}

// stagedDelta sums already-staged movement for an owner/asset pair, positive
// toward the vault.
func (tx *vaultTx) stagedDelta(owner, asset string) int64 {
	var delta int64
	for _, l := range tx.legs {
		if l.owner != owner || l.asset != asset {
			continue
		}
		if l.inbound {
			delta += int64(l.amount)
		} else {
			delta -= int64(l.amount)
		}
	}
	return delta
}

func (tx *vaultTx) TransferIn(owner, asset string, amount uint64) error {
	tx.vault.mu.Lock()
	defer tx.vault.mu.Unlock()

	available := int64(tx.vault.accounts[owner][asset]) - tx.stagedDelta(owner, asset)
	if available < int64(amount) {
		return errors.Wrapf(ErrInsufficientFunds, "owner %s asset %s", owner, asset)
	}
	tx.legs = append(tx.legs, leg{owner: owner, asset: asset, amount: amount, inbound: true})
	return nil
}

func (tx *vaultTx) TransferOut(owner, asset string, amount uint64) error {
	tx.vault.mu.Lock()
	defer tx.vault.mu.Unlock()

	var stagedOut uint64
	for _, l := range tx.legs {
		if l.asset == asset && !l.inbound {
			stagedOut += l.amount
		}
	}
	if tx.vault.pooled[asset] < stagedOut+amount {
		return errors.Wrapf(ErrInsufficientFunds, "vault asset %s", asset)
	}
	tx.legs = append(tx.legs, leg{owner: owner, asset: asset, amount: amount, inbound: false})
	return nil
}

func (tx *vaultTx) Commit() error {
	tx.vault.mu.Lock()
	defer tx.vault.mu.Unlock()

	if tx.done {
		return errors.New("custody transaction already finished")
	}
	tx.done = true

	// Revalidate cumulatively: between staging and commit another transaction
	// may have drained the same account or the vault.
	accountNeed := make(map[string]map[string]uint64)
	vaultNeed := make(map[string]uint64)
	for _, l := range tx.legs {
		if l.inbound {
			if accountNeed[l.owner] == nil {
				accountNeed[l.owner] = make(map[string]uint64)
			}
			accountNeed[l.owner][l.asset] += l.amount
		} else {
			vaultNeed[l.asset] += l.amount
		}
	}
	for owner, assets := range accountNeed {
		for asset, need := range assets {
			if tx.vault.accounts[owner][asset] < need {
				return errors.Wrapf(ErrInsufficientFunds, "owner %s asset %s", owner, asset)
			}
		}
	}
	for asset, need := range vaultNeed {
		if tx.vault.pooled[asset] < need {
			return errors.Wrapf(ErrInsufficientFunds, "vault asset %s", asset)
		}
	}

	for _, l := range tx.legs {
		if l.inbound {
			tx.vault.accounts[l.owner][l.asset] -= l.amount
			tx.vault.pooled[l.asset] += l.amount
		} else {
			tx.vault.pooled[l.asset] -= l.amount
			if tx.vault.accounts[l.owner] == nil {
				tx.vault.accounts[l.owner] = make(map[string]uint64)
			}
			tx.vault.accounts[l.owner][l.asset] += l.amount
		}
	}
	return nil
}

func (tx *vaultTx) Rollback() {
	tx.done = true
	tx.legs = nil
}
