package custody

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTransferInCommitMovesFundsToPool(t *testing.T) {
	v := NewVault()
	v.Fund("alice", "USDC", 100)

	tx := v.Begin()
	require.NoError(t, tx.TransferIn("alice", "USDC", 60))
	require.NoError(t, tx.Commit())

	require.Equal(t, uint64(40), v.AccountBalance("alice", "USDC"))
	require.Equal(t, uint64(60), v.PooledBalance("USDC"))
}

func TestTransferOutCommitReturnsFundsToAccount(t *testing.T) {
	v := NewVault()
	v.Fund("alice", "BTC", 5)

	tx := v.Begin()
	require.NoError(t, tx.TransferIn("alice", "BTC", 5))
	require.NoError(t, tx.Commit())

	tx = v.Begin()
	require.NoError(t, tx.TransferOut("alice", "BTC", 2))
	require.NoError(t, tx.Commit())

	require.Equal(t, uint64(2), v.AccountBalance("alice", "BTC"))
	require.Equal(t, uint64(3), v.PooledBalance("BTC"))
}

func TestTransferInValidatesAgainstStagedLegs(t *testing.T) {
	v := NewVault()
	v.Fund("alice", "USDC", 100)

	tx := v.Begin()
	require.NoError(t, tx.TransferIn("alice", "USDC", 70))
	// only 30 remains once the first leg is accounted for
	err := tx.TransferIn("alice", "USDC", 40)
	require.ErrorIs(t, err, ErrInsufficientFunds)
	tx.Rollback()
}

func TestTransferOutValidatesAgainstPool(t *testing.T) {
	v := NewVault()
	v.Fund("alice", "BTC", 3)
	tx := v.Begin()
	require.NoError(t, tx.TransferIn("alice", "BTC", 3))
	require.NoError(t, tx.Commit())

	tx = v.Begin()
	require.NoError(t, tx.TransferOut("alice", "BTC", 2))
	err := tx.TransferOut("alice", "BTC", 2)
	require.ErrorIs(t, err, ErrInsufficientFunds)
	tx.Rollback()
}

func TestRollbackDiscardsStagedLegs(t *testing.T) {
	v := NewVault()
	v.Fund("alice", "USDC", 100)

	tx := v.Begin()
	require.NoError(t, tx.TransferIn("alice", "USDC", 100))
	tx.Rollback()

	require.Equal(t, uint64(100), v.AccountBalance("alice", "USDC"))
	require.Zero(t, v.PooledBalance("USDC"))
}

func TestCommitAfterFinishFails(t *testing.T) {
	v := NewVault()
	v.Fund("alice", "USDC", 10)

	tx := v.Begin()
	require.NoError(t, tx.TransferIn("alice", "USDC", 10))
	require.NoError(t, tx.Commit())
	require.Error(t, tx.Commit())
	// the second commit must not apply the legs again
	require.Equal(t, uint64(10), v.PooledBalance("USDC"))
}

// funds drained between staging and commit are caught at commit time and
// nothing is applied
func TestCommitRevalidatesAgainstConcurrentDrain(t *testing.T) {
	v := NewVault()
	v.Fund("alice", "USDC", 100)

	tx := v.Begin()
	require.NoError(t, tx.TransferIn("alice", "USDC", 100))

	drain := v.Begin()
	require.NoError(t, drain.TransferIn("alice", "USDC", 100))
	require.NoError(t, drain.Commit())

	err := tx.Commit()
	require.ErrorIs(t, err, ErrInsufficientFunds)
	require.Equal(t, uint64(100), v.PooledBalance("USDC"))
	require.Zero(t, v.AccountBalance("alice", "USDC"))
}

func TestMultiLegCommitIsAtomic(t *testing.T) {
	v := NewVault()
	v.Fund("alice", "BTC", 2)
	v.Fund("alice", "USDC", 50)

	tx := v.Begin()
	require.NoError(t, tx.TransferIn("alice", "USDC", 50))
	require.NoError(t, tx.TransferIn("alice", "BTC", 2))
	require.NoError(t, tx.Commit())

	require.Zero(t, v.AccountBalance("alice", "BTC"))
	require.Zero(t, v.AccountBalance("alice", "USDC"))
	require.Equal(t, uint64(2), v.PooledBalance("BTC"))
	require.Equal(t, uint64(50), v.PooledBalance("USDC"))
}
