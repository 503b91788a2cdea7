package engine

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"clob-venue/src/custody"
)

const testPair = "BTC-USDC"

func newTestVenue(t *testing.T) (*Matcher, *custody.Vault) {
	t.Helper()
	vault := custody.NewVault()
	m := NewMatcher(vault)
	m.InitOrderBook("BTC", "USDC", 8, 6, "venue-authority", false)
	return m, vault
}

func TestInitOrderBookIsGetOrCreate(t *testing.T) {
	m, vault := newTestVenue(t)

	vault.Fund("alice", "USDC", 100)
	require.NoError(t, m.Deposit(testPair, "alice", 0, 100))
	_, err := m.CreateOrder(testPair, "alice", SideBuy, 10, 5)
	require.NoError(t, err)

	// re-initializing an existing pair must not reset anything
	ob := m.InitOrderBook("BTC", "USDC", 8, 6, "someone-else", false)
	require.Equal(t, Principal("venue-authority"), ob.Authority)
	require.Len(t, ob.Buys, 1)
	require.Equal(t, uint64(1), ob.OrderCounter)
}

func TestUnknownPair(t *testing.T) {
	m, _ := newTestVenue(t)

	_, err := m.CreateOrder("ETH-USDC", "alice", SideBuy, 10, 5)
	require.ErrorIs(t, err, ErrOrderbookNotFound)
	_, err = m.MatchOrder("ETH-USDC", "alice", 0)
	require.ErrorIs(t, err, ErrOrderbookNotFound)
	require.ErrorIs(t, m.Deposit("ETH-USDC", "alice", 1, 0), ErrOrderbookNotFound)
	require.ErrorIs(t, m.Withdraw("ETH-USDC", "alice", 1, 0), ErrOrderbookNotFound)
	_, _, err = m.Depth("ETH-USDC", 10)
	require.ErrorIs(t, err, ErrOrderbookNotFound)
}

func TestDepositMovesCustodyFundsIntoLedger(t *testing.T) {
	m, vault := newTestVenue(t)
	vault.Fund("alice", "BTC", 10)
	vault.Fund("alice", "USDC", 200)

	require.NoError(t, m.Deposit(testPair, "alice", 4, 150))

	base, quote, err := m.Balance(testPair, "alice")
	require.NoError(t, err)
	require.Equal(t, uint64(4), base)
	require.Equal(t, uint64(150), quote)

	require.Equal(t, uint64(6), vault.AccountBalance("alice", "BTC"))
	require.Equal(t, uint64(50), vault.AccountBalance("alice", "USDC"))
	require.Equal(t, uint64(4), vault.PooledBalance("BTC"))
	require.Equal(t, uint64(150), vault.PooledBalance("USDC"))
}

func TestDepositZeroAmountsIsNoOp(t *testing.T) {
	m, _ := newTestVenue(t)
	require.NoError(t, m.Deposit(testPair, "alice", 0, 0))
	base, quote, err := m.Balance(testPair, "alice")
	require.NoError(t, err)
	require.Zero(t, base)
	require.Zero(t, quote)
}

// a deposit larger than the custody account leaves both custody and the
// ledger untouched, even when one leg would have succeeded
func TestDepositInsufficientCustodyFundsAborts(t *testing.T) {
	m, vault := newTestVenue(t)
	vault.Fund("alice", "USDC", 100)

	err := m.Deposit(testPair, "alice", 1, 50)
	require.ErrorIs(t, err, custody.ErrInsufficientFunds)

	base, quote, err := m.Balance(testPair, "alice")
	require.NoError(t, err)
	require.Zero(t, base)
	require.Zero(t, quote)
	require.Equal(t, uint64(100), vault.AccountBalance("alice", "USDC"))
	require.Zero(t, vault.PooledBalance("USDC"))
}

func TestWithdrawReturnsFundsToCustody(t *testing.T) {
	m, vault := newTestVenue(t)
	vault.Fund("alice", "BTC", 10)
	require.NoError(t, m.Deposit(testPair, "alice", 10, 0))

	require.NoError(t, m.Withdraw(testPair, "alice", 7, 0))

	base, _, err := m.Balance(testPair, "alice")
	require.NoError(t, err)
	require.Equal(t, uint64(3), base)
	require.Equal(t, uint64(7), vault.AccountBalance("alice", "BTC"))
	require.Equal(t, uint64(3), vault.PooledBalance("BTC"))
}

// withdrawing 50 base against a settled balance of 30 fails without side
// effects; reserved amounts do not count toward the withdrawable balance
func TestWithdrawMoreThanSettledBalance(t *testing.T) {
	m, vault := newTestVenue(t)
	vault.Fund("alice", "BTC", 100)
	require.NoError(t, m.Deposit(testPair, "alice", 100, 0))

	// sell reserves 70 base, leaving 30 settled
	_, err := m.CreateOrder(testPair, "alice", SideSell, 10, 70)
	require.NoError(t, err)

	err = m.Withdraw(testPair, "alice", 50, 0)
	require.ErrorIs(t, err, ErrInsufficientBalance)

	base, _, err := m.Balance(testPair, "alice")
	require.NoError(t, err)
	require.Equal(t, uint64(30), base)
	require.Equal(t, uint64(100), vault.PooledBalance("BTC"))
}

// a withdrawal that fails on one component must not apply the other
func TestWithdrawPartialFailureLeavesLedgerUntouched(t *testing.T) {
	m, vault := newTestVenue(t)
	vault.Fund("alice", "BTC", 5)
	vault.Fund("alice", "USDC", 50)
	require.NoError(t, m.Deposit(testPair, "alice", 5, 50))

	err := m.Withdraw(testPair, "alice", 3, 60)
	require.ErrorIs(t, err, ErrInsufficientBalance)

	base, quote, err := m.Balance(testPair, "alice")
	require.NoError(t, err)
	require.Equal(t, uint64(5), base)
	require.Equal(t, uint64(50), quote)
}

func TestWithdrawZeroAmountsIsNoOp(t *testing.T) {
	m, _ := newTestVenue(t)
	require.NoError(t, m.Withdraw(testPair, "unknown", 0, 0))
}

func TestFailedOperationLeavesAggregateUnchanged(t *testing.T) {
	m, vault := newTestVenue(t)
	vault.Fund("alice", "USDC", 50)
	require.NoError(t, m.Deposit(testPair, "alice", 0, 50))

	order, err := m.CreateOrder(testPair, "alice", SideBuy, 10, 5)
	require.NoError(t, err)

	// under-funded admission and foreign match both fail and roll back
	_, err = m.CreateOrder(testPair, "alice", SideBuy, 10, 5)
	require.ErrorIs(t, err, ErrInsufficientBalance)
	_, err = m.MatchOrder(testPair, "mallory", order.ID)
	require.ErrorIs(t, err, ErrNotOrderOwner)

	got, err := m.GetOrder(testPair, order.ID)
	require.NoError(t, err)
	require.Equal(t, uint64(5), got.RemainingAmount)
	require.Equal(t, int64(1), m.OpenOrders())
}

func TestSetRelocatedReturnsCheckpointSnapshot(t *testing.T) {
	m, _ := newTestVenue(t)

	_, err := m.SetRelocated(testPair, "mallory", true)
	require.ErrorIs(t, err, ErrUnauthorized)

	snap, err := m.SetRelocated(testPair, "venue-authority", true)
	require.NoError(t, err)
	require.True(t, snap.IsRelocated)

	// the snapshot is detached from the live aggregate
	snap.OrderCounter = 999
	ob := m.InitOrderBook("BTC", "USDC", 8, 6, "venue-authority", false)
	require.True(t, ob.IsRelocated)
	require.Zero(t, ob.OrderCounter)
}

func TestSnapshotRestoreRoundTrip(t *testing.T) {
	m, vault := newTestVenue(t)
	vault.Fund("alice", "USDC", 100)
	require.NoError(t, m.Deposit(testPair, "alice", 0, 100))
	_, err := m.CreateOrder(testPair, "alice", SideBuy, 10, 5)
	require.NoError(t, err)

	snap := m.Snapshot()
	require.Len(t, snap, 1)

	restored := NewMatcher(vault)
	restored.Restore(snap)

	order, err := restored.GetOrder(testPair, 0)
	require.NoError(t, err)
	require.Equal(t, Principal("alice"), order.Owner)
	_, quote, err := restored.Balance(testPair, "alice")
	require.NoError(t, err)
	require.Equal(t, uint64(50), quote)
}

// concurrent admissions across goroutines never lose an order or double-spend
func TestConcurrentAdmissions(t *testing.T) {
	m, vault := newTestVenue(t)
	vault.Fund("alice", "USDC", 1000)
	require.NoError(t, m.Deposit(testPair, "alice", 0, 1000))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := m.CreateOrder(testPair, "alice", SideBuy, 10, 10)
			require.NoError(t, err)
		}()
	}
	wg.Wait()

	require.Equal(t, int64(10), m.OpenOrders())
	_, quote, err := m.Balance(testPair, "alice")
	require.NoError(t, err)
	require.Zero(t, quote)
}
