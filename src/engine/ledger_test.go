package engine

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLedgerCreditCreatesEntryLazily(t *testing.T) {
	l := &Ledger{}

	base, quote := l.Query("alice")
	require.Zero(t, base)
	require.Zero(t, quote)

	require.NoError(t, l.Credit("alice", 10, 20))
	base, quote = l.Query("alice")
	require.Equal(t, uint64(10), base)
	require.Equal(t, uint64(20), quote)
	require.Len(t, l.Entries, 1)
}

func TestLedgerCreditZeroIsNoop(t *testing.T) {
	l := &Ledger{}
	require.NoError(t, l.Credit("alice", 0, 0))
	require.Empty(t, l.Entries)
}

func TestLedgerCreditCapacity(t *testing.T) {
	l := &Ledger{}
	for i := 0; i < MaxUsers; i++ {
		owner := Principal(fmt.Sprintf("user-%d", i))
		require.NoError(t, l.Credit(owner, 1, 0))
	}
	require.ErrorIs(t, l.Credit("one-too-many", 1, 0), ErrTooManyUsers)

	// existing entries still accept credits at capacity
	require.NoError(t, l.Credit("user-0", 1, 0))
}

func TestLedgerCreditOverflow(t *testing.T) {
	l := &Ledger{}
	require.NoError(t, l.Credit("alice", math.MaxUint64, 0))
	require.ErrorIs(t, l.Credit("alice", 1, 0), ErrCalculationFailure)

	// failed credit leaves the entry unchanged
	base, _ := l.Query("alice")
	require.Equal(t, uint64(math.MaxUint64), base)
}

func TestLedgerDebit(t *testing.T) {
	l := &Ledger{}
	require.NoError(t, l.Credit("alice", 100, 50))

	require.NoError(t, l.Debit("alice", 30, 0))
	base, quote := l.Query("alice")
	require.Equal(t, uint64(70), base)
	require.Equal(t, uint64(50), quote)
}

func TestLedgerDebitInsufficientLeavesLedgerUnchanged(t *testing.T) {
	l := &Ledger{}
	require.NoError(t, l.Credit("alice", 30, 10))

	require.ErrorIs(t, l.Debit("alice", 50, 0), ErrInsufficientBalance)
	base, quote := l.Query("alice")
	require.Equal(t, uint64(30), base)
	require.Equal(t, uint64(10), quote)

	// componentwise check: enough base, not enough quote
	require.ErrorIs(t, l.Debit("alice", 10, 20), ErrInsufficientBalance)
}

func TestLedgerDebitUnknownUser(t *testing.T) {
	l := &Ledger{}
	require.ErrorIs(t, l.Debit("ghost", 1, 0), ErrUserNotFound)
	// zero debit against a missing entry is a no-op
	require.NoError(t, l.Debit("ghost", 0, 0))
}

func TestLedgerRemovesZeroedEntry(t *testing.T) {
	l := &Ledger{}
	require.NoError(t, l.Credit("alice", 10, 5))
	require.NoError(t, l.Credit("bob", 1, 1))

	require.NoError(t, l.Debit("alice", 10, 5))
	require.Len(t, l.Entries, 1)
	base, quote := l.Query("alice")
	require.Zero(t, base)
	require.Zero(t, quote)

	// slot freed: a new principal fits again
	for i := len(l.Entries); i < MaxUsers; i++ {
		require.NoError(t, l.Credit(Principal(fmt.Sprintf("u%d", i)), 1, 0))
	}
	require.ErrorIs(t, l.Credit("overflow", 1, 0), ErrTooManyUsers)
}

func TestLedgerPartialDebitKeepsEntry(t *testing.T) {
	l := &Ledger{}
	require.NoError(t, l.Credit("alice", 10, 0))
	require.NoError(t, l.Debit("alice", 10, 0))
	require.Empty(t, l.Entries)

	require.NoError(t, l.Credit("bob", 10, 3))
	require.NoError(t, l.Debit("bob", 10, 0))
	require.Len(t, l.Entries, 1)
	_, quote := l.Query("bob")
	require.Equal(t, uint64(3), quote)
}
