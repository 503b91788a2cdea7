package store

import (
	"testing"

	"github.com/stretchr/testify/require"

	"clob-venue/src/engine"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, s.Close()) })
	return s
}

func buildBook(t *testing.T) *engine.OrderBook {
	t.Helper()
	ob := engine.NewOrderBook("BTC", "USDC", 8, 6, "venue-authority")
	require.NoError(t, ob.Balances.Credit("alice", 0, 100))
	require.NoError(t, ob.Balances.Credit("bob", 10, 0))
	_, err := ob.CreateOrder("alice", engine.SideBuy, 10, 5)
	require.NoError(t, err)
	_, err = ob.CreateOrder("bob", engine.SideSell, 15, 10)
	require.NoError(t, err)
	ob.IsRelocated = true
	return ob
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ob := buildBook(t)

	require.NoError(t, s.SaveBook("BTC-USDC", ob))

	got, err := s.LoadBook("BTC-USDC")
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, ob.OrderCounter, got.OrderCounter)
	require.Equal(t, ob.Buys, got.Buys)
	require.Equal(t, ob.Sells, got.Sells)
	require.Equal(t, ob.Balances.Entries, got.Balances.Entries)
	require.True(t, got.IsRelocated)
	require.Equal(t, engine.Principal("venue-authority"), got.Authority)
}

func TestLoadMissingBookReturnsNil(t *testing.T) {
	s := openTestStore(t)
	got, err := s.LoadBook("ETH-USDC")
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestSaveBookOverwrites(t *testing.T) {
	s := openTestStore(t)
	ob := buildBook(t)

	require.NoError(t, s.SaveBook("BTC-USDC", ob))
	_, err := ob.CreateOrder("alice", engine.SideBuy, 5, 10)
	require.NoError(t, err)
	require.NoError(t, s.SaveBook("BTC-USDC", ob))

	got, err := s.LoadBook("BTC-USDC")
	require.NoError(t, err)
	require.Len(t, got.Buys, 2)
	require.Equal(t, uint64(3), got.OrderCounter)
}

func TestLoadBooksReturnsAllPairs(t *testing.T) {
	s := openTestStore(t)

	btc := buildBook(t)
	eth := engine.NewOrderBook("ETH", "USDC", 18, 6, "venue-authority")
	require.NoError(t, s.SaveBook("BTC-USDC", btc))
	require.NoError(t, s.SaveBook("ETH-USDC", eth))

	books, err := s.LoadBooks()
	require.NoError(t, err)
	require.Len(t, books, 2)
	require.Equal(t, "BTC", books["BTC-USDC"].BaseAsset)
	require.Equal(t, "ETH", books["ETH-USDC"].BaseAsset)
}

func TestLoadBooksOnEmptyStore(t *testing.T) {
	s := openTestStore(t)
	books, err := s.LoadBooks()
	require.NoError(t, err)
	require.Empty(t, books)
}
