// Package store persists orderbook aggregates in a pebble keyspace so the
// venue can restore its books at boot and checkpoint them before relocation.
// The engine itself stays persistence-free; whole aggregates are serialized
// as opaque snapshots.
package store

import (
	"github.com/cockroachdb/pebble"
	"github.com/pkg/errors"

	"clob-venue/src/engine"
)

const bookKeyPrefix = "ob:"

type Store struct {
	db *pebble.DB
}

func Open(path string) (*Store, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, errors.Wrapf(err, "open snapshot store at %s", path)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func bookKey(pair string) []byte {
	return append([]byte(bookKeyPrefix), pair...)
}

// SaveBook overwrites the stored snapshot for a pair.
func (s *Store) SaveBook(pair string, ob *engine.OrderBook) error {
	val, err := encodeGob(ob)
	if err != nil {
		return errors.Wrapf(err, "encode orderbook %s", pair)
	}
	if err := s.db.Set(bookKey(pair), val, pebble.Sync); err != nil {
		return errors.Wrapf(err, "write orderbook %s", pair)
	}
	return nil
}

// LoadBook returns the stored snapshot for a pair, nil when none exists.
func (s *Store) LoadBook(pair string) (*engine.OrderBook, error) {
	val, closer, err := s.db.Get(bookKey(pair))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "read orderbook %s", pair)
	}
	defer closer.Close()

	var ob engine.OrderBook
	if err := decodeGob(val, &ob); err != nil {
		return nil, errors.Wrapf(err, "decode orderbook %s", pair)
	}
	return &ob, nil
}

// LoadBooks returns every stored aggregate keyed by pair.
func (s *Store) LoadBooks() (map[string]*engine.OrderBook, error) {
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(bookKeyPrefix),
		UpperBound: []byte(bookKeyPrefix + "\xff"),
	})
	if err != nil {
		return nil, errors.Wrap(err, "iterate orderbooks")
	}
	defer iter.Close()

	books := make(map[string]*engine.OrderBook)
	for iter.First(); iter.Valid(); iter.Next() {
		pair := string(iter.Key()[len(bookKeyPrefix):])
		var ob engine.OrderBook
		if err := decodeGob(iter.Value(), &ob); err != nil {
			return nil, errors.Wrapf(err, "decode orderbook %s", pair)
		}
		books[pair] = &ob
	}
	if err := iter.Error(); err != nil {
		return nil, errors.Wrap(err, "iterate orderbooks")
	}
	return books, nil
}
