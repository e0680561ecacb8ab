package storage

import (
	"context"
	"errors"

	"github.com/dgraph-io/badger/v4"
)

// commit runs fn in a read-write transaction and commits it, unless ctx
// expired in the meantime. Nothing is written when ctx is done before the
// commit starts.
func commit(ctx context.Context, db *badger.DB, fn func(txn *badger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	txn := db.NewTransaction(true)
	defer txn.Discard()

	if err := fn(txn); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return txn.Commit()
}

// commitWithRetry retries commit on transaction conflicts. Used by CRUD
// paths where the caller has no retry policy of its own.
func commitWithRetry(ctx context.Context, db *badger.DB, attempts int, fn func(txn *badger.Txn) error) error {
	var err error
	for range max(attempts, 1) {
		err = commit(ctx, db, fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
	}
	return err
}

// nextCounter reads the counter at key, increments it and stages the write.
func nextCounter(txn *badger.Txn, key []byte) (uint64, error) {
	last, err := readCounter(txn, key)
	if err != nil {
		return 0, err
	}
	next := last + 1
	if err = txn.Set(key, encodeCounter(next)); err != nil {
		return 0, err
	}
	return next, nil
}

func readCounter(txn *badger.Txn, key []byte) (uint64, error) {
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	var v uint64
	err = item.Value(func(val []byte) error {
		v, err = decodeCounter(val)
		return err
	})
	return v, err
}

func exists(txn *badger.Txn, key []byte) (bool, error) {
	_, err := txn.Get(key)
	switch {
	case errors.Is(err, badger.ErrKeyNotFound):
		return false, nil
	case err != nil:
		return false, err
	default:
		return true, nil
	}
}

// keysWithPrefix collects keys only, without fetching values.
func keysWithPrefix(txn *badger.Txn, prefix []byte) [][]byte {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	opts.Prefix = prefix
	it := txn.NewIterator(opts)
	defer it.Close()

	var keys [][]byte
	for it.Rewind(); it.ValidForPrefix(prefix); it.Next() {
		keys = append(keys, it.Item().KeyCopy(nil))
	}
	return keys
}

func countPrefix(txn *badger.Txn, prefix []byte) int {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	opts.Prefix = prefix
	it := txn.NewIterator(opts)
	defer it.Close()

	n := 0
	for it.Rewind(); it.ValidForPrefix(prefix); it.Next() {
		n++
	}
	return n
}
