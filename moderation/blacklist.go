package moderation

import (
	"github.com/dgraph-io/badger/v4"
)

const blacklistPrefix = "blacklist:"

// LoadBlacklist reads the censored words stored as badger keys
// "blacklist:{word}". Values are ignored.
func LoadBlacklist(db *badger.DB) ([]string, error) {
	var words []string
	err := db.View(func(txn *badger.Txn) error {
		prefix := []byte(blacklistPrefix)
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			words = append(words, string(it.Item().Key()[len(prefix):]))
		}
		return nil
	})
	return words, err
}

// AddToBlacklist stores words so that the next start picks them up.
func AddToBlacklist(db *badger.DB, words ...string) error {
	wb := db.NewWriteBatch()
	defer wb.Cancel()
	for _, w := range words {
		if w == "" {
			continue
		}
		if err := wb.Set([]byte(blacklistPrefix+w), nil); err != nil {
			return err
		}
	}
	return wb.Flush()
}
