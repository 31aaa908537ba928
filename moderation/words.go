package moderation

import (
	"fmt"

	"github.com/dgraph-io/badger/v4"
)

const wordPrefix = "blacklist:"

// LoadWords reads the banned-word list from the store. Words live in
// the keys under the blacklist prefix, values are empty.
func LoadWords(db *badger.DB) ([]string, error) {
	var words []string
	err := db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(wordPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			words = append(words, string(it.Item().Key()[len(prefix):]))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load banned words: %w", err)
	}
	return words, nil
}

// SeedWords stores the given words, keeping whatever is already there.
func SeedWords(db *badger.DB, words []string) error {
	wb := db.NewWriteBatch()
	defer wb.Cancel()
	for _, word := range words {
		if err := wb.Set([]byte(wordPrefix+word), nil); err != nil {
			return fmt.Errorf("seed banned word %q: %w", word, err)
		}
	}
	return wb.Flush()
}
