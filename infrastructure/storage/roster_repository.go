package storage

import (
	goerrors "errors"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"

	"mini-base/domain"
)

// RosterRepository keeps the roster of known tenant identifiers.
// The roster drives the fleet-wide bulk connect at startup: every
// tenant listed here is expected to hold a credential blob.
type RosterRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewRosterRepository(db *badger.DB, log *slog.Logger) RosterRepository {
	return RosterRepository{db: db, log: log}
}

const rosterPrefix = "tenant:"

func rosterKey(tenant domain.TenantID) []byte {
	return []byte(fmt.Sprintf("%s%s", rosterPrefix, tenant))
}

func (r RosterRepository) Add(tenant domain.TenantID) error {
	return r.db.Update(func(txn *badger.Txn) error {
		return txn.Set(rosterKey(tenant), []byte{1})
	})
}

func (r RosterRepository) Remove(tenant domain.TenantID) error {
	return r.db.Update(func(txn *badger.Txn) error {
		err := txn.Delete(rosterKey(tenant))
		if goerrors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		return err
	})
}

// List returns every known tenant in key order.
func (r RosterRepository) List() ([]domain.TenantID, error) {
	var tenants []domain.TenantID
	err := r.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.PrefetchValues = false
		it := txn.NewIterator(options)
		defer it.Close()

		prefix := []byte(rosterPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			key := it.Item().Key()
			tenants = append(tenants, domain.TenantID(key[len(prefix):]))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("roster scan: %w", err)
	}
	return tenants, nil
}
