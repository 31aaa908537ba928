package storage

import (
	goerrors "errors"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"

	"mini-base/domain"
	"mini-base/errors"
)

// CredentialRepository persists the opaque credential blob of each
// tenant in BadgerDB. The blob content is owned by the protocol client;
// this layer never inspects it.
type CredentialRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewCredentialRepository(db *badger.DB, log *slog.Logger) CredentialRepository {
	return CredentialRepository{db: db, log: log}
}

func credentialKey(tenant domain.TenantID) []byte {
	return []byte(fmt.Sprintf("cred:%s", tenant))
}

func (r CredentialRepository) Get(tenant domain.TenantID) ([]byte, error) {
	var blob []byte
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(credentialKey(tenant))
		if err != nil {
			return err
		}
		blob, err = item.ValueCopy(nil)
		return err
	})
	if goerrors.Is(err, badger.ErrKeyNotFound) {
		return nil, errors.ErrCredentialNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("credential lookup for %s: %w", tenant, err)
	}
	return blob, nil
}

func (r CredentialRepository) Save(tenant domain.TenantID, blob []byte) error {
	return r.db.Update(func(txn *badger.Txn) error {
		return txn.Set(credentialKey(tenant), blob)
	})
}

func (r CredentialRepository) Delete(tenant domain.TenantID) error {
	return r.db.Update(func(txn *badger.Txn) error {
		err := txn.Delete(credentialKey(tenant))
		if goerrors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		return err
	})
}
