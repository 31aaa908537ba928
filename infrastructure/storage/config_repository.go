package storage

import (
	"encoding/json"
	goerrors "errors"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"

	"mini-base/domain"
)

// ConfigRepository serves per-tenant automation flags. Reads always hit
// the store: the dispatch pipeline reloads the config for every inbound
// event, so a concurrent OTP-verified update is visible immediately.
type ConfigRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewConfigRepository(db *badger.DB, log *slog.Logger) ConfigRepository {
	return ConfigRepository{db: db, log: log}
}

func configKey(tenant domain.TenantID) []byte {
	return []byte(fmt.Sprintf("config:%s", tenant))
}

// Get returns the stored config, or the defaults when the tenant never
// saved one.
func (r ConfigRepository) Get(tenant domain.TenantID) (domain.TenantConfig, error) {
	cfg := domain.DefaultTenantConfig()
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(configKey(tenant))
		if err != nil {
			return err
		}
		return item.Value(func(value []byte) error {
			return json.Unmarshal(value, &cfg)
		})
	})
	if goerrors.Is(err, badger.ErrKeyNotFound) {
		return domain.DefaultTenantConfig(), nil
	}
	if err != nil {
		return domain.TenantConfig{}, fmt.Errorf("config lookup for %s: %w", tenant, err)
	}
	return cfg, nil
}

// Update applies the delta on top of the stored config inside a single
// transaction and returns the merged result.
func (r ConfigRepository) Update(tenant domain.TenantID, delta domain.ConfigDelta) (domain.TenantConfig, error) {
	var merged domain.TenantConfig
	err := r.db.Update(func(txn *badger.Txn) error {
		cfg := domain.DefaultTenantConfig()
		item, err := txn.Get(configKey(tenant))
		switch {
		case goerrors.Is(err, badger.ErrKeyNotFound):
			// first write for this tenant, start from defaults
		case err != nil:
			return err
		default:
			if err := item.Value(func(value []byte) error {
				return json.Unmarshal(value, &cfg)
			}); err != nil {
				return err
			}
		}

		merged = delta.Apply(cfg)
		bytes, err := json.Marshal(merged)
		if err != nil {
			return err
		}
		return txn.Set(configKey(tenant), bytes)
	})
	if err != nil {
		return domain.TenantConfig{}, fmt.Errorf("config update for %s: %w", tenant, err)
	}
	return merged, nil
}
