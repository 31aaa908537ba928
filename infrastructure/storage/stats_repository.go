package storage

import (
	"encoding/binary"
	goerrors "errors"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"

	"mini-base/domain"
)

// Counter names incremented by the dispatch pipeline.
const (
	CounterMessagesReceived  = "messages_received"
	CounterCommandsUsed      = "commands_used"
	CounterGroupInteractions = "group_interactions"
	CounterCallsRejected     = "calls_rejected"
	CounterStatusesViewed    = "statuses_viewed"
)

// StatsRepository tracks per-tenant usage counters. Increments are
// best-effort: callers log failures and move on.
type StatsRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewStatsRepository(db *badger.DB, log *slog.Logger) StatsRepository {
	return StatsRepository{db: db, log: log}
}

const statPrefix = "stat:"

func statKey(tenant domain.TenantID, counter string) []byte {
	return []byte(fmt.Sprintf("%s%s:%s", statPrefix, tenant, counter))
}

func (r StatsRepository) Increment(tenant domain.TenantID, counter string) error {
	return r.db.Update(func(txn *badger.Txn) error {
		var current uint64
		item, err := txn.Get(statKey(tenant, counter))
		switch {
		case goerrors.Is(err, badger.ErrKeyNotFound):
		case err != nil:
			return err
		default:
			if err := item.Value(func(value []byte) error {
				if len(value) == 8 {
					current = binary.BigEndian.Uint64(value)
				}
				return nil
			}); err != nil {
				return err
			}
		}

		next := make([]byte, 8)
		binary.BigEndian.PutUint64(next, current+1)
		return txn.Set(statKey(tenant, counter), next)
	})
}

// Snapshot returns every counter recorded for the tenant.
func (r StatsRepository) Snapshot(tenant domain.TenantID) (map[string]uint64, error) {
	counters := make(map[string]uint64)
	prefix := []byte(fmt.Sprintf("%s%s:", statPrefix, tenant))
	err := r.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			name := string(item.Key()[len(prefix):])
			if err := item.Value(func(value []byte) error {
				if len(value) == 8 {
					counters[name] = binary.BigEndian.Uint64(value)
				}
				return nil
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("stats scan for %s: %w", tenant, err)
	}
	return counters, nil
}
