package storage

import (
	"log/slog"
	"testing"

	"github.com/mama165/sdk-go/database"
	"github.com/stretchr/testify/require"

	"mini-base/domain"
)

func Test_Stats_Increment_And_Snapshot(t *testing.T) {
	req := require.New(t)
	_, _, badgerDB, blugeWriter, err := database.SetupBenchmark(database.DefaultPath)
	req.NoError(err)
	defer database.CleanupDB(badgerDB, blugeWriter)

	repository := NewStatsRepository(badgerDB, slog.Default())
	tenant := domain.TenantID("33612345678")

	// When counters are bumped
	for i := 0; i < 3; i++ {
		req.NoError(repository.Increment(tenant, CounterMessagesReceived))
	}
	req.NoError(repository.Increment(tenant, CounterCommandsUsed))
	req.NoError(repository.Increment("33699999999", CounterMessagesReceived))

	// Then the snapshot reflects only this tenant
	snapshot, err := repository.Snapshot(tenant)
	req.NoError(err)
	req.Equal(uint64(3), snapshot[CounterMessagesReceived])
	req.Equal(uint64(1), snapshot[CounterCommandsUsed])
	req.Len(snapshot, 2)
}

func Test_Roster_Add_List_Remove(t *testing.T) {
	req := require.New(t)
	_, _, badgerDB, blugeWriter, err := database.SetupBenchmark(database.DefaultPath)
	req.NoError(err)
	defer database.CleanupDB(badgerDB, blugeWriter)

	repository := NewRosterRepository(badgerDB, slog.Default())

	// Given two registered tenants
	req.NoError(repository.Add("33611111111"))
	req.NoError(repository.Add("33622222222"))

	tenants, err := repository.List()
	req.NoError(err)
	req.ElementsMatch([]domain.TenantID{"33611111111", "33622222222"}, tenants)

	// When one is removed twice
	req.NoError(repository.Remove("33611111111"))
	req.NoError(repository.Remove("33611111111"))

	// Then only the other remains
	tenants, err = repository.List()
	req.NoError(err)
	req.Equal([]domain.TenantID{"33622222222"}, tenants)
}
