package storage

import (
	"log/slog"
	"testing"

	"github.com/mama165/sdk-go/database"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"

	"mini-base/domain"
)

func Test_Config_Defaults_When_Absent(t *testing.T) {
	req := require.New(t)
	_, _, badgerDB, blugeWriter, err := database.SetupBenchmark(database.DefaultPath)
	req.NoError(err)
	defer database.CleanupDB(badgerDB, blugeWriter)

	repository := NewConfigRepository(badgerDB, slog.Default())

	cfg, err := repository.Get("33612345678")
	req.NoError(err)
	req.Equal(domain.DefaultTenantConfig(), cfg)
}

func Test_Config_Update_Merges_And_Persists(t *testing.T) {
	req := require.New(t)
	_, _, badgerDB, blugeWriter, err := database.SetupBenchmark(database.DefaultPath)
	req.NoError(err)
	defer database.CleanupDB(badgerDB, blugeWriter)

	repository := NewConfigRepository(badgerDB, slog.Default())
	tenant := domain.TenantID("33612345678")

	// When two deltas are applied in sequence
	_, err = repository.Update(tenant, domain.ConfigDelta{AutoType: lo.ToPtr(true)})
	req.NoError(err)
	merged, err := repository.Update(tenant, domain.ConfigDelta{Prefix: lo.ToPtr("!")})
	req.NoError(err)

	// Then both survive the merge
	req.True(merged.AutoType)
	req.Equal("!", merged.Prefix)

	// And a fresh read observes the stored state, untouched fields kept
	cfg, err := repository.Get(tenant)
	req.NoError(err)
	req.True(cfg.AutoType)
	req.Equal("!", cfg.Prefix)
	req.Equal(domain.DefaultTenantConfig().RejectText, cfg.RejectText)
}
