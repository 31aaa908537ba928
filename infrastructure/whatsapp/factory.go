package whatsapp

import (
	"context"
	"fmt"
	"log/slog"

	_ "modernc.org/sqlite"

	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/store/sqlstore"

	"mini-base/contract"
	"mini-base/domain"
	"mini-base/infrastructure/storage"
)

// Factory builds one whatsmeow client per tenant, backed by the
// tenant's cached credential file. The supervisor owns the file's
// lifecycle; the factory only opens it.
type Factory struct {
	log   *slog.Logger
	cache *storage.CredentialCache
}

func NewFactory(log *slog.Logger, cache *storage.CredentialCache) *Factory {
	return &Factory{log: log, cache: cache}
}

func (f *Factory) New(_ context.Context, tenant domain.TenantID, freshPairing bool) (contract.ProtocolClient, error) {
	if freshPairing {
		// A stale session file would make whatsmeow resume instead of
		// requesting a pairing code.
		if err := f.cache.Purge(tenant); err != nil {
			return nil, fmt.Errorf("purge stale cache for %s: %w", tenant, err)
		}
	}

	log := f.log.With("tenant", tenant)
	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(10000)", f.cache.Path(tenant))
	container, err := sqlstore.New("sqlite", dsn, newWALogger(log.With("module", "sqlstore")))
	if err != nil {
		return nil, fmt.Errorf("open session store for %s: %w", tenant, err)
	}

	device, err := container.GetFirstDevice()
	if err != nil {
		return nil, fmt.Errorf("load device for %s: %w", tenant, err)
	}

	wm := whatsmeow.NewClient(device, newWALogger(log.With("module", "client")))
	// Reconnects belong to the session supervisor, whatsmeow must not
	// race it with its own retry loop.
	wm.EnableAutoReconnect = false
	return newClient(log, tenant, wm), nil
}
