package storage

import (
	"fmt"
	"os"
	"path/filepath"

	"mini-base/domain"
)

// CredentialCache keeps per-tenant credential files under one
// directory. The protocol client resumes from these files; the badger
// copy stays authoritative and the whole directory is disposable.
type CredentialCache struct {
	dir string
}

func NewCredentialCache(dir string) (*CredentialCache, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("credential cache dir: %w", err)
	}
	return &CredentialCache{dir: dir}, nil
}

// Path returns the cache file location for a tenant. The protocol
// client factory opens this same path.
func (c *CredentialCache) Path(tenant domain.TenantID) string {
	return filepath.Join(c.dir, fmt.Sprintf("%s.db", tenant))
}

func (c *CredentialCache) Write(tenant domain.TenantID, blob []byte) error {
	return os.WriteFile(c.Path(tenant), blob, 0o600)
}

func (c *CredentialCache) Read(tenant domain.TenantID) ([]byte, error) {
	return os.ReadFile(c.Path(tenant))
}

func (c *CredentialCache) Purge(tenant domain.TenantID) error {
	err := os.Remove(c.Path(tenant))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// PurgeAll wipes every cached credential file, called on process exit.
func (c *CredentialCache) PurgeAll() error {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".db" {
			continue
		}
		if err := os.Remove(filepath.Join(c.dir, entry.Name())); err != nil {
			return err
		}
	}
	return nil
}
