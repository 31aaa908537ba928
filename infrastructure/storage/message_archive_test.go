package storage

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mama165/sdk-go/database"
	"github.com/stretchr/testify/require"

	"mini-base/domain"
	"mini-base/domain/event"
)

func archivedMessage(text string) event.Message {
	return event.Message{
		MessageID: uuid.NewString(),
		Chat:      "33687654321@s.whatsapp.net",
		Sender:    "33687654321@s.whatsapp.net",
		PushName:  "Alice",
		Timestamp: time.Now().UTC(),
		Kind:      event.KindText,
		Text:      text,
	}
}

func Test_Archive_Lookup_From_Ring_And_Disk(t *testing.T) {
	req := require.New(t)
	_, log, badgerDB, blugeWriter, err := database.SetupBenchmark(database.DefaultPath)
	req.NoError(err)
	defer database.CleanupDB(badgerDB, blugeWriter)

	archive := NewMessageArchive(badgerDB, blugeWriter, log, 2, time.Hour)
	tenant := domain.TenantID("33612345678")

	first := archivedMessage("first message")
	req.NoError(archive.Store(tenant, first))

	// Ring hit
	found, ok := archive.Lookup(tenant, first.MessageID)
	req.True(ok)
	req.Equal(first.Text, found.Text)

	// When the ring overflows, the oldest message falls back to disk
	req.NoError(archive.Store(tenant, archivedMessage("second")))
	req.NoError(archive.Store(tenant, archivedMessage("third")))

	found, ok = archive.Lookup(tenant, first.MessageID)
	req.True(ok)
	req.Equal("first message", found.Text)

	// Unknown ids miss cleanly
	_, ok = archive.Lookup(tenant, uuid.NewString())
	req.False(ok)
}

func Test_Archive_Search_Is_Tenant_Scoped(t *testing.T) {
	req := require.New(t)
	_, log, badgerDB, blugeWriter, err := database.SetupBenchmark(database.DefaultPath)
	req.NoError(err)
	defer database.CleanupDB(badgerDB, blugeWriter)

	archive := NewMessageArchive(badgerDB, blugeWriter, log, 10, time.Hour)

	for i := 0; i < 3; i++ {
		req.NoError(archive.Store("33611111111", archivedMessage(fmt.Sprintf("invoice number %d", i))))
	}
	req.NoError(archive.Store("33622222222", archivedMessage("invoice from the other tenant")))
	time.Sleep(50 * time.Millisecond)

	results, err := archive.Search(context.Background(), "33611111111", "invoice", 10)
	req.NoError(err)
	req.Len(results, 3)
	for _, msg := range results {
		req.Contains(msg.Text, "invoice number")
	}
}
