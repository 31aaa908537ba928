package dispatch

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"mini-base/domain"
	"mini-base/domain/event"
)

func builtinsHarness() (*pipelineHarness, Builtins) {
	h := newPipelineHarness()
	builtins := Builtins{
		Log:     slog.Default(),
		Stats:   h.stats,
		Archive: h.archive,
		Status: func(tenant domain.TenantID) domain.SessionStatus {
			return domain.SessionStatus{Tenant: tenant, Connected: true, Uptime: 90 * time.Second}
		},
	}
	h.registry.Register(builtins.Descriptors()...)
	return h, builtins
}

func TestBuiltin_Ping(t *testing.T) {
	req := require.New(t)
	h, _ := builtinsHarness()

	h.pipeline.HandleMessage(context.Background(), testTenant, h.session, textMessage(".ping"))

	req.Contains(h.session.sent, "33687654321@s.whatsapp.net|pong 🏓")
	req.Contains(h.session.reacts, "33687654321@s.whatsapp.net|🏓")
}

func TestBuiltin_Status_Reports_Counters(t *testing.T) {
	req := require.New(t)
	h, _ := builtinsHarness()
	req.NoError(h.stats.Increment(testTenant, "commands_used"))

	h.pipeline.HandleMessage(context.Background(), testTenant, h.session, textMessage(".status"))

	req.Len(h.session.sent, 1)
	req.Contains(h.session.sent[0], "Connected: true")
	req.Contains(h.session.sent[0], "Uptime: 1m30s")
	req.Contains(h.session.sent[0], "commands_used")
}

func TestBuiltin_Search(t *testing.T) {
	req := require.New(t)
	h, _ := builtinsHarness()

	archived := textMessage("the badger escaped again")
	archived.MessageID = "OLD-1"
	archived.PushName = "Alice"
	req.NoError(h.archive.Store(testTenant, archived))

	h.pipeline.HandleMessage(context.Background(), testTenant, h.session, textMessage(".search badger"))

	req.NotEmpty(h.session.sent)
	last := h.session.sent[len(h.session.sent)-1]
	req.Contains(last, "Alice")
	req.Contains(last, "the badger escaped again")
}

func TestBuiltin_Search_Without_Query_Prints_Usage(t *testing.T) {
	req := require.New(t)
	h, _ := builtinsHarness()

	h.pipeline.HandleMessage(context.Background(), testTenant, h.session, textMessage(".search"))

	req.Len(h.session.sent, 1)
	req.Contains(h.session.sent[0], "Usage: .search")
}

func TestBuiltin_Recall_Refetches_Quoted_Original(t *testing.T) {
	req := require.New(t)
	h, _ := builtinsHarness()

	original := textMessage("secret text they deleted")
	original.MessageID = "OLD-1"
	req.NoError(h.archive.Store(testTenant, original))

	// When a message quotes the original with the recall marker
	msg := textMessage(".recall")
	msg.Quoted = &event.Quoted{MessageID: "OLD-1", Text: "secret text they deleted"}
	h.pipeline.HandleMessage(context.Background(), testTenant, h.session, msg)

	req.NotEmpty(h.session.sent)
	req.Contains(h.session.sent[len(h.session.sent)-1], "secret text they deleted")
}
