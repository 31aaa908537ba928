package contract

import (
	"context"
	"reflect"
	"time"

	"mini-base/domain"
	"mini-base/domain/event"
)

// ChatPresence is the composing indicator shown to the remote party.
type ChatPresence string

const (
	PresenceTyping    ChatPresence = "composing"
	PresenceRecording ChatPresence = "recording"
	PresencePaused    ChatPresence = "paused"
)

// ProtocolClient is one live connection to the messaging service.
// The concrete implementation lives in infrastructure/whatsapp; the
// core treats the protocol as opaque and only consumes the normalized
// event stream.
type ProtocolClient interface {
	domain.Responder

	Connect() error
	Disconnect()
	Logout(ctx context.Context) error
	IsConnected() bool
	SelfJID() string

	// PairPhone requests a pairing code for a first-time link.
	PairPhone(ctx context.Context, number string) (string, error)

	MarkRead(chat, sender string, ids []string, at time.Time) error
	SendPresence(available bool) error
	SendChatPresence(chat string, presence ChatPresence) error
	RejectCall(callID, from string) error
	GroupInfo(ctx context.Context, jid string) (*domain.GroupInfo, error)

	// Events delivers normalized events in transport order. The channel
	// is closed when the connection is torn down for good.
	Events() <-chan event.Event
}

// ClientFactory builds a ProtocolClient for one tenant. freshPairing
// signals that no stored credential exists and the client must request
// a pairing code instead of resuming.
type ClientFactory interface {
	New(ctx context.Context, tenant domain.TenantID, freshPairing bool) (ProtocolClient, error)
}

// ResultSink receives the single result of a connect attempt. System
// initiated connects pass a DiscardSink.
type ResultSink interface {
	Deliver(result domain.ConnectResult)
}

// DiscardSink drops every result. Used by background reconnects and
// fleet-wide bulk connects.
type DiscardSink struct{}

func (DiscardSink) Deliver(domain.ConnectResult) {}

// CredentialRepository stores the opaque serialized authentication
// state of each tenant. The store copy is authoritative; the local
// filesystem copy is a disposable cache.
type CredentialRepository interface {
	Get(tenant domain.TenantID) ([]byte, error)
	Save(tenant domain.TenantID, blob []byte) error
	Delete(tenant domain.TenantID) error
}

// CredentialCache is the disposable local-filesystem copy of a
// tenant's credential blob. The store is authoritative: the cache is
// rewritten from it on every restore and discarded on process restart.
type CredentialCache interface {
	Write(tenant domain.TenantID, blob []byte) error
	Read(tenant domain.TenantID) ([]byte, error)
	Purge(tenant domain.TenantID) error
	PurgeAll() error
}

// RosterRepository keeps the roster of known tenant identifiers.
type RosterRepository interface {
	Add(tenant domain.TenantID) error
	Remove(tenant domain.TenantID) error
	List() ([]domain.TenantID, error)
}

// ConfigRepository serves per-tenant automation flags.
type ConfigRepository interface {
	Get(tenant domain.TenantID) (domain.TenantConfig, error)
	Update(tenant domain.TenantID, delta domain.ConfigDelta) (domain.TenantConfig, error)
}

// OTPRepository persists pending verification codes. Verify consumes
// the code atomically on success.
type OTPRepository interface {
	Save(otp domain.PendingOTP) error
	Verify(tenant domain.TenantID, code string, now time.Time) (domain.ConfigDelta, error)
}

// StatsRepository tracks best-effort per-tenant usage counters.
type StatsRepository interface {
	Increment(tenant domain.TenantID, counter string) error
	Snapshot(tenant domain.TenantID) (map[string]uint64, error)
}

// MessageArchive remembers recently seen messages for anti-delete
// re-fetch and history search.
type MessageArchive interface {
	Store(tenant domain.TenantID, msg event.Message) error
	Lookup(tenant domain.TenantID, messageID string) (event.Message, bool)
	Search(ctx context.Context, tenant domain.TenantID, query string, limit int) ([]event.Message, error)
}

type WorkerName string

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}
