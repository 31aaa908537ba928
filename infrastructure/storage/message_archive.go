package storage

import (
	"context"
	"encoding/json"
	goerrors "errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/blugelabs/bluge"
	"github.com/dgraph-io/badger/v4"

	"mini-base/domain"
	"mini-base/domain/event"
)

// MessageArchive remembers recently seen messages. The hot path is an
// in-memory ring per tenant (the protocol client's message-lookup
// callback); BadgerDB keeps a TTL-bounded copy so anti-delete re-fetch
// survives a restart, and Bluge indexes the text for history search.
type MessageArchive struct {
	mu       sync.RWMutex
	db       *badger.DB
	index    *bluge.Writer
	log      *slog.Logger
	ringSize int
	recent   map[domain.TenantID][]event.Message
	ttl      time.Duration
}

func NewMessageArchive(db *badger.DB, index *bluge.Writer, log *slog.Logger, ringSize int, ttl time.Duration) *MessageArchive {
	return &MessageArchive{
		db:       db,
		index:    index,
		log:      log,
		ringSize: ringSize,
		recent:   make(map[domain.TenantID][]event.Message),
		ttl:      ttl,
	}
}

func archiveKey(tenant domain.TenantID, messageID string) []byte {
	return []byte(fmt.Sprintf("msg:%s:%s", tenant, messageID))
}

// archiveTimeKey orders messages chronologically with 19-digit zero
// padding so a prefix scan walks them lexicographically by time.
func archiveTimeKey(tenant domain.TenantID, at time.Time, messageID string) []byte {
	return []byte(fmt.Sprintf("msgt:%s:%019d:%s", tenant, at.UnixNano(), messageID))
}

// storedMessage is the persisted projection of an event.Message.
// Media download closures and ephemeral wrappers are dropped: the
// archive only ever needs identity and text.
type storedMessage struct {
	MessageID string            `json:"message_id"`
	Chat      string            `json:"chat"`
	Sender    string            `json:"sender"`
	PushName  string            `json:"push_name,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
	Kind      event.MessageKind `json:"kind"`
	Text      string            `json:"text,omitempty"`
	IsGroup   bool              `json:"is_group,omitempty"`
}

func toStored(msg event.Message) storedMessage {
	return storedMessage{
		MessageID: msg.MessageID,
		Chat:      msg.Chat,
		Sender:    msg.Sender,
		PushName:  msg.PushName,
		Timestamp: msg.Timestamp,
		Kind:      msg.Kind,
		Text:      msg.Text,
		IsGroup:   msg.IsGroup,
	}
}

func fromStored(s storedMessage) event.Message {
	return event.Message{
		MessageID: s.MessageID,
		Chat:      s.Chat,
		Sender:    s.Sender,
		PushName:  s.PushName,
		Timestamp: s.Timestamp,
		Kind:      s.Kind,
		Text:      s.Text,
		IsGroup:   s.IsGroup,
	}
}

func (a *MessageArchive) Store(tenant domain.TenantID, msg event.Message) error {
	a.mu.Lock()
	ring := append(a.recent[tenant], msg)
	if len(ring) > a.ringSize {
		ring = ring[len(ring)-a.ringSize:]
	}
	a.recent[tenant] = ring
	a.mu.Unlock()

	bytes, err := json.Marshal(toStored(msg))
	if err != nil {
		return err
	}
	err = a.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry(archiveKey(tenant, msg.MessageID), bytes).WithTTL(a.ttl)
		if err := txn.SetEntry(entry); err != nil {
			return err
		}
		marker := badger.NewEntry(archiveTimeKey(tenant, msg.Timestamp, msg.MessageID), nil).WithTTL(a.ttl)
		return txn.SetEntry(marker)
	})
	if err != nil {
		return fmt.Errorf("archive write for %s: %w", tenant, err)
	}

	if msg.Text != "" {
		doc := bluge.NewDocument(fmt.Sprintf("%s:%s", tenant, msg.MessageID)).
			AddField(bluge.NewKeywordField("tenant", tenant.String()).StoreValue()).
			AddField(bluge.NewKeywordField("message_id", msg.MessageID).StoreValue()).
			AddField(bluge.NewTextField("text", msg.Text))
		if err := a.index.Update(doc.ID(), doc); err != nil {
			// Search degrades, the archive itself stays usable.
			a.log.Warn("archive index update failed", "tenant", tenant, "error", err)
		}
	}
	return nil
}

// Lookup serves the client's message re-fetch callback: ring first,
// then the persisted copy.
func (a *MessageArchive) Lookup(tenant domain.TenantID, messageID string) (event.Message, bool) {
	a.mu.RLock()
	ring := a.recent[tenant]
	for i := len(ring) - 1; i >= 0; i-- {
		if ring[i].MessageID == messageID {
			msg := ring[i]
			a.mu.RUnlock()
			return msg, true
		}
	}
	a.mu.RUnlock()

	var stored storedMessage
	err := a.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(archiveKey(tenant, messageID))
		if err != nil {
			return err
		}
		return item.Value(func(value []byte) error {
			return json.Unmarshal(value, &stored)
		})
	})
	if goerrors.Is(err, badger.ErrKeyNotFound) {
		return event.Message{}, false
	}
	if err != nil {
		a.log.Warn("archive lookup failed", "tenant", tenant, "message_id", messageID, "error", err)
		return event.Message{}, false
	}
	return fromStored(stored), true
}

// Search runs a full-text match over the tenant's archived history.
func (a *MessageArchive) Search(ctx context.Context, tenant domain.TenantID, query string, limit int) ([]event.Message, error) {
	reader, err := a.index.Reader()
	if err != nil {
		return nil, fmt.Errorf("archive reader: %w", err)
	}
	defer func() { _ = reader.Close() }()

	q := bluge.NewBooleanQuery().
		AddMust(bluge.NewMatchQuery(query).SetField("text")).
		AddMust(bluge.NewTermQuery(tenant.String()).SetField("tenant"))

	iterator, err := reader.Search(ctx, bluge.NewTopNSearch(limit, q))
	if err != nil {
		return nil, fmt.Errorf("archive search: %w", err)
	}

	var messages []event.Message
	for match, err := iterator.Next(); match != nil; match, err = iterator.Next() {
		if err != nil {
			return nil, err
		}
		var messageID string
		if err := match.VisitStoredFields(func(field string, value []byte) bool {
			if field == "message_id" {
				messageID = string(value)
			}
			return true
		}); err != nil {
			return nil, err
		}
		if msg, ok := a.Lookup(tenant, messageID); ok {
			messages = append(messages, msg)
		}
	}
	return messages, nil
}
