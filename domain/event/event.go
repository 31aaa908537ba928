// Package event defines the normalized inbound events produced by a
// protocol client adapter. The gateway core only ever sees these types;
// the underlying wire protocol never leaks past the adapter.
package event

import (
	"context"
	"time"
)

// Event is one normalized occurrence on a tenant's session.
type Event interface {
	event()
}

// Connected fires when the transport reaches the open state.
type Connected struct {
	// SelfJID is the address the session is authenticated as.
	SelfJID string
}

// Closed fires when the transport leaves the open state. Code carries
// the protocol status code when the server provided one (401 for an
// unauthorized/unlinked device, 408 for a pairing-code expiry), zero
// otherwise.
type Closed struct {
	Code   int
	Reason string
}

// Status codes observed on Closed events.
const (
	CodeLoggedOut      = 401
	CodePairingTimeout = 408
)

// CredentialsUpdated fires after the client refreshed its local
// authentication state and the cache file is worth persisting again.
type CredentialsUpdated struct{}

// Call fires on an incoming voice or video call offer.
type Call struct {
	CallID string
	From   string
}

// MessageKind classifies a message's primary content.
type MessageKind string

const (
	KindText     MessageKind = "text"
	KindImage    MessageKind = "image"
	KindSticker  MessageKind = "sticker"
	KindVideo    MessageKind = "video"
	KindAudio    MessageKind = "audio"
	KindDocument MessageKind = "document"
)

// MediaRef lazily exposes a message's media payload. Download fetches
// and decrypts the bytes on demand; it may be called at most once per
// dispatch and is nil for non-media messages.
type MediaRef struct {
	Kind     MessageKind
	MimeHint string
	Download func(ctx context.Context) ([]byte, error)
}

// Quoted is the single level of quoted content carried by a reply.
type Quoted struct {
	MessageID string
	Sender    string
	Text      string
	Kind      MessageKind
}

// Message is a normalized inbound message.
type Message struct {
	MessageID string
	Chat      string
	Sender    string
	PushName  string
	Timestamp time.Time
	Kind      MessageKind
	Text      string
	Quoted    *Quoted
	Media     *MediaRef
	IsGroup   bool
	IsStatus  bool
	FromSelf  bool
	// Ephemeral holds the inner message when the event arrived wrapped
	// in a disappearing-message envelope. Only one level is ever set.
	Ephemeral *Message
}

func (Connected) event()          {}
func (Closed) event()             {}
func (CredentialsUpdated) event() {}
func (Call) event()               {}
func (Message) event()            {}
