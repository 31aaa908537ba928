package whatsapp

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types"
	"google.golang.org/protobuf/proto"

	"mini-base/contract"
	"mini-base/domain"
	"mini-base/domain/event"
)

// Client wraps one whatsmeow connection and exposes it through the
// ProtocolClient contract. Raw whatsmeow events are translated into
// normalized events on the Events channel; nothing protocol-specific
// leaks out.
type Client struct {
	log    *slog.Logger
	tenant domain.TenantID
	wm     *whatsmeow.Client

	mu      sync.Mutex
	events  chan event.Event
	closed  bool
	handler uint32
}

func newClient(log *slog.Logger, tenant domain.TenantID, wm *whatsmeow.Client) *Client {
	c := &Client{
		log:    log,
		tenant: tenant,
		wm:     wm,
		events: make(chan event.Event, 32),
	}
	c.handler = wm.AddEventHandler(c.translate)
	return c
}

func (c *Client) Connect() error {
	return c.wm.Connect()
}

// Disconnect tears down the transport without unlinking the device.
func (c *Client) Disconnect() {
	c.wm.RemoveEventHandler(c.handler)
	c.wm.Disconnect()
	c.closeEvents()
}

// Logout unlinks the device on the remote side, then closes locally.
func (c *Client) Logout(_ context.Context) error {
	err := c.wm.Logout()
	c.wm.RemoveEventHandler(c.handler)
	c.closeEvents()
	return err
}

func (c *Client) IsConnected() bool {
	return c.wm.IsConnected()
}

func (c *Client) SelfJID() string {
	if id := c.wm.Store.ID; id != nil {
		return id.String()
	}
	return ""
}

// PairPhone requests a pairing code for a first-time link. The code is
// entered by the user on the phone.
func (c *Client) PairPhone(_ context.Context, number string) (string, error) {
	code, err := c.wm.PairPhone(number, true, whatsmeow.PairClientChrome, "Chrome (Linux)")
	if err != nil {
		return "", fmt.Errorf("pair phone %s: %w", c.tenant, err)
	}
	return code, nil
}

func (c *Client) SendText(ctx context.Context, to, text string) error {
	jid, err := types.ParseJID(to)
	if err != nil {
		return fmt.Errorf("parse jid %q: %w", to, err)
	}
	_, err = c.wm.SendMessage(ctx, jid, &waE2E.Message{Conversation: proto.String(text)})
	return err
}

func (c *Client) React(ctx context.Context, chat, sender, messageID, emoji string) error {
	chatJID, err := types.ParseJID(chat)
	if err != nil {
		return fmt.Errorf("parse chat jid %q: %w", chat, err)
	}
	senderJID, err := types.ParseJID(sender)
	if err != nil {
		return fmt.Errorf("parse sender jid %q: %w", sender, err)
	}
	reaction := c.wm.BuildReaction(chatJID, senderJID, types.MessageID(messageID), emoji)
	_, err = c.wm.SendMessage(ctx, chatJID, reaction)
	return err
}

func (c *Client) MarkRead(chat, sender string, ids []string, at time.Time) error {
	chatJID, err := types.ParseJID(chat)
	if err != nil {
		return fmt.Errorf("parse chat jid %q: %w", chat, err)
	}
	senderJID, err := types.ParseJID(sender)
	if err != nil {
		return fmt.Errorf("parse sender jid %q: %w", sender, err)
	}
	msgIDs := make([]types.MessageID, len(ids))
	for i, id := range ids {
		msgIDs[i] = types.MessageID(id)
	}
	return c.wm.MarkRead(msgIDs, at, chatJID, senderJID)
}

func (c *Client) SendPresence(available bool) error {
	presence := types.PresenceUnavailable
	if available {
		presence = types.PresenceAvailable
	}
	return c.wm.SendPresence(presence)
}

func (c *Client) SendChatPresence(chat string, presence contract.ChatPresence) error {
	jid, err := types.ParseJID(chat)
	if err != nil {
		return fmt.Errorf("parse chat jid %q: %w", chat, err)
	}
	switch presence {
	case contract.PresenceTyping:
		return c.wm.SendChatPresence(jid, types.ChatPresenceComposing, types.ChatPresenceMediaText)
	case contract.PresenceRecording:
		return c.wm.SendChatPresence(jid, types.ChatPresenceComposing, types.ChatPresenceMediaAudio)
	default:
		return c.wm.SendChatPresence(jid, types.ChatPresencePaused, types.ChatPresenceMediaText)
	}
}

func (c *Client) RejectCall(callID, from string) error {
	fromJID, err := types.ParseJID(from)
	if err != nil {
		return fmt.Errorf("parse caller jid %q: %w", from, err)
	}
	return c.wm.RejectCall(fromJID, callID)
}

func (c *Client) GroupInfo(_ context.Context, jid string) (*domain.GroupInfo, error) {
	groupJID, err := types.ParseJID(jid)
	if err != nil {
		return nil, fmt.Errorf("parse group jid %q: %w", jid, err)
	}
	info, err := c.wm.GetGroupInfo(groupJID)
	if err != nil {
		return nil, err
	}

	group := &domain.GroupInfo{JID: info.JID.String(), Subject: info.Name}
	for _, participant := range info.Participants {
		group.Participants = append(group.Participants, participant.JID.String())
		if participant.IsAdmin || participant.IsSuperAdmin {
			group.Admins = append(group.Admins, participant.JID.String())
		}
	}
	return group, nil
}

func (c *Client) Events() <-chan event.Event {
	return c.events
}

// push delivers an event unless the channel is already closed. A full
// channel drops the event instead of blocking the whatsmeow callback.
func (c *Client) push(evt event.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.events <- evt:
	default:
		c.log.Warn("event channel full, dropping event", "tenant", c.tenant)
	}
}

func (c *Client) closeEvents() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.events)
}
