package whatsapp

import (
	"context"
	"fmt"

	"github.com/gabriel-vasile/mimetype"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"

	"mini-base/domain/event"
)

// translate converts raw whatsmeow events into normalized gateway
// events. Unknown event types are ignored.
func (c *Client) translate(raw interface{}) {
	switch evt := raw.(type) {
	case *events.Connected:
		c.push(event.Connected{SelfJID: c.SelfJID()})
		// The session file changed after a successful handshake, let
		// the supervisor persist it.
		c.push(event.CredentialsUpdated{})
	case *events.PairSuccess:
		c.push(event.CredentialsUpdated{})
	case *events.LoggedOut:
		c.push(event.Closed{Code: event.CodeLoggedOut, Reason: "device logged out"})
	case *events.PairError:
		c.push(event.Closed{Code: event.CodePairingTimeout, Reason: "pairing code expired"})
	case *events.StreamReplaced:
		c.push(event.Closed{Reason: "stream replaced by another client"})
	case *events.TemporaryBan:
		c.push(event.Closed{Reason: fmt.Sprintf("temporary ban: %v", evt.Code)})
	case *events.ClientOutdated:
		c.push(event.Closed{Reason: "client version outdated"})
	case *events.ConnectFailure:
		c.push(event.Closed{Code: int(evt.Reason), Reason: evt.Message})
	case *events.Disconnected:
		c.push(event.Closed{Reason: "transport disconnected"})
	case *events.CallOffer:
		c.push(event.Call{CallID: evt.CallID, From: evt.CallCreator.String()})
	case *events.Message:
		c.push(c.toMessage(evt))
	}
}

// toMessage normalizes one inbound message. A disappearing-message
// envelope keeps its inner content in the Ephemeral field; the
// dispatch pipeline unwraps that single level.
func (c *Client) toMessage(evt *events.Message) event.Message {
	msg := event.Message{
		MessageID: evt.Info.ID,
		Chat:      evt.Info.Chat.String(),
		Sender:    evt.Info.Sender.String(),
		PushName:  evt.Info.PushName,
		Timestamp: evt.Info.Timestamp,
		IsGroup:   evt.Info.IsGroup,
		IsStatus:  evt.Info.Chat == types.StatusBroadcastJID,
		FromSelf:  evt.Info.IsFromMe,
	}

	if wrapper := evt.Message.GetEphemeralMessage(); wrapper != nil {
		inner := msg
		c.fillContent(&inner, wrapper.GetMessage())
		msg.Ephemeral = &inner
		return msg
	}

	c.fillContent(&msg, evt.Message)
	return msg
}

// fillContent classifies the message and extracts text, quoted content
// and a lazy media reference.
func (c *Client) fillContent(msg *event.Message, content *waE2E.Message) {
	switch {
	case content.GetConversation() != "":
		msg.Kind = event.KindText
		msg.Text = content.GetConversation()
	case content.GetExtendedTextMessage() != nil:
		ext := content.GetExtendedTextMessage()
		msg.Kind = event.KindText
		msg.Text = ext.GetText()
		msg.Quoted = quotedFrom(ext.GetContextInfo())
	case content.GetImageMessage() != nil:
		img := content.GetImageMessage()
		msg.Kind = event.KindImage
		msg.Text = img.GetCaption()
		msg.Quoted = quotedFrom(img.GetContextInfo())
		msg.Media = c.mediaRef(event.KindImage, img.GetMimetype(), img)
	case content.GetStickerMessage() != nil:
		sticker := content.GetStickerMessage()
		msg.Kind = event.KindSticker
		msg.Media = c.mediaRef(event.KindSticker, sticker.GetMimetype(), sticker)
	case content.GetVideoMessage() != nil:
		video := content.GetVideoMessage()
		msg.Kind = event.KindVideo
		msg.Text = video.GetCaption()
		msg.Quoted = quotedFrom(video.GetContextInfo())
		msg.Media = c.mediaRef(event.KindVideo, video.GetMimetype(), video)
	case content.GetAudioMessage() != nil:
		audio := content.GetAudioMessage()
		msg.Kind = event.KindAudio
		msg.Media = c.mediaRef(event.KindAudio, audio.GetMimetype(), audio)
	case content.GetDocumentMessage() != nil:
		doc := content.GetDocumentMessage()
		msg.Kind = event.KindDocument
		msg.Text = doc.GetCaption()
		msg.Media = c.mediaRef(event.KindDocument, doc.GetMimetype(), doc)
	default:
		msg.Kind = event.KindText
	}
}

// mediaRef builds a lazy download closure. The mime hint falls back to
// sniffing the downloaded bytes when the message carried none.
func (c *Client) mediaRef(kind event.MessageKind, mimeHint string, media whatsmeow.DownloadableMessage) *event.MediaRef {
	return &event.MediaRef{
		Kind:     kind,
		MimeHint: mimeHint,
		Download: func(context.Context) ([]byte, error) {
			data, err := c.wm.Download(media)
			if err != nil {
				return nil, fmt.Errorf("media download for %s: %w", c.tenant, err)
			}
			if mimeHint == "" {
				mimeHint = mimetype.Detect(data).String()
			}
			return data, nil
		},
	}
}

func quotedFrom(ci *waE2E.ContextInfo) *event.Quoted {
	if ci == nil || ci.GetQuotedMessage() == nil {
		return nil
	}
	quoted := ci.GetQuotedMessage()

	q := &event.Quoted{
		MessageID: ci.GetStanzaID(),
		Sender:    ci.GetParticipant(),
		Kind:      event.KindText,
	}
	switch {
	case quoted.GetConversation() != "":
		q.Text = quoted.GetConversation()
	case quoted.GetExtendedTextMessage() != nil:
		q.Text = quoted.GetExtendedTextMessage().GetText()
	case quoted.GetImageMessage() != nil:
		q.Kind = event.KindImage
		q.Text = quoted.GetImageMessage().GetCaption()
	case quoted.GetVideoMessage() != nil:
		q.Kind = event.KindVideo
		q.Text = quoted.GetVideoMessage().GetCaption()
	case quoted.GetStickerMessage() != nil:
		q.Kind = event.KindSticker
	case quoted.GetAudioMessage() != nil:
		q.Kind = event.KindAudio
	case quoted.GetDocumentMessage() != nil:
		q.Kind = event.KindDocument
		q.Text = quoted.GetDocumentMessage().GetCaption()
	}
	return q
}
