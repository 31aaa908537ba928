package domain

import (
	"context"

	"mini-base/domain/event"
)

// Responder is the slice of session operations a command handler may
// use to answer. The live protocol client satisfies it.
type Responder interface {
	SendText(ctx context.Context, to string, text string) error
	React(ctx context.Context, chat, sender, messageID, emoji string) error
}

// Trigger selects when a registered command fires.
type Trigger string

const (
	// TriggerCommand fires on `<prefix><pattern>` text, matched by
	// exact pattern or alias.
	TriggerCommand Trigger = "command"
	// Passive triggers are evaluated on every non-status message,
	// independently of command matching; both paths may fire for the
	// same event.
	TriggerBody    Trigger = "body"
	TriggerQuoted  Trigger = "quoted"
	TriggerImage   Trigger = "image"
	TriggerSticker Trigger = "sticker"
)

// CommandContext is the normalized invocation context handed to a
// handler: the event, the fresh per-tenant config, identity variants
// and, inside a group, best-effort group metadata.
type CommandContext struct {
	Tenant       TenantID
	Config       TenantConfig
	Message      event.Message
	Command      string
	Args         []string
	SenderNumber string
	SelfJID      string
	SelfNumber   string
	Group        *GroupInfo
	// FlaggedWords lists banned words the moderation pass found in the
	// message body, empty when clean.
	FlaggedWords []string
	Responder    Responder
}

// Reply sends text back to the chat the message came from.
func (c *CommandContext) Reply(ctx context.Context, text string) error {
	return c.Responder.SendText(ctx, c.Message.Chat, text)
}

// Handler is one automation body. Failures are isolated by the
// dispatcher: logged, never propagated.
type Handler func(ctx context.Context, cc *CommandContext) error

// CommandDescriptor is a registered automation unit: a trigger
// predicate, an optional emoji-reaction side effect and a handler.
type CommandDescriptor struct {
	Pattern string
	Aliases []string
	Trigger Trigger
	React   string
	Handler Handler
}

// MatchesName reports whether name equals the pattern or one of its aliases.
func (c CommandDescriptor) MatchesName(name string) bool {
	if c.Pattern == name {
		return true
	}
	for _, alias := range c.Aliases {
		if alias == name {
			return true
		}
	}
	return false
}
