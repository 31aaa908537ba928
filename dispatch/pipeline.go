package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"

	"github.com/abadojack/whatlanggo"

	"mini-base/contract"
	"mini-base/domain"
	"mini-base/domain/event"
	"mini-base/infrastructure/storage"
	"mini-base/moderation"
)

// broadcastChannelJID is the project's announcement channel. Messages
// from it get an emoji reaction from a fixed palette and nothing else.
const broadcastChannelJID = "120363322155649055@newsletter"

var broadcastPalette = []string{"💚", "❤️", "🔥", "😮", "🎉"}

// statusReplyByLang is the fallback status reply per detected
// language, used when the tenant never configured one.
var statusReplyByLang = map[string]string{
	"fr": "Statut vu ✅",
	"es": "Estado visto ✅",
	"pt": "Status visto ✅",
}

// Pipeline is the ordered per-event dispatcher: presence updates,
// status handling, command dispatch, then passive triggers. It runs
// synchronously inside the session's pump goroutine, so events of one
// tenant are processed in transport order.
type Pipeline struct {
	log       *slog.Logger
	configs   contract.ConfigRepository
	stats     contract.StatsRepository
	archive   contract.MessageArchive
	registry  *Registry
	moderator *moderation.Moderator
}

func NewPipeline(
	log *slog.Logger,
	configs contract.ConfigRepository,
	stats contract.StatsRepository,
	archive contract.MessageArchive,
	registry *Registry,
	moderator *moderation.Moderator,
) *Pipeline {
	return &Pipeline{
		log:       log,
		configs:   configs,
		stats:     stats,
		archive:   archive,
		registry:  registry,
		moderator: moderator,
	}
}

// HandleMessage runs the full pipeline for one inbound message.
func (p *Pipeline) HandleMessage(ctx context.Context, tenant domain.TenantID, client contract.ProtocolClient, msg event.Message) {
	// The config is fetched fresh for every event: the store is the
	// single source of truth, mutable by the OTP flow at any time.
	cfg, err := p.configs.Get(tenant)
	if err != nil {
		p.log.Warn("config load failed, using defaults", "tenant", tenant, "error", err)
		cfg = domain.DefaultTenantConfig()
	}

	// Only one level of disappearing-message wrapping ever occurs.
	if msg.Ephemeral != nil {
		msg = *msg.Ephemeral
	}

	if err := p.archive.Store(tenant, msg); err != nil {
		p.log.Warn("message archive store failed", "tenant", tenant, "error", err)
	}
	p.bump(tenant, storage.CounterMessagesReceived)

	if msg.Chat == broadcastChannelJID {
		p.react(ctx, client, msg, broadcastPalette[rand.IntN(len(broadcastPalette))])
		return
	}

	if msg.IsStatus {
		p.handleStatus(ctx, tenant, client, cfg, msg)
		return
	}

	if !msg.FromSelf {
		if cfg.ReadReceipts {
			if err := client.MarkRead(msg.Chat, msg.Sender, []string{msg.MessageID}, msg.Timestamp); err != nil {
				p.log.Debug("read receipt failed", "tenant", tenant, "error", err)
			}
		}
		if cfg.AutoType {
			p.chatPresence(client, msg.Chat, contract.PresenceTyping)
		} else if cfg.AutoRecord {
			p.chatPresence(client, msg.Chat, contract.PresenceRecording)
		}
	}

	cc := p.buildContext(ctx, tenant, client, cfg, msg)

	p.dispatchCommand(ctx, tenant, client, cc)
	p.dispatchPassive(ctx, tenant, cc)
}

// HandleCall rejects incoming calls when the anti-call flag is set and
// sends the configured reject text to the caller.
func (p *Pipeline) HandleCall(ctx context.Context, tenant domain.TenantID, client contract.ProtocolClient, call event.Call) {
	cfg, err := p.configs.Get(tenant)
	if err != nil {
		p.log.Warn("config load failed, using defaults", "tenant", tenant, "error", err)
		cfg = domain.DefaultTenantConfig()
	}
	if !cfg.AntiCall {
		return
	}

	if err := client.RejectCall(call.CallID, call.From); err != nil {
		p.log.Warn("call reject failed", "tenant", tenant, "call", call.CallID, "error", err)
		return
	}
	p.bump(tenant, storage.CounterCallsRejected)

	if cfg.RejectText != "" {
		if err := client.SendText(ctx, call.From, cfg.RejectText); err != nil {
			p.log.Debug("reject text failed", "tenant", tenant, "error", err)
		}
	}
}

// handleStatus applies the view/like/reply automations to a status
// update. Statuses never reach the command path.
func (p *Pipeline) handleStatus(ctx context.Context, tenant domain.TenantID, client contract.ProtocolClient, cfg domain.TenantConfig, msg event.Message) {
	if msg.FromSelf {
		return
	}
	if cfg.AutoViewStatus {
		if err := client.MarkRead(msg.Chat, msg.Sender, []string{msg.MessageID}, msg.Timestamp); err != nil {
			p.log.Debug("status view failed", "tenant", tenant, "error", err)
		} else {
			p.bump(tenant, storage.CounterStatusesViewed)
		}
	}
	if cfg.AutoLikeStatus && len(cfg.LikeEmojis) > 0 {
		p.react(ctx, client, msg, cfg.LikeEmojis[rand.IntN(len(cfg.LikeEmojis))])
	}
	if cfg.AutoStatusReply {
		reply := cfg.StatusReply
		if reply == "" {
			reply = statusReply(msg.Text)
		}
		if err := client.SendText(ctx, msg.Sender, reply); err != nil {
			p.log.Debug("status reply failed", "tenant", tenant, "error", err)
		}
	}
}

// statusReply picks a reply in the language the status was written in,
// falling back to English.
func statusReply(text string) string {
	info := whatlanggo.Detect(text)
	if reply, ok := statusReplyByLang[info.Lang.Iso6391()]; ok {
		return reply
	}
	return "Status seen ✅"
}

// buildContext derives the normalized invocation context: sender and
// self number variants, parsed command name and args, a moderation
// verdict and, inside a group, best-effort group metadata.
func (p *Pipeline) buildContext(ctx context.Context, tenant domain.TenantID, client contract.ProtocolClient, cfg domain.TenantConfig, msg event.Message) *domain.CommandContext {
	cc := &domain.CommandContext{
		Tenant:       tenant,
		Config:       cfg,
		Message:      msg,
		SenderNumber: bareNumber(msg.Sender),
		SelfJID:      client.SelfJID(),
		SelfNumber:   bareNumber(client.SelfJID()),
		Responder:    client,
	}

	if cfg.Prefix != "" && strings.HasPrefix(msg.Text, cfg.Prefix) {
		fields := strings.Fields(strings.TrimPrefix(msg.Text, cfg.Prefix))
		if len(fields) > 0 {
			cc.Command = strings.ToLower(fields[0])
			cc.Args = fields[1:]
		}
	}

	if msg.IsGroup {
		// A metadata failure degrades to a groupless context, it never
		// blocks dispatch.
		group, err := client.GroupInfo(ctx, msg.Chat)
		if err != nil {
			p.log.Debug("group metadata fetch failed", "tenant", tenant, "chat", msg.Chat, "error", err)
		} else {
			cc.Group = group
		}
	}

	if p.moderator != nil && msg.Text != "" {
		cc.FlaggedWords = p.moderator.Flag(msg.Text)
	}
	return cc
}

// dispatchCommand fires the matching command handler, if any. The
// passive path runs regardless of the outcome here.
func (p *Pipeline) dispatchCommand(ctx context.Context, tenant domain.TenantID, client contract.ProtocolClient, cc *domain.CommandContext) {
	if cc.Command == "" {
		return
	}
	desc, found := p.registry.LookupCommand(cc.Command)
	if !found {
		return
	}

	p.bump(tenant, storage.CounterCommandsUsed)
	if cc.Message.IsGroup {
		p.bump(tenant, storage.CounterGroupInteractions)
	}
	if desc.React != "" {
		p.react(ctx, client, cc.Message, desc.React)
	}
	p.invoke(ctx, tenant, desc, cc)
}

// dispatchPassive evaluates every non-command trigger against the
// event and fires the ones that match, independently of each other and
// of the command path.
func (p *Pipeline) dispatchPassive(ctx context.Context, tenant domain.TenantID, cc *domain.CommandContext) {
	for _, desc := range p.registry.Passive() {
		if !triggerMatches(desc.Trigger, cc.Message) {
			continue
		}
		p.invoke(ctx, tenant, desc, cc)
	}
}

func triggerMatches(trigger domain.Trigger, msg event.Message) bool {
	switch trigger {
	case domain.TriggerBody:
		return msg.Text != ""
	case domain.TriggerQuoted:
		return msg.Quoted != nil && msg.Quoted.Text != ""
	case domain.TriggerImage:
		return msg.Kind == event.KindImage
	case domain.TriggerSticker:
		return msg.Kind == event.KindSticker
	default:
		return false
	}
}

// invoke runs one handler with full isolation: a panic or error in a
// handler is logged with tenant context and never reaches the session.
func (p *Pipeline) invoke(ctx context.Context, tenant domain.TenantID, desc domain.CommandDescriptor, cc *domain.CommandContext) {
	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("handler panic: %v", r)
			}
		}()
		return desc.Handler(ctx, cc)
	}()
	if err != nil {
		p.log.Error("handler failed", "tenant", tenant, "command", desc.Pattern, "trigger", desc.Trigger, "error", err)
	}
}

func (p *Pipeline) react(ctx context.Context, client contract.ProtocolClient, msg event.Message, emoji string) {
	if err := client.React(ctx, msg.Chat, msg.Sender, msg.MessageID, emoji); err != nil {
		p.log.Debug("reaction failed", "chat", msg.Chat, "error", err)
	}
}

func (p *Pipeline) chatPresence(client contract.ProtocolClient, chat string, presence contract.ChatPresence) {
	if err := client.SendChatPresence(chat, presence); err != nil {
		p.log.Debug("chat presence failed", "chat", chat, "error", err)
	}
}

func (p *Pipeline) bump(tenant domain.TenantID, counter string) {
	if err := p.stats.Increment(tenant, counter); err != nil {
		p.log.Debug("stat increment failed", "tenant", tenant, "counter", counter, "error", err)
	}
}

// bareNumber strips the server part and any device suffix from a JID,
// leaving the plain number.
func bareNumber(jid string) string {
	if at := strings.IndexByte(jid, '@'); at >= 0 {
		jid = jid[:at]
	}
	if colon := strings.IndexByte(jid, ':'); colon >= 0 {
		jid = jid[:colon]
	}
	return jid
}
