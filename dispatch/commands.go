package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"mini-base/contract"
	"mini-base/domain"
)

// Builtins bundles the stock command set shipped with the gateway.
type Builtins struct {
	Log     *slog.Logger
	Stats   contract.StatsRepository
	Archive contract.MessageArchive
	// Status answers a live status query for the tenant the command
	// came from. Wired to the session registry at startup.
	Status func(tenant domain.TenantID) domain.SessionStatus
}

// Descriptors returns the builtin command and passive-trigger set.
func (b Builtins) Descriptors() []domain.CommandDescriptor {
	return []domain.CommandDescriptor{
		{
			Pattern: "ping",
			Aliases: []string{"p"},
			Trigger: domain.TriggerCommand,
			React:   "🏓",
			Handler: b.ping,
		},
		{
			Pattern: "status",
			Aliases: []string{"stats", "uptime"},
			Trigger: domain.TriggerCommand,
			Handler: b.status,
		},
		{
			Pattern: "search",
			Aliases: []string{"find"},
			Trigger: domain.TriggerCommand,
			Handler: b.search,
		},
		{
			// Anti-delete companion: quoting any archived message sends
			// back its original content, even after a remote delete.
			Pattern: "recall",
			Trigger: domain.TriggerQuoted,
			Handler: b.recall,
		},
		{
			Pattern: "flagged-words",
			Trigger: domain.TriggerBody,
			Handler: b.flaggedWords,
		},
	}
}

func (b Builtins) ping(ctx context.Context, cc *domain.CommandContext) error {
	return cc.Reply(ctx, "pong 🏓")
}

func (b Builtins) status(ctx context.Context, cc *domain.CommandContext) error {
	status := b.Status(cc.Tenant)
	lines := []string{
		fmt.Sprintf("Session %s", cc.Tenant),
		fmt.Sprintf("Connected: %v", status.Connected),
	}
	if status.Connected {
		lines = append(lines, fmt.Sprintf("Uptime: %s", status.Uptime.Round(1e9)))
	}

	snapshot, err := b.Stats.Snapshot(cc.Tenant)
	if err != nil {
		b.Log.Warn("stats snapshot failed", "tenant", cc.Tenant, "error", err)
	} else {
		for counter, value := range snapshot {
			lines = append(lines, fmt.Sprintf("%s: %d", counter, value))
		}
	}
	return cc.Reply(ctx, strings.Join(lines, "\n"))
}

func (b Builtins) search(ctx context.Context, cc *domain.CommandContext) error {
	query := strings.Join(cc.Args, " ")
	if query == "" {
		return cc.Reply(ctx, "Usage: "+cc.Config.Prefix+"search <text>")
	}

	hits, err := b.Archive.Search(ctx, cc.Tenant, query, 5)
	if err != nil {
		return fmt.Errorf("archive search: %w", err)
	}
	if len(hits) == 0 {
		return cc.Reply(ctx, "No archived message matches \""+query+"\"")
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d match(es) for \"%s\":\n", len(hits), query)
	for _, hit := range hits {
		name := hit.PushName
		if name == "" {
			name = hit.Sender
		}
		fmt.Fprintf(&sb, "• %s: %s\n", name, hit.Text)
	}
	return cc.Reply(ctx, sb.String())
}

// recall re-fetches the quoted message's original content from the
// archive when the quote trails a ".recall" marker.
func (b Builtins) recall(ctx context.Context, cc *domain.CommandContext) error {
	if !strings.EqualFold(strings.TrimSpace(cc.Message.Text), cc.Config.Prefix+"recall") {
		return nil
	}
	original, found := b.Archive.Lookup(cc.Tenant, cc.Message.Quoted.MessageID)
	if !found {
		return cc.Reply(ctx, "Original message is not in the archive anymore")
	}
	return cc.Reply(ctx, "Original message:\n"+original.Text)
}

// flaggedWords answers when the moderation pass found banned words.
func (b Builtins) flaggedWords(ctx context.Context, cc *domain.CommandContext) error {
	if len(cc.FlaggedWords) == 0 || cc.Message.FromSelf {
		return nil
	}
	b.Log.Info("banned words detected",
		"tenant", cc.Tenant, "chat", cc.Message.Chat, "words", cc.FlaggedWords)
	return cc.Reply(ctx, "⚠️ Please keep it clean")
}
