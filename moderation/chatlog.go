package moderation

import (
	"context"
	"fmt"
	"log/slog"
)

// ChatMessage is a message as seen by the chat-log handlers. Content may be
// empty when the gateway could not supply it (uncached deletes).
type ChatMessage struct {
	AuthorID  string
	ChannelID string
	Content   string
}

// HandleMessageDelete publishes a deletion notice to the chat log channel.
// Best-effort, like every log publish.
func (s *Service) HandleMessageDelete(ctx context.Context, m ChatMessage) {
	if s.cfg.LogChatChannel == "" {
		return
	}
	name := fallbackName
	if p, err := s.Person(ctx, m.AuthorID); err == nil && p != nil {
		name = p.Member.DisplayName
	}
	embed := &Embed{
		Title:     "Message Deleted",
		Color:     0xE74C3C,
		Timestamp: s.now(),
		Fields: []EmbedField{
			{Name: "User", Value: name, Inline: true},
			{Name: "Channel", Value: fmt.Sprintf("<#%s>", m.ChannelID), Inline: true},
			{Name: "Message", Value: m.Content},
		},
	}
	if err := s.platform.SendEmbed(ctx, s.cfg.LogChatChannel, embed); err != nil {
		slog.Debug("chat log: delete notice", slog.Any("err", err))
	}
}

// HandleMessageUpdate publishes an edit notice with before/after content.
// Skipped when the author cannot be resolved, matching the edit-log behavior
// of ignoring webhook and departed-member edits.
func (s *Service) HandleMessageUpdate(ctx context.Context, before, after ChatMessage) {
	if s.cfg.LogChatChannel == "" {
		return
	}
	p, err := s.Person(ctx, after.AuthorID)
	if err != nil || p == nil {
		return
	}
	embed := &Embed{
		Title:     "Message Updated",
		Color:     0xF1C40F,
		Timestamp: s.now(),
		Fields: []EmbedField{
			{Name: "User", Value: p.Member.DisplayName, Inline: true},
			{Name: "Channel", Value: fmt.Sprintf("<#%s>", after.ChannelID), Inline: true},
			{Name: "Before", Value: before.Content},
			{Name: "After", Value: after.Content},
		},
	}
	if err := s.platform.SendEmbed(ctx, s.cfg.LogChatChannel, embed); err != nil {
		slog.Debug("chat log: update notice", slog.Any("err", err))
	}
}
