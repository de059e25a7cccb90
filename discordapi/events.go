package discordapi

import (
	"context"
	"log/slog"

	"github.com/bwmarrin/discordgo"

	"github.com/onnwee/sentry/moderation"
)

// emojiKey returns the stable identity for an emoji: the custom-emoji ID, or
// the unicode emoji itself for built-ins.
func emojiKey(e discordgo.Emoji) string {
	if e.ID != "" {
		return e.ID
	}
	return e.Name
}

// BindHandlers registers gateway event handlers that feed the moderation
// engine. The context bounds all handler work; handlers become no-ops once
// it is cancelled.
func (c *Client) BindHandlers(ctx context.Context, svc *moderation.Service) {
	c.s.AddHandler(func(_ *discordgo.Session, r *discordgo.Ready) {
		svc.SetBotID(r.User.ID)
		slog.Info("gateway ready", slog.String("bot_id", r.User.ID))
	})

	c.s.AddHandler(func(_ *discordgo.Session, r *discordgo.MessageReactionAdd) {
		if ctx.Err() != nil {
			return
		}
		svc.HandleReactionAdd(ctx, moderation.ReactionEvent{
			ReactorID: r.UserID,
			ChannelID: r.ChannelID,
			MessageID: r.MessageID,
			EmojiID:   emojiKey(r.Emoji),
		})
	})

	c.s.AddHandler(func(_ *discordgo.Session, m *discordgo.MessageDelete) {
		if ctx.Err() != nil {
			return
		}
		// Content only survives when the message was in the state cache.
		msg := moderation.ChatMessage{ChannelID: m.ChannelID}
		if m.BeforeDelete != nil {
			msg.Content = m.BeforeDelete.ContentWithMentionsReplaced()
			if m.BeforeDelete.Author != nil {
				msg.AuthorID = m.BeforeDelete.Author.ID
			}
		}
		if msg.AuthorID == "" {
			return
		}
		svc.HandleMessageDelete(ctx, msg)
	})

	c.s.AddHandler(func(_ *discordgo.Session, m *discordgo.MessageUpdate) {
		if ctx.Err() != nil || m.Author == nil {
			return
		}
		before := moderation.ChatMessage{ChannelID: m.ChannelID}
		if m.BeforeUpdate != nil {
			before.Content = m.BeforeUpdate.ContentWithMentionsReplaced()
			if m.BeforeUpdate.Author != nil {
				before.AuthorID = m.BeforeUpdate.Author.ID
			}
		}
		after := moderation.ChatMessage{
			AuthorID:  m.Author.ID,
			ChannelID: m.ChannelID,
			Content:   m.ContentWithMentionsReplaced(),
		}
		svc.HandleMessageUpdate(ctx, before, after)
	})

	c.s.AddHandler(func(_ *discordgo.Session, v *discordgo.VoiceStateUpdate) {
		if ctx.Err() != nil {
			return
		}
		// Only on joins/moves into a channel; leaving voice needs no re-enforcement.
		if v.ChannelID == "" {
			return
		}
		svc.EnforceVoiceMute(ctx, v.UserID)
	})
}
