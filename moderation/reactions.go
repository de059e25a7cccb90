package moderation

import (
	"context"
	"log/slog"
)

// ReactionEvent is a reaction-added gateway event reduced to what the
// dispatcher needs. EmojiID is the custom-emoji ID, or the unicode emoji
// itself for built-in emoji.
type ReactionEvent struct {
	ReactorID string
	ChannelID string
	MessageID string
	EmojiID   string
}

// HandleReactionAdd interprets a moderator's reaction as a moderation
// request: the reacted-to message is deleted, and if the emoji is the
// configured mute trigger the author is muted with the message text as
// evidence. Non-moderators and unresolvable reactors are ignored silently;
// no error ever surfaces to the user.
func (s *Service) HandleReactionAdd(ctx context.Context, ev ReactionEvent) {
	reactor, err := s.Person(ctx, ev.ReactorID)
	if err != nil {
		slog.Warn("reaction: load reactor", slog.String("reactor_id", ev.ReactorID), slog.Any("err", err))
		return
	}
	if reactor == nil || !reactor.IsModerator() {
		return
	}

	// Fetch before deleting; the content is the mute evidence.
	msg, err := s.platform.Message(ctx, ev.ChannelID, ev.MessageID)
	if err != nil || msg == nil {
		slog.Debug("reaction: message fetch failed", slog.String("message_id", ev.MessageID), slog.Any("err", err))
		return
	}

	// Moderators may remove content by reacting, independent of the mute decision.
	if err := s.platform.DeleteMessage(ctx, ev.ChannelID, ev.MessageID); err != nil {
		slog.Warn("reaction: delete message", slog.String("message_id", ev.MessageID), slog.Any("err", err))
	}

	author, err := s.Person(ctx, msg.AuthorID)
	if err != nil {
		slog.Warn("reaction: load author", slog.String("author_id", msg.AuthorID), slog.Any("err", err))
		return
	}
	if author == nil {
		return
	}

	if ev.EmojiID == s.cfg.MuteEmoji {
		if err := author.Mute(ctx, MuteAction{Text: "Inappropriate:", Evidence: msg.Content}, reactor.Member.ID, ev.ChannelID); err != nil {
			slog.Warn("reaction: mute author", slog.String("author_id", msg.AuthorID), slog.Any("err", err))
		}
	}
}
