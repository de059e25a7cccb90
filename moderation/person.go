package moderation

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/onnwee/sentry/telemetry"
)

// Person is a transient facade over a live guild member and its action
// record. It is built on demand and discarded after each operation; nothing
// is cached across calls.
type Person struct {
	Member *Member
	Record Record

	svc *Service
}

// MuteAction carries the reason text and evidence attached to a mute.
type MuteAction struct {
	Text     string
	Evidence string
}

// Person resolves a live guild member plus its stored record. A member that
// cannot be resolved (left the guild, bad ID) yields (nil, nil): callers
// treat that as "no-op, not an error".
func (s *Service) Person(ctx context.Context, memberID string) (*Person, error) {
	m, err := s.platform.Member(ctx, s.cfg.GuildID, memberID)
	if err != nil || m == nil {
		if err != nil {
			slog.Debug("member lookup failed", slog.String("member_id", memberID), slog.Any("err", err))
		}
		return nil, nil
	}
	rec, err := s.store.Record(ctx, memberID)
	if err != nil {
		return nil, fmt.Errorf("load action record: %w", err)
	}
	rec.MemberID = memberID
	return &Person{Member: m, Record: rec, svc: s}, nil
}

// IsModerator reports whether the member's role set grants moderator capability.
func (p *Person) IsModerator() bool {
	return p.svc.cfg.IsModeratorRole(p.Member.Roles)
}

// Mute sets the text-mute expiry to now plus the configured duration,
// appends a history entry, applies the platform restriction, and publishes a
// mute audit entry. Re-muting an already-muted member refreshes the expiry
// rather than stacking a second one.
//
// Persistence and the platform call are attempted independently: a failed
// write does not stop the restriction from being applied. The first failure
// is returned so callers can log it, but the audit entry is published
// regardless.
func (p *Person) Mute(ctx context.Context, action MuteAction, moderatorID, originChannelID string) error {
	now := p.svc.now()
	until := now.Add(p.svc.cfg.MuteDuration)

	var firstErr error
	if err := p.svc.store.SetMuted(ctx, p.Member.ID, until); err != nil {
		firstErr = fmt.Errorf("persist mute: %w", err)
		slog.Warn("persist mute", slog.String("member_id", p.Member.ID), slog.Any("err", err))
	}
	if err := p.svc.store.AppendHistory(ctx, p.Member.ID, HistoryEntry{
		Reason:      action.Text,
		Evidence:    action.Evidence,
		ModeratorID: moderatorID,
		CreatedAt:   now,
	}); err != nil {
		if firstErr == nil {
			firstErr = fmt.Errorf("append mute history: %w", err)
		}
		slog.Warn("append mute history", slog.String("member_id", p.Member.ID), slog.Any("err", err))
	}
	if err := p.svc.platform.Timeout(ctx, p.svc.cfg.GuildID, p.Member.ID, &until); err != nil {
		if firstErr == nil {
			firstErr = fmt.Errorf("apply timeout: %w", err)
		}
		slog.Warn("apply timeout", slog.String("member_id", p.Member.ID), slog.Any("err", err))
	}

	telemetry.IncMute()
	p.svc.audit.Publish(ctx, Action{
		Kind:        KindMute,
		MemberID:    p.Member.ID,
		ModeratorID: moderatorID,
		Reason:      action.Text,
		Fields:      []EmbedField{{Name: "Evidence", Value: action.Evidence}},
	}, originChannelID)
	return firstErr
}

// Unmute clears the text-mute expiry and lifts the platform restriction.
// Safe to call on a member who is not muted. A manual unmute publishes an
// unmuteManual audit entry; automatic expiry clears state silently.
func (p *Person) Unmute(ctx context.Context, moderatorID string, manual bool) error {
	var firstErr error
	if err := p.svc.store.ClearMuted(ctx, p.Member.ID); err != nil {
		firstErr = fmt.Errorf("clear mute: %w", err)
		slog.Warn("clear mute", slog.String("member_id", p.Member.ID), slog.Any("err", err))
	}
	if err := p.svc.platform.Timeout(ctx, p.svc.cfg.GuildID, p.Member.ID, nil); err != nil {
		if firstErr == nil {
			firstErr = fmt.Errorf("lift timeout: %w", err)
		}
		slog.Warn("lift timeout", slog.String("member_id", p.Member.ID), slog.Any("err", err))
	}

	telemetry.IncUnmute(manual)
	if manual {
		p.svc.audit.Publish(ctx, Action{
			Kind:        KindUnmuteManual,
			MemberID:    p.Member.ID,
			ModeratorID: moderatorID,
		}, "")
	} else {
		slog.Debug("mute expired", slog.String("member_id", p.Member.ID))
	}
	return firstErr
}

// VoiceMute sets the voice-mute expiry, applies the platform voice mute, and
// publishes a muteVoice audit entry. The platform call fails when the member
// is not connected to voice; that is expected and the stored expiry still
// takes effect via EnforceVoiceMute on the next voice join.
func (p *Person) VoiceMute(ctx context.Context, action MuteAction, moderatorID, originChannelID string) error {
	now := p.svc.now()
	until := now.Add(p.svc.cfg.VoiceMuteDuration)

	var firstErr error
	if err := p.svc.store.SetVoiceMuted(ctx, p.Member.ID, until); err != nil {
		firstErr = fmt.Errorf("persist voice mute: %w", err)
		slog.Warn("persist voice mute", slog.String("member_id", p.Member.ID), slog.Any("err", err))
	}
	if err := p.svc.store.AppendHistory(ctx, p.Member.ID, HistoryEntry{
		Reason:      action.Text,
		Evidence:    action.Evidence,
		ModeratorID: moderatorID,
		CreatedAt:   now,
	}); err != nil {
		if firstErr == nil {
			firstErr = fmt.Errorf("append mute history: %w", err)
		}
		slog.Warn("append mute history", slog.String("member_id", p.Member.ID), slog.Any("err", err))
	}
	if err := p.svc.platform.SetVoiceMute(ctx, p.svc.cfg.GuildID, p.Member.ID, true); err != nil {
		slog.Debug("apply voice mute", slog.String("member_id", p.Member.ID), slog.Any("err", err))
	}

	telemetry.IncVoiceMute()
	p.svc.audit.Publish(ctx, Action{
		Kind:        KindMuteVoice,
		MemberID:    p.Member.ID,
		ModeratorID: moderatorID,
		Reason:      action.Text,
		Fields:      []EmbedField{{Name: "Evidence", Value: action.Evidence}},
	}, originChannelID)
	return firstErr
}

// UnVoiceMute clears the voice-mute expiry and lifts the platform voice mute.
// Safe to call on a member who is not voice-muted.
func (p *Person) UnVoiceMute(ctx context.Context, moderatorID string, manual bool) error {
	var firstErr error
	if err := p.svc.store.ClearVoiceMuted(ctx, p.Member.ID); err != nil {
		firstErr = fmt.Errorf("clear voice mute: %w", err)
		slog.Warn("clear voice mute", slog.String("member_id", p.Member.ID), slog.Any("err", err))
	}
	if err := p.svc.platform.SetVoiceMute(ctx, p.svc.cfg.GuildID, p.Member.ID, false); err != nil {
		slog.Debug("lift voice mute", slog.String("member_id", p.Member.ID), slog.Any("err", err))
	}

	telemetry.IncVoiceUnmute(manual)
	if manual {
		p.svc.audit.Publish(ctx, Action{
			Kind:        KindUnmuteManual,
			MemberID:    p.Member.ID,
			ModeratorID: moderatorID,
		}, "")
	} else {
		slog.Debug("voice mute expired", slog.String("member_id", p.Member.ID))
	}
	return firstErr
}

// IsVoiceMuted reports whether the member is voice-muted right now.
func (p *Person) IsVoiceMuted() bool { return p.Record.VoiceMuted(p.svc.now()) }

// RemoveMuteEntry deletes one entry from the member's mute history and, when
// an entry was actually removed, publishes a muteRemove audit entry.
func (p *Person) RemoveMuteEntry(ctx context.Context, entryID int64, moderatorID, originChannelID string) error {
	removed, err := p.svc.store.RemoveHistoryEntry(ctx, p.Member.ID, entryID)
	if err != nil {
		return fmt.Errorf("remove mute history entry: %w", err)
	}
	if !removed {
		return nil
	}
	p.svc.audit.Publish(ctx, Action{
		Kind:        KindMuteRemove,
		MemberID:    p.Member.ID,
		ModeratorID: moderatorID,
		Fields:      []EmbedField{{Name: "Entry", Value: fmt.Sprintf("%d", entryID)}},
	}, originChannelID)
	return nil
}

// ClearMuteHistory deletes the member's entire mute history and publishes a
// muteRemoveAll audit entry when anything was removed.
func (p *Person) ClearMuteHistory(ctx context.Context, moderatorID, originChannelID string) error {
	n, err := p.svc.store.ClearHistory(ctx, p.Member.ID)
	if err != nil {
		return fmt.Errorf("clear mute history: %w", err)
	}
	if n == 0 {
		return nil
	}
	p.svc.audit.Publish(ctx, Action{
		Kind:        KindMuteRemoveAll,
		MemberID:    p.Member.ID,
		ModeratorID: moderatorID,
		Fields:      []EmbedField{{Name: "Entries", Value: fmt.Sprintf("%d", n)}},
	}, originChannelID)
	return nil
}

// Kick removes the member from the guild and publishes a kick audit entry.
func (p *Person) Kick(ctx context.Context, moderatorID, reason, originChannelID string) error {
	err := p.svc.platform.Kick(ctx, p.svc.cfg.GuildID, p.Member.ID, reason)
	if err != nil {
		err = fmt.Errorf("kick member: %w", err)
		slog.Warn("kick member", slog.String("member_id", p.Member.ID), slog.Any("err", err))
	}
	p.svc.audit.Publish(ctx, Action{
		Kind:        KindKick,
		MemberID:    p.Member.ID,
		ModeratorID: moderatorID,
		Reason:      reason,
	}, originChannelID)
	return err
}

// Ban bans the member from the guild and publishes a ban audit entry.
func (p *Person) Ban(ctx context.Context, moderatorID, reason, originChannelID string) error {
	err := p.svc.platform.Ban(ctx, p.svc.cfg.GuildID, p.Member.ID, reason)
	if err != nil {
		err = fmt.Errorf("ban member: %w", err)
		slog.Warn("ban member", slog.String("member_id", p.Member.ID), slog.Any("err", err))
	}
	p.svc.audit.Publish(ctx, Action{
		Kind:        KindBan,
		MemberID:    p.Member.ID,
		ModeratorID: moderatorID,
		Reason:      reason,
	}, originChannelID)
	return err
}
