package moderation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/onnwee/sentry/config"
	"github.com/onnwee/sentry/telemetry"
)

// Kind identifies the lifecycle transition an audit entry records.
type Kind string

const (
	KindMute          Kind = "mute"
	KindMuteVoice     Kind = "muteVoice"
	KindMuteRemove    Kind = "muteRemove"
	KindMuteRemoveAll Kind = "muteRemoveAll"
	KindUnmuteManual  Kind = "unmuteManual"
	KindKick          Kind = "kick"
	KindBan           Kind = "ban"
)

// Action describes a transition to be published as an audit entry.
type Action struct {
	Kind        Kind
	MemberID    string
	ModeratorID string
	Reason      string
	Fields      []EmbedField
}

// fallbackName is used when a member cannot be resolved; resolution failure
// must never abort logging.
const fallbackName = "*no name*"

type kindStyle struct {
	color int
	title func(name string) string
	icon  string
	// kicksChannel routes the entry to the kicks/bans log channel instead
	// of the mutes channel.
	kicksChannel bool
}

var kindStyles = map[Kind]kindStyle{
	KindMute: {
		color: 0xE74C3C,
		title: func(n string) string { return fmt.Sprintf("<%s> has been muted", n) },
		icon:  "http://i.imgur.com/yJFp4bQ.png",
	},
	KindMuteVoice: {
		color: 0xF1C40F,
		title: func(n string) string { return fmt.Sprintf("<%s> has been voice-muted", n) },
		icon:  "http://i.imgur.com/7B2vj52.png",
	},
	KindMuteRemove: {
		color: 0xF39C12,
		title: func(n string) string { return fmt.Sprintf("Mute removed from history of <%s>", n) },
		icon:  "http://i.imgur.com/A3RCsrj.png",
	},
	KindMuteRemoveAll: {
		color: 0xF39C12,
		title: func(n string) string { return fmt.Sprintf("Mute history cleared: <%s>", n) },
		icon:  "http://i.imgur.com/fTuaven.png",
	},
	KindUnmuteManual: {
		color: 0x2ECC71,
		title: func(n string) string { return fmt.Sprintf("<%s> has been unmuted", n) },
		icon:  "http://i.imgur.com/qAYTZsm.png",
	},
	KindKick: {
		color:        0xECF0F1,
		title:        func(n string) string { return fmt.Sprintf("User kicked: <%s>", n) },
		icon:         "http://i.imgur.com/o9VorPw.png",
		kicksChannel: true,
	},
	KindBan: {
		color:        0xECF0F1,
		title:        func(n string) string { return fmt.Sprintf("User banned: <%s>", n) },
		icon:         "http://i.imgur.com/o9VorPw.png",
		kicksChannel: true,
	},
}

// AuditLogger formats lifecycle transitions into structured entries and
// publishes them to the configured log channel. Publishing is best-effort:
// failures are swallowed and counted, never propagated, so logging can never
// block or fail the underlying moderation action.
type AuditLogger struct {
	platform Platform
	cfg      *config.Config

	now func() time.Time
}

// NewAuditLogger builds an audit logger over the platform client.
func NewAuditLogger(platform Platform, cfg *config.Config) *AuditLogger {
	return &AuditLogger{platform: platform, cfg: cfg, now: func() time.Time { return time.Now().UTC() }}
}

// displayName resolves a member's display name, falling back to a placeholder.
func (l *AuditLogger) displayName(ctx context.Context, memberID string) string {
	if memberID == "" {
		return fallbackName
	}
	m, err := l.platform.Member(ctx, l.cfg.GuildID, memberID)
	if err != nil || m == nil {
		return fallbackName
	}
	return m.DisplayName
}

// Publish formats and sends the audit entry for the action. When the
// triggering context is the staff-commands channel, the entry is mirrored
// there as well. Callers are allowed to ignore the outcome entirely.
func (l *AuditLogger) Publish(ctx context.Context, a Action, originChannelID string) {
	style, ok := kindStyles[a.Kind]
	if !ok {
		slog.Warn("audit entry with unknown kind dropped", slog.String("kind", string(a.Kind)))
		return
	}

	username := l.displayName(ctx, a.MemberID)
	modname := l.displayName(ctx, a.ModeratorID)

	description := a.Reason
	if description == "" {
		description = string(a.Kind)
	}

	fields := append([]EmbedField{}, a.Fields...)
	fields = append(fields,
		EmbedField{Name: "Discord ID", Value: a.MemberID},
		EmbedField{Name: "Name", Value: username},
		EmbedField{Name: "Moderator ID", Value: a.ModeratorID},
		EmbedField{Name: "Moderator", Value: modname},
	)
	for i := range fields {
		fields[i].Inline = true
	}

	embed := &Embed{
		Title:        style.title(username),
		Color:        style.color,
		Description:  description,
		Timestamp:    l.now(),
		Fields:       fields,
		ThumbnailURL: style.icon,
	}

	channel := l.cfg.LogMutesChannel
	if style.kicksChannel {
		channel = l.cfg.LogKicksChannel
	}

	if err := l.platform.SendEmbed(ctx, channel, embed); err != nil {
		telemetry.IncAuditPublishFailure()
		slog.Warn("audit publish failed", slog.String("kind", string(a.Kind)), slog.String("channel", channel), slog.Any("err", err))
	} else {
		telemetry.IncAuditPublish()
	}

	if originChannelID != "" && originChannelID == l.cfg.StaffCommandsChannel {
		if err := l.platform.SendEmbed(ctx, originChannelID, embed); err != nil {
			slog.Debug("staff channel mirror failed", slog.Any("err", err))
		}
	}
}
