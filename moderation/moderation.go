// Package moderation implements the moderation-action lifecycle engine:
// the Person facade over a guild member and its persisted action record,
// the fixed-interval expiry scheduler, the reaction command dispatcher,
// and the best-effort audit logger.
package moderation

import (
	"context"
	"log/slog"
	"time"

	"github.com/onnwee/sentry/config"
)

// Record is the persisted action state for one member. A zero Record (both
// expiries nil) is equivalent to "never muted"; absence of a stored row is
// represented the same way.
type Record struct {
	MemberID        string
	MutedUntil      *time.Time
	VoiceMutedUntil *time.Time
}

// TextMuted reports whether the text mute is active at the given instant.
func (r Record) TextMuted(now time.Time) bool {
	return r.MutedUntil != nil && now.Before(*r.MutedUntil)
}

// VoiceMuted reports whether the voice mute is active at the given instant.
func (r Record) VoiceMuted(now time.Time) bool {
	return r.VoiceMutedUntil != nil && now.Before(*r.VoiceMutedUntil)
}

// HistoryEntry is one past mute in a member's append-only history.
type HistoryEntry struct {
	ID          int64
	Reason      string
	Evidence    string
	ModeratorID string
	CreatedAt   time.Time
}

// Store is the persistent action store. Implementations must make writes
// durable, treat concurrent same-key writes as last-write-wins, and return
// empty (never nil) slices from the threshold queries.
type Store interface {
	// Record returns the stored record for the member, or a zero Record
	// when none exists.
	Record(ctx context.Context, memberID string) (Record, error)
	SetMuted(ctx context.Context, memberID string, until time.Time) error
	ClearMuted(ctx context.Context, memberID string) error
	SetVoiceMuted(ctx context.Context, memberID string, until time.Time) error
	ClearVoiceMuted(ctx context.Context, memberID string) error
	AppendHistory(ctx context.Context, memberID string, e HistoryEntry) error
	History(ctx context.Context, memberID string) ([]HistoryEntry, error)
	// RemoveHistoryEntry deletes one entry; it reports whether an entry was removed.
	RemoveHistoryEntry(ctx context.Context, memberID string, entryID int64) (bool, error)
	// ClearHistory deletes all entries for the member and returns how many were removed.
	ClearHistory(ctx context.Context, memberID string) (int, error)
	// ExpiredMutes returns member IDs whose text-mute expiry is at or before now.
	ExpiredMutes(ctx context.Context, now time.Time) ([]string, error)
	// ExpiredVoiceMutes returns member IDs whose voice-mute expiry is at or before now.
	ExpiredVoiceMutes(ctx context.Context, now time.Time) ([]string, error)
	ActiveMuteCounts(ctx context.Context, now time.Time) (text, voice int, err error)
	// TouchJob records a heartbeat timestamp for the named background job.
	TouchJob(ctx context.Context, name string) error
}

// Member is a live guild member as resolved from the chat platform.
type Member struct {
	ID          string
	DisplayName string
	Roles       []string
}

// Message is a fetched chat message.
type Message struct {
	ID        string
	ChannelID string
	AuthorID  string
	Content   string
}

// EmbedField is one name/value pair in a published audit entry.
type EmbedField struct {
	Name   string
	Value  string
	Inline bool
}

// Embed is the structured log entry shape published to log channels.
type Embed struct {
	Title        string
	Color        int
	Description  string
	Timestamp    time.Time
	Fields       []EmbedField
	ThumbnailURL string
}

// Platform abstracts the outbound chat-platform calls the engine needs.
// Implementations live in the discordapi package; tests use fakes.
type Platform interface {
	// Member resolves a live guild member; (nil, nil) means not resolvable.
	Member(ctx context.Context, guildID, userID string) (*Member, error)
	// Timeout applies the text communication restriction until the given
	// time; a nil until lifts it.
	Timeout(ctx context.Context, guildID, userID string, until *time.Time) error
	SetVoiceMute(ctx context.Context, guildID, userID string, muted bool) error
	DeleteMessage(ctx context.Context, channelID, messageID string) error
	Message(ctx context.Context, channelID, messageID string) (*Message, error)
	Kick(ctx context.Context, guildID, userID, reason string) error
	Ban(ctx context.Context, guildID, userID, reason string) error
	SendEmbed(ctx context.Context, channelID string, embed *Embed) error
}

// Service wires the store, the platform client, and configuration together.
// It is constructed once at startup and threaded through every handler.
type Service struct {
	store    Store
	platform Platform
	cfg      *config.Config
	audit    *AuditLogger

	// botID identifies the service account; used as the moderator id on
	// automatic (expiry-driven) transitions. Set after gateway ready.
	botID string

	now func() time.Time
}

// NewService builds the engine around a store and platform client.
func NewService(store Store, platform Platform, cfg *config.Config) *Service {
	return &Service{
		store:    store,
		platform: platform,
		cfg:      cfg,
		audit:    NewAuditLogger(platform, cfg),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// SetBotID records the service account identity once the gateway session is ready.
func (s *Service) SetBotID(id string) { s.botID = id }

// Audit exposes the audit logger for callers outside the lifecycle operations.
func (s *Service) Audit() *AuditLogger { return s.audit }

// EnforceVoiceMute re-applies (or lifts) the platform voice mute according to
// the member's stored voice-mute state. Called when a member joins a voice
// channel so a mid-mute rejoin stays muted.
func (s *Service) EnforceVoiceMute(ctx context.Context, memberID string) {
	p, err := s.Person(ctx, memberID)
	if err != nil {
		slog.Warn("enforce voice mute: load person", slog.String("member_id", memberID), slog.Any("err", err))
		return
	}
	if p == nil {
		return
	}
	muted := p.Record.VoiceMuted(s.now())
	if err := s.platform.SetVoiceMute(ctx, s.cfg.GuildID, memberID, muted); err != nil {
		slog.Debug("enforce voice mute: platform call", slog.String("member_id", memberID), slog.Any("err", err))
	}
}
