// Package discordapi wraps the Discord gateway/REST client behind the
// moderation.Platform interface and wires gateway events to the engine.
package discordapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/onnwee/sentry/moderation"
)

// Client is a thin adapter over a discordgo session. It prefers the state
// cache for member lookups and falls back to REST.
type Client struct {
	s *discordgo.Session
}

var _ moderation.Platform = (*Client)(nil)

// New creates a session for the bot token. Open must be called before use.
func New(token string) (*Client, error) {
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	s.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMembers |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildMessageReactions |
		discordgo.IntentsGuildVoiceStates |
		discordgo.IntentMessageContent
	s.StateEnabled = true
	return &Client{s: s}, nil
}

// Open connects to the gateway.
func (c *Client) Open() error { return c.s.Open() }

// Close disconnects from the gateway.
func (c *Client) Close() error { return c.s.Close() }

// BotUserID returns the service account's user ID. Valid after Open.
func (c *Client) BotUserID() string {
	if c.s.State != nil && c.s.State.User != nil {
		return c.s.State.User.ID
	}
	return ""
}

// isNotFound reports whether a REST error is a 404/unknown-entity response.
func isNotFound(err error) bool {
	var restErr *discordgo.RESTError
	if !errors.As(err, &restErr) {
		return false
	}
	return restErr.Response != nil && restErr.Response.StatusCode == http.StatusNotFound
}

func displayName(m *discordgo.Member) string {
	if m.Nick != "" {
		return m.Nick
	}
	if m.User != nil {
		if m.User.GlobalName != "" {
			return m.User.GlobalName
		}
		return m.User.Username
	}
	return ""
}

func toMember(m *discordgo.Member) *moderation.Member {
	out := &moderation.Member{DisplayName: displayName(m), Roles: m.Roles}
	if m.User != nil {
		out.ID = m.User.ID
	}
	return out
}

// Member resolves a guild member, state cache first. A departed or unknown
// member yields (nil, nil).
func (c *Client) Member(ctx context.Context, guildID, userID string) (*moderation.Member, error) {
	if m, err := c.s.State.Member(guildID, userID); err == nil && m.User != nil {
		return toMember(m), nil
	}
	m, err := c.s.GuildMember(guildID, userID, discordgo.WithContext(ctx))
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch guild member: %w", err)
	}
	return toMember(m), nil
}

// Timeout applies or lifts the communication restriction for the member.
func (c *Client) Timeout(ctx context.Context, guildID, userID string, until *time.Time) error {
	return c.s.GuildMemberTimeout(guildID, userID, until, discordgo.WithContext(ctx))
}

// SetVoiceMute applies or lifts the guild-level voice mute for the member.
func (c *Client) SetVoiceMute(ctx context.Context, guildID, userID string, muted bool) error {
	return c.s.GuildMemberMute(guildID, userID, muted, discordgo.WithContext(ctx))
}

// DeleteMessage removes a message from a channel.
func (c *Client) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	return c.s.ChannelMessageDelete(channelID, messageID, discordgo.WithContext(ctx))
}

// Message fetches a channel message; the content is returned with mentions
// replaced by plain names. A deleted or unknown message yields (nil, nil).
func (c *Client) Message(ctx context.Context, channelID, messageID string) (*moderation.Message, error) {
	m, err := c.s.ChannelMessage(channelID, messageID, discordgo.WithContext(ctx))
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch message: %w", err)
	}
	return toMessage(m), nil
}

func toMessage(m *discordgo.Message) *moderation.Message {
	out := &moderation.Message{ID: m.ID, ChannelID: m.ChannelID, Content: m.ContentWithMentionsReplaced()}
	if m.Author != nil {
		out.AuthorID = m.Author.ID
	}
	return out
}

// Kick removes the member from the guild.
func (c *Client) Kick(ctx context.Context, guildID, userID, reason string) error {
	return c.s.GuildMemberDeleteWithReason(guildID, userID, reason, discordgo.WithContext(ctx))
}

// Ban bans the member from the guild without pruning message history.
func (c *Client) Ban(ctx context.Context, guildID, userID, reason string) error {
	return c.s.GuildBanCreateWithReason(guildID, userID, reason, 0, discordgo.WithContext(ctx))
}

// SendEmbed publishes a structured entry to a channel.
func (c *Client) SendEmbed(ctx context.Context, channelID string, embed *moderation.Embed) error {
	if channelID == "" {
		return fmt.Errorf("no channel configured")
	}
	_, err := c.s.ChannelMessageSendEmbed(channelID, toDiscordEmbed(embed), discordgo.WithContext(ctx))
	return err
}

func toDiscordEmbed(e *moderation.Embed) *discordgo.MessageEmbed {
	out := &discordgo.MessageEmbed{
		Title:       e.Title,
		Color:       e.Color,
		Description: e.Description,
		Timestamp:   e.Timestamp.UTC().Format(time.RFC3339),
	}
	if e.ThumbnailURL != "" {
		out.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: e.ThumbnailURL}
	}
	for _, f := range e.Fields {
		out.Fields = append(out.Fields, &discordgo.MessageEmbedField{Name: f.Name, Value: f.Value, Inline: f.Inline})
	}
	return out
}
