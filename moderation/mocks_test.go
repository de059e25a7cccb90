package moderation

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/onnwee/sentry/config"
)

var errFailedWrite = errors.New("store write failed")

// newTestService builds the engine over fakes with a pinned clock.
func newTestService(store Store, platform Platform, at time.Time) (*Service, *config.Config) {
	cfg := &config.Config{
		GuildID:              "guild",
		LogMutesChannel:      "log-mutes",
		LogKicksChannel:      "log-kicks",
		LogChatChannel:       "log-chat",
		StaffCommandsChannel: "staff",
		MuteEmoji:            "mute-emoji",
		ModeratorRoleIDs:     []string{"mod-role"},
		MuteDuration:         time.Hour,
		VoiceMuteDuration:    30 * time.Minute,
		ExpiryInterval:       5 * time.Second,
	}
	svc := NewService(store, platform, cfg)
	svc.SetBotID("bot")
	svc.now = func() time.Time { return at }
	svc.audit.now = svc.now
	return svc, cfg
}

// memStore is an in-memory Store for handler tests.
type memStore struct {
	mu      sync.Mutex
	recs    map[string]Record
	history map[string][]HistoryEntry
	nextID  int64
	jobs    map[string]time.Time

	// queryErr fails the threshold queries; writeErrFor fails writes for
	// specific member IDs.
	queryErr    error
	writeErrFor map[string]error
}

func newMemStore() *memStore {
	return &memStore{
		recs:        map[string]Record{},
		history:     map[string][]HistoryEntry{},
		jobs:        map[string]time.Time{},
		writeErrFor: map[string]error{},
	}
}

func (m *memStore) Record(_ context.Context, memberID string) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.recs[memberID]
	if !ok {
		return Record{MemberID: memberID}, nil
	}
	return rec, nil
}

func (m *memStore) SetMuted(_ context.Context, memberID string, until time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.writeErrFor[memberID]; err != nil {
		return err
	}
	rec := m.recs[memberID]
	rec.MemberID = memberID
	rec.MutedUntil = &until
	m.recs[memberID] = rec
	return nil
}

func (m *memStore) ClearMuted(_ context.Context, memberID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.writeErrFor[memberID]; err != nil {
		return err
	}
	rec := m.recs[memberID]
	rec.MemberID = memberID
	rec.MutedUntil = nil
	m.recs[memberID] = rec
	return nil
}

func (m *memStore) SetVoiceMuted(_ context.Context, memberID string, until time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.writeErrFor[memberID]; err != nil {
		return err
	}
	rec := m.recs[memberID]
	rec.MemberID = memberID
	rec.VoiceMutedUntil = &until
	m.recs[memberID] = rec
	return nil
}

func (m *memStore) ClearVoiceMuted(_ context.Context, memberID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.writeErrFor[memberID]; err != nil {
		return err
	}
	rec := m.recs[memberID]
	rec.MemberID = memberID
	rec.VoiceMutedUntil = nil
	m.recs[memberID] = rec
	return nil
}

func (m *memStore) AppendHistory(_ context.Context, memberID string, e HistoryEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	e.ID = m.nextID
	m.history[memberID] = append(m.history[memberID], e)
	return nil
}

func (m *memStore) History(_ context.Context, memberID string) ([]HistoryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []HistoryEntry{}
	out = append(out, m.history[memberID]...)
	return out, nil
}

func (m *memStore) RemoveHistoryEntry(_ context.Context, memberID string, entryID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entries := m.history[memberID]
	for i, e := range entries {
		if e.ID == entryID {
			m.history[memberID] = append(entries[:i:i], entries[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) ClearHistory(_ context.Context, memberID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := len(m.history[memberID])
	delete(m.history, memberID)
	return n, nil
}

func (m *memStore) ExpiredMutes(_ context.Context, now time.Time) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.queryErr != nil {
		return nil, m.queryErr
	}
	ids := []string{}
	for id, rec := range m.recs {
		if rec.MutedUntil != nil && !rec.MutedUntil.After(now) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (m *memStore) ExpiredVoiceMutes(_ context.Context, now time.Time) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.queryErr != nil {
		return nil, m.queryErr
	}
	ids := []string{}
	for id, rec := range m.recs {
		if rec.VoiceMutedUntil != nil && !rec.VoiceMutedUntil.After(now) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (m *memStore) ActiveMuteCounts(_ context.Context, now time.Time) (int, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var text, voice int
	for _, rec := range m.recs {
		if rec.TextMuted(now) {
			text++
		}
		if rec.VoiceMuted(now) {
			voice++
		}
	}
	return text, voice, nil
}

func (m *memStore) TouchJob(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[name] = time.Now().UTC()
	return nil
}

type timeoutCall struct {
	UserID string
	Until  *time.Time
}

type voiceMuteCall struct {
	UserID string
	Muted  bool
}

type sentEmbed struct {
	ChannelID string
	Embed     *Embed
}

// fakePlatform records outbound platform calls for assertions.
type fakePlatform struct {
	mu sync.Mutex

	members  map[string]*Member
	messages map[string]*Message // key: channelID/messageID

	timeouts   []timeoutCall
	voiceMutes []voiceMuteCall
	deleted    []string
	embeds     []sentEmbed
	kicked     []string
	banned     []string

	sendErr error
}

func newFakePlatform() *fakePlatform {
	return &fakePlatform{
		members:  map[string]*Member{},
		messages: map[string]*Message{},
	}
}

func (f *fakePlatform) addMember(id, name string, roles ...string) {
	f.members[id] = &Member{ID: id, DisplayName: name, Roles: roles}
}

func (f *fakePlatform) addMessage(channelID, messageID, authorID, content string) {
	f.messages[channelID+"/"+messageID] = &Message{ID: messageID, ChannelID: channelID, AuthorID: authorID, Content: content}
}

func (f *fakePlatform) Member(_ context.Context, _, userID string) (*Member, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.members[userID], nil
}

func (f *fakePlatform) Timeout(_ context.Context, _, userID string, until *time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.timeouts = append(f.timeouts, timeoutCall{UserID: userID, Until: until})
	return nil
}

func (f *fakePlatform) SetVoiceMute(_ context.Context, _, userID string, muted bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.voiceMutes = append(f.voiceMutes, voiceMuteCall{UserID: userID, Muted: muted})
	return nil
}

func (f *fakePlatform) DeleteMessage(_ context.Context, channelID, messageID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := channelID + "/" + messageID
	delete(f.messages, key)
	f.deleted = append(f.deleted, key)
	return nil
}

func (f *fakePlatform) Message(_ context.Context, channelID, messageID string) (*Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.messages[channelID+"/"+messageID], nil
}

func (f *fakePlatform) Kick(_ context.Context, _, userID, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.kicked = append(f.kicked, userID)
	return nil
}

func (f *fakePlatform) Ban(_ context.Context, _, userID, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.banned = append(f.banned, userID)
	return nil
}

func (f *fakePlatform) SendEmbed(_ context.Context, channelID string, embed *Embed) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.embeds = append(f.embeds, sentEmbed{ChannelID: channelID, Embed: embed})
	return nil
}

func (f *fakePlatform) embedsTo(channelID string) []sentEmbed {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []sentEmbed{}
	for _, e := range f.embeds {
		if e.ChannelID == channelID {
			out = append(out, e)
		}
	}
	return out
}
