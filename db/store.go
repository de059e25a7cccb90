package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/onnwee/sentry/moderation"
)

// ActionStore is the Postgres implementation of moderation.Store. Writes are
// last-write-wins per member; the threshold queries back the expiry scheduler.
type ActionStore struct {
	db *sql.DB
}

// NewActionStore wraps an open database handle.
func NewActionStore(db *sql.DB) *ActionStore { return &ActionStore{db: db} }

var _ moderation.Store = (*ActionStore)(nil)

func (s *ActionStore) Record(ctx context.Context, memberID string) (moderation.Record, error) {
	rec := moderation.Record{MemberID: memberID}
	row := s.db.QueryRowContext(ctx,
		`SELECT muted_until, voice_muted_until FROM action_records WHERE member_id = $1`, memberID)
	var muted, voiceMuted sql.NullTime
	err := row.Scan(&muted, &voiceMuted)
	if err == sql.ErrNoRows {
		// Absence of a record is equivalent to "never muted".
		return rec, nil
	}
	if err != nil {
		return rec, fmt.Errorf("select action record: %w", err)
	}
	if muted.Valid {
		t := muted.Time.UTC()
		rec.MutedUntil = &t
	}
	if voiceMuted.Valid {
		t := voiceMuted.Time.UTC()
		rec.VoiceMutedUntil = &t
	}
	return rec, nil
}

func (s *ActionStore) SetMuted(ctx context.Context, memberID string, until time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO action_records (member_id, muted_until, updated_at) VALUES ($1,$2,NOW())
		 ON CONFLICT(member_id) DO UPDATE SET muted_until=EXCLUDED.muted_until, updated_at=NOW()`,
		memberID, until)
	return err
}

func (s *ActionStore) ClearMuted(ctx context.Context, memberID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE action_records SET muted_until=NULL, updated_at=NOW() WHERE member_id=$1`, memberID)
	return err
}

func (s *ActionStore) SetVoiceMuted(ctx context.Context, memberID string, until time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO action_records (member_id, voice_muted_until, updated_at) VALUES ($1,$2,NOW())
		 ON CONFLICT(member_id) DO UPDATE SET voice_muted_until=EXCLUDED.voice_muted_until, updated_at=NOW()`,
		memberID, until)
	return err
}

func (s *ActionStore) ClearVoiceMuted(ctx context.Context, memberID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE action_records SET voice_muted_until=NULL, updated_at=NOW() WHERE member_id=$1`, memberID)
	return err
}

func (s *ActionStore) AppendHistory(ctx context.Context, memberID string, e moderation.HistoryEntry) error {
	created := e.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO mute_history (member_id, reason, evidence, moderator_id, created_at) VALUES ($1,$2,$3,$4,$5)`,
		memberID, e.Reason, e.Evidence, e.ModeratorID, created)
	return err
}

func (s *ActionStore) History(ctx context.Context, memberID string) ([]moderation.HistoryEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, reason, evidence, moderator_id, created_at FROM mute_history WHERE member_id=$1 ORDER BY created_at, id`,
		memberID)
	if err != nil {
		return nil, fmt.Errorf("select mute history: %w", err)
	}
	defer rows.Close()
	entries := []moderation.HistoryEntry{}
	for rows.Next() {
		var e moderation.HistoryEntry
		if err := rows.Scan(&e.ID, &e.Reason, &e.Evidence, &e.ModeratorID, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan mute history: %w", err)
		}
		e.CreatedAt = e.CreatedAt.UTC()
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *ActionStore) RemoveHistoryEntry(ctx context.Context, memberID string, entryID int64) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM mute_history WHERE member_id=$1 AND id=$2`, memberID, entryID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (s *ActionStore) ClearHistory(ctx context.Context, memberID string) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM mute_history WHERE member_id=$1`, memberID)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (s *ActionStore) ExpiredMutes(ctx context.Context, now time.Time) ([]string, error) {
	return s.expiredIDs(ctx, `SELECT member_id FROM action_records WHERE muted_until IS NOT NULL AND muted_until <= $1`, now)
}

func (s *ActionStore) ExpiredVoiceMutes(ctx context.Context, now time.Time) ([]string, error) {
	return s.expiredIDs(ctx, `SELECT member_id FROM action_records WHERE voice_muted_until IS NOT NULL AND voice_muted_until <= $1`, now)
}

func (s *ActionStore) expiredIDs(ctx context.Context, query string, now time.Time) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("select expired records: %w", err)
	}
	defer rows.Close()
	// Empty result is a valid outcome, never nil.
	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan expired record: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *ActionStore) ActiveMuteCounts(ctx context.Context, now time.Time) (text, voice int, err error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT
			COUNT(*) FILTER (WHERE muted_until IS NOT NULL AND muted_until > $1),
			COUNT(*) FILTER (WHERE voice_muted_until IS NOT NULL AND voice_muted_until > $1)
		 FROM action_records`, now)
	err = row.Scan(&text, &voice)
	return text, voice, err
}

func (s *ActionStore) TouchJob(ctx context.Context, name string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO kv (key,value,updated_at) VALUES ($1, to_char(NOW() AT TIME ZONE 'UTC','YYYY-MM-DD"T"HH24:MI:SS.MS"Z"'), NOW())
		 ON CONFLICT(key) DO UPDATE SET value=EXCLUDED.value, updated_at=NOW()`, name)
	return err
}
