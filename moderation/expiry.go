package moderation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/onnwee/sentry/telemetry"
)

// expiryHeartbeatKey is the kv key the scheduler touches on every pass so
// readiness checks can detect a stalled scheduler.
const expiryHeartbeatKey = "job_expiry_last"

// StartExpiryJob runs the expiry scheduler loop until the context is
// cancelled. Passes are serialized: a slow pass delays the next tick rather
// than overlapping it.
func (s *Service) StartExpiryJob(ctx context.Context) {
	interval := s.cfg.ExpiryInterval
	slog.Info("expiry job starting", slog.Duration("interval", interval))
	// Kick an immediate run so mutes that expired while we were down are
	// recovered right after boot.
	if err := s.expireOnce(ctx); err != nil {
		slog.Warn("expire once", slog.Any("err", err))
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			slog.Info("expiry job stopped")
			return
		case <-ticker.C:
			if err := s.expireOnce(ctx); err != nil {
				slog.Warn("expire once", slog.Any("err", err))
			}
		}
	}
}

// expireOnce runs one scheduler pass: all text mutes whose expiry has passed,
// then all voice mutes. Per-record failures are isolated; one bad record must
// not abort the batch. A failed store query is retried on the next tick.
func (s *Service) expireOnce(ctx context.Context) error {
	ctx, span := telemetry.StartSpan(ctx, "moderation", "expiry.pass")
	defer span.End()

	_ = s.store.TouchJob(ctx, expiryHeartbeatKey)
	telemetry.IncExpiryTick()
	now := s.now()

	var firstErr error
	ids, err := s.store.ExpiredMutes(ctx, now)
	if err != nil {
		firstErr = fmt.Errorf("query expired mutes: %w", err)
	} else {
		for _, id := range ids {
			if err := s.expireMute(ctx, id, false); err != nil {
				telemetry.IncExpiryError()
				slog.Warn("expire mute", slog.String("member_id", id), slog.Any("err", err))
			}
		}
	}

	ids, err = s.store.ExpiredVoiceMutes(ctx, now)
	if err != nil {
		if firstErr == nil {
			firstErr = fmt.Errorf("query expired voice mutes: %w", err)
		}
	} else {
		for _, id := range ids {
			if err := s.expireMute(ctx, id, true); err != nil {
				telemetry.IncExpiryError()
				slog.Warn("expire voice mute", slog.String("member_id", id), slog.Any("err", err))
			}
		}
	}

	if text, voice, err := s.store.ActiveMuteCounts(ctx, s.now()); err == nil {
		telemetry.SetActiveMutes(text, voice)
	}
	return firstErr
}

// expireMute drives one ACTIVE -> EXPIRED -> INACTIVE transition. A member
// that cannot be resolved is skipped without error; its pending expiry is
// left for a maintenance path to clean up.
func (s *Service) expireMute(ctx context.Context, memberID string, voice bool) error {
	p, err := s.Person(ctx, memberID)
	if err != nil {
		return err
	}
	if p == nil {
		slog.Debug("expired mute for unresolvable member skipped", slog.String("member_id", memberID))
		return nil
	}
	if voice {
		return p.UnVoiceMute(ctx, s.botID, false)
	}
	return p.Unmute(ctx, s.botID, false)
}
