// Package telemetry provides Prometheus metrics and correlation-id aware logging helpers.
package telemetry

import (
	"context"
	"log/slog"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once sync.Once

	// Counters
	MutesApplied         prometheus.Counter
	VoiceMutesApplied    prometheus.Counter
	Unmutes              *prometheus.CounterVec
	VoiceUnmutes         *prometheus.CounterVec
	ExpiryTicks          prometheus.Counter
	ExpiryErrors         prometheus.Counter
	AuditPublishes       prometheus.Counter
	AuditPublishFailures prometheus.Counter

	// Gauges
	ActiveMutesGauge      prometheus.Gauge
	ActiveVoiceMutesGauge prometheus.Gauge
)

// Init registers metrics (idempotent).
func Init() {
	once.Do(func() {
		MutesApplied = promauto.NewCounter(prometheus.CounterOpts{Name: "sentry_mutes_applied_total", Help: "Number of text mutes applied"})
		VoiceMutesApplied = promauto.NewCounter(prometheus.CounterOpts{Name: "sentry_voice_mutes_applied_total", Help: "Number of voice mutes applied"})
		Unmutes = promauto.NewCounterVec(prometheus.CounterOpts{Name: "sentry_unmutes_total", Help: "Number of text unmutes by trigger"}, []string{"trigger"})
		VoiceUnmutes = promauto.NewCounterVec(prometheus.CounterOpts{Name: "sentry_voice_unmutes_total", Help: "Number of voice unmutes by trigger"}, []string{"trigger"})
		ExpiryTicks = promauto.NewCounter(prometheus.CounterOpts{Name: "sentry_expiry_ticks_total", Help: "Number of expiry scheduler passes"})
		ExpiryErrors = promauto.NewCounter(prometheus.CounterOpts{Name: "sentry_expiry_errors_total", Help: "Number of per-record errors during expiry passes"})
		AuditPublishes = promauto.NewCounter(prometheus.CounterOpts{Name: "sentry_audit_publishes_total", Help: "Number of audit entries published"})
		AuditPublishFailures = promauto.NewCounter(prometheus.CounterOpts{Name: "sentry_audit_publish_failures_total", Help: "Number of audit entries that failed to publish"})
		ActiveMutesGauge = promauto.NewGauge(prometheus.GaugeOpts{Name: "sentry_active_mutes", Help: "Current number of active text mutes"})
		ActiveVoiceMutesGauge = promauto.NewGauge(prometheus.GaugeOpts{Name: "sentry_active_voice_mutes", Help: "Current number of active voice mutes"})
	})
}

func trigger(manual bool) string {
	if manual {
		return "manual"
	}
	return "expiry"
}

// IncMute records a text mute application.
func IncMute() {
	if MutesApplied != nil {
		MutesApplied.Inc()
	}
}

// IncVoiceMute records a voice mute application.
func IncVoiceMute() {
	if VoiceMutesApplied != nil {
		VoiceMutesApplied.Inc()
	}
}

// IncUnmute records a text unmute, labelled by trigger.
func IncUnmute(manual bool) {
	if Unmutes != nil {
		Unmutes.WithLabelValues(trigger(manual)).Inc()
	}
}

// IncVoiceUnmute records a voice unmute, labelled by trigger.
func IncVoiceUnmute(manual bool) {
	if VoiceUnmutes != nil {
		VoiceUnmutes.WithLabelValues(trigger(manual)).Inc()
	}
}

// IncExpiryTick records one scheduler pass.
func IncExpiryTick() {
	if ExpiryTicks != nil {
		ExpiryTicks.Inc()
	}
}

// IncExpiryError records a per-record failure inside a scheduler pass.
func IncExpiryError() {
	if ExpiryErrors != nil {
		ExpiryErrors.Inc()
	}
}

// IncAuditPublish records a published audit entry.
func IncAuditPublish() {
	if AuditPublishes != nil {
		AuditPublishes.Inc()
	}
}

// IncAuditPublishFailure records a swallowed audit publish failure.
func IncAuditPublishFailure() {
	if AuditPublishFailures != nil {
		AuditPublishFailures.Inc()
	}
}

// SetActiveMutes records the current number of active restrictions.
func SetActiveMutes(text, voice int) {
	if ActiveMutesGauge != nil {
		ActiveMutesGauge.Set(float64(text))
	}
	if ActiveVoiceMutesGauge != nil {
		ActiveVoiceMutesGauge.Set(float64(voice))
	}
}

// Correlation ID helpers ----------------------------------------------------
type corrKeyType struct{}

var corrKey corrKeyType

// WithCorrelation returns a new context embedding the correlation id.
func WithCorrelation(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, corrKey, id)
}

// GetCorrelation returns the correlation id or empty string.
func GetCorrelation(ctx context.Context) string {
	if s, ok := ctx.Value(corrKey).(string); ok {
		return s
	}
	return ""
}

// LoggerWithCorr returns a logger with the corr attribute if present.
func LoggerWithCorr(ctx context.Context) *slog.Logger {
	if id := GetCorrelation(ctx); id != "" {
		return slog.Default().With(slog.String("corr", id))
	}
	return slog.Default()
}
