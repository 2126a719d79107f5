package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/medtrackhq/medtrack/internal/reminder_service/domain"
)

var (
	remindersProcessedCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "reminder",
			Name:      "dispatched_total",
			Help:      "Total number of reminders processed by the dispatcher.",
		},
		[]string{"outcome"}, // "sent", "failed", "skipped"
	)
	dispatchDurationHist = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "reminder",
			Name:      "dispatch_duration_seconds",
			Help:      "Duration of one dispatcher run.",
			Buckets:   prometheus.DefBuckets,
		},
	)
)

// DispatcherConfig holds configuration specific to the Dispatcher.
type DispatcherConfig struct {
	Window    time.Duration `mapstructure:"DISPATCH_WINDOW"`
	BatchSize int           `mapstructure:"DISPATCH_BATCH_SIZE"`
	MaxRetry  int           `mapstructure:"DISPATCH_MAX_RETRY"`
}

// Summary is the dispatcher's only return value; there is no per-item
// result surfaced to callers. Skipped counts entitlement skips, which are
// policy decisions, not delivery failures.
type Summary struct {
	Processed int `json:"processed"`
	Sent      int `json:"sent"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
}

// Dispatcher selects due, unsent, entitled reminders and sends them through
// the abstract notifier, updating delivery state per item so a restart
// resumes cleanly without re-sending already-sent channels.
type Dispatcher struct {
	reminders    domain.ReminderRepository
	entitlements domain.EntitlementProvider
	notifier     domain.Notifier
	logger       *slog.Logger
	config       DispatcherConfig
	nowFunc      func() time.Time

	// mu serializes dispatch runs in this process. Across processes the
	// acquire query's claim-update keeps two instances off the same rows.
	mu sync.Mutex
}

// NewDispatcher creates a new Dispatcher instance.
func NewDispatcher(
	reminders domain.ReminderRepository,
	entitlements domain.EntitlementProvider,
	notifier domain.Notifier,
	logger *slog.Logger,
	cfg DispatcherConfig,
) *Dispatcher {
	if cfg.MaxRetry <= 0 {
		cfg.MaxRetry = domain.MaxDeliveryRetries
	}
	return &Dispatcher{
		reminders:    reminders,
		entitlements: entitlements,
		notifier:     notifier,
		logger:       logger.With("component", "dispatcher"),
		config:       cfg,
		nowFunc:      time.Now,
	}
}

// Dispatch performs one dispatcher run over the configured window.
// A critical error is returned only when the due-reminder query itself
// fails; individual delivery failures are absorbed per item.
func (d *Dispatcher) Dispatch(ctx context.Context) (Summary, error) {
	if !d.mu.TryLock() {
		d.logger.WarnContext(ctx, "Previous dispatch run still in progress, skipping tick")
		return Summary{}, nil
	}
	defer d.mu.Unlock()

	timer := prometheus.NewTimer(dispatchDurationHist)
	defer timer.ObserveDuration()

	now := d.nowFunc().UTC()
	windowStart := now
	windowEnd := now.Add(d.config.Window)

	due, err := d.reminders.AcquireDueInWindow(ctx, uuid.NullUUID{}, windowStart, windowEnd, d.config.MaxRetry, d.config.BatchSize)
	if err != nil {
		if errors.Is(err, domain.ErrNoDueReminders) {
			return Summary{}, nil
		}
		return Summary{}, fmt.Errorf("acquire due reminders: %w", err)
	}

	var summary Summary
	for _, rem := range due {
		summary.Processed++
		// A failed delivery becomes due again at the window end, which the
		// next tick's window covers.
		outcome := d.process(ctx, rem, now, windowEnd)
		switch outcome {
		case "sent":
			summary.Sent++
		case "failed":
			summary.Failed++
		case "skipped":
			summary.Skipped++
		}
		remindersProcessedCounter.WithLabelValues(outcome).Inc()
	}

	d.logger.InfoContext(ctx, "Dispatch run completed",
		"window_start", windowStart.Format(time.RFC3339),
		"window_end", windowEnd.Format(time.RFC3339),
		"processed", summary.Processed,
		"sent", summary.Sent,
		"failed", summary.Failed,
		"skipped", summary.Skipped,
	)
	return summary, nil
}

// process handles a single reminder and never lets a failure escape: one
// bad record must not break the dispatcher cadence.
func (d *Dispatcher) process(ctx context.Context, rem *domain.Reminder, now, retryAt time.Time) (outcome string) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.ErrorContext(ctx, "Panic while processing reminder", "reminder_id", rem.ID, "panic", r)
			outcome = "failed"
			if err := d.reminders.MarkAsFailed(ctx, rem.ID, now, retryAt); err != nil {
				d.logger.ErrorContext(ctx, "Failed to record delivery failure", "reminder_id", rem.ID, "error", err)
			}
		}
	}()

	entitled, err := d.entitlements.IsActivePremium(ctx, rem.UserID)
	if err != nil {
		// Treated as a policy skip, not a delivery failure: no retry
		// accounting, the reminder stays selectable next tick.
		d.logger.ErrorContext(ctx, "Entitlement check failed", "reminder_id", rem.ID, "user_id", rem.UserID, "error", err)
		return "skipped"
	}
	if !entitled {
		d.logger.InfoContext(ctx, "Reminder skipped, user not entitled", "reminder_id", rem.ID, "user_id", rem.UserID)
		return "skipped"
	}

	for _, ch := range rem.EnabledUnsentChannels() {
		if err := d.send(ctx, rem, ch); err != nil {
			d.logger.ErrorContext(ctx, "Channel delivery failed",
				"reminder_id", rem.ID, "channel", ch, "retry_count", rem.RetryCount, "error", err)
			if err := d.reminders.MarkAsFailed(ctx, rem.ID, now, retryAt); err != nil {
				d.logger.ErrorContext(ctx, "Failed to record delivery failure", "reminder_id", rem.ID, "error", err)
			}
			return "failed"
		}
		// Persisted per channel, not batched, so partially-delivered state
		// survives a crash and only the remaining channels are retried.
		if err := d.reminders.MarkAsSent(ctx, rem.ID, ch, now); err != nil {
			d.logger.ErrorContext(ctx, "Failed to record channel send", "reminder_id", rem.ID, "channel", ch, "error", err)
			return "failed"
		}
		if err := rem.MarkChannelSent(ch, now); err != nil {
			d.logger.ErrorContext(ctx, "Channel state update failed", "reminder_id", rem.ID, "channel", ch, "error", err)
		}
	}
	return "sent"
}

func (d *Dispatcher) send(ctx context.Context, rem *domain.Reminder, ch domain.Channel) error {
	switch ch {
	case domain.ChannelEmail:
		return d.notifier.SendEmail(ctx, rem)
	case domain.ChannelSMS:
		return d.notifier.SendSMS(ctx, rem)
	default:
		return fmt.Errorf("%w: %q", domain.ErrUnknownChannel, ch)
	}
}
