package app

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/medtrackhq/medtrack/internal/platform/messagebroker"
)

// MedicationCreatedEvent is the message published when a medication is
// registered upstream. The schedule it references is expanded on receipt.
type MedicationCreatedEvent struct {
	ScheduleID string `json:"schedule_id"`
}

// ExpansionConsumer subscribes to medication-created events and runs
// recurrence expansion for each. Expansion is idempotent, so at-least-once
// delivery upstream is safe.
type ExpansionConsumer struct {
	expander   *Expander
	natsClient *messagebroker.NATSClient
	logger     *slog.Logger
	sub        *nats.Subscription
}

// NewExpansionConsumer creates a new ExpansionConsumer.
func NewExpansionConsumer(expander *Expander, natsClient *messagebroker.NATSClient, logger *slog.Logger) *ExpansionConsumer {
	return &ExpansionConsumer{
		expander:   expander,
		natsClient: natsClient,
		logger:     logger.With("component", "expansion_consumer"),
	}
}

// Start subscribes to the given subject with a queue group so each event is
// expanded by exactly one worker instance.
func (c *ExpansionConsumer) Start(ctx context.Context, subject, queueGroup string) error {
	if c.natsClient == nil {
		return errors.New("NATS client not initialized in ExpansionConsumer")
	}
	c.logger.Info("Starting medication-created consumer", "subject", subject, "queue_group", queueGroup)

	msgHandler := func(msg *nats.Msg) {
		var event MedicationCreatedEvent
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			c.logger.ErrorContext(ctx, "Failed to unmarshal medication-created event", "error", err, "data", string(msg.Data))
			return
		}
		scheduleID, err := uuid.Parse(event.ScheduleID)
		if err != nil {
			c.logger.ErrorContext(ctx, "Invalid schedule id in medication-created event", "error", err, "schedule_id", event.ScheduleID)
			return
		}

		summary, err := c.expander.ExpandByID(ctx, scheduleID)
		if err != nil {
			// Dropped on failure: the daily top-up pass will generate the
			// missing occurrences.
			c.logger.ErrorContext(ctx, "Expansion failed for created medication", "error", err, "schedule_id", scheduleID)
			return
		}
		c.logger.InfoContext(ctx, "Expanded created medication",
			"schedule_id", scheduleID,
			"inserted", summary.Inserted,
			"duplicates", summary.Duplicates,
		)
	}

	sub, err := c.natsClient.SubscribeQueue(subject, queueGroup, msgHandler)
	if err != nil {
		return err
	}
	c.sub = sub
	return nil
}

// Stop unsubscribes from the event subject.
func (c *ExpansionConsumer) Stop() {
	if c.sub != nil {
		if err := c.sub.Unsubscribe(); err != nil {
			c.logger.Warn("Failed to unsubscribe consumer", "error", err)
		}
	}
}
