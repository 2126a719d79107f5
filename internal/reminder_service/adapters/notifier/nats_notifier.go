package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/medtrackhq/medtrack/internal/platform/messagebroker"
	"github.com/medtrackhq/medtrack/internal/reminder_service/domain"
)

// ChannelPayload is the message published for one channel delivery.
// Transport workers (SMTP relay, SMS gateway) consume these subjects.
type ChannelPayload struct {
	ReminderID   string    `json:"reminder_id"`
	UserID       string    `json:"user_id"`
	MedicationID string    `json:"medication_id"`
	ScheduledAt  time.Time `json:"scheduled_at"`
	Message      string    `json:"message"`
	Channel      string    `json:"channel"`
}

// NATSNotifier implements domain.Notifier by publishing channel payloads to
// NATS subjects. An empty SMS subject turns SMS sends into no-ops.
type NATSNotifier struct {
	natsClient   *messagebroker.NATSClient
	emailSubject string
	smsSubject   string
	logger       *slog.Logger
}

// NewNATSNotifier creates a new NATSNotifier.
func NewNATSNotifier(natsClient *messagebroker.NATSClient, emailSubject, smsSubject string, logger *slog.Logger) *NATSNotifier {
	return &NATSNotifier{
		natsClient:   natsClient,
		emailSubject: emailSubject,
		smsSubject:   smsSubject,
		logger:       logger.With("component", "nats_notifier"),
	}
}

func (n *NATSNotifier) SendEmail(ctx context.Context, rem *domain.Reminder) error {
	return n.publish(ctx, rem, domain.ChannelEmail, n.emailSubject)
}

func (n *NATSNotifier) SendSMS(ctx context.Context, rem *domain.Reminder) error {
	if n.smsSubject == "" {
		// SMS transport not configured; the channel is a no-op stub.
		n.logger.DebugContext(ctx, "SMS subject not configured, dropping send", "reminder_id", rem.ID)
		return nil
	}
	return n.publish(ctx, rem, domain.ChannelSMS, n.smsSubject)
}

func (n *NATSNotifier) publish(ctx context.Context, rem *domain.Reminder, ch domain.Channel, subject string) error {
	payload := ChannelPayload{
		ReminderID:   rem.ID.String(),
		UserID:       rem.UserID.String(),
		MedicationID: rem.MedicationID.String(),
		ScheduledAt:  rem.ScheduledAt,
		Message:      rem.Message,
		Channel:      string(ch),
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", ch, err)
	}
	if err := n.natsClient.Publish(ctx, subject, data); err != nil {
		return fmt.Errorf("publish %s notification: %w", ch, err)
	}
	n.logger.InfoContext(ctx, "Notification published", "reminder_id", rem.ID, "channel", ch, "subject", subject)
	return nil
}
