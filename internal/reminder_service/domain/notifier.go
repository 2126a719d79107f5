package domain

import "context"

// Notifier is the abstract delivery capability consumed by the dispatcher.
// Transport internals (SMTP, SMS gateways, push) live behind it.
type Notifier interface {
	SendEmail(ctx context.Context, rem *Reminder) error
	SendSMS(ctx context.Context, rem *Reminder) error
}
