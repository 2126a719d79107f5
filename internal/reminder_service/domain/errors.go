package domain

import "errors"

var (
	// ErrNotFound indicates that a requested reminder was not found.
	ErrNotFound = errors.New("reminder not found")
	// ErrNoDueReminders indicates no reminders fall in the dispatch window.
	ErrNoDueReminders = errors.New("no due reminders found")
	// ErrUnknownChannel indicates a channel name outside {email, sms}.
	ErrUnknownChannel = errors.New("unknown notification channel")
	// ErrChannelDisabled indicates a send attempt on a disabled channel.
	ErrChannelDisabled = errors.New("notification channel disabled")
)
