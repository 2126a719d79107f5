package domain

import "errors"

var (
	// ErrNotFound indicates that a requested record was not found.
	ErrNotFound = errors.New("adherence record not found")
	// ErrScheduleNotFound indicates that a medication schedule was not found.
	ErrScheduleNotFound = errors.New("medication schedule not found")
	// ErrUnauthorized indicates the caller does not own the record.
	ErrUnauthorized = errors.New("record does not belong to user")
	// ErrInvalidStateTransition indicates a disallowed dose status change.
	ErrInvalidStateTransition = errors.New("invalid adherence state transition")
	// ErrInvalidTimeFormat indicates a time-of-day string that is neither
	// 24-hour "HH:MM" nor 12-hour "h:mm AM/PM".
	ErrInvalidTimeFormat = errors.New("invalid time format")
	// ErrMissingStartDate indicates a schedule without a start date.
	ErrMissingStartDate = errors.New("schedule start date is required")
	// ErrUnknownTimezone indicates an unresolvable IANA zone name.
	ErrUnknownTimezone = errors.New("unknown timezone")
)
