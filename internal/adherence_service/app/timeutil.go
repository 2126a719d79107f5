package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/medtrackhq/medtrack/internal/adherence_service/domain"
)

// Ensure24Hour normalizes a time-of-day string to 24-hour "HH:MM".
// It accepts "HH:MM" unchanged and converts "h:mm AM/PM" forms,
// mapping 12AM to 00 and 12PM to 12.
func Ensure24Hour(timeStr string) (string, error) {
	trimmed := strings.TrimSpace(timeStr)
	if t, err := time.Parse("15:04", trimmed); err == nil {
		return t.Format("15:04"), nil
	}
	upper := strings.ToUpper(trimmed)
	for _, layout := range []string{"3:04 PM", "3:04PM"} {
		if t, err := time.Parse(layout, upper); err == nil {
			return t.Format("15:04"), nil
		}
	}
	return "", fmt.Errorf("%w: %q", domain.ErrInvalidTimeFormat, timeStr)
}

// LocalToUTC composes a zoned date-time from a calendar day and a
// normalized "HH:MM" string in the given IANA zone, then converts to UTC.
// Offset resolution goes through the zone database, so DST transitions
// are handled correctly.
func LocalToUTC(localDay time.Time, timeStr, timezone string) (time.Time, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", domain.ErrUnknownTimezone, timezone)
	}
	normalized, err := Ensure24Hour(timeStr)
	if err != nil {
		return time.Time{}, err
	}
	tod, _ := time.Parse("15:04", normalized)
	y, m, d := localDay.Date()
	return time.Date(y, m, d, tod.Hour(), tod.Minute(), 0, 0, loc).UTC(), nil
}

// UTCToLocal is the inverse of LocalToUTC: it returns the local calendar
// day (midnight in the zone) and the local "HH:MM" for a UTC instant.
func UTCToLocal(instant time.Time, timezone string) (time.Time, string, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return time.Time{}, "", fmt.Errorf("%w: %q", domain.ErrUnknownTimezone, timezone)
	}
	local := instant.In(loc)
	y, m, d := local.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc), local.Format("15:04"), nil
}

// localDayStart returns midnight of t's calendar day in loc.
func localDayStart(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}
