package timeutil

import (
	"fmt"
	"time"
)

// Layout is the timestamp format used everywhere attendance times are stored
// or displayed: "YYYY-MM-DD HH:MM:SS" in local time.
const Layout = "2006-01-02 15:04:05"

// DefaultLateHour is the hour-of-day threshold for IsLate.
const DefaultLateHour = 9

// FormatError reports a timestamp string that does not match Layout.
type FormatError struct {
	Value string
	Err   error
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("malformed timestamp %q: %v", e.Value, e.Err)
}

func (e *FormatError) Unwrap() error { return e.Err }

// Now returns the current local time formatted with Layout.
func Now() string {
	return time.Now().Format(Layout)
}

// Parse converts a Layout-formatted string back into a time.Time in the
// local timezone.
func Parse(s string) (time.Time, error) {
	t, err := time.ParseInLocation(Layout, s, time.Local)
	if err != nil {
		return time.Time{}, &FormatError{Value: s, Err: err}
	}
	return t, nil
}

// Duration returns the whole minutes elapsed between a login and a logout
// timestamp. The caller must ensure logoutTS is not before loginTS.
func Duration(loginTS, logoutTS string) (int, error) {
	login, err := Parse(loginTS)
	if err != nil {
		return 0, err
	}
	logout, err := Parse(logoutTS)
	if err != nil {
		return 0, err
	}
	return int(logout.Sub(login).Minutes()), nil
}

// FormatDuration renders minutes as "Xh Ym".
func FormatDuration(minutes int) string {
	hours, mins := minutes/60, minutes%60
	return fmt.Sprintf("%dh %dm", hours, mins)
}

// IsLate reports whether the check-in hour is at or past thresholdHour.
// A thresholdHour <= 0 falls back to DefaultLateHour.
func IsLate(checkinTS string, thresholdHour int) (bool, error) {
	t, err := Parse(checkinTS)
	if err != nil {
		return false, err
	}
	if thresholdHour <= 0 {
		thresholdHour = DefaultLateHour
	}
	return t.Hour() >= thresholdHour, nil
}
