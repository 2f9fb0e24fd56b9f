package tablekernel

import (
	"fmt"
	"strings"
	"time"
)

var epoch = time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC)

// epochDayToDate converts days-since-epoch into a UTC time.Time at midnight.
func epochDayToDate(days int32) time.Time {
	return epoch.AddDate(0, 0, int(days))
}

// dateToEpochDay converts a UTC date into days-since-epoch.
func dateToEpochDay(t time.Time) int32 {
	days := t.UTC().Sub(epoch).Hours() / 24
	return int32(days)
}

// epochMicrosToTime converts microseconds-since-epoch into a UTC time.Time.
func epochMicrosToTime(micros int64) time.Time {
	return epoch.Add(time.Duration(micros) * time.Microsecond)
}

// timeToEpochMicros converts a time.Time into microseconds-since-epoch (UTC).
func timeToEpochMicros(t time.Time) int64 {
	return t.UTC().Sub(epoch).Microseconds()
}

// ParseDate parses a "YYYY-MM-DD" literal into a date scalar.
func ParseDate(s string) (Scalar, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Scalar{}, &KernelError{Type: ErrorTypeParseError, Code: ErrCodeParseError,
			Message: fmt.Sprintf("invalid date literal %q", s), Cause: err}
	}
	return OfDate(dateToEpochDay(t)), nil
}

// ParseTimestamp parses a zoned timestamp: either "YYYY-MM-DD HH:MM:SS[.ffffff]"
// (interpreted as UTC) or a full ISO-8601/RFC-3339 literal with an explicit
// offset or "Z". Unlike ParseTimestampNtz, it accepts literals that carry
// an offset or "Z".
func ParseTimestamp(s string) (Scalar, error) {
	micros, err := parseTimestampMicros(s, true)
	if err != nil {
		return Scalar{}, err
	}
	return OfTimestamp(micros), nil
}

// ParseTimestampNtz parses a zone-less timestamp literal
// "YYYY-MM-DD HH:MM:SS[.ffffff]". ISO-8601 literals carrying an explicit
// offset or trailing "Z" are rejected, since a timestamp_ntz value has no
// time zone to reconcile them against.
func ParseTimestampNtz(s string) (Scalar, error) {
	if strings.ContainsAny(s, "Zz") || hasExplicitOffset(s) {
		return Scalar{}, &KernelError{Type: ErrorTypeParseError, Code: ErrCodeParseError,
			Message: fmt.Sprintf("timestamp_ntz literal %q must not carry a time zone", s)}
	}
	micros, err := parseTimestampMicros(s, false)
	if err != nil {
		return Scalar{}, err
	}
	return OfTimestampNtz(micros), nil
}

func hasExplicitOffset(s string) bool {
	idx := strings.IndexAny(s, "T ")
	if idx < 0 {
		return false
	}
	rest := s[idx+1:]
	return strings.ContainsAny(rest, "+") || strings.Count(rest, "-") > 0
}

var timestampLayouts = []string{
	"2006-01-02 15:04:05.999999",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05.999999Z07:00",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02 15:04:05.999999Z07:00",
	"2006-01-02 15:04:05Z07:00",
}

func parseTimestampMicros(s string, zoned bool) (int64, error) {
	var lastErr error
	for _, layout := range timestampLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			if !zoned {
				t = time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
			}
			return timeToEpochMicros(t), nil
		}
		lastErr = err
	}
	return 0, &KernelError{Type: ErrorTypeParseError, Code: ErrCodeParseError,
		Message: fmt.Sprintf("invalid timestamp literal %q", s), Cause: lastErr}
}
