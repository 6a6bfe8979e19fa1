package engine

import (
	"math"
	"regexp"
	"strconv"
	"time"
)

// InvalidTimestamp marks an Event whose line carries no parseable timestamp.
// It is distinct from every real instant, including the Unix epoch.
const InvalidTimestamp int64 = math.MinInt64

// accessLogTime matches the bracketed web access log timestamp,
// e.g. [17/May/2015:10:05:03 +0000].
var accessLogTime = regexp.MustCompile(`\[(\d{2})/([A-Za-z]{3})/(\d{4}):(\d{2}):(\d{2}):(\d{2}) ([+-])(\d{2})(\d{2})\]`)

var months = map[string]time.Month{
	"Jan": time.January, "Feb": time.February, "Mar": time.March,
	"Apr": time.April, "May": time.May, "Jun": time.June,
	"Jul": time.July, "Aug": time.August, "Sep": time.September,
	"Oct": time.October, "Nov": time.November, "Dec": time.December,
}

// Event represents one log line returned by a query.
// Only Raw is serialized; the timestamp exists for ordering.
type Event struct {
	Raw string `json:"raw"`

	msSinceEpoch int64
}

// NewEvent wraps a raw line and extracts its timestamp.
func NewEvent(raw string) Event {
	return Event{Raw: raw, msSinceEpoch: extractTimestamp(raw)}
}

// TimestampMillis returns milliseconds since the epoch, or InvalidTimestamp.
func (e Event) TimestampMillis() int64 {
	return e.msSinceEpoch
}

// HasTimestamp reports whether the line carried a parseable timestamp.
func (e Event) HasTimestamp() bool {
	return e.msSinceEpoch != InvalidTimestamp
}

// extractTimestamp parses the first bracketed timestamp in raw. Each component
// is range-checked and the zone offset is applied.
func extractTimestamp(raw string) int64 {
	m := accessLogTime.FindStringSubmatch(raw)
	if m == nil {
		return InvalidTimestamp
	}

	month, ok := months[m[2]]
	if !ok {
		return InvalidTimestamp
	}
	day, _ := strconv.Atoi(m[1])
	year, _ := strconv.Atoi(m[3])
	hour, _ := strconv.Atoi(m[4])
	minute, _ := strconv.Atoi(m[5])
	sec, _ := strconv.Atoi(m[6])
	offHour, _ := strconv.Atoi(m[8])
	offMin, _ := strconv.Atoi(m[9])

	if hour > 23 || minute > 59 || sec > 59 || offHour > 14 || offMin > 59 {
		return InvalidTimestamp
	}

	offset := offHour*3600 + offMin*60
	if m[7] == "-" {
		offset = -offset
	}
	t := time.Date(year, month, day, hour, minute, sec, 0, time.FixedZone("", offset))

	// time.Date normalizes overflow (31/Feb -> 3/Mar); reject instead.
	if t.Day() != day || t.Month() != month {
		return InvalidTimestamp
	}
	return t.UnixMilli()
}
