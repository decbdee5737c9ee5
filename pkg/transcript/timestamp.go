package transcript

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Matches a leading [H:MM] or [H:MM:SS], optionally preceded by whitespace.
var timestampRegex = regexp.MustCompile(`^\s*\[(\d{1,2}):(\d{2})(?::(\d{2}))?\]`)

// TimestampMatch is the result of a successful ParseTimestamp.
type TimestampMatch struct {
	Timestamp Timestamp
	// Remaining is the unconsumed text after the closing bracket.
	Remaining string
}

// ParseTimestamp recognizes a timestamp at the start of text.
// Out-of-range hours, minutes or seconds are not a match.
func ParseTimestamp(text string) (TimestampMatch, bool) {
	loc := timestampRegex.FindStringSubmatchIndex(text)
	if loc == nil {
		return TimestampMatch{}, false
	}

	hours, _ := strconv.Atoi(text[loc[2]:loc[3]])
	minutes, _ := strconv.Atoi(text[loc[4]:loc[5]])
	if hours > 23 || minutes > 59 {
		return TimestampMatch{}, false
	}

	var seconds *int
	if loc[6] >= 0 {
		s, _ := strconv.Atoi(text[loc[6]:loc[7]])
		if s > 59 {
			return TimestampMatch{}, false
		}
		seconds = &s
	}

	return TimestampMatch{
		Timestamp: Timestamp{
			Raw:     strings.TrimSpace(text[:loc[1]]),
			Hours:   hours,
			Minutes: minutes,
			Seconds: seconds,
		},
		Remaining: text[loc[1]:],
	}, true
}

// FormatTimestamp renders HH:MM, or HH:MM:SS when seconds are present.
func FormatTimestamp(ts Timestamp) string {
	if ts.Seconds != nil {
		return fmt.Sprintf("%02d:%02d:%02d", ts.Hours, ts.Minutes, *ts.Seconds)
	}
	return fmt.Sprintf("%02d:%02d", ts.Hours, ts.Minutes)
}
