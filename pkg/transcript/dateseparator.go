package transcript

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Date separator regular expressions
var (
	// Matches: --- 2024-01-15 ---
	isoDateRegex = regexp.MustCompile(`^---\s+(\d{4})-(\d{2})-(\d{2})\s+---$`)

	// Matches: --- January 15, 2024 --- (comma optional, month case-insensitive)
	naturalDateRegex = regexp.MustCompile(`(?i)^---\s+(January|February|March|April|May|June|July|August|September|October|November|December)\s+(\d{1,2}),?\s+(\d{4})\s+---$`)
)

// DisplayDateLayout is the long form used for FormattedDate.
const DisplayDateLayout = "Monday, January 2, 2006"

var monthsByName = func() map[string]time.Month {
	m := make(map[string]time.Month, 12)
	for i := time.January; i <= time.December; i++ {
		m[i.String()] = i
	}
	return m
}()

// ParseDateSeparator recognizes a full line of the form "--- <date> ---".
func ParseDateSeparator(text string) (*DateSeparator, bool) {
	trimmed := strings.TrimSpace(text)

	if m := isoDateRegex.FindStringSubmatch(trimmed); m != nil {
		year, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		day, _ := strconv.Atoi(m[3])
		if date, ok := calendarDate(year, month, day); ok {
			return newDateSeparator(trimmed, date), true
		}
	}

	if m := naturalDateRegex.FindStringSubmatch(trimmed); m != nil {
		name := cases.Title(language.English).String(strings.ToLower(m[1]))
		month := monthsByName[name]
		day, _ := strconv.Atoi(m[2])
		year, _ := strconv.Atoi(m[3])
		if date, ok := calendarDate(year, int(month), day); ok {
			return newDateSeparator(trimmed, date), true
		}
	}

	return nil, false
}

// calendarDate builds a local midnight date and rejects values that
// time.Date had to normalize (month 13, Feb 30, day 35).
func calendarDate(year, month, day int) (time.Time, bool) {
	if month < 1 || month > 12 || day < 1 {
		return time.Time{}, false
	}
	date := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.Local)
	if date.Year() != year || int(date.Month()) != month || date.Day() != day {
		return time.Time{}, false
	}
	return date, true
}

func newDateSeparator(raw string, date time.Time) *DateSeparator {
	return &DateSeparator{
		Raw:           raw,
		Date:          date,
		FormattedDate: date.Format(DisplayDateLayout),
	}
}
