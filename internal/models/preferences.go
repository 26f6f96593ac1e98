package models

import (
	"fmt"
	"strings"
	"time"
)

// Weekday is a three-letter uppercase day name as produced by the extractor.
type Weekday string

const (
	Monday    Weekday = "MON"
	Tuesday   Weekday = "TUE"
	Wednesday Weekday = "WED"
	Thursday  Weekday = "THU"
	Friday    Weekday = "FRI"
	Saturday  Weekday = "SAT"
	Sunday    Weekday = "SUN"
)

// indexed by time.Weekday
var weekdayCodes = [...]Weekday{Sunday, Monday, Tuesday, Wednesday, Thursday, Friday, Saturday}

// WeekdayFromTime maps a time.Weekday onto its code.
func WeekdayFromTime(d time.Weekday) Weekday {
	return weekdayCodes[d]
}

// ParseWeekday accepts codes case-insensitively.
func ParseWeekday(s string) (Weekday, error) {
	w := Weekday(strings.ToUpper(strings.TrimSpace(s)))
	for _, code := range weekdayCodes {
		if code == w {
			return w, nil
		}
	}
	return "", fmt.Errorf("invalid weekday %q", s)
}

// TimeWindow is a local clock range in HH:MM. A window whose start is later
// than its end wraps past midnight.
type TimeWindow struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// DateRange is an inclusive range of YYYY-MM-DD dates.
type DateRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// Contains compares ISO dates as strings, which sort chronologically.
func (r DateRange) Contains(date string) bool {
	return r.Start <= date && date <= r.End
}

// ExtractedPreferences are the scheduling signals derived from free-text notes.
// A nil or empty list never constrains anything.
type ExtractedPreferences struct {
	PreferredTimeWindows []TimeWindow `json:"preferred_time_windows"`
	AvoidTimeWindows     []TimeWindow `json:"avoid_time_windows"`
	PreferredWeekdays    []Weekday    `json:"preferred_weekdays"`
	AvoidWeekdays        []Weekday    `json:"avoid_weekdays"`
	PreferredDates       []string     `json:"preferred_dates"`
	AvoidDates           []string     `json:"avoid_dates"`
	PreferredDateRanges  []DateRange  `json:"preferred_date_ranges"`
	AvoidDateRanges      []DateRange  `json:"avoid_date_ranges"`
	Confidence           float64      `json:"confidence"`
	NotesLanguage        string       `json:"notes_language"`
}

// IsEmpty reports whether no dimension carries a signal.
func (p *ExtractedPreferences) IsEmpty() bool {
	if p == nil {
		return true
	}
	return len(p.PreferredTimeWindows) == 0 && len(p.AvoidTimeWindows) == 0 &&
		len(p.PreferredWeekdays) == 0 && len(p.AvoidWeekdays) == 0 &&
		len(p.PreferredDates) == 0 && len(p.AvoidDates) == 0 &&
		len(p.PreferredDateRanges) == 0 && len(p.AvoidDateRanges) == 0
}

// EmptyPreferences is returned when extraction yields nothing usable.
func EmptyPreferences() *ExtractedPreferences {
	return &ExtractedPreferences{
		PreferredTimeWindows: []TimeWindow{},
		AvoidTimeWindows:     []TimeWindow{},
		PreferredWeekdays:    []Weekday{},
		AvoidWeekdays:        []Weekday{},
		PreferredDates:       []string{},
		AvoidDates:           []string{},
		PreferredDateRanges:  []DateRange{},
		AvoidDateRanges:      []DateRange{},
		Confidence:           0,
		NotesLanguage:        "unknown",
	}
}

// PreferenceCache pairs extracted preferences with the hash of the notes they came from.
type PreferenceCache struct {
	NotesHash   string                `json:"notes_hash"`
	Preferences *ExtractedPreferences `json:"preferences"`
	ExtractedAt time.Time             `json:"extracted_at"`
}

// ValidFor reports whether the cache was built from notes with the given hash.
func (c *PreferenceCache) ValidFor(hash string) bool {
	return c != nil && c.NotesHash == hash
}
