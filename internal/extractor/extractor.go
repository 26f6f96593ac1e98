package extractor

import (
	"context"
	"regexp"
	"strings"

	"github.com/xaenox/globalsync/internal/models"
)

// Request carries the notes and the locale context used to resolve relative dates.
type Request struct {
	Notes          string
	CountryCode    string
	Timezone       string
	TodayLocalDate string
}

type Extractor interface {
	Extract(ctx context.Context, req Request) (*models.ExtractedPreferences, error)
}

// KeywordExtractor is a rule-based extractor for English notes, used when
// no language model is configured.
type KeywordExtractor struct{}

func NewKeywordExtractor() *KeywordExtractor {
	return &KeywordExtractor{}
}

var (
	sentenceSplit = regexp.MustCompile(`[.;!?\n]+`)
	clauseSplit   = regexp.MustCompile(`(?i),|\b(?:but|however|whereas|although|though|except)\b`)
	joinSplit     = regexp.MustCompile(`(?i)\band\b|&`)

	negatorPattern = regexp.MustCompile(`(?i)\b(?:no|not|never|avoid|avoids|avoiding|don[’']?t|doesn[’']?t|can[’']?t|cannot|busy|unavailable|off|hates?)\b`)

	// Full day names match in any case; abbreviations only as capitalised tokens
	// so words like "common" or "showed" never count.
	dayPattern = regexp.MustCompile(`(?i:\b(monday|tuesday|wednesday|thursday|friday|saturday|sunday)s?\b)|\b(Mon|MON|Tue|Tues|TUE|Wed|WED|Thu|Thur|Thurs|THU|Fri|FRI|Sat|SAT|Sun|SUN)\b`)

	periodPattern = regexp.MustCompile(`(?i)\b(morning|lunch|lunchtime|afternoon|evening)s?\b`)

	// Tokens that may surround a bare day or period after "and".
	fillerWords = map[string]struct{}{
		"on": {}, "the": {}, "in": {}, "at": {}, "or": {}, "also": {}, "either": {},
	}

	dayWords = map[string]models.Weekday{
		"mon": models.Monday, "tue": models.Tuesday, "wed": models.Wednesday,
		"thu": models.Thursday, "fri": models.Friday, "sat": models.Saturday,
		"sun": models.Sunday,
	}

	periodWords = map[string]models.TimeWindow{
		"morning":   {Start: "09:00", End: "12:00"},
		"lunch":     {Start: "12:00", End: "13:00"},
		"lunchtime": {Start: "12:00", End: "13:00"},
		"afternoon": {Start: "13:00", End: "18:00"},
		"evening":   {Start: "18:00", End: "21:00"},
	}
)

// Extract scans clause by clause. A negation applies only to the clause it
// appears in; a bare day or period joined with "and" inherits the polarity of
// the segment before it ("avoid Monday and Friday").
func (k *KeywordExtractor) Extract(ctx context.Context, req Request) (*models.ExtractedPreferences, error) {
	prefs := models.EmptyPreferences()
	if strings.TrimSpace(req.Notes) == "" {
		return prefs, nil
	}

	for _, sentence := range sentenceSplit.Split(req.Notes, -1) {
		for _, clause := range clauseSplit.Split(sentence, -1) {
			negative := false
			for _, segment := range joinSplit.Split(clause, -1) {
				if strings.TrimSpace(segment) == "" {
					continue
				}
				if !isBare(segment) {
					negative = negatorPattern.MatchString(segment)
				}
				collect(prefs, segment, negative)
			}
		}
	}

	if !prefs.IsEmpty() {
		prefs.Confidence = 0.3
	}
	prefs.NotesLanguage = "en"
	return prefs, nil
}

func collect(prefs *models.ExtractedPreferences, segment string, negative bool) {
	for _, m := range dayPattern.FindAllStringSubmatch(segment, -1) {
		name := m[1]
		if name == "" {
			name = m[2]
		}
		day := dayWords[strings.ToLower(name)[:3]]
		if negative {
			prefs.AvoidWeekdays = appendDay(prefs.AvoidWeekdays, day)
		} else {
			prefs.PreferredWeekdays = appendDay(prefs.PreferredWeekdays, day)
		}
	}
	for _, m := range periodPattern.FindAllStringSubmatch(segment, -1) {
		window := periodWords[strings.ToLower(m[1])]
		if negative {
			prefs.AvoidTimeWindows = appendWindow(prefs.AvoidTimeWindows, window)
		} else {
			prefs.PreferredTimeWindows = appendWindow(prefs.PreferredTimeWindows, window)
		}
	}
}

// isBare reports whether segment holds nothing but days, periods and fillers.
func isBare(segment string) bool {
	rest := periodPattern.ReplaceAllString(dayPattern.ReplaceAllString(segment, " "), " ")
	if rest == segment {
		return false
	}
	for _, word := range strings.Fields(strings.ToLower(rest)) {
		if _, ok := fillerWords[word]; !ok {
			return false
		}
	}
	return true
}

func appendDay(days []models.Weekday, d models.Weekday) []models.Weekday {
	for _, existing := range days {
		if existing == d {
			return days
		}
	}
	return append(days, d)
}

func appendWindow(windows []models.TimeWindow, w models.TimeWindow) []models.TimeWindow {
	for _, existing := range windows {
		if existing == w {
			return windows
		}
	}
	return append(windows, w)
}
