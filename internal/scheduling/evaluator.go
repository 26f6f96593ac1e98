package scheduling

import (
	"fmt"
	"time"

	"github.com/xaenox/globalsync/internal/models"
)

// Weights are the soft-preference bonuses. Only their relative order matters.
type Weights struct {
	ExplicitHours int `mapstructure:"explicit_hours"`
	TimeWindow    int `mapstructure:"time_window"`
	Date          int `mapstructure:"date"`
	DateRange     int `mapstructure:"date_range"`
	Weekday       int `mapstructure:"weekday"`
}

func DefaultWeights() Weights {
	return Weights{
		ExplicitHours: 100,
		TimeWindow:    50,
		Date:          40,
		DateRange:     35,
		Weekday:       30,
	}
}

// Validate enforces explicit hours > windows > dates > date ranges > weekdays > 0.
func (w Weights) Validate() error {
	order := []struct {
		name  string
		value int
	}{
		{"explicit_hours", w.ExplicitHours},
		{"time_window", w.TimeWindow},
		{"date", w.Date},
		{"date_range", w.DateRange},
		{"weekday", w.Weekday},
	}
	for i := 1; i < len(order); i++ {
		if order[i-1].value <= order[i].value {
			return fmt.Errorf("weight %s (%d) must exceed %s (%d)",
				order[i-1].name, order[i-1].value, order[i].name, order[i].value)
		}
	}
	if w.Weekday <= 0 {
		return fmt.Errorf("weight weekday must be positive, got %d", w.Weekday)
	}
	return nil
}

// Rejection names the hard constraint a candidate failed.
type Rejection string

const (
	RejectNone        Rejection = ""
	RejectWeekend     Rejection = "weekend"
	RejectHoliday     Rejection = "holiday"
	RejectOutsideWork Rejection = "outside_work_hours"
	RejectAvoidDate   Rejection = "avoid_date"
	RejectAvoidRange  Rejection = "avoid_date_range"
	RejectAvoidDay    Rejection = "avoid_weekday"
	RejectAvoidWindow Rejection = "avoid_time_window"
)

// Candidate is one hourly instant under consideration.
type Candidate struct {
	Time           time.Time
	Local          LocalParts
	Valid          bool
	Rejection      Rejection
	IsWeekend      bool
	IsHoliday      bool
	HolidayName    string
	Score          int
	Matched        []string
	Friendliness   int
	IsUserWorkTime bool
}

// Evaluator applies hard constraints and soft scoring to candidates of one customer.
type Evaluator struct {
	Customer    *models.Customer
	Location    *time.Location
	Preferences *models.ExtractedPreferences
	Holidays    map[string]string
	WorkHours   models.HourWindow
	Weights     Weights
}

// Evaluate checks t against the hard constraints in diagnostic order and,
// when it passes, scores it.
func (e *Evaluator) Evaluate(t time.Time) Candidate {
	c := Candidate{Time: t, Local: LocalPartsOf(t, e.Location)}

	if c.Local.IsWeekend() {
		c.IsWeekend = true
		c.Rejection = RejectWeekend
		return c
	}
	if name, ok := e.Holidays[c.Local.Date]; ok {
		c.IsHoliday = true
		c.HolidayName = name
		c.Rejection = RejectHoliday
		return c
	}
	if !e.WorkHours.Contains(c.Local.Hour) {
		c.Rejection = RejectOutsideWork
		return c
	}
	if r := e.avoided(c.Local); r != RejectNone {
		c.Rejection = r
		return c
	}

	c.Valid = true
	c.Score, c.Matched = e.Score(c.Local)
	return c
}

func (e *Evaluator) avoided(lp LocalParts) Rejection {
	p := e.Preferences
	if p == nil {
		return RejectNone
	}
	for _, d := range p.AvoidDates {
		if d == lp.Date {
			return RejectAvoidDate
		}
	}
	for _, r := range p.AvoidDateRanges {
		if r.Contains(lp.Date) {
			return RejectAvoidRange
		}
	}
	day := models.WeekdayFromTime(time.Weekday(lp.Weekday))
	for _, d := range p.AvoidWeekdays {
		if d == day {
			return RejectAvoidDay
		}
	}
	for _, w := range p.AvoidTimeWindows {
		if InTimeWindow(w, lp.MinuteOfDay()) {
			return RejectAvoidWindow
		}
	}
	return RejectNone
}

// Score computes the soft preference score and the names of the signals that matched.
func (e *Evaluator) Score(lp LocalParts) (int, []string) {
	score := 0
	var matched []string

	if ph := e.Customer.PreferredHours; ph != nil && ph.Contains(lp.Hour) {
		score += e.Weights.ExplicitHours
		matched = append(matched, "preferred hours "+ph.String())
	}

	p := e.Preferences
	if p == nil {
		return score, matched
	}
	for _, w := range p.PreferredTimeWindows {
		if InTimeWindow(w, lp.MinuteOfDay()) {
			score += e.Weights.TimeWindow
			matched = append(matched, "preferred window "+w.Start+"-"+w.End)
			break
		}
	}
	day := models.WeekdayFromTime(time.Weekday(lp.Weekday))
	for _, d := range p.PreferredWeekdays {
		if d == day {
			score += e.Weights.Weekday
			matched = append(matched, "preferred weekday "+string(d))
			break
		}
	}
	for _, d := range p.PreferredDates {
		if d == lp.Date {
			score += e.Weights.Date
			matched = append(matched, "preferred date "+d)
			break
		}
	}
	for _, r := range p.PreferredDateRanges {
		if r.Contains(lp.Date) {
			score += e.Weights.DateRange
			matched = append(matched, "preferred range "+r.Start+".."+r.End)
			break
		}
	}
	return score, matched
}

// InTimeWindow reports whether minute (since midnight) lies in [start, end).
// Windows with start after end wrap past midnight; malformed windows never match.
func InTimeWindow(w models.TimeWindow, minute int) bool {
	start, err := ParseClock(w.Start)
	if err != nil {
		return false
	}
	end, err := ParseClock(w.End)
	if err != nil {
		return false
	}
	if start <= end {
		return minute >= start && minute < end
	}
	return minute >= start || minute < end
}

// Friendliness rates a sender-local hour from 0 (small hours) to 4 (inside work hours).
// Late evening ranks below early morning.
func Friendliness(hour int, work models.HourWindow) int {
	switch {
	case work.Contains(hour):
		return 4
	case hour >= work.End && hour < 22:
		return 3
	case hour >= 6 && hour < work.Start:
		return 2
	case hour >= 22 && hour < 24:
		return 1
	default:
		return 0
	}
}
