package scheduling

import (
	"errors"
	"fmt"
	"time"
)

const (
	DateFormat  = "2006-01-02"
	ClockFormat = "15:04"
)

// ErrUnknownTimezone is returned for IANA names the tz database does not know.
var ErrUnknownTimezone = errors.New("unknown timezone")

// LocalParts is the wall-clock view of an instant in some timezone.
type LocalParts struct {
	Hour    int
	Minute  int
	Weekday int // 0=Sunday .. 6=Saturday
	Date    string
}

// MinuteOfDay returns minutes since local midnight.
func (p LocalParts) MinuteOfDay() int {
	return p.Hour*60 + p.Minute
}

func (p LocalParts) IsWeekend() bool {
	return p.Weekday == int(time.Saturday) || p.Weekday == int(time.Sunday)
}

// LoadLocation resolves an IANA timezone name. Empty names are rejected
// rather than silently mapped to UTC.
func LoadLocation(name string) (*time.Location, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: empty name", ErrUnknownTimezone)
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %v", ErrUnknownTimezone, name, err)
	}
	return loc, nil
}

// LocalPartsOf converts an absolute instant into wall-clock parts in loc.
func LocalPartsOf(t time.Time, loc *time.Location) LocalParts {
	lt := t.In(loc)
	return LocalParts{
		Hour:    lt.Hour(),
		Minute:  lt.Minute(),
		Weekday: int(lt.Weekday()),
		Date:    lt.Format(DateFormat),
	}
}

// WallClock builds the absolute instant for a civil date and time in loc.
// time.Date resolves the offset for that civil date, so DST transitions are honoured.
func WallClock(year int, month time.Month, day, hour, minute int, loc *time.Location) time.Time {
	return time.Date(year, month, day, hour, minute, 0, 0, loc)
}

// AtLocalHour returns the instant at hour:00 on the civil date of day (as seen in loc).
func AtLocalHour(day time.Time, hour int, loc *time.Location) time.Time {
	d := day.In(loc)
	return WallClock(d.Year(), d.Month(), d.Day(), hour, 0, loc)
}

// StartOfLocalDay returns local midnight of the day containing t.
func StartOfLocalDay(t time.Time, loc *time.Location) time.Time {
	return AtLocalHour(t, 0, loc)
}

// AddLocalDays moves a civil date by n days, keeping the wall-clock time.
func AddLocalDays(t time.Time, n int, loc *time.Location) time.Time {
	d := t.In(loc)
	return WallClock(d.Year(), d.Month(), d.Day()+n, d.Hour(), d.Minute(), loc)
}

// ParseDate parses a YYYY-MM-DD date at local midnight in loc.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	d, err := time.Parse(DateFormat, s)
	if err != nil {
		return time.Time{}, err
	}
	return WallClock(d.Year(), d.Month(), d.Day(), 0, 0, loc), nil
}

// ParseClock converts "HH:MM" into minutes since midnight. "24:00" is accepted as end of day.
func ParseClock(s string) (int, error) {
	if s == "24:00" {
		return 24 * 60, nil
	}
	t, err := time.Parse(ClockFormat, s)
	if err != nil {
		return 0, fmt.Errorf("invalid clock %q: %w", s, err)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// WeekdayName returns the English day name of t in loc, e.g. "Monday".
func WeekdayName(t time.Time, loc *time.Location) string {
	return t.In(loc).Weekday().String()
}
