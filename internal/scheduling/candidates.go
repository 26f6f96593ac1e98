package scheduling

import (
	"time"

	"github.com/xaenox/globalsync/internal/models"
)

const (
	DefaultHorizonDays = 14
	DefaultMinBuffer   = 15 * time.Minute
)

// GenerateCandidates enumerates hourly instants inside the work window for
// horizonDays customer-local days starting with the day containing now.
// Instants not strictly after now+buffer are dropped.
func GenerateCandidates(now time.Time, loc *time.Location, work models.HourWindow, horizonDays int, buffer time.Duration) []time.Time {
	start, end := clampHour(work.Start), work.End
	if end > 24 {
		end = 24
	}
	if horizonDays <= 0 || end <= start {
		return nil
	}

	earliest := now.Add(buffer)
	today := now.In(loc)
	out := make([]time.Time, 0, horizonDays*(end-start))
	for day := 0; day < horizonDays; day++ {
		for hour := start; hour < end; hour++ {
			t := WallClock(today.Year(), today.Month(), today.Day()+day, hour, 0, loc)
			if !t.After(earliest) {
				continue
			}
			// A spring-forward gap normalises two hours onto the same instant.
			if n := len(out); n > 0 && !t.After(out[n-1]) {
				continue
			}
			out = append(out, t)
		}
	}
	return out
}

// LocalDates returns the distinct customer-local dates of ts in first-seen order.
func LocalDates(ts []time.Time, loc *time.Location) []string {
	seen := make(map[string]struct{}, len(ts)/8+1)
	var dates []string
	for _, t := range ts {
		d := t.In(loc).Format(DateFormat)
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		dates = append(dates, d)
	}
	return dates
}

func clampHour(h int) int {
	if h < 0 {
		return 0
	}
	if h > 23 {
		return 23
	}
	return h
}
