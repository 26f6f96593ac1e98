package scheduling

import (
	"fmt"
	"time"

	"github.com/xaenox/globalsync/internal/models"
)

const quickStep = 15 * time.Minute

// Quick produces an immediate estimate from local date arithmetic alone.
// Holidays and notes-derived preferences are ignored; the full pipeline refines it.
func (r *Recommender) Quick(customer *models.Customer, senderTimezone string, senderHours *models.HourWindow) (*models.ScheduleRecommendation, error) {
	custLoc, err := LoadLocation(customer.Timezone)
	if err != nil {
		return nil, fmt.Errorf("customer %s: %w", customer.ID, err)
	}
	senderLoc, err := LoadLocation(senderTimezone)
	if err != nil {
		return nil, fmt.Errorf("sender: %w", err)
	}
	hours := r.senderHours(senderHours)
	work := r.opts.CustomerHours
	start := clampHour(work.Start)

	now := r.now()
	lp := LocalPartsOf(now, custLoc)
	rec := &models.ScheduleRecommendation{Source: models.SourceQuick}

	var t time.Time
	switch {
	case lp.IsWeekend():
		t = AtLocalHour(AddLocalDays(now, daysUntilMonday(lp.Weekday), custLoc), start, custLoc)
		rec.IsWeekend = true
		rec.NextBusinessDay = time.Monday.String()
	case lp.Hour < work.Start:
		t = AtLocalHour(now, start, custLoc)
	case lp.Hour >= work.End:
		next := AddLocalDays(now, 1, custLoc)
		if np := LocalPartsOf(next, custLoc); np.IsWeekend() {
			next = AddLocalDays(next, daysUntilMonday(np.Weekday), custLoc)
			rec.IsWeekend = true
			rec.NextBusinessDay = time.Monday.String()
		}
		t = AtLocalHour(next, start, custLoc)
	default:
		t = ceilToStep(now, quickStep).Add(r.opts.MinBuffer)
	}

	ev := &Evaluator{Customer: customer, Location: custLoc, Weights: r.opts.Weights}
	score, _ := ev.Score(LocalPartsOf(t, custLoc))
	sp := LocalPartsOf(t, senderLoc)

	rec.RecommendedTime = t
	rec.PreferenceScore = score
	rec.IsUserWorkTime = hours.Contains(sp.Hour)
	rec.FriendlinessScore = Friendliness(sp.Hour, hours)
	rec.IsOptimal = rec.IsUserWorkTime && score > 0
	rec.Reason = fmt.Sprintf("Estimate: %s for the customer (%s), %s for you. Checking holidays and notes...",
		t.In(custLoc).Format("Mon Jan 2 15:04"), custLoc.String(), t.In(senderLoc).Format("Mon Jan 2 15:04"))
	return rec, nil
}

// daysUntilMonday counts days from weekday (0=Sunday) to the following Monday.
func daysUntilMonday(weekday int) int {
	n := (8 - weekday) % 7
	if n == 0 {
		n = 7
	}
	return n
}

func ceilToStep(t time.Time, step time.Duration) time.Time {
	c := t.Truncate(step)
	if c.Before(t) {
		c = c.Add(step)
	}
	return c
}
