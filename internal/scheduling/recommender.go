package scheduling

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xaenox/globalsync/internal/models"
)

// HolidayLookup reports which of the given dates are public holidays in a country.
// The result maps date to holiday name and contains holidays only.
type HolidayLookup interface {
	LookupHolidays(ctx context.Context, countryCode string, dates []string) (map[string]string, error)
}

// Options tune the recommender. Zero values fall back to defaults.
type Options struct {
	HorizonDays   int
	MinBuffer     time.Duration
	CustomerHours models.HourWindow
	SenderHours   models.HourWindow
	Weights       Weights
}

func DefaultOptions() Options {
	return Options{
		HorizonDays:   DefaultHorizonDays,
		MinBuffer:     DefaultMinBuffer,
		CustomerHours: models.HourWindow{Start: 9, End: 18},
		SenderHours:   models.HourWindow{Start: 9, End: 18},
		Weights:       DefaultWeights(),
	}
}

// Request is the input of a full recommendation.
type Request struct {
	Customer       *models.Customer
	SenderTimezone string
	Preferences    *models.ExtractedPreferences
	SenderHours    *models.HourWindow
}

// Recommender picks the best contact instant for a customer.
type Recommender struct {
	holidays HolidayLookup
	opts     Options
	logger   *zap.Logger
	now      func() time.Time
}

func NewRecommender(holidays HolidayLookup, opts Options, logger *zap.Logger) *Recommender {
	def := DefaultOptions()
	if opts.HorizonDays <= 0 {
		opts.HorizonDays = def.HorizonDays
	}
	if opts.MinBuffer < 0 {
		opts.MinBuffer = def.MinBuffer
	}
	if opts.CustomerHours == (models.HourWindow{}) {
		opts.CustomerHours = def.CustomerHours
	}
	if opts.SenderHours == (models.HourWindow{}) {
		opts.SenderHours = def.SenderHours
	}
	if opts.Weights == (Weights{}) {
		opts.Weights = def.Weights
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recommender{
		holidays: holidays,
		opts:     opts,
		logger:   logger,
		now:      time.Now,
	}
}

// SetClock replaces the time source.
func (r *Recommender) SetClock(now func() time.Time) {
	r.now = now
}

func (r *Recommender) Options() Options {
	return r.opts
}

// Recommend runs the full pipeline: candidates, one batched holiday lookup,
// hard constraints, scoring and ranking. Only an unknown timezone is an error;
// holiday lookup failures are treated as "no holidays".
func (r *Recommender) Recommend(ctx context.Context, req Request) (*models.ScheduleRecommendation, error) {
	custLoc, err := LoadLocation(req.Customer.Timezone)
	if err != nil {
		return nil, fmt.Errorf("customer %s: %w", req.Customer.ID, err)
	}
	senderLoc, err := LoadLocation(req.SenderTimezone)
	if err != nil {
		return nil, fmt.Errorf("sender: %w", err)
	}
	senderHours := r.senderHours(req.SenderHours)
	now := r.now()

	times := GenerateCandidates(now, custLoc, r.opts.CustomerHours, r.opts.HorizonDays, r.opts.MinBuffer)
	holidays := r.fetchHolidays(ctx, req.Customer.CountryCode, LocalDates(times, custLoc))

	ev := &Evaluator{
		Customer:    req.Customer,
		Location:    custLoc,
		Preferences: req.Preferences,
		Holidays:    holidays,
		WorkHours:   r.opts.CustomerHours,
		Weights:     r.opts.Weights,
	}
	valid := make([]Candidate, 0, len(times))
	for _, t := range times {
		c := ev.Evaluate(t)
		if !c.Valid {
			continue
		}
		sp := LocalPartsOf(t, senderLoc)
		c.Friendliness = Friendliness(sp.Hour, senderHours)
		c.IsUserWorkTime = senderHours.Contains(sp.Hour)
		valid = append(valid, c)
	}

	best, ok := Best(valid)
	if !ok {
		r.logger.Info("No valid candidate, using next business day",
			zap.String("customer_id", req.Customer.ID),
			zap.Int("generated", len(times)))
		return r.fallback(now, custLoc, senderLoc, senderHours, holidays), nil
	}

	rec := &models.ScheduleRecommendation{
		RecommendedTime:   best.Time,
		IsOptimal:         best.IsUserWorkTime && best.Score > 0,
		IsUserWorkTime:    best.IsUserWorkTime,
		FriendlinessScore: best.Friendliness,
		PreferenceScore:   best.Score,
		Source:            models.SourceFull,
	}
	var skip skipInfo
	if !validBefore(valid, best.Time, custLoc) {
		skip = skippedDays(now, best.Time, custLoc, holidays)
	}
	rec.IsWeekend = skip.weekend
	rec.IsHoliday = skip.holiday
	rec.HolidayName = skip.holidayName
	if skip.any() {
		rec.NextBusinessDay = WeekdayName(best.Time, custLoc)
	}
	rec.Reason = justify(best, custLoc, senderLoc, skip)

	r.logger.Debug("Recommendation computed",
		zap.String("customer_id", req.Customer.ID),
		zap.Time("recommended", best.Time),
		zap.Int("valid_candidates", len(valid)),
		zap.Int("score", best.Score))
	return rec, nil
}

func (r *Recommender) senderHours(h *models.HourWindow) models.HourWindow {
	if h == nil {
		return r.opts.SenderHours
	}
	return *h
}

// fetchHolidays issues the single batched lookup for a recommendation.
func (r *Recommender) fetchHolidays(ctx context.Context, country string, dates []string) map[string]string {
	if r.holidays == nil || country == "" || len(dates) == 0 {
		return map[string]string{}
	}
	start := time.Now()
	holidays, err := r.holidays.LookupHolidays(ctx, country, dates)
	if err != nil {
		r.logger.Warn("Holiday lookup failed, assuming no holidays",
			zap.Error(err),
			zap.String("country", country),
			zap.Int("dates", len(dates)),
			zap.Duration("elapsed", time.Since(start)))
		return map[string]string{}
	}
	if holidays == nil {
		return map[string]string{}
	}
	return holidays
}

func (r *Recommender) fallback(now time.Time, custLoc, senderLoc *time.Location, senderHours models.HourWindow, holidays map[string]string) *models.ScheduleRecommendation {
	day := AddLocalDays(StartOfLocalDay(now, custLoc), 1, custLoc)
	for i := 0; i < r.opts.HorizonDays+7; i++ {
		lp := LocalPartsOf(day, custLoc)
		if _, holiday := holidays[lp.Date]; !lp.IsWeekend() && !holiday {
			break
		}
		day = AddLocalDays(day, 1, custLoc)
	}
	t := AtLocalHour(day, clampHour(r.opts.CustomerHours.Start), custLoc)
	sp := LocalPartsOf(t, senderLoc)
	return &models.ScheduleRecommendation{
		RecommendedTime: t,
		Reason: fmt.Sprintf("No suitable slot in the next %d days; defaulting to %s at the start of the customer's day.",
			r.opts.HorizonDays, t.In(custLoc).Format("Mon 2006-01-02 15:04 MST")),
		FriendlinessScore: Friendliness(sp.Hour, senderHours),
		Source:            models.SourceFallback,
	}
}

type skipInfo struct {
	weekend     bool
	holiday     bool
	holidayName string
}

func (s skipInfo) any() bool {
	return s.weekend || s.holiday
}

// validBefore reports whether any valid candidate falls on a customer-local
// day before chosen, in which case nothing forced the later day.
func validBefore(valid []Candidate, chosen time.Time, loc *time.Location) bool {
	chosenDate := chosen.In(loc).Format(DateFormat)
	for _, c := range valid {
		if c.Time.In(loc).Format(DateFormat) < chosenDate {
			return true
		}
	}
	return false
}

// skippedDays inspects the customer-local days in [today, chosen) for
// weekends and holidays that pushed the recommendation forward.
func skippedDays(now, chosen time.Time, loc *time.Location, holidays map[string]string) skipInfo {
	var s skipInfo
	chosenDate := chosen.In(loc).Format(DateFormat)
	day := StartOfLocalDay(now, loc)
	for i := 0; i < 366; i++ {
		lp := LocalPartsOf(day, loc)
		if lp.Date >= chosenDate {
			break
		}
		if lp.IsWeekend() {
			s.weekend = true
		} else if name, ok := holidays[lp.Date]; ok {
			s.holiday = true
			if s.holidayName == "" {
				s.holidayName = name
			}
		}
		day = AddLocalDays(day, 1, loc)
	}
	return s
}

func justify(c Candidate, custLoc, senderLoc *time.Location, skip skipInfo) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s for the customer (%s), %s for you (%s).",
		c.Time.In(custLoc).Format("Mon Jan 2 15:04"), custLoc.String(),
		c.Time.In(senderLoc).Format("Mon Jan 2 15:04"), senderLoc.String())

	if c.IsUserWorkTime {
		b.WriteString(" Within your working hours.")
	} else {
		b.WriteString(" Outside your working hours.")
	}
	if len(c.Matched) > 0 {
		b.WriteString(" Matches " + strings.Join(c.Matched, ", ") + ".")
	}
	switch {
	case skip.holiday && skip.weekend:
		b.WriteString(" Skips the weekend and " + skip.holidayName + ".")
	case skip.holiday:
		b.WriteString(" Skips " + skip.holidayName + ".")
	case skip.weekend:
		b.WriteString(" Skips the weekend.")
	}
	return b.String()
}
