package scheduling

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xaenox/globalsync/internal/models"
)

func tokyoCustomer() *models.Customer {
	return &models.Customer{ID: "acme", Timezone: "Asia/Tokyo", CountryCode: "JP"}
}

func newEvaluator(t *testing.T, c *models.Customer, prefs *models.ExtractedPreferences, holidays map[string]string) *Evaluator {
	t.Helper()
	return &Evaluator{
		Customer:    c,
		Location:    mustLoad(t, c.Timezone),
		Preferences: prefs,
		Holidays:    holidays,
		WorkHours:   models.HourWindow{Start: 9, End: 18},
		Weights:     DefaultWeights(),
	}
}

func TestEvaluateHardConstraints(t *testing.T) {
	tokyo := mustLoad(t, "Asia/Tokyo")
	at := func(day, hour int) time.Time { return WallClock(2026, time.October, day, hour, 0, tokyo) }

	tests := []struct {
		name      string
		instant   time.Time
		prefs     *models.ExtractedPreferences
		holidays  map[string]string
		valid     bool
		rejection Rejection
	}{
		{name: "weekday inside hours", instant: at(19, 10), valid: true},
		{name: "saturday", instant: at(17, 10), rejection: RejectWeekend},
		{name: "sunday", instant: at(18, 10), rejection: RejectWeekend},
		{
			name:      "holiday",
			instant:   at(12, 10),
			holidays:  map[string]string{"2026-10-12": "Sports Day"},
			rejection: RejectHoliday,
		},
		{name: "before work start", instant: at(19, 8), rejection: RejectOutsideWork},
		{name: "work end is exclusive", instant: at(19, 18), rejection: RejectOutsideWork},
		{
			name:      "avoid date",
			instant:   at(20, 10),
			prefs:     &models.ExtractedPreferences{AvoidDates: []string{"2026-10-20"}},
			rejection: RejectAvoidDate,
		},
		{
			name:    "avoid date range inclusive end",
			instant: at(22, 10),
			prefs: &models.ExtractedPreferences{AvoidDateRanges: []models.DateRange{
				{Start: "2026-10-20", End: "2026-10-22"},
			}},
			rejection: RejectAvoidRange,
		},
		{
			name:      "avoid weekday",
			instant:   at(19, 10),
			prefs:     &models.ExtractedPreferences{AvoidWeekdays: []models.Weekday{models.Monday}},
			rejection: RejectAvoidDay,
		},
		{
			name:    "avoid morning window",
			instant: at(19, 11),
			prefs: &models.ExtractedPreferences{AvoidTimeWindows: []models.TimeWindow{
				{Start: "06:00", End: "12:00"},
			}},
			rejection: RejectAvoidWindow,
		},
		{
			name:    "empty lists constrain nothing",
			instant: at(19, 11),
			prefs:   models.EmptyPreferences(),
			valid:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := newEvaluator(t, tokyoCustomer(), tt.prefs, tt.holidays)
			c := ev.Evaluate(tt.instant)
			assert.Equal(t, tt.valid, c.Valid)
			assert.Equal(t, tt.rejection, c.Rejection)
		})
	}
}

func TestEvaluateAnnotations(t *testing.T) {
	tokyo := mustLoad(t, "Asia/Tokyo")
	ev := newEvaluator(t, tokyoCustomer(), nil, map[string]string{"2026-10-12": "Sports Day"})

	sat := ev.Evaluate(WallClock(2026, time.October, 17, 10, 0, tokyo))
	assert.True(t, sat.IsWeekend)
	assert.False(t, sat.IsHoliday)

	hol := ev.Evaluate(WallClock(2026, time.October, 12, 10, 0, tokyo))
	assert.True(t, hol.IsHoliday)
	assert.Equal(t, "Sports Day", hol.HolidayName)
}

func TestWeekendAlwaysInvalid(t *testing.T) {
	tokyo := mustLoad(t, "Asia/Tokyo")
	c := tokyoCustomer()
	c.PreferredHours = &models.HourWindow{Start: 0, End: 24}
	prefs := &models.ExtractedPreferences{
		PreferredWeekdays:    []models.Weekday{models.Saturday, models.Sunday},
		PreferredDates:       []string{"2026-10-17", "2026-10-18"},
		PreferredTimeWindows: []models.TimeWindow{{Start: "00:00", End: "23:59"}},
	}
	ev := newEvaluator(t, c, prefs, nil)

	for day := 17; day <= 18; day++ {
		for hour := 0; hour < 24; hour++ {
			cand := ev.Evaluate(WallClock(2026, time.October, day, hour, 0, tokyo))
			require.False(t, cand.Valid, "day %d hour %d", day, hour)
			require.Equal(t, RejectWeekend, cand.Rejection)
		}
	}
}

func TestAvoidWeekdayBeatsPreferredHours(t *testing.T) {
	tokyo := mustLoad(t, "Asia/Tokyo")
	c := tokyoCustomer()
	c.PreferredHours = &models.HourWindow{Start: 9, End: 12}
	prefs := &models.ExtractedPreferences{AvoidWeekdays: []models.Weekday{models.Monday}}
	ev := newEvaluator(t, c, prefs, nil)

	mondayTen := WallClock(2026, time.October, 19, 10, 0, tokyo)
	cand := ev.Evaluate(mondayTen)
	assert.False(t, cand.Valid)
	assert.Equal(t, RejectAvoidDay, cand.Rejection)
	assert.Zero(t, cand.Score)
}

func TestScore(t *testing.T) {
	tokyo := mustLoad(t, "Asia/Tokyo")
	c := tokyoCustomer()
	c.PreferredHours = &models.HourWindow{Start: 14, End: 16}
	prefs := &models.ExtractedPreferences{
		PreferredTimeWindows: []models.TimeWindow{{Start: "09:00", End: "11:00"}, {Start: "10:00", End: "12:00"}},
		PreferredWeekdays:    []models.Weekday{models.Tuesday, models.Tuesday},
		PreferredDates:       []string{"2026-10-20"},
		PreferredDateRanges:  []models.DateRange{{Start: "2026-10-19", End: "2026-10-23"}, {Start: "2026-10-20", End: "2026-10-20"}},
	}
	ev := newEvaluator(t, c, prefs, nil)
	w := DefaultWeights()

	tests := []struct {
		name  string
		day   int
		hour  int
		score int
	}{
		{name: "tuesday 10 matches window weekday date range", day: 20, hour: 10, score: w.TimeWindow + w.Weekday + w.Date + w.DateRange},
		{name: "tuesday 14 explicit hours", day: 20, hour: 14, score: w.ExplicitHours + w.Weekday + w.Date + w.DateRange},
		{name: "monday 15 explicit hours and range", day: 19, hour: 15, score: w.ExplicitHours + w.DateRange},
		{name: "monday 12 range only", day: 19, hour: 12, score: w.DateRange},
		{name: "next monday nothing", day: 26, hour: 12, score: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cand := ev.Evaluate(WallClock(2026, time.October, tt.day, tt.hour, 0, tokyo))
			require.True(t, cand.Valid)
			assert.Equal(t, tt.score, cand.Score)
		})
	}
}

func TestInTimeWindowWrapsMidnight(t *testing.T) {
	night := models.TimeWindow{Start: "22:00", End: "06:00"}
	assert.True(t, InTimeWindow(night, 23*60))
	assert.True(t, InTimeWindow(night, 2*60))
	assert.False(t, InTimeWindow(night, 6*60))
	assert.False(t, InTimeWindow(night, 12*60))

	assert.False(t, InTimeWindow(models.TimeWindow{Start: "bad", End: "06:00"}, 60))
	assert.False(t, InTimeWindow(models.TimeWindow{Start: "10:00", End: "10:00"}, 600))
}

func TestFriendlinessBands(t *testing.T) {
	work := models.HourWindow{Start: 9, End: 18}
	hours := []int{9, 13, 19, 23, 2, 7}
	want := []int{4, 4, 3, 1, 0, 2}
	for i, h := range hours {
		assert.Equal(t, want[i], Friendliness(h, work), "hour %d", h)
	}
}

func TestWeightsValidate(t *testing.T) {
	require.NoError(t, DefaultWeights().Validate())

	w := DefaultWeights()
	w.Weekday = w.DateRange
	assert.Error(t, w.Validate())

	w = DefaultWeights()
	w.ExplicitHours = 10
	assert.Error(t, w.Validate())

	assert.NoError(t, Weights{ExplicitHours: 5, TimeWindow: 4, Date: 3, DateRange: 2, Weekday: 1}.Validate())
}
