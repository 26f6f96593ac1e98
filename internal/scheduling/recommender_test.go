package scheduling

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xaenox/globalsync/internal/models"
)

type fakeHolidays struct {
	holidays  map[string]string
	err       error
	calls     int
	requested [][]string
}

func (f *fakeHolidays) LookupHolidays(ctx context.Context, countryCode string, dates []string) (map[string]string, error) {
	f.calls++
	f.requested = append(f.requested, dates)
	if f.err != nil {
		return nil, f.err
	}
	out := map[string]string{}
	for _, d := range dates {
		if name, ok := f.holidays[d]; ok {
			out[d] = name
		}
	}
	return out, nil
}

func newTestRecommender(t *testing.T, lookup HolidayLookup, opts Options, now time.Time) *Recommender {
	t.Helper()
	r := NewRecommender(lookup, opts, zap.NewNop())
	r.SetClock(func() time.Time { return now })
	return r
}

func TestRecommendFridayEveningSkipsWeekend(t *testing.T) {
	tokyo := mustLoad(t, "Asia/Tokyo")
	now := WallClock(2026, time.October, 16, 20, 0, tokyo)
	lookup := &fakeHolidays{}
	r := newTestRecommender(t, lookup, DefaultOptions(), now)

	rec, err := r.Recommend(context.Background(), Request{
		Customer:       tokyoCustomer(),
		SenderTimezone: "Asia/Tokyo",
	})
	require.NoError(t, err)

	assert.Equal(t, WallClock(2026, time.October, 19, 9, 0, tokyo), rec.RecommendedTime)
	assert.True(t, rec.IsWeekend)
	assert.False(t, rec.IsHoliday)
	assert.Equal(t, "Monday", rec.NextBusinessDay)
	assert.True(t, rec.IsUserWorkTime)
	assert.Equal(t, 4, rec.FriendlinessScore)
	assert.False(t, rec.IsOptimal, "no preference signal means not optimal")
	assert.Equal(t, models.SourceFull, rec.Source)
	assert.Contains(t, rec.Reason, "Skips the weekend")
}

func TestRecommendSingleBatchedHolidayLookup(t *testing.T) {
	tokyo := mustLoad(t, "Asia/Tokyo")
	now := WallClock(2026, time.October, 9, 20, 0, tokyo)
	lookup := &fakeHolidays{holidays: map[string]string{"2026-10-12": "Sports Day"}}
	r := newTestRecommender(t, lookup, DefaultOptions(), now)

	rec, err := r.Recommend(context.Background(), Request{
		Customer:       tokyoCustomer(),
		SenderTimezone: "Asia/Tokyo",
	})
	require.NoError(t, err)

	require.Equal(t, 1, lookup.calls)
	// Friday's slots are all in the past, so dates start on Saturday.
	assert.Len(t, lookup.requested[0], 13)
	assert.Equal(t, "2026-10-10", lookup.requested[0][0])

	assert.Equal(t, WallClock(2026, time.October, 13, 9, 0, tokyo), rec.RecommendedTime)
	assert.True(t, rec.IsHoliday)
	assert.True(t, rec.IsWeekend)
	assert.Equal(t, "Sports Day", rec.HolidayName)
	assert.Equal(t, "Tuesday", rec.NextBusinessDay)
}

func TestRecommendHolidayFailOpen(t *testing.T) {
	tokyo := mustLoad(t, "Asia/Tokyo")
	now := WallClock(2026, time.October, 9, 20, 0, tokyo)
	req := Request{Customer: tokyoCustomer(), SenderTimezone: "Europe/Berlin"}

	failing := &fakeHolidays{err: errors.New("nager unavailable")}
	got, err := newTestRecommender(t, failing, DefaultOptions(), now).Recommend(context.Background(), req)
	require.NoError(t, err)

	empty := &fakeHolidays{}
	want, err := newTestRecommender(t, empty, DefaultOptions(), now).Recommend(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, want, got)
	assert.Equal(t, 1, failing.calls)
}

func TestRecommendExplicitPreferredHours(t *testing.T) {
	tokyo := mustLoad(t, "Asia/Tokyo")
	now := WallClock(2026, time.October, 19, 8, 0, tokyo)
	c := tokyoCustomer()
	c.PreferredHours = &models.HourWindow{Start: 14, End: 16}
	r := newTestRecommender(t, &fakeHolidays{}, DefaultOptions(), now)

	rec, err := r.Recommend(context.Background(), Request{Customer: c, SenderTimezone: "Asia/Tokyo"})
	require.NoError(t, err)

	assert.Equal(t, WallClock(2026, time.October, 19, 14, 0, tokyo), rec.RecommendedTime)
	assert.Equal(t, DefaultWeights().ExplicitHours, rec.PreferenceScore)
	assert.True(t, rec.IsOptimal)
	assert.Empty(t, rec.NextBusinessDay)
	assert.Contains(t, rec.Reason, "preferred hours 14:00-16:00")
}

func TestRecommendPrefersSenderWorkTime(t *testing.T) {
	tokyo := mustLoad(t, "Asia/Tokyo")
	now := WallClock(2026, time.October, 19, 8, 0, tokyo)
	r := newTestRecommender(t, &fakeHolidays{}, DefaultOptions(), now)

	// London is eight hours behind Tokyo in October, so only 17:00 Tokyo is 09:00 London.
	rec, err := r.Recommend(context.Background(), Request{
		Customer:       tokyoCustomer(),
		SenderTimezone: "Europe/London",
	})
	require.NoError(t, err)

	assert.Equal(t, WallClock(2026, time.October, 19, 17, 0, tokyo), rec.RecommendedTime)
	assert.True(t, rec.IsUserWorkTime)
	assert.Equal(t, 4, rec.FriendlinessScore)
}

func TestRecommendUsesPreferencesAndAvoidRules(t *testing.T) {
	tokyo := mustLoad(t, "Asia/Tokyo")
	now := WallClock(2026, time.October, 19, 8, 0, tokyo)
	r := newTestRecommender(t, &fakeHolidays{}, DefaultOptions(), now)
	prefs := &models.ExtractedPreferences{
		AvoidWeekdays:        []models.Weekday{models.Monday},
		PreferredTimeWindows: []models.TimeWindow{{Start: "10:00", End: "11:00"}},
	}

	rec, err := r.Recommend(context.Background(), Request{
		Customer:       tokyoCustomer(),
		SenderTimezone: "Asia/Tokyo",
		Preferences:    prefs,
	})
	require.NoError(t, err)

	assert.Equal(t, WallClock(2026, time.October, 20, 10, 0, tokyo), rec.RecommendedTime)
	assert.Equal(t, DefaultWeights().TimeWindow, rec.PreferenceScore)
	assert.True(t, rec.IsOptimal)
	assert.Empty(t, rec.NextBusinessDay, "skipping an avoided weekday is not a weekend skip")
}

func TestRecommendPreferredLaterDayIsNotASkip(t *testing.T) {
	tokyo := mustLoad(t, "Asia/Tokyo")
	now := WallClock(2026, time.October, 16, 8, 0, tokyo)
	r := newTestRecommender(t, &fakeHolidays{}, DefaultOptions(), now)

	rec, err := r.Recommend(context.Background(), Request{
		Customer:       tokyoCustomer(),
		SenderTimezone: "Asia/Tokyo",
		Preferences:    &models.ExtractedPreferences{PreferredWeekdays: []models.Weekday{models.Monday}},
	})
	require.NoError(t, err)

	assert.Equal(t, WallClock(2026, time.October, 19, 9, 0, tokyo), rec.RecommendedTime)
	assert.False(t, rec.IsWeekend, "Friday slots were valid")
	assert.False(t, rec.IsHoliday)
	assert.Empty(t, rec.NextBusinessDay)
}

func TestRecommendZeroMinBuffer(t *testing.T) {
	tokyo := mustLoad(t, "Asia/Tokyo")
	now := WallClock(2026, time.October, 19, 8, 50, tokyo)

	opts := DefaultOptions()
	opts.MinBuffer = 0
	rec, err := newTestRecommender(t, &fakeHolidays{}, opts, now).Recommend(context.Background(),
		Request{Customer: tokyoCustomer(), SenderTimezone: "Asia/Tokyo"})
	require.NoError(t, err)
	assert.Equal(t, WallClock(2026, time.October, 19, 9, 0, tokyo), rec.RecommendedTime)

	opts.MinBuffer = -time.Minute
	rec, err = newTestRecommender(t, &fakeHolidays{}, opts, now).Recommend(context.Background(),
		Request{Customer: tokyoCustomer(), SenderTimezone: "Asia/Tokyo"})
	require.NoError(t, err)
	assert.Equal(t, WallClock(2026, time.October, 19, 10, 0, tokyo), rec.RecommendedTime, "negative buffer falls back to the default")
}

func TestRecommendFallback(t *testing.T) {
	tokyo := mustLoad(t, "Asia/Tokyo")
	now := WallClock(2026, time.October, 16, 20, 0, tokyo)

	t.Run("inverted work window", func(t *testing.T) {
		opts := DefaultOptions()
		opts.CustomerHours = models.HourWindow{Start: 18, End: 9}
		lookup := &fakeHolidays{}
		r := newTestRecommender(t, lookup, opts, now)

		rec, err := r.Recommend(context.Background(), Request{Customer: tokyoCustomer(), SenderTimezone: "Asia/Tokyo"})
		require.NoError(t, err)
		assert.Equal(t, models.SourceFallback, rec.Source)
		assert.Equal(t, WallClock(2026, time.October, 19, 18, 0, tokyo), rec.RecommendedTime)
		assert.False(t, rec.IsOptimal)
		assert.False(t, rec.IsWeekend)
		assert.False(t, rec.IsHoliday)
		assert.False(t, rec.IsUserWorkTime)
		assert.Zero(t, lookup.calls, "nothing to look up without candidates")
	})

	t.Run("every weekday avoided", func(t *testing.T) {
		r := newTestRecommender(t, &fakeHolidays{holidays: map[string]string{"2026-10-19": "Made-up Day"}}, DefaultOptions(), now)
		prefs := &models.ExtractedPreferences{AvoidWeekdays: []models.Weekday{
			models.Monday, models.Tuesday, models.Wednesday, models.Thursday, models.Friday,
		}}
		rec, err := r.Recommend(context.Background(), Request{Customer: tokyoCustomer(), SenderTimezone: "Asia/Tokyo", Preferences: prefs})
		require.NoError(t, err)
		assert.Equal(t, models.SourceFallback, rec.Source)
		// Monday is a known holiday, so the fallback moves on to Tuesday.
		assert.Equal(t, WallClock(2026, time.October, 20, 9, 0, tokyo), rec.RecommendedTime)
		assert.Contains(t, rec.Reason, "No suitable slot")
	})
}

func TestRecommendUnknownTimezone(t *testing.T) {
	r := newTestRecommender(t, nil, DefaultOptions(), time.Now())

	c := tokyoCustomer()
	c.Timezone = "Mars/Olympus"
	_, err := r.Recommend(context.Background(), Request{Customer: c, SenderTimezone: "UTC"})
	assert.ErrorIs(t, err, ErrUnknownTimezone)

	_, err = r.Recommend(context.Background(), Request{Customer: tokyoCustomer(), SenderTimezone: "Nowhere/Land"})
	assert.ErrorIs(t, err, ErrUnknownTimezone)
}

func TestRecommendSkipsLookupWithoutCountry(t *testing.T) {
	tokyo := mustLoad(t, "Asia/Tokyo")
	lookup := &fakeHolidays{}
	r := newTestRecommender(t, lookup, DefaultOptions(), WallClock(2026, time.October, 19, 8, 0, tokyo))
	c := tokyoCustomer()
	c.CountryCode = ""

	_, err := r.Recommend(context.Background(), Request{Customer: c, SenderTimezone: "Asia/Tokyo"})
	require.NoError(t, err)
	assert.Zero(t, lookup.calls)
}

func TestRecommendHorizonIsMonotonic(t *testing.T) {
	tokyo := mustLoad(t, "Asia/Tokyo")
	now := WallClock(2026, time.October, 19, 8, 0, tokyo)

	cases := []struct {
		name  string
		prefs *models.ExtractedPreferences
	}{
		{name: "no preferences"},
		{name: "preferred date beyond short horizon", prefs: &models.ExtractedPreferences{PreferredDates: []string{"2026-10-28"}}},
		{name: "preferred friday", prefs: &models.ExtractedPreferences{PreferredWeekdays: []models.Weekday{models.Friday}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := Request{Customer: tokyoCustomer(), SenderTimezone: "America/New_York", Preferences: tc.prefs}
			var prev *models.ScheduleRecommendation
			for _, horizon := range []int{1, 3, 7, 14} {
				opts := DefaultOptions()
				opts.HorizonDays = horizon
				rec, err := newTestRecommender(t, &fakeHolidays{}, opts, now).Recommend(context.Background(), req)
				require.NoError(t, err)
				if prev != nil && !rec.RecommendedTime.Equal(prev.RecommendedTime) {
					assert.True(t, strictlyBetter(rec, prev), "horizon %d displaced %v with %v", horizon, prev.RecommendedTime, rec.RecommendedTime)
				}
				prev = rec
			}
		})
	}
}

func strictlyBetter(a, b *models.ScheduleRecommendation) bool {
	if a.IsUserWorkTime != b.IsUserWorkTime {
		return a.IsUserWorkTime
	}
	if a.PreferenceScore != b.PreferenceScore {
		return a.PreferenceScore > b.PreferenceScore
	}
	return a.FriendlinessScore > b.FriendlinessScore
}
