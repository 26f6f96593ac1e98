package scheduling

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xaenox/globalsync/internal/models"
)

func TestQuick(t *testing.T) {
	tokyo := mustLoad(t, "Asia/Tokyo")

	tests := []struct {
		name     string
		now      time.Time
		want     time.Time
		weekend  bool
		nextDay  string
		customer func(*models.Customer)
	}{
		{
			name:    "saturday jumps to monday",
			now:     WallClock(2026, time.October, 17, 11, 0, tokyo),
			want:    WallClock(2026, time.October, 19, 9, 0, tokyo),
			weekend: true,
			nextDay: "Monday",
		},
		{
			name:    "sunday jumps to monday",
			now:     WallClock(2026, time.October, 18, 23, 0, tokyo),
			want:    WallClock(2026, time.October, 19, 9, 0, tokyo),
			weekend: true,
			nextDay: "Monday",
		},
		{
			name: "before work start snaps to start",
			now:  WallClock(2026, time.October, 20, 6, 30, tokyo),
			want: WallClock(2026, time.October, 20, 9, 0, tokyo),
		},
		{
			name: "after work end moves to tomorrow",
			now:  WallClock(2026, time.October, 20, 18, 0, tokyo),
			want: WallClock(2026, time.October, 21, 9, 0, tokyo),
		},
		{
			name:    "friday evening moves to monday",
			now:     WallClock(2026, time.October, 16, 20, 0, tokyo),
			want:    WallClock(2026, time.October, 19, 9, 0, tokyo),
			weekend: true,
			nextDay: "Monday",
		},
		{
			name: "during work rounds up and adds buffer",
			now:  WallClock(2026, time.October, 20, 10, 7, tokyo),
			want: WallClock(2026, time.October, 20, 10, 30, tokyo),
		},
		{
			name: "on a boundary keeps it",
			now:  WallClock(2026, time.October, 20, 10, 15, tokyo),
			want: WallClock(2026, time.October, 20, 10, 30, tokyo),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRecommender(t, nil, DefaultOptions(), tt.now)
			rec, err := r.Quick(tokyoCustomer(), "Asia/Tokyo", nil)
			require.NoError(t, err)
			assert.Equal(t, tt.want, rec.RecommendedTime)
			assert.Equal(t, tt.weekend, rec.IsWeekend)
			assert.Equal(t, tt.nextDay, rec.NextBusinessDay)
			assert.Equal(t, models.SourceQuick, rec.Source)
			assert.False(t, rec.IsHoliday)
		})
	}
}

func TestQuickScoresExplicitHoursOnly(t *testing.T) {
	tokyo := mustLoad(t, "Asia/Tokyo")
	c := tokyoCustomer()
	c.PreferredHours = &models.HourWindow{Start: 9, End: 10}
	r := newTestRecommender(t, nil, DefaultOptions(), WallClock(2026, time.October, 20, 7, 0, tokyo))

	rec, err := r.Quick(c, "Asia/Tokyo", &models.HourWindow{Start: 8, End: 17})
	require.NoError(t, err)
	assert.Equal(t, DefaultWeights().ExplicitHours, rec.PreferenceScore)
	assert.True(t, rec.IsUserWorkTime)
	assert.True(t, rec.IsOptimal)
}

func TestQuickUnknownTimezone(t *testing.T) {
	r := newTestRecommender(t, nil, DefaultOptions(), time.Now())
	_, err := r.Quick(tokyoCustomer(), "Bad/Zone", nil)
	assert.ErrorIs(t, err, ErrUnknownTimezone)
}
