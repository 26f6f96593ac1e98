package models

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// HourWindow is a half-open [Start, End) range of local hours of day.
type HourWindow struct {
	Start int `json:"start" mapstructure:"start"`
	End   int `json:"end" mapstructure:"end"`
}

// Contains reports whether hour falls within the window.
func (w HourWindow) Contains(hour int) bool {
	return hour >= w.Start && hour < w.End
}

// Validate rejects windows outside 0..24 and empty or inverted windows.
func (w HourWindow) Validate() error {
	if w.Start < 0 || w.Start > 23 || w.End < 1 || w.End > 24 {
		return fmt.Errorf("hours must be within 0-24, got %d-%d", w.Start, w.End)
	}
	if w.Start >= w.End {
		return fmt.Errorf("start hour %d must be before end hour %d", w.Start, w.End)
	}
	return nil
}

func (w HourWindow) String() string {
	return fmt.Sprintf("%02d:00-%02d:00", w.Start, w.End)
}

// Customer is the counterpart a user wants to reach.
type Customer struct {
	ID             string      `json:"id"`
	UserID         int64       `json:"user_id"`
	Name           string      `json:"name"`
	Timezone       string      `json:"timezone"`
	CountryCode    string      `json:"country_code"`
	PreferredHours *HourWindow `json:"preferred_hours,omitempty"`
	Notes          string      `json:"notes"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}

// NotesHash identifies the current notes content for preference cache invalidation.
func (c *Customer) NotesHash() string {
	return HashNotes(c.Notes)
}

// HashNotes returns the hex SHA-256 digest of notes.
func HashNotes(notes string) string {
	sum := sha256.Sum256([]byte(notes))
	return hex.EncodeToString(sum[:])
}

// UserProfile holds the sender's own scheduling context.
type UserProfile struct {
	UserID    int64      `json:"user_id"`
	ChatID    int64      `json:"chat_id"`
	Timezone  string     `json:"timezone"`
	WorkHours HourWindow `json:"work_hours"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// ScheduleRecommendation is the chosen contact instant and why it was chosen.
type ScheduleRecommendation struct {
	RecommendedTime   time.Time `json:"recommended_time"`
	Reason            string    `json:"reason"`
	IsOptimal         bool      `json:"is_optimal"`
	IsWeekend         bool      `json:"is_weekend"`
	IsHoliday         bool      `json:"is_holiday"`
	HolidayName       string    `json:"holiday_name,omitempty"`
	IsUserWorkTime    bool      `json:"is_user_work_time"`
	FriendlinessScore int       `json:"friendliness_score"`
	PreferenceScore   int       `json:"preference_score"`
	NextBusinessDay   string    `json:"next_business_day,omitempty"`
	Source            string    `json:"source"`
}

const (
	SourceQuick    = "quick"
	SourceFull     = "full"
	SourceFallback = "fallback"
)
