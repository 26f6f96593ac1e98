package models

import "time"

// Status is the lifecycle position of a focus item.
type Status string

const (
	StatusUnscheduled Status = "unscheduled"
	StatusProposed    Status = "proposed"
	StatusConfirmed   Status = "confirmed"
)

// ReminderState tracks the reminder sub-state of a focus item.
type ReminderState string

const (
	ReminderNone      ReminderState = "none"
	ReminderArmed     ReminderState = "armed"
	ReminderFired     ReminderState = "fired"
	ReminderCancelled ReminderState = "cancelled"
)

// FocusItem is the scheduling state of one user/customer relationship.
type FocusItem struct {
	UserID     int64  `json:"user_id"`
	CustomerID string `json:"customer_id"`
	Intent     string `json:"intent"`

	ScheduledTime  *time.Time              `json:"scheduled_time,omitempty"`
	Recommendation *ScheduleRecommendation `json:"recommendation,omitempty"`

	IsTimeConfirmed        bool       `json:"is_time_confirmed"`
	ConfirmedScheduledTime *time.Time `json:"confirmed_scheduled_time,omitempty"`
	ConfirmedAt            *time.Time `json:"confirmed_at,omitempty"`

	ReminderSet   bool          `json:"reminder_set"`
	ReminderAt    *time.Time    `json:"reminder_at,omitempty"`
	ReminderState ReminderState `json:"reminder_state"`

	// Revision increases on every lock-state change.
	Revision        int64            `json:"revision"`
	PreferenceCache *PreferenceCache `json:"preference_cache,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (f *FocusItem) Status() Status {
	switch {
	case f.IsTimeConfirmed:
		return StatusConfirmed
	case f.ScheduledTime != nil:
		return StatusProposed
	default:
		return StatusUnscheduled
	}
}

// DisplayedTime is the instant currently shown for the relationship:
// the confirmed one when locked, otherwise the live recommendation.
func (f *FocusItem) DisplayedTime() *time.Time {
	if f.IsTimeConfirmed && f.ConfirmedScheduledTime != nil {
		return f.ConfirmedScheduledTime
	}
	return f.ScheduledTime
}

// Clone returns a copy that shares no pointers with f.
func (f *FocusItem) Clone() *FocusItem {
	c := *f
	c.ScheduledTime = cloneTime(f.ScheduledTime)
	c.ConfirmedScheduledTime = cloneTime(f.ConfirmedScheduledTime)
	c.ConfirmedAt = cloneTime(f.ConfirmedAt)
	c.ReminderAt = cloneTime(f.ReminderAt)
	if f.Recommendation != nil {
		r := *f.Recommendation
		c.Recommendation = &r
	}
	if f.PreferenceCache != nil {
		pc := *f.PreferenceCache
		c.PreferenceCache = &pc
	}
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
