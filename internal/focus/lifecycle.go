package focus

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xaenox/globalsync/internal/models"
	"github.com/xaenox/globalsync/internal/storage"
)

// Confirm locks the item to the custom instant, or to the live recommendation
// when custom is nil. Confirming the instant that is already confirmed is a no-op.
func (m *Manager) Confirm(ctx context.Context, userID int64, customerID string, custom *time.Time) (*models.FocusItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	item, err := m.store.GetFocusItem(ctx, userID, customerID)
	if err != nil {
		return nil, fmt.Errorf("load focus item: %w", err)
	}

	var target time.Time
	switch {
	case custom != nil:
		target = *custom
	case item.IsTimeConfirmed && item.ConfirmedScheduledTime != nil:
		target = *item.ConfirmedScheduledTime
	case item.ScheduledTime != nil:
		target = *item.ScheduledTime
	default:
		return nil, ErrNothingToConfirm
	}

	if item.IsTimeConfirmed && item.ConfirmedScheduledTime != nil && item.ConfirmedScheduledTime.Equal(target) {
		return item, nil
	}

	now := m.now()
	item.IsTimeConfirmed = true
	item.ConfirmedScheduledTime = &target
	item.ConfirmedAt = &now
	item.Revision++

	if item.ReminderState == models.ReminderArmed && (item.ReminderAt == nil || !item.ReminderAt.Equal(target)) {
		m.cancelArmed(item)
	}

	if err := m.store.SaveFocusItem(ctx, item); err != nil {
		return nil, fmt.Errorf("save focus item: %w", err)
	}
	m.logger.Info("Contact time confirmed",
		zap.Int64("user_id", userID),
		zap.String("customer_id", customerID),
		zap.Time("at", target),
		zap.Int64("revision", item.Revision))
	return item, nil
}

// Unconfirm releases the lock so the recommendation pipeline runs again.
func (m *Manager) Unconfirm(ctx context.Context, userID int64, customerID string) (*models.FocusItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	item, err := m.store.GetFocusItem(ctx, userID, customerID)
	if err != nil {
		return nil, fmt.Errorf("load focus item: %w", err)
	}
	if !item.IsTimeConfirmed {
		return item, nil
	}

	item.IsTimeConfirmed = false
	item.ConfirmedScheduledTime = nil
	item.ConfirmedAt = nil
	item.Revision++
	if item.ReminderState == models.ReminderArmed {
		m.cancelArmed(item)
	}

	if err := m.store.SaveFocusItem(ctx, item); err != nil {
		return nil, fmt.Errorf("save focus item: %w", err)
	}
	return item, nil
}

// cancelArmed stops the item's timer and marks the reminder cancelled. The
// caller holds mu and saves the item.
func (m *Manager) cancelArmed(item *models.FocusItem) {
	m.reminders.Cancel(reminderKey(item.UserID, item.CustomerID))
	item.ReminderSet = false
	item.ReminderState = models.ReminderCancelled
}

// ArmReminder schedules a reminder at the given instant, defaulting to the
// displayed time. Any earlier reminder for the item is replaced. A target
// that is already due fires before ArmReminder returns.
func (m *Manager) ArmReminder(ctx context.Context, userID int64, customerID string, at *time.Time, onFire func()) (*models.FocusItem, error) {
	m.mu.Lock()
	item, err := m.store.GetFocusItem(ctx, userID, customerID)
	if err != nil {
		m.mu.Unlock()
		return nil, fmt.Errorf("load focus item: %w", err)
	}

	var target time.Time
	switch {
	case at != nil:
		target = *at
	case item.DisplayedTime() != nil:
		target = *item.DisplayedTime()
	default:
		m.mu.Unlock()
		return nil, ErrNoReminderTarget
	}

	item.ReminderSet = true
	item.ReminderAt = &target
	item.ReminderState = models.ReminderArmed
	if err := m.store.SaveFocusItem(ctx, item); err != nil {
		m.mu.Unlock()
		return nil, fmt.Errorf("save focus item: %w", err)
	}
	m.mu.Unlock()

	key := reminderKey(userID, customerID)
	if !target.After(m.now()) {
		m.reminders.Cancel(key)
		m.fire(ctx, userID, customerID, target, onFire)
		return m.store.GetFocusItem(ctx, userID, customerID)
	}

	m.reminders.Arm(key, target, func() {
		m.fire(context.Background(), userID, customerID, target, onFire)
	})
	m.logger.Info("Reminder armed",
		zap.Int64("user_id", userID),
		zap.String("customer_id", customerID),
		zap.Time("at", target))
	return item, nil
}

// fire delivers a reminder if the item is still armed for target.
func (m *Manager) fire(ctx context.Context, userID int64, customerID string, target time.Time, onFire func()) {
	m.mu.Lock()
	item, err := m.store.GetFocusItem(ctx, userID, customerID)
	if err != nil {
		m.mu.Unlock()
		m.logger.Warn("Reminder fired for missing focus item",
			zap.Int64("user_id", userID),
			zap.String("customer_id", customerID),
			zap.Error(err))
		return
	}
	if !item.ReminderSet || item.ReminderState != models.ReminderArmed ||
		item.ReminderAt == nil || !item.ReminderAt.Equal(target) {
		m.mu.Unlock()
		return
	}
	item.ReminderSet = false
	item.ReminderState = models.ReminderFired
	if err := m.store.SaveFocusItem(ctx, item); err != nil {
		m.mu.Unlock()
		m.logger.Error("Failed to save fired reminder", zap.Error(err))
		return
	}
	m.mu.Unlock()

	title, body := m.reminderText(ctx, item, target)
	if m.notifier != nil {
		if err := m.notifier.Notify(ctx, userID, title, body); err != nil {
			m.logger.Warn("Failed to deliver reminder",
				zap.Int64("user_id", userID),
				zap.String("customer_id", customerID),
				zap.Error(err))
		}
	}
	if onFire != nil {
		onFire()
	}
}

func (m *Manager) reminderText(ctx context.Context, item *models.FocusItem, target time.Time) (string, string) {
	name := item.CustomerID
	when := target.UTC().Format("Mon 2006-01-02 15:04 MST")
	if customer, err := m.store.GetCustomer(ctx, item.UserID, item.CustomerID); err == nil {
		name = customer.Name
		if loc, err := time.LoadLocation(customer.Timezone); err == nil {
			when = target.In(loc).Format("Mon 2006-01-02 15:04 MST")
		}
	}

	title := "Time to contact " + name
	body := fmt.Sprintf("Scheduled for %s (customer time).", when)
	if item.Intent != "" {
		body = fmt.Sprintf("%s\nGoal: %s", body, item.Intent)
	}
	return title, body
}

// CancelReminder stops a pending reminder without firing it.
func (m *Manager) CancelReminder(ctx context.Context, userID int64, customerID string) (*models.FocusItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	item, err := m.store.GetFocusItem(ctx, userID, customerID)
	if err != nil {
		return nil, fmt.Errorf("load focus item: %w", err)
	}
	m.reminders.Cancel(reminderKey(userID, customerID))
	if !item.ReminderSet {
		return item, nil
	}
	m.cancelArmed(item)
	if err := m.store.SaveFocusItem(ctx, item); err != nil {
		return nil, fmt.Errorf("save focus item: %w", err)
	}
	return item, nil
}

// Delete removes the item and tears down its timer without firing it.
func (m *Manager) Delete(ctx context.Context, userID int64, customerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.reminders.Cancel(reminderKey(userID, customerID))
	if err := m.store.DeleteFocusItem(ctx, userID, customerID); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("delete focus item: %w", err)
	}
	return nil
}

// Reconcile restores reminder timers after a restart. Reminders whose time
// passed while the process was down are cancelled, not fired.
func (m *Manager) Reconcile(ctx context.Context) (rearmed, expired int, err error) {
	items, err := m.store.ListAllFocusItems(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("list focus items: %w", err)
	}

	now := m.now()
	for _, item := range items {
		if !item.ReminderSet || item.ReminderState != models.ReminderArmed || item.ReminderAt == nil {
			continue
		}
		userID, customerID, target := item.UserID, item.CustomerID, *item.ReminderAt

		if !target.After(now) {
			m.mu.Lock()
			item.ReminderSet = false
			item.ReminderState = models.ReminderCancelled
			saveErr := m.store.SaveFocusItem(ctx, item)
			m.mu.Unlock()
			if saveErr != nil {
				return rearmed, expired, fmt.Errorf("save focus item: %w", saveErr)
			}
			expired++
			continue
		}

		m.reminders.Arm(reminderKey(userID, customerID), target, func() {
			m.fire(context.Background(), userID, customerID, target, nil)
		})
		rearmed++
	}

	m.logger.Info("Reminders reconciled", zap.Int("rearmed", rearmed), zap.Int("expired", expired))
	return rearmed, expired, nil
}
