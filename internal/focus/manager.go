package focus

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/xaenox/globalsync/internal/extractor"
	"github.com/xaenox/globalsync/internal/models"
	"github.com/xaenox/globalsync/internal/reminder"
	"github.com/xaenox/globalsync/internal/scheduling"
	"github.com/xaenox/globalsync/internal/storage"
)

var (
	// ErrNothingToConfirm means neither a custom instant nor a live recommendation exists.
	ErrNothingToConfirm = errors.New("no scheduled time to confirm")
	// ErrNoReminderTarget means the item has no instant a reminder could target.
	ErrNoReminderTarget = errors.New("no time to set a reminder for")
)

type Recommender interface {
	Recommend(ctx context.Context, req scheduling.Request) (*models.ScheduleRecommendation, error)
	Quick(customer *models.Customer, senderTimezone string, senderHours *models.HourWindow) (*models.ScheduleRecommendation, error)
}

type Notifier interface {
	Notify(ctx context.Context, userID int64, title, body string) error
}

type Options struct {
	// DefaultTimezone applies to senders without a saved profile.
	DefaultTimezone string
	ExtractTimeout  time.Duration
}

const defaultExtractTimeout = 30 * time.Second

// extraction is a preference extraction shared by every caller that asks for
// the same customer and notes hash while it runs.
type extraction struct {
	done   chan struct{}
	result *models.PreferenceCache
}

// Manager owns the scheduling state of every focus item. Read-modify-write of
// stored items is serialised by mu; recommendation and extraction calls run
// outside it and their results are dropped when the item's Revision moved.
type Manager struct {
	store       storage.Storage
	recommender Recommender
	extractor   extractor.Extractor
	reminders   *reminder.Scheduler
	notifier    Notifier
	logger      *zap.Logger
	opts        Options
	now         func() time.Time

	mu       sync.Mutex
	inflight map[string]*extraction
	inflMu   sync.Mutex
}

func NewManager(
	store storage.Storage,
	recommender Recommender,
	ext extractor.Extractor,
	reminders *reminder.Scheduler,
	notifier Notifier,
	opts Options,
	logger *zap.Logger,
) *Manager {
	if opts.DefaultTimezone == "" {
		opts.DefaultTimezone = "UTC"
	}
	if opts.ExtractTimeout <= 0 {
		opts.ExtractTimeout = defaultExtractTimeout
	}
	return &Manager{
		store:       store,
		recommender: recommender,
		extractor:   ext,
		reminders:   reminders,
		notifier:    notifier,
		logger:      logger,
		opts:        opts,
		now:         time.Now,
		inflight:    make(map[string]*extraction),
	}
}

// SetClock overrides the time source used for confirmation and reminder timing.
func (m *Manager) SetClock(now func() time.Time) {
	m.now = now
}

func reminderKey(userID int64, customerID string) string {
	return fmt.Sprintf("%d:%s", userID, customerID)
}

// Create registers a relationship as unscheduled. An existing item only has
// its intent updated.
func (m *Manager) Create(ctx context.Context, userID int64, customerID, intent string) (*models.FocusItem, error) {
	if _, err := m.store.GetCustomer(ctx, userID, customerID); err != nil {
		return nil, fmt.Errorf("load customer: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	item, err := m.store.GetFocusItem(ctx, userID, customerID)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		item = &models.FocusItem{
			UserID:        userID,
			CustomerID:    customerID,
			ReminderState: models.ReminderNone,
		}
	case err != nil:
		return nil, fmt.Errorf("load focus item: %w", err)
	}
	item.Intent = intent

	if err := m.store.SaveFocusItem(ctx, item); err != nil {
		return nil, fmt.Errorf("save focus item: %w", err)
	}
	return item, nil
}

func (m *Manager) Get(ctx context.Context, userID int64, customerID string) (*models.FocusItem, error) {
	return m.store.GetFocusItem(ctx, userID, customerID)
}

func (m *Manager) List(ctx context.Context, userID int64) ([]*models.FocusItem, error) {
	return m.store.ListFocusItems(ctx, userID)
}

// sender resolves the user's timezone and working hours, falling back to
// defaults when no profile was saved.
func (m *Manager) sender(ctx context.Context, userID int64) (string, *models.HourWindow, error) {
	profile, err := m.store.GetProfile(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return m.opts.DefaultTimezone, nil, nil
	}
	if err != nil {
		return "", nil, fmt.Errorf("load profile: %w", err)
	}
	tz := profile.Timezone
	if tz == "" {
		tz = m.opts.DefaultTimezone
	}
	hours := profile.WorkHours
	if hours.Validate() != nil {
		return tz, nil, nil
	}
	return tz, &hours, nil
}

// Refresh recomputes the recommendation for an unconfirmed item. Stale
// preference caches trigger one extraction; the item is written with the
// cached-or-nil preferences first and recomputed once the fresh ones arrive.
func (m *Manager) Refresh(ctx context.Context, userID int64, customerID string) (*models.FocusItem, error) {
	item, err := m.store.GetFocusItem(ctx, userID, customerID)
	if err != nil {
		return nil, fmt.Errorf("load focus item: %w", err)
	}
	if item.IsTimeConfirmed {
		return item, nil
	}

	customer, err := m.store.GetCustomer(ctx, userID, customerID)
	if err != nil {
		return nil, fmt.Errorf("load customer: %w", err)
	}
	senderTZ, senderHours, err := m.sender(ctx, userID)
	if err != nil {
		return nil, err
	}

	revision := item.Revision
	hash := customer.NotesHash()

	var prefs *models.ExtractedPreferences
	var pending *extraction
	switch {
	case item.PreferenceCache.ValidFor(hash):
		prefs = item.PreferenceCache.Preferences
	case strings.TrimSpace(customer.Notes) == "" || m.extractor == nil:
		if err := m.storeCache(ctx, userID, customerID, &models.PreferenceCache{
			NotesHash:   hash,
			Preferences: models.EmptyPreferences(),
			ExtractedAt: m.now(),
		}); err != nil {
			return nil, err
		}
	default:
		pending = m.extract(ctx, customer, hash)
	}

	rec, err := m.recommender.Recommend(ctx, scheduling.Request{
		Customer:       customer,
		SenderTimezone: senderTZ,
		Preferences:    prefs,
		SenderHours:    senderHours,
	})
	if err != nil {
		return nil, fmt.Errorf("recommend: %w", err)
	}
	item, err = m.applyRecommendation(ctx, userID, customerID, revision, rec)
	if err != nil || pending == nil {
		return item, err
	}

	select {
	case <-pending.done:
	case <-ctx.Done():
		return item, nil
	}
	if pending.result == nil {
		return item, nil
	}

	rec, err = m.recommender.Recommend(ctx, scheduling.Request{
		Customer:       customer,
		SenderTimezone: senderTZ,
		Preferences:    pending.result.Preferences,
		SenderHours:    senderHours,
	})
	if err != nil {
		return nil, fmt.Errorf("recommend: %w", err)
	}
	return m.applyRecommendation(ctx, userID, customerID, revision, rec)
}

// RefreshAll recomputes every unconfirmed item of a user, for example after
// the user changed timezone or working hours.
func (m *Manager) RefreshAll(ctx context.Context, userID int64) error {
	items, err := m.store.ListFocusItems(ctx, userID)
	if err != nil {
		return fmt.Errorf("list focus items: %w", err)
	}

	var errs []error
	for _, item := range items {
		if item.IsTimeConfirmed {
			continue
		}
		if _, err := m.Refresh(ctx, userID, item.CustomerID); err != nil {
			m.logger.Error("Failed to refresh focus item",
				zap.Int64("user_id", userID),
				zap.String("customer_id", item.CustomerID),
				zap.Error(err))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Quick returns the fast-path recommendation. It is persisted only when the
// item has no recommendation yet, so it never overwrites a full result.
func (m *Manager) Quick(ctx context.Context, userID int64, customerID string) (*models.ScheduleRecommendation, error) {
	customer, err := m.store.GetCustomer(ctx, userID, customerID)
	if err != nil {
		return nil, fmt.Errorf("load customer: %w", err)
	}
	senderTZ, senderHours, err := m.sender(ctx, userID)
	if err != nil {
		return nil, err
	}
	rec, err := m.recommender.Quick(customer, senderTZ, senderHours)
	if err != nil {
		return nil, fmt.Errorf("quick recommend: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	item, err := m.store.GetFocusItem(ctx, userID, customerID)
	if err != nil {
		return rec, nil
	}
	if item.IsTimeConfirmed || item.ScheduledTime != nil {
		return rec, nil
	}
	t := rec.RecommendedTime
	item.ScheduledTime = &t
	item.Recommendation = rec
	if err := m.store.SaveFocusItem(ctx, item); err != nil {
		return nil, fmt.Errorf("save focus item: %w", err)
	}
	return rec, nil
}

func (m *Manager) applyRecommendation(ctx context.Context, userID int64, customerID string, revision int64, rec *models.ScheduleRecommendation) (*models.FocusItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	item, err := m.store.GetFocusItem(ctx, userID, customerID)
	if err != nil {
		return nil, fmt.Errorf("load focus item: %w", err)
	}
	if item.IsTimeConfirmed || item.Revision != revision {
		m.logger.Info("Discarding stale recommendation",
			zap.Int64("user_id", userID),
			zap.String("customer_id", customerID),
			zap.Int64("computed_revision", revision),
			zap.Int64("current_revision", item.Revision))
		return item, nil
	}

	t := rec.RecommendedTime
	item.ScheduledTime = &t
	item.Recommendation = rec
	if err := m.store.SaveFocusItem(ctx, item); err != nil {
		return nil, fmt.Errorf("save focus item: %w", err)
	}
	return item, nil
}

func (m *Manager) storeCache(ctx context.Context, userID int64, customerID string, cache *models.PreferenceCache) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	customer, err := m.store.GetCustomer(ctx, userID, customerID)
	if err != nil {
		return fmt.Errorf("load customer: %w", err)
	}
	// Notes edited while extracting; the result no longer applies.
	if customer.NotesHash() != cache.NotesHash {
		return nil
	}
	item, err := m.store.GetFocusItem(ctx, userID, customerID)
	if err != nil {
		return fmt.Errorf("load focus item: %w", err)
	}
	item.PreferenceCache = cache
	if err := m.store.SaveFocusItem(ctx, item); err != nil {
		return fmt.Errorf("save focus item: %w", err)
	}
	return nil
}

// extract starts, or joins, the extraction for a customer's current notes.
// It runs detached from ctx so a cancelled caller does not abort it for others.
func (m *Manager) extract(ctx context.Context, customer *models.Customer, hash string) *extraction {
	key := customer.ID + ":" + hash

	m.inflMu.Lock()
	defer m.inflMu.Unlock()
	if ex, ok := m.inflight[key]; ok {
		return ex
	}
	ex := &extraction{done: make(chan struct{})}
	m.inflight[key] = ex

	today := ""
	if loc, err := scheduling.LoadLocation(customer.Timezone); err == nil {
		today = scheduling.LocalPartsOf(m.now(), loc).Date
	}
	req := extractor.Request{
		Notes:          customer.Notes,
		CountryCode:    customer.CountryCode,
		Timezone:       customer.Timezone,
		TodayLocalDate: today,
	}

	go func() {
		defer func() {
			m.inflMu.Lock()
			delete(m.inflight, key)
			m.inflMu.Unlock()
			close(ex.done)
		}()

		extractCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.opts.ExtractTimeout)
		defer cancel()

		cache := &models.PreferenceCache{NotesHash: hash, ExtractedAt: m.now()}
		prefs, err := m.extractor.Extract(extractCtx, req)
		if err != nil {
			m.logger.Warn("Preference extraction failed, continuing without preferences",
				zap.String("customer_id", customer.ID),
				zap.Error(err))
			// Cached as empty so the same notes are not sent again.
			cache.Preferences = models.EmptyPreferences()
		} else {
			cache.Preferences = prefs
			ex.result = cache
		}
		if err := m.storeCache(context.WithoutCancel(ctx), customer.UserID, customer.ID, cache); err != nil {
			m.logger.Warn("Failed to store extracted preferences",
				zap.String("customer_id", customer.ID),
				zap.Error(err))
		}
	}()
	return ex
}
