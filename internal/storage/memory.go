package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/xaenox/globalsync/internal/models"
)

type focusKey struct {
	userID     int64
	customerID string
}

// MemoryStorage keeps everything in process. Values are copied in and out so
// callers never share state with the store.
type MemoryStorage struct {
	mu        sync.RWMutex
	customers map[string]*models.Customer
	focus     map[focusKey]*models.FocusItem
	profiles  map[int64]*models.UserProfile
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		customers: make(map[string]*models.Customer),
		focus:     make(map[focusKey]*models.FocusItem),
		profiles:  make(map[int64]*models.UserProfile),
	}
}

// Customer methods
func (s *MemoryStorage) GetCustomer(ctx context.Context, userID int64, customerID string) (*models.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.customers[customerID]
	if !ok || c.UserID != userID {
		return nil, ErrNotFound
	}
	return copyCustomer(c), nil
}

func (s *MemoryStorage) SaveCustomer(ctx context.Context, customer *models.Customer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if customer.ID == "" {
		customer.ID = uuid.New().String()
	}
	if existing, ok := s.customers[customer.ID]; ok {
		customer.CreatedAt = existing.CreatedAt
	} else if customer.CreatedAt.IsZero() {
		customer.CreatedAt = now
	}
	customer.UpdatedAt = now
	s.customers[customer.ID] = copyCustomer(customer)
	return nil
}

func (s *MemoryStorage) ListCustomers(ctx context.Context, userID int64) ([]*models.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*models.Customer
	for _, c := range s.customers {
		if c.UserID == userID {
			result = append(result, copyCustomer(c))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Name < result[j].Name
	})
	return result, nil
}

func (s *MemoryStorage) DeleteCustomer(ctx context.Context, userID int64, customerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.customers[customerID]
	if !ok || c.UserID != userID {
		return ErrNotFound
	}
	delete(s.customers, customerID)
	delete(s.focus, focusKey{userID, customerID})
	return nil
}

// Focus item methods
func (s *MemoryStorage) GetFocusItem(ctx context.Context, userID int64, customerID string) (*models.FocusItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.focus[focusKey{userID, customerID}]
	if !ok {
		return nil, ErrNotFound
	}
	return item.Clone(), nil
}

func (s *MemoryStorage) SaveFocusItem(ctx context.Context, item *models.FocusItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if item.CreatedAt.IsZero() {
		item.CreatedAt = now
	}
	item.UpdatedAt = now
	s.focus[focusKey{item.UserID, item.CustomerID}] = item.Clone()
	return nil
}

func (s *MemoryStorage) DeleteFocusItem(ctx context.Context, userID int64, customerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := focusKey{userID, customerID}
	if _, ok := s.focus[key]; !ok {
		return ErrNotFound
	}
	delete(s.focus, key)
	return nil
}

func (s *MemoryStorage) ListFocusItems(ctx context.Context, userID int64) ([]*models.FocusItem, error) {
	return s.listFocus(func(item *models.FocusItem) bool { return item.UserID == userID }), nil
}

func (s *MemoryStorage) ListAllFocusItems(ctx context.Context) ([]*models.FocusItem, error) {
	return s.listFocus(func(*models.FocusItem) bool { return true }), nil
}

func (s *MemoryStorage) listFocus(keep func(*models.FocusItem) bool) []*models.FocusItem {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*models.FocusItem
	for _, item := range s.focus {
		if keep(item) {
			result = append(result, item.Clone())
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].UserID != result[j].UserID {
			return result[i].UserID < result[j].UserID
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result
}

// Profile methods
func (s *MemoryStorage) GetProfile(ctx context.Context, userID int64) (*models.UserProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.profiles[userID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *MemoryStorage) SaveProfile(ctx context.Context, profile *models.UserProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	profile.UpdatedAt = time.Now()
	cp := *profile
	s.profiles[profile.UserID] = &cp
	return nil
}

func (s *MemoryStorage) Close() error {
	return nil
}

func copyCustomer(c *models.Customer) *models.Customer {
	cp := *c
	if c.PreferredHours != nil {
		h := *c.PreferredHours
		cp.PreferredHours = &h
	}
	return &cp
}
