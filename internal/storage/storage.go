package storage

import (
	"context"
	"errors"

	"github.com/xaenox/globalsync/internal/models"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

type Storage interface {
	CustomerStorage
	FocusStorage
	ProfileStorage
	Close() error
}

type CustomerStorage interface {
	GetCustomer(ctx context.Context, userID int64, customerID string) (*models.Customer, error)
	// SaveCustomer inserts or updates; an empty ID is assigned a new UUID.
	SaveCustomer(ctx context.Context, customer *models.Customer) error
	ListCustomers(ctx context.Context, userID int64) ([]*models.Customer, error)
	// DeleteCustomer also removes the customer's focus item.
	DeleteCustomer(ctx context.Context, userID int64, customerID string) error
}

type FocusStorage interface {
	GetFocusItem(ctx context.Context, userID int64, customerID string) (*models.FocusItem, error)
	SaveFocusItem(ctx context.Context, item *models.FocusItem) error
	DeleteFocusItem(ctx context.Context, userID int64, customerID string) error
	ListFocusItems(ctx context.Context, userID int64) ([]*models.FocusItem, error)
	ListAllFocusItems(ctx context.Context) ([]*models.FocusItem, error)
}

type ProfileStorage interface {
	GetProfile(ctx context.Context, userID int64) (*models.UserProfile, error)
	SaveProfile(ctx context.Context, profile *models.UserProfile) error
}
