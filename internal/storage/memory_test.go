package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xaenox/globalsync/internal/models"
)

func TestMemoryStorageCustomers(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage()

	c := &models.Customer{UserID: 7, Name: "Acme", Timezone: "Asia/Tokyo", CountryCode: "JP",
		PreferredHours: &models.HourWindow{Start: 14, End: 17}}
	require.NoError(t, s.SaveCustomer(ctx, c))
	require.NotEmpty(t, c.ID)
	assert.False(t, c.CreatedAt.IsZero())

	got, err := s.GetCustomer(ctx, 7, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "Acme", got.Name)

	// stored copies are independent of the caller's value
	got.PreferredHours.Start = 1
	again, err := s.GetCustomer(ctx, 7, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 14, again.PreferredHours.Start)

	_, err = s.GetCustomer(ctx, 8, c.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.SaveCustomer(ctx, &models.Customer{UserID: 7, Name: "Beta", Timezone: "UTC"}))
	require.NoError(t, s.SaveCustomer(ctx, &models.Customer{UserID: 9, Name: "Other", Timezone: "UTC"}))
	list, err := s.ListCustomers(ctx, 7)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Acme", list[0].Name)
	assert.Equal(t, "Beta", list[1].Name)
}

func TestMemoryStorageDeleteCustomerRemovesFocusItem(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage()

	c := &models.Customer{UserID: 7, Name: "Acme", Timezone: "Asia/Tokyo"}
	require.NoError(t, s.SaveCustomer(ctx, c))
	require.NoError(t, s.SaveFocusItem(ctx, &models.FocusItem{UserID: 7, CustomerID: c.ID, Intent: "follow up"}))

	require.NoError(t, s.DeleteCustomer(ctx, 7, c.ID))
	_, err := s.GetFocusItem(ctx, 7, c.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.DeleteCustomer(ctx, 7, c.ID), ErrNotFound)
}

func TestMemoryStorageFocusItems(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage()

	at := time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)
	item := &models.FocusItem{UserID: 7, CustomerID: "c1", ScheduledTime: &at, Revision: 2}
	require.NoError(t, s.SaveFocusItem(ctx, item))

	got, err := s.GetFocusItem(ctx, 7, "c1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusProposed, got.Status())

	*got.ScheduledTime = at.Add(time.Hour)
	again, err := s.GetFocusItem(ctx, 7, "c1")
	require.NoError(t, err)
	assert.True(t, again.ScheduledTime.Equal(at))

	require.NoError(t, s.SaveFocusItem(ctx, &models.FocusItem{UserID: 8, CustomerID: "c2"}))
	mine, err := s.ListFocusItems(ctx, 7)
	require.NoError(t, err)
	assert.Len(t, mine, 1)
	all, err := s.ListAllFocusItems(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	require.NoError(t, s.DeleteFocusItem(ctx, 7, "c1"))
	assert.ErrorIs(t, s.DeleteFocusItem(ctx, 7, "c1"), ErrNotFound)
}

func TestMemoryStorageProfiles(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage()

	_, err := s.GetProfile(ctx, 7)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.SaveProfile(ctx, &models.UserProfile{UserID: 7, ChatID: 70, Timezone: "Europe/London",
		WorkHours: models.HourWindow{Start: 8, End: 17}}))
	p, err := s.GetProfile(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, "Europe/London", p.Timezone)
	assert.Equal(t, 8, p.WorkHours.Start)
}
