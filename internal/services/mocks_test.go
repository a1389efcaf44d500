package services

import (
	"context"

	"github.com/ruralpay/stash/internal/models"
	"github.com/stretchr/testify/mock"
)

type MockUserResolver struct {
	mock.Mock
}

func (m *MockUserResolver) EnsureUser(ctx context.Context, externalID int64, username *string, firstName string, lastName *string) (string, error) {
	args := m.Called(ctx, externalID, username, firstName, lastName)
	return args.String(0), args.Error(1)
}

type MockLedger struct {
	mock.Mock
}

func (m *MockLedger) AddEntry(ctx context.Context, userID string, amountCents int64, kind models.EntryKind, reason *string) (*models.Entry, error) {
	args := m.Called(ctx, userID, amountCents, kind, reason)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Entry), args.Error(1)
}

func (m *MockLedger) Archive(ctx context.Context, userID string) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockLedger) Totals(ctx context.Context, userID string) (models.Totals, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(models.Totals), args.Error(1)
}

func (m *MockLedger) RecentEntries(ctx context.Context, userID string, limit int) ([]models.Entry, error) {
	args := m.Called(ctx, userID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Entry), args.Error(1)
}
