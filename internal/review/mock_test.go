package review

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/spendsense/operator-console/internal/models"
)

type mockAPI struct {
	mock.Mock
}

func (m *mockAPI) GetRecommendationQueue(ctx context.Context, filter models.QueueFilter) (*models.Queue, error) {
	args := m.Called(ctx, filter)
	q, _ := args.Get(0).(*models.Queue)
	return q, args.Error(1)
}

func (m *mockAPI) Act(ctx context.Context, id string, action models.Action) error {
	return m.Called(ctx, id, action).Error(0)
}

func (m *mockAPI) GetUserSignals(ctx context.Context, userID string, windowDays int) (*models.SignalSnapshot, error) {
	args := m.Called(ctx, userID, windowDays)
	s, _ := args.Get(0).(*models.SignalSnapshot)
	return s, args.Error(1)
}

func (m *mockAPI) GetDecisionTraces(ctx context.Context, userID string) (*models.DecisionTraces, error) {
	args := m.Called(ctx, userID)
	t, _ := args.Get(0).(*models.DecisionTraces)
	return t, args.Error(1)
}

func (m *mockAPI) GetStats(ctx context.Context) (*models.Stats, error) {
	args := m.Called(ctx)
	s, _ := args.Get(0).(*models.Stats)
	return s, args.Error(1)
}

func (m *mockAPI) ListUsers(ctx context.Context, skip, limit int, includePersona bool) (*models.UserList, error) {
	args := m.Called(ctx, skip, limit, includePersona)
	l, _ := args.Get(0).(*models.UserList)
	return l, args.Error(1)
}
