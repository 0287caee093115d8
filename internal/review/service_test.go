package review

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/spendsense/operator-console/internal/cache"
	"github.com/spendsense/operator-console/internal/logging"
	"github.com/spendsense/operator-console/internal/models"
	"github.com/spendsense/operator-console/internal/signals"
)

var pendingFilter = models.QueueFilter{Status: models.StatusPending, Limit: 100}

func abcQueue() *models.Queue {
	return &models.Queue{
		Recommendations: []models.Recommendation{{ID: "A"}, {ID: "B"}, {ID: "C"}},
		Total:           3,
		Status:          models.StatusPending,
	}
}

func newService(api API) *Service {
	return NewService(api, cache.New(time.Minute), logging.Discard())
}

func TestQueue_CachesResult(t *testing.T) {
	api := &mockAPI{}
	api.On("GetRecommendationQueue", mock.Anything, pendingFilter).Return(abcQueue(), nil).Once()
	svc := newService(api)

	for i := 0; i < 3; i++ {
		q, err := svc.Queue(context.Background(), pendingFilter)
		require.NoError(t, err)
		assert.Equal(t, 3, q.Total)
	}
	api.AssertExpectations(t)
}

func TestApplyEvent_PendingViewPatchesEntryOut(t *testing.T) {
	api := &mockAPI{}
	api.On("GetRecommendationQueue", mock.Anything, pendingFilter).Return(abcQueue(), nil).Once()
	svc := newService(api)

	_, err := svc.Queue(context.Background(), pendingFilter)
	require.NoError(t, err)

	outcome := svc.ApplyEvent(models.RecommendationStatusChanged{
		Type:             models.EventRecommendationStatusChanged,
		RecommendationID: "B",
		Action:           models.StatusActionApproved,
	}, pendingFilter)
	assert.Equal(t, OutcomePatched, outcome)

	q, ok := cache.Peek[models.Queue](svc.Cache(), QueueKey(pendingFilter))
	require.True(t, ok, "patched, not invalidated")
	assert.Equal(t, 2, q.Total)
	require.Len(t, q.Recommendations, 2)
	assert.Equal(t, "A", q.Recommendations[0].ID)
	assert.Equal(t, "C", q.Recommendations[1].ID)

	// Served from the patched cache without another request.
	q2, err := svc.Queue(context.Background(), pendingFilter)
	require.NoError(t, err)
	assert.Equal(t, 2, q2.Total)
	api.AssertExpectations(t)
}

func TestApplyEvent_InvalidatesOtherwise(t *testing.T) {
	flaggedFilter := models.QueueFilter{Status: models.StatusFlagged, Limit: 100}

	cases := []struct {
		name   string
		viewed models.QueueFilter
		action models.StatusAction
	}{
		{"flagged_view_approved_event", flaggedFilter, models.StatusActionApproved},
		{"all_view_rejected_event", models.QueueFilter{Status: models.StatusAll, Limit: 100}, models.StatusActionRejected},
		{"pending_view_unknown_action", pendingFilter, models.StatusAction("reopened")},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			api := &mockAPI{}
			api.On("GetRecommendationQueue", mock.Anything, tc.viewed).Return(abcQueue(), nil)
			svc := newService(api)

			_, err := svc.Queue(context.Background(), tc.viewed)
			require.NoError(t, err)

			outcome := svc.ApplyEvent(models.RecommendationStatusChanged{
				RecommendationID: "B",
				Action:           tc.action,
			}, tc.viewed)
			assert.Equal(t, OutcomeInvalidated, outcome)
			assert.Empty(t, svc.Cache().Keys(FamilyQueue))

			_, err = svc.Queue(context.Background(), tc.viewed)
			require.NoError(t, err)
			api.AssertNumberOfCalls(t, "GetRecommendationQueue", 2)
		})
	}
}

func TestApplyEvent_PatchDropsOtherStatusLists(t *testing.T) {
	approvedFilter := models.QueueFilter{Status: models.StatusApproved, Limit: 100}
	api := &mockAPI{}
	api.On("GetRecommendationQueue", mock.Anything, pendingFilter).Return(abcQueue(), nil)
	api.On("GetRecommendationQueue", mock.Anything, approvedFilter).Return(&models.Queue{Status: models.StatusApproved}, nil)
	svc := newService(api)

	_, err := svc.Queue(context.Background(), pendingFilter)
	require.NoError(t, err)
	_, err = svc.Queue(context.Background(), approvedFilter)
	require.NoError(t, err)

	svc.ApplyEvent(models.RecommendationStatusChanged{RecommendationID: "A", Action: models.StatusActionApproved}, pendingFilter)

	assert.Equal(t, []cache.Key{QueueKey(pendingFilter)}, svc.Cache().Keys(FamilyQueue))
}

func TestApplyEvent_SubscriptionInvalidatesUserSignals(t *testing.T) {
	api := &mockAPI{}
	snap := &models.SignalSnapshot{UserID: "u1", WindowDays: 30, Signals: signals.NewMap()}
	api.On("GetUserSignals", mock.Anything, "u1", 30).Return(snap, nil)
	api.On("GetUserSignals", mock.Anything, "u2", 30).Return(&models.SignalSnapshot{UserID: "u2", Signals: signals.NewMap()}, nil)
	svc := newService(api)

	_, err := svc.Signals(context.Background(), "u1", 30)
	require.NoError(t, err)
	_, err = svc.Signals(context.Background(), "u2", 30)
	require.NoError(t, err)

	outcome := svc.ApplyEvent(models.SubscriptionCancelled{UserID: "u1", MerchantName: "Netflix", Cancelled: true}, pendingFilter)
	assert.Equal(t, OutcomeInvalidated, outcome)
	assert.Equal(t, []cache.Key{SignalsKey("u2", 30)}, svc.Cache().Keys(FamilySignals))
}

func TestAct_InvalidatesOnlyOnSuccess(t *testing.T) {
	api := &mockAPI{}
	api.On("GetRecommendationQueue", mock.Anything, pendingFilter).Return(abcQueue(), nil)
	api.On("Act", mock.Anything, "A", models.ActionApprove).Return(nil).Once()
	api.On("Act", mock.Anything, "B", models.ActionFlag).Return(errors.New("API error (status 500)")).Once()
	svc := newService(api)
	ctx := context.Background()

	_, err := svc.Queue(ctx, pendingFilter)
	require.NoError(t, err)

	err = svc.Act(ctx, "B", models.ActionFlag)
	require.Error(t, err)
	assert.Len(t, svc.Cache().Keys(FamilyQueue), 1, "failure leaves the cache alone")

	require.NoError(t, svc.Act(ctx, "A", models.ActionApprove))
	assert.Empty(t, svc.Cache().Keys(FamilyQueue))
	api.AssertExpectations(t)
}

func TestAct_InFlightGuard(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	api := &mockAPI{}
	api.On("Act", mock.Anything, "A", models.ActionApprove).Run(func(mock.Arguments) {
		close(started)
		<-release
	}).Return(nil).Once()
	svc := newService(api)

	done := make(chan error, 1)
	go func() { done <- svc.Act(context.Background(), "A", models.ActionApprove) }()
	<-started

	rec := &models.Recommendation{ID: "A"}
	assert.True(t, svc.InFlight("A"))
	assert.False(t, svc.CanAct(rec))
	assert.ErrorIs(t, svc.Act(context.Background(), "A", models.ActionReject), ErrActionInFlight)

	close(release)
	require.NoError(t, <-done)
	assert.False(t, svc.InFlight("A"))
	assert.True(t, svc.CanAct(rec))
	assert.False(t, svc.CanAct(&models.Recommendation{ID: "A", Rejected: true}))
}

func TestSignals_GroupsSnapshot(t *testing.T) {
	m := signals.NewMap()
	m.Set("subscription_income_ratio", signals.Number(0.2))
	m.Set("credit_utilization", signals.Number(0.68))
	m.Set("misc", signals.String("x"))

	api := &mockAPI{}
	api.On("GetUserSignals", mock.Anything, "u1", 180).Return(&models.SignalSnapshot{UserID: "u1", WindowDays: 180, Signals: m}, nil).Once()
	svc := newService(api)

	view, err := svc.Signals(context.Background(), "u1", 180)
	require.NoError(t, err)
	require.Len(t, view.Groups, 3)
	assert.Equal(t, signals.CategorySubscriptions, view.Groups[0].Category)
	assert.Equal(t, signals.CategoryCredit, view.Groups[1].Category)
	assert.Equal(t, signals.CategoryOther, view.Groups[2].Category)

	_, err = svc.Signals(context.Background(), "", 30)
	assert.Error(t, err)
}

func TestNextWindow(t *testing.T) {
	assert.Equal(t, 180, NextWindow(30))
	assert.Equal(t, 30, NextWindow(180))
	assert.Equal(t, 30, NextWindow(7))
}
