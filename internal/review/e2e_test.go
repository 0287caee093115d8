package review

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spendsense/operator-console/internal/api"
	"github.com/spendsense/operator-console/internal/cache"
	"github.com/spendsense/operator-console/internal/config"
	"github.com/spendsense/operator-console/internal/logging"
	"github.com/spendsense/operator-console/internal/models"
	"github.com/spendsense/operator-console/internal/realtime"
	"github.com/spendsense/operator-console/internal/stubserver"
)

type stubEnv struct {
	cfg  *config.Config
	stub *stubserver.Server
	svc  *Service
}

func newStubEnv(t *testing.T) *stubEnv {
	t.Helper()
	stub := stubserver.New(stubserver.WithLogger(logging.Discard()))
	ts := httptest.NewServer(stub.Handler())
	t.Cleanup(func() {
		stub.Close()
		ts.Close()
	})

	cfg := config.Default()
	cfg.APIOrigin = ts.URL
	client := api.NewClient(cfg, api.StaticToken("tok"), api.WithLogger(logging.Discard()))
	return &stubEnv{
		cfg:  cfg,
		stub: stub,
		svc:  NewService(client, cache.New(time.Minute), logging.Discard()),
	}
}

func (e *stubEnv) queueRequests() int {
	n := 0
	for _, r := range e.stub.Requests() {
		if r.Method == http.MethodGet && r.Path == "/api/operator/recommendations" {
			n++
		}
	}
	return n
}

func ids(q *models.Queue) []string {
	out := make([]string, 0, len(q.Recommendations))
	for _, rec := range q.Recommendations {
		out = append(out, rec.ID)
	}
	return out
}

func TestApproveRefetchesPendingQueue(t *testing.T) {
	env := newStubEnv(t)
	ctx := context.Background()

	q, err := env.svc.Queue(ctx, pendingFilter)
	require.NoError(t, err)
	assert.Contains(t, ids(q), "rec-1")

	require.NoError(t, env.svc.Act(ctx, "rec-1", models.ActionApprove))

	reqs := env.stub.Requests()
	last := reqs[len(reqs)-1]
	assert.Equal(t, http.MethodPut, last.Method)
	assert.Equal(t, "/api/operator/recommendations/rec-1/approve", last.Path)

	q, err = env.svc.Queue(ctx, pendingFilter)
	require.NoError(t, err)
	assert.NotContains(t, ids(q), "rec-1")
	assert.Equal(t, 2, env.queueRequests())
}

func TestFailedActionKeepsQueue(t *testing.T) {
	env := newStubEnv(t)
	ctx := context.Background()

	_, err := env.svc.Queue(ctx, pendingFilter)
	require.NoError(t, err)

	env.stub.FailNext(http.MethodPut, "/api/operator/recommendations/rec-2/flag", http.StatusInternalServerError)
	err = env.svc.Act(ctx, "rec-2", models.ActionFlag)
	require.Error(t, err)
	assert.Equal(t, http.StatusInternalServerError, api.StatusCode(err))

	q, err := env.svc.Queue(ctx, pendingFilter)
	require.NoError(t, err)
	assert.Contains(t, ids(q), "rec-2")
	assert.Equal(t, 1, env.queueRequests())
}

func TestOperatorChannelPatchesPendingQueue(t *testing.T) {
	env := newStubEnv(t)
	ctx := context.Background()

	_, err := env.svc.Queue(ctx, pendingFilter)
	require.NoError(t, err)

	outcomes := make(chan Outcome, 4)
	ch := realtime.OperatorChannel(env.cfg, realtime.WithLogger(logging.Discard()))
	ch.OnEvent(func(ev realtime.Event) {
		outcomes <- env.svc.ApplyEvent(ev, pendingFilter)
	})
	ch.Connect()
	t.Cleanup(ch.Disconnect)

	require.Eventually(t, func() bool {
		return env.stub.Hub().Clients(stubserver.TopicOperator) == 1
	}, 2*time.Second, 10*time.Millisecond)

	// Another operator rejects rec-3 outside this service.
	_, _, ok := env.stub.Store().Review("rec-3", models.ActionReject, "someone-else", time.Now())
	require.True(t, ok)
	require.NoError(t, env.stub.Hub().Broadcast(stubserver.TopicOperator, models.RecommendationStatusChanged{
		Type:             models.EventRecommendationStatusChanged,
		RecommendationID: "rec-3",
		Action:           models.StatusActionRejected,
	}))

	select {
	case got := <-outcomes:
		assert.Equal(t, OutcomePatched, got)
	case <-time.After(2 * time.Second):
		t.Fatal("no realtime event received")
	}

	q, ok := cache.Peek[models.Queue](env.svc.Cache(), QueueKey(pendingFilter))
	require.True(t, ok)
	assert.NotContains(t, ids(&q), "rec-3")
	assert.Equal(t, 3, q.Total)
	assert.Equal(t, 1, env.queueRequests())
}
