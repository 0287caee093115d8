package stubserver

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spendsense/operator-console/internal/logging"
	"github.com/spendsense/operator-console/internal/models"
)

func newTestServer(t *testing.T, opts ...Option) (*Server, *httptest.Server) {
	t.Helper()
	s := New(append([]Option{WithLogger(logging.Discard())}, opts...)...)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		s.Close()
		ts.Close()
	})
	return s, ts
}

func TestStoreQueue_LimitKeepsTotal(t *testing.T) {
	s := NewStore()
	Seed(s)

	q := s.Queue(models.QueueFilter{Status: models.StatusPending, Limit: 2})
	assert.Equal(t, 4, q.Total)
	assert.Len(t, q.Recommendations, 2)

	q = s.Queue(models.QueueFilter{Status: models.StatusApproved})
	assert.Equal(t, 0, q.Total)
	assert.NotNil(t, q.Recommendations)
}

func TestStoreReview_SingleState(t *testing.T) {
	s := NewStore()
	Seed(s)
	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	_, _, ok := s.Review("rec-2", models.ActionFlag, "op", at)
	require.True(t, ok)
	rec, patch, ok := s.Review("rec-2", models.ActionReject, "op", at)
	require.True(t, ok)

	assert.Equal(t, models.StatusRejected, rec.Status())
	assert.False(t, rec.Inconsistent())
	assert.Equal(t, "op", rec.RejectedBy)
	require.NotNil(t, patch.Rejected)
	assert.True(t, *patch.Rejected)

	_, _, ok = s.Review("nope", models.ActionApprove, "op", at)
	assert.False(t, ok)

	st := s.Stats()
	assert.Equal(t, 1, st.Rejected)
	assert.Equal(t, 3, st.Pending)
}

func TestServer_FailNextIsOneShot(t *testing.T) {
	s, ts := newTestServer(t)
	s.FailNext(http.MethodGet, "/api/stats", http.StatusServiceUnavailable)

	resp, err := http.Get(ts.URL + "/api/stats")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	resp, err = http.Get(ts.URL + "/api/stats")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestServer_TokenSkipsHealth(t *testing.T) {
	_, ts := newTestServer(t, WithToken("secret"))

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(ts.URL + "/api/users")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "Not authenticated", body["detail"])
}

func TestServer_ReviewBroadcastsStatusChange(t *testing.T) {
	s, ts := newTestServer(t)
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/operator/recommendations"

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	var ack map[string]string
	require.NoError(t, conn.ReadJSON(&ack))
	assert.Equal(t, "connection_established", ack["type"])
	require.Eventually(t, func() bool { return s.Hub().Clients(TopicOperator) == 1 }, 2*time.Second, 10*time.Millisecond)

	req, err := http.NewRequest(http.MethodPut, ts.URL+"/api/operator/recommendations/rec-1/approve", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev models.RecommendationStatusChanged
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, models.EventRecommendationStatusChanged, ev.Type)
	assert.Equal(t, "rec-1", ev.RecommendationID)
	assert.Equal(t, "user-1", ev.UserID)
	assert.Equal(t, models.StatusActionApproved, ev.Action)
	require.NotNil(t, ev.Patch.Approved)
	assert.True(t, *ev.Patch.Approved)
}

func TestServer_PingGetsPong(t *testing.T) {
	_, ts := newTestServer(t)
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/subscriptions/user-1"

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	var msg map[string]string
	require.NoError(t, conn.ReadJSON(&msg))
	require.NoError(t, conn.WriteJSON(map[string]string{"type": "ping"}))

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "pong", msg["type"])
}

func TestServer_CloseTopicDropsSockets(t *testing.T) {
	s, ts := newTestServer(t)
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/user/user-1/recommendations/feedback"

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	var msg map[string]string
	require.NoError(t, conn.ReadJSON(&msg))
	require.Eventually(t, func() bool { return s.Hub().Clients(FeedbackTopic("user-1")) == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, s.SendFeedback("user-1", "rec-1", models.VerdictAgree))
	var fb models.RecommendationFeedback
	require.NoError(t, conn.ReadJSON(&fb))
	assert.Equal(t, models.VerdictAgree, fb.Verdict)

	s.Hub().CloseTopic(FeedbackTopic("user-1"))
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err = conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure))
	assert.Equal(t, 0, s.Hub().Clients(FeedbackTopic("user-1")))
}
