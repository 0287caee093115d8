package realtime

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spendsense/operator-console/internal/config"
	"github.com/spendsense/operator-console/internal/logging"
	"github.com/spendsense/operator-console/internal/models"
)

func fastPolicy(maxAttempts int) ReconnectPolicy {
	return ReconnectPolicy{MaxAttempts: maxAttempts, Backoff: func(int) time.Duration { return 5 * time.Millisecond }}
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

// newWSServer upgrades every request and hands the connection to serve.
func newWSServer(t *testing.T, serve func(*websocket.Conn, *http.Request)) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var opened atomic.Int32
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		opened.Add(1)
		serve(conn, r)
	}))
	t.Cleanup(srv.Close)
	return srv, &opened
}

// holdOpen keeps the server side open until the client goes away.
func holdOpen(conn *websocket.Conn) {
	defer conn.Close()
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

type recorder struct {
	mu     sync.Mutex
	events []Event
	states []State
}

func (r *recorder) event(ev Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *recorder) state(s State) {
	r.mu.Lock()
	r.states = append(r.states, s)
	r.mu.Unlock()
}

func (r *recorder) snapshot() ([]Event, []State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...), append([]State(nil), r.states...)
}

func TestChannel_IgnoresAcksAndMalformedMessages(t *testing.T) {
	srv, _ := newWSServer(t, func(conn *websocket.Conn, _ *http.Request) {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"connection_established"}`))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`not json at all`))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"heartbeat"}`))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"something_else","x":1}`))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(
			`{"type":"recommendation_status_changed","recommendation_id":"rec-1","action":"approved","patch":{"approved":true}}`))
		holdOpen(conn)
	})

	rec := &recorder{}
	ch := New("operator", wsURL(srv), fastPolicy(5),
		WithLogger(logging.Discard()),
		WithTypes(models.EventRecommendationStatusChanged))
	ch.OnEvent(rec.event)
	ch.Connect()
	defer ch.Disconnect()

	require.Eventually(t, func() bool {
		events, _ := rec.snapshot()
		return len(events) == 1
	}, 2*time.Second, 10*time.Millisecond)

	events, _ := rec.snapshot()
	ev, ok := events[0].(models.RecommendationStatusChanged)
	require.True(t, ok)
	assert.Equal(t, "rec-1", ev.RecommendationID)
	assert.Equal(t, models.StatusActionApproved, ev.Action)
	require.NotNil(t, ev.Patch.Approved)
	assert.True(t, *ev.Patch.Approved)
	assert.Equal(t, StateConnected, ch.State())
}

func TestChannel_StopsAfterMaxAttempts(t *testing.T) {
	var dials atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		dials.Add(1)
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	rec := &recorder{}
	ch := New("operator", wsURL(srv), fastPolicy(5), WithLogger(logging.Discard()))
	ch.OnStateChange(rec.state)
	ch.Connect()

	require.Eventually(t, func() bool { return ch.State() == StateFailed }, 2*time.Second, 5*time.Millisecond)

	// The initial dial plus five reconnects.
	assert.Equal(t, int32(6), dials.Load())
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(6), dials.Load(), "no dials after giving up")

	_, states := rec.snapshot()
	require.NotEmpty(t, states)
	assert.Equal(t, StateFailed, states[len(states)-1])
}

func TestChannel_DisconnectDoesNotReconnect(t *testing.T) {
	srv, opened := newWSServer(t, func(conn *websocket.Conn, _ *http.Request) {
		holdOpen(conn)
	})

	ch := New("operator", wsURL(srv), fastPolicy(5), WithLogger(logging.Discard()))
	ch.Connect()
	require.Eventually(t, func() bool { return ch.State() == StateConnected }, 2*time.Second, 5*time.Millisecond)

	ch.Disconnect()
	time.Sleep(100 * time.Millisecond)

	assert.Equal(t, StateDisconnected, ch.State())
	assert.Equal(t, int32(1), opened.Load())
	assert.ErrorIs(t, ch.Send(map[string]string{"type": "ping"}), ErrChannelClosed)
}

func TestChannel_ReconnectsAfterServerClose(t *testing.T) {
	srv, opened := newWSServer(t, func(conn *websocket.Conn, _ *http.Request) {
		_ = conn.Close()
	})

	ch := New("operator", wsURL(srv), fastPolicy(2), WithLogger(logging.Discard()))
	ch.Connect()
	defer ch.Disconnect()

	// Each successful open resets the attempt counter, so the channel keeps
	// reconnecting past MaxAttempts.
	require.Eventually(t, func() bool { return opened.Load() >= 4 }, 2*time.Second, 5*time.Millisecond)
	assert.NotEqual(t, StateFailed, ch.State())
}

func TestChannel_SendsBearerToken(t *testing.T) {
	headers := make(chan string, 1)
	srv, _ := newWSServer(t, func(conn *websocket.Conn, r *http.Request) {
		headers <- r.Header.Get("Authorization")
		holdOpen(conn)
	})

	ch := New("operator", wsURL(srv), fastPolicy(1),
		WithLogger(logging.Discard()),
		WithTokens(staticToken("tok-123")))
	ch.Connect()
	defer ch.Disconnect()

	select {
	case h := <-headers:
		assert.Equal(t, "Bearer tok-123", h)
	case <-time.After(2 * time.Second):
		t.Fatal("no upgrade request")
	}
}

type staticToken string

func (s staticToken) Token() string { return string(s) }

func TestBackoff(t *testing.T) {
	linear := LinearBackoff(3 * time.Second)
	assert.Equal(t, 3*time.Second, linear(1))
	assert.Equal(t, 9*time.Second, linear(3))

	exp := ExponentialBackoff(time.Second, 30*time.Second)
	assert.Equal(t, time.Second, exp(1))
	assert.Equal(t, 2*time.Second, exp(2))
	assert.Equal(t, 16*time.Second, exp(5))
	assert.Equal(t, 30*time.Second, exp(6))
	assert.Equal(t, 30*time.Second, exp(40))
}

func TestEndpointChannels(t *testing.T) {
	cfg := config.Default()
	cfg.APIOrigin = "https://ops.example.com"

	op := OperatorChannel(cfg)
	assert.Equal(t, "wss://ops.example.com/ws/operator/recommendations", op.URL())
	assert.Equal(t, 5, op.policy.MaxAttempts)
	assert.Equal(t, 6*time.Second, op.policy.delay(2))

	sub := SubscriptionChannel(cfg, "user-1")
	assert.Equal(t, "wss://ops.example.com/ws/subscriptions/user-1", sub.URL())
	assert.Equal(t, 4*time.Second, sub.policy.delay(3))

	fb := FeedbackChannel(cfg, "user-1")
	assert.Equal(t, "wss://ops.example.com/ws/user/user-1/recommendations/feedback", fb.URL())
}

func TestDecode(t *testing.T) {
	ev, err := Decode(Message{
		Type: models.EventSubscriptionCancelled,
		Raw:  []byte(`{"type":"subscription_cancelled","user_id":"u1","merchant_name":"Netflix","cancelled":true}`),
	})
	require.NoError(t, err)
	sub, ok := ev.(models.SubscriptionCancelled)
	require.True(t, ok)
	assert.Equal(t, "Netflix", sub.MerchantName)

	_, err = Decode(Message{Type: models.EventRecommendationStatusChanged, Raw: []byte(`{"type":"recommendation_status_changed"}`)})
	assert.Error(t, err)

	_, err = Decode(Message{Type: "nope", Raw: []byte(`{}`)})
	assert.Error(t, err)
}

func TestDecode_NaiveTimestamps(t *testing.T) {
	ev, err := Decode(Message{
		Type: models.EventRecommendationStatusChanged,
		Raw: []byte(`{"type":"recommendation_status_changed","recommendation_id":"rec-1","action":"approved",
			"patch":{"approved":true,"approved_at":"2024-05-01T12:00:00.123456"},
			"timestamp":"2024-05-01T12:00:00.123456"}`),
	})
	require.NoError(t, err)
	changed, ok := ev.(models.RecommendationStatusChanged)
	require.True(t, ok)
	assert.Equal(t, "rec-1", changed.RecommendationID)
	assert.Equal(t, models.StatusActionApproved, changed.Action)
	require.NotNil(t, changed.Patch.ApprovedAt)
	assert.True(t, time.Date(2024, 5, 1, 12, 0, 0, 123456000, time.UTC).Equal(changed.Timestamp.Time))
}
