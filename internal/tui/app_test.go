package tui

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spendsense/operator-console/internal/api"
	"github.com/spendsense/operator-console/internal/cache"
	"github.com/spendsense/operator-console/internal/config"
	"github.com/spendsense/operator-console/internal/logging"
	"github.com/spendsense/operator-console/internal/models"
	"github.com/spendsense/operator-console/internal/realtime"
	"github.com/spendsense/operator-console/internal/review"
	"github.com/spendsense/operator-console/internal/stubserver"
)

type testEnv struct {
	stub     *stubserver.Server
	app      *App
	focused  []string
	reconnOK int
}

func newTestEnv(t *testing.T) *testEnv {
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
	svc := review.NewService(client, cache.New(time.Minute), logging.Discard())

	env := &testEnv{stub: stub}
	env.app = NewApp(Options{
		Service:       svc,
		State:         NewAppState(ts.URL),
		Logger:        logging.Discard(),
		DefaultStatus: models.StatusPending,
		QueueLimit:    100,
		OnUserFocus:   func(id string) { env.focused = append(env.focused, id) },
		OnReconnect:   func() { env.reconnOK++ },
	})
	env.app.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	return env
}

// run executes cmd and feeds the data messages it produces back into the
// app until nothing is left. Timer driven messages are dropped.
func (e *testEnv) run(cmd tea.Cmd) {
	if cmd == nil {
		return
	}
	switch msg := cmd().(type) {
	case tea.BatchMsg:
		for _, c := range msg {
			e.run(c)
		}
	case QueueLoadedMsg, UsersLoadedMsg, StatsLoadedMsg, SignalsLoadedMsg, TracesLoadedMsg, ActionDoneMsg:
		_, next := e.app.Update(msg)
		e.run(next)
	}
}

func (e *testEnv) press(keys string) tea.Cmd {
	var msg tea.KeyMsg
	switch keys {
	case "enter":
		msg = tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		msg = tea.KeyMsg{Type: tea.KeyEsc}
	default:
		msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(keys)}
	}
	_, cmd := e.app.Update(msg)
	return cmd
}

func (e *testEnv) queueIDs() []string {
	var out []string
	if e.app.queue == nil {
		return out
	}
	for _, rec := range e.app.queue.Recommendations {
		out = append(out, rec.ID)
	}
	return out
}

func (e *testEnv) countGET(path string) int {
	n := 0
	for _, r := range e.stub.Requests() {
		if r.Method == http.MethodGet && r.Path == path {
			n++
		}
	}
	return n
}

func TestInitLoadsQueueUsersAndStats(t *testing.T) {
	env := newTestEnv(t)
	require.NotNil(t, env.app.Init())

	env.run(env.app.loadQueue())
	env.run(env.app.loadUsers())
	env.run(env.app.loadStats())

	assert.Equal(t, []string{"rec-1", "rec-2", "rec-3", "rec-4"}, env.queueIDs())
	assert.False(t, env.app.queueLoading)
	assert.Len(t, env.app.users, 3)
	require.NotNil(t, env.app.stats)
	assert.Equal(t, 4, env.app.stats.Pending)

	view := env.app.View()
	assert.Contains(t, view, "SpendSense Operator")
	assert.Contains(t, view, "Audit your recurring subscriptions")
}

func TestApproveRemovesRowFromPendingQueue(t *testing.T) {
	env := newTestEnv(t)
	env.run(env.app.loadQueue())

	cmd := env.press("a")
	require.NotNil(t, cmd)
	assert.True(t, env.app.pending["rec-1"])
	assert.Nil(t, env.press("a"), "second action on the same row is ignored")
	assert.Nil(t, env.press("f"))

	env.run(cmd)

	assert.Empty(t, env.app.pending)
	assert.Equal(t, []string{"rec-2", "rec-3", "rec-4"}, env.queueIDs())
	assert.Contains(t, env.app.toast, "Approved rec-1")
	assert.False(t, env.app.toastErr)

	rec, ok := env.stub.Store().Recommendation("rec-1")
	require.True(t, ok)
	assert.Equal(t, models.StatusApproved, rec.Status())
}

func TestFailedActionKeepsRowAndShowsError(t *testing.T) {
	env := newTestEnv(t)
	env.run(env.app.loadQueue())
	env.stub.FailNext(http.MethodPut, "/api/operator/recommendations/rec-1/flag", http.StatusInternalServerError)

	env.run(env.press("f"))

	assert.True(t, env.app.toastErr)
	assert.Contains(t, env.app.toast, "flag rec-1 failed")
	assert.Equal(t, []string{"rec-1", "rec-2", "rec-3", "rec-4"}, env.queueIDs())
	assert.Empty(t, env.app.pending, "row is actionable again")
	assert.NotNil(t, env.press("f"))
}

func TestRejectAsksForConfirmation(t *testing.T) {
	env := newTestEnv(t)
	env.run(env.app.loadQueue())

	assert.Nil(t, env.press("r"))
	assert.True(t, env.app.showModal)
	assert.Contains(t, env.app.View(), "Reject Recommendation")

	env.press("n")
	assert.False(t, env.app.showModal)
	assert.Empty(t, env.app.pending)
	rec, _ := env.stub.Store().Recommendation("rec-1")
	assert.False(t, rec.Rejected)

	env.press("r")
	cmd := env.press("y")
	require.NotNil(t, cmd)
	env.run(cmd)

	rec, _ = env.stub.Store().Recommendation("rec-1")
	assert.True(t, rec.Rejected)
	assert.NotContains(t, env.queueIDs(), "rec-1")
}

func TestStatusFilterCycles(t *testing.T) {
	env := newTestEnv(t)
	env.run(env.app.loadQueue())

	env.run(env.press("s"))
	assert.Equal(t, models.StatusApproved, env.app.filter.Status)
	assert.Empty(t, env.queueIDs())
	assert.Contains(t, env.app.View(), "No approved recommendations.")

	env.run(env.press("S"))
	env.run(env.press("S"))
	assert.Equal(t, models.StatusAll, env.app.filter.Status)
	assert.Len(t, env.queueIDs(), 4)
}

func TestStaleQueueResultIsIgnored(t *testing.T) {
	env := newTestEnv(t)
	stale := env.app.loadQueue()
	env.app.filter.Status = models.StatusFlagged

	env.run(stale)
	assert.Nil(t, env.app.queue)
}

func TestSearchFocusesUser(t *testing.T) {
	env := newTestEnv(t)
	env.run(env.app.loadUsers())
	env.run(env.app.loadQueue())

	env.press("/")
	require.True(t, env.app.searching)
	env.press("grace")
	require.Len(t, env.app.matches(), 1)
	assert.Contains(t, env.app.View(), "Grace Hopper")

	env.run(env.press("enter"))

	assert.False(t, env.app.searching)
	assert.Equal(t, "user-2", env.app.focusUser)
	assert.Equal(t, "user-2", env.app.filter.UserID)
	assert.Equal(t, []string{"user-2"}, env.focused)
	assert.Equal(t, []string{"rec-2"}, env.queueIDs())

	env.run(env.press("u"))
	assert.Empty(t, env.app.filter.UserID)
	assert.Len(t, env.queueIDs(), 4)
}

func TestSearchWithoutMatchesShowsError(t *testing.T) {
	env := newTestEnv(t)
	env.run(env.app.loadUsers())

	env.press("/")
	env.press("nobody")
	assert.Nil(t, env.press("enter"))
	assert.True(t, env.app.toastErr)
	assert.Empty(t, env.app.focusUser)
}

func TestOpenShowsSignalsAndTogglesWindow(t *testing.T) {
	env := newTestEnv(t)
	env.run(env.app.loadQueue())

	env.run(env.press("enter"))
	assert.Equal(t, TabSignals, env.app.activeTab)
	assert.Equal(t, "user-1", env.app.focusUser)
	require.NotNil(t, env.app.signals)
	assert.Equal(t, 30, env.app.signals.Snapshot.WindowDays)
	assert.Contains(t, env.app.viewport.View(), "30-day window")

	env.run(env.press("w"))
	assert.Equal(t, 180, env.app.window)
	require.NotNil(t, env.app.signals)
	assert.Equal(t, 180, env.app.signals.Snapshot.WindowDays)
	assert.Contains(t, env.app.viewport.View(), "180-day window")

	env.run(env.press("3"))
	assert.Equal(t, TabTraces, env.app.activeTab)
	require.NotNil(t, env.app.traces)
	assert.Len(t, env.app.traces.Traces, 1)
}

func TestSignalsErrorIsShownInline(t *testing.T) {
	env := newTestEnv(t)
	env.run(env.app.loadQueue())
	env.app.cursor = 1

	env.run(env.press("enter"))
	assert.Equal(t, "user-2", env.app.focusUser)
	assert.Error(t, env.app.signalsErr)
	assert.Contains(t, env.app.viewport.View(), "Failed to load signals")
}

func TestFailedChannelShowsBanner(t *testing.T) {
	env := newTestEnv(t)
	env.run(env.app.loadQueue())

	env.app.Update(ChannelStateMsg{Channel: realtime.ChannelOperator, State: realtime.StateConnected})
	assert.NotContains(t, env.app.View(), "Live updates stopped")
	env.press("c")
	assert.Equal(t, 0, env.reconnOK, "nothing to reconnect")

	env.app.Update(ChannelStateMsg{Channel: realtime.ChannelOperator, State: realtime.StateFailed})
	assert.Contains(t, env.app.View(), "Live updates stopped (operator)")

	env.press("c")
	assert.Equal(t, 1, env.reconnOK)
}

func TestClosedChannelIsForgotten(t *testing.T) {
	env := newTestEnv(t)

	env.app.Update(ChannelStateMsg{Channel: realtime.ChannelOperator, State: realtime.StateConnected})
	env.app.Update(ChannelStateMsg{Channel: realtime.ChannelSubscriptions, State: realtime.StateConnecting})
	assert.False(t, env.app.state.Live())

	env.app.Update(ChannelStateMsg{Channel: realtime.ChannelSubscriptions, State: realtime.StateDisconnected})
	assert.True(t, env.app.state.Live())
	assert.NotContains(t, env.app.state.Channels, realtime.ChannelSubscriptions)
}

func TestTokenChangeDropsCachedData(t *testing.T) {
	env := newTestEnv(t)
	env.run(env.app.loadQueue())
	before := env.countGET("/api/operator/recommendations")

	_, cmd := env.app.Update(TokenChangedMsg{})
	assert.Empty(t, env.app.svc.Cache().Keys(review.FamilyQueue))

	env.run(cmd)
	assert.Equal(t, before+1, env.countGET("/api/operator/recommendations"))
	assert.Len(t, env.queueIDs(), 4)
}

func TestStatusChangeEventPatchesQueue(t *testing.T) {
	env := newTestEnv(t)
	env.run(env.app.loadQueue())
	before := env.countGET("/api/operator/recommendations")

	env.app.Update(RealtimeEventMsg{
		Channel: realtime.ChannelOperator,
		Event: models.RecommendationStatusChanged{
			RecommendationID: "rec-2",
			UserID:           "user-2",
			Action:           models.StatusActionApproved,
		},
	})
	env.run(env.app.reloadFamily(review.FamilyQueue))

	assert.Equal(t, []string{"rec-1", "rec-3", "rec-4"}, env.queueIDs())
	assert.Equal(t, 3, env.app.queue.Total)
	assert.Equal(t, before, env.countGET("/api/operator/recommendations"), "served from the patched cache")
}

func TestFeedbackEventShowsToast(t *testing.T) {
	env := newTestEnv(t)
	env.app.Update(RealtimeEventMsg{
		Channel: realtime.ChannelFeedback,
		Event: models.RecommendationFeedback{
			RecommendationID: "rec-1",
			UserID:           "user-1",
			Verdict:          models.VerdictAgree,
		},
	})
	assert.Contains(t, env.app.toast, "user-1 answered agree on rec-1")
}

func TestErrorText(t *testing.T) {
	consent := &api.APIError{StatusCode: http.StatusForbidden, ConsentGated: true, Message: "no consent"}
	assert.Contains(t, errorText(consent), "Consent required")

	unauth := &api.APIError{StatusCode: http.StatusUnauthorized, Message: "Not authenticated"}
	assert.Contains(t, errorText(unauth), "spendsense login")

	other := &api.APIError{Method: "GET", Path: "/x", StatusCode: http.StatusTeapot, Message: "short and stout"}
	assert.Equal(t, other.Error(), errorText(other))
}

func TestHelpOverlay(t *testing.T) {
	env := newTestEnv(t)
	env.press("?")
	assert.True(t, env.app.showHelp)
	assert.Contains(t, env.app.View(), "Keyboard Shortcuts")
	env.press("esc")
	assert.False(t, env.app.showHelp)
}

func TestQuit(t *testing.T) {
	env := newTestEnv(t)
	cmd := env.press("q")
	require.NotNil(t, cmd)
	assert.True(t, env.app.quitting)
	assert.Equal(t, "", env.app.View())
}
