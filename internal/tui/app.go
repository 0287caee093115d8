package tui

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"

	"github.com/spendsense/operator-console/internal/api"
	"github.com/spendsense/operator-console/internal/models"
	"github.com/spendsense/operator-console/internal/realtime"
	"github.com/spendsense/operator-console/internal/review"
)

// userPageSize bounds the user list loaded for the search control.
const userPageSize = 500

// Options wires the dashboard to the review workflow and the live channels.
type Options struct {
	Service       *review.Service
	State         *AppState
	Logger        logrus.FieldLogger
	DefaultStatus models.ReviewStatus
	QueueLimit    int

	// OnUserFocus is called when the operator focuses a different user, so
	// the per-user realtime channels can follow.
	OnUserFocus func(userID string)
	// OnReconnect restarts channels that gave up reconnecting.
	OnReconnect func()
}

// App is the main TUI application model
type App struct {
	svc    *review.Service
	state  *AppState
	theme  *Theme
	keys   KeyMap
	logger logrus.FieldLogger

	onUserFocus func(string)
	onReconnect func()

	activeTab TabIndex
	ready     bool
	quitting  bool
	showHelp  bool

	spinner  spinner.Model
	help     help.Model
	viewport viewport.Model

	// User search
	search    textinput.Model
	searching bool
	matchIdx  int
	users     []models.User
	usersErr  error

	// Queue tab
	filter       models.QueueFilter
	queue        *models.Queue
	queueErr     error
	queueLoading bool
	cursor       int
	pending      map[string]bool

	// Signals tab
	focusUser      string
	window         int
	signals        *review.SignalView
	signalsErr     error
	signalsLoading bool

	// Traces tab
	traces        *models.DecisionTraces
	tracesErr     error
	tracesLoading bool

	// Overview tab
	stats        *models.Stats
	statsErr     error
	statsLoading bool

	// Modal
	showModal    bool
	modalTitle   string
	modalMessage string
	modalCmd     tea.Cmd
	modalID      string

	// Toast
	toast       string
	toastErr    bool
	toastExpiry time.Time
}

// NewApp creates a new TUI application
func NewApp(opts Options) *App {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = DefaultTheme.Spinner

	search := textinput.New()
	search.Placeholder = "user name or id..."
	search.CharLimit = 64
	search.Width = 30
	search.Prompt = "/ "

	status := opts.DefaultStatus
	if _, ok := models.ParseReviewStatus(string(status)); !ok {
		status = models.StatusPending
	}
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	state := opts.State
	if state == nil {
		state = NewAppState("")
	}

	return &App{
		svc:         opts.Service,
		state:       state,
		theme:       DefaultTheme,
		keys:        DefaultKeyMap(),
		logger:      logger.WithField("component", "tui"),
		onUserFocus: opts.OnUserFocus,
		onReconnect: opts.OnReconnect,
		activeTab:   TabQueue,
		spinner:     s,
		help:        help.New(),
		viewport:    viewport.New(80, 20),
		search:      search,
		filter:      models.QueueFilter{Status: status, Limit: opts.QueueLimit},
		pending:     make(map[string]bool),
		window:      review.DefaultWindow,
	}
}

func (a *App) Init() tea.Cmd {
	return tea.Batch(a.spinner.Tick, a.tick(), a.loadQueue(), a.loadUsers(), a.loadStats())
}

func (a *App) tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return TickMsg{Time: t}
	})
}

// Commands. Each runs on its own goroutine and reports back as a message.
// They are never cancelled; a late result still lands in the cache.

func (a *App) loadQueue() tea.Cmd {
	filter := a.filter
	a.queueLoading = true
	return func() tea.Msg {
		q, err := a.svc.Queue(context.Background(), filter)
		return QueueLoadedMsg{Filter: filter, Queue: q, Err: err}
	}
}

func (a *App) loadUsers() tea.Cmd {
	return func() tea.Msg {
		list, err := a.svc.Users(context.Background(), 0, userPageSize)
		return UsersLoadedMsg{Users: list, Err: err}
	}
}

func (a *App) loadStats() tea.Cmd {
	a.statsLoading = true
	return func() tea.Msg {
		st, err := a.svc.Stats(context.Background())
		return StatsLoadedMsg{Stats: st, Err: err}
	}
}

func (a *App) loadSignals() tea.Cmd {
	if a.focusUser == "" {
		return nil
	}
	user, window := a.focusUser, a.window
	a.signalsLoading = true
	return func() tea.Msg {
		view, err := a.svc.Signals(context.Background(), user, window)
		return SignalsLoadedMsg{UserID: user, Window: window, View: view, Err: err}
	}
}

func (a *App) loadTraces() tea.Cmd {
	if a.focusUser == "" {
		return nil
	}
	user := a.focusUser
	a.tracesLoading = true
	return func() tea.Msg {
		tr, err := a.svc.Traces(context.Background(), user)
		return TracesLoadedMsg{UserID: user, Traces: tr, Err: err}
	}
}

func (a *App) act(id string, action models.Action) tea.Cmd {
	return func() tea.Msg {
		err := a.svc.Act(context.Background(), id, action)
		return ActionDoneMsg{ID: id, Action: action, Err: err}
	}
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return a.handleKey(msg)

	case tea.WindowSizeMsg:
		a.state.SetSize(msg.Width, msg.Height)
		a.viewport.Width = msg.Width - 4
		a.viewport.Height = msg.Height - 10
		a.help.Width = msg.Width
		a.ready = true
		return a, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd

	case TickMsg:
		return a, a.tick()

	case QueueLoadedMsg:
		if msg.Filter != a.filter {
			// Result for a filter no longer on screen; it is cached anyway.
			return a, nil
		}
		a.queueLoading = false
		a.queueErr = msg.Err
		if msg.Err == nil {
			a.queue = msg.Queue
		}
		a.clampCursor()

	case UsersLoadedMsg:
		a.usersErr = msg.Err
		if msg.Err == nil && msg.Users != nil {
			a.users = msg.Users.Users
		}

	case StatsLoadedMsg:
		a.statsLoading = false
		a.statsErr = msg.Err
		if msg.Err == nil {
			a.stats = msg.Stats
		}

	case SignalsLoadedMsg:
		if msg.UserID != a.focusUser || msg.Window != a.window {
			return a, nil
		}
		a.signalsLoading = false
		a.signalsErr = msg.Err
		if msg.Err == nil {
			a.signals = msg.View
		}
		a.refreshViewport()

	case TracesLoadedMsg:
		if msg.UserID != a.focusUser {
			return a, nil
		}
		a.tracesLoading = false
		a.tracesErr = msg.Err
		if msg.Err == nil {
			a.traces = msg.Traces
		}
		a.refreshViewport()

	case ActionDoneMsg:
		delete(a.pending, msg.ID)
		if msg.Err != nil {
			a.setToast(fmt.Sprintf("✗ %s %s failed: %s", msg.Action, msg.ID, errorText(msg.Err)), true)
			return a, nil
		}
		a.setToast(fmt.Sprintf("✓ %s %s", actionVerb(msg.Action), msg.ID), false)
		return a, tea.Batch(a.loadQueue(), a.loadStats())

	case RealtimeEventMsg:
		return a, a.handleEvent(msg)

	case ChannelStateMsg:
		if msg.State == realtime.StateDisconnected {
			// Only an explicit Disconnect reports this state.
			a.state.RemoveChannel(msg.Channel)
			return a, nil
		}
		a.state.SetChannelState(msg.Channel, msg.State)
		if msg.State == realtime.StateFailed {
			a.logger.WithField("channel", msg.Channel).Warn("live updates stopped")
		}

	case CacheChangedMsg:
		return a, a.reloadFamily(msg.Key.Family())

	case TokenChangedMsg:
		// Cached results belong to the previous token.
		a.svc.Cache().Flush()
		a.setToast("Token reloaded", false)
		return a, tea.Batch(a.loadQueue(), a.loadStats())
	}

	return a, nil
}

// handleEvent applies a push event to the cache. The matching reload is
// driven by the cache change notification.
func (a *App) handleEvent(msg RealtimeEventMsg) tea.Cmd {
	outcome := a.svc.ApplyEvent(msg.Event, a.filter)
	a.logger.WithFields(logrus.Fields{
		"channel": msg.Channel,
		"type":    msg.Event.EventType(),
		"outcome": outcome.String(),
	}).Debug("realtime event applied")

	switch ev := msg.Event.(type) {
	case models.SubscriptionCancelled:
		a.setToast(fmt.Sprintf("%s cancelled %s", ev.UserID, ev.MerchantName), false)
	case models.RecommendationFeedback:
		a.setToast(fmt.Sprintf("%s answered %s on %s", ev.UserID, ev.Verdict, ev.RecommendationID), false)
	}
	return nil
}

func (a *App) reloadFamily(family string) tea.Cmd {
	switch family {
	case review.FamilyQueue:
		return a.loadQueue()
	case review.FamilySignals:
		return a.loadSignals()
	case review.FamilyTraces:
		return a.loadTraces()
	case review.FamilyStats:
		return a.loadStats()
	}
	return nil
}

func (a *App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if a.searching {
		return a.handleSearchKey(msg)
	}

	if a.showHelp {
		if key.Matches(msg, a.keys.Help, a.keys.Cancel, a.keys.Quit) {
			a.showHelp = false
		}
		return a, nil
	}

	if a.showModal {
		switch {
		case key.Matches(msg, a.keys.Confirm):
			a.showModal = false
			cmd := a.modalCmd
			a.modalCmd = nil
			return a, cmd
		case key.Matches(msg, a.keys.Cancel):
			a.showModal = false
			a.modalCmd = nil
			delete(a.pending, a.modalID)
		}
		return a, nil
	}

	switch {
	case key.Matches(msg, a.keys.Quit):
		a.quitting = true
		return a, tea.Quit
	case key.Matches(msg, a.keys.Help):
		a.showHelp = true
		return a, nil
	case key.Matches(msg, a.keys.Queue):
		return a, a.switchTab(TabQueue)
	case key.Matches(msg, a.keys.Signals):
		return a, a.switchTab(TabSignals)
	case key.Matches(msg, a.keys.Traces):
		return a, a.switchTab(TabTraces)
	case key.Matches(msg, a.keys.Stats):
		return a, a.switchTab(TabOverview)
	case key.Matches(msg, a.keys.NextTab):
		return a, a.switchTab((a.activeTab + 1) % TabCount)
	case key.Matches(msg, a.keys.PrevTab):
		return a, a.switchTab((a.activeTab + TabCount - 1) % TabCount)
	case key.Matches(msg, a.keys.Search):
		a.searching = true
		a.matchIdx = 0
		a.search.SetValue("")
		a.search.Focus()
		return a, textinput.Blink
	case key.Matches(msg, a.keys.Reconnect):
		if a.onReconnect != nil && len(a.state.FailedChannels()) > 0 {
			a.onReconnect()
			a.setToast("Reconnecting live updates", false)
		}
		return a, nil
	case key.Matches(msg, a.keys.Refresh):
		return a, a.refreshTab()
	}

	switch a.activeTab {
	case TabQueue:
		return a.handleQueueKey(msg)
	case TabSignals:
		if key.Matches(msg, a.keys.Window) {
			a.window = review.NextWindow(a.window)
			a.signals = nil
			return a, a.loadSignals()
		}
		fallthrough
	case TabTraces:
		var cmd tea.Cmd
		a.viewport, cmd = a.viewport.Update(msg)
		return a, cmd
	}
	return a, nil
}

func (a *App) handleQueueKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, a.keys.Up):
		if a.cursor > 0 {
			a.cursor--
		}
	case key.Matches(msg, a.keys.Down):
		if a.queue != nil && a.cursor < len(a.queue.Recommendations)-1 {
			a.cursor++
		}
	case key.Matches(msg, a.keys.NextStatus):
		return a, a.cycleStatus(1)
	case key.Matches(msg, a.keys.PrevStatus):
		return a, a.cycleStatus(-1)
	case key.Matches(msg, a.keys.ClearUser):
		if a.filter.UserID != "" {
			a.filter.UserID = ""
			a.cursor = 0
			return a, a.loadQueue()
		}
	case key.Matches(msg, a.keys.Open):
		if rec := a.selected(); rec != nil {
			a.focus(rec.UserID)
			return a, a.switchTab(TabSignals)
		}
	case key.Matches(msg, a.keys.Approve):
		return a, a.startAction(models.ActionApprove)
	case key.Matches(msg, a.keys.Flag):
		return a, a.startAction(models.ActionFlag)
	case key.Matches(msg, a.keys.Reject):
		if rec := a.selected(); a.canAct(rec) {
			a.showModal = true
			a.modalTitle = "Reject Recommendation"
			a.modalMessage = fmt.Sprintf("Reject %q for %s?", rec.Title, rec.UserID)
			a.modalCmd = a.startAction(models.ActionReject)
			a.modalID = rec.ID
		}
	}
	return a, nil
}

// canAct reports whether the action keys are enabled for rec: it is not
// terminal and no action for it is in flight.
func (a *App) canAct(rec *models.Recommendation) bool {
	return rec != nil && !a.pending[rec.ID] && a.svc.CanAct(rec)
}

// startAction fires an action for the selected row when it is allowed.
func (a *App) startAction(action models.Action) tea.Cmd {
	rec := a.selected()
	if !a.canAct(rec) {
		return nil
	}
	a.pending[rec.ID] = true
	return a.act(rec.ID, action)
}

func (a *App) handleSearchKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		a.searching = false
		a.search.Blur()
		return a, nil
	case tea.KeyEnter:
		a.searching = false
		a.search.Blur()
		matches := a.matches()
		if len(matches) == 0 {
			a.setToast("No matching user", true)
			return a, nil
		}
		u := matches[a.matchIdx]
		a.focus(u.UserID)
		a.filter.UserID = u.UserID
		a.cursor = 0
		return a, tea.Batch(a.loadQueue(), a.reloadTab())
	case tea.KeyUp:
		if a.matchIdx > 0 {
			a.matchIdx--
		}
		return a, nil
	case tea.KeyDown:
		if a.matchIdx < len(a.matches())-1 {
			a.matchIdx++
		}
		return a, nil
	}

	var cmd tea.Cmd
	a.search, cmd = a.search.Update(msg)
	a.matchIdx = 0
	return a, cmd
}

// matches filters the user list by the search text, case-insensitively,
// against id and name.
func (a *App) matches() []models.User {
	q := strings.ToLower(strings.TrimSpace(a.search.Value()))
	var out []models.User
	for _, u := range a.users {
		if q == "" ||
			strings.Contains(strings.ToLower(u.UserID), q) ||
			strings.Contains(strings.ToLower(u.Name), q) {
			out = append(out, u)
		}
	}
	return out
}

// focus selects the user shown on the Signals and Traces tabs.
func (a *App) focus(userID string) {
	if userID == a.focusUser {
		return
	}
	a.focusUser = userID
	a.signals, a.signalsErr = nil, nil
	a.traces, a.tracesErr = nil, nil
	if a.onUserFocus != nil {
		a.onUserFocus(userID)
	}
}

func (a *App) switchTab(tab TabIndex) tea.Cmd {
	a.activeTab = tab
	a.viewport.GotoTop()
	return a.reloadTab()
}

// reloadTab loads the active tab's data; cached results come back at once.
func (a *App) reloadTab() tea.Cmd {
	switch a.activeTab {
	case TabQueue:
		return a.loadQueue()
	case TabSignals:
		return a.loadSignals()
	case TabTraces:
		return a.loadTraces()
	case TabOverview:
		return a.loadStats()
	}
	return nil
}

// refreshTab drops the active tab's cached data and reloads it.
func (a *App) refreshTab() tea.Cmd {
	c := a.svc.Cache()
	switch a.activeTab {
	case TabQueue:
		c.Invalidate(review.QueueKey(a.filter))
	case TabSignals:
		if a.focusUser != "" {
			c.Invalidate(review.SignalsKey(a.focusUser, a.window))
		}
	case TabTraces:
		c.InvalidateFamily(review.FamilyTraces)
	case TabOverview:
		c.InvalidateFamily(review.FamilyStats)
		c.InvalidateFamily(review.FamilyUsers)
		return tea.Batch(a.loadStats(), a.loadUsers())
	}
	return a.reloadTab()
}

func (a *App) cycleStatus(step int) tea.Cmd {
	statuses := models.QueueStatuses
	idx := 0
	for i, st := range statuses {
		if st == a.filter.Status {
			idx = i
		}
	}
	idx = (idx + step + len(statuses)) % len(statuses)
	a.filter.Status = statuses[idx]
	a.cursor = 0
	return a.loadQueue()
}

func (a *App) selected() *models.Recommendation {
	if a.queue == nil || a.cursor < 0 || a.cursor >= len(a.queue.Recommendations) {
		return nil
	}
	return &a.queue.Recommendations[a.cursor]
}

func (a *App) clampCursor() {
	n := 0
	if a.queue != nil {
		n = len(a.queue.Recommendations)
	}
	if a.cursor >= n {
		a.cursor = n - 1
	}
	if a.cursor < 0 {
		a.cursor = 0
	}
}

func (a *App) setToast(text string, isErr bool) {
	a.toast = text
	a.toastErr = isErr
	d := 3 * time.Second
	if isErr {
		d = 5 * time.Second
	}
	a.toastExpiry = time.Now().Add(d)
}

func actionVerb(action models.Action) string {
	switch action {
	case models.ActionApprove:
		return "Approved"
	case models.ActionFlag:
		return "Flagged"
	case models.ActionReject:
		return "Rejected"
	default:
		return string(action)
	}
}

// errorText renders an error inline.
func errorText(err error) string {
	switch {
	case api.IsConsentRequired(err):
		return "Consent required: the user has not granted consent."
	case api.StatusCode(err) == http.StatusUnauthorized:
		return "Not authenticated. Run `spendsense login --token <token>`."
	}
	return err.Error()
}
