package tui

import (
	"time"

	"github.com/spendsense/operator-console/internal/cache"
	"github.com/spendsense/operator-console/internal/models"
	"github.com/spendsense/operator-console/internal/realtime"
	"github.com/spendsense/operator-console/internal/review"
)

// TabIndex represents the currently active tab
type TabIndex int

const (
	TabQueue TabIndex = iota
	TabSignals
	TabTraces
	TabOverview
)

const TabCount = 4

// String returns the tab name
func (t TabIndex) String() string {
	switch t {
	case TabQueue:
		return "Queue"
	case TabSignals:
		return "Signals"
	case TabTraces:
		return "Traces"
	case TabOverview:
		return "Overview"
	default:
		return "Unknown"
	}
}

// TabNames returns all tab names
func TabNames() []string {
	return []string{"Queue", "Signals", "Traces", "Overview"}
}

// Messages produced by commands and by the realtime goroutines.

// QueueLoadedMsg carries the result of a queue query.
type QueueLoadedMsg struct {
	Filter models.QueueFilter
	Queue  *models.Queue
	Err    error
}

// ActionDoneMsg is sent when an approve/flag/reject call returns.
type ActionDoneMsg struct {
	ID     string
	Action models.Action
	Err    error
}

// SignalsLoadedMsg carries a user's grouped signal snapshot.
type SignalsLoadedMsg struct {
	UserID string
	Window int
	View   *review.SignalView
	Err    error
}

// TracesLoadedMsg carries a user's decision traces.
type TracesLoadedMsg struct {
	UserID string
	Traces *models.DecisionTraces
	Err    error
}

// StatsLoadedMsg carries the overview counters.
type StatsLoadedMsg struct {
	Stats *models.Stats
	Err   error
}

// UsersLoadedMsg carries the user list used by the search control.
type UsersLoadedMsg struct {
	Users *models.UserList
	Err   error
}

// RealtimeEventMsg is a decoded push event from one channel.
type RealtimeEventMsg struct {
	Channel string
	Event   realtime.Event
}

// ChannelStateMsg reports a realtime channel state transition.
type ChannelStateMsg struct {
	Channel string
	State   realtime.State
}

// CacheChangedMsg is sent when a cached query is invalidated or patched.
type CacheChangedMsg struct {
	Key cache.Key
}

// TokenChangedMsg is sent when the token file is rewritten.
type TokenChangedMsg struct{}

// TickMsg is sent periodically for updates
type TickMsg struct {
	Time time.Time
}
