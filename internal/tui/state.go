package tui

import (
	"sort"
	"sync"
	"time"

	"github.com/spendsense/operator-console/internal/realtime"
)

// AppState holds the state shared with goroutines outside the bubbletea loop.
type AppState struct {
	mu sync.RWMutex

	// Connection info
	APIOrigin string
	Channels  map[string]realtime.State
	LiveSince time.Time

	// Operator identity from the token
	Subject  string
	TokenExp time.Time

	// UI state
	Width  int
	Height int
}

// NewAppState creates a new application state
func NewAppState(apiOrigin string) *AppState {
	return &AppState{
		APIOrigin: apiOrigin,
		Channels:  make(map[string]realtime.State),
		Width:     100,
		Height:    30,
	}
}

// SetChannelState records a channel transition.
func (s *AppState) SetChannelState(name string, st realtime.State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st == realtime.StateConnected && s.LiveSince.IsZero() {
		s.LiveSince = time.Now()
	}
	s.Channels[name] = st
}

// RemoveChannel forgets a channel that was closed on purpose.
func (s *AppState) RemoveChannel(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.Channels, name)
}

// FailedChannels lists the channels that gave up reconnecting, sorted.
func (s *AppState) FailedChannels() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []string
	for name, st := range s.Channels {
		if st == realtime.StateFailed {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// Live reports whether every known channel is connected.
func (s *AppState) Live() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.Channels) == 0 {
		return false
	}
	for _, st := range s.Channels {
		if st != realtime.StateConnected {
			return false
		}
	}
	return true
}

// SetOperator records the token subject and expiry.
func (s *AppState) SetOperator(subject string, exp time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Subject = subject
	s.TokenExp = exp
}

// GetOperator returns the token subject and expiry.
func (s *AppState) GetOperator() (string, time.Time) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Subject, s.TokenExp
}

// SetSize updates the terminal size
func (s *AppState) SetSize(width, height int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Width = width
	s.Height = height
}

// GetSize returns the terminal size
func (s *AppState) GetSize() (int, int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Width, s.Height
}
