package stubserver

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/spendsense/operator-console/internal/models"
	"github.com/spendsense/operator-console/internal/signals"
)

// Store is the in-memory state behind the stub API.
type Store struct {
	mu       sync.RWMutex
	users    []models.User
	recs     []*models.Recommendation
	signals  map[string]map[int]*signals.Map
	traces   map[string][]models.DecisionTrace
	consent  map[string]*models.Consent
	feedback []models.Feedback
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		signals: make(map[string]map[int]*signals.Map),
		traces:  make(map[string][]models.DecisionTrace),
		consent: make(map[string]*models.Consent),
	}
}

// AddUser registers a user.
func (s *Store) AddUser(u models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users = append(s.users, u)
}

// AddRecommendation appends a recommendation to the queue.
func (s *Store) AddRecommendation(rec models.Recommendation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := rec
	s.recs = append(s.recs, &r)
}

// SetSignals stores a user's snapshot for a window.
func (s *Store) SetSignals(userID string, windowDays int, m *signals.Map) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.signals[userID] == nil {
		s.signals[userID] = make(map[int]*signals.Map)
	}
	s.signals[userID][windowDays] = m
}

// AddTrace appends a decision trace for a user.
func (s *Store) AddTrace(userID string, tr models.DecisionTrace) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if tr.ID == "" {
		tr.ID = uuid.NewString()
	}
	s.traces[userID] = append(s.traces[userID], tr)
}

// Recommendation returns a copy of one recommendation.
func (s *Store) Recommendation(id string) (models.Recommendation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.recs {
		if r.ID == id {
			return *r, true
		}
	}
	return models.Recommendation{}, false
}

// Queue filters recommendations like the real endpoint: status, optional
// user and limit. Total counts every match before the limit.
func (s *Store) Queue(f models.QueueFilter) models.Queue {
	s.mu.RLock()
	defer s.mu.RUnlock()

	status := f.Status
	if status == "" {
		status = models.StatusPending
	}

	out := models.Queue{Recommendations: []models.Recommendation{}, Status: status}
	for _, r := range s.recs {
		if !r.MatchesFilter(status) {
			continue
		}
		if f.UserID != "" && r.UserID != f.UserID {
			continue
		}
		out.Total++
		if f.Limit > 0 && len(out.Recommendations) >= f.Limit {
			continue
		}
		out.Recommendations = append(out.Recommendations, *r)
	}
	return out
}

// Review applies an action and returns the updated recommendation and the
// patch describing the change.
func (s *Store) Review(id string, action models.Action, actor string, at time.Time) (models.Recommendation, models.RecommendationPatch, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range s.recs {
		if r.ID != id {
			continue
		}
		yes, no := true, false
		ts := models.AtPtr(at)
		patch := models.RecommendationPatch{Approved: &no, Flagged: &no, Rejected: &no}
		switch action {
		case models.ActionApprove:
			patch.Approved, patch.ApprovedAt = &yes, ts
		case models.ActionFlag:
			patch.Flagged, patch.FlaggedAt = &yes, ts
		case models.ActionReject:
			patch.Rejected, patch.RejectedAt, patch.RejectedBy = &yes, ts, actor
		}
		r.ApplyPatch(patch, at)
		return *r, patch, true
	}
	return models.Recommendation{}, models.RecommendationPatch{}, false
}

// Users returns a page of users.
func (s *Store) Users(skip, limit int, includePersona bool) models.UserList {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := models.UserList{Users: []models.User{}, Total: len(s.users), Skip: skip, Limit: limit}
	for i := skip; i < len(s.users); i++ {
		if limit > 0 && len(list.Users) >= limit {
			break
		}
		u := s.users[i]
		if !includePersona {
			u.Persona = nil
		}
		list.Users = append(list.Users, u)
	}
	return list
}

// User looks up one user.
func (s *Store) User(id string) (models.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.UserID == id {
			return u, true
		}
	}
	return models.User{}, false
}

// Signals returns a user's snapshot for a window.
func (s *Store) Signals(userID string, windowDays int) (*signals.Map, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.signals[userID][windowDays]
	return m, ok
}

// Traces returns a user's traces, newest first.
func (s *Store) Traces(userID string) []models.DecisionTrace {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := append([]models.DecisionTrace{}, s.traces[userID]...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt.Time) })
	return out
}

// Stats aggregates the queue.
func (s *Store) Stats() models.Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := models.Stats{
		TotalUsers:           len(s.users),
		TotalRecommendations: len(s.recs),
		PersonaDistribution:  make(map[string]int),
	}
	for _, r := range s.recs {
		switch r.Status() {
		case models.StatusApproved:
			st.Approved++
		case models.StatusFlagged:
			st.Flagged++
		case models.StatusRejected:
			st.Rejected++
		default:
			st.Pending++
		}
	}
	for _, u := range s.users {
		if u.Persona != nil {
			st.PersonaDistribution[u.Persona.ID]++
		}
	}
	return st
}

// Consent returns a user's consent state.
func (s *Store) Consent(userID string) models.Consent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if c, ok := s.consent[userID]; ok {
		return *c
	}
	return models.Consent{UserID: userID}
}

// SetConsent grants or revokes consent.
func (s *Store) SetConsent(userID string, granted bool, at time.Time) models.Consent {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.consent[userID]
	if !ok {
		c = &models.Consent{UserID: userID}
		s.consent[userID] = c
	}
	c.Granted = granted
	if granted {
		c.GrantedAt, c.RevokedAt = models.AtPtr(at), nil
	} else {
		c.RevokedAt = models.AtPtr(at)
	}
	return *c
}

// AddFeedback records insight feedback.
func (s *Store) AddFeedback(fb models.Feedback) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.feedback = append(s.feedback, fb)
}

// Feedback returns all recorded insight feedback.
func (s *Store) Feedback() []models.Feedback {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Feedback{}, s.feedback...)
}
