// Package stubserver is an in-memory SpendSense API with WebSocket channels,
// used by tests and by `spendsense stub-server` for local development.
package stubserver

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/spendsense/operator-console/internal/models"
)

// RequestRecord is one request seen by the server.
type RequestRecord struct {
	Method        string
	Path          string
	Query         string
	Authorization string
	RequestID     string
}

// Server serves the stub API.
type Server struct {
	store  *Store
	hub    *Hub
	router *mux.Router
	logger logrus.FieldLogger
	token  string
	now    func() time.Time

	mu       sync.Mutex
	requests []RequestRecord
	failures map[string]int
}

// Option customizes a Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(s *Server) { s.logger = l }
}

// WithToken makes every request require "Authorization: Bearer <token>".
func WithToken(token string) Option {
	return func(s *Server) { s.token = token }
}

// WithStore replaces the seeded store.
func WithStore(store *Store) Option {
	return func(s *Server) { s.store = store }
}

// New creates a server seeded with the demo fixtures.
func New(opts ...Option) *Server {
	s := &Server{
		logger:   logrus.StandardLogger(),
		now:      func() time.Time { return time.Now().UTC() },
		failures: make(map[string]int),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.store == nil {
		s.store = NewStore()
		Seed(s.store)
	}
	s.hub = NewHub(s.logger)
	s.router = s.routes()
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

// Store returns the backing store.
func (s *Server) Store() *Store { return s.store }

// Hub returns the WebSocket hub.
func (s *Server) Hub() *Hub { return s.hub }

// FailNext makes the next request to method+path answer status.
func (s *Server) FailNext(method, path string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[method+" "+path] = status
}

// Requests returns every request seen so far.
func (s *Server) Requests() []RequestRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]RequestRecord{}, s.requests...)
}

// Close drops every WebSocket connection.
func (s *Server) Close() {
	s.hub.CloseAll()
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.record, s.authenticate, s.injectFailures)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/users", s.listUsers).Methods(http.MethodGet)
	api.HandleFunc("/profile/{user}", s.getProfile).Methods(http.MethodGet)
	api.HandleFunc("/stats", s.getStats).Methods(http.MethodGet)

	api.HandleFunc("/operator/recommendations", s.getQueue).Methods(http.MethodGet)
	api.HandleFunc("/operator/recommendations/{id}/{action:approve|flag|reject}", s.review).Methods(http.MethodPut)
	api.HandleFunc("/operator/signals/{user}", s.getSignals).Methods(http.MethodGet)
	api.HandleFunc("/operator/traces/{user}", s.getTraces).Methods(http.MethodGet)

	api.HandleFunc("/consent", s.grantConsent).Methods(http.MethodPost)
	api.HandleFunc("/consent/{user}", s.revokeConsent).Methods(http.MethodDelete)
	api.HandleFunc("/consent/{user}", s.getConsent).Methods(http.MethodGet)

	api.HandleFunc("/feedback", s.submitFeedback).Methods(http.MethodPost)

	api.HandleFunc("/insights/{user}/generate-budget", s.generateBudget).Methods(http.MethodPost)
	api.HandleFunc("/insights/{user}/{kind}", s.getInsight).Methods(http.MethodGet)

	ws := r.PathPrefix("/ws").Subrouter()
	ws.HandleFunc("/operator/recommendations", func(w http.ResponseWriter, r *http.Request) {
		s.hub.Serve(w, r, TopicOperator)
	})
	ws.HandleFunc("/subscriptions/{user}", func(w http.ResponseWriter, r *http.Request) {
		s.hub.Serve(w, r, SubscriptionsTopic(mux.Vars(r)["user"]))
	})
	ws.HandleFunc("/user/{user}/recommendations/feedback", func(w http.ResponseWriter, r *http.Request) {
		s.hub.Serve(w, r, FeedbackTopic(mux.Vars(r)["user"]))
	})

	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)

	return r
}

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.requests = append(s.requests, RequestRecord{
			Method:        r.Method,
			Path:          r.URL.Path,
			Query:         r.URL.RawQuery,
			Authorization: r.Header.Get("Authorization"),
			RequestID:     r.Header.Get("X-Request-ID"),
		})
		s.mu.Unlock()

		s.logger.WithFields(logrus.Fields{
			"method": r.Method,
			"path":   r.URL.Path,
		}).Debug("stub request")
		next.ServeHTTP(w, r)
	})
}

func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.token != "" && r.URL.Path != "/health" {
			got := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
			if got != s.token {
				respondError(w, http.StatusUnauthorized, "Not authenticated")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) injectFailures(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Method + " " + r.URL.Path
		s.mu.Lock()
		status, ok := s.failures[key]
		delete(s.failures, key)
		s.mu.Unlock()

		if ok {
			respondError(w, status, http.StatusText(status))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, detail string) {
	respondJSON(w, status, map[string]string{"detail": detail})
}

// CancelSubscription pushes a subscription_cancelled event to a user's channel.
func (s *Server) CancelSubscription(userID, merchant string) error {
	return s.hub.Broadcast(SubscriptionsTopic(userID), models.SubscriptionCancelled{
		Type:         models.EventSubscriptionCancelled,
		UserID:       userID,
		MerchantName: merchant,
		Cancelled:    true,
		Timestamp:    models.At(s.now()),
	})
}

// SendFeedback pushes a recommendation_feedback event to a user's channel.
func (s *Server) SendFeedback(userID, recommendationID string, verdict models.Verdict) error {
	return s.hub.Broadcast(FeedbackTopic(userID), models.RecommendationFeedback{
		Type:             models.EventRecommendationFeedback,
		RecommendationID: recommendationID,
		UserID:           userID,
		Verdict:          verdict,
		Timestamp:        models.At(s.now()),
	})
}
