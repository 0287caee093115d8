package stubserver

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/spendsense/operator-console/internal/models"
)

func queryInt(r *http.Request, name string, def int) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// listUsers handles GET /api/users
func (s *Server) listUsers(w http.ResponseWriter, r *http.Request) {
	skip := queryInt(r, "skip", 0)
	limit := queryInt(r, "limit", 100)
	includePersona := r.URL.Query().Get("include_persona") == "true"
	respondJSON(w, http.StatusOK, s.store.Users(skip, limit, includePersona))
}

// getProfile handles GET /api/profile/{user}
func (s *Server) getProfile(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["user"]
	u, ok := s.store.User(userID)
	if !ok {
		respondError(w, http.StatusNotFound, "User not found")
		return
	}

	window := queryInt(r, "transaction_window", 30)
	detail := models.UserDetail{User: u, WindowDays: window}
	if r.URL.Query().Get("include_features") == "true" {
		if m, ok := s.store.Signals(userID, window); ok {
			detail.Features = m
		}
	}
	consent := s.store.Consent(userID)
	detail.Consent = &consent
	respondJSON(w, http.StatusOK, detail)
}

// getStats handles GET /api/stats
func (s *Server) getStats(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.store.Stats())
}

// getQueue handles GET /api/operator/recommendations
func (s *Server) getQueue(w http.ResponseWriter, r *http.Request) {
	status := models.StatusPending
	if raw := r.URL.Query().Get("status"); raw != "" {
		st, ok := models.ParseReviewStatus(raw)
		if !ok {
			respondError(w, http.StatusUnprocessableEntity, "invalid status filter")
			return
		}
		status = st
	}

	respondJSON(w, http.StatusOK, s.store.Queue(models.QueueFilter{
		Status: status,
		UserID: r.URL.Query().Get("user_id"),
		Limit:  queryInt(r, "limit", 0),
	}))
}

// review handles PUT /api/operator/recommendations/{id}/{action}
func (s *Server) review(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	action := models.Action(vars["action"])

	at := s.now()
	rec, patch, ok := s.store.Review(vars["id"], action, "operator", at)
	if !ok {
		respondError(w, http.StatusNotFound, "Recommendation not found")
		return
	}

	_ = s.hub.Broadcast(TopicOperator, models.RecommendationStatusChanged{
		Type:             models.EventRecommendationStatusChanged,
		RecommendationID: rec.ID,
		UserID:           rec.UserID,
		Action:           models.StatusActionFor(action),
		Patch:            patch,
		Timestamp:        models.At(at),
	})

	respondJSON(w, http.StatusOK, rec)
}

// getSignals handles GET /api/operator/signals/{user}
func (s *Server) getSignals(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["user"]
	window := queryInt(r, "window_days", 30)
	if window != 30 && window != 180 {
		respondError(w, http.StatusUnprocessableEntity, "window_days must be 30 or 180")
		return
	}

	m, ok := s.store.Signals(userID, window)
	if !ok {
		respondError(w, http.StatusNotFound, "No signals for user")
		return
	}
	respondJSON(w, http.StatusOK, models.SignalSnapshot{
		UserID:     userID,
		WindowDays: window,
		Signals:    m,
		ComputedAt: models.At(s.now()),
	})
}

// getTraces handles GET /api/operator/traces/{user}
func (s *Server) getTraces(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["user"]
	respondJSON(w, http.StatusOK, models.DecisionTraces{
		UserID: userID,
		Traces: s.store.Traces(userID),
	})
}

// grantConsent handles POST /api/consent
func (s *Server) grantConsent(w http.ResponseWriter, r *http.Request) {
	var req models.ConsentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" {
		respondError(w, http.StatusUnprocessableEntity, "user_id is required")
		return
	}
	respondJSON(w, http.StatusOK, s.store.SetConsent(req.UserID, true, s.now()))
}

// revokeConsent handles DELETE /api/consent/{user}
func (s *Server) revokeConsent(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.store.SetConsent(mux.Vars(r)["user"], false, s.now()))
}

// getConsent handles GET /api/consent/{user}
func (s *Server) getConsent(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.store.Consent(mux.Vars(r)["user"]))
}

// submitFeedback handles POST /api/feedback
func (s *Server) submitFeedback(w http.ResponseWriter, r *http.Request) {
	var fb models.Feedback
	if err := json.NewDecoder(r.Body).Decode(&fb); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if fb.UserID == "" || fb.InsightID == "" {
		respondError(w, http.StatusUnprocessableEntity, "user_id and insight_id are required")
		return
	}
	if fb.FeedbackType != models.FeedbackLike && fb.FeedbackType != models.FeedbackDislike {
		respondError(w, http.StatusUnprocessableEntity, "feedback_type must be like or dislike")
		return
	}

	s.store.AddFeedback(fb)
	respondJSON(w, http.StatusCreated, map[string]string{"id": uuid.NewString(), "status": "recorded"})
}

// getInsight handles GET /api/insights/{user}/{kind}
func (s *Server) getInsight(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	kind, ok := models.ParseInsightKind(vars["kind"])
	if !ok {
		respondError(w, http.StatusNotFound, "Unknown insight")
		return
	}
	s.serveInsight(w, kind, vars["user"])
}

// generateBudget handles POST /api/insights/{user}/generate-budget
func (s *Server) generateBudget(w http.ResponseWriter, r *http.Request) {
	s.serveInsight(w, models.InsightGenerateBudget, mux.Vars(r)["user"])
}

func (s *Server) serveInsight(w http.ResponseWriter, kind models.InsightKind, userID string) {
	if _, ok := s.store.User(userID); !ok {
		respondError(w, http.StatusNotFound, "User not found")
		return
	}
	if kind.ConsentGated() && !s.store.Consent(userID).Granted {
		respondError(w, http.StatusForbidden, "User has not granted consent for budget insights")
		return
	}
	respondJSON(w, http.StatusOK, insightPayload(kind, userID))
}
