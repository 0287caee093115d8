// Package review implements the operator review workflow on top of the API
// client and the query cache.
package review

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/spendsense/operator-console/internal/cache"
	"github.com/spendsense/operator-console/internal/models"
)

// Cache families.
const (
	FamilyQueue   = "operator.recommendations"
	FamilySignals = "operator.signals"
	FamilyTraces  = "operator.traces"
	FamilyStats   = "stats"
	FamilyUsers   = "users"
)

// ErrActionInFlight is returned when an action is already running for a recommendation.
var ErrActionInFlight = errors.New("an action is already in flight for this recommendation")

// API is the part of the transport client the review workflow uses.
type API interface {
	GetRecommendationQueue(ctx context.Context, filter models.QueueFilter) (*models.Queue, error)
	Act(ctx context.Context, id string, action models.Action) error
	GetUserSignals(ctx context.Context, userID string, windowDays int) (*models.SignalSnapshot, error)
	GetDecisionTraces(ctx context.Context, userID string) (*models.DecisionTraces, error)
	GetStats(ctx context.Context) (*models.Stats, error)
	ListUsers(ctx context.Context, skip, limit int, includePersona bool) (*models.UserList, error)
}

// Service reads review data through the cache and drives review actions.
type Service struct {
	api    API
	cache  *cache.Cache
	logger logrus.FieldLogger

	mutex    sync.Mutex
	inFlight map[string]models.Action
}

// NewService creates a review service.
func NewService(api API, c *cache.Cache, logger logrus.FieldLogger) *Service {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Service{
		api:      api,
		cache:    c,
		logger:   logger.WithField("component", "review"),
		inFlight: make(map[string]models.Action),
	}
}

// Cache returns the underlying query cache.
func (s *Service) Cache() *cache.Cache {
	return s.cache
}

// QueueKey is the cache identity of a queue view.
func QueueKey(f models.QueueFilter) cache.Key {
	params := map[string]string{
		"status":  string(f.Status),
		"user_id": f.UserID,
	}
	if f.Limit > 0 {
		params["limit"] = strconv.Itoa(f.Limit)
	}
	return cache.NewKey(FamilyQueue, params)
}

// Queue returns the queue view for filter, from cache when fresh.
func (s *Service) Queue(ctx context.Context, filter models.QueueFilter) (*models.Queue, error) {
	if filter.Status == "" {
		filter.Status = models.StatusPending
	}
	q, err := cache.Fetch(ctx, s.cache, QueueKey(filter), func(ctx context.Context) (models.Queue, error) {
		q, err := s.api.GetRecommendationQueue(ctx, filter)
		if err != nil {
			return models.Queue{}, err
		}
		return *q, nil
	})
	if err != nil {
		return nil, fmt.Errorf("loading %s queue: %w", filter.Status, err)
	}
	return &q, nil
}

// InFlight reports whether an action is running for id.
func (s *Service) InFlight(id string) bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	_, ok := s.inFlight[id]
	return ok
}

// CanAct reports whether approve/flag/reject may be fired for rec.
func (s *Service) CanAct(rec *models.Recommendation) bool {
	return rec != nil && !rec.IsTerminal() && !s.InFlight(rec.ID)
}

// Act runs a review action. On success the whole queue family and the
// counters are invalidated; on failure the cache is left untouched.
func (s *Service) Act(ctx context.Context, id string, action models.Action) error {
	s.mutex.Lock()
	if _, busy := s.inFlight[id]; busy {
		s.mutex.Unlock()
		return ErrActionInFlight
	}
	s.inFlight[id] = action
	s.mutex.Unlock()

	defer func() {
		s.mutex.Lock()
		delete(s.inFlight, id)
		s.mutex.Unlock()
	}()

	log := s.logger.WithFields(logrus.Fields{"recommendation_id": id, "action": action})
	if err := s.api.Act(ctx, id, action); err != nil {
		log.WithError(err).Warn("review action failed")
		return fmt.Errorf("%s %s: %w", action, id, err)
	}

	s.cache.InvalidateFamily(FamilyQueue)
	s.cache.InvalidateFamily(FamilyStats)
	log.Info("review action applied")
	return nil
}

// Stats returns the aggregate counters.
func (s *Service) Stats(ctx context.Context) (*models.Stats, error) {
	st, err := cache.Fetch(ctx, s.cache, cache.NewKey(FamilyStats, nil), func(ctx context.Context) (models.Stats, error) {
		st, err := s.api.GetStats(ctx)
		if err != nil {
			return models.Stats{}, err
		}
		return *st, nil
	})
	if err != nil {
		return nil, fmt.Errorf("loading stats: %w", err)
	}
	return &st, nil
}

// Users returns one page of users with personas.
func (s *Service) Users(ctx context.Context, skip, limit int) (*models.UserList, error) {
	key := cache.NewKey(FamilyUsers, map[string]string{
		"skip":  strconv.Itoa(skip),
		"limit": strconv.Itoa(limit),
	})
	list, err := cache.Fetch(ctx, s.cache, key, func(ctx context.Context) (models.UserList, error) {
		list, err := s.api.ListUsers(ctx, skip, limit, true)
		if err != nil {
			return models.UserList{}, err
		}
		return *list, nil
	})
	if err != nil {
		return nil, fmt.Errorf("loading users: %w", err)
	}
	return &list, nil
}

// Traces returns a user's decision trace history.
func (s *Service) Traces(ctx context.Context, userID string) (*models.DecisionTraces, error) {
	key := cache.NewKey(FamilyTraces, map[string]string{"user_id": userID})
	tr, err := cache.Fetch(ctx, s.cache, key, func(ctx context.Context) (models.DecisionTraces, error) {
		tr, err := s.api.GetDecisionTraces(ctx, userID)
		if err != nil {
			return models.DecisionTraces{}, err
		}
		return *tr, nil
	})
	if err != nil {
		return nil, fmt.Errorf("loading traces for %s: %w", userID, err)
	}
	return &tr, nil
}
