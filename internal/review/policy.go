package review

import (
	"github.com/sirupsen/logrus"

	"github.com/spendsense/operator-console/internal/cache"
	"github.com/spendsense/operator-console/internal/models"
	"github.com/spendsense/operator-console/internal/realtime"
)

// Outcome is what the realtime policy did with an event.
type Outcome int

const (
	OutcomeIgnored Outcome = iota
	OutcomePatched
	OutcomeInvalidated
)

func (o Outcome) String() string {
	switch o {
	case OutcomePatched:
		return "patched"
	case OutcomeInvalidated:
		return "invalidated"
	default:
		return "ignored"
	}
}

// ApplyEvent updates the cache for a realtime event. viewed is the queue
// filter currently on screen.
func (s *Service) ApplyEvent(ev realtime.Event, viewed models.QueueFilter) Outcome {
	switch e := ev.(type) {
	case models.RecommendationStatusChanged:
		return s.applyStatusChange(e, viewed)
	case models.SubscriptionCancelled:
		s.invalidateUser(FamilySignals, e.UserID)
		return OutcomeInvalidated
	case models.RecommendationFeedback:
		s.invalidateUser(FamilyQueue, e.UserID)
		return OutcomeInvalidated
	default:
		return OutcomeIgnored
	}
}

// applyStatusChange removes the recommendation from the cached pending list
// when the pending view is on screen and the action moves it out of pending.
// Any other combination invalidates the queue family.
func (s *Service) applyStatusChange(ev models.RecommendationStatusChanged, viewed models.QueueFilter) Outcome {
	log := s.logger.WithFields(logrus.Fields{
		"recommendation_id": ev.RecommendationID,
		"action":            ev.Action,
		"viewed_status":     viewed.Status,
	})

	s.cache.InvalidateFamily(FamilyStats)

	if viewed.Status != models.StatusPending || !ev.Action.Moves() {
		s.cache.InvalidateFamily(FamilyQueue)
		log.Debug("status change invalidated queue")
		return OutcomeInvalidated
	}

	removed := 0
	for _, key := range s.cache.Keys(FamilyQueue) {
		if models.ReviewStatus(key.Param("status")) != models.StatusPending {
			// The moved entry belongs to another list whose membership we
			// cannot compute locally.
			s.cache.Invalidate(key)
			continue
		}
		cache.Patch(s.cache, key, func(q models.Queue) (models.Queue, bool) {
			next, n := q.Without(ev.RecommendationID)
			removed += n
			return next, n > 0
		})
	}
	log.WithField("removed", removed).Debug("status change patched pending queue")
	return OutcomePatched
}

func (s *Service) invalidateUser(family, userID string) {
	matched := false
	for _, key := range s.cache.Keys(family) {
		if userID == "" || key.Param("user_id") == userID || key.Param("user_id") == "" {
			s.cache.Invalidate(key)
			matched = true
		}
	}
	if !matched {
		s.cache.InvalidateFamily(family)
	}
}
