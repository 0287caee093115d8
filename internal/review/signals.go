package review

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spendsense/operator-console/internal/cache"
	"github.com/spendsense/operator-console/internal/models"
	"github.com/spendsense/operator-console/internal/signals"
)

// DefaultWindow is the signal window shown first.
const DefaultWindow = 30

// SignalView is a user's snapshot grouped for display.
type SignalView struct {
	Snapshot models.SignalSnapshot
	Groups   []signals.Group
}

// NextWindow cycles through the supported trailing windows.
func NextWindow(current int) int {
	for i, w := range models.SignalWindows {
		if w == current {
			return models.SignalWindows[(i+1)%len(models.SignalWindows)]
		}
	}
	return models.SignalWindows[0]
}

// SignalsKey is the cache identity of a signal snapshot.
func SignalsKey(userID string, windowDays int) cache.Key {
	return cache.NewKey(FamilySignals, map[string]string{
		"user_id":     userID,
		"window_days": strconv.Itoa(windowDays),
	})
}

// Signals fetches and categorizes a user's snapshot for windowDays.
func (s *Service) Signals(ctx context.Context, userID string, windowDays int) (*SignalView, error) {
	if userID == "" {
		return nil, fmt.Errorf("a user is required to review signals")
	}
	if windowDays <= 0 {
		windowDays = DefaultWindow
	}

	snap, err := cache.Fetch(ctx, s.cache, SignalsKey(userID, windowDays), func(ctx context.Context) (models.SignalSnapshot, error) {
		snap, err := s.api.GetUserSignals(ctx, userID, windowDays)
		if err != nil {
			return models.SignalSnapshot{}, err
		}
		return *snap, nil
	})
	if err != nil {
		return nil, fmt.Errorf("loading %d-day signals for %s: %w", windowDays, userID, err)
	}

	return &SignalView{
		Snapshot: snap,
		Groups:   signals.GroupSnapshot(snap.Signals),
	}, nil
}
