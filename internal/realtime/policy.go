package realtime

import (
	"time"

	"github.com/spendsense/operator-console/internal/config"
)

// ReconnectPolicy bounds automatic reconnection. Backoff receives the
// 1-based attempt number and returns the delay before that attempt.
type ReconnectPolicy struct {
	MaxAttempts int
	Backoff     func(attempt int) time.Duration
}

// LinearBackoff waits base × attempt.
func LinearBackoff(base time.Duration) func(int) time.Duration {
	return func(attempt int) time.Duration {
		if attempt < 1 {
			attempt = 1
		}
		return base * time.Duration(attempt)
	}
}

// ExponentialBackoff waits base × 2^(attempt-1), capped at maxDelay when maxDelay > 0.
func ExponentialBackoff(base, maxDelay time.Duration) func(int) time.Duration {
	return func(attempt int) time.Duration {
		if attempt < 1 {
			attempt = 1
		}
		delay := base
		for i := 1; i < attempt; i++ {
			delay *= 2
			if maxDelay > 0 && delay >= maxDelay {
				return maxDelay
			}
		}
		if maxDelay > 0 && delay > maxDelay {
			return maxDelay
		}
		return delay
	}
}

// PolicyFor builds the reconnect policy of one channel from configuration.
func PolicyFor(maxAttempts int, p config.ChannelPolicy) ReconnectPolicy {
	policy := ReconnectPolicy{MaxAttempts: maxAttempts}
	switch p.Backoff {
	case config.BackoffExponential:
		policy.Backoff = ExponentialBackoff(p.BaseDelay, p.MaxDelay)
	default:
		policy.Backoff = LinearBackoff(p.BaseDelay)
	}
	return policy
}

func (p ReconnectPolicy) delay(attempt int) time.Duration {
	if p.Backoff == nil {
		return LinearBackoff(3*time.Second)(attempt)
	}
	return p.Backoff(attempt)
}
