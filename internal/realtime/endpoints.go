package realtime

import (
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/spendsense/operator-console/internal/config"
	"github.com/spendsense/operator-console/internal/models"
)

// Channel names, also used as metric labels.
const (
	ChannelOperator      = "operator"
	ChannelSubscriptions = "subscriptions"
	ChannelFeedback      = "feedback"
)

// Endpoint paths on the API origin.
const (
	OperatorPath = "/ws/operator/recommendations"
)

// SubscriptionsPath is the per-user subscription cancellation endpoint.
func SubscriptionsPath(userID string) string {
	return "/ws/subscriptions/" + url.PathEscape(userID)
}

// FeedbackPath is the per-user recommendation feedback endpoint.
func FeedbackPath(userID string) string {
	return "/ws/user/" + url.PathEscape(userID) + "/recommendations/feedback"
}

// Event is a typed realtime event.
type Event interface {
	EventType() string
}

// Decode turns an accepted message into its typed event.
func Decode(msg Message) (Event, error) {
	switch msg.Type {
	case models.EventRecommendationStatusChanged:
		var ev models.RecommendationStatusChanged
		if err := json.Unmarshal(msg.Raw, &ev); err != nil {
			return nil, fmt.Errorf("decoding %s: %w", msg.Type, err)
		}
		if ev.RecommendationID == "" {
			return nil, fmt.Errorf("decoding %s: missing recommendation_id", msg.Type)
		}
		return ev, nil
	case models.EventSubscriptionCancelled:
		var ev models.SubscriptionCancelled
		if err := json.Unmarshal(msg.Raw, &ev); err != nil {
			return nil, fmt.Errorf("decoding %s: %w", msg.Type, err)
		}
		return ev, nil
	case models.EventRecommendationFeedback:
		var ev models.RecommendationFeedback
		if err := json.Unmarshal(msg.Raw, &ev); err != nil {
			return nil, fmt.Errorf("decoding %s: %w", msg.Type, err)
		}
		return ev, nil
	default:
		return nil, fmt.Errorf("unknown realtime message type %q", msg.Type)
	}
}

// OnEvent installs a message handler that decodes events and passes them to
// fn. Messages that fail to decode are logged and dropped.
func (c *Channel) OnEvent(fn func(Event)) {
	c.OnMessage(func(msg Message) {
		ev, err := Decode(msg)
		if err != nil {
			c.metrics.RealtimeMalformedMessage(c.name)
			c.logger.WithError(err).Warn("dropping undecodable realtime event")
			return
		}
		fn(ev)
	})
}

func channelOptions(cfg *config.Config, extra []Option, types ...string) []Option {
	opts := []Option{WithPingInterval(cfg.Realtime.PingInterval), WithTypes(types...)}
	return append(opts, extra...)
}

// OperatorChannel streams recommendation status changes for every user.
func OperatorChannel(cfg *config.Config, opts ...Option) *Channel {
	return New(ChannelOperator,
		cfg.WebSocketURL(OperatorPath),
		PolicyFor(cfg.Realtime.MaxAttempts, cfg.Realtime.Operator),
		channelOptions(cfg, opts, models.EventRecommendationStatusChanged)...)
}

// SubscriptionChannel streams subscription cancellations for one user.
func SubscriptionChannel(cfg *config.Config, userID string, opts ...Option) *Channel {
	return New(ChannelSubscriptions,
		cfg.WebSocketURL(SubscriptionsPath(userID)),
		PolicyFor(cfg.Realtime.MaxAttempts, cfg.Realtime.Subscriptions),
		channelOptions(cfg, opts, models.EventSubscriptionCancelled)...)
}

// FeedbackChannel streams recommendation feedback for one user.
func FeedbackChannel(cfg *config.Config, userID string, opts ...Option) *Channel {
	return New(ChannelFeedback,
		cfg.WebSocketURL(FeedbackPath(userID)),
		PolicyFor(cfg.Realtime.MaxAttempts, cfg.Realtime.Feedback),
		channelOptions(cfg, opts, models.EventRecommendationFeedback)...)
}
