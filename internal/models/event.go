package models

// Realtime message types.
const (
	EventRecommendationStatusChanged = "recommendation_status_changed"
	EventSubscriptionCancelled       = "subscription_cancelled"
	EventRecommendationFeedback      = "recommendation_feedback"
)

// StatusAction is the action name carried by a status-change event. It is
// the past tense of the review Action that caused it.
type StatusAction string

const (
	StatusActionApproved StatusAction = "approved"
	StatusActionFlagged  StatusAction = "flagged"
	StatusActionRejected StatusAction = "rejected"
)

// Moves reports whether the action takes a recommendation out of the pending queue.
func (a StatusAction) Moves() bool {
	switch a {
	case StatusActionApproved, StatusActionFlagged, StatusActionRejected:
		return true
	default:
		return false
	}
}

// StatusActionFor maps a review action to the event action it produces.
func StatusActionFor(a Action) StatusAction {
	return StatusAction(a.ResultStatus())
}

// RecommendationStatusChanged is pushed on the operator channel whenever a
// recommendation is reviewed.
type RecommendationStatusChanged struct {
	Type             string              `json:"type"`
	RecommendationID string              `json:"recommendation_id"`
	UserID           string              `json:"user_id,omitempty"`
	Action           StatusAction        `json:"action"`
	Patch            RecommendationPatch `json:"patch"`
	Timestamp        Timestamp           `json:"timestamp"`
}

// SubscriptionCancelled is pushed on a user's subscription channel.
type SubscriptionCancelled struct {
	Type         string    `json:"type"`
	UserID       string    `json:"user_id"`
	MerchantName string    `json:"merchant_name"`
	Cancelled    bool      `json:"cancelled"`
	Timestamp    Timestamp `json:"timestamp"`
}

// Verdict is an end user's reaction to a recommendation.
type Verdict string

const (
	VerdictAgree  Verdict = "agree"
	VerdictReject Verdict = "reject"
)

// RecommendationFeedback is pushed on a user's feedback channel.
type RecommendationFeedback struct {
	Type             string    `json:"type"`
	RecommendationID string    `json:"recommendation_id"`
	UserID           string    `json:"user_id"`
	Verdict          Verdict   `json:"feedback"`
	Timestamp        Timestamp `json:"timestamp"`
}

// EventType implements the realtime event interface.
func (e RecommendationStatusChanged) EventType() string { return EventRecommendationStatusChanged }

// EventType implements the realtime event interface.
func (e SubscriptionCancelled) EventType() string { return EventSubscriptionCancelled }

// EventType implements the realtime event interface.
func (e RecommendationFeedback) EventType() string { return EventRecommendationFeedback }
