package models

import (
	"strings"

	"github.com/spendsense/operator-console/internal/signals"
)

// User is an end user as listed for operators.
type User struct {
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	Email     string    `json:"email,omitempty"`
	Persona   *Persona  `json:"persona,omitempty"`
	CreatedAt Timestamp `json:"created_at"`
}

// DisplayName prefers the name over the identifier.
func (u User) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	return u.UserID
}

// UserList is one page of users.
type UserList struct {
	Users []User `json:"users"`
	Total int    `json:"total"`
	Skip  int    `json:"skip"`
	Limit int    `json:"limit"`
}

// UserDetail is the profile of one user over a trailing window.
type UserDetail struct {
	User       User         `json:"user"`
	WindowDays int          `json:"window_days"`
	Features   *signals.Map `json:"features,omitempty"`
	Consent    *Consent     `json:"consent,omitempty"`
}

// Stats are the aggregate counters shown on the overview tab.
type Stats struct {
	TotalUsers           int            `json:"total_users"`
	TotalRecommendations int            `json:"total_recommendations"`
	Pending              int            `json:"pending"`
	Approved             int            `json:"approved"`
	Flagged              int            `json:"flagged"`
	Rejected             int            `json:"rejected"`
	PersonaDistribution  map[string]int `json:"persona_distribution,omitempty"`
}

// SignalSnapshot is a user's behavioral signals over a trailing window.
type SignalSnapshot struct {
	UserID     string       `json:"user_id"`
	WindowDays int          `json:"window_days"`
	Signals    *signals.Map `json:"signals"`
	ComputedAt Timestamp    `json:"computed_at"`
}

// SignalWindows are the supported trailing windows in days.
var SignalWindows = []int{30, 180}

// DecisionTrace is one recorded persona-assignment decision.
type DecisionTrace struct {
	ID              string       `json:"id"`
	AssignedPersona string       `json:"assigned_persona"`
	PrimaryPersona  string       `json:"primary_persona,omitempty"`
	Evidence        []string     `json:"matching_evidence,omitempty"`
	FeatureSnapshot *signals.Map `json:"feature_snapshot,omitempty"`
	Rationale       string       `json:"rationale"`
	CreatedAt       Timestamp    `json:"created_at"`
}

// DecisionTraces is the ordered trace history of a user.
type DecisionTraces struct {
	UserID string          `json:"user_id"`
	Traces []DecisionTrace `json:"traces"`
}

// Consent is a user's insight-generation consent state.
type Consent struct {
	UserID    string     `json:"user_id"`
	Granted   bool       `json:"granted"`
	GrantedAt *Timestamp `json:"granted_at,omitempty"`
	RevokedAt *Timestamp `json:"revoked_at,omitempty"`
}

// ConsentRequest grants consent for a user.
type ConsentRequest struct {
	UserID      string `json:"user_id"`
	ConsentType string `json:"consent_type,omitempty"`
}

// FeedbackType is a like/dislike verdict on an insight.
type FeedbackType string

const (
	FeedbackLike    FeedbackType = "like"
	FeedbackDislike FeedbackType = "dislike"
)

// Feedback is submitted for one insight.
type Feedback struct {
	UserID       string         `json:"user_id"`
	InsightID    string         `json:"insight_id"`
	InsightType  string         `json:"insight_type"`
	FeedbackType FeedbackType   `json:"feedback_type"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// InsightKind names an insight endpoint under /insights/{userId}/.
type InsightKind string

const (
	InsightWeeklyRecap      InsightKind = "weekly-recap"
	InsightSpendingAnalysis InsightKind = "spending-analysis"
	InsightNetWorth         InsightKind = "net-worth"
	InsightSuggestedBudget  InsightKind = "suggested-budget"
	InsightBudgetTracking   InsightKind = "budget-tracking"
	InsightBudgetHistory    InsightKind = "budget-history"
	InsightNetWorthHistory  InsightKind = "net-worth-history"

	// InsightGenerateBudget is the POST that creates a suggested budget.
	InsightGenerateBudget InsightKind = "generate-budget"
)

// InsightKinds lists every fetchable insight (generate-budget is an action, not a fetch).
var InsightKinds = []InsightKind{
	InsightWeeklyRecap,
	InsightSpendingAnalysis,
	InsightNetWorth,
	InsightSuggestedBudget,
	InsightBudgetTracking,
	InsightBudgetHistory,
	InsightNetWorthHistory,
}

// ParseInsightKind accepts a fetchable insight name.
func ParseInsightKind(s string) (InsightKind, bool) {
	k := InsightKind(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range InsightKinds {
		if k == known {
			return k, true
		}
	}
	return "", false
}

// ConsentGated reports whether the insight endpoint answers 403 without consent.
func (k InsightKind) ConsentGated() bool {
	switch k {
	case InsightSuggestedBudget, InsightBudgetTracking, InsightBudgetHistory, InsightGenerateBudget:
		return true
	default:
		return false
	}
}

// Insight is an insight payload; its fields vary per kind so it is kept as an
// ordered value map and rendered with the signal formatter.
type Insight struct {
	Kind   InsightKind
	UserID string
	Data   *signals.Map
}
