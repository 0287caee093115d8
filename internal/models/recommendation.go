package models

import (
	"strings"
	"time"
)

// ReviewStatus is the single review state of a recommendation.
type ReviewStatus string

const (
	StatusPending  ReviewStatus = "pending"
	StatusApproved ReviewStatus = "approved"
	StatusFlagged  ReviewStatus = "flagged"
	StatusRejected ReviewStatus = "rejected"
	// StatusAll is a queue filter only; no recommendation has it.
	StatusAll ReviewStatus = "all"
)

// QueueStatuses lists the queue filters in the order the console cycles them.
var QueueStatuses = []ReviewStatus{StatusPending, StatusApproved, StatusFlagged, StatusRejected, StatusAll}

// ParseReviewStatus accepts a queue filter name.
func ParseReviewStatus(s string) (ReviewStatus, bool) {
	st := ReviewStatus(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range QueueStatuses {
		if st == known {
			return st, true
		}
	}
	return "", false
}

// Action is an operator review action.
type Action string

const (
	ActionApprove Action = "approve"
	ActionFlag    Action = "flag"
	ActionReject  Action = "reject"
)

// Actions lists the terminal review actions.
var Actions = []Action{ActionApprove, ActionFlag, ActionReject}

// ResultStatus is the review status an action leads to.
func (a Action) ResultStatus() ReviewStatus {
	switch a {
	case ActionApprove:
		return StatusApproved
	case ActionFlag:
		return StatusFlagged
	case ActionReject:
		return StatusRejected
	default:
		return StatusPending
	}
}

// Persona is the behavioral archetype attached to a recommendation.
type Persona struct {
	ID        string `json:"id"`
	Name      string `json:"name,omitempty"`
	RiskLevel string `json:"risk_level,omitempty"`
}

// Recommendation is one suggested action for a user awaiting operator review.
type Recommendation struct {
	ID          string     `json:"id"`
	UserID      string     `json:"user_id"`
	Type        string     `json:"type"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Rationale   string     `json:"rationale"`
	ContentID   string     `json:"content_id,omitempty"`
	Persona     *Persona   `json:"persona,omitempty"`
	ActionItems []string   `json:"action_items,omitempty"`
	Impact      string     `json:"impact,omitempty"`
	Priority    string     `json:"priority,omitempty"`
	Approved    bool       `json:"approved"`
	ApprovedAt  *Timestamp `json:"approved_at,omitempty"`
	Flagged     bool       `json:"flagged"`
	FlaggedAt   *Timestamp `json:"flagged_at,omitempty"`
	Rejected    bool       `json:"rejected"`
	RejectedAt  *Timestamp `json:"rejected_at,omitempty"`
	RejectedBy  string     `json:"rejected_by,omitempty"`
	CreatedAt   Timestamp  `json:"created_at"`
	UpdatedAt   Timestamp  `json:"updated_at"`
}

// Status collapses the three review flags into one state. When more than one
// flag is set, rejected wins over flagged, and flagged over approved.
func (r *Recommendation) Status() ReviewStatus {
	switch {
	case r.Rejected:
		return StatusRejected
	case r.Flagged:
		return StatusFlagged
	case r.Approved:
		return StatusApproved
	default:
		return StatusPending
	}
}

// Inconsistent reports whether more than one review flag is set.
func (r *Recommendation) Inconsistent() bool {
	n := 0
	for _, set := range []bool{r.Approved, r.Flagged, r.Rejected} {
		if set {
			n++
		}
	}
	return n > 1
}

// IsTerminal reports whether the recommendation has already been reviewed.
func (r *Recommendation) IsTerminal() bool {
	return r.Status() != StatusPending
}

// MatchesFilter reports whether the recommendation belongs in a queue filtered by status.
func (r *Recommendation) MatchesFilter(status ReviewStatus) bool {
	return status == StatusAll || r.Status() == status
}

// RecommendationPatch carries the review fields changed by a status event.
type RecommendationPatch struct {
	Approved   *bool      `json:"approved,omitempty"`
	ApprovedAt *Timestamp `json:"approved_at,omitempty"`
	Flagged    *bool      `json:"flagged,omitempty"`
	FlaggedAt  *Timestamp `json:"flagged_at,omitempty"`
	Rejected   *bool      `json:"rejected,omitempty"`
	RejectedAt *Timestamp `json:"rejected_at,omitempty"`
	RejectedBy string     `json:"rejected_by,omitempty"`
}

// ApplyPatch merges a patch. Setting any review flag clears the other two so
// the single-state invariant holds after every patch.
func (r *Recommendation) ApplyPatch(p RecommendationPatch, at time.Time) {
	if p.Approved != nil && *p.Approved {
		r.setStatus(StatusApproved)
	}
	if p.Flagged != nil && *p.Flagged {
		r.setStatus(StatusFlagged)
	}
	if p.Rejected != nil && *p.Rejected {
		r.setStatus(StatusRejected)
	}
	if p.Approved != nil && !*p.Approved {
		r.Approved = false
	}
	if p.Flagged != nil && !*p.Flagged {
		r.Flagged = false
	}
	if p.Rejected != nil && !*p.Rejected {
		r.Rejected = false
	}
	if p.ApprovedAt != nil {
		r.ApprovedAt = p.ApprovedAt
	}
	if p.FlaggedAt != nil {
		r.FlaggedAt = p.FlaggedAt
	}
	if p.RejectedAt != nil {
		r.RejectedAt = p.RejectedAt
	}
	if p.RejectedBy != "" {
		r.RejectedBy = p.RejectedBy
	}
	if !at.IsZero() {
		r.UpdatedAt = At(at)
	}
}

func (r *Recommendation) setStatus(st ReviewStatus) {
	r.Approved = st == StatusApproved
	r.Flagged = st == StatusFlagged
	r.Rejected = st == StatusRejected
}

// QueueFilter selects a queue view.
type QueueFilter struct {
	Status ReviewStatus
	UserID string
	Limit  int
}

// Queue is one page of the operator recommendation queue.
type Queue struct {
	Recommendations []Recommendation `json:"recommendations"`
	Total           int              `json:"total"`
	Status          ReviewStatus     `json:"status"`
}

// Without returns a copy of the queue without the recommendation id, with
// Total reduced by the number of entries removed.
func (q Queue) Without(id string) (Queue, int) {
	kept := make([]Recommendation, 0, len(q.Recommendations))
	for _, rec := range q.Recommendations {
		if rec.ID != id {
			kept = append(kept, rec)
		}
	}
	removed := len(q.Recommendations) - len(kept)
	total := q.Total - removed
	if total < 0 {
		total = 0
	}
	return Queue{Recommendations: kept, Total: total, Status: q.Status}, removed
}
