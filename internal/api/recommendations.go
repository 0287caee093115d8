package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/spendsense/operator-console/internal/models"
)

// GetRecommendationQueue fetches the operator queue for a filter.
func (c *Client) GetRecommendationQueue(ctx context.Context, filter models.QueueFilter) (*models.Queue, error) {
	params := url.Values{}
	if filter.Status != "" {
		params.Set("status", string(filter.Status))
	}
	if filter.UserID != "" {
		params.Set("user_id", filter.UserID)
	}
	if filter.Limit > 0 {
		params.Set("limit", strconv.Itoa(filter.Limit))
	}

	var queue models.Queue
	if err := c.get(ctx, "/operator/recommendations", "/operator/recommendations", params, &queue); err != nil {
		return nil, err
	}
	if queue.Status == "" {
		queue.Status = filter.Status
	}
	return &queue, nil
}

// ApproveRecommendation approves a recommendation. It returns nil only on 2xx.
func (c *Client) ApproveRecommendation(ctx context.Context, id string) error {
	return c.Act(ctx, id, models.ActionApprove)
}

// FlagRecommendation flags a recommendation for follow-up.
func (c *Client) FlagRecommendation(ctx context.Context, id string) error {
	return c.Act(ctx, id, models.ActionFlag)
}

// RejectRecommendation rejects a recommendation.
func (c *Client) RejectRecommendation(ctx context.Context, id string) error {
	return c.Act(ctx, id, models.ActionReject)
}

// Act issues PUT /operator/recommendations/{id}/{action} with no body.
func (c *Client) Act(ctx context.Context, id string, action models.Action) error {
	switch action {
	case models.ActionApprove, models.ActionFlag, models.ActionReject:
	default:
		return fmt.Errorf("unknown review action %q", action)
	}
	if id == "" {
		return fmt.Errorf("recommendation id is required")
	}

	return c.do(ctx, request{
		method: http.MethodPut,
		route:  "/operator/recommendations/{id}/" + string(action),
		path:   "/operator/recommendations/" + url.PathEscape(id) + "/" + string(action),
	}, nil)
}

// GetUserSignals fetches a user's behavioral signals over a trailing window.
func (c *Client) GetUserSignals(ctx context.Context, userID string, windowDays int) (*models.SignalSnapshot, error) {
	params := url.Values{}
	if windowDays > 0 {
		params.Set("window_days", strconv.Itoa(windowDays))
	}

	var snap models.SignalSnapshot
	if err := c.get(ctx, "/operator/signals/{user}", "/operator/signals/"+url.PathEscape(userID), params, &snap); err != nil {
		return nil, err
	}
	if snap.UserID == "" {
		snap.UserID = userID
	}
	return &snap, nil
}

// GetDecisionTraces fetches a user's persona-assignment history.
func (c *Client) GetDecisionTraces(ctx context.Context, userID string) (*models.DecisionTraces, error) {
	var traces models.DecisionTraces
	if err := c.get(ctx, "/operator/traces/{user}", "/operator/traces/"+url.PathEscape(userID), nil, &traces); err != nil {
		return nil, err
	}
	if traces.UserID == "" {
		traces.UserID = userID
	}
	return &traces, nil
}
