package api

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/spendsense/operator-console/internal/models"
)

// ListUsers fetches one page of users.
func (c *Client) ListUsers(ctx context.Context, skip, limit int, includePersona bool) (*models.UserList, error) {
	params := url.Values{}
	params.Set("skip", strconv.Itoa(skip))
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}
	if includePersona {
		params.Set("include_persona", "true")
	}

	var list models.UserList
	if err := c.get(ctx, "/users", "/users", params, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

// GetUserDetail fetches a user's profile over a transaction window.
func (c *Client) GetUserDetail(ctx context.Context, userID string, windowDays int, includeFeatures bool) (*models.UserDetail, error) {
	params := url.Values{}
	if windowDays > 0 {
		params.Set("transaction_window", strconv.Itoa(windowDays))
	}
	if includeFeatures {
		params.Set("include_features", "true")
	}

	var detail models.UserDetail
	if err := c.get(ctx, "/profile/{user}", "/profile/"+url.PathEscape(userID), params, &detail); err != nil {
		return nil, err
	}
	return &detail, nil
}

// GetStats fetches the aggregate counters.
func (c *Client) GetStats(ctx context.Context) (*models.Stats, error) {
	var stats models.Stats
	if err := c.get(ctx, "/stats", "/stats", nil, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// GrantConsent records consent for a user.
func (c *Client) GrantConsent(ctx context.Context, userID string) (*models.Consent, error) {
	var consent models.Consent
	err := c.do(ctx, request{
		method: http.MethodPost,
		route:  "/consent",
		path:   "/consent",
		body:   models.ConsentRequest{UserID: userID, ConsentType: "insights"},
	}, &consent)
	if err != nil {
		return nil, err
	}
	if consent.UserID == "" {
		consent.UserID = userID
	}
	return &consent, nil
}

// RevokeConsent withdraws a user's consent.
func (c *Client) RevokeConsent(ctx context.Context, userID string) error {
	return c.do(ctx, request{
		method: http.MethodDelete,
		route:  "/consent/{user}",
		path:   "/consent/" + url.PathEscape(userID),
	}, nil)
}

// GetConsent fetches a user's consent state.
func (c *Client) GetConsent(ctx context.Context, userID string) (*models.Consent, error) {
	var consent models.Consent
	if err := c.get(ctx, "/consent/{user}", "/consent/"+url.PathEscape(userID), nil, &consent); err != nil {
		return nil, err
	}
	if consent.UserID == "" {
		consent.UserID = userID
	}
	return &consent, nil
}

// SubmitFeedback posts a like/dislike verdict on an insight.
func (c *Client) SubmitFeedback(ctx context.Context, fb models.Feedback) error {
	return c.do(ctx, request{
		method: http.MethodPost,
		route:  "/feedback",
		path:   "/feedback",
		body:   fb,
	}, nil)
}
