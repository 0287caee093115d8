package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/spendsense/operator-console/internal/models"
	"github.com/spendsense/operator-console/internal/signals"
)

// GetInsight fetches GET /insights/{user}/{kind}. Consent-gated kinds return
// an error for which IsConsentRequired is true when the server answers 403.
func (c *Client) GetInsight(ctx context.Context, kind models.InsightKind, userID string, params url.Values) (*models.Insight, error) {
	if _, ok := models.ParseInsightKind(string(kind)); !ok {
		return nil, fmt.Errorf("unknown insight %q", kind)
	}

	data := signals.NewMap()
	err := c.do(ctx, request{
		method: http.MethodGet,
		route:  "/insights/{user}/" + string(kind),
		path:   "/insights/" + url.PathEscape(userID) + "/" + string(kind),
		query:  params,
		gated:  kind.ConsentGated(),
	}, data)
	if err != nil {
		return nil, err
	}
	return &models.Insight{Kind: kind, UserID: userID, Data: data}, nil
}

// GenerateBudget asks the server to build a suggested budget for the user.
func (c *Client) GenerateBudget(ctx context.Context, userID string, params url.Values) (*models.Insight, error) {
	kind := models.InsightGenerateBudget

	data := signals.NewMap()
	err := c.do(ctx, request{
		method: http.MethodPost,
		route:  "/insights/{user}/" + string(kind),
		path:   "/insights/" + url.PathEscape(userID) + "/" + string(kind),
		query:  params,
		gated:  true,
	}, data)
	if err != nil {
		return nil, err
	}
	return &models.Insight{Kind: kind, UserID: userID, Data: data}, nil
}
