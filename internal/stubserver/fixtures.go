package stubserver

import (
	"time"

	"github.com/spendsense/operator-console/internal/models"
	"github.com/spendsense/operator-console/internal/signals"
)

var fixtureEpoch = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

// Seed fills the store with a small demo data set: three users, four
// pending recommendations and signals for user-1.
func Seed(s *Store) {
	subscriptionHeavy := &models.Persona{ID: "subscription_heavy", Name: "Subscription Heavy", RiskLevel: "MEDIUM"}
	highUtil := &models.Persona{ID: "high_utilization", Name: "High Utilization", RiskLevel: "HIGH"}
	saver := &models.Persona{ID: "savings_builder", RiskLevel: "LOW"}

	s.AddUser(models.User{UserID: "user-1", Name: "Ada Lovelace", Email: "ada@example.com", Persona: subscriptionHeavy, CreatedAt: models.At(fixtureEpoch)})
	s.AddUser(models.User{UserID: "user-2", Name: "Grace Hopper", Email: "grace@example.com", Persona: highUtil, CreatedAt: models.At(fixtureEpoch)})
	s.AddUser(models.User{UserID: "user-3", Name: "Alan Turing", Email: "alan@example.com", Persona: saver, CreatedAt: models.At(fixtureEpoch)})

	s.AddRecommendation(models.Recommendation{
		ID: "rec-1", UserID: "user-1", Type: "education",
		Title:       "Audit your recurring subscriptions",
		Rationale:   "You have 6 active subscriptions totalling $112 per month.",
		Persona:     subscriptionHeavy,
		ActionItems: []string{"List every subscription", "Cancel the ones unused in 30 days"},
		Impact:      "Could save about $40 per month",
		Priority:    "high",
		CreatedAt:   models.At(fixtureEpoch), UpdatedAt: models.At(fixtureEpoch),
	})
	s.AddRecommendation(models.Recommendation{
		ID: "rec-2", UserID: "user-2", Type: "education",
		Title:       "Bring card utilization under 30%",
		Rationale:   "Your Visa ending 4523 is at 68% utilization.",
		Persona:     highUtil,
		ActionItems: []string{"Pay down the balance before the statement date"},
		Priority:    "medium",
		CreatedAt:   models.At(fixtureEpoch.Add(time.Hour)), UpdatedAt: models.At(fixtureEpoch.Add(time.Hour)),
	})
	s.AddRecommendation(models.Recommendation{
		ID: "rec-3", UserID: "user-3", Type: "partner_offer",
		Title:     "High-yield savings account",
		Rationale: "Your emergency fund covers 2.1 months of expenses.",
		Persona:   saver,
		Priority:  "low",
		CreatedAt: models.At(fixtureEpoch.Add(2 * time.Hour)), UpdatedAt: models.At(fixtureEpoch.Add(2 * time.Hour)),
	})
	s.AddRecommendation(models.Recommendation{
		ID: "rec-4", UserID: "user-1", Type: "education",
		Title:     "Set up automatic transfers on payday",
		Rationale: "Payroll deposits arrive every two weeks.",
		Persona:   subscriptionHeavy,
		CreatedAt: models.At(fixtureEpoch.Add(3 * time.Hour)), UpdatedAt: models.At(fixtureEpoch.Add(3 * time.Hour)),
	})

	for _, window := range models.SignalWindows {
		scale := float64(window) / 30
		m := signals.NewMap()
		m.Set("subscription_count", signals.Number(6))
		m.Set("subscription_monthly_spend", signals.Number(112.4))
		m.Set("subscription_share_of_spend", signals.Number(0.143))
		m.Set("savings_balance", signals.Number(2450*scale))
		m.Set("savings_growth_rate", signals.Number(0.021))
		m.Set("emergency_fund_months", signals.Number(2.1))
		m.Set("credit_utilization", signals.Number(0.68))
		m.Set("has_interest_charges", signals.Bool(true))
		m.Set("payroll_frequency", signals.String("biweekly"))
		m.Set("income_median_pay_gap_days", signals.Number(14))
		m.Set("recurring_merchants", signals.List(
			signals.String("Netflix"), signals.String("Spotify"), signals.String("Gym"),
		))
		cards := signals.NewMap()
		cards.Set("visa_4523", signals.Number(0.68))
		cards.Set("amex_1001", signals.Number(0.12))
		m.Set("credit_cards", signals.MapValue(cards))
		m.Set("last_overdraft", signals.Null())
		s.SetSignals("user-1", window, m)
	}

	features := signals.NewMap()
	features.Set("subscription_count", signals.Number(6))
	features.Set("credit_utilization", signals.Number(0.68))
	s.AddTrace("user-1", models.DecisionTrace{
		AssignedPersona: "subscription_heavy",
		PrimaryPersona:  "subscription_heavy",
		Evidence:        []string{"subscription_count >= 3", "subscription_share_of_spend >= 10%"},
		FeatureSnapshot: features,
		Rationale:       "Recurring spend dominates discretionary outflow.",
		CreatedAt:       models.At(fixtureEpoch),
	})
}

// insightPayload builds a canned insight body for a kind.
func insightPayload(kind models.InsightKind, userID string) *signals.Map {
	m := signals.NewMap()
	m.Set("user_id", signals.String(userID))
	switch kind {
	case models.InsightWeeklyRecap:
		m.Set("week_start", signals.String("2025-02-24"))
		m.Set("total_spent", signals.Number(684.2))
		m.Set("top_categories", signals.List(signals.String("Groceries"), signals.String("Dining")))
	case models.InsightSpendingAnalysis:
		m.Set("months_analyzed", signals.Number(6))
		m.Set("average_monthly_spend", signals.Number(2890.55))
		m.Set("discretionary_share", signals.Number(0.34))
	case models.InsightNetWorth, models.InsightNetWorthHistory:
		m.Set("net_worth", signals.Number(18250))
		m.Set("assets", signals.Number(24100))
		m.Set("liabilities", signals.Number(5850))
	case models.InsightSuggestedBudget, models.InsightGenerateBudget:
		m.Set("month", signals.String("2025-03"))
		m.Set("total_budget", signals.Number(3100))
		cats := signals.NewMap()
		cats.Set("groceries", signals.Number(520))
		cats.Set("dining", signals.Number(240))
		m.Set("categories", signals.MapValue(cats))
	case models.InsightBudgetTracking, models.InsightBudgetHistory:
		m.Set("month", signals.String("2025-03"))
		m.Set("spent", signals.Number(1210))
		m.Set("budget", signals.Number(3100))
		m.Set("on_track", signals.Bool(true))
	}
	return m
}
