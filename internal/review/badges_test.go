package review

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/spendsense/operator-console/internal/models"
)

func TestRiskOrdering(t *testing.T) {
	levels := []string{"low", "UNKNOWN_LEVEL", "CRITICAL", "Medium", "MINIMAL", "HIGH"}
	sort.SliceStable(levels, func(i, j int) bool { return CompareRisk(levels[i], levels[j]) < 0 })
	assert.Equal(t, []string{"CRITICAL", "HIGH", "Medium", "low", "MINIMAL", "UNKNOWN_LEVEL"}, levels)

	_, known := RiskRank("bogus")
	assert.False(t, known)
}

func TestSortByRisk(t *testing.T) {
	recs := []models.Recommendation{
		{ID: "none"},
		{ID: "low", Persona: &models.Persona{RiskLevel: "LOW"}},
		{ID: "critical", Persona: &models.Persona{RiskLevel: "critical"}},
		{ID: "high-1", Persona: &models.Persona{RiskLevel: "HIGH"}},
		{ID: "high-2", Persona: &models.Persona{RiskLevel: "HIGH"}},
	}
	SortByRisk(recs)

	var ids []string
	for _, r := range recs {
		ids = append(ids, r.ID)
	}
	assert.Equal(t, []string{"critical", "high-1", "high-2", "low", "none"}, ids)
}

func TestPersonaLabel(t *testing.T) {
	assert.Equal(t, "No persona", PersonaLabel(nil))
	assert.Equal(t, "savings_builder", PersonaLabel(&models.Persona{ID: "savings_builder"}))
	assert.Equal(t, "Savings Builder", PersonaLabel(&models.Persona{ID: "savings_builder", Name: "Savings Builder"}))
	assert.Equal(t, "No persona", PersonaLabel(&models.Persona{}))
}

func TestBadges(t *testing.T) {
	rec := &models.Recommendation{
		ID:       "rec-1",
		Priority: "",
		Persona:  &models.Persona{ID: "p", RiskLevel: "high"},
		Approved: true,
		Flagged:  true,
	}

	got := Badges(rec)
	assert.Equal(t, []Badge{
		{Text: "p", Kind: BadgePersona},
		{Text: "HIGH", Kind: BadgeRiskHigh},
		{Text: "FLAGGED*", Kind: BadgeStatusFlagged},
		{Text: "-", Kind: BadgePriorityUnknown},
	}, got)

	assert.Equal(t, Badge{Text: "UNKNOWN", Kind: BadgeRiskUnknown}, RiskBadge(nil))
	assert.Equal(t, Badge{Text: "SEVERE", Kind: BadgeRiskUnknown}, RiskBadge(&models.Persona{RiskLevel: "severe"}))
	assert.Equal(t, Badge{Text: "URGENT", Kind: BadgePriorityUnknown}, PriorityBadge("urgent"))
	assert.Equal(t, Badge{Text: "PENDING", Kind: BadgeStatusPending}, StatusBadge(&models.Recommendation{}))
}
