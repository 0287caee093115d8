package review

import (
	"sort"
	"strings"

	"github.com/spendsense/operator-console/internal/models"
)

// BadgeKind selects the style a badge is rendered with.
type BadgeKind string

const (
	BadgeRiskCritical BadgeKind = "risk-critical"
	BadgeRiskHigh     BadgeKind = "risk-high"
	BadgeRiskMedium   BadgeKind = "risk-medium"
	BadgeRiskLow      BadgeKind = "risk-low"
	BadgeRiskMinimal  BadgeKind = "risk-minimal"
	BadgeRiskUnknown  BadgeKind = "risk-unknown"

	BadgeStatusPending  BadgeKind = "status-pending"
	BadgeStatusApproved BadgeKind = "status-approved"
	BadgeStatusFlagged  BadgeKind = "status-flagged"
	BadgeStatusRejected BadgeKind = "status-rejected"

	BadgePriorityHigh    BadgeKind = "priority-high"
	BadgePriorityMedium  BadgeKind = "priority-medium"
	BadgePriorityLow     BadgeKind = "priority-low"
	BadgePriorityUnknown BadgeKind = "priority-unknown"

	BadgePersona BadgeKind = "persona"
)

// Badge is a short label with a style kind.
type Badge struct {
	Text string
	Kind BadgeKind
}

// RiskLevels in severity order, most severe first.
var RiskLevels = []string{"CRITICAL", "HIGH", "MEDIUM", "LOW", "MINIMAL"}

var riskKinds = map[string]BadgeKind{
	"CRITICAL": BadgeRiskCritical,
	"HIGH":     BadgeRiskHigh,
	"MEDIUM":   BadgeRiskMedium,
	"LOW":      BadgeRiskLow,
	"MINIMAL":  BadgeRiskMinimal,
}

// RiskRank returns the severity rank of a risk level (0 = CRITICAL) and
// whether the level is known. Unknown levels rank after MINIMAL.
func RiskRank(level string) (int, bool) {
	level = strings.ToUpper(strings.TrimSpace(level))
	for i, known := range RiskLevels {
		if level == known {
			return i, true
		}
	}
	return len(RiskLevels), false
}

// CompareRisk orders two risk levels, most severe first.
func CompareRisk(a, b string) int {
	ra, _ := RiskRank(a)
	rb, _ := RiskRank(b)
	return ra - rb
}

// SortByRisk orders recommendations by persona risk, most severe first.
// Recommendations without a persona sort last; ties keep their order.
func SortByRisk(recs []models.Recommendation) {
	level := func(r models.Recommendation) string {
		if r.Persona == nil {
			return ""
		}
		return r.Persona.RiskLevel
	}
	sort.SliceStable(recs, func(i, j int) bool {
		return CompareRisk(level(recs[i]), level(recs[j])) < 0
	})
}

// PersonaLabel prefers the persona's name over its identifier.
func PersonaLabel(p *models.Persona) string {
	switch {
	case p == nil:
		return "No persona"
	case strings.TrimSpace(p.Name) != "":
		return p.Name
	case p.ID != "":
		return p.ID
	default:
		return "No persona"
	}
}

// PersonaBadge is the persona label badge.
func PersonaBadge(p *models.Persona) Badge {
	return Badge{Text: PersonaLabel(p), Kind: BadgePersona}
}

// RiskBadge is the risk badge for a persona.
func RiskBadge(p *models.Persona) Badge {
	level := ""
	if p != nil {
		level = strings.ToUpper(strings.TrimSpace(p.RiskLevel))
	}
	if kind, ok := riskKinds[level]; ok {
		return Badge{Text: level, Kind: kind}
	}
	if level == "" {
		level = "UNKNOWN"
	}
	return Badge{Text: level, Kind: BadgeRiskUnknown}
}

// StatusBadge shows the recommendation's review state.
func StatusBadge(rec *models.Recommendation) Badge {
	st := rec.Status()
	text := strings.ToUpper(string(st))
	if rec.Inconsistent() {
		text += "*"
	}
	switch st {
	case models.StatusApproved:
		return Badge{Text: text, Kind: BadgeStatusApproved}
	case models.StatusFlagged:
		return Badge{Text: text, Kind: BadgeStatusFlagged}
	case models.StatusRejected:
		return Badge{Text: text, Kind: BadgeStatusRejected}
	default:
		return Badge{Text: text, Kind: BadgeStatusPending}
	}
}

// PriorityBadge shows high/medium/low, with a neutral fallback.
func PriorityBadge(priority string) Badge {
	p := strings.ToLower(strings.TrimSpace(priority))
	switch p {
	case "high":
		return Badge{Text: "HIGH", Kind: BadgePriorityHigh}
	case "medium":
		return Badge{Text: "MEDIUM", Kind: BadgePriorityMedium}
	case "low":
		return Badge{Text: "LOW", Kind: BadgePriorityLow}
	case "":
		return Badge{Text: "-", Kind: BadgePriorityUnknown}
	default:
		return Badge{Text: strings.ToUpper(p), Kind: BadgePriorityUnknown}
	}
}

// Badges returns the persona, risk, status and priority badges in display order.
func Badges(rec *models.Recommendation) []Badge {
	return []Badge{
		PersonaBadge(rec.Persona),
		RiskBadge(rec.Persona),
		StatusBadge(rec),
		PriorityBadge(rec.Priority),
	}
}
