package advisor

import (
	"fmt"

	"github.com/lox/stockcast/internal/models"
)

type Action struct {
	Priority string `yaml:"priority" json:"priority"`
	NextStep string `yaml:"next_step" json:"next_step"`
}

// Rule gives the action for a location when its condition is the expected one
// (Match) and for every other condition (Fallback).
type Rule struct {
	Location string                 `yaml:"warehouse" json:"warehouse"`
	Expected models.DemandCondition `yaml:"expected" json:"expected"`
	Match    Action                 `yaml:"match" json:"match"`
	Fallback Action                 `yaml:"fallback" json:"fallback"`
}

type Rules []Rule

func DefaultRules() Rules {
	return Rules{
		{
			Location: "nickolson",
			Expected: models.DemandHigh,
			Match: Action{
				Priority: "Smoothly scale staffing and just-in-time replenishment",
				NextStep: "Lock favorable shipping rates; steady reorder policy",
			},
			Fallback: Action{
				Priority: "Maintain steady workforce and monitor restock rate",
				NextStep: "Review inventory buffer policy",
			},
		},
		{
			Location: "thompson",
			Expected: models.DemandModerate,
			Match: Action{
				Priority: "Use flexible workforce; monitor promo impact closely",
				NextStep: "Coordinate with marketing on promo timing",
			},
			Fallback: Action{
				Priority: "Deploy temporary staff and adjust replenishment window",
				NextStep: "Strengthen logistics monitoring",
			},
		},
		{
			Location: "bakers",
			Expected: models.DemandLow,
			Match: Action{
				Priority: "Tighten procurement; implement micro-promos",
				NextStep: "Audit SKU-level performance & reduce slow movers",
			},
			Fallback: Action{
				Priority: "Stabilize order flow and reduce lead-time variance",
				NextStep: "Reassess supplier contracts",
			},
		},
	}
}

// Recommend looks up the rule for location. It reports false when no rule
// exists; callers surface that as a gap.
func (rs Rules) Recommend(location string, cond models.DemandCondition) (Action, bool) {
	loc := models.NormalizeLocation(location)
	for _, r := range rs {
		if models.NormalizeLocation(r.Location) != loc {
			continue
		}
		if r.Expected == cond {
			return r.Match, true
		}
		return r.Fallback, true
	}
	return Action{}, false
}

func (rs Rules) Validate() error {
	seen := make(map[string]bool, len(rs))
	for i, r := range rs {
		loc := models.NormalizeName(r.Location)
		if loc == "" {
			return fmt.Errorf("rule %d: warehouse is required", i)
		}
		if seen[loc] {
			return fmt.Errorf("rule %d: duplicate warehouse %q", i, loc)
		}
		seen[loc] = true
		if _, err := models.ParseDemandCondition(string(r.Expected)); err != nil {
			return fmt.Errorf("rule %d (%s): %w", i, loc, err)
		}
		if r.Match.Priority == "" || r.Fallback.Priority == "" {
			return fmt.Errorf("rule %d (%s): match and fallback priorities are required", i, loc)
		}
	}
	return nil
}
