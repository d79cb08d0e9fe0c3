// Package advisor classifies warehouse demand from business profiles and maps
// each (warehouse, condition) to a recommended action.
package advisor

import (
	"fmt"
	"sort"
	"time"

	"github.com/lox/stockcast/internal/models"
)

// Thresholds drive ClassifyDemand. Accuracy and fulfilment-error values are
// percentages.
type Thresholds struct {
	HighAccuracyMin     float64 `yaml:"high_accuracy_min" json:"high_accuracy_min"`
	HighFCRBelow        float64 `yaml:"high_fcr_below" json:"high_fcr_below"`
	ModerateAccuracyMin float64 `yaml:"moderate_accuracy_min" json:"moderate_accuracy_min"`
	ModerateFCRMin      float64 `yaml:"moderate_fcr_min" json:"moderate_fcr_min"`
	ModerateFCRMax      float64 `yaml:"moderate_fcr_max" json:"moderate_fcr_max"`
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		HighAccuracyMin:     82.0,
		HighFCRBelow:        3.0,
		ModerateAccuracyMin: 75.0,
		ModerateFCRMin:      3.0,
		ModerateFCRMax:      4.0,
	}
}

func (t Thresholds) Validate() error {
	if t.ModerateAccuracyMin > t.HighAccuracyMin {
		return fmt.Errorf("thresholds: moderate_accuracy_min %v exceeds high_accuracy_min %v", t.ModerateAccuracyMin, t.HighAccuracyMin)
	}
	if t.ModerateFCRMin > t.ModerateFCRMax {
		return fmt.Errorf("thresholds: moderate_fcr_min %v exceeds moderate_fcr_max %v", t.ModerateFCRMin, t.ModerateFCRMax)
	}
	if t.HighFCRBelow <= 0 {
		return fmt.Errorf("thresholds: high_fcr_below must be positive")
	}
	return nil
}

// ClassifyDemand applies the rules in priority order: strong accuracy with a low
// fulfilment-error rate is High; accuracy in the moderate band or an error rate
// in the moderate band is Moderate; anything else is Low.
func ClassifyDemand(accuracyPct, fcrPct float64, t Thresholds) models.DemandCondition {
	switch {
	case accuracyPct >= t.HighAccuracyMin && fcrPct < t.HighFCRBelow:
		return models.DemandHigh
	case (accuracyPct >= t.ModerateAccuracyMin && accuracyPct < t.HighAccuracyMin) ||
		(fcrPct >= t.ModerateFCRMin && fcrPct <= t.ModerateFCRMax):
		return models.DemandModerate
	default:
		return models.DemandLow
	}
}

// Advisor turns business profiles into recommendations.
type Advisor struct {
	Thresholds Thresholds
	Rules      Rules
}

func New(t Thresholds, rules Rules) *Advisor {
	return &Advisor{Thresholds: t, Rules: rules}
}

// Latest keeps the most recent profile per location (ties keep the later
// entry), ordered by location.
func Latest(profiles []models.Profile) []models.Profile {
	latest := make(map[string]models.Profile)
	for _, p := range profiles {
		loc := models.NormalizeLocation(p.Location)
		p.Location = loc
		if cur, ok := latest[loc]; ok && p.AsOf.Before(cur.AsOf) {
			continue
		}
		latest[loc] = p
	}

	out := make([]models.Profile, 0, len(latest))
	for _, p := range latest {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Location < out[j].Location })
	return out
}

// Advise classifies each location from its latest profile and looks up the
// matching action. Locations without a rule are returned as gaps rather than
// given a guessed recommendation.
func (a *Advisor) Advise(profiles []models.Profile) ([]models.Recommendation, []string) {
	var (
		recs []models.Recommendation
		gaps []string
	)
	for _, p := range Latest(profiles) {
		cond := ClassifyDemand(p.AccuracyPct, p.FCRPct, a.Thresholds)
		action, ok := a.Rules.Recommend(p.Location, cond)
		if !ok {
			gaps = append(gaps, p.Location)
			continue
		}
		recs = append(recs, models.Recommendation{
			Location:       p.Location,
			Condition:      cond,
			PriorityAction: action.Priority,
			NextStep:       action.NextStep,
			AccuracyPct:    p.AccuracyPct,
			FCRPct:         p.FCRPct,
		})
	}
	return recs, gaps
}

// DefaultProfiles is the business snapshot shipped with the dashboard, used
// when no profiles are configured.
func DefaultProfiles() []models.Profile {
	asOf := time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC)
	return []models.Profile{
		{Location: "nickolson", AsOf: asOf, AccuracyPct: 83.7, FCRPct: 2.85, CPO: 28451, MonthlyCost: 1223372, ROIPct: 58.7},
		{Location: "thompson", AsOf: asOf, AccuracyPct: 80.9, FCRPct: 3.35, CPO: 50268, MonthlyCost: 2629838, ROIPct: 126.2},
		{Location: "bakers", AsOf: asOf, AccuracyPct: 74.2, FCRPct: 4.51, CPO: 54097, MonthlyCost: 1512021, ROIPct: 72.6},
	}
}
