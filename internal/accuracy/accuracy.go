// Package accuracy derives forecast error metrics from reconciled records.
// Everything here is pure and deterministic; values are unrounded.
package accuracy

import (
	"fmt"
	"math"
	"sort"

	"github.com/lox/stockcast/internal/models"
)

// Band labels every MAE below Below (and at or above the previous band's
// Below) with Label.
type Band struct {
	Below float64 `yaml:"below" json:"below"`
	Label string  `yaml:"label" json:"label"`
}

// Bands is an ascending threshold table plus the label for anything beyond the
// last threshold.
type Bands struct {
	Thresholds []Band `yaml:"thresholds" json:"thresholds"`
	Otherwise  string `yaml:"otherwise" json:"otherwise"`
}

func DefaultBands() Bands {
	return Bands{
		Thresholds: []Band{
			{Below: 100, Label: "Excellent accuracy"},
			{Below: 300, Label: "Good performance"},
			{Below: 600, Label: "Moderate accuracy"},
		},
		Otherwise: "Poor accuracy",
	}
}

// Interpret maps an MAE onto its band label.
func (b Bands) Interpret(mae float64) string {
	for _, t := range b.Thresholds {
		if mae < t.Below {
			return t.Label
		}
	}
	return b.Otherwise
}

func (b Bands) Validate() error {
	if b.Otherwise == "" {
		return fmt.Errorf("bands: otherwise label is required")
	}
	prev := 0.0
	for i, t := range b.Thresholds {
		if t.Label == "" {
			return fmt.Errorf("bands: threshold %d has no label", i)
		}
		if t.Below <= 0 || math.IsNaN(t.Below) {
			return fmt.Errorf("bands: threshold %d must be positive, got %v", i, t.Below)
		}
		if t.Below <= prev {
			return fmt.Errorf("bands: threshold %d (%v) is not above %v", i, t.Below, prev)
		}
		prev = t.Below
	}
	return nil
}

type partition struct {
	location, model string
}

type accumulator struct {
	n       int
	absSum  float64
	sqSum   float64
	biasSum float64
}

// Summarize computes MAE, RMSE and bias per (location, model) over paired
// records. Partitions with no paired record are omitted. Output is ordered by
// location then model.
func Summarize(records []models.ReconciledRecord, bands Bands) []models.MetricSummary {
	acc := make(map[partition]*accumulator)
	for _, r := range records {
		if !r.Paired() {
			continue
		}
		k := partition{r.Location, r.Model}
		a := acc[k]
		if a == nil {
			a = &accumulator{}
			acc[k] = a
		}
		d := r.Forecast.Float64 - r.Actual.Float64
		a.n++
		a.absSum += math.Abs(d)
		a.sqSum += d * d
		a.biasSum += d
	}

	keys := make([]partition, 0, len(acc))
	for k := range acc {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].location != keys[j].location {
			return keys[i].location < keys[j].location
		}
		return keys[i].model < keys[j].model
	})

	out := make([]models.MetricSummary, 0, len(keys))
	for _, k := range keys {
		a := acc[k]
		n := float64(a.n)
		mae := a.absSum / n
		out = append(out, models.MetricSummary{
			Location:       k.location,
			Model:          k.model,
			Count:          a.n,
			MAE:            mae,
			RMSE:           math.Sqrt(a.sqSum / n),
			Bias:           a.biasSum / n,
			Interpretation: bands.Interpret(mae),
		})
	}
	return out
}
