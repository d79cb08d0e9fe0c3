package ingest

import (
	"encoding/json"

	"github.com/lox/stockcast/internal/models"
)

const (
	FlagQuantityNegative   = "quantity_negative"
	FlagBoundsInverted     = "bounds_inverted"
	FlagPointOutsideBounds = "point_outside_bounds"
	FlagPointMissing       = "point_missing"
	FlagPointNegative      = "point_negative"
)

// ValidateObservation returns quality flags for a sales row. Flagged rows are
// still loaded.
func ValidateObservation(obs *models.Observation) []string {
	var flags []string

	if obs.Quantity < 0 {
		flags = append(flags, FlagQuantityNegative)
	}

	return flags
}

func ValidateForecast(f *models.ForecastPoint) []string {
	var flags []string

	if !f.Point.Valid {
		flags = append(flags, FlagPointMissing)
	} else if f.Point.Float64 < 0 {
		flags = append(flags, FlagPointNegative)
	}

	if f.Lower.Valid && f.Upper.Valid && f.Lower.Float64 > f.Upper.Float64 {
		flags = append(flags, FlagBoundsInverted)
	} else if f.Point.Valid {
		if (f.Lower.Valid && f.Point.Float64 < f.Lower.Float64) ||
			(f.Upper.Valid && f.Point.Float64 > f.Upper.Float64) {
			flags = append(flags, FlagPointOutsideBounds)
		}
	}

	return flags
}

// QualityFlagsToJSON encodes flag counts for the load run audit table.
func QualityFlagsToJSON(counts map[string]int) string {
	if len(counts) == 0 {
		return ""
	}
	b, _ := json.Marshal(counts)
	return string(b)
}
