// Package reconcile aligns observed sales and forecast series on (location, period).
package reconcile

import (
	"database/sql"
	"sort"
	"time"

	"github.com/lox/stockcast/internal/models"
)

// Reconcile performs a full outer join of observations and forecasts keyed on
// (normalized location, period). An observation matched by several model variants
// yields one record per variant. Inputs are not deduplicated.
//
// Output is ordered by period, then location, then model (empty model first).
func Reconcile(observations []models.Observation, forecasts []models.ForecastPoint) ([]models.ReconciledRecord, error) {
	actuals := make(map[models.SeriesKey][]int, len(observations))
	for i, o := range observations {
		if o.Period.IsZero() {
			return nil, &models.MalformedInputError{Source: "observations", Column: "date", Row: i + 1}
		}
		key := models.SeriesKey{Location: models.NormalizeLocation(o.Location), Period: normalizeTime(o.Period)}
		actuals[key] = append(actuals[key], i)
	}

	out := make([]models.ReconciledRecord, 0, len(observations)+len(forecasts))
	matched := make(map[models.SeriesKey]bool, len(actuals))

	for i, f := range forecasts {
		if f.Period.IsZero() {
			return nil, &models.MalformedInputError{Source: "forecasts", Column: "date", Row: i + 1}
		}
		key := models.SeriesKey{Location: models.NormalizeLocation(f.Location), Period: normalizeTime(f.Period)}
		base := models.ReconciledRecord{
			Location: key.Location,
			Period:   key.Period,
			Model:    models.NormalizeName(f.Model),
			Forecast: f.Point,
			Lower:    f.Lower,
			Upper:    f.Upper,
		}

		idx, ok := actuals[key]
		if !ok {
			out = append(out, base)
			continue
		}
		matched[key] = true
		for _, j := range idx {
			rec := base
			rec.Actual = quantity(observations[j].Quantity)
			out = append(out, rec)
		}
	}

	for _, o := range observations {
		key := models.SeriesKey{Location: models.NormalizeLocation(o.Location), Period: normalizeTime(o.Period)}
		if matched[key] {
			continue
		}
		out = append(out, models.ReconciledRecord{
			Location: key.Location,
			Period:   key.Period,
			Actual:   quantity(o.Quantity),
		})
	}

	Sort(out)
	return out, nil
}

// Sort orders records by period, location, then model. Ties beyond that keep
// their input order.
func Sort(records []models.ReconciledRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if !a.Period.Equal(b.Period) {
			return a.Period.Before(b.Period)
		}
		if a.Location != b.Location {
			return a.Location < b.Location
		}
		return a.Model < b.Model
	})
}

// Keys returns the distinct (location, period) keys present in records, in
// record order.
func Keys(records []models.ReconciledRecord) []models.SeriesKey {
	seen := make(map[models.SeriesKey]bool, len(records))
	var keys []models.SeriesKey
	for _, r := range records {
		k := models.SeriesKey{Location: r.Location, Period: normalizeTime(r.Period)}
		if seen[k] {
			continue
		}
		seen[k] = true
		keys = append(keys, k)
	}
	return keys
}

func quantity(q int64) sql.NullFloat64 {
	return sql.NullFloat64{Float64: float64(q), Valid: true}
}

// normalizeTime strips the monotonic clock reading and location so equal instants
// compare equal as map keys.
func normalizeTime(t time.Time) time.Time {
	return t.UTC().Round(0)
}
