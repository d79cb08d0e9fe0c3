package accuracy

import (
	"database/sql"
	"math"
	"time"

	"github.com/lox/stockcast/internal/models"
)

// KPIs are the dashboard headline figures.
type KPIs struct {
	TotalSales   float64
	AverageSales float64 // mean weekly actual across (location, period) observations
	Weeks        int     // distinct periods with an actual
	MAE          float64
	HasMAE       bool
}

// ComputeKPIs counts each (location, period) actual once even when several
// model variants repeat it. MAE is taken over all paired records.
func ComputeKPIs(records []models.ReconciledRecord) KPIs {
	var k KPIs

	seen := make(map[models.SeriesKey]bool)
	periods := make(map[int64]bool)
	n := 0
	for _, r := range records {
		if !r.HasActual() {
			continue
		}
		key := models.SeriesKey{Location: r.Location, Period: r.Period}
		if seen[key] {
			continue
		}
		seen[key] = true
		k.TotalSales += r.Actual.Float64
		periods[r.Period.Unix()] = true
		n++
	}
	if n > 0 {
		k.AverageSales = k.TotalSales / float64(n)
	}
	k.Weeks = len(periods)

	var absSum float64
	paired := 0
	for _, r := range records {
		if r.Paired() {
			absSum += math.Abs(r.Actual.Float64 - r.Forecast.Float64)
			paired++
		}
	}
	if paired > 0 {
		k.MAE = absSum / float64(paired)
		k.HasMAE = true
	}
	return k
}

// TrendPoint is one (period, location) sample of the trend chart.
type TrendPoint struct {
	Period   time.Time
	Location string
	Actual   sql.NullFloat64
	Forecast sql.NullFloat64
	Lower    sql.NullFloat64
	Upper    sql.NullFloat64
}

type mean struct {
	sum float64
	n   int
}

func (m *mean) add(v sql.NullFloat64) {
	if v.Valid {
		m.sum += v.Float64
		m.n++
	}
}

func (m mean) value() sql.NullFloat64 {
	if m.n == 0 {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: m.sum / float64(m.n), Valid: true}
}

// Trend collapses model variants to one point per (period, location). The
// actual is taken once; forecast and band are averaged across the variants
// present. Records must already be in reconciled order.
func Trend(records []models.ReconciledRecord) []TrendPoint {
	type agg struct {
		point                  TrendPoint
		forecast, lower, upper mean
	}

	var order []models.SeriesKey
	groups := make(map[models.SeriesKey]*agg)
	for _, r := range records {
		key := models.SeriesKey{Location: r.Location, Period: r.Period}
		g := groups[key]
		if g == nil {
			g = &agg{point: TrendPoint{Period: r.Period, Location: r.Location}}
			groups[key] = g
			order = append(order, key)
		}
		if !g.point.Actual.Valid && r.Actual.Valid {
			g.point.Actual = r.Actual
		}
		g.forecast.add(r.Forecast)
		g.lower.add(r.Lower)
		g.upper.add(r.Upper)
	}

	out := make([]TrendPoint, 0, len(order))
	for _, key := range order {
		g := groups[key]
		p := g.point
		p.Forecast = g.forecast.value()
		p.Lower = g.lower.value()
		p.Upper = g.upper.value()
		out = append(out, p)
	}
	return out
}
