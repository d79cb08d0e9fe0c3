package chart

import (
	"github.com/lox/stockcast/internal/accuracy"
	"github.com/lox/stockcast/internal/htmlutil"
)

// FromTrend splits trend points into one series per location, keeping the
// first-seen location order.
func FromTrend(points []accuracy.TrendPoint) []Series {
	var order []string
	byLoc := make(map[string][]Point)
	for _, p := range points {
		if _, ok := byLoc[p.Location]; !ok {
			order = append(order, p.Location)
		}
		byLoc[p.Location] = append(byLoc[p.Location], Point{
			Period:   p.Period,
			Actual:   p.Actual,
			Forecast: p.Forecast,
			Lower:    p.Lower,
			Upper:    p.Upper,
		})
	}

	series := make([]Series, 0, len(order))
	for i, loc := range order {
		series = append(series, Series{
			Name:   htmlutil.DisplayName(loc),
			Color:  ColorFor(loc, i),
			Points: byLoc[loc],
		})
	}
	return series
}
