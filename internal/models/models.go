package models

import (
	"database/sql"
	"fmt"
	"math"
	"strings"
	"time"
)

// UnknownLocation is assigned to forecast rows whose source has no location field.
const UnknownLocation = "unknown"

type Observation struct {
	Location string
	Period   time.Time
	Quantity int64
}

type ForecastPoint struct {
	Location string
	Period   time.Time
	Model    string
	Point    sql.NullFloat64
	Lower    sql.NullFloat64
	Upper    sql.NullFloat64
}

// ReconciledRecord is one row of the outer join of observations and forecasts on
// (location, period). Either side may be null.
type ReconciledRecord struct {
	Location string
	Period   time.Time
	Model    string // empty when no forecast matched
	Actual   sql.NullFloat64
	Forecast sql.NullFloat64
	Lower    sql.NullFloat64
	Upper    sql.NullFloat64
}

func (r ReconciledRecord) HasActual() bool   { return r.Actual.Valid }
func (r ReconciledRecord) HasForecast() bool { return r.Forecast.Valid }

// Paired reports whether both actual and forecast are present.
func (r ReconciledRecord) Paired() bool { return r.Actual.Valid && r.Forecast.Valid }

// SeriesKey identifies a (location, period) pair.
type SeriesKey struct {
	Location string
	Period   time.Time
}

func (k SeriesKey) String() string {
	return k.Location + "@" + k.Period.Format("2006-01-02")
}

type MetricSummary struct {
	Location       string
	Model          string
	Count          int // paired records contributing
	MAE            float64
	RMSE           float64
	Bias           float64
	Interpretation string
}

// Rounded returns a copy with the numeric fields rounded to 2 decimal places.
// Only for presentation; computations keep full precision.
func (m MetricSummary) Rounded() MetricSummary {
	m.MAE = Round2(m.MAE)
	m.RMSE = Round2(m.RMSE)
	m.Bias = Round2(m.Bias)
	return m
}

func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

type DemandCondition string

const (
	DemandHigh     DemandCondition = "high"
	DemandModerate DemandCondition = "moderate"
	DemandLow      DemandCondition = "low"
)

func (c DemandCondition) String() string {
	switch c {
	case DemandHigh:
		return "High Demand"
	case DemandModerate:
		return "Moderate Demand"
	case DemandLow:
		return "Low Demand"
	default:
		return string(c)
	}
}

// CSSClass returns the CSS class for styling
func (c DemandCondition) CSSClass() string {
	switch c {
	case DemandHigh:
		return "high"
	case DemandLow:
		return "low"
	default:
		return "moderate"
	}
}

// ParseDemandCondition accepts "high", "High Demand", "HIGH" and so on.
func ParseDemandCondition(s string) (DemandCondition, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	v = strings.TrimSuffix(v, " demand")
	switch DemandCondition(v) {
	case DemandHigh, DemandModerate, DemandLow:
		return DemandCondition(v), nil
	}
	return "", fmt.Errorf("unknown demand condition %q", s)
}

// Profile is a warehouse's business snapshot as of a date. The latest profile per
// location feeds demand classification.
type Profile struct {
	Location    string    `json:"warehouse"`
	AsOf        time.Time `json:"as_of"`
	AccuracyPct float64   `json:"accuracy_pct"`
	FCRPct      float64   `json:"fcr_pct"`
	CPO         float64   `json:"cpo"`
	MonthlyCost float64   `json:"monthly_cost"`
	ROIPct      float64   `json:"roi_pct"`
}

type Recommendation struct {
	Location       string          `json:"warehouse"`
	Condition      DemandCondition `json:"condition"`
	PriorityAction string          `json:"priority_action"`
	NextStep       string          `json:"next_step"`
	AccuracyPct    float64         `json:"accuracy_pct"`
	FCRPct         float64         `json:"fcr_pct"`
}
