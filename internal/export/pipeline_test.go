package export

import (
	"bytes"
	"database/sql"
	"testing"
	"time"

	"github.com/lox/stockcast/internal/accuracy"
	"github.com/lox/stockcast/internal/models"
	"github.com/lox/stockcast/internal/reconcile"
)

func nickolsonRows() ([]models.Observation, []models.ForecastPoint) {
	w1 := time.Date(2024, 1, 7, 0, 0, 0, 0, time.UTC)
	w2 := w1.AddDate(0, 0, 7)
	w3 := w2.AddDate(0, 0, 7)
	point := func(loc string, period time.Time, model string, v float64) models.ForecastPoint {
		return models.ForecastPoint{
			Location: loc,
			Period:   period,
			Model:    model,
			Point:    sql.NullFloat64{Float64: v, Valid: true},
		}
	}

	obs := []models.Observation{
		{Location: "nickolson", Period: w2, Quantity: 120},
		{Location: "nickolson", Period: w1, Quantity: 100},
		// no forecast for this week
		{Location: "nickolson", Period: w3, Quantity: 140},
	}
	fcs := []models.ForecastPoint{
		point("nickolson", w2, "m1", 130),
		point("nickolson", w1, "m1", 90),
		// a forecast with no actual is reconciled but never scored
		point("bakers", w1, "arima", 60),
	}
	return obs, fcs
}

// runPipeline reconciles raw rows, summarizes them and writes the CSV.
func runPipeline(t *testing.T) ([]byte, []models.MetricSummary) {
	t.Helper()
	obs, fcs := nickolsonRows()
	records, err := reconcile.Reconcile(obs, fcs)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	summaries := accuracy.Summarize(records, accuracy.DefaultBands())

	var buf bytes.Buffer
	if err := WriteCSV(&buf, summaries); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}
	return buf.Bytes(), summaries
}

func TestPipelineFromRawRows(t *testing.T) {
	first, summaries := runPipeline(t)
	second, _ := runPipeline(t)

	if !bytes.Equal(first, second) {
		t.Errorf("two runs over identical rows differ:\n%s\n---\n%s", first, second)
	}

	if len(summaries) != 1 {
		t.Fatalf("summaries = %+v, want only nickolson/m1", summaries)
	}
	s := summaries[0]
	if s.Location != "nickolson" || s.Model != "m1" || s.Count != 2 {
		t.Errorf("summary = %+v", s)
	}
	if s.MAE != 10 || s.RMSE != 10 || s.Bias != 0 {
		t.Errorf("MAE/RMSE/Bias = %v/%v/%v, want 10/10/0", s.MAE, s.RMSE, s.Bias)
	}

	want := "Warehouse,Model,MAE,RMSE,Bias,Interpretation\n" +
		"Nickolson,m1,10.00,10.00,0.00,Excellent accuracy\n"
	if string(first) != want {
		t.Errorf("csv =\n%s\nwant\n%s", first, want)
	}
}
