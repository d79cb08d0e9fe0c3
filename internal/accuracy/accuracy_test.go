package accuracy

import (
	"database/sql"
	"math"
	"testing"
	"time"

	"github.com/lox/stockcast/internal/models"
)

func week(n int) time.Time {
	return time.Date(2024, 1, 7, 0, 0, 0, 0, time.UTC).AddDate(0, 0, 7*n)
}

func nf(v float64) sql.NullFloat64 { return sql.NullFloat64{Float64: v, Valid: true} }

func rec(loc, model string, period int, actual, forecast *float64) models.ReconciledRecord {
	r := models.ReconciledRecord{Location: loc, Model: model, Period: week(period)}
	if actual != nil {
		r.Actual = nf(*actual)
	}
	if forecast != nil {
		r.Forecast = nf(*forecast)
	}
	return r
}

func f(v float64) *float64 { return &v }

func TestSummarizeNickolsonExample(t *testing.T) {
	records := []models.ReconciledRecord{
		rec("nickolson", "m1", 0, f(100), f(90)),
		rec("nickolson", "m1", 1, f(120), f(130)),
	}

	got := Summarize(records, DefaultBands())
	if len(got) != 1 {
		t.Fatalf("len = %d, want 1", len(got))
	}
	s := got[0]
	if s.MAE != 10 || s.RMSE != 10 || s.Bias != 0 {
		t.Errorf("MAE/RMSE/Bias = %v/%v/%v, want 10/10/0", s.MAE, s.RMSE, s.Bias)
	}
	if s.Interpretation != "Excellent accuracy" {
		t.Errorf("Interpretation = %q", s.Interpretation)
	}
	if s.Count != 2 {
		t.Errorf("Count = %d, want 2", s.Count)
	}
}

func TestSummarizeOmitsUnpairedPartitions(t *testing.T) {
	records := []models.ReconciledRecord{
		rec("bakers", "m1", 0, f(100), nil),
		rec("bakers", "m2", 0, nil, f(100)),
		rec("bakers", "", 1, f(80), nil),
		rec("thompson", "m1", 0, f(50), f(40)),
		rec("thompson", "m1", 1, nil, f(40)),
	}

	got := Summarize(records, DefaultBands())
	if len(got) != 1 {
		t.Fatalf("got %+v, want only thompson/m1", got)
	}
	if got[0].Location != "thompson" || got[0].Count != 1 || got[0].Bias != -10 {
		t.Errorf("summary = %+v", got[0])
	}
}

func TestSummarizeOrderingAndProperties(t *testing.T) {
	records := []models.ReconciledRecord{
		rec("thompson", "b", 0, f(100), f(400)),
		rec("thompson", "b", 1, f(100), f(100)),
		rec("bakers", "z", 0, f(1000), f(300)),
		rec("bakers", "a", 0, f(10), f(12)),
		rec("bakers", "a", 1, f(10), f(4)),
		rec("bakers", "a", 2, f(10), f(10)),
	}

	got := Summarize(records, DefaultBands())
	wantOrder := []string{"bakers/a", "bakers/z", "thompson/b"}
	if len(got) != len(wantOrder) {
		t.Fatalf("len = %d, want %d", len(got), len(wantOrder))
	}
	for i, s := range got {
		if key := s.Location + "/" + s.Model; key != wantOrder[i] {
			t.Errorf("got[%d] = %s, want %s", i, key, wantOrder[i])
		}
		if s.MAE < 0 || s.RMSE < 0 {
			t.Errorf("%s: negative error metric %+v", wantOrder[i], s)
		}
		if s.RMSE+1e-9 < s.MAE {
			t.Errorf("%s: RMSE %v < MAE %v", wantOrder[i], s.RMSE, s.MAE)
		}
	}

	if got[1].Interpretation != "Poor accuracy" {
		t.Errorf("bakers/z interpretation = %q, want Poor accuracy", got[1].Interpretation)
	}
	if got[2].Interpretation != "Good performance" {
		t.Errorf("thompson/b interpretation = %q, want Good performance", got[2].Interpretation)
	}
	// bakers/a: |2|, |6|, |0| -> MAE 8/3, RMSE sqrt(40/3), bias (2-6+0)/3
	if math.Abs(got[0].MAE-8.0/3) > 1e-9 || math.Abs(got[0].RMSE-math.Sqrt(40.0/3)) > 1e-9 {
		t.Errorf("bakers/a = %+v", got[0])
	}
	if math.Abs(got[0].Bias-(-4.0/3)) > 1e-9 {
		t.Errorf("bakers/a bias = %v, want %v", got[0].Bias, -4.0/3)
	}
}

func TestSummarizeEmpty(t *testing.T) {
	if got := Summarize(nil, DefaultBands()); len(got) != 0 {
		t.Errorf("got %+v, want empty", got)
	}
}

func TestBandsInterpret(t *testing.T) {
	b := DefaultBands()
	tests := []struct {
		mae  float64
		want string
	}{
		{0, "Excellent accuracy"},
		{99.99, "Excellent accuracy"},
		{100, "Good performance"},
		{299.5, "Good performance"},
		{300, "Moderate accuracy"},
		{599.99, "Moderate accuracy"},
		{600, "Poor accuracy"},
		{1e9, "Poor accuracy"},
	}
	for _, tt := range tests {
		if got := b.Interpret(tt.mae); got != tt.want {
			t.Errorf("Interpret(%v) = %q, want %q", tt.mae, got, tt.want)
		}
	}
}

func TestBandsValidate(t *testing.T) {
	tests := []struct {
		name    string
		bands   Bands
		wantErr bool
	}{
		{"default", DefaultBands(), false},
		{"no thresholds", Bands{Otherwise: "Anything"}, false},
		{"descending", Bands{Thresholds: []Band{{Below: 300, Label: "a"}, {Below: 100, Label: "b"}}, Otherwise: "c"}, true},
		{"duplicate", Bands{Thresholds: []Band{{Below: 100, Label: "a"}, {Below: 100, Label: "b"}}, Otherwise: "c"}, true},
		{"negative", Bands{Thresholds: []Band{{Below: -1, Label: "a"}}, Otherwise: "c"}, true},
		{"unlabelled", Bands{Thresholds: []Band{{Below: 10}}, Otherwise: "c"}, true},
		{"no otherwise", Bands{Thresholds: []Band{{Below: 10, Label: "a"}}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.bands.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestFilter(t *testing.T) {
	records := []models.ReconciledRecord{
		rec("bakers", "m1", 0, f(1), f(1)),
		rec("bakers", "m2", 1, f(1), f(1)),
		rec("thompson", "m1", 2, f(1), f(1)),
		rec("thompson", "", 3, f(1), nil),
	}

	tests := []struct {
		name   string
		filter Filter
		want   int
	}{
		{"zero filter", Filter{}, 4},
		{"all selectors", Filter{Location: "All", Model: "all"}, 4},
		{"location", Filter{Location: "Bakers"}, 2},
		{"model", Filter{Model: "M1"}, 2},
		{"location and model", Filter{Location: "bakers", Model: "m2"}, 1},
		{"inclusive start", Filter{Start: week(2)}, 2},
		{"inclusive end", Filter{End: week(1)}, 2},
		{"single day window", Filter{Start: week(1), End: week(1)}, 1},
		{"no match", Filter{Location: "nickolson"}, 0},
		{"inverted window", Filter{Start: week(3), End: week(0)}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.filter.Apply(records)
			if got == nil {
				t.Fatal("Apply returned nil")
			}
			if len(got) != tt.want {
				t.Errorf("len = %d, want %d", len(got), tt.want)
			}
		})
	}
}

func TestOptions(t *testing.T) {
	records := []models.ReconciledRecord{
		rec("thompson", "m2", 0, f(1), f(1)),
		rec("bakers", "m1", 0, f(1), f(1)),
		rec("bakers", "", 1, f(1), nil),
		rec("thompson", "m1", 1, f(1), f(1)),
	}
	locs := Locations(records)
	if len(locs) != 2 || locs[0] != "bakers" || locs[1] != "thompson" {
		t.Errorf("Locations = %v", locs)
	}
	ms := Models(records)
	if len(ms) != 2 || ms[0] != "m1" || ms[1] != "m2" {
		t.Errorf("Models = %v", ms)
	}

	start, end, ok := DateRange(records)
	if !ok || !start.Equal(week(0)) || !end.Equal(week(1)) {
		t.Errorf("DateRange = %v %v %v", start, end, ok)
	}
	if _, _, ok := DateRange(nil); ok {
		t.Error("DateRange(nil) ok = true")
	}
}

func TestComputeKPIs(t *testing.T) {
	records := []models.ReconciledRecord{
		rec("nickolson", "m1", 0, f(100), f(90)),
		rec("nickolson", "m2", 0, f(100), f(120)),
		rec("nickolson", "m1", 1, f(120), f(130)),
		rec("bakers", "", 1, f(60), nil),
		rec("bakers", "m1", 2, nil, f(70)),
	}

	k := ComputeKPIs(records)
	if k.TotalSales != 280 {
		t.Errorf("TotalSales = %v, want 280", k.TotalSales)
	}
	if math.Abs(k.AverageSales-280.0/3) > 1e-9 {
		t.Errorf("AverageSales = %v, want %v", k.AverageSales, 280.0/3)
	}
	if k.Weeks != 2 {
		t.Errorf("Weeks = %d, want 2", k.Weeks)
	}
	if !k.HasMAE || math.Abs(k.MAE-40.0/3) > 1e-9 {
		t.Errorf("MAE = %v (%v), want %v", k.MAE, k.HasMAE, 40.0/3)
	}

	empty := ComputeKPIs(nil)
	if empty.HasMAE || empty.TotalSales != 0 || empty.AverageSales != 0 {
		t.Errorf("empty KPIs = %+v", empty)
	}
}

func TestTrend(t *testing.T) {
	r1 := rec("nickolson", "m1", 0, f(100), f(90))
	r1.Lower, r1.Upper = nf(80), nf(100)
	r2 := rec("nickolson", "m2", 0, f(100), f(110))
	r2.Lower, r2.Upper = nf(100), nf(120)
	records := []models.ReconciledRecord{
		r1, r2,
		rec("bakers", "", 1, f(60), nil),
		rec("nickolson", "m1", 1, nil, f(95)),
	}

	got := Trend(records)
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}

	p := got[0]
	if p.Actual.Float64 != 100 || p.Forecast.Float64 != 100 || p.Lower.Float64 != 90 || p.Upper.Float64 != 110 {
		t.Errorf("nickolson week0 = %+v", p)
	}
	if got[1].Location != "bakers" || got[1].Forecast.Valid {
		t.Errorf("bakers week1 = %+v, want null forecast", got[1])
	}
	if got[2].Actual.Valid || got[2].Forecast.Float64 != 95 {
		t.Errorf("nickolson week1 = %+v", got[2])
	}
}
