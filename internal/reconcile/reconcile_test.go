package reconcile

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/lox/stockcast/internal/models"
)

func week(n int) time.Time {
	return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, 7*n)
}

func point(v float64) sql.NullFloat64 {
	return sql.NullFloat64{Float64: v, Valid: true}
}

func TestReconcile_FullOverlap(t *testing.T) {
	obs := []models.Observation{
		{Location: "Nickolson", Period: week(0), Quantity: 100},
		{Location: "Nickolson", Period: week(1), Quantity: 120},
	}
	fc := []models.ForecastPoint{
		{Location: "nickolson ", Period: week(0), Model: "M1", Point: point(90)},
		{Location: "NICKOLSON", Period: week(1), Model: "m1", Point: point(130)},
	}

	got, err := Reconcile(obs, fc)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	for i, r := range got {
		if r.Location != "nickolson" {
			t.Errorf("[%d] Location = %q, want nickolson", i, r.Location)
		}
		if r.Model != "m1" {
			t.Errorf("[%d] Model = %q, want m1", i, r.Model)
		}
		if !r.Paired() {
			t.Errorf("[%d] expected both sides present", i)
		}
	}
	if got[0].Actual.Float64 != 100 || got[0].Forecast.Float64 != 90 {
		t.Errorf("first record = %+v", got[0])
	}
}

func TestReconcile_DisjointInputs(t *testing.T) {
	obs := []models.Observation{
		{Location: "bakers", Period: week(0), Quantity: 10},
		{Location: "bakers", Period: week(1), Quantity: 11},
		{Location: "thompson", Period: week(0), Quantity: 12},
	}
	fc := []models.ForecastPoint{
		{Location: "bakers", Period: week(5), Model: "arima", Point: point(9)},
		{Location: "nickolson", Period: week(0), Model: "arima", Point: point(9)},
	}

	got, err := Reconcile(obs, fc)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if len(got) != len(obs)+len(fc) {
		t.Fatalf("len = %d, want %d", len(got), len(obs)+len(fc))
	}
	for i, r := range got {
		if r.HasActual() == r.HasForecast() {
			t.Errorf("[%d] expected exactly one side populated: %+v", i, r)
		}
	}
}

func TestReconcile_KeySetIsUnion(t *testing.T) {
	obs := []models.Observation{
		{Location: "bakers", Period: week(0), Quantity: 10},
		{Location: "bakers", Period: week(1), Quantity: 11},
		{Location: "thompson", Period: week(2), Quantity: 12},
	}
	fc := []models.ForecastPoint{
		{Location: "bakers", Period: week(1), Model: "a", Point: point(9)},
		{Location: "bakers", Period: week(1), Model: "b", Point: point(8)},
		{Location: "thompson", Period: week(3), Model: "a", Point: point(9)},
		{Location: "", Period: week(0), Model: "a", Point: point(1)},
	}

	got, err := Reconcile(obs, fc)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}

	want := map[string]bool{}
	for _, o := range obs {
		want[models.SeriesKey{Location: o.Location, Period: o.Period}.String()] = true
	}
	for _, f := range fc {
		want[models.SeriesKey{Location: models.NormalizeLocation(f.Location), Period: f.Period}.String()] = true
	}

	keys := Keys(got)
	if len(keys) != len(want) {
		t.Fatalf("got %d keys, want %d: %v", len(keys), len(want), keys)
	}
	for _, k := range keys {
		if !want[k.String()] {
			t.Errorf("unexpected key %s", k)
		}
	}

	// the bakers/week1 observation joins both variants
	paired := 0
	for _, r := range got {
		if r.Location == "bakers" && r.Period.Equal(week(1)) {
			if !r.Paired() || r.Actual.Float64 != 11 {
				t.Errorf("bakers week1 record = %+v", r)
			}
			paired++
		}
	}
	if paired != 2 {
		t.Errorf("bakers week1 records = %d, want 2", paired)
	}
}

func TestReconcile_Ordering(t *testing.T) {
	obs := []models.Observation{
		{Location: "thompson", Period: week(1), Quantity: 1},
		{Location: "bakers", Period: week(1), Quantity: 2},
		{Location: "thompson", Period: week(0), Quantity: 3},
	}
	fc := []models.ForecastPoint{
		{Location: "bakers", Period: week(1), Model: "zeta", Point: point(1)},
		{Location: "bakers", Period: week(1), Model: "alpha", Point: point(1)},
		{Location: "nickolson", Period: week(0), Model: "alpha", Point: point(1)},
	}

	got, err := Reconcile(obs, fc)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}

	var order []string
	for _, r := range got {
		order = append(order, fmt.Sprintf("%d/%s/%s", int(r.Period.Sub(week(0)).Hours()/(24*7)), r.Location, r.Model))
	}
	want := []string{
		"0/nickolson/alpha",
		"0/thompson/",
		"1/bakers/alpha",
		"1/bakers/zeta",
		"1/thompson/",
	}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("order[%d] = %s, want %s", i, order[i], want[i])
		}
	}
}

func TestReconcile_UnknownLocationFallback(t *testing.T) {
	fc := []models.ForecastPoint{{Location: "  ", Period: week(0), Model: "m", Point: point(1)}}

	got, err := Reconcile(nil, fc)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if len(got) != 1 || got[0].Location != models.UnknownLocation {
		t.Fatalf("got %+v, want one record at %q", got, models.UnknownLocation)
	}
}

func TestReconcile_MissingBoundsStayNull(t *testing.T) {
	obs := []models.Observation{{Location: "a", Period: week(0), Quantity: 5}}
	fc := []models.ForecastPoint{{Location: "a", Period: week(0), Model: "m", Point: point(4)}}

	got, err := Reconcile(obs, fc)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if got[0].Lower.Valid || got[0].Upper.Valid {
		t.Errorf("bounds should be null, got %+v", got[0])
	}
}

func TestReconcile_ZeroPeriod(t *testing.T) {
	tests := []struct {
		name       string
		obs        []models.Observation
		fc         []models.ForecastPoint
		wantSource string
	}{
		{
			name:       "observation without period",
			obs:        []models.Observation{{Location: "a", Quantity: 1}},
			wantSource: "observations",
		},
		{
			name:       "forecast without period",
			fc:         []models.ForecastPoint{{Location: "a", Model: "m"}},
			wantSource: "forecasts",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Reconcile(tt.obs, tt.fc)
			var mie *models.MalformedInputError
			if !errors.As(err, &mie) {
				t.Fatalf("err = %v, want MalformedInputError", err)
			}
			if mie.Column != "date" || mie.Source != tt.wantSource {
				t.Errorf("got column %q source %q", mie.Column, mie.Source)
			}
		})
	}
}

func TestReconcile_Empty(t *testing.T) {
	got, err := Reconcile(nil, nil)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("len = %d, want 0", len(got))
	}
}

func TestReconcile_NonUTCPeriodsJoin(t *testing.T) {
	jakarta := time.FixedZone("WIB", 7*3600)
	obs := []models.Observation{{Location: "a", Period: week(0).In(jakarta), Quantity: 5}}
	fc := []models.ForecastPoint{{Location: "a", Period: week(0), Model: "m", Point: point(4)}}

	got, err := Reconcile(obs, fc)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if len(got) != 1 || !got[0].Paired() {
		t.Fatalf("expected a single paired record, got %+v", got)
	}
}
