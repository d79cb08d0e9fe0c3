package api

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"time"

	"github.com/lox/stockcast/internal/accuracy"
	"github.com/lox/stockcast/internal/ingest"
	"github.com/lox/stockcast/internal/metrics"
	"github.com/lox/stockcast/internal/models"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func nullable(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

type ReconciledJSON struct {
	Warehouse string   `json:"warehouse"`
	Period    string   `json:"period"`
	Model     string   `json:"model,omitempty"`
	Actual    *float64 `json:"actual"`
	Forecast  *float64 `json:"forecast"`
	Lower     *float64 `json:"lower"`
	Upper     *float64 `json:"upper"`
}

func (s *Server) handleAPIReconciled(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r.URL.Query(), accuracy.Filter{})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	records := f.Apply(s.dataset.Records)
	out := make([]ReconciledJSON, 0, len(records))
	for _, rec := range records {
		out = append(out, ReconciledJSON{
			Warehouse: rec.Location,
			Period:    rec.Period.Format(dateLayout),
			Model:     rec.Model,
			Actual:    nullable(rec.Actual),
			Forecast:  nullable(rec.Forecast),
			Lower:     nullable(rec.Lower),
			Upper:     nullable(rec.Upper),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

type SummaryJSON struct {
	Warehouse      string  `json:"warehouse"`
	Model          string  `json:"model"`
	Count          int     `json:"count"`
	MAE            float64 `json:"mae"`
	RMSE           float64 `json:"rmse"`
	Bias           float64 `json:"bias"`
	Interpretation string  `json:"interpretation"`
}

type KPIsJSON struct {
	TotalSales   float64  `json:"total_sales"`
	AverageSales float64  `json:"average_sales"`
	Weeks        int      `json:"weeks"`
	MAE          *float64 `json:"mae"`
}

type SummaryResponse struct {
	KPIs      KPIsJSON      `json:"kpis"`
	Summaries []SummaryJSON `json:"summaries"`
}

func (s *Server) handleAPISummary(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r.URL.Query(), accuracy.Filter{})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	done := recompute("api_summary")
	records := f.Apply(s.dataset.Records)
	kpis := accuracy.ComputeKPIs(records)
	summaries := accuracy.Summarize(records, s.cfg.Bands)
	done()

	resp := SummaryResponse{
		KPIs: KPIsJSON{
			TotalSales:   kpis.TotalSales,
			AverageSales: models.Round2(kpis.AverageSales),
			Weeks:        kpis.Weeks,
		},
		Summaries: make([]SummaryJSON, 0, len(summaries)),
	}
	if kpis.HasMAE {
		mae := models.Round2(kpis.MAE)
		resp.KPIs.MAE = &mae
	}
	for _, sum := range summaries {
		sum = sum.Rounded()
		resp.Summaries = append(resp.Summaries, SummaryJSON{
			Warehouse:      sum.Location,
			Model:          sum.Model,
			Count:          sum.Count,
			MAE:            sum.MAE,
			RMSE:           sum.RMSE,
			Bias:           sum.Bias,
			Interpretation: sum.Interpretation,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

type RecommendationsResponse struct {
	Recommendations []models.Recommendation `json:"recommendations"`
	Gaps            []string                `json:"gaps"`
}

func (s *Server) handleAPIRecommendations(w http.ResponseWriter, r *http.Request) {
	recs, gaps := s.advisor.Advise(s.cfg.Profiles)
	metrics.RecommendationGaps.Set(float64(len(gaps)))
	if recs == nil {
		recs = []models.Recommendation{}
	}
	if gaps == nil {
		gaps = []string{}
	}
	writeJSON(w, http.StatusOK, RecommendationsResponse{Recommendations: recs, Gaps: gaps})
}

type OptionsResponse struct {
	Warehouses []string `json:"warehouses"`
	Models     []string `json:"models"`
	Start      string   `json:"start,omitempty"`
	End        string   `json:"end,omitempty"`
}

func (s *Server) handleAPIOptions(w http.ResponseWriter, r *http.Request) {
	resp := OptionsResponse{
		Warehouses: append([]string{accuracy.All}, accuracy.Locations(s.dataset.Records)...),
		Models:     append([]string{accuracy.All}, accuracy.Models(s.dataset.Records)...),
	}
	if start, end, ok := accuracy.DateRange(s.dataset.Records); ok {
		resp.Start = start.Format(dateLayout)
		resp.End = end.Format(dateLayout)
	}
	writeJSON(w, http.StatusOK, resp)
}

type HealthStatus struct {
	Status   string      `json:"status"`
	LoadedAt time.Time   `json:"loaded_at"`
	Records  int         `json:"records"`
	Missing  []string    `json:"missing,omitempty"`
	LastRuns []RunHealth `json:"last_runs,omitempty"`
	Errors   []string    `json:"errors,omitempty"`
}

type RunHealth struct {
	Source    string    `json:"source"`
	StartedAt time.Time `json:"started_at"`
	Success   bool      `json:"success"`
	Missing   bool      `json:"missing"`
	Error     string    `json:"error,omitempty"`
}

// handleHealth reports "degraded" when a source is missing or nothing was
// loaded and "error" when the audit store is unreachable.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := HealthStatus{
		Status:   "ok",
		LoadedAt: s.dataset.LoadedAt,
		Records:  len(s.dataset.Records),
		Missing:  s.dataset.Missing,
	}
	if s.dataset.Empty() || s.dataset.IsMissing(ingest.SourceSales) || s.dataset.IsMissing(ingest.SourceForecast) {
		health.Status = "degraded"
	}

	if s.store != nil {
		if err := s.store.Ping(r.Context()); err != nil {
			health.Errors = append(health.Errors, "store: "+err.Error())
		} else if runs, err := s.store.LatestLoadRuns(); err != nil {
			health.Errors = append(health.Errors, "load runs: "+err.Error())
		} else {
			for _, run := range runs {
				health.LastRuns = append(health.LastRuns, RunHealth{
					Source:    run.Source,
					StartedAt: run.StartedAt,
					Success:   run.Success,
					Missing:   run.Missing,
					Error:     run.ErrorMessage.String,
				})
			}
		}
	}

	status := http.StatusOK
	if len(health.Errors) > 0 {
		health.Status = "error"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, health)
}
