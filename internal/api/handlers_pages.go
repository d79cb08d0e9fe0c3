package api

import (
	"log"
	"net/http"
	"time"

	"github.com/lox/stockcast/internal/accuracy"
	"github.com/lox/stockcast/internal/advisor"
	"github.com/lox/stockcast/internal/ingest"
	"github.com/lox/stockcast/internal/metrics"
	"github.com/lox/stockcast/internal/models"
	"github.com/lox/stockcast/internal/store"
)

const (
	noMatchNotice  = "No data for the selected filters."
	noPairedNotice = "No weeks with both an actual and a forecast for the selected filters."
	recentWeeks    = 8
	loadRunLimit   = 20
	loadHealthDays = 7
)

type DashboardData struct {
	PageBase
	Locations []string
	Selected  string
	KPIs      accuracy.KPIs
	Recent    []accuracy.TrendPoint
	ChartURL  string
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request, page Page) {
	f, err := s.sessionFilter(w, r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	done := recompute(page.Name)

	// the overview only narrows by warehouse
	view := accuracy.Filter{Location: f.Location}
	records := view.Apply(s.dataset.Records)

	data := DashboardData{
		PageBase:  s.base(page),
		Locations: accuracy.Locations(s.dataset.Records),
		Selected:  view.Location,
		KPIs:      accuracy.ComputeKPIs(records),
		ChartURL:  "/chart.png" + query(view),
	}
	trend := accuracy.Trend(records)
	if len(trend) > recentWeeks {
		trend = trend[len(trend)-recentWeeks:]
	}
	data.Recent = trend
	if data.Notice == "" && len(records) == 0 {
		data.Notice = noMatchNotice
	}
	done()

	s.render(w, "dashboard.html", data)
}

type PerformanceData struct {
	PageBase
	Locations []string
	Models    []string
	Filter    accuracy.Filter
	MinDate   time.Time
	MaxDate   time.Time
	Summaries []models.MetricSummary
	Bands     accuracy.Bands
	ChartURL  string
	CSVURL    string
	XLSXURL   string
}

func (s *Server) handlePerformance(w http.ResponseWriter, r *http.Request, page Page) {
	f, err := s.sessionFilter(w, r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	done := recompute(page.Name)

	records := f.Apply(s.dataset.Records)
	summaries := accuracy.Summarize(records, s.cfg.Bands)
	for i := range summaries {
		summaries[i] = summaries[i].Rounded()
	}

	q := query(f)
	data := PerformanceData{
		PageBase:  s.base(page),
		Locations: accuracy.Locations(s.dataset.Records),
		Models:    accuracy.Models(s.dataset.Records),
		Filter:    f,
		Summaries: summaries,
		Bands:     s.cfg.Bands,
		ChartURL:  "/chart.png" + q,
		CSVURL:    "/export/performance.csv" + q,
		XLSXURL:   "/export/performance.xlsx" + q,
	}
	data.MinDate, data.MaxDate, _ = accuracy.DateRange(s.dataset.Records)
	if data.Notice == "" {
		switch {
		case len(records) == 0:
			data.Notice = noMatchNotice
		case len(summaries) == 0:
			data.Notice = noPairedNotice
		}
	}
	done()

	s.render(w, "performance.html", data)
}

type ImpactData struct {
	PageBase
	Profiles         []models.Profile
	Recommendations  []models.Recommendation
	Gaps             []string
	Currency         string
	ROIChartURL      string
	CostChartURL     string
	CSVURL           string
	Narrative        string
	NarrativePending bool
}

func (s *Server) handleImpact(w http.ResponseWriter, r *http.Request, page Page) {
	done := recompute(page.Name)
	recs, gaps := s.advisor.Advise(s.cfg.Profiles)
	metrics.RecommendationGaps.Set(float64(len(gaps)))

	data := ImpactData{
		PageBase:        s.base(page),
		Profiles:        advisor.Latest(s.cfg.Profiles),
		Recommendations: recs,
		Gaps:            gaps,
		Currency:        s.cfg.Currency,
		ROIChartURL:     "/chart/impact.png?metric=" + impactROI,
		CostChartURL:    "/chart/impact.png?metric=" + impactCost,
		CSVURL:          "/export/impact.csv",
	}
	done()

	data.Narrative, data.NarrativePending = s.impactNarrative()
	s.render(w, "impact.html", data)
}

type DataPageData struct {
	PageBase
	LoadedAt        time.Time
	Observations    int
	Forecasts       int
	Records         int
	SalesStats      ingest.ParseStats
	ForecastStats   ingest.ParseStats
	ActualsEmbedded bool
	SchemaVersion   int
	RecentRuns      []store.LoadRun
	LoadHealth      []store.LoadHealthSummary
}

func (s *Server) handleData(w http.ResponseWriter, r *http.Request, page Page) {
	ds := s.dataset
	data := DataPageData{
		PageBase:        s.base(page),
		LoadedAt:        ds.LoadedAt,
		Observations:    len(ds.Observations),
		Forecasts:       len(ds.Forecasts),
		Records:         len(ds.Records),
		SalesStats:      ds.SalesStats,
		ForecastStats:   ds.ForecastStats,
		ActualsEmbedded: ds.ActualsEmbedded,
	}

	if s.store != nil {
		if v, err := s.store.MigrationVersion(); err != nil {
			log.Printf("get migration version: %v", err)
		} else {
			data.SchemaVersion = v
		}
		if runs, err := s.store.RecentLoadRuns(loadRunLimit); err != nil {
			log.Printf("get recent load runs: %v", err)
		} else {
			data.RecentRuns = runs
		}
		if health, err := s.store.GetLoadHealth(loadHealthDays); err != nil {
			log.Printf("get load health: %v", err)
		} else {
			data.LoadHealth = health
		}
	}

	s.render(w, "data.html", data)
}
