package api

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"net/http"
	"sync"

	"github.com/lox/stockcast/internal/accuracy"
	"github.com/lox/stockcast/internal/advisor"
	"github.com/lox/stockcast/internal/chart"
	"github.com/lox/stockcast/internal/export"
	"github.com/lox/stockcast/internal/htmlutil"
	"github.com/lox/stockcast/internal/metrics"
	"github.com/lox/stockcast/internal/narrative"
)

// Impact chart metrics, selected with ?metric=.
const (
	impactROI  = "roi"
	impactCost = "cost"
)

// handleImpactExport serves the latest business profiles as
// business_impact_summary.csv.
func (s *Server) handleImpactExport(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := export.WriteProfilesCSV(&buf, advisor.Latest(s.cfg.Profiles), s.cfg.Currency); err != nil {
		s.fail(w, r, fmt.Errorf("export impact: %w", err))
		return
	}
	metrics.ExportsTotal.WithLabelValues("impact_csv").Inc()

	w.Header().Set("Content-Type", export.FormatCSV.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.ImpactFilename))
	buf.WriteTo(w)
}

// handleImpactChart draws ROI (the default) or monthly cost per warehouse.
func (s *Server) handleImpactChart(w http.ResponseWriter, r *http.Request) {
	metric := r.URL.Query().Get("metric")
	if metric == "" {
		metric = impactROI
	}
	if metric != impactROI && metric != impactCost {
		http.Error(w, fmt.Sprintf("unknown metric %q", metric), http.StatusBadRequest)
		return
	}

	key := "impact:" + metric
	if data, ok := s.charts.Get(key); ok {
		writePNG(w, data)
		return
	}

	profiles := advisor.Latest(s.cfg.Profiles)
	bars := make([]chart.Bar, 0, len(profiles))
	for i, p := range profiles {
		bar := chart.Bar{Label: htmlutil.DisplayName(p.Location), Color: chart.ColorFor(p.Location, i)}
		if metric == impactCost {
			bar.Value = p.MonthlyCost
			bar.Text = formatMoney(s.cfg.Currency, p.MonthlyCost)
		} else {
			bar.Value = p.ROIPct
			bar.Text = fmt.Sprintf("%.1f%%", p.ROIPct)
		}
		bars = append(bars, bar)
	}

	title := "Model ROI per warehouse (%)"
	if metric == impactCost {
		title = fmt.Sprintf("Monthly cost impact (%s)", s.cfg.Currency)
	}
	data, err := chart.RenderBars(bars, chart.Options{Title: title})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.charts.Set(key, data)
	writePNG(w, data)
}

type summarizeFunc func(context.Context, narrative.Input) (string, error)

// briefing generates the executive summary once, off the request path. Pages
// read whatever has finished and never wait on the model.
type briefing struct {
	summarize summarizeFunc
	once      sync.Once
	done      chan struct{}
	text      string // written before done is closed
}

func newBriefing(fn summarizeFunc) *briefing {
	return &briefing{summarize: fn, done: make(chan struct{})}
}

// Start builds the input and begins generation in a goroutine. Only the first
// call does anything.
func (b *briefing) Start(ctx context.Context, build func() narrative.Input) {
	b.once.Do(func() {
		in := build()
		go func() {
			defer close(b.done)
			text, err := b.summarize(ctx, in)
			if err != nil {
				log.Printf("narrative: %v", err)
				return
			}
			b.text = text
		}()
	})
}

// Text returns the summary and whether generation has finished. A failed
// generation is finished with empty text.
func (b *briefing) Text() (string, bool) {
	select {
	case <-b.done:
		return b.text, true
	default:
		return "", false
	}
}

// startBriefing kicks off the summary for the whole dataset. It is a no-op
// without a summarizer or data.
func (s *Server) startBriefing(ctx context.Context) {
	if s.brief == nil || s.dataset.Empty() {
		return
	}
	s.brief.Start(ctx, func() narrative.Input {
		recs, gaps := s.advisor.Advise(s.cfg.Profiles)
		return narrative.Input{
			KPIs:            accuracy.ComputeKPIs(s.dataset.Records),
			Summaries:       accuracy.Summarize(s.dataset.Records, s.cfg.Bands),
			Recommendations: recs,
			Gaps:            gaps,
		}
	})
}

// impactNarrative reports the cached summary. pending is true while the
// background request is still running.
func (s *Server) impactNarrative() (text string, pending bool) {
	if s.brief == nil || s.dataset.Empty() {
		return "", false
	}
	// Run starts generation at startup; this covers handlers served without it
	s.startBriefing(context.Background())
	text, finished := s.brief.Text()
	return text, !finished
}
