package api

import (
	"bytes"
	"context"
	"errors"
	"html/template"
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lox/stockcast/internal/advisor"
	"github.com/lox/stockcast/internal/chart"
	"github.com/lox/stockcast/internal/config"
	"github.com/lox/stockcast/internal/ingest"
	"github.com/lox/stockcast/internal/metrics"
	"github.com/lox/stockcast/internal/models"
	"github.com/lox/stockcast/internal/narrative"
	"github.com/lox/stockcast/internal/store"
)

const (
	chartCacheTTL     = 10 * time.Minute
	chartCacheEntries = 256
)

type Server struct {
	dataset  *ingest.Dataset
	cfg      *config.Config
	advisor  *advisor.Advisor
	store    *store.Store
	addr     string
	tmpl     *template.Template
	sessions *sessionStore
	charts   *chart.Cache
	brief    *briefing
}

// NewServer serves a dataset that was loaded once at startup. ds may be nil or
// empty and st may be nil; pages then render a notice instead of failing.
func NewServer(ds *ingest.Dataset, cfg *config.Config, st *store.Store, addr string) *Server {
	if ds == nil {
		ds = &ingest.Dataset{}
	}
	if cfg == nil {
		cfg = config.Default()
	}

	var brief *briefing
	if sum, err := narrative.NewSummarizer(); err != nil {
		log.Printf("narrative summaries disabled: %v", err)
	} else {
		brief = newBriefing(sum.Summarize)
	}

	return &Server{
		dataset:  ds,
		cfg:      cfg,
		advisor:  cfg.Advisor(),
		store:    st,
		addr:     addr,
		tmpl:     newTemplates(cfg.Currency),
		sessions: newSessionStore(),
		charts:   chart.NewCache(chartCacheTTL, chartCacheEntries),
		brief:    brief,
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handlePage)
	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/chart.png", s.handleChart)
	mux.HandleFunc("/export/performance.csv", s.handleExport)
	mux.HandleFunc("/export/performance.xlsx", s.handleExport)
	mux.HandleFunc("/export/impact.csv", s.handleImpactExport)
	mux.HandleFunc("/chart/impact.png", s.handleImpactChart)
	mux.HandleFunc("/api/reconciled", s.handleAPIReconciled)
	mux.HandleFunc("/api/summary", s.handleAPISummary)
	mux.HandleFunc("/api/recommendations", s.handleAPIRecommendations)
	mux.HandleFunc("/api/options", s.handleAPIOptions)
	return mux
}

func (s *Server) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:    s.addr,
		Handler: s.Handler(),
	}

	s.startBriefing(ctx)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	log.Printf("server: listening on %s", s.addr)
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

// render executes into a buffer so a template error can still produce a 500.
func (s *Server) render(w http.ResponseWriter, name string, data any) {
	var buf bytes.Buffer
	if err := s.tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		log.Printf("template error: %s: %v", name, err)
		http.Error(w, "template error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	buf.WriteTo(w)
}

// fail maps malformed input to 422 and everything else to 500.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	var malformed *models.MalformedInputError
	if errors.As(err, &malformed) {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}
	log.Printf("server: %s %s: %v", r.Method, r.URL.Path, err)
	http.Error(w, err.Error(), http.StatusInternalServerError)
}

// recompute records how long one page spent deriving its data.
func recompute(page string) func() {
	start := time.Now()
	return func() {
		metrics.RecomputeDuration.WithLabelValues(page).Observe(time.Since(start).Seconds())
	}
}
