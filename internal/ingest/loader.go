package ingest

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/lox/stockcast/internal/metrics"
	"github.com/lox/stockcast/internal/models"
	"github.com/lox/stockcast/internal/reconcile"
	"github.com/lox/stockcast/internal/store"
)

const (
	SourceSales    = "sales"
	SourceForecast = "forecast"
)

// RunRecorder audits load attempts. *store.Store satisfies it.
type RunRecorder interface {
	StartLoadRun(source, uri string) (*store.LoadRun, error)
	CompleteLoadRun(run *store.LoadRun) error
}

// Dataset is the immutable result of one load. It is built once and shared
// read-only by every request.
type Dataset struct {
	Observations []models.Observation
	Forecasts    []models.ForecastPoint
	Records      []models.ReconciledRecord

	SalesStats    ParseStats
	ForecastStats ParseStats

	// Missing names the sources that did not exist.
	Missing []string
	// ActualsEmbedded is set when observations came from the forecast file's
	// actual column because the sales source was missing.
	ActualsEmbedded bool
	LoadedAt        time.Time
}

func (d *Dataset) Empty() bool {
	return d == nil || len(d.Records) == 0
}

func (d *Dataset) IsMissing(source string) bool {
	if d == nil {
		return true
	}
	for _, m := range d.Missing {
		if m == source {
			return true
		}
	}
	return false
}

type Loader struct {
	salesURI    string
	forecastURI string
	runs        RunRecorder
	open        func(ctx context.Context, uri string) (io.ReadCloser, error)
}

// NewLoader returns a loader for the two sources. runs may be nil.
func NewLoader(salesURI, forecastURI string, runs RunRecorder) *Loader {
	return &Loader{
		salesURI:    salesURI,
		forecastURI: forecastURI,
		runs:        runs,
		open:        Open,
	}
}

// Load reads both sources and reconciles them. A missing source yields an
// empty side rather than an error. Malformed data fails the load.
func (l *Loader) Load(ctx context.Context) (*Dataset, error) {
	ds := &Dataset{LoadedAt: time.Now().UTC()}

	var embedded []models.Observation

	err := l.loadSource(ctx, SourceForecast, l.forecastURI, func(r io.Reader) (ParseStats, error) {
		fcs, actuals, stats, err := ParseForecasts(r, SourceForecast)
		ds.Forecasts, embedded, ds.ForecastStats = fcs, actuals, stats
		return stats, err
	})
	if errors.Is(err, ErrNoData) {
		ds.Missing = append(ds.Missing, SourceForecast)
	} else if err != nil {
		return nil, err
	}

	err = l.loadSource(ctx, SourceSales, l.salesURI, func(r io.Reader) (ParseStats, error) {
		obs, stats, err := ParseObservations(r, SourceSales)
		ds.Observations, ds.SalesStats = obs, stats
		return stats, err
	})
	if errors.Is(err, ErrNoData) {
		ds.Missing = append(ds.Missing, SourceSales)
		if len(embedded) > 0 {
			log.Printf("loader: sales source missing, using %d actuals from forecast file", len(embedded))
			ds.Observations = embedded
			ds.ActualsEmbedded = true
		}
	} else if err != nil {
		return nil, err
	}

	ds.Records, err = reconcile.Reconcile(ds.Observations, ds.Forecasts)
	if err != nil {
		return nil, fmt.Errorf("reconcile: %w", err)
	}

	log.Printf("loader: %d observations, %d forecasts, %d reconciled records",
		len(ds.Observations), len(ds.Forecasts), len(ds.Records))
	return ds, nil
}

func (l *Loader) loadSource(ctx context.Context, source, uri string, parse func(io.Reader) (ParseStats, error)) error {
	if uri == "" {
		return fmt.Errorf("%s: no uri configured: %w", source, ErrNoData)
	}

	run := l.startRun(source, uri)
	defer l.completeRun(run)

	stats, err := l.read(ctx, uri, parse)
	if run != nil {
		run.RowsParsed = sql.NullInt64{Int64: int64(stats.Rows), Valid: true}
		run.RowsSkipped = sql.NullInt64{Int64: int64(stats.Skipped), Valid: true}
		run.RowsFlagged = sql.NullInt64{Int64: int64(stats.Flagged), Valid: true}
		if flags := QualityFlagsToJSON(stats.Flags); flags != "" {
			run.QualityFlags = sql.NullString{String: flags, Valid: true}
		}
	}

	switch {
	case errors.Is(err, ErrNoData):
		log.Printf("loader: %s: no data at %s", source, uri)
		if run != nil {
			run.Missing = true
			run.ErrorMessage = sql.NullString{String: err.Error(), Valid: true}
		}
		return err
	case err != nil:
		metrics.LoadFailures.WithLabelValues(source).Inc()
		if run != nil {
			run.ErrorMessage = sql.NullString{String: err.Error(), Valid: true}
		}
		return fmt.Errorf("load %s: %w", source, err)
	}

	if run != nil {
		run.Success = true
	}
	metrics.RowsLoaded.WithLabelValues(source).Add(float64(stats.Rows))
	for flag, n := range stats.Flags {
		metrics.RowsFlagged.WithLabelValues(source, flag).Add(float64(n))
	}
	if stats.Flagged > 0 {
		log.Printf("loader: %s: %d of %d rows flagged", source, stats.Flagged, stats.Rows)
	}
	return nil
}

func (l *Loader) read(ctx context.Context, uri string, parse func(io.Reader) (ParseStats, error)) (ParseStats, error) {
	rc, err := l.open(ctx, uri)
	if err != nil {
		return ParseStats{}, err
	}
	defer rc.Close()
	return parse(rc)
}

func (l *Loader) startRun(source, uri string) *store.LoadRun {
	if l.runs == nil {
		return nil
	}
	run, err := l.runs.StartLoadRun(source, uri)
	if err != nil {
		log.Printf("loader: failed to start load run: %v", err)
		return nil
	}
	return run
}

func (l *Loader) completeRun(run *store.LoadRun) {
	if l.runs == nil || run == nil {
		return
	}
	if err := l.runs.CompleteLoadRun(run); err != nil {
		log.Printf("loader: failed to complete load run: %v", err)
	}
}
