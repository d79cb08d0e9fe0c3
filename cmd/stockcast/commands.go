package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"text/tabwriter"

	"github.com/lox/stockcast/internal/accuracy"
	"github.com/lox/stockcast/internal/api"
	"github.com/lox/stockcast/internal/config"
	"github.com/lox/stockcast/internal/export"
	"github.com/lox/stockcast/internal/htmlutil"
	"github.com/lox/stockcast/internal/ingest"
	"github.com/lox/stockcast/internal/metrics"
	"github.com/lox/stockcast/internal/models"
	"github.com/lox/stockcast/internal/narrative"
)

type ServeCmd struct {
	Addr string `help:"HTTP listen address" default:":8080" env:"STOCKCAST_ADDR"`
}

func (c *ServeCmd) Run(g *Globals, ctx context.Context) error {
	ds, cfg, st, err := g.load(ctx)
	if err != nil {
		return err
	}
	if st != nil {
		defer st.Close()
	}
	if ds.Empty() {
		log.Println("no reconciled records, dashboard will show a notice")
	}

	server := api.NewServer(ds, cfg, st, c.Addr)
	log.Printf("starting server on %s", c.Addr)
	if err := server.Run(ctx); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	return nil
}

type ReportCmd struct {
	FilterFlags `embed:""`

	Narrative bool `help:"Append an executive summary (requires OPENAI_API_KEY)"`
}

func (c *ReportCmd) Run(g *Globals, ctx context.Context) error {
	ds, cfg, st, err := g.load(ctx)
	if err != nil {
		return err
	}
	if st != nil {
		defer st.Close()
	}
	return c.report(ctx, os.Stdout, ds, cfg)
}

func (c *ReportCmd) report(ctx context.Context, w io.Writer, ds *ingest.Dataset, cfg *config.Config) error {
	f, err := c.filter()
	if err != nil {
		return err
	}

	records := f.Apply(ds.Records)
	kpis := accuracy.ComputeKPIs(records)
	summaries := accuracy.Summarize(records, cfg.Bands)
	recs, gaps := cfg.Advisor().Advise(cfg.Profiles)
	metrics.RecommendationGaps.Set(float64(len(gaps)))

	fmt.Fprintf(w, "Total sales:          %.0f\n", kpis.TotalSales)
	fmt.Fprintf(w, "Average weekly sales: %.2f\n", kpis.AverageSales)
	if kpis.HasMAE {
		fmt.Fprintf(w, "Forecast MAE:         %.2f\n", kpis.MAE)
	}
	fmt.Fprintln(w)

	if len(summaries) == 0 {
		fmt.Fprintln(w, "No weeks with both an actual and a forecast for the selected filters.")
	} else {
		if err := writeSummaryTable(w, summaries); err != nil {
			return err
		}
	}
	fmt.Fprintln(w)

	if err := writeRecommendationTable(w, recs, gaps); err != nil {
		return err
	}

	if c.Narrative {
		summarizer, err := narrative.NewSummarizer()
		if err != nil {
			log.Printf("narrative summary skipped: %v", err)
			return nil
		}
		text, err := summarizer.Summarize(ctx, narrative.Input{
			KPIs:            kpis,
			Summaries:       summaries,
			Recommendations: recs,
			Gaps:            gaps,
		})
		if err != nil {
			log.Printf("narrative summary failed: %v", err)
			return nil
		}
		fmt.Fprintf(w, "\nExecutive summary\n\n%s\n", text)
	}
	return nil
}

type ExportCmd struct {
	FilterFlags `embed:""`

	Format string `help:"Output format (csv or xlsx)" default:"csv" enum:"csv,xlsx"`
	Out    string `help:"Output file (defaults to model_performance_summary.<format>)" type:"path"`
}

func (c *ExportCmd) Run(g *Globals, ctx context.Context) error {
	ds, cfg, st, err := g.load(ctx)
	if err != nil {
		return err
	}
	if st != nil {
		defer st.Close()
	}
	return c.export(os.Stdout, ds, cfg)
}

// export writes the summary file. When an existing CSV is replaced the unified
// diff against the previous contents is printed to w.
func (c *ExportCmd) export(w io.Writer, ds *ingest.Dataset, cfg *config.Config) error {
	format, err := export.ParseFormat(c.Format)
	if err != nil {
		return err
	}
	f, err := c.filter()
	if err != nil {
		return err
	}
	out := c.Out
	if out == "" {
		out = format.Filename()
	}

	var buf bytes.Buffer
	if err := export.Write(&buf, format, accuracy.Summarize(f.Apply(ds.Records), cfg.Bands)); err != nil {
		return fmt.Errorf("export: %w", err)
	}

	previous, err := os.ReadFile(out)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("read previous export: %w", err)
	}
	replacing := err == nil

	if err := os.WriteFile(out, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write export: %w", err)
	}
	metrics.ExportsTotal.WithLabelValues(string(format)).Inc()

	if replacing && format == export.FormatCSV {
		diff, err := export.Diff(previous, buf.Bytes(), out+" (previous)", out)
		if err != nil {
			return err
		}
		if diff == "" {
			fmt.Fprintf(w, "%s unchanged\n", out)
			return nil
		}
		fmt.Fprint(w, diff)
	}
	fmt.Fprintf(w, "wrote %s\n", out)
	return nil
}

type RecommendCmd struct {
	CSV bool `name:"csv" help:"Write CSV instead of a table"`
}

func (c *RecommendCmd) Run(g *Globals) error {
	cfg, err := config.Load(g.Config)
	if err != nil {
		return err
	}
	return c.recommend(os.Stdout, cfg)
}

func (c *RecommendCmd) recommend(w io.Writer, cfg *config.Config) error {
	recs, gaps := cfg.Advisor().Advise(cfg.Profiles)
	metrics.RecommendationGaps.Set(float64(len(gaps)))

	if c.CSV {
		for _, gap := range gaps {
			log.Printf("warning: no recommendation rule for %s", gap)
		}
		return export.WriteRecommendationsCSV(w, recs)
	}
	return writeRecommendationTable(w, recs, gaps)
}

func writeSummaryTable(w io.Writer, summaries []models.MetricSummary) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "WAREHOUSE\tMODEL\tWEEKS\tMAE\tRMSE\tBIAS\tINTERPRETATION")
	for _, s := range summaries {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%.2f\t%.2f\t%.2f\t%s\n",
			htmlutil.DisplayName(s.Location), s.Model, s.Count, s.MAE, s.RMSE, s.Bias, s.Interpretation)
	}
	return tw.Flush()
}

func writeRecommendationTable(w io.Writer, recs []models.Recommendation, gaps []string) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "WAREHOUSE\tCONDITION\tPRIORITY ACTION\tNEXT STEP")
	for _, r := range recs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
			htmlutil.DisplayName(r.Location), r.Condition, htmlutil.ToLine(r.PriorityAction), htmlutil.ToLine(r.NextStep))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	for _, gap := range gaps {
		fmt.Fprintf(w, "no recommendation rule for %s\n", htmlutil.DisplayName(gap))
	}
	return nil
}
