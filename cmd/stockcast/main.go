package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	kongdotenv "github.com/titusjaka/kong-dotenv-go"

	"github.com/lox/stockcast/internal/accuracy"
	"github.com/lox/stockcast/internal/config"
	"github.com/lox/stockcast/internal/ingest"
	"github.com/lox/stockcast/internal/models"
	"github.com/lox/stockcast/internal/store"
)

// Globals are shared by every command.
type Globals struct {
	EnvFile kongdotenv.ENVFileConfig `kong:"optional,name=env-file,default='.env',help='Path to a .env file'"`

	Sales    string `help:"Weekly sales CSV (path, http(s):// or ftp:// URL)" default:"data/sales.csv" env:"STOCKCAST_SALES"`
	Forecast string `help:"Forecast CSV (path, http(s):// or ftp:// URL)" default:"data/forecast.csv" env:"STOCKCAST_FORECAST"`
	Config   string `help:"Optional YAML config for bands, thresholds, rules and profiles" type:"path" env:"STOCKCAST_CONFIG"`
	DB       string `help:"SQLite database for load run history (empty disables it)" default:"data/stockcast.db" env:"STOCKCAST_DB"`
}

type CLI struct {
	Globals

	Serve     ServeCmd     `cmd:"" default:"1" help:"Run the dashboard server"`
	Report    ReportCmd    `cmd:"" help:"Print model performance and recommendations"`
	Export    ExportCmd    `cmd:"" help:"Write the model performance summary to a file"`
	Recommend RecommendCmd `cmd:"" help:"Print warehouse recommendations"`
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("stockcast"),
		kong.Description("Warehouse sales forecast accuracy dashboard."),
		kong.UsageOnError(),
		kong.BindTo(ctx, (*context.Context)(nil)),
	)

	err := kctx.Run(&cli.Globals)
	kctx.FatalIfErrorf(err)
}

// openStore returns nil when no database is configured.
func (g *Globals) openStore() (*store.Store, error) {
	if g.DB == "" {
		return nil, nil
	}
	if g.DB != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(g.DB), 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}
	st, err := store.Open(g.DB)
	if err != nil {
		return nil, err
	}
	log.Println("database migrated")
	return st, nil
}

// load reads config and both sources. The returned store may be nil and must be
// closed by the caller otherwise.
func (g *Globals) load(ctx context.Context) (*ingest.Dataset, *config.Config, *store.Store, error) {
	cfg, err := config.Load(g.Config)
	if err != nil {
		return nil, nil, nil, err
	}

	st, err := g.openStore()
	if err != nil {
		return nil, nil, nil, err
	}

	var runs ingest.RunRecorder
	if st != nil {
		runs = st
	}
	ds, err := ingest.NewLoader(g.Sales, g.Forecast, runs).Load(ctx)
	if err != nil {
		if st != nil {
			st.Close()
		}
		return nil, nil, nil, err
	}
	for _, m := range ds.Missing {
		log.Printf("warning: %s source not found, continuing without it", m)
	}
	return ds, cfg, st, nil
}

// FilterFlags narrow the records a command reports on.
type FilterFlags struct {
	Warehouse string `help:"Warehouse to include (All for every warehouse)" default:"All"`
	Model     string `help:"Model variant to include (All for every model)" default:"All"`
	Start     string `help:"First week to include (YYYY-MM-DD)"`
	End       string `help:"Last week to include (YYYY-MM-DD)"`
}

func (f FilterFlags) filter() (accuracy.Filter, error) {
	out := accuracy.Filter{Location: f.Warehouse, Model: f.Model}
	var err error
	if out.Start, err = flagDate("start", f.Start); err != nil {
		return accuracy.Filter{}, err
	}
	if out.End, err = flagDate("end", f.End); err != nil {
		return accuracy.Filter{}, err
	}
	if !out.Start.IsZero() && !out.End.IsZero() && out.End.Before(out.Start) {
		return accuracy.Filter{}, fmt.Errorf("--end %s is before --start %s", f.End, f.Start)
	}
	return out, nil
}

func flagDate(name, value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, nil
	}
	t, err := ingest.ParseDate(value)
	if err != nil {
		return time.Time{}, &models.MalformedInputError{Source: "flags", Column: name, Value: value, Err: err}
	}
	return t, nil
}
