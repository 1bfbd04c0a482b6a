package commands

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/de-tools/data-profiler/pkg/models/domain"
	"github.com/de-tools/data-profiler/pkg/services/profiler"
	"github.com/de-tools/data-profiler/pkg/services/report"
	"github.com/de-tools/data-profiler/pkg/store/duckdb"
	"github.com/de-tools/data-profiler/pkg/store/uploads"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// SummaryHandler prints a finished report.
type SummaryHandler interface {
	Handle(rep *domain.Report, files ...string) error
}

type ProfileCmd struct {
	outDir         string
	engine         string
	title          string
	maxRows        int
	noCorrelations bool
	timeout        time.Duration
	quiet          bool
	version        string
	reporter       SummaryHandler
}

func NewProfileCmd(reporter SummaryHandler, version string) *cobra.Command {
	pc := &ProfileCmd{reporter: reporter, version: version}
	cmd := &cobra.Command{
		Use:   "profile <file.csv>",
		Short: "Profile a CSV file and write HTML and JSON reports",
		Args:  cobra.ExactArgs(1),
		RunE:  pc.run,
	}

	cmd.Flags().StringVarP(&pc.outDir, "out", "o", "", "Directory for the reports (default is the directory of the CSV file)")
	cmd.Flags().StringVar(&pc.engine, "engine", string(domain.EngineNative), "Profiling engine: native or duckdb")
	cmd.Flags().StringVar(&pc.title, "title", profiler.DefaultTitle, "Report title")
	cmd.Flags().IntVar(&pc.maxRows, "max-rows", 0, "Profile at most this many rows (0 means all)")
	cmd.Flags().BoolVar(&pc.noCorrelations, "no-correlations", false, "Skip correlation matrices")
	cmd.Flags().DurationVar(&pc.timeout, "timeout", 10*time.Minute, "Give up after this long")
	cmd.Flags().BoolVarP(&pc.quiet, "quiet", "q", false, "Do not print the summary")

	return cmd
}

func (pc *ProfileCmd) run(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), pc.timeout)
	defer cancel()

	logger := zerolog.New(zerolog.ConsoleWriter{Out: cmd.ErrOrStderr()}).
		Level(zerolog.WarnLevel).With().Timestamp().Logger()
	ctx = logger.WithContext(ctx)

	source := args[0]
	info, err := os.Stat(source)
	if err != nil {
		return fmt.Errorf("cannot read %s: %w", source, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", source)
	}

	engine, err := domain.ParseEngineType(pc.engine)
	if err != nil {
		return err
	}

	var db *sql.DB
	if engine == domain.EngineDuckDB {
		db, err = duckdb.NewDB(duckdb.Settings{DbPath: ":memory:"})
		if err != nil {
			return fmt.Errorf("failed to create DuckDB instance: %w", err)
		}
		defer db.Close()
	}

	opts := profiler.DefaultOptions()
	opts.Title = pc.title
	opts.MaxRows = pc.maxRows
	opts.SkipCorrelations = pc.noCorrelations

	prof, err := profiler.New(engine, db, opts)
	if err != nil {
		return err
	}

	rep, err := prof.Profile(ctx, profiler.Source{
		Name: filepath.Base(source),
		Path: source,
	})
	if err != nil {
		return fmt.Errorf("failed to profile %s: %w", source, err)
	}

	outDir := pc.outDir
	if outDir == "" {
		outDir = filepath.Dir(source)
	}
	dir, err := uploads.Open(outDir)
	if err != nil {
		return err
	}
	defer dir.Close()

	writer, err := report.NewDefaultWriter(dir, pc.version)
	if err != nil {
		return err
	}

	htmlName, jsonName := uploads.ReportNames(filepath.Base(source))
	if err := writer.Write(ctx, rep, htmlName, jsonName); err != nil {
		return fmt.Errorf("failed to write reports: %w", err)
	}

	if pc.quiet {
		return nil
	}
	return pc.reporter.Handle(rep, dir.Path(htmlName), dir.Path(jsonName))
}
