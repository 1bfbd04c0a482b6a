package main

import (
	"fmt"
	"os"

	"github.com/de-tools/data-profiler/pkg/server"
	"github.com/de-tools/data-profiler/pkg/services/config"
	"github.com/de-tools/data-profiler/pkg/services/profiler"
	"github.com/de-tools/data-profiler/pkg/services/report"
	"github.com/de-tools/data-profiler/pkg/services/workflow"
	"github.com/de-tools/data-profiler/pkg/store/duckdb"
	"github.com/de-tools/data-profiler/pkg/store/duckdb/jobs"
	"github.com/de-tools/data-profiler/pkg/store/uploads"
	"github.com/spf13/cobra"
)

var (
	version = "dev"
	cfgPath string
)

func main() {
	var rootCmd = &cobra.Command{
		Use:     "web",
		Short:   "Start the CSV profiling web server",
		Version: version,
		RunE:    runServer,
	}

	rootCmd.Flags().StringVarP(&cfgPath, "config", "c", "",
		"Path to a config file (.yaml, .toml, .json or .ini)")

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func runServer(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}

	logger := cfg.NewLogger(os.Stdout)
	ctx := logger.WithContext(cmd.Context())

	dir, err := uploads.Open(cfg.UploadDir)
	if err != nil {
		return err
	}
	defer dir.Close()

	db, err := duckdb.NewDB(duckdb.Settings{
		DbPath:  cfg.JobDB,
		Threads: cfg.DuckDBThreads,
	})
	if err != nil {
		return fmt.Errorf("failed to create DuckDB instance: %w", err)
	}
	defer db.Close()

	jobStore, err := jobs.NewStore(db)
	if err != nil {
		return fmt.Errorf("failed to create job store: %w", err)
	}

	prof, err := profiler.New(cfg.Engine(), db, profiler.DefaultOptions())
	if err != nil {
		return fmt.Errorf("failed to create profiler: %w", err)
	}

	writer, err := report.NewDefaultWriter(dir, version)
	if err != nil {
		return fmt.Errorf("failed to create report writer: %w", err)
	}

	jobCtrl := workflow.NewController(jobStore, prof, writer, workflow.Config{
		Workers:    cfg.Workers,
		JobTimeout: cfg.JobTimeout,
	})
	if err := jobCtrl.Init(ctx); err != nil {
		return fmt.Errorf("failed to initialize report controller: %w", err)
	}

	logger.Info().
		Str("upload_dir", cfg.UploadDir).
		Str("engine", string(cfg.Engine())).
		Int("workers", cfg.Workers).
		Dur("job_timeout", cfg.JobTimeout).
		Str("version", version).
		Msg("configuration loaded")

	webAPI, err := server.NewWebAPI(logger, server.Config{
		Addr:           cfg.Addr(),
		MaxUploadBytes: cfg.MaxUploadBytes(),
		Dependencies: server.Dependencies{
			Files: dir,
			Jobs:  jobCtrl,
		},
	})
	if err != nil {
		return err
	}

	return webAPI.Start()
}
