package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/cloudlens/advisor-hub/pkg/ingest"
	"github.com/cloudlens/advisor-hub/pkg/render"
	"github.com/cloudlens/advisor-hub/pkg/server"
	"github.com/cloudlens/advisor-hub/pkg/services/config"
	reportsvc "github.com/cloudlens/advisor-hub/pkg/services/report"
	"github.com/cloudlens/advisor-hub/pkg/store/blob"
	"github.com/cloudlens/advisor-hub/pkg/store/duckdb"
	jobstore "github.com/cloudlens/advisor-hub/pkg/store/duckdb/job"
)

var cfgPath string

func main() {
	var rootCmd = &cobra.Command{
		Use:   "web",
		Short: "Start the report service",
		RunE:  runServer,
	}

	rootCmd.Flags().StringVarP(&cfgPath, "config", "c", "",
		"Path to the config file (defaults and ADVISOR_HUB_* env vars apply without one)")

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func runServer(cmd *cobra.Command, _ []string) error {
	if err := godotenv.Load(); err != nil {
		fmt.Printf("Error loading .env file: %v\n", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	ctx := logger.WithContext(cmd.Context())

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	db, err := duckdb.NewDB(duckdb.Settings{
		DbPath: cfg.DBPath,
	})
	if err != nil {
		return fmt.Errorf("failed to create DuckDB instance: %w", err)
	}
	defer db.Close()

	jobs, err := jobstore.NewStore(db)
	if err != nil {
		return fmt.Errorf("failed to create job store: %w", err)
	}

	var blobs blob.Store
	switch cfg.Blob.Mode {
	case "s3":
		blobs, err = blob.NewS3Store(ctx, blob.S3Config{
			Bucket:    cfg.Blob.Bucket,
			Prefix:    cfg.Blob.Prefix,
			Region:    cfg.Blob.Region,
			URLExpiry: cfg.Blob.URLExpiry,
		})
		if err != nil {
			return fmt.Errorf("failed to create S3 blob store: %w", err)
		}
	default:
		blobs = blob.NewMemoryStore()
	}

	renderer, err := render.NewRenderer(render.DefaultTemplates())
	if err != nil {
		return fmt.Errorf("failed to build renderer: %w", err)
	}

	validator := ingest.NewValidator(ingest.ValidatorConfig{
		MaxSizeBytes: cfg.MaxUploadBytes,
	})
	orchestrator := reportsvc.NewOrchestrator(jobs, blobs, validator, renderer)

	pool := reportsvc.NewPool(orchestrator, jobs, logger, reportsvc.PoolConfig{
		Workers:     cfg.Workers,
		QueueSize:   cfg.QueueSize,
		JobDeadline: cfg.JobDeadline,
	})
	if err := pool.Start(ctx); err != nil {
		return fmt.Errorf("failed to start worker pool: %w", err)
	}

	sweeper := reportsvc.NewSweeper(jobs, pool, logger, reportsvc.SweeperConfig{
		Interval:    cfg.SweepInterval,
		JobDeadline: cfg.JobDeadline,
		GraceFactor: cfg.SweepGrace,
	})
	go sweeper.Run(ctx)

	service := reportsvc.NewService(jobs, blobs, pool, cfg.MaxAttempts)

	api := server.NewWebAPI(server.Config{
		Addr: cfg.Addr,
		Dependencies: server.Dependencies{
			Reports:        service,
			Logger:         logger,
			MaxUploadBytes: cfg.MaxUploadBytes,
		},
	})

	return api.Start()
}
