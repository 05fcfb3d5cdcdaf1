package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/transcodarr/transcodarr/internal/config"
	"github.com/transcodarr/transcodarr/internal/database"
	"github.com/transcodarr/transcodarr/internal/dispatcher"
	"github.com/transcodarr/transcodarr/internal/ffmpeg"
	internalhttp "github.com/transcodarr/transcodarr/internal/http"
	"github.com/transcodarr/transcodarr/internal/http/handlers"
	"github.com/transcodarr/transcodarr/internal/janitor"
	"github.com/transcodarr/transcodarr/internal/planner"
	"github.com/transcodarr/transcodarr/internal/repository"
	"github.com/transcodarr/transcodarr/internal/service"
	"github.com/transcodarr/transcodarr/internal/version"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the transcodarr server",
	Long: `Start the transcodarr HTTP server.

The server provides:
- REST API for submitting transcode and mux requests
- Worker poll endpoint handing out leased jobs
- Health check endpoint and OpenAPI documentation at /docs`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("host", "0.0.0.0", "Host to bind to")
	serveCmd.Flags().Int("port", 8080, "Port to listen on")
	serveCmd.Flags().String("database", "transcodarr.db", "Database DSN")

	mustBindPFlag("server.host", serveCmd.Flags().Lookup("host"))
	mustBindPFlag("server.port", serveCmd.Flags().Lookup("port"))
	mustBindPFlag("database.dsn", serveCmd.Flags().Lookup("database"))
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := slog.Default()

	var cfg config.Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return fmt.Errorf("unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.New(cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("initializing database: %w", err)
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	repo := repository.NewJobRepository(db.DB)
	probe := ffmpeg.NewProber(cfg.FFmpeg.ProbePath).WithTimeout(cfg.FFmpeg.ProbeTimeout)
	requestService := service.NewRequestService(repo, planner.New(cfg.Encode), probe, logger)
	jobDispatcher := dispatcher.New(repo, cfg.Dispatch, logger)

	server := internalhttp.NewServer(cfg.Server, logger, version.Version)
	handlers.NewRequestHandler(requestService, jobDispatcher).Register(server.API())
	handlers.NewWorkerHandler(jobDispatcher, requestService).Register(server.API())
	handlers.NewJobHandler(jobDispatcher).Register(server.API())
	handlers.NewHealthHandler(version.Version, db.DB).Register(server.API())

	if cfg.Janitor.Enabled {
		j, err := janitor.New(repo, cfg.Janitor, logger)
		if err != nil {
			return fmt.Errorf("initializing janitor: %w", err)
		}
		if err := j.Start(ctx); err != nil {
			return fmt.Errorf("starting janitor: %w", err)
		}
		defer j.Stop()
	}

	logger.Info("transcodarr starting",
		slog.String("version", version.Version),
		slog.String("address", cfg.Server.Address()),
		slog.Duration("lease_timeout", cfg.Dispatch.LeaseTimeout))

	if err := server.ListenAndServe(ctx); err != nil {
		return fmt.Errorf("serving: %w", err)
	}
	return nil
}
