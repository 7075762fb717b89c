package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/teamexport/slacksnap/internal/config"
	"github.com/teamexport/slacksnap/pkg/api"
	"github.com/teamexport/slacksnap/pkg/archive"
	"github.com/teamexport/slacksnap/pkg/export"
	"github.com/teamexport/slacksnap/pkg/index"
	"github.com/teamexport/slacksnap/pkg/runlog"
	"github.com/teamexport/slacksnap/pkg/scheduler"
	"github.com/teamexport/slacksnap/pkg/slack"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	root := &cobra.Command{
		Use:   "slacksnap",
		Short: "Export a Slack workspace into a self-contained snapshot",
	}
	root.AddCommand(newServeCmd(), newExportCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// aggregatorConfig translates env config into pipeline settings.
func aggregatorConfig(cfg *config.Config) export.AggregatorConfig {
	return export.AggregatorConfig{
		Window:       time.Duration(cfg.Export.WindowDays) * 24 * time.Hour,
		ListLimit:    cfg.Export.ListLimit,
		MaxTransfers: cfg.Export.MaxTransfers,
		Pacing:       time.Duration(cfg.Export.PacingMS) * time.Millisecond,
	}
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the export API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}

			client := slack.NewAPIClient(cfg.Slack.Token)
			hub := api.NewProgressHub()
			aggregator := export.NewAggregator(client, aggregatorConfig(cfg),
				export.Multi(export.LogReporter{}, hub))

			// One guard shared by the HTTP handler and the scheduler, so
			// a scheduled run cannot overlap a triggered one.
			runner := export.NewSingleFlight(aggregator)

			sinks, cleanup, err := buildSinks(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			server := api.NewServer(cfg, runner, hub, sinks...)
			httpServer := &http.Server{
				Addr:        fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
				Handler:     server.Router(),
				ReadTimeout: 15 * time.Second,
			}

			if cfg.Export.Schedule != "" {
				sched := scheduler.New(cfg.Export.Schedule, func(ctx context.Context) error {
					snap, err := runner.Run(ctx)
					if errors.Is(err, export.ErrRunInProgress) {
						log.Println("scheduled export skipped: a run is already in progress")
						return nil
					}
					if err != nil {
						return err
					}
					for _, sink := range sinks {
						if err := sink.Consume(ctx, snap); err != nil {
							log.Printf("snapshot sink failed: %v", err)
						}
					}
					return nil
				})
				if err := sched.Start(cmd.Context()); err != nil {
					return err
				}
				defer sched.Stop()
			}

			go func() {
				log.Printf("Server listening on %s", httpServer.Addr)
				if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatalf("Failed to start server: %v", err)
				}
			}()

			// Wait for interrupt signal to gracefully shutdown the server
			quit := make(chan os.Signal, 1)
			signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
			<-quit
			log.Println("Shutting down server...")

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := httpServer.Shutdown(ctx); err != nil {
				return fmt.Errorf("server forced to shutdown: %w", err)
			}

			log.Println("Server exited")
			return nil
		},
	}
}

func newExportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export",
		Short: "Run one export and write the snapshot archive",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}

			client := slack.NewAPIClient(cfg.Slack.Token)
			aggregator := export.NewAggregator(client, aggregatorConfig(cfg), export.LogReporter{})

			sinks, cleanup, err := buildSinks(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			start := time.Now()
			snapshot, err := aggregator.Run(cmd.Context())
			if err != nil {
				return fmt.Errorf("export failed: %w", err)
			}

			for _, sink := range sinks {
				if err := sink.Consume(cmd.Context(), snapshot); err != nil {
					log.Printf("snapshot sink failed: %v", err)
				}
			}

			duration := time.Since(start)
			fmt.Println("\n=== Export Complete ===")
			fmt.Printf("Run ID: %s\n", snapshot.RunID)
			fmt.Printf("Duration: %s\n", duration.Round(time.Second))
			fmt.Printf("Channels: %d\n", snapshot.TotalChannels)
			fmt.Printf("Users: %d\n", snapshot.TotalUsers)
			fmt.Printf("Messages: %d\n", snapshot.TotalMessages)
			if len(snapshot.Degraded) > 0 {
				fmt.Printf("Degraded channels: %d\n", len(snapshot.Degraded))
				for _, id := range snapshot.Degraded {
					fmt.Printf("  - %s\n", id)
				}
			}
			return nil
		},
	}
}

// buildSinks assembles the configured snapshot sinks: the archive store
// always, Weaviate indexing and the MySQL run log when configured.
func buildSinks(ctx context.Context, cfg *config.Config) ([]api.SnapshotSink, func(), error) {
	var sinks []api.SnapshotSink
	cleanup := func() {}

	store, err := archive.NewStore(cfg.Export.ArchiveDir)
	if err != nil {
		return nil, cleanup, err
	}
	sinks = append(sinks, store)

	if cfg.Weaviate.Enabled {
		indexer, err := index.NewIndexer(cfg.Weaviate.Scheme, cfg.Weaviate.Host, cfg.Weaviate.APIKey)
		if err != nil {
			return nil, cleanup, err
		}
		sinks = append(sinks, indexer)
	}

	if cfg.MySQL.DSN != "" {
		runs, err := runlog.Open(ctx, cfg.MySQL.DSN)
		if err != nil {
			return nil, cleanup, err
		}
		cleanup = func() { runs.Close() }
		sinks = append(sinks, runs)
	}

	return sinks, cleanup, nil
}
