package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/subpirate/analyzer/internal/ai"
	"github.com/subpirate/analyzer/internal/collector"
	"github.com/subpirate/analyzer/internal/config"
	"github.com/subpirate/analyzer/internal/domain"
	"github.com/subpirate/analyzer/internal/ingest"
	"github.com/subpirate/analyzer/internal/orchestrator"
	"github.com/subpirate/analyzer/internal/queue"
	"github.com/subpirate/analyzer/internal/server"
	"github.com/subpirate/analyzer/internal/storage"
)

var settingsPath string

var rootCmd = &cobra.Command{
	Use:   "analyzer",
	Short: "Subreddit marketing analysis service",
	Long: `Scores subreddits for marketing friendliness from their rules and post
history, with an optional AI refinement pass on top of the fast heuristic one.`,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the analysis queue with the HTTP API and dashboard",
	RunE: func(cmd *cobra.Command, args []string) error {
		settings, logger, err := setup()
		if err != nil {
			return err
		}
		manager, err := buildManager(settings, logger)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		manager.Start(ctx)

		// Persist completed results as NDJSON next to the rest of the data.
		events := make(chan domain.Event, 64)
		unsub := manager.SubscribeProgress(func(ev domain.Event) {
			select {
			case events <- ev:
			default:
			}
		})
		defer unsub()

		var writerWg sync.WaitGroup
		writer := &storage.WriterService{FilePath: filepath.Join(settings.OutputDir, "results.ndjson")}
		writerWg.Add(1)
		go writer.Start(&writerWg, events)

		httpServer := &http.Server{
			Addr:    ":" + settings.Port,
			Handler: server.New(manager, logger).Handler(),
		}
		go func() {
			logger.Info("http server listening", "port", settings.Port)
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("http server failed", "err", err)
				stop()
			}
		}()

		<-ctx.Done()
		logger.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		httpServer.Shutdown(shutdownCtx)
		close(events)
		writerWg.Wait()
		return nil
	},
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze <subreddit>",
	Short: "Analyze one subreddit and print the result as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		settings, logger, err := setup()
		if err != nil {
			return err
		}
		manager, err := buildManager(settings, logger)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		manager.Start(ctx)

		results, errs := awaitTerminal(manager)
		id, err := manager.Enqueue(args[0])
		if err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-errs:
			if ev.TaskID == id {
				return fmt.Errorf("analysis failed: %s", ev.Err)
			}
		case ev := <-results:
			if ev.TaskID == id {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(ev.Result)
			}
		}
		return nil
	},
}

var batchCmd = &cobra.Command{
	Use:   "batch <csv>",
	Short: "Analyze every subreddit listed in a CSV file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		settings, logger, err := setup()
		if err != nil {
			return err
		}
		manager, err := buildManager(settings, logger)
		if err != nil {
			return err
		}

		subs, err := ingest.LoadSubreddits(args[0])
		if err != nil {
			return fmt.Errorf("loading subreddit list: %w", err)
		}
		if len(subs) == 0 {
			return fmt.Errorf("no valid subreddit names in %s", args[0])
		}
		logger.Info("starting batch analysis", "subreddits", len(subs))

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		manager.Start(ctx)

		events := make(chan domain.Event, 64)
		unsub := manager.SubscribeProgress(func(ev domain.Event) {
			select {
			case events <- ev:
			default:
			}
		})
		defer unsub()

		var writerWg sync.WaitGroup
		writer := &storage.WriterService{FilePath: filepath.Join(settings.OutputDir, "results.ndjson")}
		writerWg.Add(1)
		go writer.Start(&writerWg, events)

		results, errs := awaitTerminal(manager)
		remaining := 0
		for _, sub := range subs {
			if err := enqueueWithBackpressure(ctx, manager, sub); err != nil {
				logger.Warn("skipping subreddit", "subreddit", sub, "err", err)
				continue
			}
			remaining++
		}

		failed := 0
		for remaining > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case ev := <-errs:
				logger.Warn("analysis failed", "subreddit", ev.Subreddit, "err", ev.Err)
				failed++
				remaining--
			case ev := <-results:
				logger.Info("analysis complete", "subreddit", ev.Subreddit,
					"score", ev.Result.Analysis.MarketingFriendliness.Score)
				remaining--
			}
		}

		close(events)
		writerWg.Wait()
		logger.Info("batch complete", "failed", failed)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&settingsPath, "settings", "settings.yaml", "Path to the settings file")
	rootCmd.AddCommand(serveCmd, analyzeCmd, batchCmd)
}

func setup() (*config.Settings, *slog.Logger, error) {
	godotenv.Load()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	settings, err := config.Load(settingsPath)
	if err != nil {
		return nil, nil, err
	}
	return settings, logger, nil
}

// buildManager is the composition root: every component is constructed and
// wired explicitly, with the manager as the one shared instance.
func buildManager(settings *config.Settings, logger *slog.Logger) (*queue.Manager, error) {
	source, err := collector.New(settings.Collector)
	if err != nil {
		return nil, fmt.Errorf("initializing collector: %w", err)
	}
	logger.Info("collector initialized", "mode", settings.Collector.Mode)

	var refiner domain.Refiner
	if settings.AI.Endpoint != "" {
		refiner = ai.NewClient(settings.AI.Endpoint, settings.AI.APIKey, settings.AI.Model, settings.AI.Timeout.Std())
	} else {
		logger.Warn("no AI endpoint configured, analyses will be heuristic-only")
	}

	orch := orchestrator.New(source, refiner, orchestrator.Options{
		AIRetries:       settings.Analysis.AIRetries,
		BackoffBase:     settings.Analysis.BackoffBase.Std(),
		CacheTTL:        settings.Analysis.CacheTTL.Std(),
		PostSampleLimit: settings.Analysis.PostSampleLimit,
	}, logger)

	return queue.NewManager(orch, settings.Queue.Capacity, settings.Queue.TaskTimeout.Std(), logger), nil
}

// awaitTerminal returns channels fed with completion and failure events.
func awaitTerminal(manager *queue.Manager) (<-chan domain.Event, <-chan domain.Event) {
	results := make(chan domain.Event, 16)
	errs := make(chan domain.Event, 16)
	manager.SubscribeProgress(func(ev domain.Event) {
		if ev.Type == domain.EventCompleted {
			results <- ev
		}
	})
	manager.SubscribeError(func(ev domain.Event) {
		errs <- ev
	})
	return results, errs
}

// enqueueWithBackpressure retries while the queue is at capacity.
func enqueueWithBackpressure(ctx context.Context, manager *queue.Manager, sub string) error {
	for {
		_, err := manager.Enqueue(sub)
		switch {
		case err == nil:
			return nil
		case err == domain.ErrQueueFull:
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(500 * time.Millisecond):
			}
		default:
			return err
		}
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
