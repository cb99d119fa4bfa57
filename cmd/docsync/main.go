package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/docsync/docsync/internal/api"
	"github.com/docsync/docsync/internal/config"
	"github.com/docsync/docsync/internal/model"
	"github.com/docsync/docsync/internal/session"
	"github.com/docsync/docsync/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/docsync.yaml", "path to config file")
	filePath := flag.String("file", "", "document to upload")
	autoSubmit := flag.Bool("submit", false, "submit automatically once review is ready")
	outDir := flag.String("out", ".", "directory for the downloaded order artifact")
	jobID := flag.String("job", "", "job ID for the polling fallback (optional)")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	logger.Info("starting docsync",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
	)

	if *filePath == "" {
		logger.Error("no document given, use -file")
		os.Exit(1)
	}

	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	apiClient := api.NewClient(
		cfg.API.BaseURL,
		api.WithLogger(logger),
		api.WithTimeout(cfg.API.Timeout),
	)

	if err := apiClient.Health(ctx); err != nil {
		logger.Error("backend health check failed", "error", err)
		os.Exit(1)
	}

	ctrl := session.NewController(controllerConfig(cfg), apiClient, logger)
	defer ctrl.ResetSession()

	f, err := os.Open(*filePath)
	if err != nil {
		logger.Error("failed to open document", "error", err)
		os.Exit(1)
	}

	err = ctrl.UploadDocument(ctx, filepath.Base(*filePath), f)
	f.Close()
	if err != nil {
		logger.Error("upload failed", "error", err)
		os.Exit(1)
	}

	if *jobID != "" {
		ctrl.StartPollingFallback(ctx, *jobID)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return watchCards(gctx, ctrl)
	})

	if *autoSubmit {
		g.Go(func() error {
			return submitWhenReady(gctx, ctrl)
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("session ended with error", "error", err)
		os.Exit(1)
	}

	if name, data, err := ctrl.DownloadOrder(); err == nil {
		path := filepath.Join(*outDir, name)
		if err := os.WriteFile(path, data, 0o644); err != nil {
			logger.Error("failed to write order artifact", "error", err)
			os.Exit(1)
		}
		logger.Info("order artifact written", "path", path)
	}

	logger.Info("docsync finished", "state", ctrl.State())
}

// watchCards prints card transitions until the session reaches a
// terminal state.
func watchCards(ctx context.Context, ctrl *session.Controller) error {
	seen := make(map[string]model.CardStatus)

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			for _, card := range ctrl.Cards() {
				if seen[card.ID] == card.Status {
					continue
				}
				seen[card.ID] = card.Status
				fmt.Printf("%-12s %-10s %s\n", card.ID, card.Status, card.Title)
			}

			switch ctrl.State() {
			case session.StateCompleted:
				return nil
			case session.StateFailed:
				return errors.New("processing failed")
			}
		}
	}
}

// submitWhenReady submits the order as soon as the review card arrives.
func submitWhenReady(ctx context.Context, ctrl *session.Controller) error {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if !ctrl.CanSubmit() {
				switch ctrl.State() {
				case session.StateCompleted, session.StateFailed:
					return nil
				}
				continue
			}

			err := ctrl.SubmitReview(ctx)
			if errors.Is(err, session.ErrSubmitInFlight) {
				continue
			}
			if err != nil {
				return fmt.Errorf("auto submit: %w", err)
			}
			return nil
		}
	}
}

func controllerConfig(cfg *config.Config) session.Config {
	sc := session.DefaultConfig()
	sc.WSBaseURL = cfg.Push.WSURL
	sc.Connection.ReconnectBaseDelay = cfg.Push.ReconnectBaseDelay
	sc.Connection.MaxReconnectAttempts = cfg.Push.MaxReconnectAttempts
	sc.Connection.PingTimeout = cfg.Push.PingTimeout
	sc.Connection.WriteTimeout = cfg.Push.WriteTimeout
	sc.Connection.BufferSize = cfg.Push.BufferSize
	sc.Router.FilterBySession = cfg.Push.FilterBySession
	sc.Polling.Interval = cfg.Polling.Interval
	sc.Polling.MaxFailures = cfg.Polling.MaxFailures
	sc.Polling.RequestTimeout = cfg.Polling.RequestTimeout
	sc.MaxSubmitRetries = cfg.Submission.MaxRetries
	return sc
}
