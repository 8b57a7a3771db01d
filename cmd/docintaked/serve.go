package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/aspor-platform/docintake/internal/analysis"
	"github.com/aspor-platform/docintake/internal/blob"
	"github.com/aspor-platform/docintake/internal/common"
	"github.com/aspor-platform/docintake/internal/export"
	"github.com/aspor-platform/docintake/internal/extract"
	"github.com/aspor-platform/docintake/internal/llm"
	"github.com/aspor-platform/docintake/internal/ocr"
	"github.com/aspor-platform/docintake/internal/repository"
	"github.com/aspor-platform/docintake/internal/run"
	"github.com/aspor-platform/docintake/internal/server"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(parent context.Context) error {
	cfg, err := common.LoadConfig(cfgFile)
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Production)

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, cleanup, err := buildApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	api := server.New(app.runs, app.exporter, app.store, app.signer, cfg, logger)
	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           api.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("server.listening", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http serve: %w", err)
	case <-ctx.Done():
	}

	logger.Info("server.shutting_down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// app holds the wired pipeline components shared by the serve and process
// commands.
type app struct {
	runs     *run.Service
	exporter *export.Service
	store    blob.Store
	signer   *blob.URLSigner
}

// buildApp wires the full pipeline from config. The returned cleanup closes
// whatever repository was opened.
func buildApp(ctx context.Context, cfg *common.Config, logger *slog.Logger) (*app, func(), error) {
	var (
		repo    repository.RunRepository
		cleanup func()
	)
	switch cfg.Database.Driver {
	case "postgres":
		pg, err := repository.OpenPostgres(ctx, cfg.Database, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("open postgres: %w", err)
		}
		repo, cleanup = pg, pg.Close
	case "sqlite", "":
		sq, err := repository.OpenSQLite(ctx, cfg.Database.DSN, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite: %w", err)
		}
		repo, cleanup = sq, func() { _ = sq.Close() }
	default:
		return nil, nil, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
	}

	secret := cfg.Blob.SigningSecret
	if secret == "" {
		// Ephemeral secret: issued URLs stop working across restarts.
		buf := make([]byte, 32)
		if _, err := rand.Read(buf); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("generate signing secret: %w", err)
		}
		secret = hex.EncodeToString(buf)
		logger.Warn("blob.signing_secret.ephemeral")
	}
	signer := blob.NewURLSigner(secret, cfg.Server.PublicURL)
	store, err := blob.NewFSStore(cfg.Blob.RootDir, signer, logger)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("open blob store: %w", err)
	}

	ocrClient := ocr.NewHTTPClient(cfg.OCR, logger)
	extractor := extract.NewExtractor(store, ocrClient, cfg.OCR, logger)
	generator := llm.NewClient(cfg.LLM, logger)
	invoker := analysis.NewInvoker(generator, logger)

	runs := run.NewService(repo, store, extractor, invoker, run.Options{
		DownloadTTL: cfg.Blob.DownloadTTL,
		Production:  cfg.Production,
	}, logger)

	return &app{
		runs:     runs,
		exporter: export.NewService(repo, logger),
		store:    store,
		signer:   signer,
	}, cleanup, nil
}

func newLogger(production bool) *slog.Logger {
	var handler slog.Handler
	if production {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug})
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}
