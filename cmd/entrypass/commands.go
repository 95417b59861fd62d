package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"entrypass/internal/config"
	"entrypass/internal/handler"
	"entrypass/internal/httpmiddleware"
)

const shutdownTimeout = 10 * time.Second

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "entrypass",
		Short:         "Event entry passes",
		Long:          "Emails QR entry passes to spreadsheet registrants and checks them in at the door",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newServeCmd(), newSyncCmd())
	return root
}

func newServeCmd() *cobra.Command {
	var noSync bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the registration sync loop",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if noSync {
				cfg.SyncEnabled = false
			}
			return serve(cmd.Context(), cfg)
		},
	}
	cmd.Flags().BoolVar(&noSync, "no-sync", false, "serve the API without the periodic registration sync")
	return cmd
}

func newSyncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Run one registration sync cycle and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.SheetID == "" {
				return errors.New("GOOGLE_SHEET_ID is required")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := build(ctx, cfg, cfg.NewLogger())
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.syncer.SyncOnce(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "rows=%d sent=%d failed=%d skipped=%d already_processed=%d\n",
				res.Rows, res.Sent, res.Failed, res.Skipped, res.AlreadyProcessed)
			return nil
		},
	}
}

func serve(parent context.Context, cfg config.App) error {
	logger := cfg.NewLogger()
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	r := handler.NewRouter(handler.New(a.ledger, a.syncer, a.source, logger), handler.RouterOptions{
		Logger:          logger,
		Metrics:         a.metrics,
		Gatherer:        a.registry,
		RateLimitPerMin: cfg.RateLimitPerMin,
		StaticDir:       cfg.StaticDir,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      httpmiddleware.ExposeServerWriter(r),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	syncDone := make(chan struct{})
	if cfg.SyncEnabled {
		go func() {
			defer close(syncDone)
			a.syncer.Run(ctx)
		}()
	} else {
		close(syncDone)
		logger.Info("Registration sync disabled")
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting server", slog.String("addr", srv.Addr), slog.String("ledger", cfg.LedgerBackend), slog.String("mail", cfg.MailProvider))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		stop()
		<-syncDone
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	logger.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced shutdown", slog.String("error", err.Error()))
	}
	<-syncDone

	logger.Info("Server exited")
	return nil
}
