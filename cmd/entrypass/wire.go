package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"entrypass/internal/config"
	"entrypass/internal/ledger"
	"entrypass/internal/metrics"
	"entrypass/internal/notify"
	"entrypass/internal/pass"
	"entrypass/internal/registration"
	"entrypass/internal/sheets"
	"entrypass/internal/store"
)

// app is the wired object graph shared by every command.
type app struct {
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	ledger   *ledger.Service
	source   sheets.Source
	syncer   *registration.Syncer
	closers  []io.Closer
}

func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i].Close())
	}
	return errors.Join(errs...)
}

func build(ctx context.Context, cfg config.App, logger *slog.Logger) (*app, error) {
	a := &app{registry: prometheus.NewRegistry()}
	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.metrics = metrics.New(a.registry)

	st, err := openLedger(ctx, cfg, a)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.ledger = ledger.NewService(st, a.metrics)

	a.source, err = openSource(ctx, cfg)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	sender, err := newSender(ctx, cfg, logger)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	dispatcher, err := notify.NewDispatcher(sender, cfg.MailFrom, cfg.MailFromName, notify.DefaultEvent)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	a.syncer = registration.NewSyncer(
		a.source,
		pass.NewGenerator(pass.DefaultStyle),
		dispatcher,
		a.ledger,
		logger,
		a.metrics,
		registration.WithInterval(cfg.SyncInterval),
		registration.WithStartupDelay(cfg.SyncStartupDelay),
		registration.WithDispatchDelay(cfg.SyncDispatchDelay),
	)
	return a, nil
}

func openLedger(ctx context.Context, cfg config.App, a *app) (ledger.Store, error) {
	switch cfg.LedgerBackend {
	case config.LedgerRedis:
		client, err := store.OpenRedis(ctx, cfg.RedisAddr)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, client)
		return ledger.NewRedisStore(client, "entrypass"), nil
	case config.LedgerPostgres:
		db, err := store.OpenPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, db)
		return ledger.NewPostgresStore(ctx, db)
	case config.LedgerSQLite:
		db, err := store.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, db)
		return ledger.NewSQLiteStore(ctx, db)
	default:
		return ledger.NewMemoryStore(), nil
	}
}

func openSource(ctx context.Context, cfg config.App) (sheets.Source, error) {
	if cfg.SheetID == "" {
		return unconfiguredSource{}, nil
	}
	return sheets.NewGoogleSource(ctx, cfg.CredentialsFile, cfg.SheetID, cfg.SheetRange)
}

func newSender(ctx context.Context, cfg config.App, logger *slog.Logger) (notify.Sender, error) {
	switch cfg.MailProvider {
	case config.MailSendGrid:
		return notify.NewSendGridSender(cfg.SendGridAPIKey, ""), nil
	case config.MailSES:
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get aws config: %w", err)
		}
		return notify.NewSESSender(sesv2.NewFromConfig(awsCfg)), nil
	default:
		return notify.NewLogSender(logger), nil
	}
}

// unconfiguredSource stands in for the sheet when GOOGLE_SHEET_ID is unset.
type unconfiguredSource struct{}

func (unconfiguredSource) Rows(context.Context) ([][]string, error) {
	return nil, errors.New("GOOGLE_SHEET_ID is not configured")
}
