package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"entrypass/internal/config"
	"entrypass/internal/ledger"
	"entrypass/internal/notify"
)

var noopLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestBuildMemoryLedger(t *testing.T) {
	cfg := config.App{
		LedgerBackend:   config.LedgerMemory,
		MailProvider:    config.MailLog,
		MailFrom:        "tickets@example.com",
		MailFromName:    "TEDx Silver Oaks",
		SyncInterval:    1,
		RateLimitPerMin: 10,
	}

	a, err := build(context.Background(), cfg, noopLogger)
	require.NoError(t, err)
	defer a.Close()

	assert.IsType(t, &ledger.MemoryStore{}, a.ledger.Store())
	assert.IsType(t, unconfiguredSource{}, a.source)

	_, err = a.source.Rows(context.Background())
	assert.Error(t, err)

	_, err = a.syncer.SyncOnce(context.Background())
	assert.Error(t, err)

	families, err := a.registry.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestBuildSQLiteLedger(t *testing.T) {
	cfg := config.App{
		LedgerBackend: config.LedgerSQLite,
		SQLitePath:    filepath.Join(t.TempDir(), "ledger.db"),
		MailProvider:  config.MailLog,
		SyncInterval:  1,
	}

	a, err := build(context.Background(), cfg, noopLogger)
	require.NoError(t, err)
	defer a.Close()

	assert.IsType(t, &ledger.SQLiteStore{}, a.ledger.Store())
	assert.NoError(t, a.ledger.Store().Ping(context.Background()))
}

func TestBuildRedisUnreachable(t *testing.T) {
	cfg := config.App{
		LedgerBackend: config.LedgerRedis,
		RedisAddr:     "127.0.0.1:1",
		MailProvider:  config.MailLog,
	}

	_, err := build(context.Background(), cfg, noopLogger)
	assert.Error(t, err)
}

func TestNewSender(t *testing.T) {
	s, err := newSender(context.Background(), config.App{MailProvider: config.MailSendGrid, SendGridAPIKey: "k"}, noopLogger)
	require.NoError(t, err)
	assert.IsType(t, &notify.SendGridSender{}, s)

	s, err = newSender(context.Background(), config.App{MailProvider: config.MailLog}, noopLogger)
	require.NoError(t, err)
	assert.IsType(t, &notify.LogSender{}, s)
}

func TestSyncCmdRequiresSheet(t *testing.T) {
	t.Setenv("GOOGLE_SHEET_ID", "")
	t.Setenv("SYNC_ENABLED", "false")
	t.Setenv("MAIL_PROVIDER", "log")
	t.Setenv("LEDGER_BACKEND", "memory")

	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"sync"})

	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GOOGLE_SHEET_ID")
}
