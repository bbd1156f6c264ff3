package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/brunovdl/sistemabancarioXPTO/internal/app/core/adapter/out/jsonfile"
	"github.com/brunovdl/sistemabancarioXPTO/internal/config"
)

func newConfig(t *testing.T, driver string) config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Storage.Driver = driver
	cfg.Storage.DataDir = dir
	cfg.Log.File = filepath.Join(dir, "bank.log")
	cfg.Metrics.Textfile = filepath.Join(dir, "bank.prom")
	cfg.Database.Path = ""
	cfg.SetDefaults()
	require.NoError(t, cfg.Validate())
	return cfg
}

func TestNew_JSONStorage(t *testing.T) {
	ctx := context.Background()
	cfg := newConfig(t, config.DriverJSON)

	a, err := New(ctx, cfg)
	require.NoError(t, err)
	account, err := a.Service.OpenAccount(ctx, "Ana Silva", "11999990000")
	require.NoError(t, err)
	_, err = a.Service.Deposit(ctx, account, decimal.RequireFromString("100"))
	require.NoError(t, err)
	require.NoError(t, a.Close())

	require.FileExists(t, filepath.Join(cfg.Storage.DataDir, jsonfile.DefaultAccountsFile))
	prom, err := os.ReadFile(cfg.Metrics.Textfile)
	require.NoError(t, err)
	require.Contains(t, string(prom), `bank_ledger_operations_total{operation="deposit",outcome="ok"} 1`)
	logs, err := os.ReadFile(cfg.Log.File)
	require.NoError(t, err)
	require.Contains(t, string(logs), "account opened")

	// 重新開啟後資料仍在
	a, err = New(ctx, cfg)
	require.NoError(t, err)
	defer a.Close()
	reloaded, err := a.Service.Authenticate(ctx, account.AccountNumber)
	require.NoError(t, err)
	require.Equal(t, "100.00", reloaded.Balance.StringFixed(2))
}

func TestNew_SQLiteStorage(t *testing.T) {
	ctx := context.Background()
	cfg := newConfig(t, config.DriverSQLite)
	cfg.Database.MaxRetries = 1

	a, err := New(ctx, cfg)
	require.NoError(t, err)
	defer a.Close()
	_, err = a.Service.OpenAccount(ctx, "Ana Silva", "11999990000")
	require.NoError(t, err)
	accounts, err := a.Service.ListAccounts(ctx)
	require.NoError(t, err)
	require.Len(t, accounts, 1)
}

func TestNew_MemoryWithSequencer(t *testing.T) {
	ctx := context.Background()
	cfg := newConfig(t, config.DriverMemory)
	cfg.Storage.Sequencer = true

	a, err := New(ctx, cfg)
	require.NoError(t, err)
	account, err := a.Service.OpenAccount(ctx, "Ana Silva", "11999990000")
	require.NoError(t, err)
	account, err = a.Service.Deposit(ctx, account, decimal.RequireFromString("10"))
	require.NoError(t, err)
	require.Equal(t, "10.00", account.Balance.StringFixed(2))
	require.NoError(t, a.Close())
}

func TestNew_UnknownDriver(t *testing.T) {
	cfg := newConfig(t, config.DriverMemory)
	cfg.Storage.Driver = "redis"
	_, err := New(context.Background(), cfg)
	require.Error(t, err)
}
