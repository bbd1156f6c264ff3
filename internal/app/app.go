package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/brunovdl/sistemabancarioXPTO/internal/app/core/adapter/out/jsonfile"
	"github.com/brunovdl/sistemabancarioXPTO/internal/app/core/adapter/out/memory"
	"github.com/brunovdl/sistemabancarioXPTO/internal/app/core/adapter/out/postgres"
	"github.com/brunovdl/sistemabancarioXPTO/internal/app/core/adapter/out/sqldb"
	"github.com/brunovdl/sistemabancarioXPTO/internal/app/core/domain"
	"github.com/brunovdl/sistemabancarioXPTO/internal/app/core/usecase"
	"github.com/brunovdl/sistemabancarioXPTO/internal/config"
	"github.com/brunovdl/sistemabancarioXPTO/internal/logging"
	"github.com/brunovdl/sistemabancarioXPTO/internal/metrics"
	"github.com/brunovdl/sistemabancarioXPTO/pkg/database"
)

const sequencerBuffer = 1000

// App 組裝好的應用程式：設定、logger、儲存層與 LedgerService
type App struct {
	Config   config.Config
	Logger   *zap.Logger
	Service  *usecase.LedgerService
	Recorder *metrics.Recorder
	Location *time.Location

	repo usecase.Repository
}

// New 依設定初始化所有元件
//
// 參數:
//
//	ctx: 連線資料庫時使用
//	cfg: 已載入的設定
//
// 回傳:
//
//	*App: 應用程式
//	error: logger 或儲存層初始化失敗
func New(ctx context.Context, cfg config.Config) (*App, error) {
	// 1. Logger
	logger, err := logging.New(cfg.Log.File, cfg.Log.Level)
	if err != nil {
		return nil, err
	}

	loc, err := cfg.Location()
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}

	// 2. 儲存層
	repo, err := openRepository(ctx, cfg, loc, logger)
	if err != nil {
		logger.Error("open storage failed", zap.String("driver", cfg.Storage.Driver), zap.Error(err))
		_ = logger.Sync()
		return nil, err
	}
	if cfg.Storage.Sequencer {
		sequencer := memory.NewLMAXLedger(repo, sequencerBuffer)
		sequencer.Start(context.WithoutCancel(ctx))
		repo = sequencer
	}
	logger.Info("storage opened", zap.String("driver", cfg.Storage.Driver), zap.Bool("sequencer", cfg.Storage.Sequencer))

	// 3. UseCase
	recorder := metrics.NewRecorder()
	service := usecase.NewLedgerService(repo,
		usecase.WithLogger(logger),
		usecase.WithRecorder(recorder),
		usecase.WithClock(func() time.Time { return time.Now().In(loc) }),
	)

	return &App{
		Config:   cfg,
		Logger:   logger,
		Service:  service,
		Recorder: recorder,
		Location: loc,
		repo:     repo,
	}, nil
}

func openRepository(ctx context.Context, cfg config.Config, loc *time.Location, logger *zap.Logger) (usecase.Repository, error) {
	switch cfg.Storage.Driver {
	case config.DriverJSON:
		return jsonfile.Open(jsonfile.Options{
			Dir:              cfg.Storage.DataDir,
			AccountsFile:     cfg.Storage.AccountsFile,
			TransactionsFile: cfg.Storage.TransactionsFile,
			WALFile:          cfg.Storage.WALFile,
			LockFile:         cfg.Storage.LockFile,
			Location:         loc,
			Logger:           logger,
		})
	case config.DriverMemory:
		return memory.NewMutexLedger(nil, domain.RandomAccountNumbers), nil
	case config.DriverMySQL, config.DriverSQLite:
		dbCfg := cfg.Database
		dbCfg.Driver = cfg.Storage.Driver
		client, err := database.NewClient(dbCfg, logger)
		if err != nil {
			return nil, domain.NewPersistenceError("open", err)
		}
		ledger, err := sqldb.NewSQLLedger(client, domain.RandomAccountNumbers)
		if err != nil {
			_ = client.Close()
			return nil, err
		}
		return ledger, nil
	case config.DriverPostgres:
		return postgres.Open(ctx, cfg.Postgres, domain.RandomAccountNumbers)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}

// Close 寫出 metrics、關閉儲存層並 flush logger
func (a *App) Close() error {
	var firstErr error
	if err := a.Recorder.WriteTextfile(a.Config.Metrics.Textfile); err != nil {
		a.Logger.Warn("write metrics textfile failed", zap.Error(err))
		firstErr = err
	}
	if err := a.repo.Close(); err != nil {
		a.Logger.Error("close storage failed", zap.Error(err))
		if firstErr == nil {
			firstErr = err
		}
	}
	a.Logger.Info("storage closed")
	_ = a.Logger.Sync()
	return firstErr
}
