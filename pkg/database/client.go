package database

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Client 封裝 GORM DB 實例
type Client struct {
	db *gorm.DB
}

// NewClient 建立並回傳一個新的資料庫客戶端實例 (GORM)
//
// 參數:
//
//	cfg: Config - 連線配置
//	log: 連線重試的紀錄
//
// 回傳值:
//
//	*Client: 封裝後的客戶端
//	error: 若連線失敗則回傳錯誤
func NewClient(cfg Config, log *zap.Logger) (*Client, error) {
	cfg.SetDefaults()
	if log == nil {
		log = zap.NewNop()
	}

	gormConfig := &gorm.Config{
		// 預設跳過事務模式，需要一致性的寫入一律自己開 Transaction
		SkipDefaultTransaction: true,
		Logger:                 newLogger(cfg.LogLevel),
	}

	dialector, err := openDialector(cfg)
	if err != nil {
		return nil, err
	}

	var db *gorm.DB

	// Retry mechanism for database connection
	for i := 0; i < cfg.MaxRetries; i++ {
		db, err = gorm.Open(dialector, gormConfig)
		if err == nil {
			// Try pinging to ensure connection is actually alive
			rawDB, pingErr := db.DB()
			if pingErr == nil {
				if err = rawDB.Ping(); err == nil {
					break // Connection successful
				}
			} else {
				err = pingErr
			}
		}

		if i < cfg.MaxRetries-1 {
			log.Warn("database connection failed, retrying",
				zap.String("driver", cfg.Driver),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", cfg.MaxRetries),
				zap.Duration("retryIn", cfg.RetryInterval),
				zap.Error(err),
			)
			time.Sleep(cfg.RetryInterval)
		}
	}

	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s after %d attempts: %w", cfg.Driver, cfg.MaxRetries, err)
	}

	// 取得底層 sql.DB 物件以設定連線池
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.db: %w", err)
	}

	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if cfg.Driver == DriverSQLite {
		// SQLite 單一寫入者
		sqlDB.SetMaxOpenConns(1)
		_, _ = sqlDB.Exec("PRAGMA journal_mode = WAL;")
		_, _ = sqlDB.Exec("PRAGMA synchronous = FULL;")
	}

	return &Client{db: db}, nil
}

func openDialector(cfg Config) (gorm.Dialector, error) {
	switch cfg.Driver {
	case DriverMySQL:
		return mysql.Open(cfg.DSN()), nil
	case DriverSQLite:
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
		return sqlite.Open(cfg.DSN()), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

// DB 回傳底層的 *gorm.DB 實例，供 adapter 使用
func (c *Client) DB() *gorm.DB {
	return c.db
}

// Close 關閉資料庫連線
func (c *Client) Close() error {
	sqlDB, err := c.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// newLogger 根據配置建立 GORM Logger
func newLogger(level string) logger.Interface {
	var logLevel logger.LogLevel
	switch level {
	case "info":
		logLevel = logger.Info
	case "warn":
		logLevel = logger.Warn
	case "error":
		logLevel = logger.Error
	case "silent":
		logLevel = logger.Silent
	default:
		// 終端機介面，預設不輸出 SQL log
		logLevel = logger.Silent
	}

	return logger.Default.LogMode(logLevel)
}
