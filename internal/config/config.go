package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/brunovdl/sistemabancarioXPTO/internal/app/core/adapter/out/postgres"
	"github.com/brunovdl/sistemabancarioXPTO/pkg/database"
)

// DefaultPath 預設設定檔路徑
const DefaultPath = "config/config.yaml"

// EnvPrefix 環境變數前綴，例如 BANK_STORAGE_DRIVER
const EnvPrefix = "BANK_"

// 儲存層種類
const (
	DriverJSON     = "json"
	DriverMemory   = "memory"
	DriverMySQL    = database.DriverMySQL
	DriverSQLite   = database.DriverSQLite
	DriverPostgres = "postgres"
)

// Config 應用程式設定
type Config struct {
	Storage  StorageConfig   `yaml:"storage" envPrefix:"STORAGE_"`
	Database database.Config `yaml:"database" envPrefix:"DB_"`
	Postgres postgres.Config `yaml:"postgres" envPrefix:"PG_"`
	Log      LogConfig       `yaml:"log" envPrefix:"LOG_"`
	Metrics  MetricsConfig   `yaml:"metrics" envPrefix:"METRICS_"`
	UI       UIConfig        `yaml:"ui" envPrefix:"UI_"`
}

// StorageConfig 儲存層選擇與 JSON 檔案位置
type StorageConfig struct {
	Driver           string `yaml:"driver" env:"DRIVER"` // json | memory | mysql | sqlite | postgres
	DataDir          string `yaml:"dataDir" env:"DATA_DIR"`
	AccountsFile     string `yaml:"accountsFile" env:"ACCOUNTS_FILE"`
	TransactionsFile string `yaml:"transactionsFile" env:"TRANSACTIONS_FILE"`
	WALFile          string `yaml:"walFile" env:"WAL_FILE"`
	LockFile         string `yaml:"lockFile" env:"LOCK_FILE"`
	// Timezone 交易時間的時區 (IANA 名稱)，空字串為系統時區
	Timezone string `yaml:"timezone" env:"TIMEZONE"`
	// Sequencer 為 true 時寫入單元交由單一 goroutine 依序執行
	Sequencer bool `yaml:"sequencer" env:"SEQUENCER"`
}

// LogConfig zap logger 設定
type LogConfig struct {
	File  string `yaml:"file" env:"FILE"`
	Level string `yaml:"level" env:"LEVEL"`
}

// MetricsConfig 為空時不輸出 metrics
type MetricsConfig struct {
	Textfile string `yaml:"textfile" env:"TEXTFILE"`
}

// UIConfig 終端機介面設定
type UIConfig struct {
	// Pause 畫面切換前停頓的時間
	Pause       time.Duration `yaml:"pause" env:"PAUSE"`
	ClearScreen bool          `yaml:"clearScreen" env:"CLEAR_SCREEN"`
}

// Default 回傳全部使用預設值的設定
func Default() Config {
	var cfg Config
	cfg.SetDefaults()
	return cfg
}

// SetDefaults 補全未設定的欄位
func (c *Config) SetDefaults() {
	if c.Storage.Driver == "" {
		c.Storage.Driver = DriverJSON
	}
	if c.Storage.DataDir == "" {
		c.Storage.DataDir = "."
	}
	if c.Log.File == "" {
		c.Log.File = "bank.log"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Storage.Driver == DriverMySQL || c.Storage.Driver == DriverSQLite {
		c.Database.Driver = c.Storage.Driver
	}
	if c.Database.Path == "" {
		c.Database.Path = filepath.Join(c.Storage.DataDir, "bank.db")
	}
	c.Database.SetDefaults()
}

// Validate 檢查設定值
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case DriverJSON, DriverMemory, DriverMySQL, DriverSQLite, DriverPostgres:
	default:
		return fmt.Errorf("config: unknown storage driver %q", c.Storage.Driver)
	}
	if c.UI.Pause < 0 {
		return fmt.Errorf("config: ui.pause must not be negative")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// Location 解析 Storage.Timezone
func (c *Config) Location() (*time.Location, error) {
	if c.Storage.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Storage.Timezone)
	if err != nil {
		return nil, errors.Wrapf(err, "config: timezone %q", c.Storage.Timezone)
	}
	return loc, nil
}

// Load 載入設定
// 順序：.env → YAML 檔 → BANK_* 環境變數 → 預設值
//
// 參數:
//
//	path: 設定檔路徑，空字串時使用 DefaultPath 且檔案不存在不視為錯誤
//
// 回傳:
//
//	Config: 設定
//	error: 讀取或解析失敗
func Load(path string) (Config, error) {
	var cfg Config

	// .env 不存在是正常情況
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return cfg, errors.Wrap(err, "config: load .env")
	}

	optional := path == ""
	if optional {
		path = DefaultPath
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, errors.Wrapf(err, "config: parse %s", path)
		}
	case optional && os.IsNotExist(err):
	default:
		return cfg, errors.Wrapf(err, "config: read %s", path)
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return cfg, errors.Wrap(err, "config: parse environment")
	}

	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}
