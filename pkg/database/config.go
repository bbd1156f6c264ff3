package database

import (
	"fmt"
	"time"
)

// 支援的資料庫
const (
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite"
)

// Config 定義資料庫連線與連線池的配置
type Config struct {
	Driver string `yaml:"driver" env:"DRIVER"` // "mysql" 或 "sqlite"

	// MySQL
	Host     string `yaml:"host" env:"HOST"`         // 資料庫主機地址
	Port     int    `yaml:"port" env:"PORT"`         // 資料庫埠號 (預設 3306)
	User     string `yaml:"user" env:"USER"`         // 使用者名稱
	Password string `yaml:"password" env:"PASSWORD"` // 密碼
	DBName   string `yaml:"dbName" env:"NAME"`       // 資料庫名稱

	// SQLite
	Path string `yaml:"path" env:"PATH"` // 資料庫檔案路徑

	// 連線池設定 (Connection Pool)
	// 參考: https://github.com/go-sql-driver/mysql#important-settings
	MaxOpenConns    int           `yaml:"maxOpenConns"`    // 最大開啟連線數
	MaxIdleConns    int           `yaml:"maxIdleConns"`    // 最大閒置連線數
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"` // 連線最大存活時間

	// 連線失敗時的重試
	MaxRetries    int           `yaml:"maxRetries"`
	RetryInterval time.Duration `yaml:"retryInterval"`

	// GORM 設定
	LogLevel string `yaml:"logLevel" env:"LOG_LEVEL"` // Log 等級: "silent", "error", "warn", "info"
}

// SetDefaults 補全未設定的欄位
func (c *Config) SetDefaults() {
	if c.Driver == "" {
		c.Driver = DriverSQLite
	}
	if c.Port == 0 {
		c.Port = 3306
	}
	if c.Path == "" {
		c.Path = "bank.db"
	}
	if c.MaxOpenConns == 0 {
		c.MaxOpenConns = 10
	}
	if c.MaxIdleConns == 0 {
		c.MaxIdleConns = 5
	}
	if c.ConnMaxLifetime == 0 {
		c.ConnMaxLifetime = 30 * time.Minute
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 10
	}
	if c.RetryInterval == 0 {
		c.RetryInterval = 2 * time.Second
	}
}

// DSN (Data Source Name) 產生連線字串
// MySQL 格式: user:password@tcp(host:port)/dbname?charset=utf8mb4&parseTime=True&loc=Local
// SQLite 直接使用檔案路徑
func (c *Config) DSN() string {
	if c.Driver == DriverSQLite {
		return c.Path
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		c.User,
		c.Password,
		c.Host,
		c.Port,
		c.DBName,
	)
}
