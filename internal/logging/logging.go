package logging

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New 建立寫入檔案的 JSON logger
// 終端機畫面保留給選單使用，所以 log 不輸出到 stdout
//
// 參數:
//
//	file: log 檔路徑，空字串時回傳 zap.NewNop()
//	level: debug / info / warn / error
//
// 回傳:
//
//	*zap.Logger: logger
//	error: 等級無法解析或檔案無法開啟
func New(file, level string) (*zap.Logger, error) {
	if file == "" {
		return zap.NewNop(), nil
	}

	lvl := zapcore.InfoLevel
	if level != "" {
		if err := lvl.UnmarshalText([]byte(level)); err != nil {
			return nil, errors.Wrapf(err, "logging: level %q", level)
		}
	}

	if dir := filepath.Dir(file); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.Wrapf(err, "logging: create %s", dir)
		}
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.OutputPaths = []string{file}
	cfg.ErrorOutputPaths = []string{file}
	cfg.EncoderConfig.TimeKey = "time"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.Sampling = nil

	logger, err := cfg.Build()
	if err != nil {
		return nil, errors.Wrap(err, "logging: build logger")
	}
	return logger, nil
}
