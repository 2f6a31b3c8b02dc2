package zlog

import (
	"os"
	"path/filepath"
	"strings"

	"OrderPulse/internal/config"

	"github.com/natefinch/lumberjack"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var logger *zap.Logger

func init() {
	conf := config.GetConfig()
	logger = newLogger(conf.LogConfig)
}

// newLogger 控制台始终输出；配置了 logPath 时额外写入按大小切割的 JSON 文件
func newLogger(lc config.LogConfig) *zap.Logger {
	encCfg := zapcore.EncoderConfig{
		TimeKey:        "ts",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
		EncodeDuration: zapcore.MillisDurationEncoder,
	}

	level := parseLevel(lc.Level)
	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.AddSync(os.Stdout), level),
	}

	if path := strings.TrimSpace(lc.LogPath); path != "" {
		_ = os.MkdirAll(filepath.Dir(path), 0o755)
		rotate := &lumberjack.Logger{
			Filename:   path,
			MaxSize:    64,
			MaxBackups: 5,
			MaxAge:     30,
			Compress:   true,
		}
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.AddSync(rotate), level))
	}

	return zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddCallerSkip(1))
}

func parseLevel(s string) zapcore.Level {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(strings.ToLower(strings.TrimSpace(s)))); err != nil || s == "" {
		return zapcore.InfoLevel
	}
	return lvl
}

// L 返回底层 logger，供需要 *zap.Logger 的组件使用
func L() *zap.Logger {
	return logger
}

// SetLogger 替换全局 logger（测试中注入 observer）
func SetLogger(l *zap.Logger) {
	if l == nil {
		return
	}
	logger = l
}

func Debug(msg string, fields ...zap.Field) { logger.Debug(msg, fields...) }
func Info(msg string, fields ...zap.Field)  { logger.Info(msg, fields...) }
func Warn(msg string, fields ...zap.Field)  { logger.Warn(msg, fields...) }
func Error(msg string, fields ...zap.Field) { logger.Error(msg, fields...) }
func Fatal(msg string, fields ...zap.Field) { logger.Fatal(msg, fields...) }

func Sync() error {
	return logger.Sync()
}
