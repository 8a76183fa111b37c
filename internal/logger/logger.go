package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var log = zap.NewNop()

type Configuration struct {
	LogFile    string `toml:"file"`
	ErrorFile  string `toml:"error_file"`
	Level      string `toml:"level"`
	Console    bool   `toml:"console"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days"`
}

// encoderConfig is zap's production layout with the field names the log
// shippers expect.
func encoderConfig() zapcore.EncoderConfig {
	config := zap.NewProductionEncoderConfig()
	config.TimeKey = "timestamp"
	config.MessageKey = "message"
	config.EncodeTime = zapcore.RFC3339NanoTimeEncoder
	return config
}

// Initialize builds the package logger: a JSON file at Level, a JSON file
// with errors only, and a console sink, each one optional.
func Initialize(configuration Configuration) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(configuration.Level)); err != nil {
		level = zapcore.DebugLevel
	}

	var cores []zapcore.Core
	if configuration.LogFile != "" {
		cores = append(cores, jsonCore(rotating(configuration, configuration.LogFile), level))
	}
	if configuration.ErrorFile != "" {
		cores = append(cores, jsonCore(rotating(configuration, configuration.ErrorFile), zapcore.ErrorLevel))
	}
	if configuration.Console {
		cores = append(cores, zapcore.NewCore(zapcore.NewConsoleEncoder(encoderConfig()), zapcore.Lock(os.Stdout), level))
	}

	log = zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddCallerSkip(1))
}

func jsonCore(sink *lumberjack.Logger, level zapcore.LevelEnabler) zapcore.Core {
	return zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig()), zapcore.AddSync(sink), level)
}

func rotating(configuration Configuration, filename string) *lumberjack.Logger {
	return &lumberjack.Logger{
		Filename:   filename,
		MaxSize:    configuration.MaxSizeMB,
		MaxBackups: configuration.MaxBackups,
		MaxAge:     configuration.MaxAgeDays,
		Compress:   true,
	}
}

// Replace swaps the package logger; tests use it with zaptest/observer cores.
func Replace(l *zap.Logger) {
	log = l.WithOptions(zap.AddCallerSkip(1))
}

func Sync() {
	_ = log.Sync()
}

func Debug(message string, fields ...zap.Field) {
	log.Debug(message, fields...)
}

func Info(message string, fields ...zap.Field) {
	log.Info(message, fields...)
}

func Warn(message string, fields ...zap.Field) {
	log.Warn(message, fields...)
}

func Error(message string, fields ...zap.Field) {
	log.Error(message, fields...)
}

func Fatal(message string, fields ...zap.Field) {
	log.Fatal(message, fields...)
}
