// Package logger собирает zap.Logger для веб-сервера и storyctl.
package logger

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Encodings
const (
	EncodingJSON    = "json"
	EncodingConsole = "console"
)

// Config содержит настройки для логгера.
type Config struct {
	Level    string // debug, info, warn, error
	Encoding string // json или console
	// OutputPath - путь или stdout/stderr. Пусто - stdout.
	OutputPath string
	// Service добавляется полем service в каждую запись, если задан.
	Service string
	// Terse убирает время из записей: для вывода в терминал рядом с результатом команды.
	Terse bool
}

// New создает zap.Logger по конфигурации. Неверный уровень заменяется на info.
func New(cfg Config) (*zap.Logger, error) {
	level := zap.NewAtomicLevelAt(zap.InfoLevel)
	if cfg.Level != "" {
		if err := level.UnmarshalText([]byte(strings.ToLower(cfg.Level))); err != nil {
			// Логгера еще нет
			fmt.Fprintf(os.Stderr, "Invalid log level '%s', using 'info'. Error: %v\n", cfg.Level, err)
			level.SetLevel(zap.InfoLevel)
		}
	}

	encoding := strings.ToLower(cfg.Encoding)
	if encoding != EncodingConsole {
		encoding = EncodingJSON
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "timestamp"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	if encoding == EncodingConsole {
		encoderCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoderCfg.ConsoleSeparator = " "
	}
	if cfg.Terse {
		encoderCfg.TimeKey = zapcore.OmitKey
	}

	outputPath := cfg.OutputPath
	if outputPath == "" {
		outputPath = "stdout"
	}

	zapConfig := zap.Config{
		Level:             level,
		DisableCaller:     true,
		DisableStacktrace: true,
		Encoding:          encoding,
		EncoderConfig:     encoderCfg,
		OutputPaths:       []string{outputPath},
		ErrorOutputPaths:  []string{"stderr"},
	}
	if cfg.Service != "" {
		zapConfig.InitialFields = map[string]interface{}{"service": cfg.Service}
	}

	logger, err := zapConfig.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return logger, nil
}

// NewCLI - логгер storyctl: консольный, в stderr, без времени.
// stdout остается за результатами команд.
func NewCLI(level string) (*zap.Logger, error) {
	return New(Config{Level: level, Encoding: EncodingConsole, OutputPath: "stderr", Terse: true})
}
