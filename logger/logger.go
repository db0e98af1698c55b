package logger

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Config struct {
	Level      string // debug, info, warn, error
	Encoding   string // json or console
	OutputPath string // stdout when empty
}

// New builds a zap logger from cfg. Unknown levels fall back to info.
func New(cfg Config) (*zap.Logger, error) {
	level := zap.NewAtomicLevel()
	logLevel := strings.ToLower(cfg.Level)
	if logLevel == "" {
		logLevel = "info"
	}
	if err := level.UnmarshalText([]byte(logLevel)); err != nil {
		fmt.Fprintf(os.Stderr, "invalid log level %q, using info: %v\n", cfg.Level, err)
		level.SetLevel(zap.InfoLevel)
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "timestamp"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderCfg.EncodeLevel = zapcore.CapitalLevelEncoder

	encoding := strings.ToLower(cfg.Encoding)
	if encoding != "console" && encoding != "json" {
		encoding = "json"
	}

	outputPath := cfg.OutputPath
	if outputPath == "" {
		outputPath = "stdout"
	}

	zapConfig := zap.Config{
		Level:             level,
		Development:       false,
		DisableCaller:     true,
		DisableStacktrace: true,
		Encoding:          encoding,
		EncoderConfig:     encoderCfg,
		OutputPaths:       []string{outputPath},
		ErrorOutputPaths:  []string{"stderr"},
	}

	logger, err := zapConfig.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return logger, nil
}
