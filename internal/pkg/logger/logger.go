package logger

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"ggp-deploy/internal/config"
)

type Logger struct {
	*zap.Logger
}

// New builds a logger writing to stderr and, when cfg.File is set, to a
// rotating log file.
func New(cfg config.LoggingConfig) (*Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("parse log level: %w", err)
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	var enc zapcore.Encoder
	if cfg.Format == "json" {
		enc = zapcore.NewJSONEncoder(encCfg)
	} else {
		encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		enc = zapcore.NewConsoleEncoder(encCfg)
	}

	cores := []zapcore.Core{
		zapcore.NewCore(enc, zapcore.Lock(os.Stderr), level),
	}
	if cfg.File != "" {
		fileCfg := zap.NewProductionEncoderConfig()
		fileCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		cores = append(cores, zapcore.NewCore(
			zapcore.NewJSONEncoder(fileCfg),
			zapcore.AddSync(&lumberjack.Logger{
				Filename:   cfg.File,
				MaxSize:    10,
				MaxBackups: 3,
				MaxAge:     28,
			}),
			level,
		))
	}

	return &Logger{Logger: zap.New(zapcore.NewTee(cores...))}, nil
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{Logger: zap.NewNop()}
}

func (l *Logger) CommandIssued(target string, argv []string) {
	l.Debug("issuing command",
		zap.String("type", "command"),
		zap.String("target", target),
		zap.Strings("argv", argv),
	)
}

func (l *Logger) DeploymentStep(step, instance string) {
	l.Info("running deployment step",
		zap.String("type", "deployment"),
		zap.String("step", step),
		zap.String("instance", instanceField(instance)),
	)
}

func (l *Logger) DeploymentError(step string, exitCode int, err error) {
	fields := []zap.Field{
		zap.String("type", "deployment"),
		zap.String("step", step),
		zap.Int("exit_code", exitCode),
	}
	if err != nil {
		fields = append(fields, zap.Error(err))
	}
	l.Error("deployment step failed", fields...)
}

func (l *Logger) DeploymentSuccess(step string) {
	l.Info("deployment step succeeded",
		zap.String("type", "deployment"),
		zap.String("step", step),
	)
}

func instanceField(instance string) string {
	if instance == "" {
		return "(default)"
	}
	return instance
}
