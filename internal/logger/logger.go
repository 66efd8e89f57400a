// Package logger builds the process logger.
package logger

import (
	"time"

	"github.com/TheZeroSlave/zapsentry"
	"github.com/getsentry/sentry-go"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds logger settings.
type Config struct {
	Level       string
	SentryDSN   string
	Environment string
	Tags        map[string]string
}

// Logger is a zap logger with an optional Sentry client attached.
type Logger struct {
	*zap.Logger
	sentry *sentry.Client
}

// New builds a production zap logger. When a Sentry DSN is set, errors are
// also reported to Sentry and lower levels are kept as breadcrumbs.
func New(cfg Config) (*Logger, error) {
	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = zap.NewAtomicLevel()
	level := cfg.Level
	if level == "" {
		level = "info"
	}
	if err := zapCfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	zapCfg.EncoderConfig.TimeKey = "ts"
	zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	base, err := zapCfg.Build()
	if err != nil {
		return nil, err
	}
	if cfg.SentryDSN == "" {
		return &Logger{Logger: base}, nil
	}

	client, err := sentry.NewClient(sentry.ClientOptions{
		Dsn:         cfg.SentryDSN,
		Environment: cfg.Environment,
	})
	if err != nil {
		return nil, err
	}
	core, err := zapsentry.NewCore(zapsentry.Configuration{
		Level:             zapcore.ErrorLevel,
		EnableBreadcrumbs: true,
		BreadcrumbLevel:   zapcore.InfoLevel,
		Tags:              cfg.Tags,
	}, zapsentry.NewSentryClientFromClient(client))
	if err != nil {
		return nil, err
	}
	return &Logger{Logger: zapsentry.AttachCoreToLogger(core, base), sentry: client}, nil
}

// Close flushes buffered log entries and pending Sentry events.
func (l *Logger) Close() {
	_ = l.Sync()
	if l.sentry != nil {
		l.sentry.Flush(2 * time.Second)
	}
}
