package logger

import (
	"context"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type ZapLogger struct {
	logger *zap.Logger
}

// NewZapLogger builds a JSON production logger writing to stdout.
func NewZapLogger() (Logger, error) {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	config.OutputPaths = []string{"stdout"}

	log, err := config.Build()
	if err != nil {
		return nil, err
	}

	return &ZapLogger{logger: log}, nil
}

func NewZapLoggerForDev() (Logger, error) {
	log, err := zap.NewDevelopment()
	if err != nil {
		return nil, err
	}
	return &ZapLogger{logger: log}, nil
}

// NewNopLogger discards everything. Used by tests.
func NewNopLogger() Logger {
	return &ZapLogger{logger: zap.NewNop()}
}

func (l *ZapLogger) Debug(msg string, fields ...Field) {
	l.logger.Debug(msg, convertFields(fields)...)
}

func (l *ZapLogger) Info(msg string, fields ...Field) {
	l.logger.Info(msg, convertFields(fields)...)
}

func (l *ZapLogger) Warn(msg string, fields ...Field) {
	l.logger.Warn(msg, convertFields(fields)...)
}

func (l *ZapLogger) Error(msg string, fields ...Field) {
	l.logger.Error(msg, convertFields(fields)...)
}

func (l *ZapLogger) Fatal(msg string, fields ...Field) {
	l.logger.Fatal(msg, convertFields(fields)...)
}

func (l *ZapLogger) With(fields ...Field) Logger {
	return &ZapLogger{
		logger: l.logger.With(convertFields(fields)...),
	}
}

func (l *ZapLogger) WithContext(ctx context.Context) Logger {
	if reqID, ok := RequestIDFromContext(ctx); ok {
		return &ZapLogger{
			logger: l.logger.With(zap.String("request_id", reqID)),
		}
	}
	return l
}

func convertFields(fields []Field) []zap.Field {
	zapFields := make([]zap.Field, len(fields))
	for i, f := range fields {
		switch v := f.Value.(type) {
		case string:
			zapFields[i] = zap.String(f.Key, v)
		case int:
			zapFields[i] = zap.Int(f.Key, v)
		case int64:
			zapFields[i] = zap.Int64(f.Key, v)
		case float64:
			zapFields[i] = zap.Float64(f.Key, v)
		case bool:
			zapFields[i] = zap.Bool(f.Key, v)
		case time.Duration:
			zapFields[i] = zap.Duration(f.Key, v)
		default:
			zapFields[i] = zap.Any(f.Key, v)
		}
	}
	return zapFields
}

func (l *ZapLogger) Sync() error {
	return l.logger.Sync()
}

// Logger exposes the underlying zap logger (fx event logging).
func (l *ZapLogger) Logger() *zap.Logger {
	return l.logger
}
