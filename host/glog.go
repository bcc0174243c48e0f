package host

import (
	"context"

	"github.com/goliatone/go-logger/glog"

	"github.com/goliatone/go-aggregate"
)

// GlogAdapter exposes a go-logger instance as an aggregate.Logger.
type GlogAdapter struct {
	logger glog.Logger
}

// NewGlogAdapter wraps logger, falling back to a default go-logger instance
// when nil.
func NewGlogAdapter(logger glog.Logger) GlogAdapter {
	if logger == nil {
		logger = glog.NewLogger()
	}
	return GlogAdapter{logger: logger}
}

func (l GlogAdapter) Trace(msg string, args ...any) { l.logger.Trace(msg, args...) }
func (l GlogAdapter) Debug(msg string, args ...any) { l.logger.Debug(msg, args...) }
func (l GlogAdapter) Info(msg string, args ...any)  { l.logger.Info(msg, args...) }
func (l GlogAdapter) Warn(msg string, args ...any)  { l.logger.Warn(msg, args...) }
func (l GlogAdapter) Error(msg string, args ...any) { l.logger.Error(msg, args...) }
func (l GlogAdapter) Fatal(msg string, args ...any) { l.logger.Fatal(msg, args...) }

func (l GlogAdapter) WithContext(ctx context.Context) aggregate.Logger {
	return GlogAdapter{logger: l.logger.WithContext(ctx)}
}

// WithFields satisfies aggregate.FieldsLogger when the wrapped logger
// supports structured fields.
func (l GlogAdapter) WithFields(fields map[string]any) aggregate.Logger {
	if fl, ok := l.logger.(glog.FieldsLogger); ok {
		return GlogAdapter{logger: fl.WithFields(fields)}
	}
	return l
}
