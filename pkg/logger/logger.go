// Package logger is the logging handle handed to every resolver component.
// It fronts zap through logr so callers can swap the sink per call.
package logger

import (
	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Log carries two levels: Info for resolution outcomes, Debug for per-step
// detail. The embedded logr.Logger also exposes the error channel.
type Log struct {
	logr.Logger
}

// New builds a standalone logger. Production selects zap's JSON encoder,
// development the colored console encoder. The resolver is a library and
// never writes log files; a caller that wants a file sink injects its own
// logr.Logger through Wrap.
func New(name string, production bool) (*Log, error) {
	var zc zap.Config
	if production {
		zc = zap.NewProductionConfig()
	} else {
		zc = zap.NewDevelopmentConfig()
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	zc.DisableCaller = true
	zc.DisableStacktrace = true

	z, err := zc.Build()
	if err != nil {
		return nil, err
	}

	return &Log{Logger: zapr.NewLogger(z).WithName(name)}, nil
}

// NewSimple hangs a named logger off zap's process-wide logger. It is the
// default wherever a caller injects nothing.
func NewSimple(name string) *Log {
	return &Log{Logger: zapr.NewLogger(zap.L().Named(name))}
}

// Wrap adopts a caller-supplied logr.Logger under the given component name
func Wrap(name string, logger logr.Logger) *Log {
	return &Log{Logger: logger.WithName(name)}
}

// New creates a sub-logger of the original one
func (l *Log) New(path string) *Log {
	return &Log{Logger: l.WithName(path)}
}

// Info log
func (l *Log) Info(msg string, args ...interface{}) {
	l.Logger.V(0).WithValues(args...).Info(msg)
}

// Debug log
func (l *Log) Debug(msg string, args ...interface{}) {
	l.Logger.V(1).WithValues(args...).Info(msg)
}
