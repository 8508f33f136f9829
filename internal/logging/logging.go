// Package logging provides the structured logger every component in this
// module accepts, mirroring the narrow Logger shape the teacher corpus
// wires through its own packages (debug/info/warn/error plus a
// service-name tag), backed by go.uber.org/zap.
package logging

import "go.uber.org/zap"

// Logger is the narrow logging contract every package in this module
// depends on, so call sites never import zap directly.
type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)

	// WithServiceName returns a derived Logger tagging every entry with
	// name, for distinguishing log lines from this module's several
	// long-running loops (backward sweep, live sync, republish).
	WithServiceName(name string) Logger
}

type zapLogger struct {
	sugar *zap.SugaredLogger
}

// New returns a Logger backed by a production zap configuration.
func New() (Logger, error) {
	l, err := zap.NewProduction()
	if err != nil {
		return nil, err
	}
	return &zapLogger{sugar: l.Sugar()}, nil
}

// NewDevelopment returns a Logger backed by zap's development
// configuration (human-readable, debug-level enabled), the shape most
// tests and local runs want.
func NewDevelopment() (Logger, error) {
	l, err := zap.NewDevelopment()
	if err != nil {
		return nil, err
	}
	return &zapLogger{sugar: l.Sugar()}, nil
}

func (l *zapLogger) Debugf(format string, args ...any) { l.sugar.Debugf(format, args...) }
func (l *zapLogger) Infof(format string, args ...any)  { l.sugar.Infof(format, args...) }
func (l *zapLogger) Warnf(format string, args ...any)  { l.sugar.Warnf(format, args...) }
func (l *zapLogger) Errorf(format string, args ...any) { l.sugar.Errorf(format, args...) }

func (l *zapLogger) WithServiceName(name string) Logger {
	return &zapLogger{sugar: l.sugar.With("service", name)}
}
