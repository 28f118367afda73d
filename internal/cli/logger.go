package cli

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// newLogger builds the JSON diagnostics logger on stderr. --verbose forces
// debug level; otherwise --level applies.
func newLogger(globals *Globals) *zap.Logger {
	if globals == nil || globals.Stderr == nil {
		return zap.NewNop()
	}
	level := zapcore.InfoLevel
	if globals.Verbose {
		level = zapcore.DebugLevel
	} else if err := level.UnmarshalText([]byte(globals.Level)); err != nil {
		level = zapcore.InfoLevel
	}
	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
		zapcore.Lock(zapcore.AddSync(globals.Stderr)),
		level,
	)
	return zap.New(core).Named("vital")
}

// agentLogger wraps zap for verbose replay diagnostics with session context.
type agentLogger struct {
	sugared   *zap.SugaredLogger
	sessionID string
	visitFn   func() int
}

func newAgentLogger(globals *Globals, logger *zap.Logger, sessionID string, visitFn func() int) *agentLogger {
	if globals == nil || !globals.Verbose {
		return &agentLogger{}
	}
	return &agentLogger{
		sugared:   logger.Sugar(),
		sessionID: sessionID,
		visitFn:   visitFn,
	}
}

func (l *agentLogger) Debug(format string, args ...interface{}) {
	if l.sugared == nil {
		return
	}
	visit := 0
	if l.visitFn != nil {
		visit = l.visitFn()
	}
	l.sugared.With("session_id", l.sessionID, "visit", visit).Debugf(format, args...)
}
