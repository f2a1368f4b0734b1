package logx

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds the process logger. Production mode emits JSON at info level,
// everything else uses the colored development encoder.
func New(appEnv string) (*zap.Logger, error) {
	if strings.EqualFold(appEnv, "production") {
		cfg := zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "ts"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		return cfg.Build()
	}
	cfg := zap.NewDevelopmentConfig()
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	return cfg.Build()
}

// Install builds a logger and makes it the zap global. The returned func
// flushes buffered entries and should be deferred by main.
func Install(appEnv string) (func(), error) {
	l, err := New(appEnv)
	if err != nil {
		return func() {}, err
	}
	undo := zap.ReplaceGlobals(l)
	return func() {
		_ = l.Sync()
		undo()
	}, nil
}
