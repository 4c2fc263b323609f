package logging

import (
	"os"

	"go.opentelemetry.io/contrib/bridges/otelzap"
	"go.opentelemetry.io/otel/log"
	"go.uber.org/zap/zapcore"
)

// newDualCore creates the stderr core, teeing into an OTEL log bridge when
// a provider is supplied.
func newDualCore(cfg *Config, level zapcore.Level, otelProvider log.LoggerProvider) zapcore.Core {
	stderrCore := zapcore.NewCore(
		newEncoder(cfg.Format),
		zapcore.Lock(os.Stderr),
		level,
	)

	if otelProvider == nil {
		return stderrCore
	}

	otelCore := otelzap.NewCore("rerankd",
		otelzap.WithLoggerProvider(otelProvider),
	)
	return zapcore.NewTee(stderrCore, otelCore)
}
