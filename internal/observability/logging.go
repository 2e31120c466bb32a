// Package observability builds the two cross-cutting collaborators
// cmd/scout uses: a logr.Logger (backed by zap) and an OpenTelemetry
// tracer. No library package takes either at construction. Grounded on kubernaut's own
// zap.NewProductionConfig + zapr.NewLogger conversion
// (test/integration/gateway/helpers_test.go), generalized to this
// repo's config.LoggingConfig instead of a hardcoded stdout/stderr config.
package observability

import (
	"fmt"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/fourthplaces/rootsignal/internal/config"
)

// NewLogger builds a logr.Logger over zap per cfg: "json" or "console"
// encoding, level from cfg.Level (debug/info/warn/error, defaulting to
// info on an unrecognized value).
func NewLogger(cfg config.LoggingConfig) (logr.Logger, error) {
	zapCfg := zap.NewProductionConfig()
	zapCfg.OutputPaths = []string{"stdout"}
	zapCfg.ErrorOutputPaths = []string{"stderr"}

	if cfg.Encoding == "console" {
		zapCfg.Encoding = "console"
		zapCfg.EncoderConfig = zap.NewDevelopmentEncoderConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return logr.Logger{}, fmt.Errorf("build zap logger: %w", err)
	}

	return zapr.NewLogger(logger), nil
}
