package logger

import (
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Standard field names for consistent structured logging.
const (
	FieldRequestID  = "request_id"
	FieldIdentity   = "identity"
	FieldKind       = "kind"
	FieldAttempt    = "attempt"
	FieldErrorKind  = "error_kind"
	FieldError      = "error"
	FieldDurationMS = "duration_ms"
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldStatus     = "status"
	FieldClientIP   = "client_ip"
)

// New builds a logger. JSON output uses the zap production encoder for
// machine consumption; otherwise a colored console encoder writes to stdout.
func New(jsonOutput bool, level string) (*zap.SugaredLogger, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}

	if jsonOutput {
		config := zap.NewProductionConfig()
		config.Level = zap.NewAtomicLevelAt(lvl)
		config.OutputPaths = []string{"stdout"}
		config.ErrorOutputPaths = []string{"stderr"}
		zapLogger, err := config.Build()
		if err != nil {
			return nil, errors.Wrap(err, "build json logger")
		}
		return zapLogger.Sugar(), nil
	}

	encoderConfig := zap.NewDevelopmentEncoderConfig()
	encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	encoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000")

	zapLogger := zap.New(
		zapcore.NewCore(
			zapcore.NewConsoleEncoder(encoderConfig),
			zapcore.AddSync(os.Stdout),
			lvl,
		),
	)
	return zapLogger.Sugar(), nil
}

// ParseLevel maps a level name to a zap level. Empty means info.
func ParseLevel(level string) (zapcore.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "", "info":
		return zapcore.InfoLevel, nil
	case "debug":
		return zapcore.DebugLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, errors.Newf("unknown log level %q", level)
	}
}

// Named returns a child logger for a component, or a no-op logger when
// parent is nil.
func Named(parent *zap.SugaredLogger, component string) *zap.SugaredLogger {
	if parent == nil {
		return zap.NewNop().Sugar()
	}
	return parent.Named(component)
}
