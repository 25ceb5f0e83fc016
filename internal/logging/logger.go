package logging

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// FileName is the structured log written under the logs directory.
const FileName = "karsaz.log"

// New builds a zap logger that appends JSON lines to <logDir>/karsaz.log so
// request traces survive after the terminal UI exits. The returned func
// flushes and closes the file.
func New(logDir, level string) (*zap.Logger, func() error, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, nil, fmt.Errorf("logging: parse level %q: %w", level, err)
	}
	if err := os.MkdirAll(logDir, 0o700); err != nil {
		return nil, nil, fmt.Errorf("logging: ensure log dir: %w", err)
	}
	path := filepath.Join(logDir, FileName)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, nil, fmt.Errorf("logging: open log file: %w", err)
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.RFC3339TimeEncoder
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderCfg), zapcore.AddSync(f), lvl)
	logger := zap.New(core).With(zap.Int("pid", os.Getpid()))

	closer := func() error {
		_ = logger.Sync()
		return f.Close()
	}
	return logger, closer, nil
}
