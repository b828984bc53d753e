// Package paymentlog writes payment failures and webhook diagnostics to a
// dedicated append-only file, separate from the service log.
package paymentlog

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Severity string

const (
	Emergency Severity = "EMERGENCY"
	Alert     Severity = "ALERT"
	Critical  Severity = "CRITICAL"
	Error     Severity = "ERROR"
	Warning   Severity = "WARNING"
	Notice    Severity = "NOTICE"
	Info      Severity = "INFO"
	Debug     Severity = "DEBUG"
)

const DefaultCategory = "stripe"

// Logger owns its own zap core, so recording never changes where the
// global logger writes.
type Logger struct {
	log    *zap.Logger
	closer io.Closer
	once   sync.Once
}

// Open appends to the file at path, creating it and its directory if needed.
func Open(path string) (*Logger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create payment log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open payment log: %w", err)
	}
	l := NewWithWriter(f)
	l.closer = f
	return l, nil
}

// NewWithWriter builds a Logger on an arbitrary writer.
func NewWithWriter(w io.Writer) *Logger {
	encCfg := zapcore.EncoderConfig{
		TimeKey:          "ts",
		MessageKey:       "msg",
		LineEnding:       zapcore.DefaultLineEnding,
		EncodeTime:       zapcore.ISO8601TimeEncoder,
		EncodeDuration:   zapcore.StringDurationEncoder,
		ConsoleSeparator: "\t",
	}
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.Lock(zapcore.AddSync(w)), zapcore.DebugLevel)
	return &Logger{log: zap.New(core)}
}

// Nop discards everything.
func Nop() *Logger {
	return &Logger{log: zap.NewNop()}
}

// Record appends "<ts>\t<category>.<SEVERITY>: <message>".
func (l *Logger) Record(severity Severity, category, message string) {
	if l == nil {
		return
	}
	if category == "" {
		category = DefaultCategory
	}
	l.log.Info(fmt.Sprintf("%s.%s: %s", category, severity, message))
}

// Log records message as a stripe alert.
func (l *Logger) Log(message string) {
	l.Record(Alert, DefaultCategory, message)
}

func (l *Logger) Close() error {
	if l == nil {
		return nil
	}
	var err error
	l.once.Do(func() {
		_ = l.log.Sync()
		if l.closer != nil {
			err = l.closer.Close()
		}
	})
	return err
}
