package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/kingrea/semester-planner/internal/config"
)

// FileName is the diagnostics log inside .planner/logs.
const FileName = "planner.log"

// Options tunes rotation and verbosity. Zero values fall back to the
// defaults of config.LoggingConfig.
type Options struct {
	Level      string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// FromConfig maps the project logging section to Options.
func FromConfig(lc config.LoggingConfig) Options {
	return Options{
		Level:      lc.Level,
		MaxSizeMB:  lc.MaxSizeMB,
		MaxBackups: lc.MaxBackups,
		MaxAgeDays: lc.MaxAgeDays,
		Compress:   lc.Compress,
	}
}

// Logger writes JSON diagnostics to .planner/logs/planner.log. It never
// writes to the terminal, which belongs to the interactive UI.
type Logger struct {
	zap     *zap.Logger
	rotator *lumberjack.Logger
	path    string
}

// New creates (or reuses) the log file for the given directory.
func New(projectDir string, opts Options) (*Logger, error) {
	logDir := filepath.Join(projectDir, config.PlannerDir, "logs")
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, fmt.Errorf("logging: ensure log dir: %w", err)
	}
	level, err := zapcore.ParseLevel(strings.TrimSpace(opts.Level))
	if err != nil && strings.TrimSpace(opts.Level) != "" {
		return nil, fmt.Errorf("logging: %w", err)
	}
	if opts.MaxSizeMB <= 0 {
		opts.MaxSizeMB = 10
	}
	if opts.MaxBackups <= 0 {
		opts.MaxBackups = 5
	}
	if opts.MaxAgeDays <= 0 {
		opts.MaxAgeDays = 30
	}

	path := filepath.Join(logDir, FileName)
	rotator := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
		MaxAge:     opts.MaxAgeDays,
		Compress:   opts.Compress,
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "timestamp"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.MessageKey = "message"
	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder

	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig), zapcore.AddSync(rotator), level)
	return &Logger{
		zap:     zap.New(core, zap.AddCaller()),
		rotator: rotator,
		path:    path,
	}, nil
}

// Zap exposes the structured logger. A nil Logger yields a no-op logger.
func (l *Logger) Zap() *zap.Logger {
	if l == nil || l.zap == nil {
		return zap.NewNop()
	}
	return l.zap
}

// Path returns the active log file.
func (l *Logger) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

// Printf writes a single info line.
func (l *Logger) Printf(format string, args ...any) {
	if l == nil || l.zap == nil {
		return
	}
	l.zap.WithOptions(zap.AddCallerSkip(1)).Info(strings.TrimRight(fmt.Sprintf(format, args...), "\n"))
}

// Close flushes buffered entries and releases the file handle.
func (l *Logger) Close() error {
	if l == nil || l.rotator == nil {
		return nil
	}
	_ = l.zap.Sync()
	return l.rotator.Close()
}
