package kernel

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// levelCritical sits above slog.LevelError for fatal application faults.
const levelCritical = slog.LevelError + 4

// ParseLevel converts a level name such as "DEBUG" or "WARNING" into a
// slog level.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "DEBUG":
		return slog.LevelDebug, nil
	case "INFO":
		return slog.LevelInfo, nil
	case "WARN", "WARNING":
		return slog.LevelWarn, nil
	case "ERROR":
		return slog.LevelError, nil
	case "CRITICAL", "FATAL":
		return levelCritical, nil
	}
	return 0, fmt.Errorf("unknown log level %q", name)
}

// Logging owns the kernel's log output: one handler writing to the log
// file, split into an application logger and an "external" logger for
// third-party noise, each with an independently adjustable level.
type Logging struct {
	App *slog.Logger
	Ext *slog.Logger

	appLevel *slog.LevelVar
	extLevel *slog.LevelVar
	file     *os.File
}

// OpenLogging builds the log output described by cfg. When the
// configured log file cannot be opened the output falls back to a file
// in the temp directory, then to stderr.
func OpenLogging(cfg LoggingConfig) (*Logging, error) {
	appLevel, err := ParseLevel(cfg.AppLevel)
	if err != nil {
		return nil, err
	}
	extLevel, err := ParseLevel(cfg.ExtLevel)
	if err != nil {
		return nil, err
	}

	logging := &Logging{
		appLevel: &slog.LevelVar{},
		extLevel: &slog.LevelVar{},
	}
	logging.appLevel.Set(appLevel)
	logging.extLevel.Set(extLevel)

	var out io.Writer = os.Stderr
	file, openErr := openLogFile(cfg.File)
	if openErr == nil {
		logging.file = file
		out = file
	}

	newHandler := func(level slog.Leveler) slog.Handler {
		opts := &slog.HandlerOptions{Level: level}
		if cfg.JSON == nil || *cfg.JSON {
			return slog.NewJSONHandler(out, opts)
		}
		return slog.NewTextHandler(out, opts)
	}

	logging.App = slog.New(newHandler(logging.appLevel))
	logging.Ext = slog.New(newHandler(logging.extLevel)).With("source", "ext")

	if openErr != nil {
		logging.App.Warn("falling back to stderr for log output", "error", openErr)
	}
	return logging, nil
}

// openLogFile opens path for appending, trying a temp-directory fallback
// when path is not writable.
func openLogFile(path string) (*os.File, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err == nil {
		return file, nil
	}

	fallback := filepath.Join(os.TempDir(), filepath.Base(path))
	file, fallbackErr := os.OpenFile(fallback, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if fallbackErr != nil {
		return nil, fmt.Errorf("opening log file %s: %w", path, err)
	}
	return file, nil
}

// SetAppLevel adjusts the application log level by name.
func (l *Logging) SetAppLevel(name string) error {
	level, err := ParseLevel(name)
	if err != nil {
		return err
	}
	l.appLevel.Set(level)
	return nil
}

// SetExtLevel adjusts the external log level by name.
func (l *Logging) SetExtLevel(name string) error {
	level, err := ParseLevel(name)
	if err != nil {
		return err
	}
	l.extLevel.Set(level)
	return nil
}

// Close flushes and closes the log file if one was opened.
func (l *Logging) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}
