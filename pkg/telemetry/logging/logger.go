package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"lycan-hq/arbiter/pkg/config"
)

// Output formats. Console is an alias of text kept for older configs.
const (
	FormatJSON    = "json"
	FormatText    = "text"
	FormatConsole = "console"
)

var levels = map[string]slog.Level{
	"":        slog.LevelInfo,
	"debug":   slog.LevelDebug,
	"info":    slog.LevelInfo,
	"warn":    slog.LevelWarn,
	"warning": slog.LevelWarn,
	"error":   slog.LevelError,
}

// Config selects the handler New builds.
type Config struct {
	Level     string
	Format    string
	AddSource bool

	// RedactPII adds the contact rules and RedactPatterns on top of the
	// credential rules, which always apply.
	RedactPII      bool
	RedactPatterns []config.RedactPattern

	// Writer defaults to os.Stderr.
	Writer io.Writer
}

// FromConfig maps telemetry.logging onto Config.
func FromConfig(cfg config.LoggingConfig) Config {
	return Config{
		Level:          cfg.Level,
		Format:         cfg.Format,
		AddSource:      cfg.AddSource,
		RedactPII:      config.BoolValue(cfg.RedactPII, true),
		RedactPatterns: cfg.RedactPatterns,
	}
}

// Logger is a slog.Logger whose handler redacts attributes and adds the
// room, round, phase and seat carried by the context.
type Logger struct {
	*slog.Logger
}

func New(cfg Config) (*Logger, error) {
	level, ok := levels[strings.ToLower(cfg.Level)]
	if !ok {
		return nil, fmt.Errorf("invalid log level: %q", cfg.Level)
	}

	w := cfg.Writer
	if w == nil {
		w = os.Stderr
	}
	opts := &slog.HandlerOptions{Level: level, AddSource: cfg.AddSource}

	var h slog.Handler
	switch strings.ToLower(cfg.Format) {
	case FormatJSON, "":
		h = slog.NewJSONHandler(w, opts)
	case FormatText, FormatConsole:
		h = slog.NewTextHandler(w, opts)
	default:
		return nil, fmt.Errorf("invalid log format: %q", cfg.Format)
	}

	r := NewCredentialRedactor()
	if cfg.RedactPII {
		r = NewRedactor(cfg.RedactPatterns)
	}
	return &Logger{Logger: slog.New(newRedactHandler(h, r))}, nil
}

// SetDefault installs l as slog's default, which is what every package
// logs through.
func (l *Logger) SetDefault() { slog.SetDefault(l.Logger) }
