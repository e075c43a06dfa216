package config

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"gopkg.in/natefinch/lumberjack.v2"
)

// InitLogger builds the process logger and installs it as slog's default.
// An empty cfg.File logs to the default state file; "-" logs to stderr,
// colored when cfg.Color is set.
func InitLogger(cfg *LoggingConfig) (*slog.Logger, error) {
	opts := &slog.HandlerOptions{Level: ParseLevel(cfg.Level)}

	var writer io.Writer = os.Stderr
	toFile := cfg.File != "-"
	if toFile {
		if cfg.File == "" {
			cfg.File = filepath.Join(getStateDir(), "shikiplay", "shikiplay.log")
		}
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		writer = &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSize, // megabytes
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge, // days
			Compress:   cfg.Compress,
		}
	}

	var handler slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "json":
		handler = slog.NewJSONHandler(writer, opts)
	default:
		if cfg.Color && !toFile {
			handler = NewLevelColorHandler(writer, opts)
		} else {
			handler = slog.NewTextHandler(writer, opts)
		}
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger, nil
}

var levelStyles = map[slog.Level]lipgloss.Style{
	slog.LevelDebug: lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
	slog.LevelInfo:  lipgloss.NewStyle().Foreground(lipgloss.Color("2")),
	slog.LevelWarn:  lipgloss.NewStyle().Foreground(lipgloss.Color("3")),
	slog.LevelError: lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true),
}

// LevelColorHandler renders records like slog.TextHandler, with the first
// field colored by level
type LevelColorHandler struct {
	w     io.Writer
	opts  *slog.HandlerOptions
	attrs []slog.Attr
	group string
}

// NewLevelColorHandler creates a console handler
func NewLevelColorHandler(w io.Writer, opts *slog.HandlerOptions) *LevelColorHandler {
	return &LevelColorHandler{w: w, opts: opts}
}

// Handle implements slog.Handler
func (h *LevelColorHandler) Handle(ctx context.Context, r slog.Record) error {
	var buf strings.Builder
	var inner slog.Handler = slog.NewTextHandler(&buf, h.opts)
	if len(h.attrs) > 0 {
		inner = inner.WithAttrs(h.attrs)
	}
	if h.group != "" {
		inner = inner.WithGroup(h.group)
	}
	if err := inner.Handle(ctx, r); err != nil {
		return err
	}

	line := buf.String()
	if style, ok := levelStyles[r.Level]; ok {
		if head, tail, found := strings.Cut(line, " "); found {
			line = style.Render(head) + " " + tail
		}
	}
	_, err := io.WriteString(h.w, line)
	return err
}

// WithAttrs implements slog.Handler
func (h *LevelColorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.attrs = append(append([]slog.Attr{}, h.attrs...), attrs...)
	return &next
}

// WithGroup implements slog.Handler
func (h *LevelColorHandler) WithGroup(name string) slog.Handler {
	next := *h
	next.group = name
	return &next
}

// Enabled implements slog.Handler
func (h *LevelColorHandler) Enabled(_ context.Context, level slog.Level) bool {
	threshold := slog.LevelInfo
	if h.opts != nil && h.opts.Level != nil {
		threshold = h.opts.Level.Level()
	}
	return level >= threshold
}

// ParseLevel maps a config string to a slog level, defaulting to info
func ParseLevel(levelStr string) slog.Level {
	switch strings.ToLower(levelStr) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
