// Package clipboard copies embed links to the system clipboard
package clipboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"runtime"
	"strings"

	"github.com/atotto/clipboard"
)

// ErrNoTool is returned when no clipboard utility could be found
var ErrNoTool = errors.New("no clipboard utility available")

// Service copies text to the clipboard. A configured command takes
// precedence; otherwise the clipboard package is tried first and the
// platform utilities after it.
type Service struct {
	command []string
	logger  *slog.Logger

	// writeAll and lookPath are swapped in tests
	writeAll func(string) error
	lookPath func(string) (string, error)
}

// NewService creates a service. command is an optional shell-like command
// line such as `wl-copy -n` that receives the text on stdin.
func NewService(command string, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		command:  parseCommand(command),
		logger:   logger.With("component", "clipboard"),
		writeAll: clipboard.WriteAll,
		lookPath: exec.LookPath,
	}
}

// Copy writes text to the clipboard
func (s *Service) Copy(ctx context.Context, text string) error {
	if len(s.command) > 0 {
		return s.run(ctx, s.command, text)
	}

	err := s.writeAll(text)
	if err == nil {
		s.logger.Debug("copied to clipboard", "text_length", len(text))
		return nil
	}
	s.logger.Warn("failed to copy to clipboard using primary method", "error", err)

	cmd := s.defaultCommand()
	if cmd == nil {
		return fmt.Errorf("%w on %s: %v", ErrNoTool, runtime.GOOS, err)
	}
	return s.run(ctx, cmd, text)
}

func (s *Service) run(ctx context.Context, parts []string, text string) error {
	cmd := exec.CommandContext(ctx, parts[0], parts[1:]...)
	cmd.Stdin = strings.NewReader(text)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to copy with %s: %w", parts[0], err)
	}
	s.logger.Debug("copied to clipboard", "command", parts[0], "text_length", len(text))
	return nil
}

// defaultCommand picks the platform utility, or nil when there is none
func (s *Service) defaultCommand() []string {
	switch runtime.GOOS {
	case "windows":
		return []string{"clip.exe"}
	case "darwin":
		return []string{"pbcopy"}
	case "linux":
		if isWSL() {
			return []string{"clip.exe"}
		}
		candidates := [][]string{
			{"wl-copy"},
			{"xclip", "-selection", "clipboard"},
			{"xsel", "--clipboard", "--input"},
		}
		for _, c := range candidates {
			if _, err := s.lookPath(c[0]); err == nil {
				return c
			}
		}
	}
	return nil
}

// parseCommand splits a command line on spaces, respecting quotes
func parseCommand(command string) []string {
	var parts []string
	var current strings.Builder
	var quote rune

	flush := func() {
		if current.Len() > 0 {
			parts = append(parts, current.String())
			current.Reset()
		}
	}

	for _, r := range command {
		switch {
		case quote == 0 && (r == '\'' || r == '"'):
			quote = r
		case quote != 0 && r == quote:
			quote = 0
		case quote == 0 && r == ' ':
			flush()
		default:
			current.WriteRune(r)
		}
	}
	flush()
	return parts
}

// isWSL checks /proc/version for the WSL kernel
func isWSL() bool {
	version, err := os.ReadFile("/proc/version")
	if err != nil {
		return false
	}
	v := strings.ToLower(string(version))
	return strings.Contains(v, "microsoft") || strings.Contains(v, "wsl")
}
