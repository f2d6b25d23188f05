// Package logging builds the application logger. The TUI owns the terminal,
// so log output goes to a file.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/nissyi-gh/flowboard/internal/config"
)

// DefaultPath returns $XDG_STATE_HOME/flowboard/flowboard.log.
func DefaultPath() (string, error) {
	stateHome := os.Getenv("XDG_STATE_HOME")
	if stateHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		stateHome = filepath.Join(home, ".local", "state")
	}
	dir := filepath.Join(stateHome, "flowboard")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return filepath.Join(dir, "flowboard.log"), nil
}

// Open creates the logger for env, appending to path. The returned closer
// releases the file.
func Open(env, path string) (zerolog.Logger, io.Closer, error) {
	if path == "" {
		var err error
		path, err = DefaultPath()
		if err != nil {
			return zerolog.Nop(), nil, fmt.Errorf("determine log path: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return zerolog.Nop(), nil, fmt.Errorf("open log file: %w", err)
	}
	logger, err := New(env, f)
	if err != nil {
		f.Close()
		return zerolog.Nop(), nil, err
	}
	return logger, f, nil
}

// New returns a logger writing to w at the level for env.
func New(env string, w io.Writer) (zerolog.Logger, error) {
	zerolog.TimestampFieldName = "timestamp"

	var level zerolog.Level
	switch env {
	case config.EnvDev:
		level = zerolog.DebugLevel
	case config.EnvProd:
		level = zerolog.InfoLevel
	case config.EnvLocal:
		level = zerolog.TraceLevel

		consoleWriter := zerolog.NewConsoleWriter()
		consoleWriter.TimeFormat = time.DateTime
		consoleWriter.Out = w
		consoleWriter.NoColor = true
		w = consoleWriter
	default:
		return zerolog.Nop(), fmt.Errorf("unknown env: %s", env)
	}

	return zerolog.New(w).
		Level(level).
		With().
		Timestamp().
		Int("pid", os.Getpid()).
		Logger(), nil
}
