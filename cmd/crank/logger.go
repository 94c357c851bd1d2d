package main

import (
	"io"
	"log/slog"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/dmelton/crank/internal/config"
)

// newLogger builds the run's slog logger: a JSON handler on stderr by
// default, or a rotating file when path is set so long overnight runs do
// not fill the disk. The returned closer is nil for the stderr variant.
func newLogger(level slog.Leveler, path string, rotation config.LogRotationConfig) (*slog.Logger, io.WriteCloser) {
	if path == "" {
		return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})), nil
	}

	w := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    rotation.MaxSizeMB,
		MaxBackups: rotation.MaxBackups,
		MaxAge:     rotation.MaxAgeDays,
		Compress:   rotation.Compress,
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})), w
}
