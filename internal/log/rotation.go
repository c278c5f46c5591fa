package log

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/snipermjy/password-manager/internal/config"
)

// NewRotatingWriter builds the size-rotated file sink for the vault's
// operation log, straight from the logging section of the config. Rotated
// files are compressed; a long-lived vault should not accumulate loose
// plaintext logs next to the database file.
func NewRotatingWriter(cfg config.LoggingConfig) (*lumberjack.Logger, error) {
	if cfg.File == "" {
		return nil, fmt.Errorf("rotating log writer: file path is empty")
	}

	if err := os.MkdirAll(filepath.Dir(cfg.File), 0o700); err != nil {
		return nil, fmt.Errorf("rotating log writer: create directory: %w", err)
	}

	defaults := config.DefaultConfig().Logging
	maxSize := cfg.MaxSizeMB
	if maxSize <= 0 {
		maxSize = defaults.MaxSizeMB
	}
	maxFiles := cfg.MaxFiles
	if maxFiles <= 0 {
		maxFiles = defaults.MaxFiles
	}

	return &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    maxSize,
		MaxBackups: maxFiles,
		Compress:   true,
	}, nil
}
