package log

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/snipermjy/password-manager/internal/config"
	"github.com/stretchr/testify/require"
)

func TestRedactingHandlerMasksSensitiveAttrs(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	handler := NewRedactingHandler(slog.NewJSONHandler(&buf, nil))
	logger := slog.New(handler)

	logger.Info("credential added",
		slog.String("site_name", "GitHub"),
		slog.String("password", "s3cret"),
		slog.String("smtp_password", "mailpass"))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "GitHub", entry["site_name"])
	require.Equal(t, "[REDACTED]", entry["password"])
	require.Equal(t, "[REDACTED]", entry["smtp_password"])
	require.NotContains(t, buf.String(), "s3cret")
}

func TestRedactingHandlerRecursesIntoGroups(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(NewRedactingHandler(slog.NewJSONHandler(&buf, nil)))

	logger.Info("setting changed",
		slog.Group("setting",
			slog.String("key", "smtp_password"),
			slog.String("value", "hunter2")))

	require.NotContains(t, buf.String(), "hunter2")
	require.Contains(t, buf.String(), "[REDACTED]")
}

func TestRedactingHandlerMasksWithAttrs(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(NewRedactingHandler(slog.NewJSONHandler(&buf, nil)))

	logger.With(slog.String("password", "s3cret")).Info("opened")

	require.NotContains(t, buf.String(), "s3cret")
	require.Contains(t, buf.String(), "[REDACTED]")
}

func TestNewRotatingWriterFillsDefaultsAndCompresses(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "logs", "mima.log")
	writer, err := NewRotatingWriter(config.LoggingConfig{File: path})
	require.NoError(t, err)

	require.Equal(t, path, writer.Filename)
	require.Equal(t, 10, writer.MaxSize)
	require.Equal(t, 5, writer.MaxBackups)
	require.True(t, writer.Compress)

	info, err := os.Stat(filepath.Dir(path))
	require.NoError(t, err)
	require.True(t, info.IsDir())
}

func TestNewRotatingWriterRequiresPath(t *testing.T) {
	t.Parallel()

	_, err := NewRotatingWriter(config.LoggingConfig{})
	require.Error(t, err)
}

func TestSetupWritesJSONToFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "logs", "mima.log")
	logger, closeLogger, err := Setup(config.LoggingConfig{
		Level:     "debug",
		File:      path,
		MaxSizeMB: 1,
		MaxFiles:  1,
	})
	require.NoError(t, err)

	logger.Debug("vault opened", slog.String("path", "/tmp/passwords.db"))
	require.NoError(t, closeLogger())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.Split(data, []byte("\n"))[0], &entry))
	require.Equal(t, "vault opened", entry["msg"])
	require.Equal(t, "DEBUG", entry["level"])
}

func TestSetupRespectsLevel(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "mima.log")
	logger, closeLogger, err := Setup(config.LoggingConfig{Level: "error", File: path})
	require.NoError(t, err)

	logger.Info("suppressed")
	logger.Error("kept")
	require.NoError(t, closeLogger())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NotContains(t, string(data), "suppressed")
	require.Contains(t, string(data), "kept")
}
