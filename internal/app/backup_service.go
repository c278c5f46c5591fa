package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/snipermjy/password-manager/internal/codec"
	"github.com/snipermjy/password-manager/internal/storage"
)

const (
	backupFilePrefix = "密码备份_"
	tempFilePrefix   = "mima_backup_"
)

// BackupService produces export snapshots for backup consumers and owns
// the backup-history trail. The delivery transport (email) is an external
// collaborator: it receives a snapshot path and reports the outcome back
// through RecordResult.
type BackupService struct {
	vault  *VaultService
	logger *slog.Logger
}

func NewBackupService(vault *VaultService, logger *slog.Logger) *BackupService {
	if logger == nil {
		logger = slog.Default()
	}
	return &BackupService{vault: vault, logger: logger}
}

// BackupToDir writes a timestamped export of all active records into the
// directory and appends a history entry recording the outcome.
func (s *BackupService) BackupToDir(ctx context.Context, dir string, format codec.Format) (string, error) {
	if s == nil || s.vault == nil {
		return "", fmt.Errorf("backup: vault service is nil")
	}
	if strings.TrimSpace(dir) == "" {
		return "", fmt.Errorf("%w: backup directory is required", ErrValidation)
	}

	records, err := s.vault.List(ctx, false)
	if err != nil {
		return "", fmt.Errorf("backup: %w", err)
	}

	timestamp := time.Now().Format("2006-01-02_15-04-05")
	path := filepath.Join(dir, backupFilePrefix+timestamp+format.Extension())

	exportErr := s.vault.ExportFile(records, format, path)

	entry := &storage.BackupEntry{
		Kind:     BackupKindLocal,
		FilePath: path,
		Status:   BackupStatusSuccess,
		Message:  fmt.Sprintf("%d 条记录", len(records)),
	}
	if exportErr != nil {
		entry.Status = BackupStatusFailed
		entry.Message = exportErr.Error()
	}
	if _, historyErr := s.vault.Store().Backups.Append(ctx, entry); historyErr != nil {
		s.logger.Error("record backup history", slog.String("error", historyErr.Error()))
	}

	if exportErr != nil {
		return "", exportErr
	}
	s.logger.Info("local backup written", slog.String("path", path), slog.Int("records", len(records)))
	return path, nil
}

// ExportSnapshot serializes the records into a temp file and returns its
// path; the backup collaborator attaches and delivers it, then reports the
// attempt via RecordResult. The caller removes the file when done.
func (s *BackupService) ExportSnapshot(records []storage.Credential, format codec.Format) (string, error) {
	name := tempFilePrefix + uuid.NewString() + format.Extension()
	path := filepath.Join(os.TempDir(), name)

	if err := s.vault.ExportFile(records, format, path); err != nil {
		return "", err
	}
	return path, nil
}

// RecordResult persists a collaborator-reported backup attempt as-is.
func (s *BackupService) RecordResult(ctx context.Context, entry *storage.BackupEntry) error {
	if entry == nil {
		return fmt.Errorf("%w: backup entry is required", ErrValidation)
	}
	if _, err := s.vault.Store().Backups.Append(ctx, entry); err != nil {
		return err
	}
	return nil
}

func (s *BackupService) History(ctx context.Context, limit int) ([]storage.BackupEntry, error) {
	return s.vault.Store().Backups.List(ctx, limit)
}
