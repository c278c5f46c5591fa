package storage

import (
	"context"
	"database/sql"
	"fmt"
)

// maxBackupHistory bounds retained backup attempts; older entries are
// pruned on append.
const maxBackupHistory = 50

type backupRepository struct {
	db *sql.DB
}

// Append records one backup attempt (success or failure) as reported by
// the backup collaborator, pruning history beyond maxBackupHistory.
func (r *backupRepository) Append(ctx context.Context, entry *BackupEntry) (int64, error) {
	if entry == nil {
		return 0, fmt.Errorf("append backup entry: entry is nil")
	}
	if entry.BackupTime.IsZero() {
		entry.BackupTime = nowUTC()
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("append backup entry: begin tx: %w", err)
	}

	result, err := tx.ExecContext(ctx, `
		INSERT INTO backup_history(backup_time, backup_type, file_path, status, message)
		VALUES(?, ?, ?, ?, ?)
	`, fmtTime(entry.BackupTime), entry.Kind, entry.FilePath, entry.Status, entry.Message)
	if err != nil {
		_ = tx.Rollback()
		return 0, fmt.Errorf("append backup entry: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		_ = tx.Rollback()
		return 0, fmt.Errorf("append backup entry: last insert id: %w", err)
	}
	entry.ID = id

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM backup_history
		WHERE id NOT IN (SELECT id FROM backup_history ORDER BY backup_time DESC, id DESC LIMIT ?)
	`, maxBackupHistory); err != nil {
		_ = tx.Rollback()
		return 0, fmt.Errorf("prune backup history: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("append backup entry: commit: %w", err)
	}
	return id, nil
}

func (r *backupRepository) List(ctx context.Context, limit int) ([]BackupEntry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, backup_time, backup_type, file_path, status, message
		FROM backup_history
		ORDER BY backup_time DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list backup history: %w", err)
	}
	defer rows.Close()

	var out []BackupEntry
	for rows.Next() {
		var (
			entry      BackupEntry
			backupTime string
			kind       sql.NullString
			filePath   sql.NullString
			status     sql.NullString
			message    sql.NullString
		)
		if err := rows.Scan(&entry.ID, &backupTime, &kind, &filePath, &status, &message); err != nil {
			return nil, fmt.Errorf("scan backup entry: %w", err)
		}
		entry.Kind = kind.String
		entry.FilePath = filePath.String
		entry.Status = status.String
		entry.Message = message.String
		entry.BackupTime, err = parseTime(backupTime)
		if err != nil {
			return nil, fmt.Errorf("scan backup entry: %w", err)
		}
		out = append(out, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate backup history: %w", err)
	}
	return out, nil
}
