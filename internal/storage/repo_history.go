package storage

import (
	"context"
	"database/sql"
	"fmt"
)

type historyRepository struct {
	db *sql.DB
}

func (r *historyRepository) ListByCredential(ctx context.Context, credentialID int64) ([]ModificationEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, credential_id, field_name, old_value, new_value, modified_at
		FROM modification_history
		WHERE credential_id = ?
		ORDER BY modified_at DESC
	`, credentialID)
	if err != nil {
		return nil, fmt.Errorf("list modification history: %w", err)
	}
	defer rows.Close()

	var out []ModificationEntry
	for rows.Next() {
		var (
			entry      ModificationEntry
			oldValue   sql.NullString
			newValue   sql.NullString
			modifiedAt string
		)
		if err := rows.Scan(&entry.ID, &entry.CredentialID, &entry.FieldLabel, &oldValue, &newValue, &modifiedAt); err != nil {
			return nil, fmt.Errorf("scan modification entry: %w", err)
		}
		entry.OldValue = oldValue.String
		entry.NewValue = newValue.String
		entry.ModifiedAt, err = parseTime(modifiedAt)
		if err != nil {
			return nil, fmt.Errorf("scan modification entry: %w", err)
		}
		out = append(out, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate modification history: %w", err)
	}
	return out, nil
}
