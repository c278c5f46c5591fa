package storage

import (
	"context"
	"database/sql"
	"fmt"
)

type customFieldRepository struct {
	db *sql.DB
}

func (r *customFieldRepository) List(ctx context.Context) ([]CustomField, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, field_name, field_type, sort_order, created_at
		FROM custom_field_definitions
		ORDER BY sort_order
	`)
	if err != nil {
		return nil, fmt.Errorf("list custom fields: %w", err)
	}
	defer rows.Close()

	var out []CustomField
	for rows.Next() {
		var (
			field     CustomField
			sortOrder sql.NullInt64
			createdAt string
		)
		if err := rows.Scan(&field.ID, &field.FieldName, &field.FieldType, &sortOrder, &createdAt); err != nil {
			return nil, fmt.Errorf("scan custom field: %w", err)
		}
		field.SortOrder = int(sortOrder.Int64)
		field.CreatedAt, err = parseTime(createdAt)
		if err != nil {
			return nil, fmt.Errorf("scan custom field: %w", err)
		}
		out = append(out, field)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate custom fields: %w", err)
	}
	return out, nil
}

func (r *customFieldRepository) Add(ctx context.Context, field *CustomField) (int64, error) {
	if field == nil {
		return 0, fmt.Errorf("add custom field: field is nil")
	}
	if field.FieldName == "" {
		return 0, fmt.Errorf("add custom field: %w: field name is required", ErrInvalid)
	}
	if field.FieldType == "" {
		field.FieldType = "text"
	}

	field.CreatedAt = nowUTC()
	result, err := r.db.ExecContext(ctx, `
		INSERT INTO custom_field_definitions(field_name, field_type, sort_order, created_at)
		VALUES(?, ?, ?, ?)
	`, field.FieldName, field.FieldType, field.SortOrder, fmtTime(field.CreatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("add custom field %q: %w", field.FieldName, ErrConflict)
		}
		return 0, fmt.Errorf("add custom field: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("add custom field: last insert id: %w", err)
	}
	field.ID = id
	return id, nil
}

// Delete refuses to remove a definition that still has value rows.
func (r *customFieldRepository) Delete(ctx context.Context, id int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("delete custom field: begin tx: %w", err)
	}

	var used int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM custom_field_values WHERE field_id = ?`, id,
	).Scan(&used); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("delete custom field: usage count: %w", err)
	}
	if used > 0 {
		_ = tx.Rollback()
		return fmt.Errorf("delete custom field %d (%d values): %w", id, used, ErrFieldInUse)
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM custom_field_definitions WHERE id = ?`, id)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("delete custom field: %w", err)
	}
	if err := requireAffected(result, "delete custom field"); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("delete custom field: commit: %w", err)
	}
	return nil
}

func (r *customFieldRepository) UsageCount(ctx context.Context, id int64) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM custom_field_values WHERE field_id = ?`, id,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("custom field usage count: %w", err)
	}
	return count, nil
}
