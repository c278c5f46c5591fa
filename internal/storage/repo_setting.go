package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

type settingRepository struct {
	db *sql.DB
}

func (r *settingRepository) Get(ctx context.Context, key, fallback string) (string, error) {
	var value sql.NullString
	err := r.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return fallback, nil
	}
	if err != nil {
		return "", fmt.Errorf("get setting %q: %w", key, err)
	}
	return value.String, nil
}

func (r *settingRepository) Set(ctx context.Context, key, value string) error {
	if key == "" {
		return fmt.Errorf("set setting: %w: key is required", ErrInvalid)
	}
	if _, err := r.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO settings(key, value) VALUES(?, ?)`, key, value,
	); err != nil {
		return fmt.Errorf("set setting %q: %w", key, err)
	}
	return nil
}

func (r *settingRepository) All(ctx context.Context) (map[string]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT key, value FROM settings`)
	if err != nil {
		return nil, fmt.Errorf("list settings: %w", err)
	}
	defer rows.Close()

	out := map[string]string{}
	for rows.Next() {
		var (
			key   string
			value sql.NullString
		)
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("scan setting: %w", err)
		}
		out[key] = value.String
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate settings: %w", err)
	}
	return out, nil
}
