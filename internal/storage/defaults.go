package storage

import (
	"database/sql"
	"fmt"
	"log/slog"
)

type defaultCategory struct {
	Name      string
	Color     string
	SortOrder int
}

// Seed data applied once to a fresh store. Category names and colors match
// what existing vault files already contain, so they must not change.
var defaultCategories = []defaultCategory{
	{Name: "社交媒体", Color: "#FF6B6B", SortOrder: 1},
	{Name: "购物", Color: "#4ECDC4", SortOrder: 2},
	{Name: "工作", Color: "#95E1D3", SortOrder: 3},
	{Name: "娱乐", Color: "#FFE66D", SortOrder: 4},
	{Name: "金融", Color: "#C06C84", SortOrder: 5},
	{Name: "其他", Color: "#999999", SortOrder: 6},
}

var defaultSettings = [][2]string{
	{"show_password", "1"},
	{"default_sort", "created_at_desc"},
	{"smtp_server", ""},
	{"smtp_port", "465"},
	{"smtp_email", ""},
	{"smtp_password", ""},
	{"backup_email", ""},
	{"confirm_delete", "1"},
	{"show_password_column", "1"},
	{"column_order", ""},
	{"extension_id_chrome", ""},
	{"extension_id_edge", ""},
}

// seedDefaults populates default categories and settings, each only when
// its table is currently empty, so a fresh store is immediately usable.
func seedDefaults(db *sql.DB, logger *slog.Logger) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("seed defaults: begin tx: %w", err)
	}

	var categoryCount int
	if err := tx.QueryRow(`SELECT COUNT(*) FROM categories`).Scan(&categoryCount); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("seed defaults: count categories: %w", err)
	}
	if categoryCount == 0 {
		now := nowUTCString()
		for _, category := range defaultCategories {
			if _, err := tx.Exec(
				`INSERT INTO categories(name, color, sort_order, is_default, created_at) VALUES(?, ?, ?, 1, ?)`,
				category.Name, category.Color, category.SortOrder, now,
			); err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("seed defaults: insert category %q: %w", category.Name, err)
			}
		}
		logger.Info("seeded default categories", slog.Int("count", len(defaultCategories)))
	}

	var settingCount int
	if err := tx.QueryRow(`SELECT COUNT(*) FROM settings`).Scan(&settingCount); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("seed defaults: count settings: %w", err)
	}
	if settingCount == 0 {
		for _, kv := range defaultSettings {
			if _, err := tx.Exec(`INSERT INTO settings(key, value) VALUES(?, ?)`, kv[0], kv[1]); err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("seed defaults: insert setting %q: %w", kv[0], err)
			}
		}
		logger.Info("seeded default settings", slog.Int("count", len(defaultSettings)))
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("seed defaults: commit: %w", err)
	}
	return nil
}
