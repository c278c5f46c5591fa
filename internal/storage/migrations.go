package storage

import (
	"database/sql"
	"fmt"
	"sort"
	"strconv"
	"time"
)

const schemaVersionMetaKey = "schema_version"

type Migration struct {
	Version     int
	Description string
	Up          func(tx *sql.Tx) error
}

var defaultMigrations = []Migration{
	{
		Version:     1,
		Description: "create entity tables",
		Up: func(tx *sql.Tx) error {
			statements := []string{
				`CREATE TABLE IF NOT EXISTS credentials (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					site_name TEXT NOT NULL,
					url TEXT,
					login_account TEXT,
					password TEXT NOT NULL,
					phone TEXT,
					email TEXT,
					category TEXT,
					notes TEXT,
					register_date TEXT,
					created_at TEXT NOT NULL,
					updated_at TEXT NOT NULL,
					is_deleted INTEGER NOT NULL DEFAULT 0,
					deleted_at TEXT
				)`,
				`CREATE TABLE IF NOT EXISTS categories (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					name TEXT NOT NULL UNIQUE,
					color TEXT,
					sort_order INTEGER,
					is_default INTEGER NOT NULL DEFAULT 0,
					created_at TEXT NOT NULL
				)`,
				`CREATE TABLE IF NOT EXISTS custom_field_definitions (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					field_name TEXT NOT NULL UNIQUE,
					field_type TEXT NOT NULL DEFAULT 'text',
					sort_order INTEGER,
					created_at TEXT NOT NULL
				)`,
				`CREATE TABLE IF NOT EXISTS custom_field_values (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					credential_id INTEGER NOT NULL,
					field_id INTEGER NOT NULL,
					value TEXT,
					FOREIGN KEY(credential_id) REFERENCES credentials(id) ON DELETE CASCADE,
					FOREIGN KEY(field_id) REFERENCES custom_field_definitions(id) ON DELETE CASCADE
				)`,
				`CREATE TABLE IF NOT EXISTS modification_history (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					credential_id INTEGER NOT NULL,
					field_name TEXT NOT NULL,
					old_value TEXT,
					new_value TEXT,
					modified_at TEXT NOT NULL,
					FOREIGN KEY(credential_id) REFERENCES credentials(id) ON DELETE CASCADE
				)`,
				`CREATE TABLE IF NOT EXISTS settings (
					key TEXT PRIMARY KEY,
					value TEXT
				)`,
				`CREATE TABLE IF NOT EXISTS backup_history (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					backup_time TEXT NOT NULL,
					backup_type TEXT,
					file_path TEXT,
					status TEXT,
					message TEXT
				)`,
			}
			for _, stmt := range statements {
				if _, err := tx.Exec(stmt); err != nil {
					return fmt.Errorf("apply migration v1 statement: %w", err)
				}
			}
			return nil
		},
	},
	{
		Version:     2,
		Description: "add list and lookup indexes",
		Up: func(tx *sql.Tx) error {
			statements := []string{
				`CREATE INDEX IF NOT EXISTS idx_credentials_created_at ON credentials(created_at)`,
				`CREATE INDEX IF NOT EXISTS idx_credentials_category ON credentials(category, is_deleted)`,
				`CREATE INDEX IF NOT EXISTS idx_custom_field_values_credential ON custom_field_values(credential_id)`,
				`CREATE INDEX IF NOT EXISTS idx_modification_history_credential ON modification_history(credential_id, modified_at)`,
			}
			for _, stmt := range statements {
				if _, err := tx.Exec(stmt); err != nil {
					return fmt.Errorf("apply migration v2 statement: %w", err)
				}
			}
			return nil
		},
	},
}

func DefaultMigrations() []Migration {
	out := make([]Migration, len(defaultMigrations))
	copy(out, defaultMigrations)
	return out
}

func CurrentSchemaVersion() int {
	return maxMigrationVersion(defaultMigrations)
}

func RunMigrations(db *sql.DB, migrations []Migration) error {
	if db == nil {
		return fmt.Errorf("run migrations: db is nil")
	}

	if err := ensureMigrationTables(db); err != nil {
		return err
	}

	ordered := make([]Migration, len(migrations))
	copy(ordered, migrations)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Version < ordered[j].Version })

	current, err := readSchemaVersion(db)
	if err != nil {
		return err
	}

	maxVersion := maxMigrationVersion(ordered)
	if current > maxVersion {
		return fmt.Errorf("%w: db=%d code=%d", ErrSchemaTooNew, current, maxVersion)
	}

	for _, migration := range ordered {
		if migration.Version <= current {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration v%d: %w", migration.Version, err)
		}

		if err := migration.Up(tx); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration v%d (%s): %w", migration.Version, migration.Description, err)
		}

		if _, err := tx.Exec(`INSERT OR REPLACE INTO schema_migrations(version, applied_at) VALUES (?, ?)`, migration.Version, nowUTCString()); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record schema migration v%d: %w", migration.Version, err)
		}

		if _, err := tx.Exec(`INSERT OR REPLACE INTO vault_meta(key, value) VALUES(?, ?)`, schemaVersionMetaKey, strconv.Itoa(migration.Version)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("update schema version v%d: %w", migration.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration v%d: %w", migration.Version, err)
		}
	}

	return nil
}

func ensureMigrationTables(db *sql.DB) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS vault_meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at TEXT NOT NULL
		)`,
		`INSERT OR IGNORE INTO vault_meta(key, value) VALUES('` + schemaVersionMetaKey + `', '0')`,
	}
	for _, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("ensure migration tables: %w", err)
		}
	}
	return nil
}

func readSchemaVersion(db *sql.DB) (int, error) {
	var versionStr string
	if err := db.QueryRow(`SELECT value FROM vault_meta WHERE key = ?`, schemaVersionMetaKey).Scan(&versionStr); err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	version, err := strconv.Atoi(versionStr)
	if err != nil {
		return 0, fmt.Errorf("parse schema version %q: %w", versionStr, err)
	}
	return version, nil
}

func maxMigrationVersion(migrations []Migration) int {
	max := 0
	for _, migration := range migrations {
		if migration.Version > max {
			max = migration.Version
		}
	}
	return max
}

func nowUTCString() string {
	return fmtTime(time.Now())
}
