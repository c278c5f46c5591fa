package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func TestRunMigrationsAppliesAllSequentially(t *testing.T) {
	t.Parallel()

	db := openRawTestDB(t)
	defer closeNoErr(t, db)

	err := RunMigrations(db, DefaultMigrations())
	require.NoError(t, err)

	require.Equal(t, CurrentSchemaVersion(), mustSchemaVersion(t, db))

	expected := []string{
		"vault_meta",
		"schema_migrations",
		"credentials",
		"categories",
		"custom_field_definitions",
		"custom_field_values",
		"modification_history",
		"settings",
		"backup_history",
	}
	for _, table := range expected {
		require.Truef(t, tableExists(t, db, table), "expected table %s to exist", table)
	}
}

func TestRunMigrationsIsAtomic(t *testing.T) {
	t.Parallel()

	db := openRawTestDB(t)
	defer closeNoErr(t, db)

	migrations := []Migration{
		{
			Version:     1,
			Description: "create a",
			Up: func(tx *sql.Tx) error {
				_, err := tx.Exec(`CREATE TABLE test_a (id TEXT PRIMARY KEY)`)
				return err
			},
		},
		{
			Version:     2,
			Description: "create b then fail",
			Up: func(tx *sql.Tx) error {
				if _, err := tx.Exec(`CREATE TABLE test_b (id TEXT PRIMARY KEY)`); err != nil {
					return err
				}
				return errors.New("boom")
			},
		},
	}

	err := RunMigrations(db, migrations)
	require.Error(t, err)
	require.Equal(t, 1, mustSchemaVersion(t, db))
	require.True(t, tableExists(t, db, "test_a"))
	require.False(t, tableExists(t, db, "test_b"))
}

func TestOpenRefusesNewerSchemaVersion(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "passwords.db")
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	require.NoError(t, RunMigrations(db, DefaultMigrations()))
	_, err = db.Exec(`UPDATE vault_meta SET value = ? WHERE key = 'schema_version'`, CurrentSchemaVersion()+1)
	require.NoError(t, err)
	closeNoErr(t, db)

	store, err := Open(path, testLogger())
	if store != nil {
		t.Cleanup(func() { _ = store.Close() })
	}
	require.ErrorIs(t, err, ErrSchemaTooNew)
}

func TestOpenSeedsDefaultsOnlyIntoEmptyStore(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "passwords.db")
	ctx := context.Background()

	store, err := Open(path, testLogger())
	require.NoError(t, err)

	categories, err := store.Categories.List(ctx)
	require.NoError(t, err)
	require.Len(t, categories, 6)
	require.Equal(t, "社交媒体", categories[0].Name)
	require.Equal(t, "#FF6B6B", categories[0].Color)
	require.True(t, categories[0].IsDefault)
	require.Equal(t, "其他", categories[5].Name)

	settings, err := store.Settings.All(ctx)
	require.NoError(t, err)
	require.Len(t, settings, 12)
	require.Equal(t, "1", settings["show_password"])
	require.Equal(t, "created_at_desc", settings["default_sort"])
	require.Equal(t, "465", settings["smtp_port"])

	// Local edits must survive a reopen without being reseeded.
	require.NoError(t, store.Settings.Set(ctx, "default_sort", "site_name_asc"))
	closeStoreNoErr(t, store)

	store, err = Open(path, testLogger())
	require.NoError(t, err)
	defer closeStoreNoErr(t, store)

	value, err := store.Settings.Get(ctx, "default_sort", "")
	require.NoError(t, err)
	require.Equal(t, "site_name_asc", value)

	categories, err = store.Categories.List(ctx)
	require.NoError(t, err)
	require.Len(t, categories, 6)
}

func TestCredentialAddGetRoundTrip(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	cred := &Credential{
		SiteName:     "GitHub",
		URL:          "https://github.com",
		LoginAccount: "octocat",
		Password:     "s3cret",
		Phone:        "13800000000",
		Email:        "octo@example.com",
		Category:     "工作",
		Notes:        "work account",
	}
	id, err := store.Credentials.Add(ctx, cred)
	require.NoError(t, err)
	require.Positive(t, id)

	loaded, err := store.Credentials.Get(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "GitHub", loaded.SiteName)
	require.Equal(t, "octocat", loaded.LoginAccount)
	require.Equal(t, "s3cret", loaded.Password)
	require.Equal(t, "工作", loaded.Category)
	require.False(t, loaded.Deleted)
	require.Nil(t, loaded.DeletedAt)
	require.False(t, loaded.CreatedAt.IsZero())
	require.Equal(t, loaded.CreatedAt, loaded.UpdatedAt)

	// Register date defaults to today when omitted.
	require.Equal(t, time.Now().UTC().Format("2006-01-02"), loaded.RegisterDate)

	// No custom fields stored, but the map is present.
	require.NotNil(t, loaded.CustomFields)
	require.Empty(t, loaded.CustomFields)
}

func TestCredentialAddValidatesRequiredFields(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.Credentials.Add(ctx, &Credential{Password: "p"})
	require.ErrorIs(t, err, ErrInvalid)

	_, err = store.Credentials.Add(ctx, &Credential{SiteName: "GitHub"})
	require.ErrorIs(t, err, ErrInvalid)
}

func TestCredentialGetUnknownReturnsNotFound(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)

	_, err := store.Credentials.Get(context.Background(), 9999)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestSoftDeleteRestoreLifecycle(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	id := addTestCredential(t, store, "GitHub")

	require.NoError(t, store.Credentials.SoftDelete(ctx, id))

	active, err := store.Credentials.ListAll(ctx, false)
	require.NoError(t, err)
	require.Empty(t, active)

	recycled, err := store.Credentials.ListDeleted(ctx)
	require.NoError(t, err)
	require.Len(t, recycled, 1)
	require.True(t, recycled[0].Deleted)
	require.NotNil(t, recycled[0].DeletedAt)

	// A record already in the bin cannot be deleted again.
	require.ErrorIs(t, store.Credentials.SoftDelete(ctx, id), ErrNotFound)

	require.NoError(t, store.Credentials.Restore(ctx, id))

	restored, err := store.Credentials.Get(ctx, id)
	require.NoError(t, err)
	require.False(t, restored.Deleted)
	require.Nil(t, restored.DeletedAt)

	// An active record cannot be restored.
	require.ErrorIs(t, store.Credentials.Restore(ctx, id), ErrNotFound)
}

func TestPurgeRequiresRecycledRecordAndCascades(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.CustomFields.Add(ctx, &CustomField{FieldName: "安全问题"})
	require.NoError(t, err)

	cred := &Credential{
		SiteName:     "GitHub",
		Password:     "s3cret",
		CustomFields: map[string]string{"安全问题": "猫的名字"},
	}
	id, err := store.Credentials.Add(ctx, cred)
	require.NoError(t, err)

	// Produce one history row.
	updated := *cred
	updated.Notes = "rotated"
	require.NoError(t, store.Credentials.Update(ctx, &updated, cred))

	// Purging an active record is refused.
	require.ErrorIs(t, store.Credentials.Purge(ctx, id), ErrNotFound)

	require.NoError(t, store.Credentials.SoftDelete(ctx, id))
	require.NoError(t, store.Credentials.Purge(ctx, id))

	_, err = store.Credentials.Get(ctx, id)
	require.ErrorIs(t, err, ErrNotFound)

	require.Zero(t, countRows(t, store.DB(), "custom_field_values"))
	require.Zero(t, countRows(t, store.DB(), "modification_history"))
}

func TestUpdateRecordsOneHistoryRowPerChangedField(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	cred := &Credential{SiteName: "GitHub", Password: "s3cret", Notes: "old note"}
	id, err := store.Credentials.Add(ctx, cred)
	require.NoError(t, err)

	updated := *cred
	updated.Notes = "new note"
	require.NoError(t, store.Credentials.Update(ctx, &updated, cred))

	entries, err := store.History.ListByCredential(ctx, id)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "备注", entries[0].FieldLabel)
	require.Equal(t, "old note", entries[0].OldValue)
	require.Equal(t, "new note", entries[0].NewValue)

	// A second update touching two fields appends two more rows.
	again := updated
	again.Password = "r0tated"
	again.Email = "octo@example.com"
	require.NoError(t, store.Credentials.Update(ctx, &again, &updated))

	entries, err = store.History.ListByCredential(ctx, id)
	require.NoError(t, err)
	require.Len(t, entries, 3)
}

func TestUpdateWithoutPreviousSkipsHistory(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	cred := &Credential{SiteName: "GitHub", Password: "s3cret"}
	id, err := store.Credentials.Add(ctx, cred)
	require.NoError(t, err)

	updated := *cred
	updated.Notes = "silent edit"
	require.NoError(t, store.Credentials.Update(ctx, &updated, nil))

	entries, err := store.History.ListByCredential(ctx, id)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestUpdateReplacesCustomFieldValues(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.CustomFields.Add(ctx, &CustomField{FieldName: "pin", SortOrder: 1})
	require.NoError(t, err)
	_, err = store.CustomFields.Add(ctx, &CustomField{FieldName: "recovery", SortOrder: 2})
	require.NoError(t, err)

	cred := &Credential{
		SiteName:     "GitHub",
		Password:     "s3cret",
		CustomFields: map[string]string{"pin": "1234"},
	}
	id, err := store.Credentials.Add(ctx, cred)
	require.NoError(t, err)

	updated := *cred
	updated.CustomFields = map[string]string{"recovery": "paper-code"}
	require.NoError(t, store.Credentials.Update(ctx, &updated, cred))

	loaded, err := store.Credentials.Get(ctx, id)
	require.NoError(t, err)
	require.Equal(t, map[string]string{"recovery": "paper-code"}, loaded.CustomFields)
}

func TestAddSkipsUndefinedCustomFields(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	cred := &Credential{
		SiteName:     "GitHub",
		Password:     "s3cret",
		CustomFields: map[string]string{"nonexistent": "dropped"},
	}
	id, err := store.Credentials.Add(ctx, cred)
	require.NoError(t, err)

	loaded, err := store.Credentials.Get(ctx, id)
	require.NoError(t, err)
	require.Empty(t, loaded.CustomFields)
}

func TestUpdateUnknownCredentialReturnsNotFound(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)

	err := store.Credentials.Update(context.Background(), &Credential{ID: 9999, SiteName: "x", Password: "y"}, nil)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestSearchLikeMatchesSixFieldsAndSkipsDeleted(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.Credentials.Add(ctx, &Credential{SiteName: "GitHub", Password: "p"})
	require.NoError(t, err)
	_, err = store.Credentials.Add(ctx, &Credential{SiteName: "Bank", Password: "p", Notes: "github backup codes"})
	require.NoError(t, err)
	deletedID, err := store.Credentials.Add(ctx, &Credential{SiteName: "Old GitHub", Password: "p"})
	require.NoError(t, err)
	require.NoError(t, store.Credentials.SoftDelete(ctx, deletedID))

	results, err := store.Credentials.SearchLike(ctx, "github", false)
	require.NoError(t, err)
	require.Len(t, results, 2)

	withDeleted, err := store.Credentials.SearchLike(ctx, "github", true)
	require.NoError(t, err)
	require.Len(t, withDeleted, 3)

	byPhone, err := store.Credentials.Add(ctx, &Credential{SiteName: "Phone site", Password: "p", Phone: "13912345678"})
	require.NoError(t, err)
	results, err = store.Credentials.SearchLike(ctx, "1391234", false)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, byPhone, results[0].ID)
}

func TestFilterByCategory(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.Credentials.Add(ctx, &Credential{SiteName: "Taobao", Password: "p", Category: "购物"})
	require.NoError(t, err)
	_, err = store.Credentials.Add(ctx, &Credential{SiteName: "GitHub", Password: "p", Category: "工作"})
	require.NoError(t, err)

	results, err := store.Credentials.FilterByCategory(ctx, "购物", false)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, "Taobao", results[0].SiteName)
}

func TestCategoryDuplicateNameConflicts(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.Categories.Add(ctx, &Category{Name: "侧项目"})
	require.NoError(t, err)
	_, err = store.Categories.Add(ctx, &Category{Name: "侧项目"})
	require.ErrorIs(t, err, ErrConflict)

	// Seeded names collide too.
	_, err = store.Categories.Add(ctx, &Category{Name: "工作"})
	require.ErrorIs(t, err, ErrConflict)
}

func TestCategoryDeleteGuards(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	categories, err := store.Categories.List(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, categories)
	require.ErrorIs(t, store.Categories.Delete(ctx, categories[0].ID), ErrCategoryDefault)

	customID, err := store.Categories.Add(ctx, &Category{Name: "侧项目"})
	require.NoError(t, err)

	credID, err := store.Credentials.Add(ctx, &Credential{SiteName: "GitHub", Password: "p", Category: "侧项目"})
	require.NoError(t, err)
	require.ErrorIs(t, store.Categories.Delete(ctx, customID), ErrCategoryInUse)

	usage, err := store.Categories.UsageCount(ctx, "侧项目")
	require.NoError(t, err)
	require.Equal(t, 1, usage)

	// Recycled references do not block deletion.
	require.NoError(t, store.Credentials.SoftDelete(ctx, credID))
	require.NoError(t, store.Categories.Delete(ctx, customID))

	require.ErrorIs(t, store.Categories.Delete(ctx, customID), ErrNotFound)
}

func TestCustomFieldDeleteGuards(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	fieldID, err := store.CustomFields.Add(ctx, &CustomField{FieldName: "pin"})
	require.NoError(t, err)

	_, err = store.CustomFields.Add(ctx, &CustomField{FieldName: "pin"})
	require.ErrorIs(t, err, ErrConflict)

	credID, err := store.Credentials.Add(ctx, &Credential{
		SiteName:     "GitHub",
		Password:     "p",
		CustomFields: map[string]string{"pin": "1234"},
	})
	require.NoError(t, err)

	require.ErrorIs(t, store.CustomFields.Delete(ctx, fieldID), ErrFieldInUse)

	usage, err := store.CustomFields.UsageCount(ctx, fieldID)
	require.NoError(t, err)
	require.Equal(t, 1, usage)

	require.NoError(t, store.Credentials.SoftDelete(ctx, credID))
	require.NoError(t, store.Credentials.Purge(ctx, credID))
	require.NoError(t, store.CustomFields.Delete(ctx, fieldID))
}

func TestSettingsGetFallbackAndUpsert(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	value, err := store.Settings.Get(ctx, "no_such_key", "fallback")
	require.NoError(t, err)
	require.Equal(t, "fallback", value)

	require.NoError(t, store.Settings.Set(ctx, "show_password", "0"))
	value, err = store.Settings.Get(ctx, "show_password", "")
	require.NoError(t, err)
	require.Equal(t, "0", value)

	require.ErrorIs(t, store.Settings.Set(ctx, "", "x"), ErrInvalid)
}

func TestTimestampStringsSortChronologically(t *testing.T) {
	t.Parallel()

	// A trimmed-fraction layout misorders exactly this pair: ".1Z" sorts
	// after ".15Z" as a string. The fixed-width layout must not.
	earlier := time.Date(2026, 3, 1, 12, 0, 0, 100_000_000, time.UTC)
	later := earlier.Add(50 * time.Millisecond)
	require.Less(t, fmtTime(earlier), fmtTime(later))

	parsed, err := parseTime(fmtTime(earlier))
	require.NoError(t, err)
	require.True(t, parsed.Equal(earlier))

	// Rows written with a trimmed fraction still load.
	legacy, err := parseTime(earlier.Format(time.RFC3339Nano))
	require.NoError(t, err)
	require.True(t, legacy.Equal(earlier))
}

func TestBackupHistoryAppendPrunesBeyondLimit(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < maxBackupHistory+5; i++ {
		_, err := store.Backups.Append(ctx, &BackupEntry{
			BackupTime: base.Add(time.Duration(i) * time.Minute),
			Kind:       "local",
			FilePath:   fmt.Sprintf("/tmp/backup_%d.xlsx", i),
			Status:     "success",
		})
		require.NoError(t, err)
	}

	require.Equal(t, maxBackupHistory, countRows(t, store.DB(), "backup_history"))

	entries, err := store.Backups.List(ctx, maxBackupHistory+10)
	require.NoError(t, err)
	require.Len(t, entries, maxBackupHistory)

	// Newest first; the oldest five were pruned.
	require.Equal(t, fmt.Sprintf("/tmp/backup_%d.xlsx", maxBackupHistory+4), entries[0].FilePath)
	require.Equal(t, fmt.Sprintf("/tmp/backup_%d.xlsx", 5), entries[len(entries)-1].FilePath)

	limited, err := store.Backups.List(ctx, 3)
	require.NoError(t, err)
	require.Len(t, limited, 3)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func openRawTestDB(t *testing.T) *sql.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "passwords.db")
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	return db
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "passwords.db")
	store, err := Open(path, testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { closeStoreNoErr(t, store) })
	return store
}

func addTestCredential(t *testing.T, store *Store, siteName string) int64 {
	t.Helper()
	id, err := store.Credentials.Add(context.Background(), &Credential{SiteName: siteName, Password: "s3cret"})
	require.NoError(t, err)
	return id
}

func mustSchemaVersion(t *testing.T, db *sql.DB) int {
	t.Helper()
	var version int
	err := db.QueryRow(`SELECT value FROM vault_meta WHERE key = 'schema_version'`).Scan(&version)
	require.NoError(t, err)
	return version
}

func tableExists(t *testing.T, db *sql.DB, table string) bool {
	t.Helper()
	var count int
	err := db.QueryRow(`SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&count)
	require.NoError(t, err)
	return count == 1
}

func countRows(t *testing.T, db *sql.DB, table string) int {
	t.Helper()
	var count int
	err := db.QueryRow(`SELECT COUNT(*) FROM ` + table).Scan(&count)
	require.NoError(t, err)
	return count
}

func closeStoreNoErr(t *testing.T, store *Store) {
	t.Helper()
	require.NoError(t, store.Close())
}

func closeNoErr(t *testing.T, db *sql.DB) {
	t.Helper()
	require.NoError(t, db.Close())
}
