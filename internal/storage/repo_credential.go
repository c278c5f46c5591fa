package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
)

type credentialRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// trackedFields drives history diffing on update: one history row per
// changed field, labeled with its display name. Order fixes the order of
// the produced rows.
var trackedFields = []struct {
	label string
	get   func(*Credential) string
}{
	{"网站名称", func(c *Credential) string { return c.SiteName }},
	{"网址", func(c *Credential) string { return c.URL }},
	{"登录账号", func(c *Credential) string { return c.LoginAccount }},
	{"密码", func(c *Credential) string { return c.Password }},
	{"手机号", func(c *Credential) string { return c.Phone }},
	{"邮箱", func(c *Credential) string { return c.Email }},
	{"分类", func(c *Credential) string { return c.Category }},
	{"备注", func(c *Credential) string { return c.Notes }},
	{"注册时间", func(c *Credential) string { return c.RegisterDate }},
}

const credentialColumns = `id, site_name, url, login_account, password, phone, email,
	category, notes, register_date, created_at, updated_at, is_deleted, deleted_at`

func (r *credentialRepository) Add(ctx context.Context, cred *Credential) (int64, error) {
	if cred == nil {
		return 0, fmt.Errorf("add credential: credential is nil")
	}
	if cred.SiteName == "" {
		return 0, fmt.Errorf("add credential: %w: site name is required", ErrInvalid)
	}
	if cred.Password == "" {
		return 0, fmt.Errorf("add credential: %w: password is required", ErrInvalid)
	}

	now := nowUTC()
	cred.CreatedAt = now
	cred.UpdatedAt = now
	if cred.RegisterDate == "" {
		cred.RegisterDate = fmtDate(now)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("add credential: begin tx: %w", err)
	}

	result, err := tx.ExecContext(ctx, `
		INSERT INTO credentials(site_name, url, login_account, password, phone, email,
			category, notes, register_date, created_at, updated_at, is_deleted, deleted_at)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, NULL)
	`, cred.SiteName, cred.URL, cred.LoginAccount, cred.Password, cred.Phone, cred.Email,
		cred.Category, cred.Notes, cred.RegisterDate, fmtTime(cred.CreatedAt), fmtTime(cred.UpdatedAt))
	if err != nil {
		_ = tx.Rollback()
		return 0, fmt.Errorf("add credential: insert: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		_ = tx.Rollback()
		return 0, fmt.Errorf("add credential: last insert id: %w", err)
	}
	cred.ID = id

	if err := saveCustomFieldValues(ctx, tx, id, cred.CustomFields); err != nil {
		_ = tx.Rollback()
		return 0, fmt.Errorf("add credential: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("add credential: commit: %w", err)
	}

	r.logger.Info("credential added", slog.Int64("id", id), slog.String("site_name", cred.SiteName))
	return id, nil
}

// Update persists all mutable core fields and replaces the full
// custom-field-value set. When previous is non-nil, each changed tracked
// field appends one modification-history row.
func (r *credentialRepository) Update(ctx context.Context, cred *Credential, previous *Credential) error {
	if cred == nil {
		return fmt.Errorf("update credential: credential is nil")
	}
	if cred.ID == 0 {
		return fmt.Errorf("update credential: id is required")
	}
	if cred.SiteName == "" {
		return fmt.Errorf("update credential: %w: site name is required", ErrInvalid)
	}
	if cred.Password == "" {
		return fmt.Errorf("update credential: %w: password is required", ErrInvalid)
	}

	cred.UpdatedAt = nowUTC()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("update credential: begin tx: %w", err)
	}

	result, err := tx.ExecContext(ctx, `
		UPDATE credentials SET
			site_name = ?, url = ?, login_account = ?, password = ?, phone = ?, email = ?,
			category = ?, notes = ?, register_date = ?, updated_at = ?
		WHERE id = ?
	`, cred.SiteName, cred.URL, cred.LoginAccount, cred.Password, cred.Phone, cred.Email,
		cred.Category, cred.Notes, cred.RegisterDate, fmtTime(cred.UpdatedAt), cred.ID)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("update credential: %w", err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("update credential: rows affected: %w", err)
	}
	if count == 0 {
		_ = tx.Rollback()
		return ErrNotFound
	}

	if previous != nil {
		if err := recordModifications(ctx, tx, cred.ID, previous, cred); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("update credential: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM custom_field_values WHERE credential_id = ?`, cred.ID); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("update credential: clear custom fields: %w", err)
	}
	if err := saveCustomFieldValues(ctx, tx, cred.ID, cred.CustomFields); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("update credential: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("update credential: commit: %w", err)
	}

	r.logger.Info("credential updated", slog.Int64("id", cred.ID))
	return nil
}

func (r *credentialRepository) SoftDelete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE credentials SET is_deleted = 1, deleted_at = ?
		WHERE id = ? AND is_deleted = 0
	`, fmtTime(nowUTC()), id)
	if err != nil {
		return fmt.Errorf("soft delete credential: %w", err)
	}
	return requireAffected(result, "soft delete credential")
}

func (r *credentialRepository) Restore(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE credentials SET is_deleted = 0, deleted_at = NULL
		WHERE id = ? AND is_deleted = 1
	`, id)
	if err != nil {
		return fmt.Errorf("restore credential: %w", err)
	}
	return requireAffected(result, "restore credential")
}

// Purge removes the row for good. Only records already in the recycle bin
// may be purged; custom-field values and history rows cascade.
func (r *credentialRepository) Purge(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM credentials WHERE id = ? AND is_deleted = 1`, id)
	if err != nil {
		return fmt.Errorf("purge credential: %w", err)
	}
	if err := requireAffected(result, "purge credential"); err != nil {
		return err
	}
	r.logger.Info("credential purged", slog.Int64("id", id))
	return nil
}

func (r *credentialRepository) Get(ctx context.Context, id int64) (*Credential, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+credentialColumns+` FROM credentials WHERE id = ?`, id)

	cred, err := scanCredential(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get credential: %w", err)
	}

	cred.CustomFields, err = r.loadCustomFieldValues(ctx, cred.ID)
	if err != nil {
		return nil, fmt.Errorf("get credential: %w", err)
	}
	return cred, nil
}

func (r *credentialRepository) ListAll(ctx context.Context, includeDeleted bool) ([]Credential, error) {
	query := `SELECT ` + credentialColumns + ` FROM credentials`
	if !includeDeleted {
		query += ` WHERE is_deleted = 0`
	}
	query += ` ORDER BY created_at DESC`
	return r.queryCredentials(ctx, "list credentials", query)
}

func (r *credentialRepository) ListDeleted(ctx context.Context) ([]Credential, error) {
	query := `SELECT ` + credentialColumns + ` FROM credentials WHERE is_deleted = 1 ORDER BY deleted_at DESC`
	return r.queryCredentials(ctx, "list deleted credentials", query)
}

// SearchLike is the storage-layer fallback search: a plain OR-combined
// substring match delegated to SQLite's LIKE operator (case-insensitive
// for ASCII under the default collation). The ranked engine in
// internal/search is the primary search path.
func (r *credentialRepository) SearchLike(ctx context.Context, keyword string, includeDeleted bool) ([]Credential, error) {
	pattern := "%" + keyword + "%"
	query := `SELECT ` + credentialColumns + ` FROM credentials
		WHERE (site_name LIKE ? OR login_account LIKE ? OR email LIKE ? OR phone LIKE ? OR notes LIKE ? OR url LIKE ?)`
	if !includeDeleted {
		query += ` AND is_deleted = 0`
	}
	query += ` ORDER BY created_at DESC`
	return r.queryCredentials(ctx, "search credentials", query,
		pattern, pattern, pattern, pattern, pattern, pattern)
}

func (r *credentialRepository) FilterByCategory(ctx context.Context, category string, includeDeleted bool) ([]Credential, error) {
	query := `SELECT ` + credentialColumns + ` FROM credentials WHERE category = ?`
	if !includeDeleted {
		query += ` AND is_deleted = 0`
	}
	query += ` ORDER BY created_at DESC`
	return r.queryCredentials(ctx, "filter credentials by category", query, category)
}

func (r *credentialRepository) queryCredentials(ctx context.Context, op, query string, args ...any) ([]Credential, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var out []Credential
	for rows.Next() {
		cred, err := scanCredential(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		out = append(out, *cred)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: iterate: %w", op, err)
	}

	for i := range out {
		out[i].CustomFields, err = r.loadCustomFieldValues(ctx, out[i].ID)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCredential(row rowScanner) (*Credential, error) {
	var (
		cred         Credential
		url          sql.NullString
		loginAccount sql.NullString
		phone        sql.NullString
		email        sql.NullString
		category     sql.NullString
		notes        sql.NullString
		registerDate sql.NullString
		createdAt    string
		updatedAt    string
		isDeleted    int
		deletedAt    sql.NullString
	)

	err := row.Scan(&cred.ID, &cred.SiteName, &url, &loginAccount, &cred.Password, &phone, &email,
		&category, &notes, &registerDate, &createdAt, &updatedAt, &isDeleted, &deletedAt)
	if err != nil {
		return nil, err
	}

	cred.URL = url.String
	cred.LoginAccount = loginAccount.String
	cred.Phone = phone.String
	cred.Email = email.String
	cred.Category = category.String
	cred.Notes = notes.String
	cred.RegisterDate = registerDate.String
	cred.Deleted = isDeleted != 0

	cred.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, err
	}
	cred.UpdatedAt, err = parseTime(updatedAt)
	if err != nil {
		return nil, err
	}
	cred.DeletedAt, err = parseNullableTime(deletedAt)
	if err != nil {
		return nil, err
	}
	return &cred, nil
}

func (r *credentialRepository) loadCustomFieldValues(ctx context.Context, credentialID int64) (map[string]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT cfd.field_name, cfv.value
		FROM custom_field_values cfv
		JOIN custom_field_definitions cfd ON cfv.field_id = cfd.id
		WHERE cfv.credential_id = ?
	`, credentialID)
	if err != nil {
		return nil, fmt.Errorf("load custom field values: %w", err)
	}
	defer rows.Close()

	out := map[string]string{}
	for rows.Next() {
		var (
			name  string
			value sql.NullString
		)
		if err := rows.Scan(&name, &value); err != nil {
			return nil, fmt.Errorf("scan custom field value: %w", err)
		}
		out[name] = value.String
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate custom field values: %w", err)
	}
	return out, nil
}

// saveCustomFieldValues inserts one value row per named field. Names with
// no matching definition are skipped silently.
func saveCustomFieldValues(ctx context.Context, tx *sql.Tx, credentialID int64, values map[string]string) error {
	for name, value := range values {
		var fieldID int64
		err := tx.QueryRowContext(ctx, `SELECT id FROM custom_field_definitions WHERE field_name = ?`, name).Scan(&fieldID)
		if errors.Is(err, sql.ErrNoRows) {
			continue
		}
		if err != nil {
			return fmt.Errorf("lookup custom field %q: %w", name, err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO custom_field_values(credential_id, field_id, value) VALUES(?, ?, ?)
		`, credentialID, fieldID, value); err != nil {
			return fmt.Errorf("insert custom field value %q: %w", name, err)
		}
	}
	return nil
}

func recordModifications(ctx context.Context, tx *sql.Tx, credentialID int64, previous, current *Credential) error {
	now := fmtTime(nowUTC())
	for _, field := range trackedFields {
		oldValue := field.get(previous)
		newValue := field.get(current)
		if oldValue == newValue {
			continue
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO modification_history(credential_id, field_name, old_value, new_value, modified_at)
			VALUES(?, ?, ?, ?, ?)
		`, credentialID, field.label, oldValue, newValue, now); err != nil {
			return fmt.Errorf("record modification %q: %w", field.label, err)
		}
	}
	return nil
}

func requireAffected(result sql.Result, op string) error {
	count, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: rows affected: %w", op, err)
	}
	if count == 0 {
		return ErrNotFound
	}
	return nil
}
