package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

type categoryRepository struct {
	db *sql.DB
}

func (r *categoryRepository) List(ctx context.Context) ([]Category, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, color, sort_order, is_default, created_at
		FROM categories
		ORDER BY sort_order
	`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var out []Category
	for rows.Next() {
		var (
			category  Category
			color     sql.NullString
			sortOrder sql.NullInt64
			isDefault int
			createdAt string
		)
		if err := rows.Scan(&category.ID, &category.Name, &color, &sortOrder, &isDefault, &createdAt); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		category.Color = color.String
		category.SortOrder = int(sortOrder.Int64)
		category.IsDefault = isDefault != 0
		category.CreatedAt, err = parseTime(createdAt)
		if err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, category)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate categories: %w", err)
	}
	return out, nil
}

func (r *categoryRepository) Add(ctx context.Context, category *Category) (int64, error) {
	if category == nil {
		return 0, fmt.Errorf("add category: category is nil")
	}
	if category.Name == "" {
		return 0, fmt.Errorf("add category: %w: name is required", ErrInvalid)
	}

	category.CreatedAt = nowUTC()
	result, err := r.db.ExecContext(ctx, `
		INSERT INTO categories(name, color, sort_order, is_default, created_at)
		VALUES(?, ?, ?, ?, ?)
	`, category.Name, category.Color, category.SortOrder, boolToInt(category.IsDefault), fmtTime(category.CreatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("add category %q: %w", category.Name, ErrConflict)
		}
		return 0, fmt.Errorf("add category: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("add category: last insert id: %w", err)
	}
	category.ID = id
	return id, nil
}

func (r *categoryRepository) Update(ctx context.Context, category *Category) error {
	if category == nil {
		return fmt.Errorf("update category: category is nil")
	}
	if category.ID == 0 {
		return fmt.Errorf("update category: id is required")
	}

	result, err := r.db.ExecContext(ctx, `
		UPDATE categories SET name = ?, color = ?, sort_order = ?
		WHERE id = ?
	`, category.Name, category.Color, category.SortOrder, category.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("update category %q: %w", category.Name, ErrConflict)
		}
		return fmt.Errorf("update category: %w", err)
	}
	return requireAffected(result, "update category")
}

// Delete refuses to remove a system-seeded default category or one still
// referenced by name from any active credential.
func (r *categoryRepository) Delete(ctx context.Context, id int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("delete category: begin tx: %w", err)
	}

	var (
		name      string
		isDefault int
	)
	err = tx.QueryRowContext(ctx, `SELECT name, is_default FROM categories WHERE id = ?`, id).Scan(&name, &isDefault)
	if errors.Is(err, sql.ErrNoRows) {
		_ = tx.Rollback()
		return ErrNotFound
	}
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("delete category: lookup: %w", err)
	}
	if isDefault != 0 {
		_ = tx.Rollback()
		return fmt.Errorf("delete category %q: %w", name, ErrCategoryDefault)
	}

	var used int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM credentials WHERE category = ? AND is_deleted = 0`, name,
	).Scan(&used); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("delete category: usage count: %w", err)
	}
	if used > 0 {
		_ = tx.Rollback()
		return fmt.Errorf("delete category %q (%d active references): %w", name, used, ErrCategoryInUse)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM categories WHERE id = ?`, id); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("delete category: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("delete category: commit: %w", err)
	}
	return nil
}

// UsageCount counts active (non-deleted) credentials referencing the
// category by name.
func (r *categoryRepository) UsageCount(ctx context.Context, name string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM credentials WHERE category = ? AND is_deleted = 0`, name,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("category usage count: %w", err)
	}
	return count, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
