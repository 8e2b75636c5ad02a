package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/songbook/internal/models"
	"github.com/desertthunder/songbook/internal/shared"
)

// CategoryRepository persists categories_metadata. A field's row is created on its
// first write and never deleted.
type CategoryRepository struct {
	db *sql.DB
}

// NewCategoryRepository creates a new CategoryRepository with the given database connection
func NewCategoryRepository(db *sql.DB) *CategoryRepository {
	return &CategoryRepository{db: db}
}

func checkField(field models.Field) error {
	if _, ok := models.LookupField(string(field)); !ok {
		return fmt.Errorf("%w: %s", shared.ErrInvalidField, field)
	}
	return nil
}

func touchCategory(ctx context.Context, tx *sql.Tx, field models.Field, now time.Time) error {
	query := `
		INSERT INTO categories_metadata (field, updated_at) VALUES (?, ?)
		ON CONFLICT(field) DO UPDATE SET updated_at = excluded.updated_at
	`
	if _, err := tx.ExecContext(ctx, query, field, now); err != nil {
		return fmt.Errorf("failed to upsert category: %w", err)
	}
	return nil
}

// UnionCategory adds values to field's index. Values already present are left alone.
func (r *CategoryRepository) UnionCategory(ctx context.Context, field models.Field, values ...string) error {
	if err := checkField(field); err != nil {
		return err
	}

	now := time.Now().UTC()
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		if err := touchCategory(ctx, tx, field, now); err != nil {
			return err
		}
		for _, v := range values {
			if v = strings.TrimSpace(v); v == "" {
				continue
			}
			_, err := tx.ExecContext(ctx, "INSERT OR IGNORE INTO category_values (field, value, created_at) VALUES (?, ?, ?)", field, v, now)
			if err != nil {
				return fmt.Errorf("failed to insert category value: %w", err)
			}
		}
		return nil
	})
}

// RemoveCategory drops value from field's index. Removing an absent value is a no-op.
func (r *CategoryRepository) RemoveCategory(ctx context.Context, field models.Field, value string) error {
	if err := checkField(field); err != nil {
		return err
	}

	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		if err := touchCategory(ctx, tx, field, time.Now().UTC()); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM category_values WHERE field = ? AND value = ?", field, value); err != nil {
			return fmt.Errorf("failed to delete category value: %w", err)
		}
		return nil
	})
}

// GetCategory returns field's index with values in insertion order.
func (r *CategoryRepository) GetCategory(ctx context.Context, field models.Field) (*models.CategoryIndex, error) {
	if err := checkField(field); err != nil {
		return nil, err
	}

	entry := &models.CategoryIndex{Field: field, Values: []string{}}
	err := r.db.QueryRowContext(ctx, "SELECT updated_at FROM categories_metadata WHERE field = ?", field).Scan(&entry.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: category %s", shared.ErrNotFound, field)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get category: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, "SELECT value FROM category_values WHERE field = ? ORDER BY rowid ASC", field)
	if err != nil {
		return nil, fmt.Errorf("failed to query category values: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("failed to scan category value: %w", err)
		}
		entry.Values = append(entry.Values, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return entry, nil
}

// ListCategories returns every field's index ordered by field name.
func (r *CategoryRepository) ListCategories(ctx context.Context) ([]*models.CategoryIndex, error) {
	query := `
		SELECT m.field, m.updated_at, v.value
		FROM categories_metadata m
		LEFT JOIN category_values v ON v.field = m.field
		ORDER BY m.field ASC, v.rowid ASC
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query categories: %w", err)
	}
	defer rows.Close()

	entries := []*models.CategoryIndex{}
	var current *models.CategoryIndex
	for rows.Next() {
		var (
			field     string
			updatedAt time.Time
			value     sql.NullString
		)
		if err := rows.Scan(&field, &updatedAt, &value); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		if current == nil || string(current.Field) != field {
			current = &models.CategoryIndex{Field: models.Field(field), Values: []string{}, UpdatedAt: updatedAt}
			entries = append(entries, current)
		}
		if value.Valid {
			current.Values = append(current.Values, value.String)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return entries, nil
}
