package surreal

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/surrealdb/surrealdb.go"
	sdbmodels "github.com/surrealdb/surrealdb.go/pkg/models"

	"github.com/desertthunder/songbook/internal/models"
	"github.com/desertthunder/songbook/internal/shared"
)

// categoryRecord is one categories_metadata document keyed by field name.
type categoryRecord struct {
	ID        sdbmodels.RecordID `cbor:"id"`
	Values    []string           `cbor:"values"`
	UpdatedAt time.Time          `cbor:"updated_at"`
}

func (r categoryRecord) index() *models.CategoryIndex {
	values := r.Values
	if values == nil {
		values = []string{}
	}
	return &models.CategoryIndex{Field: models.Field(recordKey(r.ID)), Values: values, UpdatedAt: r.UpdatedAt}
}

func categoryRID(field models.Field) (sdbmodels.RecordID, error) {
	if _, ok := models.LookupField(string(field)); !ok {
		return sdbmodels.RecordID{}, fmt.Errorf("%w: %s", shared.ErrInvalidField, field)
	}
	return sdbmodels.NewRecordID(categoriesTable, string(field)), nil
}

// UnionCategory adds values to field's document, creating it when absent.
func (s *Store) UnionCategory(ctx context.Context, field models.Field, values ...string) error {
	rid, err := categoryRID(field)
	if err != nil {
		return err
	}

	clean := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			clean = append(clean, v)
		}
	}

	query := "UPSERT $rid SET `values` = array::union(`values` ?? [], $values), updated_at = time::now()"
	if _, err := surrealdb.Query[any](ctx, s.db, query, map[string]any{"rid": rid, "values": clean}); err != nil {
		return fmt.Errorf("failed to union category: %w", err)
	}
	return nil
}

// RemoveCategory drops value from field's document, creating it when absent.
func (s *Store) RemoveCategory(ctx context.Context, field models.Field, value string) error {
	rid, err := categoryRID(field)
	if err != nil {
		return err
	}

	query := "UPSERT $rid SET `values` = array::complement(`values` ?? [], [$value]), updated_at = time::now()"
	if _, err := surrealdb.Query[any](ctx, s.db, query, map[string]any{"rid": rid, "value": value}); err != nil {
		return fmt.Errorf("failed to remove category value: %w", err)
	}
	return nil
}

// GetCategory returns field's document.
func (s *Store) GetCategory(ctx context.Context, field models.Field) (*models.CategoryIndex, error) {
	rid, err := categoryRID(field)
	if err != nil {
		return nil, err
	}

	res, err := surrealdb.Query[[]categoryRecord](ctx, s.db, "SELECT * FROM $rid", map[string]any{"rid": rid})
	if err != nil {
		return nil, fmt.Errorf("failed to get category: %w", err)
	}
	records, _ := first(res)
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: category %s", shared.ErrNotFound, field)
	}
	return records[0].index(), nil
}

// ListCategories returns every field document ordered by field name.
func (s *Store) ListCategories(ctx context.Context) ([]*models.CategoryIndex, error) {
	res, err := surrealdb.Query[[]categoryRecord](ctx, s.db, "SELECT * FROM categories_metadata ORDER BY id ASC", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query categories: %w", err)
	}
	records, _ := first(res)

	entries := make([]*models.CategoryIndex, 0, len(records))
	for _, r := range records {
		entries = append(entries, r.index())
	}
	return entries, nil
}
