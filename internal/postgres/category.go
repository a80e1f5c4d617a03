package postgres

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/tsubaki/figura/internal/domain"
)

// CategoryStore persists the category tree.
type CategoryStore struct {
	db DB
}

// NewCategoryStore creates a postgres-backed category store.
func NewCategoryStore(db DB) *CategoryStore {
	return &CategoryStore{db: db}
}

const categoryColumns = `id, name, slug, parent_id, sort_order, is_active, is_featured, metadata, created_at, updated_at`

// ListAll returns every category. Traversal and tree assembly happen in the
// service layer over this snapshot.
func (s *CategoryStore) ListAll(ctx context.Context) ([]domain.Category, error) {
	rows, err := s.db.Query(ctx, `SELECT `+categoryColumns+` FROM categories ORDER BY sort_order, name`)
	if err != nil {
		return nil, domain.Internal(err, "category_store.list_all", "failed to list categories")
	}
	defer rows.Close()

	return collectCategories(rows)
}

// GetByID retrieves a single category.
func (s *CategoryStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Category, error) {
	row := s.db.QueryRow(ctx, `SELECT `+categoryColumns+` FROM categories WHERE id = $1`, id)
	c, err := scanCategory(row)
	if err != nil {
		if noRows(err) {
			return nil, domain.ErrCategoryNotFound
		}
		return nil, domain.Internal(err, "category_store.get", "failed to get category")
	}
	return c, nil
}

// GetBySlug retrieves a single category by slug.
func (s *CategoryStore) GetBySlug(ctx context.Context, slug string) (*domain.Category, error) {
	row := s.db.QueryRow(ctx, `SELECT `+categoryColumns+` FROM categories WHERE slug = $1`, slug)
	c, err := scanCategory(row)
	if err != nil {
		if noRows(err) {
			return nil, domain.ErrCategoryNotFound
		}
		return nil, domain.Internal(err, "category_store.get_by_slug", "failed to get category by slug")
	}
	return c, nil
}

// Insert persists a new category. Unique violations on name or slug are
// translated to ErrDuplicateName as a backstop behind the service-level check.
func (s *CategoryStore) Insert(ctx context.Context, c domain.Category) (*domain.Category, error) {
	meta, err := json.Marshal(metadataOrEmpty(c.Metadata))
	if err != nil {
		return nil, domain.Internal(err, "category_store.insert", "failed to encode metadata")
	}

	row := s.db.QueryRow(ctx, `
		INSERT INTO categories (id, name, slug, parent_id, sort_order, is_active, is_featured, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+categoryColumns,
		c.ID, c.Name, c.Slug, c.ParentID, c.SortOrder, c.IsActive, c.IsFeatured, meta,
	)

	created, err := scanCategory(row)
	if err != nil {
		if isUniqueViolation(err, "") {
			return nil, domain.ErrDuplicateName
		}
		return nil, domain.Internal(err, "category_store.insert", "failed to insert category")
	}
	return created, nil
}

// Update persists a full category row.
func (s *CategoryStore) Update(ctx context.Context, c domain.Category) (*domain.Category, error) {
	meta, err := json.Marshal(metadataOrEmpty(c.Metadata))
	if err != nil {
		return nil, domain.Internal(err, "category_store.update", "failed to encode metadata")
	}

	row := s.db.QueryRow(ctx, `
		UPDATE categories
		SET name = $2, slug = $3, parent_id = $4, sort_order = $5,
		    is_active = $6, is_featured = $7, metadata = $8, updated_at = now()
		WHERE id = $1
		RETURNING `+categoryColumns,
		c.ID, c.Name, c.Slug, c.ParentID, c.SortOrder, c.IsActive, c.IsFeatured, meta,
	)

	updated, err := scanCategory(row)
	if err != nil {
		if noRows(err) {
			return nil, domain.ErrCategoryNotFound
		}
		if isUniqueViolation(err, "") {
			return nil, domain.ErrDuplicateName
		}
		return nil, domain.Internal(err, "category_store.update", "failed to update category")
	}
	return updated, nil
}

// Delete removes a category row.
func (s *CategoryStore) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM categories WHERE id = $1`, id)
	if err != nil {
		return domain.Internal(err, "category_store.delete", "failed to delete category")
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrCategoryNotFound
	}
	return nil
}

func collectCategories(rows pgx.Rows) ([]domain.Category, error) {
	var out []domain.Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, domain.Internal(err, "category_store.scan", "failed to scan category")
		}
		out = append(out, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Internal(err, "category_store.scan", "failed to read categories")
	}
	return out, nil
}

func scanCategory(row pgx.Row) (*domain.Category, error) {
	var c domain.Category
	var meta []byte
	err := row.Scan(&c.ID, &c.Name, &c.Slug, &c.ParentID, &c.SortOrder,
		&c.IsActive, &c.IsFeatured, &meta, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &c.Metadata); err != nil {
			return nil, err
		}
	}
	return &c, nil
}

func metadataOrEmpty(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}
