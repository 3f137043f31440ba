package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/atenda/kb-rag/internal/core/knowledge"
)

func (r *KnowledgeRepository) CreateCategory(ctx context.Context, category *knowledge.Category) (*knowledge.Category, error) {
	query := `
		INSERT INTO categories (name, color)
		VALUES ($1, $2)
		RETURNING id
	`
	created := *category
	if err := r.pool.QueryRow(ctx, query, category.Name, category.Color).Scan(&created.ID); err != nil {
		return nil, fmt.Errorf("failed to create category: %w", err)
	}
	created.Subcategories = nil
	return &created, nil
}

// ListCategories returns all categories with their subcategories attached.
func (r *KnowledgeRepository) ListCategories(ctx context.Context) ([]*knowledge.Category, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, color FROM categories ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	defer rows.Close()

	categories := make([]*knowledge.Category, 0)
	byID := make(map[uuid.UUID]*knowledge.Category)
	for rows.Next() {
		var c knowledge.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Color); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		categories = append(categories, &c)
		byID[c.ID] = &c
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	subRows, err := r.pool.Query(ctx, `SELECT id, category_id, name, color FROM subcategories ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list subcategories: %w", err)
	}
	defer subRows.Close()

	for subRows.Next() {
		var s knowledge.Subcategory
		if err := subRows.Scan(&s.ID, &s.CategoryID, &s.Name, &s.Color); err != nil {
			return nil, fmt.Errorf("failed to scan subcategory: %w", err)
		}
		if parent, ok := byID[s.CategoryID]; ok {
			parent.Subcategories = append(parent.Subcategories, &s)
		}
	}
	return categories, subRows.Err()
}

func (r *KnowledgeRepository) UpdateCategory(ctx context.Context, category *knowledge.Category) (*knowledge.Category, error) {
	query := `
		UPDATE categories
		SET name = $2, color = $3, updated_at = now()
		WHERE id = $1
	`
	tag, err := r.pool.Exec(ctx, query, category.ID, category.Name, category.Color)
	if err != nil {
		return nil, fmt.Errorf("failed to update category: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, knowledge.ErrCategoryNotFound
	}
	return category, nil
}

func (r *KnowledgeRepository) DeleteCategory(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM categories WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete category: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return knowledge.ErrCategoryNotFound
	}
	return nil
}

func (r *KnowledgeRepository) CreateSubcategory(ctx context.Context, sub *knowledge.Subcategory) (*knowledge.Subcategory, error) {
	query := `
		INSERT INTO subcategories (category_id, name, color)
		VALUES ($1, $2, $3)
		RETURNING id
	`
	created := *sub
	err := r.pool.QueryRow(ctx, query, sub.CategoryID, sub.Name, sub.Color).Scan(&created.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to create subcategory: %w", err)
	}
	return &created, nil
}

func (r *KnowledgeRepository) UpdateSubcategory(ctx context.Context, sub *knowledge.Subcategory) (*knowledge.Subcategory, error) {
	query := `
		UPDATE subcategories
		SET name = $2, color = $3, updated_at = now()
		WHERE id = $1
		RETURNING category_id
	`
	updated := *sub
	err := r.pool.QueryRow(ctx, query, sub.ID, sub.Name, sub.Color).Scan(&updated.CategoryID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, knowledge.ErrSubcategoryNotFound
		}
		return nil, fmt.Errorf("failed to update subcategory: %w", err)
	}
	return &updated, nil
}

func (r *KnowledgeRepository) DeleteSubcategory(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM subcategories WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete subcategory: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return knowledge.ErrSubcategoryNotFound
	}
	return nil
}
