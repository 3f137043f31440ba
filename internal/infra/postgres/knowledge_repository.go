package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/atenda/kb-rag/internal/core/knowledge"
	"github.com/atenda/kb-rag/internal/platform/database"
)

// KnowledgeRepository implements knowledge.Store.
type KnowledgeRepository struct {
	pool *pgxpool.Pool
}

// NewKnowledgeRepository creates a KnowledgeRepository.
func NewKnowledgeRepository(pool *pgxpool.Pool) *KnowledgeRepository {
	return &KnowledgeRepository{pool: pool}
}

var _ knowledge.Store = (*KnowledgeRepository)(nil)

const documentColumns = `
	d.id, d.title, d.body, d.status,
	d.attachment_name, d.attachment_mime,
	d.author_id, d.subcategory_id, d.created_at, d.updated_at,
	COALESCE(array_agg(k.name ORDER BY k.name) FILTER (WHERE k.name IS NOT NULL), '{}') AS keywords`

const documentKeywordJoin = `
	LEFT JOIN document_keywords dk ON dk.document_id = d.id
	LEFT JOIN keywords k ON k.id = dk.keyword_id`

func (r *KnowledgeRepository) CreateDocument(ctx context.Context, doc *knowledge.Document) (*knowledge.Document, error) {
	return database.Transact(ctx, r.pool, func(tx pgx.Tx) (*knowledge.Document, error) {
		query := `
			INSERT INTO documents (title, body, status, attachment_name, attachment_mime, attachment_data, author_id, subcategory_id)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			RETURNING id, created_at, updated_at
		`
		created := *doc
		err := tx.QueryRow(ctx, query,
			doc.Title,
			doc.Body,
			string(doc.Status),
			doc.AttachmentName,
			doc.AttachmentMime,
			doc.AttachmentData,
			doc.AuthorID,
			doc.SubcategoryID,
		).Scan(&created.ID, &created.CreatedAt, &created.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to create document: %w", err)
		}

		if err := replaceKeywords(ctx, tx, created.ID, doc.Keywords); err != nil {
			return nil, err
		}
		return &created, nil
	})
}

func (r *KnowledgeRepository) GetDocument(ctx context.Context, id uuid.UUID) (*knowledge.Document, error) {
	query := `
		SELECT ` + documentColumns + `, d.attachment_data
		FROM documents d` + documentKeywordJoin + `
		WHERE d.id = $1
		GROUP BY d.id
	`
	var doc knowledge.Document
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&doc.ID,
		&doc.Title,
		&doc.Body,
		&doc.Status,
		&doc.AttachmentName,
		&doc.AttachmentMime,
		&doc.AuthorID,
		&doc.SubcategoryID,
		&doc.CreatedAt,
		&doc.UpdatedAt,
		&doc.Keywords,
		&doc.AttachmentData,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, knowledge.ErrDocumentNotFound
		}
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	return &doc, nil
}

func (r *KnowledgeRepository) ListDocuments(ctx context.Context, filter knowledge.DocumentFilter) ([]*knowledge.Document, error) {
	query := `
		SELECT ` + documentColumns + `
		FROM documents d` + documentKeywordJoin + `
		WHERE ($1::text = '' OR d.status = $1)
		  AND ($2::uuid IS NULL OR d.subcategory_id = $2)
		  AND ($3::uuid IS NULL OR d.subcategory_id IN (SELECT id FROM subcategories WHERE category_id = $3))
		GROUP BY d.id
		ORDER BY d.created_at DESC
	`
	rows, err := r.pool.Query(ctx, query, string(filter.Status), filter.SubcategoryID, filter.CategoryID)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	return scanDocuments(rows)
}

func (r *KnowledgeRepository) ListApprovedDocuments(ctx context.Context) ([]*knowledge.Document, error) {
	query := `
		SELECT ` + documentColumns + `, d.attachment_data
		FROM documents d` + documentKeywordJoin + `
		WHERE d.status = 'Approved'
		GROUP BY d.id
		ORDER BY d.created_at
	`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list approved documents: %w", err)
	}
	defer rows.Close()

	docs := make([]*knowledge.Document, 0)
	for rows.Next() {
		var doc knowledge.Document
		err := rows.Scan(
			&doc.ID,
			&doc.Title,
			&doc.Body,
			&doc.Status,
			&doc.AttachmentName,
			&doc.AttachmentMime,
			&doc.AuthorID,
			&doc.SubcategoryID,
			&doc.CreatedAt,
			&doc.UpdatedAt,
			&doc.Keywords,
			&doc.AttachmentData,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		docs = append(docs, &doc)
	}
	return docs, rows.Err()
}

func (r *KnowledgeRepository) UpdateDocument(ctx context.Context, doc *knowledge.Document) (*knowledge.Document, error) {
	updated, err := database.Transact(ctx, r.pool, func(tx pgx.Tx) (*knowledge.Document, error) {
		query := `
			UPDATE documents
			SET title = $2, body = $3, status = $4,
			    attachment_name = $5, attachment_mime = $6, attachment_data = $7,
			    subcategory_id = $8, updated_at = now()
			WHERE id = $1
			RETURNING created_at, updated_at
		`
		next := *doc
		err := tx.QueryRow(ctx, query,
			doc.ID,
			doc.Title,
			doc.Body,
			string(doc.Status),
			doc.AttachmentName,
			doc.AttachmentMime,
			doc.AttachmentData,
			doc.SubcategoryID,
		).Scan(&next.CreatedAt, &next.UpdatedAt)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, knowledge.ErrDocumentNotFound
			}
			return nil, fmt.Errorf("failed to update document: %w", err)
		}

		if err := replaceKeywords(ctx, tx, doc.ID, doc.Keywords); err != nil {
			return nil, err
		}
		return &next, nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (r *KnowledgeRepository) DeleteDocument(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return knowledge.ErrDocumentNotFound
	}
	return nil
}

func (r *KnowledgeRepository) RemoveAttachment(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE documents
		SET attachment_name = '', attachment_mime = '', attachment_data = NULL, updated_at = now()
		WHERE id = $1
	`
	tag, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to remove attachment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return knowledge.ErrDocumentNotFound
	}
	return nil
}

// replaceKeywords upserts the keyword names and rewrites the document's
// associations to exactly that set.
func replaceKeywords(ctx context.Context, tx pgx.Tx, documentID uuid.UUID, keywords []string) error {
	if _, err := tx.Exec(ctx, `DELETE FROM document_keywords WHERE document_id = $1`, documentID); err != nil {
		return fmt.Errorf("failed to clear document keywords: %w", err)
	}

	for _, name := range keywords {
		if name == "" {
			continue
		}
		query := `
			WITH kw AS (
				INSERT INTO keywords (name) VALUES ($2)
				ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
				RETURNING id
			)
			INSERT INTO document_keywords (document_id, keyword_id)
			SELECT $1, id FROM kw
			ON CONFLICT DO NOTHING
		`
		if _, err := tx.Exec(ctx, query, documentID, name); err != nil {
			return fmt.Errorf("failed to associate keyword %q: %w", name, err)
		}
	}
	return nil
}

func scanDocuments(rows pgx.Rows) ([]*knowledge.Document, error) {
	docs := make([]*knowledge.Document, 0)
	for rows.Next() {
		var doc knowledge.Document
		err := rows.Scan(
			&doc.ID,
			&doc.Title,
			&doc.Body,
			&doc.Status,
			&doc.AttachmentName,
			&doc.AttachmentMime,
			&doc.AuthorID,
			&doc.SubcategoryID,
			&doc.CreatedAt,
			&doc.UpdatedAt,
			&doc.Keywords,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		docs = append(docs, &doc)
	}
	return docs, rows.Err()
}

func (r *KnowledgeRepository) Stats(ctx context.Context) (*knowledge.Stats, error) {
	query := `
		SELECT
			(SELECT count(*) FROM documents),
			(SELECT count(*) FROM documents WHERE status = 'Approved'),
			(SELECT count(*) FROM documents WHERE status = 'Pending'),
			(SELECT count(*) FROM categories),
			(SELECT count(*) FROM subcategories),
			(SELECT count(*) FROM chat_queries),
			(SELECT count(*) FROM feedbacks WHERE satisfied = FALSE)
	`
	var stats knowledge.Stats
	err := r.pool.QueryRow(ctx, query).Scan(
		&stats.Documents,
		&stats.ApprovedDocs,
		&stats.PendingDocs,
		&stats.Categories,
		&stats.Subcategories,
		&stats.Queries,
		&stats.UnsatisfiedCount,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load stats: %w", err)
	}
	return &stats, nil
}
