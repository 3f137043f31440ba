package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/atenda/kb-rag/internal/core/search"
)

// SearchRepository implements search.Repository over document_paragraphs.
type SearchRepository struct {
	pool *pgxpool.Pool
}

// NewSearchRepository creates a SearchRepository.
func NewSearchRepository(pool *pgxpool.Pool) *SearchRepository {
	return &SearchRepository{pool: pool}
}

var _ search.Repository = (*SearchRepository)(nil)

func (r *SearchRepository) FindDocumentIDsByKeywords(ctx context.Context, keywords []string, limit int) ([]uuid.UUID, error) {
	if len(keywords) == 0 {
		return nil, nil
	}

	lowered := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" {
			lowered = append(lowered, kw)
		}
	}
	if len(lowered) == 0 {
		return nil, nil
	}

	query := `
		SELECT dk.document_id
		FROM document_keywords dk
		JOIN keywords k ON k.id = dk.keyword_id
		JOIN documents d ON d.id = dk.document_id
		WHERE d.status = 'Approved' AND lower(k.name) = ANY($1)
		GROUP BY dk.document_id
		ORDER BY count(*) DESC
		LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, lowered, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to find documents by keywords: %w", err)
	}
	defer rows.Close()

	ids := make([]uuid.UUID, 0)
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan document id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// TopParagraphs ranks chunks of Approved documents by cosine similarity plus
// the keyword and feedback boosts, all computed in SQL so the HNSW index and
// the final ordering live in one place.
func (r *SearchRepository) TopParagraphs(ctx context.Context, q search.ParagraphQuery) ([]search.Paragraph, error) {
	candidates := q.CandidateDocIDs
	if candidates == nil {
		candidates = []uuid.UUID{}
	}

	query := `
		SELECT paragraph_text, document_id, title, score
		FROM (
			SELECT
				dp.paragraph_text,
				dp.document_id,
				d.title,
				(1 - (dp.embedding <=> $1))
					+ CASE WHEN dp.document_id = ANY($2::uuid[]) THEN $3::float8 ELSE 0 END
					+ COALESCE((
						SELECT $4::float8
						FROM feedbacks fb
						JOIN chat_answers ca ON ca.query_id = fb.query_id
						WHERE ca.source_document_id = dp.document_id AND fb.satisfied = TRUE
						LIMIT 1
					), 0) AS score
			FROM document_paragraphs dp
			JOIN documents d ON d.id = dp.document_id
			WHERE d.status = 'Approved'
			  AND ($5::uuid IS NULL OR d.subcategory_id = $5)
			  AND ($6::uuid IS NULL OR d.subcategory_id IN (
					SELECT id FROM subcategories WHERE category_id = $6
			  ))
		) ranked
		WHERE score > $7
		ORDER BY score DESC
		LIMIT $8
	`
	rows, err := r.pool.Query(ctx, query,
		pgvector.NewVector(q.Embedding),
		candidates,
		q.KeywordBoost,
		q.FeedbackBoost,
		q.SubcategoryID,
		q.CategoryID,
		q.MinScore,
		q.Limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to rank paragraphs: %w", err)
	}
	defer rows.Close()

	paragraphs := make([]search.Paragraph, 0, q.Limit)
	for rows.Next() {
		var p search.Paragraph
		if err := rows.Scan(&p.Text, &p.DocumentID, &p.DocumentTitle, &p.Score); err != nil {
			return nil, fmt.Errorf("failed to scan paragraph: %w", err)
		}
		paragraphs = append(paragraphs, p)
	}
	return paragraphs, rows.Err()
}
