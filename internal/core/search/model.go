// Package search implements retrieval over the embedded knowledge base:
// keyword pre-filtering and boosted vector similarity ranking.
package search

import "github.com/google/uuid"

// Paragraph is one retrieved chunk with its final ranking score.
type Paragraph struct {
	Text          string
	DocumentID    uuid.UUID
	DocumentTitle string
	Score         float64
}

// ParagraphQuery carries everything the repository needs to rank chunks.
type ParagraphQuery struct {
	Embedding []float32
	// CandidateDocIDs are documents whose chunks receive the keyword boost.
	CandidateDocIDs []uuid.UUID
	// CategoryID and SubcategoryID optionally restrict the searched corpus.
	CategoryID    *uuid.UUID
	SubcategoryID *uuid.UUID
	// MinScore filters out results at or below this final score.
	MinScore float64
	// KeywordBoost and FeedbackBoost are added to the cosine similarity of
	// qualifying chunks before filtering and ordering.
	KeywordBoost  float64
	FeedbackBoost float64
	Limit         int
}
