package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/atenda/kb-rag/internal/core/chat"
	"github.com/atenda/kb-rag/internal/platform/database"
)

// ChatRepository implements chat.Store.
type ChatRepository struct {
	pool *pgxpool.Pool
}

// NewChatRepository creates a ChatRepository.
func NewChatRepository(pool *pgxpool.Pool) *ChatRepository {
	return &ChatRepository{pool: pool}
}

var _ chat.Store = (*ChatRepository)(nil)

// chatTx exposes the transactional operations on one open transaction.
type chatTx struct {
	tx pgx.Tx
}

var _ chat.TxStore = (*chatTx)(nil)

func (r *ChatRepository) InTx(ctx context.Context, fn func(tx chat.TxStore) error) error {
	_, err := database.Transact(ctx, r.pool, func(tx pgx.Tx) (struct{}, error) {
		return struct{}{}, fn(&chatTx{tx: tx})
	})
	return err
}

func (r *ChatRepository) CreateSession(ctx context.Context, userID uuid.UUID) (*chat.Session, error) {
	query := `
		INSERT INTO chat_sessions (user_id)
		VALUES ($1)
		RETURNING id, started_at
	`
	session := chat.Session{UserID: userID}
	if err := r.pool.QueryRow(ctx, query, userID).Scan(&session.ID, &session.StartedAt); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return &session, nil
}

func (r *ChatRepository) EndSession(ctx context.Context, id uuid.UUID) (*chat.Session, error) {
	query := `
		UPDATE chat_sessions
		SET ended_at = COALESCE(ended_at, now())
		WHERE id = $1
		RETURNING id, COALESCE(user_id, '00000000-0000-0000-0000-000000000000'), started_at, ended_at
	`
	var session chat.Session
	err := r.pool.QueryRow(ctx, query, id).Scan(&session.ID, &session.UserID, &session.StartedAt, &session.EndedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, chat.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to end session: %w", err)
	}
	return &session, nil
}

const sessionQuery = `
	SELECT id, COALESCE(user_id, '00000000-0000-0000-0000-000000000000'), started_at, ended_at
	FROM chat_sessions
	WHERE id = $1
`

func (r *ChatRepository) GetSession(ctx context.Context, id uuid.UUID) (*chat.Session, error) {
	return scanSession(r.pool.QueryRow(ctx, sessionQuery, id))
}

func (t *chatTx) GetSession(ctx context.Context, id uuid.UUID) (*chat.Session, error) {
	return scanSession(t.tx.QueryRow(ctx, sessionQuery, id))
}

func scanSession(row pgx.Row) (*chat.Session, error) {
	var session chat.Session
	err := row.Scan(&session.ID, &session.UserID, &session.StartedAt, &session.EndedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, chat.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return &session, nil
}

func (t *chatTx) CreateQuery(ctx context.Context, sessionID uuid.UUID, question string) (*chat.Query, error) {
	query := `
		INSERT INTO chat_queries (session_id, question_text)
		VALUES ($1, $2)
		RETURNING id, created_at
	`
	q := chat.Query{SessionID: sessionID, Question: question}
	if err := t.tx.QueryRow(ctx, query, sessionID, question).Scan(&q.ID, &q.CreatedAt); err != nil {
		return nil, fmt.Errorf("failed to create query: %w", err)
	}
	return &q, nil
}

func (t *chatTx) CreateAnswer(ctx context.Context, queryID uuid.UUID, text string, sourceDocumentID *uuid.UUID) (*chat.Answer, error) {
	query := `
		INSERT INTO chat_answers (query_id, answer_text, source_document_id)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`
	answer := chat.Answer{QueryID: queryID, Text: text, SourceDocumentID: sourceDocumentID}
	if err := t.tx.QueryRow(ctx, query, queryID, text, sourceDocumentID).Scan(&answer.ID, &answer.CreatedAt); err != nil {
		return nil, fmt.Errorf("failed to create answer: %w", err)
	}
	return &answer, nil
}

func (t *chatTx) InsertCacheEntry(ctx context.Context, hash, question, contextText, answer string) error {
	query := `
		INSERT INTO answer_cache (context_hash, question_text, context_text, answer_text)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (context_hash) DO NOTHING
	`
	if _, err := t.tx.Exec(ctx, query, hash, question, contextText, answer); err != nil {
		return fmt.Errorf("failed to insert cache entry: %w", err)
	}
	return nil
}

func (r *ChatRepository) History(ctx context.Context, sessionID uuid.UUID, limit, offset int) ([]chat.HistoryEntry, error) {
	query := `
		SELECT
			q.id, q.session_id, q.question_text, q.created_at,
			a.id, a.answer_text, a.source_document_id, a.created_at
		FROM chat_queries q
		JOIN chat_answers a ON a.query_id = q.id
		WHERE q.session_id = $1
		ORDER BY q.created_at DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.pool.Query(ctx, query, sessionID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to load session history: %w", err)
	}
	defer rows.Close()

	entries := make([]chat.HistoryEntry, 0, limit)
	for rows.Next() {
		var e chat.HistoryEntry
		err := rows.Scan(
			&e.Query.ID,
			&e.Query.SessionID,
			&e.Query.Question,
			&e.Query.CreatedAt,
			&e.Answer.ID,
			&e.Answer.Text,
			&e.Answer.SourceDocumentID,
			&e.Answer.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan history entry: %w", err)
		}
		e.Answer.QueryID = e.Query.ID
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// PopularQuestions counts only questions that produced a source-grounded
// answer the user confirmed satisfactory. Fallback and unreviewed questions
// never enter the aggregate.
func (r *ChatRepository) PopularQuestions(ctx context.Context, since time.Time, limit int) ([]chat.PopularQuestion, error) {
	query := `
		SELECT lower(trim(q.question_text)) AS question, count(*) AS cnt
		FROM chat_queries q
		JOIN chat_answers a ON a.query_id = q.id AND a.source_document_id IS NOT NULL
		JOIN feedbacks f ON f.query_id = q.id AND f.satisfied = TRUE
		WHERE q.created_at >= $1
		GROUP BY question
		ORDER BY cnt DESC
		LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, since, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load popular questions: %w", err)
	}
	defer rows.Close()

	questions := make([]chat.PopularQuestion, 0, limit)
	for rows.Next() {
		var pq chat.PopularQuestion
		if err := rows.Scan(&pq.Question, &pq.Count); err != nil {
			return nil, fmt.Errorf("failed to scan popular question: %w", err)
		}
		questions = append(questions, pq)
	}
	return questions, rows.Err()
}
