package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/atenda/kb-rag/internal/core/chat"
	"github.com/atenda/kb-rag/internal/core/triage"
	"github.com/atenda/kb-rag/internal/platform/database"
)

const uniqueViolationCode = "23505"

// TriageRepository implements triage.Store.
type TriageRepository struct {
	pool *pgxpool.Pool
}

// NewTriageRepository creates a TriageRepository.
func NewTriageRepository(pool *pgxpool.Pool) *TriageRepository {
	return &TriageRepository{pool: pool}
}

var _ triage.Store = (*TriageRepository)(nil)

type triageTx struct {
	tx pgx.Tx
}

var _ triage.TxStore = (*triageTx)(nil)

func (r *TriageRepository) InTx(ctx context.Context, fn func(tx triage.TxStore) error) error {
	_, err := database.Transact(ctx, r.pool, func(tx pgx.Tx) (struct{}, error) {
		return struct{}{}, fn(&triageTx{tx: tx})
	})
	return err
}

func (t *triageTx) CreateFeedback(ctx context.Context, queryID uuid.UUID, satisfied bool) (*triage.Feedback, error) {
	query := `
		INSERT INTO feedbacks (query_id, satisfied)
		VALUES ($1, $2)
		RETURNING id, created_at
	`
	fb := triage.Feedback{QueryID: queryID, Satisfied: satisfied}
	if err := t.tx.QueryRow(ctx, query, queryID, satisfied).Scan(&fb.ID, &fb.CreatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return nil, triage.ErrDuplicateFeedback
		}
		return nil, fmt.Errorf("failed to create feedback: %w", err)
	}
	return &fb, nil
}

const queryByIDSQL = `
	SELECT id, session_id, question_text, created_at
	FROM chat_queries
	WHERE id = $1
`

func (t *triageTx) GetQuery(ctx context.Context, queryID uuid.UUID) (*chat.Query, error) {
	return scanQuery(t.tx.QueryRow(ctx, queryByIDSQL, queryID))
}

func (r *TriageRepository) GetQuery(ctx context.Context, queryID uuid.UUID) (*chat.Query, error) {
	return scanQuery(r.pool.QueryRow(ctx, queryByIDSQL, queryID))
}

func scanQuery(row pgx.Row) (*chat.Query, error) {
	var q chat.Query
	err := row.Scan(&q.ID, &q.SessionID, &q.Question, &q.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, chat.ErrQueryNotFound
		}
		return nil, fmt.Errorf("failed to get query: %w", err)
	}
	return &q, nil
}

// findOrCreatePendingSubject inserts the subject unless one already exists for
// the query, then reads back whichever row won. The unique constraint on
// query_id is what makes concurrent calls converge on a single row.
func findOrCreatePendingSubject(ctx context.Context, q querier, subject triage.PendingSubject) (*triage.PendingSubject, bool, error) {
	insert := `
		INSERT INTO pending_subjects (query_id, subject_text, status, category_id, subcategory_id)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (query_id) DO NOTHING
	`
	tag, err := q.Exec(ctx, insert,
		subject.QueryID,
		subject.Text,
		string(subject.Status),
		subject.CategoryID,
		subject.SubcategoryID,
	)
	if err != nil {
		return nil, false, fmt.Errorf("failed to create pending subject: %w", err)
	}
	created := tag.RowsAffected() > 0

	row := q.QueryRow(ctx, pendingSubjectSelect+` WHERE query_id = $1`, subject.QueryID)
	ps, err := scanPendingSubject(row)
	if err != nil {
		return nil, false, err
	}
	return ps, created, nil
}

// querier is the subset of pgx shared by pools and transactions.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (t *triageTx) FindOrCreatePendingSubject(ctx context.Context, subject triage.PendingSubject) (*triage.PendingSubject, bool, error) {
	return findOrCreatePendingSubject(ctx, t.tx, subject)
}

func (r *TriageRepository) FindOrCreatePendingSubject(ctx context.Context, subject triage.PendingSubject) (*triage.PendingSubject, bool, error) {
	return findOrCreatePendingSubject(ctx, r.pool, subject)
}

const pendingSubjectSelect = `
	SELECT id, query_id, subject_text, status, category_id, subcategory_id, created_at, updated_at
	FROM pending_subjects
`

func scanPendingSubject(row pgx.Row) (*triage.PendingSubject, error) {
	var ps triage.PendingSubject
	err := row.Scan(
		&ps.ID,
		&ps.QueryID,
		&ps.Text,
		&ps.Status,
		&ps.CategoryID,
		&ps.SubcategoryID,
		&ps.CreatedAt,
		&ps.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, triage.ErrPendingSubjectNotFound
		}
		return nil, fmt.Errorf("failed to scan pending subject: %w", err)
	}
	return &ps, nil
}

func (r *TriageRepository) ListPendingSubjects(ctx context.Context, status triage.PendingSubjectStatus) ([]*triage.PendingSubject, error) {
	query := pendingSubjectSelect + `
		WHERE ($1 = '' OR status = $1)
		ORDER BY created_at DESC
	`
	rows, err := r.pool.Query(ctx, query, string(status))
	if err != nil {
		return nil, fmt.Errorf("failed to list pending subjects: %w", err)
	}
	defer rows.Close()

	subjects := make([]*triage.PendingSubject, 0)
	for rows.Next() {
		var ps triage.PendingSubject
		err := rows.Scan(
			&ps.ID,
			&ps.QueryID,
			&ps.Text,
			&ps.Status,
			&ps.CategoryID,
			&ps.SubcategoryID,
			&ps.CreatedAt,
			&ps.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan pending subject: %w", err)
		}
		subjects = append(subjects, &ps)
	}
	return subjects, rows.Err()
}

func (r *TriageRepository) GetPendingSubject(ctx context.Context, id uuid.UUID) (*triage.PendingSubject, error) {
	return scanPendingSubject(r.pool.QueryRow(ctx, pendingSubjectSelect+` WHERE id = $1`, id))
}

func (r *TriageRepository) UpdatePendingSubjectStatus(ctx context.Context, id uuid.UUID, status triage.PendingSubjectStatus) (*triage.PendingSubject, error) {
	query := `
		UPDATE pending_subjects
		SET status = $2, updated_at = now()
		WHERE id = $1
		RETURNING id, query_id, subject_text, status, category_id, subcategory_id, created_at, updated_at
	`
	return scanPendingSubject(r.pool.QueryRow(ctx, query, id, string(status)))
}

func (r *TriageRepository) DeletePendingSubject(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM pending_subjects WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete pending subject: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return triage.ErrPendingSubjectNotFound
	}
	return nil
}
