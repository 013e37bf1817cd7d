package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"policy-rag/internal/domain"
)

type fragmentRepository struct {
	pool *pgxpool.Pool
}

// NewFragmentRepository creates a pgvector-backed FragmentRepository.
func NewFragmentRepository(pool *pgxpool.Pool) domain.FragmentRepository {
	return &fragmentRepository{pool: pool}
}

type dbExecutor interface {
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
}

func (r *fragmentRepository) getExecutor(ctx context.Context) dbExecutor {
	tx := ExtractTx(ctx)
	if tx != nil {
		return tx
	}
	return r.pool
}

// Search ranks fragments of one provider by cosine similarity against the
// query vector. The store's cosine distance lies in [0,2]; similarity is
// derived as 1 - distance here so callers never see the distance metric.
func (r *fragmentRepository) Search(ctx context.Context, queryVector []float32, provider string, limit int) ([]domain.FragmentMatch, error) {
	query := `
		SELECT id, policy_id, title, source_url, provider, ordinal, content, created_at,
		       1 - (embedding <=> $1) AS similarity
		FROM policy_fragments
		WHERE provider = $2
		ORDER BY embedding <=> $1
		LIMIT $3
	`
	rows, err := r.getExecutor(ctx).Query(ctx, query, pgvector.NewVector(queryVector), provider, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: similarity query failed: %v", domain.ErrIndexUnavailable, err)
	}
	defer rows.Close()

	var matches []domain.FragmentMatch
	for rows.Next() {
		var m domain.FragmentMatch
		var similarity float64
		f := &m.Fragment
		if err := rows.Scan(&f.ID, &f.PolicyID, &f.Title, &f.SourceURL, &f.Provider, &f.Ordinal, &f.Content, &f.CreatedAt, &similarity); err != nil {
			return nil, fmt.Errorf("failed to scan fragment: %w", err)
		}
		m.Similarity = float32(similarity)
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: rows error: %v", domain.ErrIndexUnavailable, err)
	}
	return matches, nil
}

func (r *fragmentRepository) DistinctProviders(ctx context.Context) ([]string, error) {
	query := `SELECT DISTINCT provider FROM policy_fragments ORDER BY provider ASC`
	rows, err := r.getExecutor(ctx).Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: provider query failed: %v", domain.ErrIndexUnavailable, err)
	}
	defer rows.Close()

	var providers []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("failed to scan provider: %w", err)
		}
		providers = append(providers, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: rows error: %v", domain.ErrIndexUnavailable, err)
	}
	return providers, nil
}

func (r *fragmentRepository) CountFragments(ctx context.Context) (int64, error) {
	rows, err := r.getExecutor(ctx).Query(ctx, `SELECT COUNT(*) FROM policy_fragments`)
	if err != nil {
		return 0, fmt.Errorf("%w: count query failed: %v", domain.ErrIndexUnavailable, err)
	}
	defer rows.Close()

	var count int64
	if rows.Next() {
		if err := rows.Scan(&count); err != nil {
			return 0, fmt.Errorf("failed to scan count: %w", err)
		}
	}
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("%w: rows error: %v", domain.ErrIndexUnavailable, err)
	}
	return count, nil
}

func (r *fragmentRepository) BulkInsertFragments(ctx context.Context, fragments []domain.PolicyFragment) error {
	if len(fragments) == 0 {
		return nil
	}

	rows := make([][]interface{}, len(fragments))
	for i, f := range fragments {
		rows[i] = []interface{}{
			f.ID,
			f.PolicyID,
			f.Title,
			f.SourceURL,
			f.Provider,
			f.Ordinal,
			f.Content,
			f.Embedding,
			f.CreatedAt,
		}
	}

	_, err := r.getExecutor(ctx).CopyFrom(
		ctx,
		pgx.Identifier{"policy_fragments"},
		[]string{"id", "policy_id", "title", "source_url", "provider", "ordinal", "content", "embedding", "created_at"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return fmt.Errorf("failed to bulk insert fragments: %w", err)
	}

	return nil
}

func (r *fragmentRepository) DeleteByPolicyID(ctx context.Context, provider, policyID string) error {
	_, err := r.getExecutor(ctx).Exec(ctx,
		`DELETE FROM policy_fragments WHERE provider = $1 AND policy_id = $2`,
		provider, policyID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete fragments: %w", err)
	}
	return nil
}
