package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"policy-rag/internal/domain"
)

type feedbackRepository struct {
	pool *pgxpool.Pool
}

// NewFeedbackRepository creates a Postgres-backed FeedbackRepository.
func NewFeedbackRepository(pool *pgxpool.Pool) domain.FeedbackRepository {
	return &feedbackRepository{pool: pool}
}

func (r *feedbackRepository) Insert(ctx context.Context, fb *domain.Feedback) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO answer_feedback (id, question, answer, rating, comment, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		fb.ID, fb.Question, fb.Answer, fb.Rating, fb.Comment, fb.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert feedback: %w", err)
	}
	return nil
}
