package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"policy-rag/internal/domain"
)

// RetrieveFragmentsInput defines the parameters for one retrieval.
type RetrieveFragmentsInput struct {
	Question string
	Provider string
}

// RetrieveFragmentsOutput carries the ranked, threshold-filtered result.
type RetrieveFragmentsOutput struct {
	Result domain.RetrievalResult
}

// RetrieveFragmentsUsecase retrieves the policy fragments most similar to a
// question, filtered to one provider.
type RetrieveFragmentsUsecase interface {
	Execute(ctx context.Context, input RetrieveFragmentsInput) (*RetrieveFragmentsOutput, error)
}

type retrieveFragmentsUsecase struct {
	fragmentRepo  domain.FragmentRepository
	encoder       domain.VectorEncoder
	topK          int
	minSimilarity float32
	logger        *slog.Logger
}

// NewRetrieveFragmentsUsecase creates a retriever with the given top-K and
// minimum similarity threshold.
func NewRetrieveFragmentsUsecase(
	fragmentRepo domain.FragmentRepository,
	encoder domain.VectorEncoder,
	topK int,
	minSimilarity float64,
	logger *slog.Logger,
) RetrieveFragmentsUsecase {
	return &retrieveFragmentsUsecase{
		fragmentRepo:  fragmentRepo,
		encoder:       encoder,
		topK:          topK,
		minSimilarity: float32(minSimilarity),
		logger:        logger,
	}
}

func (u *retrieveFragmentsUsecase) Execute(ctx context.Context, input RetrieveFragmentsInput) (*RetrieveFragmentsOutput, error) {
	if input.Question == "" {
		return nil, fmt.Errorf("question is empty")
	}

	embeddings, err := u.encoder.Encode(ctx, []string{input.Question})
	if err != nil {
		// An unreachable embedding endpoint means similarity search cannot
		// proceed at all; report it as the index being unavailable rather
		// than pretending there were no results.
		return nil, fmt.Errorf("%w: encode question: %v", domain.ErrIndexUnavailable, err)
	}
	if len(embeddings) != 1 {
		return nil, fmt.Errorf("%w: expected 1 embedding, got %d", domain.ErrIndexUnavailable, len(embeddings))
	}

	matches, err := u.fragmentRepo.Search(ctx, embeddings[0], input.Provider, u.topK)
	if err != nil {
		return nil, fmt.Errorf("failed to search fragments: %w", err)
	}

	kept := make([]domain.FragmentMatch, 0, len(matches))
	for _, m := range matches {
		if m.Similarity < u.minSimilarity {
			continue
		}
		kept = append(kept, m)
	}

	u.logger.Debug("retrieval finished",
		slog.String("provider", input.Provider),
		slog.Int("candidates", len(matches)),
		slog.Int("kept", len(kept)))

	return &RetrieveFragmentsOutput{Result: domain.RetrievalResult{Matches: kept}}, nil
}
