package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"golang.org/x/time/rate"

	"policy-rag/internal/domain"
)

// PolicyDocument is one scraped policy as produced by the acquisition
// pipeline: a JSON object with identifier, provenance, and body text.
type PolicyDocument struct {
	PolicyID string            `json:"policy_id"`
	Title    string            `json:"title"`
	URL      string            `json:"url"`
	Content  string            `json:"content"`
	Sections map[string]string `json:"sections"`
}

// IngestPoliciesInput carries the policies of one provider.
type IngestPoliciesInput struct {
	Provider string
	Policies []PolicyDocument
}

// IngestPoliciesOutput reports what was indexed.
type IngestPoliciesOutput struct {
	PolicyCount   int
	FragmentCount int
}

// IngestPoliciesUsecase chunks, embeds, and stores policy documents.
// Reloading the same policy replaces its fragments, so ingestion stays
// idempotent.
type IngestPoliciesUsecase interface {
	Execute(ctx context.Context, input IngestPoliciesInput) (*IngestPoliciesOutput, error)
}

type ingestPoliciesUsecase struct {
	fragmentRepo domain.FragmentRepository
	txManager    domain.TransactionManager
	chunker      domain.Chunker
	encoder      domain.VectorEncoder
	limiter      *rate.Limiter
	batchSize    int
	logger       *slog.Logger
}

// NewIngestPoliciesUsecase creates the ingestion pipeline. batchSize bounds
// how many chunks go to the embedding API per call; limiter throttles those
// calls and may be nil to disable throttling.
func NewIngestPoliciesUsecase(
	fragmentRepo domain.FragmentRepository,
	txManager domain.TransactionManager,
	chunker domain.Chunker,
	encoder domain.VectorEncoder,
	limiter *rate.Limiter,
	batchSize int,
	logger *slog.Logger,
) IngestPoliciesUsecase {
	if batchSize <= 0 {
		batchSize = 10
	}
	return &ingestPoliciesUsecase{
		fragmentRepo: fragmentRepo,
		txManager:    txManager,
		chunker:      chunker,
		encoder:      encoder,
		limiter:      limiter,
		batchSize:    batchSize,
		logger:       logger,
	}
}

func (u *ingestPoliciesUsecase) Execute(ctx context.Context, input IngestPoliciesInput) (*IngestPoliciesOutput, error) {
	provider := strings.ToUpper(strings.TrimSpace(input.Provider))
	if provider == "" {
		return nil, fmt.Errorf("provider is required")
	}

	out := &IngestPoliciesOutput{}
	for _, policy := range input.Policies {
		count, err := u.ingestPolicy(ctx, provider, policy)
		if err != nil {
			return nil, fmt.Errorf("failed to ingest policy %s: %w", policy.PolicyID, err)
		}
		out.PolicyCount++
		out.FragmentCount += count

		u.logger.Info("policy indexed",
			slog.String("provider", provider),
			slog.String("policy_id", policy.PolicyID),
			slog.Int("fragments", count))
	}
	return out, nil
}

func (u *ingestPoliciesUsecase) ingestPolicy(ctx context.Context, provider string, policy PolicyDocument) (int, error) {
	body := policyBody(policy)
	if strings.TrimSpace(body) == "" {
		return 0, fmt.Errorf("policy has no content")
	}

	chunks, err := u.chunker.Chunk(body)
	if err != nil {
		return 0, fmt.Errorf("failed to chunk policy: %w", err)
	}
	if len(chunks) == 0 {
		return 0, nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}
	embeddings, err := u.embedBatched(ctx, texts)
	if err != nil {
		return 0, err
	}

	now := time.Now().UTC()
	fragments := make([]domain.PolicyFragment, len(chunks))
	for i, c := range chunks {
		fragments[i] = domain.PolicyFragment{
			ID:        uuid.New(),
			PolicyID:  policy.PolicyID,
			Title:     policy.Title,
			SourceURL: policy.URL,
			Provider:  provider,
			Ordinal:   c.Ordinal,
			Content:   c.Content,
			Embedding: pgvector.NewVector(embeddings[i]),
			CreatedAt: now,
		}
	}

	// Replace-then-insert inside one transaction keeps reloads idempotent.
	err = u.txManager.RunInTx(ctx, func(ctx context.Context) error {
		if err := u.fragmentRepo.DeleteByPolicyID(ctx, provider, policy.PolicyID); err != nil {
			return err
		}
		return u.fragmentRepo.BulkInsertFragments(ctx, fragments)
	})
	if err != nil {
		return 0, err
	}
	return len(fragments), nil
}

func (u *ingestPoliciesUsecase) embedBatched(ctx context.Context, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, 0, len(texts))
	for i := 0; i < len(texts); i += u.batchSize {
		end := i + u.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		if u.limiter != nil {
			if err := u.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}
		batch, err := u.encoder.Encode(ctx, texts[i:end])
		if err != nil {
			return nil, fmt.Errorf("failed to embed fragments: %w", err)
		}
		embeddings = append(embeddings, batch...)
	}
	if len(embeddings) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(embeddings))
	}
	return embeddings, nil
}

// policyBody joins the main content with any titled sections, sections in
// stable name order so ingestion output is deterministic.
func policyBody(policy PolicyDocument) string {
	if len(policy.Sections) == 0 {
		return policy.Content
	}

	names := make([]string, 0, len(policy.Sections))
	for name, text := range policy.Sections {
		if strings.TrimSpace(text) != "" {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	var sb strings.Builder
	sb.WriteString(policy.Content)
	for _, name := range names {
		sb.WriteString("\n\n")
		sb.WriteString(strings.ToUpper(name))
		sb.WriteString("\n")
		sb.WriteString(policy.Sections[name])
	}
	return sb.String()
}
