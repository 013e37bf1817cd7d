package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"policy-rag/internal/domain"
)

// AnswerQuestionInput is one incoming question plus its provider tag.
type AnswerQuestionInput struct {
	Question string
	Provider string
}

// AnswerQuestionOutput is the normalized pipeline result. Rejected marks a
// validation rejection, which is a normal response (confidence 0, no
// sources), never a server error.
type AnswerQuestionOutput struct {
	Answer   domain.Answer
	Rejected bool
	Reason   string
}

// AnswerQuestionUsecase runs the full pipeline: validate, retrieve, build
// the prompt, generate, score, assemble. Validation rejections and empty
// retrievals resolve into normal responses; only infrastructure failures
// (domain.ErrIndexUnavailable, *domain.GenerationError) surface as errors.
type AnswerQuestionUsecase interface {
	Execute(ctx context.Context, input AnswerQuestionInput) (*AnswerQuestionOutput, error)
	KnownProviders(ctx context.Context) ([]string, error)
}

type answerQuestionUsecase struct {
	validator     *QuestionValidator
	retrieve      RetrieveFragmentsUsecase
	promptBuilder PromptBuilder
	llmClient     domain.LLMClient
	scorer        *ConfidenceScorer
	fragmentRepo  domain.FragmentRepository
	cache         *expirable.LRU[string, domain.Answer]
	maxTokens     int
	lowThreshold  float64
	logger        *slog.Logger
}

// NewAnswerQuestionUsecase wires together the pipeline components. cache
// may be nil to disable answer caching.
func NewAnswerQuestionUsecase(
	validator *QuestionValidator,
	retrieve RetrieveFragmentsUsecase,
	promptBuilder PromptBuilder,
	llmClient domain.LLMClient,
	scorer *ConfidenceScorer,
	fragmentRepo domain.FragmentRepository,
	cache *expirable.LRU[string, domain.Answer],
	maxTokens int,
	lowThreshold float64,
	logger *slog.Logger,
) AnswerQuestionUsecase {
	return &answerQuestionUsecase{
		validator:     validator,
		retrieve:      retrieve,
		promptBuilder: promptBuilder,
		llmClient:     llmClient,
		scorer:        scorer,
		fragmentRepo:  fragmentRepo,
		cache:         cache,
		maxTokens:     maxTokens,
		lowThreshold:  lowThreshold,
		logger:        logger,
	}
}

func (u *answerQuestionUsecase) KnownProviders(ctx context.Context) ([]string, error) {
	providers, err := u.fragmentRepo.DistinctProviders(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list providers: %w", err)
	}
	return providers, nil
}

func (u *answerQuestionUsecase) Execute(ctx context.Context, input AnswerQuestionInput) (*AnswerQuestionOutput, error) {
	// The gates are pure, so rejections resolve before any index access
	// and still come back as normal responses while the index is down.
	outcome := u.validator.Validate(input.Question, input.Provider)
	if !outcome.Valid {
		u.logger.Info("question rejected",
			slog.String("reason", outcome.Reason),
			slog.String("provider", outcome.Provider))
		return &AnswerQuestionOutput{
			Answer:   rejectionAnswer(outcome),
			Rejected: true,
			Reason:   outcome.Reason,
		}, nil
	}

	known, err := u.KnownProviders(ctx)
	if err != nil {
		return nil, err
	}
	provider := u.validator.ResolveProvider(input.Provider, known)

	cacheKey := provider + "\x00" + outcome.Question
	if u.cache != nil {
		if cached, ok := u.cache.Get(cacheKey); ok {
			cached.Cached = true
			return &AnswerQuestionOutput{Answer: cached}, nil
		}
	}

	retrieved, err := u.retrieve.Execute(ctx, RetrieveFragmentsInput{
		Question: outcome.Question,
		Provider: provider,
	})
	if err != nil {
		return nil, err
	}

	result := retrieved.Result
	if result.Empty() {
		// A normal outcome, not an error: nothing relevant is on file.
		answer := AssembleAnswer(
			fmt.Sprintf("I couldn't find relevant %s policies for your question. Please try rephrasing or contact %s directly for clarification.", provider, provider),
			result, 0, provider, u.lowThreshold,
		)
		return &AnswerQuestionOutput{Answer: answer}, nil
	}

	prompt, err := u.promptBuilder.Build(PromptInput{
		Question: outcome.Question,
		Provider: provider,
		Result:   result,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build prompt: %w", err)
	}

	resp, err := u.llmClient.Generate(ctx, prompt, u.maxTokens)
	if err != nil {
		return nil, &domain.GenerationError{Err: err}
	}
	if resp == nil || strings.TrimSpace(resp.Text) == "" {
		return nil, &domain.GenerationError{Err: fmt.Errorf("empty llm response")}
	}

	text := strings.TrimSpace(resp.Text)
	confidence := u.scorer.Score(text, result)
	answer := AssembleAnswer(text, result, confidence, provider, u.lowThreshold)

	u.logger.Info("answer generated",
		slog.String("provider", provider),
		slog.Int("sources", len(answer.Sources)),
		slog.Float64("confidence", confidence),
		slog.String("model", u.llmClient.Version()))

	if u.cache != nil {
		u.cache.Add(cacheKey, answer)
	}
	return &AnswerQuestionOutput{Answer: answer}, nil
}

// rejectionAnswer converts a validation rejection into a normal response
// with confidence 0 and empty sources.
func rejectionAnswer(outcome ValidationOutcome) domain.Answer {
	var text string
	switch outcome.Reason {
	case RejectReasonTooShort:
		text = "Question too short (minimum 5 characters). Please provide more details."
	case RejectReasonTooLong:
		text = "Question too long (maximum 500 characters). Please rephrase your question more concisely."
	default:
		text = fmt.Sprintf("I can only answer questions about %s insurance policies and medical coverage. Please ask about procedures, coverage criteria, or claim denials.", outcome.Provider)
	}
	return domain.Answer{
		Text:       text,
		Sources:    []domain.Citation{},
		Confidence: 0,
		Provider:   outcome.Provider,
	}
}
