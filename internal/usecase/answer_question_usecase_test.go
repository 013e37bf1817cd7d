package usecase_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"policy-rag/internal/domain"
	"policy-rag/internal/usecase"
)

type mockLLMClient struct {
	mock.Mock
}

func (m *mockLLMClient) Generate(ctx context.Context, prompt string, maxTokens int) (*domain.LLMResponse, error) {
	args := m.Called(ctx, prompt, maxTokens)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.LLMResponse), args.Error(1)
}

func (m *mockLLMClient) Version() string {
	return "mock-model"
}

type answerFixture struct {
	repo    *mockFragmentRepository
	encoder *mockVectorEncoder
	llm     *mockLLMClient
	cache   *expirable.LRU[string, domain.Answer]
	uc      usecase.AnswerQuestionUsecase
}

func newAnswerFixture(withCache bool) *answerFixture {
	repo := new(mockFragmentRepository)
	encoder := new(mockVectorEncoder)
	llm := new(mockLLMClient)

	var cache *expirable.LRU[string, domain.Answer]
	if withCache {
		cache = expirable.NewLRU[string, domain.Answer](16, nil, time.Minute)
	}

	retrieve := usecase.NewRetrieveFragmentsUsecase(repo, encoder, 5, 0.7, discardLogger())
	scorer := usecase.NewConfidenceScorer(
		[]string{"according to", "policy", "states", "requires"},
		[]string{"might", "possibly", "unclear", "not sure", "don't have enough"},
	)
	uc := usecase.NewAnswerQuestionUsecase(
		newTestValidator(),
		retrieve,
		usecase.NewPolicyPromptBuilder(),
		llm,
		scorer,
		repo,
		cache,
		500,
		0.5,
		discardLogger(),
	)

	return &answerFixture{repo: repo, encoder: encoder, llm: llm, cache: cache, uc: uc}
}

func strongMatches() []domain.FragmentMatch {
	content := strings.Repeat("BMI over 40, or over 35 with comorbidities, is required. ", 2)
	return []domain.FragmentMatch{
		{Fragment: domain.PolicyFragment{PolicyID: "p1", Title: "Bariatric Surgery", SourceURL: "https://x/1", Content: content}, Similarity: 0.9},
		{Fragment: domain.PolicyFragment{PolicyID: "p2", Title: "Obesity Treatment", SourceURL: "https://x/2", Content: content}, Similarity: 0.85},
		{Fragment: domain.PolicyFragment{PolicyID: "p3", Title: "Surgical Criteria", SourceURL: "https://x/3", Content: content}, Similarity: 0.8},
	}
}

func TestAnswerQuestion_Success(t *testing.T) {
	fx := newAnswerFixture(false)

	fx.repo.On("DistinctProviders", mock.Anything).Return([]string{"UHC", "AETNA"}, nil)
	fx.encoder.On("Encode", mock.Anything, mock.Anything).Return([][]float32{{0.1, 0.2}}, nil)
	fx.repo.On("Search", mock.Anything, mock.Anything, "UHC", 5).Return(strongMatches(), nil)
	fx.llm.On("Generate", mock.Anything, mock.Anything, 500).Return(&domain.LLMResponse{
		Text: "According to the Bariatric Surgery policy, a BMI over 40 is required for coverage.",
		Done: true,
	}, nil)

	out, err := fx.uc.Execute(context.Background(), usecase.AnswerQuestionInput{
		Question: "What BMI is required for bariatric surgery coverage?",
		Provider: "UHC",
	})

	assert.NoError(t, err)
	assert.False(t, out.Rejected)
	assert.Equal(t, "UHC", out.Answer.Provider)
	assert.Len(t, out.Answer.Sources, 3)
	assert.Equal(t, "p1", out.Answer.Sources[0].PolicyID)
	assert.Equal(t, "p2", out.Answer.Sources[1].PolicyID)
	assert.Equal(t, "p3", out.Answer.Sources[2].PolicyID)
	assert.Greater(t, out.Answer.Confidence, 0.5)
	assert.Empty(t, out.Answer.Warning)
	assert.False(t, out.Answer.Cached)
}

func TestAnswerQuestion_RejectionShortCircuits(t *testing.T) {
	fx := newAnswerFixture(false)

	out, err := fx.uc.Execute(context.Background(), usecase.AnswerQuestionInput{
		Question: "hi",
		Provider: "UHC",
	})

	assert.NoError(t, err)
	assert.True(t, out.Rejected)
	assert.Equal(t, usecase.RejectReasonTooShort, out.Reason)
	assert.Equal(t, 0.0, out.Answer.Confidence)
	assert.Empty(t, out.Answer.Sources)
	fx.repo.AssertNotCalled(t, "DistinctProviders")
	fx.encoder.AssertNotCalled(t, "Encode")
	fx.llm.AssertNotCalled(t, "Generate")
}

func TestAnswerQuestion_OffTopicRejection(t *testing.T) {
	fx := newAnswerFixture(false)

	out, err := fx.uc.Execute(context.Background(), usecase.AnswerQuestionInput{
		Question: "What is the capital of France?",
		Provider: "UHC",
	})

	assert.NoError(t, err)
	assert.True(t, out.Rejected)
	assert.Equal(t, usecase.RejectReasonOffTopic, out.Reason)
	assert.Contains(t, out.Answer.Text, "UHC insurance policies")
	fx.repo.AssertNotCalled(t, "DistinctProviders")
}

func TestAnswerQuestion_RejectionResolvesWithIndexDown(t *testing.T) {
	fx := newAnswerFixture(false)

	fx.repo.On("DistinctProviders", mock.Anything).Return(nil, domain.ErrIndexUnavailable)

	out, err := fx.uc.Execute(context.Background(), usecase.AnswerQuestionInput{
		Question: "hi",
		Provider: "UHC",
	})

	assert.NoError(t, err)
	assert.True(t, out.Rejected)
	assert.Equal(t, usecase.RejectReasonTooShort, out.Reason)
}

func TestAnswerQuestion_UnknownProviderFallsBack(t *testing.T) {
	fx := newAnswerFixture(false)

	fx.repo.On("DistinctProviders", mock.Anything).Return([]string{"UHC", "AETNA"}, nil)
	fx.encoder.On("Encode", mock.Anything, mock.Anything).Return([][]float32{{0.1}}, nil)
	fx.repo.On("Search", mock.Anything, mock.Anything, "UHC", 5).Return(strongMatches(), nil)
	fx.llm.On("Generate", mock.Anything, mock.Anything, 500).Return(&domain.LLMResponse{
		Text: "According to the policy, yes.", Done: true,
	}, nil)

	out, err := fx.uc.Execute(context.Background(), usecase.AnswerQuestionInput{
		Question: "Is bariatric surgery covered?",
		Provider: "CIGNA",
	})

	assert.NoError(t, err)
	assert.Equal(t, "UHC", out.Answer.Provider)
}

func TestAnswerQuestion_EmptyRetrievalIsNormalAnswer(t *testing.T) {
	fx := newAnswerFixture(false)

	fx.repo.On("DistinctProviders", mock.Anything).Return([]string{"UHC"}, nil)
	fx.encoder.On("Encode", mock.Anything, mock.Anything).Return([][]float32{{0.1}}, nil)
	fx.repo.On("Search", mock.Anything, mock.Anything, "UHC", 5).Return([]domain.FragmentMatch{
		{Fragment: domain.PolicyFragment{PolicyID: "p1"}, Similarity: 0.4},
	}, nil)

	out, err := fx.uc.Execute(context.Background(), usecase.AnswerQuestionInput{
		Question: "Is experimental gene therapy covered?",
		Provider: "UHC",
	})

	assert.NoError(t, err)
	assert.False(t, out.Rejected)
	assert.Contains(t, out.Answer.Text, "couldn't find relevant UHC policies")
	assert.Empty(t, out.Answer.Sources)
	assert.Equal(t, 0.0, out.Answer.Confidence)
	assert.Equal(t, usecase.LowConfidenceWarning, out.Answer.Warning)
	fx.llm.AssertNotCalled(t, "Generate")
}

func TestAnswerQuestion_GenerationFailure(t *testing.T) {
	fx := newAnswerFixture(false)

	fx.repo.On("DistinctProviders", mock.Anything).Return([]string{"UHC"}, nil)
	fx.encoder.On("Encode", mock.Anything, mock.Anything).Return([][]float32{{0.1}}, nil)
	fx.repo.On("Search", mock.Anything, mock.Anything, "UHC", 5).Return(strongMatches(), nil)
	fx.llm.On("Generate", mock.Anything, mock.Anything, 500).Return(nil, errors.New("gateway timeout"))

	_, err := fx.uc.Execute(context.Background(), usecase.AnswerQuestionInput{
		Question: "Is bariatric surgery covered?",
		Provider: "UHC",
	})

	assert.Error(t, err)
	var genErr *domain.GenerationError
	assert.ErrorAs(t, err, &genErr)
}

func TestAnswerQuestion_EmptyGenerationIsFailure(t *testing.T) {
	fx := newAnswerFixture(false)

	fx.repo.On("DistinctProviders", mock.Anything).Return([]string{"UHC"}, nil)
	fx.encoder.On("Encode", mock.Anything, mock.Anything).Return([][]float32{{0.1}}, nil)
	fx.repo.On("Search", mock.Anything, mock.Anything, "UHC", 5).Return(strongMatches(), nil)
	fx.llm.On("Generate", mock.Anything, mock.Anything, 500).Return(&domain.LLMResponse{Text: "   "}, nil)

	_, err := fx.uc.Execute(context.Background(), usecase.AnswerQuestionInput{
		Question: "Is bariatric surgery covered?",
		Provider: "UHC",
	})

	var genErr *domain.GenerationError
	assert.ErrorAs(t, err, &genErr)
}

func TestAnswerQuestion_IndexUnavailablePropagates(t *testing.T) {
	fx := newAnswerFixture(false)

	fx.repo.On("DistinctProviders", mock.Anything).Return(nil, domain.ErrIndexUnavailable)

	_, err := fx.uc.Execute(context.Background(), usecase.AnswerQuestionInput{
		Question: "Is bariatric surgery covered?",
		Provider: "UHC",
	})

	assert.ErrorIs(t, err, domain.ErrIndexUnavailable)
}

func TestAnswerQuestion_CacheHit(t *testing.T) {
	fx := newAnswerFixture(true)

	fx.repo.On("DistinctProviders", mock.Anything).Return([]string{"UHC"}, nil)
	fx.encoder.On("Encode", mock.Anything, mock.Anything).Return([][]float32{{0.1}}, nil)
	fx.repo.On("Search", mock.Anything, mock.Anything, "UHC", 5).Return(strongMatches(), nil)
	fx.llm.On("Generate", mock.Anything, mock.Anything, 500).Return(&domain.LLMResponse{
		Text: "According to the Bariatric Surgery policy, a BMI over 40 is required.",
		Done: true,
	}, nil)

	input := usecase.AnswerQuestionInput{
		Question: "What BMI is required for bariatric surgery coverage?",
		Provider: "UHC",
	}

	first, err := fx.uc.Execute(context.Background(), input)
	assert.NoError(t, err)
	assert.False(t, first.Answer.Cached)

	second, err := fx.uc.Execute(context.Background(), input)
	assert.NoError(t, err)
	assert.True(t, second.Answer.Cached)
	assert.Equal(t, first.Answer.Text, second.Answer.Text)
	fx.llm.AssertNumberOfCalls(t, "Generate", 1)
	fx.encoder.AssertNumberOfCalls(t, "Encode", 1)
}
