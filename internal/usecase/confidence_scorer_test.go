package usecase_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"policy-rag/internal/domain"
	"policy-rag/internal/usecase"
)

func newTestScorer() *usecase.ConfidenceScorer {
	return usecase.NewConfidenceScorer(
		[]string{"according to", "policy", "states", "requires"},
		[]string{"might", "possibly", "unclear", "not sure", "don't have enough"},
	)
}

func resultWithSimilarities(sims ...float32) domain.RetrievalResult {
	matches := make([]domain.FragmentMatch, len(sims))
	for i, s := range sims {
		matches[i] = domain.FragmentMatch{
			Fragment:   domain.PolicyFragment{Content: strings.Repeat("x", 100)},
			Similarity: s,
		}
	}
	return domain.RetrievalResult{Matches: matches}
}

func TestScore_SimilarityTermOnly(t *testing.T) {
	scorer := newTestScorer()
	result := resultWithSimilarities(0.9, 0.85, 0.8)

	// Empty answer: zero utilization, no citation, no hedge.
	score := scorer.Score("", result)

	assert.InDelta(t, 0.30*0.85, score, 1e-9)
}

func TestScore_CitationBonus(t *testing.T) {
	scorer := newTestScorer()
	result := resultWithSimilarities(0.8)

	neutral := scorer.Score("Coverage is limited to adults.", result)
	cited := scorer.Score("According to the carrier, coverage is limited to adults.", result)

	assert.InDelta(t, 0.25, cited-neutral, 1e-9)
}

func TestScore_HedgePenaltyClampsToZero(t *testing.T) {
	scorer := newTestScorer()

	// No retrieval: similarity 0, utilization capped at 1 gives 0.20,
	// hedge takes 0.25, so the raw sum is negative.
	score := scorer.Score("It might be", domain.RetrievalResult{})

	assert.Equal(t, 0.0, score)
}

func TestScore_UtilizationIsCapped(t *testing.T) {
	scorer := newTestScorer()
	result := resultWithSimilarities(0.0)

	short := scorer.Score(strings.Repeat("a", 100), result)
	long := scorer.Score(strings.Repeat("a", 10000), result)

	assert.InDelta(t, 0.20, short, 1e-9)
	assert.Equal(t, short, long)
}

func TestScore_StaysInBounds(t *testing.T) {
	scorer := newTestScorer()
	result := resultWithSimilarities(1.0, 1.0, 1.0)

	answer := "According to the policy, it states and requires " + strings.Repeat("coverage ", 200)
	score := scorer.Score(answer, result)

	assert.GreaterOrEqual(t, score, 0.0)
	assert.LessOrEqual(t, score, 1.0)
}
