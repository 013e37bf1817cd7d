package usecase

import (
	"strings"

	"policy-rag/internal/domain"
)

// Signal weights of the confidence heuristic. The sum is clamped to [0,1];
// the result is advisory, not a calibrated probability.
const (
	similarityWeight  = 0.30
	utilizationWeight = 0.20
	citationBonus     = 0.25
	hedgePenalty      = 0.25
)

// ConfidenceScorer estimates answer reliability from retrieval similarity,
// answer/context length ratio, and the presence of citation or hedging
// language. Stateless and side-effect free.
type ConfidenceScorer struct {
	citationPhrases []string // lowercase
	hedgePhrases    []string // lowercase
}

// NewConfidenceScorer creates a scorer over the given phrase vocabularies.
func NewConfidenceScorer(citationPhrases, hedgePhrases []string) *ConfidenceScorer {
	return &ConfidenceScorer{
		citationPhrases: lowerAll(citationPhrases),
		hedgePhrases:    lowerAll(hedgePhrases),
	}
}

// Score computes the weighted sum of the four signals and clamps it to
// [0,1]. An empty retrieval drives the similarity term to 0 but the other
// signals still apply, so the result is low rather than forced to zero.
func (s *ConfidenceScorer) Score(answer string, result domain.RetrievalResult) float64 {
	score := similarityWeight * result.MeanSimilarity()

	contextLen := result.ContextLength()
	if contextLen < 1 {
		contextLen = 1
	}
	utilization := float64(len(answer)) / float64(contextLen)
	if utilization > 1 {
		utilization = 1
	}
	score += utilizationWeight * utilization

	lowered := strings.ToLower(answer)
	if containsAny(lowered, s.citationPhrases) {
		score += citationBonus
	}
	if containsAny(lowered, s.hedgePhrases) {
		score -= hedgePenalty
	}

	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

func containsAny(text string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(text, p) {
			return true
		}
	}
	return false
}

func lowerAll(phrases []string) []string {
	lowered := make([]string, len(phrases))
	for i, p := range phrases {
		lowered[i] = strings.ToLower(p)
	}
	return lowered
}
