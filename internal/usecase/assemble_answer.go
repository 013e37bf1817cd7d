package usecase

import (
	"unicode/utf8"

	"policy-rag/internal/domain"
)

// LowConfidenceWarning is appended to answers scoring below the configured
// threshold.
const LowConfidenceWarning = "Low confidence in this answer. Please verify this information with the policy documents or contact the carrier directly."

const excerptLength = 200

// AssembleAnswer composes the final Answer from the generated text, the
// retrieval result, and the confidence score. Pure composition: citations
// preserve retrieval rank order, and the warning is set exactly when
// confidence falls below lowThreshold.
func AssembleAnswer(text string, result domain.RetrievalResult, confidence float64, provider string, lowThreshold float64) domain.Answer {
	sources := make([]domain.Citation, 0, len(result.Matches))
	for _, m := range result.Matches {
		sources = append(sources, domain.Citation{
			PolicyID: m.Fragment.PolicyID,
			Title:    m.Fragment.Title,
			URL:      m.Fragment.SourceURL,
			Excerpt:  excerpt(m.Fragment.Content),
		})
	}

	answer := domain.Answer{
		Text:       text,
		Sources:    sources,
		Confidence: confidence,
		Provider:   provider,
	}
	if confidence < lowThreshold {
		answer.Warning = LowConfidenceWarning
	}
	return answer
}

func excerpt(content string) string {
	if len(content) <= excerptLength {
		return content
	}
	cut := excerptLength
	for cut > 0 && !utf8.RuneStart(content[cut]) {
		cut--
	}
	return content[:cut] + "..."
}
