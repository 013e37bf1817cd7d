package usecase

import (
	"html"
	"regexp"
	"strings"
)

// Rejection reasons returned inside ValidationOutcome.
const (
	RejectReasonTooShort = "too short"
	RejectReasonTooLong  = "too long"
	RejectReasonOffTopic = "non-medical question"
)

// ValidationOutcome is the result of gating one raw question. When Valid is
// false, Reason explains the rejection; Question and Provider are the
// normalized values either way.
type ValidationOutcome struct {
	Valid    bool
	Question string
	Provider string
	Reason   string
}

var whitespaceRun = regexp.MustCompile(`\s+`)

// QuestionValidator gates raw input before any retrieval happens. The
// keyword gate is a fixed-vocabulary substring match, deliberately biased
// towards precision: domain questions that avoid these exact tokens are
// rejected too. Tune the list through configuration, not code.
type QuestionValidator struct {
	minLength       int
	maxLength       int
	keywords        []string // lowercase
	defaultProvider string
}

// NewQuestionValidator creates a validator with the given length bounds,
// topical keywords, and fallback provider tag.
func NewQuestionValidator(minLength, maxLength int, keywords []string, defaultProvider string) *QuestionValidator {
	lowered := make([]string, len(keywords))
	for i, kw := range keywords {
		lowered[i] = strings.ToLower(kw)
	}
	return &QuestionValidator{
		minLength:       minLength,
		maxLength:       maxLength,
		keywords:        lowered,
		defaultProvider: strings.ToUpper(defaultProvider),
	}
}

// Validate normalizes and gates one question. Pure function of its inputs:
// no index access happens here, so rejections resolve even when the index
// is down. The provider tag is only uppercased; resolution against the
// known-provider set is ResolveProvider's job and runs after the gates.
func (v *QuestionValidator) Validate(rawQuestion, rawProvider string) ValidationOutcome {
	question := strings.TrimSpace(rawQuestion)
	question = whitespaceRun.ReplaceAllString(question, " ")

	provider := strings.ToUpper(strings.TrimSpace(rawProvider))
	if provider == "" {
		provider = v.defaultProvider
	}

	if len(question) < v.minLength {
		return ValidationOutcome{Question: question, Provider: provider, Reason: RejectReasonTooShort}
	}
	if len(question) > v.maxLength {
		return ValidationOutcome{Question: question, Provider: provider, Reason: RejectReasonTooLong}
	}

	// Neutralize markup before the text reaches any downstream renderer.
	// Escaping never changes keyword matching: the vocabulary carries no
	// markup-significant characters.
	question = html.EscapeString(question)

	if !v.isOnTopic(question) {
		return ValidationOutcome{Question: question, Provider: provider, Reason: RejectReasonOffTopic}
	}

	return ValidationOutcome{Valid: true, Question: question, Provider: provider}
}

func (v *QuestionValidator) isOnTopic(question string) bool {
	lowered := strings.ToLower(question)
	for _, kw := range v.keywords {
		if strings.Contains(lowered, kw) {
			return true
		}
	}
	return false
}

// ResolveProvider matches the raw tag against the provider tags currently
// present in the index, case-insensitively. An unknown tag falls back to
// the default provider instead of failing the request.
func (v *QuestionValidator) ResolveProvider(raw string, known []string) string {
	tag := strings.ToUpper(strings.TrimSpace(raw))
	if tag == "" {
		return v.defaultProvider
	}
	for _, k := range known {
		if strings.ToUpper(k) == tag {
			return tag
		}
	}
	return v.defaultProvider
}
