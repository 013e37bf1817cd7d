package usecase

import (
	"fmt"
	"strings"

	"policy-rag/internal/domain"
)

// PromptInput contains the pieces that feed into the prompt builder.
type PromptInput struct {
	Question string
	Provider string
	Result   domain.RetrievalResult
}

// PromptBuilder renders the grounding prompt sent to the LLM. Always
// produces a prompt, never an answer: with an empty retrieval the context
// section is empty and the instructions direct the model to say that no
// matching policy was found.
type PromptBuilder interface {
	Build(input PromptInput) (string, error)
}

// PolicyPromptBuilder renders a deterministic text template with the
// retrieved excerpts in rank order followed by fixed role instructions.
type PolicyPromptBuilder struct {
	additionalInstructions []string
}

// NewPolicyPromptBuilder creates a prompt builder with optional extra
// instructions appended after the fixed set.
func NewPolicyPromptBuilder(additionalInstructions ...string) PromptBuilder {
	return &PolicyPromptBuilder{
		additionalInstructions: additionalInstructions,
	}
}

// Build renders the grounding prompt.
func (b *PolicyPromptBuilder) Build(input PromptInput) (string, error) {
	if strings.TrimSpace(input.Question) == "" {
		return "", fmt.Errorf("question is required")
	}
	if strings.TrimSpace(input.Provider) == "" {
		return "", fmt.Errorf("provider is required")
	}

	var sb strings.Builder
	sb.WriteString("You are an expert medical billing assistant specializing in insurance policies.\n\n")

	sb.WriteString(fmt.Sprintf("Context from %s policies:\n", input.Provider))
	for i, m := range input.Result.Matches {
		sb.WriteString(fmt.Sprintf("\nPolicy Excerpt %d: %s (%s)\n", i+1, m.Fragment.Title, m.Fragment.SourceURL))
		sb.WriteString(m.Fragment.Content)
		sb.WriteString("\n---\n")
	}
	if input.Result.Empty() {
		sb.WriteString("(no policy excerpts were retrieved)\n")
	}

	sb.WriteString("\nDoctor's question: ")
	sb.WriteString(input.Question)
	sb.WriteString("\n\nInstructions:\n")

	instructions := []string{
		"Answer ONLY based on the provided policy excerpts.",
		"Cite the title of the policy you are drawing from.",
		fmt.Sprintf("If the excerpts do not contain the answer, say that the provided %s policies do not answer this question.", input.Provider),
		fmt.Sprintf("If no policy excerpts are provided above, state that no matching %s policy was found.", input.Provider),
		"When a policy lists multiple criteria, enumerate each criterion explicitly.",
		"Keep the answer concise and actionable.",
	}
	for i, inst := range append(instructions, b.additionalInstructions...) {
		sb.WriteString(fmt.Sprintf("%d. %s\n", i+1, inst))
	}

	sb.WriteString("\nAnswer:")
	return sb.String(), nil
}
