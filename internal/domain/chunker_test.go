package domain_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"policy-rag/internal/domain"
)

func TestChunk_ShortBodyIsOneFragment(t *testing.T) {
	chunker := domain.NewChunker()

	chunks, err := chunker.Chunk("Bariatric surgery requires a BMI over 40, or over 35 with documented comorbidities.")

	assert.NoError(t, err)
	assert.Len(t, chunks, 1)
	assert.Equal(t, 0, chunks[0].Ordinal)
}

func TestChunk_PacksParagraphsUpToLimit(t *testing.T) {
	chunker := domain.NewChunker()
	para := strings.Repeat("Criteria apply. ", 20) // ~320 chars

	chunks, err := chunker.Chunk(para + "\n\n" + para)

	assert.NoError(t, err)
	assert.Len(t, chunks, 1)
	assert.LessOrEqual(t, len(chunks[0].Content), domain.MaxFragmentLength)
}

func TestChunk_SplitsOversizedParagraphWithOverlap(t *testing.T) {
	chunker := domain.NewChunker()
	sentence := "The member must meet documented clinical criteria before approval is granted for this procedure. "
	body := strings.TrimSpace(strings.Repeat(sentence, 20)) // ~2000 chars, one paragraph

	chunks, err := chunker.Chunk(body)

	assert.NoError(t, err)
	assert.GreaterOrEqual(t, len(chunks), 2)
	for _, c := range chunks {
		assert.LessOrEqual(t, len(c.Content), domain.MaxFragmentLength)
	}
	// The second window starts with text carried over from the first.
	head := chunks[1].Content[:40]
	assert.Contains(t, chunks[0].Content, head)
}

func TestChunk_MergesTrailingSliver(t *testing.T) {
	chunker := domain.NewChunker()
	big := strings.Repeat("x", domain.MaxFragmentLength-10)
	small := strings.Repeat("y", domain.MinFragmentLength-10)

	chunks, err := chunker.Chunk(big + "\n\n" + small)

	assert.NoError(t, err)
	assert.Len(t, chunks, 1)
	assert.Contains(t, chunks[0].Content, small)
}

func TestChunk_OrdinalsAreSequential(t *testing.T) {
	chunker := domain.NewChunker()
	para := strings.Repeat("Coverage criteria are listed below. ", 20)
	body := para + "\n\n" + para + "\n\n" + para + "\n\n" + para

	chunks, err := chunker.Chunk(body)

	assert.NoError(t, err)
	for i, c := range chunks {
		assert.Equal(t, i, c.Ordinal)
	}
}

func TestChunk_NormalizesWindowsLineEndings(t *testing.T) {
	chunker := domain.NewChunker()

	chunks, err := chunker.Chunk("First paragraph about coverage.\r\n\r\nSecond paragraph about claims.")

	assert.NoError(t, err)
	assert.Len(t, chunks, 1)
	assert.NotContains(t, chunks[0].Content, "\r")
}
