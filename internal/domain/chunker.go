package domain

import "strings"

const (
	// MinFragmentLength is the minimum fragment length in characters.
	// Shorter leftovers are merged into the preceding fragment.
	MinFragmentLength = 80
	// MaxFragmentLength is the maximum fragment length in characters,
	// roughly 250 words of policy text.
	MaxFragmentLength = 1000
	// FragmentOverlap is how many trailing characters of one oversized
	// window are repeated at the start of the next, so criteria lists
	// split mid-paragraph keep their surrounding context.
	FragmentOverlap = 200
)

// TextChunk is one piece of a policy document produced by the chunker.
type TextChunk struct {
	Ordinal int
	Content string
}

// Chunker splits policy text into fragments suitable for embedding.
type Chunker interface {
	Chunk(body string) ([]TextChunk, error)
	Version() string
}

type paragraphChunker struct{}

// NewChunker creates the default paragraph-based chunker.
func NewChunker() Chunker {
	return &paragraphChunker{}
}

func (c *paragraphChunker) Version() string {
	return "paragraph-v1"
}

// Chunk splits the body on blank lines, packs paragraphs into fragments up
// to MaxFragmentLength, and splits oversized paragraphs at sentence
// boundaries with FragmentOverlap characters of carried context.
func (c *paragraphChunker) Chunk(body string) ([]TextChunk, error) {
	normalized := strings.ReplaceAll(body, "\r\n", "\n")
	normalized = strings.ReplaceAll(normalized, "\r", "\n")

	var paragraphs []string
	for _, part := range strings.Split(normalized, "\n\n") {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			paragraphs = append(paragraphs, trimmed)
		}
	}

	var pieces []string
	var current strings.Builder
	flush := func() {
		if current.Len() > 0 {
			pieces = append(pieces, current.String())
			current.Reset()
		}
	}

	for _, para := range paragraphs {
		if len(para) > MaxFragmentLength {
			flush()
			pieces = append(pieces, splitLongParagraph(para)...)
			continue
		}
		if current.Len() > 0 && current.Len()+2+len(para) > MaxFragmentLength {
			flush()
		}
		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(para)
	}
	flush()

	// A trailing sliver carries too little context on its own.
	if n := len(pieces); n > 1 && len(pieces[n-1]) < MinFragmentLength {
		pieces[n-2] = pieces[n-2] + "\n\n" + pieces[n-1]
		pieces = pieces[:n-1]
	}

	chunks := make([]TextChunk, 0, len(pieces))
	for i, piece := range pieces {
		chunks = append(chunks, TextChunk{Ordinal: i, Content: piece})
	}
	return chunks, nil
}

// splitLongParagraph windows an oversized paragraph at sentence boundaries,
// repeating the tail of each window at the start of the next.
func splitLongParagraph(para string) []string {
	sentences := splitSentences(para)

	var windows []string
	var current strings.Builder
	for _, sentence := range sentences {
		if current.Len() > 0 && current.Len()+1+len(sentence) > MaxFragmentLength {
			window := current.String()
			windows = append(windows, window)
			current.Reset()
			current.WriteString(overlapTail(window))
		}
		if current.Len() > 0 {
			current.WriteString(" ")
		}
		current.WriteString(sentence)
	}
	if current.Len() > 0 {
		windows = append(windows, current.String())
	}
	return windows
}

// overlapTail returns the last FragmentOverlap characters of the window,
// trimmed forward to the next word boundary.
func overlapTail(window string) string {
	if len(window) <= FragmentOverlap {
		return window
	}
	tail := window[len(window)-FragmentOverlap:]
	if idx := strings.IndexByte(tail, ' '); idx >= 0 && idx+1 < len(tail) {
		tail = tail[idx+1:]
	}
	return tail
}

func splitSentences(text string) []string {
	var sentences []string
	start := 0
	for i := 0; i < len(text); i++ {
		ch := text[i]
		if ch != '.' && ch != '!' && ch != '?' {
			continue
		}
		// Sentence ends at punctuation followed by whitespace or EOF.
		if i+1 < len(text) && text[i+1] != ' ' && text[i+1] != '\n' {
			continue
		}
		sentence := strings.TrimSpace(text[start : i+1])
		if sentence != "" {
			sentences = append(sentences, sentence)
		}
		start = i + 1
	}
	if rest := strings.TrimSpace(text[start:]); rest != "" {
		sentences = append(sentences, rest)
	}
	return sentences
}
