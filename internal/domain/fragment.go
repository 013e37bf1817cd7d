package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
)

// PolicyFragment is one indexed chunk of a policy document, the retrieval
// unit of the vector index.
type PolicyFragment struct {
	ID        uuid.UUID
	PolicyID  string
	Title     string
	SourceURL string
	Provider  string
	Ordinal   int
	Content   string
	Embedding pgvector.Vector
	CreatedAt time.Time
}

// FragmentMatch pairs a retrieved fragment with its cosine similarity to
// the query, already converted from the index's distance metric.
type FragmentMatch struct {
	Fragment   PolicyFragment
	Similarity float32
}

// RetrievalResult holds the ranked matches for one question. An empty
// result is a normal outcome, not an error.
type RetrievalResult struct {
	Matches []FragmentMatch
}

// Empty reports whether retrieval found nothing above the floor.
func (r RetrievalResult) Empty() bool {
	return len(r.Matches) == 0
}

// MeanSimilarity is the arithmetic mean over all matches, 0 when empty.
func (r RetrievalResult) MeanSimilarity() float64 {
	if len(r.Matches) == 0 {
		return 0
	}
	var sum float64
	for _, m := range r.Matches {
		sum += float64(m.Similarity)
	}
	return sum / float64(len(r.Matches))
}

// ContextLength is the total content length across matches, used to gauge
// how much of the retrieved context the answer drew on.
func (r RetrievalResult) ContextLength() int {
	var total int
	for _, m := range r.Matches {
		total += len(m.Fragment.Content)
	}
	return total
}

// Citation points the reader back at the policy a statement came from.
type Citation struct {
	PolicyID string
	Title    string
	URL      string
	Excerpt  string
}

// Answer is the assembled response to one question.
type Answer struct {
	Text       string
	Sources    []Citation
	Confidence float64
	Provider   string
	Warning    string
	Cached     bool
}

// Feedback is a user's rating of an answer they received.
type Feedback struct {
	ID        uuid.UUID
	Question  string
	Answer    string
	Rating    int
	Comment   string
	CreatedAt time.Time
}
