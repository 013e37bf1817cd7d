package domain

import "context"

// FragmentRepository is the capability interface over the vector index.
// It exposes similarity directly (not the index's native distance metric),
// so the core never depends on how the backing store measures distance.
type FragmentRepository interface {
	// Search returns up to limit fragments for the provider, ranked by
	// descending similarity. Infrastructure failures wrap
	// ErrIndexUnavailable; zero rows is a normal result.
	Search(ctx context.Context, queryVector []float32, provider string, limit int) ([]FragmentMatch, error)

	// DistinctProviders lists the provider tags present in the index.
	DistinctProviders(ctx context.Context) ([]string, error)

	// CountFragments returns the total number of indexed fragments.
	CountFragments(ctx context.Context) (int64, error)

	// BulkInsertFragments inserts fragments produced by the loader.
	BulkInsertFragments(ctx context.Context, fragments []PolicyFragment) error

	// DeleteByPolicyID removes all fragments of one policy so a reload
	// stays idempotent.
	DeleteByPolicyID(ctx context.Context, provider, policyID string) error
}

// FeedbackRepository persists user feedback on answers.
type FeedbackRepository interface {
	Insert(ctx context.Context, fb *Feedback) error
}

// TransactionManager defines the interface for handling database transactions.
type TransactionManager interface {
	// RunInTx executes the given function within a transaction.
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}
