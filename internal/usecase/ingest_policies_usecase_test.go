package usecase_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"policy-rag/internal/domain"
	"policy-rag/internal/usecase"
)

// txManagerStub runs the function directly, no transaction semantics.
type txManagerStub struct{}

func (txManagerStub) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func TestIngestPolicies_ChunksEmbedsAndStores(t *testing.T) {
	repo := new(mockFragmentRepository)
	encoder := new(mockVectorEncoder)
	uc := usecase.NewIngestPoliciesUsecase(repo, txManagerStub{}, domain.NewChunker(), encoder, nil, 10, discardLogger())

	encoder.On("Encode", mock.Anything, mock.Anything).Return([][]float32{{0.1, 0.2}}, nil)
	repo.On("DeleteByPolicyID", mock.Anything, "UHC", "pol-1").Return(nil)
	repo.On("BulkInsertFragments", mock.Anything, mock.MatchedBy(func(fragments []domain.PolicyFragment) bool {
		return len(fragments) == 1 &&
			fragments[0].Provider == "UHC" &&
			fragments[0].PolicyID == "pol-1" &&
			fragments[0].Ordinal == 0
	})).Return(nil)

	out, err := uc.Execute(context.Background(), usecase.IngestPoliciesInput{
		Provider: "uhc",
		Policies: []usecase.PolicyDocument{{
			PolicyID: "pol-1",
			Title:    "Bariatric Surgery",
			URL:      "https://x/1",
			Content:  "Bariatric surgery requires a BMI over 40, or over 35 with documented comorbidities.",
		}},
	})

	assert.NoError(t, err)
	assert.Equal(t, 1, out.PolicyCount)
	assert.Equal(t, 1, out.FragmentCount)
	repo.AssertExpectations(t)
}

func TestIngestPolicies_SectionsJoinTheBody(t *testing.T) {
	repo := new(mockFragmentRepository)
	encoder := new(mockVectorEncoder)
	uc := usecase.NewIngestPoliciesUsecase(repo, txManagerStub{}, domain.NewChunker(), encoder, nil, 10, discardLogger())

	var embedded []string
	encoder.On("Encode", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		embedded = args.Get(1).([]string)
	}).Return([][]float32{{0.1}}, nil)
	repo.On("DeleteByPolicyID", mock.Anything, "UHC", "pol-2").Return(nil)
	repo.On("BulkInsertFragments", mock.Anything, mock.Anything).Return(nil)

	_, err := uc.Execute(context.Background(), usecase.IngestPoliciesInput{
		Provider: "UHC",
		Policies: []usecase.PolicyDocument{{
			PolicyID: "pol-2",
			Title:    "MRI Imaging",
			Content:  "Imaging policies follow the criteria below.",
			Sections: map[string]string{"criteria": "Prior authorization is required for outpatient MRI."},
		}},
	})

	assert.NoError(t, err)
	assert.Len(t, embedded, 1)
	assert.Contains(t, embedded[0], "CRITERIA")
	assert.Contains(t, embedded[0], "Prior authorization is required")
}

func TestIngestPolicies_EmptyProviderFails(t *testing.T) {
	repo := new(mockFragmentRepository)
	encoder := new(mockVectorEncoder)
	uc := usecase.NewIngestPoliciesUsecase(repo, txManagerStub{}, domain.NewChunker(), encoder, nil, 10, discardLogger())

	_, err := uc.Execute(context.Background(), usecase.IngestPoliciesInput{Provider: "  "})

	assert.Error(t, err)
}

func TestIngestPolicies_EmptyContentFails(t *testing.T) {
	repo := new(mockFragmentRepository)
	encoder := new(mockVectorEncoder)
	uc := usecase.NewIngestPoliciesUsecase(repo, txManagerStub{}, domain.NewChunker(), encoder, nil, 10, discardLogger())

	_, err := uc.Execute(context.Background(), usecase.IngestPoliciesInput{
		Provider: "UHC",
		Policies: []usecase.PolicyDocument{{PolicyID: "pol-3", Content: "   "}},
	})

	assert.Error(t, err)
	encoder.AssertNotCalled(t, "Encode")
}
