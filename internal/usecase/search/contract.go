package search

import (
	"context"

	"github.com/medfuse/medfuse/internal/domain/record"
	"github.com/medfuse/medfuse/internal/provider"
)

// PaperSource is the PubMed provider contract.
type PaperSource interface {
	Search(ctx context.Context, q provider.Query) (provider.Papers, error)
	GetPaper(ctx context.Context, pmid string) (*record.Paper, error)
}

// TrialSource is the ClinicalTrials.gov provider contract.
type TrialSource interface {
	Search(ctx context.Context, q provider.Query) (provider.Trials, error)
	GetTrial(ctx context.Context, nctid string) (*record.Trial, error)
}
