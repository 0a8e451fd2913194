// Package provider holds the shared upstream client base and the request
// and response types common to both literature sources.
package provider

import "github.com/medfuse/medfuse/internal/domain/record"

// Query is a normalized upstream search request.
type Query struct {
	Term      string
	PageSize  int
	PageToken string
	// YearFrom/YearTo bound the publication date window when supported
	// by the source. Zero means unbounded.
	YearFrom int
	YearTo   int
}

// Papers is the PubMed search result: reranked papers plus the query the
// source actually executed.
type Papers struct {
	Papers       []record.Paper
	Total        int
	AppliedQuery string
}

// Trials is the ClinicalTrials.gov search result.
type Trials struct {
	Trials        []record.Trial
	Total         int
	NextPageToken string
	AppliedQuery  string
}
