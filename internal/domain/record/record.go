// Package record defines the unified search result model shared by both
// literature sources: PubMed papers, ClinicalTrials.gov registrations, and
// merged paper/trial pairs.
package record

import "fmt"

// Kind discriminates the three result variants.
type Kind string

const (
	// KindPaper is a standalone PubMed article.
	KindPaper Kind = "pm"
	// KindTrial is a standalone ClinicalTrials.gov registration.
	KindTrial Kind = "ctg"
	// KindMerged is a paper/trial pair referring to the same study.
	KindMerged Kind = "merged"
)

// Classification is the canonical taxonomy derived from per-source metadata.
// Computed once per record and reused by statistics and filtering so both
// paths see identical semantics.
type Classification struct {
	SourceType         Kind   `json:"source_type"`
	StudyType          string `json:"study_type"`
	Phase              string `json:"phase,omitempty"`
	DesignAllocation   string `json:"design_allocation,omitempty"`
	ObservationalModel string `json:"observational_model,omitempty"`
	// Year is 0 when absent or unparseable.
	Year int `json:"year,omitempty"`
}

// Paper is a PubMed article.
type Paper struct {
	PMID         string            `json:"pmid"`
	PMCID        string            `json:"pmcid,omitempty"`
	Title        string            `json:"title"`
	Journal      string            `json:"journal,omitempty"`
	Authors      []string          `json:"authors,omitempty"`
	PubDate      string            `json:"pub_date,omitempty"`
	PubYear      int               `json:"pub_year,omitempty"`
	Abstract     map[string]string `json:"abstract,omitempty"`
	DOI          string            `json:"doi,omitempty"`
	MeshHeadings []string          `json:"mesh_headings,omitempty"`
	Keywords     []string          `json:"keywords,omitempty"`
	// RefNCTIDs are trial registry numbers referenced by this paper
	// (DataBank accession numbers in the PubMed record).
	RefNCTIDs []string `json:"ref_nctids,omitempty"`

	StudyType        string `json:"study_type,omitempty"`
	Phase            string `json:"phase,omitempty"`
	DesignAllocation string `json:"design_allocation,omitempty"`

	// Score is nil when no query was given to the reranker.
	Score *float64 `json:"bm25_score,omitempty"`
}

// Trial is a ClinicalTrials.gov registration.
type Trial struct {
	NCTID         string   `json:"nctid"`
	Title         string   `json:"title"`
	OfficialTitle string   `json:"official_title,omitempty"`
	Status        string   `json:"status,omitempty"`
	BriefSummary  string   `json:"brief_summary,omitempty"`
	Phase         string   `json:"phase,omitempty"`
	Sponsor       string   `json:"sponsor,omitempty"`
	Enrollment    int      `json:"enrollment,omitempty"`
	Countries     []string `json:"countries,omitempty"`
	Conditions    []string `json:"conditions,omitempty"`
	// PMIDs are papers referenced by this trial's references module.
	PMIDs []string `json:"pmids,omitempty"`

	StudyType          string `json:"study_type,omitempty"`
	DesignAllocation   string `json:"design_allocation,omitempty"`
	ObservationalModel string `json:"observational_model,omitempty"`

	CompletionDate        string `json:"completion_date,omitempty"`
	PrimaryCompletionDate string `json:"primary_completion_date,omitempty"`
	StartDate             string `json:"start_date,omitempty"`

	Score float64 `json:"bm25_score"`
}

// Item is one unified search hit. Exactly one of the three shapes holds:
// Kind=pm with Paper set, Kind=ctg with Trial set, or Kind=merged with both.
type Item struct {
	Kind  Kind           `json:"type"`
	Paper *Paper         `json:"paper,omitempty"`
	Trial *Trial         `json:"trial,omitempty"`
	Class Classification `json:"classification"`
	// Score is the final ranking score. For merged items it is
	// max(paper, trial) plus the merge bonus; nil paper scores count as 0.
	Score float64 `json:"score"`
}

// ID returns the unique key of the item: pmid, nctid, or "pmid|nctid".
func (it Item) ID() string {
	switch it.Kind {
	case KindPaper:
		return it.Paper.PMID
	case KindTrial:
		return it.Trial.NCTID
	case KindMerged:
		return fmt.Sprintf("%s|%s", it.Paper.PMID, it.Trial.NCTID)
	}
	return ""
}

// Title returns the display title, preferring the trial title for merged items.
func (it Item) Title() string {
	if it.Trial != nil && it.Trial.Title != "" {
		return it.Trial.Title
	}
	if it.Paper != nil {
		return it.Paper.Title
	}
	return ""
}
