package classify

import "github.com/medfuse/medfuse/internal/domain/record"

// FilterStats aggregates classification counts per dimension over a result
// set. Returned with search and refine responses for facet display.
type FilterStats struct {
	Total               int            `json:"total"`
	SourceTypes         map[string]int `json:"source_types"`
	StudyTypes          map[string]int `json:"study_types"`
	Phases              map[string]int `json:"phases"`
	Allocations         map[string]int `json:"allocations"`
	ObservationalModels map[string]int `json:"observational_models"`
	Years               map[int]int    `json:"years"`
}

// Stats computes aggregate classification counts from already-classified
// items. Phase/allocation buckets only count interventional studies and the
// observational model bucket only observational ones, mirroring Matches.
func Stats(items []record.Item) FilterStats {
	s := FilterStats{
		SourceTypes:         make(map[string]int),
		StudyTypes:          make(map[string]int),
		Phases:              make(map[string]int),
		Allocations:         make(map[string]int),
		ObservationalModels: make(map[string]int),
		Years:               make(map[int]int),
	}
	for _, it := range items {
		c := it.Class
		s.Total++
		s.SourceTypes[string(c.SourceType)]++
		s.StudyTypes[c.StudyType]++
		if c.StudyType == Interventional {
			s.Phases[bucket(c.Phase)]++
			s.Allocations[bucket(c.DesignAllocation)]++
		}
		if c.StudyType == Observational {
			s.ObservationalModels[bucket(c.ObservationalModel)]++
		}
		if c.Year != 0 {
			s.Years[c.Year]++
		}
	}
	return s
}

func bucket(v string) string {
	if v == "" {
		return NA
	}
	return v
}
