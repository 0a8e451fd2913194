// Package validate checks deeply nested extracted JSON documents against an
// externally-defined field schema and enum dictionary, producing a cleaned
// document plus a structured error/warning/statistics report. The pipeline
// itself never fails: its own internal panics become a single critical
// system-error entry so callers always receive a well-formed Result.
package validate

import "time"

// Status is the overall outcome of a validation run.
type Status string

const (
	// StatusPassed means no errors and no warnings.
	StatusPassed Status = "passed"
	// StatusPartial means only warnings, or auto-corrected errors.
	StatusPartial Status = "partial"
	// StatusFailed means at least one critical error.
	StatusFailed Status = "failed"
)

// Level grades a finding. Critical findings force StatusFailed.
type Level string

const (
	// LevelCritical marks structural violations that make the document
	// unusable (type mismatches, pipeline system errors).
	LevelCritical Level = "critical"
	// LevelWarning marks recoverable findings (dropped or corrected fields).
	LevelWarning Level = "warning"
)

// FieldError describes one finding at a field path.
type FieldError struct {
	FieldPath string `json:"field_path"`
	Message   string `json:"message"`
	Level     Level  `json:"level"`
	Expected  string `json:"expected,omitempty"`
	Actual    string `json:"actual,omitempty"`
}

// Statistics aggregates field-level outcomes.
type Statistics struct {
	TotalFields         int `json:"total_fields"`
	ValidFields         int `json:"valid_fields"`
	InvalidFields       int `json:"invalid_fields"`
	EnumViolations      int `json:"enum_violations"`
	StructureViolations int `json:"structure_violations"`
}

// Result is the immutable outcome of one validation call.
type Result struct {
	Status        Status         `json:"status"`
	CleanedData   map[string]any `json:"cleaned_data"`
	Errors        []FieldError   `json:"errors"`
	Warnings      []FieldError   `json:"warnings"`
	RemovedFields []string       `json:"removed_fields"`
	Stats         Statistics     `json:"statistics"`
	Elapsed       time.Duration  `json:"elapsed"`
}

// resolveStatus applies the state machine: any critical error forces FAILED,
// any other finding forces PARTIAL, otherwise PASSED.
func resolveStatus(errs, warns []FieldError) Status {
	for _, e := range errs {
		if e.Level == LevelCritical {
			return StatusFailed
		}
	}
	if len(errs) > 0 || len(warns) > 0 {
		return StatusPartial
	}
	return StatusPassed
}
