package validate

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/medfuse/medfuse/internal/domain"
)

// SourceType is the declared representation of a field.
type SourceType string

const (
	// TypeText is a free-text string field.
	TypeText SourceType = "TEXT"
	// TypeBoolean is a boolean field.
	TypeBoolean SourceType = "BOOLEAN"
	// TypeDate is a date string field (validated as text).
	TypeDate SourceType = "DATE"
	// TypeStruct is a nested object field.
	TypeStruct SourceType = "STRUCT"
)

// FieldDef is one schema entry.
type FieldDef struct {
	// Path is the dot-separated field path without array indices,
	// e.g. "protocolSection.designModule.phases".
	Path       string     `json:"path"`
	SourceType SourceType `json:"source_type"`
	IsArray    bool       `json:"is_array"`
	IsEnum     bool       `json:"is_enum"`
	EnumType   string     `json:"enum_type,omitempty"`
	MaxChars   int        `json:"max_chars,omitempty"`
}

// Schema is the field-definition tree plus the enum dictionary, loaded once
// and reused for the validator's lifetime.
type Schema struct {
	byPath map[string]FieldDef
	paths  []string // deterministic iteration order for candidate scoring
	enums  map[string][]string
}

type schemaFile struct {
	Fields []FieldDef `json:"fields"`
}

// LoadSchema reads the field schema and enum dictionary from JSON files.
func LoadSchema(schemaPath, enumsPath string) (*Schema, error) {
	data, err := os.ReadFile(schemaPath)
	if err != nil {
		return nil, fmt.Errorf("%w: read schema %s: %w", domain.ErrSchemaUnavailable, schemaPath, err)
	}
	var sf schemaFile
	if err := json.Unmarshal(data, &sf); err != nil {
		return nil, fmt.Errorf("%w: parse schema: %w", domain.ErrSchemaUnavailable, err)
	}

	enums := make(map[string][]string)
	if enumsPath != "" {
		data, err := os.ReadFile(enumsPath)
		if err != nil {
			return nil, fmt.Errorf("%w: read enums %s: %w", domain.ErrSchemaUnavailable, enumsPath, err)
		}
		if err := json.Unmarshal(data, &enums); err != nil {
			return nil, fmt.Errorf("%w: parse enums: %w", domain.ErrSchemaUnavailable, err)
		}
	}

	return NewSchema(sf.Fields, enums), nil
}

// NewSchema builds a schema from in-memory definitions.
func NewSchema(fields []FieldDef, enums map[string][]string) *Schema {
	s := &Schema{
		byPath: make(map[string]FieldDef, len(fields)),
		enums:  enums,
	}
	if s.enums == nil {
		s.enums = make(map[string][]string)
	}
	for _, f := range fields {
		if _, dup := s.byPath[f.Path]; !dup {
			s.paths = append(s.paths, f.Path)
		}
		s.byPath[f.Path] = f
	}
	return s
}

// Lookup finds the schema entry for a document field path: exact match
// first, then with array indices stripped, then best-effort context scoring.
func (s *Schema) Lookup(path string) (FieldDef, bool) {
	if def, ok := s.byPath[path]; ok {
		return def, true
	}
	norm := stripIndices(path)
	if def, ok := s.byPath[norm]; ok {
		return def, true
	}
	if best, ok := bestMatch(norm, s.paths); ok {
		return s.byPath[best], true
	}
	return FieldDef{}, false
}

// Sections returns the distinct top-level section names, sorted.
func (s *Schema) Sections() []string {
	seen := make(map[string]struct{})
	var sections []string
	for _, p := range s.paths {
		head := p
		if i := strings.IndexByte(p, '.'); i >= 0 {
			head = p[:i]
		}
		if _, ok := seen[head]; ok {
			continue
		}
		seen[head] = struct{}{}
		sections = append(sections, head)
	}
	sort.Strings(sections)
	return sections
}

// SectionFields returns the schema entries under one top-level section, in
// declaration order.
func (s *Schema) SectionFields(section string) []FieldDef {
	var defs []FieldDef
	for _, p := range s.paths {
		if p == section || strings.HasPrefix(p, section+".") {
			defs = append(defs, s.byPath[p])
		}
	}
	return defs
}

// EnumValues returns the allowed values for an enum type.
func (s *Schema) EnumValues(enumType string) []string {
	return s.enums[enumType]
}

// stripIndices removes array index suffixes from every path segment:
// "a[0].b[12].c" -> "a.b.c".
func stripIndices(path string) string {
	segs := strings.Split(path, ".")
	for i, seg := range segs {
		if j := strings.IndexByte(seg, '['); j >= 0 {
			segs[i] = seg[:j]
		}
	}
	return strings.Join(segs, ".")
}
