package validate

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medfuse/medfuse/internal/domain"
)

func TestSchema_LookupExact(t *testing.T) {
	s := testSchema()
	def, ok := s.Lookup("doc.title")
	require.True(t, ok)
	assert.Equal(t, TypeText, def.SourceType)
	assert.Equal(t, 10, def.MaxChars)
}

func TestSchema_LookupStripsIndices(t *testing.T) {
	s := testSchema()
	def, ok := s.Lookup("doc.items[3].name")
	require.True(t, ok)
	assert.Equal(t, "doc.items.name", def.Path)
}

func TestSchema_LookupBestMatch(t *testing.T) {
	s := NewSchema([]FieldDef{
		{Path: "protocolSection.identificationModule.briefTitle", SourceType: TypeText},
		{Path: "protocolSection.descriptionModule.briefSummary", SourceType: TypeText},
	}, nil)

	// The leaf moved within the tree; context scoring still finds it.
	def, ok := s.Lookup("protocolSection.briefTitle")
	require.True(t, ok)
	assert.Equal(t, "protocolSection.identificationModule.briefTitle", def.Path)
}

func TestSchema_LookupRejectsWrongLeaf(t *testing.T) {
	s := testSchema()
	_, ok := s.Lookup("doc.nothing.like.it")
	assert.False(t, ok)
}

func TestSchema_Sections(t *testing.T) {
	s := NewSchema([]FieldDef{
		{Path: "b.one", SourceType: TypeText},
		{Path: "a.two", SourceType: TypeText},
		{Path: "b.three", SourceType: TypeText},
	}, nil)
	assert.Equal(t, []string{"a", "b"}, s.Sections())
}

func TestSchema_SectionFieldsDeclarationOrder(t *testing.T) {
	s := testSchema()
	defs := s.SectionFields("doc")
	require.Len(t, defs, 6)
	assert.Equal(t, "doc.title", defs[0].Path)
	assert.Equal(t, "doc.items.name", defs[5].Path)
	assert.Empty(t, s.SectionFields("absent"))
}

func TestSchema_EnumValues(t *testing.T) {
	s := testSchema()
	assert.Equal(t, []string{"ACTIVE", "DONE"}, s.EnumValues("Status"))
	assert.Empty(t, s.EnumValues("Unknown"))
}

func TestStripIndices(t *testing.T) {
	tests := []struct{ in, want string }{
		{"a.b.c", "a.b.c"},
		{"a[0].b[12].c", "a.b.c"},
		{"a.b[3]", "a.b"},
		{"a", "a"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, stripIndices(tt.in))
	}
}

func TestBestMatch_Threshold(t *testing.T) {
	candidates := []string{"x.y.z.title"}

	// Leaf agrees but context is thin: overlap 1 segment, no shared prefix.
	_, ok := bestMatch("title", candidates)
	assert.True(t, ok, "single shared segment already meets the threshold")

	_, ok = bestMatch("other", candidates)
	assert.False(t, ok, "mismatched leaf must never match")
}

func TestLoadSchema(t *testing.T) {
	dir := t.TempDir()
	schemaPath := filepath.Join(dir, "fields.json")
	enumsPath := filepath.Join(dir, "enums.json")
	require.NoError(t, os.WriteFile(schemaPath, []byte(
		`{"fields":[{"path":"doc.title","source_type":"TEXT","max_chars":10}]}`), 0o644))
	require.NoError(t, os.WriteFile(enumsPath, []byte(
		`{"Status":["ACTIVE"]}`), 0o644))

	s, err := LoadSchema(schemaPath, enumsPath)
	require.NoError(t, err)
	def, ok := s.Lookup("doc.title")
	require.True(t, ok)
	assert.Equal(t, 10, def.MaxChars)
	assert.Equal(t, []string{"ACTIVE"}, s.EnumValues("Status"))
}

func TestLoadSchema_MissingFile(t *testing.T) {
	_, err := LoadSchema("/does/not/exist.json", "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrSchemaUnavailable))
}
