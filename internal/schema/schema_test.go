package schema

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const reportSchema = `{
  "fileName": "/^report_\\d{4}$/",
  "sheets": [
    {
      "name": "Data",
      "columns": [
        { "name": "Id", "type": "number" },
        { "name": "Date", "type": "/\\d{1,2}-\\d{1,2}-\\d{2,4}/" },
        { "name": "Label", "type": "string" }
      ]
    }
  ]
}`

func TestParse_ValidDocument(t *testing.T) {
	s, err := Parse([]byte(reportSchema))
	require.NoError(t, err)

	pattern, ok := s.FileNamePattern()
	assert.True(t, ok)
	assert.Equal(t, `^report_\d{4}$`, pattern)

	require.Len(t, s.Sheets, 1)
	sheet := s.Sheets[0]
	assert.Equal(t, "Data", sheet.Name)
	require.Len(t, sheet.Columns, 3)

	assert.Equal(t, RuleNumber, sheet.Columns[0].Type.Kind())
	assert.Equal(t, RulePattern, sheet.Columns[1].Type.Kind())
	assert.Equal(t, `\d{1,2}-\d{1,2}-\d{2,4}`, sheet.Columns[1].Type.Source())
	assert.NotNil(t, sheet.Columns[1].Type.Regexp())
	assert.Equal(t, RuleString, sheet.Columns[2].Type.Kind())
}

func TestParse_ShapeErrors(t *testing.T) {
	tests := []struct {
		name     string
		doc      string
		wantPath string
	}{
		{"not an object", `[1,2]`, ""},
		{"missing sheets", `{}`, "sheets"},
		{"sheets not a list", `{"sheets": {}}`, "sheets"},
		{"sheet not an object", `{"sheets": ["x"]}`, "sheets[0]"},
		{"missing columns", `{"sheets": [{"name": "a"}]}`, "sheets[0].columns"},
		{"columns not a list", `{"sheets": [{"columns": "a"}]}`, "sheets[0].columns"},
		{"column name missing", `{"sheets": [{"columns": [{"type": "string"}]}]}`, "sheets[0].columns[0].name"},
		{"column name not string", `{"sheets": [{"columns": [{"name": 1, "type": "string"}]}]}`, "sheets[0].columns[0].name"},
		{"column type missing", `{"sheets": [{"columns": [{"name": "a"}]}]}`, "sheets[0].columns[0].type"},
		{"unknown type", `{"sheets": [{"columns": [{"name": "a", "type": "date"}]}]}`, "sheets[0].columns[0].type"},
		{"bad pattern", `{"sheets": [{"columns": [{"name": "a", "type": "/([a-z/"}]}]}`, "sheets[0].columns[0].type"},
		{"sheet name not string", `{"sheets": [{"name": 3, "columns": []}]}`, "sheets[0].name"},
		{"fileName not string", `{"fileName": 3, "sheets": []}`, "fileName"},
		{"second sheet broken", `{"sheets": [{"columns": []}, {"columns": [{"name": "a", "type": 2}]}]}`, "sheets[1].columns[0].type"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := Parse([]byte(tt.doc))
			require.Error(t, err)
			assert.Nil(t, s)
			assert.ErrorIs(t, err, ErrInvalidSchema)

			var shapeErr *ShapeError
			require.True(t, errors.As(err, &shapeErr))
			assert.Equal(t, tt.wantPath, shapeErr.Path)
		})
	}
}

func TestParse_MalformedJSON(t *testing.T) {
	_, err := Parse([]byte(`{"sheets": [`))
	assert.ErrorIs(t, err, ErrInvalidSchema)
}

func TestParse_EmptySheetsAndColumns(t *testing.T) {
	s, err := Parse([]byte(`{"sheets": [{"name": "", "columns": []}]}`))
	require.NoError(t, err)
	require.Len(t, s.Sheets, 1)
	assert.True(t, s.Sheets[0].IsWildcard())
	assert.Empty(t, s.Sheets[0].Columns)

	_, ok := s.FileNamePattern()
	assert.False(t, ok)
}

func TestParseTypeRule(t *testing.T) {
	tests := []struct {
		raw      string
		wantKind RuleKind
		wantErr  bool
	}{
		{"string", RuleString, false},
		{"number", RuleNumber, false},
		{"/^[A-Z]+$/", RulePattern, false},
		{"//", RulePattern, false},
		{"/", 0, true},
		{"String", 0, true},
		{"int", 0, true},
		{"", 0, true},
		{"/(unclosed/", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			rule, err := ParseTypeRule(tt.raw)
			if tt.wantErr {
				var ruleErr *RuleError
				assert.True(t, errors.As(err, &ruleErr), "want *RuleError, got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantKind, rule.Kind())
			assert.Equal(t, tt.raw, rule.String())
		})
	}
}

func TestParseYAML_MatchesJSON(t *testing.T) {
	yamlDoc := `
fileName: /^report_\d{4}$/
sheets:
  - name: Data
    columns:
      - name: Id
        type: number
      - name: Date
        type: /\d{1,2}-\d{1,2}-\d{2,4}/
      - name: Label
        type: string
`
	fromYAML, err := ParseYAML([]byte(yamlDoc))
	require.NoError(t, err)
	fromJSON, err := Parse([]byte(reportSchema))
	require.NoError(t, err)

	a, err := json.Marshal(fromYAML)
	require.NoError(t, err)
	b, err := json.Marshal(fromJSON)
	require.NoError(t, err)
	assert.JSONEq(t, string(b), string(a))
}

func TestMarshalJSON_RoundTrip(t *testing.T) {
	s, err := Parse([]byte(reportSchema))
	require.NoError(t, err)

	data, err := json.Marshal(s)
	require.NoError(t, err)

	again, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, s.FileName, again.FileName)
	require.Len(t, again.Sheets, 1)
	for i, col := range s.Sheets[0].Columns {
		assert.Equal(t, col.Name, again.Sheets[0].Columns[i].Name)
		assert.Equal(t, col.Type.String(), again.Sheets[0].Columns[i].Type.String())
	}
}

func TestLoad_ByExtension(t *testing.T) {
	dir := t.TempDir()

	jsonPath := filepath.Join(dir, "spec.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(reportSchema), 0o644))

	yamlPath := filepath.Join(dir, "spec.yml")
	require.NoError(t, os.WriteFile(yamlPath, []byte("sheets:\n  - columns:\n      - {name: A, type: string}\n"), 0o644))

	s, err := Load(jsonPath)
	require.NoError(t, err)
	assert.Len(t, s.Sheets[0].Columns, 3)

	s, err = Load(yamlPath)
	require.NoError(t, err)
	assert.Equal(t, "A", s.Sheets[0].Columns[0].Name)

	_, err = Load(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}

func TestSheetSpec_MatchesName(t *testing.T) {
	assert.True(t, SheetSpec{Name: " Data "}.MatchesName("data"))
	assert.True(t, SheetSpec{}.MatchesName("anything"))
	assert.False(t, SheetSpec{Name: "Data"}.MatchesName("Other"))
}
