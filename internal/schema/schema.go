// Package schema defines the declarative description a workbook is validated against.
//
// A Schema lists the sheets a file is expected to contain and, for each sheet, the
// ordered columns with their type rules:
//
//	{
//	  "fileName": "/^report_\\d{4}$/",
//	  "sheets": [
//	    {
//	      "name": "Data",
//	      "columns": [
//	        { "name": "Id", "type": "number" },
//	        { "name": "Date", "type": "/\\d{1,2}-\\d{1,2}-\\d{2,4}/" },
//	        { "name": "Label", "type": "string" }
//	      ]
//	    }
//	  ]
//	}
//
// Schemas are built from untyped documents (JSON or YAML) by [FromDocument], which
// checks the document's shape and rejects unknown type rules. A constructed Schema is
// never modified afterwards and can be shared between concurrent validations.
package schema

import (
	"encoding/json"
	"strings"
)

// ColumnSpec describes one expected column: its header name and value rule.
type ColumnSpec struct {
	Name string
	Type TypeRule
}

// SheetSpec describes one expected sheet.
//
// An empty Name matches any sheet. An empty Columns list means the sheet is skipped.
type SheetSpec struct {
	Name    string
	Columns []ColumnSpec
}

// IsWildcard reports whether the spec matches any sheet name.
func (s SheetSpec) IsWildcard() bool {
	return s.Name == ""
}

// MatchesName reports whether the spec's name equals sheetName, ignoring case and
// surrounding whitespace. Wildcard specs match every name.
func (s SheetSpec) MatchesName(sheetName string) bool {
	if s.IsWildcard() {
		return true
	}
	return strings.EqualFold(strings.TrimSpace(s.Name), strings.TrimSpace(sheetName))
}

// Schema is the complete validation schema for a file.
type Schema struct {
	// FileName is the optional /regex/ the file's base name must match. It is kept
	// uncompiled: a bad pattern is reported per validation, not at construction.
	FileName string

	// Sheets is ordered; the order is the positional fallback when no name matches.
	Sheets []SheetSpec
}

// FileNamePattern returns the file name regex source with its delimiters removed.
// The second result is false when the schema has no file name constraint.
func (s *Schema) FileNamePattern() (string, bool) {
	if s.FileName == "" {
		return "", false
	}
	return stripDelimiters(s.FileName), true
}

type columnDoc struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

type sheetDoc struct {
	Name    string      `json:"name,omitempty"`
	Columns []columnDoc `json:"columns"`
}

type schemaDoc struct {
	FileName string     `json:"fileName,omitempty"`
	Sheets   []sheetDoc `json:"sheets"`
}

// MarshalJSON renders the schema in its document form.
func (s *Schema) MarshalJSON() ([]byte, error) {
	doc := schemaDoc{
		FileName: s.FileName,
		Sheets:   make([]sheetDoc, len(s.Sheets)),
	}
	for i, sheet := range s.Sheets {
		cols := make([]columnDoc, len(sheet.Columns))
		for j, col := range sheet.Columns {
			cols[j] = columnDoc{Name: col.Name, Type: col.Type.String()}
		}
		doc.Sheets[i] = sheetDoc{Name: sheet.Name, Columns: cols}
	}
	return json.Marshal(doc)
}
