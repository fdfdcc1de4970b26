package schema

// parse.go builds a Schema from an untyped document.
//
// The shape check mirrors what a schema editor enforces before saving:
//  1. "sheets" must be present and be a list
//  2. every sheet's "columns" must be a list
//  3. every column must carry a string "name" and a string "type"
//
// Type strings are classified here as well, so a Schema that constructs successfully
// never contains a rule the validator cannot evaluate.

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrInvalidSchema is matched by every error returned from schema construction.
var ErrInvalidSchema = errors.New("invalid schema")

// ShapeError describes where a schema document deviates from the expected shape.
type ShapeError struct {
	Path   string // e.g. sheets[1].columns[0].type
	Reason string
	Err    error
}

func (e *ShapeError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("invalid schema: %s", e.Reason)
	}
	return fmt.Sprintf("invalid schema at %s: %s", e.Path, e.Reason)
}

func (e *ShapeError) Unwrap() error {
	return e.Err
}

// Is makes every ShapeError match ErrInvalidSchema.
func (e *ShapeError) Is(target error) bool {
	return target == ErrInvalidSchema
}

func shapeErr(path, format string, args ...any) *ShapeError {
	return &ShapeError{Path: path, Reason: fmt.Sprintf(format, args...)}
}

// Parse builds a Schema from a JSON document.
func Parse(data []byte) (*Schema, error) {
	var doc any
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&doc); err != nil {
		return nil, &ShapeError{Reason: "malformed JSON", Err: err}
	}
	return FromDocument(doc)
}

// ParseYAML builds a Schema from a YAML document with the same shape as the JSON form.
func ParseYAML(data []byte) (*Schema, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &ShapeError{Reason: "malformed YAML", Err: err}
	}
	return FromDocument(doc)
}

// Load reads a schema file, choosing the decoder by extension.
// Files ending in .yaml or .yml are YAML; everything else is JSON.
func Load(path string) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema: %w", err)
	}
	if IsYAMLFile(path) {
		return ParseYAML(data)
	}
	return Parse(data)
}

// IsYAMLFile reports whether name has a YAML extension.
func IsYAMLFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// FromDocument validates the shape of doc and converts it into a Schema.
// doc is the generic value produced by decoding JSON or YAML into an `any`.
func FromDocument(doc any) (*Schema, error) {
	root, ok := asObject(doc)
	if !ok {
		return nil, shapeErr("", "document must be an object")
	}

	s := &Schema{}

	if raw, present := root["fileName"]; present && raw != nil {
		name, ok := raw.(string)
		if !ok {
			return nil, shapeErr("fileName", "must be a string")
		}
		s.FileName = name
	}

	rawSheets, present := root["sheets"]
	if !present {
		return nil, shapeErr("sheets", "is required")
	}
	sheets, ok := rawSheets.([]any)
	if !ok {
		return nil, shapeErr("sheets", "must be a list")
	}

	s.Sheets = make([]SheetSpec, 0, len(sheets))
	for i, rawSheet := range sheets {
		sheet, err := sheetFromDocument(fmt.Sprintf("sheets[%d]", i), rawSheet)
		if err != nil {
			return nil, err
		}
		s.Sheets = append(s.Sheets, sheet)
	}

	return s, nil
}

func sheetFromDocument(path string, raw any) (SheetSpec, error) {
	obj, ok := asObject(raw)
	if !ok {
		return SheetSpec{}, shapeErr(path, "must be an object")
	}

	var spec SheetSpec
	if rawName, present := obj["name"]; present && rawName != nil {
		name, ok := rawName.(string)
		if !ok {
			return SheetSpec{}, shapeErr(path+".name", "must be a string")
		}
		spec.Name = name
	}

	rawCols, present := obj["columns"]
	if !present {
		return SheetSpec{}, shapeErr(path+".columns", "is required")
	}
	cols, ok := rawCols.([]any)
	if !ok {
		return SheetSpec{}, shapeErr(path+".columns", "must be a list")
	}

	spec.Columns = make([]ColumnSpec, 0, len(cols))
	for j, rawCol := range cols {
		colPath := fmt.Sprintf("%s.columns[%d]", path, j)
		col, ok := asObject(rawCol)
		if !ok {
			return SheetSpec{}, shapeErr(colPath, "must be an object")
		}

		name, ok := col["name"].(string)
		if !ok {
			return SheetSpec{}, shapeErr(colPath+".name", "must be a string")
		}
		typ, ok := col["type"].(string)
		if !ok {
			return SheetSpec{}, shapeErr(colPath+".type", "must be a string")
		}

		rule, err := ParseTypeRule(typ)
		if err != nil {
			return SheetSpec{}, &ShapeError{Path: colPath + ".type", Reason: err.Error(), Err: err}
		}
		spec.Columns = append(spec.Columns, ColumnSpec{Name: name, Type: rule})
	}

	return spec, nil
}

// asObject accepts both map[string]any (JSON, YAML) and map[any]any (older YAML
// decoders) so the shape check is independent of the decoder.
func asObject(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case map[any]any:
		out := make(map[string]any, len(m))
		for k, val := range m {
			key, ok := k.(string)
			if !ok {
				return nil, false
			}
			out[key] = val
		}
		return out, true
	}
	return nil, false
}
