package core

// validation.go checks one workbook against a schema.
//
// A run walks the file in a fixed order and never stops at the first defect:
//  1. The base file name is tested against the schema's fileName pattern.
//  2. The extension selects the parser (xlsx, xls or csv); anything else ends the run.
//  3. Every sheet is matched to a SheetSpec: by name (or wildcard), then by position.
//  4. For each spec column the header cell is compared by name, then every data
//     cell below it is checked against the column's type rule.
//
// Every problem is appended to the Result as a diagnostic. Only a missing file or
// a missing schema is returned as an error.

import (
	"context"
	"errors"
	"path"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/cases"

	"github.com/JonMunkholm/sheetguard/internal/schema"
	"github.com/JonMunkholm/sheetguard/internal/workbook"
)

var (
	// ErrMissingFile means no file was supplied, so no Result was computed.
	ErrMissingFile = errors.New("missing file")

	// ErrMissingSchema means no schema was supplied, so no Result was computed.
	ErrMissingSchema = errors.New("missing schema")
)

// Format identifies which branch validated a file.
type Format string

const (
	FormatSpreadsheet Format = "spreadsheet"
	FormatCSV         Format = "csv"
	FormatUnsupported Format = "unsupported"
)

// FormatOf returns the branch a file name dispatches to. The extension is taken
// as supplied, so "REPORT.CSV" is unsupported.
func FormatOf(name string) Format {
	_, ext := splitName(name)
	switch ext {
	case "xlsx", "xls":
		return FormatSpreadsheet
	case "csv":
		return FormatCSV
	}
	return FormatUnsupported
}

// Engine validates workbooks against schemas. An Engine holds no per-run state
// and may be shared between goroutines.
type Engine struct {
	parsers map[string]workbook.Parser
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithParser replaces the parser used for files with the given extension
// ("xlsx", "xls" or "csv"). Extensions FormatOf rejects are never parsed.
func WithParser(ext string, p workbook.Parser) EngineOption {
	return func(e *Engine) { e.parsers[ext] = p }
}

// NewEngine creates an Engine. Without options it reads .xlsx with
// workbook.XLSXParser, .xls with workbook.XLSParser and .csv with
// workbook.CSVParser.
func NewEngine(opts ...EngineOption) *Engine {
	e := &Engine{parsers: map[string]workbook.Parser{
		"xlsx": workbook.XLSXParser{},
		"xls":  workbook.XLSParser{},
		"csv":  workbook.CSVParser{},
	}}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Validate checks src against s and returns every diagnostic found.
//
// The returned error is non-nil only when an input is missing (ErrMissingFile,
// ErrMissingSchema) or ctx ends while the file is being read. Unreadable or
// unsupported files still produce a Result with Success false.
func (e *Engine) Validate(ctx context.Context, src Source, s *schema.Schema) (Result, error) {
	if src == nil {
		return Result{}, ErrMissingFile
	}
	if s == nil {
		return Result{}, ErrMissingSchema
	}

	name := src.Name()
	r := &run{result: newResult(name), fold: cases.Fold()}
	base, ext := splitName(name)
	r.checkFileName(s, base)

	format := FormatOf(name)
	parser, ok := e.parsers[ext]
	if format == FormatUnsupported || !ok || parser == nil {
		r.result.fail("Unsupported file format. Only .xlsx, .xls and .csv are supported.")
		return r.result, nil
	}

	wb, err := read(ctx, src, parser)
	if err != nil {
		if errors.Is(err, ErrMissingFile) || ctx.Err() != nil {
			return Result{}, err
		}
		r.result.fail("Unable to read file: %v", err)
		return r.result, nil
	}

	if format == FormatCSV {
		var spec *schema.SheetSpec
		if len(s.Sheets) > 0 {
			spec = &s.Sheets[0]
		}
		for _, sheet := range wb.Sheets {
			r.checkSheet(sheet, spec, true)
		}
		return r.result, nil
	}

	for i, sheet := range wb.Sheets {
		r.checkSheet(sheet, matchSheet(s, sheet.Name, i), false)
	}
	return r.result, nil
}

func read(ctx context.Context, src Source, p workbook.Parser) (*workbook.Workbook, error) {
	rc, err := src.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return p.Parse(ctx, rc)
}

// splitName returns the base name (before the final dot) and the extension.
func splitName(name string) (base, ext string) {
	name = path.Base(strings.ReplaceAll(name, `\`, "/"))
	i := strings.LastIndex(name, ".")
	if i < 0 {
		return name, ""
	}
	return name[:i], name[i+1:]
}

// matchSheet finds the spec for the sheet at index i: a spec with the same name
// or a wildcard spec first, then the spec at the same position.
func matchSheet(s *schema.Schema, sheetName string, i int) *schema.SheetSpec {
	for j := range s.Sheets {
		if s.Sheets[j].MatchesName(sheetName) {
			return &s.Sheets[j]
		}
	}
	if i < len(s.Sheets) {
		return &s.Sheets[i]
	}
	return nil
}

// run is the state of one Validate call.
type run struct {
	result Result
	fold   cases.Caser
}

func (r *run) checkFileName(s *schema.Schema, base string) {
	pattern, ok := s.FileNamePattern()
	if !ok {
		return
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		r.result.fail("Invalid regular expression for fileName: %v", err)
		return
	}
	if !re.MatchString(base) {
		r.result.fail("Mismatch in file name: Expected fileName in the format \"%s\", but found \"%s\"", s.FileName, base)
	}
}

func (r *run) checkSheet(sheet *workbook.Sheet, spec *schema.SheetSpec, useRaw bool) {
	if spec == nil || len(spec.Columns) == 0 {
		r.result.add("%s%s: Skipping sheet - No columns specified.", MarkerPrefix, sheet.Name)
		return
	}

	rng := sheet.Range()
	r.result.add("%s%s", MarkerPrefix, sheet.Name)
	if rng == nil {
		r.result.fail("Worksheet %s is empty.", sheet.Name)
		return
	}

	headerRow := rng.Start.Row
	for i, col := range spec.Columns {
		letters, err := workbook.OffsetColumn(rng.StartColumn(), i)
		if err != nil {
			r.result.fail("Column %d of worksheet %s is beyond the last addressable column", i+1, sheet.Name)
			return
		}

		addr := letters + strconv.Itoa(headerRow)
		if found, ok := headerText(sheet, addr); ok && !r.sameName(found, col.Name) {
			if pos := r.columnIndex(spec.Columns, found); pos >= 0 {
				r.result.fail("Mismatch in column %s: Expected \"%s\", but found \"%s\" at %s. Column %s should be at position %d",
					letters, col.Name, found, addr, col.Name, pos+1)
			} else {
				r.result.fail("Mismatch in column %s: Expected \"%s\", but found \"%s\" at %s",
					letters, col.Name, found, addr)
			}
			continue
		}

		for row := headerRow + 1; row <= rng.End.Row; row++ {
			addr := letters + strconv.Itoa(row)
			cell, ok := sheet.Cell(addr)
			if !ok {
				continue
			}
			r.checkCell(cell, col, letters, row, addr, useRaw)
		}
	}
}

func (r *run) checkCell(cell workbook.Cell, col schema.ColumnSpec, letters string, row int, addr string, useRaw bool) {
	var kind, shown string
	var ok bool
	if useRaw {
		if cell.Raw.IsEmpty() {
			return
		}
		kind, shown = cell.Raw.KindName(), cell.Raw.String()
		ok = MatchesValue(col.Type, cell.Raw)
	} else {
		if cell.Display == "" {
			return
		}
		kind, shown = "string", cell.Display
		ok = MatchesText(col.Type, cell.Display)
	}
	if ok {
		return
	}
	r.result.fail("Invalid data type in column %s, row %d: Expected type \"%s\", but found \"%s\" (%s) at %s",
		letters, row, col.Type.String(), kind, shown, addr)
}

// headerText reads a header cell, preferring the raw value over the display text.
func headerText(sheet *workbook.Sheet, addr string) (string, bool) {
	cell, ok := sheet.Cell(addr)
	if !ok {
		return "", false
	}
	if !cell.Raw.IsEmpty() {
		return cell.Raw.String(), true
	}
	if cell.Display != "" {
		return cell.Display, true
	}
	return "", false
}

func (r *run) sameName(a, b string) bool {
	return r.fold.String(a) == r.fold.String(b)
}

func (r *run) columnIndex(cols []schema.ColumnSpec, name string) int {
	for i, c := range cols {
		if r.sameName(c.Name, name) {
			return i
		}
	}
	return -1
}

