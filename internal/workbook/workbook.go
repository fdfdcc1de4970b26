// Package workbook is the parsed-spreadsheet abstraction the validator reads from.
//
// A Workbook is an ordered list of sheets. Each Sheet exposes a name, the range of
// occupied cells (nil for an empty sheet) and a sparse address -> Cell lookup. The
// parsers in this package turn raw files into that shape:
//
//   - XLSXParser reads Office Open XML workbooks through excelize.
//   - XLSParser reads legacy BIFF workbooks through extrame/xls.
//   - CSVParser reads delimited text into a single synthetic sheet.
//
// Nothing in this package knows about schemas or validation rules.
package workbook

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrUnreadable is matched by every parse failure.
var ErrUnreadable = errors.New("unreadable workbook")

// ParseError wraps a parser failure with the format that was being read.
type ParseError struct {
	Format string // "xlsx", "xls", "csv"
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.Format, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Is makes every ParseError match ErrUnreadable.
func (e *ParseError) Is(target error) bool {
	return target == ErrUnreadable
}

// Parser converts file bytes into a Workbook.
type Parser interface {
	Parse(ctx context.Context, r io.Reader) (*Workbook, error)
}

// Cell is one addressable cell.
type Cell struct {
	Raw     Value  // underlying value
	Display string // formatted text as a spreadsheet would show it
	Type    string // parser data-type tag: s, n, d, b, e, f
}

// Workbook is an ordered collection of sheets.
type Workbook struct {
	Sheets []*Sheet
}

// Sheet is a named grid of cells.
type Sheet struct {
	Name string

	rng      *Range
	explicit bool
	cells    map[string]Cell
}

// NewSheet creates an empty sheet.
func NewSheet(name string) *Sheet {
	return &Sheet{Name: name, cells: make(map[string]Cell)}
}

// Set stores a cell at addr (A1 form). Cells with neither a raw nor a display
// value are dropped, keeping the lookup sparse.
func (s *Sheet) Set(addr string, c Cell) {
	addr = strings.ToUpper(addr)
	if c.Raw.IsEmpty() && c.Display == "" {
		delete(s.cells, addr)
		return
	}
	s.cells[addr] = c
}

// SetValue stores a text cell whose raw and display values are the same string.
func (s *Sheet) SetValue(addr, value string) {
	s.Set(addr, Cell{Raw: Text(value), Display: value, Type: "s"})
}

// Cell returns the cell at addr. The second result is false for absent cells.
func (s *Sheet) Cell(addr string) (Cell, bool) {
	c, ok := s.cells[strings.ToUpper(addr)]
	return c, ok
}

// Len returns the number of occupied cells.
func (s *Sheet) Len() int {
	return len(s.cells)
}

// SetRange declares the occupied range explicitly. A nil range marks the sheet empty.
func (s *Sheet) SetRange(r *Range) {
	s.rng = r
	s.explicit = true
}

// Range returns the declared range, or nil for an empty sheet.
func (s *Sheet) Range() *Range {
	return s.rng
}

// Seal computes the declared range from the occupied cells unless one was set
// explicitly. Parsers call it once after filling the sheet.
func (s *Sheet) Seal() {
	if s.explicit {
		return
	}
	s.rng = nil
	for addr := range s.cells {
		c, err := ParseCell(addr)
		if err != nil {
			continue
		}
		if s.rng == nil {
			s.rng = &Range{Start: c, End: c}
			continue
		}
		s.rng.Start.Col = min(s.rng.Start.Col, c.Col)
		s.rng.Start.Row = min(s.rng.Start.Row, c.Row)
		s.rng.End.Col = max(s.rng.End.Col, c.Col)
		s.rng.End.Row = max(s.rng.End.Row, c.Row)
	}
}
