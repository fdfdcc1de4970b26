package workbook

import (
	"strings"

	"github.com/xuri/excelize/v2"
)

// Coord is a 1-based cell position.
type Coord struct {
	Col int
	Row int
}

// Name returns the A1-style address, or "" if the coordinate is out of range.
func (c Coord) Name() string {
	name, err := excelize.CoordinatesToCellName(c.Col, c.Row)
	if err != nil {
		return ""
	}
	return name
}

// Range is the rectangular span of occupied cells, corners inclusive.
type Range struct {
	Start Coord
	End   Coord
}

// String renders the range as "A1:C10".
func (r Range) String() string {
	return r.Start.Name() + ":" + r.End.Name()
}

// StartColumn returns the column letters of the top-left cell.
func (r Range) StartColumn() string {
	letters, _ := ColumnLetters(r.Start.Col)
	return letters
}

// ParseCell parses an A1-style address, ignoring "$" absolute markers.
func ParseCell(addr string) (Coord, error) {
	col, row, err := excelize.CellNameToCoordinates(strings.ReplaceAll(addr, "$", ""))
	if err != nil {
		return Coord{}, err
	}
	return Coord{Col: col, Row: row}, nil
}

// CellName builds an address from a column number and a row number.
func CellName(col, row int) (string, error) {
	return excelize.CoordinatesToCellName(col, row)
}

// ColumnLetters converts a 1-based column number to its letters (1 -> A, 27 -> AA).
// Columns past the last spreadsheet column (XFD) return an error.
func ColumnLetters(col int) (string, error) {
	return excelize.ColumnNumberToName(col)
}

// ColumnNumber converts column letters to a 1-based column number.
func ColumnNumber(letters string) (int, error) {
	return excelize.ColumnNameToNumber(letters)
}

// OffsetColumn returns the letters of the column n positions right of start.
func OffsetColumn(start string, n int) (string, error) {
	col, err := ColumnNumber(start)
	if err != nil {
		return "", err
	}
	return ColumnLetters(col + n)
}
