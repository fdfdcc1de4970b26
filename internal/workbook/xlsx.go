package workbook

import (
	"context"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

// XLSXParser reads Office Open XML workbooks.
//
// Display values are excelize's formatted cell text. Raw values are derived from the
// stored cell value and its type: numbers stay numbers, date-formatted numbers and
// ISO date cells become dates, booleans become booleans, everything else is text.
type XLSXParser struct {
	// Password opens encrypted workbooks.
	Password string
}

// Parse implements Parser.
func (p XLSXParser) Parse(ctx context.Context, r io.Reader) (*Workbook, error) {
	f, err := excelize.OpenReader(r, excelize.Options{Password: p.Password})
	if err != nil {
		return nil, &ParseError{Format: "xlsx", Err: err}
	}
	defer f.Close()

	wb := &Workbook{}
	for _, name := range f.GetSheetList() {
		if err := ctx.Err(); err != nil {
			return nil, &ParseError{Format: "xlsx", Err: err}
		}
		sheet, err := readSheet(f, name)
		if err != nil {
			return nil, &ParseError{Format: "xlsx", Err: err}
		}
		wb.Sheets = append(wb.Sheets, sheet)
	}
	return wb, nil
}

func readSheet(f *excelize.File, name string) (*Sheet, error) {
	display, err := f.GetRows(name)
	if err != nil {
		return nil, err
	}
	raw, err := f.GetRows(name, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, err
	}

	sheet := NewSheet(name)
	for r := 0; r < max(len(display), len(raw)); r++ {
		displayRow := rowAt(display, r)
		rawRow := rowAt(raw, r)

		for c := 0; c < max(len(displayRow), len(rawRow)); c++ {
			shown := fieldAt(displayRow, c)
			stored := fieldAt(rawRow, c)
			if shown == "" && stored == "" {
				continue
			}

			addr, err := excelize.CoordinatesToCellName(c+1, r+1)
			if err != nil {
				return nil, err
			}

			cellType, err := f.GetCellType(name, addr)
			if err != nil {
				return nil, err
			}
			value, tag := rawValue(f, name, addr, cellType, stored)
			sheet.Set(addr, Cell{Raw: value, Display: shown, Type: tag})
		}
	}

	sheet.Seal()
	return sheet, nil
}

// rawValue converts the stored text of a cell into a Value plus its type tag.
func rawValue(f *excelize.File, sheet, addr string, cellType excelize.CellType, stored string) (Value, string) {
	switch cellType {
	case excelize.CellTypeBool:
		return Bool(stored == "1" || strings.EqualFold(stored, "true")), "b"
	case excelize.CellTypeDate:
		if t, err := time.Parse(time.RFC3339, stored); err == nil {
			return Date(t), "d"
		}
		if t, err := time.Parse("2006-01-02", stored); err == nil {
			return Date(t), "d"
		}
		return Text(stored), "d"
	case excelize.CellTypeError:
		return Text(stored), "e"
	case excelize.CellTypeSharedString, excelize.CellTypeInlineString:
		return Text(stored), "s"
	case excelize.CellTypeFormula:
		return Text(stored), "f"
	}

	// Unset or explicit number: the stored text is numeric unless the file is odd.
	n, err := strconv.ParseFloat(stored, 64)
	if err != nil {
		return Text(stored), "s"
	}
	if isDateCell(f, sheet, addr) {
		if t, err := excelize.ExcelDateToTime(n, false); err == nil {
			return Date(t), "d"
		}
	}
	return Number(n), "n"
}

// Built-in number formats that render dates or times.
var builtinDateFormats = map[int]bool{
	14: true, 15: true, 16: true, 17: true, 18: true, 19: true, 20: true, 21: true, 22: true,
	45: true, 46: true, 47: true,
}

func isDateCell(f *excelize.File, sheet, addr string) bool {
	styleID, err := f.GetCellStyle(sheet, addr)
	if err != nil || styleID == 0 {
		return false
	}
	style, err := f.GetStyle(styleID)
	if err != nil || style == nil {
		return false
	}
	if style.CustomNumFmt != nil {
		return IsDateFormat(*style.CustomNumFmt)
	}
	return builtinDateFormats[style.NumFmt]
}

// IsDateFormat reports whether a custom number format renders a date or time.
// Quoted literals, escaped characters and bracketed sections are ignored.
func IsDateFormat(format string) bool {
	inQuote := false
	inBracket := false
	for i := 0; i < len(format); i++ {
		ch := format[i]
		switch {
		case ch == '"':
			inQuote = !inQuote
		case inQuote:
		case ch == '\\', ch == '_', ch == '*':
			i++
		case ch == '[':
			inBracket = true
		case ch == ']':
			inBracket = false
		case inBracket:
		default:
			switch ch | 0x20 {
			case 'y', 'm', 'd', 'h', 's':
				return true
			}
		}
	}
	return false
}

func rowAt(rows [][]string, i int) []string {
	if i < len(rows) {
		return rows[i]
	}
	return nil
}

func fieldAt(row []string, i int) string {
	if i < len(row) {
		return row[i]
	}
	return ""
}
