package workbook

// csv.go reads delimited text into a single-sheet Workbook.
//
// Input is normalised before the csv reader sees it:
//   - a leading byte order mark is dropped (UTF-8, or UTF-16 which is then decoded)
//   - invalid UTF-8 sequences are replaced with U+FFFD
//   - an explicit Encoding (e.g. Windows-1252 exports) is decoded to UTF-8 instead
//
// Every field becomes a text cell whose raw and display values are identical; CSV
// carries no type information of its own.

import (
	"context"
	"encoding/csv"
	"errors"
	"io"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// CSVSheetName is the name given to the synthetic sheet of a CSV file.
const CSVSheetName = "Sheet1"

// ContextCheckInterval is how many records are read between cancellation checks.
var ContextCheckInterval = 1000

// CSVParser parses comma (or Comma) separated text.
type CSVParser struct {
	// Comma is the field delimiter. Zero means ','.
	Comma rune

	// Encoding decodes non-UTF-8 input. Nil means UTF-8 with BOM detection.
	Encoding encoding.Encoding
}

// Parse implements Parser.
func (p CSVParser) Parse(ctx context.Context, r io.Reader) (*Workbook, error) {
	reader := csv.NewReader(p.decode(r))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	if p.Comma != 0 {
		reader.Comma = p.Comma
	}

	sheet := NewSheet(CSVSheetName)

	// Rows follow physical lines: the csv reader skips blank lines, and a quoted
	// field may span several lines yet still counts as one row.
	row, lastLine := 0, 0
	for n := 1; ; n++ {
		if n%ContextCheckInterval == 0 && ctx.Err() != nil {
			return nil, &ParseError{Format: "csv", Err: ctx.Err()}
		}

		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &ParseError{Format: "csv", Err: err}
		}

		startLine, _ := reader.FieldPos(0)
		row += 1 + max(startLine-lastLine-1, 0)
		endLine, _ := reader.FieldPos(len(record) - 1)
		lastLine = endLine + strings.Count(record[len(record)-1], "\n")

		for i, field := range record {
			if field == "" {
				continue
			}
			addr, err := CellName(i+1, row)
			if err != nil {
				return nil, &ParseError{Format: "csv", Err: err}
			}
			sheet.SetValue(addr, field)
		}
	}

	sheet.Seal()
	return &Workbook{Sheets: []*Sheet{sheet}}, nil
}

func (p CSVParser) decode(r io.Reader) io.Reader {
	if p.Encoding != nil {
		return transform.NewReader(r, p.Encoding.NewDecoder())
	}
	return transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))
}
