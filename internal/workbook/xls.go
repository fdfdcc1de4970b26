package workbook

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/extrame/xls"
)

// BIFF8 sheets are at most 256 columns wide.
const xlsMaxCols = 256

var oleSignature = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}

// XLSParser reads legacy Excel 97-2003 (BIFF) workbooks.
//
// The BIFF reader only hands out formatted cell text, so every cell is a text
// cell whose raw and display values are the same string.
type XLSParser struct{}

// Parse implements Parser.
func (p XLSParser) Parse(ctx context.Context, r io.Reader) (wb *Workbook, err error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, &ParseError{Format: "xls", Err: err}
	}
	if !bytes.HasPrefix(data, oleSignature) {
		return nil, &ParseError{Format: "xls", Err: errors.New("not an OLE2 compound document")}
	}

	// The BIFF reader panics on truncated or inconsistent records.
	defer func() {
		if v := recover(); v != nil {
			wb, err = nil, &ParseError{Format: "xls", Err: fmt.Errorf("malformed workbook: %v", v)}
		}
	}()

	book, err := xls.OpenReader(bytes.NewReader(data), "utf-8")
	if err != nil {
		return nil, &ParseError{Format: "xls", Err: err}
	}
	if book == nil {
		return nil, &ParseError{Format: "xls", Err: errors.New("no Workbook stream")}
	}

	wb = &Workbook{}
	for i := 0; i < book.NumSheets(); i++ {
		if err := ctx.Err(); err != nil {
			return nil, &ParseError{Format: "xls", Err: err}
		}
		ws := book.GetSheet(i)
		if ws == nil {
			continue
		}
		sheet, err := readXLSSheet(ctx, ws)
		if err != nil {
			return nil, &ParseError{Format: "xls", Err: err}
		}
		wb.Sheets = append(wb.Sheets, sheet)
	}
	return wb, nil
}

func readXLSSheet(ctx context.Context, ws *xls.WorkSheet) (*Sheet, error) {
	sheet := NewSheet(ws.Name)
	for r := 0; r <= int(ws.MaxRow); r++ {
		if (r+1)%ContextCheckInterval == 0 && ctx.Err() != nil {
			return nil, ctx.Err()
		}
		row := xlsRow(ws, r)
		if row == nil {
			continue
		}
		for c := 0; c < max(row.LastCol(), xlsMaxCols); c++ {
			text := row.Col(c)
			if text == "" {
				continue
			}
			addr, err := CellName(c+1, r+1)
			if err != nil {
				return nil, err
			}
			sheet.SetValue(addr, text)
		}
	}
	sheet.Seal()
	return sheet, nil
}

// xlsRow returns row i, or nil when the sheet has no record for it.
func xlsRow(ws *xls.WorkSheet, i int) (row *xls.Row) {
	defer func() {
		if recover() != nil {
			row = nil
		}
	}()
	return ws.Row(i)
}
