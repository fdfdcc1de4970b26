package core

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/JonMunkholm/sheetguard/internal/schema"
	"github.com/JonMunkholm/sheetguard/internal/workbook"
)

const reportSchema = `{
	"fileName": "/^report_\\d{4}$/",
	"sheets": [{
		"name": "Data",
		"columns": [
			{"name": "Id", "type": "number"},
			{"name": "Label", "type": "string"}
		]
	}]
}`

func mustSchema(t *testing.T, doc string) *schema.Schema {
	t.Helper()
	s, err := schema.Parse([]byte(doc))
	require.NoError(t, err)
	return s
}

type sheetRows struct {
	name  string
	start string
	rows  [][]any
}

// xlsxFile builds an in-memory workbook. Each sheet's rows are written from its
// start cell (A1 when empty).
func xlsxFile(t *testing.T, sheets ...sheetRows) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	for i, sh := range sheets {
		if i == 0 {
			require.NoError(t, f.SetSheetName("Sheet1", sh.name))
		} else {
			_, err := f.NewSheet(sh.name)
			require.NoError(t, err)
		}

		start := sh.start
		if start == "" {
			start = "A1"
		}
		col, row, err := excelize.CellNameToCoordinates(start)
		require.NoError(t, err)
		for r, values := range sh.rows {
			cell, err := excelize.CoordinatesToCellName(col, row+r)
			require.NoError(t, err)
			values := values
			require.NoError(t, f.SetSheetRow(sh.name, cell, &values))
		}
	}

	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	return buf.Bytes()
}

type parserFunc func(ctx context.Context, r io.Reader) (*workbook.Workbook, error)

func (f parserFunc) Parse(ctx context.Context, r io.Reader) (*workbook.Workbook, error) {
	return f(ctx, r)
}

func staticParser(sheets ...*workbook.Sheet) workbook.Parser {
	return parserFunc(func(context.Context, io.Reader) (*workbook.Workbook, error) {
		return &workbook.Workbook{Sheets: sheets}, nil
	})
}

func validate(t *testing.T, e *Engine, src Source, s *schema.Schema) Result {
	t.Helper()
	res, err := e.Validate(context.Background(), src, s)
	require.NoError(t, err)
	return res
}

func TestValidate_MissingInputs(t *testing.T) {
	e := NewEngine()
	s := mustSchema(t, reportSchema)

	_, err := e.Validate(context.Background(), nil, s)
	assert.ErrorIs(t, err, ErrMissingFile)

	_, err = e.Validate(context.Background(), BytesSource("a.csv", nil), nil)
	assert.ErrorIs(t, err, ErrMissingSchema)

	_, err = e.Validate(context.Background(), FileSource(filepath.Join(t.TempDir(), "gone.csv")), s)
	assert.ErrorIs(t, err, ErrMissingFile)
}

func TestValidate_CSVReportPasses(t *testing.T) {
	res := validate(t, NewEngine(), BytesSource("report_2023.csv", []byte("Id,Label\n1,x\n2,y\n")), mustSchema(t, reportSchema))

	assert.True(t, res.Success)
	assert.Equal(t, "report_2023.csv", res.File)
	assert.Equal(t, []string{"Worksheet: Sheet1"}, res.Diagnostics)
}

func TestValidate_CSVReportBadFileName(t *testing.T) {
	res := validate(t, NewEngine(), BytesSource("report_99.csv", []byte("Id,Label\n1,x\n2,y\n")), mustSchema(t, reportSchema))

	assert.False(t, res.Success)
	assert.Equal(t, []string{
		`Mismatch in file name: Expected fileName in the format "/^report_\d{4}$/", but found "report_99"`,
		"Worksheet: Sheet1",
	}, res.Diagnostics)
}

func TestValidate_SwappedHeaderGivesPositions(t *testing.T) {
	res := validate(t, NewEngine(), BytesSource("report_2023.csv", []byte("Label,Id\nx,1\ny,2\n")), mustSchema(t, reportSchema))

	assert.False(t, res.Success)
	assert.Equal(t, []string{
		"Worksheet: Sheet1",
		`Mismatch in column A: Expected "Id", but found "Label" at A1. Column Id should be at position 2`,
		`Mismatch in column B: Expected "Label", but found "Id" at B1. Column Label should be at position 1`,
	}, res.Diagnostics)
}

func TestValidate_UnknownHeader(t *testing.T) {
	res := validate(t, NewEngine(), BytesSource("report_2023.csv", []byte("Id,Name\n1,x\n")), mustSchema(t, reportSchema))

	assert.False(t, res.Success)
	assert.Equal(t, []string{
		"Worksheet: Sheet1",
		`Mismatch in column B: Expected "Label", but found "Name" at B1`,
	}, res.Diagnostics)
}

func TestValidate_NumberRuleRejectsText(t *testing.T) {
	res := validate(t, NewEngine(), BytesSource("report_2023.csv", []byte("Id,Label\n1,x\n12a,y\n-3.5,z\n")), mustSchema(t, reportSchema))

	assert.False(t, res.Success)
	assert.Equal(t, []string{
		"Worksheet: Sheet1",
		`Invalid data type in column A, row 3: Expected type "number", but found "string" (12a) at A3`,
	}, res.Diagnostics)
}

func TestValidate_CSVBlankLinesKeepRowNumbers(t *testing.T) {
	s := mustSchema(t, `{"sheets":[{"columns":[{"name":"Id","type":"number"}]}]}`)

	res := validate(t, NewEngine(), BytesSource("ids.csv", []byte("Id\n1\n\nabc\n")), s)
	assert.Equal(t, []string{
		"Worksheet: Sheet1",
		`Invalid data type in column A, row 4: Expected type "number", but found "string" (abc) at A4`,
	}, res.Diagnostics)

	res = validate(t, NewEngine(), BytesSource("ids.csv", []byte("\nId\nabc\n")), s)
	assert.Equal(t, []string{
		"Worksheet: Sheet1",
		`Invalid data type in column A, row 3: Expected type "number", but found "string" (abc) at A3`,
	}, res.Diagnostics)
}

func TestValidate_EmptyCellsAreSkipped(t *testing.T) {
	res := validate(t, NewEngine(), BytesSource("report_2023.csv", []byte("Id,Label\n,x\n2,\n,\n3,z\n")), mustSchema(t, reportSchema))

	assert.True(t, res.Success)
	assert.Equal(t, []string{"Worksheet: Sheet1"}, res.Diagnostics)
}

func TestValidate_CSVUsesFirstSheetSpec(t *testing.T) {
	s := mustSchema(t, `{"sheets":[
		{"name":"Other","columns":[{"name":"Code","type":"/^[A-Z]+$/"}]},
		{"name":"Sheet1","columns":[{"name":"Id","type":"number"}]}
	]}`)
	res := validate(t, NewEngine(), BytesSource("codes.csv", []byte("Code\nAB\nab\n")), s)

	assert.False(t, res.Success)
	assert.Equal(t, []string{
		"Worksheet: Sheet1",
		`Invalid data type in column A, row 3: Expected type "/^[A-Z]+$/", but found "string" (ab) at A3`,
	}, res.Diagnostics)
}

func TestValidate_CSVWithoutSheetsIsSkipped(t *testing.T) {
	res := validate(t, NewEngine(), BytesSource("x.csv", []byte("a,b\n1,2\n")), mustSchema(t, `{"sheets":[]}`))

	assert.True(t, res.Success)
	assert.Equal(t, []string{"Worksheet: Sheet1: Skipping sheet - No columns specified."}, res.Diagnostics)
}

func TestValidate_UnsupportedFormat(t *testing.T) {
	s := mustSchema(t, `{"sheets":[{"columns":[{"name":"A","type":"string"}]}]}`)

	for _, name := range []string{"data.txt", "REPORT.CSV", "noextension"} {
		res := validate(t, NewEngine(), BytesSource(name, []byte("A\n1\n")), s)
		assert.False(t, res.Success, name)
		assert.Equal(t, []string{"Unsupported file format. Only .xlsx, .xls and .csv are supported."}, res.Diagnostics, name)
	}
}

func TestValidate_InvalidFileNamePatternContinues(t *testing.T) {
	s := mustSchema(t, `{"fileName":"/([a-z/","sheets":[{"columns":[{"name":"A","type":"number"}]}]}`)
	res := validate(t, NewEngine(), BytesSource("a.csv", []byte("A\n1\n")), s)

	assert.False(t, res.Success)
	require.Len(t, res.Diagnostics, 2)
	assert.True(t, strings.HasPrefix(res.Diagnostics[0], "Invalid regular expression for fileName: "), res.Diagnostics[0])
	assert.Equal(t, "Worksheet: Sheet1", res.Diagnostics[1])
}

func TestValidate_FileNameWithoutDelimiters(t *testing.T) {
	s := mustSchema(t, `{"fileName":"^orders$","sheets":[]}`)

	res := validate(t, NewEngine(), BytesSource("orders.csv", []byte("a\n")), s)
	assert.True(t, res.Success)

	res = validate(t, NewEngine(), BytesSource("dir/orders_old.csv", []byte("a\n")), s)
	assert.False(t, res.Success)
	assert.Contains(t, res.Diagnostics, `Mismatch in file name: Expected fileName in the format "^orders$", but found "orders_old"`)
}

func TestValidate_SpreadsheetRoundTrip(t *testing.T) {
	data := xlsxFile(t, sheetRows{name: "Data", rows: [][]any{
		{"ID", "label", "Code"},
		{1, "x", "AB-12"},
		{2.5, "y", "CD-34"},
	}})
	s := mustSchema(t, `{"sheets":[{"name":"data","columns":[
		{"name":"Id","type":"number"},
		{"name":"Label","type":"string"},
		{"name":"Code","type":"/^[A-Z]{2}-\\d+$/"}
	]}]}`)

	res := validate(t, NewEngine(), BytesSource("orders.xlsx", data), s)
	assert.True(t, res.Success)
	assert.Equal(t, []string{"Worksheet: Data"}, res.Diagnostics)
}

func TestValidate_EmptySheetsListSkipsEverySheet(t *testing.T) {
	data := xlsxFile(t,
		sheetRows{name: "One", rows: [][]any{{"a"}, {1}}},
		sheetRows{name: "Two", rows: [][]any{{"b"}, {2}}},
	)
	res := validate(t, NewEngine(), BytesSource("book.xlsx", data), mustSchema(t, `{"sheets":[]}`))

	assert.True(t, res.Success)
	assert.Equal(t, []string{
		"Worksheet: One: Skipping sheet - No columns specified.",
		"Worksheet: Two: Skipping sheet - No columns specified.",
	}, res.Diagnostics)
}

func TestValidate_SheetWithNoColumnsIsSkipped(t *testing.T) {
	data := xlsxFile(t, sheetRows{name: "Notes", rows: [][]any{{"free text"}}})
	res := validate(t, NewEngine(), BytesSource("book.xlsx", data), mustSchema(t, `{"sheets":[{"name":"Notes","columns":[]}]}`))

	assert.True(t, res.Success)
	assert.Equal(t, []string{"Worksheet: Notes: Skipping sheet - No columns specified."}, res.Diagnostics)
}

func TestValidate_EmptyWorksheetFails(t *testing.T) {
	data := xlsxFile(t,
		sheetRows{name: "Data", rows: [][]any{{"Id"}, {1}}},
		sheetRows{name: "Blank"},
	)
	s := mustSchema(t, `{"sheets":[{"columns":[{"name":"Id","type":"number"}]}]}`)
	res := validate(t, NewEngine(), BytesSource("book.xlsx", data), s)

	assert.False(t, res.Success)
	assert.Equal(t, []string{
		"Worksheet: Data",
		"Worksheet: Blank",
		"Worksheet Blank is empty.",
	}, res.Diagnostics)
}

func TestValidate_SheetMatching(t *testing.T) {
	data := xlsxFile(t,
		sheetRows{name: "Customers", rows: [][]any{{"Name"}, {"Ada"}}},
		sheetRows{name: "Orders", rows: [][]any{{"Total"}, {"lots"}}},
		sheetRows{name: "Extra", rows: [][]any{{"x"}}},
	)
	s := mustSchema(t, `{"sheets":[
		{"name":" ORDERS ","columns":[{"name":"Total","type":"number"}]},
		{"name":"Something else","columns":[{"name":"Name","type":"string"}]}
	]}`)
	res := validate(t, NewEngine(), BytesSource("book.xlsx", data), s)

	assert.False(t, res.Success)
	assert.Equal(t, []string{
		// Customers has no named spec and takes the spec at index 0, which expects "Total".
		"Worksheet: Customers",
		`Mismatch in column A: Expected "Total", but found "Name" at A1`,
		// Orders matches " ORDERS " by trimmed, case-insensitive name.
		"Worksheet: Orders",
		`Invalid data type in column A, row 2: Expected type "number", but found "string" (lots) at A2`,
		// Extra sits at index 2 and no spec exists there.
		"Worksheet: Extra: Skipping sheet - No columns specified.",
	}, res.Diagnostics)
}

func TestValidate_WildcardSpecMatchesEverySheet(t *testing.T) {
	data := xlsxFile(t,
		sheetRows{name: "Jan", rows: [][]any{{"Amount"}, {10}}},
		sheetRows{name: "Feb", rows: [][]any{{"Amount"}, {"n/a"}}},
	)
	s := mustSchema(t, `{"sheets":[{"columns":[{"name":"Amount","type":"number"}]}]}`)
	res := validate(t, NewEngine(), BytesSource("months.xls", data), s)

	assert.False(t, res.Success)
	assert.Equal(t, []string{
		"Worksheet: Jan",
		"Worksheet: Feb",
		`Invalid data type in column A, row 2: Expected type "number", but found "string" (n/a) at A2`,
	}, res.Diagnostics)
}

func TestValidate_RangeOffsetAndMultiLetterColumns(t *testing.T) {
	data := xlsxFile(t, sheetRows{name: "Wide", start: "Y3", rows: [][]any{
		{"A", "B", "C"},
		{1, 2, "x"},
	}})
	s := mustSchema(t, `{"sheets":[{"columns":[
		{"name":"A","type":"number"},
		{"name":"B","type":"number"},
		{"name":"C","type":"number"}
	]}]}`)
	res := validate(t, NewEngine(), BytesSource("wide.xlsx", data), s)

	assert.False(t, res.Success)
	assert.Equal(t, []string{
		"Worksheet: Wide",
		`Invalid data type in column AA, row 4: Expected type "number", but found "string" (x) at AA4`,
	}, res.Diagnostics)
}

func TestValidate_EmptyHeaderStillTypeChecks(t *testing.T) {
	f := excelize.NewFile()
	require.NoError(t, f.SetCellValue("Sheet1", "A1", "Id"))
	require.NoError(t, f.SetCellValue("Sheet1", "A2", 1))
	require.NoError(t, f.SetCellValue("Sheet1", "B2", "abc"))
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	require.NoError(t, f.Close())

	s := mustSchema(t, `{"sheets":[{"columns":[{"name":"Id","type":"number"},{"name":"Amount","type":"number"}]}]}`)
	res := validate(t, NewEngine(), BytesSource("book.xlsx", buf.Bytes()), s)

	assert.False(t, res.Success)
	assert.Equal(t, []string{
		"Worksheet: Sheet1",
		`Invalid data type in column B, row 2: Expected type "number", but found "string" (abc) at B2`,
	}, res.Diagnostics)
}

func TestValidate_PatternUsesSubstringMatch(t *testing.T) {
	s := mustSchema(t, `{"sheets":[{"columns":[{"name":"Ref","type":"/\\d{4}/"}]}]}`)
	res := validate(t, NewEngine(), BytesSource("refs.csv", []byte("Ref\nabc2023x\nnone\n")), s)

	assert.Equal(t, []string{
		"Worksheet: Sheet1",
		`Invalid data type in column A, row 3: Expected type "/\d{4}/", but found "string" (none) at A3`,
	}, res.Diagnostics)
}

func TestValidate_Idempotent(t *testing.T) {
	data := xlsxFile(t, sheetRows{name: "Data", rows: [][]any{
		{"Label", "Id"},
		{"x", "bad"},
	}})
	e := NewEngine()
	s := mustSchema(t, reportSchema)

	first := validate(t, e, BytesSource("report_1.xlsx", data), s)
	second := validate(t, e, BytesSource("report_1.xlsx", data), s)
	assert.Equal(t, first, second)
}

func TestValidate_UnreadableWorkbook(t *testing.T) {
	s := mustSchema(t, reportSchema)
	res := validate(t, NewEngine(), BytesSource("report_2023.xlsx", []byte("not a zip archive")), s)

	assert.False(t, res.Success)
	require.Len(t, res.Diagnostics, 1)
	assert.True(t, strings.HasPrefix(res.Diagnostics[0], "Unable to read file: "), res.Diagnostics[0])
}

func TestValidate_ParserError(t *testing.T) {
	e := NewEngine(WithParser("csv", parserFunc(func(context.Context, io.Reader) (*workbook.Workbook, error) {
		return nil, errors.New("boom")
	})))
	res := validate(t, e, BytesSource("a.csv", nil), mustSchema(t, `{"sheets":[]}`))

	assert.False(t, res.Success)
	assert.Equal(t, []string{"Unable to read file: boom"}, res.Diagnostics)
}

func TestValidate_ColumnBeyondLastAddressable(t *testing.T) {
	sheet := workbook.NewSheet("Edge")
	sheet.SetValue("XFD1", "A")
	sheet.Seal()

	e := NewEngine(WithParser("xlsx", staticParser(sheet)))
	s := mustSchema(t, `{"sheets":[{"columns":[{"name":"A","type":"string"},{"name":"B","type":"string"}]}]}`)
	res := validate(t, e, BytesSource("edge.xlsx", nil), s)

	assert.False(t, res.Success)
	assert.Equal(t, []string{
		"Worksheet: Edge",
		"Column 2 of worksheet Edge is beyond the last addressable column",
	}, res.Diagnostics)
}

func TestValidate_CSVBranchChecksRawValues(t *testing.T) {
	sheet := workbook.NewSheet("Sheet1")
	sheet.SetValue("A1", "When")
	sheet.SetValue("B1", "Qty")
	sheet.Set("A2", workbook.Cell{Raw: workbook.Date(time.Date(2023, 4, 5, 0, 0, 0, 0, time.UTC)), Display: "4/5/23", Type: "d"})
	sheet.Set("B2", workbook.Cell{Raw: workbook.Number(7), Display: "seven", Type: "n"})
	sheet.Seal()

	e := NewEngine(WithParser("csv", staticParser(sheet)))
	s := mustSchema(t, `{"sheets":[{"columns":[{"name":"When","type":"number"},{"name":"Qty","type":"number"}]}]}`)
	res := validate(t, e, BytesSource("raw.csv", nil), s)

	assert.Equal(t, []string{
		"Worksheet: Sheet1",
		`Invalid data type in column A, row 2: Expected type "number", but found "date" (2023-04-05) at A2`,
	}, res.Diagnostics)
}

func TestValidate_ParserChosenByExtension(t *testing.T) {
	legacy := workbook.NewSheet("Legacy")
	legacy.SetValue("A1", "Id")
	legacy.Seal()
	modern := workbook.NewSheet("Modern")
	modern.SetValue("A1", "Id")
	modern.Seal()

	e := NewEngine(
		WithParser("xls", staticParser(legacy)),
		WithParser("xlsx", staticParser(modern)),
	)
	s := mustSchema(t, `{"sheets":[{"columns":[{"name":"Id","type":"number"}]}]}`)

	assert.Equal(t, []string{"Worksheet: Legacy"}, validate(t, e, BytesSource("a.xls", nil), s).Diagnostics)
	assert.Equal(t, []string{"Worksheet: Modern"}, validate(t, e, BytesSource("a.xlsx", nil), s).Diagnostics)
}

func TestValidate_LegacyXLSWorkbook(t *testing.T) {
	s := mustSchema(t, `{"sheets":[{"name":"Table","columns":[
		{"name":"Code","type":"/^code\\d+$/"},
		{"name":"Name","type":"string"},
		{"name":"Description","type":"number"}
	]}]}`)
	res := validate(t, NewEngine(), FileSource(filepath.Join("..", "workbook", "testdata", "table.xls")), s)

	assert.False(t, res.Success)
	require.Len(t, res.Diagnostics, 12)
	assert.Equal(t, "Worksheet: Table", res.Diagnostics[0])
	assert.Equal(t, `Invalid data type in column C, row 2: Expected type "number", but found "string" (description1) at C2`, res.Diagnostics[1])
	assert.Equal(t, `Invalid data type in column C, row 12: Expected type "number", but found "string" (description11) at C12`, res.Diagnostics[11])
}

func TestValidate_CancelledWhileReading(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	e := NewEngine(WithParser("csv", parserFunc(func(ctx context.Context, _ io.Reader) (*workbook.Workbook, error) {
		cancel()
		return nil, ctx.Err()
	})))

	_, err := e.Validate(ctx, BytesSource("a.csv", nil), mustSchema(t, `{"sheets":[]}`))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFormatOf(t *testing.T) {
	tests := map[string]Format{
		"a.xlsx":       FormatSpreadsheet,
		"a.xls":        FormatSpreadsheet,
		"a.b.csv":      FormatCSV,
		`C:\dir\a.csv`: FormatCSV,
		"a.CSV":        FormatUnsupported,
		"a.xlsm":       FormatUnsupported,
		"csv":          FormatUnsupported,
	}
	for name, want := range tests {
		assert.Equal(t, want, FormatOf(name), name)
	}
}

func TestResult_Sections(t *testing.T) {
	res := Result{Diagnostics: []string{
		"Mismatch in file name: x",
		"Worksheet: A",
		"problem 1",
		"problem 2",
		"Worksheet: B",
		"Worksheet: C: Skipping sheet - No columns specified.",
	}}

	assert.Equal(t, []Section{
		{Title: "", Lines: []string{"Mismatch in file name: x"}},
		{Title: "A", Lines: []string{"problem 1", "problem 2"}},
		{Title: "B"},
		{Title: "C: Skipping sheet - No columns specified."},
	}, res.Sections())
	assert.Equal(t, 3, res.Problems())
	assert.True(t, IsMarker("Worksheet: A"))
	assert.False(t, IsMarker("Worksheet A is empty."))
}
