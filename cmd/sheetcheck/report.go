package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/JonMunkholm/sheetguard/internal/core"
	"github.com/JonMunkholm/sheetguard/internal/schema"
)

// writeTextReport prints one status line per file followed by its diagnostics,
// indented under their worksheet.
func writeTextReport(w io.Writer, results []core.Result) error {
	failed := 0
	for _, res := range results {
		if res.Success {
			if _, err := fmt.Fprintf(w, "%s: passed\n", res.File); err != nil {
				return err
			}
		} else {
			failed++
			if _, err := fmt.Fprintf(w, "%s: FAILED (%d problems)\n", res.File, res.Problems()); err != nil {
				return err
			}
		}

		for _, sec := range res.Sections() {
			indent := "  "
			if sec.Title != "" {
				if _, err := fmt.Fprintf(w, "  Worksheet %s\n", sec.Title); err != nil {
					return err
				}
				indent = "    "
			}
			for _, line := range sec.Lines {
				if _, err := fmt.Fprintf(w, "%s%s\n", indent, line); err != nil {
					return err
				}
			}
		}
	}

	_, err := fmt.Fprintf(w, "\n%d of %d files passed\n", len(results)-failed, len(results))
	return err
}

func writeJSONReport(w io.Writer, results []core.Result) error {
	if results == nil {
		results = []core.Result{}
	}
	return writeJSON(w, results)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeSchemaSummary(w io.Writer, path string, sch *schema.Schema) error {
	columns := 0
	for _, sheet := range sch.Sheets {
		columns += len(sheet.Columns)
	}
	if _, err := fmt.Fprintf(w, "%s: ok (%d sheets, %d columns)\n", path, len(sch.Sheets), columns); err != nil {
		return err
	}
	if sch.FileName != "" {
		if _, err := fmt.Fprintf(w, "  fileName %s\n", sch.FileName); err != nil {
			return err
		}
	}
	for i, sheet := range sch.Sheets {
		name := sheet.Name
		if name == "" {
			name = fmt.Sprintf("(position %d)", i+1)
		}
		if _, err := fmt.Fprintf(w, "  sheet %s: %d columns\n", name, len(sheet.Columns)); err != nil {
			return err
		}
	}
	return nil
}
