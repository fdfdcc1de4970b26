package core

import (
	"fmt"
	"strings"
)

// MarkerPrefix starts every diagnostic that opens a worksheet section.
const MarkerPrefix = "Worksheet: "

// Result is the outcome of one validation run.
//
// Diagnostics are ordered. Lines starting with MarkerPrefix are section headers
// for the worksheet that follows; everything else is a detail line.
type Result struct {
	File        string   `json:"file"`
	Success     bool     `json:"success"`
	Diagnostics []string `json:"errors"`
}

func newResult(file string) Result {
	return Result{File: file, Success: true, Diagnostics: []string{}}
}

// add appends a diagnostic without changing Success.
func (r *Result) add(format string, args ...any) {
	r.Diagnostics = append(r.Diagnostics, fmt.Sprintf(format, args...))
}

// fail appends a diagnostic and marks the run failed.
func (r *Result) fail(format string, args ...any) {
	r.Success = false
	r.add(format, args...)
}

// IsMarker reports whether a diagnostic line is a worksheet section header.
func IsMarker(line string) bool {
	return strings.HasPrefix(line, MarkerPrefix)
}

// Section is a worksheet header with the detail lines reported under it.
// Lines reported before any marker belong to a section with an empty Title.
type Section struct {
	Title string
	Lines []string
}

// Sections groups the diagnostics under their worksheet markers.
func (r Result) Sections() []Section {
	var out []Section
	for _, line := range r.Diagnostics {
		if IsMarker(line) {
			out = append(out, Section{Title: strings.TrimPrefix(line, MarkerPrefix)})
			continue
		}
		if len(out) == 0 {
			out = append(out, Section{})
		}
		last := &out[len(out)-1]
		last.Lines = append(last.Lines, line)
	}
	return out
}

// Problems counts the detail lines, i.e. every diagnostic except markers.
func (r Result) Problems() int {
	n := 0
	for _, line := range r.Diagnostics {
		if !IsMarker(line) {
			n++
		}
	}
	return n
}
