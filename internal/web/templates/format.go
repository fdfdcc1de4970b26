// Package templates holds the HTML pages of the web UI. The *_templ.go files are
// generated from the .templ sources with `templ generate`.
package templates

import "strconv"

// Plural renders a count with its noun, e.g. "1 problem", "3 problems".
func Plural(n int, noun string) string {
	if n == 1 {
		return "1 " + noun
	}
	return strconv.Itoa(n) + " " + noun + "s"
}

// FormatBytes renders a size with a binary unit, e.g. 32 MB.
func FormatBytes(n int64) string {
	const unit = 1024
	switch {
	case n >= unit*unit*unit:
		return strconv.FormatFloat(float64(n)/(unit*unit*unit), 'f', -1, 64) + " GB"
	case n >= unit*unit:
		return strconv.FormatFloat(float64(n)/(unit*unit), 'f', -1, 64) + " MB"
	case n >= unit:
		return strconv.FormatFloat(float64(n)/unit, 'f', -1, 64) + " KB"
	}
	return strconv.FormatInt(n, 10) + " bytes"
}
