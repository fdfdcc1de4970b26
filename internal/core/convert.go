package core

// convert.go decides whether a cell value satisfies a column's type rule.
//
// Spreadsheet display values are always text, so the checks work on strings:
//   - string rules accept anything
//   - number rules accept what a loose numeric coercion accepts: surrounding
//     whitespace, an optional sign, decimals, exponents, "Infinity", and
//     0x/0o/0b integer literals
//   - pattern rules accept any value the regular expression finds a match in
//
// Raw values from a CSV sheet are text as well. Raw values from other parsers go
// through coerceRaw, which keeps the same rules for text and is explicit about the
// non-text kinds.

import (
	"errors"
	"strconv"
	"strings"
	"unicode"

	"github.com/JonMunkholm/sheetguard/internal/schema"
	"github.com/JonMunkholm/sheetguard/internal/workbook"
)

// IsNumeric reports whether s coerces to a number.
//
// Whitespace-only input coerces to zero and is accepted. A byte order mark counts
// as whitespace. NaN is rejected, as are Go-only spellings such as "inf", "1_000"
// and hexadecimal floats.
func IsNumeric(s string) bool {
	s = strings.TrimFunc(s, isCoercionSpace)
	if s == "" {
		return true
	}

	unsigned := strings.TrimLeft(s, "+-")
	if len(s)-len(unsigned) > 1 {
		return false
	}
	if unsigned == "Infinity" {
		return true
	}

	if len(unsigned) > 2 && unsigned[0] == '0' {
		base := 0
		switch unsigned[1] {
		case 'x', 'X':
			base = 16
		case 'o', 'O':
			base = 8
		case 'b', 'B':
			base = 2
		}
		if base != 0 {
			// Prefixed literals take no sign.
			if unsigned != s {
				return false
			}
			return parsesAsUint(unsigned[2:], base)
		}
	}

	lower := strings.ToLower(unsigned)
	if strings.HasPrefix(lower, "inf") || strings.HasPrefix(lower, "nan") {
		return false
	}
	for i := 0; i < len(unsigned); i++ {
		ch := unsigned[i]
		if ch == '_' || ch == 'x' || ch == 'X' || ch == 'p' || ch == 'P' {
			return false
		}
	}

	_, err := strconv.ParseFloat(s, 64)
	return err == nil || errors.Is(err, strconv.ErrRange)
}

func isCoercionSpace(r rune) bool {
	return unicode.IsSpace(r) || r == '\ufeff'
}

func parsesAsUint(digits string, base int) bool {
	if strings.Contains(digits, "_") {
		return false
	}
	_, err := strconv.ParseUint(digits, base, 64)
	return err == nil || errors.Is(err, strconv.ErrRange)
}

// MatchesText reports whether a text value satisfies rule.
func MatchesText(rule schema.TypeRule, value string) bool {
	switch rule.Kind() {
	case schema.RuleString:
		return true
	case schema.RuleNumber:
		return IsNumeric(value)
	case schema.RulePattern:
		re := rule.Regexp()
		return re != nil && re.MatchString(value)
	}
	return false
}

// MatchesValue reports whether a raw cell value satisfies rule.
//
// Text goes through MatchesText. A number satisfies number rules. Dates and
// booleans satisfy only string rules. Every non-empty kind is checked against a
// pattern through its String form.
func MatchesValue(rule schema.TypeRule, v workbook.Value) bool {
	switch v.Kind() {
	case workbook.KindText:
		return MatchesText(rule, v.String())
	case workbook.KindEmpty:
		return true
	}

	switch rule.Kind() {
	case schema.RuleString:
		return true
	case schema.RuleNumber:
		_, ok := v.Float()
		return ok
	case schema.RulePattern:
		re := rule.Regexp()
		return re != nil && re.MatchString(v.String())
	}
	return false
}
