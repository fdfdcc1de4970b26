package schema

import (
	"fmt"
	"regexp"
	"strings"
)

// RuleKind identifies the variant of a TypeRule.
type RuleKind int

const (
	RuleString RuleKind = iota
	RuleNumber
	RulePattern
)

// TypeRule is the value constraint of a column: a plain string, a number, or a
// regular expression pattern.
type TypeRule struct {
	kind    RuleKind
	source  string
	pattern *regexp.Regexp
}

// String returns the rule as written in a schema document.
func (r TypeRule) String() string {
	switch r.kind {
	case RuleNumber:
		return "number"
	case RulePattern:
		return "/" + r.source + "/"
	default:
		return "string"
	}
}

// Kind returns the rule's variant.
func (r TypeRule) Kind() RuleKind {
	return r.kind
}

// Source returns the pattern source without delimiters. Empty for non-pattern rules.
func (r TypeRule) Source() string {
	return r.source
}

// Regexp returns the compiled pattern, or nil for non-pattern rules.
func (r TypeRule) Regexp() *regexp.Regexp {
	return r.pattern
}

// StringRule accepts any value.
func StringRule() TypeRule {
	return TypeRule{kind: RuleString}
}

// NumberRule accepts values that coerce to a number.
func NumberRule() TypeRule {
	return TypeRule{kind: RuleNumber}
}

// PatternRule compiles source (without delimiters) into a pattern rule.
func PatternRule(source string) (TypeRule, error) {
	re, err := regexp.Compile(source)
	if err != nil {
		return TypeRule{}, &RuleError{Raw: "/" + source + "/", Err: err}
	}
	return TypeRule{kind: RulePattern, source: source, pattern: re}, nil
}

// MustPatternRule is like PatternRule but panics on an invalid pattern.
// Intended for tests and package-level rule tables.
func MustPatternRule(source string) TypeRule {
	r, err := PatternRule(source)
	if err != nil {
		panic(err)
	}
	return r
}

// ParseTypeRule classifies a raw type string from a schema document.
//
// "string" and "number" are literal; a value that starts and ends with "/" is a
// pattern whose body is compiled. Everything else is rejected.
func ParseTypeRule(raw string) (TypeRule, error) {
	switch raw {
	case "string":
		return StringRule(), nil
	case "number":
		return NumberRule(), nil
	}
	if isDelimited(raw) {
		return PatternRule(stripDelimiters(raw))
	}
	return TypeRule{}, &RuleError{Raw: raw}
}

// RuleError reports a type string that is not a valid rule.
type RuleError struct {
	Raw string
	Err error // compile error for patterns, nil for unknown literals
}

func (e *RuleError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid pattern %s: %v", e.Raw, e.Err)
	}
	return fmt.Sprintf("unknown type %q (want \"string\", \"number\" or /pattern/)", e.Raw)
}

func (e *RuleError) Unwrap() error {
	return e.Err
}

func isDelimited(s string) bool {
	return len(s) >= 2 && strings.HasPrefix(s, "/") && strings.HasSuffix(s, "/")
}

// stripDelimiters removes one leading and one trailing "/" when both are present.
func stripDelimiters(s string) string {
	if isDelimited(s) {
		return s[1 : len(s)-1]
	}
	return s
}
