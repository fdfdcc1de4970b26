package workbook

import (
	"strconv"
	"time"
)

// Kind identifies the variant held by a Value.
type Kind int

const (
	KindEmpty Kind = iota
	KindText
	KindNumber
	KindDate
	KindBool
)

// Value is a cell's underlying value. The zero Value is empty.
//
// Parsers decide the variant; the validator only ever looks at Kind and String, so
// the set of variants is closed.
type Value struct {
	kind Kind
	text string
	num  float64
	date time.Time
	b    bool
}

// Text returns a text value. An empty string yields an empty Value.
func Text(s string) Value {
	if s == "" {
		return Value{}
	}
	return Value{kind: KindText, text: s}
}

// Number returns a numeric value.
func Number(f float64) Value {
	return Value{kind: KindNumber, num: f}
}

// Date returns a date value.
func Date(t time.Time) Value {
	return Value{kind: KindDate, date: t}
}

// Bool returns a boolean value.
func Bool(b bool) Value {
	return Value{kind: KindBool, b: b}
}

// Kind returns the variant.
func (v Value) Kind() Kind {
	return v.kind
}

// IsEmpty reports whether the value carries nothing.
func (v Value) IsEmpty() bool {
	return v.kind == KindEmpty
}

// Float returns the numeric payload and whether the value is a number.
func (v Value) Float() (float64, bool) {
	return v.num, v.kind == KindNumber
}

// String returns the canonical text form of the value.
func (v Value) String() string {
	switch v.kind {
	case KindText:
		return v.text
	case KindNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case KindDate:
		if v.date.Hour() == 0 && v.date.Minute() == 0 && v.date.Second() == 0 && v.date.Nanosecond() == 0 {
			return v.date.Format("2006-01-02")
		}
		return v.date.Format("2006-01-02T15:04:05")
	case KindBool:
		if v.b {
			return "TRUE"
		}
		return "FALSE"
	default:
		return ""
	}
}

// KindName names the variant the way diagnostics report it.
func (v Value) KindName() string {
	switch v.kind {
	case KindText:
		return "string"
	case KindNumber:
		return "number"
	case KindDate:
		return "date"
	case KindBool:
		return "boolean"
	default:
		return "empty"
	}
}
