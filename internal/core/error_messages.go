package core

// error_messages.go maps errors to messages a person uploading a file can act on.
//
// Each message carries a code that support can look up:
//
//	SCH001  invalid schema document        fix the document's sheets/columns/type entries
//	SCH002  schema not found               pick an existing schema
//	SCH003  invalid schema name            use a plain .json/.yaml/.yml file name
//	FILE001 file too large                 split the workbook
//	FILE002 no file supplied               choose a file
//	FILE003 no schema supplied             choose or paste a schema
//	UPL001  too many validations running   retry shortly
//	UPL002  request cancelled or timed out retry, or validate a smaller file
//	RATE001 rate limited                   slow down
//	GEN001  anything else                  check the server log for the technical error
//
// Sentinel errors are matched with errors.Is. Errors that only exist as text
// (from other libraries) fall back to a case-insensitive substring table.

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/JonMunkholm/sheetguard/internal/schema"
	"github.com/JonMunkholm/sheetguard/internal/store"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string `json:"message"` // What happened
	Action  string `json:"action"`  // What to do about it
	Code    string `json:"code"`    // Support reference
}

var (
	msgInvalidSchema = UserMessage{
		Message: "The schema document is not valid",
		Action:  "Check that every sheet has a columns list and every column a name and a type of string, number or /regex/",
		Code:    "SCH001",
	}
	msgSchemaNotFound = UserMessage{
		Message: "Schema not found",
		Action:  "Choose one of the listed schemas or upload it first",
		Code:    "SCH002",
	}
	msgInvalidName = UserMessage{
		Message: "The schema name is not valid",
		Action:  "Use a plain file name ending in .json, .yaml or .yml",
		Code:    "SCH003",
	}
	msgFileTooLarge = UserMessage{
		Message: "File exceeds the maximum upload size",
		Action:  "Split the workbook into smaller files",
		Code:    "FILE001",
	}
	msgMissingFile = UserMessage{
		Message: "No file was supplied",
		Action:  "Choose an .xlsx, .xls or .csv file to validate",
		Code:    "FILE002",
	}
	msgMissingSchema = UserMessage{
		Message: "No schema was supplied",
		Action:  "Choose a stored schema or paste a schema document",
		Code:    "FILE003",
	}
	msgTooMany = UserMessage{
		Message: "The validator is busy with other files",
		Action:  "Please wait a moment and try again",
		Code:    "UPL001",
	}
	msgCancelled = UserMessage{
		Message: "The request was cancelled or timed out",
		Action:  "Try again, or validate a smaller file",
		Code:    "UPL002",
	}
	msgRateLimited = UserMessage{
		Message: "Too many requests",
		Action:  "Please wait a moment before trying again",
		Code:    "RATE001",
	}
)

// ErrRateLimited is returned by callers that throttle requests.
var ErrRateLimited = errors.New("rate limit exceeded")

var sentinelMessages = []struct {
	target error
	msg    UserMessage
}{
	{schema.ErrInvalidSchema, msgInvalidSchema},
	{store.ErrNotFound, msgSchemaNotFound},
	{store.ErrInvalidName, msgInvalidName},
	{ErrFileTooLarge, msgFileTooLarge},
	{ErrMissingFile, msgMissingFile},
	{ErrMissingSchema, msgMissingSchema},
	{ErrTooManyValidations, msgTooMany},
	{context.Canceled, msgCancelled},
	{context.DeadlineExceeded, msgCancelled},
	{ErrRateLimited, msgRateLimited},
}

// textMessages catches errors that arrive without a sentinel. First match wins.
var textMessages = []struct {
	pattern string
	msg     UserMessage
}{
	{"request body too large", msgFileTooLarge},
	{"no such file", msgMissingFile},
	{"context canceled", msgCancelled},
	{"deadline exceeded", msgCancelled},
	{"rate limit", msgRateLimited},
}

// defaultMessage is the GEN001 fallback.
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "GEN001",
}

// MapError converts an error to a user-facing message. Nil maps to the zero
// UserMessage; unknown errors map to GEN001.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	for _, sm := range sentinelMessages {
		if errors.Is(err, sm.target) {
			return sm.msg
		}
	}

	text := strings.ToLower(err.Error())
	for _, tm := range textMessages {
		if strings.Contains(text, tm.pattern) {
			return tm.msg
		}
	}

	return defaultMessage
}

// FormatUserError renders an error as "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to a specific message rather than GEN001.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError pairs a technical error (for logs) with its user message (for display).
type UserError struct {
	Technical error
	User      UserMessage
}

func (e *UserError) Error() string {
	return e.User.Message
}

func (e *UserError) Unwrap() error {
	return e.Technical
}

// NewUserError maps err to a UserError. Returns nil if err is nil.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{Technical: err, User: MapError(err)}
}
