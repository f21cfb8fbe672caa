package ingest

import (
	"fmt"
	"strings"
)

// Ingest error codes (D100-D199)
const (
	ErrMissingHeader = "D100" // required column absent from header row
	ErrRaggedRow     = "D101" // row has a different field count than the header
	ErrEmptyField    = "D102" // required field is empty
	ErrBadTimestamp  = "D103" // timestamp does not parse as "02/01/2006 15:04:05"
	ErrBadCounter    = "D104" // counter is not a non-negative integer
	ErrEmptyFile     = "D105" // file has no header row
)

// RowError pinpoints one problem in one input file.
type RowError struct {
	File    string `json:"file"`
	Line    int    `json:"line"` // 1-based, header is line 1
	Column  string `json:"column,omitempty"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e RowError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("[%s] %s:%d: column %q: %s", e.Code, e.File, e.Line, e.Column, e.Message)
	}
	return fmt.Sprintf("[%s] %s:%d: %s", e.Code, e.File, e.Line, e.Message)
}

// ValidationError aggregates every row error found across a batch's input
// files. Returned instead of the first error so one run reports all
// problems.
type ValidationError struct {
	Rows []RowError
}

// Error summarizes the row errors, newline-separated.
func (e *ValidationError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d validation error(s):", len(e.Rows))
	for _, r := range e.Rows {
		b.WriteString("\n  ")
		b.WriteString(r.Error())
	}
	return b.String()
}
