package validation

import (
	"errors"
	"fmt"
)

var (
	ErrNotCSV          = errors.New("only CSV files are allowed")
	ErrFileTooLarge    = errors.New("file size exceeds limit")
	ErrInvalidHeader   = errors.New("invalid CSV header")
	ErrNoRows          = errors.New("no data rows")
	ErrColumnCount     = errors.New("invalid column count")
	ErrInvalidSerial   = errors.New("invalid serial number")
	ErrNoURLs          = errors.New("no input image urls")
	ErrProductName     = errors.New("invalid product name")
	ErrInvalidCallback = errors.New("invalid callback url")
)

// ValidationError reports why an uploaded batch was rejected. Row is the
// 1-based data row, or 0 when the problem is not tied to a row.
type ValidationError struct {
	Row    int
	Value  string
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	if e.Row > 0 {
		return fmt.Sprintf("row %d: %s", e.Row, e.Reason)
	}
	return e.Reason
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func newError(row int, value string, err error, format string, args ...any) *ValidationError {
	return &ValidationError{
		Row:    row,
		Value:  value,
		Reason: fmt.Sprintf(format, args...),
		Err:    err,
	}
}
