package validation

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"imageBatch/api/models"
)

var ExpectedHeader = []string{"S. No.", "Product Name", "Input Image Urls"}

const utf8BOM = "\ufeff"

// Batch is a fully validated upload: one fresh request id and its items in
// file order.
type Batch struct {
	RequestID string
	Items     []models.Item
}

// ParseBatch reads an uploaded CSV and validates every row. Validation is
// all-or-nothing: on any error no partial batch is returned.
func ParseBatch(r io.Reader) (*Batch, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, headerError()
	}
	if err != nil {
		return nil, parseError(err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], utf8BOM)
	}
	if !equalFields(header, ExpectedHeader) {
		return nil, headerError()
	}

	var items []models.Item
	for row := 1; ; row++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, parseError(err)
		}

		item, err := parseRow(row, record)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}

	if len(items) == 0 {
		return nil, newError(0, "", ErrNoRows, "CSV file contains no data rows")
	}

	return &Batch{
		RequestID: uuid.New().String(),
		Items:     items,
	}, nil
}

// MaxProductNameLength matches the product_name column width.
const MaxProductNameLength = 255

func parseRow(row int, record []string) (models.Item, error) {
	if len(record) != len(ExpectedHeader) {
		return models.Item{}, newError(row, strings.Join(record, ","), ErrColumnCount,
			"invalid row format: %q, expected %d columns, got %d", record, len(ExpectedHeader), len(record))
	}

	serial, productName, rawURLs := record[0], strings.TrimSpace(record[1]), record[2]

	if !isDigits(serial) {
		return models.Item{}, newError(row, serial, ErrInvalidSerial,
			"invalid S. No. value: %q, it must be a number", serial)
	}

	if utf8.RuneCountInString(productName) > MaxProductNameLength {
		return models.Item{}, newError(row, productName, ErrProductName,
			"product name is longer than %d characters", MaxProductNameLength)
	}

	urls := SplitURLs(rawURLs)
	if len(urls) == 0 {
		return models.Item{}, newError(row, productName, ErrNoURLs,
			"invalid Input Image Urls for %q, at least one URL is required", productName)
	}

	return models.Item{
		Position:    row,
		ProductName: productName,
		InputURLs:   urls,
		OutputPaths: []string{},
		Status:      models.StatusPending,
	}, nil
}

// SplitURLs splits a comma separated URL cell, trimming each token and
// dropping empty ones.
func SplitURLs(raw string) []string {
	var urls []string
	for _, token := range strings.Split(raw, ",") {
		if token = strings.TrimSpace(token); token != "" {
			urls = append(urls, token)
		}
	}
	return urls
}

// ValidateCallbackURL accepts an empty value or an absolute http(s) URL.
func ValidateCallbackURL(raw string) error {
	if raw == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return newError(0, raw, ErrInvalidCallback, "invalid webhook_url %q, expected an absolute http(s) URL", raw)
	}
	return nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func equalFields(got, want []string) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}

func headerError() *ValidationError {
	return newError(0, "", ErrInvalidHeader, "invalid CSV header, expected: %s", quoteFields(ExpectedHeader))
}

func parseError(err error) *ValidationError {
	var pe *csv.ParseError
	if errors.As(err, &pe) {
		return newError(0, "", err, "malformed CSV at line %d: %v", pe.Line, pe.Err)
	}
	return newError(0, "", err, "malformed CSV: %v", err)
}

func quoteFields(fields []string) string {
	quoted := make([]string, len(fields))
	for i, f := range fields {
		quoted[i] = fmt.Sprintf("'%s'", f)
	}
	return strings.Join(quoted, ", ")
}
