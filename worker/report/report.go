package report

import (
	"bytes"
	"encoding/csv"
	"strconv"
	"strings"

	"imageBatch/worker/models"
)

const ContentType = "text/csv"

var Header = []string{"S. No.", "Product Name", "Input Image Urls", "Output Image Paths"}

// FileName is the report name for a request.
func FileName(requestID string) string {
	return requestID + "_output.csv"
}

// Build renders one row per item, numbered from 1 in processing order, with
// input URLs and output paths newline-joined.
func Build(items []models.ItemResult) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(Header); err != nil {
		return nil, err
	}

	for i, item := range items {
		row := []string{
			strconv.Itoa(i + 1),
			item.ProductName,
			strings.Join(item.InputURLs, "\n"),
			strings.Join(item.OutputPaths, "\n"),
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
