// Package storage persists converted images and reports. Saved artifacts are
// never rewritten; callers pick fresh names.
package storage

import (
	"context"
)

type Store interface {
	// Save writes data under name and returns the location recorded in the
	// request store and the report.
	Save(ctx context.Context, name string, data []byte, contentType string) (string, error)
}
