package validation

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckUpload(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		size     int64
		content  string
		wantErr  error
	}{
		{"plain csv", "batch.csv", 40, validHeader + "1,Shoe,http://a/1.jpg\n", nil},
		{"upper case extension", "BATCH.CSV", 40, validHeader, nil},
		{"wrong extension", "batch.txt", 40, validHeader, ErrNotCSV},
		{"too large", "batch.csv", 2048, validHeader, ErrFileTooLarge},
		{"png disguised as csv", "batch.csv", 16, "\x89PNG\r\n\x1a\n0000", ErrNotCSV},
		{"nul bytes", "batch.csv", 8, "a,b\x00c\n", ErrNotCSV},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := strings.NewReader(tt.content)
			err := CheckUpload(tt.filename, tt.size, 1024, r)
			if tt.wantErr == nil {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
		})
	}
}

func TestCheckUpload_RewindsReader(t *testing.T) {
	content := validHeader + "1,Shoe,http://a/1.jpg\n"
	r := strings.NewReader(content)

	require.NoError(t, CheckUpload("batch.csv", int64(len(content)), 0, r))

	rest, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, content, string(rest))
}
