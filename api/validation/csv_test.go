package validation

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validHeader = "S. No.,Product Name,Input Image Urls\n"

func TestParseBatch_Valid(t *testing.T) {
	input := validHeader +
		`1,Shoe,"http://a/1.jpg, http://a/2.jpg"` + "\n" +
		`2, Hat ,"http://b/x.jpg,, ,"` + "\n"

	batch, err := ParseBatch(strings.NewReader(input))
	require.NoError(t, err)

	require.Len(t, batch.Items, 2)
	assert.NotEmpty(t, batch.RequestID)

	assert.Equal(t, "Shoe", batch.Items[0].ProductName)
	assert.Equal(t, []string{"http://a/1.jpg", "http://a/2.jpg"}, batch.Items[0].InputURLs)
	assert.Equal(t, 1, batch.Items[0].Position)
	assert.Empty(t, batch.Items[0].OutputPaths)

	assert.Equal(t, "Hat", batch.Items[1].ProductName)
	assert.Equal(t, []string{"http://b/x.jpg"}, batch.Items[1].InputURLs)
	assert.Equal(t, 2, batch.Items[1].Position)
}

func TestParseBatch_FreshRequestIDPerUpload(t *testing.T) {
	input := validHeader + "1,Shoe,http://a/1.jpg\n"

	first, err := ParseBatch(strings.NewReader(input))
	require.NoError(t, err)
	second, err := ParseBatch(strings.NewReader(input))
	require.NoError(t, err)

	assert.NotEqual(t, first.RequestID, second.RequestID)
}

func TestParseBatch_StripsBOM(t *testing.T) {
	input := "\ufeff" + validHeader + "1,Shoe,http://a/1.jpg\n"

	batch, err := ParseBatch(strings.NewReader(input))
	require.NoError(t, err)
	assert.Len(t, batch.Items, 1)
}

func TestParseBatch_Errors(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		sentinel error
		row      int
		contains string
	}{
		{
			name:     "empty file",
			input:    "",
			sentinel: ErrInvalidHeader,
			contains: "'S. No.', 'Product Name', 'Input Image Urls'",
		},
		{
			name:     "wrong header order",
			input:    "Product Name,S. No.,Input Image Urls\n1,Shoe,http://a/1.jpg\n",
			sentinel: ErrInvalidHeader,
			contains: "expected",
		},
		{
			name:     "header only",
			input:    validHeader,
			sentinel: ErrNoRows,
		},
		{
			name:     "too few columns",
			input:    validHeader + "1,Shoe\n",
			sentinel: ErrColumnCount,
			row:      1,
			contains: "expected 3 columns",
		},
		{
			name:     "too many columns",
			input:    validHeader + "1,Shoe,http://a/1.jpg\n2,Hat,http://b/1.jpg,extra\n",
			sentinel: ErrColumnCount,
			row:      2,
		},
		{
			name:     "non numeric serial",
			input:    validHeader + "one,Shoe,http://a/1.jpg\n",
			sentinel: ErrInvalidSerial,
			row:      1,
			contains: `"one"`,
		},
		{
			name:     "negative serial",
			input:    validHeader + "-1,Shoe,http://a/1.jpg\n",
			sentinel: ErrInvalidSerial,
			row:      1,
		},
		{
			name:     "no urls",
			input:    validHeader + `1,Shoe," , ,"` + "\n",
			sentinel: ErrNoURLs,
			row:      1,
			contains: `"Shoe"`,
		},
		{
			name:     "product name over column width",
			input:    validHeader + "1," + strings.Repeat("é", MaxProductNameLength+1) + ",http://a/1.jpg\n",
			sentinel: ErrProductName,
			row:      1,
			contains: "longer than 255",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			batch, err := ParseBatch(strings.NewReader(tt.input))
			require.Error(t, err)
			assert.Nil(t, batch)
			assert.True(t, errors.Is(err, tt.sentinel), "expected %v, got %v", tt.sentinel, err)

			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tt.row, verr.Row)
			if tt.contains != "" {
				assert.Contains(t, err.Error(), tt.contains)
			}
		})
	}
}

func TestSplitURLs(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, SplitURLs(" a ,,b, "))
	assert.Empty(t, SplitURLs(" , "))
}

func TestValidateCallbackURL(t *testing.T) {
	assert.NoError(t, ValidateCallbackURL(""))
	assert.NoError(t, ValidateCallbackURL("https://hooks.example.com/done"))

	for _, raw := range []string{"ftp://example.com", "/relative", "not a url", "http://"} {
		err := ValidateCallbackURL(raw)
		assert.ErrorIs(t, err, ErrInvalidCallback, raw)
	}
}

func TestParseBatch_ProductNameAtColumnWidth(t *testing.T) {
	name := strings.Repeat("é", MaxProductNameLength)
	batch, err := ParseBatch(strings.NewReader(validHeader + "1," + name + ",http://a/1.jpg\n"))
	require.NoError(t, err)
	assert.Equal(t, name, batch.Items[0].ProductName)
}
