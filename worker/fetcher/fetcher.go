package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	DefaultTimeout = 10 * time.Second
	MaxImageBytes  = 50 << 20
)

var (
	ErrBadStatus = errors.New("unexpected response status")
	ErrTooLarge  = errors.New("image exceeds size limit")
)

// Fetcher downloads source images. Every call is bounded by the client
// timeout.
type Fetcher struct {
	client   *http.Client
	maxBytes int64
}

func New(timeout time.Duration) *Fetcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Fetcher{
		client:   &http.Client{Timeout: timeout},
		maxBytes: MaxImageBytes,
	}
}

func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("fetch %s: %w: %d", url, ErrBadStatus, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", url, err)
	}
	if int64(len(data)) > f.maxBytes {
		return nil, fmt.Errorf("fetch %s: %w", url, ErrTooLarge)
	}

	return data, nil
}
