package syncer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/hashicorp/go-cleanhttp"
)

// maxDatafileSize bounds the accepted datafile size.
const maxDatafileSize = 32 << 20

// Fetcher retrieves the raw datafile. etag is the version returned by the previous
// successful fetch; when the source has not changed since, Fetch returns changed=false.
type Fetcher interface {
	Fetch(ctx context.Context, etag string) (raw []byte, newETag string, changed bool, err error)
}

// HTTPFetcher polls a datafile URL using conditional requests.
type HTTPFetcher struct {
	client *http.Client
	url    string
	sdkKey string
}

// NewHTTPFetcher creates a fetcher for url. A non-empty sdkKey is sent as a bearer token.
func NewHTTPFetcher(url, sdkKey string, client *http.Client) *HTTPFetcher {
	if client == nil {
		client = cleanhttp.DefaultPooledClient()
	}
	return &HTTPFetcher{client: client, url: url, sdkKey: sdkKey}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, etag string) ([]byte, string, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return nil, "", false, fmt.Errorf("failed to build datafile request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if etag != "" {
		req.Header.Set("If-None-Match", etag)
	}
	if f.sdkKey != "" {
		req.Header.Set("Authorization", "Bearer "+f.sdkKey)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, "", false, fmt.Errorf("failed to fetch datafile: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotModified:
		return nil, etag, false, nil
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, "", false, fmt.Errorf("datafile endpoint returned %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxDatafileSize+1))
	if err != nil {
		return nil, "", false, fmt.Errorf("failed to read datafile: %w", err)
	}
	if len(raw) > maxDatafileSize {
		return nil, "", false, fmt.Errorf("datafile exceeds %d bytes", maxDatafileSize)
	}

	newETag := resp.Header.Get("ETag")
	if newETag == "" {
		newETag = digest(raw)
	}
	return raw, newETag, newETag != etag, nil
}

// FileFetcher reads a datafile from disk. Its etag is the content digest.
type FileFetcher struct {
	path string
}

func NewFileFetcher(path string) *FileFetcher {
	return &FileFetcher{path: path}
}

func (f *FileFetcher) Fetch(_ context.Context, etag string) ([]byte, string, bool, error) {
	raw, err := os.ReadFile(f.path)
	if err != nil {
		return nil, "", false, fmt.Errorf("failed to read datafile: %w", err)
	}
	newETag := digest(raw)
	if newETag == etag {
		return nil, etag, false, nil
	}
	return raw, newETag, true, nil
}

func digest(raw []byte) string {
	sum := sha256.Sum256(raw)
	return `"` + hex.EncodeToString(sum[:]) + `"`
}
