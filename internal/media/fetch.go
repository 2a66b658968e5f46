package media

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"izumi/pkg/retrylimit"
)

// Fetcher downloads media over HTTP with a size cap.
type Fetcher struct {
	client *http.Client
	tmpDir string
}

// NewFetcher uses client, or a client with a 60s timeout when nil.
func NewFetcher(client *http.Client, tmpDir string) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	return &Fetcher{client: client, tmpDir: tmpDir}
}

// Blob is downloaded content, in memory or spilled to a temp file.
type Blob struct {
	Data        []byte
	Path        string
	ContentType string
}

// Close removes the temp file, if any.
func (b *Blob) Close() {
	if b != nil && b.Path != "" {
		_ = os.Remove(b.Path)
	}
}

// Fetch downloads url. Bodies above limit fail with ErrTooLarge; bodies above
// the inline threshold are written to a temp file.
func (f *Fetcher) Fetch(ctx context.Context, url string, limit int64) (*Blob, error) {
	var blob *Blob
	err := retrylimit.WithRetryMax(ctx, func() error {
		b, err := f.fetchOnce(ctx, url, limit)
		if err != nil {
			return err
		}
		blob = b
		return nil
	}, nil, 3)
	return blob, err
}

func (f *Fetcher) fetchOnce(ctx context.Context, url string, limit int64) (*Blob, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, retrylimit.Fatal(err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		serr := &retrylimit.StatusError{Code: resp.StatusCode, URL: url}
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return nil, serr
		}
		return nil, retrylimit.Fatal(serr)
	}
	if resp.ContentLength > limit {
		return nil, retrylimit.Fatal(fmt.Errorf("%w: %d bytes", ErrTooLarge, resp.ContentLength))
	}

	ct := resp.Header.Get("Content-Type")
	body := io.LimitReader(resp.Body, limit+1)

	var head bytes.Buffer
	n, err := io.CopyN(&head, body, maxInlineBytes+1)
	if err != nil && err != io.EOF {
		return nil, err
	}
	if n > limit {
		return nil, retrylimit.Fatal(fmt.Errorf("%w: over %d bytes", ErrTooLarge, limit))
	}
	if n <= maxInlineBytes {
		return &Blob{Data: head.Bytes(), ContentType: ct}, nil
	}

	tmp, err := os.CreateTemp(f.tmpDir, "media-*")
	if err != nil {
		return nil, retrylimit.Fatal(err)
	}
	total, err := io.Copy(tmp, io.MultiReader(&head, body))
	cerr := tmp.Close()
	if err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(tmp.Name())
		return nil, err
	}
	if total > limit {
		_ = os.Remove(tmp.Name())
		return nil, retrylimit.Fatal(fmt.Errorf("%w: over %d bytes", ErrTooLarge, limit))
	}
	return &Blob{Path: tmp.Name(), ContentType: ct}, nil
}
