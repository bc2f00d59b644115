// Package imagefetch downloads camera snapshots.
package imagefetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dpup/wolfcreekpass/server/internal/config"
)

// ErrTooLarge is returned when an image exceeds the configured size cap
var ErrTooLarge = errors.New("image exceeds size limit")

// Downloader fetches image bytes over HTTP
type Downloader struct {
	httpClient *http.Client
	maxBytes   int64
}

// NewDownloader creates a downloader from the capture settings
func NewDownloader(cfg config.CaptureConfig) *Downloader {
	timeout := cfg.DownloadTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	maxBytes := cfg.MaxImageBytes
	if maxBytes <= 0 {
		maxBytes = 10 << 20
	}
	return &Downloader{httpClient: &http.Client{Timeout: timeout}, maxBytes: maxBytes}
}

// Download returns the body of url. Non-2xx responses, empty bodies and
// bodies over the size cap are errors.
func (d *Downloader) Download(ctx context.Context, url string) ([]byte, error) {
	if url == "" {
		return nil, errors.New("camera has no image url")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "image/*")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("failed to download %s: status %d", url, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, d.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", url, err)
	}
	if int64(len(data)) > d.maxBytes {
		return nil, fmt.Errorf("%s: %w (%d bytes)", url, ErrTooLarge, d.maxBytes)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%s: empty image", url)
	}
	return data, nil
}
