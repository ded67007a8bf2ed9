package maintenance

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultUploadTimeout bounds a single upload attempt.
const DefaultUploadTimeout = 30 * time.Second

// HTTPUploader posts spool contents to a remote endpoint as text/plain.
type HTTPUploader struct {
	// URL is the endpoint to POST to.
	URL string

	// Client is the HTTP client to use. Defaults to a client with
	// DefaultUploadTimeout.
	Client *http.Client
}

// Upload posts data to the configured URL. Any non-2xx response is an
// error so the caller keeps the spool for retry.
func (u *HTTPUploader) Upload(ctx context.Context, name string, data []byte) error {
	client := u.Client
	if client == nil {
		client = &http.Client{Timeout: DefaultUploadTimeout}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.URL, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	req.Header.Set("X-Spool-Name", name)

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("post to %s: %w", u.URL, err)
	}
	defer resp.Body.Close()

	// Drain so the connection can be reused.
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("upload rejected: %s", resp.Status)
	}
	return nil
}
