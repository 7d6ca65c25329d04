// Package notify uploads motion snapshots to the printer's snapshot
// endpoint. The upload is a single blocking PUT with no retry; the caller
// only logs the outcome.
package notify

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// The upload can be slow on a congested uplink, so give it a generous but
// bounded window.
const defaultTimeout = 30 * time.Second

// Client uploads snapshot files to a fixed URL, identifying the camera by a
// fingerprint and authenticating with a token.
type Client struct {
	url         string
	token       string
	fingerprint string
	httpClient  *http.Client
}

// NewClient creates a Client for the given endpoint and credentials.
func NewClient(url, token, fingerprint string) *Client {
	return &Client{
		url:         url,
		token:       token,
		fingerprint: fingerprint,
		httpClient:  &http.Client{Timeout: defaultTimeout},
	}
}

// Notify uploads the file at path. It blocks until the upload completes or
// times out and returns an error for any network or non-2xx failure.
func (c *Client) Notify(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading snapshot %s: %w", path, err)
	}

	req, err := http.NewRequest(http.MethodPut, c.url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("building snapshot request: %w", err)
	}

	req.Header.Set("accept", "*/*")
	req.Header.Set("content-type", "image/jpg")
	req.Header.Set("fingerprint", c.fingerprint)
	req.Header.Set("token", c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("uploading snapshot %s: %w", path, err)
	}
	defer resp.Body.Close()

	// Drain so the connection can be reused.
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("snapshot upload rejected: %s", resp.Status)
	}

	return nil
}
