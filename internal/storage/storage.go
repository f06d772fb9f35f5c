// Package storage talks to the hosted object-storage service that keeps
// uploaded model files for fulfillment.
package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ObjectStore is the narrow contract the upload pipeline needs from
// durable storage.
type ObjectStore interface {
	Upload(ctx context.Context, path string, data []byte, contentType string) error
	CreateSignedURL(ctx context.Context, path string, ttl time.Duration) (string, error)
	PublicURL(path string) string
	Exists(ctx context.Context, path string) (bool, error)
}

// Client implements ObjectStore against the storage service's REST API
// using a service key. Construct one per process and inject it; there is
// no package-level singleton.
type Client struct {
	endpoint   string
	bucket     string
	serviceKey string
	httpClient *http.Client
}

// NewClient returns a Client for the given bucket. Requests share a 60
// second timeout, matching the single-shot upload budget.
func NewClient(endpoint, bucket, serviceKey string) *Client {
	return &Client{
		endpoint:   endpoint,
		bucket:     bucket,
		serviceKey: serviceKey,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

// Upload streams data to the given key, overwriting any previous object.
func (c *Client) Upload(ctx context.Context, path string, data []byte, contentType string) error {
	url := fmt.Sprintf("%s/object/%s/%s", c.endpoint, c.bucket, path)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.serviceKey)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("x-upsert", "true")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("upload object: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("upload object: storage returned %d: %s", resp.StatusCode, body)
	}
	return nil
}

// CreateSignedURL asks the service for a download URL valid for ttl.
func (c *Client) CreateSignedURL(ctx context.Context, path string, ttl time.Duration) (string, error) {
	url := fmt.Sprintf("%s/object/sign/%s/%s", c.endpoint, c.bucket, path)
	payload, err := json.Marshal(map[string]int64{"expiresIn": int64(ttl.Seconds())})
	if err != nil {
		return "", fmt.Errorf("marshal sign request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build sign request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.serviceKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("sign object url: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("sign object url: storage returned %d: %s", resp.StatusCode, body)
	}

	var signed struct {
		SignedURL string `json:"signedURL"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&signed); err != nil {
		return "", fmt.Errorf("decode sign response: %w", err)
	}
	if signed.SignedURL == "" {
		return "", fmt.Errorf("sign object url: empty signed url in response")
	}
	return c.endpoint + signed.SignedURL, nil
}

// PublicURL returns the best-effort public URL for a key. The bucket may
// not actually be public; callers treat this as advisory.
func (c *Client) PublicURL(path string) string {
	return fmt.Sprintf("%s/object/public/%s/%s", c.endpoint, c.bucket, path)
}

// Exists reports whether an object is present at the key.
func (c *Client) Exists(ctx context.Context, path string) (bool, error) {
	url := fmt.Sprintf("%s/object/%s/%s", c.endpoint, c.bucket, path)
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return false, fmt.Errorf("build head request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.serviceKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("head object: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		return true, nil
	case resp.StatusCode == http.StatusNotFound:
		return false, nil
	default:
		return false, fmt.Errorf("head object: storage returned %d", resp.StatusCode)
	}
}
