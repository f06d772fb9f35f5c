package upload

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"golang.org/x/sync/errgroup"
)

const (
	chunkSize        = 1 << 20
	chunkParallelism = 3
	chunkAttempts    = 3
	chunkBackoff     = time.Second

	// Completion is still attempted when at most 1 in 20 chunks was lost;
	// the relay marks such uploads pending and fulfillment re-pulls them.
	chunkLossDenominator = 20
)

// relayClient speaks the lightweight upload relay protocol: a single-shot
// POST for small payloads and an init/chunk/complete session for large
// ones.
type relayClient struct {
	baseURL    string
	httpClient *http.Client
}

func newRelayClient(baseURL string) *relayClient {
	return &relayClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

type relayUploadResponse struct {
	StoragePath string `json:"storagePath"`
	DownloadURL string `json:"downloadUrl"`
	Status      string `json:"status"`
}

func (c *relayClient) singleShot(ctx context.Context, data []byte, fileName, contentType string) (Result, error) {
	resp, err := c.post(ctx, "/upload", map[string]any{
		"fileName":    fileName,
		"contentType": contentType,
		"data":        base64.StdEncoding.EncodeToString(data),
	})
	if err != nil {
		return Result{}, err
	}
	if resp.StoragePath == "" {
		return Result{}, fmt.Errorf("relay upload: response carries no storage path")
	}
	return Result{
		Success:     true,
		StoragePath: resp.StoragePath,
		DownloadURL: resp.DownloadURL,
	}, nil
}

func (c *relayClient) initSession(ctx context.Context, uploadID, fileName string, totalChunks int) error {
	_, err := c.post(ctx, "/chunked/init", map[string]any{
		"uploadId":    uploadID,
		"fileName":    fileName,
		"totalChunks": totalChunks,
	})
	return err
}

func (c *relayClient) sendChunk(ctx context.Context, uploadID string, index, totalChunks int, chunk string) error {
	_, err := c.post(ctx, "/chunked/chunk", map[string]any{
		"uploadId":    uploadID,
		"chunkIndex":  index,
		"totalChunks": totalChunks,
		"chunkData":   chunk,
	})
	return err
}

func (c *relayClient) complete(ctx context.Context, uploadID string, totalChunks int, uploaded []int) (relayUploadResponse, error) {
	return c.post(ctx, "/chunked/complete", map[string]any{
		"uploadId":       uploadID,
		"totalChunks":    totalChunks,
		"uploadedChunks": uploaded,
	})
}

func (c *relayClient) post(ctx context.Context, route string, payload any) (relayUploadResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return relayUploadResponse{}, fmt.Errorf("marshal relay request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+route, bytes.NewReader(body))
	if err != nil {
		return relayUploadResponse{}, fmt.Errorf("build relay request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return relayUploadResponse{}, fmt.Errorf("relay %s: %w", route, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return relayUploadResponse{}, fmt.Errorf("relay %s: status %d: %s", route, resp.StatusCode, msg)
	}

	var decoded relayUploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil && err != io.EOF {
		return relayUploadResponse{}, fmt.Errorf("decode relay response: %w", err)
	}
	return decoded, nil
}

// chunked splits the base64 payload into fixed-size chunks and pushes them
// through the relay with bounded parallelism. Chunks may land out of
// order; the completion call carries the full index set so the relay can
// reassemble deterministically.
func (o *Orchestrator) chunked(ctx context.Context, data []byte, fileName string) (Result, error) {
	encoded := base64.StdEncoding.EncodeToString(data)
	totalChunks := (len(encoded) + chunkSize - 1) / chunkSize
	if totalChunks == 0 {
		totalChunks = 1
	}
	uploadID := uuid.NewString()

	backoff := retry.WithMaxRetries(chunkAttempts-1, retry.NewConstant(chunkBackoff))
	if err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := o.relay.initSession(ctx, uploadID, fileName, totalChunks); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	}); err != nil {
		return Result{}, fmt.Errorf("init chunked session: %w", err)
	}

	var (
		mu       sync.Mutex
		uploaded []int
	)
	var g errgroup.Group
	g.SetLimit(chunkParallelism)
	for i := 0; i < totalChunks; i++ {
		i := i
		g.Go(func() error {
			start := i * chunkSize
			end := min(start+chunkSize, len(encoded))
			chunk := encoded[start:end]

			backoff := retry.WithMaxRetries(chunkAttempts-1, retry.NewConstant(chunkBackoff))
			err := retry.Do(ctx, backoff, func(ctx context.Context) error {
				if err := o.relay.sendChunk(ctx, uploadID, i, totalChunks, chunk); err != nil {
					return retry.RetryableError(err)
				}
				return nil
			})
			if err != nil {
				// A lost chunk is not fatal yet; completion decides.
				log.Printf("upload: chunk %d/%d of %s lost: %v", i, totalChunks, uploadID, err)
				return nil
			}

			mu.Lock()
			uploaded = append(uploaded, i)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	lost := totalChunks - len(uploaded)
	if lost*chunkLossDenominator > totalChunks {
		return Result{}, fmt.Errorf("chunked upload %s: lost %d of %d chunks", uploadID, lost, totalChunks)
	}
	sort.Ints(uploaded)

	var resp relayUploadResponse
	backoff = retry.WithMaxRetries(chunkAttempts-1, retry.NewConstant(chunkBackoff))
	if err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		var err error
		resp, err = o.relay.complete(ctx, uploadID, totalChunks, uploaded)
		if err != nil {
			return retry.RetryableError(err)
		}
		return nil
	}); err != nil {
		return Result{}, fmt.Errorf("complete chunked session %s: %w", uploadID, err)
	}

	pending := lost > 0 || resp.Status == "pending_completion"
	return Result{
		Success:       !pending,
		StoragePath:   resp.StoragePath,
		DownloadURL:   resp.DownloadURL,
		FileSize:      int64(len(data)),
		IsPlaceholder: pending,
	}, nil
}
