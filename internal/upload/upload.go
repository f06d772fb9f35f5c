// Package upload moves model files into durable storage despite flaky
// networks and oversized payloads. A storage outage must never prevent a
// sale, so every failure path degrades to a placeholder reference that
// fulfillment reconciles later.
package upload

import (
	"context"
	"fmt"
	"log"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"

	"github.com/printforge/printstore/internal/storage"
)

const (
	// singleShotThreshold is the payload size above which the relay is
	// skipped and bytes go straight to object storage.
	singleShotThreshold = 4 << 20

	// signedURLTTL keeps download references valid long enough for any
	// realistic fulfillment backlog.
	signedURLTTL = 10 * 365 * 24 * time.Hour

	directAttempts = 3
	directBackoff  = 500 * time.Millisecond
)

// Result is the durable reference produced by an upload attempt.
// IsPlaceholder means the bytes are not (fully) in storage and the path is
// a synthetic marker recorded so checkout can proceed.
type Result struct {
	Success       bool
	StoragePath   string
	DownloadURL   string
	FileSize      int64
	IsPlaceholder bool
}

// Orchestrator owns transfer-strategy selection and retries. Construct it
// with explicit collaborators; it keeps no global state.
type Orchestrator struct {
	store storage.ObjectStore
	relay *relayClient

	now func() time.Time
}

// New returns an Orchestrator. store may be nil and relayURL may be empty
// when the corresponding backend is not configured; uploads then degrade
// to placeholders instead of failing.
func New(store storage.ObjectStore, relayURL string) *Orchestrator {
	var relay *relayClient
	if relayURL != "" {
		relay = newRelayClient(relayURL)
	}
	return &Orchestrator{
		store: store,
		relay: relay,
		now:   time.Now,
	}
}

// Upload transfers data under fileName and returns a durable reference.
// It never returns an error: when every strategy is exhausted the caller
// gets a placeholder, which is still a usable order reference.
//
// Small payloads try the relay first and fall back to direct storage.
// Large payloads go direct, then fall back to chunked relay transfer.
func (o *Orchestrator) Upload(ctx context.Context, data []byte, fileName string) Result {
	size := int64(len(data))

	if size <= singleShotThreshold && o.relay != nil {
		res, err := o.relay.singleShot(ctx, data, fileName, contentTypeFor(fileName))
		if err == nil {
			res.FileSize = size
			return res
		}
		log.Printf("upload: relay single-shot failed for %s: %v", fileName, err)
	}

	if o.store != nil {
		res, err := o.direct(ctx, data, fileName)
		if err == nil {
			return res
		}
		log.Printf("upload: direct transfer failed for %s: %v", fileName, err)
	}

	if size > singleShotThreshold && o.relay != nil {
		res, err := o.chunked(ctx, data, fileName)
		if err == nil {
			return res
		}
		log.Printf("upload: chunked fallback failed for %s: %v", fileName, err)
	}

	return o.placeholder(fileName, size)
}

// direct performs the authenticated transfer to object storage with a
// bounded retry budget, then requests the long-lived download URL.
func (o *Orchestrator) direct(ctx context.Context, data []byte, fileName string) (Result, error) {
	key := o.objectKey(fileName)

	backoff := retry.WithMaxRetries(directAttempts-1, retry.NewConstant(directBackoff))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := o.store.Upload(ctx, key, data, contentTypeFor(fileName)); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return Result{}, fmt.Errorf("store %s: %w", key, err)
	}

	download, err := o.store.CreateSignedURL(ctx, key, signedURLTTL)
	if err != nil {
		// The object landed; a public URL is a weaker but workable reference.
		log.Printf("upload: signing %s failed, using public url: %v", key, err)
		download = o.store.PublicURL(key)
	}

	return Result{
		Success:     true,
		StoragePath: key,
		DownloadURL: download,
		FileSize:    int64(len(data)),
	}, nil
}

// objectKey builds a date-partitioned, collision-free storage key so
// operators can browse uploads by day.
func (o *Orchestrator) objectKey(fileName string) string {
	now := o.now().UTC()
	return fmt.Sprintf("%04d/%02d/%02d/%d-%s-%s",
		now.Year(), now.Month(), now.Day(),
		now.UnixMilli(), uuid.NewString()[:8], sanitizeFileName(fileName))
}

// placeholder builds the synthetic reference used when no transfer
// strategy landed the bytes. Deterministically prefixed so fulfillment can
// find unreconciled orders.
func (o *Orchestrator) placeholder(fileName string, size int64) Result {
	return Result{
		Success:       false,
		StoragePath:   "pending/" + o.objectKey(fileName),
		FileSize:      size,
		IsPlaceholder: true,
	}
}

func sanitizeFileName(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.' || r == '-' || r == '_':
			return r
		default:
			return '_'
		}
	}, name)
	if name == "" || name == "." {
		return "model"
	}
	return name
}

func contentTypeFor(fileName string) string {
	switch strings.ToLower(path.Ext(fileName)) {
	case ".stl":
		return "model/stl"
	case ".obj":
		return "model/obj"
	case ".3mf":
		return "model/3mf"
	case ".gltf":
		return "model/gltf+json"
	case ".glb":
		return "model/gltf-binary"
	default:
		return "application/octet-stream"
	}
}
