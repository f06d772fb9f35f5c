// Package submit coordinates the two halves of a submission, the file
// upload and the payment session, which run concurrently: waiting for a
// large upload before starting checkout measurably hurts conversion.
package submit

import (
	"context"
	"log"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/printforge/printstore/internal/checkout"
	"github.com/printforge/printstore/internal/orders"
	"github.com/printforge/printstore/internal/payment"
	"github.com/printforge/printstore/internal/upload"
)

// Uploader moves model bytes into durable storage. It never fails, only
// degrades to placeholders.
type Uploader interface {
	Upload(ctx context.Context, data []byte, fileName string) upload.Result
}

// CheckoutService creates the payment session for a priced order.
type CheckoutService interface {
	Checkout(ctx context.Context, req checkout.Request) (payment.Session, error)
}

// Recorder persists submission outcomes for fulfillment.
type Recorder interface {
	Insert(ctx context.Context, rec orders.Record) error
	RecordUploadOutcome(ctx context.Context, id, storagePath, downloadURL string, placeholder bool) error
}

// Order is one confirmed purchase ready for submission.
type Order struct {
	ModelName  string
	Material   string
	Quantity   int
	FinalPrice float64
	ModelData  []byte
	FileName   string
}

// Outcome is the single terminal user-facing result of a submission.
// Redirect is stable: reading it any number of times yields the same URL
// and never creates another session.
type Outcome struct {
	SubmissionID string
	SessionID    string
	RedirectURL  string
}

// Redirect returns the payment redirect URL. Idempotent by construction.
func (o Outcome) Redirect() string {
	return o.RedirectURL
}

// Coordinator runs upload and checkout concurrently and joins them with
// an explicit policy: checkout is authoritative for the user outcome,
// upload failures only produce a non-blocking notice.
type Coordinator struct {
	uploads   Uploader
	checkouts CheckoutService
	records   Recorder

	// notify receives the secondary "file issue" message when an upload
	// settles as a placeholder after a successful checkout. Optional.
	notify func(submissionID, message string)
}

// New returns a Coordinator. records and notify may be nil.
func New(uploads Uploader, checkouts CheckoutService, records Recorder, notify func(submissionID, message string)) *Coordinator {
	return &Coordinator{
		uploads:   uploads,
		checkouts: checkouts,
		records:   records,
		notify:    notify,
	}
}

// Submit launches the upload in the background, runs checkout, and
// returns as soon as checkout resolves. The upload is detached from the
// request context so a fast checkout cannot cancel a slow transfer; its
// late result is recorded for reconciliation.
//
// Exactly one of (Outcome, error) is meaningful: a hard checkout failure
// yields an error even when the upload succeeded, and a failed upload
// never blocks a successful checkout.
func (c *Coordinator) Submit(ctx context.Context, ord Order) (Outcome, error) {
	id := uuid.NewString()
	detached := context.WithoutCancel(ctx)

	var snapshot atomic.Pointer[upload.Result]
	uploadDone := make(chan upload.Result, 1)
	go func() {
		res := c.uploads.Upload(detached, ord.ModelData, ord.FileName)
		snapshot.Store(&res)
		uploadDone <- res
	}()

	// Read-only snapshot of the file reference at request-build time. If
	// the upload has not settled, checkout proceeds with a deterministic
	// pending marker instead of blocking.
	fileRef := "pending-" + id
	downloadURL := ""
	if res := snapshot.Load(); res != nil {
		fileRef = res.StoragePath
		downloadURL = res.DownloadURL
	}

	session, err := c.checkouts.Checkout(ctx, checkout.Request{
		ModelName:     ord.ModelName,
		Material:      ord.Material,
		Quantity:      ord.Quantity,
		FinalPrice:    ord.FinalPrice,
		FileReference: fileRef,
		DownloadURL:   downloadURL,
	})
	if err != nil {
		c.record(detached, orders.Record{
			ID:         id,
			ModelName:  ord.ModelName,
			Material:   ord.Material,
			Quantity:   ord.Quantity,
			FinalPrice: ord.FinalPrice,
			Status:     orders.StatusFailed,
		})
		return Outcome{}, err
	}

	c.record(detached, orders.Record{
		ID:                id,
		ModelName:         ord.ModelName,
		Material:          ord.Material,
		Quantity:          ord.Quantity,
		FinalPrice:        ord.FinalPrice,
		SessionID:         session.ID,
		Status:            orders.StatusSucceeded,
		StoragePath:       fileRef,
		DownloadURL:       downloadURL,
		UploadPlaceholder: true,
	})

	go c.reconcile(detached, id, uploadDone)

	return Outcome{
		SubmissionID: id,
		SessionID:    session.ID,
		RedirectURL:  session.URL,
	}, nil
}

// reconcile waits for the background upload and records its real outcome.
// The user-facing success is never disturbed; a placeholder only triggers
// the secondary notice.
func (c *Coordinator) reconcile(ctx context.Context, id string, uploadDone <-chan upload.Result) {
	res := <-uploadDone

	if c.records != nil {
		if err := c.records.RecordUploadOutcome(ctx, id, res.StoragePath, res.DownloadURL, res.IsPlaceholder); err != nil {
			log.Printf("submit: recording upload outcome for %s failed: %v", id, err)
		}
	}

	if res.IsPlaceholder && c.notify != nil {
		c.notify(id, "We received your order, but there was an issue storing your model file. Support will follow up.")
	}
}

func (c *Coordinator) record(ctx context.Context, rec orders.Record) {
	if c.records == nil {
		return
	}
	if err := c.records.Insert(ctx, rec); err != nil {
		log.Printf("submit: recording submission %s failed: %v", rec.ID, err)
	}
}
