// Package checkout turns a priced order into a payment session.
package checkout

import (
	"context"
	"fmt"
	"log"
	"math"
	"strconv"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/printforge/printstore/internal/apperr"
	"github.com/printforge/printstore/internal/payment"
)

const (
	sessionAttempts = 3
	backoffStep     = time.Second
)

// Request is consumed exactly once: created when the user confirms,
// discarded once a session URL is obtained or the attempt budget runs out.
// FileReference may still be a pending marker when the concurrent upload
// has not finished.
type Request struct {
	ModelName     string
	Material      string
	Quantity      int
	FinalPrice    float64
	FileReference string
	DownloadURL   string
}

// Orchestrator creates payment sessions with a bounded retry budget.
type Orchestrator struct {
	payments   payment.SessionCreator
	successURL string
	cancelURL  string
}

// New returns an Orchestrator redirecting to the given URLs after payment.
func New(payments payment.SessionCreator, successURL, cancelURL string) *Orchestrator {
	return &Orchestrator{
		payments:   payments,
		successURL: successURL,
		cancelURL:  cancelURL,
	}
}

// Checkout requests session creation up to three times with linearly
// increasing backoff (1s, 2s). A session without a redirect URL counts as
// a failed attempt. On exhaustion the request is abandoned: no session
// exists, so nothing needs reconciling.
func (o *Orchestrator) Checkout(ctx context.Context, req Request) (payment.Session, error) {
	if err := validate(req); err != nil {
		return payment.Session{}, err
	}

	params := payment.SessionParams{
		LineItems: []payment.LineItem{{
			Name:        fmt.Sprintf("%s (%s) x%d", req.ModelName, req.Material, req.Quantity),
			AmountCents: int64(math.Round(req.FinalPrice * 100)),
			Quantity:    1,
		}},
		SuccessURL: o.successURL,
		CancelURL:  o.cancelURL,
		Metadata: map[string]string{
			"model_name":     req.ModelName,
			"material":       req.Material,
			"quantity":       strconv.Itoa(req.Quantity),
			"file_reference": req.FileReference,
			"download_url":   req.DownloadURL,
		},
	}

	var session payment.Session
	attempt := 0
	backoff := retry.WithMaxRetries(sessionAttempts-1, linearBackoff(backoffStep))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		s, err := o.payments.CreateSession(ctx, params)
		if err != nil {
			log.Printf("checkout: session attempt %d/%d failed: %v", attempt, sessionAttempts, err)
			return retry.RetryableError(err)
		}
		if s.URL == "" {
			log.Printf("checkout: session attempt %d/%d returned no redirect url", attempt, sessionAttempts)
			return retry.RetryableError(apperr.ErrInvalidSession)
		}
		session = s
		return nil
	})
	if err != nil {
		return payment.Session{}, fmt.Errorf("%w: %v", apperr.ErrSessionUnavailable, err)
	}
	return session, nil
}

func validate(req Request) error {
	if req.ModelName == "" {
		return apperr.ErrMissingModel
	}
	if req.Material == "" {
		return apperr.ErrMissingMaterial
	}
	if req.Quantity < 1 {
		return apperr.ErrInvalidQuantity
	}
	return nil
}

// linearBackoff waits step, 2*step, 3*step, ... between attempts.
func linearBackoff(step time.Duration) retry.Backoff {
	var n int64
	return retry.BackoffFunc(func() (time.Duration, bool) {
		n++
		return time.Duration(n) * step, false
	})
}
