// Package payment wraps the payment processor behind a narrow session
// contract so orchestrators can be tested with doubles.
package payment

import "context"

// Session is the processor-issued checkout session the user is redirected to.
type Session struct {
	ID  string
	URL string
}

// LineItem is one purchasable row of a checkout session.
type LineItem struct {
	Name        string
	AmountCents int64
	Quantity    int64
}

// SessionParams carries everything needed to open a checkout session.
type SessionParams struct {
	LineItems  []LineItem
	SuccessURL string
	CancelURL  string
	Metadata   map[string]string
}

// SessionCreator creates and retrieves checkout sessions.
type SessionCreator interface {
	CreateSession(ctx context.Context, params SessionParams) (Session, error)
	RetrieveSession(ctx context.Context, id string) (Session, error)
}

// maxMetadataValueLen is the processor's per-field metadata limit. Longer
// values, typically signed download URLs, are truncated to fit.
const maxMetadataValueLen = 500

func truncateMetadata(meta map[string]string) map[string]string {
	out := make(map[string]string, len(meta))
	for k, v := range meta {
		if len(v) > maxMetadataValueLen {
			v = v[:maxMetadataValueLen]
		}
		out[k] = v
	}
	return out
}
