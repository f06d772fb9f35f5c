package checkout

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/printforge/printstore/internal/apperr"
	"github.com/printforge/printstore/internal/payment"
)

type fakePayments struct {
	mu       sync.Mutex
	calls    int
	failures int
	noURL    bool
	last     payment.SessionParams
}

func (f *fakePayments) CreateSession(ctx context.Context, params payment.SessionParams) (payment.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.last = params
	if f.calls <= f.failures {
		return payment.Session{}, errors.New("processor 503")
	}
	if f.noURL {
		return payment.Session{ID: "cs_test"}, nil
	}
	return payment.Session{ID: "cs_test", URL: "https://pay.example/cs_test"}, nil
}

func (f *fakePayments) RetrieveSession(ctx context.Context, id string) (payment.Session, error) {
	return payment.Session{ID: id, URL: "https://pay.example/" + id}, nil
}

func validRequest() Request {
	return Request{
		ModelName:     "Benchy",
		Material:      "Standard PLA",
		Quantity:      2,
		FinalPrice:    19.49,
		FileReference: "2026/08/29/123-abcd1234-benchy.stl",
		DownloadURL:   "https://signed.example/benchy.stl",
	}
}

func TestCheckout_FirstAttemptSucceeds(t *testing.T) {
	payments := &fakePayments{}
	o := New(payments, "https://shop.example/success", "https://shop.example/cancel")

	session, err := o.Checkout(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("checkout returned error: %v", err)
	}
	if session.URL != "https://pay.example/cs_test" {
		t.Fatalf("unexpected redirect url %q", session.URL)
	}
	if payments.calls != 1 {
		t.Fatalf("expected a single session creation, got %d", payments.calls)
	}

	if payments.last.Metadata["file_reference"] != "2026/08/29/123-abcd1234-benchy.stl" {
		t.Fatalf("file reference not forwarded: %+v", payments.last.Metadata)
	}
	if payments.last.LineItems[0].AmountCents != 1949 {
		t.Fatalf("amount = %d cents, want 1949", payments.last.LineItems[0].AmountCents)
	}
}

func TestCheckout_RecoversWithinRetryBudget(t *testing.T) {
	payments := &fakePayments{failures: 2}
	o := New(payments, "https://shop.example/success", "https://shop.example/cancel")

	session, err := o.Checkout(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("checkout should recover on the third attempt: %v", err)
	}
	if session.URL == "" {
		t.Fatal("recovered session carries no redirect url")
	}
	if payments.calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", payments.calls)
	}
}

func TestCheckout_ExhaustedBudgetIsHardFailure(t *testing.T) {
	payments := &fakePayments{failures: 100}
	o := New(payments, "https://shop.example/success", "https://shop.example/cancel")

	_, err := o.Checkout(context.Background(), validRequest())
	if !errors.Is(err, apperr.ErrSessionUnavailable) {
		t.Fatalf("want ErrSessionUnavailable, got %v", err)
	}
	if payments.calls != 3 {
		t.Fatalf("retry budget is 3 attempts, got %d", payments.calls)
	}
}

func TestCheckout_SessionWithoutURLIsNotSuccess(t *testing.T) {
	payments := &fakePayments{noURL: true}
	o := New(payments, "https://shop.example/success", "https://shop.example/cancel")

	_, err := o.Checkout(context.Background(), validRequest())
	if !errors.Is(err, apperr.ErrSessionUnavailable) {
		t.Fatalf("want ErrSessionUnavailable, got %v", err)
	}
	if payments.calls != 3 {
		t.Fatalf("url-less sessions should consume the attempt budget, got %d calls", payments.calls)
	}
}

func TestCheckout_ValidatesRequiredInputs(t *testing.T) {
	payments := &fakePayments{}
	o := New(payments, "https://shop.example/success", "https://shop.example/cancel")

	cases := []struct {
		name    string
		mutate  func(*Request)
		wantErr error
	}{
		{"missing model", func(r *Request) { r.ModelName = "" }, apperr.ErrMissingModel},
		{"missing material", func(r *Request) { r.Material = "" }, apperr.ErrMissingMaterial},
		{"zero quantity", func(r *Request) { r.Quantity = 0 }, apperr.ErrInvalidQuantity},
	}
	for _, tc := range cases {
		req := validRequest()
		tc.mutate(&req)
		if _, err := o.Checkout(context.Background(), req); !errors.Is(err, tc.wantErr) {
			t.Fatalf("%s: want %v, got %v", tc.name, tc.wantErr, err)
		}
	}
	if payments.calls != 0 {
		t.Fatalf("invalid requests must not reach the processor, got %d calls", payments.calls)
	}
}

func TestCheckout_LineItemNameDescribesOrder(t *testing.T) {
	payments := &fakePayments{}
	o := New(payments, "https://shop.example/success", "https://shop.example/cancel")

	if _, err := o.Checkout(context.Background(), validRequest()); err != nil {
		t.Fatalf("checkout returned error: %v", err)
	}
	name := payments.last.LineItems[0].Name
	for _, part := range []string{"Benchy", "Standard PLA", "x2"} {
		if !strings.Contains(name, part) {
			t.Fatalf("line item name %q missing %q", name, part)
		}
	}
}
