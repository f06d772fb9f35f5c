package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/printforge/printstore/internal/apperr"
	"github.com/printforge/printstore/internal/checkout"
	"github.com/printforge/printstore/internal/payment"
	"github.com/printforge/printstore/internal/submit"
	"github.com/printforge/printstore/internal/upload"
)

// cubePayload is a 50mm cube centered at the origin: 125 cm3, easy print.
func cubePayload() *meshPayload {
	h := 25.0
	p := &meshPayload{
		Vertices: []float64{
			-h, -h, -h, h, -h, -h, h, h, -h, -h, h, -h,
			-h, -h, h, h, -h, h, h, h, h, -h, h, h,
		},
		Indices: []uint32{
			0, 2, 1, 0, 3, 2,
			4, 5, 6, 4, 6, 7,
			0, 1, 5, 0, 5, 4,
			2, 3, 7, 2, 7, 6,
			0, 4, 7, 0, 7, 3,
			1, 2, 6, 1, 6, 5,
		},
	}
	p.Transform.Scale = [3]float64{1, 1, 1}
	return p
}

func postQuote(t *testing.T, srv *server, body any) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal quote request: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/quote", bytes.NewReader(payload))
	rec := httptest.NewRecorder()
	srv.handleQuote(rec, req)
	return rec
}

func TestHandleQuote_AnalyzedMesh(t *testing.T) {
	srv := &server{}
	rec := postQuote(t, srv, quoteRequest{Mesh: cubePayload(), Material: "Standard PLA", Quantity: 1})

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp quoteResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.FinalPrice != 13.00 {
		t.Fatalf("finalPrice = %v, want 13.00", resp.FinalPrice)
	}
	if resp.Estimated {
		t.Fatal("analyzed quote must not be estimated")
	}
	if resp.Printability != "easy" {
		t.Fatalf("printability = %q, want easy", resp.Printability)
	}
	if resp.VolumeMM3 != 125_000 {
		t.Fatalf("volume = %v, want 125000", resp.VolumeMM3)
	}
}

func TestHandleQuote_NoMeshIsEstimated(t *testing.T) {
	srv := &server{}
	rec := postQuote(t, srv, quoteRequest{Material: "Standard PLA", Quantity: 1})

	var resp quoteResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Estimated {
		t.Fatal("quote without mesh must be marked estimated")
	}
	if resp.FinalPrice != 11.00 { // $6 base + $5 flat shipping
		t.Fatalf("finalPrice = %v, want 11.00", resp.FinalPrice)
	}
}

func TestHandleQuote_ValidationErrors(t *testing.T) {
	srv := &server{}

	cases := []struct {
		name     string
		req      quoteRequest
		wantKind string
	}{
		{"missing material", quoteRequest{Quantity: 1}, "missing_material"},
		{"zero quantity", quoteRequest{Material: "Standard PLA"}, "invalid_quantity"},
	}
	for _, tc := range cases {
		rec := postQuote(t, srv, tc.req)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: status = %d, want 400", tc.name, rec.Code)
		}
		var payload errorPayload
		if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
			t.Fatalf("%s: decode error payload: %v", tc.name, err)
		}
		if payload.Kind != tc.wantKind {
			t.Fatalf("%s: kind = %q, want %q", tc.name, payload.Kind, tc.wantKind)
		}
	}
}

type stubUploader struct{}

func (stubUploader) Upload(ctx context.Context, data []byte, fileName string) upload.Result {
	return upload.Result{Success: true, StoragePath: "2026/08/29/1-abcd1234-" + fileName}
}

type stubCheckout struct {
	err error
}

func (s stubCheckout) Checkout(ctx context.Context, req checkout.Request) (payment.Session, error) {
	if s.err != nil {
		return payment.Session{}, s.err
	}
	return payment.Session{ID: "cs_test", URL: "https://pay.example/cs_test"}, nil
}

func orderForm(t *testing.T, fields map[string]string, fileName string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("write field %s: %v", k, err)
		}
	}
	if fileName != "" {
		fw, err := mw.CreateFormFile("file", fileName)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		if _, err := fw.Write([]byte("solid model")); err != nil {
			t.Fatalf("write form file: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

func TestHandleSubmitOrder_ReturnsRedirect(t *testing.T) {
	srv := &server{coordinator: submit.New(stubUploader{}, stubCheckout{}, nil, nil)}

	body, contentType := orderForm(t, map[string]string{
		"model_name": "Benchy",
		"material":   "Standard PLA",
		"quantity":   "2",
	}, "benchy.stl")

	req := httptest.NewRequest(http.MethodPost, "/api/orders", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	srv.handleSubmitOrder(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp submitResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.RedirectURL != "https://pay.example/cs_test" {
		t.Fatalf("redirectUrl = %q", resp.RedirectURL)
	}
	if resp.SubmissionID == "" || resp.SessionID != "cs_test" {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestHandleSubmitOrder_CheckoutFailureIsSurfaced(t *testing.T) {
	srv := &server{coordinator: submit.New(stubUploader{}, stubCheckout{err: apperr.ErrSessionUnavailable}, nil, nil)}

	body, contentType := orderForm(t, map[string]string{
		"model_name": "Benchy",
		"material":   "Standard PLA",
		"quantity":   "1",
	}, "benchy.stl")

	req := httptest.NewRequest(http.MethodPost, "/api/orders", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	srv.handleSubmitOrder(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	var payload errorPayload
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode error payload: %v", err)
	}
	if payload.Kind != "checkout_failed" {
		t.Fatalf("kind = %q, want checkout_failed", payload.Kind)
	}
}

type stubPayments struct {
	retrieveErr error
}

func (s stubPayments) CreateSession(ctx context.Context, params payment.SessionParams) (payment.Session, error) {
	return payment.Session{ID: "cs_test", URL: "https://pay.example/cs_test"}, nil
}

func (s stubPayments) RetrieveSession(ctx context.Context, id string) (payment.Session, error) {
	if s.retrieveErr != nil {
		return payment.Session{}, s.retrieveErr
	}
	return payment.Session{ID: id, URL: "https://pay.example/" + id}, nil
}

func TestHandleCheckoutSuccess(t *testing.T) {
	srv := &server{payments: stubPayments{}}

	req := httptest.NewRequest(http.MethodGet, "/checkout/success?session_id=cs_123", nil)
	rec := httptest.NewRecorder()
	srv.handleCheckoutSuccess(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["status"] != "paid" || resp["sessionId"] != "cs_123" {
		t.Fatalf("unexpected response %v", resp)
	}

	// Without a session id there is nothing to confirm.
	req = httptest.NewRequest(http.MethodGet, "/checkout/success", nil)
	rec = httptest.NewRecorder()
	srv.handleCheckoutSuccess(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestHandleCheckoutSuccess_UnknownSession(t *testing.T) {
	srv := &server{payments: stubPayments{retrieveErr: errors.New("no such session")}}

	req := httptest.NewRequest(http.MethodGet, "/checkout/success?session_id=cs_gone", nil)
	rec := httptest.NewRecorder()
	srv.handleCheckoutSuccess(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestHandleSubmitOrder_RequiresFile(t *testing.T) {
	srv := &server{coordinator: submit.New(stubUploader{}, stubCheckout{}, nil, nil)}

	body, contentType := orderForm(t, map[string]string{
		"model_name": "Benchy",
		"material":   "Standard PLA",
		"quantity":   "1",
	}, "")

	req := httptest.NewRequest(http.MethodPost, "/api/orders", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	srv.handleSubmitOrder(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "missing_model") {
		t.Fatalf("body %q should carry missing_model", rec.Body.String())
	}
}
