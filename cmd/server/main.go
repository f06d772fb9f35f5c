package main

import (
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/printforge/printstore/internal/apperr"
	"github.com/printforge/printstore/internal/checkout"
	"github.com/printforge/printstore/internal/config"
	"github.com/printforge/printstore/internal/db"
	"github.com/printforge/printstore/internal/geometry"
	"github.com/printforge/printstore/internal/migrations"
	"github.com/printforge/printstore/internal/orders"
	"github.com/printforge/printstore/internal/payment"
	"github.com/printforge/printstore/internal/pricing"
	"github.com/printforge/printstore/internal/seed"
	"github.com/printforge/printstore/internal/storage"
	"github.com/printforge/printstore/internal/submit"
	"github.com/printforge/printstore/internal/upload"
)

// maxModelBytes bounds order submissions; anything larger is rejected
// before it reaches the upload pipeline.
const maxModelBytes = 100 << 20

type server struct {
	db          *sql.DB
	store       *orders.Store
	coordinator *submit.Coordinator
	payments    payment.SessionCreator
}

func main() {
	cfg := config.Load()

	database, err := db.Open(cfg.DBPath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer database.Close()

	if cfg.IsDev() {
		if err := migrations.Up(database, "migrations"); err != nil {
			log.Fatalf("failed to run database migrations: %v", err)
		}
	}

	if stats, err := seed.Run(database); err != nil {
		log.Fatalf("failed to seed material catalog: %v", err)
	} else if stats.Inserts > 0 {
		log.Printf("seeded %d materials", stats.Inserts)
	}

	// Clients are constructed once here and injected; orchestrators hold
	// no module-level singletons.
	var store storage.ObjectStore
	if cfg.StorageEndpoint != "" {
		store = storage.NewClient(cfg.StorageEndpoint, cfg.StorageBucket, cfg.StorageServiceKey)
	}
	payments := payment.NewStripeClient(cfg.StripeSecretKey)

	uploads := upload.New(store, cfg.RelayEndpoint)
	checkouts := checkout.New(payments,
		cfg.BaseURL+"/checkout/success?session_id={CHECKOUT_SESSION_ID}",
		cfg.BaseURL+"/checkout/cancel")
	orderStore := orders.NewStore(database)

	notify := func(submissionID, message string) {
		log.Printf("order %s: %s", submissionID, message)
	}
	coordinator := submit.New(uploads, checkouts, orderStore, notify)

	srv := &server{db: database, store: orderStore, coordinator: coordinator, payments: payments}

	r := chi.NewRouter()
	r.Get("/healthz", srv.handleHealth)
	r.Post("/api/quote", srv.handleQuote)
	r.Post("/api/orders", srv.handleSubmitOrder)
	r.Get("/api/orders", srv.handleListOrders)
	r.Get("/checkout/success", srv.handleCheckoutSuccess)

	addr := ":" + cfg.Port
	log.Printf("listening on %s", addr)
	if err := http.ListenAndServe(addr, r); err != nil {
		log.Fatalf("server stopped: %v", err)
	}
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.db.Ping(); err != nil {
		writeError(w, errors.New("database unavailable"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type meshPayload struct {
	Vertices  []float64 `json:"vertices"`
	Normals   []float64 `json:"normals"`
	Indices   []uint32  `json:"indices"`
	Transform struct {
		Position [3]float64 `json:"position"`
		Rotation [3]float64 `json:"rotation"`
		Scale    [3]float64 `json:"scale"`
	} `json:"transform"`
}

func (p *meshPayload) toMesh() *geometry.Mesh {
	t := geometry.IdentityTransform()
	t.Position = geometry.Vec3{X: p.Transform.Position[0], Y: p.Transform.Position[1], Z: p.Transform.Position[2]}
	t.Rotation = geometry.Vec3{X: p.Transform.Rotation[0], Y: p.Transform.Rotation[1], Z: p.Transform.Rotation[2]}
	if s := p.Transform.Scale; s != [3]float64{} {
		t.Scale = geometry.Vec3{X: s[0], Y: s[1], Z: s[2]}
	}
	return &geometry.Mesh{
		Vertices:  p.Vertices,
		Normals:   p.Normals,
		Indices:   p.Indices,
		Transform: t,
	}
}

type quoteRequest struct {
	Mesh     *meshPayload `json:"mesh"`
	Material string       `json:"material"`
	Quantity int          `json:"quantity"`
}

type quoteResponse struct {
	BasePrice    float64 `json:"basePrice"`
	MaterialCost float64 `json:"materialCost"`
	PrintingCost float64 `json:"printingCost"`
	ShippingCost float64 `json:"shippingCost"`
	FinalPrice   float64 `json:"finalPrice"`
	Estimated    bool    `json:"estimated"`

	VolumeMM3    float64 `json:"volumeMm3,omitempty"`
	Complexity   float64 `json:"complexity,omitempty"`
	Printability string  `json:"printability,omitempty"`
}

// handleQuote prices a model. With a mesh it runs the full geometry
// analysis; without one it returns the quantity-only estimate so the UI
// can always show a number.
func (s *server) handleQuote(w http.ResponseWriter, r *http.Request) {
	var req quoteRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if req.Material == "" {
		writeError(w, apperr.ErrMissingMaterial)
		return
	}
	if req.Quantity < 1 {
		writeError(w, apperr.ErrInvalidQuantity)
		return
	}

	var resp quoteResponse
	if req.Mesh == nil {
		b := pricing.Fallback(req.Quantity)
		resp = breakdownResponse(b)
	} else {
		analysis := geometry.Analyze(req.Mesh.toMesh())
		b := pricing.Quote(pricing.QuoteInput{
			VolumeMM3:   analysis.VolumeMM3,
			Complexity:  analysis.Complexity,
			PrintFactor: analysis.Printability.Factor,
			Material:    req.Material,
			Quantity:    req.Quantity,
		})
		resp = breakdownResponse(b)
		resp.VolumeMM3 = analysis.VolumeMM3
		resp.Complexity = analysis.Complexity
		resp.Printability = string(analysis.Printability.Category)
	}

	writeJSON(w, http.StatusOK, resp)
}

func breakdownResponse(b pricing.Breakdown) quoteResponse {
	return quoteResponse{
		BasePrice:    b.BasePrice,
		MaterialCost: b.MaterialCost,
		PrintingCost: b.PrintingCost,
		ShippingCost: b.ShippingCost,
		FinalPrice:   b.FinalPrice,
		Estimated:    b.Estimated,
	}
}

type submitResponse struct {
	SubmissionID string `json:"submissionId"`
	SessionID    string `json:"sessionId"`
	RedirectURL  string `json:"redirectUrl"`
}

// handleSubmitOrder is the single checkout intent endpoint. It reprices
// the order server-side, then hands it to the submission coordinator,
// which runs upload and payment concurrently.
func (s *server) handleSubmitOrder(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxModelBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		http.Error(w, "invalid or oversized multipart form", http.StatusRequestEntityTooLarge)
		return
	}

	modelName := strings.TrimSpace(r.FormValue("model_name"))
	material := strings.TrimSpace(r.FormValue("material"))
	if modelName == "" {
		writeError(w, apperr.ErrMissingModel)
		return
	}
	if material == "" {
		writeError(w, apperr.ErrMissingMaterial)
		return
	}
	quantity, err := strconv.Atoi(r.FormValue("quantity"))
	if err != nil || quantity < 1 {
		writeError(w, apperr.ErrInvalidQuantity)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, apperr.ErrMissingModel)
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		http.Error(w, "failed to read model file", http.StatusBadRequest)
		return
	}

	// Reprice server-side: an optional mesh part gives the analyzed price,
	// otherwise the opaque-upload estimate applies.
	breakdown := pricing.Fallback(quantity)
	if meshJSON := r.FormValue("mesh"); meshJSON != "" {
		var mp meshPayload
		if err := json.Unmarshal([]byte(meshJSON), &mp); err == nil {
			analysis := geometry.Analyze(mp.toMesh())
			breakdown = pricing.Quote(pricing.QuoteInput{
				VolumeMM3:   analysis.VolumeMM3,
				Complexity:  analysis.Complexity,
				PrintFactor: analysis.Printability.Factor,
				Material:    material,
				Quantity:    quantity,
			})
		} else {
			log.Printf("submit: unreadable mesh part, using fallback price: %v", err)
		}
	}

	outcome, err := s.coordinator.Submit(r.Context(), submit.Order{
		ModelName:  modelName,
		Material:   material,
		Quantity:   quantity,
		FinalPrice: breakdown.FinalPrice,
		ModelData:  data,
		FileName:   header.Filename,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, submitResponse{
		SubmissionID: outcome.SubmissionID,
		SessionID:    outcome.SessionID,
		RedirectURL:  outcome.Redirect(),
	})
}

// handleCheckoutSuccess is the processor's post-payment redirect target.
// It confirms the session still exists and acknowledges the purchase.
func (s *server) handleCheckoutSuccess(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		http.Error(w, "missing session_id", http.StatusBadRequest)
		return
	}

	sess, err := s.payments.RetrieveSession(r.Context(), sessionID)
	if err != nil {
		log.Printf("checkout success: retrieving session %s failed: %v", sessionID, err)
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "paid",
		"sessionId": sess.ID,
	})
}

func (s *server) handleListOrders(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	summaries, err := s.store.List(r.Context(), query)
	if err != nil {
		http.Error(w, "failed to load orders", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, summaries)
}

type errorPayload struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, apperr.HTTPStatus(err), errorPayload{
		Kind:    apperr.Kind(err),
		Message: err.Error(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("write json response: %v", err)
	}
}
