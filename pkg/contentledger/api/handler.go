package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/jwtauth"
	"github.com/go-chi/render"
	"github.com/tendant/content-ledger/pkg/contentledger"
)

// Handler serves the ledger over HTTP
type Handler struct {
	service contentledger.Service
	auth    *jwtauth.JWTAuth
}

// NewHandler creates a new ledger handler. Mutating routes verify tokens with auth.
func NewHandler(service contentledger.Service, auth *jwtauth.JWTAuth) *Handler {
	return &Handler{
		service: service,
		auth:    auth,
	}
}

// Routes returns the ledger routes. Reads are public; every write acts as
// the caller named by the verified token.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/contents/{id}", h.GetContent)
	r.Get("/contents/{id}/payments", h.GetPaymentsForContent)
	r.Get("/creators/{creator}/contents", h.GetContentByCreator)
	r.Get("/buyers/{buyer}/payments", h.GetPaymentsByBuyer)
	r.Get("/buyers/{buyer}/purchases/{contentID}", h.HasPurchasedContent)
	r.Get("/stats", h.GetStats)

	r.Group(func(r chi.Router) {
		r.Use(jwtauth.Verifier(h.auth))
		r.Use(jwtauth.Authenticator)
		r.Use(CallerIdentity)

		r.Post("/contents", h.RegisterContent)
		r.Put("/contents/{id}/status", h.UpdateContentStatus)
		r.Post("/contents/{id}/payments", h.RecordPayment)

		r.With(RequireAdmin).Post("/admin/verify", h.Verify)
	})

	return r
}

// RegisterContentRequest is the request body for registering content
type RegisterContentRequest struct {
	ID          string `json:"id,omitempty"`
	Title       string `json:"title"`
	Description string `json:"description"`
	ContentHash string `json:"content_hash"`
	Price       int64  `json:"price"`
}

// UpdateContentStatusRequest is the request body for activating or deactivating content
type UpdateContentStatusRequest struct {
	IsActive *bool `json:"is_active"`
}

// RecordPaymentRequest is the request body for recording a purchase.
// The buyer is always the authenticated caller.
type RecordPaymentRequest struct {
	ID              string `json:"id,omitempty"`
	TransactionHash string `json:"transaction_hash"`
	Amount          int64  `json:"amount"`
}

// PurchaseResponse answers whether a buyer has paid for content
type PurchaseResponse struct {
	Buyer     string `json:"buyer"`
	ContentID string `json:"content_id"`
	Purchased bool   `json:"purchased"`
}

// RegisterContent registers content owned by the caller
func (h *Handler) RegisterContent(w http.ResponseWriter, r *http.Request) {
	var req RegisterContentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, r, err.Error())
		return
	}

	content, err := h.service.RegisterContent(r.Context(), contentledger.RegisterContentRequest{
		Creator:     CallerFromContext(r.Context()),
		ID:          req.ID,
		Title:       req.Title,
		Description: req.Description,
		ContentHash: req.ContentHash,
		Price:       req.Price,
	})
	if err != nil {
		writeError(w, r, "Failed to register content", err)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, content)
}

// GetContent returns a content registration
func (h *Handler) GetContent(w http.ResponseWriter, r *http.Request) {
	content, err := h.service.GetContent(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, "Failed to get content", err)
		return
	}

	render.JSON(w, r, content)
}

// GetContentByCreator lists a creator's content in registration order
func (h *Handler) GetContentByCreator(w http.ResponseWriter, r *http.Request) {
	creator := contentledger.Identity(chi.URLParam(r, "creator"))

	contents, err := h.service.GetContentByCreator(r.Context(), creator)
	if err != nil {
		writeError(w, r, "Failed to list content", err)
		return
	}

	render.JSON(w, r, contents)
}

// UpdateContentStatus activates or deactivates content owned by the caller
func (h *Handler) UpdateContentStatus(w http.ResponseWriter, r *http.Request) {
	var req UpdateContentStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, r, err.Error())
		return
	}
	if req.IsActive == nil {
		badRequest(w, r, "is_active is required")
		return
	}

	content, err := h.service.UpdateContentStatus(r.Context(), contentledger.UpdateContentStatusRequest{
		ContentID: chi.URLParam(r, "id"),
		IsActive:  *req.IsActive,
		Caller:    CallerFromContext(r.Context()),
	})
	if err != nil {
		writeError(w, r, "Failed to update content status", err)
		return
	}

	render.JSON(w, r, content)
}

// RecordPayment records a purchase by the caller
func (h *Handler) RecordPayment(w http.ResponseWriter, r *http.Request) {
	var req RecordPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, r, err.Error())
		return
	}

	payment, err := h.service.RecordPayment(r.Context(), contentledger.RecordPaymentRequest{
		ContentID:       chi.URLParam(r, "id"),
		TransactionHash: req.TransactionHash,
		Amount:          req.Amount,
		Buyer:           CallerFromContext(r.Context()),
		ID:              req.ID,
	})
	if err != nil {
		writeError(w, r, "Failed to record payment", err)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, payment)
}

// GetPaymentsForContent lists payments for content in timestamp order
func (h *Handler) GetPaymentsForContent(w http.ResponseWriter, r *http.Request) {
	payments, err := h.service.GetPaymentsForContent(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, "Failed to list payments", err)
		return
	}

	render.JSON(w, r, payments)
}

// GetPaymentsByBuyer lists a buyer's payments in timestamp order
func (h *Handler) GetPaymentsByBuyer(w http.ResponseWriter, r *http.Request) {
	buyer := contentledger.Identity(chi.URLParam(r, "buyer"))

	payments, err := h.service.GetPaymentsByBuyer(r.Context(), buyer)
	if err != nil {
		writeError(w, r, "Failed to list payments", err)
		return
	}

	render.JSON(w, r, payments)
}

// HasPurchasedContent reports whether the buyer has paid for the content
func (h *Handler) HasPurchasedContent(w http.ResponseWriter, r *http.Request) {
	buyer := chi.URLParam(r, "buyer")
	contentID := chi.URLParam(r, "contentID")

	purchased, err := h.service.HasPurchasedContent(r.Context(), contentledger.Identity(buyer), contentID)
	if err != nil {
		writeError(w, r, "Failed to check purchase", err)
		return
	}

	render.JSON(w, r, PurchaseResponse{Buyer: buyer, ContentID: contentID, Purchased: purchased})
}

// GetStats returns the global counters
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.GetStats(r.Context())
	if err != nil {
		writeError(w, r, "Failed to get stats", err)
		return
	}

	render.JSON(w, r, stats)
}

// Verify recomputes derived state and reports whether it matches
func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Verify(r.Context()); err != nil {
		writeError(w, r, "Ledger verification failed", err)
		return
	}

	render.JSON(w, r, map[string]string{"status": "consistent"})
}
