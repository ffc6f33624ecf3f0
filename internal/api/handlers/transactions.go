// Package handlers implements the HTTP endpoints. Every handler assumes
// middleware.RequireUser already ran and scopes its storage calls to the
// authenticated user.
package handlers

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/finhealth/internal/api/middleware"
	"github.com/dvloznov/finhealth/internal/domain"
	"github.com/dvloznov/finhealth/internal/gcs"
	"github.com/dvloznov/finhealth/internal/store"
	"github.com/dvloznov/finhealth/internal/vision"
)

// TransactionExtractor reads a receipt image into a transaction draft.
// Implemented by vision.Extractor.
type TransactionExtractor interface {
	ExtractTransaction(ctx context.Context, image []byte, mimeType string) (*vision.Draft, error)
}

// TransactionsHandler handles transaction endpoints.
type TransactionsHandler struct {
	store     store.TransactionStore
	extractor TransactionExtractor
	archiver  gcs.Archiver
	log       zerolog.Logger
}

// NewTransactionsHandler creates a new transactions handler. extractor and
// archiver may be nil; the scan endpoint then reports 503.
func NewTransactionsHandler(s store.TransactionStore, extractor TransactionExtractor, archiver gcs.Archiver, log zerolog.Logger) *TransactionsHandler {
	return &TransactionsHandler{
		store:     s,
		extractor: extractor,
		archiver:  archiver,
		log:       log,
	}
}

type transactionPayload struct {
	Title      *string          `json:"title"`
	Amount     *decimal.Decimal `json:"amount"`
	Category   *string          `json:"category"`
	Type       *string          `json:"type"`
	Date       *string          `json:"date"`
	ExternalID *string          `json:"externalId"`
	Source     *string          `json:"source"`
}

// List handles GET /api/transactions
func (h *TransactionsHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r)

	transactions, err := h.store.ListTransactions(r.Context(), userID)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list transactions")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list transactions")
		return
	}

	if transactions == nil {
		transactions = []domain.Transaction{}
	}
	middleware.WriteJSON(w, http.StatusOK, transactions)
}

// Create handles POST /api/transactions
func (h *TransactionsHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r)

	var req transactionPayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.Title == nil || strings.TrimSpace(*req.Title) == "" {
		middleware.WriteError(w, http.StatusBadRequest, "title is required")
		return
	}
	if req.Amount == nil || req.Amount.IsNegative() {
		middleware.WriteError(w, http.StatusBadRequest, "amount is required and must not be negative")
		return
	}
	if req.Type == nil || !domain.TransactionType(*req.Type).Valid() {
		middleware.WriteError(w, http.StatusBadRequest, "type must be income or expense")
		return
	}
	if req.Date == nil {
		middleware.WriteError(w, http.StatusBadRequest, "date is required")
		return
	}
	date, err := civil.ParseDate(*req.Date)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}

	t := &domain.Transaction{
		ID:        uuid.NewString(),
		UserID:    userID,
		Title:     strings.TrimSpace(*req.Title),
		Amount:    *req.Amount,
		Category:  domain.FallbackCategory,
		Type:      domain.TransactionType(*req.Type),
		Date:      date,
		CreatedAt: time.Now().UTC(),
	}
	if req.Category != nil && *req.Category != "" {
		t.Category = *req.Category
	}
	if req.ExternalID != nil {
		t.ExternalID = *req.ExternalID
	}
	if req.Source != nil {
		t.Source = *req.Source
	}

	if err := h.store.CreateTransaction(r.Context(), t); err != nil {
		h.log.Error().Err(err).Msg("Failed to create transaction")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to create transaction")
		return
	}

	middleware.WriteJSON(w, http.StatusCreated, t)
}

// Get handles GET /api/transactions/{id}
func (h *TransactionsHandler) Get(w http.ResponseWriter, r *http.Request, id string) {
	userID := middleware.UserID(r)

	t, err := h.store.GetTransaction(r.Context(), userID, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			middleware.WriteError(w, http.StatusNotFound, "Transaction not found")
			return
		}
		h.log.Error().Err(err).Str("transaction_id", id).Msg("Failed to get transaction")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to get transaction")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, t)
}

// Update handles PUT/PATCH /api/transactions/{id}. Omitted fields keep
// their stored values.
func (h *TransactionsHandler) Update(w http.ResponseWriter, r *http.Request, id string) {
	userID := middleware.UserID(r)

	var req transactionPayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	t, err := h.store.GetTransaction(r.Context(), userID, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			middleware.WriteError(w, http.StatusNotFound, "Transaction not found")
			return
		}
		h.log.Error().Err(err).Str("transaction_id", id).Msg("Failed to get transaction")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to update transaction")
		return
	}

	if req.Title != nil {
		if strings.TrimSpace(*req.Title) == "" {
			middleware.WriteError(w, http.StatusBadRequest, "title must not be empty")
			return
		}
		t.Title = strings.TrimSpace(*req.Title)
	}
	if req.Amount != nil {
		if req.Amount.IsNegative() {
			middleware.WriteError(w, http.StatusBadRequest, "amount must not be negative")
			return
		}
		t.Amount = *req.Amount
	}
	if req.Category != nil {
		t.Category = *req.Category
	}
	if req.Type != nil {
		if !domain.TransactionType(*req.Type).Valid() {
			middleware.WriteError(w, http.StatusBadRequest, "type must be income or expense")
			return
		}
		t.Type = domain.TransactionType(*req.Type)
	}
	if req.Date != nil {
		date, err := civil.ParseDate(*req.Date)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
			return
		}
		t.Date = date
	}
	if req.ExternalID != nil {
		t.ExternalID = *req.ExternalID
	}
	if req.Source != nil {
		t.Source = *req.Source
	}

	if err := h.store.UpdateTransaction(r.Context(), t); err != nil {
		h.log.Error().Err(err).Str("transaction_id", id).Msg("Failed to update transaction")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to update transaction")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, t)
}

// Delete handles DELETE /api/transactions/{id}
func (h *TransactionsHandler) Delete(w http.ResponseWriter, r *http.Request, id string) {
	userID := middleware.UserID(r)

	if err := h.store.DeleteTransaction(r.Context(), userID, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			middleware.WriteError(w, http.StatusNotFound, "Transaction not found")
			return
		}
		h.log.Error().Err(err).Str("transaction_id", id).Msg("Failed to delete transaction")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to delete transaction")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// Scan handles POST /api/transactions/scan. The receipt image is sent to
// the vision model and the resulting draft is returned without being saved;
// the client reviews it and calls Create. The original image is archived
// best-effort when a bucket is configured.
func (h *TransactionsHandler) Scan(w http.ResponseWriter, r *http.Request) {
	if h.extractor == nil {
		middleware.WriteError(w, http.StatusServiceUnavailable, "Receipt scanning is not configured")
		return
	}

	var req struct {
		Image    string `json:"image"`
		MimeType string `json:"mimeType"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Image == "" {
		middleware.WriteError(w, http.StatusBadRequest, "image is required")
		return
	}

	// Accept both a raw base64 payload and a data URL.
	payload := req.Image
	if strings.HasPrefix(payload, "data:") {
		if idx := strings.Index(payload, ","); idx != -1 {
			payload = payload[idx+1:]
		}
	}

	image, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "image must be base64 encoded")
		return
	}

	draft, err := h.extractor.ExtractTransaction(r.Context(), image, req.MimeType)
	if err != nil {
		h.log.Error().Err(err).Msg("Receipt extraction failed")
		middleware.WriteError(w, http.StatusBadGateway, "Failed to read receipt")
		return
	}

	receiptURI := ""
	if h.archiver != nil {
		receiptURI, err = h.archiver.ArchiveReceipt(r.Context(), image, req.MimeType)
		if err != nil {
			// The draft is still useful without the archived copy.
			h.log.Warn().Err(err).Msg("Failed to archive receipt image")
			receiptURI = ""
		}
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"draft":      draft,
		"receiptUri": receiptURI,
	})
}
