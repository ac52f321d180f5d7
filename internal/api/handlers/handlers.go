// Package handlers implements the HTTP surface: receipt upload, expense
// detail/edit, the category dashboard, and user registration. Handlers only
// call into the orchestrator, aggregator, and record store; rendering is JSON.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"snapledger/internal/api/middleware"
	"snapledger/internal/domain"
	"snapledger/internal/pipeline"
	"snapledger/internal/report"
	"snapledger/internal/storage"
)

// maxReceiptBytes bounds uploaded image size.
const maxReceiptBytes = 10 << 20 // 10 MiB

// Ingestor is the pipeline surface the handlers call.
type Ingestor interface {
	Ingest(ctx context.Context, userID string, imageBytes []byte, filename string) (*domain.ExpenseRecord, error)
	Resave(ctx context.Context, userID, expenseID string, edit pipeline.Edit) (*domain.ExpenseRecord, error)
}

// ExpenseReader is the record store surface the read endpoints use.
type ExpenseReader interface {
	GetExpense(ctx context.Context, userID, id string) (domain.ExpenseRecord, error)
	ListExpensesByUser(ctx context.Context, userID string) ([]domain.ExpenseRecord, error)
}

// ReceiptsHandler handles receipt uploads.
type ReceiptsHandler struct {
	ingestor Ingestor
	log      zerolog.Logger
}

// NewReceiptsHandler creates a receipts handler.
func NewReceiptsHandler(ingestor Ingestor, log zerolog.Logger) *ReceiptsHandler {
	return &ReceiptsHandler{ingestor: ingestor, log: log}
}

// Upload handles POST /api/receipts. The receipt image travels as the
// "receipt" part of a multipart form. Extraction failures come back as 422
// with the created record's ID, so the client can tell the user the image was
// kept even though it could not be read.
func (h *ReceiptsHandler) Upload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.UserID(ctx)

	r.Body = http.MaxBytesReader(w, r.Body, maxReceiptBytes)
	file, header, err := r.FormFile("receipt")
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "A 'receipt' image file is required")
		return
	}
	defer file.Close()

	imageBytes, err := io.ReadAll(file)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Failed to read receipt image")
		return
	}

	rec, err := h.ingestor.Ingest(ctx, userID, imageBytes, header.Filename)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", userID).Msg("Receipt ingestion failed")
		if rec != nil {
			// The record shell exists; the receipt just could not be read.
			middleware.WriteJSON(w, http.StatusUnprocessableEntity, map[string]string{
				"error":      "The receipt could not be read. You can edit the expense manually.",
				"expense_id": rec.ID,
			})
			return
		}
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to store receipt")
		return
	}

	middleware.WriteJSON(w, http.StatusCreated, rec)
}

// ExpensesHandler handles expense detail, listing, and edits.
type ExpensesHandler struct {
	reader   ExpenseReader
	ingestor Ingestor
	log      zerolog.Logger
}

// NewExpensesHandler creates an expenses handler.
func NewExpensesHandler(reader ExpenseReader, ingestor Ingestor, log zerolog.Logger) *ExpensesHandler {
	return &ExpensesHandler{reader: reader, ingestor: ingestor, log: log}
}

// List handles GET /api/expenses, ordered by expense date descending.
func (h *ExpensesHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.UserID(ctx)

	expenses, err := h.reader.ListExpensesByUser(ctx, userID)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", userID).Msg("Failed to list expenses")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list expenses")
		return
	}
	if expenses == nil {
		expenses = []domain.ExpenseRecord{}
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"expenses": expenses,
		"count":    len(expenses),
	})
}

// Get handles GET /api/expenses/{id}.
func (h *ExpensesHandler) Get(w http.ResponseWriter, r *http.Request, expenseID string) {
	ctx := r.Context()
	userID := middleware.UserID(ctx)

	rec, err := h.reader.GetExpense(ctx, userID, expenseID)
	if errors.Is(err, storage.ErrNotFound) {
		middleware.WriteError(w, http.StatusNotFound, "Expense not found")
		return
	}
	if err != nil {
		h.log.Error().Err(err).Str("expense_id", expenseID).Msg("Failed to get expense")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to get expense")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, rec)
}

// editRequest is the edit form payload.
type editRequest struct {
	Place       string          `json:"place"`
	Category    string          `json:"category"`
	ExpenseDate string          `json:"expense_date"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
}

// Update handles PUT /api/expenses/{id}. It re-runs only the rate-lookup and
// conversion tail against the edited values; extraction never runs again.
func (h *ExpensesHandler) Update(w http.ResponseWriter, r *http.Request, expenseID string) {
	ctx := r.Context()
	userID := middleware.UserID(ctx)

	var req editRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	rec, err := h.ingestor.Resave(ctx, userID, expenseID, pipeline.Edit{
		Place:       req.Place,
		Category:    req.Category,
		ExpenseDate: req.ExpenseDate,
		Amount:      req.Amount,
		Currency:    req.Currency,
	})
	if errors.Is(err, storage.ErrNotFound) {
		middleware.WriteError(w, http.StatusNotFound, "Expense not found")
		return
	}
	if errors.Is(err, pipeline.ErrInvalidEdit) {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		h.log.Error().Err(err).Str("expense_id", expenseID).Msg("Failed to save expense")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to save expense")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, rec)
}

// DashboardHandler aggregates the user's spend by category.
type DashboardHandler struct {
	reader  ExpenseReader
	watched domain.Category
	log     zerolog.Logger
}

// NewDashboardHandler creates a dashboard handler. watched is the category
// whose spend concentration triggers the advisory.
func NewDashboardHandler(reader ExpenseReader, watched domain.Category, log zerolog.Logger) *DashboardHandler {
	return &DashboardHandler{reader: reader, watched: watched, log: log}
}

// Get handles GET /api/dashboard.
func (h *DashboardHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.UserID(ctx)

	expenses, err := h.reader.ListExpensesByUser(ctx, userID)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", userID).Msg("Failed to load expenses for dashboard")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to build dashboard")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"categories": report.Aggregate(expenses),
		"advisory":   report.Advise(expenses, h.watched),
		"expenses":   len(expenses),
	})
}

// Registrar is the user registration use case.
type Registrar interface {
	Register(ctx context.Context, email string) (string, error)
}

// PreferenceStore updates a user's target currency.
type PreferenceStore interface {
	GetPreference(ctx context.Context, userID string) (domain.UserPreference, error)
	UpdatePreference(ctx context.Context, userID, targetCurrency string) error
}

// UsersHandler handles registration and currency preferences.
type UsersHandler struct {
	registrar Registrar
	prefs     PreferenceStore
	log       zerolog.Logger
}

// NewUsersHandler creates a users handler.
func NewUsersHandler(registrar Registrar, prefs PreferenceStore, log zerolog.Logger) *UsersHandler {
	return &UsersHandler{registrar: registrar, prefs: prefs, log: log}
}

// Register handles POST /api/users. Creating the account also creates its
// currency preference; that coupling lives in the registration use case.
func (h *UsersHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Email) == "" {
		middleware.WriteError(w, http.StatusBadRequest, "A non-empty email is required")
		return
	}

	id, err := h.registrar.Register(r.Context(), strings.TrimSpace(req.Email))
	if err != nil {
		h.log.Error().Err(err).Msg("Registration failed")
		middleware.WriteError(w, http.StatusInternalServerError, "Registration failed")
		return
	}

	middleware.WriteJSON(w, http.StatusCreated, map[string]string{"user_id": id})
}

// GetPreference handles GET /api/preference.
func (h *UsersHandler) GetPreference(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.UserID(ctx)

	pref, err := h.prefs.GetPreference(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		middleware.WriteError(w, http.StatusNotFound, "Preference not found")
		return
	}
	if err != nil {
		h.log.Error().Err(err).Str("user_id", userID).Msg("Failed to get preference")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to get preference")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, pref)
}

// UpdatePreference handles PUT /api/preference.
func (h *UsersHandler) UpdatePreference(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.UserID(ctx)

	var req struct {
		TargetCurrency string `json:"target_currency"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	currency := strings.ToUpper(strings.TrimSpace(req.TargetCurrency))
	if len(currency) != 3 {
		middleware.WriteError(w, http.StatusBadRequest, "target_currency must be a 3-letter ISO 4217 code")
		return
	}

	if err := h.prefs.UpdatePreference(ctx, userID, currency); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			middleware.WriteError(w, http.StatusNotFound, "Preference not found")
			return
		}
		h.log.Error().Err(err).Str("user_id", userID).Msg("Failed to update preference")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to update preference")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]string{
		"user_id":         userID,
		"target_currency": currency,
	})
}
