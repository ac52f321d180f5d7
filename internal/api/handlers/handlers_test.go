package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"snapledger/internal/api/middleware"
	"snapledger/internal/domain"
	"snapledger/internal/extract"
	"snapledger/internal/logger"
	"snapledger/internal/pipeline"
	"snapledger/internal/storage"
)

type mockIngestor struct {
	IngestFunc func(ctx context.Context, userID string, imageBytes []byte, filename string) (*domain.ExpenseRecord, error)
	ResaveFunc func(ctx context.Context, userID, expenseID string, edit pipeline.Edit) (*domain.ExpenseRecord, error)
}

func (m *mockIngestor) Ingest(ctx context.Context, userID string, imageBytes []byte, filename string) (*domain.ExpenseRecord, error) {
	if m.IngestFunc != nil {
		return m.IngestFunc(ctx, userID, imageBytes, filename)
	}
	return &domain.ExpenseRecord{}, nil
}

func (m *mockIngestor) Resave(ctx context.Context, userID, expenseID string, edit pipeline.Edit) (*domain.ExpenseRecord, error) {
	if m.ResaveFunc != nil {
		return m.ResaveFunc(ctx, userID, expenseID, edit)
	}
	return &domain.ExpenseRecord{}, nil
}

type mockReader struct {
	GetExpenseFunc         func(ctx context.Context, userID, id string) (domain.ExpenseRecord, error)
	ListExpensesByUserFunc func(ctx context.Context, userID string) ([]domain.ExpenseRecord, error)
}

func (m *mockReader) GetExpense(ctx context.Context, userID, id string) (domain.ExpenseRecord, error) {
	if m.GetExpenseFunc != nil {
		return m.GetExpenseFunc(ctx, userID, id)
	}
	return domain.ExpenseRecord{}, storage.ErrNotFound
}

func (m *mockReader) ListExpensesByUser(ctx context.Context, userID string) ([]domain.ExpenseRecord, error) {
	if m.ListExpensesByUserFunc != nil {
		return m.ListExpensesByUserFunc(ctx, userID)
	}
	return nil, nil
}

// authed routes the request through the auth middleware so handlers see an
// authenticated user, the way they do in production.
func authed(h http.HandlerFunc) http.Handler {
	return middleware.Auth(h)
}

func doAuthed(t *testing.T, h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	req.Header.Set("X-User-ID", "user-1")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func receiptForm(t *testing.T, field string) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile(field, "receipt.jpg")
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	part.Write([]byte("jpeg bytes"))
	mw.Close()
	return &body, mw.FormDataContentType()
}

func TestReceiptsUpload(t *testing.T) {
	ingestor := &mockIngestor{
		IngestFunc: func(ctx context.Context, userID string, imageBytes []byte, filename string) (*domain.ExpenseRecord, error) {
			if userID != "user-1" {
				t.Errorf("userID = %q, want user-1", userID)
			}
			if filename != "receipt.jpg" {
				t.Errorf("filename = %q, want receipt.jpg", filename)
			}
			if string(imageBytes) != "jpeg bytes" {
				t.Errorf("imageBytes = %q", imageBytes)
			}
			return &domain.ExpenseRecord{ID: "exp-1", UserID: userID}, nil
		},
	}
	h := NewReceiptsHandler(ingestor, logger.Nop())

	body, contentType := receiptForm(t, "receipt")
	req := httptest.NewRequest(http.MethodPost, "/api/receipts", body)
	req.Header.Set("Content-Type", contentType)

	rec := doAuthed(t, authed(h.Upload), req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201 (%s)", rec.Code, rec.Body.String())
	}

	var got domain.ExpenseRecord
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("response is not a record: %v", err)
	}
	if got.ID != "exp-1" {
		t.Errorf("ID = %q, want exp-1", got.ID)
	}
}

func TestReceiptsUpload_ExtractionFailureReturns422(t *testing.T) {
	ingestor := &mockIngestor{
		IngestFunc: func(ctx context.Context, userID string, imageBytes []byte, filename string) (*domain.ExpenseRecord, error) {
			return &domain.ExpenseRecord{ID: "exp-1"}, extract.ErrEmptyResponse
		},
	}
	h := NewReceiptsHandler(ingestor, logger.Nop())

	body, contentType := receiptForm(t, "receipt")
	req := httptest.NewRequest(http.MethodPost, "/api/receipts", body)
	req.Header.Set("Content-Type", contentType)

	rec := doAuthed(t, authed(h.Upload), req)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422 (%s)", rec.Code, rec.Body.String())
	}

	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("response: %v", err)
	}
	if resp["expense_id"] != "exp-1" {
		t.Errorf("expense_id = %q, want exp-1 so the client can offer manual editing", resp["expense_id"])
	}
}

func TestReceiptsUpload_MissingFile(t *testing.T) {
	h := NewReceiptsHandler(&mockIngestor{}, logger.Nop())

	body, contentType := receiptForm(t, "attachment")
	req := httptest.NewRequest(http.MethodPost, "/api/receipts", body)
	req.Header.Set("Content-Type", contentType)

	rec := doAuthed(t, authed(h.Upload), req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestExpensesList(t *testing.T) {
	reader := &mockReader{
		ListExpensesByUserFunc: func(ctx context.Context, userID string) ([]domain.ExpenseRecord, error) {
			return []domain.ExpenseRecord{{ID: "exp-1"}, {ID: "exp-2"}}, nil
		},
	}
	h := NewExpensesHandler(reader, &mockIngestor{}, logger.Nop())

	req := httptest.NewRequest(http.MethodGet, "/api/expenses", nil)
	rec := doAuthed(t, authed(h.List), req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp struct {
		Expenses []domain.ExpenseRecord `json:"expenses"`
		Count    int                    `json:"count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("response: %v", err)
	}
	if resp.Count != 2 || len(resp.Expenses) != 2 {
		t.Errorf("count = %d with %d expenses, want 2/2", resp.Count, len(resp.Expenses))
	}
}

func TestExpensesGet_NotFound(t *testing.T) {
	h := NewExpensesHandler(&mockReader{}, &mockIngestor{}, logger.Nop())

	req := httptest.NewRequest(http.MethodGet, "/api/expenses/nope", nil)
	rec := doAuthed(t, authed(func(w http.ResponseWriter, r *http.Request) {
		h.Get(w, r, "nope")
	}), req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestExpensesUpdate(t *testing.T) {
	var gotEdit pipeline.Edit
	ingestor := &mockIngestor{
		ResaveFunc: func(ctx context.Context, userID, expenseID string, edit pipeline.Edit) (*domain.ExpenseRecord, error) {
			gotEdit = edit
			return &domain.ExpenseRecord{ID: expenseID, UserID: userID}, nil
		},
	}
	h := NewExpensesHandler(&mockReader{}, ingestor, logger.Nop())

	payload := `{"place": "Cafe", "category": "Dining Out", "expense_date": "2024-11-13", "amount": 12.5, "currency": "EUR"}`
	req := httptest.NewRequest(http.MethodPut, "/api/expenses/exp-1", strings.NewReader(payload))

	rec := doAuthed(t, authed(func(w http.ResponseWriter, r *http.Request) {
		h.Update(w, r, "exp-1")
	}), req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (%s)", rec.Code, rec.Body.String())
	}
	if gotEdit.Category != "Dining Out" || gotEdit.Currency != "EUR" {
		t.Errorf("edit = %+v", gotEdit)
	}
	if !gotEdit.Amount.Equal(decimal.RequireFromString("12.5")) {
		t.Errorf("edit amount = %s, want 12.5", gotEdit.Amount)
	}
}

func TestExpensesUpdate_Errors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"unknown expense", storage.ErrNotFound, http.StatusNotFound},
		{"invalid edit", pipeline.ErrInvalidEdit, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ingestor := &mockIngestor{
				ResaveFunc: func(ctx context.Context, userID, expenseID string, edit pipeline.Edit) (*domain.ExpenseRecord, error) {
					return nil, tt.err
				},
			}
			h := NewExpensesHandler(&mockReader{}, ingestor, logger.Nop())

			req := httptest.NewRequest(http.MethodPut, "/api/expenses/exp-1", strings.NewReader(`{"amount": 1, "currency": "EUR"}`))
			rec := doAuthed(t, authed(func(w http.ResponseWriter, r *http.Request) {
				h.Update(w, r, "exp-1")
			}), req)
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}

func TestDashboardGet(t *testing.T) {
	amount := func(s string) decimal.NullDecimal {
		return decimal.NullDecimal{Decimal: decimal.RequireFromString(s), Valid: true}
	}
	reader := &mockReader{
		ListExpensesByUserFunc: func(ctx context.Context, userID string) ([]domain.ExpenseRecord, error) {
			return []domain.ExpenseRecord{
				{Category: domain.CategoryDiningOut, AmountInTargetCurrency: amount("60")},
				{Category: domain.CategoryGroceries, AmountInTargetCurrency: amount("40")},
			}, nil
		},
	}
	h := NewDashboardHandler(reader, domain.CategoryDiningOut, logger.Nop())

	req := httptest.NewRequest(http.MethodGet, "/api/dashboard", nil)
	rec := doAuthed(t, authed(h.Get), req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp struct {
		Categories []struct {
			Label string `json:"label"`
		} `json:"categories"`
		Advisory *struct {
			Category string `json:"category"`
		} `json:"advisory"`
		Expenses int `json:"expenses"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("response: %v", err)
	}
	if len(resp.Categories) != 2 {
		t.Errorf("categories = %+v, want 2 buckets", resp.Categories)
	}
	if resp.Advisory == nil || resp.Advisory.Category != "Dining Out" {
		t.Errorf("advisory = %+v, want Dining Out flagged at 60%%", resp.Advisory)
	}
	if resp.Expenses != 2 {
		t.Errorf("expenses = %d, want 2", resp.Expenses)
	}
}

type mockRegistrar struct {
	RegisterFunc func(ctx context.Context, email string) (string, error)
}

func (m *mockRegistrar) Register(ctx context.Context, email string) (string, error) {
	if m.RegisterFunc != nil {
		return m.RegisterFunc(ctx, email)
	}
	return "user-1", nil
}

type mockPrefs struct {
	GetPreferenceFunc    func(ctx context.Context, userID string) (domain.UserPreference, error)
	UpdatePreferenceFunc func(ctx context.Context, userID, targetCurrency string) error
}

func (m *mockPrefs) GetPreference(ctx context.Context, userID string) (domain.UserPreference, error) {
	if m.GetPreferenceFunc != nil {
		return m.GetPreferenceFunc(ctx, userID)
	}
	return domain.UserPreference{}, storage.ErrNotFound
}

func (m *mockPrefs) UpdatePreference(ctx context.Context, userID, targetCurrency string) error {
	if m.UpdatePreferenceFunc != nil {
		return m.UpdatePreferenceFunc(ctx, userID, targetCurrency)
	}
	return nil
}

func TestUsersRegister(t *testing.T) {
	registrar := &mockRegistrar{
		RegisterFunc: func(ctx context.Context, email string) (string, error) {
			if email != "sam@example.com" {
				t.Errorf("email = %q, want sam@example.com", email)
			}
			return "user-9", nil
		},
	}
	h := NewUsersHandler(registrar, &mockPrefs{}, logger.Nop())

	req := httptest.NewRequest(http.MethodPost, "/api/users", strings.NewReader(`{"email": " sam@example.com "}`))
	rec := httptest.NewRecorder()
	h.Register(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201 (%s)", rec.Code, rec.Body.String())
	}

	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("response: %v", err)
	}
	if resp["user_id"] != "user-9" {
		t.Errorf("user_id = %q, want user-9", resp["user_id"])
	}
}

func TestUsersRegister_EmptyEmail(t *testing.T) {
	h := NewUsersHandler(&mockRegistrar{}, &mockPrefs{}, logger.Nop())

	for _, payload := range []string{`{}`, `{"email": "  "}`, `not json`} {
		req := httptest.NewRequest(http.MethodPost, "/api/users", strings.NewReader(payload))
		rec := httptest.NewRecorder()
		h.Register(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("payload %q: status = %d, want 400", payload, rec.Code)
		}
	}
}

func TestUpdatePreference(t *testing.T) {
	var gotCurrency string
	prefs := &mockPrefs{
		UpdatePreferenceFunc: func(ctx context.Context, userID, targetCurrency string) error {
			gotCurrency = targetCurrency
			return nil
		},
	}
	h := NewUsersHandler(&mockRegistrar{}, prefs, logger.Nop())

	req := httptest.NewRequest(http.MethodPut, "/api/preference", strings.NewReader(`{"target_currency": " usd "}`))
	rec := doAuthed(t, authed(h.UpdatePreference), req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (%s)", rec.Code, rec.Body.String())
	}
	if gotCurrency != "USD" {
		t.Errorf("stored currency = %q, want the upper-cased USD", gotCurrency)
	}
}

func TestUpdatePreference_InvalidCode(t *testing.T) {
	h := NewUsersHandler(&mockRegistrar{}, &mockPrefs{}, logger.Nop())

	for _, payload := range []string{`{"target_currency": "EU"}`, `{"target_currency": ""}`, `{"target_currency": "EUROS"}`} {
		req := httptest.NewRequest(http.MethodPut, "/api/preference", strings.NewReader(payload))
		rec := doAuthed(t, authed(h.UpdatePreference), req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("payload %q: status = %d, want 400", payload, rec.Code)
		}
	}
}
