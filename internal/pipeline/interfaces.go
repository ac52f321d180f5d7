package pipeline

import (
	"context"

	"cloud.google.com/go/civil"

	"snapledger/internal/domain"
	"snapledger/internal/extract"
	"snapledger/internal/fx"
)

// Extractor turns raw receipt image bytes into validated fields. The concrete
// implementation is extract.Engine; the interface enables mocking in tests.
type Extractor interface {
	Extract(ctx context.Context, imageBytes []byte) (extract.Fields, error)
}

// RateSource looks up historical rates-to-base for a currency pair on a date.
type RateSource interface {
	Lookup(ctx context.Context, date civil.Date, fromCurrency, toCurrency string) (fx.Quote, error)
}

// ImageStore persists receipt images and returns a stable reference.
type ImageStore interface {
	Store(ctx context.Context, data []byte, filename string) (string, error)
}

// RecordStore is the subset of the record store the pipeline needs. All
// expense operations are scoped by the owning user.
type RecordStore interface {
	InsertExpense(ctx context.Context, rec *domain.ExpenseRecord) error
	UpdateExpense(ctx context.Context, rec *domain.ExpenseRecord) error
	GetExpense(ctx context.Context, userID, id string) (domain.ExpenseRecord, error)
	GetPreference(ctx context.Context, userID string) (domain.UserPreference, error)
}
