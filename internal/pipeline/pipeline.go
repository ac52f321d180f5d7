// Package pipeline orchestrates the receipt-to-ledger-entry flow: store the
// image, extract fields with the vision model, look up historical rates, and
// convert into the owner's target currency. Each upload or edit runs
// synchronously within its triggering request.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"snapledger/internal/domain"
	"snapledger/internal/fx"
)

// ErrInvalidEdit is returned by Resave when the edited values violate a
// record invariant (for now: a negative amount).
var ErrInvalidEdit = errors.New("pipeline: invalid edit")

// Options configures the pipeline variants.
type Options struct {
	// DefaultTargetCurrency is used when per-user preferences are disabled
	// or a preference cannot be loaded.
	DefaultTargetCurrency string

	// PerUserCurrency converts into each owner's preferred currency
	// instead of the deployment default.
	PerUserCurrency bool

	// StorePlace keeps the extracted merchant place on the record.
	StorePlace bool
}

// Orchestrator wires the pipeline collaborators together.
type Orchestrator struct {
	records   RecordStore
	images    ImageStore
	extractor Extractor
	rates     RateSource
	opts      Options
	log       zerolog.Logger

	now func() time.Time
}

// New creates an orchestrator.
func New(records RecordStore, images ImageStore, extractor Extractor, rates RateSource, opts Options, log zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		records:   records,
		images:    images,
		extractor: extractor,
		rates:     rates,
		opts:      opts,
		log:       log,
		now:       time.Now,
	}
}

// Ingest runs the full pipeline for one uploaded receipt.
//
// The record is persisted with just the image reference and owner before
// extraction, so the image is never lost. An extraction failure aborts the
// pipeline and is returned alongside the partial record; a rate or conversion
// failure only degrades the record (logged, never surfaced as an error).
func (o *Orchestrator) Ingest(ctx context.Context, userID string, imageBytes []byte, filename string) (*domain.ExpenseRecord, error) {
	// 1. Store the image and create the record shell.
	ref, err := o.images.Store(ctx, imageBytes, filename)
	if err != nil {
		return nil, fmt.Errorf("store receipt image: %w", err)
	}

	now := o.now().UTC()
	rec := &domain.ExpenseRecord{
		ID:              uuid.NewString(),
		UserID:          userID,
		ReceiptImageRef: ref,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := o.records.InsertExpense(ctx, rec); err != nil {
		return nil, fmt.Errorf("create expense record: %w", err)
	}

	// 2. Extract. Failure here aborts: the caller needs to know the
	// receipt could not be read, and the blank record stays behind with
	// its image.
	fields, err := o.extractor.Extract(ctx, imageBytes)
	if err != nil {
		o.log.Error().Err(err).
			Str("expense_id", rec.ID).
			Str("user_id", userID).
			Msg("Receipt extraction failed")
		return rec, fmt.Errorf("extract receipt: %w", err)
	}

	if o.opts.StorePlace {
		rec.Place = fields.Place
	}
	rec.Category = fields.Category
	rec.ExpenseDate = fields.Date
	rec.Currency = fields.Currency
	rec.Amount = decimal.NullDecimal{Decimal: fields.Amount, Valid: true}

	// 3+4. Rate lookup and conversion; failures degrade the record.
	o.convertTail(ctx, rec)

	// 5. Finalize with whatever was populated.
	rec.UpdatedAt = o.now().UTC()
	if err := o.records.UpdateExpense(ctx, rec); err != nil {
		return rec, fmt.Errorf("finalize expense record: %w", err)
	}
	return rec, nil
}

// Edit carries the user-editable fields of an expense.
type Edit struct {
	Place       string
	Category    string
	ExpenseDate string
	Amount      decimal.Decimal
	Currency    string
}

// Resave applies a user edit and re-runs only the rate-lookup and conversion
// tail; extraction is never re-invoked for an edit.
func (o *Orchestrator) Resave(ctx context.Context, userID, expenseID string, edit Edit) (*domain.ExpenseRecord, error) {
	rec, err := o.records.GetExpense(ctx, userID, expenseID)
	if err != nil {
		return nil, fmt.Errorf("load expense: %w", err)
	}

	if edit.Amount.IsNegative() {
		return nil, fmt.Errorf("%w: negative amount %s", ErrInvalidEdit, edit.Amount)
	}

	// The same boundary coercions as extraction: categories collapse onto
	// the canonical set, dates keep the dash convention, currencies are
	// upper-cased.
	if o.opts.StorePlace {
		rec.Place = edit.Place
	}
	rec.Category = domain.CoerceCategory(edit.Category)
	rec.ExpenseDate = strings.ReplaceAll(edit.ExpenseDate, "/", "-")
	rec.Currency = strings.ToUpper(strings.TrimSpace(edit.Currency))
	rec.Amount = decimal.NullDecimal{Decimal: edit.Amount.Round(2), Valid: true}

	o.convertTail(ctx, &rec)

	rec.UpdatedAt = o.now().UTC()
	if err := o.records.UpdateExpense(ctx, &rec); err != nil {
		return nil, fmt.Errorf("save expense record: %w", err)
	}
	return &rec, nil
}

// convertTail runs the RateLookedUp and Converted stages. Any failure leaves
// AmountInTargetCurrency unset and is logged with enough context to diagnose;
// a receipt with an unconvertible currency is still a usable record.
func (o *Orchestrator) convertTail(ctx context.Context, rec *domain.ExpenseRecord) {
	// A re-run must not keep a conversion computed from stale fields.
	rec.AmountInTargetCurrency = decimal.NullDecimal{}

	if !rec.Amount.Valid || rec.Currency == "" {
		return
	}

	date, err := civil.ParseDate(rec.ExpenseDate)
	if err != nil {
		o.log.Warn().
			Str("expense_id", rec.ID).
			Str("expense_date", rec.ExpenseDate).
			Msg("Expense date is not a calendar date, skipping conversion")
		return
	}

	target := o.targetCurrency(ctx, rec.UserID)

	quote, err := o.rates.Lookup(ctx, date, rec.Currency, target)
	if err != nil {
		o.log.Error().Err(err).
			Str("expense_id", rec.ID).
			Str("date", date.String()).
			Str("from", rec.Currency).
			Str("to", target).
			Msg("Rate lookup failed, record stays unconverted")
		return
	}

	if !quote.FromToBase.Valid || !quote.ToToBase.Valid ||
		!quote.FromToBase.Decimal.IsPositive() || !quote.ToToBase.Decimal.IsPositive() {
		o.log.Warn().
			Str("expense_id", rec.ID).
			Str("date", date.String()).
			Str("from", rec.Currency).
			Str("to", target).
			Msg("Rates missing or non-positive, record stays unconverted")
		return
	}

	converted, err := fx.Convert(rec.Amount.Decimal, quote.FromToBase.Decimal, quote.ToToBase.Decimal)
	if err != nil {
		o.log.Error().Err(err).Str("expense_id", rec.ID).Msg("Conversion failed")
		return
	}
	rec.AmountInTargetCurrency = decimal.NullDecimal{Decimal: converted, Valid: true}
}

// targetCurrency resolves the currency conversions should land in.
func (o *Orchestrator) targetCurrency(ctx context.Context, userID string) string {
	if !o.opts.PerUserCurrency {
		return o.opts.DefaultTargetCurrency
	}
	pref, err := o.records.GetPreference(ctx, userID)
	if err != nil {
		o.log.Warn().Err(err).
			Str("user_id", userID).
			Msg("No currency preference, falling back to default")
		return o.opts.DefaultTargetCurrency
	}
	return pref.TargetCurrency
}
