package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// UnknownPlace is the sentinel merchant name used when extraction does not
// return a place.
const UnknownPlace = "Unknown place"

// ExpenseRecord is one purchase event. Extraction-derived fields stay unset
// until the pipeline populates them; AmountInTargetCurrency stays unset when
// the rate lookup failed, which is distinct from a converted amount of zero.
type ExpenseRecord struct {
	ID     string `json:"id"`
	UserID string `json:"user_id"`

	Place       string   `json:"place,omitempty"`
	Category    Category `json:"category,omitempty"`
	ExpenseDate string   `json:"expense_date,omitempty"` // dash-delimited, stored raw otherwise
	Currency    string   `json:"currency,omitempty"`     // 3-letter ISO 4217, upper case

	Amount                 decimal.NullDecimal `json:"amount"`
	AmountInTargetCurrency decimal.NullDecimal `json:"amount_in_target_currency"`

	// ReceiptImageRef points at the stored image bytes. Immutable after
	// creation.
	ReceiptImageRef string `json:"receipt_image_ref"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// UserPreference is the 1:1 companion of a user account. It is created by the
// registration workflow the moment the account exists and is removed only by
// the account's cascade delete.
type UserPreference struct {
	UserID         string    `json:"user_id"`
	TargetCurrency string    `json:"target_currency"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}
