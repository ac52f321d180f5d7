// Package storage is the SQLite-backed record store: users, per-user currency
// preferences, and expense records. Every expense query is scoped by the
// owning user.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"snapledger/internal/domain"
)

// ErrNotFound is returned when a lookup matches no row for the given owner.
var ErrNotFound = errors.New("storage: not found")

// Repository wraps the SQLite database.
type Repository struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at dbPath, runs migrations,
// and returns a ready repository.
func Open(dbPath string) (*Repository, error) {
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	// Cascade deletes (user -> preference, user -> expenses) need this on.
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Repository{db: db}, nil
}

// Close closes the underlying database.
func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// CreateUser inserts a user account row.
func (r *Repository) CreateUser(ctx context.Context, id, email string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, email) VALUES (?, ?)`, id, email)
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// DeleteUser removes a user; the preference row and expenses cascade.
func (r *Repository) DeleteUser(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// CreatePreference inserts the user's currency preference row.
func (r *Repository) CreatePreference(ctx context.Context, pref domain.UserPreference) error {
	now := time.Now().UTC()
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO user_preferences (user_id, target_currency, created_at, updated_at)
		 VALUES (?, ?, ?, ?)`,
		pref.UserID, pref.TargetCurrency, now, now)
	if err != nil {
		return fmt.Errorf("create preference: %w", err)
	}
	return nil
}

// GetPreference returns the user's currency preference.
func (r *Repository) GetPreference(ctx context.Context, userID string) (domain.UserPreference, error) {
	var pref domain.UserPreference
	err := r.db.QueryRowContext(ctx,
		`SELECT user_id, target_currency, created_at, updated_at
		 FROM user_preferences WHERE user_id = ?`, userID).
		Scan(&pref.UserID, &pref.TargetCurrency, &pref.CreatedAt, &pref.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.UserPreference{}, ErrNotFound
	}
	if err != nil {
		return domain.UserPreference{}, fmt.Errorf("get preference: %w", err)
	}
	return pref, nil
}

// UpdatePreference sets the user's target currency.
func (r *Repository) UpdatePreference(ctx context.Context, userID, targetCurrency string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE user_preferences SET target_currency = ?, updated_at = ? WHERE user_id = ?`,
		targetCurrency, time.Now().UTC(), userID)
	if err != nil {
		return fmt.Errorf("update preference: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// InsertExpense persists a new expense record.
func (r *Repository) InsertExpense(ctx context.Context, rec *domain.ExpenseRecord) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO expenses (
			id, user_id, place, category, expense_date,
			amount, currency, amount_in_target_currency,
			receipt_image_ref, created_at, updated_at
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.UserID, rec.Place, string(rec.Category), rec.ExpenseDate,
		nullDecimalToDB(rec.Amount), rec.Currency, nullDecimalToDB(rec.AmountInTargetCurrency),
		rec.ReceiptImageRef, rec.CreatedAt, rec.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert expense: %w", err)
	}
	return nil
}

// UpdateExpense rewrites the mutable fields of an expense, scoped by owner.
// The receipt image reference is immutable and never touched here.
func (r *Repository) UpdateExpense(ctx context.Context, rec *domain.ExpenseRecord) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE expenses SET
			place = ?, category = ?, expense_date = ?,
			amount = ?, currency = ?, amount_in_target_currency = ?,
			updated_at = ?
		 WHERE id = ? AND user_id = ?`,
		rec.Place, string(rec.Category), rec.ExpenseDate,
		nullDecimalToDB(rec.Amount), rec.Currency, nullDecimalToDB(rec.AmountInTargetCurrency),
		rec.UpdatedAt,
		rec.ID, rec.UserID)
	if err != nil {
		return fmt.Errorf("update expense: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// GetExpense returns one expense owned by userID.
func (r *Repository) GetExpense(ctx context.Context, userID, id string) (domain.ExpenseRecord, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, place, category, expense_date,
			amount, currency, amount_in_target_currency,
			receipt_image_ref, created_at, updated_at
		 FROM expenses WHERE id = ? AND user_id = ?`, id, userID)
	rec, err := scanExpense(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ExpenseRecord{}, ErrNotFound
	}
	if err != nil {
		return domain.ExpenseRecord{}, fmt.Errorf("get expense: %w", err)
	}
	return rec, nil
}

// ListExpensesByUser returns the user's expenses ordered by expense date
// descending.
func (r *Repository) ListExpensesByUser(ctx context.Context, userID string) ([]domain.ExpenseRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, place, category, expense_date,
			amount, currency, amount_in_target_currency,
			receipt_image_ref, created_at, updated_at
		 FROM expenses WHERE user_id = ?
		 ORDER BY expense_date DESC, created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	defer rows.Close()

	var out []domain.ExpenseRecord
	for rows.Next() {
		rec, err := scanExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("list expenses: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExpense(row rowScanner) (domain.ExpenseRecord, error) {
	var (
		rec      domain.ExpenseRecord
		category string
		amount   sql.NullString
		target   sql.NullString
	)
	err := row.Scan(
		&rec.ID, &rec.UserID, &rec.Place, &category, &rec.ExpenseDate,
		&amount, &rec.Currency, &target,
		&rec.ReceiptImageRef, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return domain.ExpenseRecord{}, err
	}
	rec.Category = domain.Category(category)

	if rec.Amount, err = nullDecimalFromDB(amount); err != nil {
		return domain.ExpenseRecord{}, fmt.Errorf("amount column: %w", err)
	}
	if rec.AmountInTargetCurrency, err = nullDecimalFromDB(target); err != nil {
		return domain.ExpenseRecord{}, fmt.Errorf("amount_in_target_currency column: %w", err)
	}
	return rec, nil
}

// Amounts are stored as fixed-point text so SQLite never coerces them to
// floats; NULL keeps "unset" distinct from zero.
func nullDecimalToDB(d decimal.NullDecimal) any {
	if !d.Valid {
		return nil
	}
	return d.Decimal.StringFixed(2)
}

func nullDecimalFromDB(s sql.NullString) (decimal.NullDecimal, error) {
	if !s.Valid {
		return decimal.NullDecimal{}, nil
	}
	d, err := decimal.NewFromString(s.String)
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	return decimal.NullDecimal{Decimal: d, Valid: true}, nil
}
