// Package users implements the account registration use case. Creating the
// currency preference is an explicit step of this workflow, not a hidden
// database trigger: every account gets its preference row the moment it
// exists.
package users

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"snapledger/internal/domain"
)

// Store is the subset of the record store registration needs.
type Store interface {
	CreateUser(ctx context.Context, id, email string) error
	CreatePreference(ctx context.Context, pref domain.UserPreference) error
}

// Service runs the registration workflow.
type Service struct {
	store           Store
	defaultCurrency string
	log             zerolog.Logger
}

// NewService creates the registration service. defaultCurrency seeds every
// new account's target currency; users change it later via their preference.
func NewService(store Store, defaultCurrency string, log zerolog.Logger) *Service {
	return &Service{
		store:           store,
		defaultCurrency: defaultCurrency,
		log:             log,
	}
}

// Register creates the account and, as part of the same workflow, its
// currency preference. Returns the new user ID.
func (s *Service) Register(ctx context.Context, email string) (string, error) {
	id := uuid.NewString()

	if err := s.store.CreateUser(ctx, id, email); err != nil {
		return "", fmt.Errorf("register user: %w", err)
	}

	pref := domain.UserPreference{
		UserID:         id,
		TargetCurrency: s.defaultCurrency,
	}
	if err := s.store.CreatePreference(ctx, pref); err != nil {
		return "", fmt.Errorf("register user: create preference: %w", err)
	}

	s.log.Info().
		Str("user_id", id).
		Str("target_currency", s.defaultCurrency).
		Msg("User registered")

	return id, nil
}
