// Package fx wraps the historical exchange-rate service and the fixed-point
// currency conversion built on top of it. All rates are quoted against the
// service's base currency.
package fx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"cloud.google.com/go/civil"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// ErrUnavailable is returned when no rates could be obtained for a date: a
// non-success status, a timeout, or an unreachable service. Callers treat it
// as a first-class outcome, not a failure of the enclosing operation.
var ErrUnavailable = errors.New("fx: rates unavailable")

// Quote carries the two requested rates, each quoted against the base
// currency. Either slot may be invalid when the service does not support that
// currency; callers must check both before converting.
type Quote struct {
	FromToBase decimal.NullDecimal
	ToToBase   decimal.NullDecimal
}

// Client queries a historical rate endpoint of the openexchangerates shape:
// GET {base}/{YYYY-MM-DD}.json?app_id={key} returning {"rates": {...}}.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	log     zerolog.Logger
}

// NewClient creates a rate client with a bounded per-request timeout.
func NewClient(baseURL, apiKey string, timeout time.Duration, log zerolog.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: timeout},
		log:     log,
	}
}

var one = decimal.NewFromInt(1)

// Lookup returns the rates-to-base for the two currencies on the given date.
// Identical currencies short-circuit to (1, 1) without a network call.
func (c *Client) Lookup(ctx context.Context, date civil.Date, fromCurrency, toCurrency string) (Quote, error) {
	if fromCurrency == toCurrency {
		return Quote{
			FromToBase: decimal.NullDecimal{Decimal: one, Valid: true},
			ToToBase:   decimal.NullDecimal{Decimal: one, Valid: true},
		}, nil
	}

	u := fmt.Sprintf("%s/%s.json?app_id=%s", c.baseURL, date.String(), url.QueryEscape(c.apiKey))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return Quote{}, fmt.Errorf("fx: build rate request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Error().Err(err).Str("date", date.String()).Msg("Rate request failed")
		return Quote{}, ErrUnavailable
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.log.Error().
			Int("status", resp.StatusCode).
			Str("date", date.String()).
			Msg("Rate service returned non-success status")
		return Quote{}, ErrUnavailable
	}

	var payload struct {
		Rates map[string]decimal.Decimal `json:"rates"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		c.log.Error().Err(err).Str("date", date.String()).Msg("Rate response is not valid JSON")
		return Quote{}, ErrUnavailable
	}

	var q Quote
	if rate, ok := payload.Rates[fromCurrency]; ok {
		q.FromToBase = decimal.NullDecimal{Decimal: rate, Valid: true}
	}
	if rate, ok := payload.Rates[toCurrency]; ok {
		q.ToToBase = decimal.NullDecimal{Decimal: rate, Valid: true}
	}
	return q, nil
}
