// Package report computes the dashboard aggregation: per-category spend
// totals in the user's target currency plus the spend-concentration advisory.
package report

import (
	"fmt"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"snapledger/internal/domain"
)

// UncategorizedLabel is the reserved bucket for records with a missing or
// empty category. It keeps its fixed label regardless of capitalization rules.
const UncategorizedLabel = "Uncategorized"

// CategoryTotal is one dashboard bucket: a display label and the summed spend
// in the target currency.
type CategoryTotal struct {
	Label string          `json:"label"`
	Total decimal.Decimal `json:"total"`
}

// Advisory is the recommendation surfaced when spend concentrates in the
// watched category.
type Advisory struct {
	Category domain.Category `json:"category"`
	Share    decimal.Decimal `json:"share"`
	Message  string          `json:"message"`
}

// Aggregate groups records by case- and whitespace-normalized category and
// sums their converted amounts. Records without a converted amount stay in
// their bucket but contribute zero to its total. Buckets come back sorted by
// the normalized key, so the ordering is deterministic.
func Aggregate(records []domain.ExpenseRecord) []CategoryTotal {
	totals := make(map[string]decimal.Decimal)
	for _, rec := range records {
		key := bucketKey(rec.Category)
		sum := totals[key]
		if rec.AmountInTargetCurrency.Valid {
			sum = sum.Add(rec.AmountInTargetCurrency.Decimal)
		}
		totals[key] = sum
	}

	keys := make([]string, 0, len(totals))
	for key := range totals {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	out := make([]CategoryTotal, 0, len(keys))
	for _, key := range keys {
		out = append(out, CategoryTotal{
			Label: displayLabel(key),
			Total: totals[key],
		})
	}
	return out
}

// concentrationThreshold is the watched-category share above which the
// advisory fires.
var concentrationThreshold = decimal.RequireFromString("0.5")

// Advise computes the concentration signal for the watched category: its
// share of total converted spend. It returns nil when total spend is zero or
// the share does not exceed the threshold.
func Advise(records []domain.ExpenseRecord, watched domain.Category) *Advisory {
	watchedKey := bucketKey(watched)

	total := decimal.Zero
	watchedTotal := decimal.Zero
	for _, rec := range records {
		if !rec.AmountInTargetCurrency.Valid {
			continue
		}
		total = total.Add(rec.AmountInTargetCurrency.Decimal)
		if bucketKey(rec.Category) == watchedKey {
			watchedTotal = watchedTotal.Add(rec.AmountInTargetCurrency.Decimal)
		}
	}

	if !total.IsPositive() {
		return nil
	}

	share := watchedTotal.Div(total)
	if share.LessThanOrEqual(concentrationThreshold) {
		return nil
	}

	return &Advisory{
		Category: watched,
		Share:    share.Round(4),
		Message:  fmt.Sprintf("More than half of your spending is on %s. Consider reviewing this category.", watched),
	}
}

// bucketKey lower-cases and trims the category so records differing only in
// case or incidental whitespace merge into one bucket.
func bucketKey(c domain.Category) string {
	return strings.ToLower(strings.TrimSpace(string(c)))
}

// displayLabel re-capitalizes the normalized key for display. The reserved
// bucket keeps its fixed label.
func displayLabel(key string) string {
	if key == "" {
		return UncategorizedLabel
	}
	r, size := utf8.DecodeRuneInString(key)
	return string(unicode.ToUpper(r)) + key[size:]
}
