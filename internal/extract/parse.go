package extract

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"snapledger/internal/domain"
)

// Fields is the validated tuple extracted from one receipt image.
type Fields struct {
	Place    string
	Category domain.Category
	Date     string // dash-delimited; otherwise passed through as returned
	Amount   decimal.Decimal
	Currency string // 3-letter ISO 4217, upper case
}

// ParseResponse validates raw model content and applies the boundary
// coercions, in order: fence stripping, JSON parsing, date delimiter
// normalization, category coercion, place default, currency upper-casing.
func ParseResponse(raw string) (Fields, error) {
	content := strings.TrimSpace(raw)
	if content == "" {
		return Fields{}, ErrEmptyResponse
	}

	content = stripFences(content)

	var payload map[string]json.RawMessage
	if err := json.Unmarshal([]byte(content), &payload); err != nil {
		return Fields{}, fmt.Errorf("%w: %v", ErrMalformedJSON, err)
	}

	var f Fields

	date, err := stringField(payload, "date")
	if err != nil {
		return Fields{}, fmt.Errorf("%w: %v", ErrFailed, err)
	}
	// The system's canonical date delimiter is the dash. No further date
	// validation happens at this layer.
	f.Date = strings.ReplaceAll(date, "/", "-")

	category, err := stringField(payload, "category")
	if err != nil {
		return Fields{}, fmt.Errorf("%w: %v", ErrFailed, err)
	}
	f.Category = domain.CoerceCategory(category)

	place, err := stringField(payload, "place")
	if err != nil {
		return Fields{}, fmt.Errorf("%w: %v", ErrFailed, err)
	}
	if strings.TrimSpace(place) == "" {
		place = domain.UnknownPlace
	}
	f.Place = place

	currencyRaw, ok := payload["currency"]
	if !ok {
		return Fields{}, fmt.Errorf("%w: missing field \"currency\"", ErrFailed)
	}
	var currency string
	if err := json.Unmarshal(currencyRaw, &currency); err != nil {
		return Fields{}, fmt.Errorf("%w: field \"currency\": %v", ErrFailed, err)
	}
	f.Currency = strings.ToUpper(strings.TrimSpace(currency))

	amountRaw, ok := payload["amount"]
	if !ok {
		return Fields{}, fmt.Errorf("%w: missing field \"amount\"", ErrFailed)
	}
	var amount decimal.Decimal
	if err := json.Unmarshal(amountRaw, &amount); err != nil {
		return Fields{}, fmt.Errorf("%w: field \"amount\": %v", ErrFailed, err)
	}
	if amount.IsNegative() {
		return Fields{}, fmt.Errorf("%w: negative amount %s", ErrFailed, amount)
	}
	f.Amount = amount.Round(2)

	return f, nil
}

// stringField reads an optional string field; a missing key or JSON null
// yields the empty string, any non-string value is an error.
func stringField(m map[string]json.RawMessage, key string) (string, error) {
	raw, ok := m[key]
	if !ok || string(raw) == "null" {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", fmt.Errorf("field %q: %v", key, err)
	}
	return s, nil
}

// stripFences removes a Markdown code-fence wrapper the model may have added
// despite instructions, then keeps only the outermost JSON object.
func stripFences(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		} else {
			s = strings.TrimPrefix(s, "```json")
			s = strings.TrimPrefix(s, "```")
		}
		s = strings.TrimSpace(s)
		if idx := strings.LastIndex(s, "```"); idx != -1 {
			s = s[:idx]
		}
		s = strings.TrimSpace(s)
	}

	// If there is still junk around the object, keep only from the first
	// '{' to the last '}'.
	if start := strings.Index(s, "{"); start != -1 {
		if end := strings.LastIndex(s, "}"); end != -1 && end > start {
			s = strings.TrimSpace(s[start : end+1])
		}
	}

	return s
}
