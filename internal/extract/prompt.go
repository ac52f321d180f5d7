package extract

import (
	"strings"

	"snapledger/internal/domain"
)

// samplingTemperature is fixed low so repeated extractions of the same
// receipt stay close to deterministic.
const samplingTemperature = 0.2

// buildPrompt constructs the extraction instructions: the canonical category
// list, the strict-JSON contract, and the amount/currency disambiguation
// rules. withPlace controls whether the merchant place is requested.
func buildPrompt(withPlace bool) string {
	names := make([]string, 0, len(domain.Categories()))
	for _, c := range domain.Categories() {
		names = append(names, string(c))
	}

	var b strings.Builder
	b.WriteString("Analyze the provided purchase receipt and extract the following details:\n")
	if withPlace {
		b.WriteString("- \"place\": the merchant or store name as printed on the receipt.\n")
	}
	b.WriteString("- \"category\": the expense category, EXACTLY one of: ")
	b.WriteString(strings.Join(names, ", "))
	b.WriteString(".\n")
	b.WriteString("- \"date\": the transaction date.\n")
	b.WriteString("- \"amount\": the expense total as a fully numeric decimal number. Consider:\n")
	b.WriteString("  - A comma may serve as a thousand separator or as a decimal separator.\n")
	b.WriteString("  - In KRW (Korean Won), the amount is never lower than a thousand.\n")
	b.WriteString("- \"currency\": the three-character ISO 4217 code of the currency used.\n\n")
	b.WriteString("Respond strictly as a single JSON object with exactly these keys, ")
	b.WriteString("starting and ending with braces, without any additional markup ")
	b.WriteString("language or explanation. Example response: ")
	if withPlace {
		b.WriteString(`{"place": "<place>", "category": "<category>", "date": "<date>", "amount": <amount>, "currency": "<currency>"}`)
	} else {
		b.WriteString(`{"category": "<category>", "date": "<date>", "amount": <amount>, "currency": "<currency>"}`)
	}
	return b.String()
}
