package domain

// Category is one of the fixed expense categories offered to the extraction
// model and enforced on its output. The zero value means "not yet extracted".
type Category string

const (
	CategoryHousing        Category = "Housing"
	CategoryUtilities      Category = "Utilities"
	CategoryTransportation Category = "Transportation"
	CategoryGroceries      Category = "Groceries"
	CategoryDiningOut      Category = "Dining Out"
	CategoryHealthcare     Category = "Healthcare"
	CategoryDebtPayments   Category = "Debt Payments"
	CategoryInsurance      Category = "Insurance"
	CategoryClothing       Category = "Clothing"
	CategoryEntertainment  Category = "Entertainment"
	CategoryEducation      Category = "Education"
	CategoryChildcare      Category = "Childcare"
	CategoryPetCare        Category = "Pet Care"
	CategorySubscriptions  Category = "Subscriptions"
	CategoryPersonalCare   Category = "Personal Care"

	// CategoryMiscellaneous is the catch-all bucket. Anything the model
	// returns outside the canonical set is coerced onto it.
	CategoryMiscellaneous Category = "Miscellaneous"
)

// canonicalCategories lists every category in prompt/display order, with the
// catch-all last.
var canonicalCategories = []Category{
	CategoryHousing,
	CategoryUtilities,
	CategoryTransportation,
	CategoryGroceries,
	CategoryDiningOut,
	CategoryHealthcare,
	CategoryDebtPayments,
	CategoryInsurance,
	CategoryClothing,
	CategoryEntertainment,
	CategoryEducation,
	CategoryChildcare,
	CategoryPetCare,
	CategorySubscriptions,
	CategoryPersonalCare,
	CategoryMiscellaneous,
}

// Categories returns the canonical category set, catch-all included.
func Categories() []Category {
	out := make([]Category, len(canonicalCategories))
	copy(out, canonicalCategories)
	return out
}

// Canonical reports whether c is a member of the canonical set.
func (c Category) Canonical() bool {
	for _, cat := range canonicalCategories {
		if c == cat {
			return true
		}
	}
	return false
}

// CoerceCategory maps raw model output onto the canonical set. The match is
// exact: anything else, including empty input, becomes the catch-all so an
// out-of-vocabulary category never reaches the record store.
func CoerceCategory(raw string) Category {
	c := Category(raw)
	if c.Canonical() {
		return c
	}
	return CategoryMiscellaneous
}
