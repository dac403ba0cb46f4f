package domain

import (
	"sort"
	"strings"
)

// rentalCards maps the currency label of a rental card to its price in KES cents.
var rentalCards = map[string]int64{
	"CAD": 100 * CentsPerUnit,
	"AUD": 250 * CentsPerUnit,
	"GBP": 500 * CentsPerUnit,
	"JPY": 750 * CentsPerUnit,
	"EUR": 1000 * CentsPerUnit,
	"USD": 1200 * CentsPerUnit,
	"KES": 0,
}

// NormalizeCurrency upper-cases and trims a currency label.
func NormalizeCurrency(currency string) string {
	return strings.ToUpper(strings.TrimSpace(currency))
}

// IsRentalCurrency reports whether the label is an offered rental card.
func IsRentalCurrency(currency string) bool {
	_, ok := rentalCards[NormalizeCurrency(currency)]
	return ok
}

// CardPrice returns the KES price of a rental card. KES cards have no fixed
// price and report false.
func CardPrice(currency string) (int64, bool) {
	price, ok := rentalCards[NormalizeCurrency(currency)]
	if !ok || price == 0 {
		return 0, false
	}
	return price, true
}

// RentalCurrencies lists the offered card labels in a stable order.
func RentalCurrencies() []string {
	out := make([]string, 0, len(rentalCards))
	for c := range rentalCards {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}
