package scraper

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var nonPriceChars = regexp.MustCompile(`[^0-9.,]`)

// ParsePrice converte um preço exibido na página ("R$ 1.234,56", "89,90",
// "1234.56") em decimal exato.
func ParsePrice(text string) (decimal.Decimal, error) {
	clean := nonPriceChars.ReplaceAllString(text, "")
	if clean == "" {
		return decimal.Zero, fmt.Errorf("preço inválido: %q", text)
	}

	lastComma := strings.LastIndex(clean, ",")
	lastDot := strings.LastIndex(clean, ".")

	switch {
	case lastComma >= 0 && lastDot >= 0:
		// O separador que aparece por último é o decimal
		if lastComma > lastDot {
			clean = strings.ReplaceAll(clean, ".", "")
			clean = strings.Replace(clean, ",", ".", 1)
		} else {
			clean = strings.ReplaceAll(clean, ",", "")
		}
	case lastComma >= 0:
		if strings.Count(clean, ",") == 1 && len(clean)-lastComma-1 <= 2 {
			clean = strings.Replace(clean, ",", ".", 1)
		} else {
			clean = strings.ReplaceAll(clean, ",", "")
		}
	case lastDot >= 0:
		// "3.499" é milhar no formato brasileiro
		if strings.Count(clean, ".") > 1 || len(clean)-lastDot-1 == 3 {
			clean = strings.ReplaceAll(clean, ".", "")
		}
	}

	price, err := decimal.NewFromString(clean)
	if err != nil {
		return decimal.Zero, fmt.Errorf("preço inválido: %q: %w", text, err)
	}
	return price, nil
}
