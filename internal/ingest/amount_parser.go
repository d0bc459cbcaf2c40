package ingest

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	amountRe = regexp.MustCompile(`(\d{1,3}(?:[,.\x{00a0} ]\d{3})+(?:[.,]\d+)?|\d+(?:[.,]\d+)?)\s*([\p{L}]+\.?)?`)

	multipliers = map[string]float64{
		"thousand": 1e3, "k": 1e3,
		"million": 1e6, "millions": 1e6, "mn": 1e6, "m": 1e6, "mio": 1e6, "mio.": 1e6, "millones": 1e6, "mill": 1e6,
		"billion": 1e9, "billions": 1e9, "bn": 1e9, "mrd": 1e9, "mrd.": 1e9, "milliard": 1e9, "milliards": 1e9,
	}

	// currencyTokens is checked in order, so codes come before bare symbols.
	currencyTokens = []struct {
		token string
		code  string
	}{
		{"us$", "USD"}, {"usd", "USD"}, {"eur", "EUR"}, {"€", "EUR"}, {"euro", "EUR"},
		{"gbp", "GBP"}, {"£", "GBP"}, {"jpy", "JPY"}, {"¥", "JPY"}, {"chf", "CHF"},
		{"xof", "XOF"}, {"fcfa", "XOF"}, {"inr", "INR"}, {"cny", "CNY"}, {"brl", "BRL"},
		{"isd", "ISD"}, {"sdr", "SDR"}, {"$", "USD"},
	}
)

// ParseBudget pulls the largest amount out of a free-text budget, scaling
// by "million"/"bn"/"Mio." style suffixes, plus a currency code when one is
// named. ok is false when no positive amount is present.
func ParseBudget(text string) (amount float64, currency string, ok bool) {
	lower := strings.ToLower(text)
	for _, c := range currencyTokens {
		if strings.Contains(lower, c.token) {
			currency = c.code
			break
		}
	}

	for _, m := range amountRe.FindAllStringSubmatch(text, -1) {
		suffix := strings.ToLower(m[2])
		mult, scaled := multipliers[suffix]
		if !scaled {
			mult = 1
		}
		v, good := parseNumber(m[1], scaled)
		if !good {
			continue
		}
		if v*mult > amount {
			amount = v * mult
		}
	}
	if amount <= 0 {
		return 0, "", false
	}
	return amount, currency, true
}

// parseNumber reads 1,234.5 / 1.234,5 / 1 234 567 style numbers. A single
// separator followed by three digits is a thousands separator unless the
// number carries a scale suffix.
func parseNumber(s string, scaled bool) (float64, bool) {
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, "\u00a0", "")

	dots, commas := strings.Count(s, "."), strings.Count(s, ",")
	lastDot, lastComma := strings.LastIndex(s, "."), strings.LastIndex(s, ",")

	switch {
	case dots > 0 && commas > 0:
		if lastComma > lastDot {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case commas > 1 || (commas == 1 && len(s)-lastComma-1 == 3 && !scaled):
		s = strings.ReplaceAll(s, ",", "")
	case commas == 1:
		s = strings.Replace(s, ",", ".", 1)
	case dots > 1 || (dots == 1 && len(s)-lastDot-1 == 3 && !scaled):
		s = strings.ReplaceAll(s, ".", "")
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v <= 0 {
		return 0, false
	}
	return v, true
}
