package dashboard

import (
	"strings"

	"expenses/internal/core"
)

const currencySymbol = "₹"

// formatMoney renders an amount with thousands separators, e.g. ₹1,234.50.
func formatMoney(m core.Money) string {
	s := m.String()
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}

	whole, frac, _ := strings.Cut(s, ".")
	var b strings.Builder
	for i, c := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(c)
	}
	return sign + currencySymbol + b.String() + "." + frac
}
