package psp

import (
	"fmt"
	"strconv"
	"strings"
)

// FormatCents renders integer cents as the decimal string the provider
// APIs expect.
func FormatCents(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}

// ParseAmountToCents converts a decimal amount string ("5000", "5000.5",
// "5000.50") into integer cents. Ledger amounts are integers throughout,
// floats never touch money.
func ParseAmountToCents(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty amount")
	}
	if strings.HasPrefix(s, "-") {
		return 0, fmt.Errorf("negative amount %q", s)
	}
	whole, frac, found := strings.Cut(s, ".")
	units, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q", s)
	}
	cents := units * 100
	if found {
		if len(frac) == 0 || len(frac) > 2 {
			return 0, fmt.Errorf("invalid amount precision %q", s)
		}
		if len(frac) == 1 {
			frac = frac + "0"
		}
		sub, err := strconv.ParseInt(frac, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid amount %q", s)
		}
		cents += sub
	}
	return cents, nil
}
