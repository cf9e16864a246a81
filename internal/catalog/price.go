package catalog

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// ParsePrice reads a display price such as "₹1,000" or "Rs. 1,499.50".
// Currency symbols, letters, separators and spaces are ignored.
func ParsePrice(display string) (decimal.Decimal, error) {
	var b strings.Builder
	for _, r := range display {
		switch {
		case unicode.IsDigit(r), r == '.', r == '-':
			b.WriteRune(r)
		}
	}
	cleaned := strings.Trim(b.String(), ".")
	if cleaned == "" {
		return decimal.Zero, fmt.Errorf("price %q has no digits", display)
	}
	value, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse price %q: %w", display, err)
	}
	return value, nil
}

// HasSale reports whether both a sale and an original price are set.
func (p Product) HasSale() bool {
	return strings.TrimSpace(p.SalePrice) != "" && strings.TrimSpace(p.OriginalPrice) != ""
}

// EffectivePrice is what the shopper pays for one unit: the sale price when
// the product is on sale, otherwise the first price that is set.
func (p Product) EffectivePrice() (decimal.Decimal, error) {
	candidates := []string{p.Price, p.SalePrice, p.OriginalPrice}
	if p.HasSale() {
		candidates = []string{p.SalePrice}
	}
	for _, candidate := range candidates {
		if strings.TrimSpace(candidate) == "" {
			continue
		}
		return ParsePrice(candidate)
	}
	return decimal.Zero, fmt.Errorf("product %q has no price", p.Slug)
}

// FormatPrice renders an amount in rupees with Indian digit grouping, e.g.
// "₹1,23,456" or "₹99.50".
func FormatPrice(amount decimal.Decimal) string {
	sign := ""
	if amount.IsNegative() {
		sign = "-"
		amount = amount.Neg()
	}
	whole := amount.Truncate(0)
	fraction := amount.Sub(whole)

	digits := whole.String()
	if len(digits) > 3 {
		head, tail := digits[:len(digits)-3], digits[len(digits)-3:]
		var groups []string
		for len(head) > 2 {
			groups = append([]string{head[len(head)-2:]}, groups...)
			head = head[:len(head)-2]
		}
		if head != "" {
			groups = append([]string{head}, groups...)
		}
		digits = strings.Join(groups, ",") + "," + tail
	}
	if !fraction.IsZero() {
		digits += strings.TrimPrefix(fraction.StringFixed(2), "0")
	}
	return sign + "₹" + digits
}
