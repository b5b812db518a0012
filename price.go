package bg

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var fenPerYuan = decimal.NewFromInt(100)

// ParsePriceFen converts a display price like "12.5" to integer fen.
func ParsePriceFen(price string) (int64, error) {
	price = strings.TrimSpace(price)
	if price == "" {
		return 0, fmt.Errorf("empty price")
	}

	d, err := decimal.NewFromString(price)
	if err != nil {
		return 0, fmt.Errorf("parse price %q: %w", price, err)
	}
	if d.IsNegative() {
		return 0, fmt.Errorf("negative price %q", price)
	}

	fen := d.Mul(fenPerYuan)
	if !fen.IsInteger() {
		return 0, fmt.Errorf("price %q has sub-fen precision", price)
	}

	return fen.IntPart(), nil
}

// FormatPriceFen is the inverse: integer fen to the display yuan string.
func FormatPriceFen(fen int64) string {
	return decimal.NewFromInt(fen).Div(fenPerYuan).String()
}
