package bg

import "strings"

type Filter func(*MarketItem) bool

func MaxPriceFen(limit int64) Filter {
	return func(item *MarketItem) bool {
		fen, err := item.PriceFen()
		if err != nil {
			return false
		}
		return fen <= limit
	}
}

func NameContains(substr string) Filter {
	return func(item *MarketItem) bool {
		return strings.Contains(item.Name, substr)
	}
}

func matchAll(item *MarketItem, filters []Filter) bool {
	for _, filter := range filters {
		if !filter(item) {
			return false
		}
	}
	return true
}
