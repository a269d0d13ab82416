package catalog

import (
	"cmp"
	"slices"
	"strings"

	"github.com/fjod/go_storefront/internal/domain"
)

// Matches reports whether p matches the search query: a trimmed,
// case-insensitive substring of title, description and slug.
func Matches(p domain.Product, query string) bool {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return true
	}
	haystack := strings.ToLower(p.Title + " " + p.Description + " " + p.Slug)
	return strings.Contains(haystack, q)
}

// Filter returns the products matching query. The input is not modified.
func Filter(products []domain.Product, query string) []domain.Product {
	if strings.TrimSpace(query) == "" {
		return slices.Clone(products)
	}
	out := make([]domain.Product, 0, len(products))
	for _, p := range products {
		if Matches(p, query) {
			out = append(out, p)
		}
	}
	return out
}

type SortOrder string

const (
	SortNewest    SortOrder = "newest"
	SortPriceLow  SortOrder = "price-low"
	SortPriceHigh SortOrder = "price-high"
	SortName      SortOrder = "name"
)

// ParseSortOrder maps unknown values to SortNewest.
func ParseSortOrder(s string) SortOrder {
	switch o := SortOrder(strings.ToLower(strings.TrimSpace(s))); o {
	case SortPriceLow, SortPriceHigh, SortName:
		return o
	default:
		return SortNewest
	}
}

// SortProducts returns a sorted copy. Ties fall back to newest first.
func SortProducts(products []domain.Product, order SortOrder) []domain.Product {
	out := slices.Clone(products)
	newest := func(a, b domain.Product) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	}

	var less func(a, b domain.Product) int
	switch order {
	case SortPriceLow:
		less = func(a, b domain.Product) int { return cmp.Compare(a.PriceCents, b.PriceCents) }
	case SortPriceHigh:
		less = func(a, b domain.Product) int { return cmp.Compare(b.PriceCents, a.PriceCents) }
	case SortName:
		less = func(a, b domain.Product) int {
			return strings.Compare(strings.ToLower(a.Title), strings.ToLower(b.Title))
		}
	default:
		less = newest
	}

	slices.SortStableFunc(out, func(a, b domain.Product) int {
		if c := less(a, b); c != 0 {
			return c
		}
		return newest(a, b)
	})
	return out
}
