package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func line(id string, price int64, qty int) CartLine {
	return CartLine{Product: Product{ID: id, PriceCents: price}, Quantity: qty}
}

func TestCart_Totals(t *testing.T) {
	c := Cart{Lines: []CartLine{line("a", 2490, 2), line("b", 1790, 1)}}

	assert.Equal(t, 3, c.ItemCount())
	assert.Equal(t, int64(2490*2+1790), c.TotalCents())
}

func TestCart_EmptyTotals(t *testing.T) {
	var c Cart
	assert.Equal(t, 0, c.ItemCount())
	assert.Equal(t, int64(0), c.TotalCents())
}

func TestNormalize_DropsInvalidAndMergesDuplicates(t *testing.T) {
	lines := []CartLine{
		line("a", 100, 1),
		line("", 100, 3),
		line("b", 200, 0),
		line("c", 300, -2),
		line("a", 100, 4),
		line("d", 400, 1),
	}

	got := Normalize(lines)

	assert.Len(t, got, 2)
	assert.Equal(t, "a", got[0].Product.ID)
	assert.Equal(t, 5, got[0].Quantity)
	assert.Equal(t, "d", got[1].Product.ID)
}

func TestNormalize_CapsMergedQuantity(t *testing.T) {
	got := Normalize([]CartLine{line("a", 100, 60), line("a", 100, 60), line("b", 100, 250)})

	require.Len(t, got, 2)
	assert.Equal(t, MaxQuantity, got[0].Quantity)
	assert.Equal(t, MaxQuantity, got[1].Quantity)
}
