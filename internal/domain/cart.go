package domain

// CartLine pairs a product snapshot with the quantity ordered.
type CartLine struct {
	Product  Product `json:"product"`
	Quantity int     `json:"quantity"`
}

// SubtotalCents returns unit price times quantity.
func (l CartLine) SubtotalCents() int64 {
	return l.Product.PriceCents * int64(l.Quantity)
}

// Valid reports whether the line may live in a cart.
func (l CartLine) Valid() bool {
	return l.Product.ID != "" && l.Quantity > 0
}

type Cart struct {
	Lines []CartLine `json:"lines"`
}

// ItemCount returns the total number of units in the cart.
func (c Cart) ItemCount() int {
	var count int
	for _, line := range c.Lines {
		count += line.Quantity
	}
	return count
}

// TotalCents calculates the total price of all lines in the cart.
func (c Cart) TotalCents() int64 {
	var total int64
	for _, line := range c.Lines {
		total += line.SubtotalCents()
	}
	return total
}

// Normalize drops invalid lines and merges lines sharing a product ID,
// keeping the position and snapshot of the first occurrence. Merged
// quantities are capped at MaxQuantity so the cart always stays orderable.
func Normalize(lines []CartLine) []CartLine {
	out := make([]CartLine, 0, len(lines))
	index := make(map[string]int, len(lines))
	for _, line := range lines {
		if !line.Valid() {
			continue
		}
		if i, ok := index[line.Product.ID]; ok {
			out[i].Quantity = min(out[i].Quantity+line.Quantity, MaxQuantity)
			continue
		}
		line.Quantity = min(line.Quantity, MaxQuantity)
		index[line.Product.ID] = len(out)
		out = append(out, line)
	}
	return out
}
