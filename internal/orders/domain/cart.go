package domain

import (
	"sort"

	"github.com/shopspring/decimal"
)

// Variant is a purchasable product variant with its stock counter.
type Variant struct {
	ID    string          `json:"id"`
	SKU   string          `json:"sku"`
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
	Stock int             `json:"stock"`
}

// CartLine is a cart entry priced at the variant's current price.
type CartLine struct {
	VariantID string          `json:"variant_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

type Cart struct {
	UserID string     `json:"user_id"`
	Lines  []CartLine `json:"lines"`
}

func (c Cart) IsEmpty() bool {
	return len(c.Lines) == 0
}

func (c Cart) Subtotal() decimal.Decimal {
	total := decimal.Zero
	for _, line := range c.Lines {
		total = total.Add(line.UnitPrice.Mul(decimal.NewFromInt(int64(line.Quantity))))
	}
	return total
}

// SortedLines returns the lines ordered by variant id so stock rows are always
// touched in the same order.
func (c Cart) SortedLines() []CartLine {
	lines := make([]CartLine, len(c.Lines))
	copy(lines, c.Lines)
	sort.Slice(lines, func(i, j int) bool {
		return lines[i].VariantID < lines[j].VariantID
	})
	return lines
}
