package generic

import "github.com/shopspring/decimal"

// ResolveUnitPrice returns the effective unit price of a line. Fixed-price
// lines return UnitPrice unchanged. Percent-of-total lines resolve against
// the extended subtotal of their fixed-price siblings; dynamic siblings are
// excluded from the base so two percentage lines never feed each other.
//
// Snapshots freeze the resolved value (see snapshot.go), so reverts do not
// depend on when they are viewed.
func ResolveUnitPrice(li LineItem, siblings []LineItem) Money {
	if !li.HasDynamicPrice() {
		return li.UnitPrice
	}
	base := decimal.Zero
	for _, s := range siblings {
		if s.ID == li.ID || s.HasDynamicPrice() {
			continue
		}
		base = base.Add(s.UnitPrice.Value.Mul(s.Quantity.Value))
	}
	hundred := decimal.NewFromInt(100)
	return Money{Value: base.Mul(*li.PercentOfTotal).Div(hundred)}
}

// DocumentSubtotal returns the sum of extended resolved prices for all
// lines of a document.
func DocumentSubtotal(lines []LineItem) Money {
	total := decimal.Zero
	for _, li := range lines {
		p := ResolveUnitPrice(li, lines)
		total = total.Add(p.Value.Mul(li.Quantity.Value))
	}
	return Money{Value: total}
}
