package domain

import "math"

const (
	TaxRate               = 0.10
	FreeShippingThreshold = 100.0
	FlatShippingFee       = 10.0
)

type Totals struct {
	Subtotal float64
	Taxes    float64
	Shipping float64
	Total    float64
}

// Price computes order totals. Arithmetic is done in cents so that
// Total always equals Subtotal + Taxes + Shipping to the cent.
func Price(items []OrderItem) Totals {
	var subtotal int64
	for _, item := range items {
		subtotal += lineCents(item.Quantity, item.UnitPrice)
	}
	taxes := int64(math.Round(float64(subtotal) * TaxRate))
	var shipping int64
	if subtotal <= toCents(FreeShippingThreshold) {
		shipping = toCents(FlatShippingFee)
	}
	return Totals{
		Subtotal: fromCents(subtotal),
		Taxes:    fromCents(taxes),
		Shipping: fromCents(shipping),
		Total:    fromCents(subtotal + taxes + shipping),
	}
}

// Round2 rounds v to two decimal places.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func lineCents(quantity int, unitPrice float64) int64 {
	return int64(quantity) * toCents(unitPrice)
}

func toCents(v float64) int64 {
	return int64(math.Round(v * 100))
}

func fromCents(c int64) float64 {
	return float64(c) / 100
}
