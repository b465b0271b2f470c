package pricing

import "math"

// TaxBase selects what the tax rate is applied to. Seat-priced items tax the
// subtotal alone; quantity-priced items tax subtotal plus booking fee. The
// asymmetry is a domain fact carried per item kind, not unified.
type TaxBase int

const (
	TaxOnSubtotal TaxBase = iota
	TaxOnSubtotalPlusFee
)

// Breakdown is derived from the current selection and never hand-edited.
// Each component is rounded to 2 decimals before summation so displayed line
// items always add up to the displayed total.
type Breakdown struct {
	Subtotal   float64 `json:"subtotal"`
	BookingFee float64 `json:"booking_fee"`
	Tax        float64 `json:"tax"`
	Total      float64 `json:"total"`
}

// Engine computes fee breakdowns. Pure and deterministic; safe to share.
type Engine struct {
	FeeRate float64
	TaxRate float64
}

// NewEngine creates a pricing engine with the given booking-fee and tax rates.
func NewEngine(feeRate, taxRate float64) Engine {
	return Engine{FeeRate: feeRate, TaxRate: taxRate}
}

// Quote prices an ordered list of unit prices under the given tax base.
func (e Engine) Quote(unitPrices []float64, base TaxBase) Breakdown {
	subtotal := 0.0
	for _, price := range unitPrices {
		subtotal += price
	}
	return e.breakdown(round2(subtotal), base)
}

// QuoteQuantity prices an undifferentiated selection of basePrice × quantity.
func (e Engine) QuoteQuantity(basePrice float64, quantity int, base TaxBase) Breakdown {
	return e.breakdown(round2(basePrice*float64(quantity)), base)
}

func (e Engine) breakdown(subtotal float64, base TaxBase) Breakdown {
	fee := round2(subtotal * e.FeeRate)

	taxable := subtotal
	if base == TaxOnSubtotalPlusFee {
		taxable = round2(subtotal + fee)
	}
	tax := round2(taxable * e.TaxRate)

	return Breakdown{
		Subtotal:   subtotal,
		BookingFee: fee,
		Tax:        tax,
		Total:      round2(subtotal + fee + tax),
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
