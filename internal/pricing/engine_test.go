package pricing

import "testing"

func TestEngine_Quote(t *testing.T) {
	t.Parallel()

	engine := NewEngine(0.05, 0.05)

	t.Run("single seat at 200", func(t *testing.T) {
		b := engine.Quote([]float64{200.00}, TaxOnSubtotal)
		want := Breakdown{Subtotal: 200.00, BookingFee: 10.00, Tax: 10.00, Total: 220.00}
		if b != want {
			t.Fatalf("expected %+v, got %+v", want, b)
		}
	})

	t.Run("two seats at 150", func(t *testing.T) {
		b := engine.Quote([]float64{150.00, 150.00}, TaxOnSubtotal)
		want := Breakdown{Subtotal: 300.00, BookingFee: 15.00, Tax: 15.00, Total: 330.00}
		if b != want {
			t.Fatalf("expected %+v, got %+v", want, b)
		}
	})

	t.Run("tax base differs by item kind", func(t *testing.T) {
		onSubtotal := engine.Quote([]float64{100.00}, TaxOnSubtotal)
		onBoth := engine.Quote([]float64{100.00}, TaxOnSubtotalPlusFee)

		if onSubtotal.Tax != 5.00 {
			t.Fatalf("expected seat-kind tax on subtotal alone (5.00), got %.2f", onSubtotal.Tax)
		}
		if onBoth.Tax != 5.25 {
			t.Fatalf("expected quantity-kind tax on subtotal+fee (5.25), got %.2f", onBoth.Tax)
		}
		if onSubtotal.Total != 110.00 || onBoth.Total != 110.25 {
			t.Fatalf("unexpected totals: %.2f / %.2f", onSubtotal.Total, onBoth.Total)
		}
	})

	t.Run("components round before summation", func(t *testing.T) {
		// 3 × 33.33 = 99.99; fee = 4.9995 -> 5.00; tax likewise.
		b := engine.Quote([]float64{33.33, 33.33, 33.33}, TaxOnSubtotal)
		if b.BookingFee != 5.00 || b.Tax != 5.00 {
			t.Fatalf("expected per-component rounding to 5.00, got fee=%.4f tax=%.4f", b.BookingFee, b.Tax)
		}
		if b.Total != round2(b.Subtotal+b.BookingFee+b.Tax) {
			t.Fatalf("total %.2f does not equal sum of displayed components", b.Total)
		}
	})

	t.Run("empty selection is zero", func(t *testing.T) {
		b := engine.Quote(nil, TaxOnSubtotal)
		if b.Total != 0 || b.Subtotal != 0 {
			t.Fatalf("expected zero breakdown, got %+v", b)
		}
	})
}

func TestEngine_QuoteQuantity(t *testing.T) {
	t.Parallel()

	engine := NewEngine(0.05, 0.05)

	b := engine.QuoteQuantity(80.00, 3, TaxOnSubtotalPlusFee)
	if b.Subtotal != 240.00 {
		t.Fatalf("expected subtotal 240.00, got %.2f", b.Subtotal)
	}
	if b.BookingFee != 12.00 {
		t.Fatalf("expected fee 12.00, got %.2f", b.BookingFee)
	}
	// tax on 252.00
	if b.Tax != 12.60 {
		t.Fatalf("expected tax 12.60, got %.2f", b.Tax)
	}
	if b.Total != 264.60 {
		t.Fatalf("expected total 264.60, got %.2f", b.Total)
	}
}
