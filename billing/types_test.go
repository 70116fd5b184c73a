package billing_test

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/spacelefarm/billing-engine/billing"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func money(n int64) decimal.Decimal {
	return decimal.NewFromInt(n)
}

func historyValues(p billing.Product) []string {
	out := make([]string, len(p.PriceHistory))
	for i, h := range p.PriceHistory {
		out[i] = h.String()
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// =============================================================================
// PRODUCT PRICE HISTORY
// =============================================================================

func TestProductNormalize_NewProduct_HistoryIsJustThePrice(t *testing.T) {
	// GIVEN: A product created with price P and no history
	// WHEN: It is normalized at write time
	// THEN: priceHistory == [P]

	p := billing.Product{Name: "Hạt điều rang muối", Unit: "KG", Price: money(50000)}
	if err := p.Normalize(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := historyValues(p); !equalStrings(got, []string{"50000"}) {
		t.Errorf("expected history [50000], got %v", got)
	}
}

func TestProductAddPrice_NewValue_InsertsAndResortsDescending(t *testing.T) {
	p := billing.Product{Name: "Hạt điều", Unit: "KG", Price: money(50000)}
	if err := p.Normalize(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	p.AddPrice(money(70000))
	p.AddPrice(money(30000))

	if got := historyValues(p); !equalStrings(got, []string{"70000", "50000", "30000"}) {
		t.Errorf("expected descending history [70000 50000 30000], got %v", got)
	}
	// The current price is untouched by history additions.
	if !p.Price.Equal(money(50000)) {
		t.Errorf("expected price to stay 50000, got %v", p.Price)
	}
}

func TestProductAddPrice_ExistingValue_IsNoOp(t *testing.T) {
	p := billing.Product{Name: "Hạt điều", Unit: "KG", Price: money(50000)}
	if err := p.Normalize(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	p.AddPrice(money(50000))

	if len(p.PriceHistory) != 1 {
		t.Errorf("expected history to stay [50000], got %v", historyValues(p))
	}
}

func TestProductNormalize_PriceMissingFromHistory_IsCoercedIn(t *testing.T) {
	// A record whose invariant is broken is repaired at write time,
	// never rejected for this particular violation.
	p := billing.Product{
		Name:         "Hạt điều",
		Price:        money(60000),
		PriceHistory: []decimal.Decimal{money(50000)},
	}
	if err := p.Normalize(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := historyValues(p); !equalStrings(got, []string{"60000", "50000"}) {
		t.Errorf("expected [60000 50000], got %v", got)
	}
}

func TestProductNormalize_InvalidInput_IsValidationError(t *testing.T) {
	cases := []struct {
		name    string
		product billing.Product
	}{
		{"blank name", billing.Product{Name: "   ", Price: money(50000)}},
		{"zero price", billing.Product{Name: "Hạt điều", Price: money(0)}},
		{"negative price", billing.Product{Name: "Hạt điều", Price: money(-1)}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.product.Normalize()
			if !billing.IsValidation(err) {
				t.Errorf("expected validation error, got %v", err)
			}
		})
	}
}

// =============================================================================
// CUSTOMER / UNIT VALIDATION
// =============================================================================

func TestCustomerNormalize_BlankNameRejected(t *testing.T) {
	c := billing.Customer{Name: "  ", Phone: "0988885192"}
	if err := c.Normalize(); !billing.IsValidation(err) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestUnitNormalize_TrimsName(t *testing.T) {
	u := billing.Unit{Name: " Thùng "}
	if err := u.Normalize(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if u.Name != "Thùng" {
		t.Errorf("expected trimmed name, got %q", u.Name)
	}
}

// =============================================================================
// BILL ARITHMETIC
// =============================================================================

func TestBillNormalize_RecomputesSubtotalAndTotal(t *testing.T) {
	// GIVEN: Items (50000 x 2) and (30000 x 1) with discount 10000
	// WHEN: The bill is normalized at write time
	// THEN: subtotal = 130000 and total = 120000, whatever the caller sent

	b := billing.Bill{
		CustomerName: "Chị Hoa",
		Items: []billing.BillItem{
			{ProductName: "Hạt điều rang muối", Quantity: money(2), Unit: "KG", Price: money(50000)},
			{ProductName: "Hạt điều vỡ", Quantity: money(1), Unit: "KG", Price: money(30000)},
		},
		Discount: money(10000),
		Subtotal: money(999), // caller-supplied garbage
		Total:    money(999),
	}

	if err := b.Normalize(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !b.Subtotal.Equal(money(130000)) {
		t.Errorf("expected subtotal 130000, got %v", b.Subtotal)
	}
	if !b.Total.Equal(money(120000)) {
		t.Errorf("expected total 120000, got %v", b.Total)
	}
}

func TestBillNormalize_InvalidInput_IsValidationError(t *testing.T) {
	valid := billing.BillItem{ProductName: "Hạt điều", Quantity: money(1), Price: money(50000)}

	cases := []struct {
		name string
		bill billing.Bill
	}{
		{"no items", billing.Bill{}},
		{"zero quantity", billing.Bill{Items: []billing.BillItem{
			{ProductName: "Hạt điều", Quantity: money(0), Price: money(50000)},
		}}},
		{"zero price", billing.Bill{Items: []billing.BillItem{
			{ProductName: "Hạt điều", Quantity: money(1), Price: money(0)},
		}}},
		{"blank item name", billing.Bill{Items: []billing.BillItem{
			{ProductName: " ", Quantity: money(1), Price: money(50000)},
		}}},
		{"negative discount", billing.Bill{
			Items:    []billing.BillItem{valid},
			Discount: money(-1),
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.bill.Normalize(); !billing.IsValidation(err) {
				t.Errorf("expected validation error, got %v", err)
			}
		})
	}
}
