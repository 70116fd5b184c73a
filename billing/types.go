/*
Package billing provides the core data model and storage contract for the
retail billing engine.

PURPOSE:
  This package defines the five record kinds (Product, Customer, Unit,
  Settings, Bill), their validity rules, the Backend storage contract, and
  the algorithms that must behave identically regardless of which backend
  is active (report windowing, seeding, normalization).

KEY CONCEPTS IN THIS FILE (types.go):
  - Product: a sellable item with a current price and a descending price history
  - Customer: a buyer with contact details
  - Unit: a unit of measure with a display rank
  - Settings: the shop/payment identity singleton (id is always "main")
  - Bill: an immutable invoice snapshot derived from a validated cart

DESIGN PRINCIPLES:
  1. Immutable-by-replacement: updates always carry the full record; the
     storage layer never patches individual fields.
  2. Precision: money and quantities use decimal.Decimal, never float64.
  3. Write-time enforcement: invariants are checked or repaired when a record
     is written, never when it is read.

SEE ALSO:
  - backend.go: The storage contract both variants implement
  - report.go: Revenue windowing shared by backends and the facade
  - seed.go: Default records inserted on first activation
*/
package billing

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// PRODUCT
// =============================================================================

// Product is a sellable item. Price is the current price and must always be
// a member of PriceHistory, which is kept distinct and sorted descending.
type Product struct {
	ID           string            `json:"id"`
	Name         string            `json:"name"`
	Unit         string            `json:"unit"`
	Price        decimal.Decimal   `json:"price"`
	PriceHistory []decimal.Decimal `json:"priceHistory"`
}

// Normalize trims fields and repairs the price-history invariant in place.
// A missing Price is coerced into PriceHistory rather than rejected; an
// empty name or non-positive price is a validation failure.
func (p *Product) Normalize() error {
	p.Name = strings.TrimSpace(p.Name)
	p.Unit = strings.TrimSpace(p.Unit)

	if p.Name == "" {
		return &ValidationError{Field: "name", Reason: "must not be blank"}
	}
	if !p.Price.IsPositive() {
		return &ValidationError{Field: "price", Reason: "must be positive"}
	}

	p.PriceHistory = mergePriceHistory(p.PriceHistory, p.Price)
	return nil
}

// AddPrice records a new price point. Duplicates are a no-op; a new price
// becomes a history member but does NOT replace the current price.
func (p *Product) AddPrice(price decimal.Decimal) {
	if !price.IsPositive() {
		return
	}
	p.PriceHistory = mergePriceHistory(p.PriceHistory, price)
}

// mergePriceHistory returns history ∪ {price} with non-positive values and
// duplicates dropped, sorted descending.
func mergePriceHistory(history []decimal.Decimal, price decimal.Decimal) []decimal.Decimal {
	seen := make(map[string]bool, len(history)+1)
	merged := make([]decimal.Decimal, 0, len(history)+1)
	for _, h := range append(history, price) {
		if !h.IsPositive() || seen[h.String()] {
			continue
		}
		seen[h.String()] = true
		merged = append(merged, h)
	}
	sort.Slice(merged, func(i, j int) bool {
		return merged[i].GreaterThan(merged[j])
	})
	return merged
}

// =============================================================================
// CUSTOMER
// =============================================================================

type Customer struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
}

func (c *Customer) Normalize() error {
	c.Name = strings.TrimSpace(c.Name)
	c.Phone = strings.TrimSpace(c.Phone)
	c.Address = strings.TrimSpace(c.Address)

	if c.Name == "" {
		return &ValidationError{Field: "name", Reason: "must not be blank"}
	}
	return nil
}

// =============================================================================
// UNIT - Unit of measure (KG, Bao, Thùng, ...)
// =============================================================================

// Unit is a unit of measure. Order is a display rank: listings are sorted by
// it, but two units are allowed to share a rank.
type Unit struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Order int    `json:"order"`
}

func (u *Unit) Normalize() error {
	u.Name = strings.TrimSpace(u.Name)
	if u.Name == "" {
		return &ValidationError{Field: "name", Reason: "must not be blank"}
	}
	return nil
}

// =============================================================================
// SETTINGS - Shop identity singleton
// =============================================================================

// SettingsID is the fixed id of the Settings singleton. Exactly one Settings
// record ever exists; writes with any other id are pinned to this one.
const SettingsID = "main"

type Settings struct {
	ID            string `json:"id"`
	ShopName      string `json:"shopName"`
	ShopAddress   string `json:"shopAddress"`
	ShopPhone     string `json:"shopPhone"`
	ShopLogo      string `json:"shopLogo"`
	BankName      string `json:"bankName"`
	BankBin       string `json:"bankBin"`
	AccountNumber string `json:"accountNumber"`
	AccountName   string `json:"accountName"`
}

func (s *Settings) Normalize() error {
	s.ID = SettingsID
	return nil
}

// =============================================================================
// BILL - Immutable invoice
// =============================================================================

// BillItem is one line of a bill. It snapshots the product name, unit and
// price at sale time so later product edits never rewrite history.
type BillItem struct {
	ProductID   string          `json:"productId"`
	ProductName string          `json:"productName"`
	Quantity    decimal.Decimal `json:"quantity"`
	Unit        string          `json:"unit"`
	Price       decimal.Decimal `json:"price"`
}

// Bill is an invoice. Once created it is delete-only: there is no update path
// in the storage contract. CreatedAt is assigned by the store, never by the
// caller.
type Bill struct {
	ID              string          `json:"id"`
	CustomerName    string          `json:"customerName"`
	CustomerPhone   string          `json:"customerPhone"`
	CustomerAddress string          `json:"customerAddress"`
	OrderCode       string          `json:"orderCode"`
	Items           []BillItem      `json:"items"`
	Subtotal        decimal.Decimal `json:"subtotal"`
	Discount        decimal.Decimal `json:"discount"`
	Total           decimal.Decimal `json:"total"`
	CreatedAt       time.Time       `json:"createdAt"`
}

// Normalize validates the line items and recomputes the arithmetic invariant:
// subtotal = Σ(price × quantity), total = subtotal − discount. Caller-supplied
// totals are discarded.
func (b *Bill) Normalize() error {
	if len(b.Items) == 0 {
		return &ValidationError{Field: "items", Reason: "must contain at least one item"}
	}

	subtotal := decimal.Zero
	for i := range b.Items {
		item := &b.Items[i]
		item.ProductName = strings.TrimSpace(item.ProductName)
		if item.ProductName == "" {
			return &ValidationError{Field: "items.productName", Reason: "must not be blank"}
		}
		if !item.Quantity.IsPositive() {
			return &ValidationError{Field: "items.quantity", Reason: "must be positive"}
		}
		if !item.Price.IsPositive() {
			return &ValidationError{Field: "items.price", Reason: "must be positive"}
		}
		subtotal = subtotal.Add(item.Price.Mul(item.Quantity))
	}

	if b.Discount.IsNegative() {
		return &ValidationError{Field: "discount", Reason: "must not be negative"}
	}

	b.CustomerName = strings.TrimSpace(b.CustomerName)
	b.Subtotal = subtotal
	b.Total = subtotal.Sub(b.Discount)
	return nil
}
