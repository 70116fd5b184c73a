// Package store provides an in-memory Backend for tests and development.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/spacelefarm/billing-engine/billing"
)

// timeNow is swapped out by tests that need bills on fixed days.
var timeNow = time.Now

// =============================================================================
// MEMORY BACKEND - In-memory implementation (for testing/dev)
// =============================================================================

// Memory holds every collection as an insertion-ordered slice. It implements
// billing.Backend but deliberately NOT billing.Reporter, so the repository's
// client-side report derivation is exercised against it.
type Memory struct {
	mu        sync.RWMutex
	products  []billing.Product
	customers []billing.Customer
	units     []billing.Unit
	bills     []billing.Bill
	settings  *billing.Settings
}

func NewMemory() *Memory {
	return &Memory{}
}

func newID() string {
	return uuid.NewString()
}

// =============================================================================
// PRODUCTS
// =============================================================================

func (m *Memory) ListProducts(_ context.Context) ([]billing.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]billing.Product, len(m.products))
	copy(out, m.products)
	return out, nil
}

func (m *Memory) GetProduct(_ context.Context, id string) (billing.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, p := range m.products {
		if p.ID == id {
			return p, nil
		}
	}
	return billing.Product{}, &billing.NotFoundError{Kind: "product", ID: id}
}

func (m *Memory) CreateProduct(_ context.Context, p billing.Product) (billing.Product, error) {
	if err := p.Normalize(); err != nil {
		return billing.Product{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	p.ID = newID()
	m.products = append(m.products, p)
	return p, nil
}

func (m *Memory) UpdateProduct(_ context.Context, p billing.Product) error {
	if err := p.Normalize(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.products {
		if m.products[i].ID == p.ID {
			m.products[i] = p
			return nil
		}
	}
	return &billing.NotFoundError{Kind: "product", ID: p.ID}
}

func (m *Memory) DeleteProduct(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.products {
		if m.products[i].ID == id {
			m.products = append(m.products[:i], m.products[i+1:]...)
			return nil
		}
	}
	return nil // idempotent
}

// =============================================================================
// CUSTOMERS
// =============================================================================

func (m *Memory) ListCustomers(_ context.Context) ([]billing.Customer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]billing.Customer, len(m.customers))
	copy(out, m.customers)
	return out, nil
}

func (m *Memory) GetCustomer(_ context.Context, id string) (billing.Customer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, c := range m.customers {
		if c.ID == id {
			return c, nil
		}
	}
	return billing.Customer{}, &billing.NotFoundError{Kind: "customer", ID: id}
}

func (m *Memory) CreateCustomer(_ context.Context, c billing.Customer) (billing.Customer, error) {
	if err := c.Normalize(); err != nil {
		return billing.Customer{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	c.ID = newID()
	m.customers = append(m.customers, c)
	return c, nil
}

func (m *Memory) UpdateCustomer(_ context.Context, c billing.Customer) error {
	if err := c.Normalize(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.customers {
		if m.customers[i].ID == c.ID {
			m.customers[i] = c
			return nil
		}
	}
	return &billing.NotFoundError{Kind: "customer", ID: c.ID}
}

func (m *Memory) DeleteCustomer(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.customers {
		if m.customers[i].ID == id {
			m.customers = append(m.customers[:i], m.customers[i+1:]...)
			return nil
		}
	}
	return nil
}

// =============================================================================
// UNITS
// =============================================================================

func (m *Memory) ListUnits(_ context.Context) ([]billing.Unit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]billing.Unit, len(m.units))
	copy(out, m.units)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out, nil
}

func (m *Memory) GetUnit(_ context.Context, id string) (billing.Unit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, u := range m.units {
		if u.ID == id {
			return u, nil
		}
	}
	return billing.Unit{}, &billing.NotFoundError{Kind: "unit", ID: id}
}

func (m *Memory) CreateUnit(_ context.Context, u billing.Unit) (billing.Unit, error) {
	if err := u.Normalize(); err != nil {
		return billing.Unit{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	u.ID = newID()
	u.Order = m.nextUnitOrderLocked()
	m.units = append(m.units, u)
	return u, nil
}

// nextUnitOrderLocked picks the rank after the current maximum, which gives
// the seeder its sequential 0..n-1 ordering for free.
func (m *Memory) nextUnitOrderLocked() int {
	next := 0
	for _, u := range m.units {
		if u.Order >= next {
			next = u.Order + 1
		}
	}
	return next
}

func (m *Memory) UpdateUnit(_ context.Context, u billing.Unit) error {
	if err := u.Normalize(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.units {
		if m.units[i].ID == u.ID {
			m.units[i] = u
			return nil
		}
	}
	return &billing.NotFoundError{Kind: "unit", ID: u.ID}
}

func (m *Memory) DeleteUnit(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.units {
		if m.units[i].ID == id {
			m.units = append(m.units[:i], m.units[i+1:]...)
			return nil
		}
	}
	return nil
}

// =============================================================================
// SETTINGS
// =============================================================================

func (m *Memory) GetSettings(_ context.Context) (billing.Settings, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.settings == nil {
		return billing.Settings{}, &billing.NotFoundError{Kind: "settings", ID: billing.SettingsID}
	}
	return *m.settings, nil
}

func (m *Memory) SaveSettings(_ context.Context, s billing.Settings) error {
	if err := s.Normalize(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.settings = &s
	return nil
}

// =============================================================================
// BILLS
// =============================================================================

func (m *Memory) ListBills(_ context.Context, f billing.BillFilter) ([]billing.Bill, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]billing.Bill, 0, len(m.bills))
	for _, b := range m.bills {
		if f.Matches(b) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (m *Memory) GetBill(_ context.Context, id string) (billing.Bill, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, b := range m.bills {
		if b.ID == id {
			return b, nil
		}
	}
	return billing.Bill{}, &billing.NotFoundError{Kind: "bill", ID: id}
}

func (m *Memory) CreateBill(_ context.Context, b billing.Bill) (billing.Bill, error) {
	if err := b.Normalize(); err != nil {
		return billing.Bill{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	b.ID = newID()
	b.CreatedAt = timeNow()
	m.bills = append(m.bills, b)
	return b, nil
}

func (m *Memory) DeleteBill(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.bills {
		if m.bills[i].ID == id {
			m.bills = append(m.bills[:i], m.bills[i+1:]...)
			return nil
		}
	}
	return nil
}
