/*
repository.go - The single API surface UI code consumes

PURPOSE:
  Repository is a thin dispatcher over the configured Backend. It owns the
  process-wide "is the store ready" state: the first operation runs the
  seeder (the SQLite variant has already migrated itself by then) and every
  operation awaits that gate, so a concurrent read can never observe a
  partial seed.

INIT GATE:
  Modeled explicitly as init-once/await-ready state rather than relying on
  incidental call ordering. sync.Once serializes the seeding pass; the
  stored error is returned to every caller if it failed, and the gate is
  NOT retried (a broken backend stays broken until reconfigured).

REPORT DERIVATION:
  When the backend implements Reporter, reports come from it natively.
  Otherwise they are derived here from ListBills using the exact same
  windowing functions, keeping the two paths interchangeable.

SEE ALSO:
  - backend.go: Backend and Reporter contracts
  - seed.go: What the gate actually runs
*/
package billing

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// timeNow is swapped out by clock-sensitive tests.
var timeNow = time.Now

// Repository routes every entity operation to the active backend.
type Repository struct {
	backend Backend

	initOnce sync.Once
	initErr  error
}

// NewRepository wraps a backend. No I/O happens until the first operation.
func NewRepository(b Backend) *Repository {
	return &Repository{backend: b}
}

// Ready runs the init gate and reports whether the store is usable.
// Callers normally never invoke this directly; every operation does.
func (r *Repository) Ready(ctx context.Context) error {
	r.initOnce.Do(func() {
		r.initErr = Seed(ctx, r.backend)
	})
	return r.initErr
}

// =============================================================================
// PRODUCTS
// =============================================================================

func (r *Repository) ListProducts(ctx context.Context) ([]Product, error) {
	if err := r.Ready(ctx); err != nil {
		return nil, err
	}
	return r.backend.ListProducts(ctx)
}

func (r *Repository) GetProduct(ctx context.Context, id string) (Product, error) {
	if err := r.Ready(ctx); err != nil {
		return Product{}, err
	}
	return r.backend.GetProduct(ctx, id)
}

func (r *Repository) AddProduct(ctx context.Context, p Product) (Product, error) {
	if err := r.Ready(ctx); err != nil {
		return Product{}, err
	}
	return r.backend.CreateProduct(ctx, p)
}

func (r *Repository) UpdateProduct(ctx context.Context, p Product) error {
	if err := r.Ready(ctx); err != nil {
		return err
	}
	return r.backend.UpdateProduct(ctx, p)
}

func (r *Repository) DeleteProduct(ctx context.Context, id string) error {
	if err := r.Ready(ctx); err != nil {
		return err
	}
	return r.backend.DeleteProduct(ctx, id)
}

// AddPriceToHistory records a new price point for a product. Recording a
// price that is already in the history is a no-op, not an error.
func (r *Repository) AddPriceToHistory(ctx context.Context, productID string, price decimal.Decimal) error {
	if err := r.Ready(ctx); err != nil {
		return err
	}
	p, err := r.backend.GetProduct(ctx, productID)
	if err != nil {
		return err
	}
	before := len(p.PriceHistory)
	p.AddPrice(price)
	if len(p.PriceHistory) == before {
		return nil
	}
	return r.backend.UpdateProduct(ctx, p)
}

// =============================================================================
// CUSTOMERS
// =============================================================================

func (r *Repository) ListCustomers(ctx context.Context) ([]Customer, error) {
	if err := r.Ready(ctx); err != nil {
		return nil, err
	}
	return r.backend.ListCustomers(ctx)
}

func (r *Repository) GetCustomer(ctx context.Context, id string) (Customer, error) {
	if err := r.Ready(ctx); err != nil {
		return Customer{}, err
	}
	return r.backend.GetCustomer(ctx, id)
}

func (r *Repository) AddCustomer(ctx context.Context, c Customer) (Customer, error) {
	if err := r.Ready(ctx); err != nil {
		return Customer{}, err
	}
	return r.backend.CreateCustomer(ctx, c)
}

func (r *Repository) UpdateCustomer(ctx context.Context, c Customer) error {
	if err := r.Ready(ctx); err != nil {
		return err
	}
	return r.backend.UpdateCustomer(ctx, c)
}

func (r *Repository) DeleteCustomer(ctx context.Context, id string) error {
	if err := r.Ready(ctx); err != nil {
		return err
	}
	return r.backend.DeleteCustomer(ctx, id)
}

// =============================================================================
// UNITS
// =============================================================================

func (r *Repository) ListUnits(ctx context.Context) ([]Unit, error) {
	if err := r.Ready(ctx); err != nil {
		return nil, err
	}
	return r.backend.ListUnits(ctx)
}

func (r *Repository) AddUnit(ctx context.Context, name string) (Unit, error) {
	if err := r.Ready(ctx); err != nil {
		return Unit{}, err
	}
	return r.backend.CreateUnit(ctx, Unit{Name: name})
}

func (r *Repository) UpdateUnit(ctx context.Context, u Unit) error {
	if err := r.Ready(ctx); err != nil {
		return err
	}
	return r.backend.UpdateUnit(ctx, u)
}

func (r *Repository) DeleteUnit(ctx context.Context, id string) error {
	if err := r.Ready(ctx); err != nil {
		return err
	}
	return r.backend.DeleteUnit(ctx, id)
}

// =============================================================================
// SETTINGS
// =============================================================================

// GetSettings returns the singleton. Because the init gate seeds it, a
// normal caller never sees ErrNotFound here.
func (r *Repository) GetSettings(ctx context.Context) (Settings, error) {
	if err := r.Ready(ctx); err != nil {
		return Settings{}, err
	}
	return r.backend.GetSettings(ctx)
}

func (r *Repository) SaveSettings(ctx context.Context, s Settings) error {
	if err := r.Ready(ctx); err != nil {
		return err
	}
	return r.backend.SaveSettings(ctx, s)
}

// =============================================================================
// BILLS
// =============================================================================

func (r *Repository) ListBills(ctx context.Context, f BillFilter) ([]Bill, error) {
	if err := r.Ready(ctx); err != nil {
		return nil, err
	}
	return r.backend.ListBills(ctx, f)
}

func (r *Repository) GetBill(ctx context.Context, id string) (Bill, error) {
	if err := r.Ready(ctx); err != nil {
		return Bill{}, err
	}
	return r.backend.GetBill(ctx, id)
}

func (r *Repository) SaveBill(ctx context.Context, b Bill) (Bill, error) {
	if err := r.Ready(ctx); err != nil {
		return Bill{}, err
	}
	return r.backend.CreateBill(ctx, b)
}

func (r *Repository) DeleteBill(ctx context.Context, id string) error {
	if err := r.Ready(ctx); err != nil {
		return err
	}
	return r.backend.DeleteBill(ctx, id)
}

// =============================================================================
// REPORTS
// =============================================================================

func (r *Repository) ReportSummary(ctx context.Context) (Summary, error) {
	if err := r.Ready(ctx); err != nil {
		return Summary{}, err
	}
	if rep, ok := r.backend.(Reporter); ok {
		return rep.ReportSummary(ctx)
	}
	bills, err := r.backend.ListBills(ctx, BillFilter{})
	if err != nil {
		return Summary{}, err
	}
	return Summarize(bills, timeNow()), nil
}

func (r *Repository) ReportDaily(ctx context.Context, days int) ([]DailyPoint, error) {
	if err := r.Ready(ctx); err != nil {
		return nil, err
	}
	if rep, ok := r.backend.(Reporter); ok {
		return rep.ReportDaily(ctx, days)
	}
	bills, err := r.backend.ListBills(ctx, BillFilter{})
	if err != nil {
		return nil, err
	}
	return DailyTotals(bills, timeNow(), days), nil
}
