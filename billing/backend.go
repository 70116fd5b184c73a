/*
backend.go - The storage contract both backend variants implement

PURPOSE:
  Defines Backend, the capability set the rest of the system programs
  against. Two conforming variants exist: the embedded SQLite store
  (store/sqlite) and the HTTP client store (store/remote), plus an
  in-memory store for tests (billing/store). Variants are selected by
  configuration, never by inheritance or type switching.

EQUIVALENCE CONTRACT:
  Running the same ordered script of operations against any two variants
  must yield observably identical results, ignoring the values of
  backend-assigned ids and timestamps. UI code can swap variants without
  behavior change. api/equivalence_test.go enforces this.

SEMANTICS:
  - Create assigns ids; caller-supplied ids on create are discarded.
  - Update is full replace and fails with ErrNotFound on a missing id.
  - Delete is idempotent: deleting a nonexistent id is not an error.
  - Get returns ErrNotFound for missing records (recoverable outcome).
  - Writes are never left half-applied: they commit in full or fail.
  - List order: insertion order for products/customers/bills, display
    rank for units.

SEE ALSO:
  - store/sqlite: Local (embedded, durable) variant
  - store/remote: Remote (HTTP) variant
  - repository.go: The facade UI code actually calls
*/
package billing

import (
	"context"
	"time"
)

// BillFilter restricts a bill listing to an inclusive calendar-day range.
// Nil bounds are unbounded.
type BillFilter struct {
	Start *time.Time
	End   *time.Time
}

// Matches reports whether a bill's creation day falls inside the range.
func (f BillFilter) Matches(b Bill) bool {
	day := DayOf(b.CreatedAt)
	if f.Start != nil && day.Before(DayOf(*f.Start)) {
		return false
	}
	if f.End != nil && day.After(DayOf(*f.End)) {
		return false
	}
	return true
}

// Backend is the storage capability contract.
type Backend interface {
	// Products
	ListProducts(ctx context.Context) ([]Product, error)
	GetProduct(ctx context.Context, id string) (Product, error)
	CreateProduct(ctx context.Context, p Product) (Product, error)
	UpdateProduct(ctx context.Context, p Product) error
	DeleteProduct(ctx context.Context, id string) error

	// Customers
	ListCustomers(ctx context.Context) ([]Customer, error)
	GetCustomer(ctx context.Context, id string) (Customer, error)
	CreateCustomer(ctx context.Context, c Customer) (Customer, error)
	UpdateCustomer(ctx context.Context, c Customer) error
	DeleteCustomer(ctx context.Context, id string) error

	// Units (listing is ordered by display rank)
	ListUnits(ctx context.Context) ([]Unit, error)
	GetUnit(ctx context.Context, id string) (Unit, error)
	CreateUnit(ctx context.Context, u Unit) (Unit, error)
	UpdateUnit(ctx context.Context, u Unit) error
	DeleteUnit(ctx context.Context, id string) error

	// Settings singleton. GetSettings returns ErrNotFound until seeded;
	// SaveSettings is an upsert pinned to SettingsID.
	GetSettings(ctx context.Context) (Settings, error)
	SaveSettings(ctx context.Context, s Settings) error

	// Bills are create/delete/list only - no update path exists.
	ListBills(ctx context.Context, f BillFilter) ([]Bill, error)
	GetBill(ctx context.Context, id string) (Bill, error)
	CreateBill(ctx context.Context, b Bill) (Bill, error)
	DeleteBill(ctx context.Context, id string) error
}

// Reporter is the optional native-report capability. Backends that can
// aggregate on their own side (the remote variant, whose server does the
// arithmetic) implement it; for everyone else the repository derives the
// same numbers from ListBills via Summarize/DailyTotals.
type Reporter interface {
	ReportSummary(ctx context.Context) (Summary, error)
	ReportDaily(ctx context.Context, days int) ([]DailyPoint, error)
}
