/*
Package sqlite provides the embedded local Backend variant.

PURPOSE:
  Implements billing.Backend on a single SQLite file. This is the durable
  on-device store: data survives restarts, every record is keyed by id per
  kind, with secondary orderings by name (products, customers) and display
  rank (units).

INTERFACES IMPLEMENTED:
  billing.Backend:  Entity CRUD per kind
  billing.Reporter: Native report aggregation

KEY TABLES:
  products, customers, units, settings, bills:  One partition per kind
  legacy_kv: Flat string-keyed blobs from the pre-structured layout.
             Read once by the migrator, retained as a backup, never
             written by the current system.
  meta:      Schema version marker and migration completion flags

LIST ORDERING:
  Products, customers and bills list in insertion order (rowid); units
  list by display rank. The in-memory and remote variants mirror this.

CONCURRENCY:
  Uses sync.RWMutex so interleaved UI writes serialize cleanly. SQLite is
  opened in WAL mode: readers don't block, one writer at a time, better
  crash recovery. A write either commits in full or fails; nothing is
  left half-applied.

USAGE:
  store, err := sqlite.New("./data/billing.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  repo := billing.NewRepository(store)

SEE ALSO:
  - migrate.go: Schema version state machine and legacy import
  - billing/backend.go: Contract definition
  - billing/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/spacelefarm/billing-engine/billing"
)

// Store implements the local backend variant on SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New opens (or creates) the database at dbPath and migrates it to the
// current schema version. Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func storeErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %v", op, billing.ErrUnavailable, err)
}

// =============================================================================
// PRODUCTS
// =============================================================================

func (s *Store) ListProducts(ctx context.Context) ([]billing.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, unit, price, price_history_json FROM products ORDER BY rowid ASC")
	if err != nil {
		return nil, storeErr("list products", err)
	}
	defer rows.Close()

	var products []billing.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

func (s *Store) GetProduct(ctx context.Context, id string) (billing.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getProduct(ctx, id)
}

func (s *Store) getProduct(ctx context.Context, id string) (billing.Product, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT id, name, unit, price, price_history_json FROM products WHERE id = ?", id)

	p, err := scanProduct(row)
	if err == sql.ErrNoRows {
		return billing.Product{}, &billing.NotFoundError{Kind: "product", ID: id}
	}
	if err != nil {
		return billing.Product{}, err
	}
	return p, nil
}

func (s *Store) CreateProduct(ctx context.Context, p billing.Product) (billing.Product, error) {
	if err := p.Normalize(); err != nil {
		return billing.Product{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p.ID = uuid.NewString()
	history, _ := json.Marshal(p.PriceHistory)

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO products (id, name, unit, price, price_history_json) VALUES (?, ?, ?, ?, ?)",
		p.ID, p.Name, p.Unit, p.Price.String(), string(history))
	if err != nil {
		return billing.Product{}, storeErr("create product", err)
	}
	return p, nil
}

func (s *Store) UpdateProduct(ctx context.Context, p billing.Product) error {
	if err := p.Normalize(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	history, _ := json.Marshal(p.PriceHistory)
	res, err := s.db.ExecContext(ctx,
		"UPDATE products SET name = ?, unit = ?, price = ?, price_history_json = ? WHERE id = ?",
		p.Name, p.Unit, p.Price.String(), string(history), p.ID)
	if err != nil {
		return storeErr("update product", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &billing.NotFoundError{Kind: "product", ID: p.ID}
	}
	return nil
}

// DeleteProduct removes a product. Deleting a nonexistent id is not an error.
func (s *Store) DeleteProduct(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, "DELETE FROM products WHERE id = ?", id); err != nil {
		return storeErr("delete product", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (billing.Product, error) {
	var p billing.Product
	var price, historyJSON string

	if err := row.Scan(&p.ID, &p.Name, &p.Unit, &price, &historyJSON); err != nil {
		return p, err
	}

	p.Price = mustDecimal(price)
	if historyJSON != "" {
		json.Unmarshal([]byte(historyJSON), &p.PriceHistory)
	}
	return p, nil
}

// =============================================================================
// CUSTOMERS
// =============================================================================

func (s *Store) ListCustomers(ctx context.Context) ([]billing.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, phone, address FROM customers ORDER BY rowid ASC")
	if err != nil {
		return nil, storeErr("list customers", err)
	}
	defer rows.Close()

	var customers []billing.Customer
	for rows.Next() {
		var c billing.Customer
		if err := rows.Scan(&c.ID, &c.Name, &c.Phone, &c.Address); err != nil {
			return nil, err
		}
		customers = append(customers, c)
	}
	return customers, rows.Err()
}

func (s *Store) GetCustomer(ctx context.Context, id string) (billing.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var c billing.Customer
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, phone, address FROM customers WHERE id = ?", id).
		Scan(&c.ID, &c.Name, &c.Phone, &c.Address)

	if err == sql.ErrNoRows {
		return billing.Customer{}, &billing.NotFoundError{Kind: "customer", ID: id}
	}
	if err != nil {
		return billing.Customer{}, storeErr("get customer", err)
	}
	return c, nil
}

func (s *Store) CreateCustomer(ctx context.Context, c billing.Customer) (billing.Customer, error) {
	if err := c.Normalize(); err != nil {
		return billing.Customer{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c.ID = uuid.NewString()
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO customers (id, name, phone, address) VALUES (?, ?, ?, ?)",
		c.ID, c.Name, c.Phone, c.Address)
	if err != nil {
		return billing.Customer{}, storeErr("create customer", err)
	}
	return c, nil
}

func (s *Store) UpdateCustomer(ctx context.Context, c billing.Customer) error {
	if err := c.Normalize(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		"UPDATE customers SET name = ?, phone = ?, address = ? WHERE id = ?",
		c.Name, c.Phone, c.Address, c.ID)
	if err != nil {
		return storeErr("update customer", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &billing.NotFoundError{Kind: "customer", ID: c.ID}
	}
	return nil
}

func (s *Store) DeleteCustomer(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, "DELETE FROM customers WHERE id = ?", id); err != nil {
		return storeErr("delete customer", err)
	}
	return nil
}

// =============================================================================
// UNITS
// =============================================================================

func (s *Store) ListUnits(ctx context.Context) ([]billing.Unit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, ord FROM units ORDER BY ord ASC, rowid ASC")
	if err != nil {
		return nil, storeErr("list units", err)
	}
	defer rows.Close()

	var units []billing.Unit
	for rows.Next() {
		var u billing.Unit
		if err := rows.Scan(&u.ID, &u.Name, &u.Order); err != nil {
			return nil, err
		}
		units = append(units, u)
	}
	return units, rows.Err()
}

func (s *Store) GetUnit(ctx context.Context, id string) (billing.Unit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var u billing.Unit
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, ord FROM units WHERE id = ?", id).
		Scan(&u.ID, &u.Name, &u.Order)

	if err == sql.ErrNoRows {
		return billing.Unit{}, &billing.NotFoundError{Kind: "unit", ID: id}
	}
	if err != nil {
		return billing.Unit{}, storeErr("get unit", err)
	}
	return u, nil
}

// CreateUnit assigns the rank after the current maximum, so seeding an
// empty store produces sequential ranks starting at 0.
func (s *Store) CreateUnit(ctx context.Context, u billing.Unit) (billing.Unit, error) {
	if err := u.Normalize(); err != nil {
		return billing.Unit{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.db.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(ord) + 1, 0) FROM units").Scan(&u.Order); err != nil {
		return billing.Unit{}, storeErr("create unit", err)
	}

	u.ID = uuid.NewString()
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO units (id, name, ord) VALUES (?, ?, ?)", u.ID, u.Name, u.Order)
	if err != nil {
		return billing.Unit{}, storeErr("create unit", err)
	}
	return u, nil
}

func (s *Store) UpdateUnit(ctx context.Context, u billing.Unit) error {
	if err := u.Normalize(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		"UPDATE units SET name = ?, ord = ? WHERE id = ?", u.Name, u.Order, u.ID)
	if err != nil {
		return storeErr("update unit", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &billing.NotFoundError{Kind: "unit", ID: u.ID}
	}
	return nil
}

func (s *Store) DeleteUnit(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, "DELETE FROM units WHERE id = ?", id); err != nil {
		return storeErr("delete unit", err)
	}
	return nil
}

// =============================================================================
// SETTINGS
// =============================================================================

func (s *Store) GetSettings(ctx context.Context) (billing.Settings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getSettings(ctx)
}

func (s *Store) getSettings(ctx context.Context) (billing.Settings, error) {
	var set billing.Settings
	err := s.db.QueryRowContext(ctx,
		`SELECT id, shop_name, shop_address, shop_phone, shop_logo,
		        bank_name, bank_bin, account_number, account_name
		 FROM settings WHERE id = ?`, billing.SettingsID).
		Scan(&set.ID, &set.ShopName, &set.ShopAddress, &set.ShopPhone, &set.ShopLogo,
			&set.BankName, &set.BankBin, &set.AccountNumber, &set.AccountName)

	if err == sql.ErrNoRows {
		return billing.Settings{}, &billing.NotFoundError{Kind: "settings", ID: billing.SettingsID}
	}
	if err != nil {
		return billing.Settings{}, storeErr("get settings", err)
	}
	return set, nil
}

// SaveSettings upserts the singleton. The id is pinned to billing.SettingsID
// regardless of what the caller supplied.
func (s *Store) SaveSettings(ctx context.Context, set billing.Settings) error {
	if err := set.Normalize(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveSettings(ctx, set)
}

func (s *Store) saveSettings(ctx context.Context, set billing.Settings) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO settings
			(id, shop_name, shop_address, shop_phone, shop_logo,
			 bank_name, bank_bin, account_number, account_name)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			shop_name = excluded.shop_name,
			shop_address = excluded.shop_address,
			shop_phone = excluded.shop_phone,
			shop_logo = excluded.shop_logo,
			bank_name = excluded.bank_name,
			bank_bin = excluded.bank_bin,
			account_number = excluded.account_number,
			account_name = excluded.account_name`,
		set.ID, set.ShopName, set.ShopAddress, set.ShopPhone, set.ShopLogo,
		set.BankName, set.BankBin, set.AccountNumber, set.AccountName)
	if err != nil {
		return storeErr("save settings", err)
	}
	return nil
}

// =============================================================================
// BILLS
// =============================================================================

func (s *Store) ListBills(ctx context.Context, f billing.BillFilter) ([]billing.Bill, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT id, customer_name, customer_phone, customer_address, order_code,
	                 items_json, subtotal, discount, total, created_at
	          FROM bills`
	var conds []string
	var args []any
	if f.Start != nil {
		conds = append(conds, "created_at >= ?")
		args = append(args, billing.DayOf(*f.Start).UTC().Format(time.RFC3339))
	}
	if f.End != nil {
		conds = append(conds, "created_at < ?")
		args = append(args, billing.DayOf(*f.End).AddDate(0, 0, 1).UTC().Format(time.RFC3339))
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY rowid ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storeErr("list bills", err)
	}
	defer rows.Close()

	var bills []billing.Bill
	for rows.Next() {
		b, err := scanBill(rows)
		if err != nil {
			return nil, err
		}
		bills = append(bills, b)
	}
	return bills, rows.Err()
}

func (s *Store) GetBill(ctx context.Context, id string) (billing.Bill, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		`SELECT id, customer_name, customer_phone, customer_address, order_code,
		        items_json, subtotal, discount, total, created_at
		 FROM bills WHERE id = ?`, id)

	b, err := scanBill(row)
	if err == sql.ErrNoRows {
		return billing.Bill{}, &billing.NotFoundError{Kind: "bill", ID: id}
	}
	if err != nil {
		return billing.Bill{}, err
	}
	return b, nil
}

// CreateBill assigns the id and the creation timestamp; caller-supplied
// values for either are discarded. Bills are immutable afterwards.
func (s *Store) CreateBill(ctx context.Context, b billing.Bill) (billing.Bill, error) {
	if err := b.Normalize(); err != nil {
		return billing.Bill{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	b.ID = uuid.NewString()
	b.CreatedAt = time.Now()
	items, _ := json.Marshal(b.Items)

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO bills
			(id, customer_name, customer_phone, customer_address, order_code,
			 items_json, subtotal, discount, total, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.CustomerName, b.CustomerPhone, b.CustomerAddress, b.OrderCode,
		string(items), b.Subtotal.String(), b.Discount.String(), b.Total.String(),
		b.CreatedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return billing.Bill{}, storeErr("create bill", err)
	}
	return b, nil
}

func (s *Store) DeleteBill(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, "DELETE FROM bills WHERE id = ?", id); err != nil {
		return storeErr("delete bill", err)
	}
	return nil
}

func scanBill(row rowScanner) (billing.Bill, error) {
	var b billing.Bill
	var itemsJSON, subtotal, discount, total, createdAt string

	err := row.Scan(&b.ID, &b.CustomerName, &b.CustomerPhone, &b.CustomerAddress,
		&b.OrderCode, &itemsJSON, &subtotal, &discount, &total, &createdAt)
	if err != nil {
		return b, err
	}

	if itemsJSON != "" {
		json.Unmarshal([]byte(itemsJSON), &b.Items)
	}
	b.Subtotal = mustDecimal(subtotal)
	b.Discount = mustDecimal(discount)
	b.Total = mustDecimal(total)
	t, _ := time.Parse(time.RFC3339, createdAt)
	b.CreatedAt = t.Local()
	return b, nil
}

// =============================================================================
// REPORTS (billing.Reporter)
// =============================================================================

// ReportSummary aggregates via the shared windowing functions so the result
// matches the facade's client-side derivation exactly.
func (s *Store) ReportSummary(ctx context.Context) (billing.Summary, error) {
	bills, err := s.ListBills(ctx, billing.BillFilter{})
	if err != nil {
		return billing.Summary{}, err
	}
	return billing.Summarize(bills, time.Now()), nil
}

func (s *Store) ReportDaily(ctx context.Context, days int) ([]billing.DailyPoint, error) {
	bills, err := s.ListBills(ctx, billing.BillFilter{})
	if err != nil {
		return nil, err
	}
	return billing.DailyTotals(bills, time.Now(), days), nil
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all entity data (for testing/demo). The legacy_kv backup and
// the schema version marker survive.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{"products", "customers", "units", "settings", "bills"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return storeErr("reset", err)
		}
	}
	return nil
}

func mustDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
