package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/spacelefarm/billing-engine/billing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "billing.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func money(n int64) decimal.Decimal {
	return decimal.NewFromInt(n)
}

// =============================================================================
// PRODUCT CRUD
// =============================================================================

func TestProductCRUD_Roundtrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	// Create assigns the id and seeds the price history.
	created, err := s.CreateProduct(ctx, billing.Product{Name: "Hạt điều rang muối", Unit: "KG", Price: money(50000)})
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)
	require.Len(t, created.PriceHistory, 1)

	got, err := s.GetProduct(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, "Hạt điều rang muối", got.Name)
	require.True(t, got.Price.Equal(money(50000)))

	// Full-replace update.
	got.Price = money(60000)
	got.PriceHistory = append(got.PriceHistory, money(60000))
	require.NoError(t, s.UpdateProduct(ctx, got))

	updated, err := s.GetProduct(ctx, created.ID)
	require.NoError(t, err)
	require.True(t, updated.Price.Equal(money(60000)))
	require.Len(t, updated.PriceHistory, 2)
	// History comes back sorted descending.
	require.True(t, updated.PriceHistory[0].Equal(money(60000)))

	// Idempotent delete.
	require.NoError(t, s.DeleteProduct(ctx, created.ID))
	require.NoError(t, s.DeleteProduct(ctx, created.ID))

	_, err = s.GetProduct(ctx, created.ID)
	require.True(t, billing.IsNotFound(err))
}

func TestListProducts_InsertionOrder(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	names := []string{"Zebra", "Apple", "Mango"}
	for _, name := range names {
		_, err := s.CreateProduct(ctx, billing.Product{Name: name, Price: money(1000)})
		require.NoError(t, err)
	}

	products, err := s.ListProducts(ctx)
	require.NoError(t, err)
	require.Len(t, products, 3)
	for i, p := range products {
		require.Equal(t, names[i], p.Name)
	}
}

func TestUpdateProduct_Missing_IsNotFound(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	err := s.UpdateProduct(ctx, billing.Product{ID: "ghost", Name: "x", Price: money(1000)})
	require.True(t, billing.IsNotFound(err))
}

func TestCreateProduct_Invalid_IsValidationError(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.CreateProduct(ctx, billing.Product{Name: "   ", Price: money(1000)})
	require.True(t, billing.IsValidation(err))

	_, err = s.CreateProduct(ctx, billing.Product{Name: "ok", Price: money(0)})
	require.True(t, billing.IsValidation(err))
}

// =============================================================================
// UNITS
// =============================================================================

func TestCreateUnit_SequentialRanks(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	for i, name := range []string{"KG", "Bao", "Thùng"} {
		u, err := s.CreateUnit(ctx, billing.Unit{Name: name})
		require.NoError(t, err)
		require.Equal(t, i, u.Order)
	}

	units, err := s.ListUnits(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"KG", "Bao", "Thùng"}, []string{units[0].Name, units[1].Name, units[2].Name})
}

func TestListUnits_OrderedByRank(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	a, err := s.CreateUnit(ctx, billing.Unit{Name: "Bao"})
	require.NoError(t, err)
	_, err = s.CreateUnit(ctx, billing.Unit{Name: "KG"})
	require.NoError(t, err)

	// Move the first unit to the back.
	a.Order = 99
	require.NoError(t, s.UpdateUnit(ctx, a))

	units, err := s.ListUnits(ctx)
	require.NoError(t, err)
	require.Equal(t, "KG", units[0].Name)
	require.Equal(t, "Bao", units[1].Name)
}

// =============================================================================
// SETTINGS SINGLETON
// =============================================================================

func TestSettings_SingletonUpsert(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.GetSettings(ctx)
	require.True(t, billing.IsNotFound(err))

	// The id is pinned no matter what the caller supplies.
	set := billing.DefaultSettings()
	set.ID = "whatever"
	require.NoError(t, s.SaveSettings(ctx, set))

	set.ShopName = "Tên mới"
	require.NoError(t, s.SaveSettings(ctx, set))

	got, err := s.GetSettings(ctx)
	require.NoError(t, err)
	require.Equal(t, billing.SettingsID, got.ID)
	require.Equal(t, "Tên mới", got.ShopName)

	// Exactly one row ever exists.
	var count int
	require.NoError(t, s.db.QueryRow("SELECT COUNT(*) FROM settings").Scan(&count))
	require.Equal(t, 1, count)
}

// =============================================================================
// BILLS
// =============================================================================

func testBill(total int64) billing.Bill {
	return billing.Bill{
		CustomerName: "Chị Hoa",
		Items: []billing.BillItem{
			{ProductName: "Hạt điều", Quantity: money(1), Unit: "KG", Price: money(total)},
		},
	}
}

func TestCreateBill_StampsAndRecomputes(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	b := billing.Bill{
		CustomerName: "Chị Hoa",
		OrderCode:    "DH-001",
		Items: []billing.BillItem{
			{ProductName: "Hạt điều rang muối", Quantity: money(2), Unit: "KG", Price: money(50000)},
			{ProductName: "Hạt điều vỡ", Quantity: money(1), Unit: "KG", Price: money(30000)},
		},
		Discount: money(10000),
	}
	b.ID = "caller-chosen"

	created, err := s.CreateBill(ctx, b)
	require.NoError(t, err)
	require.NotEqual(t, "caller-chosen", created.ID)
	require.False(t, created.CreatedAt.IsZero())
	require.True(t, created.Subtotal.Equal(money(130000)))
	require.True(t, created.Total.Equal(money(120000)))

	got, err := s.GetBill(ctx, created.ID)
	require.NoError(t, err)
	require.Len(t, got.Items, 2)
	require.True(t, got.Total.Equal(money(120000)))
	require.Equal(t, "DH-001", got.OrderCode)
}

func TestListBills_DateRangeFilter(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	created, err := s.CreateBill(ctx, testBill(50000))
	require.NoError(t, err)

	// Today's bill falls inside a today..today range.
	today := billing.DayOf(created.CreatedAt)
	bills, err := s.ListBills(ctx, billing.BillFilter{Start: &today, End: &today})
	require.NoError(t, err)
	require.Len(t, bills, 1)

	// ... and outside a range that ends yesterday.
	yesterday := today.AddDate(0, 0, -1)
	bills, err = s.ListBills(ctx, billing.BillFilter{End: &yesterday})
	require.NoError(t, err)
	require.Empty(t, bills)
}

func TestReportSummary_CountsTodaysBills(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.CreateBill(ctx, testBill(50000))
	require.NoError(t, err)
	_, err = s.CreateBill(ctx, testBill(30000))
	require.NoError(t, err)

	summary, err := s.ReportSummary(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, summary.Today.Count)
	require.True(t, summary.Today.Total.Equal(money(80000)))
	require.Equal(t, 2, summary.AllTime.Count)
}

// =============================================================================
// MIGRATION
// =============================================================================

func TestMigrate_FreshStoreIsCurrentVersion(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	version, err := s.metaInt(ctx, metaSchemaVersion)
	require.NoError(t, err)
	require.Equal(t, schemaVersion, version)
}

func TestMigrate_ReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "billing.db")

	s, err := New(path)
	require.NoError(t, err)
	created, err := s.CreateProduct(ctx, billing.Product{Name: "Hạt điều", Price: money(50000)})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	// Reopening re-runs the migrator against an already-current store.
	s2, err := New(path)
	require.NoError(t, err)
	defer s2.Close()

	got, err := s2.GetProduct(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, "Hạt điều", got.Name)
}

// =============================================================================
// LEGACY FLAT-KEY IMPORT
// =============================================================================

const legacyProductsBlob = `[
	{"id": "lp-1", "name": "Hạt điều cũ", "unit": "KG", "price": 40000},
	{"id": "lp-2", "name": "Hạt điều vỡ", "unit": "KG", "price": 25000, "priceHistory": [25000, 20000]}
]`

const legacySettingsBlob = `{
	"id": "main", "shopName": "Tiệm cũ", "bankBin": "970422",
	"accountNumber": "0988885192", "accountName": "PHAM THI HONG NHUNG"
}`

// seedLegacy plants flat-key blobs and clears the completion marker, as if
// an old app version had written them before this one first ran.
func seedLegacy(t *testing.T, s *Store) {
	t.Helper()
	_, err := s.db.Exec("INSERT OR REPLACE INTO legacy_kv (key, value) VALUES (?, ?)", legacyKeyProducts, legacyProductsBlob)
	require.NoError(t, err)
	_, err = s.db.Exec("INSERT OR REPLACE INTO legacy_kv (key, value) VALUES (?, ?)", legacyKeySettings, legacySettingsBlob)
	require.NoError(t, err)
	_, err = s.db.Exec("DELETE FROM meta WHERE key = ?", metaLegacyImportDone)
	require.NoError(t, err)
}

func TestLegacyImport_ImportsOnce(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	seedLegacy(t, s)

	require.NoError(t, s.importLegacy(ctx))

	products, err := s.ListProducts(ctx)
	require.NoError(t, err)
	require.Len(t, products, 2)

	// Legacy ids survive the import; a product with no history gets one.
	got, err := s.GetProduct(ctx, "lp-1")
	require.NoError(t, err)
	require.Len(t, got.PriceHistory, 1)

	settings, err := s.GetSettings(ctx)
	require.NoError(t, err)
	require.Equal(t, "Tiệm cũ", settings.ShopName)
}

func TestLegacyImport_RunningTwice_NeverDuplicates(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	seedLegacy(t, s)

	require.NoError(t, s.importLegacy(ctx))

	// Force a second pass past the completion marker.
	_, err := s.db.Exec("DELETE FROM meta WHERE key = ?", metaLegacyImportDone)
	require.NoError(t, err)
	require.NoError(t, s.importLegacy(ctx))

	products, err := s.ListProducts(ctx)
	require.NoError(t, err)
	require.Len(t, products, 2)
}

func TestLegacyImport_NeverOverwritesStructuredRecords(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	// A structured record with a legacy id already exists.
	_, err := s.db.Exec(
		"INSERT INTO products (id, name, unit, price, price_history_json) VALUES (?, ?, ?, ?, ?)",
		"lp-1", "Bản mới hơn", "KG", "45000", `["45000"]`)
	require.NoError(t, err)

	// Structured settings already exist too.
	current := billing.DefaultSettings()
	current.ShopName = "Tiệm hiện tại"
	require.NoError(t, s.SaveSettings(ctx, current))

	seedLegacy(t, s)
	require.NoError(t, s.importLegacy(ctx))

	got, err := s.GetProduct(ctx, "lp-1")
	require.NoError(t, err)
	require.Equal(t, "Bản mới hơn", got.Name)

	settings, err := s.GetSettings(ctx)
	require.NoError(t, err)
	require.Equal(t, "Tiệm hiện tại", settings.ShopName)

	// Only the genuinely new legacy product arrived.
	products, err := s.ListProducts(ctx)
	require.NoError(t, err)
	require.Len(t, products, 2)
}

func TestLegacyImport_RetainsLegacySource(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	seedLegacy(t, s)

	require.NoError(t, s.importLegacy(ctx))

	// The flat rows stay behind as a backup.
	var count int
	require.NoError(t, s.db.QueryRow("SELECT COUNT(*) FROM legacy_kv").Scan(&count))
	require.Equal(t, 2, count)
}
