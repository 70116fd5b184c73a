/*
migrate.go - Schema version state machine and legacy flat-key import

PURPOSE:
  Upgrades a local store from any prior layout to the current one. The
  schema version lives in the meta table:

    v0 (unversioned)  Nothing but, possibly, the legacy_kv flat store
    v1                Structured per-kind tables exist
    v2 (current)      Secondary indexes + legacy_kv guaranteed present

  Separately from the version marker, a one-shot reconciliation pass
  imports the legacy flat keys ("products", "settings") into the
  structured tables.

IDEMPOTENCY:
  Both the version transitions and the legacy import are additive and
  idempotent: every CREATE is IF NOT EXISTS, imported products are
  skipped when their id already exists, and legacy settings are imported
  only while no structured singleton exists. The legacy rows themselves
  are never deleted - they stay behind as a backup.

SEE ALSO:
  - sqlite.go: The store this migrates
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/spacelefarm/billing-engine/billing"
)

const schemaVersion = 2

// meta keys
const (
	metaSchemaVersion    = "schema_version"
	metaLegacyImportDone = "legacy_import_done"
)

// legacy_kv keys written by the pre-structured app versions
const (
	legacyKeyProducts = "products"
	legacyKeySettings = "settings"
)

// migrate brings the database to the current schema version, then runs the
// legacy import pass. Called from New before the store is handed out, so
// no CRUD call can observe a half-migrated layout.
func (s *Store) migrate() error {
	ctx := context.Background()

	if _, err := s.db.ExecContext(ctx,
		"CREATE TABLE IF NOT EXISTS meta (key TEXT PRIMARY KEY, value TEXT NOT NULL)"); err != nil {
		return fmt.Errorf("create meta table: %w", err)
	}

	version, err := s.metaInt(ctx, metaSchemaVersion)
	if err != nil {
		return err
	}

	if version < 1 {
		logrus.WithField("from", version).Info("migrating schema to v1")
		if err := s.migrateV1(ctx); err != nil {
			return fmt.Errorf("migrate to v1: %w", err)
		}
	}
	if version < 2 {
		logrus.WithField("from", version).Info("migrating schema to v2")
		if err := s.migrateV2(ctx); err != nil {
			return fmt.Errorf("migrate to v2: %w", err)
		}
	}

	if err := s.setMeta(ctx, metaSchemaVersion, fmt.Sprintf("%d", schemaVersion)); err != nil {
		return err
	}

	return s.importLegacy(ctx)
}

// migrateV1 creates the structured per-kind tables.
func (s *Store) migrateV1(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS products (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		unit TEXT NOT NULL DEFAULT '',
		price TEXT NOT NULL,
		price_history_json TEXT NOT NULL DEFAULT '[]'
	);

	CREATE TABLE IF NOT EXISTS customers (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		phone TEXT NOT NULL DEFAULT '',
		address TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS units (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		ord INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS settings (
		id TEXT PRIMARY KEY,
		shop_name TEXT NOT NULL DEFAULT '',
		shop_address TEXT NOT NULL DEFAULT '',
		shop_phone TEXT NOT NULL DEFAULT '',
		shop_logo TEXT NOT NULL DEFAULT '',
		bank_name TEXT NOT NULL DEFAULT '',
		bank_bin TEXT NOT NULL DEFAULT '',
		account_number TEXT NOT NULL DEFAULT '',
		account_name TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS bills (
		id TEXT PRIMARY KEY,
		customer_name TEXT NOT NULL DEFAULT '',
		customer_phone TEXT NOT NULL DEFAULT '',
		customer_address TEXT NOT NULL DEFAULT '',
		order_code TEXT NOT NULL DEFAULT '',
		items_json TEXT NOT NULL DEFAULT '[]',
		subtotal TEXT NOT NULL,
		discount TEXT NOT NULL DEFAULT '0',
		total TEXT NOT NULL,
		created_at TEXT NOT NULL
	);
	`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// migrateV2 adds the secondary orderings and guarantees the legacy_kv
// table exists (older installs created it; fresh ones never will have
// data in it, but the import pass reads it unconditionally).
func (s *Store) migrateV2(ctx context.Context) error {
	schema := `
	CREATE INDEX IF NOT EXISTS idx_products_name ON products(name);
	CREATE INDEX IF NOT EXISTS idx_customers_name ON customers(name);
	CREATE INDEX IF NOT EXISTS idx_units_ord ON units(ord);
	CREATE INDEX IF NOT EXISTS idx_bills_created_at ON bills(created_at);

	CREATE TABLE IF NOT EXISTS legacy_kv (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// =============================================================================
// LEGACY FLAT-KEY IMPORT
// =============================================================================

// importLegacy is the one-shot reconciliation pass over the flat store.
// Completion is tracked by a single meta marker, but the pass itself is
// also idempotent: re-running it never duplicates or overwrites a
// structured record.
func (s *Store) importLegacy(ctx context.Context) error {
	done, err := s.metaValue(ctx, metaLegacyImportDone)
	if err != nil {
		return err
	}
	if done == "1" {
		return nil
	}

	imported, err := s.importLegacyProducts(ctx)
	if err != nil {
		return fmt.Errorf("import legacy products: %w", err)
	}
	if imported > 0 {
		logrus.WithField("count", imported).Info("imported legacy products")
	}

	if err := s.importLegacySettings(ctx); err != nil {
		return fmt.Errorf("import legacy settings: %w", err)
	}

	return s.setMeta(ctx, metaLegacyImportDone, "1")
}

func (s *Store) importLegacyProducts(ctx context.Context) (int, error) {
	blob, err := s.legacyValue(ctx, legacyKeyProducts)
	if err != nil || blob == "" {
		return 0, err
	}

	var products []billing.Product
	if err := json.Unmarshal([]byte(blob), &products); err != nil {
		// A malformed blob is a legacy artifact, not a reason to refuse
		// startup. Leave it in place and move on.
		logrus.WithError(err).Warn("skipping malformed legacy products blob")
		return 0, nil
	}

	imported := 0
	for _, p := range products {
		if p.ID == "" {
			continue
		}
		if err := p.Normalize(); err != nil {
			logrus.WithField("id", p.ID).WithError(err).Warn("skipping invalid legacy product")
			continue
		}

		var exists int
		if err := s.db.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM products WHERE id = ?", p.ID).Scan(&exists); err != nil {
			return imported, err
		}
		if exists > 0 {
			continue // never overwrite a structured record
		}

		history, _ := json.Marshal(p.PriceHistory)
		if _, err := s.db.ExecContext(ctx,
			"INSERT INTO products (id, name, unit, price, price_history_json) VALUES (?, ?, ?, ?, ?)",
			p.ID, p.Name, p.Unit, p.Price.String(), string(history)); err != nil {
			return imported, err
		}
		imported++
	}
	return imported, nil
}

func (s *Store) importLegacySettings(ctx context.Context) error {
	blob, err := s.legacyValue(ctx, legacyKeySettings)
	if err != nil || blob == "" {
		return err
	}

	// Only import while no structured singleton exists.
	if _, err := s.getSettings(ctx); err == nil {
		return nil
	}

	var set billing.Settings
	if err := json.Unmarshal([]byte(blob), &set); err != nil {
		logrus.WithError(err).Warn("skipping malformed legacy settings blob")
		return nil
	}
	if err := set.Normalize(); err != nil {
		return nil
	}
	return s.saveSettings(ctx, set)
}

// =============================================================================
// META / LEGACY HELPERS
// =============================================================================

func (s *Store) metaValue(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM meta WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

func (s *Store) metaInt(ctx context.Context, key string) (int, error) {
	value, err := s.metaValue(ctx, key)
	if err != nil || value == "" {
		return 0, err
	}
	var n int
	fmt.Sscanf(value, "%d", &n)
	return n, nil
}

func (s *Store) setMeta(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO meta (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	return err
}

func (s *Store) legacyValue(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM legacy_kv WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return value, nil
}
