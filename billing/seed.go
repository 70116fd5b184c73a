/*
seed.go - Default records inserted exactly once

PURPOSE:
  The UI never operates on an empty unit list or a missing Settings
  record. Seed guarantees both: on first activation it inserts the fixed
  default unit names and the default shop Settings; on every later call
  it is a no-op.

IDEMPOTENCY:
  Seeding is keyed on observed state, not on a "seeded" flag: units are
  seeded only while the unit collection is empty, settings only while
  the singleton is absent. Running Seed any number of times yields
  exactly one Settings record and exactly one default unit set.

SEE ALSO:
  - repository.go: Runs Seed behind the init gate before the first operation
*/
package billing

import (
	"context"
	"errors"
	"fmt"
)

// DefaultUnits is the fixed seed list, in display order. KG comes first
// because it is the fallback unit everywhere a product has none.
var DefaultUnits = []string{"KG", "Gram", "Bao", "Thùng", "Hộp", "Gói", "Chai", "Cái"}

// DefaultSettings is the seed Settings record.
func DefaultSettings() Settings {
	return Settings{
		ID:            SettingsID,
		ShopName:      "Hạt điều Tinh Hoa Việt",
		ShopAddress:   "TT Tân Khai, H. Hớn Quản, T. Bình Phước",
		ShopPhone:     "0349 939 393 - 0988 885 192",
		BankName:      "MB Bank",
		BankBin:       DefaultBankBin,
		AccountNumber: "0988885192",
		AccountName:   "PHAM THI HONG NHUNG",
	}
}

// Seed inserts the default units and Settings through the backend if, and
// only if, they are missing. Safe to call concurrently with CRUD traffic;
// the repository serializes it behind the init gate.
func Seed(ctx context.Context, b Backend) error {
	units, err := b.ListUnits(ctx)
	if err != nil {
		return fmt.Errorf("seed: list units: %w", err)
	}
	if len(units) == 0 {
		for _, name := range DefaultUnits {
			if _, err := b.CreateUnit(ctx, Unit{Name: name}); err != nil {
				return fmt.Errorf("seed: create unit %q: %w", name, err)
			}
		}
	}

	_, err = b.GetSettings(ctx)
	if errors.Is(err, ErrNotFound) {
		if err := b.SaveSettings(ctx, DefaultSettings()); err != nil {
			return fmt.Errorf("seed: save settings: %w", err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("seed: get settings: %w", err)
	}
	return nil
}
