package migrations

import (
	"context"

	"github.com/uptrace/bun"
)

// Chargebacks put the investment under manual review. The init migration
// creates the column on fresh databases, hence IF NOT EXISTS here.
func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		if _, err := db.Exec(`ALTER TABLE investments ADD COLUMN IF NOT EXISTS flagged_for_review BOOLEAN`); err != nil {
			return err
		}
		return nil
	}, nil)
}
