package app

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"roastline/internal/catalog"
	"roastline/internal/config"
	"roastline/internal/db"
	"roastline/internal/domain"
	"roastline/internal/migrate"
)

// Open prepares the workspace database: ensures the directory, opens the
// sqlite file, applies migrations and seeds reference data from cfg.
func Open(ctx context.Context, workspace string, cfg *config.Config) (*sql.DB, error) {
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return nil, err
	}
	if err := migrate.Migrate(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	if err := Seed(ctx, conn, cfg); err != nil {
		conn.Close()
		return nil, fmt.Errorf("seed: %w", err)
	}
	return conn, nil
}

// Seed writes the catalog and opening stock from cfg. It is idempotent:
// catalog rows are upserted, opening stock only lands for coffees that do
// not have a stock row yet, so re-running never resets a live ledger.
func Seed(ctx context.Context, conn *sql.DB, cfg *config.Config) error {
	if cfg == nil {
		cfg = config.Default()
	}
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	cat := catalog.Catalog{DB: conn}
	for _, seed := range cfg.Catalog.Coffees {
		coffee := domain.Coffee{ID: seed.ID, Name: seed.Name, DefaultPackKg: seed.DefaultPackKg}
		if err := cat.UpsertCoffee(ctx, tx, coffee); err != nil {
			return fmt.Errorf("seed coffee %s: %w", seed.ID, err)
		}
		green := cfg.Inventory.Opening.GreenKg[seed.ID]
		roasted := cfg.Inventory.Opening.RoastedKg[seed.ID]
		if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO inventory(coffee_id,green_kg,roasted_kg) VALUES (?,?,?)`,
			seed.ID, green, roasted); err != nil {
			return fmt.Errorf("seed stock %s: %w", seed.ID, err)
		}
	}
	for _, seed := range cfg.Catalog.Shops {
		if err := cat.UpsertShop(ctx, tx, domain.Shop{ID: seed.ID, Name: seed.Name}); err != nil {
			return fmt.Errorf("seed shop %s: %w", seed.ID, err)
		}
	}
	now := time.Now().UTC().Format(time.RFC3339)
	if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO inventory_state(id,updated_at) VALUES (1,?)`, now); err != nil {
		return err
	}
	return tx.Commit()
}
