package catalog

import (
	"context"
	"database/sql"

	"roastline/internal/domain"
	"roastline/internal/repo"
)

// Catalog resolves coffee and shop reference data.
type Catalog struct {
	DB *sql.DB
}

// FindCoffee returns the coffee row, or repo.ErrNotFound.
func (c Catalog) FindCoffee(ctx context.Context, id string) (domain.Coffee, error) {
	var coffee domain.Coffee
	err := c.DB.QueryRowContext(ctx, `SELECT id,name,default_pack_kg FROM coffees WHERE id=?`, id).
		Scan(&coffee.ID, &coffee.Name, &coffee.DefaultPackKg)
	if err == sql.ErrNoRows {
		return coffee, repo.ErrNotFound
	}
	return coffee, err
}

// CoffeeName resolves a coffee's display name. Unknown ids fall back to the
// id itself, never an error.
func (c Catalog) CoffeeName(ctx context.Context, id string) string {
	coffee, err := c.FindCoffee(ctx, id)
	if err != nil {
		return id
	}
	return coffee.Name
}

func (c Catalog) FindShop(ctx context.Context, id string) (domain.Shop, error) {
	var shop domain.Shop
	err := c.DB.QueryRowContext(ctx, `SELECT id,name FROM shops WHERE id=?`, id).
		Scan(&shop.ID, &shop.Name)
	if err == sql.ErrNoRows {
		return shop, repo.ErrNotFound
	}
	return shop, err
}

func (c Catalog) ListCoffees(ctx context.Context) ([]domain.Coffee, error) {
	rows, err := c.DB.QueryContext(ctx, `SELECT id,name,default_pack_kg FROM coffees ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Coffee
	for rows.Next() {
		var coffee domain.Coffee
		if err := rows.Scan(&coffee.ID, &coffee.Name, &coffee.DefaultPackKg); err != nil {
			return nil, err
		}
		res = append(res, coffee)
	}
	return res, rows.Err()
}

func (c Catalog) ListShops(ctx context.Context) ([]domain.Shop, error) {
	rows, err := c.DB.QueryContext(ctx, `SELECT id,name FROM shops ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Shop
	for rows.Next() {
		var shop domain.Shop
		if err := rows.Scan(&shop.ID, &shop.Name); err != nil {
			return nil, err
		}
		res = append(res, shop)
	}
	return res, rows.Err()
}

// UpsertCoffee inserts or updates a reference row.
func (c Catalog) UpsertCoffee(ctx context.Context, tx *sql.Tx, coffee domain.Coffee) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO coffees(id,name,default_pack_kg) VALUES (?,?,?)
ON CONFLICT(id) DO UPDATE SET name=excluded.name, default_pack_kg=excluded.default_pack_kg`,
		coffee.ID, coffee.Name, coffee.DefaultPackKg)
	return err
}

// UpsertShop inserts or updates a reference row.
func (c Catalog) UpsertShop(ctx context.Context, tx *sql.Tx, shop domain.Shop) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO shops(id,name) VALUES (?,?)
ON CONFLICT(id) DO UPDATE SET name=excluded.name`,
		shop.ID, shop.Name)
	return err
}
