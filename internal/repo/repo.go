package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"roastline/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

// --- orders ---

func (r Repo) InsertOrder(ctx context.Context, tx *sql.Tx, o domain.Order) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO orders(id,channel,shop_id,customer_name,delivery_date,status,note,created_at) VALUES (?,?,?,?,?,?,?,?)`,
		o.ID, o.Channel, nullableStringPtr(o.ShopID), nullableStringPtr(o.CustomerName), o.DeliveryDate, o.Status, o.Note, o.CreatedAt)
	return err
}

func (r Repo) InsertOrderItem(ctx context.Context, tx *sql.Tx, id, orderID string, item domain.OrderItem) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO order_items(id,order_id,coffee_id,coffee_name,kg) VALUES (?,?,?,?,?)`,
		id, orderID, item.CoffeeID, item.CoffeeName, item.Kg)
	return err
}

func (r Repo) GetOrder(ctx context.Context, id string) (domain.Order, error) {
	var o domain.Order
	var shopID, customerName sql.NullString
	err := r.DB.QueryRowContext(ctx, `SELECT id,channel,shop_id,customer_name,delivery_date,status,note,created_at FROM orders WHERE id=?`, id).
		Scan(&o.ID, &o.Channel, &shopID, &customerName, &o.DeliveryDate, &o.Status, &o.Note, &o.CreatedAt)
	if err == sql.ErrNoRows {
		return o, ErrNotFound
	}
	if err != nil {
		return o, err
	}
	if shopID.Valid {
		o.ShopID = &shopID.String
	}
	if customerName.Valid {
		o.CustomerName = &customerName.String
	}
	items, err := r.listOrderItems(ctx, o.ID)
	if err != nil {
		return o, err
	}
	o.Items = items
	return o, nil
}

func (r Repo) listOrderItems(ctx context.Context, orderID string) ([]domain.OrderItem, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT coffee_id,coffee_name,kg FROM order_items WHERE order_id=? ORDER BY rowid`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []domain.OrderItem
	for rows.Next() {
		var it domain.OrderItem
		if err := rows.Scan(&it.CoffeeID, &it.CoffeeName, &it.Kg); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// ListOrders returns all orders, newest created first, items included.
func (r Repo) ListOrders(ctx context.Context) ([]domain.Order, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,channel,shop_id,customer_name,delivery_date,status,note,created_at FROM orders ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Order
	for rows.Next() {
		var o domain.Order
		var shopID, customerName sql.NullString
		if err := rows.Scan(&o.ID, &o.Channel, &shopID, &customerName, &o.DeliveryDate, &o.Status, &o.Note, &o.CreatedAt); err != nil {
			return nil, err
		}
		if shopID.Valid {
			o.ShopID = &shopID.String
		}
		if customerName.Valid {
			o.CustomerName = &customerName.String
		}
		res = append(res, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range res {
		items, err := r.listOrderItems(ctx, res[i].ID)
		if err != nil {
			return nil, err
		}
		res[i].Items = items
	}
	return res, nil
}

func (r Repo) UpdateOrderStatus(ctx context.Context, tx *sql.Tx, id, status string) error {
	_, err := tx.ExecContext(ctx, `UPDATE orders SET status=? WHERE id=?`, status, id)
	return err
}

// DeleteOrder removes the order and, via cascade, its items. Returns
// whether a row was actually removed.
func (r Repo) DeleteOrder(ctx context.Context, tx *sql.Tx, id string) (bool, error) {
	res, err := tx.ExecContext(ctx, `DELETE FROM orders WHERE id=?`, id)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// --- batches ---

func (r Repo) InsertBatch(ctx context.Context, tx *sql.Tx, b domain.Batch) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO batches(id,coffee_id,coffee_name,kg,status,note,created_at) VALUES (?,?,?,?,?,?,?)`,
		b.ID, b.CoffeeID, b.CoffeeName, b.Kg, b.Status, b.Note, b.CreatedAt)
	return err
}

func (r Repo) GetBatch(ctx context.Context, id string) (domain.Batch, error) {
	var b domain.Batch
	err := r.DB.QueryRowContext(ctx, `SELECT id,coffee_id,coffee_name,kg,status,note,created_at FROM batches WHERE id=?`, id).
		Scan(&b.ID, &b.CoffeeID, &b.CoffeeName, &b.Kg, &b.Status, &b.Note, &b.CreatedAt)
	if err == sql.ErrNoRows {
		return b, ErrNotFound
	}
	return b, err
}

func (r Repo) ListBatches(ctx context.Context) ([]domain.Batch, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,coffee_id,coffee_name,kg,status,note,created_at FROM batches ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Batch
	for rows.Next() {
		var b domain.Batch
		if err := rows.Scan(&b.ID, &b.CoffeeID, &b.CoffeeName, &b.Kg, &b.Status, &b.Note, &b.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, b)
	}
	return res, rows.Err()
}

func (r Repo) UpdateBatchStatus(ctx context.Context, tx *sql.Tx, id, status string) error {
	_, err := tx.ExecContext(ctx, `UPDATE batches SET status=? WHERE id=?`, status, id)
	return err
}

func (r Repo) DeleteBatch(ctx context.Context, tx *sql.Tx, id string) (bool, error) {
	res, err := tx.ExecContext(ctx, `DELETE FROM batches WHERE id=?`, id)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// --- inventory ---

// EnsureStockRow creates the per-coffee stock row if missing.
func (r Repo) EnsureStockRow(ctx context.Context, tx *sql.Tx, coffeeID string) error {
	_, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO inventory(coffee_id,green_kg,roasted_kg) VALUES (?,0,0)`, coffeeID)
	return err
}

// AdjustStock applies a clamped delta to one stock column:
// new = MAX(0, old + delta).
func (r Repo) AdjustStock(ctx context.Context, tx *sql.Tx, kind, coffeeID string, deltaKg float64) error {
	if err := r.EnsureStockRow(ctx, tx, coffeeID); err != nil {
		return err
	}
	column := "green_kg"
	if kind == domain.StockRoasted {
		column = "roasted_kg"
	}
	_, err := tx.ExecContext(ctx, `UPDATE inventory SET `+column+` = MAX(0, `+column+` + ?) WHERE coffee_id=?`, deltaKg, coffeeID)
	return err
}

// RoastedKg reads the current roasted stock for a coffee inside tx.
func (r Repo) RoastedKg(ctx context.Context, tx *sql.Tx, coffeeID string) (float64, error) {
	var kg float64
	err := tx.QueryRowContext(ctx, `SELECT roasted_kg FROM inventory WHERE coffee_id=?`, coffeeID).Scan(&kg)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return kg, err
}

// TouchInventory bumps the singleton updated_at marker.
func (r Repo) TouchInventory(ctx context.Context, tx *sql.Tx, now string) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO inventory_state(id,updated_at) VALUES (1,?)
ON CONFLICT(id) DO UPDATE SET updated_at=excluded.updated_at`, now)
	return err
}

func (r Repo) GetInventory(ctx context.Context) (domain.InventoryState, error) {
	state := domain.InventoryState{
		GreenKg:   map[string]float64{},
		RoastedKg: map[string]float64{},
	}
	rows, err := r.DB.QueryContext(ctx, `SELECT coffee_id,green_kg,roasted_kg FROM inventory`)
	if err != nil {
		return state, err
	}
	defer rows.Close()
	for rows.Next() {
		var coffeeID string
		var green, roasted float64
		if err := rows.Scan(&coffeeID, &green, &roasted); err != nil {
			return state, err
		}
		state.GreenKg[coffeeID] = green
		state.RoastedKg[coffeeID] = roasted
	}
	if err := rows.Err(); err != nil {
		return state, err
	}
	var updatedAt sql.NullString
	err = r.DB.QueryRowContext(ctx, `SELECT updated_at FROM inventory_state WHERE id=1`).Scan(&updatedAt)
	if err != nil && err != sql.ErrNoRows {
		return state, err
	}
	if updatedAt.Valid {
		state.UpdatedAt = updatedAt.String
	}
	return state, nil
}

// --- demand ---

// SumOpenDemand aggregates item kg per coffee over orders whose status is
// in the given set, largest total first.
func (r Repo) SumOpenDemand(ctx context.Context, statuses []string) ([]domain.DemandItem, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	placeholders := "?"
	args := []any{statuses[0]}
	for _, s := range statuses[1:] {
		placeholders += ",?"
		args = append(args, s)
	}
	query := `SELECT i.coffee_id, MAX(i.coffee_name), SUM(i.kg)
FROM order_items i
JOIN orders o ON o.id = i.order_id
WHERE o.status IN (` + placeholders + `)
GROUP BY i.coffee_id
ORDER BY SUM(i.kg) DESC, i.coffee_id ASC`
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.DemandItem
	for rows.Next() {
		var d domain.DemandItem
		if err := rows.Scan(&d.CoffeeID, &d.CoffeeName, &d.Kg); err != nil {
			return nil, err
		}
		res = append(res, d)
	}
	return res, rows.Err()
}

// --- activity ---

// LatestActivity returns activity entries newest first.
func (r Repo) LatestActivity(ctx context.Context, limit int) ([]domain.ActivityEntry, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,at,action,meta_json FROM activity ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.ActivityEntry
	for rows.Next() {
		var e domain.ActivityEntry
		var meta string
		if err := rows.Scan(&e.ID, &e.At, &e.Action, &meta); err != nil {
			return nil, err
		}
		_ = json.Unmarshal([]byte(meta), &e.Meta)
		res = append(res, e)
	}
	return res, rows.Err()
}

// ActivityAfter returns entries with IDs greater than the cursor in
// ascending order.
func (r Repo) ActivityAfter(ctx context.Context, limit int, cursor int64) ([]domain.ActivityEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.DB.QueryContext(ctx, `SELECT id,at,action,meta_json FROM activity WHERE id>? ORDER BY id ASC LIMIT ?`, cursor, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.ActivityEntry
	for rows.Next() {
		var e domain.ActivityEntry
		var meta string
		if err := rows.Scan(&e.ID, &e.At, &e.Action, &meta); err != nil {
			return nil, err
		}
		_ = json.Unmarshal([]byte(meta), &e.Meta)
		res = append(res, e)
	}
	return res, rows.Err()
}

// LatestActivityID returns the most recent activity ID.
func (r Repo) LatestActivityID(ctx context.Context) (int64, error) {
	var id int64
	err := r.DB.QueryRowContext(ctx, `SELECT COALESCE(MAX(id),0) FROM activity`).Scan(&id)
	return id, err
}

func nullableStringPtr(v *string) any {
	if v == nil {
		return nil
	}
	if *v == "" {
		return nil
	}
	return *v
}
