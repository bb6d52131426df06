package engine

import (
	"context"
	"database/sql"
	"log"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"roastline/internal/activity"
	"roastline/internal/catalog"
	"roastline/internal/config"
	"roastline/internal/domain"
	"roastline/internal/repo"
)

// Statuses that count towards roast demand: committed but not yet delivered.
var demandStatuses = []string{"FREIGEGEBEN", "IN_PRODUKTION", "VERPACKT"}

// DefaultActivityLimit caps the audit log read path.
const DefaultActivityLimit = 250

type Engine struct {
	DB       *sql.DB
	Repo     repo.Repo
	Catalog  catalog.Catalog
	Activity activity.Writer
	Config   *config.Config
	Now      func() time.Time
}

func New(db *sql.DB, cfg *config.Config) Engine {
	return Engine{
		DB:       db,
		Repo:     repo.Repo{DB: db},
		Catalog:  catalog.Catalog{DB: db},
		Activity: activity.Writer{DB: db},
		Config:   cfg,
		Now:      time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) nowString() string {
	return e.now().UTC().Format(time.RFC3339)
}

// audit appends an activity entry. Append failures are reporting-only:
// the primary mutation is never rolled back because of them.
func (e Engine) audit(ctx context.Context, tx *sql.Tx, action string, meta activity.Meta) {
	w := e.Activity
	if w.Now == nil {
		w.Now = e.Now
	}
	if err := w.Append(ctx, tx, action, meta); err != nil {
		log.Printf("activity: append %s failed: %v", action, err)
	}
}

// --- orders ---

// OrderItemInput is one candidate line of a new order.
type OrderItemInput struct {
	CoffeeID string
	Kg       float64
}

// OrderCreateOptions are parameters for creating an order.
type OrderCreateOptions struct {
	Channel      string
	ShopID       string
	CustomerName string
	DeliveryDate string
	Status       string
	Note         string
	Items        []OrderItemInput
	ActorID      string
}

func (e Engine) CreateOrder(ctx context.Context, opts OrderCreateOptions) (domain.Order, error) {
	channel := strings.TrimSpace(opts.Channel)
	if channel == "" {
		channel = "FILIALE"
	}
	if channel != "FILIALE" && channel != "B2B" {
		return domain.Order{}, ValidationError{Msg: "unknown channel " + channel}
	}

	// Invalid candidate lines are dropped silently; only an empty result
	// rejects the order.
	var items []domain.OrderItem
	for _, in := range opts.Items {
		coffeeID := strings.TrimSpace(in.CoffeeID)
		if coffeeID == "" || in.Kg <= 0 {
			continue
		}
		items = append(items, domain.OrderItem{
			CoffeeID:   coffeeID,
			CoffeeName: e.Catalog.CoffeeName(ctx, coffeeID),
			Kg:         in.Kg,
		})
	}
	if len(items) == 0 {
		return domain.Order{}, ValidationError{Msg: "order must contain at least 1 item"}
	}

	shopID := strings.TrimSpace(opts.ShopID)
	customerName := strings.TrimSpace(opts.CustomerName)
	if channel == "FILIALE" && shopID == "" {
		return domain.Order{}, ValidationError{Msg: "shop is required for FILIALE orders"}
	}
	if channel == "B2B" && customerName == "" {
		return domain.Order{}, ValidationError{Msg: "customer name is required for B2B orders"}
	}

	status := opts.Status
	if status == "" {
		status = "EINGEGANGEN"
	}
	if domain.StatusIndex(domain.OrderStatuses, status) < 0 {
		return domain.Order{}, ValidationError{Msg: "unknown order status " + status}
	}

	deliveryDate := e.normalizeDeliveryDate(opts.DeliveryDate)

	o := domain.Order{
		ID:           uuid.New().String(),
		Channel:      channel,
		DeliveryDate: deliveryDate,
		Status:       status,
		Note:         strings.TrimSpace(opts.Note),
		CreatedAt:    e.nowString(),
		Items:        items,
	}
	if channel == "FILIALE" {
		o.ShopID = &shopID
	} else {
		o.CustomerName = &customerName
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Order{}, err
	}
	defer tx.Rollback()

	if err := e.Repo.InsertOrder(ctx, tx, o); err != nil {
		return domain.Order{}, err
	}
	for _, item := range o.Items {
		if err := e.Repo.InsertOrderItem(ctx, tx, uuid.New().String(), o.ID, item); err != nil {
			return domain.Order{}, err
		}
	}
	e.audit(ctx, tx, "ORDER_CREATE", activity.Meta{
		"order_id":   o.ID,
		"channel":    o.Channel,
		"item_count": len(o.Items),
		"actor":      actorOrDefault(opts.ActorID),
	})
	if err := tx.Commit(); err != nil {
		return domain.Order{}, err
	}
	return o, nil
}

// normalizeDeliveryDate returns a YYYY-MM-DD date. Besides ISO it accepts
// the day-first forms common on German paperwork (20.02.2026, 20/02/2026,
// 20-02-2026). Empty or unreadable input falls back to today.
func (e Engine) normalizeDeliveryDate(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw != "" {
		for _, layout := range []string{"2006-01-02", "2.1.2006", "2/1/2006", "2-1-2006"} {
			if t, err := time.Parse(layout, raw); err == nil {
				return t.Format("2006-01-02")
			}
		}
	}
	return e.now().UTC().Format("2006-01-02")
}

// AdvanceOrder moves an order one step forward in its status sequence.
func (e Engine) AdvanceOrder(ctx context.Context, id, actorID string) (domain.Order, error) {
	o, err := e.Repo.GetOrder(ctx, id)
	if err != nil {
		return o, err
	}
	idx := domain.StatusIndex(domain.OrderStatuses, o.Status)
	if idx < 0 {
		return o, InvalidStateError{Msg: "order has unknown status " + o.Status}
	}
	if idx >= len(domain.OrderStatuses)-1 {
		return o, InvalidStateError{Msg: "order is already delivered"}
	}
	next := domain.OrderStatuses[idx+1]
	// Production only accepts released orders. The naive next step is
	// rejected when the current status somehow is not FREIGEGEBEN.
	if next == "IN_PRODUKTION" && o.Status != "FREIGEGEBEN" {
		return o, InvalidStateError{Msg: "only released orders can enter production"}
	}
	return e.setOrderStatus(ctx, o, next, actorID)
}

// ApproveOrder releases an order directly from its early states, skipping
// intermediate advance calls.
func (e Engine) ApproveOrder(ctx context.Context, id, actorID string) (domain.Order, error) {
	o, err := e.Repo.GetOrder(ctx, id)
	if err != nil {
		return o, err
	}
	if o.Status == "AUSGELIEFERT" {
		return o, InvalidStateError{Msg: "order is already delivered"}
	}
	if o.Status != "EINGEGANGEN" && o.Status != "ENTWURF" {
		return o, InvalidStateError{Msg: "approval is only allowed from ENTWURF or EINGEGANGEN"}
	}
	return e.setOrderStatus(ctx, o, "FREIGEGEBEN", actorID)
}

func (e Engine) setOrderStatus(ctx context.Context, o domain.Order, next, actorID string) (domain.Order, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return o, err
	}
	defer tx.Rollback()
	if err := e.Repo.UpdateOrderStatus(ctx, tx, o.ID, next); err != nil {
		return o, err
	}
	e.audit(ctx, tx, "ORDER_STATUS", activity.Meta{
		"order_id": o.ID,
		"from":     o.Status,
		"to":       next,
		"actor":    actorOrDefault(actorID),
	})
	if err := tx.Commit(); err != nil {
		return o, err
	}
	o.Status = next
	return o, nil
}

// DeliverOrder consumes roasted stock for every line item and marks the
// order delivered. The availability check covers all items before any
// stock moves: either the whole order ships or nothing changes.
func (e Engine) DeliverOrder(ctx context.Context, id, actorID string) (domain.Order, error) {
	o, err := e.Repo.GetOrder(ctx, id)
	if err != nil {
		return o, err
	}
	if o.Status == "AUSGELIEFERT" {
		return o, InvalidStateError{Msg: "order is already delivered"}
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return o, err
	}
	defer tx.Rollback()

	var shortfalls []Shortfall
	for _, item := range o.Items {
		available, err := e.Repo.RoastedKg(ctx, tx, item.CoffeeID)
		if err != nil {
			return o, err
		}
		if available < item.Kg {
			shortfalls = append(shortfalls, Shortfall{
				CoffeeID:    item.CoffeeID,
				CoffeeName:  item.CoffeeName,
				RequiredKg:  item.Kg,
				AvailableKg: available,
			})
		}
	}
	if len(shortfalls) > 0 {
		return o, InsufficientStockError{Shortfalls: shortfalls}
	}

	for _, item := range o.Items {
		if err := e.moveStock(ctx, tx, domain.StockRoasted, "DELIVERED", item.CoffeeID, item.Kg, activity.Meta{
			"order_id": o.ID,
			"actor":    actorOrDefault(actorID),
		}); err != nil {
			return o, err
		}
	}
	if err := e.Repo.UpdateOrderStatus(ctx, tx, o.ID, "AUSGELIEFERT"); err != nil {
		return o, err
	}
	e.audit(ctx, tx, "ORDER_DELIVER", activity.Meta{
		"order_id": o.ID,
		"actor":    actorOrDefault(actorID),
	})
	if err := tx.Commit(); err != nil {
		return o, err
	}
	o.Status = "AUSGELIEFERT"
	return o, nil
}

// DeleteOrder hard-removes an order and its items. Returns false without
// logging anything when the id does not exist.
func (e Engine) DeleteOrder(ctx context.Context, id, actorID string) (bool, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()
	removed, err := e.Repo.DeleteOrder(ctx, tx, id)
	if err != nil {
		return false, err
	}
	if removed {
		e.audit(ctx, tx, "ORDER_DELETE", activity.Meta{
			"order_id": id,
			"actor":    actorOrDefault(actorID),
		})
	}
	if err := tx.Commit(); err != nil {
		return false, err
	}
	return removed, nil
}

func (e Engine) GetOrder(ctx context.Context, id string) (domain.Order, error) {
	return e.Repo.GetOrder(ctx, id)
}

func (e Engine) ListOrders(ctx context.Context) ([]domain.Order, error) {
	return e.Repo.ListOrders(ctx)
}

// --- batches ---

// BatchCreateOptions are parameters for planning a roasting batch.
type BatchCreateOptions struct {
	CoffeeID string
	Kg       float64
	Note     string
	ActorID  string
}

func (e Engine) CreateBatch(ctx context.Context, opts BatchCreateOptions) (domain.Batch, error) {
	coffeeID := strings.TrimSpace(opts.CoffeeID)
	if coffeeID == "" {
		return domain.Batch{}, ValidationError{Msg: "coffee is required"}
	}
	if opts.Kg <= 0 {
		return domain.Batch{}, ValidationError{Msg: "kg must be positive"}
	}
	b := domain.Batch{
		ID:         uuid.New().String(),
		CoffeeID:   coffeeID,
		CoffeeName: e.Catalog.CoffeeName(ctx, coffeeID),
		Kg:         opts.Kg,
		Status:     "GEPLANT",
		Note:       strings.TrimSpace(opts.Note),
		CreatedAt:  e.nowString(),
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Batch{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertBatch(ctx, tx, b); err != nil {
		return domain.Batch{}, err
	}
	e.audit(ctx, tx, "BATCH_CREATE", activity.Meta{
		"batch_id":  b.ID,
		"coffee_id": b.CoffeeID,
		"kg":        b.Kg,
		"actor":     actorOrDefault(opts.ActorID),
	})
	if err := tx.Commit(); err != nil {
		return domain.Batch{}, err
	}
	return b, nil
}

// AdvanceBatch moves a batch one step forward. A batch that is already
// delivered is returned unchanged; unlike orders this is not an error.
// Entering GEROESTET moves the batch kg from green to roasted stock;
// entering AUSGELIEFERT moves it out of roasted stock.
func (e Engine) AdvanceBatch(ctx context.Context, id, actorID string) (domain.Batch, error) {
	b, err := e.Repo.GetBatch(ctx, id)
	if err != nil {
		return b, err
	}
	idx := domain.StatusIndex(domain.BatchStatuses, b.Status)
	if idx < 0 {
		return b, InvalidStateError{Msg: "batch has unknown status " + b.Status}
	}
	if idx >= len(domain.BatchStatuses)-1 {
		return b, nil
	}
	next := domain.BatchStatuses[idx+1]

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return b, err
	}
	defer tx.Rollback()

	if err := e.Repo.UpdateBatchStatus(ctx, tx, b.ID, next); err != nil {
		return b, err
	}
	e.audit(ctx, tx, "BATCH_STATUS", activity.Meta{
		"batch_id": b.ID,
		"from":     b.Status,
		"to":       next,
		"actor":    actorOrDefault(actorID),
	})
	switch next {
	case "GEROESTET":
		if err := e.moveStock(ctx, tx, domain.StockGreen, domain.StockRoasted, b.CoffeeID, b.Kg, activity.Meta{
			"batch_id": b.ID,
			"actor":    actorOrDefault(actorID),
		}); err != nil {
			return b, err
		}
	case "AUSGELIEFERT":
		if err := e.moveStock(ctx, tx, domain.StockRoasted, "BATCH_DELIVERED", b.CoffeeID, b.Kg, activity.Meta{
			"batch_id": b.ID,
			"actor":    actorOrDefault(actorID),
		}); err != nil {
			return b, err
		}
	}
	if err := tx.Commit(); err != nil {
		return b, err
	}
	b.Status = next
	return b, nil
}

func (e Engine) DeleteBatch(ctx context.Context, id, actorID string) (bool, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()
	removed, err := e.Repo.DeleteBatch(ctx, tx, id)
	if err != nil {
		return false, err
	}
	if removed {
		e.audit(ctx, tx, "BATCH_DELETE", activity.Meta{
			"batch_id": id,
			"actor":    actorOrDefault(actorID),
		})
	}
	if err := tx.Commit(); err != nil {
		return false, err
	}
	return removed, nil
}

func (e Engine) ListBatches(ctx context.Context) ([]domain.Batch, error) {
	return e.Repo.ListBatches(ctx)
}

// --- inventory ---

// ApplyInventoryChange adjusts one stock column by deltaKg, clamped at
// zero. A withdrawal larger than the balance floors silently; callers that
// need a hard guarantee must pre-check availability.
func (e Engine) ApplyInventoryChange(ctx context.Context, kind, coffeeID string, deltaKg float64, note, actorID string) error {
	kind = strings.TrimSpace(kind)
	if kind != domain.StockGreen && kind != domain.StockRoasted {
		return ValidationError{Msg: "unknown stock kind " + kind}
	}
	coffeeID = strings.TrimSpace(coffeeID)
	if coffeeID == "" {
		return ValidationError{Msg: "coffee is required"}
	}
	if deltaKg == 0 || math.IsNaN(deltaKg) || math.IsInf(deltaKg, 0) {
		return ValidationError{Msg: "delta kg must be a nonzero amount"}
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.Repo.AdjustStock(ctx, tx, kind, coffeeID, deltaKg); err != nil {
		return err
	}
	if err := e.Repo.TouchInventory(ctx, tx, e.nowString()); err != nil {
		return err
	}
	e.audit(ctx, tx, "INVENTORY_CHANGE", activity.Meta{
		"kind":      kind,
		"coffee_id": coffeeID,
		"delta_kg":  deltaKg,
		"note":      note,
		"actor":     actorOrDefault(actorID),
	})
	return tx.Commit()
}

func (e Engine) Inventory(ctx context.Context) (domain.InventoryState, error) {
	return e.Repo.GetInventory(ctx)
}

// moveStock shifts kg between ledger columns as two clamped adjustments.
// Virtual destinations like DELIVERED only decrement the source.
func (e Engine) moveStock(ctx context.Context, tx *sql.Tx, from, to, coffeeID string, kg float64, meta activity.Meta) error {
	if from == domain.StockGreen || from == domain.StockRoasted {
		if err := e.Repo.AdjustStock(ctx, tx, from, coffeeID, -kg); err != nil {
			return err
		}
	}
	if to == domain.StockGreen || to == domain.StockRoasted {
		if err := e.Repo.AdjustStock(ctx, tx, to, coffeeID, kg); err != nil {
			return err
		}
	}
	if err := e.Repo.TouchInventory(ctx, tx, e.nowString()); err != nil {
		return err
	}
	moveMeta := activity.Meta{
		"from":      from,
		"to":        to,
		"coffee_id": coffeeID,
		"kg":        kg,
	}
	for k, v := range meta {
		moveMeta[k] = v
	}
	e.audit(ctx, tx, "INVENTORY_MOVE", moveMeta)
	return nil
}

// --- demand ---

// RoastDemand sums required kg per coffee over committed-but-undelivered
// orders, largest demand first. Pure read, no side effects.
func (e Engine) RoastDemand(ctx context.Context) ([]domain.DemandItem, error) {
	items, err := e.Repo.SumOpenDemand(ctx, demandStatuses)
	if err != nil {
		return nil, err
	}
	for i := range items {
		if coffee, err := e.Catalog.FindCoffee(ctx, items[i].CoffeeID); err == nil {
			items[i].CoffeeName = coffee.Name
		}
	}
	return items, nil
}

// --- activity ---

// ActivityLog returns the newest entries, capped at DefaultActivityLimit
// unless a smaller positive limit is given.
func (e Engine) ActivityLog(ctx context.Context, limit int) ([]domain.ActivityEntry, error) {
	if limit <= 0 || limit > DefaultActivityLimit {
		limit = DefaultActivityLimit
	}
	return e.Repo.LatestActivity(ctx, limit)
}

func actorOrDefault(actorID string) string {
	if strings.TrimSpace(actorID) == "" {
		return "local-user"
	}
	return actorID
}
