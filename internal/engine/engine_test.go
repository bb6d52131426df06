package engine_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"roastline/internal/app"
	"roastline/internal/config"
	"roastline/internal/db"
	"roastline/internal/engine"
	"roastline/internal/migrate"
	"roastline/internal/repo"
)

type testEnv struct {
	Engine engine.Engine
	Ctx    context.Context
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	dir := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: dir})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	ctx := context.Background()
	cfg := config.Default()
	if err := app.Seed(ctx, conn, cfg); err != nil {
		t.Fatalf("seed: %v", err)
	}
	eng := engine.New(conn, cfg)
	eng.Now = func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) }
	return testEnv{Engine: eng, Ctx: ctx}
}

func shopOrder(t *testing.T, env testEnv, items ...engine.OrderItemInput) string {
	t.Helper()
	o, err := env.Engine.CreateOrder(env.Ctx, engine.OrderCreateOptions{
		Channel: "FILIALE",
		ShopID:  "city",
		Items:   items,
		ActorID: "tester",
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	return o.ID
}

func TestOrderStatusTransitions(t *testing.T) {
	env := newTestEnv(t)
	id := shopOrder(t, env, engine.OrderItemInput{CoffeeID: "bombora", Kg: 2})

	want := []string{"FREIGEGEBEN", "IN_PRODUKTION", "VERPACKT", "AUSGELIEFERT"}
	for _, status := range want {
		o, err := env.Engine.AdvanceOrder(env.Ctx, id, "tester")
		if err != nil {
			t.Fatalf("advance to %s: %v", status, err)
		}
		if o.Status != status {
			t.Fatalf("expected %s, got %s", status, o.Status)
		}
	}

	// terminal: further advance must fail
	_, err := env.Engine.AdvanceOrder(env.Ctx, id, "tester")
	var se engine.InvalidStateError
	if !errors.As(err, &se) {
		t.Fatalf("expected InvalidStateError, got %v", err)
	}
}

func TestApproveOrder(t *testing.T) {
	env := newTestEnv(t)
	id := shopOrder(t, env, engine.OrderItemInput{CoffeeID: "bombora", Kg: 1})

	o, err := env.Engine.ApproveOrder(env.Ctx, id, "tester")
	if err != nil || o.Status != "FREIGEGEBEN" {
		t.Fatalf("approve from EINGEGANGEN: %v (status %s)", err, o.Status)
	}

	// approving twice is not allowed: FREIGEGEBEN is past the approvable states
	_, err = env.Engine.ApproveOrder(env.Ctx, id, "tester")
	var se engine.InvalidStateError
	if !errors.As(err, &se) {
		t.Fatalf("expected InvalidStateError, got %v", err)
	}

	// ENTWURF is approvable
	draft, err := env.Engine.CreateOrder(env.Ctx, engine.OrderCreateOptions{
		Channel: "FILIALE",
		ShopID:  "city",
		Status:  "ENTWURF",
		Items:   []engine.OrderItemInput{{CoffeeID: "fiver", Kg: 1}},
		ActorID: "tester",
	})
	if err != nil {
		t.Fatalf("create draft: %v", err)
	}
	o, err = env.Engine.ApproveOrder(env.Ctx, draft.ID, "tester")
	if err != nil || o.Status != "FREIGEGEBEN" {
		t.Fatalf("approve from ENTWURF: %v (status %s)", err, o.Status)
	}
}

func TestCreateOrderValidation(t *testing.T) {
	env := newTestEnv(t)

	// invalid lines are dropped silently
	o, err := env.Engine.CreateOrder(env.Ctx, engine.OrderCreateOptions{
		Channel: "FILIALE",
		ShopID:  "city",
		Items: []engine.OrderItemInput{
			{CoffeeID: "bombora", Kg: 2},
			{CoffeeID: "", Kg: 5},
			{CoffeeID: "fiver", Kg: 0},
			{CoffeeID: "ethiopia", Kg: -1},
		},
		ActorID: "tester",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(o.Items) != 1 || o.Items[0].CoffeeID != "bombora" {
		t.Fatalf("expected 1 surviving item, got %+v", o.Items)
	}
	if o.Items[0].CoffeeName != "Bombora" {
		t.Fatalf("expected snapshotted name Bombora, got %s", o.Items[0].CoffeeName)
	}

	cases := []engine.OrderCreateOptions{
		// all lines invalid
		{Channel: "FILIALE", ShopID: "city", Items: []engine.OrderItemInput{{CoffeeID: "bombora", Kg: 0}}},
		// FILIALE without shop
		{Channel: "FILIALE", Items: []engine.OrderItemInput{{CoffeeID: "bombora", Kg: 1}}},
		// B2B without customer
		{Channel: "B2B", Items: []engine.OrderItemInput{{CoffeeID: "bombora", Kg: 1}}},
		// unknown channel
		{Channel: "ONLINE", ShopID: "city", Items: []engine.OrderItemInput{{CoffeeID: "bombora", Kg: 1}}},
	}
	for i, opts := range cases {
		_, err := env.Engine.CreateOrder(env.Ctx, opts)
		var ve engine.ValidationError
		if !errors.As(err, &ve) {
			t.Fatalf("case %d: expected ValidationError, got %v", i, err)
		}
	}
}

func TestDeliverOrderAllOrNothing(t *testing.T) {
	env := newTestEnv(t)
	// opening roasted: bombora 18, ethiopia 7
	id := shopOrder(t, env,
		engine.OrderItemInput{CoffeeID: "bombora", Kg: 5},
		engine.OrderItemInput{CoffeeID: "ethiopia", Kg: 10},
	)

	_, err := env.Engine.DeliverOrder(env.Ctx, id, "tester")
	var ie engine.InsufficientStockError
	if !errors.As(err, &ie) {
		t.Fatalf("expected InsufficientStockError, got %v", err)
	}
	if len(ie.Shortfalls) != 1 {
		t.Fatalf("expected 1 shortfall, got %+v", ie.Shortfalls)
	}
	s := ie.Shortfalls[0]
	if s.CoffeeID != "ethiopia" || s.RequiredKg != 10 || s.AvailableKg != 7 {
		t.Fatalf("unexpected shortfall %+v", s)
	}

	// nothing was consumed
	state, err := env.Engine.Inventory(env.Ctx)
	if err != nil {
		t.Fatal(err)
	}
	if state.RoastedKg["bombora"] != 18 || state.RoastedKg["ethiopia"] != 7 {
		t.Fatalf("stock mutated on failed delivery: %+v", state.RoastedKg)
	}
	o, err := env.Engine.GetOrder(env.Ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if o.Status == "AUSGELIEFERT" {
		t.Fatalf("order must not be delivered")
	}
}

func TestDeliverOrderConsumesStock(t *testing.T) {
	env := newTestEnv(t)
	id := shopOrder(t, env,
		engine.OrderItemInput{CoffeeID: "bombora", Kg: 5},
		engine.OrderItemInput{CoffeeID: "ethiopia", Kg: 5},
	)
	o, err := env.Engine.DeliverOrder(env.Ctx, id, "tester")
	if err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if o.Status != "AUSGELIEFERT" {
		t.Fatalf("expected AUSGELIEFERT, got %s", o.Status)
	}
	state, err := env.Engine.Inventory(env.Ctx)
	if err != nil {
		t.Fatal(err)
	}
	if state.RoastedKg["bombora"] != 13 || state.RoastedKg["ethiopia"] != 2 {
		t.Fatalf("unexpected roasted stock %+v", state.RoastedKg)
	}

	// delivering twice is rejected
	_, err = env.Engine.DeliverOrder(env.Ctx, id, "tester")
	var se engine.InvalidStateError
	if !errors.As(err, &se) {
		t.Fatalf("expected InvalidStateError, got %v", err)
	}
}

func TestInventoryChangeClampsAtZero(t *testing.T) {
	env := newTestEnv(t)
	if err := env.Engine.ApplyInventoryChange(env.Ctx, "ROASTED", "bombora", -1000, "", "tester"); err != nil {
		t.Fatalf("change: %v", err)
	}
	state, err := env.Engine.Inventory(env.Ctx)
	if err != nil {
		t.Fatal(err)
	}
	if state.RoastedKg["bombora"] != 0 {
		t.Fatalf("expected clamp at 0, got %v", state.RoastedKg["bombora"])
	}
	if state.GreenKg["bombora"] != 120 {
		t.Fatalf("green stock must be untouched, got %v", state.GreenKg["bombora"])
	}

	// invalid inputs
	var ve engine.ValidationError
	if err := env.Engine.ApplyInventoryChange(env.Ctx, "ROASTED", "bombora", 0, "", "tester"); !errors.As(err, &ve) {
		t.Fatalf("zero delta: expected ValidationError, got %v", err)
	}
	if err := env.Engine.ApplyInventoryChange(env.Ctx, "BEANS", "bombora", 1, "", "tester"); !errors.As(err, &ve) {
		t.Fatalf("unknown kind: expected ValidationError, got %v", err)
	}
	if err := env.Engine.ApplyInventoryChange(env.Ctx, "GREEN", "", 1, "", "tester"); !errors.As(err, &ve) {
		t.Fatalf("empty coffee: expected ValidationError, got %v", err)
	}
}

func TestBatchLifecycleMovesStock(t *testing.T) {
	env := newTestEnv(t)
	b, err := env.Engine.CreateBatch(env.Ctx, engine.BatchCreateOptions{CoffeeID: "bombora", Kg: 20, ActorID: "tester"})
	if err != nil {
		t.Fatalf("create batch: %v", err)
	}
	if b.Status != "GEPLANT" {
		t.Fatalf("expected GEPLANT, got %s", b.Status)
	}

	// GEPLANT -> GEROESTET moves green to roasted
	b, err = env.Engine.AdvanceBatch(env.Ctx, b.ID, "tester")
	if err != nil || b.Status != "GEROESTET" {
		t.Fatalf("advance to GEROESTET: %v (status %s)", err, b.Status)
	}
	state, _ := env.Engine.Inventory(env.Ctx)
	if state.GreenKg["bombora"] != 100 || state.RoastedKg["bombora"] != 38 {
		t.Fatalf("unexpected stock after roast: green %v roasted %v", state.GreenKg["bombora"], state.RoastedKg["bombora"])
	}

	// intermediate steps do not touch stock
	for _, status := range []string{"ABGEKUEHLT", "VERPACKT", "BEREIT"} {
		b, err = env.Engine.AdvanceBatch(env.Ctx, b.ID, "tester")
		if err != nil || b.Status != status {
			t.Fatalf("advance to %s: %v (status %s)", status, err, b.Status)
		}
	}
	state, _ = env.Engine.Inventory(env.Ctx)
	if state.RoastedKg["bombora"] != 38 {
		t.Fatalf("stock must be unchanged, got %v", state.RoastedKg["bombora"])
	}

	// BEREIT -> AUSGELIEFERT consumes roasted stock
	b, err = env.Engine.AdvanceBatch(env.Ctx, b.ID, "tester")
	if err != nil || b.Status != "AUSGELIEFERT" {
		t.Fatalf("advance to AUSGELIEFERT: %v (status %s)", err, b.Status)
	}
	state, _ = env.Engine.Inventory(env.Ctx)
	if state.RoastedKg["bombora"] != 18 {
		t.Fatalf("expected roasted 18 after batch delivery, got %v", state.RoastedKg["bombora"])
	}

	// terminal advance is a no-op, not an error
	b, err = env.Engine.AdvanceBatch(env.Ctx, b.ID, "tester")
	if err != nil {
		t.Fatalf("terminal advance must not error: %v", err)
	}
	if b.Status != "AUSGELIEFERT" {
		t.Fatalf("status changed on terminal advance: %s", b.Status)
	}
	state, _ = env.Engine.Inventory(env.Ctx)
	if state.RoastedKg["bombora"] != 18 {
		t.Fatalf("stock changed on terminal advance: %v", state.RoastedKg["bombora"])
	}
}

func TestBatchValidation(t *testing.T) {
	env := newTestEnv(t)
	var ve engine.ValidationError
	if _, err := env.Engine.CreateBatch(env.Ctx, engine.BatchCreateOptions{CoffeeID: "", Kg: 5}); !errors.As(err, &ve) {
		t.Fatalf("empty coffee: expected ValidationError, got %v", err)
	}
	if _, err := env.Engine.CreateBatch(env.Ctx, engine.BatchCreateOptions{CoffeeID: "bombora", Kg: 0}); !errors.As(err, &ve) {
		t.Fatalf("zero kg: expected ValidationError, got %v", err)
	}
}

func TestRoastDemandAggregation(t *testing.T) {
	env := newTestEnv(t)

	// committed orders count
	if _, err := env.Engine.CreateOrder(env.Ctx, engine.OrderCreateOptions{
		Channel: "FILIALE", ShopID: "city", Status: "FREIGEGEBEN",
		Items:   []engine.OrderItemInput{{CoffeeID: "bombora", Kg: 4}, {CoffeeID: "fiver", Kg: 2}},
		ActorID: "tester",
	}); err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.CreateOrder(env.Ctx, engine.OrderCreateOptions{
		Channel: "B2B", CustomerName: "Kontor Nord", Status: "IN_PRODUKTION",
		Items:   []engine.OrderItemInput{{CoffeeID: "bombora", Kg: 3}},
		ActorID: "tester",
	}); err != nil {
		t.Fatal(err)
	}
	// uncommitted orders do not count
	if _, err := env.Engine.CreateOrder(env.Ctx, engine.OrderCreateOptions{
		Channel: "FILIALE", ShopID: "berger",
		Items:   []engine.OrderItemInput{{CoffeeID: "ethiopia", Kg: 9}},
		ActorID: "tester",
	}); err != nil {
		t.Fatal(err)
	}

	items, err := env.Engine.RoastDemand(env.Ctx)
	if err != nil {
		t.Fatalf("demand: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 demand rows, got %+v", items)
	}
	if items[0].CoffeeID != "bombora" || items[0].Kg != 7 {
		t.Fatalf("expected bombora 7 first, got %+v", items[0])
	}
	if items[1].CoffeeID != "fiver" || items[1].Kg != 2 {
		t.Fatalf("expected fiver 2 second, got %+v", items[1])
	}
	if items[0].CoffeeName != "Bombora" {
		t.Fatalf("expected resolved name, got %s", items[0].CoffeeName)
	}
}

func TestDeleteOrder(t *testing.T) {
	env := newTestEnv(t)
	id := shopOrder(t, env, engine.OrderItemInput{CoffeeID: "bombora", Kg: 1})

	removed, err := env.Engine.DeleteOrder(env.Ctx, id, "tester")
	if err != nil || !removed {
		t.Fatalf("delete: removed=%v err=%v", removed, err)
	}
	if _, err := env.Engine.GetOrder(env.Ctx, id); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	// deleting a missing order reports false without logging
	removed, err = env.Engine.DeleteOrder(env.Ctx, "nope", "tester")
	if err != nil || removed {
		t.Fatalf("expected removed=false, got removed=%v err=%v", removed, err)
	}
	entries, err := env.Engine.ActivityLog(env.Ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	deletes := 0
	for _, entry := range entries {
		if entry.Action == "ORDER_DELETE" {
			deletes++
		}
	}
	if deletes != 1 {
		t.Fatalf("expected exactly 1 ORDER_DELETE entry, got %d", deletes)
	}
}

func TestActivityLogNewestFirst(t *testing.T) {
	env := newTestEnv(t)
	id := shopOrder(t, env, engine.OrderItemInput{CoffeeID: "bombora", Kg: 1})
	if _, err := env.Engine.ApproveOrder(env.Ctx, id, "tester"); err != nil {
		t.Fatal(err)
	}
	entries, err := env.Engine.ActivityLog(env.Ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) < 2 {
		t.Fatalf("expected at least 2 entries, got %d", len(entries))
	}
	if entries[0].Action != "ORDER_STATUS" {
		t.Fatalf("expected newest entry ORDER_STATUS, got %s", entries[0].Action)
	}
	if entries[0].ID <= entries[1].ID {
		t.Fatalf("expected descending ids, got %d then %d", entries[0].ID, entries[1].ID)
	}
	if entries[0].Meta["to"] != "FREIGEGEBEN" {
		t.Fatalf("expected meta to=FREIGEGEBEN, got %+v", entries[0].Meta)
	}
	if entries[0].Meta["actor"] != "tester" {
		t.Fatalf("expected actor in meta, got %+v", entries[0].Meta)
	}
}

func TestEndToEndShopOrder(t *testing.T) {
	env := newTestEnv(t)

	// roast a batch so delivery has stock
	b, err := env.Engine.CreateBatch(env.Ctx, engine.BatchCreateOptions{CoffeeID: "brazil", Kg: 10, ActorID: "roaster"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.AdvanceBatch(env.Ctx, b.ID, "roaster"); err != nil {
		t.Fatal(err)
	}

	id := shopOrder(t, env, engine.OrderItemInput{CoffeeID: "brazil", Kg: 20})
	if _, err := env.Engine.ApproveOrder(env.Ctx, id, "tester"); err != nil {
		t.Fatal(err)
	}
	o, err := env.Engine.DeliverOrder(env.Ctx, id, "tester")
	if err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if o.Status != "AUSGELIEFERT" {
		t.Fatalf("expected AUSGELIEFERT, got %s", o.Status)
	}
	state, _ := env.Engine.Inventory(env.Ctx)
	// opening roasted 12 + batch 10 - order 20 = 2
	if state.RoastedKg["brazil"] != 2 {
		t.Fatalf("expected roasted 2, got %v", state.RoastedKg["brazil"])
	}
	if state.GreenKg["brazil"] != 80 {
		t.Fatalf("expected green 80, got %v", state.GreenKg["brazil"])
	}
}

func TestAdvanceOrderRejectsCorruptStatus(t *testing.T) {
	env := newTestEnv(t)
	id := shopOrder(t, env, engine.OrderItemInput{CoffeeID: "bombora", Kg: 2})

	// A status outside the sequence can only appear through out-of-band
	// edits; advancing must refuse and leave the row alone.
	if _, err := env.Engine.DB.Exec(`UPDATE orders SET status='KAPUTT' WHERE id=?`, id); err != nil {
		t.Fatalf("rewrite status: %v", err)
	}
	_, err := env.Engine.AdvanceOrder(env.Ctx, id, "tester")
	var se engine.InvalidStateError
	if !errors.As(err, &se) {
		t.Fatalf("expected InvalidStateError, got %v", err)
	}
	o, err := env.Engine.GetOrder(env.Ctx, id)
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if o.Status != "KAPUTT" {
		t.Fatalf("status should be untouched, got %s", o.Status)
	}
}

func TestCreateOrderNormalizesDeliveryDate(t *testing.T) {
	env := newTestEnv(t)
	cases := map[string]string{
		"2026-02-20": "2026-02-20",
		"20.02.2026": "2026-02-20",
		"20/02/2026": "2026-02-20",
		"20-02-2026": "2026-02-20",
		"5.3.2026":   "2026-03-05",
		"":           "2024-01-01",
		"irgendwann": "2024-01-01",
	}
	for input, want := range cases {
		o, err := env.Engine.CreateOrder(env.Ctx, engine.OrderCreateOptions{
			Channel:      "FILIALE",
			ShopID:       "city",
			DeliveryDate: input,
			Items:        []engine.OrderItemInput{{CoffeeID: "bombora", Kg: 1}},
			ActorID:      "tester",
		})
		if err != nil {
			t.Fatalf("create order (%q): %v", input, err)
		}
		if o.DeliveryDate != want {
			t.Fatalf("delivery date for %q: expected %s, got %s", input, want, o.DeliveryDate)
		}
	}
}
