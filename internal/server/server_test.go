package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"roastline/internal/app"
	"roastline/internal/config"
	"roastline/internal/db"
	"roastline/internal/engine"
	"roastline/internal/migrate"
)

type testServer struct {
	URL    string
	client *http.Client
	close  func()
}

func (s *testServer) Client() *http.Client { return s.client }
func (s *testServer) Close()               { s.close() }

func newTestServer(t *testing.T) (*testServer, func()) {
	t.Helper()
	workspace := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	cfg := config.Default()
	if err := app.Seed(context.Background(), conn, cfg); err != nil {
		t.Fatalf("seed: %v", err)
	}
	e := engine.New(conn, cfg)
	handler, err := New(Config{Engine: e, BasePath: "/v0", Auth: AuthConfig{
		JWTSecret:              cfg.Server.Auth.JWTSecret,
		AllowLegacyActorHeader: cfg.Server.Auth.AllowLegacyActorHeader,
	}})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	testSrv := &testServer{
		URL:    "http://" + ln.Addr().String(),
		client: &http.Client{},
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
			conn.Close()
		},
	}
	return testSrv, func() { testSrv.Close() }
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res, data
}

func TestOrderLifecycleOverHTTP(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	createRes, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/orders", map[string]any{
		"channel": "FILIALE",
		"shop_id": "city",
		"items": []map[string]any{
			{"coffee_id": "bombora", "kg": 2},
		},
	}, nil)
	if createRes.StatusCode != http.StatusCreated {
		t.Fatalf("create order status %d: %s", createRes.StatusCode, string(data))
	}
	var created OrderResponse
	if err := json.Unmarshal(data, &created); err != nil {
		t.Fatalf("unmarshal order: %v", err)
	}
	if created.Status != "EINGEGANGEN" {
		t.Fatalf("expected EINGEGANGEN, got %s", created.Status)
	}

	approveRes, approveBody := doJSON(t, client, http.MethodPost, srv.URL+"/v0/orders/"+created.ID+"/approve", nil, nil)
	if approveRes.StatusCode != http.StatusOK {
		t.Fatalf("approve status %d: %s", approveRes.StatusCode, string(approveBody))
	}
	var approved OrderResponse
	_ = json.Unmarshal(approveBody, &approved)
	if approved.Status != "FREIGEGEBEN" {
		t.Fatalf("expected FREIGEGEBEN, got %s", approved.Status)
	}

	// approving a released order conflicts
	conflictRes, conflictBody := doJSON(t, client, http.MethodPost, srv.URL+"/v0/orders/"+created.ID+"/approve", nil, nil)
	if conflictRes.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d %s", conflictRes.StatusCode, string(conflictBody))
	}

	deliverRes, deliverBody := doJSON(t, client, http.MethodPost, srv.URL+"/v0/orders/"+created.ID+"/deliver", nil, nil)
	if deliverRes.StatusCode != http.StatusOK {
		t.Fatalf("deliver status %d: %s", deliverRes.StatusCode, string(deliverBody))
	}
	var delivered OrderResponse
	_ = json.Unmarshal(deliverBody, &delivered)
	if delivered.Status != "AUSGELIEFERT" {
		t.Fatalf("expected AUSGELIEFERT, got %s", delivered.Status)
	}

	invRes, invBody := doJSON(t, client, http.MethodGet, srv.URL+"/v0/inventory", nil, nil)
	if invRes.StatusCode != http.StatusOK {
		t.Fatalf("inventory status %d: %s", invRes.StatusCode, string(invBody))
	}
	var inv InventoryResponse
	_ = json.Unmarshal(invBody, &inv)
	if inv.RoastedKg["bombora"] != 16 {
		t.Fatalf("expected roasted 16, got %v", inv.RoastedKg["bombora"])
	}
}

func TestDeliverInsufficientStockOverHTTP(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	// ethiopia has 7 roasted kg seeded
	createRes, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/orders", map[string]any{
		"channel": "FILIALE",
		"shop_id": "berger",
		"items": []map[string]any{
			{"coffee_id": "ethiopia", "kg": 10},
		},
	}, nil)
	if createRes.StatusCode != http.StatusCreated {
		t.Fatalf("create order status %d: %s", createRes.StatusCode, string(data))
	}
	var created OrderResponse
	_ = json.Unmarshal(data, &created)

	res, body := doJSON(t, client, http.MethodPost, srv.URL+"/v0/orders/"+created.ID+"/deliver", nil, nil)
	if res.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d %s", res.StatusCode, string(body))
	}
	var envelope struct {
		Error apiErrorBody `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	if envelope.Error.Code != "insufficient_stock" {
		t.Fatalf("expected insufficient_stock code, got %s", envelope.Error.Code)
	}
}

func TestCreateOrderBadRequest(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	res, body := doJSON(t, client, http.MethodPost, srv.URL+"/v0/orders", map[string]any{
		"channel": "FILIALE",
		"shop_id": "city",
		"items":   []map[string]any{},
	}, nil)
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d %s", res.StatusCode, string(body))
	}
}

func TestBatchAndDemandOverHTTP(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/batches", map[string]any{
		"coffee_id": "fiver",
		"kg":        15,
	}, nil)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create batch status %d: %s", res.StatusCode, string(data))
	}
	var batch BatchResponse
	_ = json.Unmarshal(data, &batch)

	advRes, advBody := doJSON(t, client, http.MethodPost, srv.URL+"/v0/batches/"+batch.ID+"/advance", nil, nil)
	if advRes.StatusCode != http.StatusOK {
		t.Fatalf("advance status %d: %s", advRes.StatusCode, string(advBody))
	}
	var advanced BatchResponse
	_ = json.Unmarshal(advBody, &advanced)
	if advanced.Status != "GEROESTET" {
		t.Fatalf("expected GEROESTET, got %s", advanced.Status)
	}

	invRes, invBody := doJSON(t, client, http.MethodGet, srv.URL+"/v0/inventory", nil, nil)
	if invRes.StatusCode != http.StatusOK {
		t.Fatalf("inventory status %d", invRes.StatusCode)
	}
	var inv InventoryResponse
	_ = json.Unmarshal(invBody, &inv)
	if inv.GreenKg["fiver"] != 65 || inv.RoastedKg["fiver"] != 25 {
		t.Fatalf("unexpected stock after roast: %+v", inv)
	}

	// a released order shows up in demand
	orderRes, orderBody := doJSON(t, client, http.MethodPost, srv.URL+"/v0/orders", map[string]any{
		"channel": "FILIALE",
		"shop_id": "city",
		"status":  "FREIGEGEBEN",
		"items": []map[string]any{
			{"coffee_id": "fiver", "kg": 4},
		},
	}, nil)
	if orderRes.StatusCode != http.StatusCreated {
		t.Fatalf("create order status %d: %s", orderRes.StatusCode, string(orderBody))
	}
	demandRes, demandBody := doJSON(t, client, http.MethodGet, srv.URL+"/v0/demand", nil, nil)
	if demandRes.StatusCode != http.StatusOK {
		t.Fatalf("demand status %d", demandRes.StatusCode)
	}
	var demand []DemandResponse
	_ = json.Unmarshal(demandBody, &demand)
	if len(demand) != 1 || demand[0].CoffeeID != "fiver" || demand[0].Kg != 4 {
		t.Fatalf("unexpected demand %+v", demand)
	}
}

func TestActivityEndpoint(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/inventory/changes", map[string]any{
		"kind":      "GREEN",
		"coffee_id": "bombora",
		"delta_kg":  5,
	}, map[string]string{"X-Actor-Id": "warehouse"})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("change status %d: %s", res.StatusCode, string(data))
	}

	actRes, actBody := doJSON(t, client, http.MethodGet, srv.URL+"/v0/activity?limit=5", nil, nil)
	if actRes.StatusCode != http.StatusOK {
		t.Fatalf("activity status %d: %s", actRes.StatusCode, string(actBody))
	}
	var entries []ActivityResponse
	if err := json.Unmarshal(actBody, &entries); err != nil {
		t.Fatalf("unmarshal activity: %v", err)
	}
	if len(entries) == 0 {
		t.Fatalf("expected activity entries")
	}
	if entries[0].Action != "INVENTORY_CHANGE" {
		t.Fatalf("expected INVENTORY_CHANGE, got %s", entries[0].Action)
	}
	if entries[0].Meta["actor"] != "warehouse" {
		t.Fatalf("expected legacy header actor, got %+v", entries[0].Meta)
	}
}

func TestWebhookDispatcherStopsOnContextCancel(t *testing.T) {
	d := &webhookDispatcher{cursors: make(map[int]int64)}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	done := make(chan struct{})
	go func() {
		d.run(ctx)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("dispatcher kept running after cancel")
	}
}
