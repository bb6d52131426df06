package domain

// Order status sequence, forward order. AUSGELIEFERT is terminal.
var OrderStatuses = []string{
	"ENTWURF",
	"EINGEGANGEN",
	"FREIGEGEBEN",
	"IN_PRODUKTION",
	"VERPACKT",
	"AUSGELIEFERT",
}

// Batch status sequence, forward order. AUSGELIEFERT is terminal.
var BatchStatuses = []string{
	"GEPLANT",
	"GEROESTET",
	"ABGEKUEHLT",
	"VERPACKT",
	"BEREIT",
	"AUSGELIEFERT",
}

// Stock kinds accepted by inventory changes.
const (
	StockGreen   = "GREEN"
	StockRoasted = "ROASTED"
)

type Coffee struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	DefaultPackKg float64 `json:"default_pack_kg"`
}

type Shop struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Order struct {
	ID           string      `json:"id"`
	Channel      string      `json:"channel" enum:"FILIALE,B2B"`
	ShopID       *string     `json:"shop_id,omitempty"`
	CustomerName *string     `json:"customer_name,omitempty"`
	DeliveryDate string      `json:"delivery_date" format:"date"`
	Status       string      `json:"status" enum:"ENTWURF,EINGEGANGEN,FREIGEGEBEN,IN_PRODUKTION,VERPACKT,AUSGELIEFERT"`
	Note         string      `json:"note,omitempty"`
	CreatedAt    string      `json:"created_at" format:"date-time"`
	Items        []OrderItem `json:"items"`
}

type OrderItem struct {
	CoffeeID string `json:"coffee_id"`
	// CoffeeName is snapshotted from the catalog at creation time and
	// never re-resolved afterwards.
	CoffeeName string  `json:"coffee_name"`
	Kg         float64 `json:"kg"`
}

type Batch struct {
	ID         string  `json:"id"`
	CoffeeID   string  `json:"coffee_id"`
	CoffeeName string  `json:"coffee_name"`
	Kg         float64 `json:"kg"`
	Status     string  `json:"status" enum:"GEPLANT,GEROESTET,ABGEKUEHLT,VERPACKT,BEREIT,AUSGELIEFERT"`
	Note       string  `json:"note,omitempty"`
	CreatedAt  string  `json:"created_at" format:"date-time"`
}

// InventoryState is the singleton stock snapshot. Quantities are
// non-negative by construction: every mutation clamps at zero.
type InventoryState struct {
	GreenKg   map[string]float64 `json:"green_kg"`
	RoastedKg map[string]float64 `json:"roasted_kg"`
	UpdatedAt string             `json:"updated_at" format:"date-time"`
}

type ActivityEntry struct {
	ID     int64          `json:"id"`
	At     string         `json:"at" format:"date-time"`
	Action string         `json:"action"`
	Meta   map[string]any `json:"meta"`
}

type APIKey struct {
	ID        string `json:"id"`
	ActorID   string `json:"actor_id"`
	Name      string `json:"name,omitempty"`
	KeyHash   string `json:"key_hash"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

// DemandItem is one row of the roast demand aggregation: total kg required
// for a coffee across all committed-but-undelivered orders.
type DemandItem struct {
	CoffeeID   string  `json:"coffee_id"`
	CoffeeName string  `json:"coffee_name"`
	Kg         float64 `json:"kg"`
}

// StatusIndex returns the position of status in seq, or -1.
func StatusIndex(seq []string, status string) int {
	for i, s := range seq {
		if s == status {
			return i
		}
	}
	return -1
}
