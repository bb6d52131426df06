package server

import (
	"roastline/internal/domain"
)

// Request payloads

type OrderItemRequest struct {
	CoffeeID string  `json:"coffee_id"`
	Kg       float64 `json:"kg"`
}

type CreateOrderRequest struct {
	Channel      string             `json:"channel,omitempty" enum:"FILIALE,B2B"`
	ShopID       *string            `json:"shop_id,omitempty"`
	CustomerName *string            `json:"customer_name,omitempty"`
	DeliveryDate *string            `json:"delivery_date,omitempty" format:"date"`
	Status       *string            `json:"status,omitempty" enum:"ENTWURF,EINGEGANGEN,FREIGEGEBEN,IN_PRODUKTION,VERPACKT,AUSGELIEFERT"`
	Note         *string            `json:"note,omitempty"`
	Items        []OrderItemRequest `json:"items"`
}

type CreateBatchRequest struct {
	CoffeeID string  `json:"coffee_id"`
	Kg       float64 `json:"kg"`
	Note     *string `json:"note,omitempty"`
}

type InventoryChangeRequest struct {
	Kind     string  `json:"kind" enum:"GREEN,ROASTED"`
	CoffeeID string  `json:"coffee_id"`
	DeltaKg  float64 `json:"delta_kg"`
	Note     *string `json:"note,omitempty"`
}

// Response payloads

type CoffeeResponse struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	DefaultPackKg float64 `json:"default_pack_kg"`
}

type ShopResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type OrderItemResponse struct {
	CoffeeID   string  `json:"coffee_id"`
	CoffeeName string  `json:"coffee_name"`
	Kg         float64 `json:"kg"`
}

type OrderResponse struct {
	ID           string              `json:"id"`
	Channel      string              `json:"channel" enum:"FILIALE,B2B"`
	ShopID       *string             `json:"shop_id,omitempty"`
	CustomerName *string             `json:"customer_name,omitempty"`
	DeliveryDate string              `json:"delivery_date" format:"date"`
	Status       string              `json:"status" enum:"ENTWURF,EINGEGANGEN,FREIGEGEBEN,IN_PRODUKTION,VERPACKT,AUSGELIEFERT"`
	Note         string              `json:"note,omitempty"`
	CreatedAt    string              `json:"created_at" format:"date-time"`
	Items        []OrderItemResponse `json:"items"`
}

type BatchResponse struct {
	ID         string  `json:"id"`
	CoffeeID   string  `json:"coffee_id"`
	CoffeeName string  `json:"coffee_name"`
	Kg         float64 `json:"kg"`
	Status     string  `json:"status" enum:"GEPLANT,GEROESTET,ABGEKUEHLT,VERPACKT,BEREIT,AUSGELIEFERT"`
	Note       string  `json:"note,omitempty"`
	CreatedAt  string  `json:"created_at" format:"date-time"`
}

type InventoryResponse struct {
	GreenKg   map[string]float64 `json:"green_kg"`
	RoastedKg map[string]float64 `json:"roasted_kg"`
	UpdatedAt string             `json:"updated_at" format:"date-time"`
}

type DemandResponse struct {
	CoffeeID   string  `json:"coffee_id"`
	CoffeeName string  `json:"coffee_name"`
	Kg         float64 `json:"kg"`
}

type ActivityResponse struct {
	ID     int64          `json:"id"`
	At     string         `json:"at" format:"date-time"`
	Action string         `json:"action"`
	Meta   map[string]any `json:"meta"`
}

// Conversion helpers

func orderResponse(o domain.Order) OrderResponse {
	items := make([]OrderItemResponse, 0, len(o.Items))
	for _, item := range o.Items {
		items = append(items, OrderItemResponse(item))
	}
	return OrderResponse{
		ID:           o.ID,
		Channel:      o.Channel,
		ShopID:       o.ShopID,
		CustomerName: o.CustomerName,
		DeliveryDate: o.DeliveryDate,
		Status:       o.Status,
		Note:         o.Note,
		CreatedAt:    o.CreatedAt,
		Items:        items,
	}
}

func mapOrders(in []domain.Order) []OrderResponse {
	res := make([]OrderResponse, 0, len(in))
	for _, o := range in {
		res = append(res, orderResponse(o))
	}
	return res
}

func inventoryResponse(state domain.InventoryState) InventoryResponse {
	return InventoryResponse(state)
}

func stringOrEmpty(in *string) string {
	if in == nil {
		return ""
	}
	return *in
}
