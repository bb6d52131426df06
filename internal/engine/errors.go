package engine

import (
	"fmt"
	"strings"
)

// ValidationError reports malformed or missing caller input.
type ValidationError struct {
	Msg string
}

func (e ValidationError) Error() string { return e.Msg }

// InvalidStateError reports an operation that is not legal from the
// entity's current status.
type InvalidStateError struct {
	Msg string
}

func (e InvalidStateError) Error() string { return e.Msg }

// Shortfall describes one under-stocked order item.
type Shortfall struct {
	CoffeeID    string  `json:"coffee_id"`
	CoffeeName  string  `json:"coffee_name"`
	RequiredKg  float64 `json:"required_kg"`
	AvailableKg float64 `json:"available_kg"`
}

// InsufficientStockError blocks a delivery whose items exceed the roasted
// stock. The order is left untouched.
type InsufficientStockError struct {
	Shortfalls []Shortfall
}

func (e InsufficientStockError) Error() string {
	parts := make([]string, 0, len(e.Shortfalls))
	for _, s := range e.Shortfalls {
		parts = append(parts, fmt.Sprintf("%s: need %gkg, have %gkg", s.CoffeeName, s.RequiredKg, s.AvailableKg))
	}
	return "not enough roasted coffee: " + strings.Join(parts, "; ")
}
