package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// OrderItem is one purchased position inside an order. The item list is
// stored as a single JSONB column, matching the checkout payload.
type OrderItem struct {
	ProductID int64   `json:"product_id"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	Quantity  int     `json:"quantity"`
}

type Order struct {
	ID             uuid.UUID   `json:"id"`
	UserID         uuid.UUID   `json:"user_id"`
	UserEmail      string      `json:"user_email"`
	Products       []OrderItem `json:"products"`
	PhoneNumber    string      `json:"phone_number"`
	DeliveryMethod string      `json:"delivery_method"`
	Address        string      `json:"address"`
	CreatedAt      time.Time   `json:"created_at"`
}

type CreateOrderRequest struct {
	Products       []OrderItem `json:"products"`
	PhoneNumber    string      `json:"phone_number"`
	DeliveryMethod string      `json:"delivery_method"`
	Address        string      `json:"address"`
}

// ProductsJSON serializes the item list for the JSONB column.
func (o *Order) ProductsJSON() ([]byte, error) {
	return json.Marshal(o.Products)
}
