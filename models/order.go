package models

import (
	"time"

	"github.com/google/uuid"
)

// ShippingAddress is embedded into the orders table with a shipping_ prefix.
type ShippingAddress struct {
	Street     string `gorm:"type:varchar(255)" json:"street"`
	City       string `gorm:"type:varchar(120)" json:"city"`
	PostalCode string `gorm:"type:varchar(20)" json:"postal_code"`
}

// Order is written once per completed checkout session and never updated.
type Order struct {
	ID              uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	CustomerName    string          `gorm:"type:varchar(255);not null" json:"customer_name"`
	CustomerEmail   string          `gorm:"type:varchar(255)" json:"customer_email"`
	ShippingAddress ShippingAddress `gorm:"embedded;embeddedPrefix:shipping_" json:"shipping_address"`
	LineItems       []OrderLineItem `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"line_items"`
	Total           float64         `gorm:"type:numeric(12,2);not null" json:"total"`
	AmountTotal     int64           `gorm:"not null" json:"amount_total"` // minor units, as reported by Stripe
	Currency        string          `gorm:"type:varchar(10)" json:"currency"`
	StripeSessionID string          `gorm:"type:varchar(255);uniqueIndex;not null" json:"stripe_session_id"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

// OrderLineItem is a snapshot of the product taken when the order was assembled.
type OrderLineItem struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	OrderID   uuid.UUID `gorm:"type:uuid;not null;index" json:"order_id"`
	Position  int       `gorm:"not null" json:"position"`
	ProductID string    `gorm:"type:varchar(64);not null" json:"product_id"`
	Name      string    `gorm:"type:varchar(255)" json:"name"`
	Category  string    `gorm:"type:varchar(120)" json:"category"`
	Quantity  int       `gorm:"not null" json:"quantity"`
	UnitPrice float64   `gorm:"type:numeric(10,2);not null" json:"unit_price"`
	Reference string    `gorm:"type:varchar(120)" json:"reference"`
}

// Subtotal is the line price; it is informational only and never feeds Order.Total.
func (li OrderLineItem) Subtotal() float64 {
	return li.UnitPrice * float64(li.Quantity)
}

// MinorToDecimal converts an amount in minor currency units (cents) to its decimal value.
func MinorToDecimal(amount int64) float64 {
	return float64(amount) / 100
}
