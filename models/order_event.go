package models

import "time"

const TypeOrderCreated = "order_created"

type OrderEventItem struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// OrderEvent is published to Kafka/SNS once an order has been persisted.
type OrderEvent struct {
	Type            string           `json:"type"`
	OrderID         string           `json:"order_id"`
	StripeSessionID string           `json:"stripe_session_id"`
	CustomerEmail   string           `json:"customer_email,omitempty"`
	Amount          int64            `json:"amount"` // smallest currency unit
	Currency        string           `json:"currency"`
	Items           []OrderEventItem `json:"items"`
	Timestamp       time.Time        `json:"timestamp"`
}

func NewOrderCreatedEvent(order *Order) OrderEvent {
	items := make([]OrderEventItem, 0, len(order.LineItems))
	for _, li := range order.LineItems {
		items = append(items, OrderEventItem{ProductID: li.ProductID, Quantity: li.Quantity})
	}
	return OrderEvent{
		Type:            TypeOrderCreated,
		OrderID:         order.ID.String(),
		StripeSessionID: order.StripeSessionID,
		CustomerEmail:   order.CustomerEmail,
		Amount:          order.AmountTotal,
		Currency:        order.Currency,
		Items:           items,
		Timestamp:       order.CreatedAt.UTC(),
	}
}
