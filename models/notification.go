package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	ChannelCustomer = "customer"
	ChannelOperator = "operator"

	StatusSent    = "sent"
	StatusFailed  = "failed"
	StatusSkipped = "skipped"
)

type NotificationMessage struct {
	To      string
	Subject string
	Body    string
	Channel string
}

type NotificationLog struct {
	ID              int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	OrderID         uuid.UUID `json:"order_id" gorm:"type:uuid;index"`
	StripeSessionID string    `json:"stripe_session_id" gorm:"type:varchar(255);index"`
	Recipient       string    `json:"recipient" gorm:"type:varchar(255)"`
	Channel         string    `json:"channel" gorm:"type:varchar(20)"`
	Status          string    `json:"status" gorm:"type:varchar(20)"`
	Error           string    `json:"error,omitempty"`
	Attempts        int       `json:"attempts"`
	MessageID       string    `json:"message_id,omitempty" gorm:"type:varchar(120)"`
	CreatedAt       time.Time `json:"created_at" gorm:"autoCreateTime"`
}

type NotificationFilter struct {
	Status          string
	Channel         string
	StripeSessionID string
	Page            int
	PageSize        int
}
