package models

import (
	"time"

	"gorm.io/datatypes"
)

const (
	NotificationOrderPlaced   = "order_placed"
	NotificationOrderReceived = "order_received"
	NotificationOrderStatus   = "order_status"
	NotificationPayment       = "payment"
	NotificationAccount       = "account"
)

type Notification struct {
	ID        uint           `json:"id" gorm:"primaryKey"`
	UserID    uint           `json:"userId" gorm:"index;not null"`
	Type      string         `json:"type" gorm:"size:32"`
	Title     string         `json:"title"`
	Message   string         `json:"message"`
	Data      datatypes.JSON `json:"data,omitempty"`
	Read      bool           `json:"read" gorm:"column:is_read;index"`
	ReadAt    *time.Time     `json:"readAt,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
}
