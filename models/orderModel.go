package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	OrderStatusPending    = "pending"
	OrderStatusConfirmed  = "confirmed"
	OrderStatusProcessing = "processing"
	OrderStatusShipped    = "shipped"
	OrderStatusDelivered  = "delivered"
	OrderStatusCancelled  = "cancelled"
	OrderStatusRefunded   = "refunded"
)

const (
	PaymentMethodCOD     = "cod"
	PaymentMethodPesapal = "pesapal"
)

const (
	PaymentStatusPending   = "pending"
	PaymentStatusCompleted = "completed"
	PaymentStatusFailed    = "failed"
	PaymentStatusRefunded  = "refunded"
)

var orderTransitions = map[string][]string{
	OrderStatusPending:    {OrderStatusConfirmed, OrderStatusCancelled},
	OrderStatusConfirmed:  {OrderStatusProcessing, OrderStatusCancelled},
	OrderStatusProcessing: {OrderStatusShipped},
	OrderStatusShipped:    {OrderStatusDelivered},
	OrderStatusDelivered:  {OrderStatusRefunded},
}

func IsOrderStatus(status string) bool {
	switch status {
	case OrderStatusPending, OrderStatusConfirmed, OrderStatusProcessing, OrderStatusShipped,
		OrderStatusDelivered, OrderStatusCancelled, OrderStatusRefunded:
		return true
	}
	return false
}

// CanTransition reports whether an order may move from one status to another.
func CanTransition(from, to string) bool {
	for _, next := range orderTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

type Order struct {
	gorm.Model
	OrderNumber       string               `json:"orderNumber" gorm:"size:32;uniqueIndex"`
	CheckoutRef       string               `json:"checkoutRef" gorm:"size:32;index"`
	BuyerID           uint                 `json:"buyerId" gorm:"index;not null"`
	Buyer             *User                `json:"buyer,omitempty" gorm:"foreignKey:BuyerID"`
	SellerID          uint                 `json:"sellerId" gorm:"index;not null"`
	Status            string               `json:"status" gorm:"size:16;index"`
	PaymentMethod     string               `json:"paymentMethod" gorm:"size:16"`
	PaymentStatus     string               `json:"paymentStatus" gorm:"size:16;index"`
	Subtotal          decimal.Decimal      `json:"subtotal" gorm:"type:decimal(12,2)"`
	ShippingFee       decimal.Decimal      `json:"shippingFee" gorm:"type:decimal(12,2)"`
	Total             decimal.Decimal      `json:"total" gorm:"type:decimal(12,2)"`
	ShippingName      string               `json:"shippingName"`
	ShippingPhone     string               `json:"shippingPhone"`
	ShippingAddress   string               `json:"shippingAddress"`
	ShippingCity      string               `json:"shippingCity"`
	Notes             string               `json:"notes"`
	PesapalTrackingID string               `json:"pesapalTrackingId" gorm:"size:64;index"`
	Items             []OrderItem          `json:"items" gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	History           []OrderStatusHistory `json:"history,omitempty" gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
}

type OrderItem struct {
	gorm.Model
	OrderID   uint            `json:"orderId" gorm:"index"`
	ProductID uint            `json:"productId" gorm:"index"`
	Title     string          `json:"title"`
	UnitPrice decimal.Decimal `json:"unitPrice" gorm:"type:decimal(12,2)"`
	Quantity  int             `json:"quantity"`
	LineTotal decimal.Decimal `json:"lineTotal" gorm:"type:decimal(12,2)"`
}

// OrderStatusHistory rows are only ever inserted.
type OrderStatusHistory struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	OrderID     uint      `json:"orderId" gorm:"index;not null"`
	FromStatus  string    `json:"fromStatus" gorm:"size:16"`
	ToStatus    string    `json:"toStatus" gorm:"size:16"`
	ChangedByID *uint     `json:"changedById,omitempty"`
	Note        string    `json:"note"`
	CreatedAt   time.Time `json:"createdAt"`
}

type PaymentTransaction struct {
	gorm.Model
	CheckoutRef string          `json:"checkoutRef" gorm:"size:32;index"`
	BuyerID     uint            `json:"buyerId" gorm:"index"`
	TrackingID  string          `json:"trackingId" gorm:"size:64;uniqueIndex"`
	Amount      decimal.Decimal `json:"amount" gorm:"type:decimal(12,2)"`
	Currency    string          `json:"currency" gorm:"size:8"`
	Method      string          `json:"method" gorm:"size:32"`
	Status      string          `json:"status" gorm:"size:16"`
	RawStatus   string          `json:"rawStatus" gorm:"size:64"`
	RedirectURL string          `json:"redirectUrl"`
}

// PaymentStatusFromPesapal maps the gateway's status_code to a local status.
// Pesapal codes: 0 invalid, 1 completed, 2 failed, 3 reversed.
func PaymentStatusFromPesapal(code int) string {
	switch code {
	case 1:
		return PaymentStatusCompleted
	case 2:
		return PaymentStatusFailed
	case 3:
		return PaymentStatusRefunded
	}
	return PaymentStatusPending
}
