package services

import (
	"fmt"
	"time"

	"github.com/Kariqs/amexan-marketplace/initializers"
	"github.com/Kariqs/amexan-marketplace/models"
	"github.com/Kariqs/amexan-marketplace/realtime"
	"github.com/Kariqs/amexan-marketplace/utils"
	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CheckoutItem struct {
	ProductID uint
	Quantity  int
}

type ShippingInfo struct {
	Name    string
	Phone   string
	Address string
	City    string
	Notes   string
}

type CheckoutInput struct {
	Items         []CheckoutItem
	PaymentMethod string
	Shipping      ShippingInfo
	ShippingFee   decimal.Decimal
	FromCart      bool
}

// MergeCheckoutItems folds repeated products into one line, keeping first-seen order.
func MergeCheckoutItems(items []CheckoutItem) []CheckoutItem {
	index := make(map[uint]int, len(items))
	merged := make([]CheckoutItem, 0, len(items))
	for _, it := range items {
		if it.Quantity <= 0 {
			continue
		}
		if i, ok := index[it.ProductID]; ok {
			merged[i].Quantity += it.Quantity
			continue
		}
		index[it.ProductID] = len(merged)
		merged = append(merged, it)
	}
	return merged
}

// PlaceOrders creates one order per seller for the checkout, reserving stock
// in the same transaction. All orders share a checkout reference.
func PlaceOrders(db *gorm.DB, buyer models.User, in CheckoutInput) ([]models.Order, error) {
	lines := MergeCheckoutItems(in.Items)
	if len(lines) == 0 {
		return nil, utils.BadRequest("Order must contain at least one item")
	}

	var orders []models.Order
	err := db.Transaction(func(tx *gorm.DB) error {
		ids := make([]uint, len(lines))
		for i, l := range lines {
			ids[i] = l.ProductID
		}

		var products []models.Product
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id IN ? AND is_active = ?", ids, true).
			Find(&products).Error; err != nil {
			return err
		}
		byID := make(map[uint]models.Product, len(products))
		for _, p := range products {
			byID[p.ID] = p
		}

		now := time.Now()
		groups := make(map[uint][]models.OrderItem)
		var sellers []uint
		for _, l := range lines {
			p, ok := byID[l.ProductID]
			if !ok {
				return utils.NotFound(fmt.Sprintf("Product %d is not available", l.ProductID))
			}
			if p.SellerID == buyer.EffectiveStoreID() && buyer.Role == models.RoleSeller {
				return utils.BadRequest("You cannot order your own product")
			}
			if p.Stock < l.Quantity {
				return utils.Conflict(fmt.Sprintf("Insufficient stock for %s", p.Title))
			}

			res := tx.Model(&models.Product{}).
				Where("id = ? AND stock >= ?", p.ID, l.Quantity).
				UpdateColumn("stock", gorm.Expr("stock - ?", l.Quantity))
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return utils.Conflict(fmt.Sprintf("Insufficient stock for %s", p.Title))
			}

			price := p.EffectivePrice(now)
			if _, seen := groups[p.SellerID]; !seen {
				sellers = append(sellers, p.SellerID)
			}
			groups[p.SellerID] = append(groups[p.SellerID], models.OrderItem{
				ProductID: p.ID,
				Title:     p.Title,
				UnitPrice: price,
				Quantity:  l.Quantity,
				LineTotal: price.Mul(decimal.NewFromInt(int64(l.Quantity))),
			})
		}

		checkoutRef := ulid.Make().String()
		for _, sellerID := range sellers {
			items := groups[sellerID]
			subtotal := decimal.Zero
			for _, it := range items {
				subtotal = subtotal.Add(it.LineTotal)
			}

			order := models.Order{
				OrderNumber:     ulid.Make().String(),
				CheckoutRef:     checkoutRef,
				BuyerID:         buyer.ID,
				SellerID:        sellerID,
				Status:          models.OrderStatusPending,
				PaymentMethod:   in.PaymentMethod,
				PaymentStatus:   models.PaymentStatusPending,
				Subtotal:        subtotal,
				ShippingFee:     in.ShippingFee,
				Total:           subtotal.Add(in.ShippingFee),
				ShippingName:    in.Shipping.Name,
				ShippingPhone:   in.Shipping.Phone,
				ShippingAddress: in.Shipping.Address,
				ShippingCity:    in.Shipping.City,
				Notes:           in.Shipping.Notes,
				Items:           items,
			}
			if err := tx.Create(&order).Error; err != nil {
				return err
			}

			buyerID := buyer.ID
			entry := models.OrderStatusHistory{OrderID: order.ID, ToStatus: models.OrderStatusPending, ChangedByID: &buyerID, Note: "Order placed"}
			if err := tx.Create(&entry).Error; err != nil {
				return err
			}
			order.History = []models.OrderStatusHistory{entry}
			orders = append(orders, order)
		}

		if in.FromCart {
			return tx.Where("user_id = ?", buyer.ID).Delete(&models.CartItem{}).Error
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	ordersCreated.WithLabelValues(in.PaymentMethod).Add(float64(len(orders)))
	return orders, nil
}

// TransitionOrder moves order to a new status and appends a history entry.
// It must run inside the caller's transaction. Cancellation returns the
// reserved stock.
func TransitionOrder(tx *gorm.DB, order *models.Order, to string, actorID *uint, note string) error {
	from := order.Status
	if !models.CanTransition(from, to) {
		return utils.Conflict(fmt.Sprintf("Cannot change order status from %s to %s", from, to))
	}

	updates := map[string]any{"status": to}
	paymentStatus := order.PaymentStatus
	switch {
	case to == models.OrderStatusDelivered && order.PaymentMethod == models.PaymentMethodCOD:
		paymentStatus = models.PaymentStatusCompleted
	case to == models.OrderStatusRefunded && order.PaymentStatus == models.PaymentStatusCompleted:
		paymentStatus = models.PaymentStatusRefunded
	}
	if paymentStatus != order.PaymentStatus {
		updates["payment_status"] = paymentStatus
	}

	res := tx.Model(&models.Order{}).Where("id = ? AND status = ?", order.ID, from).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return utils.Conflict("Order was modified by another request")
	}

	if to == models.OrderStatusCancelled {
		items := order.Items
		if items == nil {
			if err := tx.Where("order_id = ?", order.ID).Find(&items).Error; err != nil {
				return err
			}
		}
		for _, it := range items {
			if err := tx.Model(&models.Product{}).
				Where("id = ?", it.ProductID).
				UpdateColumn("stock", gorm.Expr("stock + ?", it.Quantity)).Error; err != nil {
				return err
			}
		}
	}

	entry := models.OrderStatusHistory{OrderID: order.ID, FromStatus: from, ToStatus: to, ChangedByID: actorID, Note: note}
	if err := tx.Create(&entry).Error; err != nil {
		return err
	}

	order.Status = to
	order.PaymentStatus = paymentStatus
	order.History = append(order.History, entry)
	return nil
}

type orderEvent struct {
	OrderID       uint   `json:"orderId"`
	OrderNumber   string `json:"orderNumber"`
	CheckoutRef   string `json:"checkoutRef"`
	BuyerID       uint   `json:"buyerId"`
	SellerID      uint   `json:"sellerId"`
	Status        string `json:"status"`
	PreviousState string `json:"previousStatus,omitempty"`
	PaymentStatus string `json:"paymentStatus"`
	Total         string `json:"total"`
}

func newOrderEvent(o models.Order, previous string) orderEvent {
	return orderEvent{
		OrderID:       o.ID,
		OrderNumber:   o.OrderNumber,
		CheckoutRef:   o.CheckoutRef,
		BuyerID:       o.BuyerID,
		SellerID:      o.SellerID,
		Status:        o.Status,
		PreviousState: previous,
		PaymentStatus: o.PaymentStatus,
		Total:         o.Total.StringFixed(2),
	}
}

// PublishOrdersPlaced fans out a new checkout to the buyer, the stores and admins.
func PublishOrdersPlaced(db *gorm.DB, buyer models.User, orders []models.Order) {
	if len(orders) == 0 {
		return
	}
	total := decimal.Zero
	var items []utils.EmailItem
	for _, o := range orders {
		total = total.Add(o.Total)
		evt := newOrderEvent(o, "")
		emitToUser(buyer.ID, realtime.EventOrderCreated, evt)
		emitToStore(o.SellerID, realtime.EventOrderCreated, evt)
		emitToAdmins(realtime.EventOrderCreated, evt)

		NotifyStore(db, o.SellerID, models.PermOrderRead, models.NotificationOrderReceived, "New order received",
			fmt.Sprintf("Order %s was placed for %s", o.OrderNumber, o.Total.StringFixed(2)), evt)

		for _, it := range o.Items {
			items = append(items, utils.EmailItem{Title: it.Title, Quantity: it.Quantity, LineTotal: it.LineTotal.StringFixed(2)})
		}
	}

	ref := orders[0].CheckoutRef
	Notify(db, buyer.ID, models.NotificationOrderPlaced, "Order placed",
		fmt.Sprintf("Your order %s has been placed", ref), map[string]any{"checkoutRef": ref, "orders": len(orders)})

	SendEmailAsync(buyer.Email, "Your Amexan order "+ref, utils.TemplateOrderPlaced, utils.EmailData{
		Name:        buyer.Name,
		Message:     "Thank you for shopping with us. We have received your order.",
		OrderNumber: ref,
		Total:       initializers.Config.PesapalCurrency + " " + total.StringFixed(2),
		Items:       items,
		ActionURL:   initializers.Config.FrontendURL + "/orders",
		ActionText:  "View orders",
	})
}

// PublishStatusChange notifies every party of an order status change.
func PublishStatusChange(db *gorm.DB, order models.Order, previous string) {
	evt := newOrderEvent(order, previous)
	emitToUser(order.BuyerID, realtime.EventOrderStatusUpdated, evt)
	emitToStore(order.SellerID, realtime.EventOrderStatusUpdated, evt)
	emitToAdmins(realtime.EventOrderStatusUpdated, evt)

	Notify(db, order.BuyerID, models.NotificationOrderStatus, "Order status updated",
		fmt.Sprintf("Order %s is now %s", order.OrderNumber, order.Status), evt)

	var buyer models.User
	if err := db.Select("id", "name", "email").First(&buyer, order.BuyerID).Error; err != nil {
		initializers.Log.WithError(err).WithField("order_id", order.ID).Warn("Could not load buyer for status email")
		return
	}
	SendEmailAsync(buyer.Email, "Order "+order.OrderNumber+" is "+order.Status, utils.TemplateOrderStatus, utils.EmailData{
		Name:        buyer.Name,
		Message:     "There is an update on your order.",
		OrderNumber: order.OrderNumber,
		Status:      order.Status,
		Total:       order.Total.StringFixed(2),
		ActionURL:   fmt.Sprintf("%s/orders/%d", initializers.Config.FrontendURL, order.ID),
		ActionText:  "Track order",
	})
}

// CancelStalePendingOrders cancels gateway-paid orders whose payment never
// completed before cutoff.
func CancelStalePendingOrders(db *gorm.DB, cutoff time.Time) (int, error) {
	var stale []models.Order
	if err := db.Preload("Items").
		Where("status = ? AND payment_method = ? AND payment_status = ? AND created_at < ?",
			models.OrderStatusPending, models.PaymentMethodPesapal, models.PaymentStatusPending, cutoff).
		Find(&stale).Error; err != nil {
		return 0, err
	}

	cancelled := 0
	for i := range stale {
		order := stale[i]
		err := db.Transaction(func(tx *gorm.DB) error {
			return TransitionOrder(tx, &order, models.OrderStatusCancelled, nil, "Payment was not completed in time")
		})
		if err != nil {
			initializers.Log.WithError(err).WithField("order_id", order.ID).Warn("Could not cancel stale order")
			continue
		}
		cancelled++
		PublishStatusChange(db, order, models.OrderStatusPending)
	}
	return cancelled, nil
}
