package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Kariqs/amexan-marketplace/initializers"
	"github.com/Kariqs/amexan-marketplace/models"
	"github.com/Kariqs/amexan-marketplace/realtime"
	"github.com/Kariqs/amexan-marketplace/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// InitiateCheckoutPayment opens a Pesapal session covering every unpaid order
// of a checkout. Each attempt gets its own merchant reference.
func InitiateCheckoutPayment(ctx context.Context, db *gorm.DB, buyer models.User, checkoutRef string) (*models.PaymentTransaction, error) {
	gateway := initializers.Payments
	if gateway == nil {
		return nil, utils.BadGateway("Payment gateway is not available", utils.ErrPaymentNotConfigured)
	}

	var orders []models.Order
	if err := db.Where("checkout_ref = ? AND buyer_id = ? AND payment_method = ? AND status = ? AND payment_status IN ?",
		checkoutRef, buyer.ID, models.PaymentMethodPesapal, models.OrderStatusPending,
		[]string{models.PaymentStatusPending, models.PaymentStatusFailed}).
		Find(&orders).Error; err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return nil, utils.NotFound("No unpaid orders found for this checkout")
	}

	amount := decimal.Zero
	for _, o := range orders {
		amount = amount.Add(o.Total)
	}

	var attempts int64
	if err := db.Model(&models.PaymentTransaction{}).Where("checkout_ref = ?", checkoutRef).Count(&attempts).Error; err != nil {
		return nil, err
	}

	first, last := splitName(orders[0].ShippingName)
	if first == "" {
		first, last = splitName(buyer.Name)
	}
	session, err := gateway.SubmitOrder(ctx, utils.PaymentRequest{
		MerchantReference: fmt.Sprintf("%s-%d", checkoutRef, attempts+1),
		Amount:            amount,
		Currency:          initializers.Config.PesapalCurrency,
		Description:       fmt.Sprintf("Amexan checkout %s", checkoutRef),
		Billing: utils.BillingAddress{
			Email:     buyer.Email,
			Phone:     orders[0].ShippingPhone,
			FirstName: first,
			LastName:  last,
			City:      orders[0].ShippingCity,
			Line1:     orders[0].ShippingAddress,
		},
	})
	if err != nil {
		return nil, utils.BadGateway("Could not initiate payment", err)
	}

	txn := models.PaymentTransaction{
		CheckoutRef: checkoutRef,
		BuyerID:     buyer.ID,
		TrackingID:  session.TrackingID,
		Amount:      amount,
		Currency:    initializers.Config.PesapalCurrency,
		Method:      models.PaymentMethodPesapal,
		Status:      models.PaymentStatusPending,
		RedirectURL: session.RedirectURL,
	}
	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&txn).Error; err != nil {
			return err
		}
		ids := make([]uint, len(orders))
		for i, o := range orders {
			ids[i] = o.ID
		}
		return tx.Model(&models.Order{}).Where("id IN ?", ids).Updates(map[string]any{
			"pesapal_tracking_id": session.TrackingID,
			"payment_status":      models.PaymentStatusPending,
		}).Error
	})
	if err != nil {
		return nil, err
	}
	return &txn, nil
}

type PaymentUpdate struct {
	Transaction models.PaymentTransaction
	Orders      []models.Order
	Confirmed   []models.Order
	// RefundDue holds orders that were paid after they had been cancelled.
	RefundDue []models.Order
	Changed   bool
}

const noteRefundDue = "Payment received after cancellation, refund required"

// ApplyPaymentStatus asks the gateway for the authoritative status of a
// tracking id and applies it to the checkout. Repeated notifications with an
// unchanged status are no-ops.
func ApplyPaymentStatus(ctx context.Context, db *gorm.DB, trackingID string) (*PaymentUpdate, error) {
	gateway := initializers.Payments
	if gateway == nil {
		return nil, utils.BadGateway("Payment gateway is not available", utils.ErrPaymentNotConfigured)
	}

	var txn models.PaymentTransaction
	if err := db.Where("tracking_id = ?", trackingID).First(&txn).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NotFound("Payment not found")
		}
		return nil, err
	}

	status, err := gateway.TransactionStatus(ctx, trackingID)
	if err != nil {
		return nil, utils.BadGateway("Could not verify payment status", err)
	}
	local := models.PaymentStatusFromPesapal(status.StatusCode)

	update := &PaymentUpdate{Transaction: txn}
	if txn.Status == local {
		return update, nil
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&txn).Updates(map[string]any{
			"status":     local,
			"raw_status": status.Description,
		}).Error; err != nil {
			return err
		}
		txn.Status = local
		txn.RawStatus = status.Description

		if err := tx.Preload("Items").
			Where("checkout_ref = ? AND pesapal_tracking_id = ?", txn.CheckoutRef, trackingID).
			Find(&update.Orders).Error; err != nil {
			return err
		}

		for i := range update.Orders {
			order := &update.Orders[i]
			if order.PaymentStatus != local {
				if err := tx.Model(order).Update("payment_status", local).Error; err != nil {
					return err
				}
				order.PaymentStatus = local
			}
			if local != models.PaymentStatusCompleted {
				continue
			}
			switch order.Status {
			case models.OrderStatusPending:
				if err := TransitionOrder(tx, order, models.OrderStatusConfirmed, nil, "Payment received"); err != nil {
					return err
				}
				update.Confirmed = append(update.Confirmed, *order)
			case models.OrderStatusCancelled:
				entry := models.OrderStatusHistory{
					OrderID:    order.ID,
					FromStatus: order.Status,
					ToStatus:   order.Status,
					Note:       noteRefundDue,
				}
				if err := tx.Create(&entry).Error; err != nil {
					return err
				}
				order.History = append(order.History, entry)
				update.RefundDue = append(update.RefundDue, *order)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	update.Transaction = txn
	update.Changed = true
	paymentsUpdated.WithLabelValues(local).Inc()
	return update, nil
}

// PublishPaymentUpdate notifies the buyer, the stores and admins of a payment
// status change.
func PublishPaymentUpdate(db *gorm.DB, update *PaymentUpdate) {
	if update == nil || !update.Changed {
		return
	}
	txn := update.Transaction
	evt := map[string]any{
		"checkoutRef": txn.CheckoutRef,
		"trackingId":  txn.TrackingID,
		"status":      txn.Status,
		"amount":      txn.Amount.StringFixed(2),
		"currency":    txn.Currency,
	}
	emitToUser(txn.BuyerID, realtime.EventPaymentUpdated, evt)
	emitToAdmins(realtime.EventPaymentUpdated, evt)
	for _, o := range update.Orders {
		emitToStore(o.SellerID, realtime.EventPaymentUpdated, evt)
	}

	Notify(db, txn.BuyerID, models.NotificationPayment, "Payment "+txn.Status,
		fmt.Sprintf("Payment for checkout %s is %s", txn.CheckoutRef, txn.Status), evt)

	for _, o := range update.Confirmed {
		PublishStatusChange(db, o, models.OrderStatusPending)
	}
	for _, o := range update.RefundDue {
		initializers.Log.WithFields(logrus.Fields{
			"order_id":    o.ID,
			"tracking_id": txn.TrackingID,
		}).Warn("Payment completed on a cancelled order")
		orderEvt := newOrderEvent(o, "")
		emitToAdmins(realtime.EventPaymentUpdated, orderEvt)
		NotifyStore(db, o.SellerID, models.PermFinanceRead, models.NotificationPayment, "Refund required",
			fmt.Sprintf("Order %s was paid after it was cancelled and must be refunded", o.OrderNumber), orderEvt)
	}

	var buyer models.User
	if err := db.Select("id", "name", "email").First(&buyer, txn.BuyerID).Error; err != nil {
		initializers.Log.WithError(err).WithField("checkout_ref", txn.CheckoutRef).Warn("Could not load buyer for payment email")
		return
	}
	SendEmailAsync(buyer.Email, "Payment "+txn.Status, utils.TemplatePayment, utils.EmailData{
		Name:        buyer.Name,
		Message:     fmt.Sprintf("Your payment of %s %s is %s.", txn.Currency, txn.Amount.StringFixed(2), txn.Status),
		OrderNumber: txn.CheckoutRef,
		Status:      txn.Status,
		Total:       txn.Amount.StringFixed(2),
		ActionURL:   initializers.Config.FrontendURL + "/orders",
		ActionText:  "View orders",
	})
}

func splitName(name string) (string, string) {
	parts := strings.Fields(name)
	switch len(parts) {
	case 0:
		return "", ""
	case 1:
		return parts[0], ""
	}
	return parts[0], strings.Join(parts[1:], " ")
}
