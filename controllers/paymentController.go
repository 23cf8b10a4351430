package controllers

import (
	"errors"
	"net/http"

	"github.com/Kariqs/amexan-marketplace/initializers"
	"github.com/Kariqs/amexan-marketplace/models"
	"github.com/Kariqs/amexan-marketplace/services"
	"github.com/Kariqs/amexan-marketplace/utils"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type pesapalNotification struct {
	OrderTrackingID        string `json:"OrderTrackingId" form:"OrderTrackingId"`
	OrderMerchantReference string `json:"OrderMerchantReference" form:"OrderMerchantReference"`
	OrderNotificationType  string `json:"OrderNotificationType" form:"OrderNotificationType"`
}

type paymentStatusResponse struct {
	Transaction models.PaymentTransaction `json:"transaction"`
	Orders      []models.Order            `json:"orders"`
}

func readPesapalNotification(ctx *gin.Context) (pesapalNotification, error) {
	var n pesapalNotification
	if ctx.Request.Method == http.MethodPost {
		if err := ctx.ShouldBindJSON(&n); err != nil {
			return n, err
		}
	} else {
		n.OrderTrackingID = firstNonEmpty(ctx.Query("OrderTrackingId"), ctx.Query("orderTrackingId"))
		n.OrderMerchantReference = firstNonEmpty(ctx.Query("OrderMerchantReference"), ctx.Query("orderMerchantReference"))
		n.OrderNotificationType = firstNonEmpty(ctx.Query("OrderNotificationType"), ctx.Query("orderNotificationType"))
	}
	if n.OrderTrackingID == "" || n.OrderMerchantReference == "" {
		return n, utils.ValidationFailed(map[string]string{"OrderTrackingId": "is required", "OrderMerchantReference": "is required"})
	}
	if n.OrderNotificationType == "" {
		n.OrderNotificationType = "IPNCHANGE"
	}
	return n, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// HandlePesapalIPN verifies the reported transaction with the gateway and
// applies it. The gateway expects its acknowledgement fields at the top level
// of the body next to the usual envelope.
func HandlePesapalIPN(ctx *gin.Context) {
	n, err := readPesapalNotification(ctx)
	if err != nil {
		utils.RespondError(ctx, err)
		return
	}

	log := initializers.Log.WithField("tracking_id", n.OrderTrackingID).WithField("merchant_ref", n.OrderMerchantReference)
	update, err := services.ApplyPaymentStatus(ctx.Request.Context(), initializers.DB, n.OrderTrackingID)
	if err != nil {
		log.WithError(err).Warn("Pesapal notification not applied")
		utils.RespondError(ctx, err)
		return
	}
	log.WithField("status", update.Transaction.Status).WithField("changed", update.Changed).Info("Pesapal notification processed")
	services.PublishPaymentUpdate(initializers.DB, update)

	ctx.JSON(http.StatusOK, gin.H{
		"success":                true,
		"message":                "Notification processed",
		"data":                   gin.H{"status": update.Transaction.Status, "checkoutRef": update.Transaction.CheckoutRef},
		"orderNotificationType":  n.OrderNotificationType,
		"orderTrackingId":        n.OrderTrackingID,
		"orderMerchantReference": n.OrderMerchantReference,
		"status":                 http.StatusOK,
	})
}

// GetPaymentStatus returns the caller's transaction, asking the gateway
// again while it is still pending.
func GetPaymentStatus(ctx *gin.Context) {
	user := utils.MustCurrentUser(ctx)
	trackingID := ctx.Param("trackingId")

	query := initializers.DB.Where("tracking_id = ?", trackingID)
	if user.Role != models.RoleAdmin {
		query = query.Where("buyer_id = ?", user.ID)
	}
	var txn models.PaymentTransaction
	if err := query.First(&txn).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.RespondError(ctx, utils.NotFound("Payment not found"))
			return
		}
		utils.RespondError(ctx, err)
		return
	}

	if txn.Status == models.PaymentStatusPending {
		update, err := services.ApplyPaymentStatus(ctx.Request.Context(), initializers.DB, trackingID)
		if err != nil {
			initializers.Log.WithError(err).WithField("tracking_id", trackingID).Warn("Could not refresh payment status")
		} else {
			services.PublishPaymentUpdate(initializers.DB, update)
			txn = update.Transaction
		}
	}

	var orders []models.Order
	if err := initializers.DB.Preload("Items").Where("checkout_ref = ?", txn.CheckoutRef).Find(&orders).Error; err != nil {
		utils.RespondError(ctx, err)
		return
	}
	utils.RespondOK(ctx, "Payment status fetched", paymentStatusResponse{Transaction: txn, Orders: orders})
}

// InitiatePayment opens a new payment session for an unpaid checkout.
func InitiatePayment(ctx *gin.Context) {
	user := utils.MustCurrentUser(ctx)
	txn, err := services.InitiateCheckoutPayment(ctx.Request.Context(), initializers.DB, user, ctx.Param("ref"))
	if err != nil {
		utils.RespondError(ctx, err)
		return
	}
	utils.RespondCreated(ctx, "Payment initiated", paymentSession{TrackingID: txn.TrackingID, RedirectURL: txn.RedirectURL})
}
