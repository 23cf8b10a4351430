package controllers

import (
	"errors"
	"strconv"

	"github.com/Kariqs/amexan-marketplace/initializers"
	"github.com/Kariqs/amexan-marketplace/models"
	"github.com/Kariqs/amexan-marketplace/services"
	"github.com/Kariqs/amexan-marketplace/utils"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type checkoutItemRequest struct {
	ProductID uint `json:"productId" binding:"required"`
	Quantity  int  `json:"quantity" binding:"required,min=1,max=1000"`
}

type checkoutRequest struct {
	Items           []checkoutItemRequest `json:"items" binding:"max=100,dive"`
	FromCart        bool                  `json:"fromCart"`
	PaymentMethod   string                `json:"paymentMethod" binding:"required,oneof=cod pesapal"`
	ShippingName    string                `json:"shippingName" binding:"required,max=120"`
	ShippingPhone   string                `json:"shippingPhone" binding:"required,max=32"`
	ShippingAddress string                `json:"shippingAddress" binding:"required,max=255"`
	ShippingCity    string                `json:"shippingCity" binding:"required,max=120"`
	Notes           string                `json:"notes" binding:"max=1000"`
}

type updateOrderStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=pending confirmed processing shipped delivered cancelled refunded"`
	Note   string `json:"note" binding:"max=500"`
}

type cancelOrderRequest struct {
	Reason string `json:"reason" binding:"max=500"`
}

type paymentSession struct {
	TrackingID  string `json:"trackingId"`
	RedirectURL string `json:"redirectUrl"`
}

type checkoutResponse struct {
	CheckoutRef  string          `json:"checkoutRef"`
	Orders       []models.Order  `json:"orders"`
	Total        decimal.Decimal `json:"total"`
	Payment      *paymentSession `json:"payment,omitempty"`
	PaymentError string          `json:"paymentError,omitempty"`
}

// orderScope restricts order queries to what the caller may see.
type orderScope func(q *gorm.DB) *gorm.DB

func buyerScope(user models.User) orderScope {
	return func(q *gorm.DB) *gorm.DB { return q.Where("orders.buyer_id = ?", user.ID) }
}

func storeScope(user models.User) orderScope {
	return func(q *gorm.DB) *gorm.DB { return q.Where("orders.seller_id = ?", user.EffectiveStoreID()) }
}

func adminScope(q *gorm.DB) *gorm.DB { return q }

func checkoutItems(user models.User, req checkoutRequest) ([]services.CheckoutItem, error) {
	if req.FromCart {
		var cart []models.CartItem
		if err := initializers.DB.Where("user_id = ?", user.ID).Find(&cart).Error; err != nil {
			return nil, err
		}
		items := make([]services.CheckoutItem, len(cart))
		for i, c := range cart {
			items[i] = services.CheckoutItem{ProductID: c.ProductID, Quantity: c.Quantity}
		}
		if len(items) == 0 {
			return nil, utils.BadRequest("Your cart is empty")
		}
		return items, nil
	}

	items := make([]services.CheckoutItem, len(req.Items))
	for i, it := range req.Items {
		items[i] = services.CheckoutItem{ProductID: it.ProductID, Quantity: it.Quantity}
	}
	return items, nil
}

// Checkout places one order per seller and, for gateway payments, opens a
// single payment session for the whole checkout. A failed payment initiation
// still returns the placed orders so the buyer can retry payment.
func Checkout(ctx *gin.Context) {
	var req checkoutRequest
	if !bindJSON(ctx, &req) {
		return
	}
	user := utils.MustCurrentUser(ctx)

	items, err := checkoutItems(user, req)
	if err != nil {
		utils.RespondError(ctx, err)
		return
	}

	orders, err := services.PlaceOrders(initializers.DB, user, services.CheckoutInput{
		Items:         items,
		PaymentMethod: req.PaymentMethod,
		ShippingFee:   decimal.Zero,
		FromCart:      req.FromCart,
		Shipping: services.ShippingInfo{
			Name:    req.ShippingName,
			Phone:   req.ShippingPhone,
			Address: req.ShippingAddress,
			City:    req.ShippingCity,
			Notes:   req.Notes,
		},
	})
	if err != nil {
		utils.RespondError(ctx, err)
		return
	}

	resp := checkoutResponse{CheckoutRef: orders[0].CheckoutRef, Orders: orders, Total: decimal.Zero}
	for _, o := range orders {
		resp.Total = resp.Total.Add(o.Total)
	}
	initializers.Log.WithField("checkout_ref", resp.CheckoutRef).WithField("orders", len(orders)).Info("Checkout placed")

	if req.PaymentMethod == models.PaymentMethodPesapal {
		txn, err := services.InitiateCheckoutPayment(ctx.Request.Context(), initializers.DB, user, resp.CheckoutRef)
		if err != nil {
			initializers.Log.WithError(err).WithField("checkout_ref", resp.CheckoutRef).Error("Payment initiation failed")
			resp.PaymentError = utils.ToAppError(err).Message
		} else {
			resp.Payment = &paymentSession{TrackingID: txn.TrackingID, RedirectURL: txn.RedirectURL}
			for i := range resp.Orders {
				resp.Orders[i].PesapalTrackingID = txn.TrackingID
			}
		}
	}

	services.PublishOrdersPlaced(initializers.DB, user, orders)
	utils.RespondCreated(ctx, "Order placed successfully", resp)
}

func listOrders(ctx *gin.Context, scope orderScope, message string) {
	query := scope(initializers.DB.Model(&models.Order{}))

	if status := ctx.Query("status"); status != "" {
		if !models.IsOrderStatus(status) {
			utils.RespondError(ctx, utils.ValidationFailed(map[string]string{"status": "is not a valid order status"}))
			return
		}
		query = query.Where("orders.status = ?", status)
	}
	if ps := ctx.Query("paymentStatus"); ps != "" {
		query = query.Where("orders.payment_status = ?", ps)
	}
	if ref := ctx.Query("checkoutRef"); ref != "" {
		query = query.Where("orders.checkout_ref = ?", ref)
	}
	for _, key := range []string{"buyerId", "sellerId"} {
		raw := ctx.Query(key)
		if raw == "" {
			continue
		}
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			utils.RespondError(ctx, utils.ValidationFailed(map[string]string{key: "must be a number"}))
			return
		}
		column := "orders.buyer_id = ?"
		if key == "sellerId" {
			column = "orders.seller_id = ?"
		}
		query = query.Where(column, id)
	}

	page := utils.ParsePagination(ctx)
	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		utils.RespondError(ctx, err)
		return
	}

	var orders []models.Order
	if err := query.Preload("Items").
		Order("orders.created_at DESC").
		Limit(page.Limit).
		Offset(page.Offset).
		Find(&orders).Error; err != nil {
		utils.RespondError(ctx, err)
		return
	}
	utils.RespondPaginated(ctx, message, orders, utils.NewPageMeta(page, total))
}

func findOrder(ctx *gin.Context, db *gorm.DB, scope orderScope) (models.Order, error) {
	var order models.Order
	id, err := utils.ParamID(ctx, "id")
	if err != nil {
		return order, err
	}
	err = scope(db.Preload("Items").Preload("History", func(q *gorm.DB) *gorm.DB {
		return q.Order("created_at ASC, id ASC")
	})).Where("orders.id = ?", id).First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return order, utils.NotFound("Order not found")
		}
		return order, err
	}
	return order, nil
}

func respondOrder(ctx *gin.Context, scope orderScope) {
	order, err := findOrder(ctx, initializers.DB, scope)
	if err != nil {
		utils.RespondError(ctx, err)
		return
	}
	utils.RespondOK(ctx, "Order fetched", order)
}

// changeOrderStatus locks the order row, applies the transition and then
// notifies everyone involved. check may veto a transition for the caller.
func changeOrderStatus(ctx *gin.Context, scope orderScope, to, note string, check func(models.Order, string) error) {
	user := utils.MustCurrentUser(ctx)

	var (
		order    models.Order
		previous string
	)
	err := initializers.DB.Transaction(func(tx *gorm.DB) error {
		var err error
		order, err = findOrder(ctx, tx.Clauses(clause.Locking{Strength: "UPDATE"}), scope)
		if err != nil {
			return err
		}
		if check != nil {
			if err := check(order, to); err != nil {
				return err
			}
		}
		previous = order.Status
		return services.TransitionOrder(tx, &order, to, &user.ID, note)
	})
	if err != nil {
		utils.RespondError(ctx, err)
		return
	}

	services.PublishStatusChange(initializers.DB, order, previous)
	utils.RespondOK(ctx, "Order status updated", order)
}

func GetMyOrders(ctx *gin.Context) {
	listOrders(ctx, buyerScope(utils.MustCurrentUser(ctx)), "Orders fetched")
}

func GetMyOrder(ctx *gin.Context) {
	respondOrder(ctx, buyerScope(utils.MustCurrentUser(ctx)))
}

// CancelMyOrder lets a buyer cancel before the seller starts processing.
func CancelMyOrder(ctx *gin.Context) {
	var req cancelOrderRequest
	if ctx.Request.ContentLength > 0 && !bindJSON(ctx, &req) {
		return
	}
	note := req.Reason
	if note == "" {
		note = "Cancelled by buyer"
	}
	changeOrderStatus(ctx, buyerScope(utils.MustCurrentUser(ctx)), models.OrderStatusCancelled, note,
		func(o models.Order, _ string) error {
			if o.Status != models.OrderStatusPending && o.Status != models.OrderStatusConfirmed {
				return utils.Conflict("Only pending or confirmed orders can be cancelled")
			}
			return nil
		})
}

func GetStoreOrders(ctx *gin.Context) {
	listOrders(ctx, storeScope(utils.MustCurrentUser(ctx)), "Store orders fetched")
}

func GetStoreOrder(ctx *gin.Context) {
	respondOrder(ctx, storeScope(utils.MustCurrentUser(ctx)))
}

// sellerTransitionCheck keeps refunds with admins and stops sellers from
// confirming gateway orders that have not been paid.
func sellerTransitionCheck(o models.Order, to string) error {
	if to == models.OrderStatusRefunded {
		return utils.Forbidden("Only administrators can refund orders")
	}
	if to == models.OrderStatusConfirmed && o.PaymentMethod == models.PaymentMethodPesapal &&
		o.PaymentStatus != models.PaymentStatusCompleted {
		return utils.Conflict("Payment for this order has not been completed")
	}
	return nil
}

func UpdateStoreOrderStatus(ctx *gin.Context) {
	var req updateOrderStatusRequest
	if !bindJSON(ctx, &req) {
		return
	}
	changeOrderStatus(ctx, storeScope(utils.MustCurrentUser(ctx)), req.Status, req.Note, sellerTransitionCheck)
}

func GetAllOrders(ctx *gin.Context) {
	listOrders(ctx, adminScope, "Orders fetched")
}

func GetAnyOrder(ctx *gin.Context) {
	respondOrder(ctx, adminScope)
}

func AdminUpdateOrderStatus(ctx *gin.Context) {
	var req updateOrderStatusRequest
	if !bindJSON(ctx, &req) {
		return
	}
	changeOrderStatus(ctx, adminScope, req.Status, req.Note, nil)
}
