package controllers

import (
	"errors"
	"strings"
	"time"

	"github.com/Kariqs/amexan-marketplace/initializers"
	"github.com/Kariqs/amexan-marketplace/models"
	"github.com/Kariqs/amexan-marketplace/services"
	"github.com/Kariqs/amexan-marketplace/utils"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type createStaffRequest struct {
	Name       string `json:"name" binding:"required,min=2,max=120"`
	Email      string `json:"email" binding:"required,email,max=191"`
	Phone      string `json:"phone" binding:"omitempty,max=32"`
	Password   string `json:"password" binding:"required,strongpassword"`
	SellerRole string `json:"sellerRole" binding:"required,sellerrole"`
}

type updateStaffRequest struct {
	SellerRole string `json:"sellerRole" binding:"required,sellerrole"`
}

type financeSummary struct {
	From            *time.Time       `json:"from,omitempty"`
	To              *time.Time       `json:"to,omitempty"`
	Revenue         decimal.Decimal  `json:"revenue"`
	PendingAmount   decimal.Decimal  `json:"pendingAmount"`
	RefundedAmount  decimal.Decimal  `json:"refundedAmount"`
	RefundDue       decimal.Decimal  `json:"refundDue"`
	OrdersByStatus  map[string]int64 `json:"ordersByStatus"`
	TotalOrders     int64            `json:"totalOrders"`
	ProductsListed  int64            `json:"productsListed"`
	LowStockItems   int64            `json:"lowStockItems"`
	LowStockCeiling int              `json:"lowStockCeiling"`
}

const lowStockCeiling = 5

func findStaff(ctx *gin.Context) (models.User, error) {
	var staff models.User
	id, err := utils.ParamID(ctx, "id")
	if err != nil {
		return staff, err
	}
	owner := utils.MustCurrentUser(ctx)
	if err := initializers.DB.Where("id = ? AND store_id = ?", id, owner.EffectiveStoreID()).First(&staff).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return staff, utils.NotFound("Staff member not found")
		}
		return staff, err
	}
	if staff.ID == owner.ID {
		return staff, utils.Forbidden("You cannot change your own store role")
	}
	return staff, nil
}

// storeOf returns the store a write acts on. Admins pass the seller route
// guards but have no store of their own.
func storeOf(user models.User) (uint, error) {
	if user.Role != models.RoleSeller {
		return 0, utils.Forbidden("Only store accounts can perform this action")
	}
	return user.EffectiveStoreID(), nil
}

// CreateStaff adds a seller account that works for the caller's store.
func CreateStaff(ctx *gin.Context) {
	var req createStaffRequest
	if !bindJSON(ctx, &req) {
		return
	}
	owner := utils.MustCurrentUser(ctx)
	storeID, err := storeOf(owner)
	if err != nil {
		utils.RespondError(ctx, err)
		return
	}

	var store models.User
	if err := initializers.DB.Select("id", "store_name").First(&store, storeID).Error; err != nil {
		utils.RespondError(ctx, err)
		return
	}

	hashed, err := utils.HashPassword(req.Password)
	if err != nil {
		utils.RespondError(ctx, utils.Internal("Failed to hash password", err))
		return
	}
	token, err := utils.GenerateOpaqueToken(verificationTokenBytes)
	if err != nil {
		utils.RespondError(ctx, utils.Internal("Failed to generate verification token", err))
		return
	}

	staff := models.User{
		Name:              strings.TrimSpace(req.Name),
		Email:             normalizeEmail(req.Email),
		Phone:             req.Phone,
		Password:          hashed,
		Role:              models.RoleSeller,
		SellerRole:        req.SellerRole,
		StoreID:           &storeID,
		StoreName:         store.StoreName,
		Status:            models.UserStatusActive,
		VerificationToken: utils.HashToken(token),
	}
	if err := initializers.DB.Create(&staff).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			utils.RespondError(ctx, utils.Conflict(msgUserAlreadyExists))
			return
		}
		utils.RespondError(ctx, err)
		return
	}

	sendVerificationEmail(staff, token)
	services.Notify(initializers.DB, staff.ID, models.NotificationAccount, "Welcome to "+store.StoreName,
		"You have been added as "+strings.ReplaceAll(req.SellerRole, "_", " "), nil)
	utils.RespondCreated(ctx, "Staff member created", staff)
}

func GetStaff(ctx *gin.Context) {
	owner := utils.MustCurrentUser(ctx)
	var staff []models.User
	if err := initializers.DB.Where("store_id = ?", owner.EffectiveStoreID()).Order("name ASC").Find(&staff).Error; err != nil {
		utils.RespondError(ctx, err)
		return
	}
	utils.RespondOK(ctx, "Staff fetched", staff)
}

func UpdateStaffRole(ctx *gin.Context) {
	var req updateStaffRequest
	if !bindJSON(ctx, &req) {
		return
	}
	staff, err := findStaff(ctx)
	if err != nil {
		utils.RespondError(ctx, err)
		return
	}

	if err := initializers.DB.Model(&staff).Update("seller_role", req.SellerRole).Error; err != nil {
		utils.RespondError(ctx, err)
		return
	}
	utils.RespondOK(ctx, "Staff role updated", staff)
}

// DeactivateStaff blocks the account and ends its sessions.
func DeactivateStaff(ctx *gin.Context) {
	staff, err := findStaff(ctx)
	if err != nil {
		utils.RespondError(ctx, err)
		return
	}

	err = initializers.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&staff).Update("status", models.UserStatusDeactivated).Error; err != nil {
			return err
		}
		return services.RevokeAllForUser(tx, staff.ID)
	})
	if err != nil {
		utils.RespondError(ctx, err)
		return
	}
	utils.RespondOK(ctx, "Staff member deactivated", staff)
}

func parseDateQuery(ctx *gin.Context, key string) (*time.Time, error) {
	raw := ctx.Query(key)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil, utils.ValidationFailed(map[string]string{key: "must be a date in YYYY-MM-DD format"})
	}
	return &t, nil
}

func sumOrders(query *gorm.DB) (decimal.Decimal, error) {
	var row struct {
		Total decimal.NullDecimal
	}
	if err := query.Select("SUM(orders.total) AS total").Scan(&row).Error; err != nil {
		return decimal.Zero, err
	}
	if !row.Total.Valid {
		return decimal.Zero, nil
	}
	return row.Total.Decimal, nil
}

// GetFinanceSummary aggregates the store's order money over an optional
// date range.
func GetFinanceSummary(ctx *gin.Context) {
	from, err := parseDateQuery(ctx, "from")
	if err != nil {
		utils.RespondError(ctx, err)
		return
	}
	to, err := parseDateQuery(ctx, "to")
	if err != nil {
		utils.RespondError(ctx, err)
		return
	}
	storeID := utils.MustCurrentUser(ctx).EffectiveStoreID()

	scoped := func() *gorm.DB {
		q := initializers.DB.Model(&models.Order{}).Where("orders.seller_id = ?", storeID)
		if from != nil {
			q = q.Where("orders.created_at >= ?", *from)
		}
		if to != nil {
			q = q.Where("orders.created_at < ?", to.AddDate(0, 0, 1))
		}
		return q
	}

	summary := financeSummary{From: from, To: to, OrdersByStatus: map[string]int64{}, LowStockCeiling: lowStockCeiling}

	if summary.Revenue, err = sumOrders(scoped().Where("payment_status = ? AND status NOT IN ?",
		models.PaymentStatusCompleted, []string{models.OrderStatusRefunded, models.OrderStatusCancelled})); err != nil {
		utils.RespondError(ctx, err)
		return
	}
	if summary.PendingAmount, err = sumOrders(scoped().Where("payment_status = ? AND status <> ?",
		models.PaymentStatusPending, models.OrderStatusCancelled)); err != nil {
		utils.RespondError(ctx, err)
		return
	}
	if summary.RefundedAmount, err = sumOrders(scoped().Where("payment_status = ?", models.PaymentStatusRefunded)); err != nil {
		utils.RespondError(ctx, err)
		return
	}
	if summary.RefundDue, err = sumOrders(scoped().Where("payment_status = ? AND status = ?",
		models.PaymentStatusCompleted, models.OrderStatusCancelled)); err != nil {
		utils.RespondError(ctx, err)
		return
	}

	var counts []struct {
		Status string
		Total  int64
	}
	if err := scoped().Select("status, COUNT(*) AS total").Group("status").Scan(&counts).Error; err != nil {
		utils.RespondError(ctx, err)
		return
	}
	for _, c := range counts {
		summary.OrdersByStatus[c.Status] = c.Total
		summary.TotalOrders += c.Total
	}

	products := initializers.DB.Model(&models.Product{}).Where("seller_id = ? AND is_active = ?", storeID, true)
	if err := products.Session(&gorm.Session{}).Count(&summary.ProductsListed).Error; err != nil {
		utils.RespondError(ctx, err)
		return
	}
	if err := products.Where("stock <= ?", lowStockCeiling).Count(&summary.LowStockItems).Error; err != nil {
		utils.RespondError(ctx, err)
		return
	}

	utils.RespondOK(ctx, "Finance summary fetched", summary)
}
