package controllers

import (
	"errors"
	"strings"

	"github.com/Kariqs/amexan-marketplace/initializers"
	"github.com/Kariqs/amexan-marketplace/models"
	"github.com/Kariqs/amexan-marketplace/services"
	"github.com/Kariqs/amexan-marketplace/utils"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type updateUserStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=active suspended deactivated"`
	Reason string `json:"reason" binding:"max=500"`
}

type dashboardStats struct {
	UsersByRole    map[string]int64 `json:"usersByRole"`
	UsersByStatus  map[string]int64 `json:"usersByStatus"`
	Products       int64            `json:"products"`
	ActiveProducts int64            `json:"activeProducts"`
	OrdersByStatus map[string]int64 `json:"ordersByStatus"`
	Revenue        decimal.Decimal  `json:"revenue"`
	RefundDue      decimal.Decimal  `json:"refundDue"`
}

type groupCount struct {
	Key   string
	Total int64
}

func countBy(model any, column string) (map[string]int64, error) {
	var rows []groupCount
	if err := initializers.DB.Model(model).
		Select(column + " AS `key`, COUNT(*) AS total").
		Group(column).
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, r := range rows {
		out[r.Key] = r.Total
	}
	return out, nil
}

func GetUsers(ctx *gin.Context) {
	query := initializers.DB.Model(&models.User{})
	if role := ctx.Query("role"); role != "" {
		query = query.Where("role = ?", role)
	}
	if status := ctx.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	if q := strings.TrimSpace(ctx.Query("search")); q != "" {
		like := "%" + q + "%"
		query = query.Where("name LIKE ? OR email LIKE ? OR store_name LIKE ?", like, like, like)
	}

	page := utils.ParsePagination(ctx)
	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		utils.RespondError(ctx, err)
		return
	}

	var users []models.User
	if err := query.Order("created_at DESC").Limit(page.Limit).Offset(page.Offset).Find(&users).Error; err != nil {
		utils.RespondError(ctx, err)
		return
	}
	utils.RespondPaginated(ctx, "Users fetched", users, utils.NewPageMeta(page, total))
}

// UpdateUserStatus suspends, deactivates or restores an account. Leaving the
// active state ends every session of the user.
func UpdateUserStatus(ctx *gin.Context) {
	var req updateUserStatusRequest
	if !bindJSON(ctx, &req) {
		return
	}
	id, err := utils.ParamID(ctx, "id")
	if err != nil {
		utils.RespondError(ctx, err)
		return
	}
	admin := utils.MustCurrentUser(ctx)
	if id == admin.ID {
		utils.RespondError(ctx, utils.Forbidden("You cannot change your own account status"))
		return
	}

	var user models.User
	if err := initializers.DB.First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.RespondError(ctx, utils.NotFound("User not found"))
			return
		}
		utils.RespondError(ctx, err)
		return
	}

	err = initializers.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&user).Update("status", req.Status).Error; err != nil {
			return err
		}
		if req.Status != models.UserStatusActive {
			return services.RevokeAllForUser(tx, user.ID)
		}
		return nil
	})
	if err != nil {
		utils.RespondError(ctx, err)
		return
	}

	initializers.Log.WithField("admin_id", admin.ID).WithField("user_id", user.ID).WithField("status", req.Status).Info("User status changed")
	message := "Your account is now " + req.Status
	if req.Reason != "" {
		message += ": " + req.Reason
	}
	services.Notify(initializers.DB, user.ID, models.NotificationAccount, "Account status changed", message, gin.H{"status": req.Status})
	utils.RespondOK(ctx, "User status updated", user)
}

func GetDashboardStats(ctx *gin.Context) {
	var (
		stats dashboardStats
		err   error
	)
	if stats.UsersByRole, err = countBy(&models.User{}, "role"); err != nil {
		utils.RespondError(ctx, err)
		return
	}
	if stats.UsersByStatus, err = countBy(&models.User{}, "status"); err != nil {
		utils.RespondError(ctx, err)
		return
	}
	if stats.OrdersByStatus, err = countBy(&models.Order{}, "status"); err != nil {
		utils.RespondError(ctx, err)
		return
	}
	if err := initializers.DB.Model(&models.Product{}).Count(&stats.Products).Error; err != nil {
		utils.RespondError(ctx, err)
		return
	}
	if err := initializers.DB.Model(&models.Product{}).Where("is_active = ?", true).Count(&stats.ActiveProducts).Error; err != nil {
		utils.RespondError(ctx, err)
		return
	}
	if stats.Revenue, err = sumOrders(initializers.DB.Model(&models.Order{}).
		Where("payment_status = ? AND status NOT IN ?", models.PaymentStatusCompleted,
			[]string{models.OrderStatusRefunded, models.OrderStatusCancelled})); err != nil {
		utils.RespondError(ctx, err)
		return
	}
	if stats.RefundDue, err = sumOrders(initializers.DB.Model(&models.Order{}).
		Where("payment_status = ? AND status = ?", models.PaymentStatusCompleted, models.OrderStatusCancelled)); err != nil {
		utils.RespondError(ctx, err)
		return
	}

	utils.RespondOK(ctx, "Dashboard stats fetched", stats)
}
