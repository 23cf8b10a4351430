package controllers

import (
	"time"

	"github.com/Kariqs/amexan-marketplace/initializers"
	"github.com/Kariqs/amexan-marketplace/models"
	"github.com/Kariqs/amexan-marketplace/utils"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

func GetNotifications(ctx *gin.Context) {
	user := utils.MustCurrentUser(ctx)
	query := initializers.DB.Model(&models.Notification{}).Where("user_id = ?", user.ID)
	if ctx.Query("unread") == "true" {
		query = query.Where("is_read = ?", false)
	}

	page := utils.ParsePagination(ctx)
	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		utils.RespondError(ctx, err)
		return
	}

	var notifications []models.Notification
	if err := query.Order("created_at DESC").Limit(page.Limit).Offset(page.Offset).Find(&notifications).Error; err != nil {
		utils.RespondError(ctx, err)
		return
	}
	utils.RespondPaginated(ctx, "Notifications fetched", notifications, utils.NewPageMeta(page, total))
}

func GetUnreadCount(ctx *gin.Context) {
	user := utils.MustCurrentUser(ctx)
	var count int64
	if err := initializers.DB.Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", user.ID, false).
		Count(&count).Error; err != nil {
		utils.RespondError(ctx, err)
		return
	}
	utils.RespondOK(ctx, "Unread count fetched", gin.H{"count": count})
}

func MarkNotificationRead(ctx *gin.Context) {
	id, err := utils.ParamID(ctx, "id")
	if err != nil {
		utils.RespondError(ctx, err)
		return
	}
	user := utils.MustCurrentUser(ctx)

	result := initializers.DB.Model(&models.Notification{}).
		Where("id = ? AND user_id = ?", id, user.ID).
		Updates(map[string]any{"is_read": true, "read_at": time.Now()})
	if result.Error != nil {
		utils.RespondError(ctx, result.Error)
		return
	}
	if result.RowsAffected == 0 {
		var exists int64
		initializers.DB.Model(&models.Notification{}).Where("id = ? AND user_id = ?", id, user.ID).Count(&exists)
		if exists == 0 {
			utils.RespondError(ctx, utils.NotFound("Notification not found"))
			return
		}
	}
	utils.RespondOK(ctx, "Notification marked as read", nil)
}

func MarkAllNotificationsRead(ctx *gin.Context) {
	user := utils.MustCurrentUser(ctx)
	result := initializers.DB.Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", user.ID, false).
		Updates(map[string]any{"is_read": true, "read_at": time.Now()})
	if result.Error != nil {
		utils.RespondError(ctx, result.Error)
		return
	}
	utils.RespondOK(ctx, "All notifications marked as read", gin.H{"updated": result.RowsAffected})
}
