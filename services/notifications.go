package services

import (
	"encoding/json"

	"github.com/Kariqs/amexan-marketplace/initializers"
	"github.com/Kariqs/amexan-marketplace/models"
	"github.com/Kariqs/amexan-marketplace/realtime"
	"github.com/Kariqs/amexan-marketplace/utils"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Notify stores a notification and pushes it to the user's room. Failures are
// logged; a notification never fails the request that triggered it.
func Notify(db *gorm.DB, userID uint, kind, title, message string, data any) *models.Notification {
	n := models.Notification{UserID: userID, Type: kind, Title: title, Message: message}
	if data != nil {
		raw, err := json.Marshal(data)
		if err == nil {
			n.Data = datatypes.JSON(raw)
		}
	}

	if err := db.Create(&n).Error; err != nil {
		initializers.Log.WithError(err).WithField("user_id", userID).Error("Failed to store notification")
		return nil
	}
	emitToUser(userID, realtime.EventNotificationNew, n)
	return &n
}

// NotifyStore notifies the store owner and every active staff member whose
// sub-role grants perm.
func NotifyStore(db *gorm.DB, storeID uint, perm, kind, title, message string, data any) {
	Notify(db, storeID, kind, title, message, data)

	var staff []models.User
	if err := db.Select("id", "seller_role").
		Where("store_id = ? AND status = ?", storeID, models.UserStatusActive).
		Find(&staff).Error; err != nil {
		initializers.Log.WithError(err).WithField("store_id", storeID).Error("Failed to load store staff")
		return
	}
	for _, member := range staff {
		if models.HasSellerPermission(member.SellerRole, perm) {
			Notify(db, member.ID, kind, title, message, data)
		}
	}
}

// SendEmailAsync renders a template and hands it to the mailer without
// blocking the request.
func SendEmailAsync(to, subject, template string, data utils.EmailData) {
	mailer := initializers.Mailer
	if mailer == nil || to == "" {
		return
	}
	if data.LogoURL == "" {
		data.LogoURL = initializers.Config.LogoURL
	}

	go func() {
		log := initializers.Log.WithFields(logrus.Fields{"to": to, "template": template})
		body, err := utils.RenderEmail(template, data)
		if err != nil {
			log.WithError(err).Error("Failed to render email")
			return
		}
		if err := mailer.Send(to, subject, body); err != nil {
			log.WithError(err).Error("Failed to send email")
			return
		}
		log.Info("Email sent")
	}()
}

func emitToUser(userID uint, event string, data any) {
	if initializers.Hub != nil {
		initializers.Hub.EmitToUser(userID, event, data)
	}
}

func emitToStore(storeID uint, event string, data any) {
	if initializers.Hub != nil {
		initializers.Hub.EmitToStore(storeID, event, data)
	}
}

func emitToAdmins(event string, data any) {
	if initializers.Hub != nil {
		initializers.Hub.EmitToRole(models.RoleAdmin, event, data)
	}
}
