package controllers

import (
	"errors"
	"math"

	"github.com/Kariqs/amexan-marketplace/initializers"
	"github.com/Kariqs/amexan-marketplace/models"
	"github.com/Kariqs/amexan-marketplace/utils"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type reviewRequest struct {
	Rating  int    `json:"rating" binding:"required,min=1,max=5"`
	Comment string `json:"comment" binding:"max=2000"`
}

// refreshProductRating recomputes the review aggregates stored on a product.
func refreshProductRating(tx *gorm.DB, productID uint) error {
	var agg struct {
		Average float64
		Total   int
	}
	if err := tx.Model(&models.Review{}).
		Select("COALESCE(AVG(rating), 0) AS average, COUNT(*) AS total").
		Where("product_id = ?", productID).
		Scan(&agg).Error; err != nil {
		return err
	}
	return tx.Model(&models.Product{}).Where("id = ?", productID).UpdateColumns(map[string]any{
		"average_rating": math.Round(agg.Average*100) / 100,
		"review_count":   agg.Total,
	}).Error
}

func GetProductReviews(ctx *gin.Context) {
	productID, err := utils.ParamID(ctx, "id")
	if err != nil {
		utils.RespondError(ctx, err)
		return
	}
	page := utils.ParsePagination(ctx)

	var total int64
	if err := initializers.DB.Model(&models.Review{}).Where("product_id = ?", productID).Count(&total).Error; err != nil {
		utils.RespondError(ctx, err)
		return
	}

	var reviews []models.Review
	if err := initializers.DB.
		Preload("User", func(db *gorm.DB) *gorm.DB { return db.Select("id", "name") }).
		Where("product_id = ?", productID).
		Order("created_at DESC").
		Limit(page.Limit).
		Offset(page.Offset).
		Find(&reviews).Error; err != nil {
		utils.RespondError(ctx, err)
		return
	}

	utils.RespondPaginated(ctx, "Reviews fetched", reviews, utils.NewPageMeta(page, total))
}

// CreateReview accepts one review per buyer per product, and only for
// products the buyer has received.
func CreateReview(ctx *gin.Context) {
	productID, err := utils.ParamID(ctx, "id")
	if err != nil {
		utils.RespondError(ctx, err)
		return
	}
	var req reviewRequest
	if !bindJSON(ctx, &req) {
		return
	}
	user := utils.MustCurrentUser(ctx)

	var product models.Product
	if err := initializers.DB.Select("id").Where("id = ? AND is_active = ?", productID, true).First(&product).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.RespondError(ctx, utils.NotFound("Product not found"))
			return
		}
		utils.RespondError(ctx, err)
		return
	}

	var delivered int64
	if err := initializers.DB.Model(&models.OrderItem{}).
		Joins("JOIN orders ON orders.id = order_items.order_id AND orders.deleted_at IS NULL").
		Where("orders.buyer_id = ? AND orders.status = ? AND order_items.product_id = ?",
			user.ID, models.OrderStatusDelivered, productID).
		Count(&delivered).Error; err != nil {
		utils.RespondError(ctx, err)
		return
	}
	if delivered == 0 {
		utils.RespondError(ctx, utils.Forbidden("You can only review products from your delivered orders"))
		return
	}

	review := models.Review{ProductID: productID, UserID: user.ID, Rating: req.Rating, Comment: req.Comment}
	err = initializers.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&review).Error; err != nil {
			return err
		}
		return refreshProductRating(tx, productID)
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			utils.RespondError(ctx, utils.Conflict("You have already reviewed this product"))
			return
		}
		utils.RespondError(ctx, err)
		return
	}
	utils.RespondCreated(ctx, "Review added", review)
}

func DeleteReview(ctx *gin.Context) {
	id, err := utils.ParamID(ctx, "id")
	if err != nil {
		utils.RespondError(ctx, err)
		return
	}
	user := utils.MustCurrentUser(ctx)

	var review models.Review
	if err := initializers.DB.First(&review, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.RespondError(ctx, utils.NotFound("Review not found"))
			return
		}
		utils.RespondError(ctx, err)
		return
	}
	if review.UserID != user.ID && user.Role != models.RoleAdmin {
		utils.RespondError(ctx, utils.Forbidden("You can only delete your own reviews"))
		return
	}

	err = initializers.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&review).Error; err != nil {
			return err
		}
		return refreshProductRating(tx, review.ProductID)
	})
	if err != nil {
		utils.RespondError(ctx, err)
		return
	}
	utils.RespondOK(ctx, "Review deleted", nil)
}
