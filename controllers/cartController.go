package controllers

import (
	"errors"
	"fmt"
	"time"

	"github.com/Kariqs/amexan-marketplace/initializers"
	"github.com/Kariqs/amexan-marketplace/models"
	"github.com/Kariqs/amexan-marketplace/utils"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type addToCartRequest struct {
	ProductID uint `json:"productId" binding:"required"`
	Quantity  int  `json:"quantity" binding:"omitempty,min=1,max=1000"`
}

type updateCartRequest struct {
	Quantity int `json:"quantity" binding:"required,min=1,max=1000"`
}

type cartLine struct {
	ID        uint            `json:"id"`
	ProductID uint            `json:"productId"`
	Title     string          `json:"title"`
	Image     string          `json:"image,omitempty"`
	SellerID  uint            `json:"sellerId"`
	Quantity  int             `json:"quantity"`
	Stock     int             `json:"stock"`
	Available bool            `json:"available"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	LineTotal decimal.Decimal `json:"lineTotal"`
}

type cartResponse struct {
	Items     []cartLine      `json:"items"`
	ItemCount int             `json:"itemCount"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

// buildCart prices each line at the product's current effective price.
// Lines whose product was deactivated or no longer has enough stock are
// marked unavailable and left out of the subtotal.
func buildCart(items []models.CartItem, now time.Time) cartResponse {
	cart := cartResponse{Items: make([]cartLine, 0, len(items)), Subtotal: decimal.Zero}
	for _, it := range items {
		line := cartLine{ID: it.ID, ProductID: it.ProductID, Quantity: it.Quantity}
		if p := it.Product; p != nil {
			line.Title = p.Title
			line.SellerID = p.SellerID
			line.Stock = p.Stock
			line.Available = p.IsActive && p.Stock >= it.Quantity
			line.UnitPrice = p.EffectivePrice(now)
			line.LineTotal = line.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity)))
			if len(p.Images) > 0 {
				line.Image = p.Images[0].URL
			}
		}
		if line.Available {
			cart.Subtotal = cart.Subtotal.Add(line.LineTotal)
			cart.ItemCount += it.Quantity
		}
		cart.Items = append(cart.Items, line)
	}
	return cart
}

func loadCart(userID uint) ([]models.CartItem, error) {
	var items []models.CartItem
	err := initializers.DB.
		Preload("Product").
		Preload("Product.Images", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Find(&items).Error
	return items, err
}

func respondCart(ctx *gin.Context, message string, userID uint) {
	items, err := loadCart(userID)
	if err != nil {
		utils.RespondError(ctx, err)
		return
	}
	utils.RespondOK(ctx, message, buildCart(items, time.Now()))
}

func findActiveProduct(id uint) (models.Product, error) {
	var product models.Product
	if err := initializers.DB.Where("id = ? AND is_active = ?", id, true).First(&product).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return product, utils.NotFound("Product not found")
		}
		return product, err
	}
	return product, nil
}

func checkStock(product models.Product, quantity int) error {
	if quantity > product.Stock {
		return utils.Conflict(fmt.Sprintf("Only %d of %s left in stock", product.Stock, product.Title))
	}
	return nil
}

func GetCart(ctx *gin.Context) {
	respondCart(ctx, "Cart fetched", utils.MustCurrentUser(ctx).ID)
}

// AddToCart increments the quantity when the product is already in the cart.
func AddToCart(ctx *gin.Context) {
	var req addToCartRequest
	if !bindJSON(ctx, &req) {
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}
	user := utils.MustCurrentUser(ctx)

	product, err := findActiveProduct(req.ProductID)
	if err != nil {
		utils.RespondError(ctx, err)
		return
	}

	var item models.CartItem
	err = initializers.DB.Where("user_id = ? AND product_id = ?", user.ID, product.ID).First(&item).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		if err := checkStock(product, req.Quantity); err != nil {
			utils.RespondError(ctx, err)
			return
		}
		item = models.CartItem{UserID: user.ID, ProductID: product.ID, Quantity: req.Quantity}
		err = initializers.DB.Create(&item).Error
	case err == nil:
		if err := checkStock(product, item.Quantity+req.Quantity); err != nil {
			utils.RespondError(ctx, err)
			return
		}
		err = initializers.DB.Model(&item).Update("quantity", item.Quantity+req.Quantity).Error
	}
	if err != nil {
		utils.RespondError(ctx, err)
		return
	}

	respondCart(ctx, "Item added to cart", user.ID)
}

func UpdateCartItem(ctx *gin.Context) {
	productID, err := utils.ParamID(ctx, "productId")
	if err != nil {
		utils.RespondError(ctx, err)
		return
	}
	var req updateCartRequest
	if !bindJSON(ctx, &req) {
		return
	}
	user := utils.MustCurrentUser(ctx)

	product, err := findActiveProduct(productID)
	if err != nil {
		utils.RespondError(ctx, err)
		return
	}
	if err := checkStock(product, req.Quantity); err != nil {
		utils.RespondError(ctx, err)
		return
	}

	result := initializers.DB.Model(&models.CartItem{}).
		Where("user_id = ? AND product_id = ?", user.ID, productID).
		Update("quantity", req.Quantity)
	if result.Error != nil {
		utils.RespondError(ctx, result.Error)
		return
	}
	if result.RowsAffected == 0 {
		utils.RespondError(ctx, utils.NotFound("Item is not in the cart"))
		return
	}

	respondCart(ctx, "Cart updated", user.ID)
}

func RemoveCartItem(ctx *gin.Context) {
	productID, err := utils.ParamID(ctx, "productId")
	if err != nil {
		utils.RespondError(ctx, err)
		return
	}
	user := utils.MustCurrentUser(ctx)

	result := initializers.DB.Where("user_id = ? AND product_id = ?", user.ID, productID).Delete(&models.CartItem{})
	if result.Error != nil {
		utils.RespondError(ctx, result.Error)
		return
	}
	if result.RowsAffected == 0 {
		utils.RespondError(ctx, utils.NotFound("Item is not in the cart"))
		return
	}

	respondCart(ctx, "Item removed from cart", user.ID)
}

func ClearCart(ctx *gin.Context) {
	user := utils.MustCurrentUser(ctx)
	if err := initializers.DB.Where("user_id = ?", user.ID).Delete(&models.CartItem{}).Error; err != nil {
		utils.RespondError(ctx, err)
		return
	}
	utils.RespondOK(ctx, "Cart cleared", buildCart(nil, time.Now()))
}
