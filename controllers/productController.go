package controllers

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/Kariqs/amexan-marketplace/initializers"
	"github.com/Kariqs/amexan-marketplace/models"
	"github.com/Kariqs/amexan-marketplace/utils"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var productSorts = map[string]string{
	"":           "created_at DESC",
	"newest":     "created_at DESC",
	"price_asc":  "price ASC",
	"price_desc": "price DESC",
	"rating":     "average_rating DESC, review_count DESC",
}

type createProductRequest struct {
	Title         string           `json:"title" binding:"required,min=2,max=200"`
	Description   string           `json:"description" binding:"max=10000"`
	Price         decimal.Decimal  `json:"price"`
	DiscountPrice *decimal.Decimal `json:"discountPrice"`
	DiscountStart *time.Time       `json:"discountStart"`
	DiscountEnd   *time.Time       `json:"discountEnd"`
	Stock         int              `json:"stock" binding:"gte=0"`
	SKU           string           `json:"sku" binding:"max=64"`
	CategoryID    uint             `json:"categoryId" binding:"required"`
	Attributes    json.RawMessage  `json:"attributes"`
	Images        []string         `json:"images" binding:"max=10,dive,url"`
}

type updateProductRequest struct {
	Title         *string          `json:"title" binding:"omitempty,min=2,max=200"`
	Description   *string          `json:"description" binding:"omitempty,max=10000"`
	Price         *decimal.Decimal `json:"price"`
	DiscountPrice *decimal.Decimal `json:"discountPrice"`
	DiscountStart *time.Time       `json:"discountStart"`
	DiscountEnd   *time.Time       `json:"discountEnd"`
	ClearDiscount bool             `json:"clearDiscount"`
	SKU           *string          `json:"sku" binding:"omitempty,max=64"`
	CategoryID    *uint            `json:"categoryId"`
	IsActive      *bool            `json:"isActive"`
	Attributes    json.RawMessage  `json:"attributes"`
	Images        []string         `json:"images" binding:"omitempty,max=10,dive,url"`
}

type updateStockRequest struct {
	Stock *int `json:"stock" binding:"required,gte=0"`
}

// validatePricing checks the price and discount window of a product.
func validatePricing(p models.Product) error {
	fields := map[string]string{}
	if !p.Price.IsPositive() {
		fields["price"] = "must be greater than 0"
	}
	if p.DiscountPrice.Valid {
		if !p.DiscountPrice.Decimal.IsPositive() {
			fields["discountPrice"] = "must be greater than 0"
		} else if !p.DiscountPrice.Decimal.LessThan(p.Price) {
			fields["discountPrice"] = "must be less than price"
		}
	}
	if p.DiscountStart != nil && p.DiscountEnd != nil && !p.DiscountEnd.After(*p.DiscountStart) {
		fields["discountEnd"] = "must be after discountStart"
	}
	if len(fields) > 0 {
		return utils.ValidationFailed(fields)
	}
	return nil
}

func ensureCategory(id uint) error {
	var count int64
	if err := initializers.DB.Model(&models.Category{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return utils.ValidationFailed(map[string]string{"categoryId": "does not exist"})
	}
	return nil
}

func imagesFromURLs(urls []string) []models.ProductImage {
	images := make([]models.ProductImage, len(urls))
	for i, u := range urls {
		images[i] = models.ProductImage{URL: u, Position: i}
	}
	return images
}

// findStoreProduct loads a product owned by the caller's store. Admins can
// reach any product.
func findStoreProduct(ctx *gin.Context, db *gorm.DB) (models.Product, error) {
	var product models.Product
	id, err := utils.ParamID(ctx, "id")
	if err != nil {
		return product, err
	}

	user := utils.MustCurrentUser(ctx)
	query := db.Where("id = ?", id)
	if user.Role != models.RoleAdmin {
		query = query.Where("seller_id = ?", user.EffectiveStoreID())
	}
	if err := query.First(&product).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return product, utils.NotFound("Product not found")
		}
		return product, err
	}
	return product, nil
}

func CreateProduct(ctx *gin.Context) {
	var req createProductRequest
	if !bindJSON(ctx, &req) {
		return
	}
	storeID, err := storeOf(utils.MustCurrentUser(ctx))
	if err != nil {
		utils.RespondError(ctx, err)
		return
	}

	product := models.Product{
		Title:         strings.TrimSpace(req.Title),
		Slug:          utils.Slugify(req.Title),
		Description:   req.Description,
		Price:         req.Price,
		DiscountStart: req.DiscountStart,
		DiscountEnd:   req.DiscountEnd,
		Stock:         req.Stock,
		SKU:           req.SKU,
		SellerID:      storeID,
		CategoryID:    req.CategoryID,
		IsActive:      true,
		Images:        imagesFromURLs(req.Images),
	}
	if req.DiscountPrice != nil {
		product.DiscountPrice = decimal.NewNullDecimal(*req.DiscountPrice)
	}
	if len(req.Attributes) > 0 {
		product.Attributes = datatypes.JSON(req.Attributes)
	}

	if err := validatePricing(product); err != nil {
		utils.RespondError(ctx, err)
		return
	}
	if err := ensureCategory(req.CategoryID); err != nil {
		utils.RespondError(ctx, err)
		return
	}
	if product.SKU == "" {
		code, err := utils.GenerateCode(4)
		if err != nil {
			utils.RespondError(ctx, utils.Internal("Failed to generate SKU", err))
			return
		}
		product.SKU = "SKU-" + strings.ToUpper(code)
	}

	if err := initializers.DB.Create(&product).Error; err != nil {
		utils.RespondError(ctx, err)
		return
	}
	utils.RespondCreated(ctx, "Product created successfully", product)
}

func UpdateProduct(ctx *gin.Context) {
	var req updateProductRequest
	if !bindJSON(ctx, &req) {
		return
	}
	product, err := findStoreProduct(ctx, initializers.DB)
	if err != nil {
		utils.RespondError(ctx, err)
		return
	}

	if req.Title != nil {
		product.Title = strings.TrimSpace(*req.Title)
		product.Slug = utils.Slugify(product.Title)
	}
	if req.Description != nil {
		product.Description = *req.Description
	}
	if req.Price != nil {
		product.Price = *req.Price
	}
	if req.DiscountPrice != nil {
		product.DiscountPrice = decimal.NewNullDecimal(*req.DiscountPrice)
	}
	if req.DiscountStart != nil {
		product.DiscountStart = req.DiscountStart
	}
	if req.DiscountEnd != nil {
		product.DiscountEnd = req.DiscountEnd
	}
	if req.ClearDiscount {
		product.DiscountPrice = decimal.NullDecimal{}
		product.DiscountStart = nil
		product.DiscountEnd = nil
	}
	if req.SKU != nil {
		product.SKU = *req.SKU
	}
	if req.IsActive != nil {
		product.IsActive = *req.IsActive
	}
	if len(req.Attributes) > 0 {
		product.Attributes = datatypes.JSON(req.Attributes)
	}
	if req.CategoryID != nil && *req.CategoryID != product.CategoryID {
		if err := ensureCategory(*req.CategoryID); err != nil {
			utils.RespondError(ctx, err)
			return
		}
		product.CategoryID = *req.CategoryID
	}
	if err := validatePricing(product); err != nil {
		utils.RespondError(ctx, err)
		return
	}

	err = initializers.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Images", "Category").Save(&product).Error; err != nil {
			return err
		}
		if req.Images == nil {
			return nil
		}
		if err := tx.Unscoped().Where("product_id = ?", product.ID).Delete(&models.ProductImage{}).Error; err != nil {
			return err
		}
		product.Images = imagesFromURLs(req.Images)
		for i := range product.Images {
			product.Images[i].ProductID = product.ID
		}
		if len(product.Images) == 0 {
			return nil
		}
		return tx.Create(&product.Images).Error
	})
	if err != nil {
		utils.RespondError(ctx, err)
		return
	}
	utils.RespondOK(ctx, "Product updated successfully", product)
}

func UpdateProductStock(ctx *gin.Context) {
	var req updateStockRequest
	if !bindJSON(ctx, &req) {
		return
	}
	product, err := findStoreProduct(ctx, initializers.DB)
	if err != nil {
		utils.RespondError(ctx, err)
		return
	}

	if err := initializers.DB.Model(&product).UpdateColumn("stock", *req.Stock).Error; err != nil {
		utils.RespondError(ctx, err)
		return
	}
	product.Stock = *req.Stock
	utils.RespondOK(ctx, "Stock updated successfully", product)
}

// DeleteProduct hard-deletes a product nobody has ordered. Ordered products
// are deactivated so order history keeps resolving.
func DeleteProduct(ctx *gin.Context) {
	product, err := findStoreProduct(ctx, initializers.DB)
	if err != nil {
		utils.RespondError(ctx, err)
		return
	}

	var ordered int64
	if err := initializers.DB.Model(&models.OrderItem{}).Where("product_id = ?", product.ID).Count(&ordered).Error; err != nil {
		utils.RespondError(ctx, err)
		return
	}

	if ordered > 0 {
		err := initializers.DB.Transaction(func(tx *gorm.DB) error {
			if err := tx.Model(&product).Update("is_active", false).Error; err != nil {
				return err
			}
			return tx.Where("product_id = ?", product.ID).Delete(&models.CartItem{}).Error
		})
		if err != nil {
			utils.RespondError(ctx, err)
			return
		}
		utils.RespondOK(ctx, "Product has existing orders and was deactivated", gin.H{"id": product.ID, "deleted": false, "deactivated": true})
		return
	}

	err = initializers.DB.Transaction(func(tx *gorm.DB) error {
		for _, model := range []any{&models.ProductImage{}, &models.CartItem{}, &models.Review{}} {
			if err := tx.Unscoped().Where("product_id = ?", product.ID).Delete(model).Error; err != nil {
				return err
			}
		}
		return tx.Unscoped().Delete(&product).Error
	})
	if err != nil {
		utils.RespondError(ctx, err)
		return
	}
	utils.RespondOK(ctx, "Product deleted successfully", gin.H{"id": product.ID, "deleted": true, "deactivated": false})
}

func parseDecimalQuery(ctx *gin.Context, key string) (*decimal.Decimal, error) {
	raw := ctx.Query(key)
	if raw == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil || d.IsNegative() {
		return nil, utils.ValidationFailed(map[string]string{key: "must be a non-negative number"})
	}
	return &d, nil
}

// productFilters applies the catalog query string shared by the public and
// seller listings.
func productFilters(ctx *gin.Context, query *gorm.DB) (*gorm.DB, error) {
	if q := strings.TrimSpace(ctx.Query("search")); q != "" {
		like := "%" + q + "%"
		query = query.Where("products.title LIKE ? OR products.description LIKE ?", like, like)
	}
	if raw := ctx.Query("categoryId"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return nil, utils.ValidationFailed(map[string]string{"categoryId": "must be a number"})
		}
		query = query.Where("products.category_id = ?", id)
	}
	if slug := ctx.Query("category"); slug != "" {
		query = query.Where("products.category_id IN (?)",
			initializers.DB.Model(&models.Category{}).Select("id").Where("slug = ?", slug))
	}

	minPrice, err := parseDecimalQuery(ctx, "minPrice")
	if err != nil {
		return nil, err
	}
	maxPrice, err := parseDecimalQuery(ctx, "maxPrice")
	if err != nil {
		return nil, err
	}
	if minPrice != nil && maxPrice != nil && minPrice.GreaterThan(*maxPrice) {
		return nil, utils.ValidationFailed(map[string]string{"minPrice": "must not exceed maxPrice"})
	}
	if minPrice != nil {
		query = query.Where("products.price >= ?", *minPrice)
	}
	if maxPrice != nil {
		query = query.Where("products.price <= ?", *maxPrice)
	}
	return query, nil
}

func listProducts(ctx *gin.Context, base *gorm.DB, message string) {
	sort, ok := productSorts[ctx.Query("sort")]
	if !ok {
		utils.RespondError(ctx, utils.ValidationFailed(map[string]string{"sort": "must be one of: newest, price_asc, price_desc, rating"}))
		return
	}
	query, err := productFilters(ctx, base)
	if err != nil {
		utils.RespondError(ctx, err)
		return
	}

	page := utils.ParsePagination(ctx)
	var total int64
	if err := query.Session(&gorm.Session{}).Model(&models.Product{}).Count(&total).Error; err != nil {
		utils.RespondError(ctx, err)
		return
	}

	var products []models.Product
	if err := query.Preload("Images", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Preload("Category").
		Order(sort).
		Limit(page.Limit).
		Offset(page.Offset).
		Find(&products).Error; err != nil {
		utils.RespondError(ctx, err)
		return
	}

	utils.RespondPaginated(ctx, message, products, utils.NewPageMeta(page, total))
}

// GetProducts is the public catalog. Only active products are listed.
func GetProducts(ctx *gin.Context) {
	base := initializers.DB.Model(&models.Product{}).Where("products.is_active = ?", true)
	if raw := ctx.Query("sellerId"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			utils.RespondError(ctx, utils.ValidationFailed(map[string]string{"sellerId": "must be a number"}))
			return
		}
		base = base.Where("products.seller_id = ?", id)
	}
	listProducts(ctx, base, "Products fetched")
}

// GetSellerProducts lists the caller's store catalog including inactive items.
func GetSellerProducts(ctx *gin.Context) {
	user := utils.MustCurrentUser(ctx)
	base := initializers.DB.Model(&models.Product{}).Where("products.seller_id = ?", user.EffectiveStoreID())
	switch ctx.Query("status") {
	case "active":
		base = base.Where("products.is_active = ?", true)
	case "inactive":
		base = base.Where("products.is_active = ?", false)
	}
	listProducts(ctx, base, "Store products fetched")
}

func GetProduct(ctx *gin.Context) {
	id, err := utils.ParamID(ctx, "id")
	if err != nil {
		utils.RespondError(ctx, err)
		return
	}

	var product models.Product
	err = initializers.DB.
		Preload("Images", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Preload("Category").
		Where("id = ?", id).
		First(&product).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.RespondError(ctx, utils.NotFound("Product not found"))
			return
		}
		utils.RespondError(ctx, err)
		return
	}

	if !product.IsActive && !canManageProduct(ctx, product) {
		utils.RespondError(ctx, utils.NotFound("Product not found"))
		return
	}
	utils.RespondOK(ctx, "Product fetched", product)
}

func canManageProduct(ctx *gin.Context, product models.Product) bool {
	user, ok := utils.CurrentUser(ctx)
	if !ok {
		return false
	}
	return user.Role == models.RoleAdmin || (user.Role == models.RoleSeller && user.EffectiveStoreID() == product.SellerID)
}
