package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Category struct {
	gorm.Model
	Name        string `json:"name" gorm:"size:120;uniqueIndex"`
	Slug        string `json:"slug" gorm:"size:140;uniqueIndex"`
	Description string `json:"description"`
	ParentID    *uint  `json:"parentId,omitempty" gorm:"index"`
}

type ProductImage struct {
	gorm.Model
	ProductID uint   `json:"productId" gorm:"index"`
	URL       string `json:"url"`
	Position  int    `json:"position"`
}

type Product struct {
	gorm.Model
	Title         string              `json:"title" gorm:"size:200;index"`
	Slug          string              `json:"slug" gorm:"size:220;index"`
	Description   string              `json:"description" gorm:"type:text"`
	Price         decimal.Decimal     `json:"price" gorm:"type:decimal(12,2);not null"`
	DiscountPrice decimal.NullDecimal `json:"discountPrice" gorm:"type:decimal(12,2)"`
	DiscountStart *time.Time          `json:"discountStart,omitempty"`
	DiscountEnd   *time.Time          `json:"discountEnd,omitempty"`
	Stock         int                 `json:"stock"`
	SKU           string              `json:"sku" gorm:"size:64;index"`
	SellerID      uint                `json:"sellerId" gorm:"index;not null"`
	CategoryID    uint                `json:"categoryId" gorm:"index"`
	Category      *Category           `json:"category,omitempty"`
	IsActive      bool                `json:"isActive" gorm:"index;default:true"`
	Attributes    datatypes.JSON      `json:"attributes,omitempty"`
	AverageRating float64             `json:"averageRating"`
	ReviewCount   int                 `json:"reviewCount"`
	Images        []ProductImage      `json:"images" gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
}

// DiscountActive reports whether the discount window covers now. A missing
// bound leaves that side of the window open.
func (p Product) DiscountActive(now time.Time) bool {
	if !p.DiscountPrice.Valid || !p.DiscountPrice.Decimal.LessThan(p.Price) {
		return false
	}
	if p.DiscountStart != nil && now.Before(*p.DiscountStart) {
		return false
	}
	if p.DiscountEnd != nil && now.After(*p.DiscountEnd) {
		return false
	}
	return true
}

func (p Product) EffectivePrice(now time.Time) decimal.Decimal {
	if p.DiscountActive(now) {
		return p.DiscountPrice.Decimal
	}
	return p.Price
}

// Reviews and cart lines are hard-deleted so the unique pair can be reused.
type Review struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	ProductID uint      `json:"productId" gorm:"uniqueIndex:idx_review_product_user;not null"`
	UserID    uint      `json:"userId" gorm:"uniqueIndex:idx_review_product_user;not null"`
	User      *User     `json:"user,omitempty"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment" gorm:"type:text"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type CartItem struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	UserID    uint      `json:"userId" gorm:"uniqueIndex:idx_cart_user_product;not null"`
	ProductID uint      `json:"productId" gorm:"uniqueIndex:idx_cart_user_product;not null"`
	Product   *Product  `json:"product,omitempty"`
	Quantity  int       `json:"quantity"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
