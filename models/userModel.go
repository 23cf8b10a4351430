package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	RoleBuyer  = "buyer"
	RoleSeller = "seller"
	RoleAdmin  = "admin"
)

const (
	UserStatusActive      = "active"
	UserStatusSuspended   = "suspended"
	UserStatusDeactivated = "deactivated"
)

type User struct {
	gorm.Model
	Name                 string     `json:"name" gorm:"size:120"`
	Email                string     `json:"email" gorm:"size:191;uniqueIndex"`
	Phone                string     `json:"phone" gorm:"size:32"`
	Password             string     `json:"-"`
	Role                 string     `json:"role" gorm:"size:16;index;default:buyer"`
	SellerRole           string     `json:"sellerRole,omitempty" gorm:"size:32"`
	StoreID              *uint      `json:"storeId,omitempty" gorm:"index"`
	StoreName            string     `json:"storeName,omitempty" gorm:"size:120"`
	Status               string     `json:"status" gorm:"size:16;index;default:active"`
	EmailVerified        bool       `json:"emailVerified"`
	VerificationToken    string     `json:"-" gorm:"size:64;index"`
	PasswordResetToken   string     `json:"-" gorm:"size:64;index"`
	PasswordResetExpires *time.Time `json:"-"`
}

// EffectiveStoreID is the seller account that owns the store this user works for.
// Store owners have no StoreID and own the store themselves.
func (u User) EffectiveStoreID() uint {
	if u.StoreID != nil {
		return *u.StoreID
	}
	return u.ID
}

func (u User) IsActive() bool {
	return u.Status == UserStatusActive
}

type RefreshToken struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	UserID    uint      `json:"userId" gorm:"index;not null"`
	TokenHash string    `json:"-" gorm:"size:64;uniqueIndex;not null"`
	ExpiresAt time.Time `json:"expiresAt" gorm:"index"`
	UserAgent string    `json:"userAgent" gorm:"size:255"`
	IP        string    `json:"ip" gorm:"size:64"`
	CreatedAt time.Time `json:"createdAt"`
}

func (t RefreshToken) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}
