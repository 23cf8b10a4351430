package services

import (
	"errors"
	"time"

	"github.com/Kariqs/amexan-marketplace/initializers"
	"github.com/Kariqs/amexan-marketplace/models"
	"github.com/Kariqs/amexan-marketplace/utils"
	"gorm.io/gorm"
)

const refreshTokenBytes = 32

var (
	ErrRefreshTokenInvalid = utils.Unauthorized("Invalid refresh token")
	ErrRefreshTokenExpired = utils.Unauthorized("Refresh token expired")
	ErrAccountInactive     = utils.Forbidden("Account is not active")
)

type TokenPair struct {
	AccessToken           string    `json:"accessToken"`
	AccessTokenExpiresAt  time.Time `json:"accessTokenExpiresAt"`
	RefreshToken          string    `json:"refreshToken"`
	RefreshTokenExpiresAt time.Time `json:"refreshTokenExpiresAt"`
}

type ClientMeta struct {
	UserAgent string
	IP        string
}

// IssueTokenPair signs an access token and stores the hash of a new refresh token.
func IssueTokenPair(db *gorm.DB, user models.User, meta ClientMeta) (*TokenPair, error) {
	access, accessExp, err := utils.GenerateAccessToken(user, initializers.Config.JWTSecret, initializers.Config.AccessTokenTTL)
	if err != nil {
		return nil, err
	}

	raw, err := utils.GenerateOpaqueToken(refreshTokenBytes)
	if err != nil {
		return nil, err
	}

	stored := models.RefreshToken{
		UserID:    user.ID,
		TokenHash: utils.HashToken(raw),
		ExpiresAt: time.Now().Add(initializers.Config.RefreshTokenTTL),
		UserAgent: truncate(meta.UserAgent, 255),
		IP:        truncate(meta.IP, 64),
	}
	if err := db.Create(&stored).Error; err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:           access,
		AccessTokenExpiresAt:  accessExp,
		RefreshToken:          raw,
		RefreshTokenExpiresAt: stored.ExpiresAt,
	}, nil
}

// RotateRefreshToken consumes a refresh token and issues a new pair. A token
// can be consumed once; a second use is rejected.
func RotateRefreshToken(db *gorm.DB, raw string, meta ClientMeta) (*TokenPair, *models.User, error) {
	if raw == "" {
		return nil, nil, ErrRefreshTokenInvalid
	}

	var (
		pair    *TokenPair
		user    models.User
		expired bool
	)
	err := db.Transaction(func(tx *gorm.DB) error {
		var stored models.RefreshToken
		if err := tx.Where("token_hash = ?", utils.HashToken(raw)).First(&stored).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrRefreshTokenInvalid
			}
			return err
		}

		res := tx.Delete(&stored)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrRefreshTokenInvalid
		}
		if stored.Expired(time.Now()) {
			expired = true
			return nil
		}

		if err := tx.First(&user, stored.UserID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrRefreshTokenInvalid
			}
			return err
		}
		if !user.IsActive() {
			return ErrAccountInactive
		}

		var err error
		pair, err = IssueTokenPair(tx, user, meta)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	if expired {
		return nil, nil, ErrRefreshTokenExpired
	}
	return pair, &user, nil
}

// RevokeRefreshToken deletes a single refresh token. Unknown tokens are ignored.
func RevokeRefreshToken(db *gorm.DB, raw string) error {
	if raw == "" {
		return nil
	}
	return db.Where("token_hash = ?", utils.HashToken(raw)).Delete(&models.RefreshToken{}).Error
}

func RevokeAllForUser(db *gorm.DB, userID uint) error {
	return db.Where("user_id = ?", userID).Delete(&models.RefreshToken{}).Error
}

func PurgeExpiredRefreshTokens(db *gorm.DB, now time.Time) (int64, error) {
	res := db.Where("expires_at <= ?", now).Delete(&models.RefreshToken{})
	return res.RowsAffected, res.Error
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
