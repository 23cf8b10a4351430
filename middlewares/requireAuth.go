package middlewares

import (
	"errors"
	"strings"

	"github.com/Kariqs/amexan-marketplace/initializers"
	"github.com/Kariqs/amexan-marketplace/models"
	"github.com/Kariqs/amexan-marketplace/utils"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

const AccessTokenCookie = "access_token"

// RequireAuth accepts a bearer token or the access_token cookie, loads the
// user and rejects accounts that are not active.
func RequireAuth() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		token := extractToken(ctx)
		if token == "" {
			utils.AbortWithError(ctx, utils.Unauthorized("Authentication required"))
			return
		}

		user, claims, err := authenticate(token)
		if err != nil {
			utils.RespondError(ctx, err)
			return
		}

		ctx.Set(utils.UserKey, user)
		ctx.Set(utils.ClaimsKey, claims)
		ctx.Next()
	}
}

// OptionalAuth attaches the user when a valid token is present and otherwise
// lets the request through anonymously.
func OptionalAuth() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if token := extractToken(ctx); token != "" {
			if user, claims, err := authenticate(token); err == nil {
				ctx.Set(utils.UserKey, user)
				ctx.Set(utils.ClaimsKey, claims)
			}
		}
		ctx.Next()
	}
}

func extractToken(ctx *gin.Context) string {
	header := ctx.GetHeader("Authorization")
	if scheme, token, ok := strings.Cut(header, " "); ok && strings.EqualFold(scheme, "Bearer") {
		return strings.TrimSpace(token)
	}
	if cookie, err := ctx.Cookie(AccessTokenCookie); err == nil {
		return cookie
	}
	// Browsers cannot set headers on websocket upgrades.
	if ctx.IsWebsocket() {
		return ctx.Query("token")
	}
	return ""
}

func authenticate(token string) (models.User, *utils.Claims, error) {
	claims, err := utils.ParseAccessToken(token, initializers.Config.JWTSecret)
	if err != nil {
		return models.User{}, nil, utils.Unauthorized("Invalid or expired token")
	}

	var user models.User
	if err := initializers.DB.First(&user, claims.UserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.User{}, nil, utils.Unauthorized("User no longer exists")
		}
		return models.User{}, nil, err
	}
	if !user.IsActive() {
		return models.User{}, nil, utils.Forbidden("Account is " + user.Status)
	}
	return user, claims, nil
}
