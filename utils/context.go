package utils

import (
	"strconv"

	"github.com/Kariqs/amexan-marketplace/models"
	"github.com/gin-gonic/gin"
)

const (
	RequestIDKey = "requestId"
	UserKey      = "user"
	ClaimsKey    = "claims"
)

// CurrentUser returns the authenticated user stored by the auth middleware.
func CurrentUser(ctx *gin.Context) (models.User, bool) {
	v, ok := ctx.Get(UserKey)
	if !ok {
		return models.User{}, false
	}
	user, ok := v.(models.User)
	return user, ok
}

func MustCurrentUser(ctx *gin.Context) models.User {
	user, _ := CurrentUser(ctx)
	return user
}

// ParamID parses a positive numeric path parameter.
func ParamID(ctx *gin.Context, name string) (uint, error) {
	id, err := strconv.ParseUint(ctx.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, BadRequest("Invalid " + name)
	}
	return uint(id), nil
}
