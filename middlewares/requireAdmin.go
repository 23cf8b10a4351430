package middlewares

import (
	"github.com/Kariqs/amexan-marketplace/models"
	"github.com/Kariqs/amexan-marketplace/utils"
	"github.com/gin-gonic/gin"
)

func RequireAdmin() gin.HandlerFunc {
	return RequireRoles(models.RoleAdmin)
}

// RequireRoles must run after RequireAuth. Admins pass every role check.
func RequireRoles(roles ...string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		user, exists := utils.CurrentUser(ctx)
		if !exists {
			utils.AbortWithError(ctx, utils.Unauthorized("Authentication required"))
			return
		}

		if user.Role == models.RoleAdmin {
			ctx.Next()
			return
		}
		for _, role := range roles {
			if user.Role == role {
				ctx.Next()
				return
			}
		}

		utils.AbortWithError(ctx, utils.Forbidden("You do not have permission to perform this action"))
	}
}

// RequireSellerPermission lets store owners and admins through and checks
// staff accounts against their sub-role's permission set.
func RequireSellerPermission(perm string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		user, exists := utils.CurrentUser(ctx)
		if !exists {
			utils.AbortWithError(ctx, utils.Unauthorized("Authentication required"))
			return
		}

		switch {
		case user.Role == models.RoleAdmin:
		case user.Role != models.RoleSeller:
			utils.AbortWithError(ctx, utils.Forbidden("Seller access required"))
			return
		case user.StoreID == nil:
		case !models.HasSellerPermission(user.SellerRole, perm):
			utils.AbortWithError(ctx, utils.Forbidden("Your store role does not allow "+perm))
			return
		}
		ctx.Next()
	}
}
