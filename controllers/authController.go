package controllers

import (
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Kariqs/amexan-marketplace/initializers"
	"github.com/Kariqs/amexan-marketplace/middlewares"
	"github.com/Kariqs/amexan-marketplace/models"
	"github.com/Kariqs/amexan-marketplace/services"
	"github.com/Kariqs/amexan-marketplace/utils"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

const (
	verificationTokenBytes = 32
	passwordResetTTL       = time.Hour
	refreshTokenCookie     = "refresh_token"
	refreshCookiePath      = "/api/auth"

	msgUserCreated        = "Account created successfully. Check your email to verify your account."
	msgUserAlreadyExists  = "An account with this email already exists"
	msgInvalidCredentials = "Invalid email or password"
	msgEmailNotVerified   = "Email not verified, check your email to verify your account."
	msgLoginSuccess       = "Login successful"
	msgInvalidVerifyLink  = "Invalid or expired verification link"
	msgEmailVerified      = "Email verified successfully."
	msgVerificationSent   = "If the account exists and is not verified, a new verification email has been sent."
	msgResetLinkSent      = "If the account exists, a password reset link has been sent to the email."
	msgInvalidResetLink   = "Invalid or expired password reset link"
	msgPasswordReset      = "Password reset successful. Please log in again."
	msgPasswordChanged    = "Password changed successfully"
	msgWrongPassword      = "Current password is incorrect"
)

type registerRequest struct {
	Name      string `json:"name" binding:"required,min=2,max=120"`
	Email     string `json:"email" binding:"required,email,max=191"`
	Phone     string `json:"phone" binding:"omitempty,max=32"`
	Password  string `json:"password" binding:"required,strongpassword"`
	Role      string `json:"role" binding:"omitempty,oneof=buyer seller"`
	StoreName string `json:"storeName" binding:"required_if=Role seller,max=120"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type emailRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type resetPasswordRequest struct {
	Password string `json:"password" binding:"required,strongpassword"`
}

type updateProfileRequest struct {
	Name      *string `json:"name" binding:"omitempty,min=2,max=120"`
	Phone     *string `json:"phone" binding:"omitempty,max=32"`
	StoreName *string `json:"storeName" binding:"omitempty,min=2,max=120"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" binding:"required"`
	NewPassword     string `json:"newPassword" binding:"required,strongpassword,nefield=CurrentPassword"`
}

type authResponse struct {
	User   models.User         `json:"user"`
	Tokens *services.TokenPair `json:"tokens"`
}

type profileResponse struct {
	User        models.User `json:"user"`
	Permissions []string    `json:"permissions"`
}

func bindJSON(ctx *gin.Context, dst any) bool {
	if err := ctx.ShouldBindJSON(dst); err != nil {
		utils.RespondError(ctx, err)
		return false
	}
	return true
}

func clientMeta(ctx *gin.Context) services.ClientMeta {
	return services.ClientMeta{UserAgent: ctx.Request.UserAgent(), IP: ctx.ClientIP()}
}

func setAuthCookies(ctx *gin.Context, pair *services.TokenPair) {
	cfg := initializers.Config
	ctx.SetSameSite(http.SameSiteLaxMode)
	ctx.SetCookie(middlewares.AccessTokenCookie, pair.AccessToken, int(time.Until(pair.AccessTokenExpiresAt).Seconds()),
		"/", cfg.CookieDomain, cfg.CookieSecure, true)
	ctx.SetCookie(refreshTokenCookie, pair.RefreshToken, int(time.Until(pair.RefreshTokenExpiresAt).Seconds()),
		refreshCookiePath, cfg.CookieDomain, cfg.CookieSecure, true)
}

func clearAuthCookies(ctx *gin.Context) {
	cfg := initializers.Config
	ctx.SetSameSite(http.SameSiteLaxMode)
	ctx.SetCookie(middlewares.AccessTokenCookie, "", -1, "/", cfg.CookieDomain, cfg.CookieSecure, true)
	ctx.SetCookie(refreshTokenCookie, "", -1, refreshCookiePath, cfg.CookieDomain, cfg.CookieSecure, true)
}

// refreshTokenFrom prefers the JSON body and falls back to the cookie.
func refreshTokenFrom(ctx *gin.Context) string {
	var body refreshRequest
	if ctx.Request.ContentLength > 0 {
		_ = ctx.ShouldBindJSON(&body)
	}
	if body.RefreshToken != "" {
		return body.RefreshToken
	}
	cookie, _ := ctx.Cookie(refreshTokenCookie)
	return cookie
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func findUserByEmail(email string) (models.User, error) {
	var user models.User
	err := initializers.DB.Where("email = ?", normalizeEmail(email)).First(&user).Error
	return user, err
}

func sendVerificationEmail(user models.User, token string) {
	services.SendEmailAsync(user.Email, "Verify your Amexan account", utils.TemplateVerifyEmail, utils.EmailData{
		Name:       user.Name,
		Message:    "Thank you for signing up! Click the button below to verify your account.",
		ActionURL:  initializers.Config.FrontendURL + "/auth/verify-email?token=" + url.QueryEscape(token),
		ActionText: "Verify account",
	})
}

func sendPasswordResetEmail(user models.User, token string) {
	services.SendEmailAsync(user.Email, "Amexan account password reset", utils.TemplateResetPassword, utils.EmailData{
		Name:       user.Name,
		Message:    "You requested a password reset. The link below is valid for one hour.",
		ActionURL:  initializers.Config.FrontendURL + "/auth/reset-password?token=" + url.QueryEscape(token),
		ActionText: "Reset password",
	})
}

// Register creates a buyer or a seller account. A registering seller owns a
// new store and acts as its manager.
func Register(ctx *gin.Context) {
	var req registerRequest
	if !bindJSON(ctx, &req) {
		return
	}

	hashed, err := utils.HashPassword(req.Password)
	if err != nil {
		utils.RespondError(ctx, utils.Internal("Failed to hash password", err))
		return
	}
	token, err := utils.GenerateOpaqueToken(verificationTokenBytes)
	if err != nil {
		utils.RespondError(ctx, utils.Internal("Failed to generate verification token", err))
		return
	}

	user := models.User{
		Name:              strings.TrimSpace(req.Name),
		Email:             normalizeEmail(req.Email),
		Phone:             req.Phone,
		Password:          hashed,
		Role:              models.RoleBuyer,
		Status:            models.UserStatusActive,
		VerificationToken: utils.HashToken(token),
	}
	if req.Role == models.RoleSeller {
		user.Role = models.RoleSeller
		user.SellerRole = models.SellerRoleManager
		user.StoreName = strings.TrimSpace(req.StoreName)
	}

	if err := initializers.DB.Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			utils.RespondError(ctx, utils.Conflict(msgUserAlreadyExists))
			return
		}
		utils.RespondError(ctx, err)
		return
	}

	sendVerificationEmail(user, token)
	initializers.Log.WithField("user_id", user.ID).Info("User registered")
	utils.RespondCreated(ctx, msgUserCreated, user)
}

func Login(ctx *gin.Context) {
	var req loginRequest
	if !bindJSON(ctx, &req) {
		return
	}

	user, err := findUserByEmail(req.Email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.RespondError(ctx, utils.Unauthorized(msgInvalidCredentials))
			return
		}
		utils.RespondError(ctx, err)
		return
	}
	if !utils.CheckPassword(user.Password, req.Password) {
		utils.RespondError(ctx, utils.Unauthorized(msgInvalidCredentials))
		return
	}
	if !user.IsActive() {
		utils.RespondError(ctx, services.ErrAccountInactive)
		return
	}
	if !user.EmailVerified {
		utils.RespondError(ctx, utils.Forbidden(msgEmailNotVerified))
		return
	}

	pair, err := services.IssueTokenPair(initializers.DB, user, clientMeta(ctx))
	if err != nil {
		utils.RespondError(ctx, err)
		return
	}

	setAuthCookies(ctx, pair)
	utils.RespondOK(ctx, msgLoginSuccess, authResponse{User: user, Tokens: pair})
}

// RefreshToken rotates the presented refresh token.
func RefreshToken(ctx *gin.Context) {
	pair, user, err := services.RotateRefreshToken(initializers.DB, refreshTokenFrom(ctx), clientMeta(ctx))
	if err != nil {
		clearAuthCookies(ctx)
		utils.RespondError(ctx, err)
		return
	}

	setAuthCookies(ctx, pair)
	utils.RespondOK(ctx, "Token refreshed", authResponse{User: *user, Tokens: pair})
}

func Logout(ctx *gin.Context) {
	if err := services.RevokeRefreshToken(initializers.DB, refreshTokenFrom(ctx)); err != nil {
		utils.RespondError(ctx, err)
		return
	}
	clearAuthCookies(ctx)
	utils.RespondOK(ctx, "Logged out successfully", nil)
}

func VerifyEmail(ctx *gin.Context) {
	token := ctx.Param("token")
	if token == "" {
		utils.RespondError(ctx, utils.BadRequest(msgInvalidVerifyLink))
		return
	}

	result := initializers.DB.Model(&models.User{}).
		Where("verification_token = ?", utils.HashToken(token)).
		Updates(map[string]any{
			"email_verified":     true,
			"verification_token": "",
		})
	if result.Error != nil {
		utils.RespondError(ctx, result.Error)
		return
	}
	if result.RowsAffected == 0 {
		utils.RespondError(ctx, utils.BadRequest(msgInvalidVerifyLink))
		return
	}

	utils.RespondOK(ctx, msgEmailVerified, nil)
}

func ResendVerification(ctx *gin.Context) {
	var req emailRequest
	if !bindJSON(ctx, &req) {
		return
	}

	user, err := findUserByEmail(req.Email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.RespondOK(ctx, msgVerificationSent, nil)
			return
		}
		utils.RespondError(ctx, err)
		return
	}
	if user.EmailVerified {
		utils.RespondOK(ctx, msgVerificationSent, nil)
		return
	}

	token, err := utils.GenerateOpaqueToken(verificationTokenBytes)
	if err != nil {
		utils.RespondError(ctx, utils.Internal("Failed to generate verification token", err))
		return
	}
	if err := initializers.DB.Model(&user).Update("verification_token", utils.HashToken(token)).Error; err != nil {
		utils.RespondError(ctx, err)
		return
	}

	sendVerificationEmail(user, token)
	utils.RespondOK(ctx, msgVerificationSent, nil)
}

// ForgotPassword answers the same way whether or not the account exists.
func ForgotPassword(ctx *gin.Context) {
	var req emailRequest
	if !bindJSON(ctx, &req) {
		return
	}

	user, err := findUserByEmail(req.Email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.RespondOK(ctx, msgResetLinkSent, nil)
			return
		}
		utils.RespondError(ctx, err)
		return
	}

	token, err := utils.GenerateOpaqueToken(verificationTokenBytes)
	if err != nil {
		utils.RespondError(ctx, utils.Internal("Failed to generate reset token", err))
		return
	}
	expires := time.Now().Add(passwordResetTTL)
	if err := initializers.DB.Model(&user).Updates(map[string]any{
		"password_reset_token":   utils.HashToken(token),
		"password_reset_expires": expires,
	}).Error; err != nil {
		utils.RespondError(ctx, err)
		return
	}

	sendPasswordResetEmail(user, token)
	utils.RespondOK(ctx, msgResetLinkSent, nil)
}

// ResetPassword sets a new password and signs the user out everywhere.
func ResetPassword(ctx *gin.Context) {
	var req resetPasswordRequest
	if !bindJSON(ctx, &req) {
		return
	}

	var user models.User
	err := initializers.DB.
		Where("password_reset_token = ? AND password_reset_expires > ?", utils.HashToken(ctx.Param("token")), time.Now()).
		First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.RespondError(ctx, utils.BadRequest(msgInvalidResetLink))
			return
		}
		utils.RespondError(ctx, err)
		return
	}

	hashed, err := utils.HashPassword(req.Password)
	if err != nil {
		utils.RespondError(ctx, utils.Internal("Failed to hash password", err))
		return
	}

	err = initializers.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&user).Updates(map[string]any{
			"password":               hashed,
			"password_reset_token":   "",
			"password_reset_expires": nil,
		}).Error; err != nil {
			return err
		}
		return services.RevokeAllForUser(tx, user.ID)
	})
	if err != nil {
		utils.RespondError(ctx, err)
		return
	}

	clearAuthCookies(ctx)
	utils.RespondOK(ctx, msgPasswordReset, nil)
}

func Me(ctx *gin.Context) {
	user := utils.MustCurrentUser(ctx)
	utils.RespondOK(ctx, "Profile fetched", profileResponse{
		User:        user,
		Permissions: models.SellerPermissions(user.SellerRole),
	})
}

func UpdateProfile(ctx *gin.Context) {
	var req updateProfileRequest
	if !bindJSON(ctx, &req) {
		return
	}
	user := utils.MustCurrentUser(ctx)

	updates := map[string]any{}
	if req.Name != nil {
		updates["name"] = strings.TrimSpace(*req.Name)
	}
	if req.Phone != nil {
		updates["phone"] = *req.Phone
	}
	if req.StoreName != nil {
		if user.Role != models.RoleSeller || user.StoreID != nil {
			utils.RespondError(ctx, utils.Forbidden("Only store owners can rename the store"))
			return
		}
		updates["store_name"] = strings.TrimSpace(*req.StoreName)
	}
	if len(updates) == 0 {
		utils.RespondError(ctx, utils.BadRequest("Nothing to update"))
		return
	}

	if err := initializers.DB.Model(&user).Updates(updates).Error; err != nil {
		utils.RespondError(ctx, err)
		return
	}
	utils.RespondOK(ctx, "Profile updated", user)
}

// ChangePassword revokes every session and returns a fresh pair for the
// current client.
func ChangePassword(ctx *gin.Context) {
	var req changePasswordRequest
	if !bindJSON(ctx, &req) {
		return
	}
	user := utils.MustCurrentUser(ctx)

	if !utils.CheckPassword(user.Password, req.CurrentPassword) {
		utils.RespondError(ctx, utils.BadRequest(msgWrongPassword))
		return
	}
	hashed, err := utils.HashPassword(req.NewPassword)
	if err != nil {
		utils.RespondError(ctx, utils.Internal("Failed to hash password", err))
		return
	}

	var pair *services.TokenPair
	err = initializers.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&user).Update("password", hashed).Error; err != nil {
			return err
		}
		if err := services.RevokeAllForUser(tx, user.ID); err != nil {
			return err
		}
		var err error
		pair, err = services.IssueTokenPair(tx, user, clientMeta(ctx))
		return err
	})
	if err != nil {
		utils.RespondError(ctx, err)
		return
	}

	setAuthCookies(ctx, pair)
	utils.RespondOK(ctx, msgPasswordChanged, authResponse{User: user, Tokens: pair})
}
