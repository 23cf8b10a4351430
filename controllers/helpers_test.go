package controllers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/Kariqs/amexan-marketplace/initializers"
	"github.com/Kariqs/amexan-marketplace/models"
	"github.com/Kariqs/amexan-marketplace/utils"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type envelope struct {
	Success bool             `json:"success"`
	Message string           `json:"message"`
	Data    json.RawMessage  `json:"data"`
	Meta    *utils.PageMeta  `json:"meta"`
	Error   *utils.ErrorBody `json:"error"`
}

// setupDB points initializers.DB at a sqlmock connection for the test.
func setupDB(t *testing.T) sqlmock.Sqlmock {
	t.Helper()
	gin.SetMode(gin.TestMode)
	utils.RegisterValidations()

	sqlDB, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)

	db, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{
		Logger:               logger.Default.LogMode(logger.Silent),
		TranslateError:       true,
		DisableAutomaticPing: true,
	})
	require.NoError(t, err)

	prevDB, prevCfg := initializers.DB, initializers.Config
	prevMailer, prevHub := initializers.Mailer, initializers.Hub
	initializers.DB = db
	initializers.Config.JWTSecret = "test-secret"
	initializers.Config.AccessTokenTTL = 15 * time.Minute
	initializers.Config.RefreshTokenTTL = time.Hour
	initializers.Mailer = nil
	initializers.Hub = nil
	t.Cleanup(func() {
		sqlDB.Close()
		initializers.DB, initializers.Config = prevDB, prevCfg
		initializers.Mailer, initializers.Hub = prevMailer, prevHub
	})
	return mock
}

// newRouter returns an engine that acts as if user had authenticated.
func newRouter(user *models.User) *gin.Engine {
	r := gin.New()
	if user != nil {
		r.Use(func(ctx *gin.Context) {
			ctx.Set(utils.UserKey, *user)
			ctx.Next()
		})
	}
	return r
}

func performRequest(r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return env
}

func buyer(id uint) *models.User {
	u := &models.User{Name: "Buyer", Email: "buyer@example.com", Role: models.RoleBuyer, Status: models.UserStatusActive}
	u.ID = id
	return u
}

func seller(id uint) *models.User {
	u := &models.User{Name: "Seller", Email: "seller@example.com", Role: models.RoleSeller,
		SellerRole: models.SellerRoleManager, Status: models.UserStatusActive}
	u.ID = id
	return u
}

func admin(id uint) *models.User {
	u := &models.User{Name: "Admin", Email: "admin@example.com", Role: models.RoleAdmin, Status: models.UserStatusActive}
	u.ID = id
	return u
}
